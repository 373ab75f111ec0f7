package ledger

import (
	"regexp"
	"strings"

	"finapi/pkg/apperr"
)

var colorRE = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// collector gathers field errors and reports them together.
type collector struct {
	fields []apperr.FieldError
}

func (c *collector) add(field, msg string) {
	c.fields = append(c.fields, apperr.FieldError{Field: field, Message: msg})
}

func (c *collector) addErr(fe *apperr.FieldError) {
	if fe != nil {
		c.fields = append(c.fields, *fe)
	}
}

func (c *collector) err() error {
	if len(c.fields) == 0 {
		return nil
	}
	if len(c.fields) == 1 {
		return apperr.Validation(c.fields[0].Message, c.fields...)
	}
	return apperr.Validation("validation failed", c.fields...)
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
