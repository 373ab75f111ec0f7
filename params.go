package main

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"finapi/pkg/apperr"
)

const dateLayout = "2006-01-02"

func pathID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Field("id", "invalid id")
	}
	return uint(id), nil
}

// parseDate accepts YYYY-MM-DD (UTC midnight) or RFC3339. dateOnly reports
// which form was used.
func parseDate(field, raw string) (t time.Time, dateOnly bool, err error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t.UTC(), true, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), false, nil
	}
	return time.Time{}, false, apperr.Field(field, field+" must be YYYY-MM-DD or RFC3339")
}

func optionalDate(field string, raw *string) (*time.Time, error) {
	if raw == nil {
		return nil, nil
	}
	t, _, err := parseDate(field, *raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// dateRange turns start_date and end_date into an inclusive lower bound and
// an exclusive upper bound. A date-only end_date covers that whole day.
func dateRange(start, end string) (from, to *time.Time, err error) {
	if start != "" {
		t, _, err := parseDate("start_date", start)
		if err != nil {
			return nil, nil, err
		}
		from = &t
	}
	if end != "" {
		t, dateOnly, err := parseDate("end_date", end)
		if err != nil {
			return nil, nil, err
		}
		if dateOnly {
			t = t.AddDate(0, 0, 1)
		} else {
			t = t.Add(time.Microsecond)
		}
		to = &t
	}
	return from, to, nil
}

// queryInt reads an optional integer query parameter; def is returned when
// the parameter is absent.
func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw, found := c.GetQuery(name)
	if !found || strings.TrimSpace(raw) == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, apperr.Field(name, name+" must be an integer")
	}
	return n, nil
}

func queryUint(c *gin.Context, name string) (uint, error) {
	n, err := queryInt(c, name, 0)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, apperr.Field(name, name+" must be positive")
	}
	return uint(n), nil
}
