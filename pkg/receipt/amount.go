// Package receipt stores receipt images and suggests the amount they show
// using OCR.
package receipt

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrNoAmount is returned when no plausible monetary amount can be extracted.
var ErrNoAmount = errors.New("no amount detected")

// maxDigits bounds the integer part; longer runs are ids or card numbers.
const maxDigits = 9

var currencyMarkers = []string{"$", "€", "£", "usd", "eur", "gbp", "rp", "idr"}

func hasCurrency(s string) bool {
	low := strings.ToLower(s)
	for _, m := range currencyMarkers {
		if strings.Contains(low, m) {
			return true
		}
	}
	return false
}

func onlyDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

var numberRE = regexp.MustCompile(`[0-9][0-9.,]*`)

// ParseAmount normalizes a matched substring into an amount with at most 2
// decimal places. The last separator marks decimals when 1 or 2 digits
// follow it and thousands grouping otherwise, so both "1.234,56" and
// "1,234.56" parse as 1234.56.
func ParseAmount(raw string) (decimal.Decimal, error) {
	num := numberRE.FindString(raw)
	num = strings.TrimRight(num, ".,")
	if num == "" {
		return decimal.Zero, fmt.Errorf("no digits in %q", raw)
	}
	intPart, frac := num, ""
	if i := strings.LastIndexAny(num, ".,"); i != -1 {
		if tail := num[i+1:]; len(tail) <= 2 {
			intPart, frac = num[:i], tail
		}
	}
	digits := onlyDigits(intPart)
	if digits == "" {
		digits = "0"
	}
	if len(digits) > maxDigits {
		return decimal.Zero, fmt.Errorf("amount %q too long", raw)
	}
	s := digits
	if frac != "" {
		s += "." + frac
	}
	amt, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", raw, err)
	}
	return amt, nil
}

// plausible rejects matches that look like phone numbers, reference ids or
// dates rather than money.
func plausible(raw string) bool {
	s := strings.TrimSpace(raw)
	if s == "" {
		return false
	}
	if hasCurrency(s) || strings.Contains(strings.ToLower(s), "total") {
		return true
	}
	d := onlyDigits(s)
	if d == "" || len(d) > maxDigits {
		return false
	}
	if strings.ContainsAny(s, ".,") {
		return d[0] != '0' || strings.HasPrefix(s, "0.") || strings.HasPrefix(s, "0,")
	}
	// bare integers: short, no leading zero, round
	if d[0] == '0' || len(d) < 2 || len(d) > 7 {
		return false
	}
	return len(d) < 5 || strings.HasSuffix(d, "00")
}
