package receipt

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Candidate is one parsed match and its score.
type Candidate struct {
	Raw    string
	Amount decimal.Decimal
	Score  int
}

var totalWords = []string{"total", "amount due", "balance due", "jumlah"}

func score(raw string) int {
	s := 0
	low := strings.ToLower(raw)
	if hasCurrency(raw) {
		s += 10
	}
	for _, w := range totalWords {
		if strings.Contains(low, w) {
			s += 8
			break
		}
	}
	if strings.ContainsAny(raw, ".,") {
		s += 5
	}
	if decimalsRE.MatchString(raw) {
		s += 3
	}
	if len(onlyDigits(raw)) >= 4 {
		s++
	}
	return s
}

// Best picks the highest scoring positive amount among matches. Ties go to
// the larger amount, then the longer match.
func Best(matches []string) (Candidate, bool) {
	var (
		best  Candidate
		found bool
	)
	for _, m := range matches {
		amt, err := ParseAmount(m)
		if err != nil || !amt.IsPositive() {
			continue
		}
		c := Candidate{Raw: m, Amount: amt, Score: score(m)}
		if !found || better(c, best) {
			best, found = c, true
		}
	}
	return best, found
}

func better(c, best Candidate) bool {
	if c.Score != best.Score {
		return c.Score > best.Score
	}
	if !c.Amount.Equal(best.Amount) {
		return c.Amount.GreaterThan(best.Amount)
	}
	if len(c.Raw) != len(best.Raw) {
		return len(c.Raw) > len(best.Raw)
	}
	return c.Raw < best.Raw
}
