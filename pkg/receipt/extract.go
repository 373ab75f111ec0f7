package receipt

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	decimalsRE = regexp.MustCompile(`[.,][0-9]{2}$`)

	totalRE    = regexp.MustCompile(`(?i)\b(?:grand\s+total|total(?:\s+due)?|amount\s+due|balance\s+due|jumlah)\b[\s:]*((?:[$€£]|usd|eur|gbp|rp|idr)?\s*[0-9][0-9.,]*)`)
	currencyRE = regexp.MustCompile(`(?i)((?:[$€£]|\busd|\beur|\bgbp|\brp|\bidr)\s*[0-9][0-9.,]*)`)
	groupedRE  = regexp.MustCompile(`\b[0-9]{1,3}(?:[.,][0-9]{3})+(?:[.,][0-9]{2})?\b`)
	centsRE    = regexp.MustCompile(`\b[0-9]+[.,][0-9]{2}\b`)
)

// Result is an OCR amount suggestion.
type Result struct {
	Amount     decimal.Decimal
	Confidence float64
	Raw        string
	Text       string
}

// normalizeText collapses whitespace into single spaces.
func normalizeText(t string) string {
	return strings.Join(strings.Fields(t), " ")
}

// FindCandidates returns the amount-like substrings of text in the order
// found, without duplicates. Matches following a total label keep the label
// so scoring can prefer them.
func FindCandidates(text string) []string {
	text = normalizeText(text)
	var out []string
	seen := map[string]struct{}{}
	add := func(s string) {
		s = strings.TrimRight(strings.TrimSpace(s), ".,")
		if _, ok := seen[s]; ok || !plausible(s) {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	for _, m := range totalRE.FindAllStringSubmatch(text, -1) {
		add("TOTAL " + strings.TrimSpace(m[1]))
	}
	for _, m := range currencyRE.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	for _, m := range groupedRE.FindAllString(text, -1) {
		add(m)
	}
	for _, m := range centsRE.FindAllString(text, -1) {
		add(m)
	}
	return out
}

// Extract picks the most likely total from OCR text. Confidence grows with
// the share of the text the match covers and is raised for matches with a
// currency or total label.
func Extract(text string) (Result, error) {
	text = normalizeText(text)
	best, ok := Best(FindCandidates(text))
	if !ok {
		return Result{Text: text}, ErrNoAmount
	}
	conf := float64(len(best.Raw)) / float64(len(text)+1)
	if conf > 1 {
		conf = 1
	}
	if best.Score >= 10 && conf < 0.85 {
		conf = 0.85
	} else if decimalsRE.MatchString(best.Raw) && conf < 0.5 {
		conf = 0.5
	}
	return Result{Amount: best.Amount.Round(2), Confidence: conf, Raw: best.Raw, Text: text}, nil
}
