package target

import (
	"strings"
	"unicode"
)

var positiveTerms = map[string]bool{
	"award": true, "beat": true, "breakthrough": true, "expand": true, "expands": true,
	"expansion": true, "gain": true, "gains": true, "growth": true, "launch": true,
	"launches": true, "partnership": true, "profit": true, "record": true, "surge": true,
	"wins": true, "win": true, "approved": true, "upgrade": true,
}

var negativeTerms = map[string]bool{
	"bankruptcy": true, "breach": true, "cut": true, "cuts": true, "decline": true,
	"delay": true, "fine": true, "fined": true, "layoffs": true, "lawsuit": true,
	"loss": true, "losses": true, "miss": true, "probe": true, "recall": true,
	"resigns": true, "shortfall": true, "strike": true, "downgrade": true,
}

// Sentiment scores text in [-1, 1] from lexicon hits: (pos-neg)/(pos+neg).
// Text with no hits scores 0.
func Sentiment(text string) float64 {
	pos, neg := 0, 0
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		switch {
		case positiveTerms[w]:
			pos++
		case negativeTerms[w]:
			neg++
		}
	}
	if pos+neg == 0 {
		return 0
	}
	return float64(pos-neg) / float64(pos+neg)
}
