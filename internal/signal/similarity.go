package signal

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true, "be": true,
	"by": true, "for": true, "from": true, "has": true, "have": true, "in": true, "is": true,
	"it": true, "its": true, "of": true, "on": true, "or": true, "that": true, "the": true,
	"this": true, "to": true, "was": true, "will": true, "with": true,
}

// NormalizeTitle folds a title for comparison: NFKD decomposition with
// combining marks removed, lower case, and punctuation collapsed to single
// spaces.
func NormalizeTitle(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	b.Grow(len(folded))
	space := true
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

// tokens returns the non-stopword tokens of a normalized title.
func tokens(normalized string) map[string]bool {
	out := make(map[string]bool)
	for _, f := range strings.Fields(normalized) {
		if !stopwords[f] {
			out[f] = true
		}
	}
	return out
}

// Jaccard is |a∩b| / |a∪b| over normalized, stopword-free tokens. Two empty
// token sets score 0.
func Jaccard(a, b string) float64 {
	ta, tb := tokens(NormalizeTitle(a)), tokens(NormalizeTitle(b))
	if len(ta) == 0 && len(tb) == 0 {
		return 0
	}
	inter := 0
	for t := range ta {
		if tb[t] {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return float64(inter) / float64(union)
}

// Matcher decides whether two titles describe the same claim.
type Matcher struct {
	Threshold      float64
	PrefixMinChars int
}

// Similarity scores two titles in [0, 1]. Identical normalized titles and
// prefix matches of at least PrefixMinChars score 1; otherwise the token
// Jaccard. It is symmetric.
func (m Matcher) Similarity(a, b string) float64 {
	na, nb := NormalizeTitle(a), NormalizeTitle(b)
	if na != "" && na == nb {
		return 1
	}
	if m.prefix(na, nb) {
		return 1
	}
	return Jaccard(a, b)
}

// Match reports whether the titles are similar enough to merge.
func (m Matcher) Match(a, b string) bool {
	return m.Similarity(a, b) >= m.Threshold
}

func (m Matcher) prefix(na, nb string) bool {
	short, long := na, nb
	if len(short) > len(long) {
		short, long = long, short
	}
	if m.PrefixMinChars <= 0 || len([]rune(short)) < m.PrefixMinChars {
		return false
	}
	return strings.HasPrefix(long, short)
}
