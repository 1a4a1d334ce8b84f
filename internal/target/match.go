package target

import (
	"strings"
	"unicode"

	"github.com/sells-group/signal-cli/internal/model"
)

// Mentions reports whether f names the target or one of its monitoring
// keywords as whole words, ignoring case.
func Mentions(t model.IntelligenceTarget, f model.Finding) bool {
	text := padded(f.Title + " " + f.Content)
	if hasWord(text, t.Name) {
		return true
	}
	for _, kw := range t.MonitoringKeywords {
		if hasWord(text, kw) {
			return true
		}
	}
	return false
}

// Match groups findings by the id of each active target they mention. A
// finding can land under several targets. Order within a group follows the
// input.
func Match(targets []model.IntelligenceTarget, findings []model.Finding) map[string][]model.Finding {
	out := make(map[string][]model.Finding)
	for _, t := range targets {
		if !t.Active {
			continue
		}
		for _, f := range findings {
			if Mentions(t, f) {
				out[t.ID] = append(out[t.ID], f)
			}
		}
	}
	return out
}

func hasWord(paddedText, term string) bool {
	p := strings.TrimSpace(padded(term))
	return p != "" && strings.Contains(paddedText, " "+p+" ")
}

// padded lower-cases s, collapses non-word runs to one space and wraps the
// result in spaces.
func padded(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte(' ')
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		b.WriteString(w)
		b.WriteByte(' ')
	}
	return b.String()
}
