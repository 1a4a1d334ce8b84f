package pattern

import (
	"math"
	"strings"

	"github.com/sells-group/signal-cli/internal/model"
)

// Validate drops candidates that lack a known pattern type, a title, a
// description or any evidence, and normalizes the rest: confidence clamped to
// [MinConfidence, MaxConfidence], unknown horizons become three months, and
// blank evidence entries are removed.
func Validate(candidates []model.Pattern) []model.Pattern {
	out := make([]model.Pattern, 0, len(candidates))
	for _, p := range candidates {
		p.PatternType = model.PatternType(strings.ToLower(strings.TrimSpace(string(p.PatternType))))
		p.Title = strings.TrimSpace(p.Title)
		p.Description = strings.TrimSpace(p.Description)
		p.Evidence = nonBlank(p.Evidence)

		if !p.PatternType.Valid() || p.Title == "" || p.Description == "" || len(p.Evidence) == 0 {
			continue
		}
		if math.IsNaN(p.Confidence) {
			p.Confidence = MinConfidence
		}
		p.Confidence = math.Max(MinConfidence, math.Min(MaxConfidence, p.Confidence))
		if !p.TimeHorizon.Valid() {
			p.TimeHorizon = model.HorizonThreeMonths
		}
		out = append(out, p)
	}
	return out
}

func nonBlank(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
