package ingest

import (
	"strings"
	"time"

	"github.com/sells-group/signal-cli/internal/model"
)

// BuildQueries derives search queries from the organization profile and its
// active targets: the organization name, each competitor, each target name,
// and each target name paired with its monitoring keywords. Duplicates are
// dropped case-insensitively and the list is capped at maxQueries when it is
// positive.
func BuildQueries(org *model.Organization, targets []model.IntelligenceTarget, window time.Duration, sources []string, maxQueries int) []Query {
	seen := make(map[string]bool)
	var texts []string
	add := func(s string) {
		s = strings.Join(strings.Fields(s), " ")
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			return
		}
		seen[key] = true
		texts = append(texts, s)
	}

	if org != nil {
		add(org.Name)
		for _, c := range org.Competitors {
			add(c)
		}
	}
	for _, t := range targets {
		if !t.Active {
			continue
		}
		add(t.Name)
		for _, kw := range t.MonitoringKeywords {
			add(t.Name + " " + kw)
		}
	}

	if maxQueries > 0 && len(texts) > maxQueries {
		texts = texts[:maxQueries]
	}
	queries := make([]Query, len(texts))
	for i, text := range texts {
		queries[i] = Query{Text: text, TimeWindow: window, Sources: sources}
	}
	return queries
}
