package retrieval

import "strings"

// reason lists the strong factors in a fixed order.
func (s *Scorer) reason(b Breakdown) string {
	var parts []string
	if b.Similarity >= s.reasonThreshold {
		parts = append(parts, "strong match for the query")
	}
	if b.Salience >= s.reasonThreshold {
		parts = append(parts, "high salience")
	}
	if b.Recency >= s.reasonThreshold {
		parts = append(parts, "recently active")
	}
	if b.Relationship >= s.reasonThreshold {
		parts = append(parts, "closely related")
	}
	if b.Execution >= s.reasonThreshold {
		parts = append(parts, "acted on successfully before")
	}
	if len(parts) == 0 {
		return "general relevance"
	}
	return strings.Join(parts, "; ")
}
