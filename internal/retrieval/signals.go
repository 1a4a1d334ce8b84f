package retrieval

import (
	"strings"

	"github.com/sells-group/signal-cli/internal/model"
)

// FromSignals adapts stored signals into retrievable items. Salience is the
// significance score over 100 and the evidence lines act as keywords.
func FromSignals(signals []model.Signal) []Item {
	items := make([]Item, 0, len(signals))
	for _, sig := range signals {
		sal := float64(sig.SignificanceScore) / 100
		lastSeen := sig.LastDetectedAt
		it := Item{
			ID:       sig.ID,
			Title:    sig.Title,
			Content:  strings.TrimSpace(sig.Description + "\n" + sig.BusinessImplication),
			Keywords: append([]string(nil), sig.Evidence...),
			Themes:   []string{string(sig.Subtype), string(sig.SignalType)},
			Salience: &sal,

			CreatedAt: sig.FirstDetectedAt,
		}
		if !lastSeen.IsZero() {
			it.LastAccessedAt = &lastSeen
		}
		items = append(items, it)
	}
	return items
}

// Top returns at most n results. n <= 0 returns all of them.
func Top(scored []Scored, n int) []Scored {
	if n <= 0 || n >= len(scored) {
		return scored
	}
	return scored[:n]
}
