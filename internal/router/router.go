// Package router fans findings out to the analysis stages. Every stage sees
// every finding, ranked by its own relevance with cross-cutting stories
// first, and truncated to a fixed cap.
package router

import (
	"cmp"
	"slices"

	"github.com/sells-group/signal-cli/internal/config"
	"github.com/sells-group/signal-cli/internal/model"
)

// Defaults used when config leaves a knob unset.
const (
	DefaultPerStageCap           = 25
	DefaultCrossCuttingMinimum   = 3
	DefaultCrossCuttingThreshold = 0.5
)

// Router ranks findings per stage. It is pure and safe for concurrent use.
type Router struct {
	perStageCap int
	ccMinimum   int
	ccThreshold float64
}

// New creates a Router from config.
func New(cfg config.RouterConfig) *Router {
	return &Router{
		perStageCap: cmp.Or(cfg.PerStageCap, DefaultPerStageCap),
		ccMinimum:   cmp.Or(cfg.CrossCuttingMinimum, DefaultCrossCuttingMinimum),
		ccThreshold: cmp.Or(cfg.CrossCuttingThreshold, DefaultCrossCuttingThreshold),
	}
}

// IsCrossCutting reports whether f scores above the threshold in at least
// the minimum number of stages.
func (r *Router) IsCrossCutting(f model.Finding) bool {
	n := 0
	for _, s := range model.AllStages() {
		if f.Relevance[s] > r.ccThreshold {
			n++
		}
	}
	return n >= r.ccMinimum
}

// Route returns, for each stage, the findings ordered cross-cutting first
// and then by that stage's relevance, descending. Ties keep input order.
// The input slice is not modified.
func (r *Router) Route(findings []model.Finding) map[model.Stage][]model.Finding {
	marked := make([]model.Finding, len(findings))
	for i, f := range findings {
		f.IsCrossCutting = r.IsCrossCutting(f)
		marked[i] = f
	}

	out := make(map[model.Stage][]model.Finding, len(model.AllStages()))
	for _, stage := range model.AllStages() {
		ranked := slices.Clone(marked)
		slices.SortStableFunc(ranked, func(a, b model.Finding) int {
			if a.IsCrossCutting != b.IsCrossCutting {
				if a.IsCrossCutting {
					return -1
				}
				return 1
			}
			return cmp.Compare(b.Relevance[stage], a.Relevance[stage])
		})
		if len(ranked) > r.perStageCap {
			ranked = ranked[:r.perStageCap]
		}
		out[stage] = ranked
	}
	return out
}
