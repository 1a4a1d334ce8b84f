package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/signal-cli/internal/model"
	"github.com/sells-group/signal-cli/internal/store"
)

// MetricsSnapshot holds a point-in-time view of pipeline health.
type MetricsSnapshot struct {
	// Runs created within the lookback window.
	RunsTotal     int     `json:"runs_total"`
	RunsComplete  int     `json:"runs_complete"`
	RunsFailed    int     `json:"runs_failed"`
	RunsCancelled int     `json:"runs_cancelled"`
	RunsInFlight  int     `json:"runs_in_flight"`
	FailRate      float64 `json:"fail_rate"`
	CostUSD       float64 `json:"cost_usd"`
	AvgDurationMs int64   `json:"avg_duration_ms"`

	ArticlesIngested    int `json:"articles_ingested"`
	SignalsCreated      int `json:"signals_created"`
	SignalsStrengthened int `json:"signals_strengthened"`
	StageErrors         int `json:"stage_errors"`

	// Process counters since start.
	Counters CounterValues `json:"counters"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// RunLister is the slice of the store the collector needs.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
}

// Collector gathers metrics from stored runs and process counters.
type Collector struct {
	runs     RunLister
	counters *Counters
}

// NewCollector creates a metrics collector. A nil counters uses Global.
func NewCollector(runs RunLister, counters *Counters) *Collector {
	if counters == nil {
		counters = Global()
	}
	return &Collector{runs: runs, counters: counters}
}

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := time.Now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
		Counters:      c.counters.Snapshot(),
	}

	runs, err := c.runs.ListRuns(ctx, store.RunFilter{
		CreatedAfter: now.Add(-time.Duration(lookbackHours) * time.Hour),
		Limit:        10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	snap.RunsTotal = len(runs)
	var totalDuration int64
	var timed int64
	for _, r := range runs {
		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
		case model.RunStatusFailed:
			snap.RunsFailed++
		case model.RunStatusCancelled:
			snap.RunsCancelled++
		default:
			snap.RunsInFlight++
		}
		if r.Result == nil {
			continue
		}
		snap.CostUSD += r.Result.EstimatedCostUSD
		snap.ArticlesIngested += r.Result.ArticlesIngested
		snap.SignalsCreated += r.Result.SignalsCreated
		snap.SignalsStrengthened += r.Result.SignalsStrengthened
		snap.StageErrors += len(r.Result.StageErrors)
		if r.Result.DurationMs > 0 {
			totalDuration += r.Result.DurationMs
			timed++
		}
	}

	if finished := snap.RunsComplete + snap.RunsFailed; finished > 0 {
		snap.FailRate = float64(snap.RunsFailed) / float64(finished)
	}
	if timed > 0 {
		snap.AvgDurationMs = totalDuration / timed
	}
	return snap, nil
}
