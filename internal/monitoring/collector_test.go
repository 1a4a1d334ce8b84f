package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/signal-cli/internal/model"
	"github.com/sells-group/signal-cli/internal/store"
)

type fakeRuns struct {
	runs    []model.Run
	err     error
	lastArg store.RunFilter
}

func (f *fakeRuns) ListRuns(_ context.Context, filter store.RunFilter) ([]model.Run, error) {
	f.lastArg = filter
	if f.err != nil {
		return nil, f.err
	}
	var out []model.Run
	for _, r := range f.runs {
		if !filter.CreatedAfter.IsZero() && r.CreatedAt.Before(filter.CreatedAfter) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func TestCollector_Collect(t *testing.T) {
	now := time.Now().UTC()
	runs := &fakeRuns{runs: []model.Run{
		{ID: "1", Status: model.RunStatusComplete, CreatedAt: now.Add(-time.Hour), Result: &model.RunResult{
			DurationMs: 1000, EstimatedCostUSD: 1.5, ArticlesIngested: 10, SignalsCreated: 2,
			StageErrors: []model.StageError{{Stage: model.StageMarket, Error: "timeout"}},
		}},
		{ID: "2", Status: model.RunStatusComplete, CreatedAt: now.Add(-2 * time.Hour), Result: &model.RunResult{
			DurationMs: 3000, EstimatedCostUSD: 0.5, ArticlesIngested: 4, SignalsStrengthened: 3,
		}},
		{ID: "3", Status: model.RunStatusFailed, CreatedAt: now.Add(-3 * time.Hour)},
		{ID: "4", Status: model.RunStatusAnalyzing, CreatedAt: now.Add(-time.Minute)},
		{ID: "5", Status: model.RunStatusCancelled, CreatedAt: now.Add(-time.Minute)},
		{ID: "old", Status: model.RunStatusFailed, CreatedAt: now.Add(-48 * time.Hour)},
	}}

	var counters Counters
	counters.LedgerWriteFailures.Add(2)

	snap, err := NewCollector(runs, &counters).Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 5, snap.RunsTotal)
	assert.Equal(t, 2, snap.RunsComplete)
	assert.Equal(t, 1, snap.RunsFailed)
	assert.Equal(t, 1, snap.RunsCancelled)
	assert.Equal(t, 1, snap.RunsInFlight)
	assert.InDelta(t, 1.0/3.0, snap.FailRate, 1e-9)
	assert.InDelta(t, 2.0, snap.CostUSD, 1e-9)
	assert.Equal(t, int64(2000), snap.AvgDurationMs)
	assert.Equal(t, 14, snap.ArticlesIngested)
	assert.Equal(t, 2, snap.SignalsCreated)
	assert.Equal(t, 3, snap.SignalsStrengthened)
	assert.Equal(t, 1, snap.StageErrors)
	assert.Equal(t, int64(2), snap.Counters.LedgerWriteFailures)
	assert.Equal(t, 10000, runs.lastArg.Limit)
}

func TestCollector_Collect_Empty(t *testing.T) {
	snap, err := NewCollector(&fakeRuns{}, &Counters{}).Collect(context.Background(), 1)
	require.NoError(t, err)
	assert.Zero(t, snap.RunsTotal)
	assert.Zero(t, snap.FailRate)
	assert.Zero(t, snap.AvgDurationMs)
}

func TestCollector_Collect_ListError(t *testing.T) {
	_, err := NewCollector(&fakeRuns{err: errors.New("db down")}, nil).Collect(context.Background(), 24)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitoring: list runs")
}

func TestCounters_Snapshot(t *testing.T) {
	var c Counters
	c.ArticlesIngested.Add(7)
	c.SignalsCreated.Add(1)
	c.StageFallbacks.Add(2)

	v := c.Snapshot()
	assert.Equal(t, int64(7), v.ArticlesIngested)
	assert.Equal(t, int64(1), v.SignalsCreated)
	assert.Equal(t, int64(2), v.StageFallbacks)
	assert.Zero(t, v.LedgerWriteFailures)
	assert.Same(t, Global(), Global())
}
