package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/signal-cli/internal/config"
	"github.com/sells-group/signal-cli/internal/model"
)

func TestChecker_RunStopsOnCancel(t *testing.T) {
	cfg := config.MonitoringConfig{CheckIntervalSecs: 1, LookbackWindowHours: 24, FailureRateThreshold: 0.10}
	checker := NewChecker(NewCollector(&fakeRuns{}, &Counters{}), NewAlerter(cfg), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return checker.Latest() != nil }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Checker.Run did not stop after context cancellation")
	}
}

func TestChecker_CancelledBeforeStart(t *testing.T) {
	checker := NewChecker(NewCollector(&fakeRuns{}, &Counters{}), NewAlerter(config.MonitoringConfig{}), config.MonitoringConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	checker.Run(ctx)
	assert.Nil(t, checker.Latest())
}

func TestChecker_CheckReturnsAlerts(t *testing.T) {
	now := time.Now()
	var runs []model.Run
	for i := 0; i < 6; i++ {
		runs = append(runs, model.Run{Status: model.RunStatusFailed, CreatedAt: now})
	}
	cfg := config.MonitoringConfig{LookbackWindowHours: 24, FailureRateThreshold: 0.5}
	checker := NewChecker(NewCollector(&fakeRuns{runs: runs}, &Counters{}), NewAlerter(cfg), cfg)

	alerts := checker.Check(context.Background())
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertRunFailureRate, alerts[0].Type)
	require.NotNil(t, checker.Latest())
	assert.Equal(t, 6, checker.Latest().RunsFailed)
}
