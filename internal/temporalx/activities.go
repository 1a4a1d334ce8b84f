package temporalx

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"

	"github.com/sells-group/signal-cli/internal/model"
	"github.com/sells-group/signal-cli/internal/pipeline"
)

// Activities holds the dependencies of the pipeline activities.
type Activities struct {
	Runner pipeline.Runner
}

// RunPipeline runs the pipeline for one organization, heartbeating while it
// works so a lost worker is noticed before the start-to-close timeout.
func (a *Activities) RunPipeline(ctx context.Context, req model.RunRequest) (*model.RunResult, error) {
	if a == nil || a.Runner == nil {
		return nil, eris.New("temporalx: activity not configured")
	}

	stop := startHeartbeat(ctx, heartbeatEvery)
	defer stop()

	res, err := a.Runner.Run(ctx, req)
	switch {
	case err == nil:
		return res, nil
	case errors.Is(err, pipeline.ErrInvalidInput):
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeInvalidInput, err)
	case errors.Is(err, pipeline.ErrOrganizationNotFound):
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeOrganizationNotFound, err)
	default:
		zap.L().Warn("temporalx: pipeline run failed",
			zap.String("organization_id", req.OrganizationID),
			zap.String("run_id", req.RunID),
			zap.Error(err),
		)
		return nil, err
	}
}

func startHeartbeat(ctx context.Context, every time.Duration) func() {
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				activity.RecordHeartbeat(ctx)
			}
		}
	}()
	return func() { close(done) }
}
