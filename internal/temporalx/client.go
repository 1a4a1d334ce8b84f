package temporalx

import (
	"context"

	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/sells-group/signal-cli/internal/config"
	"github.com/sells-group/signal-cli/internal/model"
)

// Dial connects to the Temporal frontend, logging through the global zap logger.
func Dial(ctx context.Context, cfg config.TemporalConfig) (client.Client, error) {
	c, err := client.DialContext(ctx, client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    NewLogger(zap.L()),
	})
	if err != nil {
		return nil, eris.Wrapf(err, "temporalx: dial %s", cfg.HostPort)
	}
	return c, nil
}

// StartRun starts a pipeline workflow for req. The workflow id is derived
// from the run id so a retried trigger does not start a second run.
func StartRun(ctx context.Context, c client.Client, taskQueue string, req model.RunRequest) (client.WorkflowRun, error) {
	opts := client.StartWorkflowOptions{TaskQueue: taskQueue}
	if req.RunID != "" {
		opts.ID = WorkflowID(req.RunID)
	}
	run, err := c.ExecuteWorkflow(ctx, opts, WorkflowPipelineRun, req)
	if err != nil {
		return nil, eris.Wrap(err, "temporalx: start pipeline workflow")
	}
	return run, nil
}
