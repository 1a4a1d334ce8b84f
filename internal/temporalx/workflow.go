package temporalx

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/sells-group/signal-cli/internal/model"
)

// PipelineWorkflow executes one organization run as a single activity.
// Invalid input and unknown organizations fail without retry.
func PipelineWorkflow(ctx workflow.Context, req model.RunRequest) (*model.RunResult, error) {
	if req.RunID == "" {
		req.RunID = workflow.GetInfo(ctx).WorkflowExecution.RunID
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: runTimeout,
		HeartbeatTimeout:    heartbeatTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        10 * time.Second,
			BackoffCoefficient:     2,
			MaximumAttempts:        maxAttempts,
			NonRetryableErrorTypes: []string{ErrTypeInvalidInput, ErrTypeOrganizationNotFound},
		},
	})

	workflow.GetLogger(ctx).Info("pipeline run workflow started",
		"organization_id", req.OrganizationID, "run_id", req.RunID)

	var res model.RunResult
	if err := workflow.ExecuteActivity(ctx, ActivityRunPipeline, req).Get(ctx, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
