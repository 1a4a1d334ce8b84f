package temporalx

import (
	"cmp"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/sells-group/signal-cli/internal/config"
	"github.com/sells-group/signal-cli/internal/pipeline"
)

const defaultConcurrency = 4

// NewWorker builds a worker for the pipeline task queue with the workflow
// and activities registered under their stable names.
func NewWorker(c client.Client, cfg config.TemporalConfig, runner pipeline.Runner) worker.Worker {
	concurrency := max(cmp.Or(cfg.Concurrency, defaultConcurrency), 1)
	w := worker.New(c, cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     concurrency,
		MaxConcurrentWorkflowTaskExecutionSize: max(concurrency, 2),
	})
	Register(w, &Activities{Runner: runner})
	return w
}

// Register adds the pipeline workflow and activities to r.
func Register(r worker.Registry, acts *Activities) {
	r.RegisterWorkflowWithOptions(PipelineWorkflow, workflow.RegisterOptions{Name: WorkflowPipelineRun})
	r.RegisterActivityWithOptions(acts.RunPipeline, activity.RegisterOptions{Name: ActivityRunPipeline})
}
