package temporalx

import "time"

const (
	WorkflowPipelineRun = "pipeline_run"
	ActivityRunPipeline = "pipeline_run_execute"
)

// Application error types that must not be retried.
const (
	ErrTypeInvalidInput         = "InvalidInput"
	ErrTypeOrganizationNotFound = "OrganizationNotFound"
)

const (
	runTimeout       = 30 * time.Minute
	heartbeatTimeout = time.Minute
	heartbeatEvery   = 10 * time.Second
	maxAttempts      = 3
)

// WorkflowID is the workflow id used for a pipeline run id.
func WorkflowID(runID string) string { return "pipeline-run-" + runID }
