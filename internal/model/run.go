package model

import "time"

// RunStatus represents the current state of a pipeline run.
type RunStatus string

const (
	RunStatusQueued     RunStatus = "queued"
	RunStatusIngesting  RunStatus = "ingesting"
	RunStatusAnalyzing  RunStatus = "analyzing"
	RunStatusExtracting RunStatus = "extracting"
	RunStatusComplete   RunStatus = "complete"
	RunStatusFailed     RunStatus = "failed"
	RunStatusCancelled  RunStatus = "cancelled"
)

// Terminal reports whether no further transitions are expected.
func (s RunStatus) Terminal() bool {
	return s == RunStatusComplete || s == RunStatusFailed || s == RunStatusCancelled
}

// RunRequest is the trigger payload for one organization run.
type RunRequest struct {
	OrganizationID string        `json:"organization_id"`
	RecencyWindow  time.Duration `json:"recency_window,omitempty"`
	Targets        []string      `json:"targets,omitempty"`
	// RunID is assigned by the caller when it needs the id before the run
	// finishes (async triggers, workflows). Empty means generate one.
	RunID string `json:"run_id,omitempty"`
}

// Run is the persisted record of a pipeline run.
type Run struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	Status         RunStatus  `json:"status"`
	Result         *RunResult `json:"result,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// RunResult is the outcome reported to the trigger.
type RunResult struct {
	Success             bool         `json:"success"`
	RunID               string       `json:"run_id"`
	OrganizationID      string       `json:"organization_id"`
	ArticlesIngested    int          `json:"articles_ingested"`
	ArticlesSkipped     int          `json:"articles_skipped"`
	SignalsCreated      int          `json:"signals_created"`
	SignalsStrengthened int          `json:"signals_strengthened"`
	SignalsUnchanged    int          `json:"signals_unchanged"`
	StagesCompleted     int          `json:"stages_completed"`
	StagesTotal         int          `json:"stages_total"`
	StageErrors         []StageError `json:"stage_errors,omitempty"`
	DurationMs          int64        `json:"duration_ms"`
	Errors              []string     `json:"errors,omitempty"`
	TokenUsage          TokenUsage   `json:"token_usage"`
	EstimatedCostUSD    float64      `json:"estimated_cost_usd"`
}
