package model

import "time"

// StageAnalysis is the normalized output of one stage's reasoning call.
type StageAnalysis struct {
	Summary         string    `json:"summary"`
	KeyFindings     []string  `json:"key_findings"`
	Implications    []string  `json:"implications,omitempty"`
	Risks           []string  `json:"risks,omitempty"`
	Opportunities   []string  `json:"opportunities,omitempty"`
	Entities        []string  `json:"entities,omitempty"`
	Recommendations []string  `json:"recommendations,omitempty"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// StageResult reports how one stage fared within a run.
type StageResult struct {
	Stage         Stage          `json:"stage"`
	Success       bool           `json:"success"`
	Skipped       bool           `json:"skipped,omitempty"`
	Fallback      bool           `json:"fallback,omitempty"`
	FindingsCount int            `json:"findings_count"`
	Analysis      *StageAnalysis `json:"analysis,omitempty"`
	Error         string         `json:"error,omitempty"`
	DurationMs    int64          `json:"duration_ms"`
	TokenUsage    TokenUsage     `json:"token_usage"`
}

// StageError is the per-stage failure detail surfaced in a run result.
type StageError struct {
	Stage Stage  `json:"stage"`
	Error string `json:"error"`
}
