package model

import "time"

// SignalType distinguishes descriptive pattern signals from forecasts.
type SignalType string

const (
	SignalTypePattern    SignalType = "pattern"
	SignalTypePredictive SignalType = "predictive"
)

// Urgency is derived from a fixed lookup, never from free text.
type Urgency string

const (
	UrgencyImmediate  Urgency = "immediate"
	UrgencyNearTerm   Urgency = "near_term"
	UrgencyMonitoring Urgency = "monitoring"
)

// ImpactLevel buckets significance for display.
type ImpactLevel string

const (
	ImpactHigh   ImpactLevel = "high"
	ImpactMedium ImpactLevel = "medium"
	ImpactLow    ImpactLevel = "low"
)

// SignalStatus tracks the lifecycle of a signal. Signals are never deleted.
type SignalStatus string

const (
	SignalActive    SignalStatus = "active"
	SignalResolved  SignalStatus = "resolved"
	SignalDismissed SignalStatus = "dismissed"
)

// Valid reports whether s is a known status.
func (s SignalStatus) Valid() bool {
	switch s {
	case SignalActive, SignalResolved, SignalDismissed:
		return true
	}
	return false
}

// Signal is the durable, evidence-backed output of the pipeline.
type Signal struct {
	ID                  string       `json:"id"`
	OrganizationID      string       `json:"organization_id"`
	SignalType          SignalType   `json:"signal_type"`
	Subtype             PatternType  `json:"subtype"`
	Title               string       `json:"title"`
	Description         string       `json:"description"`
	PrimaryTargetID     string       `json:"primary_target_id,omitempty"`
	ConfidenceScore     int          `json:"confidence_score"`
	SignificanceScore   int          `json:"significance_score"`
	Urgency             Urgency      `json:"urgency"`
	ImpactLevel         ImpactLevel  `json:"impact_level"`
	TimeHorizon         TimeHorizon  `json:"time_horizon,omitempty"`
	Evidence            []string     `json:"evidence"`
	BusinessImplication string       `json:"business_implication,omitempty"`
	RecommendedAction   string       `json:"recommended_action,omitempty"`
	DetectionCount      int          `json:"detection_count"`
	FirstDetectedAt     time.Time    `json:"first_detected_at"`
	LastDetectedAt      time.Time    `json:"last_detected_at"`
	Status              SignalStatus `json:"status"`
}
