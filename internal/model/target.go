package model

import "time"

// TargetType classifies an intelligence target.
type TargetType string

const (
	TargetCompetitor  TargetType = "competitor"
	TargetStakeholder TargetType = "stakeholder"
	TargetRegulator   TargetType = "regulator"
	TargetCustomer    TargetType = "customer"
	TargetPartner     TargetType = "partner"
)

// Valid reports whether t is a known target type.
func (t TargetType) Valid() bool {
	switch t {
	case TargetCompetitor, TargetStakeholder, TargetRegulator, TargetCustomer, TargetPartner:
		return true
	}
	return false
}

// Priority ranks how closely a target is watched.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// AccumulatedContext aggregates facts observed about a target over time.
type AccumulatedContext struct {
	FactCount        int      `json:"fact_count" yaml:"fact_count"`
	SentimentTrend   string   `json:"sentiment_trend,omitempty" yaml:"sentiment_trend"`
	Geography        []string `json:"geography,omitempty" yaml:"geography"`
	Relationships    []string `json:"relationships,omitempty" yaml:"relationships"`
	TopicClusters    []string `json:"topic_clusters,omitempty" yaml:"topic_clusters"`
	RecentHighlights []string `json:"recent_highlights,omitempty" yaml:"recent_highlights"`
}

// BaselineMetrics are slow-moving averages used to spot anomalies.
type BaselineMetrics struct {
	AvgFactsPerWeek float64 `json:"avg_facts_per_week" yaml:"avg_facts_per_week"`
	AvgSentiment    float64 `json:"avg_sentiment" yaml:"avg_sentiment"`
}

// IntelligenceTarget is a named entity under long-term observation.
// Targets are never deleted, only deactivated.
type IntelligenceTarget struct {
	ID                 string             `json:"id" yaml:"id"`
	OrganizationID     string             `json:"organization_id" yaml:"organization_id"`
	Name               string             `json:"name" yaml:"name"`
	TargetType         TargetType         `json:"target_type" yaml:"target_type"`
	Priority           Priority           `json:"priority" yaml:"priority"`
	MonitoringKeywords []string           `json:"monitoring_keywords,omitempty" yaml:"monitoring_keywords"`
	AccumulatedContext AccumulatedContext `json:"accumulated_context" yaml:"accumulated_context"`
	BaselineMetrics    BaselineMetrics    `json:"baseline_metrics" yaml:"baseline_metrics"`
	ActivityCount      int                `json:"activity_count" yaml:"activity_count"`
	LastActivityAt     *time.Time         `json:"last_activity_at,omitempty" yaml:"-"`
	Active             bool               `json:"active" yaml:"active"`
	CreatedAt          time.Time          `json:"created_at" yaml:"-"`
	UpdatedAt          time.Time          `json:"updated_at" yaml:"-"`
}
