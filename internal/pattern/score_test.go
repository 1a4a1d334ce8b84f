package pattern

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/signal-cli/internal/model"
)

func TestSignificance(t *testing.T) {
	tests := []struct {
		name     string
		p        model.Pattern
		priority model.Priority
		want     int
	}{
		{"trend low six months", model.Pattern{PatternType: model.PatternTrend, Confidence: 0.1, TimeHorizon: model.HorizonSixMonths}, model.PriorityLow, 57},
		{"trajectory medium three months", model.Pattern{PatternType: model.PatternTrajectory, Confidence: 0.5, TimeHorizon: model.HorizonThreeMonths}, model.PriorityMedium, 78},
		{"anomaly high one month", model.Pattern{PatternType: model.PatternAnomaly, Confidence: 0.7, TimeHorizon: model.HorizonOneMonth}, model.PriorityHigh, 96},
		{"shift critical clamps", model.Pattern{PatternType: model.PatternShift, Confidence: 0.95, TimeHorizon: model.HorizonOneMonth}, model.PriorityCritical, 100},
		{"rounding half up", model.Pattern{PatternType: model.PatternTrend, Confidence: 0.125, TimeHorizon: model.HorizonSixMonths}, model.PriorityLow, 58},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Significance(tt.p, tt.priority))
		})
	}
}

func TestUrgencyFor(t *testing.T) {
	tests := []struct {
		pt      model.PatternType
		conf    float64
		horizon model.TimeHorizon
		want    model.Urgency
	}{
		{model.PatternTrend, 0.6, model.HorizonOneMonth, model.UrgencyImmediate},
		{model.PatternTrend, 0.59, model.HorizonOneMonth, model.UrgencyNearTerm},
		{model.PatternAnomaly, 0.1, model.HorizonOneMonth, model.UrgencyImmediate},
		{model.PatternTrajectory, 0.5, model.HorizonThreeMonths, model.UrgencyNearTerm},
		{model.PatternTrajectory, 0.49, model.HorizonThreeMonths, model.UrgencyMonitoring},
		{model.PatternMilestone, 0.2, model.HorizonThreeMonths, model.UrgencyNearTerm},
		{model.PatternShift, 0.8, model.HorizonSixMonths, model.UrgencyNearTerm},
		{model.PatternShift, 0.79, model.HorizonSixMonths, model.UrgencyMonitoring},
		{model.PatternTrend, 0.95, model.HorizonSixMonths, model.UrgencyMonitoring},
	}
	for _, tt := range tests {
		t.Run(string(tt.pt)+"/"+string(tt.horizon), func(t *testing.T) {
			assert.Equal(t, tt.want, UrgencyFor(tt.pt, tt.conf, tt.horizon))
		})
	}
}

func TestImpactFor(t *testing.T) {
	assert.Equal(t, model.ImpactHigh, ImpactFor(80))
	assert.Equal(t, model.ImpactMedium, ImpactFor(79))
	assert.Equal(t, model.ImpactMedium, ImpactFor(60))
	assert.Equal(t, model.ImpactLow, ImpactFor(59))
}

func TestSignalTypeFor(t *testing.T) {
	assert.Equal(t, model.SignalTypePattern, SignalTypeFor(model.PatternMilestone))
	assert.Equal(t, model.SignalTypePattern, SignalTypeFor(model.PatternAnomaly))
	assert.Equal(t, model.SignalTypePredictive, SignalTypeFor(model.PatternTrajectory))
	assert.Equal(t, model.SignalTypePredictive, SignalTypeFor(model.PatternTrend))
	assert.Equal(t, model.SignalTypePredictive, SignalTypeFor(model.PatternShift))
}

// Acme tracks Initech as a critical competitor; a confident one-month
// milestone must land at the top of the scale and demand immediate action.
func TestToSignal_CriticalMilestone(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	target := &model.IntelligenceTarget{ID: "t-initech", Name: "Initech", Priority: model.PriorityCritical}
	p := model.Pattern{
		PatternType:         model.PatternMilestone,
		Title:               "Initech closes Series D",
		Description:         "Initech raised $200M to expand into freight.",
		Evidence:            []string{"Press release 2026-03-09"},
		Confidence:          0.9,
		TimeHorizon:         model.HorizonOneMonth,
		BusinessImplication: "Price pressure in Acme's core lanes",
	}

	s := ToSignal(p, "org-acme", target, now)

	assert.Equal(t, 100, s.SignificanceScore)
	assert.Equal(t, model.UrgencyImmediate, s.Urgency)
	assert.Equal(t, model.ImpactHigh, s.ImpactLevel)
	assert.Equal(t, model.SignalTypePattern, s.SignalType)
	assert.Equal(t, model.PatternMilestone, s.Subtype)
	assert.Equal(t, 90, s.ConfidenceScore)
	assert.Equal(t, "t-initech", s.PrimaryTargetID)
	assert.Equal(t, "org-acme", s.OrganizationID)
	assert.Equal(t, 1, s.DetectionCount)
	assert.Equal(t, model.SignalActive, s.Status)
	assert.Equal(t, now, s.FirstDetectedAt)
	assert.Equal(t, now, s.LastDetectedAt)
	assert.NotEmpty(t, s.ID)

	p.Evidence[0] = "mutated"
	assert.Equal(t, "Press release 2026-03-09", s.Evidence[0])
}

func TestToSignal_NoTarget(t *testing.T) {
	s := ToSignal(model.Pattern{PatternType: model.PatternTrend, Confidence: 0.5, TimeHorizon: model.HorizonSixMonths}, "org", nil, time.Now())
	assert.Empty(t, s.PrimaryTargetID)
	assert.Equal(t, 70, s.SignificanceScore)
}
