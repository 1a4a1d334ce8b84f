package pattern

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/signal-cli/internal/model"
)

// Confidence bounds applied to every validated candidate.
const (
	MinConfidence = 0.1
	MaxConfidence = 0.95
)

var typeBonus = map[model.PatternType]int{
	model.PatternMilestone:  15,
	model.PatternShift:      15,
	model.PatternAnomaly:    12,
	model.PatternTrajectory: 8,
	model.PatternTrend:      5,
}

var priorityBonus = map[model.Priority]int{
	model.PriorityCritical: 15,
	model.PriorityHigh:     10,
	model.PriorityMedium:   5,
	model.PriorityLow:      0,
}

var horizonBonus = map[model.TimeHorizon]int{
	model.HorizonOneMonth:    10,
	model.HorizonThreeMonths: 5,
	model.HorizonSixMonths:   0,
}

// Significance scores a validated pattern for a target of the given priority,
// clamped to [0, 100].
func Significance(p model.Pattern, priority model.Priority) int {
	score := 50 + typeBonus[p.PatternType] + int(math.Round(p.Confidence*20)) + priorityBonus[priority] + horizonBonus[p.TimeHorizon]
	return clampInt(score, 0, 100)
}

// eventLike patterns describe discrete events rather than gradual movement.
func eventLike(t model.PatternType) bool {
	return t == model.PatternAnomaly || t == model.PatternShift || t == model.PatternMilestone
}

// UrgencyFor derives urgency from pattern type, confidence and horizon.
func UrgencyFor(t model.PatternType, confidence float64, horizon model.TimeHorizon) model.Urgency {
	switch horizon {
	case model.HorizonOneMonth:
		if confidence >= 0.6 || eventLike(t) {
			return model.UrgencyImmediate
		}
		return model.UrgencyNearTerm
	case model.HorizonThreeMonths:
		if confidence >= 0.5 || eventLike(t) {
			return model.UrgencyNearTerm
		}
		return model.UrgencyMonitoring
	default:
		if eventLike(t) && confidence >= 0.8 {
			return model.UrgencyNearTerm
		}
		return model.UrgencyMonitoring
	}
}

// ImpactFor buckets a significance score.
func ImpactFor(significance int) model.ImpactLevel {
	switch {
	case significance >= 80:
		return model.ImpactHigh
	case significance >= 60:
		return model.ImpactMedium
	default:
		return model.ImpactLow
	}
}

// SignalTypeFor maps discrete events to pattern signals and directional
// claims to predictive ones.
func SignalTypeFor(t model.PatternType) model.SignalType {
	if t == model.PatternMilestone || t == model.PatternAnomaly {
		return model.SignalTypePattern
	}
	return model.SignalTypePredictive
}

// ToSignal converts a validated pattern about target into a candidate signal.
func ToSignal(p model.Pattern, orgID string, target *model.IntelligenceTarget, now time.Time) model.Signal {
	priority := model.PriorityMedium
	targetID := ""
	if target != nil {
		priority = target.Priority
		targetID = target.ID
	}
	sig := Significance(p, priority)
	return model.Signal{
		ID:                  uuid.NewString(),
		OrganizationID:      orgID,
		SignalType:          SignalTypeFor(p.PatternType),
		Subtype:             p.PatternType,
		Title:               p.Title,
		Description:         p.Description,
		PrimaryTargetID:     targetID,
		ConfidenceScore:     int(math.Round(p.Confidence * 100)),
		SignificanceScore:   sig,
		Urgency:             UrgencyFor(p.PatternType, p.Confidence, p.TimeHorizon),
		ImpactLevel:         ImpactFor(sig),
		TimeHorizon:         p.TimeHorizon,
		Evidence:            append([]string(nil), p.Evidence...),
		BusinessImplication: p.BusinessImplication,
		RecommendedAction:   p.RecommendedAction,
		DetectionCount:      1,
		FirstDetectedAt:     now,
		LastDetectedAt:      now,
		Status:              model.SignalActive,
	}
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
