package model

// PatternType is the kind of claim a pattern makes about a target.
type PatternType string

const (
	PatternTrajectory PatternType = "trajectory"
	PatternAnomaly    PatternType = "anomaly"
	PatternTrend      PatternType = "trend"
	PatternShift      PatternType = "shift"
	PatternMilestone  PatternType = "milestone"
)

// Valid reports whether p is a known pattern type.
func (p PatternType) Valid() bool {
	switch p {
	case PatternTrajectory, PatternAnomaly, PatternTrend, PatternShift, PatternMilestone:
		return true
	}
	return false
}

// TimeHorizon is the window in which a pattern is expected to play out.
type TimeHorizon string

const (
	HorizonOneMonth    TimeHorizon = "1-month"
	HorizonThreeMonths TimeHorizon = "3-months"
	HorizonSixMonths   TimeHorizon = "6-months"
)

// Valid reports whether h is a known horizon.
func (h TimeHorizon) Valid() bool {
	switch h {
	case HorizonOneMonth, HorizonThreeMonths, HorizonSixMonths:
		return true
	}
	return false
}

// Pattern is a candidate claim derived from a target's accumulated context.
type Pattern struct {
	PatternType         PatternType `json:"pattern_type"`
	Title               string      `json:"title"`
	Description         string      `json:"description"`
	Evidence            []string    `json:"evidence"`
	Confidence          float64     `json:"confidence"`
	TimeHorizon         TimeHorizon `json:"time_horizon"`
	BusinessImplication string      `json:"business_implication"`
	RecommendedAction   string      `json:"recommended_action,omitempty"`
}
