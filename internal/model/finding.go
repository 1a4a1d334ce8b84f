package model

// Stage names one analytical lens applied to routed findings.
type Stage string

const (
	StageCompetition    Stage = "competition"
	StageTrending       Stage = "trending"
	StageStakeholders   Stage = "stakeholders"
	StageMarket         Stage = "market"
	StageForwardLooking Stage = "forward_looking"
)

// AllStages returns the fixed stage set in canonical order.
func AllStages() []Stage {
	return []Stage{
		StageCompetition,
		StageTrending,
		StageStakeholders,
		StageMarket,
		StageForwardLooking,
	}
}

// Valid reports whether s is one of the known stages.
func (s Stage) Valid() bool {
	for _, known := range AllStages() {
		if s == known {
			return true
		}
	}
	return false
}

// Finding is a routed, scored article for one pipeline run. Findings are not
// persisted; they are discarded after stage analysis.
type Finding struct {
	ID             string            `json:"id"`
	Title          string            `json:"title"`
	Content        string            `json:"content"`
	URL            string            `json:"url,omitempty"`
	Source         string            `json:"source,omitempty"`
	Relevance      map[Stage]float64 `json:"relevance"`
	IsCrossCutting bool              `json:"is_cross_cutting"`
}
