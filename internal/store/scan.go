package store

import (
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/signal-cli/internal/model"
)

// Column lists shared by both backends. JSON columns are JSONB in Postgres
// and TEXT in SQLite; both scan into []byte.
const (
	orgColumns    = "id, name, industry, description, competitors, keywords, created_at, updated_at"
	targetColumns = "id, organization_id, name, target_type, priority, monitoring_keywords, accumulated_context, " +
		"baseline_metrics, activity_count, last_activity_at, active, created_at, updated_at"
	signalColumns = "id, organization_id, signal_type, subtype, title, description, primary_target_id, " +
		"confidence_score, significance_score, urgency, impact_level, time_horizon, evidence, " +
		"business_implication, recommended_action, detection_count, first_detected_at, last_detected_at, status"
	runColumns = "id, organization_id, status, result, created_at, updated_at"
)

type scannable interface {
	Scan(dest ...any) error
}

func scanOrganization(row scannable) (*model.Organization, error) {
	var o model.Organization
	var competitors, keywords []byte
	if err := row.Scan(&o.ID, &o.Name, &o.Industry, &o.Description, &competitors, &keywords, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(competitors, &o.Competitors); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal competitors")
	}
	if err := unmarshalJSON(keywords, &o.Keywords); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal keywords")
	}
	return &o, nil
}

func scanTarget(row scannable) (*model.IntelligenceTarget, error) {
	var t model.IntelligenceTarget
	var keywords, accumulated, baseline []byte
	err := row.Scan(&t.ID, &t.OrganizationID, &t.Name, &t.TargetType, &t.Priority, &keywords, &accumulated,
		&baseline, &t.ActivityCount, &t.LastActivityAt, &t.Active, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := unmarshalJSON(keywords, &t.MonitoringKeywords); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal monitoring keywords")
	}
	if err := unmarshalJSON(accumulated, &t.AccumulatedContext); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal accumulated context")
	}
	if err := unmarshalJSON(baseline, &t.BaselineMetrics); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal baseline metrics")
	}
	return &t, nil
}

func scanSignal(row scannable) (*model.Signal, error) {
	var s model.Signal
	var evidence []byte
	err := row.Scan(&s.ID, &s.OrganizationID, &s.SignalType, &s.Subtype, &s.Title, &s.Description,
		&s.PrimaryTargetID, &s.ConfidenceScore, &s.SignificanceScore, &s.Urgency, &s.ImpactLevel,
		&s.TimeHorizon, &evidence, &s.BusinessImplication, &s.RecommendedAction, &s.DetectionCount,
		&s.FirstDetectedAt, &s.LastDetectedAt, &s.Status)
	if err != nil {
		return nil, err
	}
	if err := unmarshalJSON(evidence, &s.Evidence); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal evidence")
	}
	return &s, nil
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var result []byte
	if err := row.Scan(&r.ID, &r.OrganizationID, &r.Status, &result, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	if len(result) > 0 {
		r.Result = &model.RunResult{}
		if err := json.Unmarshal(result, r.Result); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal run result")
		}
	}
	return &r, nil
}

func unmarshalJSON(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// signalArgs returns the column values in signalColumns order, with the
// evidence column already encoded for the backend.
func signalArgs(s *model.Signal, evidence any) []any {
	return []any{
		s.ID, s.OrganizationID, string(s.SignalType), string(s.Subtype), s.Title, s.Description,
		s.PrimaryTargetID, s.ConfidenceScore, s.SignificanceScore, string(s.Urgency), string(s.ImpactLevel),
		string(s.TimeHorizon), evidence, s.BusinessImplication, s.RecommendedAction, s.DetectionCount,
		s.FirstDetectedAt.UTC(), s.LastDetectedAt.UTC(), string(s.Status),
	}
}

func evidenceJSON(s *model.Signal) ([]byte, error) {
	ev := s.Evidence
	if ev == nil {
		ev = []string{}
	}
	b, err := json.Marshal(ev)
	return b, eris.Wrap(err, "store: marshal evidence")
}

func jsonOrEmpty(v any, empty string) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(b) == "null" {
		return []byte(empty), nil
	}
	return b, nil
}
