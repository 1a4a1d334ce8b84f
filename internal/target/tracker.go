package target

import (
	"context"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/signal-cli/internal/model"
	"github.com/sells-group/signal-cli/internal/monitoring"
)

// EMAAlpha weights the newest observation in the baseline averages.
const EMAAlpha = 0.3

// topicThreshold is the stage relevance at which a stage counts as a topic.
const topicThreshold = 0.5

// ActivityStore persists target activity.
type ActivityStore interface {
	UpdateTargetActivity(ctx context.Context, t *model.IntelligenceTarget) error
}

// Tracker folds run findings into targets and persists the result.
type Tracker struct {
	store ActivityStore
	now   func() time.Time
}

// NewTracker creates a Tracker.
func NewTracker(st ActivityStore) *Tracker {
	return &Tracker{store: st, now: time.Now}
}

// RecordAll matches findings to targets, updates every mentioned target and
// returns all targets with their current state, mentioned or not. Persist
// failures are logged and counted; the in-memory update still applies.
func (tr *Tracker) RecordAll(ctx context.Context, targets []model.IntelligenceTarget, findings []model.Finding) []model.IntelligenceTarget {
	matched := Match(targets, findings)
	out := make([]model.IntelligenceTarget, len(targets))
	for i, t := range targets {
		hits := matched[t.ID]
		if len(hits) == 0 {
			out[i] = t
			continue
		}
		out[i] = tr.record(ctx, t, hits, coMentioned(targets, t.ID, hits))
	}
	return out
}

func (tr *Tracker) record(ctx context.Context, t model.IntelligenceTarget, findings []model.Finding, related []string) model.IntelligenceTarget {
	now := tr.now().UTC()
	u := PatchFromFindings(findings, related)

	next, err := ApplyUpdate(t.AccumulatedContext, u)
	if err != nil {
		zap.L().Warn("target: apply update", zap.String("target", t.Name), zap.Error(err))
		return t
	}
	t.AccumulatedContext = next
	t.BaselineMetrics = UpdateBaseline(t, u.Facts, u.Sentiment, now)
	t.ActivityCount += u.Facts
	t.LastActivityAt = &now

	if err := tr.store.UpdateTargetActivity(ctx, &t); err != nil {
		monitoring.Global().TargetUpdateFailures.Add(1)
		zap.L().Warn("target: persist activity failed",
			zap.String("organization_id", t.OrganizationID),
			zap.String("target", t.Name),
			zap.Error(err),
		)
	}
	return t
}

// PatchFromFindings builds an incremental patch: one fact per finding, titles
// as highlights, places named in the findings as geography, high-relevance
// stages as topics, and the mean lexicon sentiment.
func PatchFromFindings(findings []model.Finding, related []string) Update {
	u := Update{Kind: IncrementalPatch, Facts: len(findings), Relationships: related}
	var sentiment float64
	for _, f := range findings {
		text := f.Title + " " + f.Content
		u.Highlights = append(u.Highlights, f.Title)
		for _, place := range Places(text) {
			if !slices.Contains(u.Geography, place) {
				u.Geography = append(u.Geography, place)
			}
		}
		for _, s := range model.AllStages() {
			if f.Relevance[s] > topicThreshold && !slices.Contains(u.Topics, string(s)) {
				u.Topics = append(u.Topics, string(s))
			}
		}
		sentiment += Sentiment(text)
	}
	if len(findings) > 0 {
		u.Sentiment = sentiment / float64(len(findings))
	}
	return u
}

// UpdateBaseline moves the baseline averages toward this run's observation.
// The weekly fact rate scales facts by the days since the last activity,
// assuming a full week when there was none; a target with no prior activity
// takes the observation as its baseline.
func UpdateBaseline(t model.IntelligenceTarget, facts int, sentiment float64, now time.Time) model.BaselineMetrics {
	days := 7.0
	if t.LastActivityAt != nil {
		days = max(1, now.Sub(*t.LastActivityAt).Hours()/24)
	}
	rate := float64(facts) * 7 / days

	if t.ActivityCount == 0 {
		return model.BaselineMetrics{AvgFactsPerWeek: rate, AvgSentiment: sentiment}
	}
	return model.BaselineMetrics{
		AvgFactsPerWeek: ema(t.BaselineMetrics.AvgFactsPerWeek, rate),
		AvgSentiment:    ema(t.BaselineMetrics.AvgSentiment, sentiment),
	}
}

func ema(prev, obs float64) float64 {
	return EMAAlpha*obs + (1-EMAAlpha)*prev
}

// coMentioned lists other targets named in the same findings.
func coMentioned(targets []model.IntelligenceTarget, selfID string, findings []model.Finding) []string {
	var out []string
	for _, other := range targets {
		if other.ID == selfID || !other.Active {
			continue
		}
		for _, f := range findings {
			if Mentions(other, f) {
				out = append(out, other.Name)
				break
			}
		}
	}
	return out
}
