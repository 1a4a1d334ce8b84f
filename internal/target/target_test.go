package target

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/signal-cli/internal/model"
	"github.com/sells-group/signal-cli/internal/monitoring"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type recordingStore struct {
	saved []model.IntelligenceTarget
	err   error
}

func (s *recordingStore) UpdateTargetActivity(_ context.Context, t *model.IntelligenceTarget) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, *t)
	return nil
}

func initech() model.IntelligenceTarget {
	return model.IntelligenceTarget{
		ID:                 "t-initech",
		OrganizationID:     "org-1",
		Name:               "Initech",
		TargetType:         model.TargetCompetitor,
		Priority:           model.PriorityCritical,
		MonitoringKeywords: []string{"TPS reports"},
		Active:             true,
	}
}

func globex() model.IntelligenceTarget {
	return model.IntelligenceTarget{ID: "t-globex", OrganizationID: "org-1", Name: "Globex", Active: true}
}

func TestApplyUpdate_IncrementalPatch(t *testing.T) {
	base := model.AccumulatedContext{
		FactCount:        3,
		Geography:        []string{"Ohio"},
		RecentHighlights: []string{"older"},
	}
	next, err := ApplyUpdate(base, Update{
		Kind:       IncrementalPatch,
		Facts:      2,
		Highlights: []string{"newest", "newer"},
		Geography:  []string{"ohio", "Texas"},
		Topics:     []string{"competition"},
		Sentiment:  -0.5,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, next.FactCount)
	assert.Equal(t, []string{"newest", "newer", "older"}, next.RecentHighlights)
	assert.Equal(t, []string{"Ohio", "Texas"}, next.Geography)
	assert.Equal(t, []string{"competition"}, next.TopicClusters)
	assert.Equal(t, "negative", next.SentimentTrend)

	assert.Equal(t, 3, base.FactCount)
	assert.Equal(t, []string{"older"}, base.RecentHighlights)
}

func TestApplyUpdate_Caps(t *testing.T) {
	var highlights, topics []string
	for i := range 15 {
		highlights = append(highlights, fmt.Sprintf("h%d", i))
		topics = append(topics, fmt.Sprintf("topic%d", i))
	}
	base := model.AccumulatedContext{RecentHighlights: []string{"old"}, TopicClusters: topics}

	next, err := ApplyUpdate(base, Update{Kind: IncrementalPatch, Facts: 15, Highlights: highlights, Topics: []string{
		"a", "b", "c", "d", "e", "f", "g",
	}})
	require.NoError(t, err)
	assert.Len(t, next.RecentHighlights, MaxHighlights)
	assert.Equal(t, "h0", next.RecentHighlights[0])
	assert.NotContains(t, next.RecentHighlights, "old")
	assert.Len(t, next.TopicClusters, MaxSetSize)
	assert.Equal(t, "topic2", next.TopicClusters[0])
	assert.Equal(t, "g", next.TopicClusters[MaxSetSize-1])
}

func TestApplyUpdate_SaturatedSetAdmitsNewEntries(t *testing.T) {
	var rels []string
	for i := range MaxSetSize {
		rels = append(rels, fmt.Sprintf("partner%d", i))
	}
	base := model.AccumulatedContext{Relationships: rels}

	next, err := ApplyUpdate(base, Update{Kind: IncrementalPatch, Facts: 1, Relationships: []string{"PARTNER0", "Globex"}})
	require.NoError(t, err)
	require.Len(t, next.Relationships, MaxSetSize)
	// partner0 was re-mentioned, so partner1 is now the oldest and is evicted.
	assert.NotContains(t, next.Relationships, "partner1")
	assert.Equal(t, "partner2", next.Relationships[0])
	assert.Equal(t, []string{"partner0", "Globex"}, next.Relationships[MaxSetSize-2:])
	assert.Len(t, base.Relationships, MaxSetSize)
}

func TestPlaces(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"single", "Initech opens a depot in Ohio", []string{"Ohio"}},
		{"case and order", "expansion into TEXAS after ohio pilot", []string{"Ohio", "Texas"}},
		{"multi-word hides contained place", "West Virginia plant closes", []string{"West Virginia"}},
		{"both spellings present", "Virginia and West Virginia sites", []string{"Virginia", "West Virginia"}},
		{"country and region", "South Africa joins talks; Africa demand grows", []string{"South Africa", "Africa"}},
		{"whole words only", "Ohioans and Texans", nil},
		{"none", "quarterly results", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Places(tt.text))
		})
	}
}

func TestPatchFromFindings_Geography(t *testing.T) {
	u := PatchFromFindings([]model.Finding{
		{Title: "Initech expands in Texas", Content: "New hub near the Mexico border"},
		{Title: "Initech Texas layoffs", Content: "Ohio office unaffected"},
	}, nil)
	assert.Equal(t, []string{"Texas", "Mexico", "Ohio"}, u.Geography)

	next, err := ApplyUpdate(model.AccumulatedContext{Geography: []string{"Ohio"}}, u)
	require.NoError(t, err)
	assert.Equal(t, []string{"Texas", "Mexico", "Ohio"}, next.Geography)
}

func TestApplyUpdate_FullReplacement(t *testing.T) {
	base := model.AccumulatedContext{FactCount: 9, Geography: []string{"Ohio"}}
	next, err := ApplyUpdate(base, Update{
		Kind:        FullReplacement,
		Replacement: &model.AccumulatedContext{FactCount: 2, Relationships: []string{"Acme", "acme"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, next.FactCount)
	assert.Empty(t, next.Geography)
	assert.Equal(t, []string{"Acme"}, next.Relationships)

	_, err = ApplyUpdate(base, Update{Kind: FullReplacement})
	assert.Error(t, err)
}

func TestApplyUpdate_RejectsUnknownKind(t *testing.T) {
	base := model.AccumulatedContext{FactCount: 1}
	got, err := ApplyUpdate(base, Update{Kind: "merge"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown update kind")
	assert.Equal(t, base, got)

	_, err = ApplyUpdate(base, Update{Kind: IncrementalPatch, Facts: -1})
	assert.Error(t, err)
}

func TestSentiment(t *testing.T) {
	assert.Equal(t, 1.0, Sentiment("Initech wins record contract"))
	assert.Equal(t, -1.0, Sentiment("Initech layoffs after lawsuit"))
	assert.Equal(t, 0.0, Sentiment("Initech launches product amid lawsuit"))
	assert.Equal(t, 0.0, Sentiment("Initech holds meeting"))
	assert.InDelta(t, 1.0/3, Sentiment("growth, expansion and a recall"), 1e-9)

	assert.Equal(t, "positive", TrendLabel(0.5))
	assert.Equal(t, "neutral", TrendLabel(0.2))
	assert.Equal(t, "negative", TrendLabel(-0.3))
}

func TestMentions(t *testing.T) {
	tgt := initech()
	assert.True(t, Mentions(tgt, model.Finding{Title: "INITECH cuts prices"}))
	assert.True(t, Mentions(tgt, model.Finding{Title: "x", Content: "new tps-reports rules"}))
	assert.False(t, Mentions(tgt, model.Finding{Title: "Initechnology expo"}))
	assert.False(t, Mentions(model.IntelligenceTarget{Name: "  "}, model.Finding{Title: "anything"}))
}

func TestMatch(t *testing.T) {
	inactive := globex()
	inactive.ID = "t-off"
	inactive.Name = "Hooli"
	inactive.Active = false

	findings := []model.Finding{
		{ID: "f1", Title: "Initech and Globex merge talks"},
		{ID: "f2", Title: "Globex opens Denver hub"},
		{ID: "f3", Title: "Hooli layoffs"},
	}
	got := Match([]model.IntelligenceTarget{initech(), globex(), inactive}, findings)

	require.Len(t, got, 2)
	assert.Equal(t, []string{"f1"}, findingIDs(got["t-initech"]))
	assert.Equal(t, []string{"f1", "f2"}, findingIDs(got["t-globex"]))
}

func TestUpdateBaseline(t *testing.T) {
	fresh := initech()
	b := UpdateBaseline(fresh, 4, 0.5, testNow)
	assert.Equal(t, model.BaselineMetrics{AvgFactsPerWeek: 4, AvgSentiment: 0.5}, b)

	last := testNow.Add(-48 * time.Hour)
	seasoned := initech()
	seasoned.ActivityCount = 10
	seasoned.LastActivityAt = &last
	seasoned.BaselineMetrics = model.BaselineMetrics{AvgFactsPerWeek: 7, AvgSentiment: 0}
	b = UpdateBaseline(seasoned, 2, -1, testNow)
	// rate = 2*7/2 = 7; 0.3*7 + 0.7*7 = 7
	assert.InDelta(t, 7, b.AvgFactsPerWeek, 1e-9)
	assert.InDelta(t, -0.3, b.AvgSentiment, 1e-9)

	recent := testNow.Add(-time.Hour)
	seasoned.LastActivityAt = &recent
	b = UpdateBaseline(seasoned, 1, 0, testNow)
	// Under a day counts as a day: rate 7.
	assert.InDelta(t, 7, b.AvgFactsPerWeek, 1e-9)
}

func TestTracker_RecordAll(t *testing.T) {
	st := &recordingStore{}
	tr := NewTracker(st)
	tr.now = func() time.Time { return testNow }

	findings := []model.Finding{
		{Title: "Initech wins record contract", Relevance: map[model.Stage]float64{model.StageCompetition: 0.9}},
		{Title: "Initech and Globex partnership", Relevance: map[model.Stage]float64{model.StageMarket: 0.7, model.StageTrending: 0.2}},
	}
	quiet := model.IntelligenceTarget{ID: "t-quiet", Name: "Umbrella", Active: true}
	out := tr.RecordAll(context.Background(), []model.IntelligenceTarget{initech(), globex(), quiet}, findings)

	require.Len(t, out, 3)
	in := out[0]
	assert.Equal(t, 2, in.AccumulatedContext.FactCount)
	assert.Equal(t, 2, in.ActivityCount)
	require.NotNil(t, in.LastActivityAt)
	assert.Equal(t, testNow, *in.LastActivityAt)
	assert.Equal(t, []string{"Initech wins record contract", "Initech and Globex partnership"}, in.AccumulatedContext.RecentHighlights)
	assert.Equal(t, []string{"competition", "market"}, in.AccumulatedContext.TopicClusters)
	assert.Equal(t, []string{"Globex"}, in.AccumulatedContext.Relationships)
	assert.Equal(t, "positive", in.AccumulatedContext.SentimentTrend)
	assert.Equal(t, 2.0, in.BaselineMetrics.AvgFactsPerWeek)

	assert.Equal(t, 1, out[1].ActivityCount)
	assert.Equal(t, []string{"Initech"}, out[1].AccumulatedContext.Relationships)
	assert.Equal(t, quiet, out[2])

	require.Len(t, st.saved, 2)
	assert.Equal(t, "t-initech", st.saved[0].ID)
}

func TestTracker_PersistFailureIsNonFatal(t *testing.T) {
	st := &recordingStore{err: errors.New("db down")}
	tr := NewTracker(st)
	tr.now = func() time.Time { return testNow }
	before := monitoring.Global().TargetUpdateFailures.Load()

	out := tr.RecordAll(context.Background(), []model.IntelligenceTarget{initech()}, []model.Finding{{Title: "Initech news"}})

	assert.Equal(t, 1, out[0].AccumulatedContext.FactCount)
	assert.Equal(t, before+1, monitoring.Global().TargetUpdateFailures.Load())
}

func findingIDs(fs []model.Finding) []string {
	var ids []string
	for _, f := range fs {
		ids = append(ids, f.ID)
	}
	return ids
}
