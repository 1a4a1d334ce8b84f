package pattern

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/signal-cli/internal/config"
	"github.com/sells-group/signal-cli/internal/model"
	"github.com/sells-group/signal-cli/internal/reasoner"
)

type mockReasoner struct {
	mock.Mock
}

func (m *mockReasoner) Infer(ctx context.Context, req reasoner.Request) (*reasoner.Result, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reasoner.Result), args.Error(1)
}

func reply(body string) *reasoner.Result {
	raw, _ := reasoner.ExtractJSON(body)
	return &reasoner.Result{Text: body, JSON: raw, Usage: model.TokenUsage{InputTokens: 50, OutputTokens: 10}}
}

var initech = &model.IntelligenceTarget{
	ID:                 "t-1",
	Name:               "Initech",
	TargetType:         model.TargetCompetitor,
	Priority:           model.PriorityHigh,
	MonitoringKeywords: []string{"pricing"},
	AccumulatedContext: model.AccumulatedContext{
		FactCount:        4,
		SentimentTrend:   "negative",
		Geography:        []string{"Ohio"},
		RecentHighlights: []string{"Initech cut prices 10%"},
	},
}

var acme = &model.Organization{ID: "org-1", Name: "Acme"}

func TestExtractPatterns_SkipsBelowMinFacts(t *testing.T) {
	r := &mockReasoner{}
	sparse := *initech
	sparse.AccumulatedContext.FactCount = 1

	got, err := NewExtractor(r, config.PatternsConfig{}).ExtractPatterns(context.Background(), &sparse, acme, nil)
	require.NoError(t, err)
	assert.True(t, got.Skipped)
	r.AssertNotCalled(t, "Infer", mock.Anything, mock.Anything)
}

func TestExtractPatterns_WrappedPayload(t *testing.T) {
	r := &mockReasoner{}
	r.On("Infer", mock.Anything, mock.MatchedBy(func(req reasoner.Request) bool {
		return req.CallSite == "pattern:Initech" && req.ExpectJSON
	})).Return(reply(`{"patterns":[
		{"pattern_type":"shift","title":"Initech pivots to price war","description":"Three cuts in a month","evidence":["cut 1","cut 2"],"confidence":0.99,"time_horizon":"1-month","business_implication":"margin risk"},
		{"pattern_type":"trend","title":"","description":"missing title","evidence":["x"],"confidence":0.5}
	]}`), nil)

	got, err := NewExtractor(r, config.PatternsConfig{}).ExtractPatterns(context.Background(), initech, acme, nil)
	require.NoError(t, err)
	require.Len(t, got.Patterns, 1)
	assert.Equal(t, 1, got.Rejected)
	assert.Equal(t, 0.95, got.Patterns[0].Confidence)
	assert.Equal(t, 60, got.Usage.Total())
}

func TestExtractPatterns_BareArray(t *testing.T) {
	r := &mockReasoner{}
	r.On("Infer", mock.Anything, mock.Anything).Return(reply(`[{"pattern_type":"milestone","title":"T","description":"D","evidence":["e"],"confidence":0.7,"time_horizon":"someday"}]`), nil)

	got, err := NewExtractor(r, config.PatternsConfig{}).ExtractPatterns(context.Background(), initech, acme, nil)
	require.NoError(t, err)
	require.Len(t, got.Patterns, 1)
	assert.Equal(t, model.HorizonThreeMonths, got.Patterns[0].TimeHorizon)
}

func TestExtractPatterns_CitationBeforePayload(t *testing.T) {
	r := &mockReasoner{}
	r.On("Infer", mock.Anything, mock.Anything).Return(reply(`Per highlight [2], pricing changed.
{"patterns":[{"pattern_type":"shift","title":"Initech pivots to price war","description":"Repeated cuts","evidence":["cut 1"],"confidence":0.8,"time_horizon":"1-month"}]}`), nil)

	got, err := NewExtractor(r, config.PatternsConfig{}).ExtractPatterns(context.Background(), initech, acme, nil)
	require.NoError(t, err)
	require.Len(t, got.Patterns, 1)
	assert.Equal(t, model.PatternShift, got.Patterns[0].PatternType)
}

func TestExtractPatterns_ObjectWithoutPatternsField(t *testing.T) {
	r := &mockReasoner{}
	r.On("Infer", mock.Anything, mock.Anything).Return(reply(`{"note":"nothing"}`), nil)

	_, err := NewExtractor(r, config.PatternsConfig{}).ExtractPatterns(context.Background(), initech, acme, nil)
	require.Error(t, err)
	assert.True(t, reasoner.IsKind(err, reasoner.KindMalformed))
}

func TestExtractPatterns_EmptyList(t *testing.T) {
	r := &mockReasoner{}
	r.On("Infer", mock.Anything, mock.Anything).Return(reply(`{"patterns":[]}`), nil)

	got, err := NewExtractor(r, config.PatternsConfig{}).ExtractPatterns(context.Background(), initech, acme, nil)
	require.NoError(t, err)
	assert.Empty(t, got.Patterns)
	assert.False(t, got.Skipped)
}

func TestExtractPatterns_ReasonerError(t *testing.T) {
	r := &mockReasoner{}
	r.On("Infer", mock.Anything, mock.Anything).Return(nil, &reasoner.Error{Kind: reasoner.KindTimeout, Err: errors.New("slow")})

	_, err := NewExtractor(r, config.PatternsConfig{Timeout: time.Second}).ExtractPatterns(context.Background(), initech, acme, nil)
	require.Error(t, err)
	assert.True(t, reasoner.IsKind(err, reasoner.KindTimeout))
}

func TestExtractPatterns_Malformed(t *testing.T) {
	r := &mockReasoner{}
	r.On("Infer", mock.Anything, mock.Anything).Return(&reasoner.Result{Text: "no idea"}, nil)

	_, err := NewExtractor(r, config.PatternsConfig{}).ExtractPatterns(context.Background(), initech, acme, nil)
	require.Error(t, err)
	assert.True(t, reasoner.IsKind(err, reasoner.KindMalformed))
}

func TestExtractPatterns_NilTarget(t *testing.T) {
	_, err := NewExtractor(&mockReasoner{}, config.PatternsConfig{}).ExtractPatterns(context.Background(), nil, acme, nil)
	require.Error(t, err)
}

func TestBuildRequest(t *testing.T) {
	results := []model.StageResult{
		{Stage: model.StageCompetition, Analysis: &model.StageAnalysis{Summary: "Price war", KeyFindings: []string{"Initech -10%"}}},
		{Stage: model.StageMarket},
	}
	req := BuildRequest(initech, acme, results, 256)

	assert.Equal(t, 256, req.MaxTokens)
	assert.Contains(t, req.Data, "Target: Initech (competitor, priority high)")
	assert.Contains(t, req.Data, "Facts observed: 4")
	assert.Contains(t, req.Data, "Geography: Ohio")
	assert.Contains(t, req.Data, "- Initech cut prices 10%")
	assert.Contains(t, req.Data, "competition analysis: Price war")
	assert.NotContains(t, req.Data, "market analysis")
	assert.Contains(t, req.Context, "Organization: Acme")
	assert.Contains(t, req.System, "milestone")
}
