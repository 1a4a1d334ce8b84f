// Package pattern derives candidate signals about intelligence targets from
// their accumulated context and the run's stage analyses, and scores them
// with fixed, deterministic rules.
package pattern

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/signal-cli/internal/config"
	"github.com/sells-group/signal-cli/internal/model"
	"github.com/sells-group/signal-cli/internal/reasoner"
	"github.com/sells-group/signal-cli/internal/stage"
)

// Defaults used when config leaves a knob unset.
const (
	DefaultMinFacts  = 2
	DefaultTimeout   = 60 * time.Second
	DefaultMaxTokens = 2048
)

// Extraction is the outcome for one target.
type Extraction struct {
	Patterns []model.Pattern
	// Skipped is set when the target has too few facts to reason about.
	Skipped bool
	// Rejected counts candidates dropped by validation.
	Rejected int
	Usage    model.TokenUsage
}

// Extractor asks a Reasoner for patterns about one target at a time.
type Extractor struct {
	reasoner  reasoner.Reasoner
	minFacts  int
	timeout   time.Duration
	maxTokens int
}

// NewExtractor creates an Extractor from pattern config.
func NewExtractor(r reasoner.Reasoner, cfg config.PatternsConfig) *Extractor {
	return &Extractor{
		reasoner:  r,
		minFacts:  cmp.Or(cfg.MinFacts, DefaultMinFacts),
		timeout:   cmp.Or(cfg.Timeout, DefaultTimeout),
		maxTokens: cmp.Or(cfg.MaxTokens, DefaultMaxTokens),
	}
}

// ExtractPatterns returns validated candidate patterns for target. Targets
// with fewer than the minimum accumulated facts are skipped without a call.
func (e *Extractor) ExtractPatterns(ctx context.Context, target *model.IntelligenceTarget, org *model.Organization, stageResults []model.StageResult) (*Extraction, error) {
	if target == nil {
		return nil, eris.New("pattern: target is required")
	}
	if target.AccumulatedContext.FactCount < e.minFacts {
		zap.L().Debug("pattern: target below fact threshold, skipping",
			zap.String("target", target.Name),
			zap.Int("fact_count", target.AccumulatedContext.FactCount),
		)
		return &Extraction{Skipped: true}, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	res, err := e.reasoner.Infer(callCtx, BuildRequest(target, org, stageResults, e.maxTokens))
	out := &Extraction{}
	if res != nil {
		out.Usage = res.Usage
	}
	if err != nil {
		return out, eris.Wrapf(err, "pattern: infer for target %s", target.Name)
	}

	candidates, err := decodeCandidates(res)
	if err != nil {
		return out, eris.Wrapf(err, "pattern: decode for target %s", target.Name)
	}
	out.Patterns = Validate(candidates)
	out.Rejected = len(candidates) - len(out.Patterns)
	return out, nil
}

// decodeCandidates accepts {"patterns": [...]} or a bare array.
func decodeCandidates(res *reasoner.Result) ([]model.Pattern, error) {
	payload, err := reasoner.Decode[patternPayload](res, nil)
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// patternPayload decodes either reply shape. An object without a
// "patterns" field is rejected so a stray object is not read as empty.
type patternPayload []model.Pattern

func (p *patternPayload) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '[' {
		return json.Unmarshal(b, (*[]model.Pattern)(p))
	}
	var wrapped struct {
		Patterns *[]model.Pattern `json:"patterns"`
	}
	if err := json.Unmarshal(b, &wrapped); err != nil {
		return err
	}
	if wrapped.Patterns == nil {
		return eris.New("pattern: payload has no patterns field")
	}
	*p = *wrapped.Patterns
	return nil
}

const instructions = `You identify forward-looking intelligence patterns about one tracked entity.

Pattern types: trajectory (sustained direction), anomaly (break from baseline), trend (broad movement the entity is part of), shift (change of strategy or position), milestone (discrete notable event).

Respond with JSON only:
{"patterns": [{"pattern_type": "...", "title": "...", "description": "...", "evidence": ["..."], "confidence": 0.0, "time_horizon": "1-month|3-months|6-months", "business_implication": "...", "recommended_action": "..."}]}

Every pattern needs concrete evidence from the context. Return an empty list when nothing is supported.`

// BuildRequest assembles the reasoning request for one target. It is pure.
func BuildRequest(target *model.IntelligenceTarget, org *model.Organization, stageResults []model.StageResult, maxTokens int) reasoner.Request {
	var b strings.Builder
	fmt.Fprintf(&b, "Target: %s (%s, priority %s)\n", target.Name, target.TargetType, target.Priority)
	if len(target.MonitoringKeywords) > 0 {
		fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(target.MonitoringKeywords, ", "))
	}
	ac := target.AccumulatedContext
	fmt.Fprintf(&b, "Facts observed: %d\n", ac.FactCount)
	if ac.SentimentTrend != "" {
		fmt.Fprintf(&b, "Sentiment trend: %s\n", ac.SentimentTrend)
	}
	writeList(&b, "Geography", ac.Geography)
	writeList(&b, "Relationships", ac.Relationships)
	writeList(&b, "Topics", ac.TopicClusters)
	if len(ac.RecentHighlights) > 0 {
		b.WriteString("Recent highlights:\n")
		for _, h := range ac.RecentHighlights {
			fmt.Fprintf(&b, "- %s\n", h)
		}
	}
	bm := target.BaselineMetrics
	fmt.Fprintf(&b, "Baseline: %.1f facts/week, sentiment %.2f\n", bm.AvgFactsPerWeek, bm.AvgSentiment)

	for _, r := range stageResults {
		if r.Analysis == nil {
			continue
		}
		fmt.Fprintf(&b, "\n%s analysis: %s\n", r.Stage, r.Analysis.Summary)
		for _, kf := range r.Analysis.KeyFindings {
			fmt.Fprintf(&b, "- %s\n", kf)
		}
	}

	return reasoner.Request{
		CallSite:   "pattern:" + target.Name,
		System:     instructions,
		Context:    stage.OrganizationContext(org),
		Data:       b.String(),
		MaxTokens:  maxTokens,
		ExpectJSON: true,
	}
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) > 0 {
		fmt.Fprintf(b, "%s: %s\n", label, strings.Join(items, ", "))
	}
}
