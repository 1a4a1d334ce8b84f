// Package stage runs the per-stage reasoning calls of a pipeline run and
// normalizes their replies into stored analyses.
package stage

import (
	"cmp"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/signal-cli/internal/config"
	"github.com/sells-group/signal-cli/internal/model"
	"github.com/sells-group/signal-cli/internal/monitoring"
	"github.com/sells-group/signal-cli/internal/reasoner"
)

// Defaults used when config leaves a knob unset.
const (
	DefaultConcurrency = 5
	DefaultTimeout     = 60 * time.Second
	DefaultMaxTokens   = 2048
)

// AnalysisStore persists the latest analysis per (organization, stage).
type AnalysisStore interface {
	SaveStageAnalysis(ctx context.Context, orgID string, stage model.Stage, analysis *model.StageAnalysis) error
	GetStageAnalysis(ctx context.Context, orgID string, stage model.Stage) (*model.StageAnalysis, error)
}

// Analyzer runs stage analyses against a Reasoner.
type Analyzer struct {
	reasoner    reasoner.Reasoner
	store       AnalysisStore
	concurrency int
	timeout     time.Duration
	stagger     time.Duration
	maxTokens   int
	now         func() time.Time
}

// NewAnalyzer creates an Analyzer from stage config. store may be nil, in
// which case nothing is persisted and no fallback is loaded.
func NewAnalyzer(r reasoner.Reasoner, store AnalysisStore, cfg config.StagesConfig) *Analyzer {
	return &Analyzer{
		reasoner:    r,
		store:       store,
		concurrency: cmp.Or(cfg.Concurrency, DefaultConcurrency),
		timeout:     cmp.Or(cfg.Timeout, DefaultTimeout),
		stagger:     cfg.Stagger,
		maxTokens:   cmp.Or(cfg.MaxTokens, DefaultMaxTokens),
		now:         time.Now,
	}
}

// Summary is the joined outcome of AnalyzeAll.
type Summary struct {
	Results         []model.StageResult
	StagesCompleted int
	StagesTotal     int
	Errors          []model.StageError
	Usage           model.TokenUsage
}

// Analyze runs one stage. Empty findings skip the reasoner. A failed or
// unparseable reply returns fallback when one is given. Analyze never
// panics and never returns an error; failures are reported in the result.
func (a *Analyzer) Analyze(ctx context.Context, stage model.Stage, org *model.Organization, findings []model.Finding, fallback *model.StageAnalysis) (res model.StageResult) {
	start := time.Now()
	res = model.StageResult{Stage: stage, FindingsCount: len(findings)}
	defer func() {
		if r := recover(); r != nil {
			res = a.failed(stage, len(findings), fallback, eris.Errorf("stage: panic: %v", r))
		}
		res.DurationMs = time.Since(start).Milliseconds()
	}()

	if len(findings) == 0 {
		res.Success = true
		res.Skipped = true
		return res
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	reply, err := a.reasoner.Infer(callCtx, BuildRequest(stage, org, findings, a.maxTokens))
	if reply != nil {
		res.TokenUsage = reply.Usage
	}
	if err != nil {
		failed := a.failed(stage, len(findings), fallback, err)
		failed.TokenUsage = res.TokenUsage
		return failed
	}

	analysis, err := reasoner.Decode(reply, validateAnalysis)
	if err != nil {
		failed := a.failed(stage, len(findings), fallback, err)
		failed.TokenUsage = res.TokenUsage
		return failed
	}
	analysis.GeneratedAt = a.now().UTC()

	res.Success = true
	res.Analysis = &analysis
	if org != nil {
		a.persist(ctx, org.ID, stage, &analysis)
	}
	return res
}

// failed builds the result for a stage whose call did not produce a usable
// analysis.
func (a *Analyzer) failed(stage model.Stage, n int, fallback *model.StageAnalysis, err error) model.StageResult {
	res := model.StageResult{Stage: stage, FindingsCount: n, Error: err.Error()}
	if fallback != nil {
		monitoring.Global().StageFallbacks.Add(1)
		res.Success = true
		res.Fallback = true
		res.Analysis = fallback
		zap.L().Warn("stage: analysis failed, using fallback",
			zap.String("stage", string(stage)),
			zap.Error(err),
		)
		return res
	}
	monitoring.Global().StageFailures.Add(1)
	zap.L().Warn("stage: analysis failed",
		zap.String("stage", string(stage)),
		zap.Error(err),
	)
	return res
}

func (a *Analyzer) persist(ctx context.Context, orgID string, stage model.Stage, analysis *model.StageAnalysis) {
	if a.store == nil {
		return
	}
	// The analysis outlives the run, so a cancelled run still stores it.
	if err := a.store.SaveStageAnalysis(context.WithoutCancel(ctx), orgID, stage, analysis); err != nil {
		monitoring.Global().AnalysisPersistFailures.Add(1)
		zap.L().Error("stage: persist analysis failed",
			zap.String("organization_id", orgID),
			zap.String("stage", string(stage)),
			zap.Error(err),
		)
	}
}

func (a *Analyzer) loadFallback(ctx context.Context, orgID string, stage model.Stage) *model.StageAnalysis {
	if a.store == nil || orgID == "" {
		return nil
	}
	prev, err := a.store.GetStageAnalysis(ctx, orgID, stage)
	if err != nil {
		zap.L().Warn("stage: load previous analysis failed",
			zap.String("organization_id", orgID),
			zap.String("stage", string(stage)),
			zap.Error(err),
		)
		return nil
	}
	return prev
}

// AnalyzeAll runs every stage with bounded concurrency and waits for all of
// them. The previous stored analysis of each stage is its fallback.
// Cancelling ctx cancels in-flight calls; stages not yet started report the
// cancellation as their error.
func (a *Analyzer) AnalyzeAll(ctx context.Context, org *model.Organization, routed map[model.Stage][]model.Finding) *Summary {
	stages := model.AllStages()
	results := make([]model.StageResult, len(stages))
	orgID := ""
	if org != nil {
		orgID = org.ID
	}

	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, stage := range stages {
		g.Go(func() error {
			if err := a.wait(gCtx, time.Duration(i)*a.stagger); err != nil {
				mu.Lock()
				results[i] = model.StageResult{Stage: stage, FindingsCount: len(routed[stage]), Error: eris.Wrap(err, "stage: not started").Error()}
				mu.Unlock()
				return nil
			}
			findings := routed[stage]
			var fallback *model.StageAnalysis
			if len(findings) > 0 {
				fallback = a.loadFallback(gCtx, orgID, stage)
			}
			res := a.Analyze(gCtx, stage, org, findings, fallback)
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sum := &Summary{Results: results, StagesTotal: len(stages)}
	for _, r := range results {
		sum.Usage.Add(r.TokenUsage)
		if r.Success && !r.Fallback {
			sum.StagesCompleted++
		}
		if r.Error != "" {
			sum.Errors = append(sum.Errors, model.StageError{Stage: r.Stage, Error: r.Error})
		}
	}
	zap.L().Info("stage: analysis complete",
		zap.String("organization_id", orgID),
		zap.Int("stages_completed", sum.StagesCompleted),
		zap.Int("stages_total", sum.StagesTotal),
		zap.Int("stage_errors", len(sum.Errors)),
	)
	return sum
}

func (a *Analyzer) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func validateAnalysis(a model.StageAnalysis) error {
	if strings.TrimSpace(a.Summary) == "" && len(a.KeyFindings) == 0 {
		return eris.New("analysis has neither summary nor key findings")
	}
	return nil
}
