// Package pipeline runs one organization through ingest, routing, stage
// analysis, target tracking, pattern extraction and signal upsert.
package pipeline

import (
	"cmp"
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/signal-cli/internal/cache"
	"github.com/sells-group/signal-cli/internal/config"
	"github.com/sells-group/signal-cli/internal/cost"
	"github.com/sells-group/signal-cli/internal/ingest"
	"github.com/sells-group/signal-cli/internal/model"
	"github.com/sells-group/signal-cli/internal/pattern"
	"github.com/sells-group/signal-cli/internal/reasoner"
	"github.com/sells-group/signal-cli/internal/router"
	"github.com/sells-group/signal-cli/internal/signal"
	"github.com/sells-group/signal-cli/internal/stage"
	"github.com/sells-group/signal-cli/internal/store"
	"github.com/sells-group/signal-cli/internal/target"
)

// Errors surfaced to the trigger. Everything else degrades inside the run.
var (
	ErrInvalidInput         = eris.New("pipeline: invalid input")
	ErrOrganizationNotFound = eris.New("pipeline: organization not found")
)

// DefaultOrgTTL is how long an organization profile stays cached.
const DefaultOrgTTL = 10 * time.Minute

// ArticleCollector fans queries out to the article source.
type ArticleCollector interface {
	Collect(ctx context.Context, queries []ingest.Query) []model.Article
}

// Deps are the collaborators a Pipeline needs. Cache, Enricher and Cost are
// optional.
type Deps struct {
	Store    store.Store
	Cache    cache.Cache
	Reasoner reasoner.Reasoner
	Articles ArticleCollector
	Enricher *ingest.Enricher
	Cost     *cost.Calculator
}

// Pipeline orchestrates a single organization run.
type Pipeline struct {
	cfg       *config.Config
	store     store.Store
	cache     cache.Cache
	articles  ArticleCollector
	enricher  *ingest.Enricher
	dedup     *ingest.Deduplicator
	router    *router.Router
	analyzer  *stage.Analyzer
	tracker   *target.Tracker
	extractor *pattern.Extractor
	engine    *signal.Engine
	costCalc  *cost.Calculator
	orgTTL    time.Duration
	now       func() time.Time
}

// New creates a Pipeline.
func New(cfg *config.Config, deps Deps) *Pipeline {
	c := deps.Cache
	if c == nil {
		c = cache.NewMemory()
	}
	return &Pipeline{
		cfg:       cfg,
		store:     deps.Store,
		cache:     c,
		articles:  deps.Articles,
		enricher:  deps.Enricher,
		dedup:     ingest.NewDeduplicator(deps.Store, cfg.Ingest),
		router:    router.New(cfg.Router),
		analyzer:  stage.NewAnalyzer(deps.Reasoner, deps.Store, cfg.Stages),
		tracker:   target.NewTracker(deps.Store),
		extractor: pattern.NewExtractor(deps.Reasoner, cfg.Patterns),
		engine:    signal.NewEngine(deps.Store, cfg.Signals),
		costCalc:  deps.Cost,
		orgTTL:    cmp.Or(cfg.Cache.OrgTTL, DefaultOrgTTL),
		now:       time.Now,
	}
}

// Engine exposes the signal engine for lifecycle transitions.
func (p *Pipeline) Engine() *signal.Engine { return p.engine }

// Validate checks a request without running it: the payload, the
// organization and the requested targets.
func (p *Pipeline) Validate(ctx context.Context, req model.RunRequest) error {
	_, _, err := p.prepare(ctx, req)
	return err
}

// Run executes the pipeline for req.OrganizationID. Only invalid input and
// an unresolvable organization return an error before the run starts; later
// failures are reported in the result. A cancelled run returns its partial
// result together with the cancellation error.
func (p *Pipeline) Run(ctx context.Context, req model.RunRequest) (*model.RunResult, error) {
	start := time.Now()
	org, targets, err := p.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	runID := cmp.Or(req.RunID, uuid.NewString())
	log := zap.L().With(zap.String("organization_id", org.ID), zap.String("run_id", runID))
	log.Info("pipeline: starting run", zap.Int("targets", len(targets)))

	result := &model.RunResult{
		RunID:          runID,
		OrganizationID: org.ID,
		StagesTotal:    len(model.AllStages()),
	}
	if err := p.store.CreateRun(ctx, &model.Run{ID: runID, OrganizationID: org.ID, Status: model.RunStatusQueued}); err != nil {
		log.Warn("pipeline: failed to create run record", zap.Error(err))
	}

	setStatus := func(status model.RunStatus) {
		if err := p.store.UpdateRunStatus(ctx, runID, status); err != nil {
			log.Debug("pipeline: failed to update status", zap.String("status", string(status)), zap.Error(err))
		}
	}
	var usage model.TokenUsage
	jinaTokens := 0
	finish := func(runErr error) (*model.RunResult, error) {
		return p.finish(ctx, result, usage, jinaTokens, start, runErr)
	}

	// Ingest.
	setStatus(model.RunStatusIngesting)
	window := cmp.Or(req.RecencyWindow, p.cfg.Ingest.RecencyWindow, ingest.DefaultRecencyWindow)
	var articles []model.Article
	trackPhase(log, "ingest", func() {
		queries := ingest.BuildQueries(org, targets, window, p.cfg.Ingest.Sources, p.cfg.Ingest.MaxQueries)
		candidates := p.articles.Collect(ctx, queries)
		ing, ingErr := p.dedup.Ingest(ctx, org.ID, candidates, window)
		if ingErr != nil {
			result.Errors = append(result.Errors, ingErr.Error())
			return
		}
		articles, jinaTokens = p.enricher.Enrich(ctx, ing.Articles)
		result.ArticlesIngested = len(articles)
		result.ArticlesSkipped = ing.Skipped
	})
	if ctx.Err() != nil {
		return finish(ctx.Err())
	}

	// Route.
	findings := make([]model.Finding, len(articles))
	for i, a := range articles {
		findings[i] = router.ScoreRelevance(a, org, targets)
	}
	routed := p.router.Route(findings)

	// Stage analysis.
	setStatus(model.RunStatusAnalyzing)
	var summary *stage.Summary
	trackPhase(log, "analyze", func() {
		summary = p.analyzer.AnalyzeAll(ctx, org, routed)
	})
	usage.Add(summary.Usage)
	result.StagesCompleted = summary.StagesCompleted
	result.StageErrors = summary.Errors
	if ctx.Err() != nil {
		return finish(ctx.Err())
	}
	if analysisProduced(summary) {
		p.commit(ctx, org.ID, findings, articles)
	} else if len(articles) > 0 {
		log.Warn("pipeline: no stage produced an analysis, leaving articles unrecorded")
	}

	// Targets and signals.
	targets = p.tracker.RecordAll(ctx, targets, findings)

	setStatus(model.RunStatusExtracting)
	var out extractOutcome
	trackPhase(log, "extract", func() {
		out = p.extractSignals(ctx, org, targets, summary.Results)
	})
	usage.Add(out.usage)
	result.SignalsCreated = out.created
	result.SignalsStrengthened = out.strengthened
	result.SignalsUnchanged = out.unchanged
	result.Errors = append(result.Errors, out.errors...)

	return finish(ctx.Err())
}

// prepare validates req and resolves its organization and targets.
func (p *Pipeline) prepare(ctx context.Context, req model.RunRequest) (*model.Organization, []model.IntelligenceTarget, error) {
	if strings.TrimSpace(req.OrganizationID) == "" {
		return nil, nil, eris.Wrap(ErrInvalidInput, "organization_id is required")
	}
	if req.RecencyWindow < 0 {
		return nil, nil, eris.Wrapf(ErrInvalidInput, "recency window %s is negative", req.RecencyWindow)
	}
	for _, name := range req.Targets {
		if strings.TrimSpace(name) == "" {
			return nil, nil, eris.Wrap(ErrInvalidInput, "target names must not be blank")
		}
	}

	org, err := p.Organization(ctx, req.OrganizationID)
	if err != nil {
		return nil, nil, err
	}

	targets, err := p.store.ListTargets(ctx, store.TargetFilter{
		OrganizationID: org.ID,
		ActiveOnly:     true,
		Names:          req.Targets,
	})
	if err != nil {
		return nil, nil, eris.Wrap(err, "pipeline: list targets")
	}
	if len(req.Targets) > 0 && len(targets) == 0 {
		return nil, nil, eris.Wrapf(ErrInvalidInput, "targets %v match no active target", req.Targets)
	}
	return org, targets, nil
}

// finish stamps duration and cost, persists the run record best-effort and
// maps a context error to a cancelled run.
func (p *Pipeline) finish(ctx context.Context, result *model.RunResult, usage model.TokenUsage, jinaTokens int, start time.Time, runErr error) (*model.RunResult, error) {
	result.DurationMs = time.Since(start).Milliseconds()
	result.TokenUsage = usage
	result.EstimatedCostUSD = usage.Cost + p.costCalc.Jina(jinaTokens)

	status := model.RunStatusComplete
	result.Success = true
	if runErr != nil {
		status = model.RunStatusCancelled
		result.Success = false
		result.Errors = append(result.Errors, "run cancelled: "+runErr.Error())
	}

	persistCtx := context.WithoutCancel(ctx)
	if err := p.store.UpdateRunResult(persistCtx, result.RunID, status, result); err != nil {
		zap.L().Warn("pipeline: failed to persist run result", zap.String("run_id", result.RunID), zap.Error(err))
	}

	zap.L().Info("pipeline: run finished",
		zap.String("organization_id", result.OrganizationID),
		zap.String("run_id", result.RunID),
		zap.String("status", string(status)),
		zap.Int("articles_ingested", result.ArticlesIngested),
		zap.Int("signals_created", result.SignalsCreated),
		zap.Int("signals_strengthened", result.SignalsStrengthened),
		zap.Int64("duration_ms", result.DurationMs),
		zap.Float64("estimated_cost_usd", result.EstimatedCostUSD),
	)
	if runErr != nil {
		return result, eris.Wrap(runErr, "pipeline: run cancelled")
	}
	return result, nil
}

// commit records each article under the stage it scored highest for.
func (p *Pipeline) commit(ctx context.Context, orgID string, findings []model.Finding, articles []model.Article) {
	byStage := make(map[model.Stage][]model.Article)
	for i, f := range findings {
		s := topStage(f)
		byStage[s] = append(byStage[s], articles[i])
	}
	for _, s := range model.AllStages() {
		p.dedup.Commit(ctx, orgID, string(s), byStage[s])
	}
}

func topStage(f model.Finding) model.Stage {
	best := model.AllStages()[0]
	for _, s := range model.AllStages() {
		if f.Relevance[s] > f.Relevance[best] {
			best = s
		}
	}
	return best
}

// analysisProduced reports whether the run's findings were analyzed by at
// least one stage, live or from fallback. A run with nothing to analyze
// counts as produced.
func analysisProduced(sum *stage.Summary) bool {
	attempted := false
	for _, r := range sum.Results {
		if r.Skipped {
			continue
		}
		attempted = true
		if r.Success {
			return true
		}
	}
	return !attempted
}

// trackPhase times a phase and logs its duration.
func trackPhase(log *zap.Logger, name string, fn func()) {
	start := time.Now()
	fn()
	log.Info("pipeline: phase complete",
		zap.String("phase", name),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
}
