package pipeline

import (
	"cmp"
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/signal-cli/internal/model"
	"github.com/sells-group/signal-cli/internal/pattern"
	"github.com/sells-group/signal-cli/internal/signal"
)

// DefaultTargetConcurrency bounds concurrent pattern extraction.
const DefaultTargetConcurrency = 4

type extractOutcome struct {
	created      int
	strengthened int
	unchanged    int
	usage        model.TokenUsage
	errors       []string
}

// extractSignals asks for patterns per target and upserts each one. Targets
// run concurrently; the engine serializes writes per (organization, target).
// A failing target is reported and does not stop the others.
func (p *Pipeline) extractSignals(ctx context.Context, org *model.Organization, targets []model.IntelligenceTarget, stageResults []model.StageResult) extractOutcome {
	var (
		mu  sync.Mutex
		out extractOutcome
	)
	fail := func(msg string, err error) {
		mu.Lock()
		out.errors = append(out.errors, msg+": "+err.Error())
		mu.Unlock()
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(cmp.Or(p.cfg.Patterns.TargetConcurrency, DefaultTargetConcurrency))
	for i := range targets {
		t := &targets[i]
		g.Go(func() error {
			ext, err := p.extractor.ExtractPatterns(gCtx, t, org, stageResults)
			if ext != nil {
				mu.Lock()
				out.usage.Add(ext.Usage)
				mu.Unlock()
			}
			if err != nil {
				zap.L().Warn("pipeline: pattern extraction failed",
					zap.String("organization_id", org.ID),
					zap.String("target", t.Name),
					zap.Error(err),
				)
				fail("target "+t.Name, err)
				return nil
			}
			if ext.Skipped {
				return nil
			}

			now := p.now().UTC()
			for _, pt := range ext.Patterns {
				res, err := p.engine.Upsert(gCtx, org.ID, t.ID, pattern.ToSignal(pt, org.ID, t, now))
				if err != nil {
					zap.L().Error("pipeline: signal upsert failed",
						zap.String("organization_id", org.ID),
						zap.String("target", t.Name),
						zap.Error(err),
					)
					fail("signal "+pt.Title, err)
					continue
				}
				mu.Lock()
				switch res.Outcome {
				case signal.OutcomeCreated:
					out.created++
				case signal.OutcomeStrengthened:
					out.strengthened++
				case signal.OutcomeUnchanged:
					out.unchanged++
				}
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}
