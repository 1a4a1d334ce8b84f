package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/signal-cli/internal/cache"
	"github.com/sells-group/signal-cli/internal/cost"
	"github.com/sells-group/signal-cli/internal/ingest"
	"github.com/sells-group/signal-cli/internal/pipeline"
	"github.com/sells-group/signal-cli/internal/reasoner"
	"github.com/sells-group/signal-cli/internal/scrape"
	"github.com/sells-group/signal-cli/internal/store"
	"github.com/sells-group/signal-cli/pkg/firecrawl"
	"github.com/sells-group/signal-cli/pkg/jina"
)

// pipelineEnv holds the store, cache and pipeline needed by the
// run/serve/worker commands.
type pipelineEnv struct {
	Store    store.Store
	Cache    cache.Cache
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Cache != nil {
		_ = pe.Cache.Close()
	}
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline validates config for mode, opens the store and cache, builds
// the API clients and assembles the Pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	c, err := cache.New(cfg.Cache)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	calc := cost.NewCalculator(cfg.Pricing)
	rsn, err := reasoner.New(cfg, calc)
	if err != nil {
		_ = c.Close()
		_ = st.Close()
		return nil, err
	}

	jinaOpts := []jina.Option{jina.WithBaseURL(cfg.Jina.BaseURL)}
	if cfg.Jina.SearchBaseURL != "" {
		jinaOpts = append(jinaOpts, jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL))
	}
	jinaClient := jina.NewClient(cfg.Jina.Key, jinaOpts...)
	searcher := ingest.NewSearcher(ingest.NewJinaSource(jinaClient, cfg.Ingest.Sources), cfg.Ingest)

	var enricher *ingest.Enricher
	if cfg.Ingest.EnrichContent {
		// Content chain: Jina reader first, Firecrawl when configured, then a
		// plain HTTP fetch.
		scrapers := []scrape.Scraper{scrape.NewJinaAdapter(jinaClient)}
		if cfg.Firecrawl.Key != "" {
			scrapers = append(scrapers, scrape.NewFirecrawlAdapter(
				firecrawl.NewClient(cfg.Firecrawl.Key, firecrawl.WithBaseURL(cfg.Firecrawl.BaseURL)),
			))
		} else {
			zap.L().Debug("SIGNAL_FIRECRAWL_KEY not set, firecrawl fallback disabled")
		}
		scrapers = append(scrapers, scrape.NewLocalScraper())
		chain := scrape.NewChain(scrape.NewPathMatcher(nil), scrapers...)
		enricher = ingest.NewEnricher(chain, cfg.Ingest.EnrichConcurrency, cfg.Ingest.MaxContentChars)
	}

	p := pipeline.New(cfg, pipeline.Deps{
		Store:    st,
		Cache:    c,
		Reasoner: rsn,
		Articles: searcher,
		Enricher: enricher,
		Cost:     calc,
	})

	zap.L().Info("pipeline initialized",
		zap.String("store", cfg.Store.Driver),
		zap.String("cache", cfg.Cache.Backend),
		zap.String("reasoner", cfg.Reasoner.Provider),
		zap.Bool("enrich_content", enricher != nil),
	)

	return &pipelineEnv{Store: st, Cache: c, Pipeline: p}, nil
}
