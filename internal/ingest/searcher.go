package ingest

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/signal-cli/internal/config"
	"github.com/sells-group/signal-cli/internal/model"
	"github.com/sells-group/signal-cli/internal/resilience"
)

// Query is one request to an article source.
type Query struct {
	Text       string
	TimeWindow time.Duration
	Sources    []string
}

// Source returns candidate articles for a query.
type Source interface {
	Search(ctx context.Context, q Query) ([]model.Article, error)
}

// RateLimitedError marks a source reply that asked the caller to back off.
type RateLimitedError struct {
	Err error
}

func (e *RateLimitedError) Error() string { return e.Err.Error() }

func (e *RateLimitedError) Unwrap() error { return e.Err }

// Searcher fans queries out to a Source with bounded concurrency, a shared
// rate limit, a per-query timeout and retries on transient failures.
type Searcher struct {
	source      Source
	limiter     *AdaptiveLimiter
	concurrency int
	timeout     time.Duration
	retry       resilience.RetryConfig
}

// NewSearcher creates a Searcher from ingest config.
func NewSearcher(source Source, cfg config.IngestConfig) *Searcher {
	concurrency := cfg.QueryConcurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	timeout := time.Duration(cfg.QueryTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("search", "query")
	return &Searcher{
		source:      source,
		limiter:     NewAdaptiveLimiter(cfg.RateLimitPerSec, concurrency),
		concurrency: concurrency,
		timeout:     timeout,
		retry:       retry,
	}
}

// Collect runs every query and concatenates the results in query order. A
// failed query is logged and contributes nothing.
func (s *Searcher) Collect(ctx context.Context, queries []Query) []model.Article {
	results := make([][]model.Article, len(queries))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, q := range queries {
		g.Go(func() error {
			articles, err := s.search(gCtx, q)
			if err != nil {
				zap.L().Warn("ingest: query failed",
					zap.String("query", q.Text),
					zap.Error(err),
				)
				return nil
			}
			results[i] = articles
			return nil
		})
	}
	_ = g.Wait()

	var out []model.Article
	for _, r := range results {
		out = append(out, r...)
	}
	return out
}

func (s *Searcher) search(ctx context.Context, q Query) ([]model.Article, error) {
	return resilience.DoVal(ctx, s.retry, func(ctx context.Context) ([]model.Article, error) {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		qctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		articles, err := s.source.Search(qctx, q)
		var rl *RateLimitedError
		switch {
		case errors.As(err, &rl):
			s.limiter.OnRateLimit()
			return nil, resilience.NewTransientError(err, 429)
		case err != nil:
			return nil, err
		}
		s.limiter.OnSuccess()
		return articles, nil
	})
}
