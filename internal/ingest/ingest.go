// Package ingest turns candidate articles from search into the new,
// deduplicated set a pipeline run analyzes, and records what was processed.
package ingest

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/signal-cli/internal/config"
	"github.com/sells-group/signal-cli/internal/model"
	"github.com/sells-group/signal-cli/internal/monitoring"
)

// Defaults used when config leaves a knob unset.
const (
	DefaultRecencyWindow = 48 * time.Hour
	DefaultPerSourceCap  = 15
	DefaultDedupWindow   = 7 * 24 * time.Hour
	DefaultClockSkew     = time.Hour
)

// Ledger is the slice of the store that records processed articles.
type Ledger interface {
	FindProcessed(ctx context.Context, orgID string, urls []string, since time.Time) (map[string]bool, error)
	RecordProcessed(ctx context.Context, rows []model.ProcessedArticle) error
}

// Result is the outcome of one Ingest call.
type Result struct {
	Articles          []model.Article `json:"articles"`
	Skipped           int             `json:"skipped"`
	RejectedUndated   int             `json:"rejected_undated"`
	RejectedStale     int             `json:"rejected_stale"`
	RejectedSourceCap int             `json:"rejected_source_cap"`
	RejectedInvalid   int             `json:"rejected_invalid"`
	Duplicates        int             `json:"duplicates"`
}

// Deduplicator filters candidates against the recency window, per-source cap
// and the processed-article ledger.
type Deduplicator struct {
	ledger        Ledger
	recencyWindow time.Duration
	perSourceCap  int
	dedupWindow   time.Duration
	clockSkew     time.Duration
	now           func() time.Time
}

// NewDeduplicator creates a Deduplicator from ingest config.
func NewDeduplicator(ledger Ledger, cfg config.IngestConfig) *Deduplicator {
	d := &Deduplicator{
		ledger:        ledger,
		recencyWindow: cmp.Or(cfg.RecencyWindow, DefaultRecencyWindow),
		perSourceCap:  cmp.Or(cfg.PerSourceCap, DefaultPerSourceCap),
		dedupWindow:   cmp.Or(cfg.DedupWindow, DefaultDedupWindow),
		clockSkew:     cmp.Or(cfg.ClockSkew, DefaultClockSkew),
		now:           time.Now,
	}
	return d
}

// Ingest returns the candidates that are new for orgID. A window of zero uses
// the configured recency window. Ingest never writes to the ledger; call
// Commit once the articles have been processed.
func (d *Deduplicator) Ingest(ctx context.Context, orgID string, candidates []model.Article, window time.Duration) (*Result, error) {
	if orgID == "" {
		return nil, eris.New("ingest: organization id is required")
	}
	if window <= 0 {
		window = d.recencyWindow
	}

	now := d.now()
	cutoff := now.Add(-window)
	res := &Result{}

	seen := make(map[string]bool, len(candidates))
	accepted := make([]model.Article, 0, len(candidates))
	for _, a := range candidates {
		canonical, ok := CanonicalURL(a.URL)
		if !ok {
			res.RejectedInvalid++
			continue
		}
		if !a.HasPublishedAt() || a.PublishedAt.After(now.Add(d.clockSkew)) {
			res.RejectedUndated++
			continue
		}
		if a.PublishedAt.Before(cutoff) {
			res.RejectedStale++
			continue
		}
		if seen[canonical] {
			res.Duplicates++
			continue
		}
		seen[canonical] = true
		a.URL = canonical
		accepted = append(accepted, a)
	}

	// Newest first; SortStableFunc keeps input order among equal timestamps.
	slices.SortStableFunc(accepted, func(x, y model.Article) int {
		return y.PublishedAt.Compare(x.PublishedAt)
	})

	perSource := make(map[string]int)
	balanced := accepted[:0]
	for _, a := range accepted {
		key := sourceKey(a)
		if perSource[key] >= d.perSourceCap {
			res.RejectedSourceCap++
			continue
		}
		perSource[key]++
		balanced = append(balanced, a)
	}

	processed := d.lookup(ctx, orgID, balanced, now)
	for _, a := range balanced {
		if processed[a.URL] {
			res.Skipped++
			continue
		}
		res.Articles = append(res.Articles, a)
	}

	c := monitoring.Global()
	c.ArticlesIngested.Add(int64(len(res.Articles)))
	c.ArticlesSkipped.Add(int64(res.Skipped))

	zap.L().Info("ingest: candidates filtered",
		zap.String("organization_id", orgID),
		zap.Int("candidates", len(candidates)),
		zap.Int("accepted", len(res.Articles)),
		zap.Int("skipped", res.Skipped),
		zap.Int("rejected_undated", res.RejectedUndated),
		zap.Int("rejected_stale", res.RejectedStale),
		zap.Int("rejected_source_cap", res.RejectedSourceCap),
	)
	return res, nil
}

// lookup asks the ledger which articles were seen within the dedup window.
// A failed lookup treats everything as unseen.
func (d *Deduplicator) lookup(ctx context.Context, orgID string, articles []model.Article, now time.Time) map[string]bool {
	if len(articles) == 0 || d.ledger == nil {
		return nil
	}
	urls := make([]string, len(articles))
	for i, a := range articles {
		urls[i] = a.URL
	}
	found, err := d.ledger.FindProcessed(ctx, orgID, urls, now.Add(-d.dedupWindow))
	if err != nil {
		monitoring.Global().LedgerLookupFailures.Add(1)
		zap.L().Warn("ingest: ledger lookup failed, treating all articles as new",
			zap.String("organization_id", orgID),
			zap.Error(err),
		)
		return nil
	}
	return found
}

// Commit records articles as processed for orgID. Failures are logged and
// counted, never returned.
func (d *Deduplicator) Commit(ctx context.Context, orgID, stage string, articles []model.Article) {
	if len(articles) == 0 || d.ledger == nil {
		return
	}
	now := d.now().UTC()
	rows := make([]model.ProcessedArticle, len(articles))
	for i, a := range articles {
		rows[i] = model.ProcessedArticle{
			OrganizationID: orgID,
			ArticleURL:     a.URL,
			Stage:          stage,
			ProcessedAt:    now,
		}
	}
	if err := d.ledger.RecordProcessed(ctx, rows); err != nil {
		monitoring.Global().LedgerWriteFailures.Add(1)
		zap.L().Error("ingest: ledger write failed",
			zap.String("organization_id", orgID),
			zap.Int("articles", len(rows)),
			zap.Error(err),
		)
	}
}

func sourceKey(a model.Article) string {
	if a.Source != "" {
		return a.Source
	}
	return hostOf(a.URL)
}
