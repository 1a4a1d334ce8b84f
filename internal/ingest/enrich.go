package ingest

import (
	"context"

	"github.com/sells-group/signal-cli/internal/model"
	"github.com/sells-group/signal-cli/internal/scrape"
)

// Enricher fills in FullContent for accepted articles that arrived without a
// body. Articles that fail to scrape keep an empty body.
type Enricher struct {
	chain       *scrape.Chain
	concurrency int
	maxChars    int
}

// NewEnricher creates an Enricher over a scrape chain.
func NewEnricher(chain *scrape.Chain, concurrency, maxChars int) *Enricher {
	return &Enricher{chain: chain, concurrency: concurrency, maxChars: maxChars}
}

// Enrich returns a copy of articles with bodies fetched where missing, and
// the reader tokens the fetches consumed.
func (e *Enricher) Enrich(ctx context.Context, articles []model.Article) ([]model.Article, int) {
	out := make([]model.Article, len(articles))
	copy(out, articles)

	var urls []string
	for _, a := range out {
		if a.FullContent == "" {
			urls = append(urls, a.URL)
		}
	}
	if e == nil || e.chain == nil || len(urls) == 0 {
		return e.truncateAll(out), 0
	}

	pages := e.chain.ScrapeAll(ctx, urls, e.concurrency)
	tokens := 0
	for i := range out {
		if out[i].FullContent != "" {
			continue
		}
		res, ok := pages[out[i].URL]
		if !ok || res == nil {
			continue
		}
		out[i].FullContent = res.Page.Markdown
		tokens += res.Page.Tokens
	}
	return e.truncateAll(out), tokens
}

func (e *Enricher) truncateAll(articles []model.Article) []model.Article {
	if e == nil || e.maxChars <= 0 {
		return articles
	}
	for i := range articles {
		articles[i].FullContent = truncateRunes(articles[i].FullContent, e.maxChars)
	}
	return articles
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
