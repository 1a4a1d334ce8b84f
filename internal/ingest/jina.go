package ingest

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/signal-cli/internal/model"
	"github.com/sells-group/signal-cli/internal/resilience"
	"github.com/sells-group/signal-cli/internal/scrape"
	"github.com/sells-group/signal-cli/pkg/jina"
)

// minInlineContent is the shortest search body kept as full content.
const minInlineContent = 500

// JinaSource searches news through Jina Search.
type JinaSource struct {
	client    jina.Client
	count     int
	preferred map[string]bool
}

// NewJinaSource creates a JinaSource. Articles from preferred domains are
// tier 1, everything else tier 2.
func NewJinaSource(client jina.Client, preferred []string) *JinaSource {
	p := make(map[string]bool, len(preferred))
	for _, d := range preferred {
		p[strings.TrimPrefix(strings.ToLower(d), "www.")] = true
	}
	return &JinaSource{client: client, count: 20, preferred: p}
}

// Search runs q.Text restricted to q.Sources when any are given.
func (j *JinaSource) Search(ctx context.Context, q Query) ([]model.Article, error) {
	opts := []jina.SearchOption{jina.WithCount(j.count)}
	if len(q.Sources) > 0 {
		opts = append(opts, jina.WithSiteFilter(q.Sources...))
	}
	resp, err := j.client.Search(ctx, q.Text, opts...)
	if err != nil {
		var se *jina.StatusError
		if errors.As(err, &se) {
			if se.StatusCode == http.StatusTooManyRequests {
				return nil, &RateLimitedError{Err: err}
			}
			if resilience.IsTransientHTTPStatus(se.StatusCode) {
				return nil, resilience.NewTransientError(err, se.StatusCode)
			}
		}
		return nil, eris.Wrapf(err, "ingest: jina search %q", q.Text)
	}

	out := make([]model.Article, 0, len(resp.Data))
	for _, r := range resp.Data {
		if r.URL == "" {
			continue
		}
		host := hostOf(r.URL)
		a := model.Article{
			URL:         r.URL,
			Title:       scrape.PlainText(r.Title),
			Description: scrape.PlainText(r.Description),
			PublishedAt: r.Published(),
			Source:      host,
			SourceTier:  2,
		}
		if j.preferred[host] {
			a.SourceTier = 1
		}
		if len(r.Content) >= minInlineContent {
			a.FullContent = r.Content
		}
		out = append(out, a)
	}
	return out, nil
}
