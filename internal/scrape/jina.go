package scrape

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/signal-cli/internal/resilience"
	"github.com/sells-group/signal-cli/pkg/jina"
)

// JinaAdapter wraps Jina Reader as a Scraper. Blocked or near-empty bodies
// count as failures so the chain falls through to Firecrawl.
type JinaAdapter struct {
	client  jina.Client
	breaker *resilience.CircuitBreaker
}

// NewJinaAdapter creates a JinaAdapter. Three consecutive failures open the
// breaker for a minute, during which Supports reports false.
func NewJinaAdapter(client jina.Client) *JinaAdapter {
	return &JinaAdapter{
		client: client,
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			FailureThreshold: 3,
			ResetTimeout:     time.Minute,
		}),
	}
}

func (j *JinaAdapter) Name() string { return "jina" }

// Supports returns false while the breaker is open.
func (j *JinaAdapter) Supports(_ string) bool {
	return j.breaker.State() != resilience.CircuitOpen
}

// Scrape fetches a URL via Jina Reader.
func (j *JinaAdapter) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	return resilience.ExecuteVal(ctx, j.breaker, func(ctx context.Context) (*Result, error) {
		resp, err := j.client.Read(ctx, targetURL)
		if err != nil {
			return nil, err
		}
		if resp.Code != 0 && resp.Code != 200 {
			return nil, eris.Errorf("jina: reader code %d", resp.Code)
		}
		if LooksBlocked(resp.Data.Content) {
			return nil, eris.New("jina: blocked or empty body")
		}
		url := resp.Data.URL
		if url == "" {
			url = targetURL
		}
		return &Result{
			Page: Page{
				URL:      url,
				Title:    resp.Data.Title,
				Markdown: resp.Data.Content,
				Tokens:   resp.Data.Usage.Tokens,
			},
			Source: "jina",
		}, nil
	})
}
