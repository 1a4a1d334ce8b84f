package scrape

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/signal-cli/pkg/firecrawl"
)

// FirecrawlAdapter scrapes the main content of a page as HTML via Firecrawl
// and converts it to markdown locally.
type FirecrawlAdapter struct {
	client firecrawl.Client
}

// NewFirecrawlAdapter creates a FirecrawlAdapter from a Firecrawl client.
func NewFirecrawlAdapter(client firecrawl.Client) *FirecrawlAdapter {
	return &FirecrawlAdapter{client: client}
}

// Name implements Scraper.
func (f *FirecrawlAdapter) Name() string { return "firecrawl" }

// Supports implements Scraper. Firecrawl attempts any URL.
func (f *FirecrawlAdapter) Supports(_ string) bool { return true }

// Scrape fetches a single URL via Firecrawl's scrape API.
func (f *FirecrawlAdapter) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	resp, err := f.client.Scrape(ctx, firecrawl.ScrapeRequest{
		URL:             targetURL,
		Formats:         []string{"html"},
		OnlyMainContent: true,
	})
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, eris.New("firecrawl: scrape not successful")
	}

	text := resp.Data.Markdown
	if resp.Data.HTML != "" {
		if text, err = HTMLToMarkdown(resp.Data.HTML); err != nil {
			return nil, err
		}
	}
	if LooksBlocked(text) {
		return nil, eris.New("firecrawl: blocked or empty body")
	}

	return &Result{
		Page:   Page{URL: targetURL, Title: resp.Data.Metadata.Title, Markdown: text},
		Source: "firecrawl",
	}, nil
}
