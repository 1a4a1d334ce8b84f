// Package scrape fetches full article bodies through a chain of content
// backends, falling through to the next backend when one fails or returns
// a blocked or empty page.
package scrape

import "context"

// Page is the readable content of one article URL.
type Page struct {
	URL      string
	Title    string
	Markdown string
	// Tokens is the billable reader usage, when the backend reports it.
	Tokens int
}

// Result holds a scraped page with the backend that produced it.
type Result struct {
	Page   Page
	Source string // "jina", "firecrawl", "local_http"
}

// Scraper fetches a single URL and returns its content.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*Result, error)
	Name() string
	Supports(url string) bool
}
