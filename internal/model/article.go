package model

import "time"

// Article is a scraped news item. Articles are immutable once scraped.
type Article struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	PublishedAt time.Time `json:"published_at"`
	Source      string    `json:"source"`
	SourceTier  int       `json:"source_tier"`
	FullContent string    `json:"full_content,omitempty"`
}

// HasPublishedAt reports whether the article carries a usable publish timestamp.
func (a Article) HasPublishedAt() bool {
	return !a.PublishedAt.IsZero()
}

// ProcessedArticle is a ledger row recording that an article was handled
// for an organization. Keyed by (OrganizationID, ArticleURL).
type ProcessedArticle struct {
	OrganizationID string    `json:"organization_id"`
	ArticleURL     string    `json:"article_url"`
	Stage          string    `json:"stage"`
	ProcessedAt    time.Time `json:"processed_at"`
}
