package model

import "time"

// SearchResult is one hit returned by a search provider, before
// fetching. URL is the dedupe key across providers.
type SearchResult struct {
	URL         string     `json:"url"`
	Title       string     `json:"title,omitempty"`
	Snippet     string     `json:"snippet,omitempty"`
	Provider    string     `json:"provider"`
	Query       string     `json:"query,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}
