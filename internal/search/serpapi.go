package search

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/civicgraph/orgscope/internal/model"
	"github.com/civicgraph/orgscope/pkg/serpapi"
)

// SerpAPIProvider searches Google via SerpAPI. Extra search options
// (locale, for instance) are applied to every query.
type SerpAPIProvider struct {
	client  serpapi.Client
	results int
	opts    []serpapi.SearchOption
}

// NewSerpAPIProvider wraps a SerpAPI client as a Provider.
func NewSerpAPIProvider(client serpapi.Client, results int, opts ...serpapi.SearchOption) *SerpAPIProvider {
	if results <= 0 {
		results = 10
	}
	return &SerpAPIProvider{client: client, results: results, opts: opts}
}

func (p *SerpAPIProvider) Name() string { return "serpapi" }

func (p *SerpAPIProvider) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	opts := append([]serpapi.SearchOption{serpapi.WithNum(p.results)}, p.opts...)
	resp, err := p.client.Search(ctx, query, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "search: serpapi query")
	}

	out := make([]model.SearchResult, 0, len(resp.OrganicResults)+len(resp.NewsResults))
	for _, r := range resp.OrganicResults {
		if r.Link == "" {
			continue
		}
		out = append(out, model.SearchResult{
			URL:         r.Link,
			Title:       r.Title,
			Snippet:     r.Snippet,
			Provider:    p.Name(),
			Query:       query,
			PublishedAt: parseResultDate(r.Date),
		})
	}
	for _, r := range resp.NewsResults {
		if r.Link == "" {
			continue
		}
		out = append(out, model.SearchResult{
			URL:         r.Link,
			Title:       r.Title,
			Snippet:     r.Snippet,
			Provider:    p.Name(),
			Query:       query,
			PublishedAt: parseResultDate(r.Date),
		})
	}
	return out, nil
}

// SerpAPINewsProvider searches the Google News vertical via SerpAPI.
// It backs the dedicated news feed when the RSS feed is not configured.
type SerpAPINewsProvider struct {
	client  serpapi.Client
	results int
	opts    []serpapi.SearchOption
}

// NewSerpAPINewsProvider wraps a SerpAPI client as a news-only Provider.
func NewSerpAPINewsProvider(client serpapi.Client, results int, opts ...serpapi.SearchOption) *SerpAPINewsProvider {
	if results <= 0 {
		results = 10
	}
	return &SerpAPINewsProvider{client: client, results: results, opts: opts}
}

func (p *SerpAPINewsProvider) Name() string { return "serpapi-news" }

func (p *SerpAPINewsProvider) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	opts := append([]serpapi.SearchOption{serpapi.WithNum(p.results), serpapi.WithNews()}, p.opts...)
	resp, err := p.client.Search(ctx, query, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "search: serpapi news query")
	}

	out := make([]model.SearchResult, 0, len(resp.NewsResults))
	for _, r := range resp.NewsResults {
		if r.Link == "" {
			continue
		}
		out = append(out, model.SearchResult{
			URL:         r.Link,
			Title:       r.Title,
			Snippet:     r.Snippet,
			Provider:    p.Name(),
			Query:       query,
			PublishedAt: parseResultDate(r.Date),
		})
	}
	return out, nil
}

// parseResultDate parses the loose date strings SerpAPI returns.
// Relative dates ("2 days ago") are not resolved.
func parseResultDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{"Jan 2, 2006", "2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
