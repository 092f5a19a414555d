package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rotisserie/eris"

	"github.com/civicgraph/orgscope/internal/model"
)

const googleNewsBase = "https://news.google.com/rss/search"

// GoogleNewsProvider pulls recent coverage from the Google News RSS
// search feed. No API key required.
type GoogleNewsProvider struct {
	http    *http.Client
	baseURL string
	limit   int
}

// GoogleNewsOption configures the provider.
type GoogleNewsOption func(*GoogleNewsProvider)

// WithGoogleNewsBaseURL overrides the feed URL (for testing).
func WithGoogleNewsBaseURL(u string) GoogleNewsOption {
	return func(p *GoogleNewsProvider) { p.baseURL = u }
}

// WithGoogleNewsHTTPClient overrides the HTTP client.
func WithGoogleNewsHTTPClient(hc *http.Client) GoogleNewsOption {
	return func(p *GoogleNewsProvider) { p.http = hc }
}

// NewGoogleNewsProvider creates a Google News RSS provider returning at
// most limit items per query.
func NewGoogleNewsProvider(limit int, opts ...GoogleNewsOption) *GoogleNewsProvider {
	if limit <= 0 {
		limit = 10
	}
	p := &GoogleNewsProvider{
		http:    &http.Client{Timeout: 15 * time.Second},
		baseURL: googleNewsBase,
		limit:   limit,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *GoogleNewsProvider) Name() string { return "googlenews" }

func (p *GoogleNewsProvider) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	feedURL := fmt.Sprintf("%s?q=%s&hl=en-US&gl=US&ceid=US:en", p.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "search: create news request")
	}
	req.Header.Set("Accept", "application/rss+xml, application/xml;q=0.9, text/xml;q=0.8")

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "search: fetch news feed")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("search: news feed status %d", resp.StatusCode)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "search: parse news feed")
	}

	out := make([]model.SearchResult, 0, p.limit)
	for _, item := range feed.Items {
		if len(out) >= p.limit {
			break
		}
		link := strings.TrimSpace(item.Link)
		if link == "" {
			continue
		}
		var published *time.Time
		if item.PublishedParsed != nil {
			published = item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			published = item.UpdatedParsed
		}
		out = append(out, model.SearchResult{
			URL:         link,
			Title:       strings.TrimSpace(item.Title),
			Snippet:     strings.TrimSpace(item.Description),
			Provider:    p.Name(),
			Query:       query,
			PublishedAt: published,
		})
	}
	return out, nil
}
