package search

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/civicgraph/orgscope/internal/model"
	"github.com/civicgraph/orgscope/pkg/jina"
)

// JinaProvider searches the web via Jina AI Search.
type JinaProvider struct {
	client jina.Client
}

// NewJinaProvider wraps a Jina client as a Provider.
func NewJinaProvider(client jina.Client) *JinaProvider {
	return &JinaProvider{client: client}
}

func (p *JinaProvider) Name() string { return "jina" }

func (p *JinaProvider) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	resp, err := p.client.Search(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "search: jina query")
	}

	out := make([]model.SearchResult, 0, len(resp.Data))
	for _, r := range resp.Data {
		if r.URL == "" {
			continue
		}
		snippet := r.Description
		if snippet == "" {
			snippet = r.Content
		}
		out = append(out, model.SearchResult{
			URL:      r.URL,
			Title:    r.Title,
			Snippet:  snippet,
			Provider: p.Name(),
			Query:    query,
		})
	}
	return out, nil
}
