// Package search fans queries out to web search providers and merges
// their results into one deduplicated, deterministically ordered list.
package search

import (
	"context"

	"github.com/civicgraph/orgscope/internal/model"
)

// Provider is a single search backend.
type Provider interface {
	// Name identifies the provider in results and logs.
	Name() string
	// Search runs one query and returns raw hits.
	Search(ctx context.Context, query string) ([]model.SearchResult, error)
}
