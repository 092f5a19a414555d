package search

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/civicgraph/orgscope/internal/model"
)

// Client merges results from multiple providers.
type Client interface {
	// Search runs each query on each provider and returns a deduplicated
	// list in deterministic order.
	Search(ctx context.Context, queries []string) ([]model.SearchResult, error)
}

// Options configures the fan-out client.
type Options struct {
	// MaxResults caps the merged result list. 0 means no cap.
	MaxResults int
	// ProviderTimeout bounds each individual provider call.
	ProviderTimeout time.Duration
	// RatePerSec throttles calls per provider. 0 disables throttling.
	RatePerSec float64
	// Concurrency bounds in-flight provider calls. Default 4.
	Concurrency int
}

type multiClient struct {
	providers []Provider
	limiters  map[string]*rate.Limiter
	opts      Options
}

// NewClient creates a fan-out client over providers. Provider order is
// fixed and determines merged result order.
func NewClient(providers []Provider, opts Options) Client {
	if opts.ProviderTimeout <= 0 {
		opts.ProviderTimeout = 15 * time.Second
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	limiters := make(map[string]*rate.Limiter, len(providers))
	for _, p := range providers {
		if opts.RatePerSec > 0 {
			limiters[p.Name()] = rate.NewLimiter(rate.Limit(opts.RatePerSec), 1)
		}
	}
	return &multiClient{providers: providers, limiters: limiters, opts: opts}
}

// Search fans (provider, query) pairs out concurrently, then flattens
// in provider order, query order, and provider-reported rank, so the
// same inputs always produce the same output list. A failing provider
// contributes nothing; the call errors only when every pair failed.
func (c *multiClient) Search(ctx context.Context, queries []string) ([]model.SearchResult, error) {
	if len(c.providers) == 0 || len(queries) == 0 {
		return nil, nil
	}

	type cell struct {
		results []model.SearchResult
		err     error
	}
	grid := make([][]cell, len(c.providers))
	for i := range grid {
		grid[i] = make([]cell, len(queries))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)
	for pi, p := range c.providers {
		for qi, q := range queries {
			pi, qi, p, q := pi, qi, p, q
			g.Go(func() error {
				if lim := c.limiters[p.Name()]; lim != nil {
					if err := lim.Wait(gctx); err != nil {
						grid[pi][qi].err = err
						return nil
					}
				}
				callCtx, cancel := context.WithTimeout(gctx, c.opts.ProviderTimeout)
				defer cancel()

				results, err := p.Search(callCtx, q)
				if err != nil {
					zap.L().Warn("search provider failed",
						zap.String("provider", p.Name()),
						zap.String("query", q),
						zap.Error(err),
					)
					grid[pi][qi].err = err
					return nil
				}
				grid[pi][qi].results = results
				return nil
			})
		}
	}
	_ = g.Wait()

	var merged []model.SearchResult
	seen := make(map[string]bool)
	failures := 0
	for pi := range c.providers {
		for qi := range queries {
			if grid[pi][qi].err != nil {
				failures++
				continue
			}
			for _, r := range grid[pi][qi].results {
				key := model.NormalizeURL(r.URL)
				if key == "" || seen[key] {
					continue
				}
				seen[key] = true
				merged = append(merged, r)
			}
		}
	}

	if failures == len(c.providers)*len(queries) {
		return nil, eris.New("search: all providers failed")
	}
	if c.opts.MaxResults > 0 && len(merged) > c.opts.MaxResults {
		merged = merged[:c.opts.MaxResults]
	}
	return merged, nil
}
