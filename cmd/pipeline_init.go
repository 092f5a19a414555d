package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/civicgraph/orgscope/internal/extract"
	"github.com/civicgraph/orgscope/internal/fetch"
	"github.com/civicgraph/orgscope/internal/pipeline"
	"github.com/civicgraph/orgscope/internal/reconcile"
	"github.com/civicgraph/orgscope/internal/search"
	"github.com/civicgraph/orgscope/internal/store"
	anthropicpkg "github.com/civicgraph/orgscope/pkg/anthropic"
	"github.com/civicgraph/orgscope/pkg/jina"
	"github.com/civicgraph/orgscope/pkg/serpapi"
)

// pipelineEnv holds the initialized store and pipeline used by the
// research and serve commands.
type pipelineEnv struct {
	Store    store.ProfileStore
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline sets up the store, search providers, fetcher, extractor,
// and reconciler. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("anthropic.key required (ORGSCOPE_ANTHROPIC_KEY)")
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	var serpClient serpapi.Client
	if cfg.SerpAPI.Key != "" {
		serpClient = serpapi.NewClient(cfg.SerpAPI.Key, serpapi.WithBaseURL(cfg.SerpAPI.BaseURL))
	}
	var jinaClient jina.Client
	if cfg.Jina.Key != "" {
		jinaClient = jina.NewClient(cfg.Jina.Key,
			jina.WithBaseURL(cfg.Jina.BaseURL),
			jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL),
		)
	}

	providers, err := initProviders(serpClient, jinaClient)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	searchClient := search.NewClient(providers, search.Options{
		MaxResults:      cfg.Search.MaxResults,
		ProviderTimeout: time.Duration(cfg.Search.ProviderTimeoutSecs) * time.Second,
		RatePerSec:      cfg.Search.RatePerSec,
	})

	newsProvider := initNewsProvider(serpClient)

	fetchOpts := fetch.Options{
		Timeout:      time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
		Concurrency:  cfg.Fetch.Concurrency,
		UserAgent:    cfg.Fetch.UserAgent,
	}
	if jinaClient != nil {
		// Blocked or empty pages get a second chance through the reader.
		fetchOpts.Reader = jinaClient
	}
	newFetcher := func() pipeline.DocumentFetcher { return fetch.New(fetchOpts) }

	schema := extract.DefaultSchema()
	if cfg.Extract.SchemaPath != "" {
		schema, err = extract.LoadSchema(cfg.Extract.SchemaPath)
		if err != nil {
			_ = st.Close()
			return nil, eris.Wrap(err, "load field schema")
		}
	}
	extractor := extract.New(anthropicpkg.NewClient(cfg.Anthropic.Key), extract.Options{
		Model:        cfg.Anthropic.Model,
		MaxTokens:    int64(cfg.Anthropic.MaxTokens),
		Schema:       schema,
		BatchChars:   cfg.Extract.BatchChars,
		Concurrency:  cfg.Extract.Concurrency,
		BatchTimeout: time.Duration(cfg.Extract.BatchTimeoutSecs) * time.Second,
	})

	p := pipeline.New(
		searchClient,
		newsProvider,
		newFetcher,
		extractor,
		reconcile.New(cfg.Reconcile.ConfidenceFloor),
		st,
		pipeline.Options{
			Deadline:     time.Duration(cfg.Pipeline.DeadlineSecs) * time.Second,
			MaxDocuments: cfg.Pipeline.MaxDocuments,
		},
	)

	return &pipelineEnv{Store: st, Pipeline: p}, nil
}

// initProviders builds the configured web search providers in their
// configured order.
func initProviders(serpClient serpapi.Client, jinaClient jina.Client) ([]search.Provider, error) {
	var providers []search.Provider
	for _, name := range cfg.Search.Providers {
		switch name {
		case "serpapi":
			if serpClient == nil {
				zap.L().Warn("serpapi.key not set, skipping serpapi provider")
				continue
			}
			providers = append(providers,
				search.NewSerpAPIProvider(serpClient, cfg.SerpAPI.Results, serpLocale()...))
		case "jina":
			if jinaClient == nil {
				zap.L().Warn("jina.key not set, skipping jina provider")
				continue
			}
			providers = append(providers, search.NewJinaProvider(jinaClient))
		default:
			return nil, eris.Errorf("unknown search provider %q", name)
		}
	}
	if len(providers) == 0 {
		return nil, eris.New("no search providers configured with credentials")
	}
	return providers, nil
}

// initNewsProvider builds the dedicated news feed, if enabled.
func initNewsProvider(serpClient serpapi.Client) search.Provider {
	if !cfg.Search.NewsFeed {
		return nil
	}
	if cfg.Search.NewsProvider == "serpapi" {
		if serpClient == nil {
			zap.L().Warn("serpapi.key not set, falling back to google news rss feed")
		} else {
			return search.NewSerpAPINewsProvider(serpClient, cfg.SerpAPI.Results, serpLocale()...)
		}
	}
	return search.NewGoogleNewsProvider(cfg.Search.MaxResults)
}

func serpLocale() []serpapi.SearchOption {
	if cfg.SerpAPI.HL == "" || cfg.SerpAPI.GL == "" {
		return nil
	}
	return []serpapi.SearchOption{serpapi.WithLocale(cfg.SerpAPI.HL, cfg.SerpAPI.GL)}
}
