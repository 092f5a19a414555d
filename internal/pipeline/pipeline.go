// Package pipeline orchestrates one aggregation run: search, fetch,
// extract, reconcile, persist.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/civicgraph/orgscope/internal/model"
	"github.com/civicgraph/orgscope/internal/reconcile"
	"github.com/civicgraph/orgscope/internal/search"
	"github.com/civicgraph/orgscope/internal/store"
)

// DocumentFetcher retrieves pages for search results.
type DocumentFetcher interface {
	FetchAll(ctx context.Context, results []model.SearchResult) []model.RawDocument
}

// FactExtractor turns documents into candidate facts.
type FactExtractor interface {
	Extract(ctx context.Context, entity string, docs []model.RawDocument) (model.Extraction, error)
}

// Options configures run-level orchestration.
type Options struct {
	// Deadline bounds a whole run. Default 60s. The run is best effort
	// within this budget: stages that miss it degrade rather than fail.
	Deadline time.Duration
	// MaxDocuments caps how many search results are fetched. Default 12.
	MaxDocuments int
}

// Pipeline runs aggregation for one organization at a time. It is safe
// for concurrent use; runs for the same organization serialize their
// reconcile+persist step.
type Pipeline struct {
	search     search.Client
	newsSearch search.Provider
	newFetcher func() DocumentFetcher
	extractor  FactExtractor
	reconciler *reconcile.Reconciler
	store      store.ProfileStore
	locks      *reconcile.KeyedMutex
	opts       Options
}

// New creates a Pipeline. newsSearch may be nil to skip the dedicated
// news feed. newFetcher is called once per run so the fetch cache never
// serves stale pages across runs.
func New(
	searchClient search.Client,
	newsSearch search.Provider,
	newFetcher func() DocumentFetcher,
	extractor FactExtractor,
	reconciler *reconcile.Reconciler,
	profiles store.ProfileStore,
	opts Options,
) *Pipeline {
	if opts.Deadline <= 0 {
		opts.Deadline = 60 * time.Second
	}
	if opts.MaxDocuments <= 0 {
		opts.MaxDocuments = 12
	}
	return &Pipeline{
		search:     searchClient,
		newsSearch: newsSearch,
		newFetcher: newFetcher,
		extractor:  extractor,
		reconciler: reconciler,
		store:      profiles,
		locks:      reconcile.NewKeyedMutex(),
		opts:       opts,
	}
}

// Run aggregates a profile for the named organization. Stage failures
// degrade the run to the previously stored profile; only persistence
// and configuration problems surface as errors.
func (p *Pipeline) Run(ctx context.Context, name string) (*model.RunResult, error) {
	if name == "" {
		return nil, eris.New("pipeline: empty organization name")
	}

	result := &model.RunResult{
		RunID:      model.NewRunID(),
		EntityName: name,
		StartedAt:  time.Now().UTC(),
	}
	log := zap.L().With(
		zap.String("run_id", result.RunID),
		zap.String("organization", name),
	)
	log.Info("aggregation run started")

	runCtx, cancel := context.WithTimeout(ctx, p.opts.Deadline)
	defer cancel()

	results, err := p.search.Search(runCtx, search.QueriesFor(name))
	if err != nil {
		log.Warn("search stage failed, degrading run", zap.Error(err))
		return p.degrade(ctx, result)
	}
	result.Stats.SearchResults = len(results)
	if len(results) > p.opts.MaxDocuments {
		results = results[:p.opts.MaxDocuments]
	}

	docs := p.newFetcher().FetchAll(runCtx, results)
	var usable []model.RawDocument
	for _, d := range docs {
		if d.Usable() {
			usable = append(usable, d)
		} else {
			result.Stats.DocumentsFailed++
		}
	}
	result.Stats.DocumentsFetched = len(usable)
	if len(usable) == 0 {
		log.Warn("no usable documents fetched, degrading run",
			zap.Int("failed", result.Stats.DocumentsFailed))
		return p.degrade(ctx, result)
	}

	ext, err := p.extractor.Extract(runCtx, name, usable)
	if err != nil {
		log.Warn("extraction stage failed, degrading run", zap.Error(err))
		return p.degrade(ctx, result)
	}
	ext.News = append(ext.News, p.fetchNews(runCtx, name, log)...)
	result.Stats.FactsExtracted = len(ext.Facts)
	result.Stats.LeadersExtracted = len(ext.Leaders)
	result.Stats.NewsExtracted = len(ext.News)

	// Reconcile and persist under the per-organization lock so two
	// concurrent runs for the same name cannot interleave merges. Uses
	// the parent context: the winner of a near-deadline run still
	// commits its merge.
	release := p.locks.Lock(model.NormalizeName(name))
	defer release()

	existing, err := p.store.GetProfile(ctx, name)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load profile")
	}
	profile, updated := p.reconciler.Apply(existing, name, ext)
	result.Stats.FieldsUpdated = updated

	if updated == 0 && existing != nil {
		// Nothing changed: leave the stored row untouched so back-to-back
		// runs with the same evidence are byte-identical.
		result.Profile = existing
	} else {
		saved, err := p.store.UpsertProfile(ctx, profile)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: persist profile")
		}
		result.Profile = saved
	}
	result.FinishedAt = time.Now().UTC()

	log.Info("aggregation run finished",
		zap.Int("search_results", result.Stats.SearchResults),
		zap.Int("documents_fetched", result.Stats.DocumentsFetched),
		zap.Int("documents_failed", result.Stats.DocumentsFailed),
		zap.Int("facts_extracted", result.Stats.FactsExtracted),
		zap.Int("leaders_extracted", result.Stats.LeadersExtracted),
		zap.Int("news_extracted", result.Stats.NewsExtracted),
		zap.Int("fields_updated", result.Stats.FieldsUpdated),
		zap.Duration("elapsed", result.FinishedAt.Sub(result.StartedAt)),
	)
	return result, nil
}

// fetchNews pulls the dedicated news feed. A feed failure only costs
// this run its fresh news items.
func (p *Pipeline) fetchNews(ctx context.Context, name string, log *zap.Logger) []model.NewsCandidate {
	if p.newsSearch == nil {
		return nil
	}
	results, err := p.newsSearch.Search(ctx, search.NewsQueryFor(name))
	if err != nil {
		log.Warn("news feed failed", zap.Error(err))
		return nil
	}
	out := make([]model.NewsCandidate, 0, len(results))
	for _, r := range results {
		if r.URL == "" || r.Title == "" {
			continue
		}
		out = append(out, model.NewsCandidate{
			Title:       r.Title,
			Summary:     r.Snippet,
			SourceURL:   r.URL,
			PublishedAt: r.PublishedAt,
		})
	}
	return out
}

// degrade finishes a run whose evidence-gathering stages produced
// nothing usable: the stored profile is returned unchanged, or an empty
// skeleton keyed by name when none exists. Uses the parent context so a
// blown run deadline does not mask the read.
func (p *Pipeline) degrade(ctx context.Context, result *model.RunResult) (*model.RunResult, error) {
	existing, err := p.store.GetProfile(ctx, result.EntityName)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load profile")
	}
	if existing == nil {
		existing = &model.OrganizationProfile{
			Name:       result.EntityName,
			Provenance: map[string]string{},
		}
	}
	result.Profile = existing
	result.Degraded = true
	result.FinishedAt = time.Now().UTC()
	return result, nil
}
