// Package extract turns cleaned documents into candidate facts using
// schema-constrained LLM extraction.
package extract

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/civicgraph/orgscope/internal/model"
	"github.com/civicgraph/orgscope/pkg/anthropic"
)

const systemPrompt = `You are a research analyst extracting structured data about political organizations from web pages. Return only a valid JSON object matching the requested schema. Every value must come from the provided pages; never invent information or URLs. Use null for anything not found.`

const promptTemplate = `Organization under research: %s

Extract what the following pages say about this organization. Return a valid JSON object:
{
  "organization": {
%s
  },
  "leaders": [
    {"name": "<full name>", "position": "<role>", "background": "<career background>", "education": "<education>", "political_history": "<political history>", "achievements": "<notable achievements>", "superseded": <true only if the pages state this person no longer holds any role at the organization>, "confidence": <0.0-1.0>, "source_url": "<URL of the page that states this>"}
  ],
  "news": [
    {"title": "<headline>", "summary": "<one-sentence summary>", "published_at": "<YYYY-MM-DD or null>", "source_url": "<URL of the page>"}
  ]
}

Each organization field is an object {"value": <string or null>, "confidence": <0.0-1.0>, "source_url": "<URL of the page that states this>"}.
Only use source_url values from the page URLs below. Omit leaders and news items the pages do not mention.

Pages:
%s`

// Extractor runs batched extraction against the model.
type Extractor struct {
	client       anthropic.Client
	model        string
	maxTokens    int64
	schema       *Schema
	batchChars   int
	concurrency  int
	batchTimeout time.Duration
}

// Options configures an Extractor.
type Options struct {
	Model        string
	MaxTokens    int64
	Schema       *Schema
	BatchChars   int
	Concurrency  int
	BatchTimeout time.Duration
}

// New creates an Extractor.
func New(client anthropic.Client, opts Options) *Extractor {
	if opts.Model == "" {
		opts.Model = "claude-sonnet-4-5-20250929"
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 4096
	}
	if opts.Schema == nil {
		opts.Schema = DefaultSchema()
	}
	if opts.BatchChars <= 0 {
		opts.BatchChars = 24000
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 2
	}
	if opts.BatchTimeout <= 0 {
		opts.BatchTimeout = 60 * time.Second
	}
	return &Extractor{
		client:       client,
		model:        opts.Model,
		maxTokens:    opts.MaxTokens,
		schema:       opts.Schema,
		batchChars:   opts.BatchChars,
		concurrency:  opts.Concurrency,
		batchTimeout: opts.BatchTimeout,
	}
}

// Extract batches the usable documents and extracts candidate facts for
// entity. A failed batch contributes nothing; the call errors only when
// every batch failed.
func (e *Extractor) Extract(ctx context.Context, entity string, docs []model.RawDocument) (model.Extraction, error) {
	batches := batchDocuments(docs, e.batchChars)
	if len(batches) == 0 {
		return model.Extraction{}, nil
	}

	var mu sync.Mutex
	var out model.Extraction
	failures := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for bi, batch := range batches {
		bi, batch := bi, batch
		g.Go(func() error {
			ext, err := e.extractBatch(gctx, entity, batch)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures++
				zap.L().Warn("extraction batch failed",
					zap.String("entity", entity),
					zap.Int("batch", bi),
					zap.Int("documents", len(batch)),
					zap.Error(err),
				)
				return nil
			}
			out.Merge(ext)
			return nil
		})
	}
	_ = g.Wait()

	if failures == len(batches) {
		return model.Extraction{}, lastBatchError(entity, failures)
	}
	return out, nil
}

func (e *Extractor) extractBatch(ctx context.Context, entity string, batch []model.RawDocument) (model.Extraction, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.batchTimeout)
	defer cancel()

	resp, err := e.client.CreateMessage(callCtx, anthropic.MessageRequest{
		Model:     e.model,
		MaxTokens: e.maxTokens,
		System:    systemPrompt,
		Messages: []anthropic.Message{
			{Role: "user", Content: e.buildPrompt(entity, batch)},
		},
	})
	if err != nil {
		return model.Extraction{}, err
	}
	resp.Usage.LogCost(e.model, "extract")

	return parseExtraction(resp.Text(), entity, e.schema, batch)
}

func (e *Extractor) buildPrompt(entity string, batch []model.RawDocument) string {
	var fields strings.Builder
	for i, f := range e.schema.Fields {
		fmt.Fprintf(&fields, "    %q: {\"value\": \"<%s>\", \"confidence\": <0.0-1.0>, \"source_url\": \"<URL>\"}", f.Key, f.Description)
		if i < len(e.schema.Fields)-1 {
			fields.WriteString(",")
		}
		fields.WriteString("\n")
	}

	var pages strings.Builder
	for _, d := range batch {
		title := d.Title
		if title == "" {
			title = d.URL
		}
		fmt.Fprintf(&pages, "--- %s (%s) ---\n%s\n\n", title, d.URL, d.ContentText)
	}

	return fmt.Sprintf(promptTemplate, entity, strings.TrimRight(fields.String(), "\n"), strings.TrimSpace(pages.String()))
}
