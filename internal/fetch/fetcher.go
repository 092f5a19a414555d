// Package fetch retrieves search-result pages and cleans them into
// plaintext documents for extraction.
package fetch

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/civicgraph/orgscope/internal/model"
	"github.com/civicgraph/orgscope/pkg/jina"
)

// Reader renders a page through a remote reader service. It is tried
// when the direct fetch comes back blocked or empty, since those pages
// often yield to a rendering proxy. jina.Client satisfies it.
type Reader interface {
	Read(ctx context.Context, targetURL string) (*jina.ReadResponse, error)
}

// Fetcher fetches and cleans pages. One Fetcher is created per pipeline
// run; its cache never serves across runs.
type Fetcher struct {
	client       *http.Client
	reader       Reader
	timeout      time.Duration
	maxBodyBytes int64
	concurrency  int
	userAgent    string

	mu    sync.Mutex
	cache map[string]*model.RawDocument
}

// Options configures a Fetcher.
type Options struct {
	// Timeout bounds each page fetch. Default 10s.
	Timeout time.Duration
	// MaxBodyBytes truncates response bodies. Default 2 MiB.
	MaxBodyBytes int64
	// Concurrency bounds parallel fetches in FetchAll. Default 6.
	Concurrency int
	// UserAgent is sent on every request.
	UserAgent string
	// Reader, when set, is tried for pages the direct fetch could not
	// read (blocked or empty).
	Reader Reader
	// HTTPClient overrides the default client (for testing).
	HTTPClient *http.Client
}

// New creates a Fetcher.
func New(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 2 << 20
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 6
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (compatible; orgscope/1.0)"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 5 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 5 * time.Second,
			},
		}
	}
	return &Fetcher{
		client:       client,
		reader:       opts.Reader,
		timeout:      opts.Timeout,
		maxBodyBytes: opts.MaxBodyBytes,
		concurrency:  opts.Concurrency,
		userAgent:    opts.UserAgent,
		cache:        make(map[string]*model.RawDocument),
	}
}

// Fetch retrieves one URL and returns a document whose Status encodes
// the outcome. Failures are contained in the document; the error return
// is reserved for malformed input.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) (*model.RawDocument, error) {
	key := model.NormalizeURL(targetURL)
	if key == "" {
		return nil, eris.New("fetch: empty url")
	}

	f.mu.Lock()
	if doc, ok := f.cache[key]; ok {
		f.mu.Unlock()
		return doc, nil
	}
	f.mu.Unlock()

	doc := f.fetch(ctx, targetURL)
	if f.reader != nil && (doc.Status == model.FetchBlocked || doc.Status == model.FetchEmpty) {
		if rd := f.readFallback(ctx, targetURL); rd != nil {
			doc = rd
		}
	}

	f.mu.Lock()
	f.cache[key] = doc
	f.mu.Unlock()
	return doc, nil
}

// readFallback retries a page through the remote reader. Returns nil
// when the reader also fails or comes back too thin to use.
func (f *Fetcher) readFallback(ctx context.Context, targetURL string) *model.RawDocument {
	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	resp, err := f.reader.Read(reqCtx, targetURL)
	if err != nil {
		zap.L().Debug("reader fallback failed",
			zap.String("url", targetURL),
			zap.Error(err),
		)
		return nil
	}
	if resp.Code != 0 && resp.Code != 200 {
		return nil
	}

	text := cleanPlain(resp.Data.Content)
	if len(text) < 100 {
		return nil
	}
	return &model.RawDocument{
		URL:         targetURL,
		Title:       resp.Data.Title,
		ContentText: text,
		ContentHash: model.HashContent(text),
		Status:      model.FetchOK,
		FetchedAt:   time.Now().UTC(),
	}
}

// FetchAll retrieves all result URLs with bounded concurrency. The
// returned slice preserves input order; failed fetches appear with a
// non-ok Status.
func (f *Fetcher) FetchAll(ctx context.Context, results []model.SearchResult) []model.RawDocument {
	docs := make([]*model.RawDocument, len(results))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, r := range results {
		i, url := i, r.URL
		g.Go(func() error {
			doc, err := f.Fetch(gctx, url)
			if err != nil {
				doc = &model.RawDocument{URL: url, Status: model.FetchEmpty, FetchedAt: time.Now().UTC()}
			}
			docs[i] = doc
			return nil
		})
	}
	_ = g.Wait()

	out := make([]model.RawDocument, 0, len(docs))
	for _, d := range docs {
		if d != nil {
			out = append(out, *d)
		}
	}
	return out
}

func (f *Fetcher) fetch(ctx context.Context, targetURL string) *model.RawDocument {
	doc := &model.RawDocument{URL: targetURL, FetchedAt: time.Now().UTC()}

	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, targetURL, nil)
	if err != nil {
		doc.Status = model.FetchEmpty
		return doc
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html, text/plain;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		doc.Status = classifyFetchErr(err)
		zap.L().Debug("page fetch failed",
			zap.String("url", targetURL),
			zap.String("status", string(doc.Status)),
			zap.Error(err),
		)
		return doc
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusTooManyRequests:
		doc.Status = model.FetchBlocked
		return doc
	case resp.StatusCode >= 400:
		doc.Status = model.FetchEmpty
		return doc
	}

	ctype := resp.Header.Get("Content-Type")
	isHTML := strings.HasPrefix(ctype, "text/html")
	isPlain := strings.HasPrefix(ctype, "text/plain")
	if ctype != "" && !isHTML && !isPlain {
		doc.Status = model.FetchEmpty
		return doc
	}

	// Read one byte past the cap to detect truncation.
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes+1))
	if err != nil {
		doc.Status = classifyFetchErr(err)
		return doc
	}
	if int64(len(body)) > f.maxBodyBytes {
		body = body[:f.maxBodyBytes]
		doc.Truncated = true
	}

	var text string
	if isPlain {
		text = cleanPlain(string(body))
	} else {
		doc.Title = extractTitle(body)
		text = cleanHTML(string(body))
	}
	if len(text) < 100 {
		doc.Status = model.FetchEmpty
		return doc
	}

	doc.ContentText = text
	doc.ContentHash = model.HashContent(text)
	doc.Status = model.FetchOK
	return doc
}

func classifyFetchErr(err error) model.FetchStatus {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.FetchTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return model.FetchTimeout
	}
	return model.FetchEmpty
}
