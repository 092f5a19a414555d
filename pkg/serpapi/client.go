// Package serpapi provides a client for the SerpAPI Google Search engine.
package serpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/civicgraph/orgscope/internal/resilience"
)

const defaultBaseURL = "https://serpapi.com"

// Client performs SerpAPI search operations.
type Client interface {
	// Search runs a Google search for query and returns organic results.
	Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error)
}

// SearchResponse is the subset of the SerpAPI response the pipeline uses.
type SearchResponse struct {
	OrganicResults []OrganicResult `json:"organic_results"`
	NewsResults    []NewsResult    `json:"news_results"`
}

// OrganicResult is a single organic search hit.
type OrganicResult struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
	Date     string `json:"date"`
}

// NewsResult is a single news search hit.
type NewsResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
	Date    string `json:"date"`
	Source  string `json:"source"`
}

// SearchOption configures a search request.
type SearchOption func(*searchOpts)

type searchOpts struct {
	num int
	tbm string
	hl  string
	gl  string
}

// WithNum sets the number of results requested.
func WithNum(n int) SearchOption {
	return func(o *searchOpts) { o.num = n }
}

// WithNews switches the search to the Google News vertical.
func WithNews() SearchOption {
	return func(o *searchOpts) { o.tbm = "nws" }
}

// WithLocale sets the interface language and country.
func WithLocale(hl, gl string) SearchOption {
	return func(o *searchOpts) {
		o.hl = hl
		o.gl = gl
	}
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	retry   resilience.Policy
}

// NewClient creates a SerpAPI client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
		retry: resilience.DefaultPolicy(),
	}
	for _, o := range opts {
		o(c)
	}
	c.retry.OnRetry = resilience.RetryLogger("serpapi", "search")
	return c
}

func (c *httpClient) Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error) {
	so := &searchOpts{num: 10, hl: "en", gl: "us"}
	for _, opt := range opts {
		opt(so)
	}

	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", query)
	params.Set("api_key", c.apiKey)
	params.Set("num", strconv.Itoa(so.num))
	params.Set("hl", so.hl)
	params.Set("gl", so.gl)
	if so.tbm != "" {
		params.Set("tbm", so.tbm)
	}
	reqURL := c.baseURL + "/search.json?" + params.Encode()

	body, err := resilience.Retry(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "serpapi: create request")
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "serpapi: send request")
		}
		defer resp.Body.Close() //nolint:errcheck

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "serpapi: read response")
		}

		if resp.StatusCode != http.StatusOK {
			err := eris.Errorf("serpapi: unexpected status %d: %s", resp.StatusCode, string(respBody))
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(err, resp.StatusCode)
			}
			return nil, err
		}
		return respBody, nil
	})
	if err != nil {
		return nil, err
	}

	var result SearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "serpapi: unmarshal response")
	}
	return &result, nil
}
