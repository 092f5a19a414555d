package serpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestServer(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-api-key", WithBaseURL(srv.URL))
}

func TestSearch(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search.json", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "google", q.Get("engine"))
		assert.Equal(t, "common cause", q.Get("q"))
		assert.Equal(t, "test-api-key", q.Get("api_key"))
		assert.Equal(t, "5", q.Get("num"))
		assert.Equal(t, "en", q.Get("hl"))
		assert.Equal(t, "us", q.Get("gl"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"organic_results": [
				{"position": 1, "title": "About", "link": "https://group.org/about", "snippet": "Founded 1970"}
			],
			"news_results": [
				{"title": "In the news", "link": "https://news.org/item", "date": "Jan 2, 2025", "source": "News Org"}
			]
		}`))
	})

	resp, err := c.Search(context.Background(), "common cause", WithNum(5))
	require.NoError(t, err)

	require.Len(t, resp.OrganicResults, 1)
	assert.Equal(t, "https://group.org/about", resp.OrganicResults[0].Link)
	require.Len(t, resp.NewsResults, 1)
	assert.Equal(t, "News Org", resp.NewsResults[0].Source)
}

func TestSearchNewsVertical(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "nws", r.URL.Query().Get("tbm"))
		w.Write([]byte(`{"news_results": []}`))
	})

	_, err := c.Search(context.Background(), "query", WithNews())
	require.NoError(t, err)
}

func TestSearchRetriesTransientStatus(t *testing.T) {
	var calls int32
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"organic_results": [{"title": "ok", "link": "https://ok.org"}]}`))
	})

	resp, err := c.Search(context.Background(), "query")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	require.Len(t, resp.OrganicResults, 1)
}

func TestSearchClientError(t *testing.T) {
	var calls int32
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "Missing query"}`))
	})

	_, err := c.Search(context.Background(), "query")
	require.Error(t, err)
	// Non-transient statuses are not retried.
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSearchMalformedResponse(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})

	_, err := c.Search(context.Background(), "query")
	assert.Error(t, err)
}
