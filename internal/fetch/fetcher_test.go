package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicgraph/orgscope/internal/model"
	"github.com/civicgraph/orgscope/pkg/jina"
)

// fakeReader stands in for the remote reader fallback.
type fakeReader struct {
	resp  *jina.ReadResponse
	err   error
	calls int32
}

func (f *fakeReader) Read(ctx context.Context, targetURL string) (*jina.ReadResponse, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.resp, f.err
}

func pageHTML(body string) string {
	return "<html><head><title>Test Page</title></head><body>" + body + "</body></html>"
}

var longParagraph = strings.Repeat("The organization advocates for transparent campaign finance. ", 10)

func TestFetchOK(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(pageHTML("<p>" + longParagraph + "</p><script>ignore()</script>")))
	}))
	defer srv.Close()

	f := New(Options{})
	doc, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, model.FetchOK, doc.Status)
	assert.Equal(t, "Test Page", doc.Title)
	assert.Contains(t, doc.ContentText, "transparent campaign finance")
	assert.NotContains(t, doc.ContentText, "ignore()")
	assert.NotEmpty(t, doc.ContentHash)
	assert.False(t, doc.Truncated)
	assert.True(t, doc.Usable())
}

func TestFetchBlockedStatuses(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusForbidden, http.StatusUnauthorized, http.StatusTooManyRequests} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		f := New(Options{})
		doc, err := f.Fetch(context.Background(), srv.URL)
		srv.Close()
		require.NoError(t, err)
		assert.Equal(t, model.FetchBlocked, doc.Status, "status %d", status)
		assert.False(t, doc.Usable())
	}
}

func TestFetchNotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(Options{})
	doc, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, model.FetchEmpty, doc.Status)
}

func TestFetchRejectsBinaryContentType(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4 " + longParagraph))
	}))
	defer srv.Close()

	f := New(Options{})
	doc, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, model.FetchEmpty, doc.Status)
}

func TestFetchTooShortIsEmpty(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(pageHTML("<p>tiny</p>")))
	}))
	defer srv.Close()

	f := New(Options{})
	doc, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, model.FetchEmpty, doc.Status)
}

func TestFetchTruncatesLargeBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(strings.Repeat("a", 5000)))
	}))
	defer srv.Close()

	f := New(Options{MaxBodyBytes: 1024})
	doc, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, model.FetchOK, doc.Status)
	assert.True(t, doc.Truncated)
	assert.LessOrEqual(t, len(doc.ContentText), 1024)
}

func TestFetchTimeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	f := New(Options{Timeout: 50 * time.Millisecond})
	doc, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, model.FetchTimeout, doc.Status)
}

func TestFetchCachesByNormalizedURL(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(pageHTML("<p>" + longParagraph + "</p>")))
	}))
	defer srv.Close()

	f := New(Options{})
	first, err := f.Fetch(context.Background(), srv.URL+"/page")
	require.NoError(t, err)
	second, err := f.Fetch(context.Background(), srv.URL+"/page/")
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Same(t, first, second)
}

func TestFetchReaderFallbackRescuesBlockedPage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	reader := &fakeReader{resp: &jina.ReadResponse{
		Code: 200,
		Data: jina.ReadData{Title: "Rescued", Content: longParagraph},
	}}

	f := New(Options{Reader: reader})
	doc, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, model.FetchOK, doc.Status)
	assert.Equal(t, "Rescued", doc.Title)
	assert.Contains(t, doc.ContentText, "transparent campaign finance")
	assert.NotEmpty(t, doc.ContentHash)
	assert.Equal(t, int32(1), atomic.LoadInt32(&reader.calls))
}

func TestFetchReaderFallbackFailureKeepsStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	reader := &fakeReader{err: eris.New("reader unavailable")}

	f := New(Options{Reader: reader})
	doc, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, model.FetchBlocked, doc.Status)
	assert.False(t, doc.Usable())
}

func TestFetchReaderFallbackRejectsThinContent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	reader := &fakeReader{resp: &jina.ReadResponse{
		Code: 200,
		Data: jina.ReadData{Content: "nothing here"},
	}}

	f := New(Options{Reader: reader})
	doc, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, model.FetchEmpty, doc.Status)
}

func TestFetchReaderFallbackNotTriedOnSuccess(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(pageHTML("<p>" + longParagraph + "</p>")))
	}))
	defer srv.Close()

	reader := &fakeReader{}
	f := New(Options{Reader: reader})
	doc, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, model.FetchOK, doc.Status)
	assert.Zero(t, atomic.LoadInt32(&reader.calls))
}

func TestFetchEmptyURL(t *testing.T) {
	t.Parallel()

	f := New(Options{})
	_, err := f.Fetch(context.Background(), "")
	assert.Error(t, err)
}

func TestFetchAllPreservesOrder(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/blocked") {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(pageHTML("<p>" + longParagraph + r.URL.Path + "</p>")))
	}))
	defer srv.Close()

	results := []model.SearchResult{
		{URL: srv.URL + "/a"},
		{URL: srv.URL + "/blocked"},
		{URL: srv.URL + "/c"},
	}

	f := New(Options{Concurrency: 2})
	docs := f.FetchAll(context.Background(), results)

	require.Len(t, docs, 3)
	assert.Equal(t, srv.URL+"/a", docs[0].URL)
	assert.Equal(t, model.FetchOK, docs[0].Status)
	assert.Equal(t, srv.URL+"/blocked", docs[1].URL)
	assert.Equal(t, model.FetchBlocked, docs[1].Status)
	assert.Equal(t, srv.URL+"/c", docs[2].URL)
	assert.Equal(t, model.FetchOK, docs[2].Status)
}
