package extract

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/feliks/curio/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memSnapshotStore is an in-memory SnapshotStore for tests.
type memSnapshotStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemSnapshotStore() *memSnapshotStore {
	return &memSnapshotStore{data: make(map[string][]byte)}
}

func (m *memSnapshotStore) Put(_ context.Context, key string, body []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = body
	return nil
}

func (m *memSnapshotStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return io.NopCloser(strings.NewReader(string(m.data[key]))), nil
}

func (m *memSnapshotStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memSnapshotStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok, nil
}

const articleHTML = `<html><head><title>Error Handling in Go</title></head>
<body><p>Errors are values. This piece walks through wrapping, sentinel errors
and the errors.Is and errors.As helpers in enough detail to be useful.</p></body></html>`

func TestArticleHTTPExtraction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Realistic browser headers are sent on the first attempt.
		assert.Contains(t, r.Header.Get("User-Agent"), "Mozilla")
		io.WriteString(w, articleHTML)
	}))
	defer srv.Close()

	snaps := newMemSnapshotStore()
	e := New(&Config{MinTextChars: 10}, snaps, nil)

	res, err := e.Extract(context.Background(), Request{
		Kind:       domain.KindArticle,
		SourceLink: srv.URL + "/essays/error-handling",
	})
	require.NoError(t, err)

	assert.Equal(t, "http_browser", res.Metadata[MetaMethod])
	assert.Contains(t, res.Text, "Error Handling in Go")
	assert.Contains(t, res.Text, "Errors are values.")
	assert.Equal(t, "Error Handling in Go", res.Metadata["title"])

	// The raw page was archived and its key recorded for retrieval.
	key := snapshotKey(srv.URL + "/essays/error-handling")
	ok, err := snaps.Exists(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, key, res.Metadata[MetaSnapshotKey])
}

func TestArticleUnreachableLinkSettlesInFallback(t *testing.T) {
	e := New(&Config{MinTextChars: 10, HTTPTimeout: 1}, nil, nil)

	res, err := e.Extract(context.Background(), Request{
		Kind:            domain.KindArticle,
		SourceLink:      "https://no-such-host.invalid/essays/why-go-is-nice",
		UserDescription: "an essay I wanted to read",
	})
	require.NoError(t, err)

	// An unreachable article completes with degraded text instead of retrying.
	assert.Equal(t, "url_fallback", res.Metadata[MetaMethod])
	assert.Contains(t, res.Text, "Article from no-such-host.invalid")
	assert.Contains(t, res.Text, "essays / why go is nice")
	assert.Contains(t, res.Text, "an essay I wanted to read")
}

func TestArticleCrawlerFallback(t *testing.T) {
	pageSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Direct fetches are blocked; only the crawler succeeds.
		w.WriteHeader(http.StatusForbidden)
	}))
	defer pageSrv.Close()

	crawlerSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/render", r.URL.Path)
		assert.Equal(t, "Bearer crawl-key", r.Header.Get("Authorization"))
		var req crawlerRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(crawlerResponse{
			Title: "Rendered Title",
			Text:  "Rendered article text long enough to clear the quality bar.",
		})
	}))
	defer crawlerSrv.Close()

	e := New(&Config{
		MinTextChars:   10,
		CrawlerBaseURL: crawlerSrv.URL,
		CrawlerAPIKey:  "crawl-key",
	}, nil, nil)

	res, err := e.Extract(context.Background(), Request{
		Kind:       domain.KindArticle,
		SourceLink: pageSrv.URL + "/article",
	})
	require.NoError(t, err)

	assert.Equal(t, "crawler", res.Metadata[MetaMethod])
	assert.Contains(t, res.Text, "Rendered Title")
	assert.Contains(t, res.Text, "Rendered article text")
}

func TestArticleQualityBarFallsThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html><body>hi</body></html>")
	}))
	defer srv.Close()

	e := New(&Config{MinTextChars: 100}, nil, nil)

	res, err := e.Extract(context.Background(), Request{
		Kind:       domain.KindArticle,
		SourceLink: srv.URL + "/thin-page",
	})
	require.NoError(t, err)

	// Too little text to accept; the chain degrades to the URL fallback.
	assert.Equal(t, "url_fallback", res.Metadata[MetaMethod])
}

func TestTruncateRespectsRuneBoundaries(t *testing.T) {
	s := strings.Repeat("héllo ", 100)
	out := truncate(s, 50)
	assert.LessOrEqual(t, len(out), 50)
	assert.True(t, strings.HasPrefix(s, out))

	assert.Equal(t, "short", truncate("short", 100))
	assert.Equal(t, "abc", truncate("abc", 0))
}
