package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/feliks/curio/internal/config"
	"github.com/feliks/curio/internal/domain"
	"github.com/feliks/curio/internal/extract"
	"github.com/feliks/curio/internal/repository"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *repository.ContentRepository {
	t.Helper()
	db, err := repository.InitDB(&config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         ":memory:",
		MaxIdleConns: 1,
		MaxOpenConns: 1,
		AutoMigrate:  true,
	})
	require.NoError(t, err)
	return repository.NewContentRepository(db)
}

// fakeVectorIndex records upserts and deletes and serves canned search hits.
type fakeVectorIndex struct {
	mu      sync.Mutex
	points  map[string]*repository.ContentPayload
	hits    []repository.SearchResult
	upserts int
	fail    bool
}

func newFakeVectorIndex() *fakeVectorIndex {
	return &fakeVectorIndex{points: make(map[string]*repository.ContentPayload)}
}

func (f *fakeVectorIndex) Upsert(_ context.Context, pointID string, _ []float32, payload *repository.ContentPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return fmt.Errorf("vector index unavailable")
	}
	f.points[pointID] = payload
	f.upserts++
	return nil
}

func (f *fakeVectorIndex) Delete(_ context.Context, pointID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return fmt.Errorf("vector index unavailable")
	}
	delete(f.points, pointID)
	return nil
}

func (f *fakeVectorIndex) Search(_ context.Context, _ []float32, topK int, filters *repository.SearchFilters) ([]repository.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if filters == nil || filters.UserID == "" {
		return nil, fmt.Errorf("search requires a user filter")
	}
	hits := f.hits
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (f *fakeVectorIndex) has(pointID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.points[pointID]
	return ok
}

func (f *fakeVectorIndex) upsertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.upserts
}

// fakeEmbedder returns a fixed vector; texts listed in failOn error instead.
type fakeEmbedder struct {
	mu     sync.Mutex
	failOn string
	calls  int
}

func (f *fakeEmbedder) embed(text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failOn != "" && strings.Contains(text, f.failOn) {
		return nil, fmt.Errorf("embedding provider rejected input")
	}
	return []float32{0.1, 0.2, 0.3, 0.4}, nil
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return f.embed(text)
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, query string) ([]float32, error) {
	return f.embed(query)
}

func (f *fakeEmbedder) Dimensions() int { return 4 }

// fakeExtractor runs a configurable function per request.
type fakeExtractor struct {
	mu    sync.Mutex
	fn    func(req extract.Request) (*extract.Result, error)
	calls []string
}

func (f *fakeExtractor) Extract(_ context.Context, req extract.Request) (*extract.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req.SourceLink)
	fn := f.fn
	f.mu.Unlock()
	if fn != nil {
		return fn(req)
	}
	return &extract.Result{
		Text:     "extracted text for " + req.SourceLink,
		Metadata: domain.JSONMap{extract.MetaMethod: "fake"},
	}, nil
}

func (f *fakeExtractor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeExtractor) callOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// fakeSnapshotStore keeps archived pages in memory.
type fakeSnapshotStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeSnapshotStore() *fakeSnapshotStore {
	return &fakeSnapshotStore{objects: map[string][]byte{}}
}

func (f *fakeSnapshotStore) Put(_ context.Context, key string, body []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = append([]byte(nil), body...)
	return nil
}

func (f *fakeSnapshotStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("no snapshot %q", key)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (f *fakeSnapshotStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeSnapshotStore) Exists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok, nil
}
