package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/feliks/curio/internal/api/middleware"
	"github.com/feliks/curio/internal/config"
	"github.com/feliks/curio/internal/domain"
	"github.com/feliks/curio/internal/extract"
	"github.com/feliks/curio/internal/repository"
	"github.com/feliks/curio/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExtractor struct{}

func (stubExtractor) Extract(_ context.Context, req extract.Request) (*extract.Result, error) {
	return &extract.Result{
		Text:     "stub text for " + req.SourceLink,
		Metadata: domain.JSONMap{extract.MetaMethod: "stub"},
	}, nil
}

type stubVectorIndex struct {
	mu     sync.Mutex
	points map[string]struct{}
}

func (s *stubVectorIndex) Upsert(_ context.Context, pointID string, _ []float32, _ *repository.ContentPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points[pointID] = struct{}{}
	return nil
}

func (s *stubVectorIndex) Delete(_ context.Context, pointID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.points, pointID)
	return nil
}

func (s *stubVectorIndex) Search(_ context.Context, _ []float32, _ int, filters *repository.SearchFilters) ([]repository.SearchResult, error) {
	if filters == nil || filters.UserID == "" {
		return nil, fmt.Errorf("search requires a user filter")
	}
	return nil, nil
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(context.Context, string) ([]float32, error)      { return []float32{1}, nil }
func (stubEmbedder) EmbedQuery(context.Context, string) ([]float32, error) { return []float32{1}, nil }
func (stubEmbedder) Dimensions() int                                       { return 1 }

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()

	db, err := repository.InitDB(&config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         ":memory:",
		MaxIdleConns: 1,
		MaxOpenConns: 1,
		AutoMigrate:  true,
	})
	require.NoError(t, err)

	repo := repository.NewContentRepository(db)
	vectors := &stubVectorIndex{points: make(map[string]struct{})}
	indexer := service.NewIndexer(repo, vectors, stubEmbedder{}, nil, nil)
	worker := service.NewWorker(repo, stubExtractor{}, indexer, nil, &service.WorkerConfig{
		RetryBaseDelay: time.Millisecond,
	})
	contentService := service.NewContentService(repo, worker, indexer, nil, nil)
	searchService := service.NewSearchService(repo, vectors, stubEmbedder{}, nil, nil)
	chatService := service.NewChatService(searchService, nil, nil)

	return SetupRouter(contentService, searchService, chatService, indexer, RouterConfig{
		Mode: "test",
		CORS: middleware.CORSConfig{AllowAllOrigins: true},
	})
}

func doJSON(r *gin.Engine, method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthNeedsNoAuth(t *testing.T) {
	r := newTestRouter(t)
	w := doJSON(r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIRequiresUserHeader(t *testing.T) {
	r := newTestRouter(t)
	w := doJSON(r, http.MethodGet, "/api/v1/content", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestContentLifecycle(t *testing.T) {
	r := newTestRouter(t)

	// Create a note: completes without the queue.
	w := doJSON(r, http.MethodPost, "/api/v1/content", "alice", map[string]interface{}{
		"kind":             "note",
		"user_description": "remember to read the scheduler post",
		"tags":             []string{"go"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created domain.ContentItem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, domain.StatusCompleted, created.Status)
	assert.NotEmpty(t, created.ID)

	// Get it back, owner scoped.
	w = doJSON(r, http.MethodGet, "/api/v1/content/"+created.ID, "alice", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/api/v1/content/"+created.ID, "mallory", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Update title.
	w = doJSON(r, http.MethodPatch, "/api/v1/content/"+created.ID, "alice", map[string]interface{}{
		"title": "scheduler reading",
	})
	require.Equal(t, http.StatusOK, w.Code)

	// List.
	w = doJSON(r, http.MethodGet, "/api/v1/content?kind=note", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Items []domain.ContentItem `json:"items"`
		Total int                  `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Total)
	assert.Equal(t, "scheduler reading", list.Items[0].Title)

	// Notes cannot be reprocessed.
	w = doJSON(r, http.MethodPost, "/api/v1/content/"+created.ID+"/reprocess", "alice", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// Delete.
	w = doJSON(r, http.MethodDelete, "/api/v1/content/"+created.ID, "alice", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(r, http.MethodGet, "/api/v1/content/"+created.ID, "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateValidationErrors(t *testing.T) {
	r := newTestRouter(t)

	// Link kinds need a source link.
	w := doJSON(r, http.MethodPost, "/api/v1/content", "alice", map[string]interface{}{
		"kind": "video",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/api/v1/content", "alice", map[string]interface{}{
		"kind":        "podcast",
		"source_link": "https://example.com/x",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQueueStatusEndpoint(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(r, http.MethodGet, "/api/v1/queue/status", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var status domain.QueueStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, 0, status.Length)
}

func TestSearchEndpoint(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(r, http.MethodPost, "/api/v1/search", "alice", map[string]interface{}{
		"query": "anything",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Results []json.RawMessage `json:"results"`
		Total   int               `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Total)

	// Missing query is rejected by binding.
	w = doJSON(r, http.MethodPost, "/api/v1/search", "alice", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// GET variant.
	w = doJSON(r, http.MethodGet, "/api/v1/search?q=anything&limit=5", "alice", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestChatDisabledReturns503(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(r, http.MethodPost, "/api/v1/chat", "alice", map[string]interface{}{
		"question": "what did I save about Go?",
	})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
