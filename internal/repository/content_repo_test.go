package repository

import (
	"context"
	"testing"

	"github.com/feliks/curio/internal/config"
	"github.com/feliks/curio/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := InitDB(&config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         ":memory:",
		MaxIdleConns: 1,
		MaxOpenConns: 1,
		AutoMigrate:  true,
	})
	require.NoError(t, err)
	return db
}

func newItem(userID string, kind domain.ContentKind) *domain.ContentItem {
	return &domain.ContentItem{
		ID:         uuid.New().String(),
		UserID:     userID,
		Kind:       kind,
		SourceLink: "https://example.com/" + uuid.New().String(),
		Title:      "a title",
		Status:     domain.StatusPending,
	}
}

func TestContentRepositoryCreateAndGet(t *testing.T) {
	repo := NewContentRepository(newTestDB(t))
	ctx := context.Background()

	item := newItem("alice", domain.KindArticle)
	item.Tags = domain.StringArray{"go", "testing"}
	require.NoError(t, repo.Create(ctx, item))

	got, err := repo.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.ID, got.ID)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Equal(t, domain.StringArray{"go", "testing"}, got.Tags)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestContentRepositoryOwnerScoping(t *testing.T) {
	repo := NewContentRepository(newTestDB(t))
	ctx := context.Background()

	item := newItem("alice", domain.KindVideo)
	require.NoError(t, repo.Create(ctx, item))

	got, err := repo.GetOwned(ctx, "alice", item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.ID, got.ID)

	// Another user's id behaves exactly like a missing record.
	_, err = repo.GetOwned(ctx, "mallory", item.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = repo.Delete(ctx, "mallory", item.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, repo.Delete(ctx, "alice", item.ID))
	_, err = repo.GetByID(ctx, item.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestContentRepositoryListByOwner(t *testing.T) {
	repo := NewContentRepository(newTestDB(t))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, newItem("alice", domain.KindArticle)))
	}
	require.NoError(t, repo.Create(ctx, newItem("alice", domain.KindNote)))
	require.NoError(t, repo.Create(ctx, newItem("bob", domain.KindArticle)))

	all, err := repo.ListByOwner(ctx, "alice", "", 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	articles, err := repo.ListByOwner(ctx, "alice", domain.KindArticle, 10, 0)
	require.NoError(t, err)
	assert.Len(t, articles, 3)

	page, err := repo.ListByOwner(ctx, "alice", "", 2, 2)
	require.NoError(t, err)
	assert.Len(t, page, 2)
}

func TestContentRepositoryStatusTransitions(t *testing.T) {
	repo := NewContentRepository(newTestDB(t))
	ctx := context.Background()

	item := newItem("alice", domain.KindVideo)
	require.NoError(t, repo.Create(ctx, item))

	require.NoError(t, repo.UpdateStatus(ctx, item.ID, domain.StatusProcessing, ""))
	got, err := repo.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, got.Status)

	require.NoError(t, repo.UpdateStatus(ctx, item.ID, domain.StatusFailed, "caption provider rate limited"))
	got, err = repo.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Equal(t, "caption provider rate limited", got.ProcessingError)

	// A successful extraction completes the item and clears the error.
	meta := domain.JSONMap{"extraction_method": "captions"}
	require.NoError(t, repo.UpdateExtraction(ctx, item.ID, "transcript text", meta))
	got, err = repo.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Equal(t, "transcript text", got.ExtractedText)
	assert.Empty(t, got.ProcessingError)
	assert.Equal(t, "captions", got.ExtractionMeta["extraction_method"])
}

func TestContentRepositoryGetByIDs(t *testing.T) {
	repo := NewContentRepository(newTestDB(t))
	ctx := context.Background()

	a := newItem("alice", domain.KindArticle)
	b := newItem("alice", domain.KindNote)
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))

	items, err := repo.GetByIDs(ctx, []string{a.ID, "vanished", b.ID})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = repo.GetByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestContentRepositoryCountByStatus(t *testing.T) {
	repo := NewContentRepository(newTestDB(t))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, repo.Create(ctx, newItem("alice", domain.KindArticle)))
	}
	done := newItem("alice", domain.KindNote)
	done.Status = domain.StatusCompleted
	require.NoError(t, repo.Create(ctx, done))

	n, err := repo.CountByStatus(ctx, "alice", domain.StatusPending)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = repo.CountByStatus(ctx, "alice", domain.StatusCompleted)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
