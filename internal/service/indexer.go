package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/feliks/curio/internal/domain"
	"github.com/feliks/curio/internal/logger"
	"github.com/feliks/curio/internal/repository"
)

// VectorIndex is the secondary-index surface the propagator writes to.
// Satisfied by repository.QdrantRepository.
type VectorIndex interface {
	Upsert(ctx context.Context, pointID string, vector []float32, payload *repository.ContentPayload) error
	Delete(ctx context.Context, pointID string) error
	Search(ctx context.Context, vector []float32, topK int, filters *repository.SearchFilters) ([]repository.SearchResult, error)
}

// Indexer keeps the vector index eventually consistent with the content
// store. All single-item propagation is fire-and-forget: the caller's
// primary-store write is complete before propagation runs, and propagation
// failures are logged, never retried, never surfaced. ReindexAll is the
// repair path for drift.
type Indexer struct {
	repo      *repository.ContentRepository
	vectors   VectorIndex
	embedding EmbeddingProvider
	logger    *logger.Logger

	// indexedChars bounds the extracted-text prefix in searchable text.
	indexedChars int

	wg sync.WaitGroup
}

// IndexerConfig holds indexer tunables.
type IndexerConfig struct {
	IndexedChars int
}

// NewIndexer creates an Indexer.
func NewIndexer(
	repo *repository.ContentRepository,
	vectors VectorIndex,
	embedding EmbeddingProvider,
	log *logger.Logger,
	cfg *IndexerConfig,
) *Indexer {
	indexedChars := 2000
	if cfg != nil && cfg.IndexedChars > 0 {
		indexedChars = cfg.IndexedChars
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &Indexer{
		repo:         repo,
		vectors:      vectors,
		embedding:    embedding,
		logger:       log,
		indexedChars: indexedChars,
	}
}

// IndexAsync embeds the item's searchable text and upserts its vector record
// in the background.
func (ix *Indexer) IndexAsync(item *domain.ContentItem) {
	snapshot := *item
	ix.wg.Add(1)
	go func() {
		defer ix.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := ix.index(ctx, &snapshot); err != nil {
			ix.logger.WithFields(logger.Fields{
				logger.FieldContentID: snapshot.ID,
				logger.FieldUserID:    snapshot.UserID,
			}).WithError(err).Error("vector index propagation failed")
		}
	}()
}

// ReindexAsync removes then re-upserts the item's vector record in the
// background. Used after extraction completes or the item is edited.
func (ix *Indexer) ReindexAsync(item *domain.ContentItem) {
	snapshot := *item
	ix.wg.Add(1)
	go func() {
		defer ix.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := ix.vectors.Delete(ctx, snapshot.ID); err != nil {
			ix.logger.WithFields(logger.Fields{
				logger.FieldContentID: snapshot.ID,
			}).WithError(err).Warn("vector delete before reindex failed")
		}
		if err := ix.index(ctx, &snapshot); err != nil {
			ix.logger.WithFields(logger.Fields{
				logger.FieldContentID: snapshot.ID,
				logger.FieldUserID:    snapshot.UserID,
			}).WithError(err).Error("vector reindex propagation failed")
		}
	}()
}

// DeleteAsync removes the item's vector record in the background.
func (ix *Indexer) DeleteAsync(contentID string) {
	ix.wg.Add(1)
	go func() {
		defer ix.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := ix.vectors.Delete(ctx, contentID); err != nil {
			ix.logger.WithFields(logger.Fields{
				logger.FieldContentID: contentID,
			}).WithError(err).Error("vector delete propagation failed")
		}
	}()
}

// Flush waits for in-flight propagations. Used on shutdown and in tests.
func (ix *Indexer) Flush() {
	ix.wg.Wait()
}

// ReindexAllResult reports a bulk repair run.
type ReindexAllResult struct {
	Indexed int `json:"indexed"`
	Failed  int `json:"failed"`
}

// ReindexAll rebuilds the vector record of every content item the user owns.
// Synchronous by design: it is an operator-facing repair path.
func (ix *Indexer) ReindexAll(ctx context.Context, userID string) (*ReindexAllResult, error) {
	const pageSize = 200

	result := &ReindexAllResult{}
	offset := 0
	for {
		items, err := ix.repo.ListByOwner(ctx, userID, "", pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to list content for reindex: %w", err)
		}
		if len(items) == 0 {
			break
		}

		for i := range items {
			if err := ix.index(ctx, &items[i]); err != nil {
				result.Failed++
				ix.logger.WithFields(logger.Fields{
					logger.FieldContentID: items[i].ID,
				}).WithError(err).Warn("reindex failed for item")
				continue
			}
			result.Indexed++
		}

		if len(items) < pageSize {
			break
		}
		offset += pageSize
	}

	logger.With(logger.Fields{
		logger.FieldCount: result.Indexed,
		"failed":          result.Failed,
	}).Info(ctx, "Reindex completed for user %s", userID)

	return result, nil
}

func (ix *Indexer) index(ctx context.Context, item *domain.ContentItem) error {
	text := ix.searchableText(item)

	vector, err := ix.embedding.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("failed to embed searchable text: %w", err)
	}

	payload := &repository.ContentPayload{
		ContentID:  item.ID,
		UserID:     item.UserID,
		Kind:       string(item.Kind),
		Title:      item.Title,
		SourceLink: item.SourceLink,
		Tags:       item.Tags,
	}

	if err := ix.vectors.Upsert(ctx, item.ID, vector, payload); err != nil {
		return fmt.Errorf("failed to upsert vector: %w", err)
	}
	return nil
}

// searchableText composes the block of text that gets embedded: title, kind,
// description, a bounded prefix of the extracted text, and tag names. When no
// extraction exists yet, the raw description carries the search signal.
func (ix *Indexer) searchableText(item *domain.ContentItem) string {
	var sb strings.Builder

	if item.Title != "" {
		sb.WriteString(item.Title)
		sb.WriteString("\n")
	}
	sb.WriteString(string(item.Kind))
	sb.WriteString("\n")
	if item.UserDescription != "" {
		sb.WriteString(item.UserDescription)
		sb.WriteString("\n")
	}
	if item.ExtractedText != "" {
		sb.WriteString(clip(item.ExtractedText, ix.indexedChars))
		sb.WriteString("\n")
	}
	if len(item.Tags) > 0 {
		sb.WriteString(strings.Join(item.Tags, " "))
	}

	return strings.TrimSpace(sb.String())
}
