package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/feliks/curio/internal/domain"
	"github.com/feliks/curio/internal/extract"
	"github.com/feliks/curio/internal/logger"
	"github.com/feliks/curio/internal/repository"
	"github.com/feliks/curio/internal/storage"
	"github.com/google/uuid"
)

// ContentService owns the lifecycle of content items: creation, edits,
// deletion and reprocessing. Extraction itself happens on the worker; this
// service only ever enqueues.
type ContentService struct {
	repo    *repository.ContentRepository
	worker  *Worker
	indexer *Indexer
	snaps   storage.SnapshotStore
	logger  *logger.Logger
}

// NewContentService creates a ContentService. snaps may be nil, which
// disables snapshot retrieval.
func NewContentService(
	repo *repository.ContentRepository,
	worker *Worker,
	indexer *Indexer,
	snaps storage.SnapshotStore,
	log *logger.Logger,
) *ContentService {
	if log == nil {
		log = logger.GetDefault()
	}
	return &ContentService{
		repo:    repo,
		worker:  worker,
		indexer: indexer,
		snaps:   snaps,
		logger:  log,
	}
}

// CreateRequest carries the fields of a new content item.
type CreateRequest struct {
	Kind            domain.ContentKind `json:"kind" binding:"required"`
	SourceLink      string             `json:"source_link"`
	Title           string             `json:"title"`
	UserDescription string             `json:"user_description"`
	Tags            []string           `json:"tags"`
}

// Create validates and persists a new content item. Notes complete
// synchronously with the description as their text; every other kind starts
// pending and is queued for extraction.
func (s *ContentService) Create(ctx context.Context, userID string, req *CreateRequest) (*domain.ContentItem, error) {
	if userID == "" {
		return nil, domain.NewValidationError("user_id", "required")
	}
	if !domain.ValidKind(req.Kind) {
		return nil, domain.NewValidationError("kind", "must be one of video, article, social, note")
	}
	link := strings.TrimSpace(req.SourceLink)
	if req.Kind != domain.KindNote && link == "" {
		return nil, domain.NewValidationError("source_link", "required unless kind is note")
	}
	if req.Kind == domain.KindNote && strings.TrimSpace(req.UserDescription) == "" {
		return nil, domain.NewValidationError("user_description", "required for notes")
	}

	item := &domain.ContentItem{
		ID:              uuid.New().String(),
		UserID:          userID,
		Kind:            req.Kind,
		SourceLink:      link,
		Title:           strings.TrimSpace(req.Title),
		UserDescription: strings.TrimSpace(req.UserDescription),
		Tags:            req.Tags,
		Status:          domain.StatusPending,
	}

	if item.Kind == domain.KindNote {
		item.Status = domain.StatusCompleted
		item.ExtractedText = item.UserDescription
		item.ExtractionMeta = domain.JSONMap{"extraction_method": "note"}
	}

	if err := s.repo.Create(ctx, item); err != nil {
		return nil, err
	}

	logger.CtxInfo(ctx, "Content created: id=%s, kind=%s, status=%s",
		item.ID, item.Kind, item.Status)

	if item.RequiresExtraction() {
		s.worker.Enqueue(domain.QueueEntry{
			ContentID:       item.ID,
			UserID:          item.UserID,
			Kind:            item.Kind,
			SourceLink:      item.SourceLink,
			UserDescription: item.UserDescription,
		})
	} else {
		// Notes are searchable immediately.
		s.indexer.IndexAsync(item)
	}

	return item, nil
}

// Get retrieves a content item scoped to its owner.
func (s *ContentService) Get(ctx context.Context, userID, id string) (*domain.ContentItem, error) {
	return s.repo.GetOwned(ctx, userID, id)
}

// List retrieves a user's content items, optionally filtered by kind.
func (s *ContentService) List(ctx context.Context, userID string, kind domain.ContentKind, limit, offset int) ([]domain.ContentItem, error) {
	if kind != "" && !domain.ValidKind(kind) {
		return nil, domain.NewValidationError("kind", "unknown content kind")
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByOwner(ctx, userID, kind, limit, offset)
}

// UpdateRequest carries the mutable fields of a content item. Nil pointers
// leave the field untouched; kind and source link are immutable.
type UpdateRequest struct {
	Title           *string   `json:"title"`
	UserDescription *string   `json:"user_description"`
	Tags            *[]string `json:"tags"`
}

// Update applies a partial edit and re-propagates the item to the vector
// index.
func (s *ContentService) Update(ctx context.Context, userID, id string, req *UpdateRequest) (*domain.ContentItem, error) {
	item, err := s.repo.GetOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if req.Title != nil {
		fields["title"] = strings.TrimSpace(*req.Title)
	}
	if req.UserDescription != nil {
		fields["user_description"] = strings.TrimSpace(*req.UserDescription)
	}
	if req.Tags != nil {
		fields["tags"] = domain.StringArray(*req.Tags)
	}
	if len(fields) == 0 {
		return item, nil
	}

	if err := s.repo.UpdateFields(ctx, id, fields); err != nil {
		return nil, err
	}

	updated, err := s.repo.GetOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	s.indexer.ReindexAsync(updated)
	return updated, nil
}

// Delete removes a content item, its vector record, and any archived page
// snapshot.
func (s *ContentService) Delete(ctx context.Context, userID, id string) error {
	item, err := s.repo.GetOwned(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return err
	}

	logger.CtxInfo(ctx, "Content deleted: id=%s", id)

	s.indexer.DeleteAsync(id)

	if s.snaps != nil {
		if key := metaString(item.ExtractionMeta, extract.MetaSnapshotKey); key != "" {
			if err := s.snaps.Delete(ctx, key); err != nil {
				logger.CtxWarn(ctx, "Snapshot delete failed: key=%s error=%v", key, err)
			}
		}
	}
	return nil
}

// Snapshot returns the archived original page for an item. The caller owns
// the returned reader.
func (s *ContentService) Snapshot(ctx context.Context, userID, id string) (io.ReadCloser, error) {
	if s.snaps == nil {
		return nil, domain.ErrNotFound
	}

	item, err := s.repo.GetOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	key := metaString(item.ExtractionMeta, extract.MetaSnapshotKey)
	if key == "" {
		return nil, domain.ErrNotFound
	}

	ok, err := s.snaps.Exists(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to check snapshot %q: %w", key, err)
	}
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s.snaps.Get(ctx, key)
}

// Reprocess resets a completed or failed item to pending and queues it with
// a fresh retry budget. Rejected while an extraction is in flight, and for
// notes, which never extract.
func (s *ContentService) Reprocess(ctx context.Context, userID, id string) (*domain.ContentItem, error) {
	item, err := s.repo.GetOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if item.Kind == domain.KindNote {
		return nil, domain.ErrInvalidKind
	}
	if item.Status == domain.StatusProcessing {
		return nil, domain.ErrAlreadyProcessing
	}

	if err := s.repo.UpdateStatus(ctx, id, domain.StatusPending, ""); err != nil {
		return nil, err
	}
	item.Status = domain.StatusPending
	item.ProcessingError = ""

	logger.CtxInfo(ctx, "Content queued for reprocessing: id=%s", id)

	s.worker.Enqueue(domain.QueueEntry{
		ContentID:       item.ID,
		UserID:          item.UserID,
		Kind:            item.Kind,
		SourceLink:      item.SourceLink,
		UserDescription: item.UserDescription,
	})

	return item, nil
}

// QueueStatus reports the state of the ingestion queue.
func (s *ContentService) QueueStatus() domain.QueueStatus {
	return s.worker.Status()
}
