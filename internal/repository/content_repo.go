package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/feliks/curio/internal/domain"
	"gorm.io/gorm"
)

// ContentRepository handles content item persistence.
type ContentRepository struct {
	db *gorm.DB
}

// NewContentRepository creates a new ContentRepository.
func NewContentRepository(db *gorm.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

// Create inserts a new content item.
func (r *ContentRepository) Create(ctx context.Context, item *domain.ContentItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// GetByID retrieves a content item by its ID.
// Returns domain.ErrNotFound if no record exists.
func (r *ContentRepository) GetByID(ctx context.Context, id string) (*domain.ContentItem, error) {
	var item domain.ContentItem
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

// GetOwned retrieves a content item by ID scoped to its owner.
// A foreign-owned item is indistinguishable from a missing one.
func (r *ContentRepository) GetOwned(ctx context.Context, userID, id string) (*domain.ContentItem, error) {
	var item domain.ContentItem
	if err := r.db.WithContext(ctx).First(&item, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

// ListByOwner retrieves content items for a user, optionally filtered by kind,
// newest first.
func (r *ContentRepository) ListByOwner(ctx context.Context, userID string, kind domain.ContentKind, limit, offset int) ([]domain.ContentItem, error) {
	var items []domain.ContentItem
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}
	if err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// GetByIDs retrieves content items by a list of IDs. Missing ids are simply
// absent from the result.
func (r *ContentRepository) GetByIDs(ctx context.Context, ids []string) ([]domain.ContentItem, error) {
	if len(ids) == 0 {
		return []domain.ContentItem{}, nil
	}
	var items []domain.ContentItem
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to get content by IDs: %w", err)
	}
	return items, nil
}

// UpdateStatus transitions the processing status of an item, writing the
// processing error alongside it. Unrelated fields are left untouched.
func (r *ContentRepository) UpdateStatus(ctx context.Context, id string, status domain.ProcessingStatus, processingError string) error {
	return r.db.WithContext(ctx).Model(&domain.ContentItem{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":           status,
			"processing_error": processingError,
		}).Error
}

// UpdateExtraction writes the extraction result and marks the item completed.
func (r *ContentRepository) UpdateExtraction(ctx context.Context, id, text string, meta domain.JSONMap) error {
	return r.db.WithContext(ctx).Model(&domain.ContentItem{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"extracted_text":   text,
			"extraction_meta":  meta,
			"status":           domain.StatusCompleted,
			"processing_error": "",
		}).Error
}

// UpdateFields applies a partial update without clobbering unrelated fields.
func (r *ContentRepository) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&domain.ContentItem{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// Delete removes a content item scoped to its owner.
// Returns domain.ErrNotFound if nothing was deleted.
func (r *ContentRepository) Delete(ctx context.Context, userID, id string) error {
	res := r.db.WithContext(ctx).Delete(&domain.ContentItem{}, "id = ? AND user_id = ?", id, userID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CountByStatus counts a user's content items in the given status.
func (r *ContentRepository) CountByStatus(ctx context.Context, userID string, status domain.ProcessingStatus) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.ContentItem{}).
		Where("user_id = ? AND status = ?", userID, status).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
