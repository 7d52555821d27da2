package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// ContentKind identifies what sort of reference a content item holds.
// The kind is immutable after creation.
type ContentKind string

const (
	KindVideo   ContentKind = "video"
	KindArticle ContentKind = "article"
	KindSocial  ContentKind = "social"
	KindNote    ContentKind = "note"
)

// ValidKind reports whether k is one of the supported content kinds.
func ValidKind(k ContentKind) bool {
	switch k {
	case KindVideo, KindArticle, KindSocial, KindNote:
		return true
	}
	return false
}

// ProcessingStatus represents where a content item sits in the extraction
// pipeline. Notes are created directly in StatusCompleted; every other kind
// starts at StatusPending.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// StringArray stores a string slice as JSON text in the database.
type StringArray []string

// Value implements the driver.Valuer interface for database serialization.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = StringArray{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan StringArray")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, a)
}

// JSONMap stores free-form metadata as JSON text in the database.
type JSONMap map[string]interface{}

// Value implements the driver.Valuer interface for database serialization.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan JSONMap")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, m)
}

// ContentItem is a saved reference owned by a single user, together with its
// extracted text and processing status.
type ContentItem struct {
	ID              string           `gorm:"type:text;primaryKey" json:"id"`
	UserID          string           `gorm:"type:text;not null;index:idx_content_user" json:"user_id"`
	Kind            ContentKind      `gorm:"type:text;not null;index:idx_content_kind" json:"kind"`
	SourceLink      string           `gorm:"type:text" json:"source_link,omitempty"`
	Title           string           `gorm:"type:text" json:"title,omitempty"`
	UserDescription string           `gorm:"type:text" json:"user_description,omitempty"`
	ExtractedText   string           `gorm:"type:text" json:"extracted_text,omitempty"`
	ExtractionMeta  JSONMap          `gorm:"type:text" json:"extraction_metadata,omitempty"`
	Tags            StringArray      `gorm:"type:text" json:"tags"`
	Status          ProcessingStatus `gorm:"type:text;index:idx_content_status;default:pending" json:"processing_status"`
	ProcessingError string           `gorm:"type:text" json:"processing_error,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// TableName returns the database table name for ContentItem.
func (ContentItem) TableName() string {
	return "content_items"
}

// RequiresExtraction reports whether the item needs to pass through the
// background extraction pipeline. Notes are completed synchronously.
func (c *ContentItem) RequiresExtraction() bool {
	return c.Kind != KindNote
}

// ContentSearchResult is a content item paired with a similarity score.
type ContentSearchResult struct {
	ContentItem
	Score float32 `json:"relevance_score"`
}
