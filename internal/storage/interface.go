package storage

import (
	"context"
	"io"
)

// SnapshotStore archives raw fetched pages so the UI can offer a "view
// original" even after the source link rots. It is strictly best-effort
// infrastructure: the primary store never depends on it.
type SnapshotStore interface {
	// Put stores a snapshot under key.
	Put(ctx context.Context, key string, body []byte, contentType string) error

	// Get retrieves a snapshot by key.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes a snapshot by key.
	Delete(ctx context.Context, key string) error

	// Exists checks whether a snapshot exists.
	Exists(ctx context.Context, key string) (bool, error)
}
