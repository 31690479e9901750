// Package store defines the Item Store and Blob Store contracts shared by the
// SQL, filesystem, S3 and in-memory backends.
package store

import (
	"context"
	"errors"
	"io"

	"github.com/Project-Sylos/Mirage/internal/types"
)

var (
	// ErrNotFound is returned when an item or blob does not exist
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write collides with existing state
	ErrConflict = errors.New("conflict")

	// ErrInvalidOffset is returned by WriteAt for a negative offset or a
	// write whose end does not fit in an int64
	ErrInvalidOffset = errors.New("invalid offset")
)

// ItemStore persists the item tree keyed by opaque ids.
type ItemStore interface {
	GetItem(ctx context.Context, id string) (*types.Item, error)

	// GetChildren returns the direct children of parentID ordered by type, name
	GetChildren(ctx context.Context, parentID string) ([]*types.Item, error)

	GetItemsByType(ctx context.Context, itemType string) ([]*types.Item, error)

	// UpsertItem inserts the item or replaces the row with the same id
	UpsertItem(ctx context.Context, item *types.Item) error

	DeleteItem(ctx context.Context, id string) error

	// Stats returns item counts per type
	Stats(ctx context.Context) (*types.StoreStats, error)

	// Reset removes every item
	Reset(ctx context.Context) error

	Close() error
}

// BlobStore stores byte content by logical slash-separated path.
type BlobStore interface {
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write replaces the blob at path
	Write(ctx context.Context, path string, r io.Reader) (int64, error)

	// WriteAt writes data at offset, growing the blob (zero-filled) as needed.
	// Creates the blob if it does not exist.
	WriteAt(ctx context.Context, path string, data []byte, offset int64) error

	// Delete removes the blob. A missing blob is not an error.
	Delete(ctx context.Context, path string) error

	// Move renames src to dst, replacing dst
	Move(ctx context.Context, src, dst string) error

	Exists(ctx context.Context, path string) (bool, error)

	// Reset removes every blob
	Reset(ctx context.Context) error

	Close() error
}
