package interfaces

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned when a key is not found in the key/value store
var ErrKeyNotFound = errors.New("key not found")

// ErrRevisionMismatch is returned by CompareAndSwap when the stored revision differs from the expected one
var ErrRevisionMismatch = errors.New("revision mismatch")

// KeyValuePair represents a single key/value pair with metadata.
// Revision starts at 1 on first write and increases by one on every write.
type KeyValuePair struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Revision  uint64    `json:"revision"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// KeyValueStorage defines operations for generic key/value storage
type KeyValueStorage interface {
	// Get retrieves a value by key, returns ErrKeyNotFound if missing
	Get(ctx context.Context, key string) (string, error)

	// GetPair retrieves a full KeyValuePair (including revision) by key
	GetPair(ctx context.Context, key string) (*KeyValuePair, error)

	// Set writes a value unconditionally
	Set(ctx context.Context, key string, value string) error

	// CompareAndSwap writes value only if the stored revision equals expectedRevision.
	// An expectedRevision of 0 means the key must not exist yet.
	// Returns the new revision, or ErrRevisionMismatch if another writer got there first.
	CompareAndSwap(ctx context.Context, key string, value string, expectedRevision uint64) (uint64, error)

	// Delete removes a key/value pair, returns ErrKeyNotFound if missing
	Delete(ctx context.Context, key string) error

	// ListKeys returns all keys starting with prefix, in no particular order
	ListKeys(ctx context.Context, prefix string) ([]string, error)
}
