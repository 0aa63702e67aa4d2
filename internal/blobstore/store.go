// Package blobstore is the durability substrate for cached consultas: a flat
// key/value object store that can list keys by prefix.
package blobstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("blobstore: object not found")

// ObjectInfo describes a stored object without its payload.
type ObjectInfo struct {
	Key         string
	CreatedAt   time.Time
	Size        int64
	ContentType string
	// Metadata is whatever the backend returns from a listing. Backends that
	// cannot list metadata cheaply (S3) leave it nil.
	Metadata map[string]string
}

// Object is a payload ready to be written.
type Object struct {
	Key         string
	ContentType string
	Metadata    map[string]string
	Payload     []byte
}

// Store is implemented by the memory (dev/tests), redis, s3 and gcs backends.
//
// No transactional guarantees are assumed. Implementations must be safe for
// concurrent use.
type Store interface {
	// List returns objects whose key starts with prefix. A limit <= 0 lists
	// everything; otherwise at most limit entries are returned.
	List(ctx context.Context, prefix string, limit int) ([]ObjectInfo, error)

	// Get returns the payload stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put writes obj. Existing keys are replaced, callers avoid that by
	// deriving unique keys.
	Put(ctx context.Context, obj Object) error

	// Delete removes keys and reports how many were removed.
	Delete(ctx context.Context, keys []string) (int, error)
}
