// Package blobstore provides a narrow client for a remote blob namespace
// keyed by path strings. The GCS backend is used in production; the local
// backend serves development and tests.
package blobstore

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("blobstore: object not found")

// Store is the only surface through which session state reaches durable
// storage. All writes are whole-object overwrites.
type Store interface {
	// Get returns the full content of the object at path, or ErrNotFound.
	Get(ctx context.Context, path string) ([]byte, error)
	// Put overwrites the object at path with content.
	Put(ctx context.Context, path string, content []byte, contentType string) error
	// List returns the paths of all objects under prefix, in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
	// Delete removes the object at path. Missing objects return ErrNotFound.
	Delete(ctx context.Context, path string) error
	// Exists reports whether an object is present at path.
	Exists(ctx context.Context, path string) (bool, error)
}
