package storage

import "context"

// BlobStore is the narrow boundary to durable attachment storage. The
// messaging core only persists the returned path, never the bytes.
type BlobStore interface {
	Store(ctx context.Context, key, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, path string) error
}
