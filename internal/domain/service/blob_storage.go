package service

import "context"

// BlobStorage stores uploaded photos and documents.
type BlobStorage interface {
	// Upload writes data at path and returns a URL clients can fetch it from.
	Upload(ctx context.Context, path string, data []byte, contentType string) (url string, err error)

	// Close releases the underlying bucket.
	Close() error
}
