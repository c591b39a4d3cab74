package interfaces

import "context"

// StorageService is a raw blob backend.
type StorageService interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	GetPublicURL(key string) string
}

// AttachmentStore persists attachment bytes under write-once keys.
type AttachmentStore interface {
	Put(ctx context.Context, originalFilename, contentType string, data []byte) (string, error)
	Get(ctx context.Context, storageKey string) ([]byte, error)
	// Delete removes a blob written by Put. Unknown keys are not an error.
	Delete(ctx context.Context, storageKey string) error
}
