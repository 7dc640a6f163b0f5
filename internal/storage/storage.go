package storage

import (
	"context"
	"time"
)

// ObjectInfo represents metadata for a remote file/object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ExtensionStore captures the minimal S3 operations the demo pipeline needs.
type ExtensionStore interface {
	EnsureBucket(ctx context.Context) error
	Upload(ctx context.Context, localPath string) (Locator, error)
	Verify(ctx context.Context, loc Locator, wantSize int64) error
	ListExtensions(ctx context.Context) ([]ObjectInfo, error)
	CleanupOld(ctx context.Context, keepLatest int) error
}
