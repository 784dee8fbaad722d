package objectstore

import (
	"context"
	"time"

	pkgerrors "github.com/yungbote/docreview-backend/internal/pkg/errors"
)

// ErrNotFound is returned (wrapped) when a key does not exist.
var ErrNotFound = pkgerrors.ErrNotFound

type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

type ObjectAttrs struct {
	Key         string
	Size        int64
	ContentType string
	Updated     time.Time
	ETag        string
	Metadata    map[string]string
}

// Store is the key/value blob storage the review engine reads documents from and writes versions to.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, string, error)
	Put(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) error
	ListByPrefix(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Head(ctx context.Context, key string) (*ObjectAttrs, error)
}
