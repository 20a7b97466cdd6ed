package storage

import (
	"context"
	"io"
)

// BlobStore persists uploaded scan images and hands back an opaque key the
// record store keeps as image_path.
type BlobStore interface {
	Save(ctx context.Context, originalName string, r io.Reader) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
