package storage

import (
	"context"
	"io"
)

// ObjectStore holds user uploaded media (avatar photos) and recognises URLs it issued.
type ObjectStore interface {
	Put(ctx context.Context, name string, r io.Reader, contentType string) (string, error)
	IsOwnedURL(url string) bool
}
