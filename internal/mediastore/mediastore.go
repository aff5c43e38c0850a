// Package mediastore holds the captured meal images referenced by saved
// meals.
package mediastore

import (
	"context"
	"io"
)

type MediaStore interface {
	// Save stores the image and returns its storage key.
	Save(ctx context.Context, prefix, mimeType string, r io.Reader) (storageKey string, err error)
	// Get returns the image bytes and MIME type for a storage key.
	Get(ctx context.Context, storageKey string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, storageKey string) error
}
