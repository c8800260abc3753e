package object

import (
	"context"
	"io"
)

// ObjectStore defines the contract for saving and retrieving binary objects.
// Save namespaces the object under the owning user and picks a collision-free
// key; SaveWithKey writes to an exact key the caller controls.
type ObjectStore interface {
	Save(ctx context.Context, userID string, fileName string, r io.Reader) (storageKey string, sizeBytes int64, mimeType string, err error)
	SaveWithKey(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
}
