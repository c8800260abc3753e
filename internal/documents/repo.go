package documents

import (
	"context"
	"time"
)

// Repo defines persistence operations for documents. All lookups are scoped
// to the owning user.
type Repo interface {
	Create(ctx context.Context, doc Document) error
	GetByID(ctx context.Context, userID, documentID string) (Document, error)
	GetCurrentByUser(ctx context.Context, userID string) (Document, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Document, error)
	UpdateExtraction(ctx context.Context, userID, documentID, extractedKey string, extractedAt time.Time) error
}
