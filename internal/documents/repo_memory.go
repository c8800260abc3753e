package documents

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repo used when no database is configured.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string][]Document // userID -> documents, insertion order
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string][]Document)}
}

// Create appends a document for its owner.
func (r *MemoryRepo) Create(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[doc.UserID] = append(r.data[doc.UserID], doc)
	return nil
}

// GetByID returns a document by ID for a user.
func (r *MemoryRepo) GetByID(ctx context.Context, userID, documentID string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	docs := r.data[userID]
	for i := range docs {
		if docs[i].ID == documentID {
			return docs[i], nil
		}
	}
	return Document{}, ErrNotFound
}

// GetCurrentByUser returns the most recently uploaded document for a user.
func (r *MemoryRepo) GetCurrentByUser(ctx context.Context, userID string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	docs := r.data[userID]
	if len(docs) == 0 {
		return Document{}, ErrNotFound
	}
	return docs[len(docs)-1], nil
}

// ListByUser returns documents for a user, newest first, honoring limit and
// offset.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}

	r.mu.RLock()
	userDocs := r.data[userID]
	r.mu.RUnlock()

	if len(userDocs) == 0 || offset >= len(userDocs) {
		return []Document{}, nil
	}

	docs := make([]Document, len(userDocs))
	copy(docs, userDocs)
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})

	end := len(docs)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return docs[offset:end], nil
}

// UpdateExtraction records where the extracted text of a document was
// stored. First write wins; repeated extraction keeps the original key.
func (r *MemoryRepo) UpdateExtraction(ctx context.Context, userID, documentID, extractedKey string, extractedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	docs := r.data[userID]
	for i := range docs {
		if docs[i].ID == documentID {
			if docs[i].ExtractedTextKey == "" {
				docs[i].ExtractedTextKey = extractedKey
				docs[i].ExtractedAt = &extractedAt
				r.data[userID] = docs
			}
			return nil
		}
	}
	return ErrNotFound
}

var _ Repo = (*MemoryRepo)(nil)
