package documents

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const documentColumns = `id, user_id, file_name, original_filename, mime_type, size_bytes, storage_provider, storage_key, extracted_text_key, extracted_at, created_at`

// Create inserts a new document.
func (r *PGRepo) Create(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO documents (
    id, user_id, file_name, original_filename, mime_type, size_bytes,
    storage_provider, storage_key, extracted_text_key, extracted_at, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	originalName := doc.OriginalFilename
	if originalName == "" {
		originalName = doc.FileName
	}
	provider := doc.StorageProvider
	if provider == "" {
		provider = "local"
	}

	_, err := r.DB.ExecContext(ctx, query,
		doc.ID,
		doc.UserID,
		doc.FileName,
		originalName,
		doc.MimeType,
		doc.SizeBytes,
		provider,
		nullString(doc.StorageKey),
		nullString(doc.ExtractedTextKey),
		nullTime(doc.ExtractedAt),
		doc.CreatedAt,
	)
	return err
}

// GetByID fetches a document by ID for a user.
func (r *PGRepo) GetByID(ctx context.Context, userID, documentID string) (Document, error) {
	const query = `
SELECT ` + documentColumns + `
FROM documents
WHERE user_id = $1 AND id = $2 AND deleted_at IS NULL
LIMIT 1`
	return r.scanOne(r.DB.QueryRowContext(ctx, query, userID, documentID))
}

// GetCurrentByUser returns the latest document for a user.
func (r *PGRepo) GetCurrentByUser(ctx context.Context, userID string) (Document, error) {
	const query = `
SELECT ` + documentColumns + `
FROM documents
WHERE user_id = $1 AND deleted_at IS NULL
ORDER BY created_at DESC
LIMIT 1`
	return r.scanOne(r.DB.QueryRowContext(ctx, query, userID))
}

// ListByUser lists documents ordered newest-first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Document, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
SELECT ` + documentColumns + `
FROM documents
WHERE user_id = $1 AND deleted_at IS NULL
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// UpdateExtraction stores the extracted text location for a document; the
// first recorded extraction wins.
func (r *PGRepo) UpdateExtraction(ctx context.Context, userID, documentID, extractedKey string, extractedAt time.Time) error {
	const query = `
UPDATE documents
SET extracted_text_key = $1, extracted_at = $2
WHERE user_id = $3 AND id = $4 AND extracted_text_key IS NULL`
	_, err := r.DB.ExecContext(ctx, query, extractedKey, extractedAt, userID, documentID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PGRepo) scanOne(row rowScanner) (Document, error) {
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var originalName, storageProvider, storageKey, extractedKey sql.NullString
	var extractedAt sql.NullTime
	if err := row.Scan(
		&doc.ID,
		&doc.UserID,
		&doc.FileName,
		&originalName,
		&doc.MimeType,
		&doc.SizeBytes,
		&storageProvider,
		&storageKey,
		&extractedKey,
		&extractedAt,
		&doc.CreatedAt,
	); err != nil {
		return Document{}, err
	}
	doc.OriginalFilename = originalName.String
	doc.StorageProvider = storageProvider.String
	doc.StorageKey = storageKey.String
	doc.ExtractedTextKey = extractedKey.String
	if extractedAt.Valid {
		doc.ExtractedAt = &extractedAt.Time
	}
	return doc, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

var _ Repo = (*PGRepo)(nil)
