package documents

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGRepoCreateInsertsStorageAndExtractionFields(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	extractedAt := time.Now().UTC()
	doc := Document{
		ID:               "doc-1",
		UserID:           "user-1",
		FileName:         "resume.pdf",
		MimeType:         "application/pdf",
		SizeBytes:        2048,
		StorageKey:       "abc/resume.pdf",
		ExtractedTextKey: "abc/resume.pdf.extracted.txt",
		ExtractedAt:      &extractedAt,
		CreatedAt:        time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO documents").
		WithArgs(
			doc.ID,
			doc.UserID,
			doc.FileName,
			doc.FileName, // original filename defaults to FileName
			doc.MimeType,
			doc.SizeBytes,
			"local", // provider defaults to local
			doc.StorageKey,
			doc.ExtractedTextKey,
			extractedAt,
			doc.CreatedAt,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), doc); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByIDScansDocument(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	createdAt := time.Now().UTC()

	rows := sqlmock.NewRows([]string{
		"id", "user_id", "file_name", "original_filename", "mime_type", "size_bytes",
		"storage_provider", "storage_key", "extracted_text_key", "extracted_at", "created_at",
	}).AddRow(
		"doc-1", "user-1", "resume.pdf", "resume.pdf", "application/pdf", int64(2048),
		"local", "abc/resume.pdf", nil, nil, createdAt,
	)

	mock.ExpectQuery("SELECT (.+) FROM documents").
		WithArgs("user-1", "doc-1").
		WillReturnRows(rows)

	doc, err := repo.GetByID(context.Background(), "user-1", "doc-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if doc.ID != "doc-1" {
		t.Fatalf("expected doc-1, got %s", doc.ID)
	}
	if doc.ExtractedTextKey != "" {
		t.Fatalf("expected empty extracted key, got %q", doc.ExtractedTextKey)
	}
	if doc.ExtractedAt != nil {
		t.Fatalf("expected nil ExtractedAt, got %v", doc.ExtractedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}

	rows := sqlmock.NewRows([]string{
		"id", "user_id", "file_name", "original_filename", "mime_type", "size_bytes",
		"storage_provider", "storage_key", "extracted_text_key", "extracted_at", "created_at",
	})

	mock.ExpectQuery("SELECT (.+) FROM documents").
		WithArgs("user-1", "missing").
		WillReturnRows(rows)

	_, err = repo.GetByID(context.Background(), "user-1", "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoUpdateExtractionOnlyFillsEmpty(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	at := time.Now().UTC()

	mock.ExpectExec("UPDATE documents").
		WithArgs("abc/resume.pdf.extracted.txt", at, "user-1", "doc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateExtraction(context.Background(), "user-1", "doc-1", "abc/resume.pdf.extracted.txt", at); err != nil {
		t.Fatalf("UpdateExtraction: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
