package documents

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"resume-optimizer/internal/extract"
	"resume-optimizer/internal/shared/storage/object"
	"resume-optimizer/internal/shared/telemetry"
)

// Service contains business logic for documents: saving uploads, extracting
// their text, and serving both back to the optimization features.
type Service struct {
	Store           object.ObjectStore
	Repo            Repo
	StorageProvider string
}

// Upload saves the file, extracts its text, and records the document. The
// upload fails when no text can be pulled out of the file, since a document
// the pipeline cannot read is useless to every downstream feature.
func (s *Service) Upload(ctx context.Context, userID, fileName string, r io.Reader) (Document, error) {
	if strings.TrimSpace(fileName) == "" {
		return Document{}, fmt.Errorf("%w: file name is required", ErrInvalidInput)
	}
	if userID == "" {
		return Document{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	storageKey, size, mimeType, err := s.Store.Save(ctx, userID, fileName, r)
	if err != nil {
		return Document{}, err
	}

	text, err := extract.ExtractText(ctx, s.Store, storageKey, mimeType, fileName)
	if err != nil {
		if strings.Contains(err.Error(), "unsupported mime") {
			return Document{}, fmt.Errorf("%w: %s", ErrUnsupportedType, mimeType)
		}
		return Document{}, err
	}
	if strings.TrimSpace(text) == "" {
		return Document{}, ErrNoTextContent
	}

	now := time.Now().UTC()
	doc := Document{
		ID:               uuid.NewString(),
		UserID:           userID,
		FileName:         fileName,
		OriginalFilename: fileName,
		MimeType:         mimeType,
		SizeBytes:        size,
		StorageProvider:  s.provider(),
		StorageKey:       storageKey,
		ExtractedTextKey: extract.ExtractedKey(storageKey),
		ExtractedAt:      &now,
		CreatedAt:        now,
	}

	if err := s.Repo.Create(ctx, doc); err != nil {
		return Document{}, err
	}

	telemetry.Info("document.uploaded", map[string]any{
		"document_id": doc.ID,
		"user_id":     userID,
		"mime_type":   mimeType,
		"size_bytes":  size,
		"text_len":    len(text),
	})
	return doc, nil
}

// Get returns a document by ID, scoped to its owner.
func (s *Service) Get(ctx context.Context, userID, documentID string) (Document, error) {
	if userID == "" || documentID == "" {
		return Document{}, fmt.Errorf("%w: user id and document id are required", ErrInvalidInput)
	}
	return s.Repo.GetByID(ctx, userID, documentID)
}

// Current returns the most recently uploaded document for a user.
func (s *Service) Current(ctx context.Context, userID string) (Document, error) {
	if userID == "" {
		return Document{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.Repo.GetCurrentByUser(ctx, userID)
}

// List returns documents for a user, newest first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Document, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

// SourceText loads the extracted text of a document, re-running extraction
// when a pre-extraction document (or one whose derived copy went missing)
// is requested.
func (s *Service) SourceText(ctx context.Context, userID, documentID string) (Document, string, error) {
	doc, err := s.Repo.GetByID(ctx, userID, documentID)
	if err != nil {
		return Document{}, "", err
	}

	if doc.ExtractedTextKey != "" {
		text, err := s.loadText(ctx, doc.ExtractedTextKey)
		if err == nil {
			return doc, text, nil
		}
		telemetry.Warn("document.extracted_text_missing", map[string]any{
			"document_id": doc.ID,
			"key":         doc.ExtractedTextKey,
			"error":       err.Error(),
		})
	}

	text, err := extract.ExtractText(ctx, s.Store, doc.StorageKey, doc.MimeType, doc.FileName)
	if err != nil {
		return Document{}, "", err
	}
	extractedKey := extract.ExtractedKey(doc.StorageKey)
	if err := s.Repo.UpdateExtraction(ctx, userID, documentID, extractedKey, time.Now().UTC()); err != nil {
		return Document{}, "", fmt.Errorf("update extraction: %w", err)
	}
	doc.ExtractedTextKey = extractedKey
	return doc, text, nil
}

func (s *Service) loadText(ctx context.Context, key string) (string, error) {
	body, err := s.Store.Open(ctx, key)
	if err != nil {
		return "", err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *Service) provider() string {
	if strings.TrimSpace(s.StorageProvider) == "" {
		return "local"
	}
	return s.StorageProvider
}
