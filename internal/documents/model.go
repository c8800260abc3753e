package documents

import "time"

// Document is an uploaded resume file owned by a user. The raw bytes live in
// the object store under StorageKey; the text pulled out of them lives under
// ExtractedTextKey and is what the optimization pipeline consumes.
type Document struct {
	ID               string
	UserID           string
	FileName         string
	OriginalFilename string
	MimeType         string
	SizeBytes        int64
	StorageProvider  string
	StorageKey       string
	ExtractedTextKey string
	ExtractedAt      *time.Time
	CreatedAt        time.Time
}
