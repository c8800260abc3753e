package util

import (
	"strings"
	"testing"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "plain", in: "resume.pdf", want: "resume.pdf"},
		{name: "spaces trimmed", in: "  resume.pdf  ", want: "resume.pdf"},
		{name: "slashes replaced", in: "a/b\\c.docx", want: "a_b_c.docx"},
		{name: "traversal rejected", in: "../etc/passwd", wantErr: true},
		{name: "empty rejected", in: "   ", wantErr: true},
		{name: "control chars stripped", in: "resu\x00me\n.pdf", want: "resume.pdf"},
		{name: "control only rejected", in: "\x01\x02", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeFileName(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("SanitizeFileName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeFileNameTruncatesKeepingExtension(t *testing.T) {
	long := strings.Repeat("r", 400) + ".docx"
	got, err := SanitizeFileName(long)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) > maxFileNameLen {
		t.Fatalf("expected at most %d bytes, got %d", maxFileNameLen, len(got))
	}
	if !strings.HasSuffix(got, ".docx") {
		t.Fatalf("expected extension preserved, got %q", got)
	}
}
