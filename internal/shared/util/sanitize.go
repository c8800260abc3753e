package util

import (
	"errors"
	"strings"
)

const maxFileNameLen = 200

// SanitizeFileName removes path separators and control characters and
// rejects traversal patterns. Overlong names are shortened, keeping the
// extension, because the result ends up in object keys and download headers.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", errors.New("invalid file name")
	}
	s := strings.TrimSpace(name)
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
	if s == "" {
		return "", errors.New("invalid file name")
	}
	if len(s) > maxFileNameLen {
		s = truncateKeepExt(s, maxFileNameLen)
	}
	return s, nil
}

func truncateKeepExt(s string, limit int) string {
	ext := ""
	if idx := strings.LastIndex(s, "."); idx > 0 && len(s)-idx <= 10 {
		ext = s[idx:]
	}
	stem := []rune(strings.TrimSuffix(s, ext))
	keep := limit - len(ext)
	if keep < 1 {
		keep = 1
	}
	if len(stem) > keep {
		stem = stem[:keep]
	}
	return string(stem) + ext
}
