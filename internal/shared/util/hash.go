package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashPayload returns the hex SHA-256 of a payload. Queue consumers log it
// to correlate poison messages without logging the body itself.
func HashPayload(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashUserKey returns a filesystem-safe identifier for a user ID. Guest IDs
// contain a colon, so raw IDs never appear in object keys.
func HashUserKey(s string) string {
	return HashPayload(s)
}
