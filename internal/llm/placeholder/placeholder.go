// Package placeholder provides a deterministic embedder for development and
// tests. No network, no keys; similar texts still score high cosine
// similarity because vectors are built from hashed token counts rather than
// a digest of the whole text.
package placeholder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"strings"
	"unicode"

	"resume-optimizer/internal/llm"
)

const embeddingDim = 256

// Embedder maps token counts into a fixed-size vector via feature hashing.
type Embedder struct{}

// NewEmbedder returns the deterministic embedder.
func NewEmbedder() Embedder {
	return Embedder{}
}

// Embed returns an L2-normalized bag-of-words vector for the text.
func (Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float64, embeddingDim)
	for _, token := range tokenize(text) {
		sum := sha256.Sum256([]byte(token))
		idx := binary.BigEndian.Uint32(sum[:4]) % embeddingDim
		vec[idx]++
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) >= 2 {
			out = append(out, f)
		}
	}
	return out
}

var _ llm.Embedder = Embedder{}
