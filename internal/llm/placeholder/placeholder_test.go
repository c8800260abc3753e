package placeholder

import (
	"context"
	"testing"
)

func cosine(a, b []float64) float64 {
	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot
}

func TestEmbedIsDeterministic(t *testing.T) {
	e := NewEmbedder()

	first, err := e.Embed(context.Background(), "Built a Go service handling 10k requests per second")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	second, err := e.Embed(context.Background(), "Built a Go service handling 10k requests per second")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}

	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("vectors differ at index %d", i)
		}
	}
}

func TestEmbedSimilarTextsScoreHigher(t *testing.T) {
	e := NewEmbedder()
	ctx := context.Background()

	original, _ := e.Embed(ctx, "Led a team of five engineers building payment infrastructure in Go")
	paraphrase, _ := e.Embed(ctx, "Led a team of five engineers delivering payment infrastructure in Go")
	unrelated, _ := e.Embed(ctx, "Enjoys hiking photography and baking sourdough bread on weekends")

	similar := cosine(original, paraphrase)
	distant := cosine(original, unrelated)
	if similar <= distant {
		t.Fatalf("expected paraphrase similarity %v to beat unrelated %v", similar, distant)
	}
	if similar < 0.7 {
		t.Fatalf("expected near-identical texts above 0.7, got %v", similar)
	}
}

func TestEmbedEmptyTextYieldsZeroVector(t *testing.T) {
	e := NewEmbedder()

	vec, err := e.Embed(context.Background(), "   ")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	for i, v := range vec {
		if v != 0 {
			t.Fatalf("expected zero vector, got %v at %d", v, i)
		}
	}
}

func TestEmbedHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewEmbedder().Embed(ctx, "text"); err == nil {
		t.Fatal("expected error for canceled context")
	}
}
