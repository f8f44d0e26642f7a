// Package embed defines the embedding-provider contract the scoring
// engine depends on, and the cosine similarity it is scored with.
package embed

import (
	"context"
	"math"
)

// Provider maps text to fixed-length numeric vectors, one per input
// string, preserving order. Vectors are only comparable when produced by
// the same provider and model version.
type Provider interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
}

// Cosine returns the cosine similarity of a and b, clamped to [0,1].
// Vectors of mismatched or zero length score 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
