// Package vectormath provides provider-independent vector operations:
// cosine similarity, L2 normalisation and an in-memory top-K search.
// It is used by the vector index, for client-side reranking and in tests
// that run without a live index.
package vectormath

import (
	"fmt"
	"math"
	"sort"

	"github.com/salesmind/ragcore/internal/core/domain"
)

// Cosine returns the cosine similarity of a and b in [-1, 1].
// Vectors of different lengths or zero magnitude score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Normalize returns a copy of v scaled to unit L2 norm.
// The zero vector is returned unchanged.
func Normalize(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}

	out := make([]float32, len(v))
	if norm == 0 {
		copy(out, v)
		return out
	}

	norm = math.Sqrt(norm)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Candidate pairs an identifier with a vector for in-memory search.
type Candidate struct {
	ID     string
	Vector []float32
}

// Match is a scored candidate returned by TopK.
type Match struct {
	ID    string
	Score float64
}

// TopK returns the k candidates most similar to query by cosine
// similarity, best first. Fewer than k are returned when the candidate
// list is short.
func TopK(query []float32, candidates []Candidate, k int) []Match {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}

	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		matches = append(matches, Match{
			ID:    c.ID,
			Score: Cosine(query, c.Vector),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

// Validate checks that v has exactly dim components and that every
// component is finite. It fails with domain.ErrValidation otherwise; a
// bad vector is never truncated or padded.
func Validate(v []float32, dim int) error {
	if len(v) != dim {
		return fmt.Errorf("%w: vector has %d dimensions, expected %d", domain.ErrValidation, len(v), dim)
	}
	for i, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: vector component %d is not finite", domain.ErrValidation, i)
		}
	}
	return nil
}
