// Package index defines the nearest-neighbor store of enrolled face
// embeddings. Adapters are selected at startup by configuration; the
// pipeline only ever sees this interface.
package index

import (
	"context"
	"errors"
	"math"
	"time"
)

// ErrUnavailable signals an infrastructure fault in the backing store. It
// must stay distinguishable from an empty result set: "no match" is a
// legitimate, frequent outcome and never an error.
var ErrUnavailable = errors.New("nearest-neighbor index unavailable")

// Match pairs an enrolled identity with its cosine similarity to the query,
// mapped to [0, 1].
type Match struct {
	IdentityID string
	Score      float64
}

// Metadata carries enrollment metadata stored alongside embeddings.
type Metadata struct {
	Model      string
	EnrolledAt time.Time
}

// Index is the similarity-searchable store of enrolled embeddings.
//
// Delete implies immediate invisibility: once it returns, queries must not
// surface the identity again, even transiently. An eventually-consistent
// backend cannot satisfy this contract.
type Index interface {
	// Upsert stores one or more embeddings for an identity. Multiple
	// embeddings per identity are expected (one per enrolled photo).
	Upsert(ctx context.Context, identityID string, embeddings [][]float32, meta Metadata) error

	// Query returns up to topK matches with similarity >= threshold,
	// best first. Several matches may share an identity; per-identity
	// aggregation is the decision engine's job.
	Query(ctx context.Context, embedding []float32, topK int, threshold float64) ([]Match, error)

	// Delete removes every enrolled embedding for the identity.
	Delete(ctx context.Context, identityID string) error

	// Count returns the number of enrolled embeddings.
	Count(ctx context.Context) (int, error)

	// Close releases backing resources.
	Close() error
}

// CosineDistance computes the cosine distance between two vectors: 0 for
// identical direction, 2 for opposite. Invalid input maps to maximum
// distance.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 2.0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to handle floating point errors.
	if sim > 1 {
		sim = 1
	}
	if sim < -1 {
		sim = -1
	}
	return 1 - sim
}

// Similarity maps a cosine distance to a similarity score in [0, 1].
// Anti-correlated vectors (distance > 1) score 0, never negative.
func Similarity(distance float64) float64 {
	s := 1 - distance
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
