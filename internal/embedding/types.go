// Package embedding talks to the external face-embedding service and owns
// the deterministic preprocessing applied before every model call.
package embedding

import (
	"errors"
	"math"
)

// ErrNoEmbedding is returned when the model produced no embedding for an
// image that passed face detection. This is a fatal-for-this-request
// condition and is not retried here.
var ErrNoEmbedding = errors.New("extractor returned no embedding")

// FaceCandidate is one detected face within an image.
type FaceCandidate struct {
	Index     int       // detection index within the image
	BBox      []float64 // [x1, y1, x2, y2] in raw pixel coordinates
	DetScore  float64   // detector confidence in [0, 1]
	Embedding []float32 // L2-normalized embedding vector
}

// Normalize scales v to unit L2 norm in place and returns it. A unit-norm
// vector makes cosine similarity a plain dot product downstream. Zero
// vectors are returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

// BestCandidate returns the candidate with the highest detection score, or
// nil for an empty slice. Ties keep the earlier detection index so the
// choice is stable.
func BestCandidate(candidates []FaceCandidate) *FaceCandidate {
	var best *FaceCandidate
	for i := range candidates {
		if best == nil || candidates[i].DetScore > best.DetScore {
			best = &candidates[i]
		}
	}
	return best
}
