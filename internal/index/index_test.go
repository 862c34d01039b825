package index

import (
	"math"
	"testing"
)

func TestCosineDistanceIdenticalVectors(t *testing.T) {
	v := []float32{0.1, 0.5, -0.3, 0.8}
	if d := CosineDistance(v, v); math.Abs(d) > 1e-6 {
		t.Errorf("distance to self should be 0, got %f", d)
	}
}

func TestCosineDistanceOrthogonalAndOpposite(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	if d := CosineDistance(a, b); math.Abs(d-1) > 1e-6 {
		t.Errorf("orthogonal distance should be 1, got %f", d)
	}

	c := []float32{-1, 0}
	if d := CosineDistance(a, c); math.Abs(d-2) > 1e-6 {
		t.Errorf("opposite distance should be 2, got %f", d)
	}
}

func TestCosineDistanceInvalidInput(t *testing.T) {
	if d := CosineDistance([]float32{1, 0}, []float32{1}); d != 2.0 {
		t.Errorf("mismatched lengths should give max distance, got %f", d)
	}
	if d := CosineDistance(nil, nil); d != 2.0 {
		t.Errorf("empty vectors should give max distance, got %f", d)
	}
	if d := CosineDistance([]float32{0, 0}, []float32{1, 0}); d != 2.0 {
		t.Errorf("zero vector should give max distance, got %f", d)
	}
}

func TestSimilarityBounds(t *testing.T) {
	tests := []struct {
		distance float64
		want     float64
	}{
		{0, 1},
		{0.4, 0.6},
		{1, 0},
		{1.5, 0}, // anti-correlated clamps to 0, never negative
		{2, 0},
	}
	for _, tt := range tests {
		if got := Similarity(tt.distance); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Similarity(%f) = %f, want %f", tt.distance, got, tt.want)
		}
	}
}

func TestSelfSimilarityNearOne(t *testing.T) {
	v := []float32{0.25, -0.5, 0.75, 0.1}
	sim := Similarity(CosineDistance(v, v))
	if math.Abs(sim-1.0) > 1e-4 {
		t.Errorf("similarity(e, e) should be ~1.0, got %f", sim)
	}
}
