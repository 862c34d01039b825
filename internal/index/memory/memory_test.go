package memory

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/facegate/facegate/internal/index"
)

func unit(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	n := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i := range v {
		out[i] = float32(float64(v[i]) / n)
	}
	return out
}

// randomUnit returns a deterministic pseudo-random unit vector.
func randomUnit(r *rand.Rand, dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(r.NormFloat64())
	}
	return unit(v)
}

func TestUpsertAndQuerySelf(t *testing.T) {
	ctx := context.Background()
	s := New()

	v := unit([]float32{1, 2, 3, 4})
	if err := s.Upsert(ctx, "alice", [][]float32{v}, index.Metadata{}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	matches, err := s.Query(ctx, v, 5, 0.6)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].IdentityID != "alice" {
		t.Errorf("expected alice, got %s", matches[0].IdentityID)
	}
	if math.Abs(matches[0].Score-1.0) > 1e-4 {
		t.Errorf("self-query score should be ~1.0, got %f", matches[0].Score)
	}
}

func TestQueryEmptyIndexReturnsNoMatchNotError(t *testing.T) {
	matches, err := New().Query(context.Background(), []float32{1, 0}, 5, 0.5)
	if err != nil {
		t.Fatalf("empty index query must not error: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches, got %d", len(matches))
	}
}

func TestThresholdFiltersMatches(t *testing.T) {
	ctx := context.Background()
	s := New()

	a := unit([]float32{1, 0, 0, 0})
	b := unit([]float32{0, 1, 0, 0}) // orthogonal to a: similarity 0
	s.Upsert(ctx, "a", [][]float32{a}, index.Metadata{})
	s.Upsert(ctx, "b", [][]float32{b}, index.Metadata{})

	matches, err := s.Query(ctx, a, 5, 0.6)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(matches) != 1 || matches[0].IdentityID != "a" {
		t.Errorf("expected only identity a above threshold, got %+v", matches)
	}
}

func TestDeleteIsImmediatelyInvisible(t *testing.T) {
	ctx := context.Background()
	s := New()
	r := rand.New(rand.NewSource(42))

	target := randomUnit(r, 16)
	s.Upsert(ctx, "target", [][]float32{target}, index.Metadata{})
	for i := range 10 {
		s.Upsert(ctx, "other", [][]float32{randomUnit(r, 16)}, index.Metadata{})
		_ = i
	}

	matches, err := s.Query(ctx, target, 5, 0.9)
	if err != nil || len(matches) == 0 || matches[0].IdentityID != "target" {
		t.Fatalf("expected target before delete, got %+v err=%v", matches, err)
	}

	if err := s.Delete(ctx, "target"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	matches, err = s.Query(ctx, target, 5, 0.0)
	if err != nil {
		t.Fatalf("query after delete failed: %v", err)
	}
	for _, m := range matches {
		if m.IdentityID == "target" {
			t.Error("deleted identity must not appear in query results")
		}
	}

	n, _ := s.Count(ctx)
	if n != 10 {
		t.Errorf("expected 10 live embeddings after delete, got %d", n)
	}
}

func TestMultipleEmbeddingsPerIdentity(t *testing.T) {
	ctx := context.Background()
	s := New()
	r := rand.New(rand.NewSource(7))

	embs := [][]float32{randomUnit(r, 16), randomUnit(r, 16), randomUnit(r, 16)}
	if err := s.Upsert(ctx, "multi", embs, index.Metadata{}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	n, _ := s.Count(ctx)
	if n != 3 {
		t.Errorf("expected 3 embeddings, got %d", n)
	}

	// Query with one of them at threshold 0 can return several matches for
	// the same identity; the index does not aggregate.
	matches, err := s.Query(ctx, embs[0], 10, 0.0)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(matches) < 1 {
		t.Fatal("expected at least one match")
	}
	for _, m := range matches {
		if m.IdentityID != "multi" {
			t.Errorf("unexpected identity %s", m.IdentityID)
		}
		if m.Score < 0 || m.Score > 1 {
			t.Errorf("score %f out of [0,1]", m.Score)
		}
	}
}

func TestScoresAreOrderedBestFirst(t *testing.T) {
	ctx := context.Background()
	s := New()
	r := rand.New(rand.NewSource(99))

	for i := range 20 {
		s.Upsert(ctx, "id", [][]float32{randomUnit(r, 8)}, index.Metadata{})
		_ = i
	}

	q := randomUnit(r, 8)
	matches, err := s.Query(ctx, q, 10, 0.0)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Score > matches[i-1].Score+1e-9 {
			t.Errorf("matches not ordered best first at %d: %f > %f", i, matches[i].Score, matches[i-1].Score)
		}
	}
}
