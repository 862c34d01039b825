// Package memory provides an in-process nearest-neighbor index backed by
// an HNSW graph. Suitable for single-instance deployments and tests.
package memory

import (
	"context"
	"sync"

	"github.com/coder/hnsw"

	"github.com/facegate/facegate/internal/index"
)

// HNSW graph parameters for 512-dim face embeddings.
const (
	// maxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	maxNeighbors = 16

	// searchMultiplier overfetches candidates so enough survive the
	// threshold and liveness filters.
	searchMultiplier = 3

	// minSearchK is the floor for the candidate pool size.
	minSearchK = 100
)

type entry struct {
	identityID string
	embedding  []float32
	meta       index.Metadata
}

// Store is an Index over an in-memory HNSW graph.
//
// The graph does not support removal, so deletion works through a liveness
// map: deleted node IDs stay in the graph but are filtered out of every
// search result, which makes deletion immediately visible.
type Store struct {
	mu         sync.RWMutex
	graph      *hnsw.Graph[int64]
	entries    map[int64]*entry   // live nodes only
	byIdentity map[string][]int64 // identity -> node IDs
	nextID     int64
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		entries:    make(map[int64]*entry),
		byIdentity: make(map[string][]int64),
	}
}

var _ index.Index = (*Store)(nil)

func newGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = maxNeighbors
	g.Ml = 1.0 / float64(maxNeighbors) // standard HNSW formula
	g.Distance = hnsw.CosineDistance
	return g
}

// Upsert adds the embeddings as new nodes for the identity.
func (s *Store) Upsert(ctx context.Context, identityID string, embeddings [][]float32, meta index.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.graph == nil {
		s.graph = newGraph()
	}

	for _, emb := range embeddings {
		if len(emb) == 0 {
			continue
		}
		id := s.nextID
		s.nextID++

		s.graph.Add(hnsw.MakeNode(id, emb))
		s.entries[id] = &entry{identityID: identityID, embedding: emb, meta: meta}
		s.byIdentity[identityID] = append(s.byIdentity[identityID], id)
	}
	return nil
}

// Query searches the graph, overfetching to compensate for threshold and
// liveness filtering, and returns up to topK live matches best first.
func (s *Store) Query(ctx context.Context, embedding []float32, topK int, threshold float64) ([]index.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.graph == nil || len(s.entries) == 0 {
		return nil, nil
	}

	searchK := topK * searchMultiplier
	if searchK < minSearchK {
		searchK = minSearchK
	}

	neighbors := s.graph.Search(embedding, searchK)

	matches := make([]index.Match, 0, topK)
	for _, n := range neighbors {
		e, ok := s.entries[n.Key]
		if !ok {
			// Deleted node still present in the graph.
			continue
		}
		score := index.Similarity(index.CosineDistance(embedding, e.embedding))
		if score < threshold {
			continue
		}
		matches = append(matches, index.Match{IdentityID: e.identityID, Score: score})
		if len(matches) >= topK {
			break
		}
	}
	return matches, nil
}

// Delete drops every embedding for the identity from the liveness map.
func (s *Store) Delete(ctx context.Context, identityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.byIdentity[identityID] {
		delete(s.entries, id)
	}
	delete(s.byIdentity, identityID)
	return nil
}

// Count returns the number of live embeddings.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }
