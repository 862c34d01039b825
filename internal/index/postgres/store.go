package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/facegate/facegate/internal/index"
)

// Store is the pgvector-backed nearest-neighbor index. Similarity search
// runs in the database over an HNSW index on the embedding column.
type Store struct {
	pool *Pool
}

func NewStore(pool *Pool) *Store {
	return &Store{pool: pool}
}

var _ index.Index = (*Store)(nil)

// Upsert inserts the embeddings for an identity in one transaction.
func (s *Store) Upsert(ctx context.Context, identityID string, embeddings [][]float32, meta index.Metadata) error {
	if len(embeddings) == 0 {
		return nil
	}

	enrolledAt := meta.EnrolledAt
	if enrolledAt.IsZero() {
		enrolledAt = time.Now().UTC()
	}

	tx, err := s.pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", index.ErrUnavailable, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO enrolled_embeddings (identity_id, embedding, model, enrolled_at)
		VALUES ($1, $2::vector, $3, $4)
	`)
	if err != nil {
		return fmt.Errorf("%w: prepare insert: %v", index.ErrUnavailable, err)
	}
	defer stmt.Close()

	for _, emb := range embeddings {
		vec := pgvector.NewVector(emb)
		if _, err := stmt.ExecContext(ctx, identityID, vec, meta.Model, enrolledAt); err != nil {
			return fmt.Errorf("%w: insert embedding for %s: %v", index.ErrUnavailable, identityID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit enrollment: %v", index.ErrUnavailable, err)
	}
	return nil
}

// Query returns the topK nearest embeddings with similarity at or above
// the threshold, best first. Cosine distance maps to similarity as 1-d.
func (s *Store) Query(ctx context.Context, embedding []float32, topK int, threshold float64) ([]index.Match, error) {
	if topK < 1 {
		topK = 1
	}
	maxDistance := 1.0 - threshold

	query := `
		SELECT identity_id, embedding <=> $1::vector AS distance
		FROM enrolled_embeddings
		WHERE embedding <=> $1::vector <= $2
		ORDER BY distance
		LIMIT $3
	`

	vec := pgvector.NewVector(embedding)
	rows, err := s.pool.Query(ctx, query, vec, maxDistance, topK)
	if err != nil {
		return nil, fmt.Errorf("%w: query similar embeddings: %v", index.ErrUnavailable, err)
	}
	defer rows.Close()

	var matches []index.Match
	for rows.Next() {
		var id string
		var dist float64
		if err := rows.Scan(&id, &dist); err != nil {
			return nil, fmt.Errorf("%w: scan match: %v", index.ErrUnavailable, err)
		}
		matches = append(matches, index.Match{IdentityID: id, Score: index.Similarity(dist)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate matches: %v", index.ErrUnavailable, err)
	}
	return matches, nil
}

// Delete removes every embedding enrolled for the identity.
func (s *Store) Delete(ctx context.Context, identityID string) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM enrolled_embeddings WHERE identity_id = $1", identityID); err != nil {
		return fmt.Errorf("%w: delete embeddings for %s: %v", index.ErrUnavailable, identityID, err)
	}
	return nil
}

// Count returns the number of enrolled embeddings.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM enrolled_embeddings").Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: count embeddings: %v", index.ErrUnavailable, err)
	}
	return count, nil
}

// Close is a no-op; the connection pool is owned by the caller.
func (s *Store) Close() error {
	return nil
}
