package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/facegate/facegate/internal/identity"
)

// Directory reads identity records from the identities table.
type Directory struct {
	pool *Pool
}

func NewDirectory(pool *Pool) *Directory {
	return &Directory{pool: pool}
}

var _ identity.Directory = (*Directory)(nil)

// GetIdentity returns the record for an id, or identity.ErrNotFound.
func (d *Directory) GetIdentity(ctx context.Context, id string) (*identity.Identity, error) {
	query := `
		SELECT id, display_name, active, can_use_face_auth
		FROM identities
		WHERE id = $1
	`

	var rec identity.Identity
	err := d.pool.QueryRow(ctx, query, id).Scan(&rec.ID, &rec.DisplayName, &rec.Active, &rec.CanUseFaceAuth)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, identity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query identity: %w", err)
	}
	return &rec, nil
}

// Put stores or replaces an identity record.
func (d *Directory) Put(ctx context.Context, rec identity.Identity) error {
	query := `
		INSERT INTO identities (id, display_name, active, can_use_face_auth)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			active = EXCLUDED.active,
			can_use_face_auth = EXCLUDED.can_use_face_auth
	`
	if _, err := d.pool.Exec(ctx, query, rec.ID, rec.DisplayName, rec.Active, rec.CanUseFaceAuth); err != nil {
		return fmt.Errorf("save identity: %w", err)
	}
	return nil
}

// FindByName returns the identity whose normalized display name matches,
// or identity.ErrNotFound. Normalization strips diacritics and case, so
// "jan-novak" resolves "Jan Novák".
func (d *Directory) FindByName(ctx context.Context, name string) (*identity.Identity, error) {
	records, err := d.ListIdentities(ctx)
	if err != nil {
		return nil, err
	}

	want := identity.NormalizeName(name)
	for _, rec := range records {
		if identity.NormalizeName(rec.DisplayName) == want {
			return &rec, nil
		}
	}
	return nil, identity.ErrNotFound
}

// DeleteIdentity removes the directory record. Embedding removal is the
// index's job; callers delete both.
func (d *Directory) DeleteIdentity(ctx context.Context, id string) error {
	if _, err := d.pool.Exec(ctx, "DELETE FROM identities WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	return nil
}

// ListIdentities returns all directory records ordered by display name.
func (d *Directory) ListIdentities(ctx context.Context) ([]identity.Identity, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, display_name, active, can_use_face_auth
		FROM identities
		ORDER BY display_name
	`)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()

	var out []identity.Identity
	for rows.Next() {
		var rec identity.Identity
		if err := rows.Scan(&rec.ID, &rec.DisplayName, &rec.Active, &rec.CanUseFaceAuth); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return out, nil
}
