package identity

import (
	"context"
	"sync"
)

// MemoryDirectory is an in-process Directory for the memory backend and
// for tests.
type MemoryDirectory struct {
	mu         sync.RWMutex
	identities map[string]Identity
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{identities: make(map[string]Identity)}
}

var _ Directory = (*MemoryDirectory)(nil)

// Put stores or replaces an identity record.
func (d *MemoryDirectory) Put(id Identity) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.identities[id.ID] = id
}

// GetIdentity returns the record for an id, or ErrNotFound.
func (d *MemoryDirectory) GetIdentity(ctx context.Context, id string) (*Identity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rec, ok := d.identities[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}
