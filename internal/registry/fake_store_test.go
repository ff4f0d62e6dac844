package registry

import (
	"context"
	"sync"

	"github.com/EternisAI/orca/internal/identity"
)

// memoryStore mirrors the admission rule of the Postgres upsert.
type memoryStore struct {
	mu   sync.Mutex
	rows map[string]identity.Identity
	err  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{rows: make(map[string]identity.Identity)}
}

func (m *memoryStore) Upsert(_ context.Context, ident identity.Identity) (identity.UpsertOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return 0, m.err
	}

	stored, ok := m.rows[ident.ID]
	if !ok {
		m.rows[ident.ID] = ident
		return identity.OutcomeInserted, nil
	}
	if stored.MACAddress != ident.MACAddress {
		return identity.OutcomeConflict, nil
	}
	stored.IP = ident.IP
	if ident.Hostname != "" {
		stored.Hostname = ident.Hostname
	}
	m.rows[ident.ID] = stored
	return identity.OutcomeUpdated, nil
}

func (m *memoryStore) get(id string) (identity.Identity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ident, ok := m.rows[id]
	return ident, ok
}

// stallingStore blocks every upsert until the caller gives up.
type stallingStore struct{}

func (stallingStore) Upsert(ctx context.Context, _ identity.Identity) (identity.UpsertOutcome, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}
