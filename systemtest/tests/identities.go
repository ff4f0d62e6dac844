package tests

import (
	"context"
	"testing"

	"github.com/EternisAI/orca/internal/audit"
	"github.com/EternisAI/orca/internal/identity"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityStore(t *testing.T, pool *pgxpool.Pool) {
	ctx := context.Background()
	store := identity.NewStore(pool)

	t.Run("insert then check in", func(t *testing.T) {
		ident := identity.Identity{ID: "a1b2", IP: "10.1.0.1", Hostname: "store-a", MACAddress: "aa:bb:cc:00:00:01"}

		outcome, err := store.Upsert(ctx, ident)
		require.NoError(t, err)
		assert.Equal(t, identity.OutcomeInserted, outcome)

		ident.IP = "10.1.0.2"
		outcome, err = store.Upsert(ctx, ident)
		require.NoError(t, err)
		assert.Equal(t, identity.OutcomeUpdated, outcome)

		got, err := store.Get(ctx, "a1b2")
		require.NoError(t, err)
		assert.Equal(t, "10.1.0.2", got.IP)
		assert.Equal(t, "store-a", got.Hostname)
		assert.False(t, got.UpdatedAt.Before(got.CreatedAt))
	})

	t.Run("different MAC is a conflict and leaves the row alone", func(t *testing.T) {
		ident := identity.Identity{ID: "c3d4", IP: "10.1.0.3", MACAddress: "aa:bb:cc:00:00:03"}
		_, err := store.Upsert(ctx, ident)
		require.NoError(t, err)

		outcome, err := store.Upsert(ctx, identity.Identity{ID: "c3d4", IP: "10.1.0.99", MACAddress: "aa:bb:cc:00:00:99"})
		require.NoError(t, err)
		assert.Equal(t, identity.OutcomeConflict, outcome)

		got, err := store.Get(ctx, "c3d4")
		require.NoError(t, err)
		assert.Equal(t, "10.1.0.3", got.IP)
	})

	t.Run("missing MAC matches missing MAC", func(t *testing.T) {
		ident := identity.Identity{ID: "e5f6", IP: "10.1.0.5"}
		_, err := store.Upsert(ctx, ident)
		require.NoError(t, err)

		outcome, err := store.Upsert(ctx, ident)
		require.NoError(t, err)
		assert.Equal(t, identity.OutcomeUpdated, outcome)

		outcome, err = store.Upsert(ctx, identity.Identity{ID: "e5f6", IP: "10.1.0.5", MACAddress: "aa:bb:cc:00:00:05"})
		require.NoError(t, err)
		assert.Equal(t, identity.OutcomeConflict, outcome)
	})

	t.Run("check in without hostname keeps the stored one", func(t *testing.T) {
		_, err := store.Upsert(ctx, identity.Identity{ID: "h7", IP: "10.1.0.7", Hostname: "keeper"})
		require.NoError(t, err)
		_, err = store.Upsert(ctx, identity.Identity{ID: "h7", IP: "10.1.0.8"})
		require.NoError(t, err)

		got, err := store.Get(ctx, "h7")
		require.NoError(t, err)
		assert.Equal(t, "keeper", got.Hostname)
	})

	t.Run("rejects incomplete identities", func(t *testing.T) {
		_, err := store.Upsert(ctx, identity.Identity{ID: "x"})
		assert.ErrorIs(t, err, identity.ErrInvalidIdentity)
	})

	t.Run("lookup by any identifier", func(t *testing.T) {
		for _, key := range []string{"a1b2", "10.1.0.2", "store-a", "AA:BB:CC:00:00:01"} {
			got, err := store.Lookup(ctx, key)
			require.NoError(t, err, key)
			assert.Equal(t, "a1b2", got.ID, key)
		}
	})

	t.Run("lookup not found", func(t *testing.T) {
		_, err := store.Lookup(ctx, "no-such-machine")
		assert.ErrorIs(t, err, identity.ErrIdentityNotFound)

		_, err = store.Get(ctx, "no-such-machine")
		assert.ErrorIs(t, err, identity.ErrIdentityNotFound)
	})

	t.Run("lookup ambiguous unless the id matches exactly", func(t *testing.T) {
		_, err := store.Upsert(ctx, identity.Identity{ID: "dup-1", IP: "10.1.0.50", Hostname: "twin"})
		require.NoError(t, err)
		_, err = store.Upsert(ctx, identity.Identity{ID: "dup-2", IP: "10.1.0.51", Hostname: "twin"})
		require.NoError(t, err)
		_, err = store.Upsert(ctx, identity.Identity{ID: "twin-id", IP: "10.1.0.52", Hostname: "dup-1"})
		require.NoError(t, err)

		_, err = store.Lookup(ctx, "twin")
		assert.ErrorIs(t, err, identity.ErrAmbiguousIdentifier)
		assert.ErrorIs(t, err, identity.ErrIdentityNotFound)

		got, err := store.Lookup(ctx, "dup-1")
		require.NoError(t, err)
		assert.Equal(t, "dup-1", got.ID)
	})

	t.Run("list pages newest first", func(t *testing.T) {
		all, err := store.List(ctx, 100, 0)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(all), 5)
		for i := 1; i < len(all); i++ {
			assert.False(t, all[i].UpdatedAt.After(all[i-1].UpdatedAt))
		}

		page, err := store.List(ctx, 2, 1)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, all[1].ID, page[0].ID)
	})
}

func TestAuditStore(t *testing.T, pool *pgxpool.Pool) {
	ctx := context.Background()
	store := audit.NewStore(pool)

	recorded, err := store.Record(ctx, audit.Event{
		ClientID: "audit-1",
		ClientIP: "10.2.0.1",
		Command:  "cat notes.txt",
		Response: "bad\x00bytes \xff\n",
		Files:    []string{"notes.txt"},
	})
	require.NoError(t, err)
	assert.NotZero(t, recorded.ID)
	assert.False(t, recorded.CreatedAt.IsZero())

	_, err = store.Record(ctx, audit.Event{ClientID: "audit-2", ClientIP: "10.2.0.2", Command: "true"})
	require.NoError(t, err)

	events, err := store.List(ctx, "audit-1", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "badbytes �\n", events[0].Response)
	assert.Equal(t, []string{"notes.txt"}, events[0].Files)

	events, err = store.List(ctx, "", 10)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(events), 2)
}
