package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/EternisAI/orca/internal/protocol"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wireIdentity(id, ip, hostname, mac string) protocol.Identity {
	return protocol.Identity{
		UUID:       id,
		IP:         ip,
		Hostname:   protocol.StringPtr(hostname),
		MACAddress: protocol.StringPtr(mac),
	}
}

func TestRegister_FreshAssignment(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store)
	ctx := context.Background()

	for _, placeholder := range []string{"", protocol.PlaceholderUnregistered, protocol.PlaceholderUnknown} {
		result := svc.Register(ctx, wireIdentity(placeholder, "10.0.0.5", "host-a", "aa:bb:cc:dd:ee:ff"))

		require.Equal(t, protocol.OutcomeRegistered, result.Outcome, placeholder)
		_, err := uuid.Parse(result.UUID)
		assert.NoError(t, err)
		assert.NotEqual(t, placeholder, result.UUID)

		_, ok := store.get(result.UUID)
		assert.True(t, ok)
	}
	assert.Len(t, store.rows, 3)
}

func TestRegister_KeepsPresentedID(t *testing.T) {
	svc := NewService(newMemoryStore())

	result := svc.Register(context.Background(), wireIdentity("machine-7", "10.0.0.7", "", ""))

	assert.Equal(t, protocol.Registered("machine-7"), result)
}

func TestRegister_IdempotentCheckIn(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store)
	ctx := context.Background()

	first := svc.Register(ctx, wireIdentity("", "10.0.0.5", "host-a", "aa:bb"))
	require.True(t, first.Accepted())
	id := first.UUID

	second := svc.Register(ctx, wireIdentity(id, "10.0.0.6", "host-b", "aa:bb"))
	third := svc.Register(ctx, wireIdentity(id, "10.0.0.6", "host-b", "aa:bb"))

	assert.Equal(t, protocol.Updated(id), second)
	assert.Equal(t, protocol.Updated(id), third)

	stored, _ := store.get(id)
	assert.Equal(t, "10.0.0.6", stored.IP)
	assert.Equal(t, "host-b", stored.Hostname)
	assert.Equal(t, "aa:bb", stored.MACAddress)
}

func TestRegister_CollisionDetection(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store)
	ctx := context.Background()

	require.True(t, svc.Register(ctx, wireIdentity("shared", "10.0.0.1", "", "aa:aa")).Accepted())

	result := svc.Register(ctx, wireIdentity("shared", "10.0.0.2", "", "bb:bb"))
	assert.Equal(t, protocol.UUIDInUse(), result)

	stored, _ := store.get("shared")
	assert.Equal(t, "10.0.0.1", stored.IP)
	assert.Equal(t, "aa:aa", stored.MACAddress)
}

func TestRegister_UnsetStoredMACIsNotAMatch(t *testing.T) {
	svc := NewService(newMemoryStore())
	ctx := context.Background()

	require.True(t, svc.Register(ctx, wireIdentity("no-mac", "10.0.0.1", "", "")).Accepted())

	assert.Equal(t, protocol.UUIDInUse(), svc.Register(ctx, wireIdentity("no-mac", "10.0.0.1", "", "cc:cc")))
	assert.Equal(t, protocol.Updated("no-mac"), svc.Register(ctx, wireIdentity("no-mac", "10.0.0.3", "", "")))
}

func TestRegister_Failures(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store)
	ctx := context.Background()

	result := svc.Register(ctx, wireIdentity("", "", "", ""))
	assert.Equal(t, protocol.OutcomeError, result.Outcome)
	assert.Contains(t, result.Error, "ip is required")

	store.err = errors.New("connection refused")
	result = svc.Register(ctx, wireIdentity("", "10.0.0.1", "", ""))
	assert.Equal(t, protocol.OutcomeError, result.Outcome)
	assert.Contains(t, result.Error, "connection refused")
	assert.Empty(t, result.UUID)
}
