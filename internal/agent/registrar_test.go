package agent

import (
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/EternisAI/orca/internal/protocol"
	"github.com/EternisAI/orca/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedRegistry answers each exchange with the next scripted response and
// records the identities it was sent.
type scriptedRegistry struct {
	mu        sync.Mutex
	responses []string
	received  []protocol.Identity
}

func (r *scriptedRegistry) handle(_ context.Context, conn net.Conn) {
	var ident protocol.Identity
	if err := json.NewDecoder(conn).Decode(&ident); err != nil {
		return
	}

	r.mu.Lock()
	r.received = append(r.received, ident)
	response := "registry exploded"
	if len(r.responses) > 0 {
		response = r.responses[0]
		r.responses = r.responses[1:]
	}
	r.mu.Unlock()

	_, _ = conn.Write([]byte(response))
	transport.CloseWrite(conn, time.Second)
}

func (r *scriptedRegistry) sent() []protocol.Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]protocol.Identity(nil), r.received...)
}

func startScriptedRegistry(t *testing.T, responses ...string) (*scriptedRegistry, string) {
	t.Helper()

	reg := &scriptedRegistry{responses: responses}
	srv := transport.NewServer("registry", "127.0.0.1:0", nil, reg.handle)
	require.NoError(t, srv.Listen())
	go func() { _ = srv.Start() }()
	t.Cleanup(func() { _ = srv.StopWithTimeout(2 * time.Second) })

	return reg, srv.Addr().String()
}

func newTestRegistrar(t *testing.T, addr string, state *StateFile) *Registrar {
	t.Helper()
	r := NewRegistrar(RegistrarConfig{RegistryAddress: addr, DialAttempts: 1}, transport.PlainDialer{Timeout: time.Second}, state)
	r.facts = func(localIP string) Facts {
		return Facts{Hostname: "test-host", IP: localIP, MACAddress: "02:00:00:00:00:01"}
	}
	return r
}

func TestRegistrar_FreshRegistration(t *testing.T) {
	reg, addr := startScriptedRegistry(t, `{"outcome":"registered","uuid":"new-id"}`)
	state := NewStateFile(filepath.Join(t.TempDir(), "client.uuid"))

	id, err := newTestRegistrar(t, addr, state).Register(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new-id", id)

	saved, err := state.Load()
	require.NoError(t, err)
	assert.Equal(t, "new-id", saved)

	require.Len(t, reg.sent(), 1)
	sent := reg.sent()[0]
	assert.Equal(t, protocol.PlaceholderUnregistered, sent.UUID)
	assert.Equal(t, "127.0.0.1", sent.IP)
	assert.Equal(t, "test-host", protocol.StringValue(sent.Hostname))
	assert.Equal(t, "02:00:00:00:00:01", protocol.StringValue(sent.MACAddress))
}

func TestRegistrar_CheckInWithPersistedID(t *testing.T) {
	reg, addr := startScriptedRegistry(t, "updated:kept-id")
	state := NewStateFile(filepath.Join(t.TempDir(), "client.uuid"))
	require.NoError(t, state.Save("kept-id"))

	id, err := newTestRegistrar(t, addr, state).Register(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "kept-id", id)
	assert.Equal(t, "kept-id", reg.sent()[0].UUID)
}

func TestRegistrar_CollisionRetriesWithPlaceholder(t *testing.T) {
	reg, addr := startScriptedRegistry(t,
		`{"outcome":"uuid_in_use"}`,
		`{"outcome":"registered","uuid":"replacement"}`,
	)
	state := NewStateFile(filepath.Join(t.TempDir(), "client.uuid"))
	require.NoError(t, state.Save("stolen-id"))

	id, err := newTestRegistrar(t, addr, state).Register(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "replacement", id)

	require.Len(t, reg.sent(), 2)
	assert.Equal(t, "stolen-id", reg.sent()[0].UUID)
	assert.Equal(t, protocol.PlaceholderUnregistered, reg.sent()[1].UUID)
}

func TestRegistrar_CollisionRetriesAreBounded(t *testing.T) {
	reg, addr := startScriptedRegistry(t, "UUID_IN_USE", "UUID_IN_USE", "UUID_IN_USE", "UUID_IN_USE")
	state := NewStateFile(filepath.Join(t.TempDir(), "client.uuid"))

	_, err := newTestRegistrar(t, addr, state).Register(context.Background())
	assert.ErrorIs(t, err, ErrRegistrationExhausted)
	assert.Len(t, reg.sent(), DefaultMaxAttempts)
}

func TestRegistrar_UnexpectedResponseIsFatal(t *testing.T) {
	reg, addr := startScriptedRegistry(t, `{"outcome":"error","error":"database down"}`)
	state := NewStateFile(filepath.Join(t.TempDir(), "client.uuid"))

	_, err := newTestRegistrar(t, addr, state).Register(context.Background())
	assert.ErrorIs(t, err, ErrUnexpectedResponse)
	assert.Contains(t, err.Error(), "database down")
	assert.Len(t, reg.sent(), 1)

	saved, err := state.Load()
	require.NoError(t, err)
	assert.Equal(t, protocol.PlaceholderUnregistered, saved)
}

func TestRegistrar_UnreachableRegistry(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	lis.Close()

	state := NewStateFile(filepath.Join(t.TempDir(), "client.uuid"))
	_, err = newTestRegistrar(t, addr, state).Register(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to registry")
}
