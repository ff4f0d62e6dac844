package registry

import (
	"encoding/json"
	"io"
	"net"
	"testing"
	"time"

	"github.com/EternisAI/orca/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startRegistry(t *testing.T, cfg Config) (*Server, *memoryStore) {
	t.Helper()

	store := newMemoryStore()
	cfg.ListenAddress = "127.0.0.1:0"
	srv := NewServer(cfg, NewService(store), nil)
	require.NoError(t, srv.Listen())
	go func() { _ = srv.Start() }()
	t.Cleanup(func() { _ = srv.StopWithTimeout(2 * time.Second) })

	return srv, store
}

func exchange(t *testing.T, addr string, payload []byte) protocol.Result {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write(payload)
	require.NoError(t, err)

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	raw, err := io.ReadAll(conn)
	require.NoError(t, err)

	result, err := protocol.ParseResult(raw)
	require.NoError(t, err)
	return result
}

func TestServer_RegistersOverTCP(t *testing.T) {
	srv, store := startRegistry(t, Config{})

	payload, err := json.Marshal(wireIdentity(protocol.PlaceholderUnregistered, "192.168.1.20", "web-1", "de:ad:be:ef:00:01"))
	require.NoError(t, err)

	result := exchange(t, srv.Addr().String(), payload)
	require.Equal(t, protocol.OutcomeRegistered, result.Outcome)

	stored, ok := store.get(result.UUID)
	require.True(t, ok)
	assert.Equal(t, "web-1", stored.Hostname)

	payload, err = json.Marshal(wireIdentity(result.UUID, "192.168.1.21", "web-1", "de:ad:be:ef:00:01"))
	require.NoError(t, err)
	assert.Equal(t, protocol.Updated(result.UUID), exchange(t, srv.Addr().String(), payload))
}

func TestServer_AlwaysRespondsToMalformedInput(t *testing.T) {
	srv, store := startRegistry(t, Config{})

	result := exchange(t, srv.Addr().String(), []byte("not json at all"))

	assert.Equal(t, protocol.OutcomeError, result.Outcome)
	assert.Contains(t, result.Error, "failed to parse identity")
	assert.Empty(t, store.rows)
}

func TestServer_SilentClientTimesOut(t *testing.T) {
	srv, _ := startRegistry(t, Config{ReadTimeout: 200 * time.Millisecond})

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	raw, err := io.ReadAll(conn)
	require.NoError(t, err)

	result, err := protocol.ParseResult(raw)
	require.NoError(t, err)
	assert.Equal(t, protocol.OutcomeError, result.Outcome)
}

func TestServer_PayloadLimit(t *testing.T) {
	srv, _ := startRegistry(t, Config{MaxPayloadBytes: 32})

	payload, err := json.Marshal(wireIdentity("", "10.0.0.1", "a-very-long-hostname-that-overflows", ""))
	require.NoError(t, err)

	result := exchange(t, srv.Addr().String(), payload)
	assert.Equal(t, protocol.OutcomeError, result.Outcome)
}

func TestServer_PersistTimeoutAnswersWithError(t *testing.T) {
	srv := NewServer(Config{ListenAddress: "127.0.0.1:0", PersistTimeout: 200 * time.Millisecond}, NewService(stallingStore{}), nil)
	require.NoError(t, srv.Listen())
	go func() { _ = srv.Start() }()
	t.Cleanup(func() { _ = srv.StopWithTimeout(2 * time.Second) })

	payload, err := json.Marshal(wireIdentity(protocol.PlaceholderUnregistered, "192.168.1.40", "db-1", ""))
	require.NoError(t, err)

	start := time.Now()
	result := exchange(t, srv.Addr().String(), payload)

	assert.Equal(t, protocol.OutcomeError, result.Outcome)
	assert.Contains(t, result.Error, "failed to persist identity")
	assert.Less(t, time.Since(start), 4*time.Second)
}
