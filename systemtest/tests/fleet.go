package tests

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	internalhttp "github.com/EternisAI/orca/internal/api/http"
	"github.com/EternisAI/orca/internal/api/http/dto"
	"github.com/EternisAI/orca/internal/agent"
	"github.com/EternisAI/orca/internal/audit"
	"github.com/EternisAI/orca/internal/dispatch"
	"github.com/EternisAI/orca/internal/identity"
	"github.com/EternisAI/orca/internal/registry"
	"github.com/EternisAI/orca/internal/transport"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const apiKey = "system-test-key"

// TestFleet runs a registry and an agent on loopback, registers the agent and
// dispatches to it through the dispatcher and the HTTP API.
func TestFleet(t *testing.T, pool *pgxpool.Pool) {
	ctx := context.Background()
	identities := identity.NewStore(pool)
	events := audit.NewStore(pool)

	reg := registry.NewServer(registry.Config{ListenAddress: "127.0.0.1:0"}, registry.NewService(identities), nil)
	require.NoError(t, reg.Listen())
	go func() { _ = reg.Start() }()
	t.Cleanup(func() { _ = reg.StopWithTimeout(5 * time.Second) })

	listener := agent.NewListener(agent.ListenerConfig{
		ListenAddress: "127.0.0.1:0",
		WorkspaceDir:  t.TempDir(),
	}, nil)
	require.NoError(t, listener.Listen())
	go func() { _ = listener.Start() }()
	t.Cleanup(func() { _ = listener.StopWithTimeout(5 * time.Second) })

	port := listener.Addr().(*net.TCPAddr).Port

	state := agent.NewStateFile(filepath.Join(t.TempDir(), agent.DefaultStateFile))
	registrar := agent.NewRegistrar(agent.RegistrarConfig{
		RegistryAddress: reg.Addr().String(),
		DialAttempts:    1,
	}, transport.NewDialer(nil, 5*time.Second), state)

	var id string
	t.Run("registration assigns and persists an id", func(t *testing.T) {
		assigned, err := registrar.Register(ctx)
		require.NoError(t, err)
		require.NotEmpty(t, assigned)
		id = assigned

		stored, err := state.Load()
		require.NoError(t, err)
		assert.Equal(t, id, stored)

		ident, err := identities.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1", ident.IP)
	})
	require.NotEmpty(t, id)

	t.Run("check-in keeps the id", func(t *testing.T) {
		again, err := registrar.Register(ctx)
		require.NoError(t, err)
		assert.Equal(t, id, again)
	})

	dispatcher := dispatch.New(dispatch.Config{AgentPort: port}, identities, events, nil)

	t.Run("dispatch records an event", func(t *testing.T) {
		result, err := dispatcher.Dispatch(ctx, dispatch.Request{Target: id, Command: "echo hello"})
		require.NoError(t, err)
		assert.Equal(t, "hello\n", string(result.Response))
		require.NotNil(t, result.Event)

		recorded, err := events.List(ctx, id, 10)
		require.NoError(t, err)
		require.NotEmpty(t, recorded)
		assert.Equal(t, "echo hello", recorded[0].Command)
		assert.Equal(t, "hello\n", recorded[0].Response)
		assert.Equal(t, "127.0.0.1", recorded[0].ClientIP)
	})

	t.Run("dispatch to unknown machine", func(t *testing.T) {
		_, err := dispatcher.Dispatch(ctx, dispatch.Request{Target: "nowhere", Command: "true"})
		assert.ErrorIs(t, err, dispatch.ErrResolve)
		assert.ErrorIs(t, err, identity.ErrIdentityNotFound)
	})

	gin.SetMode(gin.TestMode)
	router := gin.New()
	internalhttp.SetupRoute(router, &internalhttp.Services{
		Identities:  identities,
		Events:      events,
		Dispatcher:  dispatcher,
		AdminAPIKey: apiKey,
	})

	t.Run("api dispatch with attachment", func(t *testing.T) {
		body := dto.DispatchRequest{
			Client:  id,
			Command: "cat note.txt",
			Attachments: []dto.Attachment{
				{Name: "note.txt", Content: base64.StdEncoding.EncodeToString([]byte("from the api\n"))},
			},
		}
		rr := doJSON(router, http.MethodPost, "/api/v1/dispatch", body)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var resp dto.DispatchResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, "from the api\n", resp.Stdout)
		assert.Equal(t, []string{"note.txt"}, resp.Files)
		assert.NotNil(t, resp.EventID)
	})

	t.Run("api lists identities and events", func(t *testing.T) {
		rr := doJSON(router, http.MethodGet, "/api/v1/identities/"+id, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		var ident dto.IdentityResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ident))
		assert.Equal(t, id, ident.ID)

		rr = doJSON(router, http.MethodGet, "/api/v1/events?client_id="+id, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		var list dto.ListEventsResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
		assert.Equal(t, 2, list.Count)
		assert.Equal(t, "cat note.txt", list.Events[0].Command)
	})

	t.Run("api requires the key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/identities", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("api dispatch to unreachable agent", func(t *testing.T) {
		_, err := identities.Upsert(ctx, identity.Identity{ID: "ghost", IP: "127.0.0.1"})
		require.NoError(t, err)

		unreachable := dispatch.New(dispatch.Config{AgentPort: closedPort(t), ConnectTimeout: 2 * time.Second}, identities, events, nil)
		r := gin.New()
		internalhttp.SetupRoute(r, &internalhttp.Services{Dispatcher: unreachable, AdminAPIKey: apiKey})

		rr := doJSON(r, http.MethodPost, "/api/v1/dispatch", dto.DispatchRequest{Client: "ghost", Command: "true"})
		assert.Equal(t, http.StatusBadGateway, rr.Code)

		var resp dto.DispatchResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.False(t, resp.Success)
		assert.NotEmpty(t, resp.Stderr)
	})
}

func closedPort(t *testing.T) int {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := lis.Addr().(*net.TCPAddr).Port
	require.NoError(t, lis.Close())
	return port
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", apiKey)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}
