package transport

import (
	"bufio"
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, handler Handler) *Server {
	t.Helper()

	srv := NewServer("test", "127.0.0.1:0", nil, handler)
	require.NoError(t, srv.Listen())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	t.Cleanup(func() {
		_ = srv.StopWithTimeout(2 * time.Second)
		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("server did not return from Start")
		}
	})
	return srv
}

func dialLine(t *testing.T, addr, line string) string {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(line))
	require.NoError(t, err)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	out, _ := io.ReadAll(conn)
	return string(out)
}

func TestServer_RecoversFromPanic(t *testing.T) {
	srv := startServer(t, func(ctx context.Context, conn net.Conn) {
		line, _ := bufio.NewReader(conn).ReadString('\n')
		if strings.TrimSpace(line) == "boom" {
			panic("handler exploded")
		}
		_, _ = conn.Write([]byte("ok:" + line))
	})

	addr := srv.Addr().String()
	assert.Empty(t, dialLine(t, addr, "boom\n"))
	assert.Equal(t, "ok:hello\n", dialLine(t, addr, "hello\n"))
}

func TestServer_StopCancelsStuckHandlers(t *testing.T) {
	entered := make(chan struct{})
	srv := NewServer("test", "127.0.0.1:0", nil, func(ctx context.Context, conn net.Conn) {
		close(entered)
		<-ctx.Done()
	})
	require.NoError(t, srv.Listen())
	go func() { _ = srv.Start() }()

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not start")
	}
	assert.Equal(t, 1, srv.ActiveConnections())

	start := time.Now()
	require.NoError(t, srv.StopWithTimeout(100*time.Millisecond))
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 0, srv.ActiveConnections())

	assert.ErrorIs(t, srv.Listen(), ErrServerClosed)
}
