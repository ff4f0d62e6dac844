package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"runtime/debug"
	"sync"
	"time"
)

const (
	handshakeTimeout  = 10 * time.Second
	acceptRetryDelay  = 100 * time.Millisecond
	maxAcceptRetryGap = time.Second
)

var ErrServerClosed = errors.New("server closed")

// Handler serves one accepted connection. The server closes conn after the
// handler returns.
type Handler func(ctx context.Context, conn net.Conn)

// Server accepts connections on one address and runs each on its own
// goroutine. A panicking handler is recovered and only drops its connection.
type Server struct {
	name      string
	address   string
	tlsConfig *tls.Config
	handler   Handler

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	closed   bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewServer(name, address string, tlsConfig *tls.Config, handler Handler) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		name:      name,
		address:   address,
		tlsConfig: tlsConfig,
		handler:   handler,
		conns:     make(map[net.Conn]struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Listen binds the address without serving. Start calls it when needed.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrServerClosed
	}
	if s.listener != nil {
		return nil
	}

	lis, err := Listen(s.address, s.tlsConfig)
	if err != nil {
		return err
	}
	s.listener = lis
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start serves until Stop is called. It returns nil after a clean stop.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}

	s.mu.Lock()
	lis := s.listener
	s.mu.Unlock()

	slog.Info("Starting "+s.name+" server", "address", lis.Addr().String(), "tls", s.tlsConfig != nil)

	retryDelay := acceptRetryDelay
	for {
		conn, err := lis.Accept()
		if err != nil {
			if s.isClosed() {
				return nil
			}
			slog.Warn("Failed to accept connection", "server", s.name, "error", err)
			time.Sleep(retryDelay)
			retryDelay = min(retryDelay*2, maxAcceptRetryGap)
			continue
		}
		retryDelay = acceptRetryDelay

		if !s.track(conn) {
			conn.Close()
			return nil
		}
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Connection handler panicked",
				"server", s.name,
				"remote_addr", remote,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()

	hsCtx, cancel := context.WithTimeout(s.ctx, handshakeTimeout)
	err := Handshake(hsCtx, conn)
	cancel()
	if err != nil {
		slog.Warn("Dropping connection", "server", s.name, "remote_addr", remote, "error", err)
		return
	}

	slog.Debug("Connection accepted", "server", s.name, "remote_addr", remote)
	s.handler(s.ctx, conn)
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// ActiveConnections returns the number of connections being served.
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Stop closes the listener and waits for in-flight handlers. When ctx expires
// first, open connections are closed and handler contexts cancelled.
func (s *Server) Stop(ctx context.Context) error {
	slog.Info("Stopping " + s.name + " server")

	s.mu.Lock()
	s.closed = true
	var err error
	if s.listener != nil {
		if cerr := s.listener.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = fmt.Errorf("failed to close listener: %w", cerr)
		}
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info(s.name + " server stopped gracefully")
	case <-ctx.Done():
		slog.Warn(s.name+" server stop timeout, closing connections", "active", s.ActiveConnections())
		s.cancel()
		s.mu.Lock()
		for conn := range s.conns {
			conn.Close()
		}
		s.mu.Unlock()
		<-done
	}

	s.cancel()
	return err
}

func (s *Server) StopWithTimeout(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.Stop(ctx)
}
