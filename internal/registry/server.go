package registry

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/EternisAI/orca/internal/protocol"
	"github.com/EternisAI/orca/internal/transport"
)

const (
	DefaultReadTimeout     = 10 * time.Second
	DefaultPersistTimeout  = 10 * time.Second
	DefaultMaxPayloadBytes = 64 * 1024
	writeTimeout           = 5 * time.Second
	lingerTimeout          = time.Second
)

type Config struct {
	ListenAddress   string              `mapstructure:"listen_address"`
	ReadTimeout     time.Duration       `mapstructure:"read_timeout"`
	PersistTimeout  time.Duration       `mapstructure:"persist_timeout"`
	MaxPayloadBytes int64               `mapstructure:"max_payload_bytes"`
	TLS             transport.TLSConfig `mapstructure:"tls"`
}

// Server answers one registration exchange per connection.
type Server struct {
	service         *Service
	readTimeout     time.Duration
	persistTimeout  time.Duration
	maxPayloadBytes int64
	srv             *transport.Server
}

func NewServer(cfg Config, service *Service, tlsConfig *tls.Config) *Server {
	s := &Server{
		service:         service,
		readTimeout:     cfg.ReadTimeout,
		persistTimeout:  cfg.PersistTimeout,
		maxPayloadBytes: cfg.MaxPayloadBytes,
	}
	if s.readTimeout <= 0 {
		s.readTimeout = DefaultReadTimeout
	}
	if s.persistTimeout <= 0 {
		s.persistTimeout = DefaultPersistTimeout
	}
	if s.maxPayloadBytes <= 0 {
		s.maxPayloadBytes = DefaultMaxPayloadBytes
	}
	s.srv = transport.NewServer("registry", cfg.ListenAddress, tlsConfig, s.handle)
	return s
}

func (s *Server) Listen() error { return s.srv.Listen() }

func (s *Server) Addr() net.Addr { return s.srv.Addr() }

func (s *Server) Start() error { return s.srv.Start() }

func (s *Server) Stop(ctx context.Context) error { return s.srv.Stop(ctx) }

func (s *Server) StopWithTimeout(timeout time.Duration) error {
	return s.srv.StopWithTimeout(timeout)
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	remote := conn.RemoteAddr().String()
	result := s.exchange(ctx, conn)

	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := json.NewEncoder(conn).Encode(result); err != nil {
		if !transport.IsExpectedCloseError(err) {
			slog.Warn("Failed to write registration result", "remote_addr", remote, "error", err)
		}
		return
	}

	slog.Debug("Registration exchange complete", "remote_addr", remote, "outcome", result.Outcome)
	transport.CloseWrite(conn, lingerTimeout)
}

func (s *Server) exchange(ctx context.Context, conn net.Conn) protocol.Result {
	_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))

	var presented protocol.Identity
	if err := json.NewDecoder(io.LimitReader(conn, s.maxPayloadBytes)).Decode(&presented); err != nil {
		slog.Warn("Rejecting malformed identity", "remote_addr", conn.RemoteAddr().String(), "error", err)
		return protocol.Failure("failed to parse identity: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.persistTimeout)
	defer cancel()
	return s.service.Register(ctx, presented)
}
