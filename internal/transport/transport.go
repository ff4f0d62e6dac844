// Package transport hides the difference between plain TCP and TLS byte
// streams. The variant is chosen once at startup from configuration; callers
// only ever see net.Conn and net.Listener.
package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"
)

const defaultDialTimeout = 10 * time.Second

// Dialer opens a byte stream to address. serverName is the name the peer's
// certificate must carry; plain dialers ignore it.
type Dialer interface {
	DialContext(ctx context.Context, address, serverName string) (net.Conn, error)
}

type PlainDialer struct {
	Timeout time.Duration
}

func (d PlainDialer) DialContext(ctx context.Context, address, _ string) (net.Conn, error) {
	nd := &net.Dialer{Timeout: orDefault(d.Timeout)}
	conn, err := nd.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}
	return conn, nil
}

type TLSDialer struct {
	Config  *tls.Config
	Timeout time.Duration
}

func (d TLSDialer) DialContext(ctx context.Context, address, serverName string) (net.Conn, error) {
	config := d.Config.Clone()
	if config.ServerName == "" {
		if serverName == "" {
			host, _, err := net.SplitHostPort(address)
			if err != nil {
				return nil, fmt.Errorf("invalid address %s: %w", address, err)
			}
			serverName = host
		}
		config.ServerName = serverName
	}

	td := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: orDefault(d.Timeout)},
		Config:    config,
	}
	conn, err := td.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to establish TLS connection to %s: %w", address, err)
	}
	return conn, nil
}

// NewDialer returns a TLS dialer when tlsConfig is non-nil, a plain one otherwise.
func NewDialer(tlsConfig *tls.Config, timeout time.Duration) Dialer {
	if tlsConfig != nil {
		return TLSDialer{Config: tlsConfig, Timeout: timeout}
	}
	return PlainDialer{Timeout: timeout}
}

// Listen binds address, wrapping accepted connections in TLS when tlsConfig is non-nil.
func Listen(address string, tlsConfig *tls.Config) (net.Listener, error) {
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	if tlsConfig != nil {
		return tls.NewListener(lis, tlsConfig), nil
	}
	return lis, nil
}

// Handshake completes the TLS handshake of a server-side connection so that
// certificate failures surface before any application bytes are read. It is a
// no-op for plain connections.
func Handshake(ctx context.Context, conn net.Conn) error {
	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		return nil
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return fmt.Errorf("TLS handshake failed: %w", err)
	}
	return nil
}

// RemoteIP returns the peer IP of conn without the port.
func RemoteIP(conn net.Conn) string {
	return hostOf(conn.RemoteAddr())
}

// LocalIP returns the local IP of conn without the port.
func LocalIP(conn net.Conn) string {
	return hostOf(conn.LocalAddr())
}

func hostOf(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

// IsExpectedCloseError reports whether err is a normal connection teardown:
// EOF, closed connection, broken pipe or connection reset.
func IsExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EPIPE || errno == syscall.ECONNRESET
	}
	return false
}

func orDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultDialTimeout
	}
	return d
}

// CloseWrite half-closes conn and discards whatever the peer still sends for
// up to d. Closing a socket with unread input makes the kernel reset the
// connection, which can destroy a response the peer has not read yet.
func CloseWrite(conn net.Conn, d time.Duration) {
	cw, ok := conn.(interface{ CloseWrite() error })
	if !ok {
		return
	}
	if err := cw.CloseWrite(); err != nil {
		return
	}
	_ = conn.SetReadDeadline(time.Now().Add(d))
	_, _ = io.Copy(io.Discard, conn)
}
