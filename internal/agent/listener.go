package agent

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/EternisAI/orca/internal/protocol"
	"github.com/EternisAI/orca/internal/transport"
)

const (
	DefaultListenAddress   = ":7000"
	DefaultMaxMessageBytes = 64 << 20
)

type ListenerConfig struct {
	ListenAddress   string        `mapstructure:"listen_address"`
	WorkspaceDir    string        `mapstructure:"workspace_dir"`
	ExecTimeout     time.Duration `mapstructure:"exec_timeout"`
	// ReadTimeout and WriteTimeout bound reading the request and writing the
	// output. Zero disables the deadline.
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxMessageBytes int           `mapstructure:"max_message_bytes"`
}

// Listener accepts dispatch connections and runs each command in its own
// workspace. Connections are served concurrently.
type Listener struct {
	cfg ListenerConfig
	srv *transport.Server
}

func NewListener(cfg ListenerConfig, tlsConfig *tls.Config) *Listener {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}
	if cfg.WorkspaceDir == "" {
		cfg.WorkspaceDir = DefaultWorkspaceRoot()
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = DefaultMaxMessageBytes
	}

	l := &Listener{cfg: cfg}
	l.srv = transport.NewServer("agent", cfg.ListenAddress, tlsConfig, l.handle)
	return l
}

func (l *Listener) Listen() error { return l.srv.Listen() }

func (l *Listener) Addr() net.Addr { return l.srv.Addr() }

func (l *Listener) Start() error { return l.srv.Start() }

func (l *Listener) Stop(ctx context.Context) error { return l.srv.Stop(ctx) }

func (l *Listener) StopWithTimeout(timeout time.Duration) error {
	return l.srv.StopWithTimeout(timeout)
}

func (l *Listener) handle(ctx context.Context, conn net.Conn) {
	remote := conn.RemoteAddr().String()

	setDeadline(conn.SetReadDeadline, l.cfg.ReadTimeout)
	msg, err := protocol.ReadMessage(bufio.NewReader(conn), l.cfg.MaxMessageBytes)
	if err != nil {
		if errors.Is(err, protocol.ErrEmptyMessage) {
			slog.Warn("Received empty message from dispatcher", "remote_addr", remote)
		} else {
			slog.Error("Discarding dispatch message", "remote_addr", remote, "error", err)
		}
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	slog.Info("Received command", "remote_addr", remote, "command", msg.Command, "files", len(msg.Files))

	output := l.run(ctx, msg)

	setDeadline(conn.SetWriteDeadline, l.cfg.WriteTimeout)
	if _, err := conn.Write(output); err != nil {
		if transport.IsExpectedCloseError(err) {
			slog.Debug("Dispatcher went away before the response was written", "remote_addr", remote)
		} else {
			slog.Error("Failed to write command output", "remote_addr", remote, "error", err)
		}
		return
	}
	transport.CloseWrite(conn, time.Second)
}

// run stages the workspace, executes the command and always reclaims the
// workspace before returning the output.
func (l *Listener) run(ctx context.Context, msg protocol.DispatchMessage) []byte {
	ws, err := NewWorkspace(l.cfg.WorkspaceDir)
	if err != nil {
		slog.Error("Failed to allocate workspace", "error", err)
		return []byte(err.Error() + "\n")
	}
	defer ws.Remove()

	ws.Materialize(msg.Files)

	result, err := Execute(ctx, msg.Command, ws.Dir, l.cfg.ExecTimeout)
	if err != nil {
		slog.Error("Command execution failed", "command", msg.Command, "error", err)
		out := result.Output()
		return append(out, []byte(err.Error()+"\n")...)
	}

	if result.ExitCode != 0 {
		slog.Warn("Command exited with non-zero status",
			"command", msg.Command,
			"exit_code", result.ExitCode,
			"stderr", string(result.Stderr))
	} else {
		slog.Info("Command executed successfully",
			"command", msg.Command,
			"duration", result.Duration,
			"output_bytes", len(result.Stdout)+len(result.Stderr))
	}

	return result.Output()
}

func setDeadline(set func(time.Time) error, d time.Duration) {
	if d > 0 {
		_ = set(time.Now().Add(d))
	}
}
