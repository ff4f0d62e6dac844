// Package dispatch sends one command to one agent and records what came back.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/EternisAI/orca/internal/audit"
	"github.com/EternisAI/orca/internal/identity"
	"github.com/EternisAI/orca/internal/protocol"
	"github.com/EternisAI/orca/internal/transport"
)

const (
	DefaultAgentPort        = 7000
	DefaultConnectTimeout   = 10 * time.Second
	DefaultMaxResponseBytes = 16 << 20
	auditTimeout            = 10 * time.Second
)

var (
	ErrResolve = errors.New("failed to resolve target")
	ErrConnect = errors.New("failed to connect to agent")
	ErrSend    = errors.New("failed to send command")
	ErrRead    = errors.New("failed to read response")
)

type Resolver interface {
	Lookup(ctx context.Context, identifier string) (*identity.Identity, error)
}

type Recorder interface {
	Record(ctx context.Context, event audit.Event) (*audit.Event, error)
}

type Config struct {
	AgentPort        int                 `mapstructure:"agent_port"`
	ConnectTimeout   time.Duration       `mapstructure:"connect_timeout"`
	// ReadTimeout bounds the wait for the agent's response. Zero waits until
	// the agent closes the connection.
	ReadTimeout      time.Duration       `mapstructure:"read_timeout"`
	MaxResponseBytes int64               `mapstructure:"max_response_bytes"`
	TLS              transport.TLSConfig `mapstructure:"tls"`
}

type Request struct {
	Target  string
	Command string
	// FilePaths are local files read and attached by base name.
	FilePaths []string
	// Files are attached as given, after FilePaths.
	Files []protocol.File
}

type Result struct {
	Identity  identity.Identity
	Command   string
	Response  []byte
	Files     []string
	Truncated bool
	// Event is nil when the audit write failed.
	Event *audit.Event
}

type Dispatcher struct {
	cfg      Config
	resolver Resolver
	recorder Recorder
	dialer   transport.Dialer
}

func New(cfg Config, resolver Resolver, recorder Recorder, dialer transport.Dialer) *Dispatcher {
	if cfg.AgentPort <= 0 {
		cfg.AgentPort = DefaultAgentPort
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = DefaultMaxResponseBytes
	}
	if dialer == nil {
		dialer = transport.PlainDialer{Timeout: cfg.ConnectTimeout}
	}
	return &Dispatcher{cfg: cfg, resolver: resolver, recorder: recorder, dialer: dialer}
}

// Dispatch resolves the target, sends the command with its files and returns
// the agent's output. The exchange is recorded whenever any output arrived;
// a failed audit write is logged and does not fail the dispatch.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*Result, error) {
	target, err := d.resolver.Lookup(ctx, req.Target)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrResolve, req.Target, err)
	}

	msg := protocol.DispatchMessage{
		Command: req.Command,
		Files:   append(ReadFiles(req.FilePaths), req.Files...),
	}

	address := net.JoinHostPort(target.Address(), strconv.Itoa(d.cfg.AgentPort))
	slog.Info("Connecting to agent", "id", target.ID, "address", address)

	dialCtx, cancel := context.WithTimeout(ctx, d.cfg.ConnectTimeout)
	conn, err := d.dialer.DialContext(dialCtx, address, target.ServerName())
	cancel()
	if err != nil {
		return nil, fmt.Errorf("%w at %s: %w", ErrConnect, address, err)
	}
	defer conn.Close()

	if err := protocol.WriteMessage(conn, msg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSend, err)
	}

	result := &Result{
		Identity: *target,
		Command:  req.Command,
		Files:    msg.FileNames(),
	}

	if d.cfg.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(d.cfg.ReadTimeout))
	}
	response, readErr := io.ReadAll(io.LimitReader(conn, d.cfg.MaxResponseBytes+1))
	if int64(len(response)) > d.cfg.MaxResponseBytes {
		response = response[:d.cfg.MaxResponseBytes]
		result.Truncated = true
		readErr = nil
		slog.Warn("Agent response truncated", "id", target.ID, "limit", d.cfg.MaxResponseBytes)
	}
	result.Response = response

	if readErr != nil && len(response) == 0 {
		return nil, fmt.Errorf("%w from %s: %w", ErrRead, address, readErr)
	}

	result.Event = d.record(ctx, result)

	if readErr != nil {
		return result, fmt.Errorf("%w from %s after %d bytes: %w", ErrRead, address, len(response), readErr)
	}
	return result, nil
}

func (d *Dispatcher) record(ctx context.Context, result *Result) *audit.Event {
	if d.recorder == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()

	event, err := d.recorder.Record(ctx, audit.Event{
		ClientID: result.Identity.ID,
		ClientIP: result.Identity.IP,
		Command:  result.Command,
		Response: string(result.Response),
		Files:    result.Files,
	})
	if err != nil {
		slog.Error("Failed to record dispatch event", "id", result.Identity.ID, "error", err)
		return nil
	}
	return event
}

// ReadFiles loads each path for attachment. Missing paths and anything that
// is not a regular file are logged and skipped.
func ReadFiles(paths []string) []protocol.File {
	files := make([]protocol.File, 0, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			slog.Warn("Skipping file", "path", path, "error", err)
			continue
		}
		if !info.Mode().IsRegular() {
			slog.Warn("Skipping file that is not a regular file", "path", path)
			continue
		}
		content, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("Skipping unreadable file", "path", path, "error", err)
			continue
		}
		files = append(files, protocol.File{Name: filepath.Base(path), Content: content})
	}
	return files
}

// ParseFileList splits a comma-separated list of paths.
func ParseFileList(list string) []string {
	var paths []string
	for _, p := range strings.Split(list, ",") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}
