package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/EternisAI/orca/internal/protocol"
	"github.com/EternisAI/orca/internal/transport"
	"github.com/codeGROOVE-dev/retry"
)

const (
	DefaultMaxAttempts  = 3
	DefaultDialAttempts = 5

	initialDialBackoff = time.Second
	maxDialBackoff     = 30 * time.Second
	exchangeTimeout    = 30 * time.Second
	maxResultBytes     = 4096
)

var (
	ErrRegistrationExhausted = errors.New("registration attempts exhausted")
	ErrUnexpectedResponse    = errors.New("unexpected response from registry")
)

type RegistrarConfig struct {
	RegistryAddress string `mapstructure:"registry_address"`
	MaxAttempts     int    `mapstructure:"max_attempts"`
	DialAttempts    int    `mapstructure:"dial_attempts"`
}

// FactsFunc gathers local facts given the local IP of the registry connection.
type FactsFunc func(localIP string) Facts

// Registrar runs the check-in sequence against the registry.
type Registrar struct {
	cfg    RegistrarConfig
	dialer transport.Dialer
	state  *StateFile
	facts  FactsFunc
}

func NewRegistrar(cfg RegistrarConfig, dialer transport.Dialer, state *StateFile) *Registrar {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.DialAttempts <= 0 {
		cfg.DialAttempts = DefaultDialAttempts
	}
	return &Registrar{
		cfg:    cfg,
		dialer: dialer,
		state:  state,
		facts:  GatherFacts,
	}
}

// Register checks in and returns the confirmed id. A UUID_IN_USE answer
// discards the persisted id and retries as a new machine, at most
// MaxAttempts times in total.
func (r *Registrar) Register(ctx context.Context) (string, error) {
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		id, err := r.state.Load()
		if err != nil {
			return "", err
		}

		slog.Info("Checking in with registry", "address", r.cfg.RegistryAddress, "id", id, "attempt", attempt)

		result, err := r.exchange(ctx, id)
		if err != nil {
			return "", err
		}

		switch {
		case result.Accepted():
			if err := r.state.Save(result.UUID); err != nil {
				return "", err
			}
			slog.Info("Registered with registry", "id", result.UUID, "outcome", result.Outcome)
			return result.UUID, nil

		case result.Outcome == protocol.OutcomeUUIDInUse:
			slog.Warn("Id already in use by another machine, requesting a new one", "id", id)
			if err := r.state.Clear(); err != nil {
				return "", err
			}

		default:
			return "", fmt.Errorf("%w: %s", ErrUnexpectedResponse, result)
		}
	}

	return "", fmt.Errorf("%w after %d attempts", ErrRegistrationExhausted, r.cfg.MaxAttempts)
}

func (r *Registrar) exchange(ctx context.Context, id string) (protocol.Result, error) {
	var conn net.Conn
	err := retry.Do(func() error {
		c, err := r.dialer.DialContext(ctx, r.cfg.RegistryAddress, "")
		if err != nil {
			slog.Warn("Failed to reach registry", "address", r.cfg.RegistryAddress, "error", err)
			return err
		}
		conn = c
		return nil
	}, retry.Attempts(uint(r.cfg.DialAttempts)), retry.Delay(initialDialBackoff), retry.MaxDelay(maxDialBackoff), retry.Context(ctx))
	if err != nil {
		return protocol.Result{}, fmt.Errorf("failed to connect to registry: %w", err)
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(exchangeTimeout))

	facts := r.facts(transport.LocalIP(conn))
	payload := protocol.Identity{
		UUID:       id,
		IP:         facts.IP,
		Hostname:   protocol.StringPtr(facts.Hostname),
		MACAddress: protocol.StringPtr(facts.MACAddress),
	}

	if err := json.NewEncoder(conn).Encode(payload); err != nil {
		return protocol.Result{}, fmt.Errorf("failed to send identity: %w", err)
	}

	raw, err := io.ReadAll(io.LimitReader(conn, maxResultBytes))
	if err != nil && len(raw) == 0 {
		return protocol.Result{}, fmt.Errorf("failed to read registration result: %w", err)
	}

	result, err := protocol.ParseResult(raw)
	if err != nil {
		return protocol.Result{}, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	return result, nil
}
