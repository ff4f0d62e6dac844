package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/EternisAI/orca/internal/agent"
	"github.com/EternisAI/orca/internal/transport"
)

var AppVersion string

const (
	shutdownTimeout = 10 * time.Second
	dialTimeout     = 10 * time.Second
)

func main() {
	closeLog := InitConfig()
	defer closeLog()

	slog.Info("Orca Agent", "version", AppVersion)

	if err := run(); err != nil {
		slog.Error("Agent failed", "error", err)
		closeLog()
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registryTLS, err := cfg.Agent.RegistryTLS.ClientTLS()
	if err != nil {
		return fmt.Errorf("failed to load registry TLS configuration: %w", err)
	}
	listenerTLS, err := cfg.Agent.TLS.ServerTLS()
	if err != nil {
		return fmt.Errorf("failed to load listener TLS configuration: %w", err)
	}

	// The listener must not start without a confirmed identity.
	registrar := agent.NewRegistrar(
		cfg.Agent.RegistrarConfig,
		transport.NewDialer(registryTLS, dialTimeout),
		agent.NewStateFile(cfg.Agent.StateFile),
	)
	id, err := registrar.Register(ctx)
	if err != nil {
		return fmt.Errorf("failed to register with registry: %w", err)
	}

	listener := agent.NewListener(cfg.Agent.ListenerConfig, listenerTLS)
	if err := listener.Listen(); err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	slog.Info("Agent ready", "id", id, "address", listener.Addr().String())

	errChan := make(chan error, 1)
	go func() {
		if err := listener.Start(); err != nil {
			errChan <- fmt.Errorf("agent listener error: %w", err)
		}
	}()

	select {
	case err := <-errChan:
		slog.Error("Server error", "error", err)
	case <-ctx.Done():
		slog.Info("Received shutdown signal")
	}

	slog.Info("Shutting down servers...")
	if err := listener.StopWithTimeout(shutdownTimeout); err != nil {
		slog.Error("Agent listener shutdown error", "error", err)
	}
	slog.Info("Shutdown complete")
	return nil
}
