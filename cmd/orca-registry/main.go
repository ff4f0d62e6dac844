package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/EternisAI/orca/internal/db"
	"github.com/EternisAI/orca/internal/identity"
	"github.com/EternisAI/orca/internal/registry"
)

var AppVersion string

const shutdownTimeout = 10 * time.Second

func main() {
	closeLog := InitConfig()
	defer closeLog()

	slog.Info("Orca Registry", "version", AppVersion)

	ctx := context.Background()

	pool, err := db.Open(ctx, cfg.DB)
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	tlsConfig, err := cfg.Registry.TLS.ServerTLS()
	if err != nil {
		slog.Error("Failed to load TLS configuration", "error", err)
		os.Exit(1)
	}

	service := registry.NewService(identity.NewStore(pool))
	srv := registry.NewServer(cfg.Registry, service, tlsConfig)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errChan <- fmt.Errorf("registry server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		slog.Error("Server error", "error", err)
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig)
	}

	slog.Info("Shutting down servers...")

	if err := srv.StopWithTimeout(shutdownTimeout); err != nil {
		slog.Error("Registry server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
