package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	internalhttp "github.com/EternisAI/orca/internal/api/http"
	"github.com/EternisAI/orca/internal/audit"
	"github.com/EternisAI/orca/internal/db"
	"github.com/EternisAI/orca/internal/dispatch"
	"github.com/EternisAI/orca/internal/identity"
	"github.com/EternisAI/orca/internal/transport"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var AppVersion string

const shutdownTimeout = 10 * time.Second

func main() {
	closeLog := InitConfig()
	defer closeLog()

	slog.Info("Orca API", "version", AppVersion)

	pool, err := db.Open(context.Background(), cfg.DB)
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	dispatchTLS, err := cfg.Dispatch.TLS.ClientTLS()
	if err != nil {
		slog.Error("Failed to load dispatch TLS configuration", "error", err)
		os.Exit(1)
	}

	identities := identity.NewStore(pool)
	events := audit.NewStore(pool)
	dispatcher := dispatch.New(cfg.Dispatch, identities, events,
		transport.NewDialer(dispatchTLS, cfg.Dispatch.ConnectTimeout))

	services := &internalhttp.Services{
		Identities:  identities,
		Events:      events,
		Dispatcher:  dispatcher,
		AdminAPIKey: cfg.Http.AdminAPIKey,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST"},
		AllowHeaders:  []string{"Origin", "Content-Length", "Content-Type", "X-API-Key", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}))
	engine.Use(gin.Recovery())
	internalhttp.SetupRoute(engine, services)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Http.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "address", httpServer.Addr, "tls", cfg.Http.TLSEnabled())
		var err error
		if cfg.Http.TLSEnabled() {
			err = httpServer.ListenAndServeTLS(cfg.Http.CertFile, cfg.Http.KeyFile)
		} else {
			err = httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
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

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	slog.Info("Shutdown complete")
}
