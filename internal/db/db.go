package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Config struct {
	Url      string `mapstructure:"url"`
	Schema   string `mapstructure:"schema"`
	Migrate  bool   `mapstructure:"migrate"`
	MaxConns int32  `mapstructure:"max_conns"`
}

const (
	defaultMaxConns = 10
	defaultMinConns = 2
)

// Open runs pending migrations when cfg.Migrate is set and returns a ready pool.
func Open(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	if cfg.Url == "" {
		return nil, fmt.Errorf("database url is required")
	}

	if cfg.Migrate {
		if err := RunMigrations(ctx, cfg.Url, cfg.Schema); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return InitDB(ctx, cfg.Url, cfg.Schema, cfg.MaxConns)
}

func InitDB(ctx context.Context, url string, schema string, maxConns int32) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	if maxConns <= 0 {
		maxConns = defaultMaxConns
	}
	poolConfig.MaxConns = maxConns
	poolConfig.MinConns = min(defaultMinConns, maxConns)

	if schema != "" {
		poolConfig.ConnConfig.RuntimeParams["search_path"] = schema
		slog.Info("Setting search_path for connection pool", "schema", schema)

		// Poolers such as PgBouncer may reset session settings, so set it on every new connection too.
		poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", pgx.Identifier{schema}.Sanitize()))
			if err != nil {
				slog.Warn("Failed to set search_path in AfterConnect", "error", err)
				return err
			}
			slog.Debug("Set search_path for new connection", "schema", schema)
			return nil
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	slog.Info("Connected to PostgreSQL", "max_conns", poolConfig.MaxConns)

	return pool, nil
}
