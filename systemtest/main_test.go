package systemtest

import (
	"context"
	"testing"
	"time"

	"github.com/EternisAI/orca/internal/db"
	"github.com/EternisAI/orca/systemtest/postgres"
	"github.com/EternisAI/orca/systemtest/tests"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
)

func TestSystemIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("system tests need Docker")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := postgres.StartPostgres(ctx, "orca", "orca", "orca")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := postgres.TerminatePostgres(context.Background(), container); err != nil {
			t.Logf("terminate postgres: %v", err)
		}
	})

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := db.Open(ctx, db.Config{Url: url, Migrate: true, MaxConns: 5})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	gin.SetMode(gin.TestMode)

	t.Run("IdentityStore", func(t *testing.T) { tests.TestIdentityStore(t, pool) })
	t.Run("AuditStore", func(t *testing.T) { tests.TestAuditStore(t, pool) })
	t.Run("Fleet", func(t *testing.T) { tests.TestFleet(t, pool) })
	t.Run("MigrationsIntoSchema", func(t *testing.T) { tests.TestMigrationsIntoSchema(t, url) })
}
