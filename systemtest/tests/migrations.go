package tests

import (
	"context"
	"testing"

	"github.com/EternisAI/orca/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMigrationsIntoSchema applies the migrations twice into a dedicated
// schema and checks the tables land there.
func TestMigrationsIntoSchema(t *testing.T, url string) {
	ctx := context.Background()
	cfg := db.Config{Url: url, Schema: "orca_alt", Migrate: true, MaxConns: 2}

	pool, err := db.Open(ctx, cfg)
	require.NoError(t, err)
	pool.Close()

	pool, err = db.Open(ctx, cfg)
	require.NoError(t, err)
	defer pool.Close()

	var tables []string
	rows, err := pool.Query(ctx, `
SELECT table_name FROM information_schema.tables
WHERE table_schema = 'orca_alt' AND table_name IN ('identities', 'dispatch_events', 'goose_db_version')
ORDER BY table_name`)
	require.NoError(t, err)
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		tables = append(tables, name)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"dispatch_events", "goose_db_version", "identities"}, tables)
}
