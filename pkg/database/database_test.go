package database_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pseudomuto/pgkeeper/pkg/config"
	. "github.com/pseudomuto/pgkeeper/pkg/database"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

func TestDropStatements(t *testing.T) {
	require.Equal(t, []string{
		`DROP SCHEMA IF EXISTS "public" CASCADE`,
		`CREATE SCHEMA "public"`,
		`DROP SCHEMA IF EXISTS "Audit ""Log""" CASCADE`,
		`CREATE SCHEMA "Audit ""Log"""`,
	}, DropStatements([]string{"public", `Audit "Log"`}))

	require.Empty(t, DropStatements(nil))
}

func TestManager_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing schema file", func(t *testing.T) {
		m := New(&config.Config{SchemaFile: filepath.Join(t.TempDir(), "nope.sql")})
		require.ErrorContains(t, m.CreateAll(ctx), "failed to read schema file")
	})

	t.Run("sqlite3 is not supported", func(t *testing.T) {
		m := New(&config.Config{Driver: "sqlite3", DatabaseURL: filepath.Join(t.TempDir(), "app.db")})
		require.ErrorContains(t, m.DropAll(ctx), "schema management requires PostgreSQL")
	})
}

func TestManager(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping PostgreSQL container test in short mode")
	}

	ctx := context.Background()
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("app"),
		postgres.WithUsername("admin"),
		postgres.WithPassword("s3cret"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Skipf("PostgreSQL container not available: %v", err)
	}

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	cfg := &config.Config{
		DatabaseURL: dsn,
		Driver:      "pgx",
		SchemaFile:  filepath.Join("testdata", "schema.sql"),
		Schemas:     []string{"public", "audit"},
	}
	m := New(cfg)

	tables := func() int {
		conn, err := pgx.Connect(ctx, dsn)
		require.NoError(t, err)
		defer func() { _ = conn.Close(ctx) }()

		var n int
		err = conn.QueryRow(ctx,
			"SELECT count(*) FROM information_schema.tables WHERE table_schema IN ('public', 'audit')",
		).Scan(&n)
		require.NoError(t, err)
		return n
	}

	require.NoError(t, m.CreateAll(ctx))
	require.Equal(t, 2, tables())

	require.NoError(t, m.DropAll(ctx))
	require.Equal(t, 0, tables())

	// the schemas are recreated, so the DDL runs again cleanly
	require.NoError(t, m.CreateAll(ctx))
	require.Equal(t, 2, tables())
}
