package testutil

import (
	"context"
	"net"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/nkiryanov/authsession/internal/db"
)

const postgresImage = "postgres:17-alpine"

// Free port on loopback to run test server on
func RandomPort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer ln.Close() // nolint:errcheck

	return ln.Addr().(*net.TCPAddr).Port, nil
}

type PostgresContainer struct {
	// Pool to migrated database
	Pool *pgxpool.Pool
	DSN  string
}

// Run postgres in docker with users and sessions schema applied
// Test is skipped if docker is not available; container is removed on test cleanup
func StartPostgresContainer(t *testing.T) PostgresContainer {
	t.Helper()

	testcontainers.SkipIfProviderIsNotHealthy(t)

	container, err := postgres.Run(t.Context(),
		postgresImage,
		postgres.WithDatabase("authsession-test"),
		postgres.WithUsername("authsession"),
		postgres.WithPassword("pwd"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "postgres container not started")

	dsn, err := container.ConnectionString(t.Context(), "sslmode=disable")
	require.NoError(t, err, "postgres container has no connection string")
	t.Logf("postgres container started, DSN=%v", dsn)

	pool, err := db.ConnectAndMigrate(t.Context(), dsn)
	require.NoError(t, err, "postgres schema not migrated")
	t.Cleanup(pool.Close)

	return PostgresContainer{Pool: pool, DSN: dsn}
}

type beginner interface {
	Begin(context.Context) (pgx.Tx, error)
}

// Run testFunc in transaction rolled back when it returns, so tests share one database
// Nested calls are fine: pgx turns them into savepoints
func InTx(db beginner, t *testing.T, testFunc func(tx pgx.Tx)) {
	t.Helper()

	tx, err := db.Begin(t.Context())
	require.NoError(t, err)

	defer func() {
		require.NoError(t, tx.Rollback(t.Context()))
	}()

	testFunc(tx)
}
