package repository

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/eph-competitions/internal/database"
)

// newPostgresStore connects to EPH_TEST_POSTGRES_DSN and migrates the
// schema. Tests are skipped when the variable is unset.
func newPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("EPH_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("EPH_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, pool.Ping(ctx))
	require.NoError(t, database.Migrate(ctx, pool))
	return NewPostgresStore(pool)
}

func TestPostgresStore(t *testing.T) {
	testStore(t, newPostgresStore(t))
}

func TestPostgresStore_ReserveRace(t *testing.T) {
	testReserveRace(t, newPostgresStore(t))
}
