package stats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startPostgres spins up a throwaway database for the store tests.
func startPostgres(t *testing.T, ctx context.Context) string {
	t.Helper()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("roulette"),
		postgres.WithUsername("roulette"),
		postgres.WithPassword("roulette"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return connStr
}

func TestPostgresStoreRoundtrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	require := require.New(t)
	ctx := context.Background()
	connStr := startPostgres(t, ctx)

	store, err := NewPostgresStore(ctx, connStr)
	require.NoError(err)
	defer store.Close()

	data, err := store.Load(ctx)
	require.NoError(err, "empty table is not an error")
	require.Nil(data)

	require.NoError(store.Save(ctx, []byte(`{"version":1,"users":{"alice":{"total":1}}}`)))
	data, err = store.Load(ctx)
	require.NoError(err)
	require.JSONEq(`{"version":1,"users":{"alice":{"total":1}}}`, string(data))

	// Second save upserts the single row rather than inserting another.
	require.NoError(store.Save(ctx, []byte(`{"version":1,"users":{}}`)))
	data, err = store.Load(ctx)
	require.NoError(err)
	require.JSONEq(`{"version":1,"users":{}}`, string(data))
}

func TestLedgerOverPostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	require := require.New(t)
	ctx := context.Background()
	connStr := startPostgres(t, ctx)

	store, err := NewPostgresStore(ctx, connStr)
	require.NoError(err)
	defer store.Close()

	l := NewLedger(ctx, store)
	l.RecordResult(ctx, "alice", []string{"bob"}, true, "g1")
	l.RecordResult(ctx, "alice", nil, false, "g1")

	// A second store over the same database sees the committed ledger.
	reopened, err := NewPostgresStore(ctx, connStr)
	require.NoError(err)
	defer reopened.Close()

	reloaded := NewLedger(ctx, reopened)
	alice, ok := reloaded.UserStats("alice", "g1")
	require.True(ok)
	require.Equal(UserRecord{Total: 2, Losses: 2}, alice)

	pair, ok := reloaded.PairStats("alice", "bob", "")
	require.True(ok)
	require.Equal(1, pair.Wins["bob"])
}
