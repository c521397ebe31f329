package stats

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(l *Ledger, loser string, winners []string, groupID string) {
	l.RecordResult(context.Background(), loser, winners, len(winners) == 1, groupID)
}

func TestPairKeyCanonical(t *testing.T) {
	assert.Equal(t, "alice_bob", PairKey("alice", "bob"))
	assert.Equal(t, "alice_bob", PairKey("bob", "alice"))
}

func TestRecordResultUpdatesBothScopes(t *testing.T) {
	require := require.New(t)
	l := NewLedger(context.Background(), nil)

	record(l, "alice", []string{"bob"}, "g1")

	for _, scope := range []string{"", "g1"} {
		alice, ok := l.UserStats("alice", scope)
		require.True(ok, "scope %q", scope)
		require.Equal(UserRecord{Total: 1, Losses: 1}, alice)

		bob, ok := l.UserStats("bob", scope)
		require.True(ok, "scope %q", scope)
		require.Equal(UserRecord{Total: 1, Wins: 1, CurrentStreak: 1, MaxWinStreak: 1}, bob)

		pair, ok := l.PairStats("alice", "bob", scope)
		require.True(ok, "scope %q", scope)
		require.Equal(1, pair.Total)
		require.Equal(1, pair.Wins["bob"])
	}

	// Other groups stay untouched.
	_, ok := l.UserStats("alice", "g2")
	require.False(ok)
}

func TestStreakAlgebra(t *testing.T) {
	require := require.New(t)
	l := NewLedger(context.Background(), nil)

	// bob wins three straight, then loses one, then wins one.
	record(l, "alice", []string{"bob"}, "g1")
	record(l, "alice", []string{"bob"}, "g1")
	record(l, "carol", []string{"bob"}, "g1")
	record(l, "bob", []string{"alice"}, "g1")
	record(l, "carol", []string{"bob"}, "g1")

	bob, ok := l.UserStats("bob", "g1")
	require.True(ok)
	require.Equal(5, bob.Total)
	require.Equal(4, bob.Wins)
	require.Equal(1, bob.Losses)
	require.Equal(1, bob.CurrentStreak, "loss resets the streak")
	require.Equal(3, bob.MaxWinStreak, "best run survives the reset")
}

func TestGroupModeRecordsLoserOnly(t *testing.T) {
	require := require.New(t)
	l := NewLedger(context.Background(), nil)

	record(l, "alice", nil, "g1")

	alice, ok := l.UserStats("alice", "g1")
	require.True(ok)
	require.Equal(UserRecord{Total: 1, Losses: 1}, alice)

	top := l.TopByWinRate("g1", 1, 10)
	require.Len(top, 1)
	require.Equal(0.0, top[0].WinRate)

	_, ok = l.PairStats("alice", "bob", "g1")
	require.False(ok, "group games never touch the pair ledger")
}

func TestTopByWinRate(t *testing.T) {
	require := require.New(t)
	l := NewLedger(context.Background(), nil)

	// a: 2/3 wins, b: 1/1, c: 1/2, d: 0/1 (below min when minGames=2).
	record(l, "c", []string{"a"}, "")
	record(l, "d", []string{"a"}, "")
	record(l, "a", []string{"b"}, "")
	record(l, "x", []string{"c"}, "")

	top := l.TopByWinRate("", 2, 10)
	require.Len(top, 3)
	require.Equal("a", top[0].UserID)
	require.InDelta(2.0/3.0, top[0].WinRate, 1e-9)
	require.Equal("c", top[1].UserID)
	require.Equal("x", top[2].UserID)

	// Limit trims after ranking.
	top = l.TopByWinRate("", 2, 1)
	require.Len(top, 1)
	require.Equal("a", top[0].UserID)
}

func TestTopByWinRateStableTies(t *testing.T) {
	require := require.New(t)
	l := NewLedger(context.Background(), nil)

	// Three identities with identical 1/2 records, seen in a fixed order.
	record(l, "p2", []string{"p1"}, "")
	record(l, "p3", []string{"p2"}, "")
	record(l, "p1", []string{"p3"}, "")

	top := l.TopByWinRate("", 2, 10)
	require.Len(top, 3)
	require.Equal([]string{"p1", "p2", "p3"}, []string{top[0].UserID, top[1].UserID, top[2].UserID})
}

func TestLoadPartialSnapshot(t *testing.T) {
	require := require.New(t)

	store := &memStore{data: []byte(`{"users":{"alice":{"total":3,"wins":2}}}`)}
	l := NewLedger(context.Background(), store)

	alice, ok := l.UserStats("alice", "")
	require.True(ok)
	require.Equal(3, alice.Total)
	require.Equal(2, alice.Wins)

	// Recording into the normalized structures must not panic.
	record(l, "alice", []string{"bob"}, "g1")
	alice, _ = l.UserStats("alice", "")
	require.Equal(4, alice.Total)
}

func TestLoadCorruptSnapshotStartsEmpty(t *testing.T) {
	store := &memStore{data: []byte(`{not json`)}
	l := NewLedger(context.Background(), store)

	_, ok := l.UserStats("alice", "")
	assert.False(t, ok)
}

func TestSaveFailureKeepsMemoryAuthoritative(t *testing.T) {
	require := require.New(t)
	store := &memStore{saveErr: errors.New("disk on fire")}
	l := NewLedger(context.Background(), store)

	record(l, "alice", []string{"bob"}, "g1")

	bob, ok := l.UserStats("bob", "g1")
	require.True(ok)
	require.Equal(1, bob.Wins)
}

func TestFileStoreRoundtrip(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "stats.json")

	store := NewFileStore(path)
	data, err := store.Load(ctx)
	require.NoError(err, "missing file is not an error")
	require.Nil(data)

	l := NewLedger(ctx, store)
	record(l, "alice", []string{"bob"}, "g1")
	record(l, "bob", []string{"alice"}, "g1")

	// A fresh ledger over the same file sees the committed state.
	reloaded := NewLedger(ctx, NewFileStore(path))
	alice, ok := reloaded.UserStats("alice", "g1")
	require.True(ok)
	require.Equal(UserRecord{Total: 2, Wins: 1, Losses: 1, CurrentStreak: 1, MaxWinStreak: 1}, alice)

	pair, ok := reloaded.PairStats("bob", "alice", "")
	require.True(ok)
	require.Equal(2, pair.Total)
}

func TestConcurrentRecordAndRead(t *testing.T) {
	require := require.New(t)
	l := NewLedger(context.Background(), nil)

	const rounds = 200
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			record(l, "alice", []string{"bob"}, "g1")
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			// Every observed transaction is whole. Both counters only grow
			// and move together, so a pair count read first can never
			// exceed a user count read after it.
			if pair, ok := l.PairStats("alice", "bob", "g1"); ok {
				bob, bok := l.UserStats("bob", "g1")
				if bok && pair.Wins["bob"] > bob.Wins {
					t.Error("pair ledger ahead of user ledger")
					return
				}
			}
			_ = l.TopByWinRate("g1", 1, 5)
		}
	}()
	wg.Wait()

	bob, ok := l.UserStats("bob", "g1")
	require.True(ok)
	require.Equal(rounds, bob.Wins)
	require.Equal(rounds, bob.CurrentStreak)
}

// memStore is an in-memory Store for exercising load and save paths.
type memStore struct {
	mu      sync.Mutex
	data    []byte
	saveErr error
}

func (m *memStore) Load(_ context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data, nil
}

func (m *memStore) Save(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.data = append([]byte(nil), data...)
	return nil
}
