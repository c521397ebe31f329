package game

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strelk0v/roulette-backend/internal"
)

func TestCreateDuel(t *testing.T) {
	require := require.New(t)
	r := NewRegistry()
	r.SetDraw(func() int { return 4 })

	sess, err := r.CreateDuel("alice", "bob", "g1", 60)
	require.NoError(err)
	require.Equal(internal.ModeDuel, sess.Mode)
	require.Equal([]string{"alice", "bob"}, sess.Players)
	require.Equal(4, sess.LiveTurn)

	require.True(r.IsEnrolled("alice", "g1"))
	require.True(r.IsEnrolled("bob", "g1"))
	require.Same(sess, r.Lookup("alice", "g1"))
	require.Same(sess, r.Lookup("bob", "g1"))
	require.Same(sess, r.Get(sess.ID))
}

func TestCreateDuelWithSelf(t *testing.T) {
	r := NewRegistry()
	_, err := r.CreateDuel("alice", "alice", "g1", 60)
	assert.ErrorIs(t, err, internal.ErrSelfDuel)
}

func TestCreateDuelConflict(t *testing.T) {
	assert := assert.New(t)
	r := NewRegistry()

	_, err := r.CreateDuel("alice", "bob", "g1", 60)
	assert.NoError(err)

	// Either participant being busy declines the new duel and leaves the
	// registry untouched.
	_, err = r.CreateDuel("alice", "carol", "g1", 60)
	assert.ErrorIs(err, internal.ErrConflict)
	_, err = r.CreateDuel("carol", "bob", "g1", 60)
	assert.ErrorIs(err, internal.ErrConflict)
	assert.False(r.IsEnrolled("carol", "g1"))

	// Same identities in another group are free.
	_, err = r.CreateDuel("alice", "bob", "g2", 60)
	assert.NoError(err)
}

func TestGroupSessionConflict(t *testing.T) {
	assert := assert.New(t)
	r := NewRegistry()

	_, err := r.CreateGroup("g1", 60)
	assert.NoError(err)
	_, err = r.CreateGroup("g1", 60)
	assert.ErrorIs(err, internal.ErrConflict)
	_, err = r.CreateGroup("g2", 60)
	assert.NoError(err)
}

func TestDuelAndGroupCoexist(t *testing.T) {
	require := require.New(t)
	r := NewRegistry()

	duel, err := r.CreateDuel("alice", "bob", "g1", 60)
	require.NoError(err)
	group, err := r.CreateGroup("g1", 60)
	require.NoError(err)

	// An enrolled duelist resolves to their duel first; everyone else
	// falls through to the group slot.
	require.Same(duel, r.Lookup("alice", "g1"))
	require.Same(group, r.Lookup("carol", "g1"))
	require.Same(group, r.GroupSession("g1"))
}

func TestDestroyIdempotent(t *testing.T) {
	assert := assert.New(t)
	r := NewRegistry()

	sess, err := r.CreateDuel("alice", "bob", "g1", 60)
	assert.NoError(err)

	r.Destroy("g1", sess.Players)
	assert.Nil(r.Lookup("alice", "g1"))
	assert.Nil(r.Lookup("bob", "g1"))
	assert.Nil(r.Get(sess.ID))

	// Removing absent keys is a no-op.
	r.Destroy("g1", sess.Players)
	r.Destroy("g1", nil)
}

func TestDestroyGroupSlotOnly(t *testing.T) {
	require := require.New(t)
	r := NewRegistry()

	duel, err := r.CreateDuel("alice", "bob", "g1", 60)
	require.NoError(err)
	_, err = r.CreateGroup("g1", 60)
	require.NoError(err)

	// Tearing down the group slot leaves the duel alone.
	r.Destroy("g1", nil)
	require.Nil(r.GroupSession("g1"))
	require.Same(duel, r.Lookup("alice", "g1"))
}

func TestConcurrentCreateSingleWinner(t *testing.T) {
	r := NewRegistry()

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Every attempt involves alice, so at most one may succeed.
			_, errs[i] = r.CreateDuel("alice", fmt.Sprintf("rival-%d", i), "g1", 60)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded, "check-then-create must be one critical section")
}
