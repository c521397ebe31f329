package game

import (
	"fmt"
	"log"
	"sync"

	"github.com/strelk0v/roulette-backend/internal"
	"github.com/strelk0v/roulette-backend/internal/utils"
)

// groupSlot is the directory key suffix reserved for the group-mode
// session of a group. Duel members are keyed by their own identity, so the
// two kinds of session never collide.
const groupSlot = "group"

// Registry is the concurrency-safe directory of live sessions. A duel is
// reachable through both participants' keys; the group game through the
// group slot. The arena map owns sessions by their stable handle and a
// session is freed only once every directory key referencing it is gone.
// Check-then-create runs inside one critical section: two overlapping
// creates can never both succeed.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*internal.Session // "<group>:<key>" -> shared session
	arena    map[string]*internal.Session // session handle -> session
	refs     map[string]int               // session handle -> live key count
	draw     func() int                   // chamber draw, injectable for tests
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*internal.Session),
		arena:    make(map[string]*internal.Session),
		refs:     make(map[string]int),
		draw:     utils.DrawChamber,
	}
}

// SetDraw overrides the chamber draw. Test hook.
func (r *Registry) SetDraw(draw func() int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draw = draw
}

func dirKey(groupID, id string) string {
	return groupID + ":" + id
}

// CreateDuel registers a two-party session, initiator first in turn order.
func (r *Registry) CreateDuel(initiator, target, groupID string, penaltyDuration int) (*internal.Session, error) {
	if initiator == target {
		return nil, internal.ErrSelfDuel
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	k1 := dirKey(groupID, initiator)
	k2 := dirKey(groupID, target)
	if _, busy := r.sessions[k1]; busy {
		return nil, fmt.Errorf("initiator %s: %w", initiator, internal.ErrConflict)
	}
	if _, busy := r.sessions[k2]; busy {
		return nil, fmt.Errorf("target %s: %w", target, internal.ErrConflict)
	}

	sess := internal.NewSession(internal.ModeDuel, []string{initiator, target}, r.draw(), penaltyDuration)
	r.sessions[k1] = sess
	r.sessions[k2] = sess
	r.arena[sess.ID] = sess
	r.refs[sess.ID] = 2

	log.Printf("[CreateDuel] group=%s session=%s %s vs %s liveTurn=%d penalty=%ds",
		groupID, sess.ID, initiator, target, sess.LiveTurn, penaltyDuration)
	return sess, nil
}

// CreateGroup registers the group-mode session for a group. At most one
// exists per group; duels in the same group are independent keys.
func (r *Registry) CreateGroup(groupID string, penaltyDuration int) (*internal.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := dirKey(groupID, groupSlot)
	if _, busy := r.sessions[k]; busy {
		return nil, fmt.Errorf("group %s: %w", groupID, internal.ErrConflict)
	}

	sess := internal.NewSession(internal.ModeGroup, nil, r.draw(), penaltyDuration)
	r.sessions[k] = sess
	r.arena[sess.ID] = sess
	r.refs[sess.ID] = 1

	log.Printf("[CreateGroup] group=%s session=%s liveTurn=%d penalty=%ds",
		groupID, sess.ID, sess.LiveTurn, penaltyDuration)
	return sess, nil
}

// Lookup finds the session identity should act in: their duel first, then
// the group game. The order is fixed so behavior stays deterministic even
// if the exclusivity invariant were ever violated.
func (r *Registry) Lookup(identity, groupID string) *internal.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sess, ok := r.sessions[dirKey(groupID, identity)]; ok {
		return sess
	}
	return r.sessions[dirKey(groupID, groupSlot)]
}

// GroupSession returns the group-mode session only, or nil.
func (r *Registry) GroupSession(groupID string) *internal.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[dirKey(groupID, groupSlot)]
}

// IsEnrolled reports whether identity holds a duel key in this group.
func (r *Registry) IsEnrolled(identity, groupID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[dirKey(groupID, identity)]
	return ok
}

// Get resolves a session by its stable handle.
func (r *Registry) Get(sessionID string) *internal.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.arena[sessionID]
}

// Destroy removes the supplied participant keys and the group slot
// unconditionally. Removing an absent key is a no-op, so teardown is
// idempotent. The arena entry is freed once its last key is gone.
func (r *Registry) Destroy(groupID string, participants []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(participants)+1)
	for _, p := range participants {
		keys = append(keys, dirKey(groupID, p))
	}
	keys = append(keys, dirKey(groupID, groupSlot))

	for _, k := range keys {
		sess, ok := r.sessions[k]
		if !ok {
			continue
		}
		delete(r.sessions, k)
		r.refs[sess.ID]--
		if r.refs[sess.ID] <= 0 {
			delete(r.refs, sess.ID)
			delete(r.arena, sess.ID)
			log.Printf("[Destroy] group=%s session=%s freed", groupID, sess.ID)
		}
	}
}
