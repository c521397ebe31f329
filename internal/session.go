package internal

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Session is one live game. Duel sessions carry exactly two participants
// in turn order; group sessions start empty and collect participants as
// they fire. All state transitions go through Act, Surrender and Withdraw,
// which serialize on Mu. The claimed flag is the single-flight guard for
// every terminal transition: whoever wins the compare-and-swap owns the
// resolution, and every other path (a racing human action, a late timer
// fire) sees a declined action.
type Session struct {
	ID              string
	Mode            Mode
	Players         []string // duel only: [initiator, target]
	LiveTurn        int      // 1-indexed turn on which the penalty triggers
	PenaltyDuration int      // seconds
	CreatedAt       time.Time

	TurnsTaken int
	NextIdx    int                 // duel only: index into Players
	Acted      map[string]struct{} // group only: identities that already fired
	State      SessionState

	claimed atomic.Bool
	Mu      sync.Mutex
}

// NewSession creates a session with the live turn already drawn. Callers
// pass the draw in so tests can pin it.
func NewSession(mode Mode, players []string, liveTurn, penaltyDuration int) *Session {
	return &Session{
		ID:              uuid.NewString(),
		Mode:            mode,
		Players:         players,
		LiveTurn:        liveTurn,
		PenaltyDuration: penaltyDuration,
		CreatedAt:       time.Now(),
		Acted:           make(map[string]struct{}),
		State:           StateAwaitingAction,
	}
}

func (s *Session) canAct(identity string) bool {
	if s.Mode == ModeDuel {
		return identity == s.Players[s.NextIdx]
	}
	_, acted := s.Acted[identity]
	return !acted
}

// CanAct reports whether identity may take the next action.
func (s *Session) CanAct(identity string) bool {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.canAct(identity)
}

func (s *Session) declineReason() error {
	if s.Mode == ModeGroup {
		return ErrAlreadyActed
	}
	return ErrNotYourTurn
}

// Act pulls the trigger for identity. A hit resolves the session with
// identity as the penalized party; the caller must then record stats and
// destroy the session.
func (s *Session) Act(identity string) (Outcome, error) {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if s.claimed.Load() {
		return OutcomeMiss, ErrNoSession
	}
	if !s.canAct(identity) {
		return OutcomeMiss, s.declineReason()
	}

	s.TurnsTaken++
	if s.Mode == ModeDuel {
		s.NextIdx = 1 - s.NextIdx
	} else {
		s.Acted[identity] = struct{}{}
	}

	if s.TurnsTaken == s.LiveTurn {
		if !s.claimed.CompareAndSwap(false, true) {
			return OutcomeMiss, ErrNoSession
		}
		s.State = StateResolved
		return OutcomeHit, nil
	}
	return OutcomeMiss, nil
}

// Surrender resolves the session against identity without a draw. Only the
// participant who could act next may surrender.
func (s *Session) Surrender(identity string) error {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if s.claimed.Load() {
		return ErrNoSession
	}
	if !s.canAct(identity) {
		return ErrNotYourTurn
	}
	if !s.claimed.CompareAndSwap(false, true) {
		return ErrNoSession
	}
	s.State = StateResolved
	return nil
}

// Withdraw terminates the session with no penalty. Blocked once only one
// undrawn turn remains and it is the requester's turn: at that point the
// requester must fire or surrender.
func (s *Session) Withdraw(identity string) error {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if s.claimed.Load() {
		return ErrNoSession
	}
	if s.LiveTurn-s.TurnsTaken == 1 && s.canAct(identity) {
		return ErrWithdrawBlocked
	}
	if !s.claimed.CompareAndSwap(false, true) {
		return ErrNoSession
	}
	s.State = StateWithdrawn
	return nil
}

// Claim takes the terminal transition for a timer fire. Returns false if a
// human action (or the competing timer) got there first. On success the
// fire owns the session: resolve is true for the last-turn forfeit path,
// false for the idle teardown.
func (s *Session) Claim(resolve bool) bool {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if !s.claimed.CompareAndSwap(false, true) {
		return false
	}
	if resolve {
		s.State = StateResolved
	} else {
		s.State = StateWithdrawn
	}
	return true
}

// NextActor is the identity on the hook in a duel, "" in group mode.
func (s *Session) NextActor() string {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if s.Mode == ModeDuel {
		return s.Players[s.NextIdx]
	}
	return ""
}

// OnFinalChamber reports whether exactly one turn remains before the live
// one, i.e. the next actor is staring down the barrel.
func (s *Session) OnFinalChamber() bool {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.LiveTurn-s.TurnsTaken == 1
}

// ShotsLeft is the number of undrawn chambers, as reported to players.
func (s *Session) ShotsLeft() int {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return ChamberCount - s.TurnsTaken
}

// Participants returns everyone who took part: the fixed pair for duels,
// the acted set for group games.
func (s *Session) Participants() []string {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if s.Mode == ModeDuel {
		return append([]string(nil), s.Players...)
	}
	out := make([]string, 0, len(s.Acted))
	for id := range s.Acted {
		out = append(out, id)
	}
	return out
}
