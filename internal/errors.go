package internal

import "errors"

// Declined-action taxonomy. None of these is fatal: handlers translate
// them into a user-visible refusal and move on.
var (
	// ErrConflict: session creation would violate an exclusivity invariant.
	ErrConflict = errors.New("participant already in a live session")

	// ErrSelfDuel: a duel needs two distinct participants.
	ErrSelfDuel = errors.New("cannot duel yourself")

	// ErrNoSession: the command referenced a group/identity with no live session.
	ErrNoSession = errors.New("no active session")

	// ErrNotYourTurn: duel action attempted out of turn or by a non-participant.
	ErrNotYourTurn = errors.New("not your turn")

	// ErrAlreadyActed: group participant tried to fire twice.
	ErrAlreadyActed = errors.New("already acted this game")

	// ErrWithdrawBlocked: one chamber left and it is the requester's turn;
	// they must fire or surrender.
	ErrWithdrawBlocked = errors.New("withdrawal blocked on the final chamber")

	// ErrDuelProtected: admin force-end only tears down group games.
	ErrDuelProtected = errors.New("duels cannot be force-ended")
)
