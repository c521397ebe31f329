package game

import (
	"context"
	"log"
	"time"

	"github.com/strelk0v/roulette-backend/internal"
	"github.com/strelk0v/roulette-backend/internal/stats"
	"github.com/strelk0v/roulette-backend/internal/utils"
)

// =============================================================================
// COLLABORATOR CONTRACTS
// =============================================================================

// NameResolver turns an identity into something printable. Best effort:
// implementations return the identity itself when resolution fails.
type NameResolver interface {
	ResolveDisplayName(ctx context.Context, identity, groupID string) string
}

// Moderator applies the suspension to whoever lost. Fire-and-forget from
// the service's perspective; failures are logged, never retried.
type Moderator interface {
	ApplyPenalty(ctx context.Context, identity, groupID string, durationSeconds int) error
}

// Notifier pushes result events to whatever front-end is listening. Timer
// callbacks depend on it since they have no request to reply to.
type Notifier interface {
	EmitResult(groupID string, msg internal.Message[any])
}

// =============================================================================
// GAME SERVICE
// =============================================================================

// Service wires player commands to the registry, the timer orchestrator
// and the stats ledger. It holds no lock across any collaborator call.
type Service struct {
	cfg      internal.Config
	registry *Registry
	timers   *Orchestrator
	ledger   *stats.Ledger
	names    NameResolver
	mod      Moderator
	notify   Notifier
}

func NewService(cfg internal.Config, registry *Registry, timers *Orchestrator,
	ledger *stats.Ledger, names NameResolver, mod Moderator, notify Notifier) *Service {
	return &Service{
		cfg:      cfg,
		registry: registry,
		timers:   timers,
		ledger:   ledger,
		names:    names,
		mod:      mod,
		notify:   notify,
	}
}

func (s *Service) emit(groupID, eventType string, data any) internal.Message[any] {
	msg := internal.Message[any]{Type: eventType, Data: data}
	if s.notify != nil {
		s.notify.EmitResult(groupID, msg)
	}
	return msg
}

// StartDuel opens a two-party session, initiator first in turn order.
// durationSeconds <= 0 draws a random penalty from the configured range;
// a custom duration is clamped to the 24-hour ceiling.
func (s *Service) StartDuel(ctx context.Context, groupID, initiator, target string, durationSeconds int) (internal.Message[any], error) {
	duration := durationSeconds
	custom := durationSeconds > 0
	clamped := false
	if custom {
		duration, clamped = utils.ClampPenalty(durationSeconds)
	} else {
		duration = utils.DrawPenalty(s.cfg.PenaltyMin, s.cfg.PenaltyMax)
	}

	sess, err := s.registry.CreateDuel(initiator, target, groupID, duration)
	if err != nil {
		return internal.Message[any]{}, err
	}

	s.armIdle(groupID, sess)

	data := internal.DuelStartedData{
		GroupID:         groupID,
		SessionID:       sess.ID,
		Initiator:       initiator,
		InitiatorName:   s.names.ResolveDisplayName(ctx, initiator, groupID),
		Target:          target,
		TargetName:      s.names.ResolveDisplayName(ctx, target, groupID),
		PenaltyDuration: duration,
		CustomDuration:  custom,
		Clamped:         clamped,
		FirstActor:      initiator,
	}
	return s.emit(groupID, "duel_started", data), nil
}

// StartGroup opens the free-for-all session for a group. The penalty is
// always drawn at random; group games take no custom duration.
func (s *Service) StartGroup(ctx context.Context, groupID, initiator string) (internal.Message[any], error) {
	duration := utils.DrawPenalty(s.cfg.PenaltyMin, s.cfg.PenaltyMax)

	sess, err := s.registry.CreateGroup(groupID, duration)
	if err != nil {
		return internal.Message[any]{}, err
	}

	s.armIdle(groupID, sess)

	data := internal.GroupStartedData{
		GroupID:         groupID,
		SessionID:       sess.ID,
		Initiator:       initiator,
		PenaltyDuration: duration,
	}
	return s.emit(groupID, "group_started", data), nil
}

// Fire pulls the trigger for shooter in whichever session they belong to.
func (s *Service) Fire(ctx context.Context, groupID, shooter string) (internal.Message[any], error) {
	sess := s.registry.Lookup(shooter, groupID)
	if sess == nil {
		return internal.Message[any]{}, internal.ErrNoSession
	}
	if !sess.CanAct(shooter) {
		if sess.Mode == internal.ModeGroup {
			return internal.Message[any]{}, internal.ErrAlreadyActed
		}
		return internal.Message[any]{}, internal.ErrNotYourTurn
	}

	// Close the race window before touching session state.
	s.timers.CancelAll(groupID)

	outcome, err := sess.Act(shooter)
	if err != nil {
		return internal.Message[any]{}, err
	}

	if outcome == internal.OutcomeHit {
		return s.resolveWithPenalty(ctx, groupID, sess, shooter, "hit"), nil
	}

	data := internal.ShotMissedData{
		GroupID:     groupID,
		SessionID:   sess.ID,
		Shooter:     shooter,
		ShooterName: s.names.ResolveDisplayName(ctx, shooter, groupID),
		ShotsLeft:   sess.ShotsLeft(),
		NextActor:   sess.NextActor(),
		LastTurn:    sess.Mode == internal.ModeDuel && sess.OnFinalChamber(),
	}

	if data.LastTurn {
		s.armLastTurn(groupID, sess)
		s.emit(groupID, "last_turn_warning", internal.LastTurnWarningData{
			GroupID:      groupID,
			SessionID:    sess.ID,
			NextActor:    data.NextActor,
			GraceSeconds: int(internal.LastTurnGrace.Seconds()),
		})
	}

	// Game continues: the idle clock starts over.
	s.armIdle(groupID, sess)

	return s.emit(groupID, "shot_missed", data), nil
}

// Surrender resolves the session against identity as if they had fired
// the live chamber, without consuming a draw.
func (s *Service) Surrender(ctx context.Context, groupID, identity string) (internal.Message[any], error) {
	sess := s.registry.Lookup(identity, groupID)
	if sess == nil {
		return internal.Message[any]{}, internal.ErrNoSession
	}
	if !sess.CanAct(identity) {
		return internal.Message[any]{}, internal.ErrNotYourTurn
	}

	s.timers.CancelAll(groupID)

	if err := sess.Surrender(identity); err != nil {
		return internal.Message[any]{}, err
	}
	return s.resolveWithPenalty(ctx, groupID, sess, identity, "surrender"), nil
}

// Withdraw ends the session with no penalty. Blocked on the final chamber
// for the identity whose turn it is.
func (s *Service) Withdraw(ctx context.Context, groupID, identity string) (internal.Message[any], error) {
	sess := s.registry.Lookup(identity, groupID)
	if sess == nil {
		return internal.Message[any]{}, internal.ErrNoSession
	}
	if sess.OnFinalChamber() && sess.CanAct(identity) {
		return internal.Message[any]{}, internal.ErrWithdrawBlocked
	}

	s.timers.CancelAll(groupID)

	if err := sess.Withdraw(identity); err != nil {
		return internal.Message[any]{}, err
	}
	s.registry.Destroy(groupID, sess.Players)

	log.Printf("[Withdraw] group=%s session=%s by %s", groupID, sess.ID, identity)
	return s.emit(groupID, "withdrawn", internal.WithdrawnData{
		GroupID:   groupID,
		SessionID: sess.ID,
		Identity:  identity,
	}), nil
}

// ForceEndGroup is the admin teardown of a group-mode game. Duels are
// never touched: the participants own those.
func (s *Service) ForceEndGroup(ctx context.Context, groupID string) (internal.Message[any], error) {
	sess := s.registry.GroupSession(groupID)
	if sess == nil {
		return internal.Message[any]{}, internal.ErrNoSession
	}
	if sess.Mode == internal.ModeDuel {
		return internal.Message[any]{}, internal.ErrDuelProtected
	}

	s.timers.CancelAll(groupID)

	if !sess.Claim(false) {
		return internal.Message[any]{}, internal.ErrNoSession
	}
	s.registry.Destroy(groupID, nil)

	log.Printf("[ForceEndGroup] group=%s session=%s", groupID, sess.ID)
	return s.emit(groupID, "withdrawn", internal.WithdrawnData{
		GroupID:   groupID,
		SessionID: sess.ID,
	}), nil
}

// resolveWithPenalty finishes a resolved session: records the stats
// transaction, applies the suspension, tears the session down and emits
// the penalty event. The caller must already own the terminal claim.
func (s *Service) resolveWithPenalty(ctx context.Context, groupID string, sess *internal.Session, loser, reason string) internal.Message[any] {
	isDuel := sess.Mode == internal.ModeDuel

	var winners []string
	if isDuel {
		for _, p := range sess.Players {
			if p != loser {
				winners = append(winners, p)
			}
		}
	}
	// Group mode: survival is its own reward, nobody is credited.

	s.ledger.RecordResult(ctx, loser, winners, isDuel, groupID)

	if err := s.mod.ApplyPenalty(ctx, loser, groupID, sess.PenaltyDuration); err != nil {
		log.Printf("[resolveWithPenalty] group=%s penalty for %s failed: %v", groupID, loser, err)
	}

	s.registry.Destroy(groupID, sess.Players)

	log.Printf("[resolveWithPenalty] group=%s session=%s loser=%s reason=%s duration=%ds",
		groupID, sess.ID, loser, reason, sess.PenaltyDuration)

	return s.emit(groupID, "penalty", internal.PenaltyData{
		GroupID:         groupID,
		SessionID:       sess.ID,
		Identity:        loser,
		DisplayName:     s.names.ResolveDisplayName(ctx, loser, groupID),
		PenaltyDuration: sess.PenaltyDuration,
		Reason:          reason,
		Quote:           utils.PersuasionQuote(),
	})
}

func (s *Service) armIdle(groupID string, sess *internal.Session) {
	if s.cfg.IdleTimeout <= 0 {
		return
	}
	s.timers.ScheduleIdle(groupID, time.Duration(s.cfg.IdleTimeout)*time.Second, func() {
		s.idleTimeout(groupID, sess)
	})
}

// idleTimeout fires when nobody has acted for the configured window. The
// session is torn down with no penalty and no stats.
func (s *Service) idleTimeout(groupID string, sess *internal.Session) {
	if !sess.Claim(false) {
		// A human action or the last-turn timer resolved it first.
		return
	}
	s.timers.CancelLastTurn(groupID)
	s.registry.Destroy(groupID, sess.Players)

	log.Printf("[idleTimeout] group=%s session=%s ended after %ds idle", groupID, sess.ID, s.cfg.IdleTimeout)
	s.emit(groupID, "idle_timeout", internal.IdleTimeoutData{
		GroupID:     groupID,
		SessionID:   sess.ID,
		IdleSeconds: s.cfg.IdleTimeout,
	})
}

func (s *Service) armLastTurn(groupID string, sess *internal.Session) {
	victim := sess.NextActor()
	s.timers.ScheduleLastTurn(groupID, func() {
		s.autoForfeit(groupID, sess, victim)
	})
}

// autoForfeit resolves a duel against the actor who froze on the final
// chamber. Equivalent to a surrender by them, minus the dignity.
func (s *Service) autoForfeit(groupID string, sess *internal.Session, victim string) {
	if !sess.Claim(true) {
		// They acted (or surrendered, or withdrew) just in time.
		return
	}
	s.timers.CancelIdle(groupID)

	log.Printf("[autoForfeit] group=%s session=%s %s never answered", groupID, sess.ID, victim)
	s.resolveWithPenalty(context.Background(), groupID, sess, victim, "auto_forfeit")
}
