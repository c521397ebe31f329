package internal

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// ChamberCount is the number of chambers in the cylinder. The live
	// chamber is drawn uniformly from [1, ChamberCount] at session creation.
	ChamberCount = 6

	// MaxPenaltyDuration caps any penalty at 24 hours.
	MaxPenaltyDuration = 86400

	// LastTurnGrace is how long the designated actor of a duel gets on the
	// final chamber before being auto-forfeited. Fixed, not configurable.
	LastTurnGrace = 180 * time.Second

	DefaultPenaltyMin  = 30
	DefaultPenaltyMax  = 300
	DefaultIdleTimeout = 3600
)

// Mode selects between the two game variants.
type Mode string

const (
	ModeDuel  Mode = "duel"  // two fixed participants, strict alternation
	ModeGroup Mode = "group" // open set, each participant fires at most once
)

// Outcome of a single trigger pull.
type Outcome string

const (
	OutcomeMiss Outcome = "miss"
	OutcomeHit  Outcome = "hit"
)

// SessionState is the lifecycle state of a session.
type SessionState string

const (
	StateAwaitingAction SessionState = "awaiting_action"
	StateResolved       SessionState = "resolved"
	StateWithdrawn      SessionState = "withdrawn"
)

// Message is the envelope for every event pushed to clients.
type Message[T any] struct {
	Type string `json:"type"`
	Data T      `json:"data"`
}

type DuelStartedData struct {
	GroupID         string `json:"group_id"`
	SessionID       string `json:"session_id"`
	Initiator       string `json:"initiator"`
	InitiatorName   string `json:"initiator_name"`
	Target          string `json:"target"`
	TargetName      string `json:"target_name"`
	PenaltyDuration int    `json:"penalty_duration"`
	CustomDuration  bool   `json:"custom_duration"`
	Clamped         bool   `json:"clamped,omitempty"`
	FirstActor      string `json:"first_actor"`
}

type GroupStartedData struct {
	GroupID         string `json:"group_id"`
	SessionID       string `json:"session_id"`
	Initiator       string `json:"initiator"`
	PenaltyDuration int    `json:"penalty_duration"`
}

type ShotMissedData struct {
	GroupID     string `json:"group_id"`
	SessionID   string `json:"session_id"`
	Shooter     string `json:"shooter"`
	ShooterName string `json:"shooter_name"`
	ShotsLeft   int    `json:"shots_left"`
	NextActor   string `json:"next_actor,omitempty"`
	LastTurn    bool   `json:"last_turn"`
}

// PenaltyData is emitted whenever someone eats the penalty, regardless of
// how the session resolved. Reason is one of "hit", "surrender",
// "auto_forfeit".
type PenaltyData struct {
	GroupID         string `json:"group_id"`
	SessionID       string `json:"session_id"`
	Identity        string `json:"identity"`
	DisplayName     string `json:"display_name"`
	PenaltyDuration int    `json:"penalty_duration"`
	Reason          string `json:"reason"`
	Quote           string `json:"quote"`
}

type LastTurnWarningData struct {
	GroupID      string `json:"group_id"`
	SessionID    string `json:"session_id"`
	NextActor    string `json:"next_actor"`
	GraceSeconds int    `json:"grace_seconds"`
}

type WithdrawnData struct {
	GroupID   string `json:"group_id"`
	SessionID string `json:"session_id"`
	Identity  string `json:"identity,omitempty"` // empty for admin force-end
}

type IdleTimeoutData struct {
	GroupID     string `json:"group_id"`
	SessionID   string `json:"session_id"`
	IdleSeconds int    `json:"idle_seconds"`
}

// Response is the JSON envelope for synchronous HTTP replies.
type Response struct {
	StatusCode int    `json:"status_code"`
	Data       any    `json:"data,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Config is the deployment configuration surface. It is built once at
// startup and injected; nothing reads the environment after that.
type Config struct {
	Port        int
	PenaltyMin  int // seconds, inclusive low end of the random ban range
	PenaltyMax  int // seconds, inclusive high end
	IdleTimeout int // seconds; 0 disables the idle-game timer
	StatsFile   string
	DatabaseURL string
	ModerateURL string
}

// LoadConfig reads configuration from the environment, falling back to the
// defaults above. BAN_DURATION uses the "lo-hi" form, e.g. "30-300".
func LoadConfig() Config {
	cfg := Config{
		Port:        8080,
		PenaltyMin:  DefaultPenaltyMin,
		PenaltyMax:  DefaultPenaltyMax,
		IdleTimeout: DefaultIdleTimeout,
		StatsFile:   "roulette_stats.json",
		DatabaseURL: os.Getenv("DATABASE_URL"),
		ModerateURL: os.Getenv("MODERATION_URL"),
	}

	if port, err := strconv.Atoi(os.Getenv("PORT")); err == nil && port > 0 {
		cfg.Port = port
	}
	if v := os.Getenv("STATS_FILE"); v != "" {
		cfg.StatsFile = v
	}
	if v := os.Getenv("GAME_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			cfg.IdleTimeout = secs
		}
	}
	if v := os.Getenv("BAN_DURATION"); v != "" {
		parts := strings.SplitN(v, "-", 2)
		if len(parts) == 2 {
			lo, errLo := strconv.Atoi(strings.TrimSpace(parts[0]))
			hi, errHi := strconv.Atoi(strings.TrimSpace(parts[1]))
			if errLo == nil && errHi == nil && lo > 0 && hi >= lo {
				cfg.PenaltyMin = lo
				cfg.PenaltyMax = min(hi, MaxPenaltyDuration)
			}
		}
	}
	return cfg
}
