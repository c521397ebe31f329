package utils

import (
	"math/rand"

	"github.com/strelk0v/roulette-backend/internal"
)

// DrawChamber picks the live turn, uniform over [1, ChamberCount].
func DrawChamber() int {
	return rand.Intn(internal.ChamberCount) + 1
}

// DrawPenalty picks a penalty duration uniformly from [lo, hi] seconds,
// clamped to the 24-hour ceiling. Degenerate ranges collapse to lo.
func DrawPenalty(lo, hi int) int {
	if hi > internal.MaxPenaltyDuration {
		hi = internal.MaxPenaltyDuration
	}
	if hi <= lo {
		return min(lo, internal.MaxPenaltyDuration)
	}
	return lo + rand.Intn(hi-lo+1)
}

// ClampPenalty bounds a caller-supplied duration; the second return value
// reports whether clamping happened.
func ClampPenalty(seconds int) (int, bool) {
	if seconds > internal.MaxPenaltyDuration {
		return internal.MaxPenaltyDuration, true
	}
	if seconds < 1 {
		return 1, true
	}
	return seconds, false
}

var persuasionQuotes = []string{
	"Gamble once and it feels great. Gamble forever and only the house feels great.",
	"Quit while you still can. The shore is right behind you.",
	"Gambling is a bottomless pit. Turn back early, rest easy early.",
	"Bet for a moment, regret for a lifetime.",
	"Don't let the wheel decide your future.",
	"Nine out of ten gamblers lose. Stay sharp.",
	"A winning streak is just the house being patient.",
	"One round of restraint beats a lifetime of chasing losses.",
	"Holding a good hand? Don't play the fool's game with it.",
	"Shortcuts look tempting, but the gambler's road is a cliff.",
	"Better a steady walk than a desperate bet.",
}

// PersuasionQuote returns a random anti-gambling one-liner, attached to
// every penalty notice.
func PersuasionQuote() string {
	return persuasionQuotes[rand.Intn(len(persuasionQuotes))]
}
