package game

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/strelk0v/roulette-backend/internal"
)

// =============================================================================
// TIMER ORCHESTRATION
// =============================================================================

// timerEntry is one scheduled delayed action. fired is the at-most-once
// claim: the watcher goroutine takes it before running the callback, so a
// cancel that lands mid-fire cannot stop the callback and a second fire of
// the same entry is impossible.
type timerEntry struct {
	ctx    context.Context
	cancel context.CancelFunc
	fired  atomic.Bool
}

// Orchestrator owns the two per-group timer classes: the idle-game timeout
// (re-armed after every non-resolving action) and the last-turn grace
// timer (duel only). Arming a class cancels whatever was armed before in
// the same critical section, so a stale fire can never race a fresh one.
type Orchestrator struct {
	mu   sync.Mutex
	idle map[string]*timerEntry
	last map[string]*timerEntry
}

func NewOrchestrator() *Orchestrator {
	return &Orchestrator{
		idle: make(map[string]*timerEntry),
		last: make(map[string]*timerEntry),
	}
}

// ScheduleIdle arms (or replaces) the idle-game timer for a group.
// duration <= 0 disables idle timeouts entirely.
func (o *Orchestrator) ScheduleIdle(groupID string, duration time.Duration, onExpire func()) {
	if duration <= 0 {
		return
	}
	o.schedule(o.idle, "idle", groupID, duration, onExpire)
}

// ScheduleLastTurn arms the fixed-grace forfeit timer for a group's duel.
func (o *Orchestrator) ScheduleLastTurn(groupID string, onExpire func()) {
	o.schedule(o.last, "last_turn", groupID, internal.LastTurnGrace, onExpire)
}

func (o *Orchestrator) schedule(table map[string]*timerEntry, kind, groupID string, duration time.Duration, onExpire func()) {
	ctx, cancel := context.WithTimeout(context.Background(), duration)
	entry := &timerEntry{ctx: ctx, cancel: cancel}

	o.mu.Lock()
	if old, ok := table[groupID]; ok {
		old.cancel()
	}
	table[groupID] = entry
	o.mu.Unlock()

	log.Printf("[schedule] group=%s kind=%s armed for %v", groupID, kind, duration)

	go func() {
		<-ctx.Done()
		if ctx.Err() != context.DeadlineExceeded {
			// Cancelled before expiry.
			return
		}
		if !entry.fired.CompareAndSwap(false, true) {
			return
		}
		o.mu.Lock()
		// Identity check: only forget the entry if it is still the armed one.
		if table[groupID] == entry {
			delete(table, groupID)
		}
		o.mu.Unlock()

		log.Printf("[schedule] group=%s kind=%s fired", groupID, kind)
		safeRun(groupID, kind, onExpire)
	}()
}

// safeRun shields the process from a misbehaving timer callback. The
// callback itself is responsible for still tearing the session down on
// its own error paths.
func safeRun(groupID, kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[safeRun] group=%s kind=%s callback panicked: %v", groupID, kind, r)
		}
	}()
	fn()
}

// CancelIdle stops the idle timer for a group. Safe when nothing is armed.
func (o *Orchestrator) CancelIdle(groupID string) {
	o.cancelEntry(o.idle, groupID)
}

// CancelLastTurn stops the last-turn timer for a group.
func (o *Orchestrator) CancelLastTurn(groupID string) {
	o.cancelEntry(o.last, groupID)
}

// CancelAll stops both timer classes for a group. Called at the head of
// every successful player action so a pending fire cannot race the action.
// A fire that already claimed its entry proceeds regardless; the session
// claim decides who wins.
func (o *Orchestrator) CancelAll(groupID string) {
	o.cancelEntry(o.idle, groupID)
	o.cancelEntry(o.last, groupID)
}

func (o *Orchestrator) cancelEntry(table map[string]*timerEntry, groupID string) {
	o.mu.Lock()
	entry, ok := table[groupID]
	if ok {
		delete(table, groupID)
	}
	o.mu.Unlock()
	if ok {
		entry.cancel()
	}
}

// Armed reports whether a timer of the given class is pending; kind is
// "idle" or "last_turn". Used by tests and the health surface.
func (o *Orchestrator) Armed(groupID, kind string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch kind {
	case "idle":
		_, ok := o.idle[groupID]
		return ok
	case "last_turn":
		_, ok := o.last[groupID]
		return ok
	}
	return false
}
