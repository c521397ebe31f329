package stats

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"sync"
)

// SchemaVersion tags the persisted snapshot. Loading fills any missing
// structure once, after which the shape is fixed for the process lifetime.
const SchemaVersion = 1

// UserRecord is one identity's aggregate ledger in a scope.
type UserRecord struct {
	Total         int `json:"total"`
	Wins          int `json:"wins"`
	Losses        int `json:"losses"`
	CurrentStreak int `json:"current_streak"`
	MaxWinStreak  int `json:"max_win_streak"`
}

// PairRecord is the head-to-head record for a canonical pair of duelists.
type PairRecord struct {
	Total int            `json:"total"`
	Wins  map[string]int `json:"wins"`
}

// Scope holds the two record families. The ledger keeps one global scope
// plus one per group; every transaction updates both.
type Scope struct {
	Users map[string]*UserRecord `json:"users"`
	PvP   map[string]*PairRecord `json:"pvp"`
}

// Snapshot is the full persisted state: the global scope inline plus the
// per-group scopes, matching the on-disk layout.
type Snapshot struct {
	Version int               `json:"version"`
	Scope
	Groups map[string]*Scope `json:"groups"`
}

// Store persists snapshots as opaque JSON. Load returns (nil, nil) when
// nothing has been persisted yet.
type Store interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// RankedUser is one leaderboard row.
type RankedUser struct {
	UserID  string     `json:"user_id"`
	WinRate float64    `json:"win_rate"`
	Record  UserRecord `json:"record"`
}

func newScope() *Scope {
	return &Scope{
		Users: make(map[string]*UserRecord),
		PvP:   make(map[string]*PairRecord),
	}
}

func (s *Scope) normalize() {
	if s.Users == nil {
		s.Users = make(map[string]*UserRecord)
	}
	if s.PvP == nil {
		s.PvP = make(map[string]*PairRecord)
	}
	for _, pr := range s.PvP {
		if pr.Wins == nil {
			pr.Wins = make(map[string]int)
		}
	}
}

// normalize default-fills whatever an older or empty snapshot is missing.
// Runs once at load; afterwards the snapshot is treated as fixed-shape.
func (sn *Snapshot) normalize() {
	sn.Version = SchemaVersion
	sn.Scope.normalize()
	if sn.Groups == nil {
		sn.Groups = make(map[string]*Scope)
	}
	for _, sc := range sn.Groups {
		sc.normalize()
	}
}

// Ledger is the win/loss bookkeeper. All mutations and multi-field reads
// hold mu, so no reader ever observes a half-applied transaction. Saves
// happen outside the lock on a marshaled copy: a failed save is logged and
// the in-memory state stays authoritative.
type Ledger struct {
	mu    sync.Mutex
	snap  *Snapshot
	store Store
	// order preserves first-seen user order per scope ("" = global) so
	// leaderboard ties break deterministically.
	order map[string][]string
}

// NewLedger builds a ledger, loading whatever the store has. Load errors
// are logged and the ledger starts empty; they never fail startup.
func NewLedger(ctx context.Context, store Store) *Ledger {
	l := &Ledger{
		snap:  &Snapshot{},
		store: store,
		order: make(map[string][]string),
	}
	if store != nil {
		data, err := store.Load(ctx)
		switch {
		case err != nil:
			log.Printf("[NewLedger] load failed, starting empty: %v", err)
		case data != nil:
			if err := json.Unmarshal(data, l.snap); err != nil {
				log.Printf("[NewLedger] corrupt snapshot, starting empty: %v", err)
				l.snap = &Snapshot{}
			}
		}
	}
	l.snap.normalize()
	l.rebuildOrder()
	return l
}

// rebuildOrder seeds the tie-break order from a loaded snapshot. Map
// iteration is unordered, so sort for a stable seed.
func (l *Ledger) rebuildOrder() {
	seed := func(key string, sc *Scope) {
		ids := make([]string, 0, len(sc.Users))
		for id := range sc.Users {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		l.order[key] = ids
	}
	seed("", &l.snap.Scope)
	for gid, sc := range l.snap.Groups {
		seed(gid, sc)
	}
}

// PairKey canonicalizes an unordered identity pair.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "_" + b
}

func (l *Ledger) user(scopeKey string, sc *Scope, id string) *UserRecord {
	rec, ok := sc.Users[id]
	if !ok {
		rec = &UserRecord{}
		sc.Users[id] = rec
		l.order[scopeKey] = append(l.order[scopeKey], id)
	}
	return rec
}

func (l *Ledger) groupScope(groupID string) *Scope {
	sc, ok := l.snap.Groups[groupID]
	if !ok {
		sc = newScope()
		l.snap.Groups[groupID] = sc
	}
	return sc
}

// RecordResult applies one finished game to the global and the group
// scope as a single transaction. The loser takes a loss and a streak
// reset; every winner takes a win and a streak bump. Group games pass an
// empty winner list: group mode measures survival, nobody is credited.
// Duels with a single winner also bump the head-to-head pair record.
func (l *Ledger) RecordResult(ctx context.Context, loserID string, winnerIDs []string, isDuel bool, groupID string) {
	l.mu.Lock()

	targets := []struct {
		key string
		sc  *Scope
	}{{"", &l.snap.Scope}}
	if groupID != "" {
		targets = append(targets, struct {
			key string
			sc  *Scope
		}{groupID, l.groupScope(groupID)})
	}

	for _, t := range targets {
		loser := l.user(t.key, t.sc, loserID)
		loser.Total++
		loser.Losses++
		loser.CurrentStreak = 0

		for _, winnerID := range winnerIDs {
			winner := l.user(t.key, t.sc, winnerID)
			winner.Total++
			winner.Wins++
			winner.CurrentStreak++
			if winner.CurrentStreak > winner.MaxWinStreak {
				winner.MaxWinStreak = winner.CurrentStreak
			}
		}

		if isDuel && len(winnerIDs) == 1 {
			key := PairKey(loserID, winnerIDs[0])
			pair, ok := t.sc.PvP[key]
			if !ok {
				pair = &PairRecord{Wins: make(map[string]int)}
				t.sc.PvP[key] = pair
			}
			pair.Total++
			pair.Wins[winnerIDs[0]]++
		}
	}

	var data []byte
	if l.store != nil {
		var err error
		data, err = json.Marshal(l.snap)
		if err != nil {
			log.Printf("[RecordResult] marshal failed: %v", err)
			data = nil
		}
	}
	l.mu.Unlock()

	// Persist outside the lock; the transaction above is already committed.
	if data != nil {
		if err := l.store.Save(ctx, data); err != nil {
			log.Printf("[RecordResult] save failed, in-memory state kept: %v", err)
		}
	}
}

func (l *Ledger) scope(groupID string) *Scope {
	if groupID == "" {
		return &l.snap.Scope
	}
	return l.snap.Groups[groupID]
}

// UserStats returns a copy of one identity's record. groupID == "" reads
// the global scope.
func (l *Ledger) UserStats(userID, groupID string) (UserRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sc := l.scope(groupID)
	if sc == nil {
		return UserRecord{}, false
	}
	rec, ok := sc.Users[userID]
	if !ok {
		return UserRecord{}, false
	}
	return *rec, true
}

// PairStats returns a copy of the head-to-head record between two
// identities; lookups are order-independent.
func (l *Ledger) PairStats(a, b, groupID string) (PairRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sc := l.scope(groupID)
	if sc == nil {
		return PairRecord{}, false
	}
	pair, ok := sc.PvP[PairKey(a, b)]
	if !ok {
		return PairRecord{}, false
	}
	out := PairRecord{Total: pair.Total, Wins: make(map[string]int, len(pair.Wins))}
	for id, wins := range pair.Wins {
		out.Wins[id] = wins
	}
	return out, true
}

// TopByWinRate ranks a scope's users by wins/total descending, restricted
// to total >= minGames. Ties keep first-seen order.
func (l *Ledger) TopByWinRate(groupID string, minGames, limit int) []RankedUser {
	l.mu.Lock()
	defer l.mu.Unlock()

	sc := l.scope(groupID)
	if sc == nil {
		return nil
	}
	key := ""
	if groupID != "" {
		key = groupID
	}

	ranked := make([]RankedUser, 0, len(sc.Users))
	for _, id := range l.order[key] {
		rec, ok := sc.Users[id]
		if !ok || rec.Total < minGames || rec.Total == 0 {
			continue
		}
		ranked = append(ranked, RankedUser{
			UserID:  id,
			WinRate: float64(rec.Wins) / float64(rec.Total),
			Record:  *rec,
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].WinRate > ranked[j].WinRate
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
