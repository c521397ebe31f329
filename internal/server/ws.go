package server

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/strelk0v/roulette-backend/internal"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// subscriber is one websocket client watching a group's event feed.
// Writes serialize on mu; gorilla connections do not allow concurrent
// writers.
type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *subscriber) safeWriteJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

// Hub fans game events out to per-group subscribers. It implements
// game.Notifier, which is how timer-driven outcomes reach clients outside
// any request/response cycle.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*subscriber]struct{})}
}

// EmitResult broadcasts an event to everyone watching the group. The
// subscriber set is snapshotted first so no lock is held during writes;
// dead connections are pruned as they surface.
func (h *Hub) EmitResult(groupID string, msg internal.Message[any]) {
	h.mu.RLock()
	targets := make([]*subscriber, 0, len(h.subs[groupID]))
	for sub := range h.subs[groupID] {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	for _, sub := range targets {
		if err := sub.safeWriteJSON(msg); err != nil {
			log.Printf("[EmitResult] group=%s write failed, dropping subscriber: %v", groupID, err)
			h.remove(groupID, sub)
			sub.conn.Close()
		}
	}
}

func (h *Hub) add(groupID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[groupID] == nil {
		h.subs[groupID] = make(map[*subscriber]struct{})
	}
	h.subs[groupID][sub] = struct{}{}
}

func (h *Hub) remove(groupID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[groupID], sub)
	if len(h.subs[groupID]) == 0 {
		delete(h.subs, groupID)
	}
}

// HandleWS upgrades the connection and parks it on the group's feed until
// the client goes away. The read loop only drains control frames; the feed
// is one-way.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["groupId"]
	if groupID == "" {
		http.Error(w, "group id required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[HandleWS] upgrade failed: %v", err)
		return
	}

	sub := &subscriber{conn: conn}
	h.add(groupID, sub)
	log.Printf("[HandleWS] group=%s subscriber joined", groupID)

	go func() {
		defer func() {
			h.remove(groupID, sub)
			conn.Close()
			log.Printf("[HandleWS] group=%s subscriber left", groupID)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
