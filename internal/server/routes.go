package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/strelk0v/roulette-backend/internal"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := mux.NewRouter()

	// Apply CORS middleware
	r.Use(s.corsMiddleware)

	r.HandleFunc("/", s.HealthHandler).Methods(http.MethodGet)

	r.HandleFunc("/groups/{groupId}/duel", s.StartDuelHandler).Methods(http.MethodPost)
	r.HandleFunc("/groups/{groupId}/roulette", s.StartGroupHandler).Methods(http.MethodPost)
	r.HandleFunc("/groups/{groupId}/fire", s.FireHandler).Methods(http.MethodPost)
	r.HandleFunc("/groups/{groupId}/surrender", s.SurrenderHandler).Methods(http.MethodPost)
	r.HandleFunc("/groups/{groupId}/withdraw", s.WithdrawHandler).Methods(http.MethodPost)
	r.HandleFunc("/groups/{groupId}/end", s.ForceEndHandler).Methods(http.MethodPost)

	r.HandleFunc("/stats/{userId}", s.GlobalStatsHandler).Methods(http.MethodGet)
	r.HandleFunc("/groups/{groupId}/stats/{userId}", s.GroupStatsHandler).Methods(http.MethodGet)
	r.HandleFunc("/groups/{groupId}/pvp", s.PairStatsHandler).Methods(http.MethodGet)
	r.HandleFunc("/groups/{groupId}/top", s.TopPlayersHandler).Methods(http.MethodGet)

	r.HandleFunc("/ws/{groupId}", s.hub.HandleWS)

	return r
}

// CORS middleware
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")

		// If it's a websocket upgrade, skip further CORS checks
		if strings.ToLower(r.Header.Get("Upgrade")) == "websocket" {
			next.ServeHTTP(w, r)
			return
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// declineStatus maps the decline taxonomy onto HTTP statuses. Declined
// actions are client-visible refusals, never 5xx.
func declineStatus(err error) int {
	switch {
	case errors.Is(err, internal.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, internal.ErrNoSession):
		return http.StatusNotFound
	case errors.Is(err, internal.ErrSelfDuel):
		return http.StatusBadRequest
	case errors.Is(err, internal.ErrNotYourTurn),
		errors.Is(err, internal.ErrAlreadyActed),
		errors.Is(err, internal.ErrWithdrawBlocked),
		errors.Is(err, internal.ErrDuelProtected):
		return http.StatusForbidden
	}
	return http.StatusBadRequest
}

func writeJSON(w http.ResponseWriter, status int, body internal.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("[writeJSON] encode failed: %v", err)
	}
}

func writeResult(w http.ResponseWriter, msg internal.Message[any], err error) {
	if err != nil {
		status := declineStatus(err)
		writeJSON(w, status, internal.Response{StatusCode: status, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, internal.Response{StatusCode: http.StatusOK, Data: msg})
}

func decodeBody[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var body T
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, internal.Response{
			StatusCode: http.StatusBadRequest,
			Error:      "invalid request body",
		})
		return body, false
	}
	return body, true
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, internal.Response{
		StatusCode: http.StatusOK,
		Data:       map[string]string{"message": "ok"},
	})
}

type duelRequest struct {
	Initiator string `json:"initiator"`
	Target    string `json:"target"`
	Duration  int    `json:"duration,omitempty"` // seconds; 0 = random
}

type identityRequest struct {
	Identity string `json:"identity"`
}

type startGroupRequest struct {
	Initiator string `json:"initiator"`
}

func (s *Server) StartDuelHandler(w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["groupId"]
	body, ok := decodeBody[duelRequest](w, r)
	if !ok {
		return
	}
	if body.Initiator == "" || body.Target == "" {
		writeJSON(w, http.StatusBadRequest, internal.Response{
			StatusCode: http.StatusBadRequest,
			Error:      "initiator and target are required",
		})
		return
	}
	msg, err := s.svc.StartDuel(r.Context(), groupID, body.Initiator, body.Target, body.Duration)
	writeResult(w, msg, err)
}

func (s *Server) StartGroupHandler(w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["groupId"]
	body, ok := decodeBody[startGroupRequest](w, r)
	if !ok {
		return
	}
	msg, err := s.svc.StartGroup(r.Context(), groupID, body.Initiator)
	writeResult(w, msg, err)
}

func (s *Server) FireHandler(w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["groupId"]
	body, ok := decodeBody[identityRequest](w, r)
	if !ok {
		return
	}
	msg, err := s.svc.Fire(r.Context(), groupID, body.Identity)
	writeResult(w, msg, err)
}

func (s *Server) SurrenderHandler(w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["groupId"]
	body, ok := decodeBody[identityRequest](w, r)
	if !ok {
		return
	}
	msg, err := s.svc.Surrender(r.Context(), groupID, body.Identity)
	writeResult(w, msg, err)
}

func (s *Server) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["groupId"]
	body, ok := decodeBody[identityRequest](w, r)
	if !ok {
		return
	}
	msg, err := s.svc.Withdraw(r.Context(), groupID, body.Identity)
	writeResult(w, msg, err)
}

func (s *Server) ForceEndHandler(w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["groupId"]
	msg, err := s.svc.ForceEndGroup(r.Context(), groupID)
	writeResult(w, msg, err)
}

func (s *Server) GlobalStatsHandler(w http.ResponseWriter, r *http.Request) {
	s.userStats(w, mux.Vars(r)["userId"], "")
}

func (s *Server) GroupStatsHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	s.userStats(w, vars["userId"], vars["groupId"])
}

func (s *Server) userStats(w http.ResponseWriter, userID, groupID string) {
	rec, ok := s.ledger.UserStats(userID, groupID)
	if !ok {
		writeJSON(w, http.StatusNotFound, internal.Response{
			StatusCode: http.StatusNotFound,
			Error:      "no games recorded",
		})
		return
	}
	writeJSON(w, http.StatusOK, internal.Response{StatusCode: http.StatusOK, Data: rec})
}

func (s *Server) PairStatsHandler(w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["groupId"]
	a := r.URL.Query().Get("a")
	b := r.URL.Query().Get("b")
	if a == "" || b == "" || a == b {
		writeJSON(w, http.StatusBadRequest, internal.Response{
			StatusCode: http.StatusBadRequest,
			Error:      "two distinct identities are required",
		})
		return
	}
	rec, ok := s.ledger.PairStats(a, b, groupID)
	if !ok {
		writeJSON(w, http.StatusNotFound, internal.Response{
			StatusCode: http.StatusNotFound,
			Error:      "no head-to-head record",
		})
		return
	}
	writeJSON(w, http.StatusOK, internal.Response{StatusCode: http.StatusOK, Data: rec})
}

func (s *Server) TopPlayersHandler(w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["groupId"]

	minGames := 5
	if v, err := strconv.Atoi(r.URL.Query().Get("min_games")); err == nil && v >= 0 {
		minGames = v
	}
	limit := 5
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}

	ranked := s.ledger.TopByWinRate(groupID, minGames, limit)
	writeJSON(w, http.StatusOK, internal.Response{StatusCode: http.StatusOK, Data: ranked})
}
