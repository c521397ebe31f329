package server

import (
	"fmt"
	"net/http"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/strelk0v/roulette-backend/internal"
	"github.com/strelk0v/roulette-backend/internal/game"
	"github.com/strelk0v/roulette-backend/internal/stats"
)

type Server struct {
	port   int
	svc    *game.Service
	ledger *stats.Ledger
	hub    *Hub
}

func NewServer(cfg internal.Config, svc *game.Service, ledger *stats.Ledger, hub *Hub) *http.Server {
	s := &Server{
		port:   cfg.Port,
		svc:    svc,
		ledger: ledger,
		hub:    hub,
	}

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}
