package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/strelk0v/roulette-backend/internal"
	"github.com/strelk0v/roulette-backend/internal/game"
	"github.com/strelk0v/roulette-backend/internal/server"
	"github.com/strelk0v/roulette-backend/internal/stats"
)

// newStore prefers Postgres when DATABASE_URL is set, otherwise the JSON
// file. A failed Postgres connect falls back to the file: the ledger is
// never a reason not to start.
func newStore(ctx context.Context, cfg internal.Config) stats.Store {
	if cfg.DatabaseURL != "" {
		store, err := stats.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err == nil {
			log.Printf("[main] stats ledger backed by postgres")
			return store
		}
		log.Printf("[main] postgres unavailable, falling back to file store: %v", err)
	}
	log.Printf("[main] stats ledger backed by file %s", cfg.StatsFile)
	return stats.NewFileStore(cfg.StatsFile)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := internal.LoadConfig()

	ledger := stats.NewLedger(ctx, newStore(ctx, cfg))
	registry := game.NewRegistry()
	timers := game.NewOrchestrator()
	hub := server.NewHub()

	svc := game.NewService(cfg, registry, timers, ledger,
		server.IdentityNames{}, server.NewWebhookModerator(cfg.ModerateURL), hub)

	srv := server.NewServer(cfg, svc, ledger, hub)

	go func() {
		log.Printf("[main] listening on %s (idle timeout %ds, ban %d-%ds)",
			srv.Addr, cfg.IdleTimeout, cfg.PenaltyMin, cfg.PenaltyMax)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[main] server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("[main] shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[main] forced shutdown: %v", err)
	}
}
