package stats

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists the snapshot as a single jsonb row. The ledger is
// one document, so a keyed upsert beats a relational layout here.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const createStatsTable = `
CREATE TABLE IF NOT EXISTS roulette_stats (
	id         int PRIMARY KEY CHECK (id = 1),
	data       jsonb NOT NULL,
	updated_at timestamptz NOT NULL DEFAULT now()
)`

// NewPostgresStore connects and ensures the stats table exists.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, createStatsTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create stats table: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Load(ctx context.Context) ([]byte, error) {
	var data []byte
	err := p.pool.QueryRow(ctx, `SELECT data FROM roulette_stats WHERE id = 1`).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load stats row: %w", err)
	}
	return data, nil
}

func (p *PostgresStore) Save(ctx context.Context, data []byte) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO roulette_stats (id, data, updated_at)
		VALUES (1, $1, now())
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		data)
	if err != nil {
		return fmt.Errorf("save stats row: %w", err)
	}
	return nil
}

func (p *PostgresStore) Close() {
	p.pool.Close()
}
