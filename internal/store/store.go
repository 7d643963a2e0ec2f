package store

import (
	"context"
	"time"

	"wordduel/internal/apperr"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = apperr.ErrNotFound
	// ErrVersionMismatch is returned when a compare-and-swap lost a race.
	ErrVersionMismatch = apperr.ErrStaleState
)

// Store is the PostgreSQL-backed persistence for games and session locks.
type Store struct {
	Pool *pgxpool.Pool
}

func New(dsn string) (*Store, error) {
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.Pool.Ping(ctx)
}
