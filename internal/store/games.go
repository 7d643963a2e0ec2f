package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wordduel/internal/apperr"
	"wordduel/internal/match"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func (s *Store) CreateGame(ctx context.Context, g *match.Game) error {
	g.Version = 1
	return insertGame(ctx, s.Pool, g)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertGame(ctx context.Context, db execer, g *match.Game) error {
	doc, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("encode game %s: %w", g.ID, err)
	}
	_, err = db.Exec(ctx, `INSERT INTO games (id, version, status, next_deadline, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())`,
		g.ID, g.Version, string(g.Status), optionalTimeParam(match.NextDeadline(g)), doc, timestamptzParam(g.CreatedAt))
	return err
}

func (s *Store) GetGame(ctx context.Context, id string) (*match.Game, error) {
	var doc []byte
	var version int64
	err := s.Pool.QueryRow(ctx, `SELECT version, doc FROM games WHERE id = $1`, id).Scan(&version, &doc)
	if err != nil {
		if err = mapNotFound(err); errors.Is(err, ErrNotFound) {
			return nil, apperr.New(apperr.ErrNotFound, "game %s not found", id)
		}
		return nil, err
	}
	var g match.Game
	if err := json.Unmarshal(doc, &g); err != nil {
		return nil, fmt.Errorf("decode game %s: %w", id, err)
	}
	g.Version = version
	return &g, nil
}

// UpdateGame commits g if the stored version still equals expectedVersion.
// Spawned games are inserted in the same transaction.
func (s *Store) UpdateGame(ctx context.Context, g *match.Game, expectedVersion int64, spawned ...*match.Game) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	next := *g
	next.Version = expectedVersion + 1
	doc, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("encode game %s: %w", g.ID, err)
	}
	tag, err := tx.Exec(ctx, `UPDATE games
		SET version = $3, status = $4, next_deadline = $5, doc = $6, updated_at = now()
		WHERE id = $1 AND version = $2`,
		g.ID, expectedVersion, next.Version, string(g.Status), optionalTimeParam(match.NextDeadline(g)), doc)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM games WHERE id = $1)`, g.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return apperr.New(apperr.ErrNotFound, "game %s not found", g.ID)
		}
		return apperr.New(ErrVersionMismatch, "game %s changed since version %d", g.ID, expectedVersion)
	}
	for _, sg := range spawned {
		sg.Version = 1
		if err := insertGame(ctx, tx, sg); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	g.Version = next.Version
	return nil
}

// ListDueGames returns open games whose earliest deadline is at or before now.
func (s *Store) ListDueGames(ctx context.Context, now time.Time, limit int) ([]*match.Game, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.Pool.Query(ctx, `SELECT version, doc FROM games
		WHERE status <> 'completed' AND next_deadline IS NOT NULL AND next_deadline <= $1
		ORDER BY next_deadline ASC LIMIT $2`, timestamptzParam(now), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*match.Game
	for rows.Next() {
		var version int64
		var doc []byte
		if err := rows.Scan(&version, &doc); err != nil {
			return nil, err
		}
		var g match.Game
		if err := json.Unmarshal(doc, &g); err != nil {
			return nil, err
		}
		g.Version = version
		out = append(out, &g)
	}
	return out, rows.Err()
}
