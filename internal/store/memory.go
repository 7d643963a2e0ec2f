package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"wordduel/internal/apperr"
	"wordduel/internal/match"
)

// Memory is an in-process store with the same compare-and-swap contract as
// Store. It backs tests and single-node runs without POSTGRES_DSN.
type Memory struct {
	mu    sync.Mutex
	games map[string]*match.Game
	locks map[string]SessionLock
}

func NewMemory() *Memory {
	return &Memory{
		games: map[string]*match.Game{},
		locks: map[string]SessionLock{},
	}
}

func (m *Memory) CreateGame(_ context.Context, g *match.Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.games[g.ID]; ok {
		return apperr.New(apperr.ErrConflict, "game %s already exists", g.ID)
	}
	g.Version = 1
	m.games[g.ID] = g.Clone()
	return nil
}

func (m *Memory) GetGame(_ context.Context, id string) (*match.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[id]
	if !ok {
		return nil, apperr.New(ErrNotFound, "game %s not found", id)
	}
	return g.Clone(), nil
}

func (m *Memory) UpdateGame(_ context.Context, g *match.Game, expectedVersion int64, spawned ...*match.Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.games[g.ID]
	if !ok {
		return apperr.New(ErrNotFound, "game %s not found", g.ID)
	}
	if cur.Version != expectedVersion {
		return apperr.New(ErrVersionMismatch, "game %s changed since version %d", g.ID, expectedVersion)
	}
	for _, sg := range spawned {
		if _, exists := m.games[sg.ID]; exists {
			return apperr.New(apperr.ErrConflict, "game %s already exists", sg.ID)
		}
	}
	next := g.Clone()
	next.Version = expectedVersion + 1
	m.games[g.ID] = next
	for _, sg := range spawned {
		sg.Version = 1
		m.games[sg.ID] = sg.Clone()
	}
	g.Version = next.Version
	return nil
}

func (m *Memory) ListDueGames(_ context.Context, now time.Time, limit int) ([]*match.Game, error) {
	if limit <= 0 {
		limit = 100
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*match.Game
	for _, g := range m.games {
		d := match.NextDeadline(g)
		if d.IsZero() || d.After(now) {
			continue
		}
		out = append(out, g.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return match.NextDeadline(out[i]).Before(match.NextDeadline(out[j]))
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) GetSessionLock(_ context.Context, userID string) (*SessionLock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &l, nil
}

func (m *Memory) PutSessionLock(_ context.Context, l SessionLock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks[l.UserID] = l
	return nil
}

func (m *Memory) TouchSessionLock(_ context.Context, userID, token string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[userID]
	if !ok || l.Token != token {
		return false, nil
	}
	l.LastHeartbeat = at
	m.locks[userID] = l
	return true, nil
}

func (m *Memory) DeleteSessionLock(_ context.Context, userID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.locks[userID]; ok && l.Token == token {
		delete(m.locks, userID)
	}
	return nil
}

func (m *Memory) Ping(context.Context) error {
	return nil
}
