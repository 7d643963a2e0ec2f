package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"wordduel/internal/apperr"
	"wordduel/internal/config"
	"wordduel/internal/store"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

type Liveness string

const (
	LivenessActive          Liveness = "active"
	LivenessPossiblyOffline Liveness = "possibly_offline"
	LivenessOffline         Liveness = "offline"
)

// LockStore persists one SessionLock per user.
type LockStore interface {
	GetSessionLock(ctx context.Context, userID string) (*store.SessionLock, error)
	PutSessionLock(ctx context.Context, l store.SessionLock) error
	TouchSessionLock(ctx context.Context, userID, token string, at time.Time) (bool, error)
	DeleteSessionLock(ctx context.Context, userID, token string) error
}

type Policy struct {
	Heartbeat          time.Duration
	Stale              time.Duration
	ActiveGrace        time.Duration
	LiveTolerance      time.Duration
	StrictSingleDevice bool
}

func PolicyFromConfig(cfg config.GameConfig) Policy {
	return Policy{
		Heartbeat:          cfg.SessionHeartbeat,
		Stale:              cfg.SessionStale,
		ActiveGrace:        cfg.SessionActiveGrace,
		LiveTolerance:      cfg.LiveTolerance(),
		StrictSingleDevice: cfg.StrictSingleDevice,
	}
}

func DefaultPolicy() Policy {
	return Policy{
		Heartbeat:     10 * time.Second,
		Stale:         30 * time.Second,
		ActiveGrace:   7 * time.Second,
		LiveTolerance: 33 * time.Second,
	}
}

// Lease is what a client holds while it is the authoritative session.
type Lease struct {
	UserID        string    `json:"userId"`
	Token         string    `json:"token"`
	SessionID     string    `json:"sessionId"`
	IssuedAt      time.Time `json:"issuedAt"`
	LastHeartbeat time.Time `json:"lastHeartbeat"`
	// Superseded is the token this lease replaced, if any.
	Superseded string `json:"supersededToken,omitempty"`
	// HeartbeatEvery tells the client how often to refresh.
	HeartbeatEvery time.Duration `json:"-"`
}

type Status struct {
	UserID        string        `json:"userId"`
	Liveness      Liveness      `json:"liveness"`
	Alive         bool          `json:"alive"`
	Age           time.Duration `json:"-"`
	AgeMS         int64         `json:"ageMs"`
	SessionID     string        `json:"sessionId,omitempty"`
	LastHeartbeat time.Time     `json:"lastHeartbeat,omitempty"`
}

type Manager struct {
	store  LockStore
	clock  clockwork.Clock
	policy Policy
}

func NewManager(st LockStore, clock clockwork.Clock, policy Policy) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Manager{store: st, clock: clock, policy: policy}
}

func (m *Manager) Policy() Policy {
	return m.policy
}

// Acquire creates the user's lease or takes over an existing one. Under the
// strict single-device policy a live lease held by another session id is a
// Conflict instead.
func (m *Manager) Acquire(ctx context.Context, userID, sessionID string) (Lease, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Lease{}, apperr.New(apperr.ErrInvalidRequest, "user is required")
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	now := m.clock.Now()
	prev, err := m.store.GetSessionLock(ctx, userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return Lease{}, err
	}
	next := store.SessionLock{
		UserID:        userID,
		Token:         uuid.NewString(),
		SessionID:     sessionID,
		IssuedAt:      now,
		LastHeartbeat: now,
	}
	if prev != nil {
		age := now.Sub(prev.LastHeartbeat)
		if m.policy.StrictSingleDevice && prev.SessionID != sessionID && age <= m.policy.LiveTolerance {
			return Lease{}, apperr.New(apperr.ErrConflict, "user %s already has a live session", userID)
		}
		next.SupersededToken = prev.Token
	}
	if err := m.store.PutSessionLock(ctx, next); err != nil {
		return Lease{}, err
	}
	if prev != nil {
		log.Info().
			Str("user_id", userID).
			Str("session_id", sessionID).
			Str("previous_session_id", prev.SessionID).
			Msg("session superseded")
	}
	return m.leaseFrom(next), nil
}

// Heartbeat refreshes the lease. Superseded means another session took over
// and the caller must stop acting as authoritative.
func (m *Manager) Heartbeat(ctx context.Context, userID, token string) (Lease, error) {
	now := m.clock.Now()
	ok, err := m.store.TouchSessionLock(ctx, userID, token, now)
	if err != nil {
		return Lease{}, err
	}
	cur, err := m.store.GetSessionLock(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Lease{}, apperr.New(apperr.ErrNotFound, "no session for %s", userID)
		}
		return Lease{}, err
	}
	if !ok || cur.Token != token {
		return Lease{}, apperr.New(apperr.ErrSuperseded, "session for %s was superseded", userID)
	}
	return m.leaseFrom(*cur), nil
}

// Release drops the lease if token still owns it. Repeated calls are no-ops.
func (m *Manager) Release(ctx context.Context, userID, token string) error {
	return m.store.DeleteSessionLock(ctx, userID, token)
}

func (m *Manager) Status(ctx context.Context, userID string) (Status, error) {
	cur, err := m.store.GetSessionLock(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Status{UserID: userID, Liveness: LivenessOffline}, nil
		}
		return Status{}, err
	}
	return m.classify(*cur, m.clock.Now()), nil
}

// ConfirmedOffline is true only once a reader may escalate past the grace
// window. Lookup failures count as not offline.
func (m *Manager) ConfirmedOffline(ctx context.Context, userID string) bool {
	st, err := m.Status(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("session status lookup failed")
		return false
	}
	return st.Liveness == LivenessOffline
}

func (m *Manager) classify(l store.SessionLock, now time.Time) Status {
	age := now.Sub(l.LastHeartbeat)
	if age < 0 {
		age = 0
	}
	st := Status{
		UserID:        l.UserID,
		Age:           age,
		AgeMS:         age.Milliseconds(),
		SessionID:     l.SessionID,
		LastHeartbeat: l.LastHeartbeat,
		Alive:         age <= m.policy.LiveTolerance,
	}
	switch {
	case age <= m.policy.Stale:
		st.Liveness = LivenessActive
	case age <= m.offlineAfter():
		st.Liveness = LivenessPossiblyOffline
	default:
		st.Liveness = LivenessOffline
	}
	return st
}

// offlineAfter is the age past which a lease is confirmed offline: the end of
// the grace window, capped by the live tolerance so a dead lease is never
// reported as possibly offline.
func (m *Manager) offlineAfter() time.Duration {
	grace := m.policy.Stale + m.policy.ActiveGrace
	if m.policy.LiveTolerance > 0 && m.policy.LiveTolerance < grace {
		return m.policy.LiveTolerance
	}
	return grace
}

func (m *Manager) leaseFrom(l store.SessionLock) Lease {
	return Lease{
		UserID:         l.UserID,
		Token:          l.Token,
		SessionID:      l.SessionID,
		IssuedAt:       l.IssuedAt,
		LastHeartbeat:  l.LastHeartbeat,
		Superseded:     l.SupersededToken,
		HeartbeatEvery: m.policy.Heartbeat,
	}
}
