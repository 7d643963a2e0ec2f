package lobbygateway

import (
	"context"
	"errors"
	"time"

	"wordduel/internal/access"
	"wordduel/internal/apperr"
	"wordduel/internal/events"
	"wordduel/internal/match"
	"wordduel/internal/presence"
	"wordduel/internal/stream"

	"github.com/jonboulle/clockwork"
)

const (
	defaultSystemRetries = 5
	dueBatchSize         = 200
)

// GameStore persists Game documents with version compare-and-swap.
type GameStore interface {
	CreateGame(ctx context.Context, g *match.Game) error
	GetGame(ctx context.Context, id string) (*match.Game, error)
	UpdateGame(ctx context.Context, g *match.Game, expectedVersion int64, spawned ...*match.Game) error
	ListDueGames(ctx context.Context, now time.Time, limit int) ([]*match.Game, error)
}

// SessionStatus answers whether a user's session lock is confirmed offline.
type SessionStatus interface {
	ConfirmedOffline(ctx context.Context, userID string) bool
}

type Options struct {
	Store    GameStore
	Machine  *match.Machine
	Gate     *access.Gate
	Presence *presence.Tracker
	Sessions SessionStatus
	Emitter  events.Emitter
	Feeds    *stream.Hub
	Clock    clockwork.Clock
}

// Coordinator runs every Game transition as read, validate, apply, then a
// compare-and-swap commit. Player actions surface StaleState to the caller;
// scheduler and presence driven writes retry against the fresh document.
type Coordinator struct {
	store    GameStore
	machine  *match.Machine
	gate     *access.Gate
	presence *presence.Tracker
	sessions SessionStatus
	emitter  events.Emitter
	feeds    *stream.Hub
	clock    clockwork.Clock
	retries  int
}

func NewCoordinator(opts Options) *Coordinator {
	c := &Coordinator{
		store:    opts.Store,
		machine:  opts.Machine,
		gate:     opts.Gate,
		presence: opts.Presence,
		sessions: opts.Sessions,
		emitter:  opts.Emitter,
		feeds:    opts.Feeds,
		clock:    opts.Clock,
		retries:  defaultSystemRetries,
	}
	if c.clock == nil {
		c.clock = clockwork.NewRealClock()
	}
	if c.emitter == nil {
		c.emitter = events.LogEmitter{}
	}
	if c.feeds == nil {
		c.feeds = stream.NewHub(256)
	}
	if c.presence != nil {
		c.presence.AddObserver(c)
	}
	return c
}

func (c *Coordinator) Presence() *presence.Tracker {
	return c.presence
}

func (c *Coordinator) Feed(gameID string) *stream.Buffer {
	return c.feeds.Feed(gameID)
}

// CloseFeed ends the game's feed after delivering one last event. It is a
// no-op when no feed is open.
func (c *Coordinator) CloseFeed(gameID, kind string, version int64, data any) {
	if c.feeds.Finish(gameID, kind, version, data) {
		metricFeedsClosedTotal.Add(1)
	}
}

// OpenFeeds is the number of game feeds held in memory.
func (c *Coordinator) OpenFeeds() int {
	return c.feeds.Len()
}

func (c *Coordinator) now() time.Time {
	return c.clock.Now()
}

func (c *Coordinator) load(ctx context.Context, gameID string, expectedVersion int64) (*match.Game, error) {
	g, err := c.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if expectedVersion > 0 && g.Version != expectedVersion {
		metricStaleRejectionsTotal.Add(1)
		return nil, apperr.New(apperr.ErrStaleState, "game %s is at version %d", gameID, g.Version)
	}
	return g, nil
}

func (c *Coordinator) commit(ctx context.Context, before, after *match.Game, spawned ...*match.Game) error {
	if err := c.store.UpdateGame(ctx, after, before.Version, spawned...); err != nil {
		if errors.Is(err, apperr.ErrStaleState) {
			metricStaleRejectionsTotal.Add(1)
		} else {
			metricTransitionErrors.Add(1)
		}
		return err
	}
	metricTransitionsTotal.Add(1)
	return nil
}

// offline is the forfeit-escalation check: the player must be absent from
// presence and hold no live session.
func (c *Coordinator) offline(ctx context.Context) match.Offline {
	return func(gameID, userID string) bool {
		if c.presence != nil && c.presence.IsOnline(gameID, userID) {
			return false
		}
		if c.sessions == nil {
			return false
		}
		return c.sessions.ConfirmedOffline(ctx, userID)
	}
}
