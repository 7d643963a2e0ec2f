package lobbygateway

import (
	"context"
	"errors"
	"time"

	"wordduel/internal/apperr"
	"wordduel/internal/identity"
	"wordduel/internal/match"
	"wordduel/internal/presence"

	"github.com/rs/zerolog/log"
)

const presenceSyncTimeout = 5 * time.Second

func (c *Coordinator) requirePlayer(ctx context.Context, who identity.Identity, gameID string) (*match.Game, error) {
	g, err := c.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if !g.IsPlayer(who.UID) {
		return nil, apperr.New(apperr.ErrAccessDenied, "not a player in game %s", gameID)
	}
	return g, nil
}

func (c *Coordinator) JoinPresence(ctx context.Context, who identity.Identity, gameID string) (presence.Binding, error) {
	if _, err := c.requirePlayer(ctx, who, gameID); err != nil {
		return "", err
	}
	return c.presence.Join(gameID, who.UID), nil
}

func (c *Coordinator) TouchPresence(_ context.Context, who identity.Identity, gameID string, b presence.Binding) error {
	return c.presence.Touch(gameID, who.UID, b)
}

func (c *Coordinator) LeavePresence(_ context.Context, who identity.Identity, gameID string) {
	c.presence.Leave(gameID, who.UID)
}

// DropPresence is the connection-bound release used when a socket closes.
func (c *Coordinator) DropPresence(gameID, userID string, b presence.Binding) {
	c.presence.Drop(gameID, userID, b)
}

func (c *Coordinator) ListPresence(ctx context.Context, gameID string) ([]presence.Entry, error) {
	if _, err := c.store.GetGame(ctx, gameID); err != nil {
		return nil, err
	}
	return c.presence.ListActive(gameID), nil
}

// OnPresenceChanged mirrors the presence set into activePlayers.
func (c *Coordinator) OnPresenceChanged(gameID string, snap presence.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), presenceSyncTimeout)
	defer cancel()
	if err := c.syncActivePlayers(ctx, gameID); err != nil {
		metricPresenceSyncErrors.Add(1)
		log.Warn().Err(err).Str("game_id", gameID).Uint64("seq", snap.Seq).Msg("presence sync failed")
	}
	c.feeds.PublishOpen(gameID, "presence", 0, snap)
}

func (c *Coordinator) syncActivePlayers(ctx context.Context, gameID string) error {
	for attempt := 0; attempt < c.retries; attempt++ {
		g, err := c.store.GetGame(ctx, gameID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return nil
			}
			return err
		}
		if g.Status == match.StatusCompleted {
			return nil
		}
		// Read the latest snapshot on every attempt so a retry never writes
		// an older membership set.
		next, changed := match.SetActive(g, c.presence.OnlineUsers(gameID))
		if !changed {
			return nil
		}
		err = c.commit(ctx, g, next)
		if err == nil {
			c.publishState(next, "active_players")
			return nil
		}
		if !errors.Is(err, apperr.ErrStaleState) {
			return err
		}
	}
	return apperr.New(apperr.ErrStaleState, "game %s kept changing during presence sync", gameID)
}
