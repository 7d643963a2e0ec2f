package lobbygateway

import (
	"context"
	"errors"
	"time"

	"wordduel/internal/apperr"
	"wordduel/internal/match"

	"github.com/rs/zerolog/log"
)

// ApplyTimeout applies the forced transition owed by gameID, if any. Several
// callers may race here; the version check lets exactly one of them commit
// and the others observe nothing due on their retry.
func (c *Coordinator) ApplyTimeout(ctx context.Context, gameID string) (*match.Game, bool, error) {
	for attempt := 0; attempt < c.retries; attempt++ {
		g, err := c.store.GetGame(ctx, gameID)
		if err != nil {
			return nil, false, err
		}
		next, forced, out, ok := c.machine.ApplyDue(g, c.now(), c.offline(ctx))
		if !ok {
			return g, false, nil
		}
		if err := c.commit(ctx, g, next); err != nil {
			if errors.Is(err, apperr.ErrStaleState) {
				continue
			}
			return nil, false, err
		}
		metricTimeoutsAppliedTotal.Add(1)
		log.Info().
			Str("game_id", gameID).
			Str("reason", string(forced.Reason)).
			Time("deadline", forced.Deadline).
			Str("status", string(next.Status)).
			Msg("deadline enforced")
		c.afterRound(ctx, g, next, out)
		c.publishState(next, string(forced.Reason))
		return next, true, nil
	}
	return nil, false, apperr.New(apperr.ErrStaleState, "game %s kept changing during timeout", gameID)
}

func (c *Coordinator) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	reapEvery := interval
	if c.presence != nil && c.presence.TTL()/3 > reapEvery {
		reapEvery = c.presence.TTL() / 3
	}
	sweepTicker := c.clock.NewTicker(interval)
	reapTicker := c.clock.NewTicker(reapEvery)
	go func() {
		defer sweepTicker.Stop()
		defer reapTicker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-sweepTicker.Chan():
				c.SweepDeadlines(ctx, c.now())
			case <-reapTicker.Chan():
				c.ReapPresence(c.now())
			}
		}
	}()
}

// SweepDeadlines enforces every deadline that elapsed by now.
func (c *Coordinator) SweepDeadlines(ctx context.Context, now time.Time) int {
	due, err := c.store.ListDueGames(ctx, now, dueBatchSize)
	if err != nil {
		log.Warn().Err(err).Msg("list due games failed")
		return 0
	}
	applied := 0
	for _, g := range due {
		if _, ok, err := c.ApplyTimeout(ctx, g.ID); err != nil {
			log.Warn().Err(err).Str("game_id", g.ID).Msg("apply timeout failed")
		} else if ok {
			applied++
		}
	}
	return applied
}

func (c *Coordinator) ReapPresence(now time.Time) int {
	if c.presence == nil {
		return 0
	}
	n := c.presence.Reap(now)
	if n > 0 {
		metricPresenceReapedTotal.Add(int64(n))
	}
	return n
}
