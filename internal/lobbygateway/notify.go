package lobbygateway

import (
	"context"

	"wordduel/internal/events"
	"wordduel/internal/match"
)

func (c *Coordinator) emit(ctx context.Context, ev events.Event) {
	c.emitter.Emit(ctx, ev)
}

func eventRoundCompleted(g *match.Game, r match.RoundResult) events.Event {
	return events.Event{
		Type:   events.RoundCompleted,
		GameID: g.ID,
		At:     r.EndedAt,
		Data: map[string]any{
			"round":    r.Round,
			"winnerId": r.WinnerID,
			"draw":     r.Draw,
			"forfeit":  r.Forfeit,
			"scores":   g.Scores,
			"players":  g.Players,
		},
	}
}

func eventMatchCompleted(g *match.Game) events.Event {
	return events.Event{
		Type:   events.MatchCompleted,
		GameID: g.ID,
		At:     g.CompletedAt,
		Data: map[string]any{
			"winnerId": g.WinnerID,
			"endedBy":  g.EndedBy,
			"message":  g.CompletionMessage,
			"scores":   g.Scores,
			"players":  g.Players,
		},
	}
}

func eventRematchCreated(old, spawned *match.Game) events.Event {
	return events.Event{
		Type:   events.RematchCreated,
		GameID: old.ID,
		At:     spawned.CreatedAt,
		Data: map[string]any{
			"rematchGameId": spawned.ID,
			"players":       spawned.Players,
		},
	}
}

func eventInviteAccepted(g *match.Game, userID string) events.Event {
	return events.Event{
		Type:   events.InviteAccepted,
		GameID: g.ID,
		At:     g.LastActivityAt,
		Data: map[string]any{
			"userId":    userID,
			"alias":     g.PlayerAliases[userID],
			"creatorId": g.CreatorID,
		},
	}
}
