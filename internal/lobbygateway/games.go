package lobbygateway

import (
	"context"
	"strings"
	"time"

	"wordduel/internal/access"
	"wordduel/internal/apperr"
	"wordduel/internal/identity"
	"wordduel/internal/match"

	"github.com/rs/zerolog/log"
)

type CreateGameRequest struct {
	GameType      match.GameType
	Mode          match.Mode
	Visibility    match.Visibility
	Passcode      string
	WordLength    int
	MaxAttempts   int
	RoundsSetting int
	MaxWins       int
	MaxDraws      int
	TurnTime      time.Duration
	MatchTime     time.Duration
	Ranked        bool
	Alias         string
}

func (c *Coordinator) CreateGame(ctx context.Context, who identity.Identity, req CreateGameRequest) (*match.Game, error) {
	var hash string
	if strings.TrimSpace(req.Passcode) != "" {
		if req.Visibility != match.VisibilityPrivate {
			return nil, apperr.New(apperr.ErrInvalidRequest, "passcode requires a private lobby")
		}
		h, err := c.gate.HashPasscode(req.Passcode)
		if err != nil {
			return nil, err
		}
		hash = h
	}
	g, err := c.machine.Create(match.CreateRequest{
		CreatorID:      who.UID,
		CreatorAlias:   req.Alias,
		CreatorIsGuest: who.IsGuest,
		GameType:       req.GameType,
		Mode:           req.Mode,
		Visibility:     req.Visibility,
		PasscodeHash:   hash,
		WordLength:     req.WordLength,
		MaxAttempts:    req.MaxAttempts,
		RoundsSetting:  req.RoundsSetting,
		MaxWins:        req.MaxWins,
		MaxDraws:       req.MaxDraws,
		TurnTime:       req.TurnTime,
		MatchTime:      req.MatchTime,
		Ranked:         req.Ranked,
	}, c.now())
	if err != nil {
		return nil, err
	}
	if err := c.store.CreateGame(ctx, g); err != nil {
		return nil, err
	}
	metricGamesCreatedTotal.Add(1)
	log.Info().
		Str("game_id", g.ID).
		Str("user_id", who.UID).
		Str("game_type", string(g.GameType)).
		Str("mode", string(g.MultiplayerMode)).
		Bool("private", g.Visibility == match.VisibilityPrivate).
		Msg("game created")
	c.publishState(g, "game_created")
	return g, nil
}

// GetGame reads a game and applies any elapsed deadline before returning it.
func (c *Coordinator) GetGame(ctx context.Context, gameID string) (*match.Game, error) {
	g, err := c.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if _, due := match.Due(g, c.now()); !due {
		return g, nil
	}
	fresh, _, err := c.ApplyTimeout(ctx, gameID)
	if err != nil {
		log.Warn().Err(err).Str("game_id", gameID).Msg("on-read timeout failed")
		return g, nil
	}
	return fresh, nil
}

type JoinGameRequest struct {
	Alias           string
	Passcode        string
	AccessToken     string
	ExpectedVersion int64
}

func (c *Coordinator) JoinGame(ctx context.Context, who identity.Identity, gameID string, req JoinGameRequest) (*match.Game, error) {
	g, err := c.load(ctx, gameID, req.ExpectedVersion)
	if err != nil {
		return nil, err
	}
	authorized := !g.HasPasscode || g.IsPlayer(who.UID) || c.gate.Authorized(g, who.UID, req.Passcode, req.AccessToken)
	next, changed, err := c.machine.Join(g, match.JoinRequest{
		UserID:     who.UID,
		Alias:      req.Alias,
		IsGuest:    who.IsGuest,
		Authorized: authorized,
	}, c.now())
	if err != nil {
		return nil, err
	}
	if !changed {
		return g, nil
	}
	if err := c.commit(ctx, g, next); err != nil {
		return nil, err
	}
	if !g.IsPlayer(who.UID) {
		log.Info().Str("game_id", gameID).Str("user_id", who.UID).Int("players", len(next.Players)).Msg("player joined")
		c.emit(ctx, eventInviteAccepted(next, who.UID))
	}
	c.publishState(next, "player_joined")
	return next, nil
}

func (c *Coordinator) StartGame(ctx context.Context, who identity.Identity, gameID string, expectedVersion int64) (*match.Game, error) {
	g, err := c.load(ctx, gameID, expectedVersion)
	if err != nil {
		return nil, err
	}
	next, err := c.machine.Start(g, who.UID, c.now())
	if err != nil {
		return nil, err
	}
	if err := c.commit(ctx, g, next); err != nil {
		return nil, err
	}
	log.Info().Str("game_id", gameID).Strs("turn_order", next.TurnOrder).Msg("match started")
	c.publishState(next, "match_started")
	return next, nil
}

func (c *Coordinator) SubmitGuess(ctx context.Context, who identity.Identity, gameID, word string, expectedVersion int64) (*match.Game, match.Outcome, error) {
	g, err := c.load(ctx, gameID, expectedVersion)
	if err != nil {
		return nil, match.Outcome{}, err
	}
	next, out, err := c.machine.SubmitGuess(g, who.UID, word, c.now())
	if err != nil {
		return nil, match.Outcome{}, err
	}
	if err := c.commit(ctx, g, next); err != nil {
		return nil, match.Outcome{}, err
	}
	c.afterRound(ctx, g, next, out)
	c.publishState(next, "guess_submitted")
	return next, out, nil
}

func (c *Coordinator) CastVote(ctx context.Context, who identity.Identity, gameID string, kind match.VoteKind, expectedVersion int64) (*match.Game, match.VoteResult, error) {
	g, err := c.load(ctx, gameID, expectedVersion)
	if err != nil {
		return nil, match.VoteResult{}, err
	}
	next, res, err := c.machine.Vote(g, who.UID, kind, c.now())
	if err != nil {
		return nil, match.VoteResult{}, err
	}
	if !res.Changed {
		return g, res, nil
	}
	var spawned []*match.Game
	if res.Spawned != nil {
		spawned = append(spawned, res.Spawned)
	}
	if err := c.commit(ctx, g, next, spawned...); err != nil {
		return nil, match.VoteResult{}, err
	}
	if res.QuorumReached {
		log.Info().Str("game_id", gameID).Str("vote", string(kind)).Str("effect", res.Effect).Msg("vote quorum reached")
	}
	switch {
	case res.Spawned != nil:
		c.emit(ctx, eventRematchCreated(next, res.Spawned))
		c.publishState(res.Spawned, "game_created")
	case kind == match.VoteEnd && res.QuorumReached:
		c.emit(ctx, eventMatchCompleted(next))
	}
	c.publishState(next, "vote_cast")
	return next, res, nil
}

func (c *Coordinator) CheckAccess(ctx context.Context, who identity.Identity, gameID, passcode, token string) (access.Grant, error) {
	g, err := c.store.GetGame(ctx, gameID)
	if err != nil {
		return access.Grant{}, err
	}
	grant, err := c.gate.Check(g, who.UID, passcode, token)
	if err != nil {
		log.Info().Str("game_id", gameID).Str("user_id", who.UID).Msg("access denied")
		return access.Grant{}, err
	}
	return grant, nil
}

// afterRound emits notifications once a committed guess or timeout settled a round.
func (c *Coordinator) afterRound(ctx context.Context, before, after *match.Game, out match.Outcome) {
	if out.RoundEnded {
		log.Info().
			Str("game_id", after.ID).
			Int("round", out.Round.Round).
			Str("winner_id", out.Round.WinnerID).
			Bool("draw", out.Round.Draw).
			Bool("forfeit", out.Round.Forfeit).
			Msg("round completed")
		c.emit(ctx, eventRoundCompleted(after, out.Round))
	}
	if before.Status != match.StatusCompleted && after.Status == match.StatusCompleted {
		log.Info().Str("game_id", after.ID).Str("winner_id", after.WinnerID).Str("ended_by", after.EndedBy).Msg("match completed")
		c.emit(ctx, eventMatchCompleted(after))
	}
}

// publishState pushes the public view to the game's feed. A completed game
// gets its last event and the feed is closed; later writes to it, such as
// rematch votes, find no open feed and are dropped.
func (c *Coordinator) publishState(g *match.Game, kind string) {
	if g.Status == match.StatusCompleted {
		c.CloseFeed(g.ID, kind, g.Version, g.ViewFor(""))
		return
	}
	c.feeds.Publish(g.ID, kind, g.Version, g.ViewFor(""))
}
