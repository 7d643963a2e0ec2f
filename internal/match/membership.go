package match

import (
	"strings"
	"time"

	"wordduel/internal/apperr"
)

type JoinRequest struct {
	UserID  string
	Alias   string
	IsGuest bool
	// Authorized is set by the caller once the access gate accepted the
	// supplied passcode or access token for a passcode-protected lobby.
	Authorized bool
}

// Join adds the caller to players. Rejoining members are only marked active.
func (m *Machine) Join(in *Game, req JoinRequest, now time.Time) (*Game, bool, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, false, apperr.New(apperr.ErrInvalidRequest, "user is required")
	}
	if in.Status == StatusCompleted {
		return nil, false, apperr.New(apperr.ErrAlreadyCompleted, "game %s is completed", in.ID)
	}
	if in.Ranked && req.IsGuest {
		return nil, false, apperr.New(apperr.ErrGuestNotAllowed, "guests cannot join ranked games")
	}
	g := in.Clone()
	if g.IsPlayer(req.UserID) {
		var changed bool
		g.ActivePlayers, changed = addUnique(g.ActivePlayers, req.UserID)
		if alias := strings.TrimSpace(req.Alias); alias != "" && g.PlayerAliases[req.UserID] != alias {
			g.PlayerAliases[req.UserID] = alias
			changed = true
		}
		return g, changed, nil
	}
	if g.Status != StatusWaiting {
		return nil, false, apperr.New(apperr.ErrConflict, "game %s already started", g.ID)
	}
	if g.HasPasscode && !req.Authorized {
		return nil, false, apperr.New(apperr.ErrAccessDenied, "passcode required")
	}
	if len(g.Players) >= g.Capacity() {
		return nil, false, apperr.New(apperr.ErrLobbyFull, "lobby holds %d players", g.Capacity())
	}
	alias := strings.TrimSpace(req.Alias)
	if alias == "" {
		alias = req.UserID
	}
	g.Players = append(g.Players, req.UserID)
	g.ActivePlayers, _ = addUnique(g.ActivePlayers, req.UserID)
	if g.PlayerAliases == nil {
		g.PlayerAliases = map[string]string{}
	}
	g.PlayerAliases[req.UserID] = alias
	m.touch(g, now)
	return g, true, nil
}

func (m *Machine) Start(in *Game, userID string, now time.Time) (*Game, error) {
	switch in.Status {
	case StatusCompleted:
		return nil, apperr.New(apperr.ErrAlreadyCompleted, "game %s is completed", in.ID)
	case StatusInProgress:
		return nil, apperr.New(apperr.ErrConflict, "game %s already started", in.ID)
	}
	if userID != in.CreatorID {
		return nil, apperr.New(apperr.ErrAccessDenied, "only the creator can start the game")
	}
	if len(in.Players) < in.MinPlayers() {
		return nil, apperr.New(apperr.ErrConflict, "need at least %d players", in.MinPlayers())
	}
	solution, ok := in.SolutionFor(1)
	if !ok {
		return nil, apperr.New(apperr.ErrConflict, "game %s has no solutions", in.ID)
	}
	g := in.Clone()
	g.Status = StatusInProgress
	g.TurnOrder = cloneStrings(g.Players)
	g.CurrentTurnPlayerID = g.TurnOrder[0]
	g.CurrentRound = 1
	g.Solution = solution
	g.Guesses = []Guess{}
	g.RoundPhase = RoundPlaying
	g.Scores = make(map[string]int, len(g.Players))
	for _, p := range g.Players {
		g.Scores[p] = 0
	}
	g.MatchDeadline = now.Add(g.MatchTime)
	if m.rules.MatchHardStop > 0 {
		g.MatchHardStopAt = now.Add(m.rules.MatchHardStop)
	}
	g.TurnDeadline = now.Add(g.TurnTime)
	g.EndVotes = []string{}
	g.NextRoundVotes = []string{}
	m.touch(g, now)
	return g, nil
}

// SetActive replaces activePlayers with the players currently present, keeping
// join order. It reports whether anything changed.
func SetActive(in *Game, online []string) (*Game, bool) {
	next := make([]string, 0, len(in.Players))
	for _, p := range in.Players {
		if contains(online, p) {
			next = append(next, p)
		}
	}
	if len(next) == len(in.ActivePlayers) {
		same := true
		for i := range next {
			if next[i] != in.ActivePlayers[i] {
				same = false
				break
			}
		}
		if same {
			return in, false
		}
	}
	g := in.Clone()
	g.ActivePlayers = next
	return g, true
}
