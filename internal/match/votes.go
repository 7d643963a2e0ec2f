package match

import (
	"fmt"
	"time"

	"wordduel/internal/apperr"
)

type VoteResult struct {
	Kind          VoteKind
	Votes         []string
	QuorumReached bool
	Changed       bool
	Effect        string
	// Spawned is the new waiting game created by a rematch quorum. It must be
	// committed together with the updated original.
	Spawned *Game
}

func (m *Machine) Vote(in *Game, userID string, kind VoteKind, now time.Time) (*Game, VoteResult, error) {
	if !in.IsPlayer(userID) {
		return nil, VoteResult{}, apperr.New(apperr.ErrAccessDenied, "only players can vote")
	}
	switch kind {
	case VoteEnd:
		if in.Status == StatusCompleted {
			return nil, VoteResult{}, apperr.New(apperr.ErrAlreadyCompleted, "game %s is completed", in.ID)
		}
	case VoteNextRound:
		if in.Status == StatusCompleted {
			return nil, VoteResult{}, apperr.New(apperr.ErrAlreadyCompleted, "game %s is completed", in.ID)
		}
		if in.Status != StatusInProgress || in.RoundPhase != RoundFinished {
			return nil, VoteResult{}, apperr.New(apperr.ErrConflict, "no finished round to advance")
		}
	case VoteRematch:
		if in.Status != StatusCompleted {
			return nil, VoteResult{}, apperr.New(apperr.ErrConflict, "rematch needs a completed game")
		}
		if in.RematchGameID != "" {
			return nil, VoteResult{}, apperr.New(apperr.ErrConflict, "rematch %s already created", in.RematchGameID)
		}
	default:
		return nil, VoteResult{}, apperr.New(apperr.ErrInvalidRequest, "unknown vote kind %q", kind)
	}

	g := in.Clone()
	set := g.voteSet(kind)
	var added bool
	*set, added = addUnique(*set, userID)
	res := VoteResult{Kind: kind, Votes: cloneStrings(*set), Changed: added}
	if !sameSet(*set, g.Players) {
		res.Effect = fmt.Sprintf("%d of %d players voted %s", len(*set), len(g.Players), kind)
		return g, res, nil
	}

	res.QuorumReached = true
	res.Changed = true
	*set = []string{}
	switch kind {
	case VoteEnd:
		m.complete(g, "", EndedByVote, "players voted to end the game", now)
		res.Effect = "game ended by vote"
	case VoteNextRound:
		if err := m.advanceRound(g, now); err != nil {
			return nil, VoteResult{}, err
		}
		res.Effect = fmt.Sprintf("round %d started", g.CurrentRound)
	case VoteRematch:
		spawned, err := m.rematch(g, now)
		if err != nil {
			return nil, VoteResult{}, err
		}
		g.RematchGameID = spawned.ID
		res.Spawned = spawned
		res.Effect = fmt.Sprintf("rematch %s created", spawned.ID)
	}
	if kind != VoteRematch {
		m.touch(g, now)
	}
	return g, res, nil
}

func (g *Game) voteSet(kind VoteKind) *[]string {
	switch kind {
	case VoteEnd:
		return &g.EndVotes
	case VoteNextRound:
		return &g.NextRoundVotes
	default:
		return &g.RematchVotes
	}
}

// advanceRound starts the next pre-generated round. The starting player
// rotates through turnOrder so every player opens rounds in turn.
func (m *Machine) advanceRound(g *Game, now time.Time) error {
	next := g.CurrentRound + 1
	solution, ok := g.SolutionFor(next)
	if !ok {
		return fmt.Errorf("game %s has no solution for round %d", g.ID, next)
	}
	g.CurrentRound = next
	g.Solution = solution
	g.Guesses = []Guess{}
	g.RoundPhase = RoundPlaying
	g.CurrentTurnPlayerID = g.TurnOrder[(next-1)%len(g.TurnOrder)]
	g.TurnDeadline = now.Add(g.TurnTime)
	g.EndVotes = []string{}
	g.NextRoundVotes = []string{}
	if g.RoundBonus != nil && g.RoundBonus.Round != next {
		g.RoundBonus = nil
	}
	return nil
}

func (m *Machine) rematch(old *Game, now time.Time) (*Game, error) {
	capacity := old.Capacity()
	solutions, err := m.solutions.Pick(old.WordLength, RoundsFor(capacity, old.MaxWins, old.MaxDraws))
	if err != nil {
		return nil, fmt.Errorf("pick rematch solutions: %w", err)
	}
	aliases := make(map[string]string, len(old.PlayerAliases))
	for k, v := range old.PlayerAliases {
		aliases[k] = v
	}
	g := &Game{
		ID:              m.newID(),
		CreatorID:       old.CreatorID,
		GameType:        old.GameType,
		MultiplayerMode: old.MultiplayerMode,
		Visibility:      old.Visibility,
		HasPasscode:     old.HasPasscode,
		PasscodeHash:    old.PasscodeHash,
		Ranked:          old.Ranked,
		Players:         cloneStrings(old.Players),
		ActivePlayers:   cloneStrings(old.ActivePlayers),
		PlayerAliases:   aliases,
		TurnOrder:       []string{},
		WordLength:      old.WordLength,
		MaxAttempts:     old.MaxAttempts,
		Guesses:         []Guess{},
		RoundsSetting:   old.RoundsSetting,
		Solutions:       solutions,
		MatchState: MatchState{
			Scores:   map[string]int{},
			MaxWins:  old.MaxWins,
			MaxDraws: old.MaxDraws,
		},
		RoundHistory:   []RoundResult{},
		Status:         StatusWaiting,
		EndVotes:       []string{},
		NextRoundVotes: []string{},
		RematchVotes:   []string{},
		RematchOfID:    old.ID,
		CreatedAt:      now,
		TurnTime:       old.TurnTime,
		MatchTime:      old.MatchTime,
	}
	if m.rules.LobbyTTL > 0 {
		g.LobbyClosesAt = now.Add(m.rules.LobbyTTL)
	}
	m.touch(g, now)
	return g, nil
}
