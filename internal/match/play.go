package match

import (
	"fmt"
	"strings"
	"time"

	"wordduel/internal/apperr"
)

// Outcome describes what a transition did beyond the document change, so
// callers can publish events after the commit.
type Outcome struct {
	RoundEnded    bool
	Round         RoundResult
	MatchOver     bool
	MatchWinnerID string
	Completed     bool
}

func (m *Machine) SubmitGuess(in *Game, userID, word string, now time.Time) (*Game, Outcome, error) {
	switch in.Status {
	case StatusCompleted:
		return nil, Outcome{}, apperr.New(apperr.ErrAlreadyCompleted, "game %s is completed", in.ID)
	case StatusWaiting:
		return nil, Outcome{}, apperr.New(apperr.ErrConflict, "game %s has not started", in.ID)
	}
	if !in.IsPlayer(userID) {
		return nil, Outcome{}, apperr.New(apperr.ErrAccessDenied, "not a player in game %s", in.ID)
	}
	if in.RoundPhase != RoundPlaying {
		return nil, Outcome{}, apperr.New(apperr.ErrConflict, "round %d is finished", in.CurrentRound)
	}
	if in.CurrentTurnPlayerID != userID {
		return nil, Outcome{}, apperr.New(apperr.ErrConflict, "not your turn")
	}
	word = strings.ToLower(strings.TrimSpace(word))
	if len(word) != in.WordLength || !isLetters(word) {
		return nil, Outcome{}, apperr.New(apperr.ErrInvalidRequest, "guess must be %d letters a-z", in.WordLength)
	}

	g := in.Clone()
	correct := word == g.Solution
	g.Guesses = append(g.Guesses, Guess{
		PlayerID: userID,
		Word:     word,
		Round:    g.CurrentRound,
		Attempt:  len(g.Guesses) + 1,
		Correct:  correct,
		At:       now,
	})
	g.CurrentTurnPlayerID = nextInOrder(g.TurnOrder, userID)
	g.TurnDeadline = now.Add(g.TurnTime)
	m.touch(g, now)

	var out Outcome
	switch {
	case correct:
		out = m.endRound(g, userID, false, now)
	case len(g.Guesses) >= g.MaxAttempts:
		out = m.endRound(g, "", false, now)
	}
	return g, out, nil
}

// endRound scores the current round and either completes the match or parks
// the game in the finished phase until the next-round vote.
func (m *Machine) endRound(g *Game, winnerID string, forfeit bool, now time.Time) Outcome {
	result := RoundResult{
		Round:      g.CurrentRound,
		WinnerID:   winnerID,
		Draw:       winnerID == "",
		Forfeit:    forfeit,
		Solution:   g.Solution,
		GuessCount: len(g.Guesses),
		EndedAt:    now,
	}
	if winnerID != "" {
		g.Scores[winnerID]++
	} else {
		g.Draws++
	}
	g.RoundHistory = append(g.RoundHistory, result)
	g.RoundPhase = RoundFinished
	g.TurnDeadline = time.Time{}
	g.EndVotes = []string{}
	g.NextRoundVotes = []string{}
	g.RoundBonus = nil

	out := Outcome{RoundEnded: true, Round: result}
	if leader, over := matchOver(g); over {
		g.IsMatchOver = true
		g.MatchWinnerID = leader
		endedBy := EndedByDraws
		msg := "match ended in a draw"
		if leader != "" {
			endedBy = EndedByScore
			msg = fmt.Sprintf("%s won the match", aliasOf(g, leader))
		}
		m.complete(g, leader, endedBy, msg, now)
		out.MatchOver = true
		out.MatchWinnerID = leader
		out.Completed = true
		return out
	}
	if !forfeit && winnerID != "" {
		m.grantBonus(g, winnerID)
	}
	return out
}

// grantBonus reveals a letter of the next solution to the pvp round loser when
// they trail after the round.
func (m *Machine) grantBonus(g *Game, roundWinner string) {
	if !m.rules.RoundBonusEnabled || g.GameType != GameTypeMultiplayer || g.MultiplayerMode != ModePvP {
		return
	}
	next, ok := g.SolutionFor(g.CurrentRound + 1)
	if !ok || next == "" {
		return
	}
	for _, p := range g.Players {
		if p == roundWinner || g.Scores[p] >= g.Scores[roundWinner] {
			continue
		}
		idx := m.letterAt(len(next))
		g.RoundBonus = &RoundBonus{
			BeneficiaryID:       p,
			Round:               g.CurrentRound + 1,
			RevealedLetter:      next[idx : idx+1],
			RevealedLetterIndex: idx,
		}
		return
	}
}

func (m *Machine) complete(g *Game, winnerID, endedBy, msg string, now time.Time) {
	g.Status = StatusCompleted
	g.WinnerID = winnerID
	if winnerID != "" && g.MatchWinnerID == "" {
		g.MatchWinnerID = winnerID
	}
	g.EndedBy = endedBy
	g.CompletionMessage = msg
	g.CompletedAt = now
	g.TurnDeadline = time.Time{}
	g.EndVotes = []string{}
	g.NextRoundVotes = []string{}
	g.RoundBonus = nil
	if g.RoundPhase == RoundPlaying {
		g.RoundPhase = RoundFinished
	}
}

// matchOver returns the player at maxWins (if any) and whether the match is decided.
func matchOver(g *Game) (string, bool) {
	for _, p := range g.Players {
		if g.Scores[p] >= g.MaxWins {
			return p, true
		}
	}
	return "", g.Draws >= g.MaxDraws
}

// leader returns the unique top scorer, or "" on a tie.
func leader(g *Game) string {
	best, bestScore, tied := "", -1, false
	for _, p := range g.Players {
		s := g.Scores[p]
		switch {
		case s > bestScore:
			best, bestScore, tied = p, s, false
		case s == bestScore:
			tied = true
		}
	}
	if tied || bestScore <= 0 {
		return ""
	}
	return best
}

func nextInOrder(order []string, current string) string {
	for i, p := range order {
		if p == current {
			return order[(i+1)%len(order)]
		}
	}
	if len(order) == 0 {
		return ""
	}
	return order[0]
}

func aliasOf(g *Game, userID string) string {
	if a := g.PlayerAliases[userID]; a != "" {
		return a
	}
	return userID
}

func isLetters(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 'a' || s[i] > 'z' {
			return false
		}
	}
	return true
}
