package match

import (
	"fmt"
	"time"
)

type Reason string

const (
	ReasonLobbyExpired  Reason = "lobby_expired"
	ReasonHardStop      Reason = "hard_stop"
	ReasonMatchDeadline Reason = "match_deadline"
	ReasonInactivity    Reason = "inactivity"
	ReasonTurnTimeout   Reason = "turn_timeout"
)

// Forced is a transition the scheduler owes a game.
type Forced struct {
	Reason   Reason
	Deadline time.Time
}

// Due reports the highest-priority elapsed deadline of g at now. A waiting
// lobby is bounded by lobbyClosesAt alone; inactivity applies once the match
// is in progress.
func Due(g *Game, now time.Time) (Forced, bool) {
	if g == nil || g.Status == StatusCompleted {
		return Forced{}, false
	}
	elapsed := func(t time.Time) bool { return !t.IsZero() && !now.Before(t) }
	if g.Status == StatusWaiting && elapsed(g.LobbyClosesAt) {
		return Forced{Reason: ReasonLobbyExpired, Deadline: g.LobbyClosesAt}, true
	}
	if g.Status == StatusInProgress {
		if elapsed(g.MatchHardStopAt) {
			return Forced{Reason: ReasonHardStop, Deadline: g.MatchHardStopAt}, true
		}
		if elapsed(g.MatchDeadline) {
			return Forced{Reason: ReasonMatchDeadline, Deadline: g.MatchDeadline}, true
		}
		if elapsed(g.InactivityClosesAt) {
			return Forced{Reason: ReasonInactivity, Deadline: g.InactivityClosesAt}, true
		}
	}
	if g.Status == StatusInProgress && g.RoundPhase == RoundPlaying && elapsed(g.TurnDeadline) {
		return Forced{Reason: ReasonTurnTimeout, Deadline: g.TurnDeadline}, true
	}
	return Forced{}, false
}

// NextDeadline returns the earliest pending deadline, zero when none.
func NextDeadline(g *Game) time.Time {
	if g == nil || g.Status == StatusCompleted {
		return time.Time{}
	}
	var out time.Time
	consider := func(t time.Time) {
		if !t.IsZero() && (out.IsZero() || t.Before(out)) {
			out = t
		}
	}
	if g.Status == StatusWaiting {
		consider(g.LobbyClosesAt)
	}
	if g.Status == StatusInProgress {
		consider(g.MatchHardStopAt)
		consider(g.MatchDeadline)
		consider(g.InactivityClosesAt)
		if g.RoundPhase == RoundPlaying {
			consider(g.TurnDeadline)
		}
	}
	return out
}

// Offline reports whether a player is confirmed gone: absent from presence and
// holding no live session.
type Offline func(gameID, userID string) bool

// ApplyDue re-evaluates Due against g and applies the forced transition. It
// returns ok=false when nothing is due, which is how concurrent triggers
// collapse: only the reader that still sees the deadline elapsed commits.
func (m *Machine) ApplyDue(in *Game, now time.Time, offline Offline) (*Game, Forced, Outcome, bool) {
	f, ok := Due(in, now)
	if !ok {
		return in, Forced{}, Outcome{}, false
	}
	g := in.Clone()
	var out Outcome
	switch f.Reason {
	case ReasonLobbyExpired:
		m.complete(g, "", EndedByLobbyExpired, "lobby closed before the match started", now)
		out.Completed = true
	case ReasonHardStop, ReasonMatchDeadline:
		winner := leader(g)
		msg := "time ran out with no leader"
		if winner != "" {
			msg = fmt.Sprintf("time ran out, %s leads", aliasOf(g, winner))
		}
		endedBy := EndedByDeadline
		if f.Reason == ReasonHardStop {
			endedBy = EndedByHardStop
		}
		m.complete(g, winner, endedBy, msg, now)
		out.Completed = true
		out.MatchWinnerID = winner
	case ReasonInactivity:
		m.complete(g, "", EndedByInactivity, "closed after inactivity", now)
		out.Completed = true
	case ReasonTurnTimeout:
		out = m.forfeitTurn(g, now, offline)
	}
	return g, f, out, true
}

// forfeitTurn settles a round whose turn clock ran out. Any pending bonus is
// dropped and none is granted for the next round.
func (m *Machine) forfeitTurn(g *Game, now time.Time, offline Offline) Outcome {
	timedOut := g.CurrentTurnPlayerID
	g.RoundBonus = nil
	if g.GameType == GameTypeMultiplayer && g.MultiplayerMode == ModePvP {
		opponent := nextInOrder(g.TurnOrder, timedOut)
		if opponent == timedOut {
			opponent = ""
		}
		out := m.endRound(g, opponent, true, now)
		if out.Completed || opponent == "" {
			return out
		}
		if offline != nil && offline(g.ID, timedOut) {
			g.MatchWinnerID = opponent
			m.complete(g, opponent, EndedByForfeit, fmt.Sprintf("%s left, %s wins by forfeit", aliasOf(g, timedOut), aliasOf(g, opponent)), now)
			out.Completed = true
			out.MatchWinnerID = opponent
		}
		return out
	}
	return m.endRound(g, "", true, now)
}
