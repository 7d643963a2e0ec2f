package match

import "fmt"

// CheckInvariants validates the structural rules every committed Game obeys.
func CheckInvariants(g *Game) error {
	seen := make(map[string]struct{}, len(g.Players))
	for _, p := range g.Players {
		if _, dup := seen[p]; dup {
			return fmt.Errorf("duplicate player %s", p)
		}
		seen[p] = struct{}{}
	}
	for _, p := range g.ActivePlayers {
		if _, ok := seen[p]; !ok {
			return fmt.Errorf("active player %s is not a player", p)
		}
	}
	if len(g.Players) > g.Capacity() {
		return fmt.Errorf("%d players exceed capacity %d", len(g.Players), g.Capacity())
	}
	if g.Status == StatusInProgress && !contains(g.TurnOrder, g.CurrentTurnPlayerID) {
		return fmt.Errorf("current turn %q not in turn order", g.CurrentTurnPlayerID)
	}
	total := g.Draws
	for p, s := range g.Scores {
		if _, ok := seen[p]; !ok {
			return fmt.Errorf("score for non-player %s", p)
		}
		total += s
	}
	if total > g.CurrentRound {
		return fmt.Errorf("scores and draws %d exceed round %d", total, g.CurrentRound)
	}
	_, decided := matchOver(g)
	if decided != g.IsMatchOver {
		return fmt.Errorf("isMatchOver=%v but decided=%v", g.IsMatchOver, decided)
	}
	if g.IsMatchOver && g.Status != StatusCompleted {
		return fmt.Errorf("match over while status %s", g.Status)
	}
	for _, votes := range [][]string{g.EndVotes, g.NextRoundVotes, g.RematchVotes} {
		for _, v := range votes {
			if _, ok := seen[v]; !ok {
				return fmt.Errorf("vote from non-player %s", v)
			}
		}
	}
	if g.CurrentRound > 0 {
		if sol, ok := g.SolutionFor(g.CurrentRound); !ok || sol != g.Solution {
			return fmt.Errorf("solution does not match round %d", g.CurrentRound)
		}
	}
	return nil
}
