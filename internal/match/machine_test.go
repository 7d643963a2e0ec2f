package match

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"wordduel/internal/apperr"
)

type letterSource struct{}

// Pick returns "aaaaa", "bbbbb", ... so tests can guess every round.
func (letterSource) Pick(length, n int) ([]string, error) {
	out := make([]string, n)
	for i := range out {
		out[i] = strings.Repeat(string(rune('a'+i%26)), length)
	}
	return out, nil
}

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestMachine() *Machine {
	n := 0
	m := NewMachine(DefaultRules(), letterSource{}, func() string {
		n++
		return fmt.Sprintf("game_%d", n)
	})
	m.letterAt = func(int) int { return 0 }
	return m
}

func mustCheck(t *testing.T, g *Game) {
	t.Helper()
	if err := CheckInvariants(g); err != nil {
		t.Fatalf("invariant violated: %v", err)
	}
}

func startedPvP(t *testing.T, m *Machine, rounds int) *Game {
	t.Helper()
	g, err := m.Create(CreateRequest{CreatorID: "A", GameType: GameTypeMultiplayer, Mode: ModePvP, WordLength: 5, RoundsSetting: rounds}, t0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	g, _, err = m.Join(g, JoinRequest{UserID: "B"}, t0)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	g, err = m.Start(g, "A", t0)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	mustCheck(t, g)
	return g
}

func guess(t *testing.T, m *Machine, g *Game, user, word string) (*Game, Outcome) {
	t.Helper()
	next, out, err := m.SubmitGuess(g, user, word, t0.Add(time.Second))
	if err != nil {
		t.Fatalf("guess %s by %s: %v", word, user, err)
	}
	mustCheck(t, next)
	return next, out
}

func vote(t *testing.T, m *Machine, g *Game, user string, kind VoteKind) (*Game, VoteResult) {
	t.Helper()
	next, res, err := m.Vote(g, user, kind, t0.Add(2*time.Second))
	if err != nil {
		t.Fatalf("vote %s by %s: %v", kind, user, err)
	}
	mustCheck(t, next)
	return next, res
}

func TestCreateDefaultMaxWinsForEveryRoundsSetting(t *testing.T) {
	m := newTestMachine()
	for _, rounds := range []int{1, 3, 5} {
		g, err := m.Create(CreateRequest{CreatorID: "A", WordLength: 5, RoundsSetting: rounds}, t0)
		if err != nil {
			t.Fatalf("rounds=%d create: %v", rounds, err)
		}
		if g.MaxWins != DefaultMaxWins || g.RoundsSetting != rounds {
			t.Fatalf("rounds=%d: maxWins=%d, want %d", rounds, g.MaxWins, DefaultMaxWins)
		}
		if want := RoundsFor(2, DefaultMaxWins, DefaultMaxDraws); len(g.Solutions) != want {
			t.Fatalf("rounds=%d: expected %d solutions, got %d", rounds, want, len(g.Solutions))
		}
	}
	g, err := m.Create(CreateRequest{CreatorID: "A", WordLength: 5, RoundsSetting: 1, MaxWins: 2}, t0)
	if err != nil || g.MaxWins != 2 {
		t.Fatalf("one round lobby must accept maxWins=2: %v", err)
	}
}

func TestOneRoundSettingPlaysOnUntilMaxWins(t *testing.T) {
	m := newTestMachine()
	g, _ := m.Create(CreateRequest{CreatorID: "A", WordLength: 5, RoundsSetting: 1}, t0)
	g, _, _ = m.Join(g, JoinRequest{UserID: "B"}, t0)
	g, _ = m.Start(g, "A", t0)
	g, out := guess(t, m, g, "A", "aaaaa")
	if !out.RoundEnded || out.MatchOver || g.Status == StatusCompleted {
		t.Fatalf("one win of two must not end the match: %+v", out)
	}
}

func TestCreateDefaults(t *testing.T) {
	m := newTestMachine()
	g, err := m.Create(CreateRequest{CreatorID: "A", WordLength: 5, RoundsSetting: 3}, t0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if g.MaxWins != 2 || g.MaxDraws != 3 || g.MaxAttempts != 6 {
		t.Fatalf("unexpected defaults: wins=%d draws=%d attempts=%d", g.MaxWins, g.MaxDraws, g.MaxAttempts)
	}
	if g.Status != StatusWaiting || g.MultiplayerMode != ModePvP {
		t.Fatalf("unexpected status/mode: %s %s", g.Status, g.MultiplayerMode)
	}
	if want := RoundsFor(2, 2, 3); len(g.Solutions) != want {
		t.Fatalf("expected %d solutions, got %d", want, len(g.Solutions))
	}
	if len(g.Players) != 1 || g.Players[0] != "A" || !g.IsActive("A") {
		t.Fatalf("creator should be first player: %+v", g.Players)
	}
	if !g.LobbyClosesAt.Equal(t0.Add(30*time.Minute)) || !g.InactivityClosesAt.Equal(t0.Add(10*time.Minute)) {
		t.Fatalf("unexpected deadlines: %v %v", g.LobbyClosesAt, g.InactivityClosesAt)
	}
}

func TestCreateRejectsBadInput(t *testing.T) {
	m := newTestMachine()
	cases := []struct {
		name string
		req  CreateRequest
		want error
	}{
		{"word length", CreateRequest{CreatorID: "A", WordLength: 3}, apperr.ErrInvalidRequest},
		{"rounds", CreateRequest{CreatorID: "A", WordLength: 5, RoundsSetting: 2}, apperr.ErrInvalidRequest},
		{"public passcode", CreateRequest{CreatorID: "A", WordLength: 5, PasscodeHash: "x"}, apperr.ErrInvalidRequest},
		{"guest ranked", CreateRequest{CreatorID: "A", WordLength: 5, Ranked: true, CreatorIsGuest: true}, apperr.ErrGuestNotAllowed},
		{"mode", CreateRequest{CreatorID: "A", WordLength: 5, Mode: "battle"}, apperr.ErrInvalidRequest},
		{"max wins", CreateRequest{CreatorID: "A", WordLength: 5, MaxWins: MaxMatchWins + 1}, apperr.ErrInvalidRequest},
		{"max draws", CreateRequest{CreatorID: "A", WordLength: 5, MaxDraws: MaxMatchDraws + 1}, apperr.ErrInvalidRequest},
		{"turn time", CreateRequest{CreatorID: "A", WordLength: 5, TurnTime: MaxTurnTime + time.Millisecond}, apperr.ErrInvalidRequest},
		{"match time", CreateRequest{CreatorID: "A", WordLength: 5, MatchTime: MaxMatchTime + time.Millisecond}, apperr.ErrInvalidRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := m.Create(tc.req, t0); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestJoinChecks(t *testing.T) {
	m := newTestMachine()
	g, err := m.Create(CreateRequest{CreatorID: "A", Visibility: VisibilityPrivate, PasscodeHash: "hash", WordLength: 5, Ranked: true}, t0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, err := m.Join(g, JoinRequest{UserID: "B"}, t0); !errors.Is(err, apperr.ErrAccessDenied) {
		t.Fatalf("expected access denied without passcode, got %v", err)
	}
	if _, _, err := m.Join(g, JoinRequest{UserID: "G", IsGuest: true, Authorized: true}, t0); !errors.Is(err, apperr.ErrGuestNotAllowed) {
		t.Fatalf("expected guest not allowed, got %v", err)
	}
	g, changed, err := m.Join(g, JoinRequest{UserID: "B", Authorized: true}, t0)
	if err != nil || !changed {
		t.Fatalf("join with passcode: changed=%v err=%v", changed, err)
	}
	if !g.IsPlayer("B") || !g.IsActive("B") {
		t.Fatalf("B should be player and active: %+v", g)
	}
	if _, _, err := m.Join(g, JoinRequest{UserID: "C", Authorized: true}, t0); !errors.Is(err, apperr.ErrLobbyFull) {
		t.Fatalf("expected lobby full, got %v", err)
	}
	again, changed, err := m.Join(g, JoinRequest{UserID: "B"}, t0)
	if err != nil || changed || len(again.Players) != 2 {
		t.Fatalf("rejoin should be a no-op: changed=%v err=%v", changed, err)
	}
	started, err := m.Start(g, "A", t0)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, _, err := m.Join(started, JoinRequest{UserID: "C", Authorized: true}, t0); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict after start, got %v", err)
	}
	ended, _ := vote(t, m, started, "A", VoteEnd)
	ended, _ = vote(t, m, ended, "B", VoteEnd)
	if _, _, err := m.Join(ended, JoinRequest{UserID: "B"}, t0); !errors.Is(err, apperr.ErrAlreadyCompleted) {
		t.Fatalf("expected already completed, got %v", err)
	}
}

func TestStartRules(t *testing.T) {
	m := newTestMachine()
	g, _ := m.Create(CreateRequest{CreatorID: "A", WordLength: 5}, t0)
	if _, err := m.Start(g, "A", t0); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict below minimum players, got %v", err)
	}
	g, _, _ = m.Join(g, JoinRequest{UserID: "B"}, t0)
	if _, err := m.Start(g, "B", t0); !errors.Is(err, apperr.ErrAccessDenied) {
		t.Fatalf("expected only creator to start, got %v", err)
	}
	s, err := m.Start(g, "A", t0)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if s.CurrentTurnPlayerID != "A" || s.CurrentRound != 1 || s.Solution != s.Solutions[0] {
		t.Fatalf("unexpected start state: %+v", s)
	}
	if !s.TurnDeadline.Equal(t0.Add(60*time.Second)) || !s.MatchDeadline.Equal(t0.Add(20*time.Minute)) {
		t.Fatalf("unexpected deadlines: %v %v", s.TurnDeadline, s.MatchDeadline)
	}
	if _, ok := s.Scores["B"]; !ok {
		t.Fatal("scores should be keyed by players")
	}
	if g.Status != StatusWaiting {
		t.Fatal("start must not mutate its input")
	}
}

func TestSoloStartsWithOnePlayer(t *testing.T) {
	m := newTestMachine()
	g, err := m.Create(CreateRequest{CreatorID: "A", GameType: GameTypeSolo, WordLength: 4, RoundsSetting: 1, MaxWins: 1}, t0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, err := m.Join(g, JoinRequest{UserID: "B"}, t0); !errors.Is(err, apperr.ErrLobbyFull) {
		t.Fatalf("solo lobby should be full, got %v", err)
	}
	g, err = m.Start(g, "A", t0)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	g, out := guess(t, m, g, "A", "aaaa")
	if !out.MatchOver || g.MatchWinnerID != "A" || g.Status != StatusCompleted {
		t.Fatalf("solo win should end a 1-round match: %+v", out)
	}
}

func TestABAScenario(t *testing.T) {
	m := newTestMachine()
	g := startedPvP(t, m, 3)

	g, out := guess(t, m, g, "A", "aaaaa")
	if !out.RoundEnded || out.Round.WinnerID != "A" || out.MatchOver {
		t.Fatalf("round 1: %+v", out)
	}
	if g.RoundPhase != RoundFinished || !g.TurnDeadline.IsZero() {
		t.Fatalf("round 1 should park in finished: %s %v", g.RoundPhase, g.TurnDeadline)
	}
	g, _ = vote(t, m, g, "A", VoteNextRound)
	g, res := vote(t, m, g, "B", VoteNextRound)
	if !res.QuorumReached || g.CurrentRound != 2 || g.CurrentTurnPlayerID != "B" {
		t.Fatalf("round 2 should start with B: %+v round=%d turn=%s", res, g.CurrentRound, g.CurrentTurnPlayerID)
	}

	g, _ = guess(t, m, g, "B", "zzzzz")
	g, _ = guess(t, m, g, "A", "zzzzz")
	g, out = guess(t, m, g, "B", "bbbbb")
	if out.Round.WinnerID != "B" || g.Scores["A"] != 1 || g.Scores["B"] != 1 {
		t.Fatalf("round 2: %+v scores=%v", out, g.Scores)
	}
	g, _ = vote(t, m, g, "B", VoteNextRound)
	g, _ = vote(t, m, g, "A", VoteNextRound)
	if g.CurrentTurnPlayerID != "A" || g.CurrentRound != 3 {
		t.Fatalf("round 3 should start with A: %s", g.CurrentTurnPlayerID)
	}

	g, out = guess(t, m, g, "A", "ccccc")
	if !out.MatchOver || !g.IsMatchOver || g.MatchWinnerID != "A" || g.Status != StatusCompleted {
		t.Fatalf("A should win the match: %+v", g.MatchState)
	}
	if g.Scores["A"] != 2 || g.Scores["B"] != 1 || len(g.RoundHistory) != 3 {
		t.Fatalf("unexpected final scores %v history=%d", g.Scores, len(g.RoundHistory))
	}
	if g.EndedBy != EndedByScore || g.CompletedAt.IsZero() {
		t.Fatalf("unexpected completion: %s %v", g.EndedBy, g.CompletedAt)
	}
}

func TestTurnAlternationWrapsAround(t *testing.T) {
	m := newTestMachine()
	g, _ := m.Create(CreateRequest{CreatorID: "A", Mode: ModeCoop, WordLength: 5, MaxAttempts: 7}, t0)
	for _, u := range []string{"B", "C"} {
		g, _, _ = m.Join(g, JoinRequest{UserID: u}, t0)
	}
	g, err := m.Start(g, "A", t0)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	want := []string{"A", "B", "C", "A", "B", "C"}
	for i, u := range want {
		if g.CurrentTurnPlayerID != u {
			t.Fatalf("step %d: expected %s, got %s", i, u, g.CurrentTurnPlayerID)
		}
		other := want[(i+1)%len(want)]
		if _, _, err := m.SubmitGuess(g, other, "zzzzz", t0); !errors.Is(err, apperr.ErrConflict) {
			t.Fatalf("step %d: out-of-turn guess by %s: %v", i, other, err)
		}
		g, _ = guess(t, m, g, u, "zzzzz")
	}
	if len(g.Guesses) != 6 {
		t.Fatalf("expected 6 guesses, got %d", len(g.Guesses))
	}
}

func TestCoopSolverIsCredited(t *testing.T) {
	m := newTestMachine()
	g, _ := m.Create(CreateRequest{CreatorID: "A", Mode: ModeCoop, WordLength: 5, RoundsSetting: 1, MaxWins: 1}, t0)
	g, _, _ = m.Join(g, JoinRequest{UserID: "B"}, t0)
	g, _ = m.Start(g, "A", t0)
	g, _ = guess(t, m, g, "A", "zzzzz")
	g, out := guess(t, m, g, "B", "aaaaa")
	if out.Round.WinnerID != "B" || g.MatchWinnerID != "B" {
		t.Fatalf("solver should be credited: %+v", out)
	}
}

func TestExhaustionIsDrawAndMaxDrawsEndsMatch(t *testing.T) {
	m := newTestMachine()
	g, _ := m.Create(CreateRequest{CreatorID: "A", WordLength: 5, MaxAttempts: 2, MaxDraws: 2}, t0)
	g, _, _ = m.Join(g, JoinRequest{UserID: "B"}, t0)
	g, _ = m.Start(g, "A", t0)

	g, _ = guess(t, m, g, "A", "zzzzz")
	g, out := guess(t, m, g, "B", "zzzzz")
	if !out.Round.Draw || g.Draws != 1 || g.IsMatchOver {
		t.Fatalf("round 1 should draw: %+v", out)
	}
	g, _ = vote(t, m, g, "A", VoteNextRound)
	g, _ = vote(t, m, g, "B", VoteNextRound)
	g, _ = guess(t, m, g, "B", "zzzzz")
	g, out = guess(t, m, g, "A", "zzzzz")
	if !out.MatchOver || g.MatchWinnerID != "" || g.EndedBy != EndedByDraws {
		t.Fatalf("second draw should end the match: %+v", out)
	}
	if _, _, err := m.SubmitGuess(g, "B", "zzzzz", t0); !errors.Is(err, apperr.ErrAlreadyCompleted) {
		t.Fatalf("expected already completed, got %v", err)
	}
}

func TestGuessValidation(t *testing.T) {
	m := newTestMachine()
	g := startedPvP(t, m, 3)
	for _, w := range []string{"abc", "abcdef", "ab1de", ""} {
		if _, _, err := m.SubmitGuess(g, "A", w, t0); !errors.Is(err, apperr.ErrInvalidRequest) {
			t.Fatalf("guess %q: expected invalid request, got %v", w, err)
		}
	}
	if _, _, err := m.SubmitGuess(g, "B", "zzzzz", t0); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict for out-of-turn guess, got %v", err)
	}
	if _, _, err := m.SubmitGuess(g, "X", "zzzzz", t0); !errors.Is(err, apperr.ErrAccessDenied) {
		t.Fatalf("expected access denied for non-player, got %v", err)
	}
	next, _ := guess(t, m, g, "A", " ZZZZZ ")
	if next.Guesses[0].Word != "zzzzz" {
		t.Fatalf("guess should be normalized, got %q", next.Guesses[0].Word)
	}
}

func TestVotesRequireUnanimity(t *testing.T) {
	m := newTestMachine()
	g := startedPvP(t, m, 3)
	if _, _, err := m.Vote(g, "X", VoteEnd, t0); !errors.Is(err, apperr.ErrAccessDenied) {
		t.Fatalf("expected access denied, got %v", err)
	}
	if _, _, err := m.Vote(g, "A", VoteNextRound, t0); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("next round during play should conflict, got %v", err)
	}
	g, res := vote(t, m, g, "A", VoteEnd)
	if res.QuorumReached || g.Status != StatusInProgress {
		t.Fatal("partial vote must not fire")
	}
	g, res = vote(t, m, g, "A", VoteEnd)
	if res.Changed || len(g.EndVotes) != 1 {
		t.Fatalf("repeat vote should be idempotent: %+v", res)
	}
	g, res = vote(t, m, g, "B", VoteEnd)
	if !res.QuorumReached || g.Status != StatusCompleted || g.EndedBy != EndedByVote || len(g.EndVotes) != 0 {
		t.Fatalf("unanimous end should complete: %+v %s", res, g.Status)
	}
}

func TestRematchSpawnsNewGame(t *testing.T) {
	m := newTestMachine()
	g := startedPvP(t, m, 1)
	if _, _, err := m.Vote(g, "A", VoteRematch, t0); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("rematch before completion should conflict, got %v", err)
	}
	g, _ = guess(t, m, g, "A", "aaaaa")
	g, _ = vote(t, m, g, "B", VoteRematch)
	g, res := vote(t, m, g, "A", VoteRematch)
	if !res.QuorumReached || res.Spawned == nil {
		t.Fatalf("expected rematch spawn: %+v", res)
	}
	if g.RematchGameID != res.Spawned.ID || res.Spawned.ID == g.ID {
		t.Fatalf("rematch ids: old=%s rematch=%s spawned=%s", g.ID, g.RematchGameID, res.Spawned.ID)
	}
	if g.Status != StatusCompleted || res.Spawned.Status != StatusWaiting || res.Spawned.RematchOfID != g.ID {
		t.Fatalf("unexpected statuses: %s %s", g.Status, res.Spawned.Status)
	}
	if len(res.Spawned.Players) != 2 || res.Spawned.CurrentRound != 0 {
		t.Fatalf("spawned game should carry players only: %+v", res.Spawned.Players)
	}
	if _, _, err := m.Vote(g, "A", VoteRematch, t0); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("second rematch should conflict, got %v", err)
	}
}

func TestRoundBonusGoesToTrailingLoser(t *testing.T) {
	m := newTestMachine()
	g := startedPvP(t, m, 3)
	g, _ = guess(t, m, g, "A", "aaaaa")
	if g.RoundBonus == nil || g.RoundBonus.BeneficiaryID != "B" || g.RoundBonus.Round != 2 {
		t.Fatalf("expected bonus for B: %+v", g.RoundBonus)
	}
	if g.RoundBonus.RevealedLetter != "b" || g.RoundBonus.RevealedLetterIndex != 0 {
		t.Fatalf("bonus should reveal next solution letter: %+v", g.RoundBonus)
	}
	if v := g.ViewFor("A"); v.RoundBonus != nil {
		t.Fatal("bonus must be hidden from non-beneficiary")
	}
	if v := g.ViewFor("B"); v.RoundBonus == nil {
		t.Fatal("beneficiary should see the bonus")
	}
	g, _ = vote(t, m, g, "A", VoteNextRound)
	g, _ = vote(t, m, g, "B", VoteNextRound)
	if g.RoundBonus == nil {
		t.Fatal("bonus should survive into its round")
	}
	g, _ = guess(t, m, g, "B", "bbbbb")
	if g.RoundBonus != nil {
		t.Fatalf("tied scores should not grant a bonus: %+v", g.RoundBonus)
	}
}

func TestViewHidesSecrets(t *testing.T) {
	m := newTestMachine()
	g, _ := m.Create(CreateRequest{CreatorID: "A", Visibility: VisibilityPrivate, PasscodeHash: "secret-hash", WordLength: 5}, t0)
	g, _, _ = m.Join(g, JoinRequest{UserID: "B", Authorized: true}, t0)
	g, _ = m.Start(g, "A", t0)
	v := g.ViewFor("A")
	if !v.HasPasscode || v.TurnDeadline == nil || v.Capacity != 2 {
		t.Fatalf("unexpected view: %+v", v)
	}
	if v.MatchTimeMS != (20 * time.Minute).Milliseconds() {
		t.Fatalf("unexpected match time: %d", v.MatchTimeMS)
	}
}

func TestCloneIsDeep(t *testing.T) {
	m := newTestMachine()
	g := startedPvP(t, m, 3)
	c := g.Clone()
	c.Players[0] = "Z"
	c.Scores["A"] = 9
	c.PlayerAliases["A"] = "z"
	if g.Players[0] != "A" || g.Scores["A"] != 0 || g.PlayerAliases["A"] != "A" {
		t.Fatal("clone shares state with original")
	}
}

func TestSetActive(t *testing.T) {
	m := newTestMachine()
	g := startedPvP(t, m, 3)
	next, changed := SetActive(g, []string{"B", "stranger"})
	if !changed || len(next.ActivePlayers) != 1 || next.ActivePlayers[0] != "B" {
		t.Fatalf("unexpected active players: %v", next.ActivePlayers)
	}
	if _, changed := SetActive(next, []string{"B"}); changed {
		t.Fatal("unchanged presence should report no change")
	}
}
