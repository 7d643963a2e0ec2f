package match

import (
	"time"
)

type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

type GameType string

const (
	GameTypeSolo        GameType = "solo"
	GameTypeMultiplayer GameType = "multiplayer"
)

type Mode string

const (
	ModePvP  Mode = "pvp"
	ModeCoop Mode = "co-op"
)

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

type RoundPhase string

const (
	RoundPlaying  RoundPhase = "playing"
	RoundFinished RoundPhase = "finished"
)

type VoteKind string

const (
	VoteEnd       VoteKind = "end"
	VoteNextRound VoteKind = "nextRound"
	VoteRematch   VoteKind = "rematch"
)

func ParseVoteKind(s string) (VoteKind, bool) {
	switch VoteKind(s) {
	case VoteEnd, VoteNextRound, VoteRematch:
		return VoteKind(s), true
	case "next_round", "next-round":
		return VoteNextRound, true
	}
	return "", false
}

// EndedBy values recorded on completed games.
const (
	EndedByScore        = "score"
	EndedByDraws        = "draws"
	EndedByVote         = "vote"
	EndedByForfeit      = "forfeit"
	EndedByLobbyExpired = "lobby_expired"
	EndedByHardStop     = "hard_stop"
	EndedByDeadline     = "match_deadline"
	EndedByInactivity   = "inactivity"
)

const (
	DefaultMaxAttempts = 6
	DefaultMaxWins     = 2
	DefaultMaxDraws    = 3
	MaxMatchWins       = 5
	MaxMatchDraws      = 10

	MaxTurnTime  = time.Hour
	MaxMatchTime = 24 * time.Hour
	MinWordLength      = 4
	MaxWordLength      = 7
)

type Guess struct {
	PlayerID string    `json:"playerId"`
	Word     string    `json:"word"`
	Round    int       `json:"round"`
	Attempt  int       `json:"attempt"`
	Correct  bool      `json:"correct"`
	At       time.Time `json:"at"`
}

// RoundBonus reveals one letter of the next round's solution to a trailing player.
type RoundBonus struct {
	BeneficiaryID       string `json:"beneficiaryId"`
	Round               int    `json:"round"`
	RevealedLetter      string `json:"revealedLetter"`
	RevealedLetterIndex int    `json:"revealedLetterIndex"`
}

type RoundResult struct {
	Round      int       `json:"round"`
	WinnerID   string    `json:"winnerId,omitempty"`
	Draw       bool      `json:"draw"`
	Forfeit    bool      `json:"forfeit"`
	Solution   string    `json:"solution"`
	GuessCount int       `json:"guessCount"`
	EndedAt    time.Time `json:"endedAt"`
}

type MatchState struct {
	CurrentRound  int            `json:"currentRound"`
	Scores        map[string]int `json:"scores"`
	Draws         int            `json:"draws"`
	MaxWins       int            `json:"maxWins"`
	MaxDraws      int            `json:"maxDraws"`
	IsMatchOver   bool           `json:"isMatchOver"`
	MatchWinnerID string         `json:"matchWinnerId,omitempty"`
	RoundBonus    *RoundBonus    `json:"roundBonus,omitempty"`
}

// Game is the persisted lobby/match document. Zero times mean "unset".
type Game struct {
	ID              string     `json:"id"`
	Version         int64      `json:"version"`
	CreatorID       string     `json:"creatorId"`
	GameType        GameType   `json:"gameType"`
	MultiplayerMode Mode       `json:"multiplayerMode,omitempty"`
	Visibility      Visibility `json:"visibility"`
	HasPasscode     bool       `json:"hasPasscode"`
	PasscodeHash    string     `json:"passcodeHash,omitempty"`
	Ranked          bool       `json:"ranked"`

	Players             []string          `json:"players"`
	ActivePlayers       []string          `json:"activePlayers"`
	PlayerAliases       map[string]string `json:"playerAliases"`
	TurnOrder           []string          `json:"turnOrder"`
	CurrentTurnPlayerID string            `json:"currentTurnPlayerId,omitempty"`

	WordLength    int      `json:"wordLength"`
	Solution      string   `json:"solution,omitempty"`
	MaxAttempts   int      `json:"maxAttempts"`
	Guesses       []Guess  `json:"guesses"`
	RoundsSetting int      `json:"roundsSetting"`
	Solutions     []string `json:"solutions"`

	MatchState
	RoundPhase   RoundPhase    `json:"roundPhase,omitempty"`
	RoundHistory []RoundResult `json:"roundHistory"`

	Status            Status   `json:"status"`
	WinnerID          string   `json:"winnerId,omitempty"`
	EndVotes          []string `json:"endVotes"`
	NextRoundVotes    []string `json:"nextRoundVotes"`
	RematchVotes      []string `json:"rematchVotes"`
	CompletionMessage string   `json:"completionMessage,omitempty"`
	EndedBy           string   `json:"endedBy,omitempty"`
	RematchGameID     string   `json:"rematchGameId,omitempty"`
	RematchOfID       string   `json:"rematchOfId,omitempty"`

	LobbyClosesAt      time.Time     `json:"lobbyClosesAt"`
	LastActivityAt     time.Time     `json:"lastActivityAt"`
	InactivityClosesAt time.Time     `json:"inactivityClosesAt"`
	MatchHardStopAt    time.Time     `json:"matchHardStopAt"`
	MatchDeadline      time.Time     `json:"matchDeadline"`
	TurnDeadline       time.Time     `json:"turnDeadline"`
	CreatedAt          time.Time     `json:"createdAt"`
	CompletedAt        time.Time     `json:"completedAt"`
	MatchTime          time.Duration `json:"matchTime"`
	TurnTime           time.Duration `json:"turnTime"`
}

// Capacity is the maximum number of players for the game's mode.
func (g *Game) Capacity() int {
	return CapacityFor(g.GameType, g.MultiplayerMode)
}

func CapacityFor(t GameType, m Mode) int {
	if t == GameTypeSolo {
		return 1
	}
	if m == ModeCoop {
		return 4
	}
	return 2
}

func (g *Game) MinPlayers() int {
	if g.GameType == GameTypeSolo {
		return 1
	}
	return 2
}

func (g *Game) IsPlayer(userID string) bool {
	return contains(g.Players, userID)
}

func (g *Game) IsActive(userID string) bool {
	return contains(g.ActivePlayers, userID)
}

// SolutionFor returns the pre-generated solution for a 1-based round.
func (g *Game) SolutionFor(round int) (string, bool) {
	if round < 1 || round > len(g.Solutions) {
		return "", false
	}
	return g.Solutions[round-1], true
}

func (g *Game) Clone() *Game {
	if g == nil {
		return nil
	}
	c := *g
	c.Players = cloneStrings(g.Players)
	c.ActivePlayers = cloneStrings(g.ActivePlayers)
	c.TurnOrder = cloneStrings(g.TurnOrder)
	c.Solutions = cloneStrings(g.Solutions)
	c.EndVotes = cloneStrings(g.EndVotes)
	c.NextRoundVotes = cloneStrings(g.NextRoundVotes)
	c.RematchVotes = cloneStrings(g.RematchVotes)
	c.Guesses = append([]Guess(nil), g.Guesses...)
	c.RoundHistory = append([]RoundResult(nil), g.RoundHistory...)
	if g.PlayerAliases != nil {
		c.PlayerAliases = make(map[string]string, len(g.PlayerAliases))
		for k, v := range g.PlayerAliases {
			c.PlayerAliases[k] = v
		}
	}
	if g.Scores != nil {
		c.Scores = make(map[string]int, len(g.Scores))
		for k, v := range g.Scores {
			c.Scores[k] = v
		}
	}
	if g.RoundBonus != nil {
		b := *g.RoundBonus
		c.RoundBonus = &b
	}
	return &c
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func addUnique(list []string, v string) ([]string, bool) {
	if contains(list, v) {
		return list, false
	}
	return append(list, v), true
}

// sameSet reports whether votes covers every player. Vote sets only ever hold players.
func sameSet(votes, players []string) bool {
	if len(players) == 0 || len(votes) != len(players) {
		return false
	}
	for _, p := range players {
		if !contains(votes, p) {
			return false
		}
	}
	return true
}
