package match

import "time"

// View is the client projection of a Game. Solutions and the passcode hash
// never leave the server; a round bonus is shown only to its beneficiary.
type View struct {
	ID                  string            `json:"id"`
	Version             int64             `json:"version"`
	CreatorID           string            `json:"creatorId"`
	GameType            GameType          `json:"gameType"`
	MultiplayerMode     Mode              `json:"multiplayerMode,omitempty"`
	Visibility          Visibility        `json:"visibility"`
	HasPasscode         bool              `json:"hasPasscode"`
	Ranked              bool              `json:"ranked"`
	Capacity            int               `json:"capacity"`
	Players             []string          `json:"players"`
	ActivePlayers       []string          `json:"activePlayers"`
	PlayerAliases       map[string]string `json:"playerAliases"`
	TurnOrder           []string          `json:"turnOrder"`
	CurrentTurnPlayerID string            `json:"currentTurnPlayerId,omitempty"`
	WordLength          int               `json:"wordLength"`
	MaxAttempts         int               `json:"maxAttempts"`
	Guesses             []Guess           `json:"guesses"`
	RoundsSetting       int               `json:"roundsSetting"`
	CurrentRound        int               `json:"currentRound"`
	RoundPhase          RoundPhase        `json:"roundPhase,omitempty"`
	Scores              map[string]int    `json:"scores"`
	Draws               int               `json:"draws"`
	MaxWins             int               `json:"maxWins"`
	MaxDraws            int               `json:"maxDraws"`
	IsMatchOver         bool              `json:"isMatchOver"`
	MatchWinnerID       string            `json:"matchWinnerId,omitempty"`
	RoundBonus          *RoundBonus       `json:"roundBonus,omitempty"`
	RoundHistory        []RoundResult     `json:"roundHistory"`
	Status              Status            `json:"status"`
	WinnerID            string            `json:"winnerId,omitempty"`
	EndVotes            []string          `json:"endVotes"`
	NextRoundVotes      []string          `json:"nextRoundVotes"`
	RematchVotes        []string          `json:"rematchVotes"`
	CompletionMessage   string            `json:"completionMessage,omitempty"`
	EndedBy             string            `json:"endedBy,omitempty"`
	RematchGameID       string            `json:"rematchGameId,omitempty"`
	RematchOfID         string            `json:"rematchOfId,omitempty"`
	LobbyClosesAt       *time.Time        `json:"lobbyClosesAt,omitempty"`
	LastActivityAt      *time.Time        `json:"lastActivityAt,omitempty"`
	InactivityClosesAt  *time.Time        `json:"inactivityClosesAt,omitempty"`
	MatchHardStopAt     *time.Time        `json:"matchHardStopAt,omitempty"`
	MatchDeadline       *time.Time        `json:"matchDeadline,omitempty"`
	TurnDeadline        *time.Time        `json:"turnDeadline,omitempty"`
	CreatedAt           *time.Time        `json:"createdAt,omitempty"`
	CompletedAt         *time.Time        `json:"completedAt,omitempty"`
	TurnTimeMS          int64             `json:"turnTimeMs"`
	MatchTimeMS         int64             `json:"matchTimeMs"`
}

func (g *Game) ViewFor(viewerID string) View {
	c := g.Clone()
	v := View{
		ID:                  c.ID,
		Version:             c.Version,
		CreatorID:           c.CreatorID,
		GameType:            c.GameType,
		MultiplayerMode:     c.MultiplayerMode,
		Visibility:          c.Visibility,
		HasPasscode:         c.HasPasscode,
		Ranked:              c.Ranked,
		Capacity:            c.Capacity(),
		Players:             nonNil(c.Players),
		ActivePlayers:       nonNil(c.ActivePlayers),
		PlayerAliases:       c.PlayerAliases,
		TurnOrder:           nonNil(c.TurnOrder),
		CurrentTurnPlayerID: c.CurrentTurnPlayerID,
		WordLength:          c.WordLength,
		MaxAttempts:         c.MaxAttempts,
		Guesses:             c.Guesses,
		RoundsSetting:       c.RoundsSetting,
		CurrentRound:        c.CurrentRound,
		RoundPhase:          c.RoundPhase,
		Scores:              c.Scores,
		Draws:               c.Draws,
		MaxWins:             c.MaxWins,
		MaxDraws:            c.MaxDraws,
		IsMatchOver:         c.IsMatchOver,
		MatchWinnerID:       c.MatchWinnerID,
		RoundHistory:        c.RoundHistory,
		Status:              c.Status,
		WinnerID:            c.WinnerID,
		EndVotes:            nonNil(c.EndVotes),
		NextRoundVotes:      nonNil(c.NextRoundVotes),
		RematchVotes:        nonNil(c.RematchVotes),
		CompletionMessage:   c.CompletionMessage,
		EndedBy:             c.EndedBy,
		RematchGameID:       c.RematchGameID,
		RematchOfID:         c.RematchOfID,
		LobbyClosesAt:       timePtr(c.LobbyClosesAt),
		LastActivityAt:      timePtr(c.LastActivityAt),
		InactivityClosesAt:  timePtr(c.InactivityClosesAt),
		MatchHardStopAt:     timePtr(c.MatchHardStopAt),
		MatchDeadline:       timePtr(c.MatchDeadline),
		TurnDeadline:        timePtr(c.TurnDeadline),
		CreatedAt:           timePtr(c.CreatedAt),
		CompletedAt:         timePtr(c.CompletedAt),
		TurnTimeMS:          c.TurnTime.Milliseconds(),
		MatchTimeMS:         c.MatchTime.Milliseconds(),
	}
	if v.Guesses == nil {
		v.Guesses = []Guess{}
	}
	if v.RoundHistory == nil {
		v.RoundHistory = []RoundResult{}
	}
	if c.RoundBonus != nil && c.RoundBonus.BeneficiaryID == viewerID {
		v.RoundBonus = c.RoundBonus
	}
	return v
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
