package match

import (
	"fmt"
	"strings"
	"time"

	"wordduel/internal/apperr"
)

type CreateRequest struct {
	CreatorID      string
	CreatorAlias   string
	CreatorIsGuest bool
	GameType       GameType
	Mode           Mode
	Visibility     Visibility
	PasscodeHash   string
	WordLength     int
	MaxAttempts    int
	RoundsSetting  int
	MaxWins        int
	MaxDraws       int
	TurnTime       time.Duration
	MatchTime      time.Duration
	Ranked         bool
}

// RoundsFor is the number of rounds a match can reach before maxWins or
// maxDraws necessarily ends it.
func RoundsFor(capacity, maxWins, maxDraws int) int {
	return capacity*(maxWins-1) + maxDraws
}

func (m *Machine) Create(req CreateRequest, now time.Time) (*Game, error) {
	if strings.TrimSpace(req.CreatorID) == "" {
		return nil, apperr.New(apperr.ErrInvalidRequest, "creator is required")
	}
	if req.GameType == "" {
		req.GameType = GameTypeMultiplayer
	}
	switch req.GameType {
	case GameTypeSolo:
		req.Mode = ""
	case GameTypeMultiplayer:
		if req.Mode == "" {
			req.Mode = ModePvP
		}
		if req.Mode != ModePvP && req.Mode != ModeCoop {
			return nil, apperr.New(apperr.ErrInvalidRequest, "unknown multiplayer mode %q", req.Mode)
		}
	default:
		return nil, apperr.New(apperr.ErrInvalidRequest, "unknown game type %q", req.GameType)
	}
	if req.Visibility == "" {
		req.Visibility = VisibilityPublic
	}
	if req.Visibility != VisibilityPublic && req.Visibility != VisibilityPrivate {
		return nil, apperr.New(apperr.ErrInvalidRequest, "unknown visibility %q", req.Visibility)
	}
	if req.PasscodeHash != "" && req.Visibility != VisibilityPrivate {
		return nil, apperr.New(apperr.ErrInvalidRequest, "passcode requires a private lobby")
	}
	if req.Ranked && req.CreatorIsGuest {
		return nil, apperr.New(apperr.ErrGuestNotAllowed, "guests cannot create ranked games")
	}
	if req.WordLength < MinWordLength || req.WordLength > MaxWordLength {
		return nil, apperr.New(apperr.ErrInvalidRequest, "word length must be between %d and %d", MinWordLength, MaxWordLength)
	}
	if req.MaxAttempts == 0 {
		req.MaxAttempts = DefaultMaxAttempts
	}
	if req.MaxAttempts < 1 {
		return nil, apperr.New(apperr.ErrInvalidRequest, "max attempts must be positive")
	}
	if req.RoundsSetting == 0 {
		req.RoundsSetting = 3
	}
	if req.RoundsSetting != 1 && req.RoundsSetting != 3 && req.RoundsSetting != 5 {
		return nil, apperr.New(apperr.ErrInvalidRequest, "rounds must be 1, 3 or 5")
	}
	// roundsSetting is the advertised length; maxWins and maxDraws decide
	// when the match actually ends, so play may run past it.
	if req.MaxWins == 0 {
		req.MaxWins = DefaultMaxWins
	}
	if req.MaxWins < 1 || req.MaxWins > MaxMatchWins {
		return nil, apperr.New(apperr.ErrInvalidRequest, "max wins must be between 1 and %d", MaxMatchWins)
	}
	if req.MaxDraws == 0 {
		req.MaxDraws = DefaultMaxDraws
	}
	if req.MaxDraws < 1 || req.MaxDraws > MaxMatchDraws {
		return nil, apperr.New(apperr.ErrInvalidRequest, "max draws must be between 1 and %d", MaxMatchDraws)
	}
	if req.TurnTime < 0 || req.MatchTime < 0 {
		return nil, apperr.New(apperr.ErrInvalidRequest, "durations must not be negative")
	}
	if req.TurnTime > MaxTurnTime || req.MatchTime > MaxMatchTime {
		return nil, apperr.New(apperr.ErrInvalidRequest, "turn time is capped at %s and match time at %s", MaxTurnTime, MaxMatchTime)
	}
	if req.TurnTime == 0 {
		req.TurnTime = m.rules.DefaultTurnTime
	}
	if req.MatchTime == 0 {
		req.MatchTime = m.rules.DefaultMatchTime
	}

	capacity := CapacityFor(req.GameType, req.Mode)
	solutions, err := m.solutions.Pick(req.WordLength, RoundsFor(capacity, req.MaxWins, req.MaxDraws))
	if err != nil {
		return nil, fmt.Errorf("pick solutions: %w", err)
	}

	alias := strings.TrimSpace(req.CreatorAlias)
	if alias == "" {
		alias = req.CreatorID
	}
	g := &Game{
		ID:              m.newID(),
		CreatorID:       req.CreatorID,
		GameType:        req.GameType,
		MultiplayerMode: req.Mode,
		Visibility:      req.Visibility,
		HasPasscode:     req.PasscodeHash != "",
		PasscodeHash:    req.PasscodeHash,
		Ranked:          req.Ranked,
		Players:         []string{req.CreatorID},
		ActivePlayers:   []string{req.CreatorID},
		PlayerAliases:   map[string]string{req.CreatorID: alias},
		TurnOrder:       []string{},
		WordLength:      req.WordLength,
		MaxAttempts:     req.MaxAttempts,
		Guesses:         []Guess{},
		RoundsSetting:   req.RoundsSetting,
		Solutions:       solutions,
		MatchState: MatchState{
			Scores:   map[string]int{},
			MaxWins:  req.MaxWins,
			MaxDraws: req.MaxDraws,
		},
		RoundHistory:   []RoundResult{},
		Status:         StatusWaiting,
		EndVotes:       []string{},
		NextRoundVotes: []string{},
		RematchVotes:   []string{},
		CreatedAt:      now,
		TurnTime:       req.TurnTime,
		MatchTime:      req.MatchTime,
	}
	if m.rules.LobbyTTL > 0 {
		g.LobbyClosesAt = now.Add(m.rules.LobbyTTL)
	}
	m.touch(g, now)
	return g, nil
}
