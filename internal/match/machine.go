package match

import (
	"crypto/rand"
	"math/big"
	"time"
)

// SolutionSource supplies pre-generated round solutions.
type SolutionSource interface {
	Pick(length, n int) ([]string, error)
}

// Rules carries the timing and catch-up policy applied by transitions.
type Rules struct {
	LobbyTTL          time.Duration
	InactivityTimeout time.Duration
	MatchHardStop     time.Duration
	DefaultTurnTime   time.Duration
	DefaultMatchTime  time.Duration
	RoundBonusEnabled bool
}

func DefaultRules() Rules {
	return Rules{
		LobbyTTL:          30 * time.Minute,
		InactivityTimeout: 10 * time.Minute,
		MatchHardStop:     2 * time.Hour,
		DefaultTurnTime:   60 * time.Second,
		DefaultMatchTime:  20 * time.Minute,
		RoundBonusEnabled: true,
	}
}

// Machine applies transitions to Game documents. It never mutates its input:
// every method works on a clone and returns it for the caller to commit.
type Machine struct {
	rules     Rules
	solutions SolutionSource
	newID     func() string
	letterAt  func(n int) int
}

func NewMachine(rules Rules, solutions SolutionSource, newID func() string) *Machine {
	return &Machine{
		rules:     rules,
		solutions: solutions,
		newID:     newID,
		letterAt:  randomIndex,
	}
}

func (m *Machine) Rules() Rules {
	return m.rules
}

func (m *Machine) touch(g *Game, now time.Time) {
	g.LastActivityAt = now
	if m.rules.InactivityTimeout > 0 {
		g.InactivityClosesAt = now.Add(m.rules.InactivityTimeout)
	}
}

func randomIndex(n int) int {
	if n <= 1 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}
