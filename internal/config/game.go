package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type GameConfig struct {
	SessionHeartbeat           time.Duration `env:"SESSION_HEARTBEAT" envDefault:"10s"`
	SessionStale               time.Duration `env:"SESSION_STALE" envDefault:"30s"`
	SessionActiveGrace         time.Duration `env:"SESSION_ACTIVE_GRACE" envDefault:"7s"`
	SessionLiveToleranceFactor float64       `env:"SESSION_LIVE_TOLERANCE_FACTOR" envDefault:"1.1"`
	StrictSingleDevice         bool          `env:"SESSION_STRICT_SINGLE_DEVICE" envDefault:"false"`

	PresenceTTL time.Duration `env:"PRESENCE_TTL" envDefault:"30s"`

	LobbyTTL          time.Duration `env:"LOBBY_TTL" envDefault:"30m"`
	InactivityTimeout time.Duration `env:"INACTIVITY_TIMEOUT" envDefault:"10m"`
	MatchHardStop     time.Duration `env:"MATCH_HARD_STOP" envDefault:"2h"`
	DefaultTurnTime   time.Duration `env:"DEFAULT_TURN_TIME" envDefault:"60s"`
	DefaultMatchTime  time.Duration `env:"DEFAULT_MATCH_TIME" envDefault:"20m"`
	SweepInterval     time.Duration `env:"SWEEP_INTERVAL" envDefault:"500ms"`
	RoundBonusEnabled bool          `env:"ROUND_BONUS_ENABLED" envDefault:"true"`

	PasscodeBcryptCost int `env:"PASSCODE_BCRYPT_COST" envDefault:"10"`
}

func LoadGame() (GameConfig, error) {
	var cfg GameConfig
	err := env.Parse(&cfg)
	return cfg, err
}

// LiveTolerance is the outer bound past which a session lease is dead regardless of clock skew.
func (c GameConfig) LiveTolerance() time.Duration {
	f := c.SessionLiveToleranceFactor
	if f < 1 {
		f = 1
	}
	return time.Duration(float64(c.SessionStale) * f)
}
