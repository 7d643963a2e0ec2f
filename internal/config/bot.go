package config

import "github.com/caarlos0/env/v11"

type BotConfig struct {
	ServerURL string `env:"SERVER_URL" envDefault:"http://localhost:8080"`
	WSURL     string `env:"WS_URL" envDefault:"ws://localhost:8080"`
	Token     string `env:"BOT_TOKEN"`
	UserID    string `env:"BOT_USER_ID" envDefault:"bot"`
	Guest     bool   `env:"BOT_GUEST" envDefault:"true"`
	JWTSecret string `env:"JWT_SECRET"`
	GameID    string `env:"GAME_ID"`
	Passcode  string `env:"GAME_PASSCODE"`
	Alias     string `env:"BOT_ALIAS" envDefault:"bot"`
}

func LoadBot() (BotConfig, error) {
	var cfg BotConfig
	err := env.Parse(&cfg)
	return cfg, err
}
