package config

import "github.com/caarlos0/env/v11"

type ServerConfig struct {
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	PostgresDSN string `env:"POSTGRES_DSN"`

	JWTSecret         string `env:"JWT_SECRET,required,notEmpty"`
	AccessTokenSecret string `env:"ACCESS_TOKEN_SECRET"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`

	NATSURL             string `env:"NATS_URL"`
	EventsSubjectPrefix string `env:"EVENTS_SUBJECT_PREFIX" envDefault:"wordduel.events"`

	WordsBankFile string `env:"WORDS_BANK_FILE"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	if cfg.AccessTokenSecret == "" {
		cfg.AccessTokenSecret = cfg.JWTSecret
	}
	return cfg, nil
}
