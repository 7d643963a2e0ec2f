package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wordduel/internal/config"
	"wordduel/internal/identity"
	"wordduel/internal/logging"
	"wordduel/internal/presence"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()

	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	logCfg.Service = "presence-bot"
	logging.Init(logCfg)

	cfg, err := config.LoadBot()
	if err != nil {
		log.Fatal().Err(err).Msg("load bot config failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("bot stopped")
	}
}

func run(ctx context.Context, cfg config.BotConfig) error {
	token := cfg.Token
	if token == "" {
		if cfg.JWTSecret == "" {
			return errors.New("BOT_TOKEN or JWT_SECRET is required")
		}
		t, err := identity.Sign(cfg.JWTSecret, identity.Identity{UID: cfg.UserID, IsGuest: cfg.Guest}, 24*time.Hour)
		if err != nil {
			return err
		}
		token = t
	}
	c := newClient(cfg.ServerURL, cfg.WSURL, token)

	l, err := c.acquireSession(ctx, "bot-"+uuid.NewString())
	if err != nil {
		return err
	}
	log.Info().Str("user_id", cfg.UserID).Str("session_id", l.SessionID).Msg("session acquired")
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.releaseSession(releaseCtx, l.Token); err != nil {
			log.Warn().Err(err).Msg("release session failed")
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	aliveErr := make(chan error, 1)
	go func() {
		err := c.keepAlive(ctx, l)
		if errors.Is(err, errSuperseded) {
			log.Warn().Msg("another session took over; exiting")
		}
		aliveErr <- err
		cancel()
	}()

	if cfg.GameID != "" {
		if err := c.join(ctx, cfg.GameID, cfg.Alias, cfg.Passcode); err != nil {
			return err
		}
		log.Info().Str("game_id", cfg.GameID).Msg("joined game")
		err := c.holdPresence(ctx, cfg.GameID, func(s presence.Snapshot) {
			online := make([]string, 0, len(s.Entries))
			for _, e := range s.Entries {
				online = append(online, e.UserID)
			}
			log.Info().Str("game_id", s.GameID).Uint64("seq", s.Seq).Strs("online", online).Msg("presence")
		})
		if err != nil {
			return err
		}
	} else {
		<-ctx.Done()
	}
	cancel()
	if err := <-aliveErr; errors.Is(err, errSuperseded) {
		return err
	}
	return nil
}
