package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wordduel/internal/access"
	"wordduel/internal/config"
	"wordduel/internal/events"
	"wordduel/internal/identity"
	"wordduel/internal/lobbygateway"
	"wordduel/internal/logging"
	"wordduel/internal/match"
	"wordduel/internal/presence"
	"wordduel/internal/session"
	"wordduel/internal/store"
	httptransport "wordduel/internal/transport/http"
	"wordduel/internal/words"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// backend is what the server needs from either store implementation.
type backend interface {
	lobbygateway.GameStore
	session.LockStore
	httptransport.Pinger
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	logging.Init(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore := openStore(ctx, cfg.Server.PostgresDSN)
	defer closeStore()

	bank, err := words.Load(cfg.Server.WordsBankFile)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Server.WordsBankFile).Msg("load word bank failed")
	}

	emitter, closeEmitter := newEmitter(cfg.Server)
	defer closeEmitter()

	clock := clockwork.NewRealClock()
	tracker := presence.NewTracker(clock, cfg.Game.PresenceTTL)
	sessions := session.NewManager(st, clock, session.PolicyFromConfig(cfg.Game))
	coord := lobbygateway.NewCoordinator(lobbygateway.Options{
		Store:    st,
		Machine:  match.NewMachine(rulesFromConfig(cfg.Game), bank, store.NewID),
		Gate:     access.NewGate(cfg.Server.AccessTokenSecret, cfg.Game.PasscodeBcryptCost),
		Presence: tracker,
		Sessions: sessions,
		Emitter:  emitter,
		Clock:    clock,
	})
	coord.StartJanitor(ctx, cfg.Game.SweepInterval)

	r := httptransport.NewRouter(httptransport.Deps{
		Coordinator:    coord,
		Sessions:       sessions,
		Verifier:       identity.NewVerifier(cfg.Server.JWTSecret),
		Store:          st,
		AllowedOrigins: cfg.Server.CORSAllowedOrigins,
	})
	httptransport.LogRoutes(r)

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown failed")
		}
	}()

	log.Info().Str("addr", cfg.Server.HTTPAddr).Msg("http listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server stopped")
	}
	log.Info().Msg("server stopped")
}

func openStore(ctx context.Context, dsn string) (backend, func()) {
	if dsn == "" {
		log.Warn().Msg("POSTGRES_DSN not set; games and session locks are kept in memory")
		return store.NewMemory(), func() {}
	}
	st, err := store.New(dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("store init failed")
	}
	if err := st.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("db ping failed")
	}
	return st, st.Close
}

func newEmitter(cfg config.ServerConfig) (events.Emitter, func()) {
	if cfg.NATSURL == "" {
		return events.LogEmitter{}, func() {}
	}
	nc, err := events.Connect(cfg.NATSURL)
	if err != nil {
		log.Error().Err(err).Str("url", cfg.NATSURL).Msg("nats connect failed; events go to the log only")
		return events.LogEmitter{}, func() {}
	}
	emitter := events.Multi{events.LogEmitter{}, events.NewNATSEmitter(nc, cfg.EventsSubjectPrefix)}
	return emitter, func() {
		if err := nc.Drain(); err != nil {
			log.Warn().Err(err).Msg("nats drain failed")
		}
	}
}

func rulesFromConfig(cfg config.GameConfig) match.Rules {
	return match.Rules{
		LobbyTTL:          cfg.LobbyTTL,
		InactivityTimeout: cfg.InactivityTimeout,
		MatchHardStop:     cfg.MatchHardStop,
		DefaultTurnTime:   cfg.DefaultTurnTime,
		DefaultMatchTime:  cfg.DefaultMatchTime,
		RoundBonusEnabled: cfg.RoundBonusEnabled,
	}
}
