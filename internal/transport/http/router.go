package httptransport

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"wordduel/internal/identity"
	"wordduel/internal/lobbygateway"
	"wordduel/internal/session"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

// Pinger reports backing store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Coordinator    *lobbygateway.Coordinator
	Sessions       *session.Manager
	Verifier       *identity.Verifier
	Store          Pinger
	AllowedOrigins []string
}

func NewRouter(d Deps) *chi.Mux {
	games := NewGameHandlers(d.Coordinator)
	presence := NewPresenceHandlers(d.Coordinator)
	sessions := NewSessionHandlers(d.Sessions)
	admin := NewAdminHandlers(d.Store)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: d.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
		},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Last-Event-ID"},
		AllowCredentials: true,
	}).Handler)

	r.With(APILogMiddleware()).Get("/healthz", admin.Health())

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware())

		r.Route("/debug", func(r chi.Router) {
			r.Use(BodyCaptureMiddleware(4096))
			r.Get("/vars", expvar.Handler().ServeHTTP)
		})

		r.Group(func(r chi.Router) {
			r.Use(IdentityMiddleware(d.Verifier))

			r.Post("/games", games.Create())
			r.Route("/games/{game_id}", func(r chi.Router) {
				r.Get("/", games.Get())
				r.Post("/join", games.Join())
				r.Post("/start", games.Start())
				r.Post("/guesses", games.Guess())
				r.Post("/votes/{kind}", games.Vote())
				r.Post("/access", games.Access())
				r.Get("/events", games.Events())

				r.Post("/presence", presence.Join())
				r.Delete("/presence", presence.Leave())
				r.Post("/presence/heartbeat", presence.Heartbeat())
				r.Get("/presence", presence.List())
			})

			r.Post("/sessions", sessions.Acquire())
			r.Post("/sessions/heartbeat", sessions.Heartbeat())
			r.Delete("/sessions", sessions.Release())
			r.Get("/sessions/status/{user_id}", sessions.Status())
		})
	})

	r.With(APILogMiddleware(), IdentityMiddleware(d.Verifier)).Get("/ws/games/{game_id}/presence", presence.Socket())
	return r
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 32)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}
