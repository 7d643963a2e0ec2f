package main

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"wordduel/internal/access"
	"wordduel/internal/events"
	"wordduel/internal/identity"
	"wordduel/internal/lobbygateway"
	"wordduel/internal/match"
	"wordduel/internal/presence"
	"wordduel/internal/session"
	"wordduel/internal/store"
	httptransport "wordduel/internal/transport/http"
	"wordduel/internal/words"

	"golang.org/x/crypto/bcrypt"
)

const secret = "bot-test-secret"

func newServer(t *testing.T) (*httptest.Server, *lobbygateway.Coordinator) {
	t.Helper()
	st := store.NewMemory()
	sessions := session.NewManager(st, nil, session.DefaultPolicy())
	coord := lobbygateway.NewCoordinator(lobbygateway.Options{
		Store:    st,
		Machine:  match.NewMachine(match.DefaultRules(), words.MustDefault(), store.NewID),
		Gate:     access.NewGate(secret, bcrypt.MinCost),
		Presence: presence.NewTracker(nil, 30*time.Second),
		Sessions: sessions,
		Emitter:  &events.Recorder{},
	})
	srv := httptest.NewServer(httptransport.NewRouter(httptransport.Deps{
		Coordinator: coord,
		Sessions:    sessions,
		Verifier:    identity.NewVerifier(secret),
		Store:       st,
	}))
	t.Cleanup(srv.Close)
	return srv, coord
}

func botClient(t *testing.T, srv *httptest.Server, uid string) *client {
	t.Helper()
	tok, err := identity.Sign(secret, identity.Identity{UID: uid}, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return newClient(srv.URL, "ws"+strings.TrimPrefix(srv.URL, "http"), tok)
}

func TestJoinPrivateGameCachesAccessToken(t *testing.T) {
	srv, coord := newServer(t)
	ctx := context.Background()
	g, err := coord.CreateGame(ctx, identity.Identity{UID: "host"}, lobbygateway.CreateGameRequest{
		Visibility: match.VisibilityPrivate,
		Passcode:   "open-sesame",
		WordLength: 5,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	c := botClient(t, srv, "bot")
	if err := c.join(ctx, g.ID, "bot", "wrong"); !hasCode(err, "access_denied") {
		t.Fatalf("expected access_denied, got %v", err)
	}
	if _, err := c.cache.Get(g.ID); !errors.Is(err, access.ErrNotCached) {
		t.Fatalf("a denied passcode must not be cached, got %v", err)
	}

	if err := c.join(ctx, g.ID, "bot", "open-sesame"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := c.cache.Get(g.ID); err != nil {
		t.Fatalf("token not cached: %v", err)
	}
	// A cached token is enough on re-entry.
	if err := c.join(ctx, g.ID, "bot", ""); err != nil {
		t.Fatalf("rejoin with cached token: %v", err)
	}
}

func TestKeepAliveReturnsSupersededAfterTakeover(t *testing.T) {
	srv, _ := newServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := botClient(t, srv, "bot")
	first, err := c.acquireSession(ctx, "one")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	second, err := c.acquireSession(ctx, "two")
	if err != nil {
		t.Fatalf("takeover: %v", err)
	}
	if second.SupersededToken != first.Token {
		t.Fatalf("supersededToken=%q, want %q", second.SupersededToken, first.Token)
	}

	first.HeartbeatMS = 10
	if err := c.keepAlive(ctx, first); !errors.Is(err, errSuperseded) {
		t.Fatalf("expected errSuperseded, got %v", err)
	}
}

func TestHoldPresenceSeesOwnEntry(t *testing.T) {
	srv, coord := newServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	g, err := coord.CreateGame(ctx, identity.Identity{UID: "host"}, lobbygateway.CreateGameRequest{WordLength: 5})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	c := botClient(t, srv, "bot")
	if err := c.join(ctx, g.ID, "bot", ""); err != nil {
		t.Fatalf("join: %v", err)
	}

	var seen bool
	err = c.holdPresence(ctx, g.ID, func(s presence.Snapshot) {
		for _, e := range s.Entries {
			if e.UserID == "bot" {
				seen = true
				cancel()
			}
		}
	})
	if err != nil {
		t.Fatalf("hold presence: %v", err)
	}
	if !seen {
		t.Fatal("bot never saw itself online")
	}
}
