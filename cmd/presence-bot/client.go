package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"wordduel/internal/access"
	"wordduel/internal/presence"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type apiError struct {
	Status    int
	Code      string `json:"error"`
	Detail    string `json:"detail"`
	Retryable bool   `json:"retryable"`
}

func (e *apiError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%d %s", e.Status, e.Code)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Detail)
}

func hasCode(err error, code string) bool {
	var ae *apiError
	return errors.As(err, &ae) && ae.Code == code
}

type lease struct {
	Token           string `json:"token"`
	SessionID       string `json:"sessionId"`
	SupersededToken string `json:"supersededToken"`
	HeartbeatMS     int64  `json:"heartbeatMs"`
}

type client struct {
	baseURL string
	wsURL   string
	token   string
	http    *http.Client
	cache   *access.Cache
}

func newClient(baseURL, wsURL, token string) *client {
	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		wsURL:   strings.TrimRight(wsURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
		cache:   access.NewCache(),
	}
}

func (c *client) do(ctx context.Context, method, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		ae := &apiError{Status: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(ae)
		return ae
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *client) acquireSession(ctx context.Context, sessionID string) (lease, error) {
	var l lease
	err := c.do(ctx, http.MethodPost, "/api/sessions", map[string]string{"sessionId": sessionID}, &l)
	return l, err
}

func (c *client) heartbeat(ctx context.Context, token string) (lease, error) {
	var l lease
	err := c.do(ctx, http.MethodPost, "/api/sessions/heartbeat", map[string]string{"token": token}, &l)
	return l, err
}

func (c *client) releaseSession(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodDelete, "/api/sessions", map[string]string{"token": token}, nil)
}

// accessToken returns a cached token for the game, or exchanges the passcode
// for a fresh one.
func (c *client) accessToken(ctx context.Context, gameID, passcode string) (string, error) {
	if tok, err := c.cache.Get(gameID); err == nil {
		return tok, nil
	}
	if passcode == "" {
		return "", nil
	}
	var grant access.Grant
	if err := c.do(ctx, http.MethodPost, "/api/games/"+url.PathEscape(gameID)+"/access", map[string]string{"passcode": passcode}, &grant); err != nil {
		return "", err
	}
	c.cache.Put(gameID, grant.Token)
	return grant.Token, nil
}

func (c *client) join(ctx context.Context, gameID, alias, passcode string) error {
	tok, err := c.accessToken(ctx, gameID, passcode)
	if err != nil {
		return err
	}
	body := map[string]string{"alias": alias, "accessToken": tok}
	err = c.do(ctx, http.MethodPost, "/api/games/"+url.PathEscape(gameID)+"/join", body, nil)
	if hasCode(err, "access_denied") && tok != "" {
		// The passcode may have been rotated since the token was cached.
		c.cache.Forget(gameID)
		if tok, err = c.accessToken(ctx, gameID, passcode); err != nil {
			return err
		}
		body["accessToken"] = tok
		err = c.do(ctx, http.MethodPost, "/api/games/"+url.PathEscape(gameID)+"/join", body, nil)
	}
	return err
}

// holdPresence keeps a presence socket open until ctx ends or the server
// closes it. Pong replies to server pings keep the lease fresh.
func (c *client) holdPresence(ctx context.Context, gameID string, onSnapshot func(presence.Snapshot)) error {
	target := fmt.Sprintf("%s/ws/games/%s/presence?access_token=%s", c.wsURL, url.PathEscape(gameID), url.QueryEscape(c.token))
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	}()
	for {
		var msg struct {
			Type     string            `json:"type"`
			Snapshot presence.Snapshot `json:"snapshot"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if msg.Type == "presence" && onSnapshot != nil {
			onSnapshot(msg.Snapshot)
		}
	}
}

// keepAlive heartbeats the session lease until ctx ends. It returns
// errSuperseded once another session has taken over.
func (c *client) keepAlive(ctx context.Context, l lease) error {
	every := time.Duration(l.HeartbeatMS) * time.Millisecond
	if every <= 0 {
		every = 10 * time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := c.heartbeat(ctx, l.Token); err != nil {
				if hasCode(err, "superseded") {
					return errSuperseded
				}
				log.Warn().Err(err).Msg("heartbeat failed")
			}
		}
	}
}

var errSuperseded = errors.New("session superseded by another device")
