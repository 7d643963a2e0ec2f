package httptransport

import (
	"net/http"
	"time"

	"wordduel/internal/apperr"
	"wordduel/internal/lobbygateway"
	"wordduel/internal/presence"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	wsWriteTimeout   = 10 * time.Second
	wsMaxMessageSize = 512
)

type PresenceHandlers struct {
	coord    *lobbygateway.Coordinator
	upgrader websocket.Upgrader
}

func NewPresenceHandlers(coord *lobbygateway.Coordinator) *PresenceHandlers {
	return &PresenceHandlers{
		coord: coord,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type presenceBody struct {
	Binding presence.Binding `json:"binding"`
}

type presenceLease struct {
	Binding presence.Binding `json:"binding"`
	TTLMS   int64            `json:"ttlMs"`
}

type presenceMessage struct {
	Type     string            `json:"type"`
	Snapshot presence.Snapshot `json:"snapshot"`
}

func (h *PresenceHandlers) Join() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := h.coord.JoinPresence(r.Context(), mustIdentity(r), chi.URLParam(r, "game_id"))
		if err != nil {
			WriteError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, presenceLease{Binding: b, TTLMS: h.coord.Presence().TTL().Milliseconds()})
	}
}

func (h *PresenceHandlers) Heartbeat() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body presenceBody
		if err := decodeBody(r, &body); err != nil {
			WriteError(w, err)
			return
		}
		if body.Binding == "" {
			WriteError(w, apperr.New(apperr.ErrInvalidRequest, "binding is required"))
			return
		}
		if err := h.coord.TouchPresence(r.Context(), mustIdentity(r), chi.URLParam(r, "game_id"), body.Binding); err != nil {
			WriteError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

func (h *PresenceHandlers) Leave() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.coord.LeavePresence(r.Context(), mustIdentity(r), chi.URLParam(r, "game_id"))
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

func (h *PresenceHandlers) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := h.coord.ListPresence(r.Context(), chi.URLParam(r, "game_id"))
		if err != nil {
			WriteError(w, err)
			return
		}
		if entries == nil {
			entries = []presence.Entry{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
	}
}

// Socket holds a presence lease for as long as the websocket stays open.
// Pongs and client messages refresh the lease; a newer binding for the same
// user closes this connection.
func (h *PresenceHandlers) Socket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who := mustIdentity(r)
		gameID := chi.URLParam(r, "game_id")
		binding, err := h.coord.JoinPresence(r.Context(), who, gameID)
		if err != nil {
			WriteError(w, err)
			return
		}
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.coord.DropPresence(gameID, who.UID, binding)
			return
		}
		metricWSConnectionsTotal.Add(1)
		lobbygateway.TrackWS(1)

		snaps, cancel := h.coord.Presence().Subscribe(gameID)
		done := make(chan struct{})
		defer func() {
			close(done)
			cancel()
			h.coord.DropPresence(gameID, who.UID, binding)
			_ = conn.Close()
			lobbygateway.TrackWS(-1)
			log.Info().Str("game_id", gameID).Str("user_id", who.UID).Msg("presence socket closed")
		}()

		ttl := h.coord.Presence().TTL()
		go h.writePump(conn, snaps, done, ttl/3)

		touch := func() error {
			_ = conn.SetReadDeadline(time.Now().Add(ttl))
			return h.coord.TouchPresence(r.Context(), who, gameID, binding)
		}
		conn.SetReadLimit(wsMaxMessageSize)
		_ = conn.SetReadDeadline(time.Now().Add(ttl))
		conn.SetPongHandler(func(string) error { return touch() })
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			if err := touch(); err != nil {
				log.Info().Err(err).Str("game_id", gameID).Str("user_id", who.UID).Msg("presence binding replaced")
				return
			}
		}
	}
}

func (h *PresenceHandlers) writePump(conn *websocket.Conn, snaps <-chan presence.Snapshot, done <-chan struct{}, pingEvery time.Duration) {
	if pingEvery <= 0 {
		pingEvery = 10 * time.Second
	}
	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case snap, ok := <-snaps:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(presenceMessage{Type: "presence", Snapshot: snap}); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
