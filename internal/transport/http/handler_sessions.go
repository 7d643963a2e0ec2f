package httptransport

import (
	"errors"
	"net/http"

	"wordduel/internal/apperr"
	"wordduel/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

type SessionHandlers struct {
	sessions *session.Manager
}

func NewSessionHandlers(sessions *session.Manager) *SessionHandlers {
	return &SessionHandlers{sessions: sessions}
}

type acquireBody struct {
	SessionID string `json:"sessionId"`
}

type tokenBody struct {
	Token string `json:"token"`
}

type leaseResponse struct {
	session.Lease
	HeartbeatMS int64 `json:"heartbeatMs"`
}

func (h *SessionHandlers) lease(l session.Lease) leaseResponse {
	return leaseResponse{Lease: l, HeartbeatMS: h.sessions.Policy().Heartbeat.Milliseconds()}
}

func (h *SessionHandlers) Acquire() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricSessionAcquireTotal.Add(1)
		var body acquireBody
		if err := decodeBody(r, &body); err != nil {
			metricSessionAcquireErrors.Add(1)
			WriteError(w, err)
			return
		}
		who := mustIdentity(r)
		l, err := h.sessions.Acquire(r.Context(), who.UID, body.SessionID)
		if err != nil {
			metricSessionAcquireErrors.Add(1)
			WriteError(w, err)
			return
		}
		if l.Superseded != "" {
			log.Info().Str("user_id", who.UID).Str("session_id", l.SessionID).Msg("session lease taken over")
		}
		writeJSON(w, http.StatusOK, h.lease(l))
	}
}

func (h *SessionHandlers) Heartbeat() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body tokenBody
		if err := decodeBody(r, &body); err != nil {
			WriteError(w, err)
			return
		}
		if body.Token == "" {
			WriteError(w, apperr.New(apperr.ErrInvalidRequest, "token is required"))
			return
		}
		l, err := h.sessions.Heartbeat(r.Context(), mustIdentity(r).UID, body.Token)
		if err != nil {
			if errors.Is(err, apperr.ErrSuperseded) {
				metricSessionSuperseded.Add(1)
			}
			WriteError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, h.lease(l))
	}
}

func (h *SessionHandlers) Release() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body tokenBody
		if err := decodeBody(r, &body); err != nil {
			WriteError(w, err)
			return
		}
		if body.Token == "" {
			body.Token = r.URL.Query().Get("token")
		}
		if err := h.sessions.Release(r.Context(), mustIdentity(r).UID, body.Token); err != nil {
			WriteError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

func (h *SessionHandlers) Status() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := h.sessions.Status(r.Context(), chi.URLParam(r, "user_id"))
		if err != nil {
			WriteError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}
