package httptransport

import (
	"net/http"
	"time"

	"wordduel/internal/lobbygateway"
	"wordduel/internal/match"
	"wordduel/internal/stream"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

var ssePingInterval = 15 * time.Second

// Events streams the game feed. Last-Event-ID (header or lastEventId query)
// replays buffered events the client missed.
func (h *GameHandlers) Events() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameID := chi.URLParam(r, "game_id")
		g, err := h.coord.GetGame(r.Context(), gameID)
		if err != nil {
			WriteError(w, err)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			WriteHTTPError(w, http.StatusInternalServerError, "stream_not_supported")
			return
		}
		if g.Status == match.StatusCompleted {
			// The feed closed with the game; send the final state once.
			stream.SetSSEHeaders(w)
			w.WriteHeader(http.StatusOK)
			_ = stream.WriteSSE(w, finalStateEvent(g))
			return
		}
		buf := h.coord.Feed(gameID)

		metricSSEConnectionsTotal.Add(1)
		lobbygateway.TrackSSE(1)
		defer lobbygateway.TrackSSE(-1)

		stream.SetSSEHeaders(w)
		w.WriteHeader(http.StatusOK)
		log.Info().
			Str("request_id", chimw.GetReqID(r.Context())).
			Str("game_id", gameID).
			Msg("sse stream opened")

		lastEventID := r.Header.Get("Last-Event-ID")
		if lastEventID == "" {
			lastEventID = r.URL.Query().Get("lastEventId")
		}
		for _, ev := range buf.ReplayAfter(lastEventID) {
			if err := stream.WriteSSE(w, ev); err != nil {
				return
			}
		}
		flusher.Flush()

		ch := buf.Subscribe()
		defer buf.Unsubscribe(ch)
		// The game may have completed between the read above and Subscribe,
		// in which case this feed was opened after the final event.
		if cur, err := h.coord.GetGame(r.Context(), gameID); err == nil && cur.Status == match.StatusCompleted {
			h.coord.CloseFeed(gameID, "game_state", cur.Version, cur.ViewFor(""))
		}
		ticker := time.NewTicker(ssePingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-r.Context().Done():
				log.Info().
					Str("request_id", chimw.GetReqID(r.Context())).
					Str("game_id", gameID).
					Msg("sse stream closed")
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				if err := stream.WriteSSE(w, ev); err != nil {
					return
				}
			case <-ticker.C:
				if err := stream.WriteComment(w, "ping"); err != nil {
					return
				}
			}
		}
	}
}

func finalStateEvent(g *match.Game) stream.Event {
	return stream.Event{
		Type:     "game_state",
		GameID:   g.ID,
		Version:  g.Version,
		ServerTS: time.Now().UnixMilli(),
		Data:     g.ViewFor(""),
	}
}
