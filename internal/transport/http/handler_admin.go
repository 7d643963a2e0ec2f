package httptransport

import (
	"context"
	"net/http"
	"time"
)

type AdminHandlers struct {
	store Pinger
}

func NewAdminHandlers(st Pinger) *AdminHandlers {
	return &AdminHandlers{store: st}
}

func (h *AdminHandlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := h.store.Ping(ctx); err != nil {
				WriteHTTPError(w, http.StatusServiceUnavailable, "db_unavailable")
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}
