package handlers

import (
	"log/slog"
	"net/http"

	"github.com/baharkarakas/wallet-engine/internal/notify"
)

type WSHandler struct {
	Hub *notify.Hub
}

func NewWSHandler(h *notify.Hub) *WSHandler { return &WSHandler{Hub: h} }

// Serve streams the caller's transaction events over a websocket.
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	if err := h.Hub.Serve(w, r, caller(r).UserID); err != nil {
		// the upgrader has already answered the client
		slog.DebugContext(r.Context(), "ws upgrade failed", "err", err)
	}
}
