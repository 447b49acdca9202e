package handlers

import (
	"net/http"

	"ledger/internal/auth"
	"ledger/internal/websocket"
)

// WSLedger streams invalidation messages for the token's owner. Browsers
// cannot set headers on the upgrade request, so the token rides in the query.
// The socket lives no longer than the token.
func (h *Handler) WSLedger(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.ParseToken(h.cfg.JWTSecret, r.URL.Query().Get("token"))
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	websocket.ServeWS(w, r, h.hub, claims.OwnerID, claims.ExpiresAt.Time)
}
