package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"ledger/internal/db"
	"ledger/internal/logger"
	"ledger/internal/middleware"
	"ledger/internal/services"
	"ledger/internal/validator"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps the service error classes onto HTTP. Anything
// unclassified is logged and reported without detail.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, services.ErrConflict):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, db.ErrRetryLimitExceeded):
		respondError(w, http.StatusConflict, "concurrent update, retry")
	case errors.Is(err, services.ErrInvariant):
		respondError(w, http.StatusInternalServerError, "internal error")
	default:
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func ownerFromRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	ownerID, ok := middleware.OwnerIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
	}
	return ownerID, ok
}

// decodeAndValidate reads a JSON body into dest and runs its validate tags.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return false
	}
	if err := validator.Struct(dest); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}
