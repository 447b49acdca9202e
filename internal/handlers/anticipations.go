package handlers

import (
	"net/http"

	"ledger/internal/money"
	"ledger/internal/services"

	"github.com/go-chi/chi/v5"
)

type createAnticipationRequest struct {
	SeriesID           string   `json:"series_id" validate:"required"`
	InstallmentIDs     []string `json:"installment_ids" validate:"required,min=1,unique,dive,required"`
	AnticipationPeriod string   `json:"anticipation_period" validate:"required,period"`
	Discount           string   `json:"discount" validate:"omitempty,nonnegative_amount"`
	PayerID            *string  `json:"payer_id"`
	CategoryID         *string  `json:"category_id"`
	Note               *string  `json:"note"`
}

func (h *Handler) ListEligibleInstallments(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}
	entries, err := h.anticipations.ListEligibleInstallments(r.Context(), ownerID, chi.URLParam(r, "seriesID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"installments": toEntryResponses(entries)})
}

func (h *Handler) ListAnticipations(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}
	rows, err := h.anticipations.ListBySeries(r.Context(), ownerID, chi.URLParam(r, "seriesID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"anticipations": toAnticipationResponses(rows)})
}

func (h *Handler) CreateAnticipation(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}
	var payload createAnticipationRequest
	if !decodeAndValidate(w, r, &payload) {
		return
	}
	var discount int64
	if payload.Discount != "" {
		parsed, err := money.ParseMinor(payload.Discount)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid discount")
			return
		}
		discount = parsed
	}
	id, err := h.anticipations.Create(r.Context(), services.CreateAnticipationRequest{
		OwnerID:            ownerID,
		SeriesID:           payload.SeriesID,
		InstallmentIDs:     payload.InstallmentIDs,
		AnticipationPeriod: payload.AnticipationPeriod,
		Discount:           discount,
		PayerID:            payload.PayerID,
		CategoryID:         payload.CategoryID,
		Note:               payload.Note,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"anticipation_id": id})
}

func (h *Handler) CancelAnticipation(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}
	if err := h.anticipations.Cancel(r.Context(), ownerID, chi.URLParam(r, "anticipationID")); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
