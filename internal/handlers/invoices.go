package handlers

import (
	"net/http"
	"time"

	"ledger/internal/models"
	"ledger/internal/services"
	"ledger/internal/validator"

	"github.com/go-chi/chi/v5"
)

type setInvoiceStatusRequest struct {
	Status      string  `json:"status" validate:"required,oneof=pending paid"`
	PaymentDate *string `json:"payment_date" validate:"omitempty,date"`
}

type setPaymentDateRequest struct {
	PaymentDate string `json:"payment_date" validate:"required,date"`
}

func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}
	summary, err := h.settlement.InvoiceSummary(r.Context(), ownerID, chi.URLParam(r, "cardID"), chi.URLParam(r, "period"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toInvoiceSummaryResponse(summary))
}

func (h *Handler) SetInvoiceStatus(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}
	var payload setInvoiceStatusRequest
	if !decodeAndValidate(w, r, &payload) {
		return
	}
	var paymentDate *time.Time
	if payload.PaymentDate != nil {
		parsed, err := validator.ParseDate(*payload.PaymentDate)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		paymentDate = &parsed
	}
	result, err := h.settlement.SetPaymentStatus(r.Context(), services.SetPaymentStatusRequest{
		OwnerID:     ownerID,
		CardID:      chi.URLParam(r, "cardID"),
		Period:      chi.URLParam(r, "period"),
		Status:      models.PaymentStatus(payload.Status),
		PaymentDate: paymentDate,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toSettlementResponse(result))
}

func (h *Handler) SetInvoicePaymentDate(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}
	var payload setPaymentDateRequest
	if !decodeAndValidate(w, r, &payload) {
		return
	}
	date, err := validator.ParseDate(payload.PaymentDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.settlement.SetPaymentDate(r.Context(), ownerID, chi.URLParam(r, "cardID"), chi.URLParam(r, "period"), date); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
