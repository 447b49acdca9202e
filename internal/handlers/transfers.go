package handlers

import (
	"net/http"

	"ledger/internal/money"
	"ledger/internal/services"
	"ledger/internal/validator"
)

type transferRequest struct {
	FromAccountID string `json:"from_account_id" validate:"required"`
	ToAccountID   string `json:"to_account_id" validate:"required"`
	Amount        string `json:"amount" validate:"required,positive_amount"`
	Date          string `json:"date" validate:"required,date"`
	Period        string `json:"period" validate:"required,period"`
}

func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}
	var payload transferRequest
	if !decodeAndValidate(w, r, &payload) {
		return
	}
	amount, err := money.ParseMinor(payload.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	date, err := validator.ParseDate(payload.Date)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	transferID, err := h.transfers.Transfer(r.Context(), services.TransferRequest{
		OwnerID:       ownerID,
		FromAccountID: payload.FromAccountID,
		ToAccountID:   payload.ToAccountID,
		Amount:        amount,
		Date:          date,
		Period:        payload.Period,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"transfer_id": transferID})
}
