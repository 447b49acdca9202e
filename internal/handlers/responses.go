package handlers

import (
	"time"

	"ledger/internal/models"
	"ledger/internal/money"
	"ledger/internal/services"
)

type entryResponse struct {
	ID                 string                 `json:"id"`
	Name               string                 `json:"name"`
	Amount             string                 `json:"amount"`
	PurchaseDate       string                 `json:"purchase_date"`
	Period             string                 `json:"period"`
	TransactionType    models.TransactionType `json:"transaction_type"`
	Condition          models.Condition       `json:"condition"`
	IsSettled          bool                   `json:"is_settled"`
	IsAnticipated      bool                   `json:"is_anticipated"`
	SeriesID           *string                `json:"series_id,omitempty"`
	InstallmentCount   *int                   `json:"installment_count,omitempty"`
	CurrentInstallment *int                   `json:"current_installment,omitempty"`
	AnticipationID     *string                `json:"anticipation_id,omitempty"`
	AccountID          *string                `json:"account_id,omitempty"`
	CardID             *string                `json:"card_id,omitempty"`
	Note               *string                `json:"note,omitempty"`
}

func toEntryResponse(entry models.LedgerEntry) entryResponse {
	return entryResponse{
		ID:                 entry.ID,
		Name:               entry.Name,
		Amount:             money.FormatMinor(entry.Amount),
		PurchaseDate:       entry.PurchaseDate.Format(time.DateOnly),
		Period:             entry.Period,
		TransactionType:    entry.TransactionType,
		Condition:          entry.Condition,
		IsSettled:          entry.IsSettled,
		IsAnticipated:      entry.IsAnticipated,
		SeriesID:           entry.SeriesID,
		InstallmentCount:   entry.InstallmentCount,
		CurrentInstallment: entry.CurrentInstallment,
		AnticipationID:     entry.AnticipationID,
		AccountID:          entry.AccountID,
		CardID:             entry.CardID,
		Note:               entry.Note,
	}
}

func toEntryResponses(entries []models.LedgerEntry) []entryResponse {
	out := make([]entryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, toEntryResponse(entry))
	}
	return out
}

type anticipationResponse struct {
	ID                        string   `json:"id"`
	SeriesID                  string   `json:"series_id"`
	AnticipationPeriod        string   `json:"anticipation_period"`
	AnticipationDate          string   `json:"anticipation_date"`
	AnticipatedInstallmentIDs []string `json:"anticipated_installment_ids"`
	TotalAmount               string   `json:"total_amount"`
	InstallmentCount          int      `json:"installment_count"`
	Discount                  string   `json:"discount"`
	ConsolidatedEntryID       string   `json:"consolidated_entry_id"`
	Note                      *string  `json:"note,omitempty"`
}

func toAnticipationResponses(rows []models.Anticipation) []anticipationResponse {
	out := make([]anticipationResponse, 0, len(rows))
	for _, a := range rows {
		out = append(out, anticipationResponse{
			ID:                        a.ID,
			SeriesID:                  a.SeriesID,
			AnticipationPeriod:        a.AnticipationPeriod,
			AnticipationDate:          a.AnticipationDate.Format(time.DateOnly),
			AnticipatedInstallmentIDs: a.AnticipatedInstallmentIDs,
			TotalAmount:               money.FormatMinor(a.TotalAmount),
			InstallmentCount:          a.InstallmentCount,
			Discount:                  money.FormatMinor(a.Discount),
			ConsolidatedEntryID:       a.ConsolidatedEntryID,
			Note:                      a.Note,
		})
	}
	return out
}

type settlementResponse struct {
	InvoiceID        string               `json:"invoice_id"`
	Status           models.PaymentStatus `json:"status"`
	SettledEntries   int64                `json:"settled_entries"`
	OwnerShare       string               `json:"owner_share"`
	SyntheticEntryID string               `json:"synthetic_entry_id,omitempty"`
	SkippedReason    string               `json:"skipped_reason,omitempty"`
}

func toSettlementResponse(result services.SettlementResult) settlementResponse {
	return settlementResponse{
		InvoiceID:        result.InvoiceID,
		Status:           result.Status,
		SettledEntries:   result.SettledEntries,
		OwnerShare:       money.FormatMinor(result.OwnerShare),
		SyntheticEntryID: result.SyntheticEntryID,
		SkippedReason:    result.SkippedReason,
	}
}

type invoiceSummaryResponse struct {
	CardID         string               `json:"card_id"`
	Period         string               `json:"period"`
	Status         models.PaymentStatus `json:"status"`
	PaidAt         *string              `json:"paid_at,omitempty"`
	EntryCount     int                  `json:"entry_count"`
	Total          string               `json:"total"`
	OwnerShare     string               `json:"owner_share"`
	SyntheticEntry *entryResponse       `json:"synthetic_entry,omitempty"`
}

func toInvoiceSummaryResponse(summary services.InvoiceSummary) invoiceSummaryResponse {
	resp := invoiceSummaryResponse{
		CardID:     summary.CardID,
		Period:     summary.Period,
		Status:     summary.Status,
		EntryCount: summary.EntryCount,
		Total:      money.FormatMinor(summary.Total),
		OwnerShare: money.FormatMinor(summary.OwnerShare),
	}
	if summary.PaidAt != nil {
		paidAt := summary.PaidAt.Format(time.DateOnly)
		resp.PaidAt = &paidAt
	}
	if summary.SyntheticEntry != nil {
		entry := toEntryResponse(*summary.SyntheticEntry)
		resp.SyntheticEntry = &entry
	}
	return resp
}
