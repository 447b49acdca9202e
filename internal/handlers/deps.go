package handlers

import (
	"context"
	"time"

	"ledger/internal/models"
	"ledger/internal/services"
)

type AnticipationService interface {
	ListEligibleInstallments(ctx context.Context, ownerID, seriesID string) ([]models.LedgerEntry, error)
	ListBySeries(ctx context.Context, ownerID, seriesID string) ([]models.Anticipation, error)
	Create(ctx context.Context, req services.CreateAnticipationRequest) (string, error)
	Cancel(ctx context.Context, ownerID, anticipationID string) error
}

type SettlementService interface {
	SetPaymentStatus(ctx context.Context, req services.SetPaymentStatusRequest) (services.SettlementResult, error)
	SetPaymentDate(ctx context.Context, ownerID, cardID, period string, date time.Time) error
	InvoiceSummary(ctx context.Context, ownerID, cardID, period string) (services.InvoiceSummary, error)
}

type TransferService interface {
	Transfer(ctx context.Context, req services.TransferRequest) (string, error)
}
