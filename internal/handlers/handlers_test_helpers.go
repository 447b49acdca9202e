package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ledger/internal/auth"
	"ledger/internal/config"
	"ledger/internal/models"
	"ledger/internal/services"
	"ledger/internal/websocket"

	"github.com/rs/zerolog"
)

const testSecret = "secret"

type stubAnticipationService struct {
	listEligibleFn func(ctx context.Context, ownerID, seriesID string) ([]models.LedgerEntry, error)
	listBySeriesFn func(ctx context.Context, ownerID, seriesID string) ([]models.Anticipation, error)
	createFn       func(ctx context.Context, req services.CreateAnticipationRequest) (string, error)
	cancelFn       func(ctx context.Context, ownerID, anticipationID string) error
}

func (s stubAnticipationService) ListEligibleInstallments(ctx context.Context, ownerID, seriesID string) ([]models.LedgerEntry, error) {
	if s.listEligibleFn == nil {
		return nil, nil
	}
	return s.listEligibleFn(ctx, ownerID, seriesID)
}

func (s stubAnticipationService) ListBySeries(ctx context.Context, ownerID, seriesID string) ([]models.Anticipation, error) {
	if s.listBySeriesFn == nil {
		return nil, nil
	}
	return s.listBySeriesFn(ctx, ownerID, seriesID)
}

func (s stubAnticipationService) Create(ctx context.Context, req services.CreateAnticipationRequest) (string, error) {
	if s.createFn == nil {
		return "", nil
	}
	return s.createFn(ctx, req)
}

func (s stubAnticipationService) Cancel(ctx context.Context, ownerID, anticipationID string) error {
	if s.cancelFn == nil {
		return nil
	}
	return s.cancelFn(ctx, ownerID, anticipationID)
}

type stubSettlementService struct {
	setStatusFn      func(ctx context.Context, req services.SetPaymentStatusRequest) (services.SettlementResult, error)
	setPaymentDateFn func(ctx context.Context, ownerID, cardID, period string, date time.Time) error
	summaryFn        func(ctx context.Context, ownerID, cardID, period string) (services.InvoiceSummary, error)
}

func (s stubSettlementService) SetPaymentStatus(ctx context.Context, req services.SetPaymentStatusRequest) (services.SettlementResult, error) {
	if s.setStatusFn == nil {
		return services.SettlementResult{}, nil
	}
	return s.setStatusFn(ctx, req)
}

func (s stubSettlementService) SetPaymentDate(ctx context.Context, ownerID, cardID, period string, date time.Time) error {
	if s.setPaymentDateFn == nil {
		return nil
	}
	return s.setPaymentDateFn(ctx, ownerID, cardID, period, date)
}

func (s stubSettlementService) InvoiceSummary(ctx context.Context, ownerID, cardID, period string) (services.InvoiceSummary, error) {
	if s.summaryFn == nil {
		return services.InvoiceSummary{}, nil
	}
	return s.summaryFn(ctx, ownerID, cardID, period)
}

type stubTransferService struct {
	transferFn func(ctx context.Context, req services.TransferRequest) (string, error)
}

func (s stubTransferService) Transfer(ctx context.Context, req services.TransferRequest) (string, error) {
	if s.transferFn == nil {
		return "", nil
	}
	return s.transferFn(ctx, req)
}

func newTestHandler(anticipations AnticipationService, settlement SettlementService, transfers TransferService) *Handler {
	cfg := config.Config{
		AppEnv:         "test",
		Port:           "0",
		JWTSecret:      testSecret,
		AllowedOrigins: "*",
	}
	return New(cfg, zerolog.Nop(), anticipations, settlement, transfers, websocket.NewHub())
}

// serveRoute sends an authenticated request through the full router.
func serveRoute(t *testing.T, handler *Handler, method, path, body, ownerID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if ownerID != "" {
		token, err := auth.GenerateToken(testSecret, ownerID, time.Minute)
		if err != nil {
			t.Fatalf("failed to generate token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode body %q: %v", rr.Body.String(), err)
	}
	return payload
}

func stringPtr(value string) *string {
	return &value
}

func intPtr(value int) *int {
	return &value
}
