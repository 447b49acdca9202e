package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ledger/internal/db"
	"ledger/internal/invalidation"
	"ledger/internal/models"
	"ledger/internal/period"
	"ledger/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

type InvoiceStore interface {
	Upsert(ctx context.Context, tx store.Getter, id, ownerID, cardID, period string, status models.PaymentStatus, paidAt *time.Time) (models.Invoice, error)
	Get(ctx context.Context, q store.Getter, ownerID, cardID, period string) (models.Invoice, error)
	SetPaidAt(ctx context.Context, tx store.Execer, ownerID, cardID, period string, paidAt time.Time) (int64, error)
}

// Reasons a paid invoice commits without a funding entry.
const (
	SkipNoOwnerShare           = "no_owner_share"
	SkipNoFundingAccount       = "card_has_no_funding_account"
	SkipOwnerPayerMissing      = "owner_payer_missing"
	SkipPaymentCategoryMissing = "payment_category_missing"
)

type SettlementService struct {
	txRunner            db.TxRunner
	entries             EntryStore
	invoices            InvoiceStore
	directory           DirectoryStore
	invalidator         Invalidator
	log                 zerolog.Logger
	paymentCategoryName string
	now                 func() time.Time
}

func NewSettlementService(txRunner db.TxRunner, entries EntryStore, invoices InvoiceStore, directory DirectoryStore, invalidator Invalidator, log zerolog.Logger, paymentCategoryName string) *SettlementService {
	return &SettlementService{
		txRunner:            txRunner,
		entries:             entries,
		invoices:            invoices,
		directory:           directory,
		invalidator:         invalidator,
		log:                 log.With().Str("component", "settlement").Logger(),
		paymentCategoryName: paymentCategoryName,
		now:                 time.Now,
	}
}

type SetPaymentStatusRequest struct {
	OwnerID     string
	CardID      string
	Period      string
	Status      models.PaymentStatus
	PaymentDate *time.Time
}

type SettlementResult struct {
	InvoiceID        string               `json:"invoice_id"`
	Status           models.PaymentStatus `json:"status"`
	SettledEntries   int64                `json:"settled_entries"`
	OwnerShare       int64                `json:"owner_share"`
	SyntheticEntryID string               `json:"synthetic_entry_id,omitempty"`
	SkippedReason    string               `json:"skipped_reason,omitempty"`
}

func (s *SettlementService) SetPaymentStatus(ctx context.Context, req SetPaymentStatusRequest) (SettlementResult, error) {
	if !period.Valid(req.Period) {
		return SettlementResult{}, ErrInvalidPeriod
	}
	if !req.Status.Valid() {
		return SettlementResult{}, ErrInvalidStatus
	}
	paid := req.Status == models.PaymentPaid
	var result SettlementResult
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		result = SettlementResult{Status: req.Status}
		card, err := s.directory.GetCard(ctx, tx, req.OwnerID, req.CardID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrCardNotFound
		}
		if err != nil {
			return err
		}

		var paidAt *time.Time
		if paid {
			date := s.paymentDate(req.PaymentDate)
			paidAt = &date
		}
		invoice, err := s.invoices.Upsert(ctx, tx, uuid.NewString(), req.OwnerID, card.ID, req.Period, req.Status, paidAt)
		if err != nil {
			return err
		}
		result.InvoiceID = invoice.ID

		result.SettledEntries, err = s.entries.SetSettledForInvoice(ctx, tx, req.OwnerID, card.ID, req.Period, paid)
		if err != nil {
			return err
		}

		key := store.SyntheticKey{Kind: models.SyntheticInvoiceSettlement, CardID: card.ID, Period: req.Period}
		existing, err := s.entries.FindSynthetic(ctx, tx, req.OwnerID, key)
		found := err == nil
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		// Every path that ends without a funding entry drops the one a
		// previous payment left behind.
		dropStale := func() error {
			if !found {
				return nil
			}
			_, err := s.entries.Delete(ctx, tx, req.OwnerID, existing.ID)
			return err
		}
		skip := func(reason string) error {
			result.SkippedReason = reason
			return dropStale()
		}

		if !paid {
			return dropStale()
		}

		share, err := s.entries.OwnerShare(ctx, tx, req.OwnerID, card.ID, req.Period)
		if err != nil {
			return err
		}
		result.OwnerShare = share
		if share == 0 {
			return skip(SkipNoOwnerShare)
		}
		if card.FundingAccountID == nil {
			return skip(SkipNoFundingAccount)
		}

		payer, err := s.directory.FindOwnerPayer(ctx, tx, req.OwnerID)
		if errors.Is(err, sql.ErrNoRows) {
			return skip(SkipOwnerPayerMissing)
		}
		if err != nil {
			return err
		}
		category, err := s.directory.FindCategoryByName(ctx, tx, req.OwnerID, s.paymentCategoryName)
		if errors.Is(err, sql.ErrNoRows) {
			return skip(SkipPaymentCategoryMissing)
		}
		if err != nil {
			return err
		}

		date := *paidAt
		if found {
			if err := s.entries.UpdateAmountAndDate(ctx, tx, req.OwnerID, existing.ID, -share, date); err != nil {
				return err
			}
			result.SyntheticEntryID = existing.ID
			return nil
		}
		entry := models.LedgerEntry{
			ID:              syntheticEntryID(req.OwnerID, key),
			OwnerID:         req.OwnerID,
			Name:            fmt.Sprintf("%s invoice payment", card.Name),
			Amount:          -share,
			PurchaseDate:    date,
			Period:          req.Period,
			TransactionType: models.TransactionExpense,
			Condition:       models.ConditionSingle,
			PaymentMethod:   "account_debit",
			Note:            stringPtr(fmt.Sprintf("Card invoice %s settled", req.Period)),
			IsSettled:       true,
			AccountID:       card.FundingAccountID,
			CategoryID:      &category.ID,
			PayerID:         &payer.ID,
			SyntheticKind:   syntheticKindPtr(key.Kind),
			SyntheticCardID: &card.ID,
		}
		if err := s.entries.Insert(ctx, tx, entry); err != nil {
			if db.IsUniqueViolation(err) {
				return ErrSettlementConflict
			}
			return err
		}
		result.SyntheticEntryID = entry.ID
		return nil
	})
	if err != nil {
		return SettlementResult{}, err
	}
	if result.SkippedReason != "" && result.SkippedReason != SkipNoOwnerShare {
		s.log.Warn().
			Str("owner_id", req.OwnerID).
			Str("card_id", req.CardID).
			Str("period", req.Period).
			Str("reason", result.SkippedReason).
			Msg("invoice paid without funding entry")
	}
	s.invalidator.Invalidate(req.OwnerID, invalidation.Event{
		Scopes:     []invalidation.Scope{invalidation.ScopeInvoices, invalidation.ScopeEntries},
		Period:     req.Period,
		ResourceID: req.CardID,
	})
	return result, nil
}

func (s *SettlementService) SetPaymentDate(ctx context.Context, ownerID, cardID, invoicePeriod string, date time.Time) error {
	if !period.Valid(invoicePeriod) {
		return ErrInvalidPeriod
	}
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		card, err := s.directory.GetCard(ctx, tx, ownerID, cardID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrCardNotFound
		}
		if err != nil {
			return err
		}
		key := store.SyntheticKey{Kind: models.SyntheticInvoiceSettlement, CardID: card.ID, Period: invoicePeriod}
		existing, err := s.entries.FindSynthetic(ctx, tx, ownerID, key)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrSettlementEntryNotFound
		}
		if err != nil {
			return err
		}
		date = date.UTC()
		updated, err := s.entries.UpdateDate(ctx, tx, ownerID, existing.ID, date)
		if err != nil {
			return err
		}
		if updated == 0 {
			return ErrSettlementEntryNotFound
		}
		_, err = s.invoices.SetPaidAt(ctx, tx, ownerID, card.ID, invoicePeriod, date)
		return err
	})
	if err != nil {
		return err
	}
	s.invalidator.Invalidate(ownerID, invalidation.Event{
		Scopes:     []invalidation.Scope{invalidation.ScopeInvoices, invalidation.ScopeEntries},
		Period:     invoicePeriod,
		ResourceID: cardID,
	})
	return nil
}

type InvoiceSummary struct {
	CardID         string               `json:"card_id"`
	Period         string               `json:"period"`
	Status         models.PaymentStatus `json:"status"`
	PaidAt         *time.Time           `json:"paid_at,omitempty"`
	EntryCount     int                  `json:"entry_count"`
	Total          int64                `json:"total"`
	OwnerShare     int64                `json:"owner_share"`
	SyntheticEntry *models.LedgerEntry  `json:"synthetic_entry,omitempty"`
}

// InvoiceSummary reads the invoice state in one snapshot. An invoice that was
// never toggled reports pending.
func (s *SettlementService) InvoiceSummary(ctx context.Context, ownerID, cardID, invoicePeriod string) (InvoiceSummary, error) {
	if !period.Valid(invoicePeriod) {
		return InvoiceSummary{}, ErrInvalidPeriod
	}
	var summary InvoiceSummary
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		summary = InvoiceSummary{CardID: cardID, Period: invoicePeriod, Status: models.PaymentPending}
		if _, err := s.directory.GetCard(ctx, tx, ownerID, cardID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrCardNotFound
			}
			return err
		}
		invoice, err := s.invoices.Get(ctx, tx, ownerID, cardID, invoicePeriod)
		switch {
		case err == nil:
			summary.Status = invoice.PaymentStatus
			summary.PaidAt = invoice.PaidAt
		case !errors.Is(err, sql.ErrNoRows):
			return err
		}
		totals, err := s.entries.InvoiceTotals(ctx, tx, ownerID, cardID, invoicePeriod)
		if err != nil {
			return err
		}
		summary.EntryCount = totals.EntryCount
		summary.Total = totals.Total
		summary.OwnerShare, err = s.entries.OwnerShare(ctx, tx, ownerID, cardID, invoicePeriod)
		if err != nil {
			return err
		}
		synthetic, err := s.entries.FindSynthetic(ctx, tx, ownerID, store.SyntheticKey{Kind: models.SyntheticInvoiceSettlement, CardID: cardID, Period: invoicePeriod})
		switch {
		case err == nil:
			summary.SyntheticEntry = &synthetic
		case !errors.Is(err, sql.ErrNoRows):
			return err
		}
		return nil
	})
	return summary, err
}

func (s *SettlementService) paymentDate(requested *time.Time) time.Time {
	if requested != nil {
		return requested.UTC()
	}
	return s.now().UTC()
}
