package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ledger/internal/db"
	"ledger/internal/invalidation"
	"ledger/internal/models"
	"ledger/internal/money"
	"ledger/internal/period"
	"ledger/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

type AnticipationStore interface {
	Create(ctx context.Context, tx store.Execer, a models.Anticipation) error
	GetForUpdate(ctx context.Context, tx store.Getter, ownerID, anticipationID string) (models.Anticipation, error)
	ListBySeries(ctx context.Context, ownerID, seriesID string) ([]models.Anticipation, error)
	Delete(ctx context.Context, tx store.Execer, ownerID, anticipationID string) (int64, error)
}

type AnticipationService struct {
	txRunner      db.TxRunner
	entries       EntryStore
	anticipations AnticipationStore
	directory     DirectoryStore
	invalidator   Invalidator
	log           zerolog.Logger
	currency      string
	now           func() time.Time
}

func NewAnticipationService(txRunner db.TxRunner, entries EntryStore, anticipations AnticipationStore, directory DirectoryStore, invalidator Invalidator, log zerolog.Logger, currency string) *AnticipationService {
	return &AnticipationService{
		txRunner:      txRunner,
		entries:       entries,
		anticipations: anticipations,
		directory:     directory,
		invalidator:   invalidator,
		log:           log.With().Str("component", "anticipation").Logger(),
		currency:      currency,
		now:           time.Now,
	}
}

func (s *AnticipationService) ListEligibleInstallments(ctx context.Context, ownerID, seriesID string) ([]models.LedgerEntry, error) {
	if err := s.requireSeries(ctx, ownerID, seriesID); err != nil {
		return nil, err
	}
	return s.entries.ListEligibleInstallments(ctx, ownerID, seriesID)
}

// ListBySeries returns the anticipations made on a series, newest first.
func (s *AnticipationService) ListBySeries(ctx context.Context, ownerID, seriesID string) ([]models.Anticipation, error) {
	if err := s.requireSeries(ctx, ownerID, seriesID); err != nil {
		return nil, err
	}
	return s.anticipations.ListBySeries(ctx, ownerID, seriesID)
}

type CreateAnticipationRequest struct {
	OwnerID            string
	SeriesID           string
	InstallmentIDs     []string
	AnticipationPeriod string
	Discount           int64
	PayerID            *string
	CategoryID         *string
	Note               *string
}

func (s *AnticipationService) Create(ctx context.Context, req CreateAnticipationRequest) (string, error) {
	if len(req.InstallmentIDs) == 0 {
		return "", ErrNoInstallments
	}
	requested := make(map[string]struct{}, len(req.InstallmentIDs))
	for _, id := range req.InstallmentIDs {
		if _, dup := requested[id]; dup {
			return "", ErrDuplicateInstallment
		}
		requested[id] = struct{}{}
	}
	if !period.Valid(req.AnticipationPeriod) {
		return "", ErrInvalidPeriod
	}
	if req.Discount < 0 {
		return "", ErrNegativeDiscount
	}
	if err := s.requireSeries(ctx, req.OwnerID, req.SeriesID); err != nil {
		return "", err
	}

	var anticipationID string
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.resolveOverrides(ctx, tx, req); err != nil {
			return err
		}
		eligible, err := s.entries.LockEligibleInstallments(ctx, tx, req.OwnerID, req.SeriesID)
		if err != nil {
			return err
		}
		selected := make([]models.LedgerEntry, 0, len(requested))
		for _, entry := range eligible {
			if _, ok := requested[entry.ID]; ok {
				selected = append(selected, entry)
			}
		}
		if len(selected) != len(requested) {
			return ErrEligibleSetChanged
		}

		total := sumAmounts(selected)
		if req.Discount > money.Abs(total) {
			return ErrDiscountExceedsTotal
		}
		final := applyDiscount(total, req.Discount)
		if money.Abs(final)+req.Discount != money.Abs(total) {
			return invariantViolation(s.log, "anticipation.create", req.OwnerID, "discounted amount does not conserve total", map[string]any{
				"series_id": req.SeriesID,
				"total":     total,
				"discount":  req.Discount,
				"final":     final,
			})
		}

		now := s.now().UTC()
		anticipationID = uuid.NewString()
		ids := make([]string, 0, len(selected))
		for _, entry := range selected {
			ids = append(ids, entry.ID)
		}
		first := selected[0]
		consolidated := models.LedgerEntry{
			ID:              uuid.NewString(),
			OwnerID:         req.OwnerID,
			Name:            consolidatedName(first, len(selected)),
			Amount:          final,
			PurchaseDate:    now,
			Period:          req.AnticipationPeriod,
			TransactionType: first.TransactionType,
			Condition:       models.ConditionSingle,
			PaymentMethod:   first.PaymentMethod,
			Note:            req.Note,
			IsSettled:       false,
			AnticipationID:  &anticipationID,
			AccountID:       first.AccountID,
			CardID:          first.CardID,
			CategoryID:      first.CategoryID,
			PayerID:         first.PayerID,
		}
		if req.PayerID != nil {
			consolidated.PayerID = req.PayerID
		}
		if req.CategoryID != nil {
			consolidated.CategoryID = req.CategoryID
		}
		if consolidated.Note == nil {
			consolidated.Note = stringPtr(s.generatedNote(selected, total, req.Discount))
		}
		if err := s.entries.Insert(ctx, tx, consolidated); err != nil {
			return err
		}
		if err := s.anticipations.Create(ctx, tx, models.Anticipation{
			ID:                        anticipationID,
			OwnerID:                   req.OwnerID,
			SeriesID:                  req.SeriesID,
			AnticipationPeriod:        req.AnticipationPeriod,
			AnticipationDate:          now,
			AnticipatedInstallmentIDs: ids,
			TotalAmount:               total,
			InstallmentCount:          len(selected),
			Discount:                  req.Discount,
			ConsolidatedEntryID:       consolidated.ID,
			PayerID:                   req.PayerID,
			CategoryID:                req.CategoryID,
			Note:                      req.Note,
		}); err != nil {
			return err
		}
		marked, err := s.entries.MarkAnticipated(ctx, tx, req.OwnerID, anticipationID, ids)
		if err != nil {
			return err
		}
		if marked != int64(len(ids)) {
			return ErrEligibleSetChanged
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	s.invalidator.Invalidate(req.OwnerID, invalidation.Event{
		Scopes:     []invalidation.Scope{invalidation.ScopeInstallments, invalidation.ScopeAnticipations, invalidation.ScopeEntries},
		Period:     req.AnticipationPeriod,
		ResourceID: anticipationID,
	})
	return anticipationID, nil
}

func (s *AnticipationService) Cancel(ctx context.Context, ownerID, anticipationID string) error {
	var anticipationPeriod string
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		anticipation, err := s.anticipations.GetForUpdate(ctx, tx, ownerID, anticipationID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrAnticipationNotFound
		}
		if err != nil {
			return err
		}
		anticipationPeriod = anticipation.AnticipationPeriod
		consolidated, err := s.entries.GetByID(ctx, tx, ownerID, anticipation.ConsolidatedEntryID)
		if errors.Is(err, sql.ErrNoRows) {
			return invariantViolation(s.log, "anticipation.cancel", ownerID, "consolidated entry missing", map[string]any{
				"anticipation_id": anticipationID,
				"entry_id":        anticipation.ConsolidatedEntryID,
			})
		}
		if err != nil {
			return err
		}
		if consolidated.IsSettled {
			return ErrAnticipationSettled
		}
		if anticipation.InstallmentCount != len(anticipation.AnticipatedInstallmentIDs) {
			return invariantViolation(s.log, "anticipation.cancel", ownerID, "installment count does not match anticipated ids", map[string]any{
				"anticipation_id": anticipationID,
				"count":           anticipation.InstallmentCount,
				"ids":             len(anticipation.AnticipatedInstallmentIDs),
			})
		}

		per := money.SplitEven(anticipation.TotalAmount, anticipation.InstallmentCount)
		restored, err := s.entries.RestoreInstallments(ctx, tx, ownerID, anticipationID, anticipation.AnticipatedInstallmentIDs, per)
		if err != nil {
			return err
		}
		if restored != int64(anticipation.InstallmentCount) {
			return invariantViolation(s.log, "anticipation.cancel", ownerID, "not every anticipated installment could be restored", map[string]any{
				"anticipation_id": anticipationID,
				"expected":        anticipation.InstallmentCount,
				"restored":        restored,
			})
		}
		if _, err := s.anticipations.Delete(ctx, tx, ownerID, anticipationID); err != nil {
			return err
		}
		_, err = s.entries.Delete(ctx, tx, ownerID, consolidated.ID)
		return err
	})
	if err != nil {
		return err
	}
	s.invalidator.Invalidate(ownerID, invalidation.Event{
		Scopes:     []invalidation.Scope{invalidation.ScopeInstallments, invalidation.ScopeAnticipations, invalidation.ScopeEntries},
		Period:     anticipationPeriod,
		ResourceID: anticipationID,
	})
	return nil
}

// resolveOverrides rejects payer and category ids the owner does not hold.
func (s *AnticipationService) resolveOverrides(ctx context.Context, tx store.Getter, req CreateAnticipationRequest) error {
	if req.PayerID != nil {
		if _, err := s.directory.GetPayer(ctx, tx, req.OwnerID, *req.PayerID); err != nil {
			return notFoundAs(err, ErrPayerNotFound)
		}
	}
	if req.CategoryID != nil {
		if _, err := s.directory.GetCategory(ctx, tx, req.OwnerID, *req.CategoryID); err != nil {
			return notFoundAs(err, ErrCategoryNotFound)
		}
	}
	return nil
}

func (s *AnticipationService) requireSeries(ctx context.Context, ownerID, seriesID string) error {
	exists, err := s.entries.SeriesExists(ctx, ownerID, seriesID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrSeriesNotFound
	}
	return nil
}

// applyDiscount shrinks the magnitude of total by discount, whatever its sign.
func applyDiscount(total, discount int64) int64 {
	if total < 0 {
		return total + discount
	}
	return total - discount
}

func consolidatedName(first models.LedgerEntry, count int) string {
	return fmt.Sprintf("%s (%d installments anticipated)", first.Name, count)
}

func (s *AnticipationService) generatedNote(selected []models.LedgerEntry, total, discount int64) string {
	numbers := make([]string, 0, len(selected))
	for _, entry := range selected {
		if entry.CurrentInstallment != nil {
			numbers = append(numbers, strconv.Itoa(*entry.CurrentInstallment))
		}
	}
	note := "Anticipated installments"
	if len(numbers) > 0 {
		note += " " + strings.Join(numbers, ", ")
		if count := selected[0].InstallmentCount; count != nil {
			note += fmt.Sprintf(" of %d", *count)
		}
	}
	note += ". Original total " + money.Display(money.Abs(total), s.currency)
	if discount > 0 {
		note += ", discount " + money.Display(discount, s.currency)
	}
	return note + "."
}
