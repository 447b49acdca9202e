package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ledger/internal/db"
	"ledger/internal/invalidation"
	"ledger/internal/models"
	"ledger/internal/period"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

type TransferService struct {
	txRunner             db.TxRunner
	entries              EntryStore
	directory            DirectoryStore
	invalidator          Invalidator
	log                  zerolog.Logger
	transferCategoryName string
}

func NewTransferService(txRunner db.TxRunner, entries EntryStore, directory DirectoryStore, invalidator Invalidator, log zerolog.Logger, transferCategoryName string) *TransferService {
	return &TransferService{
		txRunner:             txRunner,
		entries:              entries,
		directory:            directory,
		invalidator:          invalidator,
		log:                  log.With().Str("component", "transfer").Logger(),
		transferCategoryName: transferCategoryName,
	}
}

type TransferRequest struct {
	OwnerID       string
	FromAccountID string
	ToAccountID   string
	Amount        int64
	Date          time.Time
	Period        string
}

func (s *TransferService) Transfer(ctx context.Context, req TransferRequest) (string, error) {
	if req.FromAccountID == req.ToAccountID {
		return "", ErrSameAccountTransfer
	}
	if req.Amount <= 0 {
		return "", ErrInvalidAmount
	}
	if !period.Valid(req.Period) {
		return "", ErrInvalidPeriod
	}
	var transferID string
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		from, err := s.directory.GetAccount(ctx, tx, req.OwnerID, req.FromAccountID)
		if err != nil {
			return notFoundAs(err, ErrAccountNotFound)
		}
		to, err := s.directory.GetAccount(ctx, tx, req.OwnerID, req.ToAccountID)
		if err != nil {
			return notFoundAs(err, ErrAccountNotFound)
		}
		category, err := s.directory.FindCategoryByName(ctx, tx, req.OwnerID, s.transferCategoryName)
		if err != nil {
			return notFoundAs(err, ErrTransferCategoryMissing)
		}
		payer, err := s.directory.FindOwnerPayer(ctx, tx, req.OwnerID)
		if err != nil {
			return notFoundAs(err, ErrOwnerPayerMissing)
		}

		transferID = uuid.NewString()
		date := req.Date.UTC()
		leg := func(account models.Account, amount int64, name string) models.LedgerEntry {
			return models.LedgerEntry{
				ID:              uuid.NewString(),
				OwnerID:         req.OwnerID,
				Name:            name,
				Amount:          amount,
				PurchaseDate:    date,
				Period:          req.Period,
				TransactionType: models.TransactionTransfer,
				Condition:       models.ConditionSingle,
				PaymentMethod:   "transfer",
				IsSettled:       true,
				TransferID:      &transferID,
				AccountID:       stringPtr(account.ID),
				CategoryID:      &category.ID,
				PayerID:         &payer.ID,
			}
		}
		entries := []models.LedgerEntry{
			leg(from, -req.Amount, "Transfer to "+to.Name),
			leg(to, req.Amount, "Transfer from "+from.Name),
		}
		if !ensureBalanced(entries) {
			return invariantViolation(s.log, "transfer", req.OwnerID, "transfer legs are not balanced", map[string]any{
				"transfer_id": transferID,
				"amount":      req.Amount,
			})
		}
		return s.entries.InsertEntries(ctx, tx, entries)
	})
	if err != nil {
		return "", err
	}
	s.invalidator.Invalidate(req.OwnerID, invalidation.Event{
		Scopes:     []invalidation.Scope{invalidation.ScopeEntries},
		Period:     req.Period,
		ResourceID: transferID,
	})
	return transferID, nil
}

func notFoundAs(err, target error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return target
	}
	return err
}
