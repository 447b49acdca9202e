package services

import (
	"context"
	"time"

	"ledger/internal/invalidation"
	"ledger/internal/models"
	"ledger/internal/store"

	"github.com/google/uuid"
)

type EntryStore interface {
	Insert(ctx context.Context, tx store.Execer, entry models.LedgerEntry) error
	InsertEntries(ctx context.Context, tx store.Execer, entries []models.LedgerEntry) error
	GetByID(ctx context.Context, q store.Getter, ownerID, entryID string) (models.LedgerEntry, error)
	SeriesExists(ctx context.Context, ownerID, seriesID string) (bool, error)
	ListEligibleInstallments(ctx context.Context, ownerID, seriesID string) ([]models.LedgerEntry, error)
	LockEligibleInstallments(ctx context.Context, tx store.Selecter, ownerID, seriesID string) ([]models.LedgerEntry, error)
	MarkAnticipated(ctx context.Context, tx store.Execer, ownerID, anticipationID string, entryIDs []string) (int64, error)
	RestoreInstallments(ctx context.Context, tx store.Execer, ownerID, anticipationID string, entryIDs []string, amount int64) (int64, error)
	Delete(ctx context.Context, tx store.Execer, ownerID, entryID string) (int64, error)
	SetSettledForInvoice(ctx context.Context, tx store.Execer, ownerID, cardID, period string, settled bool) (int64, error)
	OwnerShare(ctx context.Context, q store.Getter, ownerID, cardID, period string) (int64, error)
	InvoiceTotals(ctx context.Context, q store.Getter, ownerID, cardID, period string) (store.InvoiceTotals, error)
	FindSynthetic(ctx context.Context, q store.Getter, ownerID string, key store.SyntheticKey) (models.LedgerEntry, error)
	UpdateAmountAndDate(ctx context.Context, tx store.Execer, ownerID, entryID string, amount int64, date time.Time) error
	UpdateDate(ctx context.Context, tx store.Execer, ownerID, entryID string, date time.Time) (int64, error)
}

type DirectoryStore interface {
	GetAccount(ctx context.Context, q store.Getter, ownerID, accountID string) (models.Account, error)
	GetCard(ctx context.Context, q store.Getter, ownerID, cardID string) (models.Card, error)
	GetPayer(ctx context.Context, q store.Getter, ownerID, payerID string) (models.Payer, error)
	GetCategory(ctx context.Context, q store.Getter, ownerID, categoryID string) (models.Category, error)
	FindCategoryByName(ctx context.Context, q store.Getter, ownerID, name string) (models.Category, error)
	FindOwnerPayer(ctx context.Context, q store.Getter, ownerID string) (models.Payer, error)
}

// Invalidator is told about every committed mutation. Implementations must
// return promptly; delivery failures are theirs to log.
type Invalidator interface {
	Invalidate(ownerID string, event invalidation.Event)
}

var syntheticNamespace = uuid.MustParse("5b0f8a54-8f2e-4c4b-9a57-7c1f0f6b2d10")

// syntheticEntryID is stable per key, so a racing second insert collides on
// the primary key as well as on the synthetic key index.
func syntheticEntryID(ownerID string, key store.SyntheticKey) string {
	name := ownerID + "|" + string(key.Kind) + "|" + key.CardID + "|" + key.Period
	return uuid.NewSHA1(syntheticNamespace, []byte(name)).String()
}

func ensureBalanced(entries []models.LedgerEntry) bool {
	return sumAmounts(entries) == 0
}

func sumAmounts(entries []models.LedgerEntry) int64 {
	var sum int64
	for _, entry := range entries {
		sum += entry.Amount
	}
	return sum
}

func stringPtr(value string) *string {
	return &value
}

func syntheticKindPtr(kind models.SyntheticKind) *models.SyntheticKind {
	return &kind
}
