package store

import (
	"context"
	"time"

	"ledger/internal/models"

	"github.com/lib/pq"
)

type EntryStore struct {
	db DB
}

func NewEntryStore(db DB) *EntryStore {
	return &EntryStore{db: db}
}

// SyntheticKey identifies an engine-generated entry without looking at user text.
type SyntheticKey struct {
	Kind   models.SyntheticKind
	CardID string
	Period string
}

const entryColumns = `
	id, owner_id, name, amount, purchase_date, due_date, period, transaction_type, condition,
	payment_method, note, is_settled, series_id, installment_count, current_installment,
	is_anticipated, anticipation_id, transfer_id, account_id, card_id, category_id, payer_id,
	synthetic_kind, synthetic_card_id, created_at
`

const eligibleInstallmentsQuery = `
	SELECT ` + entryColumns + `
	FROM ledger_entries
	WHERE owner_id = $1
	  AND series_id = $2
	  AND condition = 'installment'
	  AND is_anticipated = FALSE
	  AND is_settled = FALSE
	ORDER BY current_installment ASC
`

func (s *EntryStore) Insert(ctx context.Context, tx Execer, entry models.LedgerEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (
			id, owner_id, name, amount, purchase_date, due_date, period, transaction_type, condition,
			payment_method, note, is_settled, series_id, installment_count, current_installment,
			is_anticipated, anticipation_id, transfer_id, account_id, card_id, category_id, payer_id,
			synthetic_kind, synthetic_card_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
	`,
		entry.ID, entry.OwnerID, entry.Name, entry.Amount, entry.PurchaseDate, entry.DueDate, entry.Period,
		entry.TransactionType, entry.Condition, entry.PaymentMethod, entry.Note, entry.IsSettled,
		entry.SeriesID, entry.InstallmentCount, entry.CurrentInstallment, entry.IsAnticipated,
		entry.AnticipationID, entry.TransferID, entry.AccountID, entry.CardID, entry.CategoryID,
		entry.PayerID, entry.SyntheticKind, entry.SyntheticCardID,
	)
	return err
}

func (s *EntryStore) InsertEntries(ctx context.Context, tx Execer, entries []models.LedgerEntry) error {
	for _, entry := range entries {
		if err := s.Insert(ctx, tx, entry); err != nil {
			return err
		}
	}
	return nil
}

func (s *EntryStore) GetByID(ctx context.Context, q Getter, ownerID, entryID string) (models.LedgerEntry, error) {
	var row models.LedgerEntry
	err := q.GetContext(ctx, &row, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE owner_id = $1 AND id = $2
	`, ownerID, entryID)
	return row, err
}

func (s *EntryStore) SeriesExists(ctx context.Context, ownerID, seriesID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS(SELECT 1 FROM ledger_entries WHERE owner_id = $1 AND series_id = $2)
	`, ownerID, seriesID)
	return exists, err
}

func (s *EntryStore) ListEligibleInstallments(ctx context.Context, ownerID, seriesID string) ([]models.LedgerEntry, error) {
	var rows []models.LedgerEntry
	if err := s.db.SelectContext(ctx, &rows, eligibleInstallmentsQuery, ownerID, seriesID); err != nil {
		return nil, err
	}
	return rows, nil
}

// LockEligibleInstallments re-reads the eligible set inside tx and row-locks it.
func (s *EntryStore) LockEligibleInstallments(ctx context.Context, tx Selecter, ownerID, seriesID string) ([]models.LedgerEntry, error) {
	var rows []models.LedgerEntry
	if err := tx.SelectContext(ctx, &rows, eligibleInstallmentsQuery+" FOR UPDATE", ownerID, seriesID); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *EntryStore) MarkAnticipated(ctx context.Context, tx Execer, ownerID, anticipationID string, entryIDs []string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE ledger_entries
		SET is_anticipated = TRUE, anticipation_id = $1, amount = 0, updated_at = NOW()
		WHERE owner_id = $2 AND id = ANY($3) AND is_anticipated = FALSE
	`, anticipationID, ownerID, pq.Array(entryIDs))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *EntryStore) RestoreInstallments(ctx context.Context, tx Execer, ownerID, anticipationID string, entryIDs []string, amount int64) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE ledger_entries
		SET is_anticipated = FALSE, anticipation_id = NULL, amount = $1, updated_at = NOW()
		WHERE owner_id = $2 AND id = ANY($3) AND anticipation_id = $4
	`, amount, ownerID, pq.Array(entryIDs), anticipationID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *EntryStore) Delete(ctx context.Context, tx Execer, ownerID, entryID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM ledger_entries WHERE owner_id = $1 AND id = $2`, ownerID, entryID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *EntryStore) SetSettledForInvoice(ctx context.Context, tx Execer, ownerID, cardID, period string, settled bool) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE ledger_entries
		SET is_settled = $1, updated_at = NOW()
		WHERE owner_id = $2 AND card_id = $3 AND period = $4
	`, settled, ownerID, cardID, period)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// OwnerShare sums the magnitude of expenses on a card invoice that the owner payer is responsible for.
func (s *EntryStore) OwnerShare(ctx context.Context, q Getter, ownerID, cardID, period string) (int64, error) {
	var share int64
	err := q.GetContext(ctx, &share, `
		SELECT COALESCE(SUM(ABS(e.amount)), 0)
		FROM ledger_entries e
		JOIN payers p ON p.id = e.payer_id AND p.owner_id = e.owner_id
		WHERE e.owner_id = $1
		  AND e.card_id = $2
		  AND e.period = $3
		  AND e.transaction_type = 'expense'
		  AND p.role = $4
	`, ownerID, cardID, period, models.PayerRoleOwner)
	return share, err
}

type InvoiceTotals struct {
	EntryCount int   `db:"entry_count"`
	Total      int64 `db:"total"`
}

func (s *EntryStore) InvoiceTotals(ctx context.Context, q Getter, ownerID, cardID, period string) (InvoiceTotals, error) {
	var totals InvoiceTotals
	err := q.GetContext(ctx, &totals, `
		SELECT COUNT(1) AS entry_count, COALESCE(SUM(amount), 0) AS total
		FROM ledger_entries
		WHERE owner_id = $1 AND card_id = $2 AND period = $3
	`, ownerID, cardID, period)
	return totals, err
}

func (s *EntryStore) FindSynthetic(ctx context.Context, q Getter, ownerID string, key SyntheticKey) (models.LedgerEntry, error) {
	var row models.LedgerEntry
	err := q.GetContext(ctx, &row, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE owner_id = $1 AND synthetic_kind = $2 AND synthetic_card_id = $3 AND period = $4
	`, ownerID, key.Kind, key.CardID, key.Period)
	return row, err
}

func (s *EntryStore) UpdateAmountAndDate(ctx context.Context, tx Execer, ownerID, entryID string, amount int64, date time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE ledger_entries
		SET amount = $1, purchase_date = $2, is_settled = TRUE, updated_at = NOW()
		WHERE owner_id = $3 AND id = $4
	`, amount, date, ownerID, entryID)
	return err
}

func (s *EntryStore) UpdateDate(ctx context.Context, tx Execer, ownerID, entryID string, date time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE ledger_entries
		SET purchase_date = $1, updated_at = NOW()
		WHERE owner_id = $2 AND id = $3
	`, date, ownerID, entryID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
