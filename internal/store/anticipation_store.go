package store

import (
	"context"

	"ledger/internal/models"
)

type AnticipationStore struct {
	db DB
}

func NewAnticipationStore(db DB) *AnticipationStore {
	return &AnticipationStore{db: db}
}

const anticipationColumns = `
	id, owner_id, series_id, anticipation_period, anticipation_date, anticipated_installment_ids,
	total_amount, installment_count, discount, consolidated_entry_id, payer_id, category_id, note, created_at
`

func (s *AnticipationStore) Create(ctx context.Context, tx Execer, a models.Anticipation) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO anticipations (
			id, owner_id, series_id, anticipation_period, anticipation_date, anticipated_installment_ids,
			total_amount, installment_count, discount, consolidated_entry_id, payer_id, category_id, note
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		a.ID, a.OwnerID, a.SeriesID, a.AnticipationPeriod, a.AnticipationDate, a.AnticipatedInstallmentIDs,
		a.TotalAmount, a.InstallmentCount, a.Discount, a.ConsolidatedEntryID, a.PayerID, a.CategoryID, a.Note,
	)
	return err
}

func (s *AnticipationStore) GetForUpdate(ctx context.Context, tx Getter, ownerID, anticipationID string) (models.Anticipation, error) {
	var row models.Anticipation
	err := tx.GetContext(ctx, &row, `
		SELECT `+anticipationColumns+`
		FROM anticipations
		WHERE owner_id = $1 AND id = $2
		FOR UPDATE
	`, ownerID, anticipationID)
	return row, err
}

func (s *AnticipationStore) ListBySeries(ctx context.Context, ownerID, seriesID string) ([]models.Anticipation, error) {
	var rows []models.Anticipation
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+anticipationColumns+`
		FROM anticipations
		WHERE owner_id = $1 AND series_id = $2
		ORDER BY created_at DESC
	`, ownerID, seriesID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *AnticipationStore) Delete(ctx context.Context, tx Execer, ownerID, anticipationID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM anticipations WHERE owner_id = $1 AND id = $2`, ownerID, anticipationID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
