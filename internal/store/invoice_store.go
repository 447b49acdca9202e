package store

import (
	"context"
	"time"

	"ledger/internal/models"
)

type InvoiceStore struct {
	db DB
}

func NewInvoiceStore(db DB) *InvoiceStore {
	return &InvoiceStore{db: db}
}

// Upsert creates the (card, period) invoice on first use and sets its status.
func (s *InvoiceStore) Upsert(ctx context.Context, tx Getter, id, ownerID, cardID, period string, status models.PaymentStatus, paidAt *time.Time) (models.Invoice, error) {
	var row models.Invoice
	err := tx.GetContext(ctx, &row, `
		INSERT INTO invoices (id, owner_id, card_id, period, payment_status, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (owner_id, card_id, period)
		DO UPDATE SET payment_status = EXCLUDED.payment_status, paid_at = EXCLUDED.paid_at, updated_at = NOW()
		RETURNING id, owner_id, card_id, period, payment_status, paid_at
	`, id, ownerID, cardID, period, status, paidAt)
	return row, err
}

func (s *InvoiceStore) Get(ctx context.Context, q Getter, ownerID, cardID, period string) (models.Invoice, error) {
	var row models.Invoice
	err := q.GetContext(ctx, &row, `
		SELECT id, owner_id, card_id, period, payment_status, paid_at
		FROM invoices
		WHERE owner_id = $1 AND card_id = $2 AND period = $3
	`, ownerID, cardID, period)
	return row, err
}

// SetPaidAt moves the payment date of a paid invoice. Pending invoices are left alone.
func (s *InvoiceStore) SetPaidAt(ctx context.Context, tx Execer, ownerID, cardID, period string, paidAt time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE invoices
		SET paid_at = $1, updated_at = NOW()
		WHERE owner_id = $2 AND card_id = $3 AND period = $4 AND payment_status = $5
	`, paidAt, ownerID, cardID, period, models.PaymentPaid)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
