package store

import (
	"context"

	"ledger/internal/models"
)

// DirectoryStore reads accounts, cards, categories and payers. The engine
// never writes to them.
type DirectoryStore struct {
	db DB
}

func NewDirectoryStore(db DB) *DirectoryStore {
	return &DirectoryStore{db: db}
}

func (s *DirectoryStore) GetAccount(ctx context.Context, q Getter, ownerID, accountID string) (models.Account, error) {
	var row models.Account
	err := q.GetContext(ctx, &row, `
		SELECT id, owner_id, name
		FROM accounts
		WHERE owner_id = $1 AND id = $2
	`, ownerID, accountID)
	return row, err
}

func (s *DirectoryStore) GetCard(ctx context.Context, q Getter, ownerID, cardID string) (models.Card, error) {
	var row models.Card
	err := q.GetContext(ctx, &row, `
		SELECT id, owner_id, name, funding_account_id
		FROM cards
		WHERE owner_id = $1 AND id = $2
	`, ownerID, cardID)
	return row, err
}

func (s *DirectoryStore) GetCategory(ctx context.Context, q Getter, ownerID, categoryID string) (models.Category, error) {
	var row models.Category
	err := q.GetContext(ctx, &row, `
		SELECT id, owner_id, name
		FROM categories
		WHERE owner_id = $1 AND id = $2
	`, ownerID, categoryID)
	return row, err
}

func (s *DirectoryStore) FindCategoryByName(ctx context.Context, q Getter, ownerID, name string) (models.Category, error) {
	var row models.Category
	err := q.GetContext(ctx, &row, `
		SELECT id, owner_id, name
		FROM categories
		WHERE owner_id = $1 AND LOWER(name) = LOWER($2)
		LIMIT 1
	`, ownerID, name)
	return row, err
}

func (s *DirectoryStore) FindOwnerPayer(ctx context.Context, q Getter, ownerID string) (models.Payer, error) {
	var row models.Payer
	err := q.GetContext(ctx, &row, `
		SELECT id, owner_id, name, role
		FROM payers
		WHERE owner_id = $1 AND role = $2
		LIMIT 1
	`, ownerID, models.PayerRoleOwner)
	return row, err
}

func (s *DirectoryStore) GetPayer(ctx context.Context, q Getter, ownerID, payerID string) (models.Payer, error) {
	var row models.Payer
	err := q.GetContext(ctx, &row, `
		SELECT id, owner_id, name, role
		FROM payers
		WHERE owner_id = $1 AND id = $2
	`, ownerID, payerID)
	return row, err
}
