package models

import (
	"time"

	"github.com/lib/pq"
)

type TransactionType string

const (
	TransactionExpense  TransactionType = "expense"
	TransactionIncome   TransactionType = "income"
	TransactionTransfer TransactionType = "transfer"
)

type Condition string

const (
	ConditionSingle      Condition = "single"
	ConditionInstallment Condition = "installment"
	ConditionRecurring   Condition = "recurring"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

func (s PaymentStatus) Valid() bool {
	return s == PaymentPending || s == PaymentPaid
}

// SyntheticKind tags entries the engine generates itself.
type SyntheticKind string

const SyntheticInvoiceSettlement SyntheticKind = "invoice_settlement"

const PayerRoleOwner = "owner"

type LedgerEntry struct {
	ID                 string          `db:"id" json:"id"`
	OwnerID            string          `db:"owner_id" json:"owner_id"`
	Name               string          `db:"name" json:"name"`
	Amount             int64           `db:"amount" json:"amount"`
	PurchaseDate       time.Time       `db:"purchase_date" json:"purchase_date"`
	DueDate            *time.Time      `db:"due_date" json:"due_date,omitempty"`
	Period             string          `db:"period" json:"period"`
	TransactionType    TransactionType `db:"transaction_type" json:"transaction_type"`
	Condition          Condition       `db:"condition" json:"condition"`
	PaymentMethod      string          `db:"payment_method" json:"payment_method"`
	Note               *string         `db:"note" json:"note,omitempty"`
	IsSettled          bool            `db:"is_settled" json:"is_settled"`
	SeriesID           *string         `db:"series_id" json:"series_id,omitempty"`
	InstallmentCount   *int            `db:"installment_count" json:"installment_count,omitempty"`
	CurrentInstallment *int            `db:"current_installment" json:"current_installment,omitempty"`
	IsAnticipated      bool            `db:"is_anticipated" json:"is_anticipated"`
	AnticipationID     *string         `db:"anticipation_id" json:"anticipation_id,omitempty"`
	TransferID         *string         `db:"transfer_id" json:"transfer_id,omitempty"`
	AccountID          *string         `db:"account_id" json:"account_id,omitempty"`
	CardID             *string         `db:"card_id" json:"card_id,omitempty"`
	CategoryID         *string         `db:"category_id" json:"category_id,omitempty"`
	PayerID            *string         `db:"payer_id" json:"payer_id,omitempty"`
	SyntheticKind      *SyntheticKind  `db:"synthetic_kind" json:"synthetic_kind,omitempty"`
	SyntheticCardID    *string         `db:"synthetic_card_id" json:"synthetic_card_id,omitempty"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
}

type Anticipation struct {
	ID                        string         `db:"id" json:"id"`
	OwnerID                   string         `db:"owner_id" json:"owner_id"`
	SeriesID                  string         `db:"series_id" json:"series_id"`
	AnticipationPeriod        string         `db:"anticipation_period" json:"anticipation_period"`
	AnticipationDate          time.Time      `db:"anticipation_date" json:"anticipation_date"`
	AnticipatedInstallmentIDs pq.StringArray `db:"anticipated_installment_ids" json:"anticipated_installment_ids"`
	TotalAmount               int64          `db:"total_amount" json:"total_amount"`
	InstallmentCount          int            `db:"installment_count" json:"installment_count"`
	Discount                  int64          `db:"discount" json:"discount"`
	ConsolidatedEntryID       string         `db:"consolidated_entry_id" json:"consolidated_entry_id"`
	PayerID                   *string        `db:"payer_id" json:"payer_id,omitempty"`
	CategoryID                *string        `db:"category_id" json:"category_id,omitempty"`
	Note                      *string        `db:"note" json:"note,omitempty"`
	CreatedAt                 time.Time      `db:"created_at" json:"created_at"`
}

type Invoice struct {
	ID            string        `db:"id" json:"id"`
	OwnerID       string        `db:"owner_id" json:"owner_id"`
	CardID        string        `db:"card_id" json:"card_id"`
	Period        string        `db:"period" json:"period"`
	PaymentStatus PaymentStatus `db:"payment_status" json:"payment_status"`
	PaidAt        *time.Time    `db:"paid_at" json:"paid_at,omitempty"`
}

type Account struct {
	ID      string `db:"id" json:"id"`
	OwnerID string `db:"owner_id" json:"owner_id"`
	Name    string `db:"name" json:"name"`
}

type Card struct {
	ID               string  `db:"id" json:"id"`
	OwnerID          string  `db:"owner_id" json:"owner_id"`
	Name             string  `db:"name" json:"name"`
	FundingAccountID *string `db:"funding_account_id" json:"funding_account_id,omitempty"`
}

type Category struct {
	ID      string `db:"id" json:"id"`
	OwnerID string `db:"owner_id" json:"owner_id"`
	Name    string `db:"name" json:"name"`
}

type Payer struct {
	ID      string `db:"id" json:"id"`
	OwnerID string `db:"owner_id" json:"owner_id"`
	Name    string `db:"name" json:"name"`
	Role    string `db:"role" json:"role"`
}
