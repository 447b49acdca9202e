package services

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Error classes. Every error a service returns on purpose wraps one of these,
// so callers branch with errors.Is on the class.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrInvariant  = errors.New("invariant violation")
)

var (
	ErrInvalidPeriod        = fmt.Errorf("%w: period must be YYYY-MM", ErrValidation)
	ErrInvalidAmount        = fmt.Errorf("%w: amount must be positive", ErrValidation)
	ErrSameAccountTransfer  = fmt.Errorf("%w: cannot transfer to same account", ErrValidation)
	ErrNoInstallments       = fmt.Errorf("%w: no installments selected", ErrValidation)
	ErrDuplicateInstallment = fmt.Errorf("%w: installment selected more than once", ErrValidation)
	ErrNegativeDiscount     = fmt.Errorf("%w: discount cannot be negative", ErrValidation)
	ErrDiscountExceedsTotal = fmt.Errorf("%w: discount exceeds anticipated total", ErrValidation)
	ErrInvalidStatus        = fmt.Errorf("%w: status must be pending or paid", ErrValidation)

	ErrSeriesNotFound          = fmt.Errorf("%w: series", ErrNotFound)
	ErrAnticipationNotFound    = fmt.Errorf("%w: anticipation", ErrNotFound)
	ErrCardNotFound            = fmt.Errorf("%w: card", ErrNotFound)
	ErrAccountNotFound         = fmt.Errorf("%w: account", ErrNotFound)
	ErrPayerNotFound           = fmt.Errorf("%w: payer", ErrNotFound)
	ErrCategoryNotFound        = fmt.Errorf("%w: category", ErrNotFound)
	ErrSettlementEntryNotFound = fmt.Errorf("%w: settlement entry", ErrNotFound)
	ErrTransferCategoryMissing = fmt.Errorf("%w: transfer category", ErrNotFound)
	ErrOwnerPayerMissing       = fmt.Errorf("%w: owner payer", ErrNotFound)

	ErrEligibleSetChanged  = fmt.Errorf("%w: installments changed, reload and retry", ErrConflict)
	ErrAnticipationSettled = fmt.Errorf("%w: unsettle the anticipation before cancelling", ErrConflict)
	ErrSettlementConflict  = fmt.Errorf("%w: settlement entry written concurrently", ErrConflict)
)

// InvariantError aborts the transaction it is returned from. Only Op reaches
// the caller's message; Detail stays in the logs.
type InvariantError struct {
	Op     string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvariant.Error(), e.Op, e.Detail)
}

func (e *InvariantError) Unwrap() error {
	return ErrInvariant
}

func invariantViolation(log zerolog.Logger, op, ownerID, detail string, fields map[string]any) error {
	log.Error().
		Str("op", op).
		Str("owner_id", ownerID).
		Fields(fields).
		Msg(detail)
	return &InvariantError{Op: op, Detail: detail}
}
