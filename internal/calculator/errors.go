package calculator

import (
	"errors"
	"fmt"
)

// Sentinel errors wrapped by ValidationError. Callers match them with errors.Is.
var (
	ErrNoServicesSelected   = errors.New("at least one service must be selected")
	ErrTooManyServices      = errors.New("too many services in one entry")
	ErrServiceNotAllowed    = errors.New("service not allowed for assistants")
	ErrMissingDoctor        = errors.New("practitioner is required")
	ErrMissingPatient       = errors.New("patient document id is required")
	ErrMissingPaymentAmount = errors.New("payment method selected without an amount")
	ErrMissingDepositMethod = errors.New("deposit requires a payment method")
	ErrMissingAccount       = errors.New("transfer requires an account")
	ErrMissingCreditHolder  = errors.New("credit payment requires the credit holder name")
	ErrMissingCreditAmount  = errors.New("credit payment requires a positive financed amount")
	ErrNegativeAmount       = errors.New("amount cannot be negative")
	ErrRecordClosed         = errors.New("record is already fully paid")
	ErrInvalidDateRange     = errors.New("start date is after end date")
	ErrDuplicateService     = errors.New("service selected more than once")
	ErrInvalidFraction      = errors.New("payout fraction must be between 0 and 1")
)

// ValidationError rejects an operation before any state changes.
type ValidationError struct {
	Err     error
	Details string
}

func (e *ValidationError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Details)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(err error, format string, args ...any) *ValidationError {
	return &ValidationError{Err: err, Details: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a selected service missing from the catalog.
// Valuation aborts on it rather than skipping the line.
type NotFoundError struct {
	Service string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("service %q not found in catalog", e.Service)
}
