package service

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrForbidden is returned when the caller's role may not perform an operation.
var ErrForbidden = errors.New("operation not allowed for this role")

// UpstreamError reports a failed store call. It is not retried.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func upstream(op string, err error) error {
	return &UpstreamError{Op: op, Err: err}
}

// CashDrawerError reports a cash drawer update that failed after the ledger
// update had already been persisted. The ledger result is still returned
// next to it and the drawer must be reconciled by hand.
type CashDrawerError struct {
	SiteID int64
	Delta  decimal.Decimal
	Err    error
}

func (e *CashDrawerError) Error() string {
	return fmt.Sprintf("ledger saved but cash drawer of site %d not adjusted by %s: %v", e.SiteID, e.Delta, e.Err)
}

func (e *CashDrawerError) Unwrap() error {
	return e.Err
}
