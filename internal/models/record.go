package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the ISO calendar-date layout used for record and report dates.
const DateLayout = "2006-01-02"

// ParseDate parses an ISO calendar date ("2024-03-15") as UTC midnight.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// FormatDate renders t as an ISO calendar date.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Day truncates t to its calendar date in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateRange is an inclusive range of calendar dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether the calendar date of t falls within the range,
// boundaries included.
func (r DateRange) Contains(t time.Time) bool {
	d := Day(t)
	return !d.Before(Day(r.Start)) && !d.After(Day(r.End))
}

// ServiceRecord is one billable service delivered to a patient.
//
// Invariants kept by the calculator and the store:
//   - Outstanding is never negative
//   - a record with CompletedOn set has Outstanding == 0
//   - at most one open record exists per (PatientDocID, ServiceName)
type ServiceRecord struct {
	// ID is the unique identifier for the record (UUID format).
	ID string

	// SiteID is the clinic site that owns the record.
	SiteID int64

	// PractitionerName is the doctor or assistant who performed the service.
	PractitionerName string

	// IsAssistant is true when PractitionerName refers to an assistant.
	IsAssistant bool

	PatientName  string
	PatientDocID string
	ServiceName  string

	// BilledTotal is the full value of the service (catalog price at entry time).
	BilledTotal decimal.Decimal

	// Outstanding is what the patient still owes on this service.
	Outstanding decimal.Decimal

	// AmountPaid accumulates every nominal payment and deposit received.
	AmountPaid decimal.Decimal

	Deposit  decimal.Decimal
	Discount decimal.Decimal

	// PaymentMethod and DepositMethod are payment-method names; empty when none.
	PaymentMethod string
	DepositMethod string

	// AccountID and DepositAccountID identify the receiving bank account for transfers.
	AccountID        *int64
	DepositAccountID *int64

	// CreditHolder and CreditAmount describe a financed ("Crédito") payment.
	CreditHolder string
	CreditAmount decimal.Decimal

	// TierID selects the payout percentage tier; nil when none was assigned.
	TierID *int

	// StoredFraction is a payout fraction persisted with the record, if any.
	StoredFraction *decimal.Decimal

	// IsOwnPatient is true when the practitioner brought the patient.
	IsOwnPatient bool

	// StartedOn is the date the service was entered.
	StartedOn time.Time

	// CompletedOn is the date the outstanding value reached zero; nil while open.
	CompletedOn *time.Time

	Notes string

	// Version increases on every update and guards against lost updates.
	Version int64

	// CreatedAt is the Unix timestamp when the record was created.
	CreatedAt int64
}

// IsOpen reports whether the record still awaits payment.
func (r *ServiceRecord) IsOpen() bool {
	return r.CompletedOn == nil
}

// RecordUpdate is the partial update applied by the payment ledger.
type RecordUpdate struct {
	ID              string
	ExpectedVersion int64
	AmountPaid      decimal.Decimal
	Outstanding     decimal.Decimal
	CompletedOn     *time.Time

	// PaymentMethod and DepositMethod replace the stored names when non-empty.
	PaymentMethod string
	DepositMethod string

	// Nil pointers and empty strings leave the stored column unchanged.
	AccountID        *int64
	DepositAccountID *int64
	CreditHolder     string
	CreditAmount     *decimal.Decimal

	Deposit  *decimal.Decimal
	Discount *decimal.Decimal
}

// UpdateFrom builds the ledger update that moves rec to updated.
func UpdateFrom(rec, updated ServiceRecord) RecordUpdate {
	u := RecordUpdate{
		ID:              rec.ID,
		ExpectedVersion: rec.Version,
		AmountPaid:      updated.AmountPaid,
		Outstanding:     updated.Outstanding,
		CompletedOn:     updated.CompletedOn,
	}
	if updated.PaymentMethod != rec.PaymentMethod {
		u.PaymentMethod = updated.PaymentMethod
	}
	if updated.DepositMethod != rec.DepositMethod {
		u.DepositMethod = updated.DepositMethod
	}
	if !sameID(updated.AccountID, rec.AccountID) {
		u.AccountID = updated.AccountID
	}
	if !sameID(updated.DepositAccountID, rec.DepositAccountID) {
		u.DepositAccountID = updated.DepositAccountID
	}
	if updated.CreditHolder != rec.CreditHolder {
		u.CreditHolder = updated.CreditHolder
	}
	if !updated.CreditAmount.Equal(rec.CreditAmount) {
		c := updated.CreditAmount
		u.CreditAmount = &c
	}
	if !updated.Deposit.Equal(rec.Deposit) {
		d := updated.Deposit
		u.Deposit = &d
	}
	if !updated.Discount.Equal(rec.Discount) {
		d := updated.Discount
		u.Discount = &d
	}
	return u
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
