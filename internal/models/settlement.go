package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SettlementRow is one computed service line within a settlement report.
// It is the flat shape handed to the spreadsheet export.
type SettlementRow struct {
	RecordID       string
	SiteID         int64
	Date           time.Time
	PatientName    string
	ServiceName    string
	DoctorName     string
	AssistantName  string
	Deposit        decimal.Decimal
	Discount       decimal.Decimal
	BilledTotal    decimal.Decimal
	IsOwnPatient   bool
	PayoutFraction decimal.Decimal
	PayoutAmount   decimal.Decimal
	PaymentMethod  string
	DepositMethod  string
	AmountPaid     decimal.Decimal
	Notes          string
}

// SettlementReport (liquidación) aggregates the payout of one practitioner
// over a date range. Reports are immutable after generation.
type SettlementReport struct {
	// ID is the unique identifier for the report (UUID format).
	ID string

	// SiteID is the site the settlement was run for.
	SiteID int64

	// Doctor is the practitioner name the report was computed for.
	Doctor string

	Start time.Time
	End   time.Time

	// GeneratedAt is when the settlement was computed.
	GeneratedAt time.Time

	Rows  []SettlementRow
	Total decimal.Decimal
}

// IsEmpty reports whether no service line matched the settlement query.
func (r *SettlementReport) IsEmpty() bool {
	return len(r.Rows) == 0
}

// SettlementFilter narrows the settlement history listing.
// Zero values disable the corresponding filter.
type SettlementFilter struct {
	SiteID int64
	Doctor string
	From   *time.Time
	To     *time.Time
}
