package calculator

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dentalsettle/backend/internal/models"
)

// MaxServicesPerEntry caps the services a single entry may carry.
const MaxServicesPerEntry = 30

// Tender is one amount received through one payment method.
type Tender struct {
	Method    string
	Kind      models.PaymentKind
	Amount    decimal.Decimal
	AccountID *int64
}

// Entry is a daily-register submission: one patient, one practitioner,
// one or more services, and what was received for them.
type Entry struct {
	SiteID       int64
	Practitioner string
	IsAssistant  bool
	PatientName  string
	PatientDocID string
	Services     []string
	Date         time.Time
	IsOwnPatient bool
	TierID       *int
	Notes        string

	Payment Tender
	Deposit Tender

	// CreditHolder and CreditAmount are required when Payment or Deposit
	// is a credit.
	CreditHolder string
	CreditAmount decimal.Decimal

	Discount Discount

	// StoredFraction fixes the payout fraction of the new records, within
	// [0, 1]. Continued records keep the fraction they were created with.
	StoredFraction *decimal.Decimal
}

// ValidateEntry checks an entry before it is priced or persisted.
func ValidateEntry(e Entry) error {
	if e.Practitioner == "" {
		return invalid(ErrMissingDoctor, "")
	}
	if e.PatientDocID == "" {
		return invalid(ErrMissingPatient, "")
	}

	if e.Payment.Amount.IsNegative() || e.Deposit.Amount.IsNegative() ||
		e.Discount.Value.IsNegative() || e.CreditAmount.IsNegative() {
		return invalid(ErrNegativeAmount, "")
	}

	if e.Payment.Kind != models.PaymentNone && !e.Payment.Amount.IsPositive() {
		return invalid(ErrMissingPaymentAmount, "method %q", e.Payment.Method)
	}
	if e.Deposit.Amount.IsPositive() && e.Deposit.Kind == models.PaymentNone {
		return invalid(ErrMissingDepositMethod, "")
	}
	if e.Payment.Kind.RequiresAccountSelection() && e.Payment.AccountID == nil {
		return invalid(ErrMissingAccount, "payment")
	}
	if e.Deposit.Kind.RequiresAccountSelection() && e.Deposit.AccountID == nil {
		return invalid(ErrMissingAccount, "deposit")
	}
	if e.Payment.Kind.RequiresCreditHolder() || e.Deposit.Kind.RequiresCreditHolder() {
		if !e.CreditAmount.IsPositive() {
			return invalid(ErrMissingCreditAmount, "")
		}
		if e.CreditHolder == "" {
			return invalid(ErrMissingCreditHolder, "")
		}
	}
	if f := e.StoredFraction; f != nil && (f.IsNegative() || f.GreaterThan(one)) {
		return invalid(ErrInvalidFraction, "%s", f)
	}

	services := SelectedServices(e.Services)
	switch {
	case len(services) == 0:
		return invalid(ErrNoServicesSelected, "")
	case len(services) > MaxServicesPerEntry:
		return invalid(ErrTooManyServices, "%d selected, at most %d", len(services), MaxServicesPerEntry)
	}
	if e.IsAssistant {
		for _, s := range services {
			if !slices.Contains(models.AssistantServices, s) {
				return invalid(ErrServiceNotAllowed, "%s", s)
			}
		}
	}
	return nil
}

// PlannedRecord is one record write produced by an entry.
type PlannedRecord struct {
	Record models.ServiceRecord

	// Original is the open record being continued; nil when Record is new.
	Original *models.ServiceRecord
}

// IsNew reports whether the record must be created rather than updated.
func (p PlannedRecord) IsNew() bool {
	return p.Original == nil
}

// EntryPlan is the full set of effects of an entry.
type EntryPlan struct {
	Valuation Valuation
	Records   []PlannedRecord

	// CreditUsed is taken from the patient's credit balance.
	CreditUsed decimal.Decimal

	// CreditRefund is the overpayment returned to the patient's credit balance.
	CreditRefund decimal.Decimal

	// CashDelta is the nominal cash received, payment and deposit together.
	CashDelta decimal.Decimal
}

// PlanEntry spreads the reductions and receipts of an entry across its
// priced lines, in line order. Each line takes, in turn, patient credit,
// then discount, then the deposit, then the payment, until its outstanding
// value is zero. Lines that reach zero are closed on e.Date. Receipts left
// over once every line is settled become CreditRefund.
func PlanEntry(e Entry, v Valuation) EntryPlan {
	day := models.Day(e.Date)
	creditLeft := v.CreditApplied
	discountLeft := decimal.Min(v.DiscountApplied, floorZero(v.Subtotal.Sub(v.CreditApplied)))
	depositLeft := e.Deposit.Amount
	paymentLeft := e.Payment.Amount

	take := func(pool *decimal.Decimal, owed decimal.Decimal) decimal.Decimal {
		t := decimal.Min(*pool, owed)
		*pool = pool.Sub(t)
		return t
	}

	plan := EntryPlan{Valuation: v}
	for _, line := range v.Lines {
		var rec models.ServiceRecord
		var original *models.ServiceRecord
		if line.Continuation != nil {
			orig := *line.Continuation
			original = &orig
			rec = orig
		} else {
			rec = e.newRecord(line, day)
		}

		owed := rec.Outstanding
		credit := take(&creditLeft, owed)
		owed = owed.Sub(credit)
		discount := take(&discountLeft, owed)
		owed = owed.Sub(discount)
		deposit := take(&depositLeft, owed)
		owed = owed.Sub(deposit)
		paid := take(&paymentLeft, owed)
		owed = owed.Sub(paid)

		rec.Outstanding = owed
		rec.AmountPaid = rec.AmountPaid.Add(credit).Add(deposit).Add(paid)
		rec.Discount = rec.Discount.Add(discount)
		rec.Deposit = rec.Deposit.Add(deposit)
		if deposit.IsPositive() {
			rec.DepositMethod = e.Deposit.Method
			rec.DepositAccountID = e.Deposit.AccountID
			if e.Deposit.Kind.RequiresCreditHolder() {
				rec.CreditHolder = e.CreditHolder
				rec.CreditAmount = e.CreditAmount
			}
		}
		if paid.IsPositive() {
			rec.PaymentMethod = e.Payment.Method
			rec.AccountID = e.Payment.AccountID
			if e.Payment.Kind.RequiresCreditHolder() {
				rec.CreditHolder = e.CreditHolder
				rec.CreditAmount = e.CreditAmount
			}
		}
		if owed.IsZero() && rec.IsOpen() {
			rec.CompletedOn = &day
		}

		plan.Records = append(plan.Records, PlannedRecord{Record: rec, Original: original})
	}

	plan.CreditUsed = v.CreditApplied.Sub(creditLeft)
	plan.CreditRefund = depositLeft.Add(paymentLeft)
	plan.CashDelta = zero
	if e.Payment.Kind.AffectsCashDrawer() {
		plan.CashDelta = plan.CashDelta.Add(e.Payment.Amount)
	}
	if e.Deposit.Kind.AffectsCashDrawer() {
		plan.CashDelta = plan.CashDelta.Add(e.Deposit.Amount)
	}
	return plan
}

func (e Entry) newRecord(line ValuationLine, day time.Time) models.ServiceRecord {
	return models.ServiceRecord{
		SiteID:           e.SiteID,
		PractitionerName: e.Practitioner,
		IsAssistant:      e.IsAssistant,
		PatientName:      e.PatientName,
		PatientDocID:     e.PatientDocID,
		ServiceName:      line.Service,
		BilledTotal:      line.BilledTotal,
		Outstanding:      line.Outstanding,
		AmountPaid:       zero,
		Deposit:          zero,
		Discount:         zero,
		CreditAmount:     zero,
		TierID:           e.TierID,
		StoredFraction:   e.StoredFraction,
		IsOwnPatient:     e.IsOwnPatient,
		StartedOn:        day,
		Notes:            e.Notes,
	}
}
