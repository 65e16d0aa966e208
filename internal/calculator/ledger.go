package calculator

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dentalsettle/backend/internal/models"
)

// Payment is a nominal amount received against one service record.
type Payment struct {
	Amount decimal.Decimal

	// Method is the payment-method name as configured; Kind is its parsed kind.
	Method string
	Kind   models.PaymentKind

	// AccountID is required for transfers.
	AccountID *int64

	// CreditHolder and CreditAmount are required for credit payments.
	CreditHolder string
	CreditAmount decimal.Decimal

	// Date is the transaction date; it becomes the completion date on full payment.
	Date time.Time
}

// PaymentOutcome is the result of applying a payment to a record.
type PaymentOutcome struct {
	// Record is the updated copy; the input record is left untouched.
	Record models.ServiceRecord

	FullyPaid bool

	// Charge is what the patient is asked to pay, surcharge included.
	Charge decimal.Decimal

	// CashDelta is the nominal amount the site's cash drawer must grow by.
	CashDelta decimal.Decimal
}

// ApplyPayment applies a payment to an open record.
//
// Given outstanding O and nominal payment P:
//   - AmountPaid grows by P
//   - Outstanding becomes max(0, O - P)
//   - FullyPaid is P >= O; the record is then closed on p.Date
//
// Overpayment is accepted and simply zeroes the outstanding value. The
// surcharge only affects Charge; the ledger always records P.
func ApplyPayment(rec models.ServiceRecord, p Payment) (PaymentOutcome, error) {
	if p.Amount.IsNegative() {
		return PaymentOutcome{}, invalid(ErrNegativeAmount, "payment %s", p.Amount)
	}
	if p.Kind != models.PaymentNone && !p.Amount.IsPositive() {
		return PaymentOutcome{}, invalid(ErrMissingPaymentAmount, "method %q", p.Method)
	}
	if p.Kind.RequiresAccountSelection() && p.AccountID == nil {
		return PaymentOutcome{}, invalid(ErrMissingAccount, "payment")
	}
	if p.Kind.RequiresCreditHolder() {
		if !p.CreditAmount.IsPositive() {
			return PaymentOutcome{}, invalid(ErrMissingCreditAmount, "")
		}
		if p.CreditHolder == "" {
			return PaymentOutcome{}, invalid(ErrMissingCreditHolder, "")
		}
	}
	if !rec.IsOpen() {
		return PaymentOutcome{}, invalid(ErrRecordClosed, "record %s", rec.ID)
	}

	updated := rec
	updated.AmountPaid = rec.AmountPaid.Add(p.Amount)
	updated.Outstanding = floorZero(rec.Outstanding.Sub(p.Amount))
	if p.Method != "" {
		updated.PaymentMethod = p.Method
	}
	if p.AccountID != nil {
		updated.AccountID = p.AccountID
	}
	if p.Kind.RequiresCreditHolder() {
		updated.CreditHolder = p.CreditHolder
		updated.CreditAmount = p.CreditAmount
	}

	fullyPaid := p.Amount.GreaterThanOrEqual(rec.Outstanding)
	if fullyPaid {
		completed := models.Day(p.Date)
		updated.CompletedOn = &completed
	}

	outcome := PaymentOutcome{
		Record:    updated,
		FullyPaid: fullyPaid,
		Charge:    ChargeAmount(p.Amount, p.Kind),
		CashDelta: zero,
	}
	if p.Kind.AffectsCashDrawer() {
		outcome.CashDelta = p.Amount
	}
	return outcome, nil
}
