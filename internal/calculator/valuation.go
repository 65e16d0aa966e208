package calculator

import (
	"github.com/shopspring/decimal"

	"github.com/dentalsettle/backend/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Discount is either a flat amount or a percentage of the billed total.
type Discount struct {
	Value        decimal.Decimal
	IsPercentage bool
}

// ValuationRequest carries everything needed to price a set of services for a patient.
type ValuationRequest struct {
	Services     []string
	Catalog      models.Catalog
	PatientDocID string

	// OpenRecords are the patient's records as fetched from the store;
	// only open ones are considered.
	OpenRecords []models.ServiceRecord

	CreditBalance decimal.Decimal
	Discount      Discount
	PaymentKind   models.PaymentKind

	Deposit     decimal.Decimal
	DepositKind models.PaymentKind
}

// ValuationLine is the price basis of one selected service.
type ValuationLine struct {
	Service     string
	BilledTotal decimal.Decimal
	Outstanding decimal.Decimal

	// Continuation is the open record being continued, nil for a new service.
	Continuation *models.ServiceRecord
}

// Valuation is the priced result for a set of services.
type Valuation struct {
	Lines []ValuationLine

	// BilledTotal sums the billed totals of every line.
	BilledTotal decimal.Decimal

	// Subtotal sums what is still owed on every line before reductions.
	Subtotal decimal.Decimal

	CreditApplied   decimal.Decimal
	DiscountApplied decimal.Decimal

	// NetBeforeSurcharge is the nominal value still to collect.
	NetBeforeSurcharge decimal.Decimal

	// NetValue is what the patient is asked to pay, surcharge included.
	NetValue decimal.Decimal

	// DepositCharge is the deposit as charged, surcharge included.
	DepositCharge decimal.Decimal
}

// ValuateNewServices prices the selected services for a patient.
//
// The order of operations is fixed:
//  1. per service, continue the patient's open record if there is one
//     (its billed total and outstanding value) or use the catalog price
//  2. sum the lines
//  3. subtract the credit balance, floor at 0
//  4. subtract the discount (flat, or a percentage of the billed total), floor at 0
//  5. apply the card-terminal surcharge
//
// Blank service names are ignored. A name missing from the catalog aborts
// with *NotFoundError.
func ValuateNewServices(req ValuationRequest) (Valuation, error) {
	if req.CreditBalance.IsNegative() || req.Discount.Value.IsNegative() || req.Deposit.IsNegative() {
		return Valuation{}, invalid(ErrNegativeAmount, "credit, discount and deposit must be non-negative")
	}

	services := SelectedServices(req.Services)
	if len(services) == 0 {
		return Valuation{}, invalid(ErrNoServicesSelected, "")
	}

	v := Valuation{
		BilledTotal: zero,
		Subtotal:    zero,
	}
	seen := make(map[string]bool, len(services))
	for _, name := range services {
		if seen[name] {
			return Valuation{}, invalid(ErrDuplicateService, "%s", name)
		}
		seen[name] = true

		price, ok := req.Catalog[name]
		if !ok {
			return Valuation{}, &NotFoundError{Service: name}
		}

		line := ValuationLine{Service: name, BilledTotal: price, Outstanding: price}
		if open := FindOpenRecord(req.OpenRecords, req.PatientDocID, name); open != nil {
			cont := *open
			line.BilledTotal = cont.BilledTotal
			line.Outstanding = cont.Outstanding
			line.Continuation = &cont
		}

		v.Lines = append(v.Lines, line)
		v.BilledTotal = v.BilledTotal.Add(line.BilledTotal)
		v.Subtotal = v.Subtotal.Add(line.Outstanding)
	}

	net := v.Subtotal
	v.CreditApplied = decimal.Min(req.CreditBalance, net)
	net = floorZero(net.Sub(req.CreditBalance))

	v.DiscountApplied = req.Discount.Value
	if req.Discount.IsPercentage {
		v.DiscountApplied = v.BilledTotal.Mul(req.Discount.Value).Div(hundred)
	}
	net = floorZero(net.Sub(v.DiscountApplied))

	v.NetBeforeSurcharge = net
	v.NetValue = ChargeAmount(net, req.PaymentKind)
	v.DepositCharge = ChargeAmount(req.Deposit, req.DepositKind)
	return v, nil
}

// SelectedServices drops blank entries from a service selection.
func SelectedServices(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}
