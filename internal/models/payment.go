package models

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// PaymentKind is the closed set of payment channels the clinic accepts.
type PaymentKind string

const (
	PaymentNone         PaymentKind = ""
	PaymentCash         PaymentKind = "cash"          // Efectivo
	PaymentTransfer     PaymentKind = "transfer"      // Transferencia
	PaymentCredit       PaymentKind = "credit"        // Crédito
	PaymentCardTerminal PaymentKind = "card_terminal" // Datáfono
	PaymentOther        PaymentKind = "other"
)

// SurchargeRate is the processing fee added to card-terminal charges.
const SurchargeRate = "0.05"

// RequiresAccountSelection reports whether the receiving bank account must be chosen.
func (k PaymentKind) RequiresAccountSelection() bool {
	return k == PaymentTransfer
}

// RequiresCreditHolder reports whether a financed amount and its holder must be given.
func (k PaymentKind) RequiresCreditHolder() bool {
	return k == PaymentCredit
}

// AppliesSurcharge reports whether the amount to charge carries SurchargeRate.
func (k PaymentKind) AppliesSurcharge() bool {
	return k == PaymentCardTerminal
}

// AffectsCashDrawer reports whether receipts in this kind land in the site's cash drawer.
func (k PaymentKind) AffectsCashDrawer() bool {
	return k == PaymentCash
}

var methodNames = map[string]PaymentKind{
	"efectivo":      PaymentCash,
	"cash":          PaymentCash,
	"transferencia": PaymentTransfer,
	"transfer":      PaymentTransfer,
	"credito":       PaymentCredit,
	"credit":        PaymentCredit,
	"datafono":      PaymentCardTerminal,
	"card_terminal": PaymentCardTerminal,
}

// ParsePaymentKind maps a stored payment-method name to its kind.
// Matching ignores case, surrounding space and accents; an empty name is
// PaymentNone and any unrecognised name is PaymentOther.
func ParsePaymentKind(name string) PaymentKind {
	key := foldName(name)
	if key == "" {
		return PaymentNone
	}
	if kind, ok := methodNames[key]; ok {
		return kind
	}
	return PaymentOther
}

func foldName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.TrimSpace(s))
	if err != nil {
		out = strings.TrimSpace(s)
	}
	return strings.ToLower(out)
}

// PaymentMethod is a payment method row as configured in the store.
type PaymentMethod struct {
	ID   int64
	Name string
	Kind PaymentKind
}

// Account is a bank account that can receive transfers at a site.
type Account struct {
	ID     int64
	SiteID int64
	Name   string
}
