package calculator

import (
	"errors"
	"testing"

	"github.com/dentalsettle/backend/internal/models"
)

func TestApplyPayment(t *testing.T) {
	tests := []struct {
		name            string
		outstanding     string
		amount          string
		kind            models.PaymentKind
		wantOutstanding string
		wantPaid        string
		wantFullyPaid   bool
		wantCharge      string
		wantCash        string
	}{
		{
			name:        "partial cash payment",
			outstanding: "100000", amount: "40000", kind: models.PaymentCash,
			wantOutstanding: "60000", wantPaid: "40000", wantCharge: "40000", wantCash: "40000",
		},
		{
			name:        "exact payment closes the record",
			outstanding: "100000", amount: "100000", kind: models.PaymentTransfer,
			wantOutstanding: "0", wantPaid: "100000", wantFullyPaid: true, wantCharge: "100000", wantCash: "0",
		},
		{
			name:        "overpayment clamps outstanding at zero",
			outstanding: "50000", amount: "80000", kind: models.PaymentCash,
			wantOutstanding: "0", wantPaid: "80000", wantFullyPaid: true, wantCharge: "80000", wantCash: "80000",
		},
		{
			name:        "card terminal surcharge only affects the charge",
			outstanding: "100000", amount: "70000", kind: models.PaymentCardTerminal,
			wantOutstanding: "30000", wantPaid: "70000", wantCharge: "73500", wantCash: "0",
		},
		{
			name:        "surcharge rounds to whole pesos",
			outstanding: "100000", amount: "33333", kind: models.PaymentCardTerminal,
			wantOutstanding: "66667", wantPaid: "33333", wantCharge: "35000", wantCash: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := openRecord("r1", "123", "Corona", tt.outstanding, tt.outstanding)
			paidOn := date("2024-03-20")

			account := int64(7)
			out, err := ApplyPayment(rec, Payment{Amount: dec(tt.amount), Kind: tt.kind, Method: "X", AccountID: &account, Date: paidOn})
			if err != nil {
				t.Fatalf("ApplyPayment() error = %v", err)
			}
			assertDec(t, "Outstanding", out.Record.Outstanding, tt.wantOutstanding)
			assertDec(t, "AmountPaid", out.Record.AmountPaid, tt.wantPaid)
			assertDec(t, "Charge", out.Charge, tt.wantCharge)
			assertDec(t, "CashDelta", out.CashDelta, tt.wantCash)
			if out.FullyPaid != tt.wantFullyPaid {
				t.Errorf("FullyPaid = %v, want %v", out.FullyPaid, tt.wantFullyPaid)
			}
			if tt.wantFullyPaid {
				if out.Record.CompletedOn == nil || !out.Record.CompletedOn.Equal(paidOn) {
					t.Errorf("CompletedOn = %v, want %v", out.Record.CompletedOn, paidOn)
				}
			} else if out.Record.CompletedOn != nil {
				t.Errorf("CompletedOn = %v, want nil", out.Record.CompletedOn)
			}
			if out.Record.Outstanding.IsNegative() {
				t.Errorf("Outstanding went negative: %s", out.Record.Outstanding)
			}
			if !rec.Outstanding.Equal(dec(tt.outstanding)) || rec.CompletedOn != nil {
				t.Error("input record was modified")
			}
		})
	}
}

func TestApplyPaymentErrors(t *testing.T) {
	closed := openRecord("r1", "123", "Corona", "100000", "0")
	closedOn := date("2024-03-02")
	closed.CompletedOn = &closedOn

	tests := []struct {
		name    string
		rec     models.ServiceRecord
		payment Payment
		wantErr error
	}{
		{
			name:    "negative amount",
			rec:     openRecord("r1", "123", "Corona", "100000", "100000"),
			payment: Payment{Amount: dec("-1"), Kind: models.PaymentCash},
			wantErr: ErrNegativeAmount,
		},
		{
			name:    "method without amount",
			rec:     openRecord("r1", "123", "Corona", "100000", "100000"),
			payment: Payment{Amount: dec("0"), Kind: models.PaymentCash, Method: "Efectivo"},
			wantErr: ErrMissingPaymentAmount,
		},
		{
			name:    "transfer without account",
			rec:     openRecord("r1", "123", "Corona", "100000", "100000"),
			payment: Payment{Amount: dec("1000"), Kind: models.PaymentTransfer, Method: "Transferencia"},
			wantErr: ErrMissingAccount,
		},
		{
			name:    "credit without financed amount",
			rec:     openRecord("r1", "123", "Corona", "100000", "100000"),
			payment: Payment{Amount: dec("1000"), Kind: models.PaymentCredit, Method: "Crédito", CreditHolder: "Ana Ruiz"},
			wantErr: ErrMissingCreditAmount,
		},
		{
			name:    "credit without holder",
			rec:     openRecord("r1", "123", "Corona", "100000", "100000"),
			payment: Payment{Amount: dec("1000"), Kind: models.PaymentCredit, Method: "Crédito", CreditAmount: dec("1000")},
			wantErr: ErrMissingCreditHolder,
		},
		{
			name:    "closed record",
			rec:     closed,
			payment: Payment{Amount: dec("1000"), Kind: models.PaymentCash},
			wantErr: ErrRecordClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ApplyPayment(tt.rec, tt.payment)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ApplyPayment() error = %v, want %v", err, tt.wantErr)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("error %T is not a *ValidationError", err)
			}
		})
	}
}

func TestApplyPaymentRecordsTenderDetails(t *testing.T) {
	rec := openRecord("r1", "123", "Corona", "100000", "100000")
	account := int64(3)

	out, err := ApplyPayment(rec, Payment{
		Amount: dec("40000"), Kind: models.PaymentTransfer, Method: "Transferencia",
		AccountID: &account, Date: date("2024-03-20"),
	})
	if err != nil {
		t.Fatalf("ApplyPayment() error = %v", err)
	}
	if out.Record.AccountID == nil || *out.Record.AccountID != account {
		t.Errorf("AccountID = %v, want %d", out.Record.AccountID, account)
	}
	if out.Record.PaymentMethod != "Transferencia" {
		t.Errorf("PaymentMethod = %q, want Transferencia", out.Record.PaymentMethod)
	}

	out, err = ApplyPayment(out.Record, Payment{
		Amount: dec("60000"), Kind: models.PaymentCredit, Method: "Crédito",
		CreditHolder: "Banco Popular", CreditAmount: dec("60000"), Date: date("2024-03-21"),
	})
	if err != nil {
		t.Fatalf("ApplyPayment() error = %v", err)
	}
	if out.Record.CreditHolder != "Banco Popular" {
		t.Errorf("CreditHolder = %q, want Banco Popular", out.Record.CreditHolder)
	}
	assertDec(t, "CreditAmount", out.Record.CreditAmount, "60000")
	if out.Record.AccountID == nil || *out.Record.AccountID != account {
		t.Errorf("AccountID = %v, want it kept at %d", out.Record.AccountID, account)
	}
}
