package calculator

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dentalsettle/backend/internal/models"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(s string) time.Time {
	t, err := models.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func assertDec(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Errorf("%s = %s, want %s", name, got, want)
	}
}

func openRecord(id, docID, service, billed, outstanding string) models.ServiceRecord {
	return models.ServiceRecord{
		ID:               id,
		SiteID:           1,
		PractitionerName: "Dra. Gómez",
		PatientName:      "Ana Ruiz",
		PatientDocID:     docID,
		ServiceName:      service,
		BilledTotal:      dec(billed),
		Outstanding:      dec(outstanding),
		AmountPaid:       dec(billed).Sub(dec(outstanding)),
		StartedOn:        date("2024-03-01"),
		Version:          1,
	}
}
