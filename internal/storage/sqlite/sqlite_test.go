package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dentalsettle/backend/internal/models"
	"github.com/dentalsettle/backend/internal/storage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tempDir, err := os.MkdirTemp("", "dentalsettle-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(s string) time.Time {
	t, err := models.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func newRecord(siteID int64, docID, service, billed string, started string) *models.ServiceRecord {
	return &models.ServiceRecord{
		SiteID:           siteID,
		PractitionerName: "Dra. Gómez",
		PatientName:      "Ana Ruiz",
		PatientDocID:     docID,
		ServiceName:      service,
		BilledTotal:      dec(billed),
		Outstanding:      dec(billed),
		AmountPaid:       decimal.Zero,
		StartedOn:        day(started),
	}
}

func TestServiceRecords(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	site, err := store.CreateSite(ctx, "Centro")
	if err != nil {
		t.Fatalf("CreateSite failed: %v", err)
	}
	other, err := store.CreateSite(ctx, "Estadio")
	if err != nil {
		t.Fatalf("CreateSite failed: %v", err)
	}

	t.Run("CreateServiceRecord generates ID and version", func(t *testing.T) {
		rec := newRecord(site.ID, "123", "Corona", "100000", "2024-03-01")
		tier := 3
		fraction := dec("0.45")
		account := int64(7)
		rec.TierID = &tier
		rec.StoredFraction = &fraction
		rec.AccountID = &account
		rec.IsOwnPatient = true

		if err := store.CreateServiceRecord(ctx, rec); err != nil {
			t.Fatalf("CreateServiceRecord failed: %v", err)
		}
		if rec.ID == "" || rec.Version != 1 || rec.CreatedAt == 0 {
			t.Fatalf("expected generated fields, got ID=%q Version=%d CreatedAt=%d", rec.ID, rec.Version, rec.CreatedAt)
		}

		got, err := store.GetServiceRecord(ctx, rec.ID)
		if err != nil {
			t.Fatalf("GetServiceRecord failed: %v", err)
		}
		if !got.BilledTotal.Equal(dec("100000")) {
			t.Errorf("BilledTotal = %s, want 100000", got.BilledTotal)
		}
		if got.TierID == nil || *got.TierID != 3 {
			t.Errorf("TierID = %v, want 3", got.TierID)
		}
		if got.StoredFraction == nil || !got.StoredFraction.Equal(fraction) {
			t.Errorf("StoredFraction = %v, want 0.45", got.StoredFraction)
		}
		if got.AccountID == nil || *got.AccountID != 7 {
			t.Errorf("AccountID = %v, want 7", got.AccountID)
		}
		if !got.IsOwnPatient || got.IsAssistant {
			t.Errorf("flags = own:%v assistant:%v", got.IsOwnPatient, got.IsAssistant)
		}
		if !got.StartedOn.Equal(day("2024-03-01")) || got.CompletedOn != nil {
			t.Errorf("dates = %v / %v", got.StartedOn, got.CompletedOn)
		}
	})

	t.Run("GetServiceRecord unknown id", func(t *testing.T) {
		_, err := store.GetServiceRecord(ctx, "missing")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})

	t.Run("UpdateServiceRecord checks version", func(t *testing.T) {
		rec := newRecord(site.ID, "456", "Resina", "80000", "2024-03-02")
		if err := store.CreateServiceRecord(ctx, rec); err != nil {
			t.Fatalf("CreateServiceRecord failed: %v", err)
		}

		completed := day("2024-03-05")
		deposit := dec("10000")
		updated, err := store.UpdateServiceRecord(ctx, models.RecordUpdate{
			ID:              rec.ID,
			ExpectedVersion: rec.Version,
			AmountPaid:      dec("80000"),
			Outstanding:     decimal.Zero,
			CompletedOn:     &completed,
			PaymentMethod:   "Efectivo",
			Deposit:         &deposit,
		})
		if err != nil {
			t.Fatalf("UpdateServiceRecord failed: %v", err)
		}
		if updated.Version != 2 {
			t.Errorf("Version = %d, want 2", updated.Version)
		}
		if !updated.Outstanding.IsZero() || updated.CompletedOn == nil || !updated.CompletedOn.Equal(completed) {
			t.Errorf("updated = outstanding %s completed %v", updated.Outstanding, updated.CompletedOn)
		}
		if updated.PaymentMethod != "Efectivo" || !updated.Deposit.Equal(deposit) {
			t.Errorf("PaymentMethod = %q Deposit = %s", updated.PaymentMethod, updated.Deposit)
		}
		if !updated.Discount.IsZero() {
			t.Errorf("Discount changed to %s", updated.Discount)
		}

		_, err = store.UpdateServiceRecord(ctx, models.RecordUpdate{
			ID:              rec.ID,
			ExpectedVersion: 1,
			AmountPaid:      dec("1"),
			Outstanding:     decimal.Zero,
		})
		if !errors.Is(err, storage.ErrVersionConflict) {
			t.Errorf("stale update error = %v, want ErrVersionConflict", err)
		}

		_, err = store.UpdateServiceRecord(ctx, models.RecordUpdate{ID: "missing", ExpectedVersion: 1})
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("missing update error = %v, want ErrNotFound", err)
		}
	})

	t.Run("UpdateServiceRecord writes tender details", func(t *testing.T) {
		rec := newRecord(site.ID, "457", "Corona", "100000", "2024-03-02")
		if err := store.CreateServiceRecord(ctx, rec); err != nil {
			t.Fatalf("CreateServiceRecord failed: %v", err)
		}

		deposit := dec("20000")
		account := int64(4)
		credit := dec("30000")
		updated, err := store.UpdateServiceRecord(ctx, models.RecordUpdate{
			ID:               rec.ID,
			ExpectedVersion:  rec.Version,
			AmountPaid:       dec("50000"),
			Outstanding:      dec("50000"),
			PaymentMethod:    "Crédito",
			DepositMethod:    "Transferencia",
			DepositAccountID: &account,
			CreditHolder:     "Banco Popular",
			CreditAmount:     &credit,
			Deposit:          &deposit,
		})
		if err != nil {
			t.Fatalf("UpdateServiceRecord failed: %v", err)
		}
		if updated.DepositMethod != "Transferencia" || updated.DepositAccountID == nil || *updated.DepositAccountID != 4 {
			t.Errorf("deposit = %q account %v", updated.DepositMethod, updated.DepositAccountID)
		}
		if updated.CreditHolder != "Banco Popular" || !updated.CreditAmount.Equal(credit) {
			t.Errorf("credit = %q %s", updated.CreditHolder, updated.CreditAmount)
		}

		// Empty fields leave the stored values alone.
		updated, err = store.UpdateServiceRecord(ctx, models.RecordUpdate{
			ID:              rec.ID,
			ExpectedVersion: updated.Version,
			AmountPaid:      dec("60000"),
			Outstanding:     dec("40000"),
		})
		if err != nil {
			t.Fatalf("UpdateServiceRecord failed: %v", err)
		}
		if updated.DepositMethod != "Transferencia" || updated.DepositAccountID == nil || updated.CreditHolder != "Banco Popular" {
			t.Errorf("untouched fields changed: %+v", updated)
		}
		if updated.AccountID != nil {
			t.Errorf("AccountID = %v, want nil", updated.AccountID)
		}
	})

	t.Run("SaveEntry is atomic", func(t *testing.T) {
		existing := newRecord(site.ID, "789", "Ortodoncia", "300000", "2024-03-03")
		if err := store.CreateServiceRecord(ctx, existing); err != nil {
			t.Fatalf("CreateServiceRecord failed: %v", err)
		}

		fresh := newRecord(site.ID, "789", "Blanqueo", "150000", "2024-03-04")
		err := store.SaveEntry(ctx, storage.EntryWrite{
			Patient:     models.Patient{DocID: "789", Name: "Ana Ruiz", CreditBalance: decimal.Zero},
			CreditDelta: dec("5000"),
			Creates:     []*models.ServiceRecord{fresh},
			Updates: []models.RecordUpdate{{
				ID:              existing.ID,
				ExpectedVersion: 99,
				AmountPaid:      dec("1"),
				Outstanding:     dec("1"),
			}},
		})
		if !errors.Is(err, storage.ErrVersionConflict) {
			t.Fatalf("error = %v, want ErrVersionConflict", err)
		}

		records, err := store.ListPatientRecords(ctx, site.ID, "789")
		if err != nil {
			t.Fatalf("ListPatientRecords failed: %v", err)
		}
		if len(records) != 1 {
			t.Errorf("expected rollback to leave 1 record, got %d", len(records))
		}
		if _, err := store.GetPatient(ctx, "789"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("patient should not exist after rollback, got %v", err)
		}

		err = store.SaveEntry(ctx, storage.EntryWrite{
			Patient:     models.Patient{DocID: "789", Name: "Ana Ruiz", CreditBalance: decimal.Zero},
			CreditDelta: dec("5000"),
			Creates:     []*models.ServiceRecord{fresh},
			Updates: []models.RecordUpdate{{
				ID:              existing.ID,
				ExpectedVersion: existing.Version,
				AmountPaid:      dec("100000"),
				Outstanding:     dec("200000"),
			}},
		})
		if err != nil {
			t.Fatalf("SaveEntry failed: %v", err)
		}
		patient, err := store.GetPatient(ctx, "789")
		if err != nil {
			t.Fatalf("GetPatient failed: %v", err)
		}
		if !patient.CreditBalance.Equal(dec("5000")) {
			t.Errorf("CreditBalance = %s, want 5000", patient.CreditBalance)
		}
		if fresh.ID == "" {
			t.Error("expected created record to get an ID")
		}
	})

	t.Run("ListRecordsByDate and DeleteServiceRecords", func(t *testing.T) {
		a := newRecord(other.ID, "111", "Corona", "100000", "2024-04-01")
		b := newRecord(other.ID, "222", "Resina", "80000", "2024-04-01")
		c := newRecord(other.ID, "333", "Resina", "80000", "2024-04-02")
		for _, rec := range []*models.ServiceRecord{a, b, c} {
			if err := store.CreateServiceRecord(ctx, rec); err != nil {
				t.Fatalf("CreateServiceRecord failed: %v", err)
			}
		}

		onDay, err := store.ListRecordsByDate(ctx, other.ID, day("2024-04-01"))
		if err != nil {
			t.Fatalf("ListRecordsByDate failed: %v", err)
		}
		if len(onDay) != 2 {
			t.Errorf("expected 2 records on 2024-04-01, got %d", len(onDay))
		}

		// Ids of another site are ignored.
		siteRecords, err := store.ListServiceRecords(ctx, site.ID)
		if err != nil {
			t.Fatalf("ListServiceRecords failed: %v", err)
		}
		n, err := store.DeleteServiceRecords(ctx, []string{a.ID, b.ID, siteRecords[0].ID}, other.ID)
		if err != nil {
			t.Fatalf("DeleteServiceRecords failed: %v", err)
		}
		if n != 2 {
			t.Errorf("deleted %d, want 2", n)
		}

		remaining, err := store.ListServiceRecords(ctx, other.ID)
		if err != nil {
			t.Fatalf("ListServiceRecords failed: %v", err)
		}
		if len(remaining) != 1 || remaining[0].ID != c.ID {
			t.Errorf("remaining = %v, want only %s", remaining, c.ID)
		}
	})
}

func TestPatients(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, p := range []models.Patient{
		{DocID: "1", Name: "Ana Ruiz", CreditBalance: decimal.Zero},
		{DocID: "2", Name: "Andrés Mora", CreditBalance: dec("15000")},
		{DocID: "3", Name: "Beatriz Díaz", CreditBalance: decimal.Zero},
	} {
		if err := store.UpsertPatient(ctx, p); err != nil {
			t.Fatalf("UpsertPatient failed: %v", err)
		}
	}

	tests := []struct {
		prefix string
		want   int
	}{
		{"an", 2},
		{"AN", 2},
		{"Bea", 1},
		{"zz", 0},
		{"%", 0},
	}
	for _, tt := range tests {
		t.Run("search "+tt.prefix, func(t *testing.T) {
			got, err := store.SearchPatients(ctx, tt.prefix)
			if err != nil {
				t.Fatalf("SearchPatients failed: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("SearchPatients(%q) returned %d, want %d", tt.prefix, len(got), tt.want)
			}
		})
	}

	t.Run("upsert keeps credit", func(t *testing.T) {
		if err := store.UpsertPatient(ctx, models.Patient{DocID: "2", Name: "Andrés Mora P.", CreditBalance: decimal.Zero}); err != nil {
			t.Fatalf("UpsertPatient failed: %v", err)
		}
		p, err := store.GetPatient(ctx, "2")
		if err != nil {
			t.Fatalf("GetPatient failed: %v", err)
		}
		if p.Name != "Andrés Mora P." || !p.CreditBalance.Equal(dec("15000")) {
			t.Errorf("patient = %+v", p)
		}
	})

	t.Run("credit adjustments floor at zero", func(t *testing.T) {
		balance, err := store.AdjustPatientCredit(ctx, "2", dec("-5000"))
		if err != nil {
			t.Fatalf("AdjustPatientCredit failed: %v", err)
		}
		if !balance.Equal(dec("10000")) {
			t.Errorf("balance = %s, want 10000", balance)
		}
		balance, err = store.AdjustPatientCredit(ctx, "2", dec("-50000"))
		if err != nil {
			t.Fatalf("AdjustPatientCredit failed: %v", err)
		}
		if !balance.IsZero() {
			t.Errorf("balance = %s, want 0", balance)
		}
	})

	t.Run("unknown patient", func(t *testing.T) {
		if _, err := store.AdjustPatientCredit(ctx, "missing", dec("1")); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})
}

func TestCashDrawer(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	site, err := store.CreateSite(ctx, "Centro")
	if err != nil {
		t.Fatalf("CreateSite failed: %v", err)
	}

	balance, err := store.GetCashDrawerBalance(ctx, site.ID)
	if err != nil {
		t.Fatalf("GetCashDrawerBalance failed: %v", err)
	}
	if !balance.IsZero() {
		t.Errorf("initial balance = %s, want 0", balance)
	}

	if _, err := store.SetCashDrawerBalance(ctx, site.ID, dec("200000")); err != nil {
		t.Fatalf("SetCashDrawerBalance failed: %v", err)
	}
	balance, err = store.AddToCashDrawer(ctx, site.ID, dec("45000"))
	if err != nil {
		t.Fatalf("AddToCashDrawer failed: %v", err)
	}
	if !balance.Equal(dec("245000")) {
		t.Errorf("balance = %s, want 245000", balance)
	}
}

func TestCatalog(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	site, err := store.CreateSite(ctx, "Centro")
	if err != nil {
		t.Fatalf("CreateSite failed: %v", err)
	}

	t.Run("default payment methods", func(t *testing.T) {
		methods, err := store.ListPaymentMethods(ctx, site.ID)
		if err != nil {
			t.Fatalf("ListPaymentMethods failed: %v", err)
		}
		kinds := map[models.PaymentKind]bool{}
		for _, m := range methods {
			kinds[m.Kind] = true
		}
		for _, k := range []models.PaymentKind{models.PaymentCash, models.PaymentTransfer, models.PaymentCredit, models.PaymentCardTerminal} {
			if !kinds[k] {
				t.Errorf("missing payment method kind %s", k)
			}
		}

		m, err := store.GetPaymentMethod(ctx, methods[0].ID)
		if err != nil {
			t.Fatalf("GetPaymentMethod failed: %v", err)
		}
		if m.Name != methods[0].Name {
			t.Errorf("GetPaymentMethod = %q, want %q", m.Name, methods[0].Name)
		}
	})

	t.Run("practitioners by kind", func(t *testing.T) {
		for _, p := range []*models.Practitioner{
			{SiteID: site.ID, Name: "Dra. Gómez", Kind: models.PractitionerDoctor},
			{SiteID: site.ID, Name: "Dr. Pérez", Kind: models.PractitionerDoctor},
			{SiteID: site.ID, Name: "Laura", Kind: models.PractitionerAssistant},
		} {
			if err := store.CreatePractitioner(ctx, p); err != nil {
				t.Fatalf("CreatePractitioner failed: %v", err)
			}
		}
		doctors, err := store.ListDoctors(ctx, site.ID)
		if err != nil {
			t.Fatalf("ListDoctors failed: %v", err)
		}
		assistants, err := store.ListAssistants(ctx, site.ID)
		if err != nil {
			t.Fatalf("ListAssistants failed: %v", err)
		}
		if len(doctors) != 2 || len(assistants) != 1 {
			t.Errorf("doctors=%d assistants=%d, want 2 and 1", len(doctors), len(assistants))
		}
	})

	t.Run("price lists", func(t *testing.T) {
		entries := []models.CatalogEntry{
			{Name: "Corona", Price: dec("100000")},
			{Name: "Corona", Price: dec("90000"), PriceList: models.PriceListStadium},
			{Name: "Resina", Price: dec("80000"), PriceList: models.PriceListStandard},
		}
		for _, e := range entries {
			if err := store.UpsertCatalogEntry(ctx, site.ID, e); err != nil {
				t.Fatalf("UpsertCatalogEntry failed: %v", err)
			}
		}

		standard, err := store.ListServiceCatalog(ctx, site.ID, "")
		if err != nil {
			t.Fatalf("ListServiceCatalog failed: %v", err)
		}
		if len(standard) != 2 {
			t.Errorf("standard list has %d entries, want 2", len(standard))
		}
		stadium, err := store.ListServiceCatalog(ctx, site.ID, models.PriceListStadium)
		if err != nil {
			t.Fatalf("ListServiceCatalog failed: %v", err)
		}
		if len(stadium) != 1 || !stadium[0].Price.Equal(dec("90000")) {
			t.Errorf("stadium list = %+v", stadium)
		}
	})

	t.Run("accounts", func(t *testing.T) {
		if err := store.CreateAccount(ctx, &models.Account{SiteID: site.ID, Name: "Bancolombia"}); err != nil {
			t.Fatalf("CreateAccount failed: %v", err)
		}
		accounts, err := store.ListAccounts(ctx, site.ID)
		if err != nil {
			t.Fatalf("ListAccounts failed: %v", err)
		}
		if len(accounts) != 1 || accounts[0].ID == 0 {
			t.Errorf("accounts = %+v", accounts)
		}
	})
}

func TestSettlementReports(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mk := func(siteID int64, doctor, start, end string, generated time.Time) *models.SettlementReport {
		return &models.SettlementReport{
			SiteID:      siteID,
			Doctor:      doctor,
			Start:       day(start),
			End:         day(end),
			GeneratedAt: generated,
			Total:       dec("40000"),
			Rows: []models.SettlementRow{
				{RecordID: "r1", SiteID: siteID, Date: day(start), PatientName: "Ana", ServiceName: "Corona",
					DoctorName: doctor, BilledTotal: dec("100000"), PayoutFraction: dec("0.40"), PayoutAmount: dec("40000"),
					Deposit: decimal.Zero, Discount: decimal.Zero, AmountPaid: dec("100000")},
			},
		}
	}

	march := mk(1, "Dra. Gómez", "2024-03-01", "2024-03-31", time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC))
	april := mk(1, "Dra. Gómez", "2024-04-01", "2024-04-30", time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))
	other := mk(2, "Dr. Pérez", "2024-03-01", "2024-03-31", time.Date(2024, 4, 2, 8, 0, 0, 0, time.UTC))
	for _, r := range []*models.SettlementReport{march, april, other} {
		if err := store.CreateSettlementReport(ctx, r); err != nil {
			t.Fatalf("CreateSettlementReport failed: %v", err)
		}
	}

	t.Run("GetSettlementReport returns rows", func(t *testing.T) {
		got, err := store.GetSettlementReport(ctx, march.ID)
		if err != nil {
			t.Fatalf("GetSettlementReport failed: %v", err)
		}
		if len(got.Rows) != 1 || !got.Rows[0].PayoutAmount.Equal(dec("40000")) {
			t.Errorf("rows = %+v", got.Rows)
		}
		if !got.Start.Equal(day("2024-03-01")) || !got.Total.Equal(dec("40000")) {
			t.Errorf("header = %+v", got)
		}
	})

	t.Run("GetSettlementReport unknown id", func(t *testing.T) {
		if _, err := store.GetSettlementReport(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})

	from := day("2024-03-01")
	to := day("2024-03-31")
	tests := []struct {
		name   string
		filter models.SettlementFilter
		want   []string
	}{
		{name: "all newest first", filter: models.SettlementFilter{}, want: []string{april.ID, other.ID, march.ID}},
		{name: "by site", filter: models.SettlementFilter{SiteID: 2}, want: []string{other.ID}},
		{name: "by doctor", filter: models.SettlementFilter{Doctor: "Dra. Gómez"}, want: []string{april.ID, march.ID}},
		{name: "by range", filter: models.SettlementFilter{From: &from, To: &to}, want: []string{other.ID, march.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListSettlementReports(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListSettlementReports failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d reports, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].ID != tt.want[i] {
					t.Errorf("report[%d] = %s, want %s", i, got[i].ID, tt.want[i])
				}
			}
		})
	}
}

func TestUsers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := models.NewUser("admin@clinica.co", "Admin", "hash", models.RoleOwner)
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	byEmail, err := store.GetUserByEmail(ctx, "admin@clinica.co")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if byEmail.ID != user.ID || byEmail.Role != models.RoleOwner {
		t.Errorf("user = %+v", byEmail)
	}

	if _, err := store.GetUserByID(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}

	if err := store.CreateUser(ctx, models.NewUser("admin@clinica.co", "Dup", "hash", "")); err == nil {
		t.Error("expected duplicate email to fail")
	}
}
