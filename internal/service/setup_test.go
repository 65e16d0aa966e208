package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/dentalsettle/backend/internal/metrics"
	"github.com/dentalsettle/backend/internal/models"
	"github.com/dentalsettle/backend/internal/storage"
	"github.com/dentalsettle/backend/internal/storage/sqlite"
)

type fixture struct {
	store   storage.Store
	metrics *metrics.Metrics
	logger  *slog.Logger
	site    *models.Site
	owner   models.Session
	staff   models.Session
}

// newFixture creates a temp SQLite store holding one site with a small catalog.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "service-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	store, err := sqlite.New(filepath.Join(tmpDir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	site, err := store.CreateSite(ctx, "Sede norte")
	require.NoError(t, err)

	for _, e := range []models.CatalogEntry{
		{Name: "Limpieza profunda", Price: dec("100000"), PriceList: models.PriceListStandard},
		{Name: "Ortodoncia", Price: dec("2000000"), PriceList: models.PriceListStandard},
		{Name: "Ortodoncia", Price: dec("1500000"), PriceList: models.PriceListStadium},
	} {
		require.NoError(t, store.UpsertCatalogEntry(ctx, site.ID, e))
	}
	require.NoError(t, store.CreatePractitioner(ctx, &models.Practitioner{SiteID: site.ID, Name: "Dra. Gómez", Kind: models.PractitionerDoctor}))
	require.NoError(t, store.CreatePractitioner(ctx, &models.Practitioner{SiteID: site.ID, Name: "Laura", Kind: models.PractitionerAssistant}))

	return &fixture{
		store:   store,
		metrics: metrics.New(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		site:    site,
		owner:   models.Session{UserID: "owner-1", Role: models.RoleOwner, SiteID: site.ID},
		staff:   models.Session{UserID: "staff-1", Role: models.RoleStaff, SiteID: site.ID},
	}
}

func (f *fixture) records() *RecordService {
	return NewRecordService(f.store, f.metrics, f.logger)
}

// methodID returns the id of the site's payment method of the given kind.
func (f *fixture) methodID(t *testing.T, kind models.PaymentKind) *int64 {
	t.Helper()
	methods, err := f.store.ListPaymentMethods(context.Background(), f.site.ID)
	require.NoError(t, err)
	for _, m := range methods {
		if m.Kind == kind {
			id := m.ID
			return &id
		}
	}
	t.Fatalf("no payment method of kind %q", kind)
	return nil
}

func (f *fixture) account(t *testing.T) *int64 {
	t.Helper()
	a := &models.Account{SiteID: f.site.ID, Name: "Bancolombia ahorros"}
	require.NoError(t, f.store.CreateAccount(context.Background(), a))
	return &a.ID
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(s string) time.Time {
	d, err := models.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func requireDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

var errDrawerOffline = errors.New("cash drawer offline")

// failingDrawer is a store whose cash drawer increments always fail.
type failingDrawer struct {
	storage.Store
}

func (failingDrawer) AddToCashDrawer(context.Context, int64, decimal.Decimal) (decimal.Decimal, error) {
	return decimal.Zero, errDrawerOffline
}
