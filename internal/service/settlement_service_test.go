package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/dentalsettle/backend/internal/calculator"
	"github.com/dentalsettle/backend/internal/models"
)

func TestSettlementRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	records := f.records()

	for _, d := range []string{"2024-03-04", "2024-03-28", "2024-04-02"} {
		req := entryRequest("Limpieza profunda")
		req.PatientDocID = "doc-" + d
		req.Date = date(d)
		_, err := records.SubmitEntry(ctx, f.staff, req)
		require.NoError(t, err)
	}
	own := entryRequest("Ortodoncia")
	own.IsOwnPatient = true
	own.Date = date("2024-03-10")
	_, err := records.SubmitEntry(ctx, f.staff, own)
	require.NoError(t, err)

	svc := NewSettlementService(f.store, calculator.DefaultTierRules(), f.metrics, f.logger)
	svc.now = func() time.Time { return time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC) }

	march := models.DateRange{Start: date("2024-03-01"), End: date("2024-03-31")}
	report, err := svc.Run(ctx, f.staff, "Dra. Gómez", march)
	require.NoError(t, err)
	require.NotEmpty(t, report.ID)
	require.Equal(t, f.site.ID, report.SiteID)
	require.Len(t, report.Rows, 3)
	// Two clinic patients at 40% plus one own patient at 50%.
	requireDec(t, "1080000", report.Total)
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SettlementsGenerated))

	stored, err := svc.Get(ctx, report.ID)
	require.NoError(t, err)
	require.Len(t, stored.Rows, 3)
	requireDec(t, "1080000", stored.Total)

	empty, err := svc.Run(ctx, f.staff, "Dr. Nadie", march)
	require.NoError(t, err)
	require.True(t, empty.IsEmpty())
	requireDec(t, "0", empty.Total)

	list, err := svc.List(ctx, f.staff, models.SettlementFilter{Doctor: "Dra. Gómez"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, report.ID, list[0].ID)

	var buf bytes.Buffer
	name, err := svc.Export(ctx, report.ID, &buf)
	require.NoError(t, err)
	require.Contains(t, name, ".xlsx")
	require.NotZero(t, buf.Len())
}

func TestSettlementRunRejected(t *testing.T) {
	f := newFixture(t)
	svc := NewSettlementService(f.store, calculator.DefaultTierRules(), f.metrics, f.logger)
	ctx := context.Background()

	_, err := svc.Run(ctx, f.staff, " ", models.DateRange{Start: date("2024-03-01"), End: date("2024-03-31")})
	require.ErrorIs(t, err, calculator.ErrMissingDoctor)

	_, err = svc.Run(ctx, f.staff, "Dra. Gómez", models.DateRange{Start: date("2024-04-01"), End: date("2024-03-01")})
	require.ErrorIs(t, err, calculator.ErrInvalidDateRange)

	from, to := date("2024-04-01"), date("2024-03-01")
	_, err = svc.List(ctx, f.staff, models.SettlementFilter{From: &from, To: &to})
	require.ErrorIs(t, err, calculator.ErrInvalidDateRange)

	require.Equal(t, 0.0, testutil.ToFloat64(f.metrics.SettlementsGenerated))
}
