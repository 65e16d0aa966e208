package service

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/dentalsettle/backend/internal/calculator"
	"github.com/dentalsettle/backend/internal/export"
	"github.com/dentalsettle/backend/internal/metrics"
	"github.com/dentalsettle/backend/internal/models"
	"github.com/dentalsettle/backend/internal/storage"
)

// SettlementService runs and archives practitioner settlements (liquidaciones).
type SettlementService struct {
	store   storage.Store
	rules   calculator.TierRules
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewSettlementService creates a SettlementService using the given payout table.
func NewSettlementService(store storage.Store, rules calculator.TierRules, m *metrics.Metrics, logger *slog.Logger) *SettlementService {
	return &SettlementService{store: store, rules: rules, metrics: m, logger: logger, now: time.Now}
}

// Run computes the settlement of doctor over period from the site's records
// and stores it. A period without matching records yields an empty report.
func (s *SettlementService) Run(ctx context.Context, sess models.Session, doctor string, period models.DateRange) (*models.SettlementReport, error) {
	doctor = strings.TrimSpace(doctor)
	if doctor == "" {
		return nil, &calculator.ValidationError{Err: calculator.ErrMissingDoctor}
	}
	if period.Start.After(period.End) {
		return nil, &calculator.ValidationError{
			Err:     calculator.ErrInvalidDateRange,
			Details: models.FormatDate(period.Start) + " > " + models.FormatDate(period.End),
		}
	}

	records, err := s.store.ListServiceRecords(ctx, sess.SiteID)
	if err != nil {
		return nil, upstream("list service records", err)
	}

	report := calculator.BuildReport(doctor, period, records, s.rules, s.now().UTC())
	report.SiteID = sess.SiteID
	if err := s.store.CreateSettlementReport(ctx, &report); err != nil {
		return nil, upstream("save settlement report", err)
	}

	s.metrics.SettlementsGenerated.Inc()
	s.logger.Info("Settlement generated",
		"report_id", report.ID,
		"site_id", sess.SiteID,
		"user_id", sess.UserID,
		"doctor", doctor,
		"rows", len(report.Rows),
		"total", report.Total.String(),
	)
	return &report, nil
}

// List returns stored report headers, newest first. A zero SiteID in the
// filter means the caller's site.
func (s *SettlementService) List(ctx context.Context, sess models.Session, f models.SettlementFilter) ([]models.SettlementReport, error) {
	if f.SiteID == 0 {
		f.SiteID = sess.SiteID
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return nil, &calculator.ValidationError{Err: calculator.ErrInvalidDateRange}
	}
	reports, err := s.store.ListSettlementReports(ctx, f)
	if err != nil {
		return nil, upstream("list settlement reports", err)
	}
	return reports, nil
}

// Get returns a stored report with its rows.
func (s *SettlementService) Get(ctx context.Context, id string) (*models.SettlementReport, error) {
	report, err := s.store.GetSettlementReport(ctx, id)
	if err != nil {
		return nil, upstream("load settlement report", err)
	}
	return report, nil
}

// Export writes a stored report as an .xlsx workbook and returns its file name.
func (s *SettlementService) Export(ctx context.Context, id string, w io.Writer) (string, error) {
	report, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if err := export.WriteWorkbook(w, report); err != nil {
		return "", err
	}
	return export.FileName(report), nil
}
