package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/dentalsettle/backend/internal/calculator"
	"github.com/dentalsettle/backend/internal/metrics"
	"github.com/dentalsettle/backend/internal/models"
	"github.com/dentalsettle/backend/internal/storage"
)

// minSearchLength is the shortest name prefix the patient search accepts.
const minSearchLength = 2

// RecordService runs the daily register: entries, pending payments and lookups.
type RecordService struct {
	store   storage.Store
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewRecordService creates a RecordService.
func NewRecordService(store storage.Store, m *metrics.Metrics, logger *slog.Logger) *RecordService {
	return &RecordService{store: store, metrics: m, logger: logger, now: time.Now}
}

// EntryRequest is a daily-register submission as received from the caller.
// Payment methods are referenced by id and resolved against the store.
type EntryRequest struct {
	Practitioner string
	IsAssistant  bool
	PatientName  string
	PatientDocID string
	Services     []string
	PriceList    models.PriceList

	// Date defaults to today.
	Date         time.Time
	IsOwnPatient bool
	TierID       *int
	Notes        string

	PaymentMethodID *int64
	PaymentAmount   decimal.Decimal
	AccountID       *int64
	CreditHolder    string
	CreditAmount    decimal.Decimal

	DepositMethodID  *int64
	DepositAmount    decimal.Decimal
	DepositAccountID *int64

	Discount calculator.Discount

	// StoredFraction fixes the payout fraction of the records the entry creates.
	StoredFraction *decimal.Decimal
}

// EntryResult is the outcome of a submitted entry.
type EntryResult struct {
	Valuation calculator.Valuation
	Records   []models.ServiceRecord

	CreditBalance decimal.Decimal

	// CashDrawerBalance is nil when the entry moved no cash.
	CashDrawerBalance *decimal.Decimal
}

// Valuate prices an entry without persisting anything.
func (s *RecordService) Valuate(ctx context.Context, sess models.Session, req EntryRequest) (calculator.Valuation, error) {
	entry, err := s.resolveEntry(ctx, sess, req)
	if err != nil {
		return calculator.Valuation{}, err
	}
	if err := calculator.ValidateEntry(entry); err != nil {
		return calculator.Valuation{}, err
	}
	valuation, _, err := s.valuate(ctx, sess, entry, req.PriceList)
	return valuation, err
}

// SubmitEntry validates, prices and persists an entry, then adjusts the
// site's cash drawer.
//
// The records and the patient's credit are written in one transaction. The
// cash drawer is adjusted afterwards; when that fails the persisted result is
// returned together with a *CashDrawerError.
func (s *RecordService) SubmitEntry(ctx context.Context, sess models.Session, req EntryRequest) (*EntryResult, error) {
	entry, err := s.resolveEntry(ctx, sess, req)
	if err != nil {
		return nil, err
	}
	if err := calculator.ValidateEntry(entry); err != nil {
		return nil, err
	}
	if _, err := s.store.GetSite(ctx, sess.SiteID); err != nil {
		return nil, upstream("load site", err)
	}

	valuation, patient, err := s.valuate(ctx, sess, entry, req.PriceList)
	if err != nil {
		return nil, err
	}
	plan := calculator.PlanEntry(entry, valuation)

	write := storage.EntryWrite{
		Patient:     models.Patient{DocID: entry.PatientDocID, Name: entry.PatientName, CreditBalance: decimal.Zero},
		CreditDelta: plan.CreditRefund.Sub(plan.CreditUsed),
	}
	result := &EntryResult{Valuation: valuation}
	for _, p := range plan.Records {
		rec := p.Record
		if p.IsNew() {
			write.Creates = append(write.Creates, &rec)
		} else {
			write.Updates = append(write.Updates, models.UpdateFrom(*p.Original, rec))
		}
	}
	// Created records receive their ids inside SaveEntry.
	if err := s.store.SaveEntry(ctx, write); err != nil {
		return nil, upstream("save entry", err)
	}
	created := 0
	for _, p := range plan.Records {
		if p.IsNew() {
			result.Records = append(result.Records, *write.Creates[created])
			created++
			continue
		}
		stored, err := s.store.GetServiceRecord(ctx, p.Original.ID)
		if err != nil {
			return nil, upstream("reload service record", err)
		}
		result.Records = append(result.Records, *stored)
	}
	result.CreditBalance = decimal.Max(decimal.Zero, patient.CreditBalance.Add(write.CreditDelta))

	s.countPayment(entry.Payment)
	s.countPayment(entry.Deposit)
	s.logger.Info("Entry saved",
		"site_id", sess.SiteID,
		"user_id", sess.UserID,
		"patient_doc_id", entry.PatientDocID,
		"records", len(result.Records),
		"net_value", valuation.NetValue.String(),
	)

	balance, err := s.adjustCashDrawer(ctx, sess.SiteID, plan.CashDelta)
	result.CashDrawerBalance = balance
	if err != nil {
		return result, err
	}
	return result, nil
}

// PaymentRequest pays against one open record.
type PaymentRequest struct {
	RecordID string

	// ExpectedVersion, when set, rejects the payment if the record changed
	// since the caller read it.
	ExpectedVersion *int64

	MethodID  int64
	Amount    decimal.Decimal
	AccountID *int64

	// CreditHolder and CreditAmount are required when the method is a credit.
	CreditHolder string
	CreditAmount decimal.Decimal

	// Date defaults to today.
	Date time.Time
}

// PaymentResult is the outcome of a pending-payment completion.
type PaymentResult struct {
	Record    models.ServiceRecord
	FullyPaid bool
	Charge    decimal.Decimal

	// CashDrawerBalance is nil when the payment moved no cash.
	CashDrawerBalance *decimal.Decimal
}

// CompletePending applies a payment to an open record, persists it with a
// version check, and then adjusts the cash drawer. A drawer failure is
// returned as *CashDrawerError together with the persisted result.
func (s *RecordService) CompletePending(ctx context.Context, sess models.Session, req PaymentRequest) (*PaymentResult, error) {
	rec, err := s.store.GetServiceRecord(ctx, req.RecordID)
	if err != nil {
		return nil, upstream("load service record", err)
	}
	if rec.SiteID != sess.SiteID {
		return nil, upstream("load service record", storage.ErrNotFound)
	}
	if req.ExpectedVersion != nil && *req.ExpectedVersion != rec.Version {
		return nil, upstream("load service record", storage.ErrVersionConflict)
	}

	tender, err := s.tender(ctx, &req.MethodID, req.Amount, req.AccountID)
	if err != nil {
		return nil, err
	}
	outcome, err := calculator.ApplyPayment(*rec, calculator.Payment{
		Amount:       tender.Amount,
		Method:       tender.Method,
		Kind:         tender.Kind,
		AccountID:    tender.AccountID,
		CreditHolder: strings.TrimSpace(req.CreditHolder),
		CreditAmount: req.CreditAmount,
		Date:         s.dateOrToday(req.Date),
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.store.UpdateServiceRecord(ctx, models.UpdateFrom(*rec, outcome.Record))
	if err != nil {
		return nil, upstream("update service record", err)
	}

	s.countPayment(tender)
	s.logger.Info("Payment recorded",
		"site_id", sess.SiteID,
		"user_id", sess.UserID,
		"record_id", updated.ID,
		"amount", tender.Amount.String(),
		"fully_paid", outcome.FullyPaid,
	)

	result := &PaymentResult{Record: *updated, FullyPaid: outcome.FullyPaid, Charge: outcome.Charge}
	balance, err := s.adjustCashDrawer(ctx, sess.SiteID, outcome.CashDelta)
	result.CashDrawerBalance = balance
	if err != nil {
		return result, err
	}
	return result, nil
}

// Pending returns the patient's open balances grouped by service.
func (s *RecordService) Pending(ctx context.Context, sess models.Session, patientDocID string) (map[string][]models.ServiceRecord, error) {
	records, err := s.store.ListPatientRecords(ctx, sess.SiteID, patientDocID)
	if err != nil {
		return nil, upstream("list patient records", err)
	}
	return calculator.ResolvePending(records, patientDocID), nil
}

// ListByDate returns the site's records entered on day.
func (s *RecordService) ListByDate(ctx context.Context, sess models.Session, day time.Time) ([]models.ServiceRecord, error) {
	records, err := s.store.ListRecordsByDate(ctx, sess.SiteID, day)
	if err != nil {
		return nil, upstream("list service records", err)
	}
	return records, nil
}

// ListOpen returns the site's unpaid records matching the filter.
func (s *RecordService) ListOpen(ctx context.Context, sess models.Session, f calculator.OpenFilter) ([]models.ServiceRecord, error) {
	records, err := s.store.ListServiceRecords(ctx, sess.SiteID)
	if err != nil {
		return nil, upstream("list service records", err)
	}
	return calculator.FilterOpen(records, f), nil
}

// SearchPatients returns patients whose name starts with name. Prefixes
// shorter than two characters return no patients.
func (s *RecordService) SearchPatients(ctx context.Context, name string) ([]models.Patient, error) {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) < minSearchLength {
		return []models.Patient{}, nil
	}
	patients, err := s.store.SearchPatients(ctx, name)
	if err != nil {
		return nil, upstream("search patients", err)
	}
	return patients, nil
}

// Delete removes records of the caller's site. Only owners and admins may delete.
func (s *RecordService) Delete(ctx context.Context, sess models.Session, ids []string) (int64, error) {
	if !sess.Role.CanCorrectBalances() {
		return 0, ErrForbidden
	}
	n, err := s.store.DeleteServiceRecords(ctx, ids, sess.SiteID)
	if err != nil {
		return 0, upstream("delete service records", err)
	}
	s.logger.Warn("Service records deleted", "site_id", sess.SiteID, "user_id", sess.UserID, "requested", len(ids), "deleted", n)
	return n, nil
}

func (s *RecordService) resolveEntry(ctx context.Context, sess models.Session, req EntryRequest) (calculator.Entry, error) {
	payment, err := s.tender(ctx, req.PaymentMethodID, req.PaymentAmount, req.AccountID)
	if err != nil {
		return calculator.Entry{}, err
	}
	deposit, err := s.tender(ctx, req.DepositMethodID, req.DepositAmount, req.DepositAccountID)
	if err != nil {
		return calculator.Entry{}, err
	}

	return calculator.Entry{
		SiteID:         sess.SiteID,
		Practitioner:   strings.TrimSpace(req.Practitioner),
		IsAssistant:    req.IsAssistant,
		PatientName:    strings.TrimSpace(req.PatientName),
		PatientDocID:   strings.TrimSpace(req.PatientDocID),
		Services:       req.Services,
		Date:           s.dateOrToday(req.Date),
		IsOwnPatient:   req.IsOwnPatient,
		TierID:         req.TierID,
		Notes:          req.Notes,
		Payment:        payment,
		Deposit:        deposit,
		CreditHolder:   strings.TrimSpace(req.CreditHolder),
		CreditAmount:   req.CreditAmount,
		Discount:       req.Discount,
		StoredFraction: req.StoredFraction,
	}, nil
}

// tender resolves a payment method id. A nil id yields a tender without method.
func (s *RecordService) tender(ctx context.Context, methodID *int64, amount decimal.Decimal, accountID *int64) (calculator.Tender, error) {
	t := calculator.Tender{Amount: amount, AccountID: accountID}
	if methodID == nil {
		return t, nil
	}
	method, err := s.store.GetPaymentMethod(ctx, *methodID)
	if err != nil {
		return calculator.Tender{}, upstream("load payment method", err)
	}
	t.Method = method.Name
	t.Kind = method.Kind
	return t, nil
}

func (s *RecordService) valuate(ctx context.Context, sess models.Session, entry calculator.Entry, list models.PriceList) (calculator.Valuation, models.Patient, error) {
	entries, err := s.store.ListServiceCatalog(ctx, sess.SiteID, list)
	if err != nil {
		return calculator.Valuation{}, models.Patient{}, upstream("list service catalog", err)
	}

	patient := models.Patient{DocID: entry.PatientDocID, Name: entry.PatientName, CreditBalance: decimal.Zero}
	stored, err := s.store.GetPatient(ctx, entry.PatientDocID)
	switch {
	case err == nil:
		patient = *stored
	case !errors.Is(err, storage.ErrNotFound):
		return calculator.Valuation{}, models.Patient{}, upstream("load patient", err)
	}

	open, err := s.store.ListPatientRecords(ctx, sess.SiteID, entry.PatientDocID)
	if err != nil {
		return calculator.Valuation{}, models.Patient{}, upstream("list patient records", err)
	}

	valuation, err := calculator.ValuateNewServices(calculator.ValuationRequest{
		Services:      entry.Services,
		Catalog:       models.NewCatalog(entries),
		PatientDocID:  entry.PatientDocID,
		OpenRecords:   open,
		CreditBalance: patient.CreditBalance,
		Discount:      entry.Discount,
		PaymentKind:   entry.Payment.Kind,
		Deposit:       entry.Deposit.Amount,
		DepositKind:   entry.Deposit.Kind,
	})
	if err != nil {
		return calculator.Valuation{}, models.Patient{}, err
	}
	return valuation, patient, nil
}

// adjustCashDrawer adds a positive cash delta to the site's drawer.
func (s *RecordService) adjustCashDrawer(ctx context.Context, siteID int64, delta decimal.Decimal) (*decimal.Decimal, error) {
	if !delta.IsPositive() {
		return nil, nil
	}
	balance, err := s.store.AddToCashDrawer(ctx, siteID, delta)
	if err != nil {
		s.metrics.CashDrawerFailures.Inc()
		s.logger.Error("Cash drawer update failed after ledger update",
			"site_id", siteID,
			"delta", delta.String(),
			"error", err,
		)
		return nil, &CashDrawerError{SiteID: siteID, Delta: delta, Err: err}
	}
	return &balance, nil
}

func (s *RecordService) countPayment(t calculator.Tender) {
	if t.Amount.IsPositive() && t.Kind != models.PaymentNone {
		s.metrics.PaymentsRecorded.WithLabelValues(string(t.Kind)).Inc()
	}
}

func (s *RecordService) dateOrToday(d time.Time) time.Time {
	if d.IsZero() {
		return models.Day(s.now())
	}
	return models.Day(d)
}
