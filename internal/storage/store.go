// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dentalsettle/backend/internal/models"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict is returned when a record changed since it was read.
	ErrVersionConflict = errors.New("record was modified concurrently")
)

// Store defines the persistence contract of the clinic backend.
// This abstraction keeps the service layer independent of the database.
type Store interface {
	RecordStore
	PatientStore
	CashDrawerStore
	CatalogStore
	SettlementStore
	UserStore

	// Close releases any resources held by the store.
	Close() error
}

// RecordStore persists service records.
type RecordStore interface {
	// ListServiceRecords returns every record of a site, oldest first.
	ListServiceRecords(ctx context.Context, siteID int64) ([]models.ServiceRecord, error)

	// ListRecordsByDate returns the records of a site started on day.
	ListRecordsByDate(ctx context.Context, siteID int64, day time.Time) ([]models.ServiceRecord, error)

	// ListPatientRecords returns a patient's records at a site, oldest first.
	ListPatientRecords(ctx context.Context, siteID int64, patientDocID string) ([]models.ServiceRecord, error)

	// GetServiceRecord returns ErrNotFound when no record has the id.
	GetServiceRecord(ctx context.Context, id string) (*models.ServiceRecord, error)

	// CreateServiceRecord persists a new record.
	// The ID, Version and CreatedAt fields are populated by the store.
	CreateServiceRecord(ctx context.Context, rec *models.ServiceRecord) error

	// UpdateServiceRecord applies a partial ledger update.
	// It fails with ErrVersionConflict when the stored version differs from
	// u.ExpectedVersion, and returns the record as stored afterwards.
	UpdateServiceRecord(ctx context.Context, u models.RecordUpdate) (*models.ServiceRecord, error)

	// SaveEntry applies every write of one daily-register entry atomically.
	SaveEntry(ctx context.Context, w EntryWrite) error

	// DeleteServiceRecords deletes the given records of a site and returns
	// how many were removed. Ids belonging to other sites are ignored.
	DeleteServiceRecords(ctx context.Context, ids []string, siteID int64) (int64, error)
}

// EntryWrite is the set of writes produced by one entry.
type EntryWrite struct {
	// Patient is created or renamed; its credit balance then moves by CreditDelta
	// and never drops below zero.
	Patient     models.Patient
	CreditDelta decimal.Decimal

	// Updates are applied before Creates; each is version-checked.
	Updates []models.RecordUpdate
	Creates []*models.ServiceRecord
}

// PatientStore persists patients and their credit balances.
type PatientStore interface {
	// SearchPatients returns patients whose name starts with prefix.
	SearchPatients(ctx context.Context, prefix string) ([]models.Patient, error)

	// GetPatient returns ErrNotFound for an unknown document id.
	GetPatient(ctx context.Context, docID string) (*models.Patient, error)

	// UpsertPatient creates the patient or renames it; the credit balance is kept.
	UpsertPatient(ctx context.Context, p models.Patient) error

	// AdjustPatientCredit adds delta to the credit balance and returns the new balance.
	AdjustPatientCredit(ctx context.Context, docID string, delta decimal.Decimal) (decimal.Decimal, error)
}

// CashDrawerStore persists the per-site cash drawer balance (caja base).
type CashDrawerStore interface {
	GetCashDrawerBalance(ctx context.Context, siteID int64) (decimal.Decimal, error)
	SetCashDrawerBalance(ctx context.Context, siteID int64, amount decimal.Decimal) (decimal.Decimal, error)

	// AddToCashDrawer increments the balance in a single statement and
	// returns the new balance.
	AddToCashDrawer(ctx context.Context, siteID int64, delta decimal.Decimal) (decimal.Decimal, error)
}

// CatalogStore serves the site reference data.
type CatalogStore interface {
	CreateSite(ctx context.Context, name string) (*models.Site, error)
	GetSite(ctx context.Context, id int64) (*models.Site, error)
	ListSites(ctx context.Context) ([]models.Site, error)

	CreatePractitioner(ctx context.Context, p *models.Practitioner) error
	ListDoctors(ctx context.Context, siteID int64) ([]models.Practitioner, error)
	ListAssistants(ctx context.Context, siteID int64) ([]models.Practitioner, error)

	UpsertCatalogEntry(ctx context.Context, siteID int64, e models.CatalogEntry) error
	ListServiceCatalog(ctx context.Context, siteID int64, list models.PriceList) ([]models.CatalogEntry, error)

	ListPaymentMethods(ctx context.Context, siteID int64) ([]models.PaymentMethod, error)
	GetPaymentMethod(ctx context.Context, id int64) (*models.PaymentMethod, error)

	CreateAccount(ctx context.Context, a *models.Account) error
	ListAccounts(ctx context.Context, siteID int64) ([]models.Account, error)
}

// SettlementStore persists generated settlement reports.
type SettlementStore interface {
	// CreateSettlementReport persists a report with its rows.
	// The ID field is populated by the store when empty.
	CreateSettlementReport(ctx context.Context, r *models.SettlementReport) error
	GetSettlementReport(ctx context.Context, id string) (*models.SettlementReport, error)

	// ListSettlementReports returns report headers, newest first, without rows.
	ListSettlementReports(ctx context.Context, f models.SettlementFilter) ([]models.SettlementReport, error)
}

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}
