package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dentalsettle/backend/internal/models"
	"github.com/dentalsettle/backend/internal/storage"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const recordColumns = `id, site_id, practitioner_name, is_assistant, patient_name, patient_doc_id,
	service_name, billed_total, outstanding, amount_paid, deposit, discount,
	payment_method, deposit_method, account_id, deposit_account_id,
	credit_holder, credit_amount, tier_id, stored_fraction, is_own_patient,
	started_on, completed_on, notes, version, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.ServiceRecord, error) {
	var (
		rec              models.ServiceRecord
		accountID        sql.NullInt64
		depositAccountID sql.NullInt64
		tierID           sql.NullInt64
		storedFraction   decimal.NullDecimal
		startedOn        string
		completedOn      sql.NullString
	)
	err := row.Scan(
		&rec.ID, &rec.SiteID, &rec.PractitionerName, &rec.IsAssistant, &rec.PatientName, &rec.PatientDocID,
		&rec.ServiceName, &rec.BilledTotal, &rec.Outstanding, &rec.AmountPaid, &rec.Deposit, &rec.Discount,
		&rec.PaymentMethod, &rec.DepositMethod, &accountID, &depositAccountID,
		&rec.CreditHolder, &rec.CreditAmount, &tierID, &storedFraction, &rec.IsOwnPatient,
		&startedOn, &completedOn, &rec.Notes, &rec.Version, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if accountID.Valid {
		rec.AccountID = &accountID.Int64
	}
	if depositAccountID.Valid {
		rec.DepositAccountID = &depositAccountID.Int64
	}
	if tierID.Valid {
		tier := int(tierID.Int64)
		rec.TierID = &tier
	}
	if storedFraction.Valid {
		rec.StoredFraction = &storedFraction.Decimal
	}
	if rec.StartedOn, err = parseDate(startedOn); err != nil {
		return nil, err
	}
	if completedOn.Valid {
		completed, err := parseDate(completedOn.String)
		if err != nil {
			return nil, err
		}
		rec.CompletedOn = &completed
	}
	return &rec, nil
}

func queryRecords(ctx context.Context, q querier, query string, args ...any) ([]models.ServiceRecord, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query service records: %w", err)
	}
	defer rows.Close()

	records := []models.ServiceRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan service record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate service records: %w", err)
	}
	return records, nil
}

// ListServiceRecords returns every record of a site, oldest first.
func (s *SQLiteStore) ListServiceRecords(ctx context.Context, siteID int64) ([]models.ServiceRecord, error) {
	return queryRecords(ctx, s.db,
		"SELECT "+recordColumns+" FROM service_records WHERE site_id = ? ORDER BY started_on, created_at, id",
		siteID,
	)
}

// ListRecordsByDate returns the records of a site started on day.
func (s *SQLiteStore) ListRecordsByDate(ctx context.Context, siteID int64, day time.Time) ([]models.ServiceRecord, error) {
	return queryRecords(ctx, s.db,
		"SELECT "+recordColumns+" FROM service_records WHERE site_id = ? AND started_on = ? ORDER BY created_at, id",
		siteID, formatDate(day),
	)
}

// ListPatientRecords returns a patient's records at a site, oldest first.
func (s *SQLiteStore) ListPatientRecords(ctx context.Context, siteID int64, patientDocID string) ([]models.ServiceRecord, error) {
	return queryRecords(ctx, s.db,
		"SELECT "+recordColumns+" FROM service_records WHERE site_id = ? AND patient_doc_id = ? ORDER BY started_on, created_at, id",
		siteID, patientDocID,
	)
}

// GetServiceRecord retrieves a record by ID.
func (s *SQLiteStore) GetServiceRecord(ctx context.Context, id string) (*models.ServiceRecord, error) {
	return getRecord(ctx, s.db, id)
}

func getRecord(ctx context.Context, q querier, id string) (*models.ServiceRecord, error) {
	rec, err := scanRecord(q.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM service_records WHERE id = ?", id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("service record %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get service record: %w", err)
	}
	return rec, nil
}

// CreateServiceRecord persists a new record.
func (s *SQLiteStore) CreateServiceRecord(ctx context.Context, rec *models.ServiceRecord) error {
	return insertRecord(ctx, s.db, rec)
}

func insertRecord(ctx context.Context, q querier, rec *models.ServiceRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt == 0 {
		rec.CreatedAt = time.Now().Unix()
	}
	rec.Version = 1

	var tierID sql.NullInt64
	if rec.TierID != nil {
		tierID = sql.NullInt64{Int64: int64(*rec.TierID), Valid: true}
	}
	var storedFraction decimal.NullDecimal
	if rec.StoredFraction != nil {
		storedFraction = decimal.NewNullDecimal(*rec.StoredFraction)
	}

	_, err := q.ExecContext(ctx,
		"INSERT INTO service_records ("+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SiteID, rec.PractitionerName, boolInt(rec.IsAssistant), rec.PatientName, rec.PatientDocID,
		rec.ServiceName, rec.BilledTotal, rec.Outstanding, rec.AmountPaid, rec.Deposit, rec.Discount,
		rec.PaymentMethod, rec.DepositMethod, nullInt64(rec.AccountID), nullInt64(rec.DepositAccountID),
		rec.CreditHolder, rec.CreditAmount, tierID, storedFraction, boolInt(rec.IsOwnPatient),
		formatDate(rec.StartedOn), nullDate(rec.CompletedOn), rec.Notes, rec.Version, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert service record: %w", err)
	}
	return nil
}

// UpdateServiceRecord applies a version-checked partial update.
func (s *SQLiteStore) UpdateServiceRecord(ctx context.Context, u models.RecordUpdate) (*models.ServiceRecord, error) {
	var updated *models.ServiceRecord
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := updateRecord(ctx, tx, u); err != nil {
			return err
		}
		var err error
		updated, err = getRecord(ctx, tx, u.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func updateRecord(ctx context.Context, q querier, u models.RecordUpdate) error {
	var deposit, discount, creditAmount decimal.NullDecimal
	if u.CreditAmount != nil {
		creditAmount = decimal.NewNullDecimal(*u.CreditAmount)
	}
	if u.Deposit != nil {
		deposit = decimal.NewNullDecimal(*u.Deposit)
	}
	if u.Discount != nil {
		discount = decimal.NewNullDecimal(*u.Discount)
	}

	res, err := q.ExecContext(ctx, `
		UPDATE service_records SET
			amount_paid = ?,
			outstanding = ?,
			completed_on = ?,
			payment_method = COALESCE(NULLIF(?, ''), payment_method),
			deposit_method = COALESCE(NULLIF(?, ''), deposit_method),
			account_id = COALESCE(?, account_id),
			deposit_account_id = COALESCE(?, deposit_account_id),
			credit_holder = COALESCE(NULLIF(?, ''), credit_holder),
			credit_amount = COALESCE(?, credit_amount),
			deposit = COALESCE(?, deposit),
			discount = COALESCE(?, discount),
			version = version + 1
		WHERE id = ? AND version = ?`,
		u.AmountPaid, u.Outstanding, nullDate(u.CompletedOn),
		u.PaymentMethod, u.DepositMethod,
		nullInt64(u.AccountID), nullInt64(u.DepositAccountID),
		u.CreditHolder, creditAmount,
		deposit, discount,
		u.ID, u.ExpectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update service record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update service record: %w", err)
	}
	if n == 1 {
		return nil
	}

	var exists int
	err = q.QueryRowContext(ctx, "SELECT 1 FROM service_records WHERE id = ?", u.ID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("service record %s: %w", u.ID, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to check service record: %w", err)
	}
	return fmt.Errorf("service record %s at version %d: %w", u.ID, u.ExpectedVersion, storage.ErrVersionConflict)
}

// SaveEntry applies the writes of one entry in a single transaction.
func (s *SQLiteStore) SaveEntry(ctx context.Context, w storage.EntryWrite) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if w.Patient.DocID != "" {
			if err := upsertPatient(ctx, tx, w.Patient); err != nil {
				return err
			}
			if !w.CreditDelta.IsZero() {
				if _, err := adjustCredit(ctx, tx, w.Patient.DocID, w.CreditDelta); err != nil {
					return err
				}
			}
		}
		for _, u := range w.Updates {
			if err := updateRecord(ctx, tx, u); err != nil {
				return err
			}
		}
		for _, rec := range w.Creates {
			if err := insertRecord(ctx, tx, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteServiceRecords deletes the given records of a site.
func (s *SQLiteStore) DeleteServiceRecords(ctx context.Context, ids []string, siteID int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	args := make([]any, 0, len(ids)+1)
	args = append(args, siteID)
	for _, id := range ids {
		args = append(args, id)
	}

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM service_records WHERE site_id = ? AND id IN ("+placeholders(len(ids))+")",
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete service records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to delete service records: %w", err)
	}
	return n, nil
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}
