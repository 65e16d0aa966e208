package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dentalsettle/backend/internal/models"
	"github.com/dentalsettle/backend/internal/storage"
)

// CreateSettlementReport persists a report and its rows in one transaction.
func (s *SQLiteStore) CreateSettlementReport(ctx context.Context, r *models.SettlementReport) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.GeneratedAt.IsZero() {
		r.GeneratedAt = time.Now()
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO settlement_reports (id, site_id, doctor, start_date, end_date, total, generated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.SiteID, r.Doctor, formatDate(r.Start), formatDate(r.End), r.Total, r.GeneratedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert settlement report: %w", err)
		}

		for i, row := range r.Rows {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO settlement_rows (report_id, position, record_id, site_id, date, patient_name,
					service_name, doctor_name, assistant_name, deposit, discount, billed_total, is_own_patient,
					payout_fraction, payout_amount, payment_method, deposit_method, amount_paid, notes)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				r.ID, i, row.RecordID, row.SiteID, formatDate(row.Date), row.PatientName,
				row.ServiceName, row.DoctorName, row.AssistantName, row.Deposit, row.Discount, row.BilledTotal,
				boolInt(row.IsOwnPatient), row.PayoutFraction, row.PayoutAmount, row.PaymentMethod,
				row.DepositMethod, row.AmountPaid, row.Notes,
			)
			if err != nil {
				return fmt.Errorf("failed to insert settlement row: %w", err)
			}
		}
		return nil
	})
}

// GetSettlementReport retrieves a report with its rows in their original order.
func (s *SQLiteStore) GetSettlementReport(ctx context.Context, id string) (*models.SettlementReport, error) {
	r, err := scanReport(s.db.QueryRowContext(ctx,
		"SELECT "+reportColumns+" FROM settlement_reports WHERE id = ?", id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("settlement report %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settlement report: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT record_id, site_id, date, patient_name, service_name, doctor_name, assistant_name,
			deposit, discount, billed_total, is_own_patient, payout_fraction, payout_amount,
			payment_method, deposit_method, amount_paid, notes
		 FROM settlement_rows WHERE report_id = ? ORDER BY position`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get settlement rows: %w", err)
	}
	defer rows.Close()

	r.Rows = []models.SettlementRow{}
	for rows.Next() {
		var row models.SettlementRow
		var date string
		if err := rows.Scan(&row.RecordID, &row.SiteID, &date, &row.PatientName, &row.ServiceName,
			&row.DoctorName, &row.AssistantName, &row.Deposit, &row.Discount, &row.BilledTotal,
			&row.IsOwnPatient, &row.PayoutFraction, &row.PayoutAmount, &row.PaymentMethod,
			&row.DepositMethod, &row.AmountPaid, &row.Notes,
		); err != nil {
			return nil, fmt.Errorf("failed to scan settlement row: %w", err)
		}
		if row.Date, err = parseDate(date); err != nil {
			return nil, fmt.Errorf("failed to scan settlement row: %w", err)
		}
		r.Rows = append(r.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settlement rows: %w", err)
	}

	return r, nil
}

// ListSettlementReports returns report headers matching the filter, newest first.
// A site matches when the report was run for it or any of its rows belongs to it.
func (s *SQLiteStore) ListSettlementReports(ctx context.Context, f models.SettlementFilter) ([]models.SettlementReport, error) {
	var where []string
	var args []any
	if f.SiteID != 0 {
		where = append(where, `(site_id = ? OR EXISTS (
			SELECT 1 FROM settlement_rows sr WHERE sr.report_id = settlement_reports.id AND sr.site_id = ?))`)
		args = append(args, f.SiteID, f.SiteID)
	}
	if f.Doctor != "" {
		where = append(where, "doctor = ?")
		args = append(args, f.Doctor)
	}
	if f.From != nil {
		where = append(where, "start_date >= ?")
		args = append(args, formatDate(*f.From))
	}
	if f.To != nil {
		where = append(where, "end_date <= ?")
		args = append(args, formatDate(*f.To))
	}

	query := "SELECT " + reportColumns + " FROM settlement_reports"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY generated_at DESC, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlement reports: %w", err)
	}
	defer rows.Close()

	reports := []models.SettlementReport{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan settlement report: %w", err)
		}
		reports = append(reports, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settlement reports: %w", err)
	}
	return reports, nil
}

const reportColumns = "id, site_id, doctor, start_date, end_date, total, generated_at"

func scanReport(row rowScanner) (*models.SettlementReport, error) {
	var (
		r           models.SettlementReport
		start, end  string
		generatedAt int64
	)
	if err := row.Scan(&r.ID, &r.SiteID, &r.Doctor, &start, &end, &r.Total, &generatedAt); err != nil {
		return nil, err
	}
	var err error
	if r.Start, err = parseDate(start); err != nil {
		return nil, err
	}
	if r.End, err = parseDate(end); err != nil {
		return nil, err
	}
	r.GeneratedAt = time.Unix(generatedAt, 0).UTC()
	return &r, nil
}
