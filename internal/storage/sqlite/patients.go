package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dentalsettle/backend/internal/models"
	"github.com/dentalsettle/backend/internal/storage"
)

const patientSearchLimit = 20

// SearchPatients returns up to 20 patients whose name starts with prefix,
// ignoring case.
func (s *SQLiteStore) SearchPatients(ctx context.Context, prefix string) ([]models.Patient, error) {
	pattern := escapeLike(strings.ToLower(prefix)) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_id, name, credit_balance
		FROM patients
		WHERE lower(name) LIKE ? ESCAPE '\'
		ORDER BY name
		LIMIT ?`,
		pattern, patientSearchLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search patients: %w", err)
	}
	defer rows.Close()

	patients := []models.Patient{}
	for rows.Next() {
		var p models.Patient
		if err := rows.Scan(&p.DocID, &p.Name, &p.CreditBalance); err != nil {
			return nil, fmt.Errorf("failed to scan patient: %w", err)
		}
		patients = append(patients, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate patients: %w", err)
	}
	return patients, nil
}

// GetPatient retrieves a patient by document id.
func (s *SQLiteStore) GetPatient(ctx context.Context, docID string) (*models.Patient, error) {
	var p models.Patient
	err := s.db.QueryRowContext(ctx,
		"SELECT doc_id, name, credit_balance FROM patients WHERE doc_id = ?", docID,
	).Scan(&p.DocID, &p.Name, &p.CreditBalance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("patient %s: %w", docID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return &p, nil
}

// UpsertPatient creates the patient or updates its name.
func (s *SQLiteStore) UpsertPatient(ctx context.Context, p models.Patient) error {
	return upsertPatient(ctx, s.db, p)
}

func upsertPatient(ctx context.Context, q querier, p models.Patient) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO patients (doc_id, name, credit_balance) VALUES (?, ?, ?)
		ON CONFLICT (doc_id) DO UPDATE SET name = excluded.name`,
		p.DocID, p.Name, p.CreditBalance,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert patient: %w", err)
	}
	return nil
}

// AdjustPatientCredit adds delta to a patient's credit balance.
// The balance never drops below zero.
func (s *SQLiteStore) AdjustPatientCredit(ctx context.Context, docID string, delta decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		balance, err = adjustCredit(ctx, tx, docID, delta)
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

func adjustCredit(ctx context.Context, q querier, docID string, delta decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := q.QueryRowContext(ctx,
		"SELECT credit_balance FROM patients WHERE doc_id = ?", docID,
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("patient %s: %w", docID, storage.ErrNotFound)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read patient credit: %w", err)
	}

	balance = balance.Add(delta)
	if balance.IsNegative() {
		balance = decimal.Zero
	}
	if _, err := q.ExecContext(ctx,
		"UPDATE patients SET credit_balance = ? WHERE doc_id = ?", balance, docID,
	); err != nil {
		return decimal.Zero, fmt.Errorf("failed to update patient credit: %w", err)
	}
	return balance, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
