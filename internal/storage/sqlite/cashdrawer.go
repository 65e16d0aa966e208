package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// GetCashDrawerBalance returns the site's cash drawer balance, zero when unset.
func (s *SQLiteStore) GetCashDrawerBalance(ctx context.Context, siteID int64) (decimal.Decimal, error) {
	return readDrawer(ctx, s.db, siteID)
}

// SetCashDrawerBalance overwrites the site's cash drawer balance.
func (s *SQLiteStore) SetCashDrawerBalance(ctx context.Context, siteID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cash_drawers (site_id, balance) VALUES (?, ?)
		ON CONFLICT (site_id) DO UPDATE SET balance = excluded.balance`,
		siteID, amount,
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to set cash drawer balance: %w", err)
	}
	return amount, nil
}

// AddToCashDrawer adds delta to the site's cash drawer balance.
func (s *SQLiteStore) AddToCashDrawer(ctx context.Context, siteID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := readDrawer(ctx, tx, siteID)
		if err != nil {
			return err
		}
		balance = current.Add(delta)
		_, err = tx.ExecContext(ctx, `
			INSERT INTO cash_drawers (site_id, balance) VALUES (?, ?)
			ON CONFLICT (site_id) DO UPDATE SET balance = excluded.balance`,
			siteID, balance,
		)
		if err != nil {
			return fmt.Errorf("failed to update cash drawer balance: %w", err)
		}
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

func readDrawer(ctx context.Context, q querier, siteID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := q.QueryRowContext(ctx,
		"SELECT balance FROM cash_drawers WHERE site_id = ?", siteID,
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get cash drawer balance: %w", err)
	}
	return balance, nil
}
