package service

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/dentalsettle/backend/internal/calculator"
	"github.com/dentalsettle/backend/internal/models"
	"github.com/dentalsettle/backend/internal/storage"
)

// CashDrawerService reads and corrects the site cash drawer (caja base).
type CashDrawerService struct {
	store  storage.CashDrawerStore
	logger *slog.Logger
}

// NewCashDrawerService creates a CashDrawerService.
func NewCashDrawerService(store storage.CashDrawerStore, logger *slog.Logger) *CashDrawerService {
	return &CashDrawerService{store: store, logger: logger}
}

// Get returns the balance of the caller's site.
func (s *CashDrawerService) Get(ctx context.Context, sess models.Session) (decimal.Decimal, error) {
	balance, err := s.store.GetCashDrawerBalance(ctx, sess.SiteID)
	if err != nil {
		return decimal.Zero, upstream("get cash drawer balance", err)
	}
	return balance, nil
}

// Set overwrites the balance of the caller's site. Only owners and admins may.
func (s *CashDrawerService) Set(ctx context.Context, sess models.Session, amount decimal.Decimal) (decimal.Decimal, error) {
	if !sess.Role.CanCorrectBalances() {
		return decimal.Zero, ErrForbidden
	}
	if amount.IsNegative() {
		return decimal.Zero, &calculator.ValidationError{Err: calculator.ErrNegativeAmount}
	}
	balance, err := s.store.SetCashDrawerBalance(ctx, sess.SiteID, amount)
	if err != nil {
		return decimal.Zero, upstream("set cash drawer balance", err)
	}
	s.logger.Warn("Cash drawer corrected", "site_id", sess.SiteID, "user_id", sess.UserID, "balance", balance.String())
	return balance, nil
}
