package service

import (
	"context"

	"github.com/dentalsettle/backend/internal/models"
	"github.com/dentalsettle/backend/internal/storage"
)

// CatalogService serves the reference data of a site.
type CatalogService struct {
	store storage.CatalogStore
}

// NewCatalogService creates a CatalogService.
func NewCatalogService(store storage.CatalogStore) *CatalogService {
	return &CatalogService{store: store}
}

func (s *CatalogService) Sites(ctx context.Context) ([]models.Site, error) {
	sites, err := s.store.ListSites(ctx)
	if err != nil {
		return nil, upstream("list sites", err)
	}
	return sites, nil
}

func (s *CatalogService) Doctors(ctx context.Context, sess models.Session) ([]models.Practitioner, error) {
	doctors, err := s.store.ListDoctors(ctx, sess.SiteID)
	if err != nil {
		return nil, upstream("list doctors", err)
	}
	return doctors, nil
}

func (s *CatalogService) Assistants(ctx context.Context, sess models.Session) ([]models.Practitioner, error) {
	assistants, err := s.store.ListAssistants(ctx, sess.SiteID)
	if err != nil {
		return nil, upstream("list assistants", err)
	}
	return assistants, nil
}

// Services lists the site's catalog on a price list; empty means standard.
func (s *CatalogService) Services(ctx context.Context, sess models.Session, list models.PriceList) ([]models.CatalogEntry, error) {
	entries, err := s.store.ListServiceCatalog(ctx, sess.SiteID, list)
	if err != nil {
		return nil, upstream("list service catalog", err)
	}
	return entries, nil
}

func (s *CatalogService) PaymentMethods(ctx context.Context, sess models.Session) ([]models.PaymentMethod, error) {
	methods, err := s.store.ListPaymentMethods(ctx, sess.SiteID)
	if err != nil {
		return nil, upstream("list payment methods", err)
	}
	return methods, nil
}

func (s *CatalogService) Accounts(ctx context.Context, sess models.Session) ([]models.Account, error) {
	accounts, err := s.store.ListAccounts(ctx, sess.SiteID)
	if err != nil {
		return nil, upstream("list accounts", err)
	}
	return accounts, nil
}
