package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dentalsettle/backend/internal/models"
	"github.com/dentalsettle/backend/internal/storage"
)

// defaultPaymentMethods are created with every new site.
var defaultPaymentMethods = []string{"Efectivo", "Transferencia", "Crédito", "Datáfono"}

// CreateSite creates a site with the default payment methods and an empty cash drawer.
func (s *SQLiteStore) CreateSite(ctx context.Context, name string) (*models.Site, error) {
	site := &models.Site{Name: name}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "INSERT INTO sites (name) VALUES (?)", name)
		if err != nil {
			return fmt.Errorf("failed to insert site: %w", err)
		}
		if site.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to read site id: %w", err)
		}

		for _, method := range defaultPaymentMethods {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO payment_methods (site_id, name) VALUES (?, ?)", site.ID, method,
			); err != nil {
				return fmt.Errorf("failed to insert payment method: %w", err)
			}
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO cash_drawers (site_id, balance) VALUES (?, '0')", site.ID,
		); err != nil {
			return fmt.Errorf("failed to insert cash drawer: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return site, nil
}

// GetSite retrieves a site by ID.
func (s *SQLiteStore) GetSite(ctx context.Context, id int64) (*models.Site, error) {
	site := &models.Site{}
	err := s.db.QueryRowContext(ctx, "SELECT id, name FROM sites WHERE id = ?", id).Scan(&site.ID, &site.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("site %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get site: %w", err)
	}
	return site, nil
}

// ListSites returns every site ordered by ID.
func (s *SQLiteStore) ListSites(ctx context.Context) ([]models.Site, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name FROM sites ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	defer rows.Close()

	sites := []models.Site{}
	for rows.Next() {
		var site models.Site
		if err := rows.Scan(&site.ID, &site.Name); err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		sites = append(sites, site)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sites: %w", err)
	}
	return sites, nil
}

// CreatePractitioner inserts a doctor or assistant and sets its ID.
func (s *SQLiteStore) CreatePractitioner(ctx context.Context, p *models.Practitioner) error {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO practitioners (site_id, name, kind) VALUES (?, ?, ?)",
		p.SiteID, p.Name, string(p.Kind),
	)
	if err != nil {
		return fmt.Errorf("failed to insert practitioner: %w", err)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to read practitioner id: %w", err)
	}
	return nil
}

// ListDoctors returns the site's doctors ordered by name.
func (s *SQLiteStore) ListDoctors(ctx context.Context, siteID int64) ([]models.Practitioner, error) {
	return s.listPractitioners(ctx, siteID, models.PractitionerDoctor)
}

// ListAssistants returns the site's assistants ordered by name.
func (s *SQLiteStore) ListAssistants(ctx context.Context, siteID int64) ([]models.Practitioner, error) {
	return s.listPractitioners(ctx, siteID, models.PractitionerAssistant)
}

func (s *SQLiteStore) listPractitioners(ctx context.Context, siteID int64, kind models.PractitionerKind) ([]models.Practitioner, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, site_id, name, kind FROM practitioners WHERE site_id = ? AND kind = ? ORDER BY name",
		siteID, string(kind),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list practitioners: %w", err)
	}
	defer rows.Close()

	out := []models.Practitioner{}
	for rows.Next() {
		var p models.Practitioner
		var k string
		if err := rows.Scan(&p.ID, &p.SiteID, &p.Name, &k); err != nil {
			return nil, fmt.Errorf("failed to scan practitioner: %w", err)
		}
		p.Kind = models.PractitionerKind(k)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate practitioners: %w", err)
	}
	return out, nil
}

// UpsertCatalogEntry sets the price of a service on one price list.
func (s *SQLiteStore) UpsertCatalogEntry(ctx context.Context, siteID int64, e models.CatalogEntry) error {
	list := e.PriceList
	if list == "" {
		list = models.PriceListStandard
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO services (site_id, name, price_list, price) VALUES (?, ?, ?, ?)
		ON CONFLICT (site_id, name, price_list) DO UPDATE SET price = excluded.price`,
		siteID, e.Name, string(list), e.Price,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert catalog entry: %w", err)
	}
	return nil
}

// ListServiceCatalog returns the site's services priced on the given list.
func (s *SQLiteStore) ListServiceCatalog(ctx context.Context, siteID int64, list models.PriceList) ([]models.CatalogEntry, error) {
	if list == "" {
		list = models.PriceListStandard
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT name, price, price_list FROM services WHERE site_id = ? AND price_list = ? ORDER BY name",
		siteID, string(list),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	defer rows.Close()

	entries := []models.CatalogEntry{}
	for rows.Next() {
		var e models.CatalogEntry
		var pl string
		if err := rows.Scan(&e.Name, &e.Price, &pl); err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		e.PriceList = models.PriceList(pl)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate services: %w", err)
	}
	return entries, nil
}

// ListPaymentMethods returns the site's payment methods with their parsed kinds.
func (s *SQLiteStore) ListPaymentMethods(ctx context.Context, siteID int64) ([]models.PaymentMethod, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name FROM payment_methods WHERE site_id = ? ORDER BY id", siteID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment methods: %w", err)
	}
	defer rows.Close()

	methods := []models.PaymentMethod{}
	for rows.Next() {
		var m models.PaymentMethod
		if err := rows.Scan(&m.ID, &m.Name); err != nil {
			return nil, fmt.Errorf("failed to scan payment method: %w", err)
		}
		m.Kind = models.ParsePaymentKind(m.Name)
		methods = append(methods, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payment methods: %w", err)
	}
	return methods, nil
}

// GetPaymentMethod retrieves a payment method by ID.
func (s *SQLiteStore) GetPaymentMethod(ctx context.Context, id int64) (*models.PaymentMethod, error) {
	m := &models.PaymentMethod{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name FROM payment_methods WHERE id = ?", id,
	).Scan(&m.ID, &m.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("payment method %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment method: %w", err)
	}
	m.Kind = models.ParsePaymentKind(m.Name)
	return m, nil
}

// CreateAccount inserts a bank account and sets its ID.
func (s *SQLiteStore) CreateAccount(ctx context.Context, a *models.Account) error {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO accounts (site_id, name) VALUES (?, ?)", a.SiteID, a.Name,
	)
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to read account id: %w", err)
	}
	return nil
}

// ListAccounts returns the site's bank accounts.
func (s *SQLiteStore) ListAccounts(ctx context.Context, siteID int64) ([]models.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, site_id, name FROM accounts WHERE site_id = ? ORDER BY name", siteID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	accounts := []models.Account{}
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.ID, &a.SiteID, &a.Name); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}
	return accounts, nil
}
