package models

import "github.com/shopspring/decimal"

// Site is one clinic location (sede).
type Site struct {
	ID   int64
	Name string
}

// PractitionerKind distinguishes doctors from assistants.
type PractitionerKind string

const (
	PractitionerDoctor    PractitionerKind = "doctor"
	PractitionerAssistant PractitionerKind = "assistant"
)

// Practitioner is a doctor or assistant working at a site.
type Practitioner struct {
	ID     int64
	SiteID int64
	Name   string
	Kind   PractitionerKind
}

// PriceList names an alternative set of catalog prices.
type PriceList string

const (
	PriceListStandard PriceList = "standard"
	PriceListStadium  PriceList = "stadium"
)

// CatalogEntry is a billable service and its price on one price list.
type CatalogEntry struct {
	Name      string
	Price     decimal.Decimal
	PriceList PriceList
}

// Catalog indexes catalog prices by service name.
type Catalog map[string]decimal.Decimal

// NewCatalog builds a Catalog from entries. Later entries win on duplicate names.
func NewCatalog(entries []CatalogEntry) Catalog {
	c := make(Catalog, len(entries))
	for _, e := range entries {
		c[e.Name] = e.Price
	}
	return c
}

// Patient is a patient as returned by the patient search.
type Patient struct {
	DocID string
	Name  string

	// CreditBalance is prepaid money (saldo a favor) not yet applied to services.
	CreditBalance decimal.Decimal
}

// AssistantServices lists the services an assistant may perform on their own.
var AssistantServices = []string{
	"Sesión de aclaramiento",
	"Limpieza profunda",
	"Promoción aclaramiento",
}
