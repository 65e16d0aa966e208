// Package api exposes the clinic services over HTTP/JSON.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dentalsettle/backend/internal/auth"
	"github.com/dentalsettle/backend/internal/metrics"
	"github.com/dentalsettle/backend/internal/middleware"
	"github.com/dentalsettle/backend/internal/service"
)

// Deps are the collaborators the router dispatches to.
type Deps struct {
	Auth        *service.AuthService
	Records     *service.RecordService
	Settlements *service.SettlementService
	CashDrawer  *service.CashDrawerService
	Catalog     *service.CatalogService

	JWT        *auth.JWTManager
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	CORSOrigin string
}

// NewRouter creates the chi router with every route mounted.
func NewRouter(d Deps) http.Handler {
	h := &Handlers{
		auth:        d.Auth,
		records:     d.Records,
		settlements: d.Settlements,
		cashDrawer:  d.CashDrawer,
		catalog:     d.Catalog,
		logger:      d.Logger,
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.CORS(d.CORSOrigin))
	r.Use(middleware.Instrument(d.Metrics))

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.HandlerFor(d.Metrics.Registry, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		// Public.
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(d.JWT))

			r.Get("/sites", h.ListSites)

			// Everything below acts on the site named by X-Site-ID.
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireSite)

				// Catalog.
				r.Get("/doctors", h.ListDoctors)
				r.Get("/assistants", h.ListAssistants)
				r.Get("/services", h.ListServices)
				r.Get("/payment-methods", h.ListPaymentMethods)
				r.Get("/accounts", h.ListAccounts)

				// Patients.
				r.Get("/patients/search", h.SearchPatients)
				r.Get("/patients/{docID}/pending", h.GetPending)

				// Records.
				r.Get("/records", h.ListRecords)
				r.Get("/records/open", h.ListOpenRecords)
				r.Post("/records", h.SubmitEntry)
				r.Delete("/records", h.DeleteRecords)
				r.Post("/records/{id}/payments", h.CompletePending)
				r.Post("/valuations", h.Valuate)

				// Cash drawer.
				r.Get("/cash-drawer", h.GetCashDrawer)
				r.Put("/cash-drawer", h.SetCashDrawer)

				// Settlements.
				r.Post("/settlements", h.RunSettlement)
				r.Get("/settlements", h.ListSettlements)
				r.Get("/settlements/{id}", h.GetSettlement)
				r.Get("/settlements/{id}/export", h.ExportSettlement)
			})
		})
	})

	return r
}
