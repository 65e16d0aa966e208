package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dentalsettle/backend/internal/auth"
	"github.com/dentalsettle/backend/internal/calculator"
	"github.com/dentalsettle/backend/internal/middleware"
	"github.com/dentalsettle/backend/internal/models"
	"github.com/dentalsettle/backend/internal/service"
	"github.com/dentalsettle/backend/internal/storage"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handlers groups all HTTP handler methods and their dependencies.
type Handlers struct {
	auth        *service.AuthService
	records     *service.RecordService
	settlements *service.SettlementService
	cashDrawer  *service.CashDrawerService
	catalog     *service.CatalogService
	logger      *slog.Logger
}

// --- helpers ---

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

// fail maps a service error onto an HTTP status.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", r.URL.Path, "error", err)
	}
	h.writeError(w, status, err.Error())
}

func errorStatus(err error) int {
	var (
		validation *calculator.ValidationError
		notFound   *calculator.NotFoundError
		upstream   *service.UpstreamError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &notFound), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrVersionConflict), errors.Is(err, auth.ErrEmailExists):
		return http.StatusConflict
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrWeakPassword), errors.Is(err, auth.ErrInvalidRole), errors.Is(err, service.ErrMissingField):
		return http.StatusBadRequest
	case errors.As(err, &upstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// cashDrawerWarning reports whether err is a cash drawer failure that left
// the ledger result valid, and returns the message to surface with it.
func cashDrawerWarning(err error) (string, bool) {
	var drawerErr *service.CashDrawerError
	if errors.As(err, &drawerErr) {
		return drawerErr.Error(), true
	}
	return "", false
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func session(r *http.Request) models.Session {
	s, _ := middleware.GetSession(r.Context())
	return s
}

func parseOptionalDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	d, err := models.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return d, nil
}

func parseDatePtr(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	d, err := parseOptionalDate(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// --- Health ---

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Auth ---

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, token, err := h.auth.Register(r.Context(), req.Email, req.DisplayName, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, authResponse{User: toUserJSON(user), Token: token})
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, token, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, authResponse{User: toUserJSON(user), Token: token})
}

// --- Catalog ---

func (h *Handlers) ListSites(w http.ResponseWriter, r *http.Request) {
	sites, err := h.catalog.Sites(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]namedJSON, 0, len(sites))
	for _, s := range sites {
		out = append(out, namedJSON{ID: s.ID, Name: s.Name})
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) ListDoctors(w http.ResponseWriter, r *http.Request) {
	doctors, err := h.catalog.Doctors(r.Context(), session(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, practitionersJSON(doctors))
}

func (h *Handlers) ListAssistants(w http.ResponseWriter, r *http.Request) {
	assistants, err := h.catalog.Assistants(r.Context(), session(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, practitionersJSON(assistants))
}

func practitionersJSON(ps []models.Practitioner) []namedJSON {
	out := make([]namedJSON, 0, len(ps))
	for _, p := range ps {
		out = append(out, namedJSON{ID: p.ID, Name: p.Name})
	}
	return out
}

func (h *Handlers) ListServices(w http.ResponseWriter, r *http.Request) {
	list := models.PriceList(r.URL.Query().Get("price_list"))
	entries, err := h.catalog.Services(r.Context(), session(r), list)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]catalogEntryJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, catalogEntryJSON{Name: e.Name, Price: e.Price, PriceList: e.PriceList})
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) ListPaymentMethods(w http.ResponseWriter, r *http.Request) {
	methods, err := h.catalog.PaymentMethods(r.Context(), session(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]paymentMethodJSON, 0, len(methods))
	for _, m := range methods {
		out = append(out, paymentMethodJSON{
			ID:                   m.ID,
			Name:                 m.Name,
			Kind:                 m.Kind,
			RequiresAccount:      m.Kind.RequiresAccountSelection(),
			RequiresCreditHolder: m.Kind.RequiresCreditHolder(),
			AppliesSurcharge:     m.Kind.AppliesSurcharge(),
		})
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.catalog.Accounts(r.Context(), session(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]namedJSON, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, namedJSON{ID: a.ID, Name: a.Name})
	}
	h.writeJSON(w, http.StatusOK, out)
}

// --- Patients ---

func (h *Handlers) SearchPatients(w http.ResponseWriter, r *http.Request) {
	patients, err := h.records.SearchPatients(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]patientJSON, 0, len(patients))
	for _, p := range patients {
		out = append(out, patientJSON{DocID: p.DocID, Name: p.Name, CreditBalance: p.CreditBalance})
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) GetPending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.records.Pending(r.Context(), session(r), chi.URLParam(r, "docID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make(map[string][]recordJSON, len(pending))
	for name, records := range pending {
		out[name] = toRecordsJSON(records)
	}
	h.writeJSON(w, http.StatusOK, out)
}

// --- Records ---

// ListRecords returns the records entered on ?date=, today when omitted.
func (h *Handlers) ListRecords(w http.ResponseWriter, r *http.Request) {
	day, err := parseOptionalDate(r.URL.Query().Get("date"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if day.IsZero() {
		day = models.Day(time.Now())
	}
	records, err := h.records.ListByDate(r.Context(), session(r), day)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toRecordsJSON(records))
}

func (h *Handlers) ListOpenRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := parseDatePtr(q.Get("from"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseDatePtr(q.Get("to"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	records, err := h.records.ListOpen(r.Context(), session(r), calculator.OpenFilter{
		Practitioner: q.Get("practitioner"),
		Service:      q.Get("service"),
		From:         from,
		To:           to,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toRecordsJSON(records))
}

func (h *Handlers) Valuate(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeEntry(w, r)
	if !ok {
		return
	}
	valuation, err := h.records.Valuate(r.Context(), session(r), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toValuationJSON(valuation))
}

func (h *Handlers) SubmitEntry(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeEntry(w, r)
	if !ok {
		return
	}
	res, err := h.records.SubmitEntry(r.Context(), session(r), req)
	warning, partial := cashDrawerWarning(err)
	if err != nil && !partial {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, entryResponse{
		Valuation:         toValuationJSON(res.Valuation),
		Records:           toRecordsJSON(res.Records),
		CreditBalance:     res.CreditBalance,
		CashDrawerBalance: res.CashDrawerBalance,
		Warning:           warning,
	})
}

func (h *Handlers) decodeEntry(w http.ResponseWriter, r *http.Request) (service.EntryRequest, bool) {
	var body entryRequest
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return service.EntryRequest{}, false
	}
	req, err := body.toService()
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return service.EntryRequest{}, false
	}
	return req, true
}

func (h *Handlers) CompletePending(w http.ResponseWriter, r *http.Request) {
	var body paymentRequest
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	day, err := parseOptionalDate(body.Date)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.records.CompletePending(r.Context(), session(r), service.PaymentRequest{
		RecordID:        chi.URLParam(r, "id"),
		ExpectedVersion: body.ExpectedVersion,
		MethodID:        body.MethodID,
		Amount:          body.Amount,
		AccountID:       body.AccountID,
		CreditHolder:    body.CreditHolder,
		CreditAmount:    body.CreditAmount,
		Date:            day,
	})
	warning, partial := cashDrawerWarning(err)
	if err != nil && !partial {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, paymentResponse{
		Record:            toRecordJSON(res.Record),
		FullyPaid:         res.FullyPaid,
		Charge:            res.Charge,
		CashDrawerBalance: res.CashDrawerBalance,
		Warning:           warning,
	})
}

func (h *Handlers) DeleteRecords(w http.ResponseWriter, r *http.Request) {
	var body deleteRequest
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(body.IDs) == 0 {
		h.writeError(w, http.StatusBadRequest, "ids are required")
		return
	}
	n, err := h.records.Delete(r.Context(), session(r), body.IDs)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// --- Cash drawer ---

func (h *Handlers) GetCashDrawer(w http.ResponseWriter, r *http.Request) {
	balance, err := h.cashDrawer.Get(r.Context(), session(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, cashDrawerJSON{Balance: balance})
}

func (h *Handlers) SetCashDrawer(w http.ResponseWriter, r *http.Request) {
	var body cashDrawerJSON
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	balance, err := h.cashDrawer.Set(r.Context(), session(r), body.Balance)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, cashDrawerJSON{Balance: balance})
}

// --- Settlements ---

func (h *Handlers) RunSettlement(w http.ResponseWriter, r *http.Request) {
	var body settlementRequest
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	start, err := models.ParseDate(body.Start)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "start must be YYYY-MM-DD")
		return
	}
	end, err := models.ParseDate(body.End)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "end must be YYYY-MM-DD")
		return
	}

	report, err := h.settlements.Run(r.Context(), session(r), body.Doctor, models.DateRange{Start: start, End: end})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toSettlementJSON(report))
}

// ListSettlements returns report headers filtered by ?doctor=, ?from=, ?to=
// and ?site_id= (the caller's site when omitted).
func (h *Handlers) ListSettlements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		f   = models.SettlementFilter{Doctor: q.Get("doctor")}
		err error
	)
	if s := q.Get("site_id"); s != "" {
		if f.SiteID, err = strconv.ParseInt(s, 10, 64); err != nil || f.SiteID <= 0 {
			h.writeError(w, http.StatusBadRequest, "site_id must be a positive integer")
			return
		}
	}
	if f.From, err = parseDatePtr(q.Get("from")); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if f.To, err = parseDatePtr(q.Get("to")); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reports, err := h.settlements.List(r.Context(), session(r), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]settlementJSON, 0, len(reports))
	for i := range reports {
		out = append(out, toSettlementJSON(&reports[i]))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) GetSettlement(w http.ResponseWriter, r *http.Request) {
	report, err := h.settlements.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toSettlementJSON(report))
}

func (h *Handlers) ExportSettlement(w http.ResponseWriter, r *http.Request) {
	// Buffered so a failure can still be reported as JSON.
	var buf bytes.Buffer
	name, err := h.settlements.Export(r.Context(), chi.URLParam(r, "id"), &buf)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("Failed to write export", "error", err)
	}
}
