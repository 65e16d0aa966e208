package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dentalsettle/backend/internal/calculator"
	"github.com/dentalsettle/backend/internal/models"
	"github.com/dentalsettle/backend/internal/service"
)

// Amounts travel as decimal strings ("150000") and dates as "2006-01-02".

type credentialsRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

type userJSON struct {
	ID          string      `json:"id"`
	Email       string      `json:"email"`
	DisplayName string      `json:"display_name"`
	Role        models.Role `json:"role"`
}

type authResponse struct {
	User  userJSON `json:"user"`
	Token string   `json:"token"`
}

func toUserJSON(u *models.User) userJSON {
	return userJSON{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName, Role: u.Role}
}

type discountJSON struct {
	Value        decimal.Decimal `json:"value"`
	IsPercentage bool            `json:"is_percentage"`
}

type entryRequest struct {
	Practitioner string   `json:"practitioner"`
	IsAssistant  bool     `json:"is_assistant"`
	PatientName  string   `json:"patient_name"`
	PatientDocID string   `json:"patient_doc_id"`
	Services     []string `json:"services"`
	PriceList    string   `json:"price_list"`
	Date         string   `json:"date"`
	IsOwnPatient bool     `json:"is_own_patient"`
	TierID       *int     `json:"tier_id"`
	Notes        string   `json:"notes"`

	PaymentMethodID *int64          `json:"payment_method_id"`
	PaymentAmount   decimal.Decimal `json:"payment_amount"`
	AccountID       *int64          `json:"account_id"`
	CreditHolder    string          `json:"credit_holder"`
	CreditAmount    decimal.Decimal `json:"credit_amount"`

	DepositMethodID  *int64          `json:"deposit_method_id"`
	DepositAmount    decimal.Decimal `json:"deposit_amount"`
	DepositAccountID *int64          `json:"deposit_account_id"`

	Discount       discountJSON     `json:"discount"`
	StoredFraction *decimal.Decimal `json:"stored_fraction"`
}

func (r entryRequest) toService() (service.EntryRequest, error) {
	day, err := parseOptionalDate(r.Date)
	if err != nil {
		return service.EntryRequest{}, err
	}
	return service.EntryRequest{
		Practitioner:     r.Practitioner,
		IsAssistant:      r.IsAssistant,
		PatientName:      r.PatientName,
		PatientDocID:     r.PatientDocID,
		Services:         r.Services,
		PriceList:        models.PriceList(r.PriceList),
		Date:             day,
		IsOwnPatient:     r.IsOwnPatient,
		TierID:           r.TierID,
		Notes:            r.Notes,
		PaymentMethodID:  r.PaymentMethodID,
		PaymentAmount:    r.PaymentAmount,
		AccountID:        r.AccountID,
		CreditHolder:     r.CreditHolder,
		CreditAmount:     r.CreditAmount,
		DepositMethodID:  r.DepositMethodID,
		DepositAmount:    r.DepositAmount,
		DepositAccountID: r.DepositAccountID,
		Discount:         calculator.Discount{Value: r.Discount.Value, IsPercentage: r.Discount.IsPercentage},
		StoredFraction:   r.StoredFraction,
	}, nil
}

type paymentRequest struct {
	ExpectedVersion *int64          `json:"expected_version"`
	MethodID        int64           `json:"method_id"`
	Amount          decimal.Decimal `json:"amount"`
	AccountID       *int64          `json:"account_id"`
	CreditHolder    string          `json:"credit_holder"`
	CreditAmount    decimal.Decimal `json:"credit_amount"`
	Date            string          `json:"date"`
}

type deleteRequest struct {
	IDs []string `json:"ids"`
}

type cashDrawerJSON struct {
	Balance decimal.Decimal `json:"balance"`
}

type settlementRequest struct {
	Doctor string `json:"doctor"`
	Start  string `json:"start"`
	End    string `json:"end"`
}

type recordJSON struct {
	ID               string           `json:"id"`
	SiteID           int64            `json:"site_id"`
	Practitioner     string           `json:"practitioner"`
	IsAssistant      bool             `json:"is_assistant"`
	PatientName      string           `json:"patient_name"`
	PatientDocID     string           `json:"patient_doc_id"`
	Service          string           `json:"service"`
	BilledTotal      decimal.Decimal  `json:"billed_total"`
	Outstanding      decimal.Decimal  `json:"outstanding"`
	AmountPaid       decimal.Decimal  `json:"amount_paid"`
	Deposit          decimal.Decimal  `json:"deposit"`
	Discount         decimal.Decimal  `json:"discount"`
	PaymentMethod    string           `json:"payment_method,omitempty"`
	DepositMethod    string           `json:"deposit_method,omitempty"`
	AccountID        *int64           `json:"account_id,omitempty"`
	DepositAccountID *int64           `json:"deposit_account_id,omitempty"`
	CreditHolder     string           `json:"credit_holder,omitempty"`
	CreditAmount     decimal.Decimal  `json:"credit_amount"`
	TierID           *int             `json:"tier_id,omitempty"`
	StoredFraction   *decimal.Decimal `json:"stored_fraction,omitempty"`
	IsOwnPatient     bool             `json:"is_own_patient"`
	StartedOn        string           `json:"started_on"`
	CompletedOn      *string          `json:"completed_on"`
	Notes            string           `json:"notes,omitempty"`
	Version          int64            `json:"version"`
}

func toRecordJSON(r models.ServiceRecord) recordJSON {
	out := recordJSON{
		ID:               r.ID,
		SiteID:           r.SiteID,
		Practitioner:     r.PractitionerName,
		IsAssistant:      r.IsAssistant,
		PatientName:      r.PatientName,
		PatientDocID:     r.PatientDocID,
		Service:          r.ServiceName,
		BilledTotal:      r.BilledTotal,
		Outstanding:      r.Outstanding,
		AmountPaid:       r.AmountPaid,
		Deposit:          r.Deposit,
		Discount:         r.Discount,
		PaymentMethod:    r.PaymentMethod,
		DepositMethod:    r.DepositMethod,
		AccountID:        r.AccountID,
		DepositAccountID: r.DepositAccountID,
		CreditHolder:     r.CreditHolder,
		CreditAmount:     r.CreditAmount,
		TierID:           r.TierID,
		StoredFraction:   r.StoredFraction,
		IsOwnPatient:     r.IsOwnPatient,
		StartedOn:        models.FormatDate(r.StartedOn),
		Notes:            r.Notes,
		Version:          r.Version,
	}
	if r.CompletedOn != nil {
		s := models.FormatDate(*r.CompletedOn)
		out.CompletedOn = &s
	}
	return out
}

func toRecordsJSON(records []models.ServiceRecord) []recordJSON {
	out := make([]recordJSON, 0, len(records))
	for _, r := range records {
		out = append(out, toRecordJSON(r))
	}
	return out
}

type valuationLineJSON struct {
	Service     string          `json:"service"`
	BilledTotal decimal.Decimal `json:"billed_total"`
	Outstanding decimal.Decimal `json:"outstanding"`

	// ContinuesRecordID is set when the line pays into an open record.
	ContinuesRecordID *string `json:"continues_record_id,omitempty"`
}

type valuationJSON struct {
	Lines              []valuationLineJSON `json:"lines"`
	BilledTotal        decimal.Decimal     `json:"billed_total"`
	Subtotal           decimal.Decimal     `json:"subtotal"`
	CreditApplied      decimal.Decimal     `json:"credit_applied"`
	DiscountApplied    decimal.Decimal     `json:"discount_applied"`
	NetBeforeSurcharge decimal.Decimal     `json:"net_before_surcharge"`
	NetValue           decimal.Decimal     `json:"net_value"`
	DepositCharge      decimal.Decimal     `json:"deposit_charge"`
}

func toValuationJSON(v calculator.Valuation) valuationJSON {
	out := valuationJSON{
		Lines:              make([]valuationLineJSON, 0, len(v.Lines)),
		BilledTotal:        v.BilledTotal,
		Subtotal:           v.Subtotal,
		CreditApplied:      v.CreditApplied,
		DiscountApplied:    v.DiscountApplied,
		NetBeforeSurcharge: v.NetBeforeSurcharge,
		NetValue:           v.NetValue,
		DepositCharge:      v.DepositCharge,
	}
	for _, l := range v.Lines {
		line := valuationLineJSON{Service: l.Service, BilledTotal: l.BilledTotal, Outstanding: l.Outstanding}
		if l.Continuation != nil {
			id := l.Continuation.ID
			line.ContinuesRecordID = &id
		}
		out.Lines = append(out.Lines, line)
	}
	return out
}

type entryResponse struct {
	Valuation         valuationJSON    `json:"valuation"`
	Records           []recordJSON     `json:"records"`
	CreditBalance     decimal.Decimal  `json:"credit_balance"`
	CashDrawerBalance *decimal.Decimal `json:"cash_drawer_balance,omitempty"`
	Warning           string           `json:"warning,omitempty"`
}

type paymentResponse struct {
	Record            recordJSON       `json:"record"`
	FullyPaid         bool             `json:"fully_paid"`
	Charge            decimal.Decimal  `json:"charge"`
	CashDrawerBalance *decimal.Decimal `json:"cash_drawer_balance,omitempty"`
	Warning           string           `json:"warning,omitempty"`
}

type settlementRowJSON struct {
	RecordID       string          `json:"record_id"`
	SiteID         int64           `json:"site_id"`
	Date           string          `json:"date"`
	PatientName    string          `json:"patient_name"`
	ServiceName    string          `json:"service"`
	DoctorName     string          `json:"doctor,omitempty"`
	AssistantName  string          `json:"assistant,omitempty"`
	Deposit        decimal.Decimal `json:"deposit"`
	Discount       decimal.Decimal `json:"discount"`
	BilledTotal    decimal.Decimal `json:"billed_total"`
	IsOwnPatient   bool            `json:"is_own_patient"`
	PayoutFraction decimal.Decimal `json:"payout_fraction"`
	PayoutAmount   decimal.Decimal `json:"payout_amount"`
	PaymentMethod  string          `json:"payment_method,omitempty"`
	DepositMethod  string          `json:"deposit_method,omitempty"`
	AmountPaid     decimal.Decimal `json:"amount_paid"`
	Notes          string          `json:"notes,omitempty"`
}

type settlementJSON struct {
	ID          string              `json:"id"`
	SiteID      int64               `json:"site_id"`
	Doctor      string              `json:"doctor"`
	Start       string              `json:"start"`
	End         string              `json:"end"`
	GeneratedAt string              `json:"generated_at"`
	Total       decimal.Decimal     `json:"total"`
	Rows        []settlementRowJSON `json:"rows,omitempty"`
}

func toSettlementJSON(r *models.SettlementReport) settlementJSON {
	out := settlementJSON{
		ID:          r.ID,
		SiteID:      r.SiteID,
		Doctor:      r.Doctor,
		Start:       models.FormatDate(r.Start),
		End:         models.FormatDate(r.End),
		GeneratedAt: r.GeneratedAt.UTC().Format(time.RFC3339),
		Total:       r.Total,
	}
	for _, row := range r.Rows {
		out.Rows = append(out.Rows, settlementRowJSON{
			RecordID:       row.RecordID,
			SiteID:         row.SiteID,
			Date:           models.FormatDate(row.Date),
			PatientName:    row.PatientName,
			ServiceName:    row.ServiceName,
			DoctorName:     row.DoctorName,
			AssistantName:  row.AssistantName,
			Deposit:        row.Deposit,
			Discount:       row.Discount,
			BilledTotal:    row.BilledTotal,
			IsOwnPatient:   row.IsOwnPatient,
			PayoutFraction: row.PayoutFraction,
			PayoutAmount:   row.PayoutAmount,
			PaymentMethod:  row.PaymentMethod,
			DepositMethod:  row.DepositMethod,
			AmountPaid:     row.AmountPaid,
			Notes:          row.Notes,
		})
	}
	return out
}

type patientJSON struct {
	DocID         string          `json:"doc_id"`
	Name          string          `json:"name"`
	CreditBalance decimal.Decimal `json:"credit_balance"`
}

type catalogEntryJSON struct {
	Name      string           `json:"name"`
	Price     decimal.Decimal  `json:"price"`
	PriceList models.PriceList `json:"price_list"`
}

type paymentMethodJSON struct {
	ID   int64              `json:"id"`
	Name string             `json:"name"`
	Kind models.PaymentKind `json:"kind"`

	RequiresAccount      bool `json:"requires_account"`
	RequiresCreditHolder bool `json:"requires_credit_holder"`
	AppliesSurcharge     bool `json:"applies_surcharge"`
}

type namedJSON struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
