package calculator

import (
	"sort"
	"time"

	"github.com/dentalsettle/backend/internal/models"
)

// ResolvePending returns the patient's open balances grouped by service name.
//
// A record is pending when it belongs to patientDocID, still owes a positive
// amount and has no completion date. Records keep their input order within a
// group, so group[0] is the canonical record shown and paid against.
// The result is empty (never nil) when nothing is pending.
func ResolvePending(records []models.ServiceRecord, patientDocID string) map[string][]models.ServiceRecord {
	pending := make(map[string][]models.ServiceRecord)
	if patientDocID == "" {
		return pending
	}
	for _, rec := range records {
		if rec.PatientDocID != patientDocID || !isPending(rec) {
			continue
		}
		pending[rec.ServiceName] = append(pending[rec.ServiceName], rec)
	}
	return pending
}

func isPending(rec models.ServiceRecord) bool {
	return rec.Outstanding.IsPositive() && rec.IsOpen()
}

// PendingServices returns the keys of a ResolvePending result in sorted order.
func PendingServices(pending map[string][]models.ServiceRecord) []string {
	names := make([]string, 0, len(pending))
	for name := range pending {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FindOpenRecord returns the first open record for the patient and service,
// or nil when the patient has no unfinished treatment of that service.
func FindOpenRecord(records []models.ServiceRecord, patientDocID, service string) *models.ServiceRecord {
	for i := range records {
		rec := &records[i]
		if rec.PatientDocID == patientDocID && rec.ServiceName == service && rec.IsOpen() {
			return rec
		}
	}
	return nil
}

// OpenFilter selects open records across patients. Zero fields match everything.
type OpenFilter struct {
	Practitioner string
	Service      string
	From         *time.Time
	To           *time.Time
}

// FilterOpen returns the pending records matching the filter, in input order.
func FilterOpen(records []models.ServiceRecord, f OpenFilter) []models.ServiceRecord {
	var out []models.ServiceRecord
	for _, rec := range records {
		if !isPending(rec) {
			continue
		}
		if f.Practitioner != "" && rec.PractitionerName != f.Practitioner {
			continue
		}
		if f.Service != "" && rec.ServiceName != f.Service {
			continue
		}
		day := models.Day(rec.StartedOn)
		if f.From != nil && day.Before(models.Day(*f.From)) {
			continue
		}
		if f.To != nil && day.After(models.Day(*f.To)) {
			continue
		}
		out = append(out, rec)
	}
	return out
}
