package calculator

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dentalsettle/backend/internal/models"
)

// TierRule maps a percentage tier to the practitioner's payout fraction.
// An Override rule wins over any percentage stored with the record.
type TierRule struct {
	Fraction decimal.Decimal
	Override bool
}

// TierRules is the payout table keyed by percentage-tier id.
type TierRules map[int]TierRule

var (
	ownPatientFraction    = decimal.RequireFromString("0.50")
	clinicPatientFraction = decimal.RequireFromString("0.40")
)

// DefaultTierRules returns the clinic's payout table. Tier 3 is pinned to 60%
// regardless of what the record carries.
func DefaultTierRules() TierRules {
	return TierRules{
		1: {Fraction: decimal.RequireFromString("0.40")},
		2: {Fraction: decimal.RequireFromString("0.50")},
		3: {Fraction: decimal.RequireFromString("0.60"), Override: true},
	}
}

// Line is the payout computed for one service record.
type Line struct {
	Fraction decimal.Decimal
	Amount   decimal.Decimal
}

// ComputeLine returns the payout for one record. It never mutates rec.
//
// Fraction resolution, first match wins:
//   - the record's tier has an Override rule: that rule's fraction
//   - the record carries a stored fraction: the stored fraction
//   - the record's tier is in the table: that rule's fraction
//   - otherwise 0.50 for the practitioner's own patient, 0.40 for the clinic's
//
// Amount = BilledTotal × Fraction.
func ComputeLine(rec models.ServiceRecord, rules TierRules, isOwnPatient bool) Line {
	fraction := resolveFraction(rec, rules, isOwnPatient)
	return Line{
		Fraction: fraction,
		Amount:   rec.BilledTotal.Mul(fraction),
	}
}

func resolveFraction(rec models.ServiceRecord, rules TierRules, isOwnPatient bool) decimal.Decimal {
	var rule TierRule
	var hasRule bool
	if rec.TierID != nil {
		rule, hasRule = rules[*rec.TierID]
	}
	switch {
	case hasRule && rule.Override:
		return rule.Fraction
	case rec.StoredFraction != nil:
		return *rec.StoredFraction
	case hasRule:
		return rule.Fraction
	case isOwnPatient:
		return ownPatientFraction
	default:
		return clinicPatientFraction
	}
}

// BuildReport computes the settlement of one practitioner over a date range.
//
// Algorithm:
//   - select records whose practitioner name equals doctor exactly and whose
//     start date lies within period, both ends inclusive
//   - compute each selected record with ComputeLine using its own-patient flag
//   - Total = sum of the line amounts
//
// No match yields a report with no rows and a zero total; that is a valid
// empty settlement, not an error.
func BuildReport(doctor string, period models.DateRange, records []models.ServiceRecord, rules TierRules, generatedAt time.Time) models.SettlementReport {
	report := models.SettlementReport{
		Doctor:      doctor,
		Start:       models.Day(period.Start),
		End:         models.Day(period.End),
		GeneratedAt: generatedAt,
		Rows:        []models.SettlementRow{},
		Total:       zero,
	}

	for _, rec := range records {
		if rec.PractitionerName != doctor || !period.Contains(rec.StartedOn) {
			continue
		}
		line := ComputeLine(rec, rules, rec.IsOwnPatient)
		report.Rows = append(report.Rows, settlementRow(rec, line))
		report.Total = report.Total.Add(line.Amount)
	}

	return report
}

func settlementRow(rec models.ServiceRecord, line Line) models.SettlementRow {
	row := models.SettlementRow{
		RecordID:       rec.ID,
		SiteID:         rec.SiteID,
		Date:           models.Day(rec.StartedOn),
		PatientName:    rec.PatientName,
		ServiceName:    rec.ServiceName,
		Deposit:        rec.Deposit,
		Discount:       rec.Discount,
		BilledTotal:    rec.BilledTotal,
		IsOwnPatient:   rec.IsOwnPatient,
		PayoutFraction: line.Fraction,
		PayoutAmount:   line.Amount,
		PaymentMethod:  rec.PaymentMethod,
		DepositMethod:  rec.DepositMethod,
		AmountPaid:     rec.AmountPaid,
		Notes:          rec.Notes,
	}
	if rec.IsAssistant {
		row.AssistantName = rec.PractitionerName
	} else {
		row.DoctorName = rec.PractitionerName
	}
	return row
}
