package calculator

import (
	"github.com/shopspring/decimal"

	"github.com/dentalsettle/backend/internal/models"
)

var (
	surchargeFactor = decimal.NewFromInt(1).Add(decimal.RequireFromString(models.SurchargeRate))
	zero            = decimal.Zero
	one             = decimal.NewFromInt(1)
)

// ChargeAmount returns what the patient is asked to pay for a nominal amount
// through the given channel: nominal × 1.05 rounded to whole pesos on the
// card terminal, the nominal amount otherwise.
func ChargeAmount(nominal decimal.Decimal, kind models.PaymentKind) decimal.Decimal {
	if kind.AppliesSurcharge() {
		return nominal.Mul(surchargeFactor).Round(0)
	}
	return nominal
}

func floorZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return zero
	}
	return d
}
