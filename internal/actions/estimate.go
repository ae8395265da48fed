package actions

import (
	"github.com/shopspring/decimal"

	dErrors "ecoprado/pkg/domain-errors"
)

// Emission factors in kg of CO2 per unit avoided.
var (
	co2PerTransportKm = decimal.RequireFromString("0.21")
	co2PerEnergyKWh   = decimal.RequireFromString("0.4")
	co2PerWasteKg     = decimal.RequireFromString("1.8")
	co2PerToken       = decimal.NewFromInt(2)
)

// Estimate is a suggested reward for avoided emissions.
type Estimate struct {
	CO2SavedKg      decimal.Decimal `json:"co2_saved_kg"`
	SuggestedTokens decimal.Decimal `json:"suggested_tokens"`
}

// EstimateCO2 converts avoided transport, energy, and waste into kg of CO2
// (rounded to two decimals) and suggests one token per 2 kg, never less than one.
func EstimateCO2(transportKm, energyKWh, wasteKg decimal.Decimal) (*Estimate, error) {
	if transportKm.IsNegative() || energyKWh.IsNegative() || wasteKg.IsNegative() {
		return nil, dErrors.New(dErrors.CodeValidation, "estimate inputs must not be negative")
	}
	co2 := transportKm.Mul(co2PerTransportKm).
		Add(energyKWh.Mul(co2PerEnergyKWh)).
		Add(wasteKg.Mul(co2PerWasteKg))

	tokens := co2.Div(co2PerToken).Round(0)
	if tokens.LessThan(decimal.NewFromInt(1)) {
		tokens = decimal.NewFromInt(1)
	}
	return &Estimate{CO2SavedKg: co2.Round(2), SuggestedTokens: tokens}, nil
}
