package token

import "github.com/shopspring/decimal"

var ecoRewards = map[string]int64{
	"reciclaje":              10,
	"transporte_verde":       15,
	"ahorro_agua":            8,
	"agricultura_sostenible": 25,
	"educacion_ambiental":    20,
	"reforestacion":          30,
	"limpieza_publica":       12,
	"compostaje":             18,
}

const defaultEcoReward = 5

// EcoReward is the token amount RewardEcoAction mints for actionType.
func EcoReward(actionType string) decimal.Decimal {
	if amount, ok := ecoRewards[actionType]; ok {
		return decimal.NewFromInt(amount)
	}
	return decimal.NewFromInt(defaultEcoReward)
}
