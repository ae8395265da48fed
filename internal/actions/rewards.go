package actions

import "github.com/shopspring/decimal"

// Reward is what a single action of a given type earns.
type Reward struct {
	Tokens   decimal.Decimal
	CO2Saved decimal.Decimal
}

var (
	rewardTable = map[string]Reward{
		"reciclaje":              reward(10, 2),
		"transporte_verde":       reward(15, 5),
		"ahorro_agua":            reward(8, 1),
		"agricultura_sostenible": reward(25, 8),
		"educacion_ambiental":    reward(20, 3),
	}
	defaultReward = reward(5, 1)
)

func reward(tokens, co2 int64) Reward {
	return Reward{Tokens: decimal.NewFromInt(tokens), CO2Saved: decimal.NewFromInt(co2)}
}

// RewardFor looks up the reward for actionType. Unknown types earn the default.
func RewardFor(actionType string) Reward {
	if r, ok := rewardTable[actionType]; ok {
		return r
	}
	return defaultReward
}
