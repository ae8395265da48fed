package domain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Amounts (balances, supply, rewards, CO2) are signed 128-bit integers.
// They travel as decimal.Decimal constrained to integral values in range.
var (
	maxInt128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	minInt128 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))

	// MaxAmount is the largest representable amount (2^127 - 1).
	MaxAmount = decimal.NewFromBigInt(maxInt128, 0)
	// MinAmount is the smallest representable amount (-2^127).
	MinAmount = decimal.NewFromBigInt(minInt128, 0)
)

// Amount builds an amount from an int64.
func Amount(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

// IsValidAmount reports whether d is integral and inside the int128 range.
func IsValidAmount(d decimal.Decimal) bool {
	if !d.IsInteger() {
		return false
	}
	return d.GreaterThanOrEqual(MinAmount) && d.LessThanOrEqual(MaxAmount)
}

// ParseAmount parses a base-10 integer amount.
func ParseAmount(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(s)
	if err != nil || !IsValidAmount(d) {
		return decimal.Zero, false
	}
	return d, true
}
