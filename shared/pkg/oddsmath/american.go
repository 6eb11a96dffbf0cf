package oddsmath

import (
	"fmt"
)

// StandardPrice is the -110 price spreads and totals are assumed to be bet at
const StandardPrice = -110

// AmericanToDecimal converts American odds to decimal odds
// +150 → 2.50, -150 → 1.667
func AmericanToDecimal(american int) (float64, error) {
	if american == 0 {
		return 0, fmt.Errorf("invalid American odds: cannot be 0")
	}
	if american > -100 && american < 100 {
		return 0, fmt.Errorf("invalid American odds %d: magnitude must be at least 100", american)
	}

	if american > 0 {
		return float64(american)/100.0 + 1.0, nil
	}
	return 100.0/float64(-american) + 1.0, nil
}

// AmericanToImpliedProbability converts American odds to the book's implied probability,
// vig included. -110 → 0.5238
func AmericanToImpliedProbability(american int) (float64, error) {
	dec, err := AmericanToDecimal(american)
	if err != nil {
		return 0, err
	}
	return 1.0 / dec, nil
}

// ProfitPerUnit is the profit on a one-unit stake that wins at the given price.
// -110 → 0.9091, +150 → 1.5
func ProfitPerUnit(american int) (float64, error) {
	dec, err := AmericanToDecimal(american)
	if err != nil {
		return 0, err
	}
	return dec - 1.0, nil
}
