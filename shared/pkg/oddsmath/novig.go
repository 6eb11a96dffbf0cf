package oddsmath

import (
	"fmt"
)

// RemoveVigMultiplicative normalizes two implied probabilities so they sum to 1.
// Standard for two-way markets: -110/-110 has 4.76% overround and de-vigs to 50/50.
func RemoveVigMultiplicative(prob1, prob2 float64) (fair1, fair2 float64, err error) {
	if prob1 <= 0 || prob1 >= 1 || prob2 <= 0 || prob2 >= 1 {
		return 0, 0, fmt.Errorf("probabilities must be between 0 and 1")
	}

	total := prob1 + prob2
	if total <= 1.0 {
		return 0, 0, fmt.Errorf("no vig detected: probabilities sum to %.4f", total)
	}

	return prob1 / total, prob2 / total, nil
}

// FairMoneylineProbabilities de-vigs a home/away moneyline pair
func FairMoneylineProbabilities(homeMoneyline, awayMoneyline int) (home, away float64, err error) {
	homeProb, err := AmericanToImpliedProbability(homeMoneyline)
	if err != nil {
		return 0, 0, fmt.Errorf("home moneyline: %w", err)
	}
	awayProb, err := AmericanToImpliedProbability(awayMoneyline)
	if err != nil {
		return 0, 0, fmt.Errorf("away moneyline: %w", err)
	}
	return RemoveVigMultiplicative(homeProb, awayProb)
}

// VigPercentage is the overround of a two-way market in percent
func VigPercentage(prob1, prob2 float64) float64 {
	total := prob1 + prob2
	if total <= 1.0 {
		return 0
	}
	return (total - 1.0) * 100.0
}
