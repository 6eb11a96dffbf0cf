package signals

import (
	"math"

	"github.com/stitts-dev/pick-engine/shared/types"
)

const maxMagnitude = 10.0

// Bucket maps a magnitude to a strength using the market's thresholds
func Bucket(market types.Market, magnitude float64) types.Strength {
	strong, moderate, weak := 7.0, 4.0, 1.5
	if market == types.MarketTotal {
		strong, moderate, weak = 7.0, 3.0, 1.0
	}
	switch {
	case magnitude >= strong:
		return types.StrengthStrong
	case magnitude >= moderate:
		return types.StrengthModerate
	case magnitude >= weak:
		return types.StrengthWeak
	default:
		return types.StrengthNoise
	}
}

func clampMagnitude(v float64) float64 {
	return math.Max(0, math.Min(maxMagnitude, math.Abs(v)))
}

func clampUnit(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// directional builds a result leaning toward positive or negative depending on the sign of
// value. A zero value, magnitude or confidence is no opinion.
func directional(category types.SignalCategory, market types.Market, value, magnitude, confidence float64, label string) types.SignalResult {
	magnitude = clampMagnitude(magnitude)
	confidence = clampUnit(confidence)
	if value == 0 || magnitude == 0 || confidence == 0 || math.IsNaN(value) {
		return types.NeutralSignal(category, label)
	}

	var direction types.Direction
	switch market {
	case types.MarketSpread:
		direction = types.DirectionHome
		if value < 0 {
			direction = types.DirectionAway
		}
	case types.MarketTotal:
		direction = types.DirectionOver
		if value < 0 {
			direction = types.DirectionUnder
		}
	default:
		return types.NeutralSignal(category, label)
	}

	return types.SignalResult{
		Category:   category,
		Direction:  direction,
		Magnitude:  magnitude,
		Confidence: confidence,
		Strength:   Bucket(market, magnitude),
		Label:      label,
	}
}
