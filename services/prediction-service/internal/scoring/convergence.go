package scoring

import (
	"math"

	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/apperrors"
	"github.com/stitts-dev/pick-engine/shared/types"
)

const (
	neutralScore = 50.0
	scoreScale   = 80.0

	// agreement among all active signals
	strongAgreementRatio = 0.8
	strongAgreementBonus = 8.0
	agreementRatio       = 0.6
	agreementBonus       = 4.0
	minAgreementSignals  = 3

	// strong/moderate signals against the chosen side
	multipleOpposedPenalty = 10.0
	singleOpposedPenalty   = 5.0

	// strong/moderate signals with the chosen side
	manySignificantBonus = 10.0
	twoSignificantBonus  = 5.0

	// DefaultMinActive is the number of active signals below which the scorer abstains
	DefaultMinActive = 3
)

// Result is the scorer's output for one game and market
type Result struct {
	Score            float64                     `json:"score"`
	Direction        types.Direction             `json:"direction"`
	RawStrength      float64                     `json:"raw_strength"`
	Active           int                         `json:"active"`
	Agreeing         int                         `json:"agreeing"`
	Opposing         int                         `json:"opposing"`
	Bonus            float64                     `json:"bonus"`
	Penalty          float64                     `json:"penalty"`
	DirectionWeights map[types.Direction]float64 `json:"direction_weights,omitempty"`
}

// Scorer combines signal results into a single score and direction
type Scorer struct {
	minActive int
}

func NewScorer(minActive int) (*Scorer, error) {
	if minActive < 1 {
		return nil, apperrors.NewConfigError("convergence scorer", "minimum active signals must be >= 1, got %d", minActive)
	}
	return &Scorer{minActive: minActive}, nil
}

func (s *Scorer) MinActive() int {
	return s.minActive
}

// Score is deterministic for identical inputs
func (s *Scorer) Score(results []types.SignalResult, table WeightTable) Result {
	// Step 1: active set and per-direction effective weight
	weights := make(map[types.Direction]float64, len(types.Directions))
	counts := make(map[types.Direction]int, len(types.Directions))
	active := 0
	denominator := 0.0
	for _, r := range results {
		w := table.Weight(r.Category)
		denominator += w * maxSignalMagnitude
		if !r.IsActive() {
			continue
		}
		active++
		counts[r.Direction]++
		weights[r.Direction] += w * r.Magnitude * r.Confidence
	}

	if active == 0 || active < s.minActive {
		return Result{Score: neutralScore, Direction: types.DirectionNeutral, Active: active}
	}

	// Step 2: best direction, ties to the side with more agreeing signals, then fixed order
	best := types.DirectionNeutral
	for _, d := range types.Directions {
		if counts[d] == 0 {
			continue
		}
		if best == types.DirectionNeutral ||
			weights[d] > weights[best] ||
			(weights[d] == weights[best] && counts[d] > counts[best]) {
			best = d
		}
	}

	others := 0.0
	for d, w := range weights {
		if d != best {
			others += w
		}
	}

	// Step 3: base score
	raw := 0.0
	if denominator > 0 {
		raw = (weights[best] - others) / denominator
	}
	score := clamp(neutralScore+raw*scoreScale, 0, 100)

	// Step 4: agreement, disagreement and significance adjustments
	agreeing := counts[best]
	significantFor, significantAgainst := 0, 0
	for _, r := range results {
		if !r.IsActive() || !r.Strength.IsSignificant() {
			continue
		}
		if r.Direction == best {
			significantFor++
		} else {
			significantAgainst++
		}
	}

	bonus, penalty := 0.0, 0.0
	if active >= minAgreementSignals {
		ratio := float64(agreeing) / float64(active)
		switch {
		case ratio >= strongAgreementRatio:
			bonus += strongAgreementBonus
		case ratio >= agreementRatio:
			bonus += agreementBonus
		}
	}
	switch {
	case significantAgainst >= 2:
		penalty = multipleOpposedPenalty
	case significantAgainst == 1:
		penalty = singleOpposedPenalty
	}
	switch {
	case significantFor >= 3:
		bonus += manySignificantBonus
	case significantFor == 2:
		bonus += twoSignificantBonus
	}

	return Result{
		Score:            clamp(score+bonus-penalty, 0, 100),
		Direction:        best,
		RawStrength:      raw,
		Active:           active,
		Agreeing:         agreeing,
		Opposing:         active - agreeing,
		Bonus:            bonus,
		Penalty:          penalty,
		DirectionWeights: weights,
	}
}

const maxSignalMagnitude = 10.0

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
