package backtest

import (
	"fmt"
	"math"

	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/apperrors"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/regression"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/scoring"
	"github.com/stitts-dev/pick-engine/shared/types"
)

// Gates reject a candidate outright regardless of how good its headline numbers look
type Gates struct {
	MinAccuracy   float64 `json:"min_accuracy"`
	MaxOverfitGap float64 `json:"max_overfit_gap"`
	MinSample     int     `json:"min_sample"`
}

// DefaultGates: 55% held-out accuracy, at most 8 points of overfit, 100 decided picks
func DefaultGates() Gates {
	return Gates{MinAccuracy: 0.55, MaxOverfitGap: 0.08, MinSample: 100}
}

// Config is one candidate: a feature set, ridge penalty, weights and thresholds, plus
// how the historical seasons are split
type Config struct {
	Name     string       `json:"name"`
	Sport    types.Sport  `json:"sport"`
	Market   types.Market `json:"market"`
	Features []string     `json:"features"`
	Lambda   float64      `json:"lambda"`

	// Weights default to the harness calibration and Tiers to a score-free edge rule
	Weights map[types.SignalCategory]float64 `json:"weights,omitempty"`
	Tiers   []scoring.TierRule               `json:"tiers,omitempty"`
	// Signals restricts the library to these categories; empty keeps every signal
	Signals []types.SignalCategory `json:"signals,omitempty"`

	MinEdge   float64 `json:"min_edge"`
	MinTier   int     `json:"min_tier"`
	MinActive int     `json:"min_active"`

	TrainSeasons   []int `json:"train_seasons"`
	HoldoutSeasons []int `json:"holdout_seasons"`
	WalkForward    bool  `json:"walk_forward"`
	MinFoldPicks   int   `json:"min_fold_picks"`

	Gates               Gates `json:"gates"`
	BootstrapIterations int   `json:"bootstrap_iterations"`
	Seed                int64 `json:"seed"`
}

// DefaultConfig fills everything but the seasons
func DefaultConfig(sport types.Sport, market types.Market) Config {
	features := []string{regression.FeatureEMDiff, regression.FeatureHomeCourt}
	if market == types.MarketTotal {
		features = []string{regression.FeatureSumOE, regression.FeatureSumDE, regression.FeatureTempoProduct}
	}
	return Config{
		Name:                fmt.Sprintf("%s-%s", sport, market),
		Sport:               sport,
		Market:              market,
		Features:            features,
		Lambda:              1.0,
		MinEdge:             0,
		MinTier:             scoring.TierThree,
		MinActive:           scoring.DefaultMinActive,
		MinFoldPicks:        20,
		Gates:               DefaultGates(),
		BootstrapIterations: 1000,
		Seed:                42,
	}
}

// Target is the regression target the market is priced against
func (c Config) Target() string {
	if c.Market == types.MarketTotal {
		return regression.TargetTotal
	}
	return regression.TargetMargin
}

// Validate fails fast before any game is evaluated
func (c Config) Validate() error {
	if !c.Sport.IsValid() {
		return apperrors.NewConfigError("backtest", "unknown sport %q", c.Sport)
	}
	if !c.Market.IsValid() {
		return apperrors.NewConfigError("backtest", "unknown market %q", c.Market)
	}
	if err := regression.ValidateFeatureNames(c.Features); err != nil {
		return err
	}
	if math.IsNaN(c.Lambda) || math.IsInf(c.Lambda, 0) || c.Lambda < 0 {
		return apperrors.NewConfigError("backtest", "lambda must be a finite value >= 0, got %v", c.Lambda)
	}
	if len(c.TrainSeasons) == 0 || len(c.HoldoutSeasons) == 0 {
		return apperrors.NewConfigError("backtest", "both training and holdout seasons are required")
	}
	train := make(map[int]bool, len(c.TrainSeasons))
	for _, s := range c.TrainSeasons {
		train[s] = true
	}
	for _, s := range c.HoldoutSeasons {
		if train[s] {
			return apperrors.NewConfigError("backtest", "season %d is in both training and holdout", s)
		}
	}
	if c.MinEdge < 0 || math.IsNaN(c.MinEdge) {
		return apperrors.NewConfigError("backtest", "min edge must be >= 0, got %v", c.MinEdge)
	}
	if c.MinTier != 0 && c.MinTier != scoring.TierThree && c.MinTier != scoring.TierFour && c.MinTier != scoring.TierFive {
		return apperrors.NewConfigError("backtest", "min tier must be 0, 3, 4 or 5, got %d", c.MinTier)
	}
	if c.MinActive < 1 {
		return apperrors.NewConfigError("backtest", "min active signals must be >= 1, got %d", c.MinActive)
	}
	if c.MinFoldPicks < 0 {
		return apperrors.NewConfigError("backtest", "min fold picks must be >= 0, got %d", c.MinFoldPicks)
	}
	if c.Gates.MinAccuracy < 0 || c.Gates.MinAccuracy > 1 {
		return apperrors.NewConfigError("backtest", "gate accuracy must be in [0,1], got %v", c.Gates.MinAccuracy)
	}
	if c.Gates.MaxOverfitGap < 0 {
		return apperrors.NewConfigError("backtest", "gate overfit gap must be >= 0, got %v", c.Gates.MaxOverfitGap)
	}
	if c.Gates.MinSample < 0 {
		return apperrors.NewConfigError("backtest", "gate sample size must be >= 0, got %d", c.Gates.MinSample)
	}
	if c.BootstrapIterations < 0 {
		return apperrors.NewConfigError("backtest", "bootstrap iterations must be >= 0, got %d", c.BootstrapIterations)
	}
	for category, w := range c.Weights {
		if math.IsNaN(w) || w < 0 {
			return apperrors.NewConfigError("backtest", "weight for %s must be >= 0, got %v", category, w)
		}
	}
	return nil
}
