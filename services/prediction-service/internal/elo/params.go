package elo

import (
	"math"

	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/apperrors"
	"github.com/stitts-dev/pick-engine/shared/pkg/config"
	"github.com/stitts-dev/pick-engine/shared/types"
)

// Params are the per-sport rating constants
type Params struct {
	Initial          float64 `json:"initial"`
	K                float64 `json:"k"`
	HomeAdvantage    float64 `json:"home_advantage"`
	SeasonRegression float64 `json:"season_regression"`
	UseMOV           bool    `json:"use_mov"`
	MOVConstant      float64 `json:"mov_constant"`
	MOVGapScale      float64 `json:"mov_gap_scale"`
	PointsPerElo     float64 `json:"points_per_elo"`
}

// DefaultParams returns the built-in parameters for a sport
func DefaultParams(sport types.Sport) Params {
	if setting, ok := config.DefaultCalibration().Elo[string(sport)]; ok {
		return FromSetting(setting)
	}
	return Params{
		Initial:          1500,
		K:                20,
		HomeAdvantage:    65,
		SeasonRegression: 0.33,
		UseMOV:           true,
		MOVConstant:      2.2,
		MOVGapScale:      0.001,
		PointsPerElo:     1.0 / 28.0,
	}
}

// ParamsFor returns the calibration's parameters for sport, or the built-in ones when the
// calibration is nil or has no entry for it
func ParamsFor(cal *config.Calibration, sport types.Sport) Params {
	if cal != nil {
		if setting, ok := cal.Elo[string(sport)]; ok {
			return FromSetting(setting)
		}
	}
	return DefaultParams(sport)
}

// FromSetting converts a calibration file entry
func FromSetting(s config.EloSetting) Params {
	return Params{
		Initial:          s.Initial,
		K:                s.K,
		HomeAdvantage:    s.HomeAdvantage,
		SeasonRegression: s.SeasonRegression,
		UseMOV:           s.UseMOV,
		MOVConstant:      s.MOVConstant,
		MOVGapScale:      s.MOVGapScale,
		PointsPerElo:     s.PointsPerElo,
	}
}

func (p Params) Validate() error {
	finite := func(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
	switch {
	case !finite(p.Initial) || p.Initial <= 0:
		return apperrors.NewConfigError("elo params", "initial rating must be positive, got %v", p.Initial)
	case !finite(p.K) || p.K <= 0:
		return apperrors.NewConfigError("elo params", "K must be positive, got %v", p.K)
	case !finite(p.HomeAdvantage) || p.HomeAdvantage < 0:
		return apperrors.NewConfigError("elo params", "home advantage must be >= 0, got %v", p.HomeAdvantage)
	case !finite(p.SeasonRegression) || p.SeasonRegression < 0 || p.SeasonRegression > 1:
		return apperrors.NewConfigError("elo params", "season regression must be within [0,1], got %v", p.SeasonRegression)
	case p.UseMOV && (!finite(p.MOVConstant) || p.MOVConstant <= 0):
		return apperrors.NewConfigError("elo params", "MOV constant must be positive, got %v", p.MOVConstant)
	case p.UseMOV && (!finite(p.MOVGapScale) || p.MOVGapScale < 0):
		return apperrors.NewConfigError("elo params", "MOV gap scale must be >= 0, got %v", p.MOVGapScale)
	case !finite(p.PointsPerElo) || p.PointsPerElo <= 0:
		return apperrors.NewConfigError("elo params", "points per Elo must be positive, got %v", p.PointsPerElo)
	}
	return nil
}

func (p Params) homeEdge(neutral bool) float64 {
	if neutral {
		return 0
	}
	return p.HomeAdvantage
}

// WinProbability is the expected home win probability on the 400-point logistic scale
func (p Params) WinProbability(home, away float64, neutral bool) float64 {
	diff := home + p.homeEdge(neutral) - away
	return 1.0 / (1.0 + math.Pow(10, -diff/400.0))
}

// ExpectedMargin converts the rating gap into a projected home margin in points
func (p Params) ExpectedMargin(home, away float64, neutral bool) float64 {
	return (home + p.homeEdge(neutral) - away) * p.PointsPerElo
}

// movMultiplier scales K by margin of victory, damped when the winner was already the
// stronger side. winnerGap includes home advantage.
func (p Params) movMultiplier(margin int, winnerGap float64) float64 {
	if !p.UseMOV || margin == 0 {
		return 1
	}
	abs := math.Abs(float64(margin))
	denom := winnerGap*p.MOVGapScale + p.MOVConstant
	if denom <= 0 {
		return math.Log(abs + 1)
	}
	return math.Log(abs+1) * p.MOVConstant / denom
}
