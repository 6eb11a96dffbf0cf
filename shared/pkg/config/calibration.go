package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Calibration is the versioned output of an offline backtest run: signal weights,
// tier thresholds and Elo parameters, each keyed by sport (and market where relevant).
type Calibration struct {
	Version        string                                       `mapstructure:"version"`
	CalibratedAt   string                                       `mapstructure:"calibrated_at"`
	Source         string                                       `mapstructure:"source"`
	FallbackWeight float64                                      `mapstructure:"fallback_weight"`
	Weights        map[string]map[string]map[string]float64     `mapstructure:"weights"`
	Tiers          map[string]map[string][]TierThresholdSetting `mapstructure:"tiers"`
	Elo            map[string]EloSetting                        `mapstructure:"elo"`
}

type TierThresholdSetting struct {
	Tier     int     `mapstructure:"tier"`
	MinScore float64 `mapstructure:"min_score"`
	MinEdge  float64 `mapstructure:"min_edge"`
}

type EloSetting struct {
	Initial          float64 `mapstructure:"initial"`
	K                float64 `mapstructure:"k"`
	HomeAdvantage    float64 `mapstructure:"home_advantage"`
	SeasonRegression float64 `mapstructure:"season_regression"`
	UseMOV           bool    `mapstructure:"use_mov"`
	MOVConstant      float64 `mapstructure:"mov_constant"`
	MOVGapScale      float64 `mapstructure:"mov_gap_scale"`
	PointsPerElo     float64 `mapstructure:"points_per_elo"`
}

// LoadCalibration reads a YAML calibration file. A missing file yields DefaultCalibration;
// a file that exists but cannot be parsed is an error.
func LoadCalibration(path string) (*Calibration, error) {
	if path == "" {
		return DefaultCalibration(), nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultCalibration(), nil
		}
		return nil, fmt.Errorf("error checking calibration file: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("fallback_weight", 0.1)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading calibration file %s: %w", path, err)
	}

	var cal Calibration
	if err := v.Unmarshal(&cal); err != nil {
		return nil, fmt.Errorf("unable to decode calibration file %s: %w", path, err)
	}
	if cal.Version == "" {
		return nil, fmt.Errorf("calibration file %s has no version", path)
	}

	return &cal, nil
}

// WithWeights returns a copy of c with the weight table for sport and market replaced.
// c itself is not modified.
func (c *Calibration) WithWeights(sport, market string, weights map[string]float64) *Calibration {
	out := *c
	out.Weights = make(map[string]map[string]map[string]float64, len(c.Weights)+1)
	for s, markets := range c.Weights {
		out.Weights[s] = make(map[string]map[string]float64, len(markets))
		for m, table := range markets {
			out.Weights[s][m] = copyWeights(table)
		}
	}
	if out.Weights[sport] == nil {
		out.Weights[sport] = make(map[string]map[string]float64)
	}
	out.Weights[sport][market] = copyWeights(weights)
	return &out
}

// SaveCalibration writes cal as YAML in the layout LoadCalibration reads
func SaveCalibration(cal *Calibration, path string) error {
	if cal == nil || cal.Version == "" {
		return fmt.Errorf("calibration has no version")
	}

	tiers := make(map[string]map[string][]map[string]interface{}, len(cal.Tiers))
	for sport, markets := range cal.Tiers {
		tiers[sport] = make(map[string][]map[string]interface{}, len(markets))
		for market, settings := range markets {
			rows := make([]map[string]interface{}, 0, len(settings))
			for _, t := range settings {
				rows = append(rows, map[string]interface{}{"tier": t.Tier, "min_score": t.MinScore, "min_edge": t.MinEdge})
			}
			tiers[sport][market] = rows
		}
	}
	elo := make(map[string]map[string]interface{}, len(cal.Elo))
	for sport, e := range cal.Elo {
		elo[sport] = map[string]interface{}{
			"initial":           e.Initial,
			"k":                 e.K,
			"home_advantage":    e.HomeAdvantage,
			"season_regression": e.SeasonRegression,
			"use_mov":           e.UseMOV,
			"mov_constant":      e.MOVConstant,
			"mov_gap_scale":     e.MOVGapScale,
			"points_per_elo":    e.PointsPerElo,
		}
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.Set("version", cal.Version)
	v.Set("calibrated_at", cal.CalibratedAt)
	v.Set("source", cal.Source)
	v.Set("fallback_weight", cal.FallbackWeight)
	v.Set("weights", cal.Weights)
	v.Set("tiers", tiers)
	v.Set("elo", elo)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("error writing calibration file %s: %w", path, err)
	}
	return nil
}

// DefaultCalibration is the baseline used when no calibration file has been produced yet
func DefaultCalibration() *Calibration {
	spreadWeights := map[string]float64{
		"model_edge":   0.30,
		"rating_edge":  0.20,
		"market_edge":  0.15,
		"season_ats":   0.10,
		"recent_form":  0.10,
		"rest":         0.08,
		"head_to_head": 0.05,
	}
	totalWeights := map[string]float64{
		"model_edge":   0.35,
		"pace":         0.20,
		"recent_form":  0.12,
		"season_ats":   0.10,
		"weather":      0.10,
		"head_to_head": 0.05,
		"rest":         0.08,
	}
	spreadTiers := []TierThresholdSetting{
		{Tier: 5, MinScore: 80, MinEdge: 5},
		{Tier: 4, MinScore: 72, MinEdge: 3.5},
		{Tier: 3, MinScore: 65, MinEdge: 2},
	}
	totalTiers := []TierThresholdSetting{
		{Tier: 5, MinScore: 80, MinEdge: 6},
		{Tier: 4, MinScore: 72, MinEdge: 4},
		{Tier: 3, MinScore: 65, MinEdge: 2.5},
	}

	cal := &Calibration{
		Version:        "baseline",
		CalibratedAt:   "2024-01-01T00:00:00Z",
		Source:         "built-in defaults",
		FallbackWeight: 0.1,
		Weights:        map[string]map[string]map[string]float64{},
		Tiers:          map[string]map[string][]TierThresholdSetting{},
		Elo: map[string]EloSetting{
			"ncaab": {Initial: 1500, K: 20, HomeAdvantage: 100, SeasonRegression: 0.33, UseMOV: true, MOVConstant: 2.2, MOVGapScale: 0.001, PointsPerElo: 1.0 / 28.0},
			"nba":   {Initial: 1500, K: 20, HomeAdvantage: 100, SeasonRegression: 0.25, UseMOV: true, MOVConstant: 2.2, MOVGapScale: 0.001, PointsPerElo: 1.0 / 28.0},
			"nfl":   {Initial: 1500, K: 20, HomeAdvantage: 48, SeasonRegression: 0.33, UseMOV: true, MOVConstant: 2.2, MOVGapScale: 0.001, PointsPerElo: 1.0 / 25.0},
			"ncaaf": {Initial: 1500, K: 25, HomeAdvantage: 55, SeasonRegression: 0.40, UseMOV: true, MOVConstant: 2.2, MOVGapScale: 0.001, PointsPerElo: 1.0 / 25.0},
			"mlb":   {Initial: 1500, K: 4, HomeAdvantage: 24, SeasonRegression: 0.33, UseMOV: false, MOVConstant: 2.2, MOVGapScale: 0.001, PointsPerElo: 1.0 / 100.0},
			"nhl":   {Initial: 1500, K: 6, HomeAdvantage: 33, SeasonRegression: 0.30, UseMOV: false, MOVConstant: 2.2, MOVGapScale: 0.001, PointsPerElo: 1.0 / 100.0},
		},
	}
	for _, sport := range []string{"nba", "ncaab", "nfl", "ncaaf", "mlb", "nhl"} {
		cal.Weights[sport] = map[string]map[string]float64{
			"spread": copyWeights(spreadWeights),
			"total":  copyWeights(totalWeights),
		}
		cal.Tiers[sport] = map[string][]TierThresholdSetting{
			"spread": append([]TierThresholdSetting(nil), spreadTiers...),
			"total":  append([]TierThresholdSetting(nil), totalTiers...),
		}
	}
	return cal
}

func copyWeights(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
