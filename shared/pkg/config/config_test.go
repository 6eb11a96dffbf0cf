package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8084", cfg.Port)
	assert.Equal(t, 3, cfg.MinActiveSignals)
	assert.InDelta(t, 0.1, cfg.FallbackWeight, 1e-9)
	assert.True(t, cfg.StrictLookahead)
	assert.Equal(t, 3, cfg.HistorySeasons)
	assert.Equal(t, 10*time.Second, cfg.ExternalAPITimeout)
	assert.Equal(t, []string{"ncaab", "nba"}, cfg.SupportedSports)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PICK_WORKERS", "8")
	t.Setenv("SUPPORTED_SPORTS", " NFL, ncaaf ,")
	t.Setenv("STRICT_LOOKAHEAD", "false")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.PickWorkers)
	assert.Equal(t, []string{"nfl", "ncaaf"}, cfg.SupportedSports)
	assert.False(t, cfg.StrictLookahead)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MIN_ACTIVE_SIGNALS", "0")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadCalibrationMissingFileUsesDefaults(t *testing.T) {
	cal, err := LoadCalibration(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "baseline", cal.Version)
	assert.Contains(t, cal.Weights, "ncaab")
	assert.Len(t, cal.Tiers["ncaab"]["spread"], 3)
}

func TestLoadCalibrationFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.yaml")
	content := `
version: "2025-ncaab-1"
calibrated_at: "2025-04-10T00:00:00Z"
source: "walk-forward 2022-2024"
weights:
  ncaab:
    spread:
      model_edge: 0.3
      season_ats: 0.15
tiers:
  ncaab:
    spread:
      - tier: 5
        min_score: 85
        min_edge: 6
      - tier: 3
        min_score: 70
        min_edge: 2
elo:
  ncaab:
    initial: 1500
    k: 22
    home_advantage: 90
    season_regression: 0.3
    use_mov: true
    mov_constant: 2.2
    mov_gap_scale: 0.001
    points_per_elo: 0.035
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cal, err := LoadCalibration(path)
	require.NoError(t, err)

	assert.Equal(t, "2025-ncaab-1", cal.Version)
	assert.InDelta(t, 0.1, cal.FallbackWeight, 1e-9)
	assert.InDelta(t, 0.15, cal.Weights["ncaab"]["spread"]["season_ats"], 1e-9)
	require.Len(t, cal.Tiers["ncaab"]["spread"], 2)
	assert.Equal(t, 5, cal.Tiers["ncaab"]["spread"][0].Tier)
	assert.InDelta(t, 85, cal.Tiers["ncaab"]["spread"][0].MinScore, 1e-9)
	assert.InDelta(t, 22, cal.Elo["ncaab"].K, 1e-9)
	assert.True(t, cal.Elo["ncaab"].UseMOV)
}

func TestLoadCalibrationMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: [unterminated"), 0o600))

	_, err := LoadCalibration(path)
	assert.Error(t, err)
}

func TestSaveCalibrationRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.yaml")
	cal := DefaultCalibration()
	cal.Version = "2025-03-01"
	cal.Tiers["ncaab"]["spread"] = []TierThresholdSetting{{Tier: 5, MinScore: 85, MinEdge: 6}}

	require.NoError(t, SaveCalibration(cal, path))
	loaded, err := LoadCalibration(path)
	require.NoError(t, err)

	assert.Equal(t, "2025-03-01", loaded.Version)
	assert.Equal(t, cal.CalibratedAt, loaded.CalibratedAt)
	assert.InDelta(t, 0.30, loaded.Weights["nfl"]["spread"]["model_edge"], 1e-9)
	assert.Equal(t, []TierThresholdSetting{{Tier: 5, MinScore: 85, MinEdge: 6}}, loaded.Tiers["ncaab"]["spread"])
	require.Len(t, loaded.Tiers["nba"]["total"], 3)
	assert.InDelta(t, 1.0/28.0, loaded.Elo["ncaab"].PointsPerElo, 1e-12)
	assert.False(t, loaded.Elo["mlb"].UseMOV)

	assert.Error(t, SaveCalibration(&Calibration{}, path))
}

func TestWithWeightsCopiesCalibration(t *testing.T) {
	cal := DefaultCalibration()

	out := cal.WithWeights("ncaab", "total", map[string]float64{"model_edge": 0.6, "pace": 0.4})

	assert.Equal(t, map[string]float64{"model_edge": 0.6, "pace": 0.4}, out.Weights["ncaab"]["total"])
	assert.InDelta(t, 0.35, cal.Weights["ncaab"]["total"]["model_edge"], 1e-12)
	assert.Equal(t, cal.Weights["nba"]["total"], out.Weights["nba"]["total"])
	assert.Equal(t, cal.Version, out.Version)

	out.Weights["nba"]["spread"]["model_edge"] = 0
	assert.InDelta(t, 0.30, cal.Weights["nba"]["spread"]["model_edge"], 1e-12)
}
