package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/apperrors"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/picks"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/scoring"
	"github.com/stitts-dev/pick-engine/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepRanksCandidates(t *testing.T) {
	games, snaps := fixture()

	good := fixtureConfig()
	good.Name = "good"

	gated := fixtureConfig()
	gated.Name = "gated"
	gated.Gates.MinSample = 1000

	broken := fixtureConfig()
	broken.Name = "broken"
	broken.Lambda = -1

	progress := make(chan SweepProgress, 3)
	results, err := NewHarness(1, true, nil, quietLogger()).Sweep(context.Background(), "run-1",
		[]Config{broken, gated, good}, games, snaps, 3, progress)
	require.NoError(t, err)
	close(progress)

	require.Len(t, results, 3)
	assert.Equal(t, "good", results[0].Config.Name)
	assert.Equal(t, 4, results[0].Report.Grade)
	assert.Equal(t, "gated", results[1].Config.Name)
	assert.Equal(t, 0, results[1].Report.Grade)
	assert.Equal(t, "broken", results[2].Config.Name)
	assert.Nil(t, results[2].Report)
	assert.ErrorIs(t, results[2].Err, apperrors.ErrInvalidConfiguration)

	var completed []int
	for p := range progress {
		assert.Equal(t, "run-1", p.RunID)
		assert.Equal(t, 3, p.Total)
		completed = append(completed, p.Completed)
	}
	assert.ElementsMatch(t, []int{1, 2, 3}, completed)
}

func TestSweepCancelled(t *testing.T) {
	games, snaps := fixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewHarness(1, true, nil, quietLogger()).Sweep(ctx, "run-2", []Config{fixtureConfig()}, games, snaps, 1, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRankCandidatesBreaksTiesByAccuracyThenName(t *testing.T) {
	results := []CandidateResult{
		{Config: Config{Name: "b"}, Report: &Report{Grade: 3, OutOfSample: Metrics{Accuracy: 0.57}}},
		{Config: Config{Name: "a"}, Report: &Report{Grade: 3, OutOfSample: Metrics{Accuracy: 0.57}}},
		{Config: Config{Name: "c"}, Report: &Report{Grade: 3, OutOfSample: Metrics{Accuracy: 0.59}}},
		{Config: Config{Name: "d"}, Report: &Report{Grade: 5, OutOfSample: Metrics{Accuracy: 0.56}}},
		{Config: Config{Name: "e"}},
	}
	RankCandidates(results)

	var names []string
	for _, r := range results {
		names = append(names, r.Config.Name)
	}
	assert.Equal(t, []string{"d", "c", "a", "b", "e"}, names)
}

func graded(score, edge float64, result types.PickStatus) GradedEvaluation {
	return GradedEvaluation{
		Evaluation: picks.Evaluation{Result: scoring.Result{Score: score}, Edge: edge},
		Pick:       types.GradedPick{Result: result, Units: decimal.Zero},
	}
}

func repeat(n int, e GradedEvaluation) []GradedEvaluation {
	out := make([]GradedEvaluation, n)
	for i := range out {
		out[i] = e
	}
	return out
}

func TestCalibrateTiers(t *testing.T) {
	var train []GradedEvaluation
	train = append(train, repeat(4, graded(75, 3, types.PickWin))...)
	train = append(train, repeat(2, graded(65, 3, types.PickWin))...)
	train = append(train, repeat(2, graded(65, 3, types.PickLoss))...)
	train = append(train, graded(55, 1, types.PickWin))
	train = append(train, repeat(3, graded(55, 1, types.PickLoss))...)

	var holdout []GradedEvaluation
	holdout = append(holdout, repeat(2, graded(78, 4, types.PickWin))...)
	holdout = append(holdout, repeat(3, graded(62, 3, types.PickLoss))...)

	base := scoring.TierTable{Version: "baseline", Source: "defaults"}.
		WithRules(types.SportNBA, types.MarketSpread, []scoring.TierRule{{Tier: 3, MinScore: 65, MinEdge: 2}})
	at := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	table, report, err := CalibrateTiers(CalibrationInput{
		Base:         base,
		Version:      "2025-04-01",
		CalibratedAt: at,
		Sport:        types.SportNCAAB,
		Market:       types.MarketTotal,
		Train:        train,
		Holdout:      holdout,
		Grid: CalibrationGrid{
			Scores: []float64{50, 60, 70},
			Edges:  []float64{0, 2},
			Targets: []TierTarget{
				{Tier: scoring.TierFive, MinAccuracy: 0.8},
				{Tier: scoring.TierThree, MinAccuracy: 0.6},
			},
			MinSample: 4,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "2025-04-01", table.Version)
	assert.Equal(t, at, table.CalibratedAt)
	assert.Equal(t, []scoring.TierRule{{Tier: 5, MinScore: 70, MinEdge: 0}},
		table.RulesFor(types.SportNCAAB, types.MarketTotal))
	assert.Equal(t, base.RulesFor(types.SportNBA, types.MarketSpread),
		table.RulesFor(types.SportNBA, types.MarketSpread), "other markets carry over")
	assert.Equal(t, "baseline", base.Version)

	require.Len(t, report, 2)
	assert.False(t, report[0].Dropped)
	assert.InDelta(t, 1.0, report[0].TrainAccuracy, 1e-12)
	assert.InDelta(t, 1.0, report[0].HoldoutAccuracy, 1e-12)
	assert.Equal(t, scoring.TierRule{Tier: 3, MinScore: 50, MinEdge: 2}, report[1].Rule)
	assert.True(t, report[1].Dropped, "2-3 on the holdout loses money")

	registry := scoring.NewTierRegistry()
	require.NoError(t, registry.Append(base))
	require.NoError(t, registry.Append(table))
	latest, ok := registry.Latest()
	require.True(t, ok)
	assert.Equal(t, "2025-04-01", latest.Version)
}

func TestCalibrateTiersWithoutQualifyingRules(t *testing.T) {
	train := repeat(10, graded(80, 5, types.PickLoss))

	_, _, err := CalibrateTiers(CalibrationInput{
		Base:    scoring.TierTable{Version: "baseline"},
		Version: "next",
		Sport:   types.SportNCAAB,
		Market:  types.MarketSpread,
		Train:   train,
		Grid:    DefaultCalibrationGrid(),
	})
	assert.ErrorIs(t, err, apperrors.ErrInsufficientTrainingData)

	_, _, err = CalibrateTiers(CalibrationInput{Base: scoring.TierTable{Version: "baseline"}, Grid: DefaultCalibrationGrid()})
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfiguration)
}

func TestBootstrapIsSeededAndBracketsAccuracy(t *testing.T) {
	outcomes := []float64{1, 1, 1, 0, 1, 0, 1, 1, 0, 1, 1, 0}

	lo1, hi1 := bootstrapAccuracy(outcomes, 400, 11)
	lo2, hi2 := bootstrapAccuracy(outcomes, 400, 11)
	assert.Equal(t, lo1, lo2)
	assert.Equal(t, hi1, hi2)
	assert.LessOrEqual(t, lo1, 8.0/12.0)
	assert.GreaterOrEqual(t, hi1, 8.0/12.0)
	assert.Less(t, lo1, hi1)

	lo, hi := bootstrapAccuracy(nil, 400, 11)
	assert.Zero(t, lo)
	assert.Zero(t, hi)

	lo, hi = bootstrapAccuracy([]float64{1, 0}, 0, 11)
	assert.Equal(t, 0.5, lo)
	assert.Equal(t, 0.5, hi)
}

func TestApplyGatesAndGrade(t *testing.T) {
	gates := DefaultGates()

	pass := Metrics{Wins: 70, Losses: 40, Accuracy: 70.0 / 110.0, CILow: 0.54, ROI: 0.2}
	assert.Empty(t, applyGates(gates, pass, 0.02))
	assert.Equal(t, 5, letterGrade(pass))

	reasons := applyGates(gates, Metrics{Wins: 30, Losses: 30, Accuracy: 0.5}, 0.12)
	assert.Len(t, reasons, 3)

	assert.Equal(t, 4, letterGrade(Metrics{Accuracy: 0.585, CILow: 0.5}))
	assert.Equal(t, 3, letterGrade(Metrics{Accuracy: 0.57, CILow: 0.5}))
	assert.Equal(t, 2, letterGrade(Metrics{Accuracy: 0.55, CILow: 0.45, ROI: 0.05}))
	assert.Equal(t, 1, letterGrade(Metrics{Accuracy: 0.52, CILow: 0.4, ROI: -0.01}))
}
