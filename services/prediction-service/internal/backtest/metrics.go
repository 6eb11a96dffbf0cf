package backtest

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/grading"
	"github.com/stitts-dev/pick-engine/shared/types"
	"gonum.org/v1/gonum/stat"
)

// BreakEvenAccuracy is the win rate that returns zero at -110
const BreakEvenAccuracy = 110.0 / 210.0

// Holdout segments
const (
	SegmentRegularSeason = "regular_season"
	SegmentTournament    = "tournament"
)

// Metrics summarise one set of graded picks
type Metrics struct {
	Picks      int     `json:"picks"`
	Wins       int     `json:"wins"`
	Losses     int     `json:"losses"`
	Pushes     int     `json:"pushes"`
	Accuracy   float64 `json:"accuracy"`
	ROI        float64 `json:"roi"`
	Units      float64 `json:"units"`
	CILow      float64 `json:"ci_low"`
	CIHigh     float64 `json:"ci_high"`
	MeanReturn float64 `json:"mean_return"`
	StdReturn  float64 `json:"std_return"`
	Sharpe     float64 `json:"sharpe"`
}

// Decided excludes pushes
func (m Metrics) Decided() int {
	return m.Wins + m.Losses
}

// computeMetrics tallies the picks, bootstraps an accuracy interval and computes a
// Sharpe-like ratio of the per-pick unit returns
func computeMetrics(graded []types.GradedPick, iterations int, seed int64) Metrics {
	rec := grading.Tally(graded)
	m := Metrics{
		Picks:    rec.Total(),
		Wins:     rec.Wins,
		Losses:   rec.Losses,
		Pushes:   rec.Pushes,
		Accuracy: rec.Accuracy(),
		ROI:      rec.ROI(),
		Units:    rec.Units.InexactFloat64(),
	}

	returns := make([]float64, len(graded))
	decided := make([]float64, 0, len(graded))
	for i, g := range graded {
		returns[i] = g.Units.InexactFloat64()
		switch g.Result {
		case types.PickWin:
			decided = append(decided, 1)
		case types.PickLoss:
			decided = append(decided, 0)
		}
	}

	if len(returns) > 1 {
		m.MeanReturn, m.StdReturn = stat.MeanStdDev(returns, nil)
		if m.StdReturn > 0 {
			m.Sharpe = m.MeanReturn / m.StdReturn
		}
	} else if len(returns) == 1 {
		m.MeanReturn = returns[0]
	}

	m.CILow, m.CIHigh = bootstrapAccuracy(decided, iterations, seed)
	return m
}

// bootstrapAccuracy resamples decided outcomes with replacement and returns the 2.5th
// and 97.5th percentiles of the resampled accuracy. Identical seeds give identical bounds.
func bootstrapAccuracy(outcomes []float64, iterations int, seed int64) (float64, float64) {
	if len(outcomes) == 0 {
		return 0, 0
	}
	if iterations <= 0 {
		acc := stat.Mean(outcomes, nil)
		return acc, acc
	}

	rng := rand.New(rand.NewSource(seed))
	samples := make([]float64, iterations)
	n := len(outcomes)
	for i := range samples {
		wins := 0.0
		for j := 0; j < n; j++ {
			wins += outcomes[rng.Intn(n)]
		}
		samples[i] = wins / float64(n)
	}
	sort.Float64s(samples)

	return stat.Quantile(0.025, stat.Empirical, samples, nil),
		stat.Quantile(0.975, stat.Empirical, samples, nil)
}

// applyGates returns the reasons a candidate fails, empty when it passes
func applyGates(gates Gates, outOfSample Metrics, overfitGap float64) []string {
	var reasons []string
	if outOfSample.Decided() < gates.MinSample {
		reasons = append(reasons, fmt.Sprintf("sample size %d < %d", outOfSample.Decided(), gates.MinSample))
	}
	if outOfSample.Accuracy < gates.MinAccuracy {
		reasons = append(reasons, fmt.Sprintf("held-out accuracy %.3f < %.3f", outOfSample.Accuracy, gates.MinAccuracy))
	}
	if overfitGap > gates.MaxOverfitGap {
		reasons = append(reasons, fmt.Sprintf("overfit gap %.3f > %.3f", overfitGap, gates.MaxOverfitGap))
	}
	return reasons
}

// letterGrade ranks a candidate that passed every gate from 1 to 5
func letterGrade(m Metrics) int {
	switch {
	case m.CILow >= BreakEvenAccuracy:
		return 5
	case m.Accuracy >= 0.58:
		return 4
	case m.Accuracy >= 0.565:
		return 3
	case m.ROI > 0:
		return 2
	default:
		return 1
	}
}

func segmentMetrics(evals []GradedEvaluation, iterations int, seed int64) map[string]Metrics {
	buckets := make(map[string][]types.GradedPick)
	for _, e := range evals {
		key := SegmentRegularSeason
		if e.Game.Tournament {
			key = SegmentTournament
		}
		buckets[key] = append(buckets[key], e.Pick)
	}

	out := make(map[string]Metrics, len(buckets))
	for key, graded := range buckets {
		out[key] = computeMetrics(graded, iterations, seed)
	}
	return out
}
