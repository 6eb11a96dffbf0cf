package scoring

import (
	"errors"
	"testing"

	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/apperrors"
	"github.com/stitts-dev/pick-engine/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signal(category types.SignalCategory, direction types.Direction, magnitude, confidence float64, strength types.Strength) types.SignalResult {
	return types.SignalResult{
		Category:   category,
		Direction:  direction,
		Magnitude:  magnitude,
		Confidence: confidence,
		Strength:   strength,
	}
}

func table(weights map[types.SignalCategory]float64) WeightTable {
	return WeightTable{Sport: types.SportNCAAB, Market: types.MarketSpread, Weights: weights, Fallback: DefaultFallbackWeight}
}

func newTestScorer(t *testing.T) *Scorer {
	t.Helper()
	scorer, err := NewScorer(DefaultMinActive)
	require.NoError(t, err)
	return scorer
}

func TestScoreHandCalculatedScenario(t *testing.T) {
	scorer := newTestScorer(t)
	results := []types.SignalResult{
		signal(types.CategoryModelEdge, types.DirectionHome, 8, 0.8, types.StrengthStrong),
		signal(types.CategorySeasonATS, types.DirectionHome, 4, 0.5, types.StrengthModerate),
		signal(types.CategoryHeadToHead, types.DirectionAway, 6, 0.6, types.StrengthModerate),
	}
	weights := table(map[types.SignalCategory]float64{
		types.CategoryModelEdge:  0.3,
		types.CategorySeasonATS:  0.15,
		types.CategoryHeadToHead: 0.05,
	})

	got := scorer.Score(results, weights)

	// home = 0.3·8·0.8 + 0.15·4·0.5 = 2.22, away = 0.05·6·0.6 = 0.18
	// raw = (2.22 - 0.18) / 5 = 0.408, base = 50 + 0.408·80 = 82.64
	// +4 (2 of 3 agree), -5 (one moderate opposes), +5 (two strong/moderate agree)
	assert.Equal(t, types.DirectionHome, got.Direction)
	assert.InDelta(t, 0.408, got.RawStrength, 1e-9)
	assert.InDelta(t, 86.64, got.Score, 1e-9)
	assert.Equal(t, 3, got.Active)
	assert.Equal(t, 2, got.Agreeing)
	assert.Equal(t, 1, got.Opposing)
	assert.InDelta(t, 9, got.Bonus, 1e-9)
	assert.InDelta(t, 5, got.Penalty, 1e-9)
}

func TestScoreAgreementAndSignificanceBonuses(t *testing.T) {
	home, away := types.DirectionHome, types.DirectionAway
	moderate := func(c types.SignalCategory) types.SignalResult {
		return signal(c, home, 4, 0.2, types.StrengthModerate)
	}
	weak := func(c types.SignalCategory, d types.Direction) types.SignalResult {
		return signal(c, d, 1, 0.5, types.StrengthWeak)
	}
	noise := func(c types.SignalCategory, d types.Direction) types.SignalResult {
		return signal(c, d, 1, 0.5, types.StrengthNoise)
	}

	// every category falls back to weight 0.1, so the denominator is 0.1·10 per signal
	tests := []struct {
		name    string
		results []types.SignalResult
		raw     float64
		bonus   float64
		score   float64
	}{
		{
			// 4 of 5 agree (+8) and three moderates agree (+10); home 0.24 + 0.05, away 0.05
			name: "eighty percent and three significant",
			results: []types.SignalResult{
				moderate(types.CategoryModelEdge),
				moderate(types.CategoryRatingEdge),
				moderate(types.CategorySeasonATS),
				noise(types.CategoryRecentForm, home),
				noise(types.CategoryHeadToHead, away),
			},
			raw:   0.048,
			bonus: 18,
			score: 50 + 0.048*80 + 18,
		},
		{
			// 4 of 5 agree, none significant; home 0.2, away 0.05
			name: "eighty percent only",
			results: []types.SignalResult{
				weak(types.CategoryModelEdge, home),
				weak(types.CategoryRatingEdge, home),
				weak(types.CategorySeasonATS, home),
				weak(types.CategoryRecentForm, home),
				weak(types.CategoryHeadToHead, away),
			},
			raw:   0.03,
			bonus: 8,
			score: 50 + 0.03*80 + 8,
		},
		{
			// 3 of 6 agree, below both ratios; home 0.24, away 0.15
			name: "three significant only",
			results: []types.SignalResult{
				moderate(types.CategoryModelEdge),
				moderate(types.CategoryRatingEdge),
				moderate(types.CategorySeasonATS),
				weak(types.CategoryRecentForm, away),
				weak(types.CategoryHeadToHead, away),
				weak(types.CategoryRest, away),
			},
			raw:   0.015,
			bonus: 10,
			score: 50 + 0.015*80 + 10,
		},
	}

	scorer := newTestScorer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scorer.Score(tt.results, table(nil))
			assert.Equal(t, home, got.Direction)
			assert.InDelta(t, tt.raw, got.RawStrength, 1e-12)
			assert.InDelta(t, tt.bonus, got.Bonus, 1e-12)
			assert.Zero(t, got.Penalty)
			assert.InDelta(t, tt.score, got.Score, 1e-9)
		})
	}
}

func TestScoreUnanimousMaximumSignalsReachesHundred(t *testing.T) {
	scorer := newTestScorer(t)
	var results []types.SignalResult
	for _, c := range []types.SignalCategory{types.CategoryModelEdge, types.CategoryRatingEdge, types.CategoryMarketEdge, types.CategoryRecentForm} {
		results = append(results, signal(c, types.DirectionHome, 10, 1, types.StrengthStrong))
	}

	got := scorer.Score(results, table(map[types.SignalCategory]float64{types.CategoryModelEdge: 0.4}))
	assert.Equal(t, types.DirectionHome, got.Direction)
	assert.InDelta(t, 1.0, got.RawStrength, 1e-12)
	assert.Equal(t, 100.0, got.Score)
}

func TestScoreZeroActiveSignalsIsExactlyFifty(t *testing.T) {
	scorer := newTestScorer(t)
	neutral := []types.SignalResult{
		types.NeutralSignal(types.CategoryModelEdge, "no projection"),
		types.NeutralSignal(types.CategoryPace, "no tempo"),
	}
	for _, weights := range []map[types.SignalCategory]float64{
		nil,
		{types.CategoryModelEdge: 5},
		{types.CategoryModelEdge: 0, types.CategoryPace: 0},
	} {
		got := scorer.Score(neutral, table(weights))
		assert.Equal(t, 50.0, got.Score)
		assert.Equal(t, types.DirectionNeutral, got.Direction)
	}

	got := scorer.Score(nil, table(nil))
	assert.Equal(t, 50.0, got.Score)
}

func TestScoreBelowMinimumActiveAbstains(t *testing.T) {
	scorer := newTestScorer(t)
	results := []types.SignalResult{
		signal(types.CategoryModelEdge, types.DirectionHome, 10, 1, types.StrengthStrong),
		signal(types.CategoryRatingEdge, types.DirectionHome, 10, 1, types.StrengthStrong),
		types.NeutralSignal(types.CategoryRest, "no previous game"),
	}
	got := scorer.Score(results, table(nil))
	assert.Equal(t, 50.0, got.Score)
	assert.Equal(t, types.DirectionNeutral, got.Direction)
	assert.Equal(t, 2, got.Active)
}

func TestScoreNeutralSignalsDiluteButNeverVote(t *testing.T) {
	scorer := newTestScorer(t)
	base := []types.SignalResult{
		signal(types.CategoryModelEdge, types.DirectionOver, 5, 1, types.StrengthModerate),
		signal(types.CategoryPace, types.DirectionOver, 5, 1, types.StrengthModerate),
		signal(types.CategoryWeather, types.DirectionOver, 5, 1, types.StrengthModerate),
	}
	weights := table(map[types.SignalCategory]float64{types.CategoryHeadToHead: 0.5})

	without := scorer.Score(base, weights)
	with := scorer.Score(append(base, types.NeutralSignal(types.CategoryHeadToHead, "too few meetings")), weights)

	assert.Equal(t, without.Direction, with.Direction)
	assert.Equal(t, without.Active, with.Active)
	assert.Less(t, with.RawStrength, without.RawStrength)
}

func TestScoreTieBreaks(t *testing.T) {
	scorer := newTestScorer(t)
	weights := table(nil)

	// equal weight, more agreeing signals on away
	results := []types.SignalResult{
		signal(types.CategoryModelEdge, types.DirectionHome, 4, 1, types.StrengthModerate),
		signal(types.CategoryRatingEdge, types.DirectionAway, 2, 1, types.StrengthWeak),
		signal(types.CategoryRest, types.DirectionAway, 2, 1, types.StrengthWeak),
	}
	assert.Equal(t, types.DirectionAway, scorer.Score(results, weights).Direction)

	// equal weight and count: fixed order puts home first
	results = []types.SignalResult{
		signal(types.CategoryModelEdge, types.DirectionAway, 3, 1, types.StrengthWeak),
		signal(types.CategoryRatingEdge, types.DirectionHome, 3, 1, types.StrengthWeak),
		signal(types.CategoryRest, types.DirectionHome, 1, 1, types.StrengthNoise),
		signal(types.CategorySeasonATS, types.DirectionAway, 1, 1, types.StrengthNoise),
	}
	got := scorer.Score(results, weights)
	assert.Equal(t, types.DirectionHome, got.Direction)
	assert.Equal(t, 50.0, got.Score)
}

func TestScoreDisagreementPenalty(t *testing.T) {
	scorer := newTestScorer(t)
	weights := table(map[types.SignalCategory]float64{types.CategoryModelEdge: 1})
	results := []types.SignalResult{
		signal(types.CategoryModelEdge, types.DirectionHome, 10, 1, types.StrengthStrong),
		signal(types.CategoryRatingEdge, types.DirectionAway, 5, 0.5, types.StrengthModerate),
		signal(types.CategoryRest, types.DirectionAway, 5, 0.5, types.StrengthModerate),
	}

	got := scorer.Score(results, weights)
	assert.Equal(t, types.DirectionHome, got.Direction)
	assert.InDelta(t, 10, got.Penalty, 1e-9)
	assert.Zero(t, got.Bonus)
}

func TestScoreIsDeterministic(t *testing.T) {
	scorer := newTestScorer(t)
	results := []types.SignalResult{
		signal(types.CategoryModelEdge, types.DirectionUnder, 6, 0.7, types.StrengthModerate),
		signal(types.CategoryPace, types.DirectionOver, 2, 0.5, types.StrengthWeak),
		signal(types.CategoryWeather, types.DirectionUnder, 3, 0.6, types.StrengthModerate),
	}
	weights := table(map[types.SignalCategory]float64{types.CategoryModelEdge: 0.35, types.CategoryPace: 0.2})
	assert.Equal(t, scorer.Score(results, weights), scorer.Score(results, weights))
}

func TestNewScorerRejectsZeroMinimum(t *testing.T) {
	_, err := NewScorer(0)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidConfiguration))
}
