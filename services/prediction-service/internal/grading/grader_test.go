package grading

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/apperrors"
	"github.com/stitts-dev/pick-engine/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var gradedAt = time.Date(2025, 3, 2, 6, 0, 0, 0, time.UTC)

func pick(id, gameID string, market types.Market, side types.Direction, line float64) types.Pick {
	return types.Pick{
		ID:     id,
		GameID: gameID,
		Sport:  types.SportNCAAB,
		Market: market,
		Side:   side,
		Line:   line,
		Score:  74,
		Tier:   4,
		Status: types.PickPending,
	}
}

func final(id string, home, away int) types.GameRecord {
	return types.GameRecord{
		ID:        id,
		Sport:     types.SportNCAAB,
		GameDate:  time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		HomeTeam:  "Duke",
		AwayTeam:  "UNC",
		HomeScore: home,
		AwayScore: away,
		Final:     true,
	}
}

func TestSpreadOutcomeFromStoredResult(t *testing.T) {
	tests := []struct {
		name   string
		result types.SpreadResult
		side   types.Direction
		want   types.PickStatus
	}{
		{name: "home covered, home pick", result: types.SpreadCovered, side: types.DirectionHome, want: types.PickWin},
		{name: "home covered, away pick", result: types.SpreadCovered, side: types.DirectionAway, want: types.PickLoss},
		{name: "home lost, away pick", result: types.SpreadLost, side: types.DirectionAway, want: types.PickWin},
		{name: "home lost, home pick", result: types.SpreadLost, side: types.DirectionHome, want: types.PickLoss},
		{name: "push, home pick", result: types.SpreadPush, side: types.DirectionHome, want: types.PickPush},
		{name: "push, away pick", result: types.SpreadPush, side: types.DirectionAway, want: types.PickPush},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			game := final("g1", 80, 60)
			game.SpreadResult = tt.result

			got, err := Outcome(pick("p1", "g1", types.MarketSpread, tt.side, -3.5), game)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSpreadPushAlwaysGradesPush(t *testing.T) {
	// scores and tiers that would otherwise decide the pick either way
	for _, scores := range [][2]int{{100, 50}, {50, 100}, {70, 70}} {
		for _, tier := range []int{3, 4, 5} {
			for _, side := range []types.Direction{types.DirectionHome, types.DirectionAway} {
				game := final("g1", scores[0], scores[1])
				game.SpreadResult = types.SpreadPush
				p := pick("p1", "g1", types.MarketSpread, side, -4)
				p.Tier = tier

				gp, err := Grade(p, game, gradedAt)
				require.NoError(t, err)
				assert.Equal(t, types.PickPush, gp.Result)
				assert.True(t, gp.Units.IsZero())
			}
		}
	}
}

func TestSpreadOutcomeFallsBackToPickLine(t *testing.T) {
	tests := []struct {
		name string
		home int
		away int
		side types.Direction
		line float64
		want types.PickStatus
	}{
		{name: "favourite covers", home: 80, away: 70, side: types.DirectionHome, line: -7.5, want: types.PickWin},
		{name: "favourite fails to cover", home: 75, away: 70, side: types.DirectionHome, line: -7.5, want: types.PickLoss},
		{name: "dog covers", home: 75, away: 70, side: types.DirectionAway, line: -7.5, want: types.PickWin},
		{name: "whole number push", home: 77, away: 70, side: types.DirectionAway, line: -7, want: types.PickPush},
		{name: "home dog wins outright", home: 70, away: 68, side: types.DirectionHome, line: 4, want: types.PickWin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Outcome(pick("p1", "g1", types.MarketSpread, tt.side, tt.line), final("g1", tt.home, tt.away))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTotalOutcome(t *testing.T) {
	tests := []struct {
		name   string
		stored types.TotalResult
		home   int
		away   int
		side   types.Direction
		want   types.PickStatus
	}{
		{name: "stored over, over pick", stored: types.TotalOver, side: types.DirectionOver, want: types.PickWin},
		{name: "stored over, under pick", stored: types.TotalOver, side: types.DirectionUnder, want: types.PickLoss},
		{name: "stored push", stored: types.TotalPush, side: types.DirectionUnder, want: types.PickPush},
		{name: "scores over line", home: 75, away: 70, side: types.DirectionOver, want: types.PickWin},
		{name: "scores under line", home: 65, away: 60, side: types.DirectionUnder, want: types.PickWin},
		{name: "scores on line", home: 70, away: 70, side: types.DirectionOver, want: types.PickPush},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			game := final("g1", tt.home, tt.away)
			game.TotalResult = tt.stored

			got, err := Outcome(pick("p1", "g1", types.MarketTotal, tt.side, 140), game)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOutcomeErrors(t *testing.T) {
	settled := pick("p1", "g1", types.MarketSpread, types.DirectionHome, -3)
	settled.Status = types.PickWin
	_, err := Outcome(settled, final("g1", 80, 70))
	assert.ErrorIs(t, err, apperrors.ErrAlreadyGraded)

	live := final("g1", 40, 38)
	live.Final = false
	_, err = Outcome(pick("p1", "g1", types.MarketSpread, types.DirectionHome, -3), live)
	assert.ErrorIs(t, err, ErrGameNotFinal)

	_, err = Outcome(pick("p1", "g1", types.MarketSpread, types.DirectionHome, -3), final("g2", 80, 70))
	assert.ErrorIs(t, err, ErrGameMismatch)

	_, err = Outcome(pick("p1", "g1", types.MarketSpread, types.DirectionOver, -3), final("g1", 80, 70))
	assert.ErrorIs(t, err, ErrUngradable)
}

func TestGradeDoesNotMutateInput(t *testing.T) {
	p := pick("p1", "g1", types.MarketSpread, types.DirectionHome, -3)
	p.Signals = []types.SignalResult{{Category: types.CategoryModelEdge, Direction: types.DirectionHome, Magnitude: 5}}

	gp, err := Grade(p, final("g1", 80, 70), gradedAt)
	require.NoError(t, err)

	assert.Equal(t, types.PickPending, p.Status)
	assert.Equal(t, types.PickWin, gp.Pick.Status)
	assert.Equal(t, types.PickWin, gp.Result)
	assert.Equal(t, gradedAt, gp.GradedAt)
	assert.True(t, gp.Units.Equal(decimal.NewFromInt(100).Div(decimal.NewFromInt(110))))

	gp.Pick.Signals[0].Magnitude = 9
	assert.Equal(t, 5.0, p.Signals[0].Magnitude)
}

func TestGradePicksSkipsUnsettledAndGraded(t *testing.T) {
	live := final("g3", 30, 28)
	live.Final = false
	already := pick("p4", "g1", types.MarketTotal, types.DirectionOver, 140)
	already.Status = types.PickLoss

	pending := []types.Pick{
		pick("p1", "g1", types.MarketSpread, types.DirectionHome, -3),
		pick("p2", "g2", types.MarketSpread, types.DirectionHome, -3),
		pick("p3", "g3", types.MarketSpread, types.DirectionHome, -3),
		already,
		pick("p5", "missing", types.MarketSpread, types.DirectionHome, -3),
	}
	settled := []types.GameRecord{final("g1", 80, 70), final("g2", 70, 80), live}

	graded := GradePicksAt(pending, settled, gradedAt)
	require.Len(t, graded, 2)
	assert.Equal(t, "p1", graded[0].Pick.ID)
	assert.Equal(t, types.PickWin, graded[0].Result)
	assert.Equal(t, "p2", graded[1].Pick.ID)
	assert.Equal(t, types.PickLoss, graded[1].Result)

	assert.Equal(t, graded, GradePicksAt(pending, settled, gradedAt))
}

func TestTally(t *testing.T) {
	var graded []types.GradedPick
	for i := 0; i < 11; i++ {
		graded = append(graded, types.GradedPick{Result: types.PickWin})
	}
	for i := 0; i < 9; i++ {
		graded = append(graded, types.GradedPick{Result: types.PickLoss})
	}
	graded = append(graded, types.GradedPick{Result: types.PickPush})

	rec := Tally(graded)
	assert.Equal(t, 11, rec.Wins)
	assert.Equal(t, 9, rec.Losses)
	assert.Equal(t, 1, rec.Pushes)
	assert.Equal(t, 20, rec.Decided())
	assert.Equal(t, 21, rec.Total())
	assert.InDelta(t, 0.55, rec.Accuracy(), 1e-12)
	assert.InDelta(t, 0.05, rec.ROI(), 1e-9)
	assert.InDelta(t, 1.0, rec.Units.InexactFloat64(), 1e-9)

	assert.Zero(t, Record{}.Accuracy())
}
