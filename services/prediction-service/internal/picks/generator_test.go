package picks

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/scoring"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/signals"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/snapshot"
	"github.com/stitts-dev/pick-engine/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var slateDay = time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func rating(team string, asOf time.Time, oe, de float64) types.TeamRatingSnapshot {
	return types.TeamRatingSnapshot{
		Team:       team,
		Sport:      types.SportNCAAB,
		AsOfDate:   asOf,
		AdjOffense: oe,
		AdjDefense: de,
		AdjTempo:   70,
	}
}

func slateGame(id, home, away string, hour int, spread, total float64) types.GameContext {
	return types.GameContext{
		Game: types.GameRecord{
			ID:       id,
			Sport:    types.SportNCAAB,
			Season:   2025,
			GameDate: slateDay.Add(time.Duration(hour) * time.Hour),
			HomeTeam: home,
			AwayTeam: away,
			Spread:   types.Float64Ptr(spread),
			Total:    types.Float64Ptr(total),
		},
		Indoor: true,
	}
}

func testStore(t *testing.T, extra ...types.TeamRatingSnapshot) *snapshot.Store {
	t.Helper()
	snaps := []types.TeamRatingSnapshot{
		rating("Strong Home", slateDay.AddDate(0, 0, -3), 115, 95),
		rating("Weak Away", slateDay.AddDate(0, 0, -3), 100, 105),
		rating("Weak Home", slateDay.AddDate(0, 0, -2), 100, 105),
		rating("Strong Away", slateDay.AddDate(0, 0, -2), 115, 95),
	}
	store, err := snapshot.NewStore(append(snaps, extra...))
	require.NoError(t, err)
	return store
}

func testGenerator(t *testing.T, workers int) *Generator {
	t.Helper()
	scorer, err := scoring.NewScorer(1)
	require.NoError(t, err)

	table := scoring.TierTable{Version: "test-v1", CalibratedAt: slateDay, Source: "unit test"}.
		WithRules(types.SportNCAAB, types.MarketSpread, []scoring.TierRule{
			{Tier: 5, MinScore: 90, MinEdge: 10},
			{Tier: 3, MinScore: 51, MinEdge: 1},
		}).
		WithRules(types.SportNCAAB, types.MarketTotal, []scoring.TierRule{
			{Tier: 3, MinScore: 51, MinEdge: 1},
		})
	mapper, err := scoring.NewTierMapper(table)
	require.NoError(t, err)

	gen, err := NewGenerator(Config{
		Scorer:  scorer,
		Tiers:   mapper,
		Workers: workers,
		Logger:  quietLogger(),
	})
	require.NoError(t, err)
	return gen
}

func testSlate(t *testing.T) Input {
	return Input{
		Sport: types.SportNCAAB,
		Games: []types.GameContext{
			slateGame("g3", "Unknown A", "Unknown B", 21, -1, 130),
			slateGame("g2", "Weak Home", "Strong Away", 19, 3, 120),
			slateGame("g1", "Strong Home", "Weak Away", 19, -5, 120),
		},
		Store:       testStore(t),
		GeneratedAt: slateDay.Add(9 * time.Hour),
	}
}

func TestNewGeneratorRequiresScorerAndTiers(t *testing.T) {
	_, err := NewGenerator(Config{})
	assert.Error(t, err)

	scorer, err := scoring.NewScorer(3)
	require.NoError(t, err)
	_, err = NewGenerator(Config{Scorer: scorer})
	assert.Error(t, err)
}

func TestEvaluateOrdersByDateGameAndMarket(t *testing.T) {
	gen := testGenerator(t, 3)

	evals, err := gen.Evaluate(context.Background(), testSlate(t))
	require.NoError(t, err)
	require.Len(t, evals, 6)

	var got []string
	for _, e := range evals {
		got = append(got, e.Game.ID+"/"+string(e.Market))
	}
	assert.Equal(t, []string{
		"g1/spread", "g1/total",
		"g2/spread", "g2/total",
		"g3/spread", "g3/total",
	}, got)

	for _, e := range evals {
		assert.Len(t, e.Signals, len(signals.DefaultLibrary().Categories(e.Market)))
	}
}

func TestGenerateKeepsTieredDirectionalEvaluations(t *testing.T) {
	gen := testGenerator(t, 2)
	in := testSlate(t)

	picks, err := gen.Generate(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, picks, 4, "the unknown teams have no projection and produce no picks")

	sides := map[string]types.Direction{}
	for _, p := range picks {
		sides[p.GameID+"/"+string(p.Market)] = p.Side

		assert.Equal(t, types.PickPending, p.Status)
		assert.Equal(t, "test-v1", p.CalibrationVersion)
		assert.Equal(t, PickID(p.GameID, p.Market, in.GeneratedAt), p.ID)
		assert.Greater(t, p.Tier, scoring.TierReject)
		assert.Greater(t, p.Edge, 1.0, "edge is measured for the picked side")
		assert.NotEmpty(t, p.Signals)
	}

	assert.Equal(t, types.DirectionHome, sides["g1/spread"])
	assert.Equal(t, types.DirectionAway, sides["g2/spread"])
	assert.Equal(t, types.DirectionOver, sides["g1/total"])
	assert.Equal(t, types.DirectionOver, sides["g2/total"])
}

func TestGenerateIsIdempotent(t *testing.T) {
	in := testSlate(t)

	first, err := testGenerator(t, 1).Generate(context.Background(), in)
	require.NoError(t, err)
	second, err := testGenerator(t, 4).Generate(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEvaluateIgnoresSnapshotsPublishedAfterGameDay(t *testing.T) {
	gen := testGenerator(t, 2)

	baseline, err := gen.Evaluate(context.Background(), testSlate(t))
	require.NoError(t, err)

	in := testSlate(t)
	in.Store = testStore(t,
		rating("Strong Home", slateDay.AddDate(0, 0, 1), 80, 130),
		rating("Weak Away", slateDay.AddDate(0, 0, 1), 130, 80),
	)
	withFuture, err := gen.Evaluate(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, baseline, withFuture)
}

func TestEvaluateStopsOnCancelledContext(t *testing.T) {
	gen := testGenerator(t, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gen.Evaluate(ctx, testSlate(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEvaluateWithoutInputsIsNeutral(t *testing.T) {
	gen := testGenerator(t, 2)

	evals, err := gen.Evaluate(context.Background(), Input{
		Sport:   types.SportNCAAB,
		Games:   []types.GameContext{slateGame("g1", "Strong Home", "Weak Away", 19, -5, 120)},
		Markets: []types.Market{types.MarketSpread},
	})
	require.NoError(t, err)
	require.Len(t, evals, 1)

	assert.Equal(t, types.DirectionNeutral, evals[0].Result.Direction)
	assert.Equal(t, 50.0, evals[0].Result.Score)
	assert.False(t, evals[0].Pickable())
}

func TestSideEdge(t *testing.T) {
	assert.Equal(t, 4.0, sideEdge(4, types.DirectionHome))
	assert.Equal(t, -4.0, sideEdge(4, types.DirectionAway))
	assert.Equal(t, 2.5, sideEdge(-2.5, types.DirectionUnder))
	assert.Equal(t, 3.0, sideEdge(3, types.DirectionOver))
}

func TestPickIDIsStablePerGameMarketAndDay(t *testing.T) {
	morning := slateDay.Add(9 * time.Hour)
	evening := slateDay.Add(20 * time.Hour)

	assert.Equal(t, PickID("g1", types.MarketSpread, morning), PickID("g1", types.MarketSpread, evening))
	assert.NotEqual(t, PickID("g1", types.MarketSpread, morning), PickID("g1", types.MarketTotal, morning))
	assert.NotEqual(t, PickID("g1", types.MarketSpread, morning), PickID("g1", types.MarketSpread, morning.AddDate(0, 0, 1)))
}
