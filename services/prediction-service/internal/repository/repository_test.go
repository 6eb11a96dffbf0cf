package repository

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/apperrors"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/regression"
	"github.com/stitts-dev/pick-engine/shared/pkg/database"
	"github.com/stitts-dev/pick-engine/shared/types"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var day = time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC)

type RepositoryTestSuite struct {
	suite.Suite
	db        *database.DB
	games     *GameRepository
	snapshots *SnapshotRepository
	picks     *PickRepository
	elo       *EloRepository
	models    *ModelRepository
	ctx       context.Context
}

func (s *RepositoryTestSuite) SetupSuite() {
	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	s.Require().NoError(err)

	// every pooled connection to :memory: would be a separate database
	sqlDB, err := gormDB.DB()
	s.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)

	s.db = database.Wrap(gormDB)
	s.Require().NoError(AutoMigrate(s.db.DB))

	log := logrus.New()
	log.SetOutput(io.Discard)
	s.games = NewGameRepository(s.db, log)
	s.snapshots = NewSnapshotRepository(s.db, log)
	s.picks = NewPickRepository(s.db, log)
	s.elo = NewEloRepository(s.db, log)
	s.models = NewModelRepository(s.db, log)
	s.ctx = context.Background()
}

func (s *RepositoryTestSuite) SetupTest() {
	s.db.Exec("DELETE FROM games")
	s.db.Exec("DELETE FROM team_rating_snapshots")
	s.db.Exec("DELETE FROM picks")
	s.db.Exec("DELETE FROM elo_ratings")
	s.db.Exec("DELETE FROM regression_models")
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}

func scheduled(id string, at time.Time, spread *float64) types.GameContext {
	return types.GameContext{Game: types.GameRecord{
		ID:       id,
		Sport:    types.SportNCAAB,
		Season:   2025,
		GameDate: at,
		HomeTeam: "Home " + id,
		AwayTeam: "Away " + id,
		Spread:   spread,
	}}
}

func (s *RepositoryTestSuite) TestUpsertMergesOddsWithoutTouchingSettledOutcomes() {
	pre := scheduled("g1", day.Add(19*time.Hour), types.Float64Ptr(-4))
	pre.Weather = &types.WeatherConditions{WindMPH: 12}
	_, err := s.games.UpsertGames(s.ctx, []types.GameContext{pre})
	s.Require().NoError(err)

	// a feed without odds keeps the stored line and adds the total
	update := scheduled("g1", day.Add(19*time.Hour), nil)
	update.Game.Total = types.Float64Ptr(141.5)
	_, err = s.games.UpsertGames(s.ctx, []types.GameContext{update})
	s.Require().NoError(err)

	upcoming, err := s.games.GetUpcomingGames(s.ctx, types.SportNCAAB, day)
	s.Require().NoError(err)
	s.Require().Len(upcoming, 1)
	s.Equal(-4.0, *upcoming[0].Game.Spread)
	s.Equal(141.5, *upcoming[0].Game.Total)

	final := scheduled("g1", day.Add(19*time.Hour), types.Float64Ptr(-4))
	final.Game.Final = true
	final.Game.HomeScore, final.Game.AwayScore = 75, 70
	final.Game.SpreadResult = types.SpreadCovered
	_, err = s.games.UpsertGames(s.ctx, []types.GameContext{final})
	s.Require().NoError(err)

	// a late correction cannot rewrite a settled game
	late := final
	late.Game.HomeScore, late.Game.AwayScore = 70, 75
	late.Game.SpreadResult = types.SpreadLost
	late.Game.Spread = types.Float64Ptr(-9)
	late.Game.HomeMoneyline = types.IntPtr(-180)
	_, err = s.games.UpsertGames(s.ctx, []types.GameContext{late})
	s.Require().NoError(err)

	games, err := s.games.GetGamesByID(s.ctx, []string{"g1"})
	s.Require().NoError(err)
	s.Require().Len(games, 1)
	g := games[0]
	s.Equal(75, g.HomeScore)
	s.Equal(types.SpreadCovered, g.SpreadResult)
	s.Equal(-4.0, *g.Spread)
	s.Equal(141.5, *g.Total)
	s.Equal(-180, *g.HomeMoneyline)

	upcoming, err = s.games.GetUpcomingGames(s.ctx, types.SportNCAAB, day)
	s.Require().NoError(err)
	s.Empty(upcoming)
}

func (s *RepositoryTestSuite) TestCompletedGamesWindow() {
	var games []types.GameContext
	for i := 0; i < 5; i++ {
		gc := scheduled(string(rune('a'+i)), day.AddDate(0, 0, i-3), types.Float64Ptr(-1))
		gc.Game.Final = i != 4
		games = append(games, gc)
	}
	_, err := s.games.UpsertGames(s.ctx, games)
	s.Require().NoError(err)

	got, err := s.games.GetCompletedGames(s.ctx, types.SportNCAAB, day.AddDate(0, 0, -2), day)
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal("b", got[0].ID)
	s.Equal("c", got[1].ID)

	all, err := s.games.GetCompletedGames(s.ctx, types.SportNCAAB, time.Time{}, day.AddDate(0, 0, 5))
	s.Require().NoError(err)
	s.Len(all, 4)
}

func (s *RepositoryTestSuite) TestSnapshotsAreAppendOnly() {
	snap := types.TeamRatingSnapshot{Team: "Duke", Sport: types.SportNCAAB, AsOfDate: day.AddDate(0, 0, -1), AdjOffense: 120, AdjDefense: 92, AdjTempo: 68}
	n, err := s.snapshots.AppendSnapshots(s.ctx, []types.TeamRatingSnapshot{snap})
	s.Require().NoError(err)
	s.Equal(1, n)

	n, err = s.snapshots.AppendSnapshots(s.ctx, []types.TeamRatingSnapshot{snap})
	s.Require().NoError(err)
	s.Equal(0, n, "identical resend is a no-op")

	revised := snap
	revised.AdjOffense = 121
	_, err = s.snapshots.AppendSnapshots(s.ctx, []types.TeamRatingSnapshot{revised})
	s.ErrorIs(err, apperrors.ErrSnapshotRevision)

	next := snap
	next.AsOfDate = day.Add(6 * time.Hour)
	next.AdjOffense = 121
	_, err = s.snapshots.AppendSnapshots(s.ctx, []types.TeamRatingSnapshot{next})
	s.Require().NoError(err)

	before, err := s.snapshots.GetSnapshots(s.ctx, types.SportNCAAB, day.AddDate(0, 0, -1))
	s.Require().NoError(err)
	s.Require().Len(before, 1)
	s.Equal(120.0, before[0].AdjOffense)

	through, err := s.snapshots.GetSnapshots(s.ctx, types.SportNCAAB, day.Add(23*time.Hour))
	s.Require().NoError(err)
	s.Require().Len(through, 2)
	s.Equal(day, through[1].AsOfDate, "snapshots are stored by UTC day")
}

func samplePick(id, gameID string, market types.Market) types.Pick {
	return types.Pick{
		ID:                 id,
		GameID:             gameID,
		Sport:              types.SportNCAAB,
		Market:             market,
		Side:               types.DirectionHome,
		Line:               -4,
		Score:              78,
		Edge:               2.5,
		Tier:               4,
		Signals:            []types.SignalResult{{Category: types.CategoryModelEdge, Direction: types.DirectionHome, Magnitude: 4, Confidence: 0.7, Strength: types.StrengthModerate}},
		Status:             types.PickPending,
		GameDate:           day.Add(19 * time.Hour),
		GeneratedAt:        day.Add(9 * time.Hour),
		CalibrationVersion: "v1",
	}
}

func (s *RepositoryTestSuite) TestSavePicksIgnoresDuplicates() {
	n, err := s.picks.SavePicks(s.ctx, []types.Pick{samplePick("p1", "g1", types.MarketSpread), samplePick("p2", "g1", types.MarketTotal)})
	s.Require().NoError(err)
	s.Equal(2, n)

	rerun := samplePick("p1-rerun", "g1", types.MarketSpread)
	rerun.GeneratedAt = day.Add(11 * time.Hour)
	n, err = s.picks.SavePicks(s.ctx, []types.Pick{samplePick("p1", "g1", types.MarketSpread), rerun})
	s.Require().NoError(err)
	s.Equal(0, n)

	listed, err := s.picks.ListPicks(s.ctx, types.SportNCAAB, day)
	s.Require().NoError(err)
	s.Require().Len(listed, 2)
	s.Equal("p1", listed[0].ID)
	s.Require().Len(listed[0].Signals, 1)
	s.Equal(types.CategoryModelEdge, listed[0].Signals[0].Category)
}

func (s *RepositoryTestSuite) TestSaveGradedOnlyMovesPendingRows() {
	_, err := s.picks.SavePicks(s.ctx, []types.Pick{samplePick("p1", "g1", types.MarketSpread), samplePick("p2", "g2", types.MarketSpread)})
	s.Require().NoError(err)

	pending, err := s.picks.ListPending(s.ctx, types.SportNCAAB, day.AddDate(0, 0, 1))
	s.Require().NoError(err)
	s.Len(pending, 2)

	win := decimal.NewFromInt(100).Div(decimal.NewFromInt(110))
	gradedAt := day.AddDate(0, 0, 1)
	n, err := s.picks.SaveGraded(s.ctx, []types.GradedPick{{Pick: pending[0], Result: types.PickWin, Units: win, GradedAt: gradedAt}})
	s.Require().NoError(err)
	s.Equal(1, n)

	n, err = s.picks.SaveGraded(s.ctx, []types.GradedPick{{Pick: pending[0], Result: types.PickLoss, Units: decimal.NewFromInt(-1), GradedAt: gradedAt}})
	s.Require().NoError(err)
	s.Equal(0, n, "a graded pick is never regraded")

	pending, err = s.picks.ListPending(s.ctx, types.SportNCAAB, day.AddDate(0, 0, 1))
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal("p2", pending[0].ID)

	record, err := s.picks.Record(s.ctx, types.SportNCAAB, day, day.AddDate(0, 0, 1))
	s.Require().NoError(err)
	s.Require().Len(record, 1)
	s.Equal(types.PickWin, record[0].Result)
	s.True(record[0].Units.Sub(win).Abs().LessThan(decimal.NewFromFloat(1e-6)))
}

func (s *RepositoryTestSuite) TestReplaceEloSport() {
	first := []types.EloRating{
		{Team: "A", Date: day, Rating: 1510, GameID: "g1"},
		{Team: "B", Date: day, Rating: 1490, GameID: "g1"},
	}
	s.Require().NoError(s.elo.ReplaceSport(s.ctx, types.SportNBA, first))

	second := []types.EloRating{{Team: "A", Date: day, Rating: 1512, GameID: "g1"}}
	s.Require().NoError(s.elo.ReplaceSport(s.ctx, types.SportNBA, second))
	s.Require().NoError(s.elo.ReplaceSport(s.ctx, types.SportNCAAB, first))

	nba, err := s.elo.History(s.ctx, types.SportNBA)
	s.Require().NoError(err)
	s.Require().Len(nba, 1)
	s.Equal(1512.0, nba[0].Rating)

	ncaab, err := s.elo.History(s.ctx, types.SportNCAAB)
	s.Require().NoError(err)
	s.Len(ncaab, 2)
}

func (s *RepositoryTestSuite) TestLatestModel() {
	missing, err := s.models.LatestModel(s.ctx, types.SportNCAAB, regression.TargetTotal)
	s.Require().NoError(err)
	s.Nil(missing)

	old := &regression.Model{Target: regression.TargetTotal, FeatureNames: []string{"sum_oe"}, Coefficients: []float64{1.9}, Intercept: 3}
	current := &regression.Model{Target: regression.TargetTotal, FeatureNames: []string{"sum_oe", "sum_de"}, Coefficients: []float64{1.1, 0.9}, Lambda: 1}
	s.Require().NoError(s.models.SaveModel(s.ctx, types.SportNCAAB, "old", old))
	s.Require().NoError(s.models.SaveModel(s.ctx, types.SportNCAAB, "current", current))

	bad := &regression.Model{Target: regression.TargetTotal, FeatureNames: []string{"sum_oe"}}
	s.ErrorIs(s.models.SaveModel(s.ctx, types.SportNCAAB, "bad", bad), apperrors.ErrInvalidConfiguration)

	got, err := s.models.LatestModel(s.ctx, types.SportNCAAB, regression.TargetTotal)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal([]string{"sum_oe", "sum_de"}, got.FeatureNames)
	s.Equal([]float64{1.1, 0.9}, got.Coefficients)
}
