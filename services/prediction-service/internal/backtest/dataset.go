package backtest

import (
	"sort"
	"time"

	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/regression"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/snapshot"
	"github.com/stitts-dev/pick-engine/shared/types"
)

// dataset is the harness's read-only view of one sport's history
type dataset struct {
	all     []types.GameRecord
	train   []types.GameRecord
	holdout []types.GameRecord
}

// splitBySeason keeps final games of the sport, ordered by (date, ID), and splits the
// ones with a line for the market into training and holdout seasons
func splitBySeason(games []types.GameRecord, cfg Config) dataset {
	train := make(map[int]bool, len(cfg.TrainSeasons))
	for _, s := range cfg.TrainSeasons {
		train[s] = true
	}
	holdout := make(map[int]bool, len(cfg.HoldoutSeasons))
	for _, s := range cfg.HoldoutSeasons {
		holdout[s] = true
	}

	var ds dataset
	for _, g := range games {
		if !g.Final || (g.Sport != "" && g.Sport != cfg.Sport) {
			continue
		}
		ds.all = append(ds.all, g)
	}
	sortGames(ds.all)

	for _, g := range ds.all {
		switch {
		case train[g.Season]:
			ds.train = append(ds.train, g)
		case holdout[g.Season]:
			ds.holdout = append(ds.holdout, g)
		}
	}
	return ds
}

func sortGames(games []types.GameRecord) {
	sort.SliceStable(games, func(i, j int) bool {
		if !games[i].GameDate.Equal(games[j].GameDate) {
			return games[i].GameDate.Before(games[j].GameDate)
		}
		return games[i].ID < games[j].ID
	})
}

// trainingRows builds one row per game from the snapshots each team had published on
// game day. Games missing a snapshot for either team are skipped.
func trainingRows(games []types.GameRecord, store *snapshot.Store, features []string, target string) []regression.TrainingRow {
	rows := make([]regression.TrainingRow, 0, len(games))
	for _, g := range games {
		y, ok := regression.TargetValue(target, g)
		if !ok {
			continue
		}
		day := types.Day(g.GameDate)
		home, ok := store.Lookup(g.HomeTeam, day)
		if !ok {
			continue
		}
		away, ok := store.Lookup(g.AwayTeam, day)
		if !ok {
			continue
		}
		x, err := regression.ExtractFeatures(features, home, away, g.NeutralSite)
		if err != nil {
			continue
		}
		rows = append(rows, regression.TrainingRow{GameID: g.ID, GameDate: g.GameDate, Features: x, Target: y})
	}
	return rows
}

// pregame strips everything that was not known before tip-off. Evaluated games never
// carry their own result into the signal context.
func pregame(g types.GameRecord) types.GameContext {
	g.HomeScore = 0
	g.AwayScore = 0
	g.Final = false
	g.SpreadResult = ""
	g.TotalResult = ""
	return types.GameContext{Game: g}
}

// hasLine reports whether the game can be evaluated in the market
func hasLine(g types.GameRecord, market types.Market) bool {
	if market == types.MarketTotal {
		return g.Total != nil
	}
	return g.Spread != nil
}

// month groups games for walk-forward folds
type month struct {
	key   string
	start time.Time
	games []types.GameRecord
}

// byMonth groups date-ordered games into calendar months, oldest first
func byMonth(games []types.GameRecord) []month {
	var months []month
	for _, g := range games {
		d := g.GameDate.UTC()
		start := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
		key := start.Format("2006-01")
		if len(months) == 0 || months[len(months)-1].key != key {
			months = append(months, month{key: key, start: start})
		}
		months[len(months)-1].games = append(months[len(months)-1].games, g)
	}
	return months
}
