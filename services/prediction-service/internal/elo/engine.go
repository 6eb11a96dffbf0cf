package elo

import (
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stitts-dev/pick-engine/shared/pkg/logger"
	"github.com/stitts-dev/pick-engine/shared/types"
)

// Engine replays final games in chronological order to build a Ledger
type Engine struct {
	sport  types.Sport
	params Params
	logger *logrus.Logger
}

func NewEngine(sport types.Sport, params Params, log *logrus.Logger) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid Elo parameters for %s: %w", sport, err)
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Engine{sport: sport, params: params, logger: log}, nil
}

func (e *Engine) Params() Params {
	return e.params
}

// Replay rebuilds every rating from scratch. Games that are not final are skipped and the
// input slice is not modified. Every team regresses toward Initial when the season changes.
func (e *Engine) Replay(games []types.GameRecord) (*Ledger, error) {
	start := time.Now()

	ordered := make([]types.GameRecord, 0, len(games))
	for _, g := range games {
		if g.Final {
			ordered = append(ordered, g)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].GameDate.Equal(ordered[j].GameDate) {
			return ordered[i].GameDate.Before(ordered[j].GameDate)
		}
		return ordered[i].ID < ordered[j].ID
	})

	ledger := newLedger(e.sport, e.params)
	ratings := make(map[string]float64)
	rating := func(team string) float64 {
		if r, ok := ratings[team]; ok {
			return r
		}
		return e.params.Initial
	}

	season := 0
	regressions := 0
	for _, g := range ordered {
		if g.HomeTeam == "" || g.AwayTeam == "" || g.HomeTeam == g.AwayTeam {
			return nil, fmt.Errorf("game %s has invalid teams %q vs %q", g.ID, g.HomeTeam, g.AwayTeam)
		}

		if season != 0 && g.Season != season {
			e.regress(ratings, ledger, g.GameDate)
			regressions++
		}
		season = g.Season

		home, away := rating(g.HomeTeam), rating(g.AwayTeam)
		expected := e.params.WinProbability(home, away, g.NeutralSite)

		margin := g.Margin()
		actual := 0.5
		winnerGap := 0.0
		switch {
		case margin > 0:
			actual = 1
			winnerGap = home + e.params.homeEdge(g.NeutralSite) - away
		case margin < 0:
			actual = 0
			winnerGap = away - home - e.params.homeEdge(g.NeutralSite)
		}

		shift := e.params.K * e.params.movMultiplier(margin, winnerGap) * (actual - expected)
		ratings[g.HomeTeam] = home + shift
		ratings[g.AwayTeam] = away - shift

		ledger.record(g.HomeTeam, g.GameDate, ratings[g.HomeTeam], g.ID, true)
		ledger.record(g.AwayTeam, g.GameDate, ratings[g.AwayTeam], g.ID, true)
	}

	ledger.seal()

	e.logger.WithFields(logrus.Fields{
		"sport":              e.sport,
		"games":              len(ordered),
		"skipped":            len(games) - len(ordered),
		"teams":              len(ratings),
		"season_regressions": regressions,
		"duration_ms":        time.Since(start).Milliseconds(),
	}).Info("Elo replay completed")

	return ledger, nil
}

// regress moves every known rating SeasonRegression of the way back to Initial
func (e *Engine) regress(ratings map[string]float64, ledger *Ledger, firstGame time.Time) {
	teams := make([]string, 0, len(ratings))
	for team := range ratings {
		teams = append(teams, team)
	}
	sort.Strings(teams)

	for _, team := range teams {
		r := ratings[team]
		r += e.params.SeasonRegression * (e.params.Initial - r)
		ratings[team] = r
		ledger.record(team, firstGame, r, "", false)
	}
	e.logger.WithFields(logrus.Fields{
		"sport": e.sport,
		"teams": len(teams),
		"date":  types.DateKey(firstGame),
	}).Debug("Applied season regression")
}
