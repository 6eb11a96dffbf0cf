package signals

import (
	"time"

	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/elo"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/snapshot"
	"github.com/stitts-dev/pick-engine/shared/types"
)

// Settings are the sport-level knobs the signals read. They are not tuned per game.
type Settings struct {
	FormWindow      int     `json:"form_window"`
	MinFormGames    int     `json:"min_form_games"`
	MinSeasonGames  int     `json:"min_season_games"`
	H2HWindow       int     `json:"h2h_window"`
	MinMeetings     int     `json:"min_meetings"`
	MarginStdDev    float64 `json:"margin_std_dev"`
	HomeCourtPoints float64 `json:"home_court_points"`
	RestCapDays     int     `json:"rest_cap_days"`
	WindMPH         float64 `json:"wind_mph"`
	ColdF           float64 `json:"cold_f"`
	RainProb        float64 `json:"rain_prob"`
}

// DefaultSettings returns the defaults for a sport
func DefaultSettings(sport types.Sport) Settings {
	s := Settings{
		FormWindow:      10,
		MinFormGames:    3,
		MinSeasonGames:  5,
		H2HWindow:       6,
		MinMeetings:     2,
		MarginStdDev:    11,
		HomeCourtPoints: 3.2,
		RestCapDays:     4,
		WindMPH:         15,
		ColdF:           32,
		RainProb:        0.5,
	}
	switch sport {
	case types.SportNBA:
		s.MarginStdDev = 12
		s.HomeCourtPoints = 2.5
	case types.SportNFL:
		s.FormWindow = 6
		s.MinSeasonGames = 3
		s.MarginStdDev = 13.5
		s.HomeCourtPoints = 1.8
		s.RestCapDays = 10
	case types.SportNCAAF:
		s.FormWindow = 6
		s.MinSeasonGames = 3
		s.MarginStdDev = 15
		s.HomeCourtPoints = 2.5
		s.RestCapDays = 10
	case types.SportMLB:
		s.MarginStdDev = 4
		s.HomeCourtPoints = 0.2
	case types.SportNHL:
		s.MarginStdDev = 2.5
		s.HomeCourtPoints = 0.2
	}
	return s
}

// Context is everything a signal may read about one game and market. Every field except
// Game, Market and Settings may be missing; signals treat missing inputs as no opinion.
type Context struct {
	Game         types.GameContext
	Market       types.Market
	HomeSnapshot *types.TeamRatingSnapshot
	AwaySnapshot *types.TeamRatingSnapshot
	League       *snapshot.LeagueAverages
	History      *snapshot.HistoryIndex
	HomeElo      *float64
	AwayElo      *float64
	EloParams    elo.Params
	Projection   *Projection
	Settings     Settings
}

// Date is the game day every point-in-time query is made against
func (c *Context) Date() time.Time {
	return types.Day(c.Game.Game.GameDate)
}

// Line returns the posted line for the context's market
func (c *Context) Line() (float64, bool) {
	switch c.Market {
	case types.MarketSpread:
		if c.Game.Game.Spread != nil {
			return *c.Game.Game.Spread, true
		}
	case types.MarketTotal:
		if c.Game.Game.Total != nil {
			return *c.Game.Game.Total, true
		}
	}
	return 0, false
}

// Edge is the projection minus the market line for the context's market, from the home /
// over side. ok is false without a projection or a line.
func (c *Context) Edge() (float64, bool) {
	line, ok := c.Line()
	if !ok || c.Projection == nil {
		return 0, false
	}
	switch c.Market {
	case types.MarketSpread:
		if c.Projection.Margin == nil {
			return 0, false
		}
		return *c.Projection.Margin + line, true
	case types.MarketTotal:
		if c.Projection.Total == nil {
			return 0, false
		}
		return *c.Projection.Total - line, true
	}
	return 0, false
}
