package signals

import (
	"fmt"

	"github.com/stitts-dev/pick-engine/shared/types"
)

// coverRate is the share of decided ATS results team covered. Pushes and games
// without a line are not counted.
func coverRate(games []types.GameRecord, team string) (float64, int) {
	covers, decided := 0, 0
	for _, g := range games {
		covered, ok := g.CoveredBy(team)
		if !ok {
			continue
		}
		decided++
		if covered {
			covers++
		}
	}
	if decided == 0 {
		return 0, 0
	}
	return float64(covers) / float64(decided), decided
}

// overRate is the share of decided totals that went over
func overRate(games []types.GameRecord) (float64, int) {
	overs, decided := 0, 0
	for _, g := range games {
		over, ok := g.WentOver()
		if !ok {
			continue
		}
		decided++
		if over {
			overs++
		}
	}
	if decided == 0 {
		return 0, 0
	}
	return float64(overs) / float64(decided), decided
}

// compareTeams scores a home-minus-away rate difference for spreads, or the combined
// over rate's distance from 50% for totals. window scales confidence by sample size.
func compareTeams(c *Context, category types.SignalCategory, homeGames, awayGames []types.GameRecord, minGames, window int, what string) types.SignalResult {
	home, away := c.Game.Game.HomeTeam, c.Game.Game.AwayTeam

	switch c.Market {
	case types.MarketSpread:
		homeRate, homeN := coverRate(homeGames, home)
		awayRate, awayN := coverRate(awayGames, away)
		if homeN < minGames || awayN < minGames {
			return types.NeutralSignal(category, fmt.Sprintf("too few %s results", what))
		}
		diff := homeRate - awayRate
		confidence := float64(min(homeN, awayN)) / float64(window)
		return directional(category, c.Market, diff, diff*10, confidence,
			fmt.Sprintf("%s ATS %s %.0f%% vs %s %.0f%%", what, home, homeRate*100, away, awayRate*100))

	case types.MarketTotal:
		homeRate, homeN := overRate(homeGames)
		awayRate, awayN := overRate(awayGames)
		if homeN < minGames || awayN < minGames {
			return types.NeutralSignal(category, fmt.Sprintf("too few %s results", what))
		}
		dev := (homeRate+awayRate)/2 - 0.5
		confidence := float64(min(homeN, awayN)) / float64(window)
		return directional(category, c.Market, dev, dev*20, confidence,
			fmt.Sprintf("%s over rate %.0f%%", what, (homeRate+awayRate)*50))
	}
	return types.NeutralSignal(category, "unsupported market")
}

// RecentForm looks at each team's last FormWindow games
func RecentForm(c *Context) types.SignalResult {
	if c.History == nil || c.Settings.FormWindow <= 0 {
		return types.NeutralSignal(types.CategoryRecentForm, "no game history")
	}
	g := c.Game.Game
	homeGames := c.History.TeamGamesBefore(g.HomeTeam, c.Date(), c.Settings.FormWindow)
	awayGames := c.History.TeamGamesBefore(g.AwayTeam, c.Date(), c.Settings.FormWindow)
	return compareTeams(c, types.CategoryRecentForm, homeGames, awayGames,
		c.Settings.MinFormGames, c.Settings.FormWindow, fmt.Sprintf("last %d", c.Settings.FormWindow))
}

// SeasonATS looks at each team's season-to-date record against the number
func SeasonATS(c *Context) types.SignalResult {
	if c.History == nil {
		return types.NeutralSignal(types.CategorySeasonATS, "no game history")
	}
	g := c.Game.Game
	homeGames := c.History.SeasonGamesBefore(g.HomeTeam, g.Season, c.Date())
	awayGames := c.History.SeasonGamesBefore(g.AwayTeam, g.Season, c.Date())
	// confidence saturates at three times the minimum sample
	window := max(c.Settings.MinSeasonGames*3, 1)
	return compareTeams(c, types.CategorySeasonATS, homeGames, awayGames,
		c.Settings.MinSeasonGames, window, "season")
}

// HeadToHead looks at prior meetings between the two teams
func HeadToHead(c *Context) types.SignalResult {
	if c.History == nil || c.Settings.H2HWindow <= 0 {
		return types.NeutralSignal(types.CategoryHeadToHead, "no game history")
	}
	g := c.Game.Game
	meetings := c.History.MeetingsBefore(g.HomeTeam, g.AwayTeam, c.Date(), c.Settings.H2HWindow)

	var rate float64
	var n int
	var label string
	if c.Market == types.MarketSpread {
		// from this game's home team's side, wherever the meeting was played
		rate, n = coverRate(meetings, g.HomeTeam)
		label = fmt.Sprintf("%s covered %.0f%% of %d meetings", g.HomeTeam, rate*100, n)
	} else {
		rate, n = overRate(meetings)
		label = fmt.Sprintf("%.0f%% overs in %d meetings", rate*100, n)
	}
	if n < c.Settings.MinMeetings {
		return types.NeutralSignal(types.CategoryHeadToHead, "too few meetings")
	}

	dev := rate - 0.5
	confidence := float64(n) / float64(c.Settings.H2HWindow)
	return directional(types.CategoryHeadToHead, c.Market, dev, dev*20, confidence, label)
}
