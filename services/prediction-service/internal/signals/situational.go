package signals

import (
	"fmt"
	"math"

	"github.com/stitts-dev/pick-engine/shared/types"
)

const backToBackPenalty = 1.5

func restDays(c *Context, team string) (int, bool) {
	last, ok := c.History.LastGameBefore(team, c.Date())
	if !ok {
		return 0, false
	}
	days := int(c.Date().Sub(types.Day(last.GameDate)).Hours() / 24)
	return days, true
}

// Rest compares days of rest. A back-to-back costs the tired side; when both teams are on
// short rest the total leans under.
func Rest(c *Context) types.SignalResult {
	if c.History == nil {
		return types.NeutralSignal(types.CategoryRest, "no game history")
	}
	g := c.Game.Game
	homeRest, homeOK := restDays(c, g.HomeTeam)
	awayRest, awayOK := restDays(c, g.AwayTeam)
	if !homeOK || !awayOK {
		return types.NeutralSignal(types.CategoryRest, "no previous game")
	}

	capDays := c.Settings.RestCapDays
	if capDays <= 0 {
		capDays = 4
	}
	homeB2B, awayB2B := homeRest <= 1, awayRest <= 1

	switch c.Market {
	case types.MarketSpread:
		advantage := float64(min(homeRest, capDays) - min(awayRest, capDays))
		if awayB2B && !homeB2B {
			advantage += backToBackPenalty
		}
		if homeB2B && !awayB2B {
			advantage -= backToBackPenalty
		}
		return directional(types.CategoryRest, c.Market, advantage, advantage*1.5, 0.5,
			fmt.Sprintf("rest %d days vs %d days", homeRest, awayRest))

	case types.MarketTotal:
		if !homeB2B || !awayB2B {
			return types.NeutralSignal(types.CategoryRest, "no shared fatigue")
		}
		return directional(types.CategoryRest, c.Market, -1, 3, 0.4, "both teams on a back-to-back")
	}
	return types.NeutralSignal(types.CategoryRest, "unsupported market")
}

// Pace compares the matchup's expected tempo to the league. Confidence drops as the two
// tempos diverge, since it is unclear which team dictates pace.
func Pace(c *Context) types.SignalResult {
	if c.Market != types.MarketTotal || c.HomeSnapshot == nil || c.AwaySnapshot == nil ||
		c.League == nil || c.League.Tempo <= 0 {
		return types.NeutralSignal(types.CategoryPace, "no tempo data")
	}
	home, away := c.HomeSnapshot.AdjTempo, c.AwaySnapshot.AdjTempo
	if home <= 0 || away <= 0 {
		return types.NeutralSignal(types.CategoryPace, "no tempo data")
	}

	expected := (home + away) / 2
	delta := expected - c.League.Tempo
	pointsPerPossession := 1.0
	if c.League.Offense > 0 {
		pointsPerPossession = c.League.Offense / 100
	}
	// both teams score on every extra possession
	impact := delta * 2 * pointsPerPossession

	mismatch := math.Abs(home - away)
	confidence := 0.7 * (1 - math.Min(mismatch/20, 0.5))
	return directional(types.CategoryPace, c.Market, delta, impact, confidence,
		fmt.Sprintf("tempo %.1f vs league %.1f (mismatch %.1f)", expected, c.League.Tempo, mismatch))
}

// Weather penalizes totals for wind, precipitation and cold. Indoor games and games
// without a forecast have no opinion.
func Weather(c *Context) types.SignalResult {
	if c.Market != types.MarketTotal {
		return types.NeutralSignal(types.CategoryWeather, "totals only")
	}
	if c.Game.Indoor {
		return types.NeutralSignal(types.CategoryWeather, "indoor")
	}
	w := c.Game.Weather
	if w == nil {
		return types.NeutralSignal(types.CategoryWeather, "no forecast")
	}

	points := 0.0
	if w.WindMPH >= c.Settings.WindMPH {
		points += (w.WindMPH - c.Settings.WindMPH + 5) * 0.25
	}
	if w.PrecipitationProb >= c.Settings.RainProb {
		points += 2 * w.PrecipitationProb
	}
	if w.TemperatureF <= c.Settings.ColdF {
		points += math.Min((c.Settings.ColdF-w.TemperatureF)*0.1+0.5, 3)
	}
	if points == 0 {
		return types.NeutralSignal(types.CategoryWeather, "mild conditions")
	}
	return directional(types.CategoryWeather, c.Market, -points, points, 0.6,
		fmt.Sprintf("wind %.0f mph, precip %.0f%%, %.0fF", w.WindMPH, w.PrecipitationProb*100, w.TemperatureF))
}
