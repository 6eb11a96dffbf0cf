package signals

import (
	"fmt"

	"github.com/stitts-dev/pick-engine/shared/pkg/oddsmath"
	"github.com/stitts-dev/pick-engine/shared/types"
	"gonum.org/v1/gonum/stat/distuv"
)

// ModelEdge compares the projection against the market line
func ModelEdge(c *Context) types.SignalResult {
	edge, ok := c.Edge()
	if !ok {
		return types.NeutralSignal(types.CategoryModelEdge, "no projection or line")
	}

	confidence := c.Projection.MarginConfidence
	source := c.Projection.MarginSource
	if c.Market == types.MarketTotal {
		confidence = c.Projection.TotalConfidence
		source = c.Projection.TotalSource
	}
	return directional(types.CategoryModelEdge, c.Market, edge, edge, confidence,
		fmt.Sprintf("%s edge %+.1f vs line", source, edge))
}

// RatingEdge compares the Elo-implied margin against the spread
func RatingEdge(c *Context) types.SignalResult {
	line, ok := c.Line()
	if !ok || c.HomeElo == nil || c.AwayElo == nil || c.Market != types.MarketSpread {
		return types.NeutralSignal(types.CategoryRatingEdge, "no ratings or spread")
	}

	margin := c.EloParams.ExpectedMargin(*c.HomeElo, *c.AwayElo, c.Game.Game.NeutralSite)
	edge := margin + line
	return directional(types.CategoryRatingEdge, c.Market, edge, edge, 0.6,
		fmt.Sprintf("Elo margin %+.1f vs spread %+.1f", margin, line))
}

// MarketEdge compares the projected win probability against the de-vigged moneyline
func MarketEdge(c *Context) types.SignalResult {
	g := c.Game.Game
	if c.Market != types.MarketSpread || c.Projection == nil || c.Projection.Margin == nil ||
		g.HomeMoneyline == nil || g.AwayMoneyline == nil || c.Settings.MarginStdDev <= 0 {
		return types.NeutralSignal(types.CategoryMarketEdge, "no projection or moneyline")
	}

	fairHome, _, err := oddsmath.FairMoneylineProbabilities(*g.HomeMoneyline, *g.AwayMoneyline)
	if err != nil {
		return types.NeutralSignal(types.CategoryMarketEdge, "unusable moneyline")
	}

	margin := distuv.Normal{Mu: 0, Sigma: c.Settings.MarginStdDev}
	modelHome := margin.CDF(*c.Projection.Margin)
	diff := modelHome - fairHome

	// 10 points of probability is a moderate edge
	return directional(types.CategoryMarketEdge, c.Market, diff, diff*50, c.Projection.MarginConfidence,
		fmt.Sprintf("model %.1f%% vs market %.1f%%", modelHome*100, fairHome*100))
}
