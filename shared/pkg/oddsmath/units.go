package oddsmath

import (
	"github.com/shopspring/decimal"
)

var (
	unitsWinStandard = decimal.NewFromInt(100).Div(decimal.NewFromInt(110))
	unitsLoss        = decimal.NewFromInt(-1)
)

// StandardWinUnits is the profit of a one-unit winner at -110 (100/110)
func StandardWinUnits() decimal.Decimal {
	return unitsWinStandard
}

// StandardLossUnits is the result of a one-unit loser
func StandardLossUnits() decimal.Decimal {
	return unitsLoss
}

// StandardROI is (wins×100/110 − losses) / (wins+losses). Zero when nothing was decided.
func StandardROI(wins, losses int) decimal.Decimal {
	decided := wins + losses
	if decided == 0 {
		return decimal.Zero
	}
	net := unitsWinStandard.Mul(decimal.NewFromInt(int64(wins))).Sub(decimal.NewFromInt(int64(losses)))
	return net.Div(decimal.NewFromInt(int64(decided)))
}
