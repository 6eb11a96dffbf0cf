package grading

import (
	"github.com/shopspring/decimal"
	"github.com/stitts-dev/pick-engine/shared/pkg/oddsmath"
	"github.com/stitts-dev/pick-engine/shared/types"
)

// Record is the win/loss tally of a set of graded picks
type Record struct {
	Wins   int             `json:"wins"`
	Losses int             `json:"losses"`
	Pushes int             `json:"pushes"`
	Units  decimal.Decimal `json:"units"`
}

// Tally sums graded picks into a Record
func Tally(graded []types.GradedPick) Record {
	rec := Record{Units: decimal.Zero}
	for _, g := range graded {
		rec.Add(g.Result)
	}
	return rec
}

// Add counts one settled result
func (r *Record) Add(status types.PickStatus) {
	switch status {
	case types.PickWin:
		r.Wins++
	case types.PickLoss:
		r.Losses++
	case types.PickPush:
		r.Pushes++
	default:
		return
	}
	r.Units = r.Units.Add(Units(status))
}

// Decided excludes pushes
func (r Record) Decided() int {
	return r.Wins + r.Losses
}

func (r Record) Total() int {
	return r.Wins + r.Losses + r.Pushes
}

// Accuracy is wins over decided picks; pushes are not in the denominator
func (r Record) Accuracy() float64 {
	if r.Decided() == 0 {
		return 0
	}
	return float64(r.Wins) / float64(r.Decided())
}

// ROI per decided pick at -110
func (r Record) ROI() float64 {
	return oddsmath.StandardROI(r.Wins, r.Losses).InexactFloat64()
}
