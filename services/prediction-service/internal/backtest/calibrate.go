package backtest

import (
	"time"

	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/apperrors"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/grading"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/scoring"
	"github.com/stitts-dev/pick-engine/shared/types"
)

// TierTarget is the training accuracy a tier's threshold pair must reach
type TierTarget struct {
	Tier        int     `json:"tier"`
	MinAccuracy float64 `json:"min_accuracy"`
}

// CalibrationGrid is the set of (score, edge) minimums searched per tier
type CalibrationGrid struct {
	Scores    []float64    `json:"scores"`
	Edges     []float64    `json:"edges"`
	Targets   []TierTarget `json:"targets"`
	MinSample int          `json:"min_sample"`
}

func DefaultCalibrationGrid() CalibrationGrid {
	grid := CalibrationGrid{
		Targets: []TierTarget{
			{Tier: scoring.TierFive, MinAccuracy: 0.60},
			{Tier: scoring.TierFour, MinAccuracy: 0.575},
			{Tier: scoring.TierThree, MinAccuracy: 0.55},
		},
		MinSample: 30,
	}
	for s := 50.0; s <= 90; s += 5 {
		grid.Scores = append(grid.Scores, s)
	}
	for e := 0.0; e <= 8; e += 0.5 {
		grid.Edges = append(grid.Edges, e)
	}
	return grid
}

// CalibrationInput is everything CalibrateTiers needs. Train and Holdout should come from
// a run whose tier rule let every directional evaluation through.
type CalibrationInput struct {
	Base         scoring.TierTable
	Version      string
	CalibratedAt time.Time
	Sport        types.Sport
	Market       types.Market
	Train        []GradedEvaluation
	Holdout      []GradedEvaluation
	Grid         CalibrationGrid
}

// TierCalibration reports how a chosen rule did on both halves of the data
type TierCalibration struct {
	Rule            scoring.TierRule `json:"rule"`
	TrainAccuracy   float64          `json:"train_accuracy"`
	TrainDecided    int              `json:"train_decided"`
	HoldoutAccuracy float64          `json:"holdout_accuracy"`
	HoldoutDecided  int              `json:"holdout_decided"`
	Dropped         bool             `json:"dropped"`
}

// CalibrateTiers picks, for every tier target, the grid point with the most decided
// training picks that still reaches the target accuracy. A rule that loses money on the
// holdout is dropped. The result is a new table for the registry; Base is not modified.
func CalibrateTiers(in CalibrationInput) (scoring.TierTable, []TierCalibration, error) {
	if in.Version == "" {
		return scoring.TierTable{}, nil, apperrors.NewConfigError("tier calibration", "missing version")
	}
	if len(in.Grid.Scores) == 0 || len(in.Grid.Edges) == 0 || len(in.Grid.Targets) == 0 {
		return scoring.TierTable{}, nil, apperrors.NewConfigError("tier calibration", "empty grid")
	}

	var rules []scoring.TierRule
	var report []TierCalibration
	for _, target := range in.Grid.Targets {
		best, bestRec, found := scoring.TierRule{}, grading.Record{}, false
		for _, s := range in.Grid.Scores {
			for _, e := range in.Grid.Edges {
				rec := recordAbove(in.Train, s, e)
				if rec.Decided() < in.Grid.MinSample || rec.Accuracy() < target.MinAccuracy {
					continue
				}
				if !found || rec.Decided() > bestRec.Decided() {
					best = scoring.TierRule{Tier: target.Tier, MinScore: s, MinEdge: e}
					bestRec = rec
					found = true
				}
			}
		}
		if !found {
			continue
		}

		holdout := recordAbove(in.Holdout, best.MinScore, best.MinEdge)
		cal := TierCalibration{
			Rule:            best,
			TrainAccuracy:   bestRec.Accuracy(),
			TrainDecided:    bestRec.Decided(),
			HoldoutAccuracy: holdout.Accuracy(),
			HoldoutDecided:  holdout.Decided(),
		}
		if holdout.Decided() > 0 && holdout.Accuracy() < BreakEvenAccuracy {
			cal.Dropped = true
		} else {
			rules = append(rules, best)
		}
		report = append(report, cal)
	}

	if len(rules) == 0 {
		return scoring.TierTable{}, report, &apperrors.InsufficientDataError{Stage: "tier calibration rules", Count: 0, Required: 1}
	}

	table := in.Base.WithRules(in.Sport, in.Market, rules)
	table.Version = in.Version
	table.CalibratedAt = in.CalibratedAt
	table.Source = "backtest tier calibration"
	if err := table.Validate(); err != nil {
		return scoring.TierTable{}, report, err
	}
	return table, report, nil
}

func recordAbove(evals []GradedEvaluation, minScore, minEdge float64) grading.Record {
	var rec grading.Record
	for _, e := range evals {
		if e.Result.Score >= minScore && e.Edge >= minEdge {
			rec.Add(e.Pick.Result)
		}
	}
	return rec
}
