package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/apperrors"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/elo"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/grading"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/picks"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/regression"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/scoring"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/signals"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/snapshot"
	"github.com/stitts-dev/pick-engine/shared/pkg/config"
	"github.com/stitts-dev/pick-engine/shared/pkg/logger"
	"github.com/stitts-dev/pick-engine/shared/types"
)

// GradedEvaluation is an evaluated pick with its settled result
type GradedEvaluation struct {
	picks.Evaluation
	Pick types.GradedPick `json:"pick"`
}

// FoldReport is one walk-forward month. A fold with an error is excluded from aggregates.
type FoldReport struct {
	Index     int     `json:"index"`
	Month     string  `json:"month"`
	Games     int     `json:"games"`
	TrainRows int     `json:"train_rows"`
	Metrics   Metrics `json:"metrics"`
	Err       error   `json:"-"`
	Error     string  `json:"error,omitempty"`
}

func (f *FoldReport) fail(err error) {
	f.Err = err
	f.Error = err.Error()
}

// Report is the outcome of one candidate
type Report struct {
	RunID    string            `json:"run_id"`
	Name     string            `json:"name"`
	Sport    types.Sport       `json:"sport"`
	Market   types.Market      `json:"market"`
	Features []string          `json:"features"`
	Lambda   float64           `json:"lambda"`
	Model    *regression.Model `json:"model"`

	TrainGames   int `json:"train_games"`
	HoldoutGames int `json:"holdout_games"`

	InSample    Metrics      `json:"in_sample"`
	Holdout     Metrics      `json:"holdout"`
	WalkForward *Metrics     `json:"walk_forward,omitempty"`
	Folds       []FoldReport `json:"folds,omitempty"`
	OutOfSample Metrics      `json:"out_of_sample"`
	OverfitGap  float64      `json:"overfit_gap"`

	// holdout split by game type; tournament play is not assumed to behave like the regular season
	HoldoutSegments map[string]Metrics `json:"holdout_segments,omitempty"`

	Grade    int      `json:"grade"`
	Rejected bool     `json:"rejected"`
	Reasons  []string `json:"reasons,omitempty"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`

	TrainEvaluations   []GradedEvaluation `json:"-"`
	HoldoutEvaluations []GradedEvaluation `json:"-"`
}

// Harness runs candidates over historical games without letting any evaluated game see
// data published after its own game day. Weights and Elo parameters come from the
// calibration the live generator uses; a candidate's own weights override its sport and market.
type Harness struct {
	workers     int
	strict      bool
	calibration *config.Calibration
	logger      *logrus.Logger
}

// NewHarness builds a harness. Lookahead checks are strict unless turned off. A nil
// calibration means the built-in defaults.
func NewHarness(workers int, strictLookahead bool, cal *config.Calibration, log *logrus.Logger) *Harness {
	if log == nil {
		log = logger.GetLogger()
	}
	if cal == nil {
		cal = config.DefaultCalibration()
	}
	if workers < 1 {
		workers = 1
	}
	return &Harness{workers: workers, strict: strictLookahead, calibration: cal, logger: log}
}

// environment is the point-in-time data shared by every evaluation in a run
type environment struct {
	store   *snapshot.Store
	history *snapshot.HistoryIndex
	ledger  *elo.Ledger
}

// Run evaluates one candidate: fit on the training seasons, score the training seasons
// in-sample and the holdout seasons out-of-sample, optionally walk forward month by month
func (h *Harness) Run(ctx context.Context, cfg Config, games []types.GameRecord, snapshots []types.TeamRatingSnapshot) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	report := &Report{
		RunID:     uuid.NewString(),
		Name:      cfg.Name,
		Sport:     cfg.Sport,
		Market:    cfg.Market,
		Features:  append([]string(nil), cfg.Features...),
		Lambda:    cfg.Lambda,
		StartedAt: start.UTC(),
	}
	log := h.logger.WithFields(logrus.Fields{
		"run_id": report.RunID,
		"sport":  cfg.Sport,
		"market": cfg.Market,
		"name":   cfg.Name,
	})

	ds := splitBySeason(games, cfg)
	report.TrainGames, report.HoldoutGames = len(ds.train), len(ds.holdout)
	if len(ds.train) == 0 {
		return nil, &apperrors.InsufficientDataError{Stage: "training games", Count: 0, Required: 1}
	}
	if len(ds.holdout) == 0 {
		return nil, &apperrors.InsufficientDataError{Stage: "holdout games", Count: 0, Required: 1}
	}

	env, err := h.environment(cfg, ds, snapshots)
	if err != nil {
		return nil, err
	}
	gen, err := h.generator(cfg)
	if err != nil {
		return nil, err
	}

	rows := trainingRows(ds.train, env.store, cfg.Features, cfg.Target())
	model, err := regression.Train(cfg.Target(), cfg.Features, rows, cfg.Lambda)
	if err != nil {
		return nil, fmt.Errorf("training %s: %w", cfg.Name, err)
	}
	report.Model = model

	log.WithFields(logrus.Fields{
		"train_rows":   len(rows),
		"coefficients": model.Coefficients,
		"intercept":    model.Intercept,
	}).Info("Fitted backtest model")

	report.TrainEvaluations, err = h.evaluate(ctx, gen, cfg, model, ds.train, env)
	if err != nil {
		return nil, err
	}
	report.HoldoutEvaluations, err = h.evaluate(ctx, gen, cfg, model, ds.holdout, env)
	if err != nil {
		return nil, err
	}
	report.InSample = computeMetrics(gradedPicks(report.TrainEvaluations), cfg.BootstrapIterations, cfg.Seed)
	report.Holdout = computeMetrics(gradedPicks(report.HoldoutEvaluations), cfg.BootstrapIterations, cfg.Seed)
	report.HoldoutSegments = segmentMetrics(report.HoldoutEvaluations, cfg.BootstrapIterations, cfg.Seed)
	report.OutOfSample = report.Holdout

	if cfg.WalkForward {
		folds, graded, err := h.walkForward(ctx, gen, cfg, ds, env)
		if err != nil {
			return nil, err
		}
		wf := computeMetrics(gradedPicks(graded), cfg.BootstrapIterations, cfg.Seed)
		report.Folds = folds
		report.WalkForward = &wf
		report.OutOfSample = wf
	}

	report.OverfitGap = report.InSample.Accuracy - report.OutOfSample.Accuracy
	report.Reasons = applyGates(cfg.Gates, report.OutOfSample, report.OverfitGap)
	if len(report.Reasons) > 0 {
		report.Rejected = true
		report.Grade = 0
	} else {
		report.Grade = letterGrade(report.OutOfSample)
	}
	report.Duration = time.Since(start)

	log.WithFields(logrus.Fields{
		"in_sample_accuracy":     report.InSample.Accuracy,
		"out_of_sample_accuracy": report.OutOfSample.Accuracy,
		"out_of_sample_picks":    report.OutOfSample.Picks,
		"overfit_gap":            report.OverfitGap,
		"grade":                  report.Grade,
		"duration":               report.Duration,
	}).Info("Backtest completed")

	return report, nil
}

func (h *Harness) environment(cfg Config, ds dataset, snapshots []types.TeamRatingSnapshot) (environment, error) {
	opts := []snapshot.Option{snapshot.WithStrictLookahead(h.strict), snapshot.WithLogger(h.logger)}

	own := make([]types.TeamRatingSnapshot, 0, len(snapshots))
	for _, snap := range snapshots {
		if snap.Sport == "" || snap.Sport == cfg.Sport {
			own = append(own, snap)
		}
	}
	store, err := snapshot.NewStore(own, opts...)
	if err != nil {
		return environment{}, fmt.Errorf("failed to build snapshot store: %w", err)
	}

	engine, err := elo.NewEngine(cfg.Sport, elo.ParamsFor(h.calibration, cfg.Sport), h.logger)
	if err != nil {
		return environment{}, err
	}
	ledger, err := engine.Replay(ds.all)
	if err != nil {
		return environment{}, fmt.Errorf("failed to replay Elo: %w", err)
	}

	return environment{
		store:   store,
		history: snapshot.NewHistoryIndex(ds.all, opts...),
		ledger:  ledger,
	}, nil
}

// generator builds the candidate's scorer, weights and tiers
func (h *Harness) generator(cfg Config) (*picks.Generator, error) {
	library := signals.DefaultLibrary()
	if len(cfg.Signals) > 0 {
		keep := make(map[types.SignalCategory]bool, len(cfg.Signals))
		for _, c := range cfg.Signals {
			keep[c] = true
		}
		for _, market := range types.AllMarkets {
			for _, c := range library.Categories(market) {
				if !keep[c] {
					library.Remove(c)
				}
			}
		}
	}

	scorer, err := scoring.NewScorer(cfg.MinActive)
	if err != nil {
		return nil, err
	}

	weights, err := scoring.NewWeightBook(h.calibration)
	if err != nil {
		return nil, err
	}
	if cfg.Weights != nil {
		table := scoring.WeightTable{
			Sport:    cfg.Sport,
			Market:   cfg.Market,
			Weights:  make(map[types.SignalCategory]float64, len(cfg.Weights)),
			Fallback: weights.Table(cfg.Sport, cfg.Market).Fallback,
		}
		for c, w := range cfg.Weights {
			table.Weights[c] = w
		}
		if err := weights.Put(table); err != nil {
			return nil, err
		}
	}

	rules := cfg.Tiers
	if len(rules) == 0 {
		rules = []scoring.TierRule{{Tier: scoring.TierThree, MinScore: 0, MinEdge: cfg.MinEdge}}
	}
	table := scoring.TierTable{Version: "candidate/" + cfg.Name, Source: "backtest candidate"}.
		WithRules(cfg.Sport, cfg.Market, rules)
	tiers, err := scoring.NewTierMapper(table)
	if err != nil {
		return nil, err
	}

	return picks.NewGenerator(picks.Config{
		Library: library,
		Scorer:  scorer,
		Weights: weights,
		Tiers:   tiers,
		Workers: h.workers,
		Logger:  h.logger,
	})
}

// evaluate scores games that have a line for the market and grades every evaluation that
// passes the candidate's tier and edge filters against the settled game
func (h *Harness) evaluate(
	ctx context.Context,
	gen *picks.Generator,
	cfg Config,
	model *regression.Model,
	games []types.GameRecord,
	env environment,
) ([]GradedEvaluation, error) {
	settled := make(map[string]types.GameRecord, len(games))
	contexts := make([]types.GameContext, 0, len(games))
	for _, g := range games {
		if !hasLine(g, cfg.Market) {
			continue
		}
		settled[g.ID] = g
		contexts = append(contexts, pregame(g))
	}

	in := picks.Input{
		Sport:   cfg.Sport,
		Games:   contexts,
		Markets: []types.Market{cfg.Market},
		Store:   env.store,
		History: env.history,
		Ledger:  env.ledger,
	}
	if cfg.Market == types.MarketTotal {
		in.TotalModel = model
	} else {
		in.MarginModel = model
	}

	evals, err := gen.Evaluate(ctx, in)
	if err != nil {
		return nil, err
	}

	out := make([]GradedEvaluation, 0, len(evals))
	for _, e := range evals {
		if !e.Pickable() || e.Tier < cfg.MinTier || e.Edge < cfg.MinEdge {
			continue
		}
		game := settled[e.Game.ID]
		pick := e.ToPick(types.Day(game.GameDate), gen.TierVersion())
		gp, err := grading.Grade(pick, game, game.GameDate)
		if err != nil {
			h.logger.WithError(err).WithField("game_id", game.ID).Debug("Skipping ungradable backtest pick")
			continue
		}
		out = append(out, GradedEvaluation{Evaluation: e, Pick: gp})
	}
	return out, nil
}

// walkForward evaluates the holdout seasons one month at a time in temporal order. Each
// month is scored by a model fitted on the training seasons plus every earlier month.
func (h *Harness) walkForward(ctx context.Context, gen *picks.Generator, cfg Config, ds dataset, env environment) ([]FoldReport, []GradedEvaluation, error) {
	months := byMonth(ds.holdout)
	trainGames := append([]types.GameRecord(nil), ds.train...)

	folds := make([]FoldReport, 0, len(months))
	var graded []GradedEvaluation
	for i, m := range months {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		fold := FoldReport{Index: i, Month: m.key, Games: len(m.games)}
		rows := trainingRows(trainGames, env.store, cfg.Features, cfg.Target())
		fold.TrainRows = len(rows)

		model, err := regression.Train(cfg.Target(), cfg.Features, rows, cfg.Lambda)
		switch {
		case errors.Is(err, apperrors.ErrInsufficientTrainingData):
			fold.fail(err)
		case err != nil:
			return nil, nil, fmt.Errorf("fold %s: %w", m.key, err)
		default:
			evals, err := h.evaluate(ctx, gen, cfg, model, m.games, env)
			if err != nil {
				return nil, nil, err
			}
			fold.Metrics = computeMetrics(gradedPicks(evals), cfg.BootstrapIterations, cfg.Seed)
			if len(evals) < cfg.MinFoldPicks {
				fold.fail(&apperrors.InsufficientDataError{Stage: "fold " + m.key + " picks", Count: len(evals), Required: cfg.MinFoldPicks})
			} else {
				graded = append(graded, evals...)
			}
		}

		h.logger.WithFields(logrus.Fields{
			"fold":       fold.Month,
			"train_rows": fold.TrainRows,
			"picks":      fold.Metrics.Picks,
			"accuracy":   fold.Metrics.Accuracy,
			"excluded":   fold.Err != nil,
		}).Debug("Walk-forward fold completed")

		folds = append(folds, fold)
		trainGames = append(trainGames, m.games...)
	}
	return folds, graded, nil
}

func gradedPicks(evals []GradedEvaluation) []types.GradedPick {
	out := make([]types.GradedPick, len(evals))
	for i, e := range evals {
		out[i] = e.Pick
	}
	return out
}
