package picks

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/elo"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/regression"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/scoring"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/signals"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/snapshot"
	"github.com/stitts-dev/pick-engine/shared/pkg/logger"
	"github.com/stitts-dev/pick-engine/shared/types"
)

// pickNamespace seeds the deterministic pick IDs
var pickNamespace = uuid.MustParse("6f1c2b8e-4a53-4d1e-9b7a-2f0d3c5e8a91")

// PickID is stable for a game, market and generation day so reruns produce the same IDs
func PickID(gameID string, market types.Market, day time.Time) string {
	return uuid.NewSHA1(pickNamespace, []byte(gameID+"|"+string(market)+"|"+types.DateKey(day))).String()
}

// Config wires the components a generator scores with
type Config struct {
	Library *signals.Library
	Scorer  *scoring.Scorer
	Weights *scoring.WeightBook
	Tiers   *scoring.TierMapper
	Workers int
	Logger  *logrus.Logger
}

// Generator runs the signal library, scorer and tier mapper over a slate of games
type Generator struct {
	library *signals.Library
	scorer  *scoring.Scorer
	weights *scoring.WeightBook
	tiers   *scoring.TierMapper
	workers int
	logger  *logrus.Logger
}

func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.Scorer == nil {
		return nil, fmt.Errorf("pick generator requires a scorer")
	}
	if cfg.Tiers == nil {
		return nil, fmt.Errorf("pick generator requires a tier mapper")
	}
	if cfg.Library == nil {
		cfg.Library = signals.DefaultLibrary()
	}
	if cfg.Weights == nil {
		book, err := scoring.NewWeightBook(nil)
		if err != nil {
			return nil, err
		}
		cfg.Weights = book
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}

	return &Generator{
		library: cfg.Library,
		scorer:  cfg.Scorer,
		weights: cfg.Weights,
		tiers:   cfg.Tiers,
		workers: cfg.Workers,
		logger:  cfg.Logger,
	}, nil
}

// TierVersion is the calibration version stamped on generated picks
func (g *Generator) TierVersion() string {
	return g.tiers.Version()
}

// Input is one prefetched slate. Store, History and Ledger may be nil; the signals that
// need them then have no opinion.
type Input struct {
	Sport       types.Sport
	Games       []types.GameContext
	Markets     []types.Market
	Store       *snapshot.Store
	History     *snapshot.HistoryIndex
	Ledger      *elo.Ledger
	MarginModel *regression.Model
	TotalModel  *regression.Model
	Settings    *signals.Settings
	GeneratedAt time.Time
}

// Evaluation is the scored view of one game and market whether or not it became a pick
type Evaluation struct {
	Game       types.GameRecord     `json:"game"`
	Market     types.Market         `json:"market"`
	Line       float64              `json:"line"`
	HasLine    bool                 `json:"has_line"`
	Projection *signals.Projection  `json:"projection,omitempty"`
	Signals    []types.SignalResult `json:"signals"`
	Result     scoring.Result       `json:"result"`
	Edge       float64              `json:"edge"`
	HasEdge    bool                 `json:"has_edge"`
	Tier       int                  `json:"tier"`
}

// Pickable is true for a non-neutral evaluation that cleared a tier
func (e Evaluation) Pickable() bool {
	return e.Tier > scoring.TierReject && e.Result.Direction != types.DirectionNeutral && e.HasLine
}

// ToPick builds the published pick for a pickable evaluation
func (e Evaluation) ToPick(generatedAt time.Time, calibrationVersion string) types.Pick {
	return types.Pick{
		ID:                 PickID(e.Game.ID, e.Market, generatedAt),
		GameID:             e.Game.ID,
		Sport:              e.Game.Sport,
		Market:             e.Market,
		Side:               e.Result.Direction,
		Line:               e.Line,
		Score:              e.Result.Score,
		Edge:               e.Edge,
		Tier:               e.Tier,
		Signals:            append([]types.SignalResult(nil), e.Signals...),
		Status:             types.PickPending,
		GameDate:           e.Game.GameDate,
		GeneratedAt:        generatedAt,
		CalibrationVersion: calibrationVersion,
	}
}

type gameJob struct {
	index int
	game  types.GameContext
}

type gameResult struct {
	index       int
	evaluations []Evaluation
}

// Evaluate scores every game and market in the input. Games are independent and run
// across the worker pool; results come back ordered by game date, game ID and market.
func (g *Generator) Evaluate(ctx context.Context, in Input) ([]Evaluation, error) {
	start := time.Now()
	markets := in.Markets
	if len(markets) == 0 {
		markets = types.AllMarkets
	}
	settings := signals.DefaultSettings(in.Sport)
	if in.Settings != nil {
		settings = *in.Settings
	}
	eloParams := elo.DefaultParams(in.Sport)
	if in.Ledger != nil {
		eloParams = in.Ledger.Params()
	}
	projector := signals.NewProjector(in.MarginModel, in.TotalModel, settings)

	numWorkers := g.workers
	if numWorkers > len(in.Games) {
		numWorkers = len(in.Games)
	}

	jobs := make(chan gameJob)
	results := make(chan gameResult, len(in.Games))

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				evals := make([]Evaluation, 0, len(markets))
				for _, market := range markets {
					evals = append(evals, g.evaluate(job.game, market, in, settings, eloParams, projector))
				}
				results <- gameResult{index: job.index, evaluations: evals}
			}
		}()
	}

	var cancelErr error
queue:
	for i, game := range in.Games {
		if err := ctx.Err(); err != nil {
			cancelErr = err
			break
		}
		select {
		case <-ctx.Done():
			cancelErr = ctx.Err()
			break queue
		case jobs <- gameJob{index: i, game: game}:
		}
	}
	close(jobs)

	wg.Wait()
	close(results)

	if cancelErr != nil {
		return nil, cancelErr
	}

	out := make([]Evaluation, 0, len(in.Games)*len(markets))
	for r := range results {
		out = append(out, r.evaluations...)
	}
	sortEvaluations(out, markets)

	g.logger.WithFields(logrus.Fields{
		"sport":       in.Sport,
		"games":       len(in.Games),
		"evaluations": len(out),
		"duration":    time.Since(start),
	}).Debug("Evaluated slate")

	return out, nil
}

// Generate evaluates the slate and keeps the tiered, non-neutral evaluations as picks
func (g *Generator) Generate(ctx context.Context, in Input) ([]types.Pick, error) {
	evals, err := g.Evaluate(ctx, in)
	if err != nil {
		return nil, err
	}

	generatedAt := in.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now().UTC()
	}

	picks := make([]types.Pick, 0)
	for _, e := range evals {
		if !e.Pickable() {
			continue
		}
		picks = append(picks, e.ToPick(generatedAt, g.tiers.Version()))
	}

	g.logger.WithFields(logrus.Fields{
		"sport": in.Sport,
		"games": len(in.Games),
		"picks": len(picks),
	}).Info("Generated picks")

	return picks, nil
}

func (g *Generator) evaluate(
	game types.GameContext,
	market types.Market,
	in Input,
	settings signals.Settings,
	eloParams elo.Params,
	projector *signals.Projector,
) Evaluation {
	sctx := g.buildContext(game, market, in, settings, eloParams, projector)
	results := g.library.Evaluate(sctx)
	scored := g.scorer.Score(results, g.weights.Table(in.Sport, market))

	eval := Evaluation{
		Game:       game.Game,
		Market:     market,
		Projection: sctx.Projection,
		Signals:    results,
		Result:     scored,
		Tier:       scoring.TierReject,
	}
	eval.Line, eval.HasLine = sctx.Line()

	if edge, ok := sctx.Edge(); ok {
		eval.HasEdge = true
		eval.Edge = sideEdge(edge, scored.Direction)
	}
	if eval.HasLine && eval.HasEdge && scored.Direction != types.DirectionNeutral {
		eval.Tier = g.tiers.Map(in.Sport, market, scored.Score, eval.Edge)
	}
	return eval
}

func (g *Generator) buildContext(
	game types.GameContext,
	market types.Market,
	in Input,
	settings signals.Settings,
	eloParams elo.Params,
	projector *signals.Projector,
) *signals.Context {
	sctx := &signals.Context{
		Game:      game,
		Market:    market,
		History:   in.History,
		EloParams: eloParams,
		Settings:  settings,
	}
	date := sctx.Date()

	if in.Store != nil {
		if s, ok := in.Store.Lookup(game.Game.HomeTeam, date); ok {
			sctx.HomeSnapshot = &s
		}
		if s, ok := in.Store.Lookup(game.Game.AwayTeam, date); ok {
			sctx.AwaySnapshot = &s
		}
		if avg, ok := in.Store.Averages(date); ok {
			sctx.League = &avg
		}
	}

	if in.Ledger != nil {
		_, homeSeen := in.Ledger.Lookup(game.Game.HomeTeam, date)
		_, awaySeen := in.Ledger.Lookup(game.Game.AwayTeam, date)
		if homeSeen || awaySeen {
			home := in.Ledger.AsOf(game.Game.HomeTeam, date)
			away := in.Ledger.AsOf(game.Game.AwayTeam, date)
			sctx.HomeElo, sctx.AwayElo = &home, &away
		}
	}

	sctx.Projection = projector.Project(sctx.HomeSnapshot, sctx.AwaySnapshot, sctx.League, game.Game.NeutralSite)
	return sctx
}

// sideEdge flips a home/over edge to the picked side
func sideEdge(edge float64, side types.Direction) float64 {
	if side == types.DirectionAway || side == types.DirectionUnder {
		return -edge
	}
	return edge
}

func sortEvaluations(evals []Evaluation, markets []types.Market) {
	order := make(map[types.Market]int, len(markets))
	for i, m := range markets {
		order[m] = i
	}
	sort.SliceStable(evals, func(i, j int) bool {
		a, b := evals[i], evals[j]
		if !a.Game.GameDate.Equal(b.Game.GameDate) {
			return a.Game.GameDate.Before(b.Game.GameDate)
		}
		if a.Game.ID != b.Game.ID {
			return a.Game.ID < b.Game.ID
		}
		return order[a.Market] < order[b.Market]
	})
}
