package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/apperrors"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/backtest"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/elo"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/grading"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/metrics"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/picks"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/regression"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/scoring"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/signals"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/snapshot"
	"github.com/stitts-dev/pick-engine/shared/pkg/config"
	"github.com/stitts-dev/pick-engine/shared/types"
)

// ErrUnsupportedSport is returned for a sport the service is not configured to pick
var ErrUnsupportedSport = errors.New("unsupported sport")

// Dependencies are the collaborators the service reads from and writes to. Games and
// Snapshots are required; everything else is optional.
type Dependencies struct {
	Games     GameSource
	Snapshots SnapshotSource
	Models    ModelSource
	Picks     PickStore
	Elo       EloStore
	Cache     PickCache
	Metrics   *metrics.Recorder
	Clock     func() time.Time
}

// PredictionService generates, grades and backtests picks over the configured sources
type PredictionService struct {
	config *config.Config
	deps   Dependencies
	logger *logrus.Logger

	scorer    *scoring.Scorer
	weights   *scoring.WeightBook
	registry  *scoring.TierRegistry
	eloParams map[types.Sport]elo.Params
	harness   *backtest.Harness
	sports    map[types.Sport]bool

	mu        sync.RWMutex
	generator *picks.Generator
}

// NewPredictionService validates the calibration and builds the scoring pipeline. Invalid
// weights, tiers or Elo parameters fail here, before any game is scored.
func NewPredictionService(cfg *config.Config, cal *config.Calibration, deps Dependencies, logger *logrus.Logger) (*PredictionService, error) {
	if deps.Games == nil || deps.Snapshots == nil {
		return nil, fmt.Errorf("prediction service requires game and snapshot sources")
	}
	if cal == nil {
		cal = config.DefaultCalibration()
	}
	// the caller keeps its calibration; defaults only apply to this service's copy
	own := *cal
	cal = &own
	if cal.FallbackWeight == 0 {
		cal.FallbackWeight = cfg.FallbackWeight
	}
	if deps.Clock == nil {
		deps.Clock = func() time.Time { return time.Now().UTC() }
	}

	scorer, err := scoring.NewScorer(cfg.MinActiveSignals)
	if err != nil {
		return nil, err
	}
	weights, err := scoring.NewWeightBook(cal)
	if err != nil {
		return nil, err
	}
	table, err := scoring.TierTableFromCalibration(cal)
	if err != nil {
		return nil, err
	}
	registry := scoring.NewTierRegistry()
	if err := registry.Append(table); err != nil {
		return nil, err
	}

	s := &PredictionService{
		config:    cfg,
		deps:      deps,
		logger:    logger,
		scorer:    scorer,
		weights:   weights,
		registry:  registry,
		eloParams: make(map[types.Sport]elo.Params),
		harness:   backtest.NewHarness(cfg.BacktestWorkers, cfg.StrictLookahead, cal, logger),
		sports:    make(map[types.Sport]bool),
	}

	for _, name := range cfg.SupportedSports {
		sport := types.Sport(name)
		if !sport.IsValid() {
			return nil, apperrors.NewConfigError("supported sports", "unknown sport %q", name)
		}
		s.sports[sport] = true

		params := elo.ParamsFor(cal, sport)
		if err := params.Validate(); err != nil {
			return nil, err
		}
		s.eloParams[sport] = params
	}

	if err := s.rebuildGenerator(table); err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"calibration_version": cal.Version,
		"tier_version":        table.Version,
		"sports":              cfg.SupportedSports,
		"min_active":          cfg.MinActiveSignals,
	}).Info("Prediction service initialized")

	return s, nil
}

func (s *PredictionService) rebuildGenerator(table scoring.TierTable) error {
	mapper, err := scoring.NewTierMapper(table)
	if err != nil {
		return err
	}
	gen, err := picks.NewGenerator(picks.Config{
		Scorer:  s.scorer,
		Weights: s.weights,
		Tiers:   mapper,
		Workers: s.config.PickWorkers,
		Logger:  s.logger,
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.generator = gen
	s.mu.Unlock()
	return nil
}

func (s *PredictionService) currentGenerator() *picks.Generator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generator
}

// SupportedSports lists the configured sports in a stable order
func (s *PredictionService) SupportedSports() []types.Sport {
	out := make([]types.Sport, 0, len(s.sports))
	for sport := range s.sports {
		out = append(out, sport)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *PredictionService) checkSport(sport types.Sport) error {
	if !s.sports[sport] {
		return fmt.Errorf("%w: %q", ErrUnsupportedSport, sport)
	}
	return nil
}

// TierVersion is the version of the tier table picks are currently stamped with
func (s *PredictionService) TierVersion() string {
	return s.currentGenerator().TierVersion()
}

// TierVersions lists every adopted tier table version, oldest first
func (s *PredictionService) TierVersions() []string {
	return s.registry.Versions()
}

// AdoptTierTable appends a newly calibrated table and starts using it for new picks.
// Picks already published keep the version they were generated with.
func (s *PredictionService) AdoptTierTable(table scoring.TierTable) error {
	if err := s.registry.Append(table); err != nil {
		return err
	}
	if err := s.rebuildGenerator(table); err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"tier_version":  table.Version,
		"calibrated_at": table.CalibratedAt,
	}).Info("Adopted tier table")
	return nil
}

// GeneratePicks scores the sport's slate for date and returns the tiered picks. Nothing
// is persisted; the same inputs always produce the same picks.
func (s *PredictionService) GeneratePicks(ctx context.Context, sport types.Sport, date time.Time) ([]types.Pick, error) {
	if err := s.checkSport(sport); err != nil {
		return nil, err
	}
	start := time.Now()
	day := types.Day(date)
	log := s.logger.WithFields(logrus.Fields{"sport": sport, "date": types.DateKey(day)})

	upcoming, err := s.deps.Games.GetUpcomingGames(ctx, sport, day)
	if err != nil {
		return nil, fmt.Errorf("failed to load upcoming %s games: %w", sport, err)
	}
	if len(upcoming) == 0 {
		log.Info("No games on slate")
		return []types.Pick{}, nil
	}

	// Elo replays every completed game, the same replay RecalculateElo stores; only the
	// form and matchup history is limited to the recent seasons
	completed, err := s.deps.Games.GetCompletedGames(ctx, sport, time.Time{}, day)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s history: %w", sport, err)
	}
	from := day.AddDate(-s.config.HistorySeasons, 0, 0)
	history := make([]types.GameRecord, 0, len(completed))
	for _, g := range completed {
		if !g.GameDate.Before(from) {
			history = append(history, g)
		}
	}
	snaps, err := s.deps.Snapshots.GetSnapshots(ctx, sport, day)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s snapshots: %w", sport, err)
	}

	opts := []snapshot.Option{snapshot.WithStrictLookahead(s.config.StrictLookahead), snapshot.WithLogger(s.logger)}
	store, err := snapshot.NewStore(snaps, opts...)
	if err != nil {
		return nil, err
	}
	engine, err := elo.NewEngine(sport, s.eloParams[sport], s.logger)
	if err != nil {
		return nil, err
	}
	ledger, err := engine.Replay(completed)
	if err != nil {
		return nil, err
	}

	marginModel, err := s.loadModel(ctx, sport, regression.TargetMargin)
	if err != nil {
		return nil, err
	}
	totalModel, err := s.loadModel(ctx, sport, regression.TargetTotal)
	if err != nil {
		return nil, err
	}

	settings := signals.DefaultSettings(sport)
	result, err := s.currentGenerator().Generate(ctx, picks.Input{
		Sport:       sport,
		Games:       upcoming,
		Markets:     types.AllMarkets,
		Store:       store,
		History:     snapshot.NewHistoryIndex(history, opts...),
		Ledger:      ledger,
		MarginModel: marginModel,
		TotalModel:  totalModel,
		Settings:    &settings,
		GeneratedAt: s.deps.Clock(),
	})
	if err != nil {
		return nil, err
	}

	s.deps.Metrics.PicksPublished(result, time.Since(start), sport)
	log.WithFields(logrus.Fields{
		"games":        len(upcoming),
		"completed":    len(completed),
		"history":      len(history),
		"snapshots":    len(snaps),
		"picks":        len(result),
		"model_backed": marginModel != nil || totalModel != nil,
	}).Info("Pick generation completed")

	return result, nil
}

func (s *PredictionService) loadModel(ctx context.Context, sport types.Sport, target string) (*regression.Model, error) {
	if s.deps.Models == nil {
		return nil, nil
	}
	model, err := s.deps.Models.LatestModel(ctx, sport, target)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s %s model: %w", sport, target, err)
	}
	if model == nil {
		return nil, nil
	}
	if err := model.Validate(); err != nil {
		return nil, err
	}
	return model, nil
}

// PublishPicks generates the slate and stores it. Picks already stored for the same game,
// market and day are left as they are.
func (s *PredictionService) PublishPicks(ctx context.Context, sport types.Sport, date time.Time) ([]types.Pick, error) {
	generated, err := s.GeneratePicks(ctx, sport, date)
	if err != nil {
		return nil, err
	}
	if s.deps.Picks != nil && len(generated) > 0 {
		inserted, err := s.deps.Picks.SavePicks(ctx, generated)
		if err != nil {
			return nil, fmt.Errorf("failed to save picks: %w", err)
		}
		s.logger.WithFields(logrus.Fields{
			"sport":    sport,
			"picks":    len(generated),
			"inserted": inserted,
		}).Info("Published picks")
	}
	if s.deps.Cache != nil {
		if err := s.deps.Cache.SetPicks(ctx, sport, date, generated); err != nil {
			s.logger.WithError(err).WithField("sport", sport).Warn("Failed to cache published picks")
		}
	}
	return generated, nil
}

// PicksForDate returns the published picks for a day, reading through the cache. A day
// with nothing stored is generated and published on first request.
func (s *PredictionService) PicksForDate(ctx context.Context, sport types.Sport, date time.Time) ([]types.Pick, error) {
	if err := s.checkSport(sport); err != nil {
		return nil, err
	}
	if s.deps.Cache != nil {
		cached, found, err := s.deps.Cache.GetPicks(ctx, sport, date)
		if err != nil {
			s.logger.WithError(err).WithField("sport", sport).Warn("Pick cache read failed")
		} else if found {
			return cached, nil
		}
	}

	if s.deps.Picks != nil {
		stored, err := s.deps.Picks.ListPicks(ctx, sport, date)
		if err != nil {
			return nil, fmt.Errorf("failed to list picks: %w", err)
		}
		if len(stored) > 0 {
			if s.deps.Cache != nil {
				if err := s.deps.Cache.SetPicks(ctx, sport, date, stored); err != nil {
					s.logger.WithError(err).WithField("sport", sport).Warn("Failed to cache stored picks")
				}
			}
			return stored, nil
		}
	}

	return s.PublishPicks(ctx, sport, date)
}

// GradePicks settles pending picks against final games. It has no side effects.
func (s *PredictionService) GradePicks(pending []types.Pick, settled []types.GameRecord) []types.GradedPick {
	return grading.GradePicksAt(pending, settled, s.deps.Clock())
}

// SettlePending grades every stored pending pick whose game has gone final
func (s *PredictionService) SettlePending(ctx context.Context, sport types.Sport) ([]types.GradedPick, error) {
	if err := s.checkSport(sport); err != nil {
		return nil, err
	}
	if s.deps.Picks == nil {
		return nil, fmt.Errorf("settling picks requires a pick store")
	}

	now := s.deps.Clock()
	pending, err := s.deps.Picks.ListPending(ctx, sport, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending picks: %w", err)
	}
	if len(pending) == 0 {
		return []types.GradedPick{}, nil
	}

	ids := make([]string, 0, len(pending))
	seen := make(map[string]bool, len(pending))
	for _, p := range pending {
		if !seen[p.GameID] {
			seen[p.GameID] = true
			ids = append(ids, p.GameID)
		}
	}
	games, err := s.deps.Games.GetGamesByID(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load games for grading: %w", err)
	}

	graded := grading.GradePicksAt(pending, games, now)
	if len(graded) == 0 {
		return graded, nil
	}
	saved, err := s.deps.Picks.SaveGraded(ctx, graded)
	if err != nil {
		return nil, fmt.Errorf("failed to save graded picks: %w", err)
	}

	if s.deps.Cache != nil {
		days := make(map[string]time.Time)
		for _, g := range graded {
			day := types.Day(g.Pick.GameDate)
			days[types.DateKey(day)] = day
		}
		for _, day := range days {
			if err := s.deps.Cache.InvalidatePicks(ctx, sport, day); err != nil {
				s.logger.WithError(err).WithField("sport", sport).Warn("Failed to invalidate graded picks")
			}
		}
	}

	s.deps.Metrics.Graded(graded)
	record := grading.Tally(graded)
	s.logger.WithFields(logrus.Fields{
		"sport":   sport,
		"pending": len(pending),
		"graded":  len(graded),
		"saved":   saved,
		"wins":    record.Wins,
		"losses":  record.Losses,
		"pushes":  record.Pushes,
		"units":   record.Units.StringFixed(2),
	}).Info("Settled pending picks")

	return graded, nil
}

// RecalculateElo replays every completed game for the sport and replaces the stored history
func (s *PredictionService) RecalculateElo(ctx context.Context, sport types.Sport) ([]types.EloRating, error) {
	if err := s.checkSport(sport); err != nil {
		return nil, err
	}
	start := time.Now()

	games, err := s.deps.Games.GetCompletedGames(ctx, sport, time.Time{}, s.deps.Clock())
	if err != nil {
		return nil, fmt.Errorf("failed to load %s games: %w", sport, err)
	}
	engine, err := elo.NewEngine(sport, s.eloParams[sport], s.logger)
	if err != nil {
		return nil, err
	}
	ledger, err := engine.Replay(games)
	if err != nil {
		return nil, err
	}
	history := ledger.History()

	if s.deps.Elo != nil {
		if err := s.deps.Elo.ReplaceSport(ctx, sport, history); err != nil {
			return nil, fmt.Errorf("failed to store %s ratings: %w", sport, err)
		}
	}
	final := ledger.FinalRatings()
	if s.deps.Cache != nil {
		if err := s.deps.Cache.SetElo(ctx, sport, final); err != nil {
			s.logger.WithError(err).WithField("sport", sport).Warn("Failed to cache Elo ratings")
		}
	}

	s.deps.Metrics.EloReplayed(sport, len(final), time.Since(start))
	return history, nil
}

// CurrentRatings returns each team's latest rating from the stored replay, highest first
func (s *PredictionService) CurrentRatings(ctx context.Context, sport types.Sport) ([]types.EloRating, error) {
	if err := s.checkSport(sport); err != nil {
		return nil, err
	}
	if s.deps.Cache != nil {
		cached, found, err := s.deps.Cache.GetElo(ctx, sport)
		if err != nil {
			s.logger.WithError(err).WithField("sport", sport).Warn("Elo cache read failed")
		} else if found {
			return cached, nil
		}
	}
	if s.deps.Elo == nil {
		return []types.EloRating{}, nil
	}

	history, err := s.deps.Elo.History(ctx, sport)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s ratings: %w", sport, err)
	}
	latest := make(map[string]types.EloRating)
	for _, h := range history {
		latest[h.Team] = h
	}
	ratings := make([]types.EloRating, 0, len(latest))
	for _, r := range latest {
		ratings = append(ratings, r)
	}
	sort.Slice(ratings, func(i, j int) bool {
		if ratings[i].Rating != ratings[j].Rating {
			return ratings[i].Rating > ratings[j].Rating
		}
		return ratings[i].Team < ratings[j].Team
	})

	if s.deps.Cache != nil && len(ratings) > 0 {
		if err := s.deps.Cache.SetElo(ctx, sport, ratings); err != nil {
			s.logger.WithError(err).WithField("sport", sport).Warn("Failed to cache Elo ratings")
		}
	}
	return ratings, nil
}

// Performance tallies the settled picks for games in [from, to)
func (s *PredictionService) Performance(ctx context.Context, sport types.Sport, from, to time.Time) (grading.Record, error) {
	if err := s.checkSport(sport); err != nil {
		return grading.Record{}, err
	}
	if s.deps.Picks == nil {
		return grading.Record{}, nil
	}
	graded, err := s.deps.Picks.Record(ctx, sport, from, to)
	if err != nil {
		return grading.Record{}, fmt.Errorf("failed to load graded picks: %w", err)
	}
	return grading.Tally(graded), nil
}

// RunBacktest runs one candidate. When games is empty every completed game for the
// candidate's sport is loaded from the game source.
func (s *PredictionService) RunBacktest(ctx context.Context, cfg backtest.Config, games []types.GameRecord) (*backtest.Report, error) {
	start := time.Now()
	games, snaps, err := s.backtestData(ctx, []types.Sport{cfg.Sport}, games)
	if err != nil {
		return nil, err
	}

	report, err := s.harness.Run(ctx, cfg, games, snaps)
	if err != nil {
		s.deps.Metrics.BacktestFinished(cfg.Sport, cfg.Market, "failed", 0, time.Since(start))
		return nil, err
	}
	s.deps.Metrics.BacktestFinished(cfg.Sport, cfg.Market, outcome(report), report.OutOfSample.Accuracy, report.Duration)
	return report, nil
}

// RunSweep runs candidates in parallel and streams progress. progress may be nil and is
// not closed.
func (s *PredictionService) RunSweep(ctx context.Context, runID string, candidates []backtest.Config, progress chan<- backtest.SweepProgress) ([]backtest.CandidateResult, error) {
	if len(candidates) == 0 {
		return nil, apperrors.NewConfigError("sweep", "no candidates")
	}
	seen := make(map[types.Sport]bool)
	var sports []types.Sport
	for _, c := range candidates {
		if !seen[c.Sport] {
			seen[c.Sport] = true
			sports = append(sports, c.Sport)
		}
	}

	games, snaps, err := s.backtestData(ctx, sports, nil)
	if err != nil {
		return nil, err
	}

	results, err := s.harness.Sweep(ctx, runID, candidates, games, snaps, s.config.BacktestWorkers, progress)
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		if r.Report == nil {
			s.deps.Metrics.BacktestFinished(r.Config.Sport, r.Config.Market, "failed", 0, 0)
			continue
		}
		s.deps.Metrics.BacktestFinished(r.Config.Sport, r.Config.Market, outcome(r.Report), r.Report.OutOfSample.Accuracy, r.Report.Duration)
	}
	return results, nil
}

func (s *PredictionService) backtestData(ctx context.Context, sports []types.Sport, games []types.GameRecord) ([]types.GameRecord, []types.TeamRatingSnapshot, error) {
	now := s.deps.Clock()
	if len(games) == 0 {
		for _, sport := range sports {
			loaded, err := s.deps.Games.GetCompletedGames(ctx, sport, time.Time{}, now)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to load %s games: %w", sport, err)
			}
			games = append(games, loaded...)
		}
	}

	var snaps []types.TeamRatingSnapshot
	for _, sport := range sports {
		loaded, err := s.deps.Snapshots.GetSnapshots(ctx, sport, now)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load %s snapshots: %w", sport, err)
		}
		snaps = append(snaps, loaded...)
	}
	return games, snaps, nil
}

func outcome(report *backtest.Report) string {
	if report.Rejected {
		return "rejected"
	}
	return "accepted"
}
