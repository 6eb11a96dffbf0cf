package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"

	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/repository"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/services"
	"github.com/stitts-dev/pick-engine/shared/pkg/config"
	"github.com/stitts-dev/pick-engine/shared/pkg/database"
	"github.com/stitts-dev/pick-engine/shared/pkg/logger"
	"github.com/stitts-dev/pick-engine/shared/types"
)

// Fixture is the offline input format: final games plus the rating snapshots published
// alongside them
type Fixture struct {
	Games     []types.GameRecord         `json:"games"`
	Snapshots []types.TeamRatingSnapshot `json:"snapshots"`
}

// env is everything a command needs; close releases the database
type env struct {
	cfg         *config.Config
	calibration *config.Calibration
	service     *services.PredictionService
	models      *repository.ModelRepository
	logger      *logrus.Logger
	close       func()
}

func setup(ctx context.Context) (*env, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ServiceName = config.ServiceTypeBacktest
	cfg.SupportedSports = nil
	for _, sport := range types.AllSports {
		cfg.SupportedSports = append(cfg.SupportedSports, string(sport))
	}
	if workers > 0 {
		cfg.BacktestWorkers = workers
	}
	if calibrationPath != "" {
		cfg.CalibrationFile = calibrationPath
	}

	log := logger.InitLogger(logLevel, false)
	cal, err := config.LoadCalibration(cfg.CalibrationFile)
	if err != nil {
		return nil, err
	}

	var db *database.DB
	if fixturePath != "" {
		db, err = loadFixture(ctx, fixturePath, log)
	} else {
		db, err = database.NewBacktestConnection(cfg.DatabaseURL)
	}
	if err != nil {
		return nil, err
	}

	models := repository.NewModelRepository(db, log)
	svc, err := services.NewPredictionService(cfg, cal, services.Dependencies{
		Games:     repository.NewGameRepository(db, log),
		Snapshots: repository.NewSnapshotRepository(db, log),
		Models:    models,
	}, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &env{
		cfg:         cfg,
		calibration: cal,
		service:     svc,
		models:      models,
		logger:      log,
		close:       func() { db.Close() },
	}, nil
}

// loadFixture copies a fixture into an in-memory sqlite database so the run reads through
// the same repositories as the service
func loadFixture(ctx context.Context, path string, log *logrus.Logger) (*database.DB, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	var fixture Fixture
	if err := json.Unmarshal(data, &fixture); err != nil {
		return nil, fmt.Errorf("failed to decode fixture %s: %w", path, err)
	}

	// one connection, since every new sqlite memory connection is a separate empty database
	db, err := database.Open(sqlite.Open("file::memory:"), database.ConnectionConfig{
		Silent:       true,
		MaxOpenConns: 1,
		ServiceName:  "backtest-fixture",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory store: %w", err)
	}
	if err := repository.AutoMigrate(db.DB); err != nil {
		return nil, err
	}

	contexts := make([]types.GameContext, len(fixture.Games))
	for i, g := range fixture.Games {
		contexts[i] = types.GameContext{Game: g}
	}
	if _, err := repository.NewGameRepository(db, log).UpsertGames(ctx, contexts); err != nil {
		return nil, fmt.Errorf("failed to load fixture games: %w", err)
	}
	// snapshots must arrive oldest first per team
	sort.SliceStable(fixture.Snapshots, func(i, j int) bool {
		return fixture.Snapshots[i].AsOfDate.Before(fixture.Snapshots[j].AsOfDate)
	})
	if _, err := repository.NewSnapshotRepository(db, log).AppendSnapshots(ctx, fixture.Snapshots); err != nil {
		return nil, fmt.Errorf("failed to load fixture snapshots: %w", err)
	}

	log.WithFields(logrus.Fields{
		"fixture":   path,
		"games":     len(fixture.Games),
		"snapshots": len(fixture.Snapshots),
	}).Info("Loaded fixture")
	return db, nil
}

func writeJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
