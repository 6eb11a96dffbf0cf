package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/api/handlers"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/api/middleware"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/cache"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/metrics"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/repository"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/scheduler"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/services"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/websocket"
	"github.com/stitts-dev/pick-engine/shared/pkg/config"
	"github.com/stitts-dev/pick-engine/shared/pkg/database"
	"github.com/stitts-dev/pick-engine/shared/pkg/logger"
)

const serviceName = "prediction-service"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	cfg.ServiceName = config.ServiceTypePrediction

	structuredLogger := logger.InitLogger(cfg.LogLevel, cfg.IsDevelopment())
	log := logger.WithService(serviceName)
	log.WithFields(logrus.Fields{
		"environment": cfg.Env,
		"port":        cfg.Port,
		"sports":      cfg.SupportedSports,
	}).Info("Starting Prediction Service")

	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	calibration, err := config.LoadCalibration(cfg.CalibrationFile)
	if err != nil {
		log.Fatalf("Failed to load calibration: %v", err)
	}

	db, err := database.NewPredictionServiceConnection(cfg.DatabaseURL, cfg.IsDevelopment())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := repository.AutoMigrate(db.DB); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	recorder := metrics.NewRecorder(prometheus.DefaultRegisterer)

	deps := services.Dependencies{
		Games:     repository.NewGameRepository(db, structuredLogger),
		Snapshots: repository.NewSnapshotRepository(db, structuredLogger),
		Models:    repository.NewModelRepository(db, structuredLogger),
		Picks:     repository.NewPickRepository(db, structuredLogger),
		Elo:       repository.NewEloRepository(db, structuredLogger),
		Metrics:   recorder,
	}

	// Redis is optional: without it every read goes to the database
	var pinger handlers.Pinger
	pickCache, err := cache.NewPickCache(cache.CacheConfig{
		RedisURL:   cfg.RedisURL,
		Database:   cfg.RedisDB,
		DefaultTTL: cfg.CacheTTL,
		KeyPrefix:  "pick_engine:",
	}, recorder)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, running without pick cache")
	} else {
		defer pickCache.Close()
		deps.Cache = pickCache
		pinger = pickCache
	}

	predictionService, err := services.NewPredictionService(cfg, calibration, deps, structuredLogger)
	if err != nil {
		log.Fatalf("Failed to initialize prediction service: %v", err)
	}

	var jobs handlers.JobRunner
	if cfg.EnableScheduler {
		sched := scheduler.NewScheduler(scheduler.SettingsFromConfig(cfg), predictionService, recorder, structuredLogger)
		if err := sched.Start(); err != nil {
			log.Fatalf("Failed to start scheduler: %v", err)
		}
		defer sched.Stop()
		jobs = sched
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wsHub := websocket.NewHub(structuredLogger)
	go wsHub.Run(ctx)

	router := gin.New()
	router.Use(middleware.RequestID(), middleware.RequestLogger(serviceName), gin.Recovery())
	handlers.RegisterRoutes(router, handlers.Router{
		Picks:    handlers.NewPickHandler(predictionService, structuredLogger),
		Elo:      handlers.NewEloHandler(predictionService, structuredLogger),
		Backtest: handlers.NewBacktestHandler(ctx, predictionService, wsHub, structuredLogger),
		Health:   handlers.NewHealthHandler(db, pinger, jobs, structuredLogger),
		Hub:      wsHub,
		Gatherer: prometheus.DefaultGatherer,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: router,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("Prediction service started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down prediction service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Prediction service forced to shutdown")
	}

	log.Info("Prediction service exited")
}
