package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/backtest"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/websocket"
	"github.com/stitts-dev/pick-engine/shared/pkg/logger"
	"github.com/stitts-dev/pick-engine/shared/types"
)

// BacktestHandler runs single backtests inline and sweeps in the background
type BacktestHandler struct {
	service PredictionAPI
	wsHub   *websocket.Hub
	ctx     context.Context
	logger  *logrus.Logger
}

// NewBacktestHandler ties background sweeps to ctx so shutdown cancels them
func NewBacktestHandler(ctx context.Context, service PredictionAPI, wsHub *websocket.Hub, logger *logrus.Logger) *BacktestHandler {
	return &BacktestHandler{
		service: service,
		wsHub:   wsHub,
		ctx:     ctx,
		logger:  logger,
	}
}

// RunBacktest handles POST /api/v1/backtest
func (h *BacktestHandler) RunBacktest(c *gin.Context) {
	var cfg backtest.Config
	if err := c.ShouldBindJSON(&cfg); err != nil {
		badRequest(c, "Invalid request format", err)
		return
	}

	report, err := h.service.RunBacktest(c.Request.Context(), cfg, nil)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.SuccessResponse{Data: report})
}

// SweepRequest lists the candidate configurations to compare
type SweepRequest struct {
	Candidates []backtest.Config `json:"candidates" binding:"required,min=1"`
}

// StartSweep handles POST /api/v1/backtest/sweep. It answers 202 with a run ID at once;
// progress and the ranked results arrive on /ws/backtest/:run_id.
func (h *BacktestHandler) StartSweep(c *gin.Context) {
	var req SweepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format", err)
		return
	}
	for _, cfg := range req.Candidates {
		if err := cfg.Validate(); err != nil {
			respondError(c, err)
			return
		}
	}

	runID := uuid.New().String()
	go h.runSweep(runID, req.Candidates)

	c.JSON(http.StatusAccepted, gin.H{
		"run_id":     runID,
		"candidates": len(req.Candidates),
		"websocket":  "/ws/backtest/" + runID,
	})
}

func (h *BacktestHandler) runSweep(runID string, candidates []backtest.Config) {
	log := logger.WithBacktestContext(runID, string(candidates[0].Sport), string(candidates[0].Market))
	log.WithField("candidates", len(candidates)).Info("Starting backtest sweep")

	progress := make(chan backtest.SweepProgress, len(candidates))
	relayed := make(chan struct{})
	go func() {
		defer close(relayed)
		h.wsHub.Relay(progress)
	}()

	results, err := h.service.RunSweep(h.ctx, runID, candidates, progress)
	close(progress)
	<-relayed

	if err != nil {
		log.WithError(err).Error("Backtest sweep failed")
		h.wsHub.Publish(runID, websocket.MessageFailed, types.ErrorResponse{Error: err.Error()})
		return
	}

	log.WithField("results", len(results)).Info("Backtest sweep completed")
	h.wsHub.Publish(runID, websocket.MessageCompleted, results)
}
