package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/pick-engine/shared/types"
)

const serviceName = "prediction-service"

// HealthChecker is satisfied by *database.DB
type HealthChecker interface {
	HealthCheck() error
}

// Pinger is satisfied by the redis pick cache
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check and job endpoints
type HealthHandler struct {
	db        HealthChecker
	cache     Pinger
	scheduler JobRunner
	logger    *logrus.Logger
}

// NewHealthHandler accepts a nil cache or scheduler when those are disabled
func NewHealthHandler(db HealthChecker, cache Pinger, scheduler JobRunner, logger *logrus.Logger) *HealthHandler {
	return &HealthHandler{
		db:        db,
		cache:     cache,
		scheduler: scheduler,
		logger:    logger,
	}
}

// GetHealth reports liveness; it never touches dependencies
func (h *HealthHandler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, types.HealthStatus{
		Status:    "ok",
		Service:   serviceName,
		Timestamp: time.Now(),
	})
}

// GetReady checks the database and cache
func (h *HealthHandler) GetReady(c *gin.Context) {
	response := types.HealthStatus{
		Status:    "ready",
		Service:   serviceName,
		Timestamp: time.Now(),
		Checks:    make(map[string]string),
	}

	if err := h.db.HealthCheck(); err != nil {
		response.Status = "not_ready"
		response.Checks["database"] = "failed: " + err.Error()
	} else {
		response.Checks["database"] = "ok"
	}

	// the cache is optional; an unreachable cache degrades reads but does not block them
	if h.cache == nil {
		response.Checks["redis"] = "disabled"
	} else if err := h.cache.Ping(c.Request.Context()); err != nil {
		response.Checks["redis"] = "degraded: " + err.Error()
	} else {
		response.Checks["redis"] = "ok"
	}

	if h.scheduler == nil {
		response.Checks["scheduler"] = "disabled"
	} else {
		response.Checks["scheduler"] = "ok"
	}

	statusCode := http.StatusOK
	if response.Status != "ready" {
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, response)
}

// GetJobs handles GET /api/v1/jobs
func (h *HealthHandler) GetJobs(c *gin.Context) {
	if h.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, types.ErrorResponse{Error: "scheduler is disabled", Code: "SCHEDULER_DISABLED"})
		return
	}
	c.JSON(http.StatusOK, types.SuccessResponse{Data: h.scheduler.GetStatus()})
}

// TriggerJob handles POST /api/v1/jobs/:id/run
func (h *HealthHandler) TriggerJob(c *gin.Context) {
	if h.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, types.ErrorResponse{Error: "scheduler is disabled", Code: "SCHEDULER_DISABLED"})
		return
	}
	id := c.Param("id")
	if err := h.scheduler.TriggerJob(id); err != nil {
		c.JSON(http.StatusNotFound, types.ErrorResponse{Error: err.Error(), Code: "JOB_NOT_FOUND"})
		return
	}
	c.JSON(http.StatusAccepted, types.SuccessResponse{Message: "job triggered", Data: gin.H{"job_id": id}})
}
