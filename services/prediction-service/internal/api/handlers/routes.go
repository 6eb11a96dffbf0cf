package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/websocket"
)

// Router groups what RegisterRoutes mounts
type Router struct {
	Picks    *PickHandler
	Elo      *EloHandler
	Backtest *BacktestHandler
	Health   *HealthHandler
	Hub      *websocket.Hub
	Gatherer prometheus.Gatherer
}

func RegisterRoutes(router *gin.Engine, r Router) {
	apiV1 := router.Group("/api/v1")
	{
		apiV1.GET("/picks/:sport", r.Picks.GetPicks)
		apiV1.GET("/picks/:sport/record", r.Picks.GetRecord)
		apiV1.POST("/picks/grade", r.Picks.GradePicks)

		apiV1.GET("/elo/:sport", r.Elo.GetRatings)
		apiV1.POST("/elo/:sport/recalculate", r.Elo.Recalculate)

		apiV1.POST("/backtest", r.Backtest.RunBacktest)
		apiV1.POST("/backtest/sweep", r.Backtest.StartSweep)

		apiV1.GET("/jobs", r.Health.GetJobs)
		apiV1.POST("/jobs/:id/run", r.Health.TriggerJob)
	}

	router.GET("/ws/backtest/:run_id", r.Hub.HandleWebSocket)

	router.GET("/health", r.Health.GetHealth)
	router.HEAD("/health", r.Health.GetHealth)
	router.GET("/ready", r.Health.GetReady)
	router.HEAD("/ready", r.Health.GetReady)

	if r.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(r.Gatherer, promhttp.HandlerOpts{})))
	}
}
