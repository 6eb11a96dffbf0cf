package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/pick-engine/shared/types"
)

type EloHandler struct {
	service PredictionAPI
	logger  *logrus.Logger
}

func NewEloHandler(service PredictionAPI, logger *logrus.Logger) *EloHandler {
	return &EloHandler{service: service, logger: logger}
}

// GetRatings handles GET /api/v1/elo/:sport
func (h *EloHandler) GetRatings(c *gin.Context) {
	sport := types.Sport(c.Param("sport"))
	ratings, err := h.service.CurrentRatings(c.Request.Context(), sport)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.SuccessResponse{Data: ratings})
}

// Recalculate handles POST /api/v1/elo/:sport/recalculate
func (h *EloHandler) Recalculate(c *gin.Context) {
	sport := types.Sport(c.Param("sport"))
	history, err := h.service.RecalculateElo(c.Request.Context(), sport)
	if err != nil {
		respondError(c, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"sport":   sport,
		"entries": len(history),
	}).Info("Elo recalculated on request")

	c.JSON(http.StatusOK, types.SuccessResponse{
		Data:    gin.H{"entries": len(history)},
		Message: "Elo history replaced",
	})
}
