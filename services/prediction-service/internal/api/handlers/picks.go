package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/grading"
	"github.com/stitts-dev/pick-engine/shared/types"
)

// PickHandler serves published picks, grading and the running record
type PickHandler struct {
	service PredictionAPI
	logger  *logrus.Logger
	clock   func() time.Time
}

func NewPickHandler(service PredictionAPI, logger *logrus.Logger) *PickHandler {
	return &PickHandler{
		service: service,
		logger:  logger,
		clock:   func() time.Time { return time.Now().UTC() },
	}
}

// GetPicks handles GET /api/v1/picks/:sport?date=YYYY-MM-DD
func (h *PickHandler) GetPicks(c *gin.Context) {
	sport := types.Sport(c.Param("sport"))
	date, err := parseDate(c.Query("date"), h.clock())
	if err != nil {
		badRequest(c, "date must be YYYY-MM-DD", err)
		return
	}

	picks, err := h.service.PicksForDate(c.Request.Context(), sport, date)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sport":        sport,
		"date":         types.DateKey(date),
		"tier_version": h.service.TierVersion(),
		"count":        len(picks),
		"picks":        picks,
	})
}

// GetRecord handles GET /api/v1/picks/:sport/record?from=&to=. The window defaults to
// the 30 days before today and is half-open.
func (h *PickHandler) GetRecord(c *gin.Context) {
	sport := types.Sport(c.Param("sport"))
	today := types.Day(h.clock())
	to, err := parseDate(c.Query("to"), today.AddDate(0, 0, 1))
	if err != nil {
		badRequest(c, "to must be YYYY-MM-DD", err)
		return
	}
	from, err := parseDate(c.Query("from"), to.AddDate(0, 0, -30))
	if err != nil {
		badRequest(c, "from must be YYYY-MM-DD", err)
		return
	}
	if !from.Before(to) {
		badRequest(c, "from must be before to", nil)
		return
	}

	rec, err := h.service.Performance(c.Request.Context(), sport, from, to)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sport":    sport,
		"from":     types.DateKey(from),
		"to":       types.DateKey(to),
		"record":   rec,
		"accuracy": rec.Accuracy(),
		"roi":      rec.ROI(),
	})
}

// GradeRequest carries picks to settle against final game records
type GradeRequest struct {
	Pending []types.Pick       `json:"pending" binding:"required"`
	Settled []types.GameRecord `json:"settled" binding:"required"`
}

// GradePicks handles POST /api/v1/picks/grade. Nothing is persisted; unsettled games and
// already graded picks are skipped.
func (h *PickHandler) GradePicks(c *gin.Context) {
	var req GradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format", err)
		return
	}

	graded := h.service.GradePicks(req.Pending, req.Settled)
	c.JSON(http.StatusOK, gin.H{
		"graded": graded,
		"record": grading.Tally(graded),
	})
}
