package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/apperrors"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/services"
	"github.com/stitts-dev/pick-engine/shared/types"
)

// respondError maps the engine's error taxonomy onto HTTP statuses
func respondError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL_ERROR"
	switch {
	case errors.Is(err, services.ErrUnsupportedSport):
		status, code = http.StatusBadRequest, "UNSUPPORTED_SPORT"
	case errors.Is(err, apperrors.ErrInvalidConfiguration):
		status, code = http.StatusBadRequest, "INVALID_CONFIGURATION"
	case errors.Is(err, apperrors.ErrInvalidInput):
		status, code = http.StatusBadRequest, "INVALID_INPUT"
	case errors.Is(err, apperrors.ErrInsufficientTrainingData):
		status, code = http.StatusUnprocessableEntity, "INSUFFICIENT_DATA"
	case errors.Is(err, apperrors.ErrAlreadyGraded), errors.Is(err, apperrors.ErrSnapshotRevision):
		status, code = http.StatusConflict, "CONFLICT"
	case errors.Is(err, apperrors.ErrLookaheadViolation):
		code = "LOOKAHEAD_VIOLATION"
	case errors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusGatewayTimeout, "TIMEOUT"
	}

	_ = c.Error(err)
	c.JSON(status, types.ErrorResponse{Error: err.Error(), Code: code})
}

func badRequest(c *gin.Context, message string, err error) {
	resp := types.ErrorResponse{Error: message, Code: "INVALID_REQUEST"}
	if err != nil {
		resp.Details = err.Error()
	}
	c.JSON(http.StatusBadRequest, resp)
}
