package apperrors

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	insufficient := fmt.Errorf("fit: %w", &InsufficientDataError{Stage: "training rows", Count: 2, Required: 3})
	assert.True(t, errors.Is(insufficient, ErrInsufficientTrainingData))

	var typed *InsufficientDataError
	if assert.True(t, errors.As(insufficient, &typed)) {
		assert.Equal(t, 2, typed.Count)
		assert.Equal(t, 3, typed.Required)
	}

	lookahead := &LookaheadViolationError{
		Team:      "Duke",
		Requested: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		Returned:  time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC),
	}
	assert.True(t, errors.Is(lookahead, ErrLookaheadViolation))
	assert.Contains(t, lookahead.Error(), "2024-01-06")

	cfg := NewConfigError("weight table", "negative weight %f for %s", -0.2, "pace")
	assert.True(t, errors.Is(cfg, ErrInvalidConfiguration))
	assert.Contains(t, cfg.Error(), "weight table")
}
