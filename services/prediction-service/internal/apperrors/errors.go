package apperrors

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidInput is returned for malformed numeric input: empty design matrix,
	// ragged rows, or a target vector of the wrong length.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidConfiguration is returned when a weight table, tier table, Elo parameter
	// set or regression model is malformed. Components check this at construction.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrInsufficientTrainingData is matched by every InsufficientDataError
	ErrInsufficientTrainingData = errors.New("insufficient training data")

	// ErrLookaheadViolation is matched by every LookaheadViolationError
	ErrLookaheadViolation = errors.New("lookahead violation")

	// ErrSnapshotRevision is returned when a published snapshot would be changed or
	// a new snapshot is older than the latest one already published for the team
	ErrSnapshotRevision = errors.New("published snapshot cannot be revised")

	// ErrAlreadyGraded is returned when grading a pick that is no longer PENDING
	ErrAlreadyGraded = errors.New("pick already graded")
)

// ConfigError names the component whose configuration was rejected
type ConfigError struct {
	Component string
	Reason    string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidConfiguration.Error(), e.Component, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfiguration
}

// NewConfigError builds a ConfigError with a formatted reason
func NewConfigError(component, format string, args ...interface{}) error {
	return &ConfigError{Component: component, Reason: fmt.Sprintf(format, args...)}
}

// InsufficientDataError carries the offending count so callers can report it
type InsufficientDataError struct {
	Stage    string
	Count    int
	Required int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: %s has %d, requires %d", ErrInsufficientTrainingData.Error(), e.Stage, e.Count, e.Required)
}

func (e *InsufficientDataError) Unwrap() error {
	return ErrInsufficientTrainingData
}

// LookaheadViolationError records a lookup that returned data dated after the request
type LookaheadViolationError struct {
	Team      string
	Requested time.Time
	Returned  time.Time
}

func (e *LookaheadViolationError) Error() string {
	return fmt.Sprintf("%s: team %s requested as of %s but got data dated %s",
		ErrLookaheadViolation.Error(), e.Team,
		e.Requested.Format("2006-01-02"), e.Returned.Format("2006-01-02"))
}

func (e *LookaheadViolationError) Unwrap() error {
	return ErrLookaheadViolation
}
