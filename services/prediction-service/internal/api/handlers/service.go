package handlers

import (
	"context"
	"time"

	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/backtest"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/grading"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/scheduler"
	"github.com/stitts-dev/pick-engine/shared/types"
)

// PredictionAPI is the slice of the prediction service the HTTP layer calls
type PredictionAPI interface {
	SupportedSports() []types.Sport
	TierVersion() string
	PicksForDate(ctx context.Context, sport types.Sport, date time.Time) ([]types.Pick, error)
	GradePicks(pending []types.Pick, settled []types.GameRecord) []types.GradedPick
	Performance(ctx context.Context, sport types.Sport, from, to time.Time) (grading.Record, error)
	CurrentRatings(ctx context.Context, sport types.Sport) ([]types.EloRating, error)
	RecalculateElo(ctx context.Context, sport types.Sport) ([]types.EloRating, error)
	RunBacktest(ctx context.Context, cfg backtest.Config, games []types.GameRecord) (*backtest.Report, error)
	RunSweep(ctx context.Context, runID string, candidates []backtest.Config, progress chan<- backtest.SweepProgress) ([]backtest.CandidateResult, error)
}

// JobRunner exposes scheduler bookkeeping; nil when the scheduler is disabled
type JobRunner interface {
	GetJobs() []scheduler.JobInfo
	GetStatus() map[string]interface{}
	TriggerJob(id string) error
}

func parseDate(value string, fallback time.Time) (time.Time, error) {
	if value == "" {
		return types.Day(fallback), nil
	}
	return time.Parse("2006-01-02", value)
}
