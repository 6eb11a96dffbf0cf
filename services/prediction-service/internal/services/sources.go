package services

import (
	"context"
	"time"

	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/regression"
	"github.com/stitts-dev/pick-engine/shared/types"
)

// GameSource supplies game records. Completed games are final games with from <= date < to;
// a zero from means no lower bound.
type GameSource interface {
	GetCompletedGames(ctx context.Context, sport types.Sport, from, to time.Time) ([]types.GameRecord, error)
	GetUpcomingGames(ctx context.Context, sport types.Sport, date time.Time) ([]types.GameContext, error)
	GetGamesByID(ctx context.Context, ids []string) ([]types.GameRecord, error)
}

// SnapshotSource supplies published team rating snapshots dated on or before through
type SnapshotSource interface {
	GetSnapshots(ctx context.Context, sport types.Sport, through time.Time) ([]types.TeamRatingSnapshot, error)
}

// ModelSource returns the promoted regression model for a target, or nil when none exists
type ModelSource interface {
	LatestModel(ctx context.Context, sport types.Sport, target string) (*regression.Model, error)
}

// PickStore persists published picks and their settlement
type PickStore interface {
	SavePicks(ctx context.Context, picks []types.Pick) (int, error)
	ListPicks(ctx context.Context, sport types.Sport, date time.Time) ([]types.Pick, error)
	ListPending(ctx context.Context, sport types.Sport, before time.Time) ([]types.Pick, error)
	SaveGraded(ctx context.Context, graded []types.GradedPick) (int, error)
	Record(ctx context.Context, sport types.Sport, from, to time.Time) ([]types.GradedPick, error)
}

// EloStore replaces a sport's stored rating history after a full replay
type EloStore interface {
	ReplaceSport(ctx context.Context, sport types.Sport, history []types.EloRating) error
	History(ctx context.Context, sport types.Sport) ([]types.EloRating, error)
}

// PickCache is the read-through cache in front of the pick store
type PickCache interface {
	GetPicks(ctx context.Context, sport types.Sport, date time.Time) ([]types.Pick, bool, error)
	SetPicks(ctx context.Context, sport types.Sport, date time.Time, picks []types.Pick) error
	InvalidatePicks(ctx context.Context, sport types.Sport, date time.Time) error
	GetElo(ctx context.Context, sport types.Sport) ([]types.EloRating, bool, error)
	SetElo(ctx context.Context, sport types.Sport, ratings []types.EloRating) error
}
