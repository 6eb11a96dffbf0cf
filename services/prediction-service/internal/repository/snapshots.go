package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/apperrors"
	"github.com/stitts-dev/pick-engine/shared/pkg/database"
	"github.com/stitts-dev/pick-engine/shared/types"
	"gorm.io/gorm"
)

// SnapshotRepository is the append-only store of published team ratings
type SnapshotRepository struct {
	db     *database.DB
	logger *logrus.Entry
}

func NewSnapshotRepository(db *database.DB, logger *logrus.Logger) *SnapshotRepository {
	return &SnapshotRepository{db: db, logger: logger.WithField("component", "snapshot_repository")}
}

// AppendSnapshots stores newly published snapshots. Re-sending an identical snapshot is a
// no-op; a snapshot that differs from a stored one, or is dated on or before the team's
// latest stored snapshot, fails with ErrSnapshotRevision and nothing is written.
func (r *SnapshotRepository) AppendSnapshots(ctx context.Context, snaps []types.TeamRatingSnapshot) (int, error) {
	inserted := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, snap := range snaps {
			asOf := types.Day(snap.AsOfDate)

			var latest SnapshotRow
			err := tx.Where("team = ? AND sport = ?", snap.Team, snap.Sport).
				Order("as_of_date DESC").
				First(&latest).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
			case err != nil:
				return fmt.Errorf("failed to load latest snapshot for %s: %w", snap.Team, err)
			case !asOf.After(latest.AsOfDate.UTC()):
				var same SnapshotRow
				lookup := tx.Where("team = ? AND sport = ? AND as_of_date = ?", snap.Team, snap.Sport, asOf).First(&same)
				if lookup.Error == nil && sameRatings(same.snapshot(), snap) {
					continue
				}
				return fmt.Errorf("%w: %s %s as of %s", apperrors.ErrSnapshotRevision, snap.Sport, snap.Team, types.DateKey(asOf))
			}

			row := SnapshotRow{
				Team:       snap.Team,
				Sport:      snap.Sport,
				AsOfDate:   asOf,
				AdjOffense: snap.AdjOffense,
				AdjDefense: snap.AdjDefense,
				AdjTempo:   snap.AdjTempo,
				Rank:       snap.Rank,
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("failed to insert snapshot for %s: %w", snap.Team, err)
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	r.logger.WithField("snapshots", inserted).Debug("Appended snapshots")
	return inserted, nil
}

// GetSnapshots returns every snapshot published on or before through's UTC day
func (r *SnapshotRepository) GetSnapshots(ctx context.Context, sport types.Sport, through time.Time) ([]types.TeamRatingSnapshot, error) {
	var rows []SnapshotRow
	err := r.db.WithContext(ctx).
		Where("sport = ? AND as_of_date < ?", sport, types.Day(through).AddDate(0, 0, 1)).
		Order("team ASC, as_of_date ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}

	snaps := make([]types.TeamRatingSnapshot, len(rows))
	for i, row := range rows {
		snaps[i] = row.snapshot()
	}
	return snaps, nil
}

func sameRatings(a, b types.TeamRatingSnapshot) bool {
	return a.AdjOffense == b.AdjOffense && a.AdjDefense == b.AdjDefense && a.AdjTempo == b.AdjTempo && a.Rank == b.Rank
}
