package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stitts-dev/pick-engine/shared/pkg/database"
	"github.com/stitts-dev/pick-engine/shared/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PickRepository persists published picks and moves them out of PENDING exactly once
type PickRepository struct {
	db     *database.DB
	logger *logrus.Entry
}

func NewPickRepository(db *database.DB, logger *logrus.Logger) *PickRepository {
	return &PickRepository{db: db, logger: logger.WithField("component", "pick_repository")}
}

// SavePicks inserts picks, skipping any whose ID or (game, market, generation day) is
// already stored. It returns the number of rows inserted.
func (r *PickRepository) SavePicks(ctx context.Context, picks []types.Pick) (int, error) {
	if len(picks) == 0 {
		return 0, nil
	}

	rows := make([]PickRow, 0, len(picks))
	for _, p := range picks {
		row, err := pickRowFrom(p)
		if err != nil {
			return 0, fmt.Errorf("failed to encode pick %s: %w", p.ID, err)
		}
		rows = append(rows, row)
	}

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to insert picks: %w", result.Error)
	}

	r.logger.WithFields(logrus.Fields{
		"picks":    len(picks),
		"inserted": result.RowsAffected,
	}).Debug("Saved picks")
	return int(result.RowsAffected), nil
}

// ListPicks returns the picks for games on date's UTC day
func (r *PickRepository) ListPicks(ctx context.Context, sport types.Sport, date time.Time) ([]types.Pick, error) {
	day := types.Day(date)
	return r.find(r.db.WithContext(ctx).
		Where("sport = ? AND game_date >= ? AND game_date < ?", sport, day, day.AddDate(0, 0, 1)))
}

// ListPending returns PENDING picks for games that started before the given time
func (r *PickRepository) ListPending(ctx context.Context, sport types.Sport, before time.Time) ([]types.Pick, error) {
	return r.find(r.db.WithContext(ctx).
		Where("sport = ? AND status = ? AND game_date < ?", sport, types.PickPending, before.UTC()))
}

func (r *PickRepository) find(query *gorm.DB) ([]types.Pick, error) {
	var rows []PickRow
	if err := query.Order("game_date ASC, game_id ASC, market ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query picks: %w", err)
	}

	picks := make([]types.Pick, 0, len(rows))
	for _, row := range rows {
		p, err := row.pick()
		if err != nil {
			return nil, fmt.Errorf("failed to decode pick %s: %w", row.ID, err)
		}
		picks = append(picks, p)
	}
	return picks, nil
}

// SaveGraded records settlements. Only rows still PENDING change; a pick graded by an
// earlier run is left alone and not counted.
func (r *PickRepository) SaveGraded(ctx context.Context, graded []types.GradedPick) (int, error) {
	updated := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, g := range graded {
			if !g.Result.IsSettled() {
				continue
			}
			gradedAt := g.GradedAt.UTC()
			result := tx.Model(&PickRow{}).
				Where("id = ? AND status = ?", g.Pick.ID, types.PickPending).
				Updates(map[string]interface{}{
					"status":    g.Result,
					"units":     g.Units,
					"graded_at": &gradedAt,
				})
			if result.Error != nil {
				return fmt.Errorf("failed to grade pick %s: %w", g.Pick.ID, result.Error)
			}
			updated += int(result.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	r.logger.WithFields(logrus.Fields{
		"graded":  len(graded),
		"updated": updated,
	}).Debug("Saved graded picks")
	return updated, nil
}

// Record tallies settled picks for a sport with game dates in [from, to)
func (r *PickRepository) Record(ctx context.Context, sport types.Sport, from, to time.Time) ([]types.GradedPick, error) {
	var rows []PickRow
	err := r.db.WithContext(ctx).
		Where("sport = ? AND status <> ? AND game_date >= ? AND game_date < ?", sport, types.PickPending, from.UTC(), to.UTC()).
		Order("game_date ASC, game_id ASC, market ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query graded picks: %w", err)
	}

	out := make([]types.GradedPick, 0, len(rows))
	for _, row := range rows {
		p, err := row.pick()
		if err != nil {
			return nil, fmt.Errorf("failed to decode pick %s: %w", row.ID, err)
		}
		gp := types.GradedPick{Pick: p, Result: row.Status, Units: row.Units}
		if row.GradedAt != nil {
			gp.GradedAt = row.GradedAt.UTC()
		}
		out = append(out, gp)
	}
	return out, nil
}
