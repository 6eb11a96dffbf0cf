package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stitts-dev/pick-engine/shared/pkg/database"
	"github.com/stitts-dev/pick-engine/shared/types"
	"gorm.io/gorm"
)

// GameRepository stores ingested games and serves them back as completed history,
// upcoming slates and grading lookups
type GameRepository struct {
	db     *database.DB
	logger *logrus.Entry
}

func NewGameRepository(db *database.DB, logger *logrus.Logger) *GameRepository {
	return &GameRepository{db: db, logger: logger.WithField("component", "game_repository")}
}

// UpsertGames inserts new games and updates known ones. For a game not yet final the
// incoming record wins and only fills odds it lacks from the stored row. Once a stored
// game is final its scores and settled outcomes are never touched; incoming data can
// only fill odds fields that are still blank.
func (r *GameRepository) UpsertGames(ctx context.Context, games []types.GameContext) (int, error) {
	written := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, incoming := range games {
			if incoming.Game.ID == "" {
				return fmt.Errorf("game without an ID for %s %s vs %s", incoming.Game.Sport, incoming.Game.HomeTeam, incoming.Game.AwayTeam)
			}

			var existing GameRow
			err := tx.Where("id = ?", incoming.Game.ID).First(&existing).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				row := gameRowFrom(incoming)
				if err := tx.Create(&row).Error; err != nil {
					return fmt.Errorf("failed to insert game %s: %w", row.ID, err)
				}
			case err != nil:
				return fmt.Errorf("failed to load game %s: %w", incoming.Game.ID, err)
			default:
				merged := incoming
				if existing.Final {
					merged = existing.context()
					merged.Game = existing.record().MergeOdds(incoming.Game)
					if merged.Weather == nil {
						merged.Weather = incoming.Weather
					}
				} else {
					merged.Game = incoming.Game.MergeOdds(existing.record())
				}
				row := gameRowFrom(merged)
				row.CreatedAt = existing.CreatedAt
				if err := tx.Save(&row).Error; err != nil {
					return fmt.Errorf("failed to update game %s: %w", row.ID, err)
				}
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	r.logger.WithField("games", written).Debug("Upserted games")
	return written, nil
}

// GetCompletedGames returns final games with from <= game date < to, oldest first
func (r *GameRepository) GetCompletedGames(ctx context.Context, sport types.Sport, from, to time.Time) ([]types.GameRecord, error) {
	query := r.db.WithContext(ctx).
		Where("sport = ? AND final = ? AND game_date < ?", sport, true, to.UTC())
	if !from.IsZero() {
		query = query.Where("game_date >= ?", from.UTC())
	}

	var rows []GameRow
	if err := query.Order("game_date ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query completed games: %w", err)
	}

	games := make([]types.GameRecord, len(rows))
	for i, row := range rows {
		games[i] = row.record()
	}
	return games, nil
}

// GetUpcomingGames returns the games on date's UTC day that are not yet final
func (r *GameRepository) GetUpcomingGames(ctx context.Context, sport types.Sport, date time.Time) ([]types.GameContext, error) {
	day := types.Day(date)

	var rows []GameRow
	err := r.db.WithContext(ctx).
		Where("sport = ? AND final = ? AND game_date >= ? AND game_date < ?", sport, false, day, day.AddDate(0, 0, 1)).
		Order("game_date ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query upcoming games: %w", err)
	}

	games := make([]types.GameContext, len(rows))
	for i, row := range rows {
		games[i] = row.context()
	}
	return games, nil
}

func (r *GameRepository) GetGamesByID(ctx context.Context, ids []string) ([]types.GameRecord, error) {
	if len(ids) == 0 {
		return []types.GameRecord{}, nil
	}

	var rows []GameRow
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("game_date ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query games by id: %w", err)
	}

	games := make([]types.GameRecord, len(rows))
	for i, row := range rows {
		games[i] = row.record()
	}
	return games, nil
}
