package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/regression"
	"github.com/stitts-dev/pick-engine/shared/pkg/database"
	"github.com/stitts-dev/pick-engine/shared/types"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EloRepository holds the rating history of the latest full replay per sport
type EloRepository struct {
	db     *database.DB
	logger *logrus.Entry
}

func NewEloRepository(db *database.DB, logger *logrus.Logger) *EloRepository {
	return &EloRepository{db: db, logger: logger.WithField("component", "elo_repository")}
}

// ReplaceSport swaps the sport's stored history for a new replay in one transaction.
// Readers see either the old history or the new one, never a mix.
func (r *EloRepository) ReplaceSport(ctx context.Context, sport types.Sport, history []types.EloRating) error {
	rows := make([]EloRow, len(history))
	for i, h := range history {
		rows[i] = EloRow{
			Sport:  sport,
			Team:   h.Team,
			Seq:    i,
			Date:   h.Date.UTC(),
			Rating: h.Rating,
			GameID: h.GameID,
		}
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("sport = ?", sport).Delete(&EloRow{}).Error; err != nil {
			return fmt.Errorf("failed to clear %s ratings: %w", sport, err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, 500).Error; err != nil {
			return fmt.Errorf("failed to insert %s ratings: %w", sport, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.WithFields(logrus.Fields{
		"sport":   sport,
		"ratings": len(rows),
	}).Info("Replaced Elo history")
	return nil
}

// History returns the stored ratings in replay order
func (r *EloRepository) History(ctx context.Context, sport types.Sport) ([]types.EloRating, error) {
	var rows []EloRow
	if err := r.db.WithContext(ctx).Where("sport = ?", sport).Order("seq ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query %s ratings: %w", sport, err)
	}

	out := make([]types.EloRating, len(rows))
	for i, row := range rows {
		out[i] = types.EloRating{Team: row.Team, Sport: row.Sport, Date: row.Date.UTC(), Rating: row.Rating, GameID: row.GameID}
	}
	return out, nil
}

// ModelRepository stores promoted regression models
type ModelRepository struct {
	db     *database.DB
	logger *logrus.Entry
}

func NewModelRepository(db *database.DB, logger *logrus.Logger) *ModelRepository {
	return &ModelRepository{db: db, logger: logger.WithField("component", "model_repository")}
}

// SaveModel validates and stores a model; it becomes the live model for its sport and target
func (r *ModelRepository) SaveModel(ctx context.Context, sport types.Sport, name string, model *regression.Model) error {
	if model == nil {
		return fmt.Errorf("nil model")
	}
	if err := model.Validate(); err != nil {
		return err
	}

	row := ModelRow{
		Sport:  sport,
		Target: model.Target,
		Name:   name,
		Model:  datatypes.NewJSONType(*model),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to save model: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"sport":    sport,
		"target":   model.Target,
		"name":     name,
		"features": model.FeatureNames,
	}).Info("Promoted regression model")
	return nil
}

// LatestModel returns the most recently saved model, or nil when there is none
func (r *ModelRepository) LatestModel(ctx context.Context, sport types.Sport, target string) (*regression.Model, error) {
	var row ModelRow
	err := r.db.WithContext(ctx).
		Where("sport = ? AND target = ?", sport, target).
		Order("id DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s %s model: %w", sport, target, err)
	}

	model := row.Model.Data()
	return &model, nil
}
