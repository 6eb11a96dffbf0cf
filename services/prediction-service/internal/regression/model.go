package regression

import (
	"fmt"
	"math"
	"time"

	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/apperrors"
)

// TrainingRow is one game's features and observed target
type TrainingRow struct {
	GameID   string             `json:"game_id"`
	GameDate time.Time          `json:"game_date"`
	Features map[string]float64 `json:"features"`
	Target   float64            `json:"target"`
}

// Model is a fitted ridge regression. It is never modified after Train returns.
type Model struct {
	Target       string    `json:"target"`
	FeatureNames []string  `json:"feature_names"`
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
	Lambda       float64   `json:"lambda"`
	TrainFrom    time.Time `json:"train_from"`
	TrainTo      time.Time `json:"train_to"`
	TrainRows    int       `json:"train_rows"`
}

// Train fits a model on rows, using featureNames in order as the design columns
func Train(target string, featureNames []string, rows []TrainingRow, lambda float64) (*Model, error) {
	if err := ValidateTarget(target); err != nil {
		return nil, err
	}
	if err := ValidateFeatureNames(featureNames); err != nil {
		return nil, err
	}
	if len(rows) < len(featureNames)+1 {
		return nil, &apperrors.InsufficientDataError{Stage: "training rows", Count: len(rows), Required: len(featureNames) + 1}
	}

	x := make([][]float64, len(rows))
	y := make([]float64, len(rows))
	from, to := rows[0].GameDate, rows[0].GameDate
	for i, row := range rows {
		vec := make([]float64, len(featureNames))
		for j, name := range featureNames {
			v, ok := row.Features[name]
			if !ok {
				return nil, fmt.Errorf("%w: row %s missing feature %q", apperrors.ErrInvalidInput, row.GameID, name)
			}
			vec[j] = v
		}
		x[i] = vec
		y[i] = row.Target
		if row.GameDate.Before(from) {
			from = row.GameDate
		}
		if row.GameDate.After(to) {
			to = row.GameDate
		}
	}

	sol, err := Fit(x, y, lambda)
	if err != nil {
		return nil, fmt.Errorf("failed to fit %s model: %w", target, err)
	}

	return &Model{
		Target:       target,
		FeatureNames: append([]string(nil), featureNames...),
		Coefficients: sol.Coefficients,
		Intercept:    sol.Intercept,
		Lambda:       lambda,
		TrainFrom:    from,
		TrainTo:      to,
		TrainRows:    len(rows),
	}, nil
}

// Validate checks a model loaded from storage before it is used to score games
func (m *Model) Validate() error {
	if m == nil {
		return apperrors.NewConfigError("regression model", "model is nil")
	}
	if err := ValidateTarget(m.Target); err != nil {
		return err
	}
	if err := ValidateFeatureNames(m.FeatureNames); err != nil {
		return err
	}
	if len(m.FeatureNames) != len(m.Coefficients) {
		return apperrors.NewConfigError("regression model", "%d features but %d coefficients", len(m.FeatureNames), len(m.Coefficients))
	}
	if math.IsNaN(m.Intercept) || math.IsInf(m.Intercept, 0) {
		return apperrors.NewConfigError("regression model", "intercept is not finite")
	}
	for i, c := range m.Coefficients {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return apperrors.NewConfigError("regression model", "coefficient for %s is not finite", m.FeatureNames[i])
		}
	}
	if m.Lambda < 0 {
		return apperrors.NewConfigError("regression model", "negative lambda %v", m.Lambda)
	}
	return nil
}

// Predict applies the model. ok is false when a required feature is missing.
func (m *Model) Predict(features map[string]float64) (float64, bool) {
	value := m.Intercept
	for i, name := range m.FeatureNames {
		v, ok := features[name]
		if !ok {
			return 0, false
		}
		value += m.Coefficients[i] * v
	}
	return value, true
}

// CoefficientNorm is the L2 norm of the coefficients
func (m *Model) CoefficientNorm() float64 {
	return Solution{Coefficients: m.Coefficients}.Norm()
}
