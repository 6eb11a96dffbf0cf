package regression

import (
	"errors"
	"math"
	"testing"

	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitMatchesClosedFormOLS(t *testing.T) {
	// Simple regression: slope = Sxy/Sxx = 19.3/10, intercept = ȳ - slope·x̄
	x := [][]float64{{1}, {2}, {3}, {4}, {5}}
	y := []float64{2.2, 3.9, 6.1, 8.0, 9.8}

	sol, err := Fit(x, y, 0)
	require.NoError(t, err)
	require.Len(t, sol.Coefficients, 1)
	assert.InDelta(t, 1.93, sol.Coefficients[0], 1e-6)
	assert.InDelta(t, 0.21, sol.Intercept, 1e-6)
	assert.Empty(t, sol.Degenerate)
}

func TestFitRecoversExactLinearRelationship(t *testing.T) {
	x := [][]float64{
		{1, 4}, {2, 1}, {3, 7}, {4, 2}, {5, 5}, {6, 3}, {7, 9},
	}
	y := make([]float64, len(x))
	for i, row := range x {
		y[i] = 1.5 + 2*row[0] - 0.75*row[1]
	}

	sol, err := Fit(x, y, 0)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, sol.Intercept, 1e-6)
	assert.InDelta(t, 2.0, sol.Coefficients[0], 1e-6)
	assert.InDelta(t, -0.75, sol.Coefficients[1], 1e-6)
}

func TestFitNormShrinksAsLambdaGrows(t *testing.T) {
	x := [][]float64{
		{1.0, 1.1}, {2.0, 1.9}, {3.0, 3.2}, {4.0, 3.8}, {5.0, 5.3}, {6.0, 5.9}, {7.0, 7.2}, {8.0, 7.7},
	}
	y := []float64{3.1, 5.2, 6.8, 9.1, 11.3, 12.7, 15.2, 16.8}

	previous := math.Inf(1)
	for _, lambda := range []float64{0, 0.01, 0.1, 1, 5, 10, 100, 1000} {
		sol, err := Fit(x, y, lambda)
		require.NoError(t, err)
		norm := sol.Norm()
		assert.LessOrEqual(t, norm, previous+1e-12, "lambda %v", lambda)
		previous = norm
	}
}

func TestFitDegenerateColumnResolvesToZero(t *testing.T) {
	// second column duplicates the first, so XᵗX is singular at λ=0
	x := [][]float64{{1, 1}, {2, 2}, {3, 3}, {4, 4}}
	y := []float64{4, 7, 10, 13}

	sol, err := Fit(x, y, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, sol.Degenerate)
	assert.InDelta(t, 1.0, sol.Intercept, 1e-9)
	assert.InDelta(t, 3.0, sol.Coefficients[0], 1e-9)
	assert.Equal(t, 0.0, sol.Coefficients[1])
}

func TestFitIsDeterministic(t *testing.T) {
	x := [][]float64{{1, 0.5}, {2, 0.1}, {3, 0.9}, {4, 0.4}, {5, 0.7}}
	y := []float64{1, 3, 2, 5, 4}

	first, err := Fit(x, y, 0.5)
	require.NoError(t, err)
	second, err := Fit(x, y, 0.5)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestFitDoesNotMutateInputs(t *testing.T) {
	x := [][]float64{{1}, {2}, {3}}
	y := []float64{1, 2, 4}

	_, err := Fit(x, y, 1)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1}, {2}, {3}}, x)
	assert.Equal(t, []float64{1, 2, 4}, y)
}

func TestFitRejectsBadInput(t *testing.T) {
	tests := []struct {
		name   string
		x      [][]float64
		y      []float64
		lambda float64
		target error
	}{
		{name: "empty matrix", x: nil, y: nil, target: apperrors.ErrInvalidInput},
		{name: "ragged rows", x: [][]float64{{1, 2}, {3}, {4, 5}, {6, 7}}, y: []float64{1, 2, 3, 4}, target: apperrors.ErrInvalidInput},
		{name: "target length mismatch", x: [][]float64{{1}, {2}, {3}}, y: []float64{1, 2}, target: apperrors.ErrInvalidInput},
		{name: "non-finite value", x: [][]float64{{1}, {math.NaN()}, {3}}, y: []float64{1, 2, 3}, target: apperrors.ErrInvalidInput},
		{name: "too few rows", x: [][]float64{{1, 2}, {3, 4}}, y: []float64{1, 2}, target: apperrors.ErrInsufficientTrainingData},
		{name: "negative lambda", x: [][]float64{{1}, {2}, {3}}, y: []float64{1, 2, 3}, lambda: -1, target: apperrors.ErrInvalidConfiguration},
		{name: "nan lambda", x: [][]float64{{1}, {2}, {3}}, y: []float64{1, 2, 3}, lambda: math.NaN(), target: apperrors.ErrInvalidConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Fit(tt.x, tt.y, tt.lambda)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.target), "got %v", err)
		})
	}
}

func TestFitInsufficientRowsCarriesCount(t *testing.T) {
	_, err := Fit([][]float64{{1, 2, 3}, {4, 5, 6}}, []float64{1, 2}, 0)

	var insufficient *apperrors.InsufficientDataError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, 2, insufficient.Count)
	assert.Equal(t, 4, insufficient.Required)
}
