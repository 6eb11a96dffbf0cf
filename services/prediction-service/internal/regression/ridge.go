package regression

import (
	"fmt"
	"math"

	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/apperrors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// PivotTolerance is the pivot magnitude below which a column is treated as degenerate.
// A degenerate column's coefficient resolves to zero instead of failing the fit. This keeps
// collinear feature sets usable but is not a rank diagnostic: callers that need one should
// inspect Solution.Degenerate.
const PivotTolerance = 1e-12

// Solution is the result of a ridge fit
type Solution struct {
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
	// Degenerate lists feature indices whose pivot fell below PivotTolerance
	Degenerate []int `json:"degenerate,omitempty"`
}

// Norm is the L2 norm of the coefficients, intercept excluded
func (s Solution) Norm() float64 {
	if len(s.Coefficients) == 0 {
		return 0
	}
	return floats.Norm(s.Coefficients, 2)
}

// Fit solves min ||y - b0 - Xb||² + λ||b||² with the intercept left unpenalised.
// λ = 0 is ordinary least squares.
func Fit(x [][]float64, y []float64, lambda float64) (Solution, error) {
	if math.IsNaN(lambda) || math.IsInf(lambda, 0) || lambda < 0 {
		return Solution{}, apperrors.NewConfigError("ridge solver", "lambda must be a finite value >= 0, got %v", lambda)
	}
	if len(x) == 0 {
		return Solution{}, fmt.Errorf("%w: design matrix has no rows", apperrors.ErrInvalidInput)
	}
	if len(y) != len(x) {
		return Solution{}, fmt.Errorf("%w: %d rows but %d targets", apperrors.ErrInvalidInput, len(x), len(y))
	}

	n, p := len(x), len(x[0])
	for i, row := range x {
		if len(row) != p {
			return Solution{}, fmt.Errorf("%w: row %d has %d columns, expected %d", apperrors.ErrInvalidInput, i, len(row), p)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return Solution{}, fmt.Errorf("%w: non-finite value at row %d column %d", apperrors.ErrInvalidInput, i, j)
			}
		}
		if math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			return Solution{}, fmt.Errorf("%w: non-finite target at row %d", apperrors.ErrInvalidInput, i)
		}
	}
	if n < p+1 {
		return Solution{}, &apperrors.InsufficientDataError{Stage: "ridge fit rows", Count: n, Required: p + 1}
	}

	// Step 1: augment with a leading bias column
	cols := p + 1
	design := mat.NewDense(n, cols, nil)
	for i, row := range x {
		design.Set(i, 0, 1)
		for j, v := range row {
			design.Set(i, j+1, v)
		}
	}

	// Step 2: normal equations XᵗX + λI (bias untouched) and Xᵗy
	var gram mat.Dense
	gram.Mul(design.T(), design)
	for j := 1; j < cols; j++ {
		gram.Set(j, j, gram.At(j, j)+lambda)
	}
	var moment mat.VecDense
	moment.MulVec(design.T(), mat.NewVecDense(n, append([]float64(nil), y...)))

	a := make([][]float64, cols)
	b := make([]float64, cols)
	for i := 0; i < cols; i++ {
		a[i] = mat.Row(nil, i, &gram)
		b[i] = moment.AtVec(i)
	}

	// Step 3: solve
	beta, degenerate := solvePartialPivot(a, b)

	sol := Solution{
		Intercept:    beta[0],
		Coefficients: beta[1:],
	}
	for _, col := range degenerate {
		if col == 0 {
			// a degenerate bias column only happens with an all-zero design; the intercept is 0
			continue
		}
		sol.Degenerate = append(sol.Degenerate, col-1)
	}
	return sol, nil
}

// solvePartialPivot solves a·x = b in place by Gaussian elimination, swapping in the row with
// the largest absolute pivot for each column. Columns whose best pivot is below PivotTolerance
// are pinned to zero.
func solvePartialPivot(a [][]float64, b []float64) ([]float64, []int) {
	m := len(b)
	degenerate := make([]bool, m)
	var degenerateCols []int

	for k := 0; k < m; k++ {
		pivotRow := k
		pivotAbs := math.Abs(a[k][k])
		for i := k + 1; i < m; i++ {
			if v := math.Abs(a[i][k]); v > pivotAbs {
				pivotRow, pivotAbs = i, v
			}
		}

		if pivotAbs < PivotTolerance {
			// Pin x_k = 0: row k becomes the identity equation for column k
			degenerate[k] = true
			degenerateCols = append(degenerateCols, k)
			for j := range a[k] {
				a[k][j] = 0
			}
			a[k][k] = 1
			b[k] = 0
			for i := k + 1; i < m; i++ {
				a[i][k] = 0
			}
			continue
		}

		if pivotRow != k {
			a[k], a[pivotRow] = a[pivotRow], a[k]
			b[k], b[pivotRow] = b[pivotRow], b[k]
		}

		for i := k + 1; i < m; i++ {
			factor := a[i][k] / a[k][k]
			if factor == 0 {
				continue
			}
			for j := k; j < m; j++ {
				a[i][j] -= factor * a[k][j]
			}
			b[i] -= factor * b[k]
		}
	}

	x := make([]float64, m)
	for i := m - 1; i >= 0; i-- {
		if degenerate[i] {
			continue
		}
		sum := b[i]
		for j := i + 1; j < m; j++ {
			sum -= a[i][j] * x[j]
		}
		x[i] = sum / a[i][i]
	}
	return x, degenerateCols
}
