// Package ml holds the small numeric models the weather components are built
// on: a standardization scaler, k-means, multinomial logistic regression and
// an isolation forest. Fitted models are read-only and safe for concurrent use.
package ml

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrDimensionMismatch is returned when a vector's length differs from the fitted dimensionality.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrInvalidWindowSize is returned when a sliding-window model gets the wrong number of values.
	ErrInvalidWindowSize = errors.New("invalid window size")
	// ErrInsufficientData is returned when there is not enough data to fit a model.
	ErrInsufficientData = errors.New("insufficient training data")
	// ErrNotFitted is returned when a model is used before it was fit or loaded.
	ErrNotFitted = errors.New("model not fitted")
)

// Scaler standardizes each feature column to zero mean and unit variance.
type Scaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// FitScaler computes per-column mean and population standard deviation.
// Columns with zero variance get a std of 1 so they pass through centered.
func FitScaler(x [][]float64) (*Scaler, error) {
	dim, err := checkMatrix(x)
	if err != nil {
		return nil, err
	}

	mean := make([]float64, dim)
	std := make([]float64, dim)
	col := make([]float64, len(x))
	for j := 0; j < dim; j++ {
		for i, row := range x {
			col[i] = row[j]
		}
		mean[j], std[j] = stat.PopMeanStdDev(col, nil)
		// Rounding noise on a constant column counts as zero variance.
		if std[j] <= 1e-12*math.Max(1, math.Abs(mean[j])) {
			std[j] = 1
		}
	}

	return &Scaler{Mean: mean, Std: std}, nil
}

// Dim returns the fitted dimensionality.
func (s *Scaler) Dim() int {
	return len(s.Mean)
}

// Transform returns (v - mean) / std.
func (s *Scaler) Transform(v []float64) ([]float64, error) {
	if err := s.check(v); err != nil {
		return nil, err
	}
	out := make([]float64, len(v))
	for j, x := range v {
		out[j] = (x - s.Mean[j]) / s.Std[j]
	}
	return out, nil
}

// TransformMatrix applies Transform to every row.
func (s *Scaler) TransformMatrix(x [][]float64) ([][]float64, error) {
	out := make([][]float64, len(x))
	for i, row := range x {
		t, err := s.Transform(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = t
	}
	return out, nil
}

// Inverse returns v * std + mean.
func (s *Scaler) Inverse(v []float64) ([]float64, error) {
	if err := s.check(v); err != nil {
		return nil, err
	}
	out := make([]float64, len(v))
	for j, x := range v {
		out[j] = x*s.Std[j] + s.Mean[j]
	}
	return out, nil
}

// Validate checks a loaded scaler for internal consistency.
func (s *Scaler) Validate() error {
	if len(s.Mean) == 0 || len(s.Mean) != len(s.Std) {
		return fmt.Errorf("scaler: %w: mean has %d values, std has %d", ErrDimensionMismatch, len(s.Mean), len(s.Std))
	}
	for j, sd := range s.Std {
		if sd <= 0 || math.IsNaN(sd) || math.IsInf(sd, 0) {
			return fmt.Errorf("scaler: invalid std %v for feature %d", sd, j)
		}
	}
	return nil
}

func (s *Scaler) check(v []float64) error {
	if s == nil || len(s.Mean) == 0 {
		return ErrNotFitted
	}
	if len(v) != len(s.Mean) {
		return fmt.Errorf("%w: expected %d features, got %d", ErrDimensionMismatch, len(s.Mean), len(v))
	}
	return nil
}

// checkMatrix verifies x is non-empty and rectangular and returns its column count.
func checkMatrix(x [][]float64) (int, error) {
	if len(x) == 0 || len(x[0]) == 0 {
		return 0, ErrInsufficientData
	}
	dim := len(x[0])
	for i, row := range x {
		if len(row) != dim {
			return 0, fmt.Errorf("%w: row %d has %d features, expected %d", ErrDimensionMismatch, i, len(row), dim)
		}
	}
	return dim, nil
}

func squaredDistance(a, b []float64) float64 {
	d := floats.Distance(a, b, 2)
	return d * d
}
