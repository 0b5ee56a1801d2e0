package timeseries

import (
	"errors"
	"fmt"
)

// ErrScalerNotFitted is returned when a transform is requested before Fit.
// A scaler is fit exactly once per trained model; inference code must load
// and reuse the fitted bounds, never fit its own.
var ErrScalerNotFitted = errors.New("scaler not fitted")

// MinMaxScaler maps each feature column into [0, 1] using bounds learned
// from a fit corpus. The bounds are persisted together with the trained
// model; transforming with a scaler fitted on different data silently
// corrupts forecasts, so the fitted state is explicit and Fit-once.
//
// A degenerate column (max == min) transforms to constant 0 and
// inverse-transforms back to the shared bound.
type MinMaxScaler struct {
	Mins   []float64 `json:"mins"`
	Maxs   []float64 `json:"maxs"`
	Fitted bool      `json:"fitted"`
}

// NewMinMaxScaler returns an unfitted scaler.
func NewMinMaxScaler() *MinMaxScaler {
	return &MinMaxScaler{}
}

// Fit learns per-column min/max bounds from the sample. It fails on an
// empty sample and on a previously fitted scaler.
func (s *MinMaxScaler) Fit(values [][]float64) error {
	if s.Fitted {
		return errors.New("scaler already fitted; bounds are fixed for the model lifetime")
	}
	if len(values) == 0 {
		return fmt.Errorf("fit: %w", ErrEmptyTable)
	}

	width := len(values[0])
	mins := make([]float64, width)
	maxs := make([]float64, width)
	copy(mins, values[0])
	copy(maxs, values[0])

	for _, row := range values[1:] {
		if len(row) != width {
			return fmt.Errorf("fit: ragged sample, expected %d columns, got %d", width, len(row))
		}
		for j, v := range row {
			if v < mins[j] {
				mins[j] = v
			}
			if v > maxs[j] {
				maxs[j] = v
			}
		}
	}

	s.Mins = mins
	s.Maxs = maxs
	s.Fitted = true
	return nil
}

// Transform maps each value to (v - min) / (max - min) using the fitted
// bounds. Degenerate columns map to 0.
func (s *MinMaxScaler) Transform(values [][]float64) ([][]float64, error) {
	if !s.Fitted {
		return nil, ErrScalerNotFitted
	}
	out := make([][]float64, len(values))
	for i, row := range values {
		if len(row) != len(s.Mins) {
			return nil, fmt.Errorf("transform: expected %d columns, got %d", len(s.Mins), len(row))
		}
		scaled := make([]float64, len(row))
		for j, v := range row {
			spread := s.Maxs[j] - s.Mins[j]
			if spread == 0 {
				scaled[j] = 0
				continue
			}
			scaled[j] = (v - s.Mins[j]) / spread
		}
		out[i] = scaled
	}
	return out, nil
}

// TransformRow scales a single row.
func (s *MinMaxScaler) TransformRow(row []float64) ([]float64, error) {
	out, err := s.Transform([][]float64{row})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// InverseTransform is the exact algebraic inverse of Transform for
// non-degenerate columns; degenerate columns recover the shared bound.
func (s *MinMaxScaler) InverseTransform(scaled [][]float64) ([][]float64, error) {
	if !s.Fitted {
		return nil, ErrScalerNotFitted
	}
	out := make([][]float64, len(scaled))
	for i, row := range scaled {
		if len(row) != len(s.Mins) {
			return nil, fmt.Errorf("inverse transform: expected %d columns, got %d", len(s.Mins), len(row))
		}
		orig := make([]float64, len(row))
		for j, v := range row {
			orig[j] = v*(s.Maxs[j]-s.Mins[j]) + s.Mins[j]
		}
		out[i] = orig
	}
	return out, nil
}

// InverseTransformRow unscales a single row.
func (s *MinMaxScaler) InverseTransformRow(row []float64) ([]float64, error) {
	out, err := s.InverseTransform([][]float64{row})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// Width returns the number of feature columns the scaler was fitted on.
func (s *MinMaxScaler) Width() int { return len(s.Mins) }
