package forecast

import (
	"fmt"
	"time"

	"agroforecast/internal/model"
	"agroforecast/internal/timeseries"
)

// Engine turns scaled windows into forecasts in physical units. It owns a
// regressor and the scaler that regressor was trained with; the pair is
// loaded together and never mixed across models.
type Engine struct {
	reg      model.Regressor
	scaler   *timeseries.MinMaxScaler
	features timeseries.FeatureSet
}

// NewEngine wires a trained regressor to its matching fitted scaler.
func NewEngine(reg model.Regressor, scaler *timeseries.MinMaxScaler, features timeseries.FeatureSet) (*Engine, error) {
	if reg == nil {
		return nil, fmt.Errorf("forecast engine requires a regressor")
	}
	if scaler == nil || !scaler.Fitted {
		return nil, timeseries.ErrScalerNotFitted
	}
	if scaler.Width() != len(features) {
		return nil, fmt.Errorf("scaler width %d does not match %d features", scaler.Width(), len(features))
	}
	return &Engine{reg: reg, scaler: scaler, features: features}, nil
}

// Features returns the feature set records are parameterized by.
func (e *Engine) Features() timeseries.FeatureSet { return e.features }

// PredictNext forecasts the single day following the given scaled window
// and returns the prediction in original physical units.
func (e *Engine) PredictNext(window [][]float64, date time.Time) (Record, error) {
	preds, err := e.reg.Predict([][][]float64{window})
	if err != nil {
		return Record{}, fmt.Errorf("predict next: %w", err)
	}
	values, err := e.scaler.InverseTransformRow(preds[0])
	if err != nil {
		return Record{}, fmt.Errorf("predict next: %w", err)
	}
	return Record{Date: date, Features: e.features, Values: values}, nil
}

// MultiStep produces a recursive forecast of the given horizon, day 1
// first. Each step's scaled prediction is appended to a fixed-length
// rolling buffer (oldest row dropped) to form the next input; the buffer
// always advances on the scaled value, never on a value that round-tripped
// through inverse and forward scaling. Because each step feeds on the
// previous step's output, error grows with the horizon; that is a property
// of recursive forecasting, not a defect.
func (e *Engine) MultiStep(window [][]float64, start time.Time, steps int) ([]Record, error) {
	if steps < 1 {
		return nil, fmt.Errorf("multi-step: horizon must be >= 1, got %d", steps)
	}

	// Work on a copy so the caller's window is left untouched.
	rolling := make([][]float64, len(window))
	copy(rolling, window)

	records := make([]Record, 0, steps)
	for day := 1; day <= steps; day++ {
		preds, err := e.reg.Predict([][][]float64{rolling})
		if err != nil {
			return nil, fmt.Errorf("multi-step day %d: %w", day, err)
		}
		scaled := preds[0]

		values, err := e.scaler.InverseTransformRow(scaled)
		if err != nil {
			return nil, fmt.Errorf("multi-step day %d: %w", day, err)
		}
		records = append(records, Record{
			Date:     start.AddDate(0, 0, day),
			Features: e.features,
			Values:   values,
		})

		// Advance the rolling window with the scaled prediction.
		copy(rolling, rolling[1:])
		rolling[len(rolling)-1] = scaled
	}
	return records, nil
}
