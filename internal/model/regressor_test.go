package model

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agroforecast/internal/timeseries"
)

// syntheticSet builds sequences from a smooth two-feature signal so a
// small network can actually learn the next-step mapping.
func syntheticSet(n, steps int) (*timeseries.ChronoSplit, error) {
	table := &timeseries.Table{Features: timeseries.FeatureSet{"a", "b"}}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		x := float64(i) / 10
		table.Rows = append(table.Rows, timeseries.Observation{
			Date:   base.AddDate(0, 0, i),
			Values: []float64{math.Sin(x), math.Cos(x)},
		})
	}

	scaler := timeseries.NewMinMaxScaler()
	if err := scaler.Fit(table.Values()); err != nil {
		return nil, err
	}
	engine, err := timeseries.NewWindowEngine(steps, scaler)
	if err != nil {
		return nil, err
	}
	set, err := engine.TrainingSequences(table)
	if err != nil {
		return nil, err
	}
	return timeseries.SplitChronological(set, 0.1, 0.1)
}

func TestFitLearnsAndReportsHistory(t *testing.T) {
	split, err := syntheticSet(120, 8)
	require.NoError(t, err)

	reg, err := NewWindowRegressor(8, 2)
	require.NoError(t, err)

	cfg := TrainConfig{Epochs: 30, LearningRate: 0.05, Seed: 7}
	history, err := reg.Fit(split.Train, split.Val, cfg)
	require.NoError(t, err)
	require.Len(t, history, cfg.Epochs)

	for i, rec := range history {
		assert.Equal(t, i+1, rec.Epoch)
		assert.GreaterOrEqual(t, rec.ValMAE, 0.0)
	}

	// Training on a smooth signal must improve on the initial random
	// network by a wide margin.
	first := history[0]
	last := history[len(history)-1]
	assert.Less(t, last.TrainLoss, first.TrainLoss)
	assert.Less(t, last.ValLoss, first.ValLoss)
}

func TestPredictShapes(t *testing.T) {
	split, err := syntheticSet(80, 6)
	require.NoError(t, err)

	reg, err := NewWindowRegressor(6, 2)
	require.NoError(t, err)
	_, err = reg.Fit(split.Train, split.Val, TrainConfig{Epochs: 3, LearningRate: 0.05, Seed: 1})
	require.NoError(t, err)

	preds, err := reg.Predict(split.Test.Windows)
	require.NoError(t, err)
	require.Len(t, preds, split.Test.Len())
	for _, p := range preds {
		assert.Len(t, p, 2)
	}
}

func TestPredictBeforeFit(t *testing.T) {
	reg, err := NewWindowRegressor(4, 2)
	require.NoError(t, err)

	_, err = reg.Predict(nil)
	assert.ErrorIs(t, err, ErrNotTrained)
}

func TestPredictRejectsWrongShape(t *testing.T) {
	split, err := syntheticSet(60, 5)
	require.NoError(t, err)

	reg, err := NewWindowRegressor(5, 2)
	require.NoError(t, err)
	_, err = reg.Fit(split.Train, split.Val, TrainConfig{Epochs: 2, LearningRate: 0.05, Seed: 1})
	require.NoError(t, err)

	_, err = reg.Predict([][][]float64{{{0.1, 0.2}}})
	assert.Error(t, err, "window with wrong row count must be rejected")
}

func TestEvaluateScaledMetrics(t *testing.T) {
	split, err := syntheticSet(120, 8)
	require.NoError(t, err)

	reg, err := NewWindowRegressor(8, 2)
	require.NoError(t, err)
	_, err = reg.Fit(split.Train, split.Val, TrainConfig{Epochs: 20, LearningRate: 0.05, Seed: 3})
	require.NoError(t, err)

	eval, err := reg.Evaluate(split.Test)
	require.NoError(t, err)
	require.Len(t, eval.Predictions, split.Test.Len())

	// RMSE dominates MAE for any error distribution.
	assert.GreaterOrEqual(t, eval.RMSE, eval.MAE)
	assert.Less(t, eval.RMSE, 1.0, "scaled-space RMSE should be well under the unit range")
}

func TestFitValidatesConfig(t *testing.T) {
	split, err := syntheticSet(60, 5)
	require.NoError(t, err)

	reg, err := NewWindowRegressor(5, 2)
	require.NoError(t, err)

	_, err = reg.Fit(split.Train, split.Val, TrainConfig{Epochs: 0, LearningRate: 0.05})
	assert.Error(t, err)
	_, err = reg.Fit(split.Train, split.Val, TrainConfig{Epochs: 5, LearningRate: 0})
	assert.Error(t, err)
}

func TestNetworkValidation(t *testing.T) {
	_, err := NewWindowRegressor(0, 2)
	assert.Error(t, err)
	_, err = NewWindowRegressor(5, 0)
	assert.Error(t, err)
}
