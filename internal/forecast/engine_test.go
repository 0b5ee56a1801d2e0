package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agroforecast/internal/timeseries"
)

// meanRegressor is a deterministic stand-in for a trained model: it
// predicts the column-wise mean of the window plus a small drift, so
// recursive behavior is fully reproducible by hand.
type meanRegressor struct{}

func (meanRegressor) Predict(windows [][][]float64) ([][]float64, error) {
	out := make([][]float64, len(windows))
	for i, w := range windows {
		pred := make([]float64, len(w[0]))
		for _, row := range w {
			for j, v := range row {
				pred[j] += v
			}
		}
		for j := range pred {
			pred[j] = pred[j]/float64(len(w)) + 0.01
		}
		out[i] = pred
	}
	return out, nil
}

func fittedScaler(t *testing.T) *timeseries.MinMaxScaler {
	t.Helper()
	s := timeseries.NewMinMaxScaler()
	require.NoError(t, s.Fit([][]float64{{0, 0}, {10, 1}}))
	return s
}

func testWindow() [][]float64 {
	return [][]float64{
		{0.1, 0.5},
		{0.2, 0.6},
		{0.3, 0.7},
	}
}

func TestNewEngineValidation(t *testing.T) {
	s := fittedScaler(t)
	features := timeseries.FeatureSet{"QV2M", "GWETROOT"}

	_, err := NewEngine(nil, s, features)
	assert.Error(t, err)

	_, err = NewEngine(meanRegressor{}, timeseries.NewMinMaxScaler(), features)
	assert.ErrorIs(t, err, timeseries.ErrScalerNotFitted)

	_, err = NewEngine(meanRegressor{}, s, timeseries.FeatureSet{"QV2M"})
	assert.Error(t, err, "scaler width must match feature count")
}

func TestPredictNextPhysicalUnits(t *testing.T) {
	s := fittedScaler(t)
	features := timeseries.FeatureSet{"QV2M", "GWETROOT"}
	e, err := NewEngine(meanRegressor{}, s, features)
	require.NoError(t, err)

	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	rec, err := e.PredictNext(testWindow(), date)
	require.NoError(t, err)

	// Scaled prediction is mean + 0.01 per column: (0.21, 0.61);
	// inverse over fitted bounds (0..10, 0..1) gives (2.1, 0.61).
	assert.Equal(t, date, rec.Date)
	qv, ok := rec.Value("QV2M")
	require.True(t, ok)
	assert.InDelta(t, 2.1, qv, 1e-12)
	gw, ok := rec.Value("GWETROOT")
	require.True(t, ok)
	assert.InDelta(t, 0.61, gw, 1e-12)
	assert.Nil(t, rec.Water)
}

func TestMultiStepMatchesManualReplay(t *testing.T) {
	s := fittedScaler(t)
	features := timeseries.FeatureSet{"QV2M", "GWETROOT"}
	e, err := NewEngine(meanRegressor{}, s, features)
	require.NoError(t, err)

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	const steps = 3

	records, err := e.MultiStep(testWindow(), start, steps)
	require.NoError(t, err)
	require.Len(t, records, steps)

	// Replay manually: single-step predictions feeding the window with
	// the raw scaled output each time. Results must be identical; any
	// divergence means the engine round-tripped through the scaler when
	// advancing the window.
	reg := meanRegressor{}
	window := testWindow()
	for i := 0; i < steps; i++ {
		preds, err := reg.Predict([][][]float64{window})
		require.NoError(t, err)
		scaled := preds[0]

		want, err := s.InverseTransformRow(scaled)
		require.NoError(t, err)
		assert.Equal(t, want, records[i].Values, "step %d", i+1)

		next := make([][]float64, len(window))
		copy(next, window[1:])
		next[len(next)-1] = scaled
		window = next
	}
}

func TestMultiStepDatesStrictlyIncrease(t *testing.T) {
	s := fittedScaler(t)
	e, err := NewEngine(meanRegressor{}, s, timeseries.FeatureSet{"QV2M", "GWETROOT"})
	require.NoError(t, err)

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	records, err := e.MultiStep(testWindow(), start, 4)
	require.NoError(t, err)

	prev := start
	for _, rec := range records {
		assert.True(t, rec.Date.After(prev))
		prev = rec.Date
	}
	assert.Equal(t, start.AddDate(0, 0, 1), records[0].Date, "day 1 comes first")
}

func TestMultiStepLeavesInputWindowIntact(t *testing.T) {
	s := fittedScaler(t)
	e, err := NewEngine(meanRegressor{}, s, timeseries.FeatureSet{"QV2M", "GWETROOT"})
	require.NoError(t, err)

	window := testWindow()
	_, err = e.MultiStep(window, time.Now(), 3)
	require.NoError(t, err)
	assert.Equal(t, testWindow(), window)
}

func TestMultiStepInvalidHorizon(t *testing.T) {
	s := fittedScaler(t)
	e, err := NewEngine(meanRegressor{}, s, timeseries.FeatureSet{"QV2M", "GWETROOT"})
	require.NoError(t, err)

	_, err = e.MultiStep(testWindow(), time.Now(), 0)
	assert.Error(t, err)
}

func TestRecordJSONShape(t *testing.T) {
	rec := Record{
		Date:     time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
		Features: timeseries.FeatureSet{"QV2M", "GWETROOT"},
		Values:   []float64{12.5, 0.42},
	}
	rec = rec.WithWater(WaterBalance{DepletionFrac: 0.58, NetMM: 8, GrossMM: 8.89})

	data, err := rec.MarshalJSON()
	require.NoError(t, err)

	s := string(data)
	assert.Contains(t, s, `"date":"2024-03-02"`)
	assert.Contains(t, s, `"QV2M":12.5`)
	assert.Contains(t, s, `"GWETROOT":0.42`)
	assert.Contains(t, s, `"depletion_frac":0.58`)
	assert.Contains(t, s, `"irrigation_net_mm":8`)
	assert.Contains(t, s, `"irrigation_gross_mm":8.89`)
}
