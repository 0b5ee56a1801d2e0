package timeseries

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

// makeTable builds a table of n rows with two features that increase
// linearly, so every scaled value is recomputable by hand.
func makeTable(n int) *Table {
	t := &Table{Features: FeatureSet{"QV2M", "GWETROOT"}}
	for i := 0; i < n; i++ {
		t.Rows = append(t.Rows, Observation{
			Date:   day(i),
			Values: []float64{float64(i), float64(2 * i)},
		})
	}
	return t
}

func fittedEngine(t *testing.T, table *Table, steps int) *WindowEngine {
	t.Helper()
	s := NewMinMaxScaler()
	require.NoError(t, s.Fit(table.Values()))
	e, err := NewWindowEngine(steps, s)
	require.NoError(t, err)
	return e
}

func TestTrainingSequencesShape(t *testing.T) {
	const L, k = 12, 4
	table := makeTable(L)
	e := fittedEngine(t, table, k)

	set, err := e.TrainingSequences(table)
	require.NoError(t, err)

	require.Equal(t, L-k, set.Len())
	require.Len(t, set.Targets, L-k)
	require.Len(t, set.Dates, L-k)
	for _, w := range set.Windows {
		require.Len(t, w, k)
		for _, row := range w {
			require.Len(t, row, 2)
		}
	}

	// windows[i] followed by targets[i] reconstructs the scaled rows
	// table[i : i+k+1].
	scaled, err := e.scaler.Transform(table.Values())
	require.NoError(t, err)
	for i := 0; i < set.Len(); i++ {
		for j := 0; j < k; j++ {
			assert.Equal(t, scaled[i+j], set.Windows[i][j])
		}
		assert.Equal(t, scaled[i+k], set.Targets[i])
		assert.Equal(t, table.Rows[i+k].Date, set.Dates[i])
	}
}

func TestTrainingSequencesInsufficientData(t *testing.T) {
	table := makeTable(5)
	e := fittedEngine(t, table, 5)

	_, err := e.TrainingSequences(table)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestExactWindowBoundary(t *testing.T) {
	// A table of exactly k rows yields one last window but zero
	// training sequences.
	const k = 6
	table := makeTable(k)
	e := fittedEngine(t, table, k)

	w, err := e.LastWindow(table)
	require.NoError(t, err)
	assert.Len(t, w, k)

	_, err = e.TrainingSequences(table)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestLastWindowInsufficientData(t *testing.T) {
	table := makeTable(3)
	e := fittedEngine(t, table, 4)

	_, err := e.LastWindow(table)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestLastWindowIsScaledTail(t *testing.T) {
	table := makeTable(10)
	e := fittedEngine(t, table, 3)

	w, err := e.LastWindow(table)
	require.NoError(t, err)

	scaled, err := e.scaler.Transform(table.Values())
	require.NoError(t, err)
	assert.Equal(t, scaled[7:], w)
}

func TestWindowEndingBefore(t *testing.T) {
	table := makeTable(10)
	e := fittedEngine(t, table, 3)

	w, err := e.WindowEndingBefore(table, day(5))
	require.NoError(t, err)

	scaled, err := e.scaler.Transform(table.Values())
	require.NoError(t, err)
	assert.Equal(t, scaled[2:5], w)
}

func TestWindowEndingBeforeTargetMissing(t *testing.T) {
	table := makeTable(10)
	e := fittedEngine(t, table, 3)

	_, err := e.WindowEndingBefore(table, day(99))
	assert.ErrorIs(t, err, ErrTargetDateNotFound)
}

func TestWindowEndingBeforeInsufficientHistory(t *testing.T) {
	table := makeTable(10)
	e := fittedEngine(t, table, 5)

	_, err := e.WindowEndingBefore(table, day(2))
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestWindowEngineRequiresFittedScaler(t *testing.T) {
	table := makeTable(10)
	e, err := NewWindowEngine(3, NewMinMaxScaler())
	require.NoError(t, err)

	_, err = e.TrainingSequences(table)
	assert.ErrorIs(t, err, ErrScalerNotFitted)
	_, err = e.LastWindow(table)
	assert.ErrorIs(t, err, ErrScalerNotFitted)
}

func TestNewWindowEngineValidation(t *testing.T) {
	_, err := NewWindowEngine(0, NewMinMaxScaler())
	assert.Error(t, err)
	_, err = NewWindowEngine(3, nil)
	assert.Error(t, err)
}

func TestTableValidate(t *testing.T) {
	table := makeTable(5)
	require.NoError(t, table.Validate())

	// Duplicate date.
	dup := makeTable(5)
	dup.Rows[2].Date = dup.Rows[1].Date
	assert.Error(t, dup.Validate())

	// Width mismatch.
	ragged := makeTable(5)
	ragged.Rows[3].Values = []float64{1}
	assert.Error(t, ragged.Validate())
}
