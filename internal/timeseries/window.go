package timeseries

import (
	"fmt"
	"time"
)

// WindowEngine slices a chronologically ordered table into fixed-length
// model inputs. It never fits the scaler itself: training code fits once,
// inference code reuses the persisted bounds, and every method here fails
// fast when handed an unfitted scaler.
type WindowEngine struct {
	steps  int
	scaler *MinMaxScaler
}

// TrainingSet holds parallel sequences of windows, their targets, and the
// target dates, all in scaled space.
type TrainingSet struct {
	Windows [][][]float64 // (n, steps, features)
	Targets [][]float64   // (n, features)
	Dates   []time.Time   // date of each target
}

// Len returns the number of window/target pairs.
func (ts *TrainingSet) Len() int { return len(ts.Windows) }

// NewWindowEngine creates an engine for a fixed window length. The length
// must match the shape the regressor is trained on.
func NewWindowEngine(steps int, scaler *MinMaxScaler) (*WindowEngine, error) {
	if steps < 1 {
		return nil, fmt.Errorf("window length must be >= 1, got %d", steps)
	}
	if scaler == nil {
		return nil, fmt.Errorf("window engine requires a scaler")
	}
	return &WindowEngine{steps: steps, scaler: scaler}, nil
}

// Steps returns the configured window length.
func (e *WindowEngine) Steps() int { return e.steps }

// TrainingSequences builds every (window, next-row target) pair from the
// table. A table of L rows yields exactly L - steps pairs; a table with
// L <= steps yields an insufficient-data error.
func (e *WindowEngine) TrainingSequences(table *Table) (*TrainingSet, error) {
	if table.Len() <= e.steps {
		return nil, fmt.Errorf("%w: %d rows cannot produce training sequences of window %d", ErrInsufficientData, table.Len(), e.steps)
	}

	scaled, err := e.scaler.Transform(table.Values())
	if err != nil {
		return nil, err
	}

	n := len(scaled) - e.steps
	set := &TrainingSet{
		Windows: make([][][]float64, 0, n),
		Targets: make([][]float64, 0, n),
		Dates:   make([]time.Time, 0, n),
	}
	for i := 0; i < n; i++ {
		set.Windows = append(set.Windows, scaled[i:i+e.steps])
		set.Targets = append(set.Targets, scaled[i+e.steps])
		set.Dates = append(set.Dates, table.Rows[i+e.steps].Date)
	}
	return set, nil
}

// LastWindow returns the most recent window of scaled rows.
func (e *WindowEngine) LastWindow(table *Table) ([][]float64, error) {
	if table.Len() < e.steps {
		return nil, fmt.Errorf("%w: need %d rows for the last window, have %d", ErrInsufficientData, e.steps, table.Len())
	}
	tail := table.Values()[table.Len()-e.steps:]
	return e.scaler.Transform(tail)
}

// WindowEndingBefore returns the window of scaled rows strictly preceding
// the first occurrence of target date, i.e. the input a model would have
// seen when forecasting that date.
func (e *WindowEngine) WindowEndingBefore(table *Table, target time.Time) ([][]float64, error) {
	idx := -1
	for i, r := range table.Rows {
		if sameDay(r.Date, target) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrTargetDateNotFound, target.Format("2006-01-02"))
	}
	if idx < e.steps {
		return nil, fmt.Errorf("%w: only %d rows precede %s, need %d", ErrInsufficientData, idx, target.Format("2006-01-02"), e.steps)
	}
	rows := table.Values()[idx-e.steps : idx]
	return e.scaler.Transform(rows)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
