package timeseries

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrInsufficientData is returned when a table has fewer rows than an
	// operation requires.
	ErrInsufficientData = errors.New("not enough data")

	// ErrTargetDateNotFound is returned when a requested date is absent
	// from the table.
	ErrTargetDateNotFound = errors.New("target date not found")

	// ErrEmptyTable is returned when an operation requires at least one row.
	ErrEmptyTable = errors.New("empty table")
)

// FeatureSet is the ordered list of tracked feature names. It is fixed at
// configuration time; every Observation's Values slice is parallel to it.
type FeatureSet []string

// Index returns the position of a feature name within the set.
func (fs FeatureSet) Index(name string) (int, bool) {
	for i, f := range fs {
		if f == name {
			return i, true
		}
	}
	return 0, false
}

// Observation is one daily row: a calendar date plus one value per tracked
// feature.
type Observation struct {
	Date   time.Time `json:"date"`
	Values []float64 `json:"values"`
}

// Table is a chronologically ordered sequence of observations. The windowing
// engine assumes strictly increasing dates, no duplicates, and no sentinel or
// NaN values; Validate enforces this at the boundary where upstream data
// enters the core.
type Table struct {
	Features FeatureSet
	Rows     []Observation
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Values returns the raw feature matrix, one row per observation.
func (t *Table) Values() [][]float64 {
	out := make([][]float64, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Values
	}
	return out
}

// Dates returns the dates column.
func (t *Table) Dates() []time.Time {
	out := make([]time.Time, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Date
	}
	return out
}

// LastDate returns the most recent date in the table.
func (t *Table) LastDate() (time.Time, error) {
	if len(t.Rows) == 0 {
		return time.Time{}, ErrEmptyTable
	}
	return t.Rows[len(t.Rows)-1].Date, nil
}

// Validate checks the table invariants: width matches the feature set, dates
// strictly increase, and no value is NaN or infinite.
func (t *Table) Validate() error {
	width := len(t.Features)
	for i, r := range t.Rows {
		if len(r.Values) != width {
			return fmt.Errorf("row %d: expected %d values, got %d", i, width, len(r.Values))
		}
		for j, v := range r.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("row %d (%s): feature %s is not finite", i, r.Date.Format("2006-01-02"), t.Features[j])
			}
		}
		if i > 0 && !t.Rows[i-1].Date.Before(r.Date) {
			return fmt.Errorf("row %d: date %s does not follow %s", i, r.Date.Format("2006-01-02"), t.Rows[i-1].Date.Format("2006-01-02"))
		}
	}
	return nil
}
