// Package store persists the rolling station dataset as a NASA POWER
// format CSV (metadata preamble, then YEAR/DOY rows) and holds published
// forecast runs for the dashboard.
package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"agroforecast/internal/common"
	"agroforecast/internal/power"
	"agroforecast/internal/timeseries"
)

var (
	// ErrNoDataset is returned when the base CSV file does not exist.
	ErrNoDataset = errors.New("dataset file not found")

	// ErrNoHeader is returned when no YEAR/DOY header line can be found.
	ErrNoHeader = errors.New("dataset header not found")
)

// headerScanLimit bounds how far into the file the header is searched;
// NASA POWER exports put it within the first few dozen preamble lines.
const headerScanLimit = 50

// CSVStore reads and updates one station's dataset file.
type CSVStore struct {
	path     string
	features timeseries.FeatureSet
}

// NewCSVStore creates a store for the given file and feature columns.
func NewCSVStore(path string, features timeseries.FeatureSet) *CSVStore {
	return &CSVStore{path: path, features: features}
}

// Path returns the dataset file path.
func (s *CSVStore) Path() string { return s.path }

// Load returns the clean feature table the core consumes: sentinel and
// NaN rows dropped, chronologically sorted, duplicate dates collapsed
// keeping the most recent occurrence.
func (s *CSVStore) Load() (*timeseries.Table, error) {
	rows, err := s.readRaw()
	if err != nil {
		return nil, err
	}

	clean := make([]timeseries.Observation, 0, len(rows))
	for _, r := range rows {
		if rowComplete(r.Values) {
			clean = append(clean, r)
		}
	}

	table := &timeseries.Table{Features: s.features, Rows: dedupeSorted(clean)}
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	return table, nil
}

// LastDate returns the most recent date present in the raw file,
// including rows with missing values.
func (s *CSVStore) LastDate() (time.Time, error) {
	rows, err := s.readRaw()
	if err != nil {
		return time.Time{}, err
	}
	if len(rows) == 0 {
		return time.Time{}, timeseries.ErrEmptyTable
	}
	return rows[len(rows)-1].Date, nil
}

// Merge folds freshly fetched observations into the dataset, keeping the
// newer value for duplicated dates, and rewrites the file through a
// backup so a failed write never destroys the previous dataset.
func (s *CSVStore) Merge(fetched []timeseries.Observation) error {
	existing, err := s.readRaw()
	if err != nil {
		return err
	}

	byDate := make(map[string]timeseries.Observation, len(existing)+len(fetched))
	for _, r := range existing {
		byDate[dateKey(r.Date)] = r
	}
	for _, r := range fetched {
		byDate[dateKey(r.Date)] = r
	}

	merged := make([]timeseries.Observation, 0, len(byDate))
	for _, r := range byDate {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Date.Before(merged[j].Date) })

	return s.writeWithBackup(merged)
}

func (s *CSVStore) writeWithBackup(rows []timeseries.Observation) error {
	backup := strings.TrimSuffix(s.path, ".csv") + "_backup.csv"
	if err := os.Rename(s.path, backup); err != nil {
		return fmt.Errorf("backup dataset: %w", err)
	}

	if err := s.write(rows); err != nil {
		// Restore the previous dataset; the failed write must not leave
		// a partial file behind.
		os.Remove(s.path)
		if restoreErr := os.Rename(backup, s.path); restoreErr != nil {
			return fmt.Errorf("write dataset: %v (restore failed: %w)", err, restoreErr)
		}
		return fmt.Errorf("write dataset: %w", err)
	}

	os.Remove(backup)
	return nil
}

func (s *CSVStore) write(rows []timeseries.Observation) error {
	f, err := os.Create(s.path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := append([]string{"YEAR", "DOY"}, s.features...)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		rec := make([]string, 0, len(header))
		rec = append(rec, strconv.Itoa(r.Date.Year()), strconv.Itoa(r.Date.YearDay()))
		for _, v := range r.Values {
			rec = append(rec, strconv.FormatFloat(v, 'f', -1, 64))
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// readRaw parses the file into date-sorted observations, sentinels
// included. The header line may be preceded by a free-form metadata
// preamble, so it is located by scanning for the YEAR and DOY tokens.
func (s *CSVStore) readRaw() ([]timeseries.Observation, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoDataset, s.path)
		}
		return nil, fmt.Errorf("read dataset: %w", err)
	}

	lines := strings.Split(string(data), "\n")
	headerIdx := -1
	limit := headerScanLimit
	if len(lines) < limit {
		limit = len(lines)
	}
	for i := 0; i < limit; i++ {
		if common.HasAll(lines[i], "YEAR", "DOY") {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoHeader, s.path)
	}

	r := csv.NewReader(strings.NewReader(strings.Join(lines[headerIdx:], "\n")))
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoHeader, s.path)
	}

	cols, err := s.columnIndexes(records[0])
	if err != nil {
		return nil, err
	}

	rows := make([]timeseries.Observation, 0, len(records)-1)
	for _, rec := range records[1:] {
		obs, err := s.parseRow(rec, cols)
		if err != nil {
			// Tolerate stray malformed lines rather than rejecting the
			// whole dataset.
			continue
		}
		rows = append(rows, obs)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })
	return rows, nil
}

type columnIndexes struct {
	year, doy int
	features  []int
}

func (s *CSVStore) columnIndexes(header []string) (columnIndexes, error) {
	idx := columnIndexes{year: -1, doy: -1, features: make([]int, len(s.features))}
	for i := range idx.features {
		idx.features[i] = -1
	}
	for i, name := range header {
		name = strings.TrimSpace(name)
		switch name {
		case "YEAR":
			idx.year = i
		case "DOY":
			idx.doy = i
		default:
			if j, ok := s.features.Index(name); ok {
				idx.features[j] = i
			}
		}
	}
	if idx.year < 0 || idx.doy < 0 {
		return idx, fmt.Errorf("%w: missing YEAR/DOY columns", ErrNoHeader)
	}
	for j, i := range idx.features {
		if i < 0 {
			return idx, fmt.Errorf("dataset missing feature column %s", s.features[j])
		}
	}
	return idx, nil
}

func (s *CSVStore) parseRow(rec []string, cols columnIndexes) (timeseries.Observation, error) {
	year, err := strconv.Atoi(strings.TrimSpace(rec[cols.year]))
	if err != nil {
		return timeseries.Observation{}, err
	}
	doy, err := strconv.Atoi(strings.TrimSpace(rec[cols.doy]))
	if err != nil {
		return timeseries.Observation{}, err
	}

	values := make([]float64, len(cols.features))
	for j, i := range cols.features {
		if i >= len(rec) {
			return timeseries.Observation{}, fmt.Errorf("short row")
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
		if err != nil {
			return timeseries.Observation{}, err
		}
		values[j] = v
	}

	date := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, doy-1)
	return timeseries.Observation{Date: date, Values: values}, nil
}

func rowComplete(values []float64) bool {
	for _, v := range values {
		if v == power.SentinelMissing || math.IsNaN(v) {
			return false
		}
	}
	return true
}

func dedupeSorted(rows []timeseries.Observation) []timeseries.Observation {
	out := make([]timeseries.Observation, 0, len(rows))
	for _, r := range rows {
		if n := len(out); n > 0 && dateKey(out[n-1].Date) == dateKey(r.Date) {
			out[n-1] = r
			continue
		}
		out = append(out, r)
	}
	return out
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
