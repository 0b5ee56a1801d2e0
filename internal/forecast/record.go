package forecast

import (
	"encoding/json"
	"time"

	"agroforecast/internal/timeseries"
)

// WaterBalance holds the irrigation fields derived from a soil-wetness
// forecast. It is attached to a Record by the irrigation calculator and
// never set by the forecast engine itself.
type WaterBalance struct {
	DepletionFrac float64 `json:"depletion_frac"`
	NetMM         float64 `json:"irrigation_net_mm"`
	GrossMM       float64 `json:"irrigation_gross_mm"`

	// OutOfRange flags a wetness forecast outside [0, 1]; the depletion
	// fraction is clamped, but the condition is surfaced rather than
	// silently absorbed.
	OutOfRange bool `json:"out_of_range,omitempty"`
}

// Record is one forecast day in physical units. The feature set is fixed
// at engine construction, so the value layout is stable: Values is
// parallel to Features, not a string-keyed map. A Record is immutable
// once published; enrichment produces a copy.
type Record struct {
	Date     time.Time
	Features timeseries.FeatureSet
	Values   []float64
	Water    *WaterBalance
}

// Value returns the predicted value for a named feature.
func (r Record) Value(name string) (float64, bool) {
	i, ok := r.Features.Index(name)
	if !ok {
		return 0, false
	}
	return r.Values[i], true
}

// WithWater returns a copy of the record carrying the given water balance.
// The feature predictions are shared, never mutated.
func (r Record) WithWater(w WaterBalance) Record {
	r.Water = &w
	return r
}

// MarshalJSON renders the record the way the dashboard consumes it:
// feature values keyed by name, irrigation fields flattened alongside.
func (r Record) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{
		"date": r.Date.Format("2006-01-02"),
	}
	for i, f := range r.Features {
		out[f] = r.Values[i]
	}
	if r.Water != nil {
		out["depletion_frac"] = r.Water.DepletionFrac
		out["irrigation_net_mm"] = r.Water.NetMM
		out["irrigation_gross_mm"] = r.Water.GrossMM
		if r.Water.OutOfRange {
			out["out_of_range"] = true
		}
	}
	return json.Marshal(out)
}
