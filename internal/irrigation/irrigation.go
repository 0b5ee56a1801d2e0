// Package irrigation derives irrigation requirements from forecasted
// root-zone soil wetness using a simple water-balance model: depletion
// against available water capacity, a management-allowed depletion
// threshold, and an application-efficiency correction.
package irrigation

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"agroforecast/internal/forecast"
)

var validate = validator.New()

// Config holds the agronomic constants for one field. Values are checked
// once at construction; a calculator never runs with an invalid config.
type Config struct {
	// AvailableWaterMM is the total available water capacity over the
	// root depth, in mm (field capacity minus wilting point).
	AvailableWaterMM float64 `validate:"gt=0"`

	// AllowedDepletion is the management-allowed depletion fraction p:
	// irrigation is recommended only once depletion exceeds it.
	AllowedDepletion float64 `validate:"gte=0,lte=1"`

	// Efficiency is the application efficiency E used to gross up the
	// net requirement.
	Efficiency float64 `validate:"gt=0,lte=1"`

	// WetnessFeature names the forecast feature carrying root-zone
	// wetness (a 0-1 fraction).
	WetnessFeature string `validate:"required"`
}

// Calculator computes water balances. It is a pure function of (wetness,
// config): no hidden state, no history dependency across calls.
type Calculator struct {
	cfg Config
}

// NewCalculator validates the configuration and returns a calculator.
func NewCalculator(cfg Config) (*Calculator, error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("irrigation config: %w", err)
	}
	return &Calculator{cfg: cfg}, nil
}

// Balance converts a forecasted wetness fraction into a water balance.
// Depletion is 1 - wetness clamped to [0, 1]; a wetness outside [0, 1] is
// a data-quality condition, so the result is clamped and flagged.
func (c *Calculator) Balance(wetness float64) forecast.WaterBalance {
	depletion := 1 - wetness
	outOfRange := false
	if depletion < 0 {
		depletion = 0
		outOfRange = true
	} else if depletion > 1 {
		depletion = 1
		outOfRange = true
	}

	net := (depletion - c.cfg.AllowedDepletion) * c.cfg.AvailableWaterMM
	if net < 0 {
		net = 0
	}

	return forecast.WaterBalance{
		DepletionFrac: depletion,
		NetMM:         net,
		GrossMM:       net / c.cfg.Efficiency,
		OutOfRange:    outOfRange,
	}
}

// Enrich attaches a water balance to each forecast record, keyed off the
// configured wetness feature. Feature predictions are never mutated; the
// returned records are copies.
func (c *Calculator) Enrich(records []forecast.Record) ([]forecast.Record, error) {
	out := make([]forecast.Record, 0, len(records))
	for i, rec := range records {
		wetness, ok := rec.Value(c.cfg.WetnessFeature)
		if !ok {
			return nil, fmt.Errorf("record %d has no %s feature", i, c.cfg.WetnessFeature)
		}
		out = append(out, rec.WithWater(c.Balance(wetness)))
	}
	return out, nil
}
