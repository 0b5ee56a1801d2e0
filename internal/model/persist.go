package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"agroforecast/internal/timeseries"
)

// ErrNoArtifact is returned when no saved model exists at the given path.
var ErrNoArtifact = errors.New("no saved model artifact")

// Artifact bundles everything needed to reproduce inference: the trained
// network, the scaler it was trained with, and the window shape. The
// scaler travels with the network because applying a model with bounds
// from a different fit silently corrupts every forecast.
type Artifact struct {
	Steps     int                      `json:"n_steps"`
	Features  timeseries.FeatureSet    `json:"features"`
	Network   *Network                 `json:"network"`
	Scaler    *timeseries.MinMaxScaler `json:"scaler"`
	TrainedAt time.Time                `json:"trained_at"`
	History   []EpochRecord            `json:"history,omitempty"`
}

// Save writes the artifact as JSON via a temp file and rename, so a crash
// mid-write never leaves a truncated artifact behind.
func Save(path string, a *Artifact) error {
	if a.Network == nil {
		return fmt.Errorf("save: %w", ErrNotTrained)
	}
	if a.Scaler == nil || !a.Scaler.Fitted {
		return fmt.Errorf("save: %w", timeseries.ErrScalerNotFitted)
	}

	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("save model: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".model-*.json")
	if err != nil {
		return fmt.Errorf("save model: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("save model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save model: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save model: %w", err)
	}
	return nil
}

// Load reads an artifact and validates it against the configured window
// shape and feature set. A missing file is reported as ErrNoArtifact so
// the pipeline can fall back to training; anything else is a hard error.
func Load(path string, steps int, features timeseries.FeatureSet) (*WindowRegressor, *timeseries.MinMaxScaler, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrNoArtifact
		}
		return nil, nil, fmt.Errorf("load model: %w", err)
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, nil, fmt.Errorf("load model: %w", err)
	}
	if a.Network == nil || a.Scaler == nil {
		return nil, nil, fmt.Errorf("load model: artifact missing network or scaler")
	}
	if !a.Scaler.Fitted || a.Scaler.Width() != len(features) {
		return nil, nil, fmt.Errorf("load model: scaler incompatible with %d features", len(features))
	}
	if a.Steps != steps {
		return nil, nil, fmt.Errorf("load model: artifact trained with window %d, configured %d", a.Steps, steps)
	}
	if len(a.Features) != len(features) {
		return nil, nil, fmt.Errorf("load model: artifact has %d features, configured %d", len(a.Features), len(features))
	}
	for i, f := range features {
		if a.Features[i] != f {
			return nil, nil, fmt.Errorf("load model: feature mismatch at %d: artifact %q, configured %q", i, a.Features[i], f)
		}
	}

	reg, err := NewWindowRegressor(steps, len(features))
	if err != nil {
		return nil, nil, err
	}
	if err := reg.restore(a.Network); err != nil {
		return nil, nil, fmt.Errorf("load model: %w", err)
	}
	return reg, a.Scaler, nil
}
