// Package anomaly flags unusual days with an isolation forest over
// (tmean, rain, wind_max).
package anomaly

import (
	"fmt"

	"github.com/i474232898/weather-regime/internal/artifact"
	"github.com/i474232898/weather-regime/internal/features"
	"github.com/i474232898/weather-regime/internal/ml"
	"github.com/i474232898/weather-regime/internal/weather"
)

const kind = "anomaly_detector"

const (
	LabelAnomalous = "Anomalous"
	LabelNormal    = "Normal"
)

// Config controls detector fitting.
type Config struct {
	Contamination float64
	Trees         int
	SampleSize    int
	Seed          int64
}

// DefaultConfig returns 10% contamination, 100 trees, 256-point samples and seed 42.
func DefaultConfig() Config {
	d := ml.DefaultIsolationConfig()
	return Config{Contamination: d.Contamination, Trees: d.Trees, SampleSize: d.SampleSize, Seed: d.Seed}
}

// Detector is a fitted isolation forest.
type Detector struct {
	forest  *ml.IsolationForest
	version string
}

// Result is one scored observation.
type Result struct {
	weather.Observation
	Score     float64 `json:"anomaly_score"`
	Raw       int     `json:"raw"`
	IsAnomaly bool    `json:"is_anomaly"`
	Label     string  `json:"label"`
}

// Fit grows the forest on history.
func Fit(history []weather.Observation, cfg Config) (*Detector, error) {
	forest, err := ml.FitIsolationForest(features.AnomalyMatrix(history), ml.IsolationConfig{
		Trees:         cfg.Trees,
		SampleSize:    cfg.SampleSize,
		Contamination: cfg.Contamination,
		Seed:          cfg.Seed,
	})
	if err != nil {
		return nil, fmt.Errorf("fit isolation forest: %w", err)
	}
	return &Detector{forest: forest}, nil
}

// Score labels every observation in batch. The detector is not modified.
func (d *Detector) Score(batch []weather.Observation) ([]Result, error) {
	if d == nil {
		return nil, artifact.ErrModelNotLoaded
	}
	out := make([]Result, len(batch))
	for i, o := range batch {
		v := features.AnomalyVector(o)
		score, err := d.forest.Score(v)
		if err != nil {
			return nil, err
		}
		raw := d.forest.Decide(score)
		r := Result{Observation: o, Score: score, Raw: raw, IsAnomaly: raw == -1, Label: LabelNormal}
		if r.IsAnomaly {
			r.Label = LabelAnomalous
		}
		out[i] = r
	}
	return out, nil
}

// FitPredict fits a detector on batch and scores the same batch.
func FitPredict(batch []weather.Observation, cfg Config) ([]Result, error) {
	d, err := Fit(batch, cfg)
	if err != nil {
		return nil, err
	}
	return d.Score(batch)
}

// Threshold is the score above which a row is anomalous.
func (d *Detector) Threshold() float64 {
	return d.forest.Threshold
}

// Version is the training run the detector was loaded from.
func (d *Detector) Version() string {
	return d.version
}

// File describes the detector artifact.
func (d *Detector) File(path string) artifact.File {
	return artifact.File{Path: path, Kind: kind, Features: features.AnomalyNames, Payload: d.forest}
}

// Load reads a detector artifact.
func Load(path string) (*Detector, error) {
	var forest ml.IsolationForest
	env, err := artifact.Read(path, kind, features.AnomalyNames, &forest)
	if err != nil {
		return nil, err
	}
	if err := forest.Validate(len(features.AnomalyNames)); err != nil {
		return nil, fmt.Errorf("%w: %w", artifact.ErrModelNotLoaded, err)
	}
	return &Detector{forest: &forest, version: env.Version}, nil
}
