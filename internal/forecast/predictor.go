// Package forecast predicts tomorrow's mean temperature from the last seven
// daily means with an ordinary least squares fit.
package forecast

import (
	"fmt"
	"math"

	"github.com/sajari/regression"

	"github.com/i474232898/weather-regime/internal/artifact"
	"github.com/i474232898/weather-regime/internal/features"
	"github.com/i474232898/weather-regime/internal/ml"
)

const kind = "temp_predictor"

// windowNames labels the regression inputs, oldest day first.
var windowNames = func() []string {
	names := make([]string, features.TempWindow)
	for i := range names {
		names[i] = fmt.Sprintf("tmean_t-%d", features.TempWindow-i)
	}
	return names
}()

// Predictor is a fitted linear model next = Intercept + Σ Weights[i]*window[i].
type Predictor struct {
	Intercept float64   `json:"intercept"`
	Weights   []float64 `json:"weights"`
	R2        float64   `json:"r2"`
	Samples   int       `json:"samples"`

	version string
}

// Train builds sliding-window pairs from each sequence separately and fits
// the regression on all of them. Sequences shorter than eight values add no
// pairs.
func Train(sequences ...[]float64) (*Predictor, error) {
	r := new(regression.Regression)
	r.SetObserved("tmean_next")
	for i, name := range windowNames {
		r.SetVar(i, name)
	}

	samples := 0
	for _, seq := range sequences {
		inputs, targets := features.TempPairs(seq)
		for i := range inputs {
			r.Train(regression.DataPoint(targets[i], inputs[i]))
		}
		samples += len(inputs)
	}
	if samples <= features.TempWindow {
		return nil, fmt.Errorf("%w: %d training pairs", ml.ErrInsufficientData, samples)
	}

	if err := r.Run(); err != nil {
		return nil, fmt.Errorf("fit regression: %w", err)
	}
	coeffs := r.GetCoeffs()
	if len(coeffs) != features.TempWindow+1 {
		return nil, fmt.Errorf("fit regression: got %d coefficients", len(coeffs))
	}
	for _, c := range coeffs {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, fmt.Errorf("fit regression: degenerate coefficients %v", coeffs)
		}
	}

	return &Predictor{
		Intercept: coeffs[0],
		Weights:   append([]float64(nil), coeffs[1:]...),
		R2:        r.R2,
		Samples:   samples,
	}, nil
}

// PredictNext forecasts the day after last, which must hold exactly seven
// daily means, oldest first.
func (p *Predictor) PredictNext(last []float64) (float64, error) {
	if p == nil {
		return 0, artifact.ErrModelNotLoaded
	}
	if len(last) != features.TempWindow {
		return 0, fmt.Errorf("%w: expected %d values, got %d", ml.ErrInvalidWindowSize, features.TempWindow, len(last))
	}
	next := p.Intercept
	for i, v := range last {
		next += p.Weights[i] * v
	}
	return next, nil
}

// Version is the training run the predictor was loaded from.
func (p *Predictor) Version() string {
	return p.version
}

// File describes the predictor artifact.
func (p *Predictor) File(path string) artifact.File {
	return artifact.File{Path: path, Kind: kind, Features: windowNames, Payload: p}
}

// Load reads a predictor artifact.
func Load(path string) (*Predictor, error) {
	var p Predictor
	env, err := artifact.Read(path, kind, windowNames, &p)
	if err != nil {
		return nil, err
	}
	if len(p.Weights) != features.TempWindow {
		return nil, fmt.Errorf("%w: %s has %d weights", artifact.ErrModelNotLoaded, path, len(p.Weights))
	}
	p.version = env.Version
	return &p, nil
}
