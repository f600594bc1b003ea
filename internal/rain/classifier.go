// Package rain predicts a day's rain intensity class (Dry, Normal, Humid)
// from its mean temperature, peak wind and rainfall.
package rain

import (
	"errors"
	"fmt"

	"github.com/i474232898/weather-regime/internal/artifact"
	"github.com/i474232898/weather-regime/internal/features"
	"github.com/i474232898/weather-regime/internal/ml"
	"github.com/i474232898/weather-regime/internal/weather"
)

const kind = "rain_classifier"

// Level is a rain intensity class. The numeric values are the class indices
// the model is trained on.
type Level int

const (
	Dry Level = iota
	Normal
	Humid
	levelCount
)

func (l Level) String() string {
	switch l {
	case Dry:
		return "Dry"
	case Normal:
		return "Normal"
	case Humid:
		return "Humid"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// MarshalText encodes the level by name.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// LevelForRain is the labeling rule: under 1mm is Dry, under 10mm is Normal,
// anything more is Humid.
func LevelForRain(mm float64) Level {
	switch {
	case mm < 1:
		return Dry
	case mm < 10:
		return Normal
	default:
		return Humid
	}
}

// Classifier is a fitted scaler plus multinomial logistic regression.
type Classifier struct {
	scaler  *ml.Scaler
	model   *ml.LogisticRegression
	version string
}

type payload struct {
	Scaler *ml.Scaler             `json:"scaler"`
	Model  *ml.LogisticRegression `json:"model"`
}

// Train labels each observation with LevelForRain and fits the classifier on
// the scaled (tmean, wind_max, rain) vectors.
func Train(obs []weather.Observation, cfg ml.LogisticConfig) (*Classifier, error) {
	if len(obs) == 0 {
		return nil, ml.ErrInsufficientData
	}
	x := features.RainMatrix(obs)
	y := make([]int, len(obs))
	for i, o := range obs {
		y[i] = int(LevelForRain(o.RainMM))
	}

	scaler, err := ml.FitScaler(x)
	if err != nil {
		return nil, fmt.Errorf("fit scaler: %w", err)
	}
	scaled, err := scaler.TransformMatrix(x)
	if err != nil {
		return nil, err
	}
	model, err := ml.FitLogistic(scaled, y, int(levelCount), cfg)
	if err != nil {
		return nil, fmt.Errorf("fit logistic: %w", err)
	}
	return &Classifier{scaler: scaler, model: model}, nil
}

// Predict classifies one day.
func (c *Classifier) Predict(tmean, wind, rain float64) (Level, error) {
	if c == nil {
		return 0, artifact.ErrModelNotLoaded
	}
	v, err := c.scaler.Transform([]float64{tmean, wind, rain})
	if err != nil {
		return 0, err
	}
	class, err := c.model.Predict(v)
	if err != nil {
		return 0, err
	}
	return Level(class), nil
}

// Version is the training run the classifier was loaded from.
func (c *Classifier) Version() string {
	return c.version
}

// File describes the classifier artifact.
func (c *Classifier) File(path string) artifact.File {
	return artifact.File{Path: path, Kind: kind, Features: features.RainNames, Payload: payload{Scaler: c.scaler, Model: c.model}}
}

// Load reads a classifier artifact.
func Load(path string) (*Classifier, error) {
	var p payload
	env, err := artifact.Read(path, kind, features.RainNames, &p)
	if err != nil {
		return nil, err
	}
	if p.Scaler == nil || p.Model == nil {
		return nil, fmt.Errorf("%w: %s: %w", artifact.ErrModelNotLoaded, path, errors.New("incomplete payload"))
	}
	if err := p.Scaler.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", artifact.ErrModelNotLoaded, err)
	}
	if err := p.Model.Validate(len(features.RainNames)); err != nil {
		return nil, fmt.Errorf("%w: %w", artifact.ErrModelNotLoaded, err)
	}
	if p.Model.Classes != int(levelCount) {
		return nil, fmt.Errorf("%w: %s has %d classes", artifact.ErrModelNotLoaded, path, p.Model.Classes)
	}
	return &Classifier{scaler: p.Scaler, model: p.Model, version: env.Version}, nil
}
