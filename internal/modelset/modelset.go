// Package modelset groups every trained model the service serves, loads them
// at startup and writes them after training.
package modelset

import (
	"errors"
	"fmt"
	"log"

	"github.com/i474232898/weather-regime/internal/anomaly"
	"github.com/i474232898/weather-regime/internal/artifact"
	"github.com/i474232898/weather-regime/internal/climate"
	"github.com/i474232898/weather-regime/internal/forecast"
	"github.com/i474232898/weather-regime/internal/rain"
)

// Paths locates each artifact on disk.
type Paths struct {
	Scaler      string
	Cluster     string
	Rain        string
	Temperature string
	Anomaly     string
}

// Set holds the loaded models. A nil field means that model is unavailable.
type Set struct {
	Climate     *climate.Classifier
	Rain        *rain.Classifier
	Temperature *forecast.Predictor
	Anomaly     *anomaly.Detector
}

// Status describes one model for the models endpoint.
type Status struct {
	Name    string `json:"name"`
	Loaded  bool   `json:"loaded"`
	Version string `json:"version,omitempty"`
}

// Load loads every model it can. Failures are logged and leave the model nil;
// Load never fails as a whole.
func Load(p Paths) *Set {
	s := &Set{}
	var err error

	if s.Climate, err = climate.Load(p.Scaler, p.Cluster); err != nil {
		logLoadError("climate classifier", err)
	}
	if s.Rain, err = rain.Load(p.Rain); err != nil {
		logLoadError("rain classifier", err)
	}
	if s.Temperature, err = forecast.Load(p.Temperature); err != nil {
		logLoadError("temperature predictor", err)
	}
	if s.Anomaly, err = anomaly.Load(p.Anomaly); err != nil {
		logLoadError("anomaly detector", err)
	}
	return s
}

func logLoadError(name string, err error) {
	if errors.Is(err, artifact.ErrVersionMismatch) {
		log.Printf("ERROR: %s disabled, artifacts are from different training runs: %v", name, err)
		return
	}
	log.Printf("ERROR: %s disabled: %v", name, err)
}

// Save writes every non-nil model in one atomic group under a fresh version
// and returns that version. Either all files are replaced or none are.
func (s *Set) Save(p Paths) (string, error) {
	var files []artifact.File
	if s.Climate != nil {
		files = append(files, s.Climate.Files(p.Scaler, p.Cluster)...)
	}
	if s.Rain != nil {
		files = append(files, s.Rain.File(p.Rain))
	}
	if s.Temperature != nil {
		files = append(files, s.Temperature.File(p.Temperature))
	}
	if s.Anomaly != nil {
		files = append(files, s.Anomaly.File(p.Anomaly))
	}
	if len(files) == 0 {
		return "", errors.New("no trained models to save")
	}

	version := artifact.NewVersion()
	if err := artifact.WriteAll(version, files...); err != nil {
		return "", fmt.Errorf("write artifacts: %w", err)
	}
	return version, nil
}

// Status reports which models are loaded.
func (s *Set) Status() []Status {
	out := []Status{{Name: "climate", Loaded: s.Climate != nil}}
	if s.Climate != nil {
		out[0].Version = s.Climate.Version()
	}

	st := Status{Name: "rain", Loaded: s.Rain != nil}
	if s.Rain != nil {
		st.Version = s.Rain.Version()
	}
	out = append(out, st)

	st = Status{Name: "temperature", Loaded: s.Temperature != nil}
	if s.Temperature != nil {
		st.Version = s.Temperature.Version()
	}
	out = append(out, st)

	st = Status{Name: "anomaly", Loaded: s.Anomaly != nil}
	if s.Anomaly != nil {
		st.Version = s.Anomaly.Version()
	}
	return append(out, st)
}
