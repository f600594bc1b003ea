// Package features turns daily observations into the fixed-order numeric
// vectors each model is fit on. Every function here is pure.
package features

import (
	"errors"

	"github.com/i474232898/weather-regime/internal/common"
	"github.com/i474232898/weather-regime/internal/weather"
)

// ErrEmptyWindow is returned when a window-level feature is requested for no observations.
var ErrEmptyWindow = errors.New("empty observation window")

// Feature names, in vector order. Artifacts record these at fit time.
var (
	ClusterNames = []string{"t_max", "t_min", "wind_speed", "rain"}
	RainNames    = []string{"tmean", "wind_max", "rain"}
	AnomalyNames = []string{"tmean", "rain", "wind_max"}
)

// Index of rain inside a cluster vector.
const ClusterRainIndex = 3

// TempWindow is the number of consecutive daily means used to predict the next one.
const TempWindow = 7

// DefaultClusterWindow is the number of days averaged into one cluster vector.
const DefaultClusterWindow = 30

// ClusterVector averages a window into (t_max, t_min, wind_speed, rain).
func ClusterVector(window []weather.Observation) ([]float64, error) {
	if len(window) == 0 {
		return nil, ErrEmptyWindow
	}
	tmax := make([]float64, len(window))
	tmin := make([]float64, len(window))
	wind := make([]float64, len(window))
	rain := make([]float64, len(window))
	for i, o := range window {
		tmax[i] = o.TempMax
		tmin[i] = o.TempMin
		wind[i] = o.WindMaxKmh
		rain[i] = o.RainMM
	}
	return []float64{common.Mean(tmax), common.Mean(tmin), common.Mean(wind), common.Mean(rain)}, nil
}

// ClusterWindows slides a window of `size` days with the given stride over obs
// and returns one cluster vector per full window. Fewer than size observations
// yield no vectors.
func ClusterWindows(obs []weather.Observation, size, stride int) [][]float64 {
	if size <= 0 || stride <= 0 {
		return nil
	}
	var out [][]float64
	for start := 0; start+size <= len(obs); start += stride {
		v, err := ClusterVector(obs[start : start+size])
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

// RainVector returns (tmean, wind_max, rain) for one observation.
func RainVector(o weather.Observation) []float64 {
	return []float64{o.TempMean, o.WindMaxKmh, o.RainMM}
}

// RainMatrix applies RainVector to every observation.
func RainMatrix(obs []weather.Observation) [][]float64 {
	out := make([][]float64, len(obs))
	for i, o := range obs {
		out[i] = RainVector(o)
	}
	return out
}

// AnomalyVector returns (tmean, rain, wind_max) for one observation.
func AnomalyVector(o weather.Observation) []float64 {
	return []float64{o.TempMean, o.RainMM, o.WindMaxKmh}
}

// AnomalyMatrix applies AnomalyVector to every observation.
func AnomalyMatrix(obs []weather.Observation) [][]float64 {
	out := make([][]float64, len(obs))
	for i, o := range obs {
		out[i] = AnomalyVector(o)
	}
	return out
}

// TempMeans extracts the daily mean temperature series.
func TempMeans(obs []weather.Observation) []float64 {
	out := make([]float64, len(obs))
	for i, o := range obs {
		out[i] = o.TempMean
	}
	return out
}

// TempPairs slides a TempWindow-long window over temps and pairs it with the
// value that follows. A series of n values yields n-TempWindow pairs; shorter
// series yield none.
func TempPairs(temps []float64) (inputs [][]float64, targets []float64) {
	for i := 0; i+TempWindow < len(temps); i++ {
		window := make([]float64, TempWindow)
		copy(window, temps[i:i+TempWindow])
		inputs = append(inputs, window)
		targets = append(targets, temps[i+TempWindow])
	}
	return inputs, targets
}
