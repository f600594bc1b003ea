package httpapi

import (
	"fmt"

	"github.com/i474232898/weather-regime/internal/anomaly"
	"github.com/i474232898/weather-regime/internal/common"
	"github.com/i474232898/weather-regime/internal/features"
	"github.com/i474232898/weather-regime/internal/modelset"
	"github.com/i474232898/weather-regime/internal/weather"
)

// Summary holds the window averages shown next to a classification.
type Summary struct {
	Days       int     `json:"days"`
	TempMax    float64 `json:"t_max"`
	TempMin    float64 `json:"t_min"`
	TempMean   float64 `json:"tmean"`
	WindMaxKmh float64 `json:"wind_speed"`
	RainMM     float64 `json:"rain"`
}

// Regime is the climate classification of the window.
type Regime struct {
	ClusterID int    `json:"cluster_id"`
	Condition string `json:"condition"`
	Color     string `json:"color"`
	Icon      string `json:"icon"`
}

// Report is the /api/v1/analysis response. Model-backed sections are nil
// when their model is not loaded.
type Report struct {
	Location     weather.Location `json:"location"`
	From         string           `json:"from"`
	To           string           `json:"to"`
	Summary      Summary          `json:"summary"`
	Regime       *Regime          `json:"regime"`
	RainLevel    *string          `json:"rain_level"`
	NextTempMean *float64         `json:"next_tmean"`
	Anomalies    []anomaly.Result `json:"anomalies"`
	Unavailable  []string         `json:"unavailable,omitempty"`
}

// analyze runs every loaded model over one window of history.
func analyze(models *modelset.Set, obs []weather.Observation, opts Options) (Report, error) {
	var r Report
	vector, err := features.ClusterVector(obs)
	if err != nil {
		return r, err
	}
	r.From, r.To = obs[0].Day(), obs[len(obs)-1].Day()
	r.Summary = Summary{
		Days:       len(obs),
		TempMax:    common.Round(vector[0], 2),
		TempMin:    common.Round(vector[1], 2),
		TempMean:   common.Round(common.Mean(features.TempMeans(obs)), 2),
		WindMaxKmh: common.Round(vector[2], 2),
		RainMM:     common.Round(vector[features.ClusterRainIndex], 2),
	}

	if models.Climate != nil {
		res, err := models.Climate.Predict(vector)
		if err != nil {
			return r, fmt.Errorf("classify regime: %w", err)
		}
		r.Regime = &Regime{ClusterID: res.ClusterID, Condition: res.Label.Name, Color: res.Label.Color, Icon: res.Label.Icon}
	} else {
		r.Unavailable = append(r.Unavailable, "climate")
	}

	if models.Rain != nil {
		last := obs[len(obs)-1]
		level, err := models.Rain.Predict(last.TempMean, last.WindMaxKmh, last.RainMM)
		if err != nil {
			return r, fmt.Errorf("classify rain: %w", err)
		}
		name := level.String()
		r.RainLevel = &name
	} else {
		r.Unavailable = append(r.Unavailable, "rain")
	}

	temps := features.TempMeans(obs)
	switch {
	case models.Temperature == nil:
		r.Unavailable = append(r.Unavailable, "temperature")
	case len(temps) >= features.TempWindow:
		next, err := models.Temperature.PredictNext(temps[len(temps)-features.TempWindow:])
		if err != nil {
			return r, fmt.Errorf("forecast: %w", err)
		}
		next = common.Round(next, 2)
		r.NextTempMean = &next
	}

	// Without a fitted detector the window is scored against itself.
	var results []anomaly.Result
	if models.Anomaly != nil {
		results, err = models.Anomaly.Score(obs)
	} else {
		results, err = anomaly.FitPredict(obs, opts.Anomaly)
	}
	if err != nil {
		return r, fmt.Errorf("detect anomalies: %w", err)
	}
	for _, res := range results {
		if res.IsAnomaly {
			r.Anomalies = append(r.Anomalies, res)
		}
	}
	return r, nil
}
