package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-regime/internal/weather"
)

// weatherAPIMaxSpan is the longest dt..end_dt range history.json accepts.
const weatherAPIMaxSpan = 30

// WeatherAPIProvider implements weather.Provider using WeatherAPI's history endpoint.
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewWeatherAPIProvider(client *http.Client, apiKey string) *WeatherAPIProvider {
	return &WeatherAPIProvider{
		name:    "weatherapi",
		apiKey:  apiKey,
		baseURL: "https://api.weatherapi.com/v1/history.json",
		httpCfg: defaultHTTPConfig(client),
		circuit: newBreaker("weatherapi"),
	}
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

type weatherAPIHistory struct {
	Forecast struct {
		ForecastDay []struct {
			Date string `json:"date"`
			Day  struct {
				MaxTempC    *float64 `json:"maxtemp_c"`
				MinTempC    *float64 `json:"mintemp_c"`
				AvgTempC    *float64 `json:"avgtemp_c"`
				MaxWindKph  *float64 `json:"maxwind_kph"`
				TotalPrecip *float64 `json:"totalprecip_mm"`
				TotalSnowCm *float64 `json:"totalsnow_cm"`
			} `json:"day"`
		} `json:"forecastday"`
	} `json:"forecast"`
}

// FetchDaily requests the window in spans of at most 30 days.
func (p *WeatherAPIProvider) FetchDaily(ctx context.Context, loc weather.Location, w weather.Window) ([]weather.DailyReading, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("weatherapi: %w", errMissingAPIKey)
	}

	var out []weather.DailyReading
	for from := w.From; !from.After(w.To); from = from.AddDate(0, 0, weatherAPIMaxSpan) {
		to := from.AddDate(0, 0, weatherAPIMaxSpan-1)
		if to.After(w.To) {
			to = w.To
		}
		span, err := p.fetchSpan(ctx, loc, from, to)
		if err != nil {
			return nil, err
		}
		out = append(out, span...)
	}
	return out, nil
}

func (p *WeatherAPIProvider) fetchSpan(ctx context.Context, loc weather.Location, from, to time.Time) ([]weather.DailyReading, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("key", p.apiKey)
		values.Set("q", fmt.Sprintf("%f,%f", loc.Lat, loc.Lon))
		values.Set("dt", from.Format(weather.DateLayout))
		values.Set("end_dt", to.Format(weather.DateLayout))

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload weatherAPIHistory
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	if len(payload.Forecast.ForecastDay) == 0 {
		return nil, fmt.Errorf("weatherapi: %w: no days returned", errIncompleteData)
	}

	out := make([]weather.DailyReading, 0, len(payload.Forecast.ForecastDay))
	for _, fd := range payload.Forecast.ForecastDay {
		day, err := time.Parse(weather.DateLayout, fd.Date)
		if err != nil {
			return nil, fmt.Errorf("weatherapi: %w: bad date %q", errIncompleteData, fd.Date)
		}
		r := weather.DailyReading{
			ProviderName: p.name,
			Date:         day,
			TempMax:      deref(fd.Day.MaxTempC),
			TempMin:      deref(fd.Day.MinTempC),
			TempMean:     fd.Day.AvgTempC,
			RainMM:       deref(fd.Day.TotalPrecip),
			SnowMM:       deref(fd.Day.TotalSnowCm) * 10, // cm of snow counted as 10 mm
			WindMaxKmh:   deref(fd.Day.MaxWindKph),
		}
		out = append(out, r)
	}
	return out, nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
