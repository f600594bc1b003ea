package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-regime/internal/weather"
)

// DefaultOpenMeteoArchiveURL is the public Open-Meteo historical weather endpoint.
const DefaultOpenMeteoArchiveURL = "https://archive-api.open-meteo.com/v1/archive"

const openMeteoDailyVars = "temperature_2m_max,temperature_2m_min,temperature_2m_mean,rain_sum,snowfall_sum,windspeed_10m_max"

// OpenMeteoProvider implements weather.Provider for the Open-Meteo archive API.
// It needs no API key.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenMeteoProvider(client *http.Client, baseURL string) *OpenMeteoProvider {
	if baseURL == "" {
		baseURL = DefaultOpenMeteoArchiveURL
	}
	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: baseURL,
		httpCfg: defaultHTTPConfig(client),
		circuit: newBreaker("openmeteo"),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

type openMeteoArchive struct {
	Daily struct {
		Time     []string   `json:"time"`
		TempMax  []*float64 `json:"temperature_2m_max"`
		TempMin  []*float64 `json:"temperature_2m_min"`
		TempMean []*float64 `json:"temperature_2m_mean"`
		Rain     []*float64 `json:"rain_sum"`
		Snow     []*float64 `json:"snowfall_sum"`
		WindMax  []*float64 `json:"windspeed_10m_max"`
	} `json:"daily"`
}

func (p *OpenMeteoProvider) FetchDaily(ctx context.Context, loc weather.Location, w weather.Window) ([]weather.DailyReading, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", strconv.FormatFloat(loc.Lat, 'f', -1, 64))
		values.Set("longitude", strconv.FormatFloat(loc.Lon, 'f', -1, 64))
		values.Set("start_date", w.From.Format(weather.DateLayout))
		values.Set("end_date", w.To.Format(weather.DateLayout))
		values.Set("daily", openMeteoDailyVars)
		values.Set("timezone", "auto")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload openMeteoArchive
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	return parseOpenMeteoDaily(p.name, payload)
}

func parseOpenMeteoDaily(provider string, payload openMeteoArchive) ([]weather.DailyReading, error) {
	d := payload.Daily
	if len(d.Time) == 0 {
		return nil, fmt.Errorf("openmeteo: %w: no days returned", errIncompleteData)
	}

	out := make([]weather.DailyReading, 0, len(d.Time))
	for i, ts := range d.Time {
		day, err := time.Parse(weather.DateLayout, ts)
		if err != nil {
			return nil, fmt.Errorf("openmeteo: %w: bad date %q", errIncompleteData, ts)
		}

		r := weather.DailyReading{
			ProviderName: provider,
			Date:         day,
			TempMax:      orZero(d.TempMax, i),
			TempMin:      orZero(d.TempMin, i),
			RainMM:       orZero(d.Rain, i),
			SnowMM:       orZero(d.Snow, i),
			WindMaxKmh:   orZero(d.WindMax, i),
		}
		if v, ok := valueAt(d.TempMean, i); ok {
			r.TempMean = &v
		}
		out = append(out, r)
	}
	return out, nil
}
