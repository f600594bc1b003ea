package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/weather-regime/internal/weather"
)

// openWeatherDayConcurrency bounds parallel day_summary calls per window.
const openWeatherDayConcurrency = 4

// OpenWeatherProvider implements weather.Provider using the One Call 3.0
// day_summary endpoint, which returns one aggregated day per request.
type OpenWeatherProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenWeatherProvider(client *http.Client, apiKey string) *OpenWeatherProvider {
	return &OpenWeatherProvider{
		name:    "openweathermap",
		apiKey:  apiKey,
		baseURL: "https://api.openweathermap.org/data/3.0/onecall/day_summary",
		httpCfg: defaultHTTPConfig(client),
		circuit: newBreaker("openweather"),
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

type openWeatherDaySummary struct {
	Date        string `json:"date"`
	Temperature struct {
		Min       *float64 `json:"min"`
		Max       *float64 `json:"max"`
		Morning   *float64 `json:"morning"`
		Afternoon *float64 `json:"afternoon"`
		Evening   *float64 `json:"evening"`
		Night     *float64 `json:"night"`
	} `json:"temperature"`
	Precipitation struct {
		Total *float64 `json:"total"`
	} `json:"precipitation"`
	Wind struct {
		Max struct {
			Speed *float64 `json:"speed"`
		} `json:"max"`
	} `json:"wind"`
}

// FetchDaily issues one request per day, at most openWeatherDayConcurrency at a time.
// Any failed day fails the whole window so a partial series is never averaged in.
func (p *OpenWeatherProvider) FetchDaily(ctx context.Context, loc weather.Location, w weather.Window) ([]weather.DailyReading, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("openweather: %w", errMissingAPIKey)
	}

	var (
		mu  sync.Mutex
		out []weather.DailyReading
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(openWeatherDayConcurrency)

	for d := w.From; !d.After(w.To); d = d.AddDate(0, 0, 1) {
		day := d
		g.Go(func() error {
			r, err := p.fetchDay(gCtx, loc, day)
			if err != nil {
				return fmt.Errorf("openweather %s: %w", day.Format(weather.DateLayout), err)
			}
			mu.Lock()
			out = append(out, r)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (p *OpenWeatherProvider) fetchDay(ctx context.Context, loc weather.Location, day time.Time) (weather.DailyReading, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("appid", p.apiKey)
		values.Set("units", "metric")
		values.Set("lat", fmt.Sprintf("%f", loc.Lat))
		values.Set("lon", fmt.Sprintf("%f", loc.Lon))
		values.Set("date", day.Format(weather.DateLayout))

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.DailyReading{}, err
	}
	defer resp.Body.Close()

	var payload openWeatherDaySummary
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.DailyReading{}, err
	}

	t := payload.Temperature
	if t.Min == nil && t.Max == nil {
		return weather.DailyReading{}, errIncompleteData
	}

	r := weather.DailyReading{
		ProviderName: p.name,
		Date:         day,
		TempMax:      deref(t.Max),
		TempMin:      deref(t.Min),
		RainMM:       deref(payload.Precipitation.Total),
		WindMaxKmh:   deref(payload.Wind.Max.Speed) * 3.6, // m/s in metric units
	}

	var sum, n float64
	for _, v := range []*float64{t.Morning, t.Afternoon, t.Evening, t.Night} {
		if v != nil {
			sum += *v
			n++
		}
	}
	if n > 0 {
		mean := sum / n
		r.TempMean = &mean
	}
	return r, nil
}
