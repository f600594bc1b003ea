package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/i474232898/weather-regime/internal/weather"
)

var hanoi = weather.Location{Name: "Hanoi", Lat: 21.0285, Lon: 105.8542}

func testWindow() weather.Window {
	return weather.Window{
		From: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC),
	}
}

func fastBackoff(p *HTTPClientConfig) {
	p.Backoff = BackoffConfig{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}
}

func TestOpenMeteoFetchDaily(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"daily":{
			"time":["2024-05-01","2024-05-02","2024-05-03"],
			"temperature_2m_max":[33.1,32.0,null],
			"temperature_2m_min":[25.0,24.2,23.9],
			"temperature_2m_mean":[28.4,null,27.0],
			"rain_sum":[0.0,12.5,null],
			"snowfall_sum":[0,0,0],
			"windspeed_10m_max":[11.2,14.8,9.0]}}`)
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(srv.Client(), srv.URL)
	readings, err := p.FetchDaily(context.Background(), hanoi, testWindow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{"start_date=2024-05-01", "end_date=2024-05-03", "timezone=auto", "windspeed_10m_max"} {
		if !strings.Contains(gotQuery, want) {
			t.Fatalf("expected query to contain %q, got %s", want, gotQuery)
		}
	}

	if len(readings) != 3 {
		t.Fatalf("expected 3 readings, got %d", len(readings))
	}
	if readings[1].TempMean != nil {
		t.Fatalf("expected nil mean for a null value, got %v", *readings[1].TempMean)
	}
	if readings[2].TempMax != 0 || readings[2].RainMM != 0 {
		t.Fatalf("expected nulls to default to 0, got max %v rain %v", readings[2].TempMax, readings[2].RainMM)
	}

	obs := weather.AggregateReadings(readings)
	if obs[1].TempMean != (32.0+24.2)/2 {
		t.Fatalf("expected derived mean, got %v", obs[1].TempMean)
	}
}

func TestOpenMeteoEmptyDailyIsIncomplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"daily":{}}`)
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(srv.Client(), srv.URL)
	_, err := p.FetchDaily(context.Background(), hanoi, testWindow())
	if !errors.Is(err, errIncompleteData) {
		t.Fatalf("expected errIncompleteData, got %v", err)
	}
}

func TestResilienceRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"daily":{"time":["2024-05-01"],"temperature_2m_max":[30],"temperature_2m_min":[20]}}`)
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(srv.Client(), srv.URL)
	fastBackoff(&p.httpCfg)

	readings, err := p.FetchDaily(context.Background(), hanoi, testWindow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(readings) != 1 || atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 1 reading after 3 calls, got %d readings after %d calls", len(readings), calls)
	}
}

func TestResilienceDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(srv.Client(), srv.URL)
	fastBackoff(&p.httpCfg)

	_, err := p.FetchDaily(context.Background(), hanoi, testWindow())
	if !errors.Is(err, errUnexpected) {
		t.Fatalf("expected errUnexpected, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}

func TestWeatherAPIFetchDaily(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"forecast":{"forecastday":[
			{"date":"2024-05-01","day":{"maxtemp_c":33,"mintemp_c":25,"avgtemp_c":28.5,"maxwind_kph":20.5,"totalprecip_mm":3.2,"totalsnow_cm":0}},
			{"date":"2024-05-02","day":{"maxtemp_c":31,"mintemp_c":24,"maxwind_kph":18,"totalprecip_mm":14}}]}}`)
	}))
	defer srv.Close()

	p := NewWeatherAPIProvider(srv.Client(), "secret")
	p.baseURL = srv.URL

	readings, err := p.FetchDaily(context.Background(), hanoi, testWindow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(readings) != 2 {
		t.Fatalf("expected 2 readings, got %d", len(readings))
	}
	if readings[0].TempMean == nil || *readings[0].TempMean != 28.5 {
		t.Fatalf("expected mean 28.5, got %v", readings[0].TempMean)
	}
	if readings[1].RainMM != 14 || readings[1].WindMaxKmh != 18 {
		t.Fatalf("unexpected second reading: %+v", readings[1])
	}
}

func TestProvidersRequireAPIKeys(t *testing.T) {
	ctx := context.Background()
	if _, err := NewWeatherAPIProvider(http.DefaultClient, "").FetchDaily(ctx, hanoi, testWindow()); !errors.Is(err, errMissingAPIKey) {
		t.Fatalf("expected errMissingAPIKey, got %v", err)
	}
	if _, err := NewOpenWeatherProvider(http.DefaultClient, "").FetchDaily(ctx, hanoi, testWindow()); !errors.Is(err, errMissingAPIKey) {
		t.Fatalf("expected errMissingAPIKey, got %v", err)
	}
}

func TestConfiguredProviders(t *testing.T) {
	provs := Configured(http.DefaultClient, "", "", "")
	if len(provs) != 1 || provs[0].Name() != "openmeteo" {
		t.Fatalf("expected only openmeteo without keys, got %d providers", len(provs))
	}
	if provs := Configured(http.DefaultClient, "", "wa-key", "ow-key"); len(provs) != 3 {
		t.Fatalf("expected 3 providers with both keys, got %d", len(provs))
	}
}

func TestOpenWeatherFetchDailyPerDay(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		date := r.URL.Query().Get("date")
		fmt.Fprintf(w, `{"date":%q,"temperature":{"min":24,"max":32,"morning":26,"afternoon":31,"evening":29,"night":26},
			"precipitation":{"total":1.5},"wind":{"max":{"speed":5}}}`, date)
	}))
	defer srv.Close()

	p := NewOpenWeatherProvider(srv.Client(), "secret")
	p.baseURL = srv.URL

	readings, err := p.FetchDaily(context.Background(), hanoi, testWindow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(readings) != 3 || atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 readings from 3 calls, got %d from %d", len(readings), calls)
	}
	if !readings[0].Date.Before(readings[2].Date) {
		t.Fatal("expected readings sorted by date")
	}
	if readings[0].WindMaxKmh != 18 {
		t.Fatalf("expected 5 m/s converted to 18 km/h, got %v", readings[0].WindMaxKmh)
	}
	if readings[0].TempMean == nil || *readings[0].TempMean != 28 {
		t.Fatalf("expected mean 28, got %v", readings[0].TempMean)
	}
}
