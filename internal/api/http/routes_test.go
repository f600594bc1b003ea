package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-regime/internal/climate"
	"github.com/i474232898/weather-regime/internal/forecast"
	"github.com/i474232898/weather-regime/internal/ml"
	"github.com/i474232898/weather-regime/internal/modelset"
	"github.com/i474232898/weather-regime/internal/rain"
	"github.com/i474232898/weather-regime/internal/store"
	"github.com/i474232898/weather-regime/internal/weather"
)

type stubProvider struct {
	err  error
	rain float64
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) FetchDaily(_ context.Context, _ weather.Location, w weather.Window) ([]weather.DailyReading, error) {
	if p.err != nil {
		return nil, p.err
	}
	var out []weather.DailyReading
	for d := w.From; !d.After(w.To); d = d.AddDate(0, 0, 1) {
		mean := 28.0
		out = append(out, weather.DailyReading{
			ProviderName: "stub",
			Date:         d,
			TempMax:      32,
			TempMin:      24,
			TempMean:     &mean,
			RainMM:       p.rain,
			WindMaxKmh:   10,
		})
	}
	return out, nil
}

// trainedClimate fits the classifier on wet, normal and dry windows.
func trainedClimate(t *testing.T) *climate.Classifier {
	t.Helper()
	rng := rand.New(rand.NewSource(9))
	centers := [][]float64{{28, 22, 15, 15}, {30, 23, 12, 4}, {33, 24, 9, 0.1}}
	var x [][]float64
	for _, c := range centers {
		for i := 0; i < 20; i++ {
			x = append(x, []float64{
				c[0] + rng.NormFloat64()*0.2,
				c[1] + rng.NormFloat64()*0.2,
				c[2] + rng.NormFloat64()*0.2,
				c[3] + rng.Float64()*0.1,
			})
		}
	}
	c, err := climate.Train(x, ml.DefaultKMeansConfig())
	if err != nil {
		t.Fatalf("train climate: %v", err)
	}
	return c
}

func newApp(models *modelset.Set, provider weather.Provider) *fiber.App {
	app := fiber.New()
	var provs []weather.Provider
	if provider != nil {
		provs = append(provs, provider)
	}
	svc := weather.NewService(store.NewMemoryStore(0), provs)
	RegisterRoutes(app, models, svc, Options{})
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, target, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	out := map[string]any{}
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out
}

func TestPredictReturnsDryCondition(t *testing.T) {
	app := newApp(&modelset.Set{Climate: trainedClimate(t)}, nil)

	code, body := doJSON(t, app, http.MethodPost, "/predict", `{"t_max":32,"t_min":24,"wind_speed":10,"rain":0.2}`)
	if code != http.StatusOK {
		t.Fatalf("expected status %d, got %d (%v)", http.StatusOK, code, body)
	}
	if body["status"] != "success" {
		t.Fatalf("expected success, got %v", body)
	}
	if cond, _ := body["condition"].(string); !strings.Contains(cond, "Dry") {
		t.Fatalf("expected a Dry condition, got %v", body)
	}
	if body["color"] != climate.Dry.Color || body["icon"] != climate.Dry.Icon {
		t.Fatalf("unexpected display fields %v", body)
	}
	if _, ok := body["cluster_id"].(float64); !ok {
		t.Fatalf("expected numeric cluster_id, got %v", body["cluster_id"])
	}
}

func TestPredictRejectsBadBodies(t *testing.T) {
	app := newApp(&modelset.Set{Climate: trainedClimate(t)}, nil)

	bodies := []string{
		`{"t_max":32,"t_min":24,"wind_speed":10}`,
		`{"t_max":"hot","t_min":24,"wind_speed":10,"rain":0}`,
		`{not json`,
		``,
	}
	for _, b := range bodies {
		code, body := doJSON(t, app, http.MethodPost, "/predict", b)
		if code != http.StatusBadRequest {
			t.Fatalf("body %q: expected status %d, got %d", b, http.StatusBadRequest, code)
		}
		if body["status"] != "error" || body["message"] == "" {
			t.Fatalf("body %q: unexpected response %v", b, body)
		}
	}

	// Zero is a valid reading, not a missing one.
	code, _ := doJSON(t, app, http.MethodPost, "/predict", `{"t_max":0,"t_min":0,"wind_speed":0,"rain":0}`)
	if code != http.StatusOK {
		t.Fatalf("expected zeros to be accepted, got %d", code)
	}
}

func TestPredictWithoutModel(t *testing.T) {
	app := newApp(nil, nil)

	for _, b := range []string{`{"t_max":32,"t_min":24,"wind_speed":10,"rain":0.2}`, `{"t_max":32}`, `garbage`} {
		code, body := doJSON(t, app, http.MethodPost, "/predict", b)
		if code != http.StatusInternalServerError {
			t.Fatalf("body %q: expected status %d, got %d", b, http.StatusInternalServerError, code)
		}
		if body["error"] != "Model not loaded" || len(body) != 1 {
			t.Fatalf("body %q: unexpected response %v", b, body)
		}
	}
}

func TestTemperatureWindowValidation(t *testing.T) {
	series := make([]float64, 300)
	rng := rand.New(rand.NewSource(4))
	for i := range series {
		series[i] = 20 + rng.NormFloat64()
	}
	p, err := forecast.Train(series)
	if err != nil {
		t.Fatalf("train forecast: %v", err)
	}
	app := newApp(&modelset.Set{Temperature: p}, nil)

	code, _ := doJSON(t, app, http.MethodPost, "/api/v1/temperature/predict", `{"temps":[20,20,20,20,20,20]}`)
	if code != http.StatusBadRequest {
		t.Fatalf("expected status %d for 6 values, got %d", http.StatusBadRequest, code)
	}
	code, body := doJSON(t, app, http.MethodPost, "/api/v1/temperature/predict", `{"temps":[20,20,20,20,20,20,20]}`)
	if code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, code)
	}
	if _, ok := body["next_tmean"].(float64); !ok {
		t.Fatalf("expected next_tmean, got %v", body)
	}
}

func TestRainPredict(t *testing.T) {
	var obs []weather.Observation
	for i := 0; i < 60; i++ {
		obs = append(obs, weather.Observation{TempMean: 26, WindMaxKmh: 10, RainMM: float64(i) / 2})
	}
	r, err := rain.Train(obs, ml.DefaultLogisticConfig())
	if err != nil {
		t.Fatalf("train rain: %v", err)
	}
	app := newApp(&modelset.Set{Rain: r}, nil)

	code, body := doJSON(t, app, http.MethodPost, "/api/v1/rain/predict", `{"tmean":26,"wind_max":10,"rain":28}`)
	if code != http.StatusOK || body["level"] != "Humid" {
		t.Fatalf("unexpected response %d %v", code, body)
	}
	if code, _ := doJSON(t, app, http.MethodPost, "/api/v1/rain/predict", `{"tmean":26,"rain":2}`); code != http.StatusBadRequest {
		t.Fatalf("expected status %d for missing wind_max, got %d", http.StatusBadRequest, code)
	}

	noModel := newApp(nil, nil)
	if code, _ := doJSON(t, noModel, http.MethodPost, "/api/v1/rain/predict", `{"tmean":26,"wind_max":10,"rain":2}`); code != http.StatusInternalServerError {
		t.Fatalf("expected status %d without a model, got %d", http.StatusInternalServerError, code)
	}
}

func TestAnomalyDetect(t *testing.T) {
	var rows []string
	for i := 0; i < 29; i++ {
		rows = append(rows, `{"temp_mean":27,"rain_mm":2,"wind_max_kmh":10}`)
	}
	rows = append(rows, `{"temp_mean":27,"rain_mm":200,"wind_max_kmh":10}`)
	app := newApp(nil, nil)

	code, body := doJSON(t, app, http.MethodPost, "/api/v1/anomalies/detect", `{"observations":[`+strings.Join(rows, ",")+`]}`)
	if code != http.StatusOK {
		t.Fatalf("expected status %d, got %d (%v)", http.StatusOK, code, body)
	}
	results, _ := body["results"].([]any)
	if len(results) != 30 {
		t.Fatalf("expected 30 results, got %d", len(results))
	}
	for i, r := range results {
		label := r.(map[string]any)["label"]
		want := "Normal"
		if i == 29 {
			want = "Anomalous"
		}
		if label != want {
			t.Fatalf("row %d: expected %s, got %v", i, want, label)
		}
	}

	if code, _ := doJSON(t, app, http.MethodPost, "/api/v1/anomalies/score", `{"observations":[{}]}`); code != http.StatusInternalServerError {
		t.Fatalf("expected status %d without a detector, got %d", http.StatusInternalServerError, code)
	}
}

func TestAnomalyRowsDeriveMeanAndAcceptDays(t *testing.T) {
	var rows []string
	for i := 0; i < 30; i++ {
		rows = append(rows, fmt.Sprintf(`{"date":"2024-06-%02d","temp_max":30,"temp_min":20,"rain_mm":%d,"wind_max_kmh":10}`, i+1, i%5))
	}
	app := newApp(nil, nil)

	code, body := doJSON(t, app, http.MethodPost, "/api/v1/anomalies/detect", `{"observations":[`+strings.Join(rows, ",")+`]}`)
	if code != http.StatusOK {
		t.Fatalf("expected status %d, got %d (%v)", http.StatusOK, code, body)
	}
	results, _ := body["results"].([]any)
	if len(results) != 30 {
		t.Fatalf("expected 30 results, got %d", len(results))
	}
	first := results[0].(map[string]any)
	if first["temp_mean"] != 25.0 {
		t.Fatalf("expected derived temp_mean 25, got %v", first["temp_mean"])
	}
	if date, _ := first["date"].(string); !strings.HasPrefix(date, "2024-06-01") {
		t.Fatalf("expected date 2024-06-01, got %v", first["date"])
	}

	code, _ = doJSON(t, app, http.MethodPost, "/api/v1/anomalies/detect", `{"observations":[{"date":"June 1st","temp_mean":20}]}`)
	if code != http.StatusBadRequest {
		t.Fatalf("expected status %d for a bad date, got %d", http.StatusBadRequest, code)
	}
}

func TestHistoryUpstreamFailure(t *testing.T) {
	app := newApp(nil, &stubProvider{err: errors.New("boom")})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/weather/history?lat=10.8&lon=106.6", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected status %d, got %d", http.StatusBadGateway, resp.StatusCode)
	}
}

func TestHistoryValidation(t *testing.T) {
	app := newApp(nil, &stubProvider{})

	for _, target := range []string{
		"/api/v1/weather/history?lon=106.6",
		"/api/v1/weather/history?lat=north&lon=106.6",
		"/api/v1/weather/history?lat=95&lon=106.6",
		"/api/v1/weather/history?lat=10&lon=106.6&days=0",
	} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		resp, err := app.Test(req, -1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected status %d, got %d", target, http.StatusBadRequest, resp.StatusCode)
		}
	}

	code, body := doJSON(t, app, http.MethodGet, "/api/v1/weather/history?lat=0&lon=0&days=5", "")
	if code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, code)
	}
	if obs, _ := body["observations"].([]any); len(obs) != 5 {
		t.Fatalf("expected 5 observations, got %d", len(obs))
	}
}

func TestAnalysisClassifiesWindow(t *testing.T) {
	app := newApp(&modelset.Set{Climate: trainedClimate(t)}, &stubProvider{rain: 0.1})

	code, body := doJSON(t, app, http.MethodGet, "/api/v1/analysis?lat=21.0&lon=105.8", "")
	if code != http.StatusOK {
		t.Fatalf("expected status %d, got %d (%v)", http.StatusOK, code, body)
	}
	regime, _ := body["regime"].(map[string]any)
	if cond, _ := regime["condition"].(string); !strings.Contains(cond, "Dry") {
		t.Fatalf("expected a Dry regime, got %v", body["regime"])
	}
	summary, _ := body["summary"].(map[string]any)
	if summary["days"] != float64(30) || summary["rain"] != 0.1 {
		t.Fatalf("unexpected summary %v", summary)
	}
	if body["rain_level"] != nil || body["next_tmean"] != nil {
		t.Fatalf("expected unloaded models to be null, got %v", body)
	}
}
