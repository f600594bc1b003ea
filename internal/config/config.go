package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/i474232898/weather-regime/internal/modelset"
	"github.com/i474232898/weather-regime/internal/weather"
)

type AppConfig struct {
	Port string

	// Model artifacts, resolved relative to ModelDir.
	ModelDir         string
	ScalerFile       string
	ClusterFile      string
	RainModelFile    string
	TempModelFile    string
	AnomalyModelFile string

	OpenWeatherAPIKey   string
	WeatherAPIKey       string
	GeocoderAPIKey      string
	OpenMeteoArchiveURL string

	HTTPTimeout time.Duration
	HistoryDays int

	// FetchInterval controls how often tracked locations are refreshed.
	FetchInterval time.Duration

	// Locations to track and train on. GeocodeCities are resolved to
	// coordinates at startup and appended.
	Locations     []weather.Location
	GeocodeCities []string

	StoreDriver  string
	StoreDSN     string
	StoreMaxDays int

	TrainHistoryDays  int
	TrainWindowDays   int
	TrainWindowStride int
	ClusterCount      int
	ClusterSeed       int64

	AnomalyContamination float64

	PredictURL     string
	PredictTimeout time.Duration
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}
	var err error

	cfg.Port = getenvDefault("PORT", "5000")

	cfg.ModelDir = getenvDefault("MODEL_DIR", "models")
	cfg.ScalerFile = getenvDefault("SCALER_FILE", "weather_scaler.json")
	cfg.ClusterFile = getenvDefault("CLUSTER_FILE", "weather_kmeans.json")
	cfg.RainModelFile = getenvDefault("RAIN_MODEL_FILE", "rain_classifier.json")
	cfg.TempModelFile = getenvDefault("TEMP_MODEL_FILE", "temp_predictor.json")
	cfg.AnomalyModelFile = getenvDefault("ANOMALY_MODEL_FILE", "anomaly_detector.json")

	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.WeatherAPIKey = os.Getenv("WEATHERAPI_API_KEY")
	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")
	cfg.OpenMeteoArchiveURL = os.Getenv("OPENMETEO_ARCHIVE_URL")

	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	cfg.HistoryDays = getenvInt("HISTORY_DAYS", 30)

	if cfg.FetchInterval, err = getenvDuration("FETCH_INTERVAL", 6*time.Hour); err != nil {
		return nil, err
	}

	if cfg.Locations, err = parseLocations(os.Getenv("LOCATIONS")); err != nil {
		return nil, err
	}
	cfg.GeocodeCities = splitList(os.Getenv("GEOCODE_CITIES"))

	cfg.StoreDriver = getenvDefault("STORE_DRIVER", "memory")
	cfg.StoreDSN = os.Getenv("STORE_DSN")
	cfg.StoreMaxDays = getenvInt("STORE_MAX_DAYS", 400)

	cfg.TrainHistoryDays = getenvInt("TRAIN_HISTORY_DAYS", 730)
	cfg.TrainWindowDays = getenvInt("TRAIN_WINDOW_DAYS", 30)
	cfg.TrainWindowStride = getenvInt("TRAIN_WINDOW_STRIDE", 7)
	cfg.ClusterCount = getenvInt("CLUSTER_COUNT", 3)
	cfg.ClusterSeed = int64(getenvInt("CLUSTER_SEED", 42))

	contamination := getenvDefault("ANOMALY_CONTAMINATION", "0.1")
	if cfg.AnomalyContamination, err = strconv.ParseFloat(contamination, 64); err != nil {
		return nil, fmt.Errorf("invalid ANOMALY_CONTAMINATION: %w", err)
	}
	if cfg.AnomalyContamination <= 0 || cfg.AnomalyContamination >= 0.5 {
		return nil, fmt.Errorf("invalid ANOMALY_CONTAMINATION: %v is outside (0, 0.5)", cfg.AnomalyContamination)
	}

	cfg.PredictURL = getenvDefault("PREDICT_URL", "http://127.0.0.1:5000/predict")
	if cfg.PredictTimeout, err = getenvDuration("PREDICT_TIMEOUT", 2*time.Second); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ModelPaths resolves the artifact file names against ModelDir.
func (c *AppConfig) ModelPaths() modelset.Paths {
	join := func(name string) string {
		if filepath.IsAbs(name) {
			return name
		}
		return filepath.Join(c.ModelDir, name)
	}
	return modelset.Paths{
		Scaler:      join(c.ScalerFile),
		Cluster:     join(c.ClusterFile),
		Rain:        join(c.RainModelFile),
		Temperature: join(c.TempModelFile),
		Anomaly:     join(c.AnomalyModelFile),
	}
}

// parseLocations reads "name@lat,lon;lat,lon;..." where the name is optional.
func parseLocations(s string) ([]weather.Location, error) {
	var locs []weather.Location
	for _, item := range splitList(s) {
		var loc weather.Location
		coords := item
		if at := strings.LastIndex(item, "@"); at >= 0 {
			loc.Name = strings.TrimSpace(item[:at])
			coords = item[at+1:]
		}
		parts := strings.Split(coords, ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid location %q: expected lat,lon", item)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil || lat < -90 || lat > 90 {
			return nil, fmt.Errorf("invalid latitude in %q", item)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil || lon < -180 || lon > 180 {
			return nil, fmt.Errorf("invalid longitude in %q", item)
		}
		loc.Lat, loc.Lon = lat, lon
		locs = append(locs, loc)
	}
	return locs, nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ";") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
