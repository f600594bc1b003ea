package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/i474232898/weather-regime/internal/anomaly"
	"github.com/i474232898/weather-regime/internal/config"
	"github.com/i474232898/weather-regime/internal/ml"
	"github.com/i474232898/weather-regime/internal/store"
	"github.com/i474232898/weather-regime/internal/training"
	"github.com/i474232898/weather-regime/internal/weather"
	"github.com/i474232898/weather-regime/internal/weather/providers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	obsStore, closeStore, err := store.Open(cfg.StoreDriver, cfg.StoreDSN, 0)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer closeStore()

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	provs := providers.Configured(httpClient, cfg.OpenMeteoArchiveURL, cfg.WeatherAPIKey, cfg.OpenWeatherAPIKey)
	service := weather.NewService(obsStore, provs)

	locations := cfg.Locations
	if len(cfg.GeocodeCities) > 0 {
		resolved, err := providers.GeocodeCities(cfg.GeocoderAPIKey, cfg.GeocodeCities)
		if err != nil {
			log.Fatalf("failed to resolve training cities: %v", err)
		}
		locations = append(locations, resolved...)
	}

	kmeans := ml.DefaultKMeansConfig()
	kmeans.K = cfg.ClusterCount
	kmeans.Seed = cfg.ClusterSeed
	anomalyCfg := anomaly.DefaultConfig()
	anomalyCfg.Contamination = cfg.AnomalyContamination

	trainer := training.New(service, training.Config{
		Locations:    locations,
		HistoryDays:  cfg.TrainHistoryDays,
		WindowDays:   cfg.TrainWindowDays,
		WindowStride: cfg.TrainWindowStride,
		Cluster:      kmeans,
		Rain:         ml.DefaultLogisticConfig(),
		Anomaly:      anomalyCfg,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	version, err := trainer.Run(ctx, cfg.ModelPaths())
	if err != nil {
		// Previous artifacts are untouched.
		log.Fatalf("training failed: %v", err)
	}
	log.Printf("INFO: trained models version %s written to %s", version, cfg.ModelDir)
}
