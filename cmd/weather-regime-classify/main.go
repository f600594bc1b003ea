package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/i474232898/weather-regime/internal/client"
	"github.com/i474232898/weather-regime/internal/config"
	"github.com/i474232898/weather-regime/internal/features"
	"github.com/i474232898/weather-regime/internal/store"
	"github.com/i474232898/weather-regime/internal/weather"
	"github.com/i474232898/weather-regime/internal/weather/providers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	lat := flag.Float64("lat", 0, "latitude")
	lon := flag.Float64("lon", 0, "longitude")
	days := flag.Int("days", cfg.HistoryDays, "days of history to summarize")
	url := flag.String("url", cfg.PredictURL, "prediction service /predict URL")
	flag.Parse()

	if *lat < -90 || *lat > 90 || *lon < -180 || *lon > 180 {
		fmt.Fprintln(os.Stderr, "lat must be in [-90, 90] and lon in [-180, 180]")
		os.Exit(2)
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	provs := providers.Configured(httpClient, cfg.OpenMeteoArchiveURL, cfg.WeatherAPIKey, cfg.OpenWeatherAPIKey)
	service := weather.NewService(store.NewMemoryStore(*days), provs)

	ctx := context.Background()
	loc := weather.Location{Lat: *lat, Lon: *lon}
	obs, err := service.History(ctx, loc, *days)
	if err != nil {
		log.Fatalf("history for %s: %v", loc, err)
	}

	v, err := features.ClusterVector(obs)
	if err != nil {
		log.Fatalf("summarize history: %v", err)
	}
	fmt.Printf("%s, %d days: t_max %.1f°C, t_min %.1f°C, wind %.1f km/h, rain %.2f mm/day\n",
		loc, len(obs), v[0], v[1], v[2], v[3])

	c := client.New(*url, cfg.PredictTimeout)
	p, err := c.Classify(ctx, client.Input{TMax: v[0], TMin: v[1], WindSpeed: v[2], Rain: v[3]})
	if err != nil {
		log.Printf("classification failed: %v", err)
	}
	fmt.Println(client.Display(p, err))
}
