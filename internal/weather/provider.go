package weather

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUpstreamData is returned when no provider produced usable history
	// for the requested window and the store cannot cover it either.
	ErrUpstreamData = errors.New("history unavailable")

	// ErrNotFound is returned by stores when nothing is stored for a location.
	ErrNotFound = errors.New("no weather data for location")
)

// Provider abstracts a daily weather archive (e.g. Open-Meteo, WeatherAPI, OpenWeather).
type Provider interface {
	Name() string
	FetchDaily(ctx context.Context, loc Location, w Window) ([]DailyReading, error)
}

// Store is the contract the in-memory and SQL stores must satisfy.
type Store interface {
	SaveObservations(ctx context.Context, loc Location, obs []Observation) error
	GetRange(ctx context.Context, loc Location, from, to time.Time) ([]Observation, error)
}
