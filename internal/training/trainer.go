// Package training rebuilds every model from archived daily history.
package training

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/i474232898/weather-regime/internal/anomaly"
	"github.com/i474232898/weather-regime/internal/climate"
	"github.com/i474232898/weather-regime/internal/features"
	"github.com/i474232898/weather-regime/internal/forecast"
	"github.com/i474232898/weather-regime/internal/ml"
	"github.com/i474232898/weather-regime/internal/modelset"
	"github.com/i474232898/weather-regime/internal/rain"
	"github.com/i474232898/weather-regime/internal/weather"
)

// maxConcurrentFetches bounds how many locations are fetched at once.
const maxConcurrentFetches = 4

// HistorySource supplies daily history for a location.
type HistorySource interface {
	History(ctx context.Context, loc weather.Location, days int) ([]weather.Observation, error)
}

// Config controls one training run.
type Config struct {
	Locations    []weather.Location
	HistoryDays  int
	WindowDays   int
	WindowStride int

	Cluster ml.KMeansConfig
	Rain    ml.LogisticConfig
	Anomaly anomaly.Config
}

// Trainer fetches history and fits all models.
type Trainer struct {
	source HistorySource
	cfg    Config
}

// New creates a Trainer.
func New(source HistorySource, cfg Config) *Trainer {
	return &Trainer{source: source, cfg: cfg}
}

// Collect fetches history for every configured location. Any failure aborts
// the whole collection.
func (t *Trainer) Collect(ctx context.Context) ([][]weather.Observation, error) {
	if len(t.cfg.Locations) == 0 {
		return nil, errors.New("no training locations configured")
	}

	histories := make([][]weather.Observation, len(t.cfg.Locations))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)
	for i, loc := range t.cfg.Locations {
		i, loc := i, loc
		g.Go(func() error {
			obs, err := t.source.History(ctx, loc, t.cfg.HistoryDays)
			if err != nil {
				return fmt.Errorf("history for %s: %w", loc, err)
			}
			log.Printf("training: fetched %d days for %s", len(obs), loc)
			histories[i] = obs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return histories, nil
}

// Build fits every model on histories, one series per location. Nothing is
// written; a failure in any model fails the whole build.
func Build(histories [][]weather.Observation, cfg Config) (*modelset.Set, error) {
	var (
		vectors [][]float64
		all     []weather.Observation
		temps   [][]float64
	)
	for _, h := range histories {
		vectors = append(vectors, features.ClusterWindows(h, cfg.WindowDays, cfg.WindowStride)...)
		all = append(all, h...)
		temps = append(temps, features.TempMeans(h))
	}
	if len(vectors) < cfg.Cluster.K {
		return nil, fmt.Errorf("%w: %d cluster windows of %d days", ml.ErrInsufficientData, len(vectors), cfg.WindowDays)
	}

	set := &modelset.Set{}
	var (
		mu   sync.Mutex
		errs []error
	)
	fail := func(name string, err error) {
		mu.Lock()
		errs = append(errs, fmt.Errorf("%s: %w", name, err))
		mu.Unlock()
	}

	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		c, err := climate.Train(vectors, cfg.Cluster)
		if err != nil {
			fail("climate", err)
			return
		}
		set.Climate = c
	}()
	go func() {
		defer wg.Done()
		r, err := rain.Train(all, cfg.Rain)
		if err != nil {
			fail("rain", err)
			return
		}
		set.Rain = r
	}()
	go func() {
		defer wg.Done()
		p, err := forecast.Train(temps...)
		if err != nil {
			fail("temperature", err)
			return
		}
		set.Temperature = p
	}()
	go func() {
		defer wg.Done()
		a, err := anomaly.Fit(all, cfg.Anomaly)
		if err != nil {
			fail("anomaly", err)
			return
		}
		set.Anomaly = a
	}()
	wg.Wait()

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return set, nil
}

// Run collects history, builds every model and saves them as one versioned
// group. It returns the new version.
func (t *Trainer) Run(ctx context.Context, paths modelset.Paths) (string, error) {
	histories, err := t.Collect(ctx)
	if err != nil {
		return "", err
	}
	set, err := Build(histories, t.cfg)
	if err != nil {
		return "", fmt.Errorf("training aborted: %w", err)
	}
	if set.Climate != nil {
		for id, l := range set.Climate.Labels() {
			log.Printf("training: cluster %d is %s, centroid %v", id, l.Name, set.Climate.Centroids()[id])
		}
	}
	return set.Save(paths)
}
