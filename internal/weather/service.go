package weather

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// Service orchestrates fetching daily history from providers and persisting it.
type Service struct {
	store     Store
	providers []Provider
	now       func() time.Time
}

// NewService creates a new Service.
func NewService(store Store, providers []Provider) *Service {
	return &Service{
		store:     store,
		providers: providers,
		now:       time.Now,
	}
}

// Providers returns the number of configured providers.
func (s *Service) Providers() int {
	return len(s.providers)
}

// fetch queries all providers concurrently for w and aggregates the successful
// readings. Providers that fail are logged and skipped.
func (s *Service) fetch(ctx context.Context, loc Location, w Window) ([]Observation, error) {
	if len(s.providers) == 0 {
		return nil, fmt.Errorf("no weather providers configured")
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		readings []DailyReading
		lastErr  error
	)

	for _, p := range s.providers {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()

			rs, err := p.FetchDaily(ctx, loc, w)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// Partial success is fine; keep the error for the caller only if nobody succeeds.
				log.Printf("provider %s history fetch failed for %s: %v", p.Name(), loc, err)
				lastErr = err
				return
			}
			readings = append(readings, rs...)
		}()
	}
	wg.Wait()

	obs := clip(AggregateReadings(readings), w)
	if len(obs) == 0 {
		if lastErr == nil {
			lastErr = errors.New("providers returned no days in window")
		}
		return nil, lastErr
	}
	return obs, nil
}

// FetchAndStore fetches the trailing window of `days` days and stores it.
// Nothing is written when no provider succeeds, so the last good history stays.
func (s *Service) FetchAndStore(ctx context.Context, loc Location, days int) error {
	if days <= 0 {
		return fmt.Errorf("days must be greater than zero")
	}
	w := TrailingWindow(s.now(), days)
	obs, err := s.fetch(ctx, loc, w)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamData, err)
	}
	if err := s.store.SaveObservations(ctx, loc, obs); err != nil {
		return fmt.Errorf("store observations for %s: %w", loc, err)
	}
	log.Printf("DEBUG: stored %d days for %s", len(obs), loc)
	return nil
}

// History returns the trailing window of `days` days for loc. Upstream is tried
// first; when it fails the stored history is used if it covers the whole window.
func (s *Service) History(ctx context.Context, loc Location, days int) ([]Observation, error) {
	if days <= 0 {
		return nil, fmt.Errorf("days must be greater than zero")
	}
	w := TrailingWindow(s.now(), days)
	return s.HistoryRange(ctx, loc, w)
}

// HistoryRange is History for an explicit window.
func (s *Service) HistoryRange(ctx context.Context, loc Location, w Window) ([]Observation, error) {
	obs, fetchErr := s.fetch(ctx, loc, w)
	if fetchErr == nil {
		if err := s.store.SaveObservations(ctx, loc, obs); err != nil {
			log.Printf("ERROR: failed to store history for %s: %v", loc, err)
		}
		return obs, nil
	}

	stored, err := s.store.GetRange(ctx, loc, w.From, w.To)
	if err == nil && covers(stored, w) {
		log.Printf("INFO: upstream unavailable for %s, serving stored history: %v", loc, fetchErr)
		return stored, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrUpstreamData, fetchErr)
}

// GetRange delegates to the underlying store.
func (s *Service) GetRange(ctx context.Context, loc Location, from, to time.Time) ([]Observation, error) {
	return s.store.GetRange(ctx, loc, from, to)
}

func clip(obs []Observation, w Window) []Observation {
	out := obs[:0]
	for _, o := range obs {
		if o.Date.Before(w.From) || o.Date.After(w.To) {
			continue
		}
		out = append(out, o)
	}
	return out
}
