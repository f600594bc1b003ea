package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/i474232898/weather-regime/internal/weather"
)

// ObservationHistory holds a date-ordered list of daily observations for a location.
type ObservationHistory struct {
	Observations []weather.Observation
}

// MemoryStore is a concurrency-safe in-memory implementation of weather.Store.
type MemoryStore struct {
	mu sync.RWMutex

	// key: location key, value: history
	data map[string]*ObservationHistory

	// max number of days kept per location
	maxDays int
}

// NewMemoryStore creates a new MemoryStore.
// If maxDays is <= 0, it is treated as unlimited.
func NewMemoryStore(maxDays int) *MemoryStore {
	return &MemoryStore{
		data:    make(map[string]*ObservationHistory),
		maxDays: maxDays,
	}
}

// SaveObservations merges obs into the location's history. A day that is
// already stored is replaced by the newer observation.
func (s *MemoryStore) SaveObservations(_ context.Context, loc weather.Location, obs []weather.Observation) error {
	key := loc.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[key]
	if !ok {
		history = &ObservationHistory{}
		s.data[key] = history
	}

	byDay := make(map[string]int, len(history.Observations))
	for i, o := range history.Observations {
		byDay[o.Day()] = i
	}
	for _, o := range obs {
		if i, exists := byDay[o.Day()]; exists {
			history.Observations[i] = o
			continue
		}
		byDay[o.Day()] = len(history.Observations)
		history.Observations = append(history.Observations, o)
	}

	sort.Slice(history.Observations, func(i, j int) bool {
		return history.Observations[i].Date.Before(history.Observations[j].Date)
	})

	// Enforce retention by count.
	if s.maxDays > 0 && len(history.Observations) > s.maxDays {
		over := len(history.Observations) - s.maxDays
		history.Observations = history.Observations[over:]
	}
	return nil
}

// GetRange returns all observations for a location between from and to (inclusive).
func (s *MemoryStore) GetRange(_ context.Context, loc weather.Location, from, to time.Time) ([]weather.Observation, error) {
	key := loc.Key()

	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[key]
	if !ok || len(history.Observations) == 0 {
		return nil, weather.ErrNotFound
	}

	var result []weather.Observation
	for _, o := range history.Observations {
		if !o.Date.Before(from) && !o.Date.After(to) {
			result = append(result, o)
		}
	}

	if len(result) == 0 {
		return nil, weather.ErrNotFound
	}
	return result, nil
}
