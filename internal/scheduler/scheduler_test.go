package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/i474232898/weather-regime/internal/weather"
)

type recordingRefresher struct {
	mu    sync.Mutex
	calls map[string]int
	days  int
	err   error
}

func (r *recordingRefresher) FetchAndStore(_ context.Context, loc weather.Location, days int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls == nil {
		r.calls = map[string]int{}
	}
	r.calls[loc.Key()]++
	r.days = days
	return r.err
}

func TestRefreshCoversEveryLocation(t *testing.T) {
	locs := []weather.Location{{Lat: 21.03, Lon: 105.85}, {Lat: 10.82, Lon: 106.63}}
	r := &recordingRefresher{err: errors.New("upstream down")}
	s := New(locs, time.Hour, 30, r)

	s.refresh()

	if len(r.calls) != 2 || r.days != 30 {
		t.Fatalf("unexpected calls %v with days %d", r.calls, r.days)
	}
}

func TestStartRunsImmediately(t *testing.T) {
	r := &recordingRefresher{}
	s := New([]weather.Location{{Lat: 1, Lon: 2}}, time.Hour, 7, r)
	if err := s.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		r.mu.Lock()
		n := len(r.calls)
		r.mu.Unlock()
		if n == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected the first refresh to run right after Start")
}

func TestStartWithoutLocations(t *testing.T) {
	s := New(nil, time.Hour, 30, &recordingRefresher{})
	if err := s.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Stop()
}
