package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/i474232898/weather-regime/internal/weather"
)

func day(d int) time.Time {
	return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC)
}

func observations(from, to int, rain float64) []weather.Observation {
	var out []weather.Observation
	for d := from; d <= to; d++ {
		out = append(out, weather.Observation{Date: day(d), TempMax: 31, TempMin: 24, TempMean: 27.5, RainMM: rain, WindMaxKmh: 12})
	}
	return out
}

func exerciseStore(t *testing.T, s weather.Store) {
	t.Helper()
	ctx := context.Background()
	loc := weather.Location{Name: "Da Nang", Lat: 16.0544, Lon: 108.2022}

	if _, err := s.GetRange(ctx, loc, day(1), day(30)); !errors.Is(err, weather.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty store, got %v", err)
	}

	if err := s.SaveObservations(ctx, loc, observations(1, 10, 1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Overlapping days are replaced, not duplicated.
	if err := s.SaveObservations(ctx, loc, observations(8, 12, 5)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.GetRange(ctx, loc, day(5), day(12))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 8 {
		t.Fatalf("expected 8 days, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if !got[i-1].Date.Before(got[i].Date) {
			t.Fatalf("expected ascending dates at %d", i)
		}
	}
	if got[0].RainMM != 1 || got[len(got)-1].RainMM != 5 {
		t.Fatalf("expected replaced rain values, got first %v last %v", got[0].RainMM, got[len(got)-1].RainMM)
	}

	other := weather.Location{Lat: 1, Lon: 1}
	if _, err := s.GetRange(ctx, other, day(1), day(30)); !errors.Is(err, weather.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other location, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(0))
}

func TestMemoryStoreRetention(t *testing.T) {
	ctx := context.Background()
	loc := weather.Location{Lat: 21, Lon: 105}
	s := NewMemoryStore(5)
	if err := s.SaveObservations(ctx, loc, observations(1, 20, 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := s.GetRange(ctx, loc, day(1), day(30))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 5 || !got[0].Date.Equal(day(16)) {
		t.Fatalf("expected the 5 most recent days, got %d starting %v", len(got), got[0].Date)
	}
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLStore("sqlite", filepath.Join(t.TempDir(), "weather.db"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, _, err := Open("mongo", "x", 0); err == nil {
		t.Fatal("expected error for unknown driver")
	}
	if _, _, err := Open("sqlite", "", 0); err == nil {
		t.Fatal("expected error for missing DSN")
	}
}
