package providers

import (
	"errors"
	"strings"
	"testing"

	"github.com/kelvins/geocoder"
)

func TestGeocodeCitiesRequiresKey(t *testing.T) {
	locs, err := GeocodeCities("", []string{"Hanoi,VN"})
	if !errors.Is(err, errMissingAPIKey) {
		t.Fatalf("expected errMissingAPIKey, got %v", err)
	}
	if len(locs) != 0 {
		t.Fatalf("expected no locations, got %v", locs)
	}
}

func TestParseCityEntry(t *testing.T) {
	tests := []struct {
		entry   string
		city    string
		country string
		ok      bool
	}{
		{"Hanoi,VN", "Hanoi", "VN", true},
		{"  Ho Chi Minh City , VN ", "Ho Chi Minh City", "VN", true},
		{"Da Nang", "Da Nang", "", true},
		{" ,VN", "", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		addr, ok := parseCityEntry(tt.entry)
		if ok != tt.ok || addr.City != tt.city || addr.Country != tt.country {
			t.Fatalf("%q: got %+v ok=%v, want city %q country %q ok=%v", tt.entry, addr, ok, tt.city, tt.country, tt.ok)
		}
	}
}

func TestGeocodeCitiesResolvesAndReportsFailures(t *testing.T) {
	orig := geocode
	defer func() { geocode = orig }()

	var seen []geocoder.Address
	geocode = func(addr geocoder.Address) (geocoder.Location, error) {
		seen = append(seen, addr)
		if addr.City == "Atlantis" {
			return geocoder.Location{}, errors.New("ZERO_RESULTS")
		}
		return geocoder.Location{Latitude: 21.0285, Longitude: 105.8542}, nil
	}

	locs, err := GeocodeCities("test-key", []string{"Hanoi, VN", "", "Atlantis,GR"})
	if err == nil || !strings.Contains(err.Error(), "Atlantis") {
		t.Fatalf("expected an error naming the failed city, got %v", err)
	}
	if len(seen) != 2 {
		t.Fatalf("expected 2 lookups, got %d", len(seen))
	}
	if seen[0].City != "Hanoi" || seen[0].Country != "VN" {
		t.Fatalf("unexpected address %+v", seen[0])
	}
	if len(locs) != 1 || locs[0].Name != "Hanoi" || locs[0].Lat != 21.0285 || locs[0].Lon != 105.8542 {
		t.Fatalf("unexpected locations %v", locs)
	}
	if geocoder.ApiKey != "test-key" {
		t.Fatalf("expected the API key to be set, got %q", geocoder.ApiKey)
	}
}
