package providers

import (
	"fmt"
	"strings"
	"sync"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/weather-regime/internal/weather"
)

// geocoder keeps its API key in a package variable.
var geocodeMu sync.Mutex

// geocode is the lookup used by GeocodeCities; tests replace it.
var geocode = geocoder.Geocoding

// GeocodeCities resolves "City,CC" entries to locations through the Google
// geocoding API. Entries that fail to resolve are returned in the error and
// skipped; the resolved ones are still returned.
func GeocodeCities(apiKey string, cities []string) ([]weather.Location, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("geocoder: %w", errMissingAPIKey)
	}

	geocodeMu.Lock()
	defer geocodeMu.Unlock()
	geocoder.ApiKey = apiKey

	var (
		locs   []weather.Location
		failed []string
	)
	for _, entry := range cities {
		addr, ok := parseCityEntry(entry)
		if !ok {
			continue
		}

		res, err := geocode(addr)
		if err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", entry, err))
			continue
		}
		locs = append(locs, weather.Location{
			Name: addr.City,
			Lat:  res.Latitude,
			Lon:  res.Longitude,
		})
	}

	if len(failed) > 0 {
		return locs, fmt.Errorf("geocoder: failed to resolve %s", strings.Join(failed, "; "))
	}
	return locs, nil
}

// parseCityEntry splits "City,CC" into an address. Entries without a city are
// skipped.
func parseCityEntry(entry string) (geocoder.Address, bool) {
	city, country, _ := strings.Cut(entry, ",")
	city = strings.TrimSpace(city)
	if city == "" {
		return geocoder.Address{}, false
	}
	return geocoder.Address{City: city, Country: strings.TrimSpace(country)}, true
}
