package store

import (
	"fmt"

	"github.com/i474232898/weather-regime/internal/weather"
)

// Open builds the store selected by driver. The returned close function is
// always non-nil.
func Open(driver, dsn string, maxDays int) (weather.Store, func() error, error) {
	switch driver {
	case "", "memory":
		return NewMemoryStore(maxDays), func() error { return nil }, nil
	case "sqlite", "postgres":
		if dsn == "" {
			return nil, nil, fmt.Errorf("STORE_DSN is required for driver %q", driver)
		}
		s, err := NewSQLStore(driver, dsn)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store driver %q", driver)
	}
}
