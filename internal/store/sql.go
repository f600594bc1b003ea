package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/i474232898/weather-regime/internal/weather"
)

const schema = `
CREATE TABLE IF NOT EXISTS observations (
	location_key TEXT NOT NULL,
	day          TEXT NOT NULL,
	temp_max     DOUBLE PRECISION NOT NULL DEFAULT 0,
	temp_min     DOUBLE PRECISION NOT NULL DEFAULT 0,
	temp_mean    DOUBLE PRECISION NOT NULL DEFAULT 0,
	rain_mm      DOUBLE PRECISION NOT NULL DEFAULT 0,
	snow_mm      DOUBLE PRECISION NOT NULL DEFAULT 0,
	wind_max_kmh DOUBLE PRECISION NOT NULL DEFAULT 0,
	PRIMARY KEY (location_key, day)
)`

const upsertObservation = `
INSERT INTO observations (location_key, day, temp_max, temp_min, temp_mean, rain_mm, snow_mm, wind_max_kmh)
VALUES (:location_key, :day, :temp_max, :temp_min, :temp_mean, :rain_mm, :snow_mm, :wind_max_kmh)
ON CONFLICT (location_key, day) DO UPDATE SET
	temp_max = excluded.temp_max,
	temp_min = excluded.temp_min,
	temp_mean = excluded.temp_mean,
	rain_mm = excluded.rain_mm,
	snow_mm = excluded.snow_mm,
	wind_max_kmh = excluded.wind_max_kmh`

// observationRow is the SQL representation of a weather.Observation.
type observationRow struct {
	LocationKey string  `db:"location_key"`
	Day         string  `db:"day"`
	TempMax     float64 `db:"temp_max"`
	TempMin     float64 `db:"temp_min"`
	TempMean    float64 `db:"temp_mean"`
	RainMM      float64 `db:"rain_mm"`
	SnowMM      float64 `db:"snow_mm"`
	WindMaxKmh  float64 `db:"wind_max_kmh"`
}

// SQLStore persists observations in SQLite ("sqlite") or PostgreSQL ("postgres").
type SQLStore struct {
	db *sqlx.DB
}

// NewSQLStore opens the database and ensures the schema exists.
func NewSQLStore(driver, dsn string) (*SQLStore, error) {
	switch driver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	if driver == "sqlite" {
		// modernc sqlite serializes writers; a single connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// SaveObservations upserts obs in a single transaction.
func (s *SQLStore) SaveObservations(ctx context.Context, loc weather.Location, obs []weather.Observation) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	key := loc.Key()
	for _, o := range obs {
		row := observationRow{
			LocationKey: key,
			Day:         o.Day(),
			TempMax:     o.TempMax,
			TempMin:     o.TempMin,
			TempMean:    o.TempMean,
			RainMM:      o.RainMM,
			SnowMM:      o.SnowMM,
			WindMaxKmh:  o.WindMaxKmh,
		}
		if _, err := tx.NamedExecContext(ctx, upsertObservation, row); err != nil {
			return fmt.Errorf("upsert %s %s: %w", key, row.Day, err)
		}
	}
	return tx.Commit()
}

// GetRange returns stored observations between from and to (inclusive), ordered by day.
func (s *SQLStore) GetRange(ctx context.Context, loc weather.Location, from, to time.Time) ([]weather.Observation, error) {
	query := s.db.Rebind(`
		SELECT location_key, day, temp_max, temp_min, temp_mean, rain_mm, snow_mm, wind_max_kmh
		FROM observations
		WHERE location_key = ? AND day >= ? AND day <= ?
		ORDER BY day`)

	var rows []observationRow
	err := s.db.SelectContext(ctx, &rows, query,
		loc.Key(), from.Format(weather.DateLayout), to.Format(weather.DateLayout))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, weather.ErrNotFound
	}

	out := make([]weather.Observation, 0, len(rows))
	for _, r := range rows {
		day, err := time.Parse(weather.DateLayout, r.Day)
		if err != nil {
			return nil, fmt.Errorf("bad stored day %q: %w", r.Day, err)
		}
		out = append(out, weather.Observation{
			Date:       day,
			TempMax:    r.TempMax,
			TempMin:    r.TempMin,
			TempMean:   r.TempMean,
			RainMM:     r.RainMM,
			SnowMM:     r.SnowMM,
			WindMaxKmh: r.WindMaxKmh,
		})
	}
	return out, nil
}

// Close releases the database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
