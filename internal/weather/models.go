package weather

import (
	"fmt"
	"strconv"
	"time"
)

// DateLayout is the calendar-day format used by the archive APIs and the stores.
const DateLayout = "2006-01-02"

// Location represents a point for which we fetch daily history.
// Name is optional and only used for logging and display.
type Location struct {
	Name string  `json:"name,omitempty"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// Key returns a canonical string key for indexing this location in stores.
// Coordinates are rounded to 4 decimals (~11m), which is finer than any
// archive grid cell.
func (l Location) Key() string {
	return strconv.FormatFloat(l.Lat, 'f', 4, 64) + ":" + strconv.FormatFloat(l.Lon, 'f', 4, 64)
}

func (l Location) String() string {
	if l.Name != "" {
		return fmt.Sprintf("%s (%s)", l.Name, l.Key())
	}
	return l.Key()
}

// Observation is one day of aggregated weather at a location.
type Observation struct {
	Date       time.Time `json:"date"` // midnight UTC of the calendar day
	TempMax    float64   `json:"temp_max"`
	TempMin    float64   `json:"temp_min"`
	TempMean   float64   `json:"temp_mean"`
	RainMM     float64   `json:"rain_mm"`
	SnowMM     float64   `json:"snow_mm"`
	WindMaxKmh float64   `json:"wind_max_kmh"`
}

// Day returns the observation date formatted as YYYY-MM-DD.
func (o Observation) Day() string {
	return o.Date.Format(DateLayout)
}

// DailyReading is a single provider's reading for one calendar day, before
// aggregation. Missing numeric fields are left at 0; a missing daily mean is
// represented by a nil TempMean.
type DailyReading struct {
	ProviderName string
	Date         time.Time

	TempMax    float64
	TempMin    float64
	TempMean   *float64
	RainMM     float64
	SnowMM     float64
	WindMaxKmh float64
}

// Window is an inclusive range of calendar days.
type Window struct {
	From time.Time
	To   time.Time
}

// Days returns the number of calendar days covered by the window.
func (w Window) Days() int {
	return int(w.To.Sub(w.From).Hours()/24) + 1
}

// TrailingWindow returns the window of `days` calendar days ending the day
// before now, which is the most recent day the archive reliably has.
func TrailingWindow(now time.Time, days int) Window {
	now = now.UTC()
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	start := end.AddDate(0, 0, -(days - 1))
	return Window{From: start, To: end}
}

// ParseDay parses a calendar day as YYYY-MM-DD or an RFC 3339 timestamp and
// returns midnight UTC of that day. An empty string is the zero time.
func ParseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD or RFC 3339", s)
	}
	return TruncateDay(t), nil
}

// TruncateDay normalizes t to midnight UTC of its calendar day.
func TruncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
