package weather

import (
	"sort"
)

// AggregateReadings combines daily readings from one or more providers into one
// Observation per calendar day. Numeric fields are averaged across providers.
// The daily mean is averaged over the providers that reported one; when none
// did it is derived as (max+min)/2. The result is ordered by date ascending.
func AggregateReadings(readings []DailyReading) []Observation {
	if len(readings) == 0 {
		return nil
	}

	type acc struct {
		n                         float64
		tmax, tmin, rain, snow, w float64
		meanSum                   float64
		meanN                     float64
	}

	byDay := make(map[string]*acc)
	dates := make(map[string]DailyReading)

	for _, r := range readings {
		k := r.Date.Format(DateLayout)
		a, ok := byDay[k]
		if !ok {
			a = &acc{}
			byDay[k] = a
			dates[k] = r
		}
		a.n++
		a.tmax += r.TempMax
		a.tmin += r.TempMin
		a.rain += r.RainMM
		a.snow += r.SnowMM
		a.w += r.WindMaxKmh
		if r.TempMean != nil {
			a.meanSum += *r.TempMean
			a.meanN++
		}
	}

	keys := make([]string, 0, len(byDay))
	for k := range byDay {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Observation, 0, len(keys))
	for _, k := range keys {
		a := byDay[k]
		o := Observation{
			Date:       TruncateDay(dates[k].Date),
			TempMax:    a.tmax / a.n,
			TempMin:    a.tmin / a.n,
			RainMM:     a.rain / a.n,
			SnowMM:     a.snow / a.n,
			WindMaxKmh: a.w / a.n,
		}
		var mean *float64
		if a.meanN > 0 {
			m := a.meanSum / a.meanN
			mean = &m
		}
		o.TempMean = MeanOrMidpoint(o.TempMax, o.TempMin, mean)
		out = append(out, o)
	}
	return out
}

// MeanOrMidpoint returns the reported daily mean, or (max+min)/2 when there
// is none.
func MeanOrMidpoint(tmax, tmin float64, mean *float64) float64 {
	if mean != nil {
		return *mean
	}
	return (tmax + tmin) / 2
}

// covers reports whether obs has an entry for every day of w.
func covers(obs []Observation, w Window) bool {
	if len(obs) < w.Days() {
		return false
	}
	seen := make(map[string]struct{}, len(obs))
	for _, o := range obs {
		seen[o.Day()] = struct{}{}
	}
	for d := w.From; !d.After(w.To); d = d.AddDate(0, 0, 1) {
		if _, ok := seen[d.Format(DateLayout)]; !ok {
			return false
		}
	}
	return true
}
