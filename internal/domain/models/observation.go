package models

import "time"

// Observation is one trading day of the input feature table.
type Observation struct {
	Date            time.Time
	BenchmarkPrice  float64
	BenchmarkReturn float64
	LogSectorVol    float64
	LogVIX          float64
	Regime          RegimeID // RegimeUnknown until classified
}

// HasRegime reports whether the observation carries a regime id.
func (o Observation) HasRegime() bool { return o.Regime != RegimeUnknown }

// SignalRow is the raw, still-encoded basket for one date.
type SignalRow struct {
	Date   time.Time
	Basket string
	Valid  bool // false when the source cell was empty
}

// DateRange returns the first and last observation dates. Observations must be sorted.
func DateRange(obs []Observation) (from, to time.Time) {
	if len(obs) == 0 {
		return time.Time{}, time.Time{}
	}
	return obs[0].Date, obs[len(obs)-1].Date
}
