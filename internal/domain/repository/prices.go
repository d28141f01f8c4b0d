package repository

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// PriceTable is the normalized market-data shape: sorted dates and one
// column per ticker. Missing prints are NaN. A single-ticker fetch has the
// same shape as a multi-ticker one.
type PriceTable struct {
	Dates   []time.Time
	Columns map[string][]float64
}

// NewPriceTable returns an empty table over the given dates.
func NewPriceTable(dates []time.Time) *PriceTable {
	return &PriceTable{Dates: dates, Columns: make(map[string][]float64)}
}

// Has reports whether the table carries a column for ticker.
func (t *PriceTable) Has(ticker string) bool {
	_, ok := t.Columns[ticker]
	return ok
}

// Tickers returns the column names in sorted order.
func (t *PriceTable) Tickers() []string {
	out := make([]string, 0, len(t.Columns))
	for k := range t.Columns {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// SetColumn attaches a column; its length must match the dates.
func (t *PriceTable) SetColumn(ticker string, values []float64) error {
	if len(values) != len(t.Dates) {
		return fmt.Errorf("column %s: %d values for %d dates", ticker, len(values), len(t.Dates))
	}
	t.Columns[ticker] = values
	return nil
}

// MergeSeries builds a table from per-ticker (date -> price) maps, taking the
// union of all dates. Dates absent for a ticker become NaN.
func MergeSeries(series map[string]map[time.Time]float64) *PriceTable {
	seen := make(map[time.Time]struct{})
	for _, s := range series {
		for d := range s {
			seen[d] = struct{}{}
		}
	}
	dates := make([]time.Time, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	t := NewPriceTable(dates)
	for ticker, s := range series {
		col := make([]float64, len(dates))
		for i, d := range dates {
			if v, ok := s[d]; ok {
				col[i] = v
			} else {
				col[i] = math.NaN()
			}
		}
		t.Columns[ticker] = col
	}
	return t
}
