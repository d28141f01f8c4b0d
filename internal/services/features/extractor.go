package features

import (
	"math"

	"RegimeLab/internal/domain/repository"
)

// ForwardFill carries the last defined price forward over NaN gaps. Leading
// NaNs stay NaN. The input is not modified.
func ForwardFill(values []float64) []float64 {
	out := make([]float64, len(values))
	last := math.NaN()
	for i, v := range values {
		if !math.IsNaN(v) {
			last = v
		}
		out[i] = last
	}
	return out
}

// PctChange computes r_t = P_t / P_{t-1} - 1. The first element, and any
// element whose neighbours are undefined or whose base is zero, is NaN.
func PctChange(prices []float64) []float64 {
	out := make([]float64, len(prices))
	for i := range prices {
		if i == 0 {
			out[i] = math.NaN()
			continue
		}
		prev, cur := prices[i-1], prices[i]
		if math.IsNaN(prev) || math.IsNaN(cur) || prev == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = cur/prev - 1
	}
	return out
}

// DailyReturns forward-fills every column of t and converts it to simple
// returns over the same dates.
func DailyReturns(t *repository.PriceTable) *repository.PriceTable {
	out := repository.NewPriceTable(t.Dates)
	for ticker, col := range t.Columns {
		out.Columns[ticker] = PctChange(ForwardFill(col))
	}
	return out
}
