package models

import "time"

// ReturnPoint is one daily return.
type ReturnPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// ReturnSeries is an ordered sequence of daily returns.
type ReturnSeries struct {
	Name   string        `json:"name"`
	Points []ReturnPoint `json:"points"`
}

// NewReturnSeries builds a series from parallel date/value slices.
func NewReturnSeries(name string, dates []time.Time, values []float64) ReturnSeries {
	pts := make([]ReturnPoint, len(dates))
	for i := range dates {
		pts[i] = ReturnPoint{Date: dates[i], Value: values[i]}
	}
	return ReturnSeries{Name: name, Points: pts}
}

func (s ReturnSeries) Len() int { return len(s.Points) }

// Dates returns the series dates in order.
func (s ReturnSeries) Dates() []time.Time {
	out := make([]time.Time, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Date
	}
	return out
}

// Values returns the series returns in order.
func (s ReturnSeries) Values() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Value
	}
	return out
}

// BacktestPath names which strategy tier produced a result.
type BacktestPath string

const (
	PathRegimeGated BacktestPath = "regime_gated"
	PathBasketGated BacktestPath = "basket_gated"
)

// BacktestResult is the paired output of the backtest engine.
type BacktestResult struct {
	Path           BacktestPath `json:"path"`
	Strategy       ReturnSeries `json:"strategy"`
	Benchmark      ReturnSeries `json:"benchmark"`
	Days           []BasketDay  `json:"days,omitempty"`
	ParseFailures  int          `json:"parse_failures"`
	FallbackReason string       `json:"fallback_reason,omitempty"`
}
