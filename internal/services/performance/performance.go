// Package performance derives growth, drawdown and headline metrics from
// daily return series.
package performance

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"RegimeLab/internal/domain/models"
)

// TradingDays annualizes the daily Sharpe ratio.
const TradingDays = 252

// Align restricts a and b to the dates they share, keeping a's order.
func Align(a, b models.ReturnSeries) (models.ReturnSeries, models.ReturnSeries) {
	inB := make(map[time.Time]float64, b.Len())
	for _, p := range b.Points {
		inB[p.Date] = p.Value
	}
	outA := models.ReturnSeries{Name: a.Name}
	outB := models.ReturnSeries{Name: b.Name}
	for _, p := range a.Points {
		v, ok := inB[p.Date]
		if !ok {
			continue
		}
		outA.Points = append(outA.Points, p)
		outB.Points = append(outB.Points, models.ReturnPoint{Date: p.Date, Value: v})
	}
	return outA, outB
}

// CumulativeGrowth is the running product of (1 + r). Undefined returns
// count as flat days.
func CumulativeGrowth(returns []float64) []float64 {
	out := make([]float64, len(returns))
	for i, r := range returns {
		if isUndefined(r) {
			r = 0
		}
		out[i] = 1 + r
	}
	return floats.CumProd(out, out)
}

// Drawdown is (growth - running max) / running max for each day. Undefined
// values are reported as 0.
func Drawdown(returns []float64) []float64 {
	growth := CumulativeGrowth(returns)
	out := make([]float64, len(growth))
	peak := math.Inf(-1)
	for i, g := range growth {
		if g > peak {
			peak = g
		}
		dd := (g - peak) / peak
		if isUndefined(dd) {
			dd = 0
		}
		out[i] = dd
	}
	return out
}

// TotalReturn is prod(1 + r) - 1; an empty series returns 0.
func TotalReturn(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	growth := CumulativeGrowth(returns)
	return growth[len(growth)-1] - 1
}

// Sharpe is the annualized ratio of mean to sample standard deviation. It is
// NaN when fewer than two returns exist or the returns do not vary.
func Sharpe(returns []float64) float64 {
	if len(returns) < 2 || floats.Max(returns) == floats.Min(returns) {
		return math.NaN()
	}
	mean, std := stat.MeanStdDev(returns, nil)
	if std == 0 || isUndefined(std) {
		return math.NaN()
	}
	return mean / std * math.Sqrt(TradingDays)
}

// MaxDrawdown is the most negative drawdown, 0 for a series that never falls.
func MaxDrawdown(returns []float64) float64 {
	dd := Drawdown(returns)
	if len(dd) == 0 {
		return 0
	}
	return floats.Min(dd)
}

// Summarize computes the headline metrics of s.
func Summarize(s models.ReturnSeries) models.PerformanceSummary {
	values := s.Values()
	final := 1.0
	if len(values) > 0 {
		growth := CumulativeGrowth(values)
		final = growth[len(growth)-1]
	}
	return models.PerformanceSummary{
		Name:        s.Name,
		Days:        len(values),
		TotalReturn: models.Metric(final - 1),
		FinalGrowth: models.Metric(final),
		Sharpe:      models.Metric(Sharpe(values)),
		MaxDrawdown: models.Metric(MaxDrawdown(values)),
	}
}

func isUndefined(v float64) bool { return math.IsNaN(v) || math.IsInf(v, 0) }
