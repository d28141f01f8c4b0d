package performance

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeLab/internal/domain/models"
)

func days(n int) []time.Time {
	start := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.AddDate(0, 0, i)
	}
	return out
}

func TestFiveDayScenario(t *testing.T) {
	strategy := []float64{0.01, -0.01, 0.02, 0, 0.01}

	growth := CumulativeGrowth(strategy)
	require.Len(t, growth, 5)
	want := 1.01 * 0.99 * 1.02 * 1.0 * 1.01
	assert.InDelta(t, want, growth[4], 1e-12)
	assert.InDelta(t, want-1, TotalReturn(strategy), 1e-12)
	assert.InDelta(t, 0.0301, TotalReturn(strategy), 1e-4)
}

func TestCumulativeGrowthNonNegative(t *testing.T) {
	growth := CumulativeGrowth([]float64{-0.5, -1, 0.3, math.NaN(), 0.1})
	for _, g := range growth {
		assert.GreaterOrEqual(t, g, 0.0)
	}
	assert.Equal(t, 0.5, growth[0])
	assert.Equal(t, 0.0, growth[4])
}

func TestDrawdown(t *testing.T) {
	dd := Drawdown([]float64{0.1, -0.1, 0.05, 0.2})
	require.Len(t, dd, 4)
	assert.Equal(t, 0.0, dd[0])
	assert.InDelta(t, -0.1, dd[1], 1e-12)
	assert.InDelta(t, 1.0395/1.1-1, dd[2], 1e-12)
	assert.Equal(t, 0.0, dd[3])

	// total loss leaves later drawdowns well defined
	dd = Drawdown([]float64{-1, 0.1})
	assert.Equal(t, 0.0, dd[0])
	assert.False(t, math.IsNaN(dd[1]))

	assert.Empty(t, Drawdown(nil))
}

func TestDrawdownStartsAtZero(t *testing.T) {
	for _, r := range [][]float64{{-0.2, 0.1}, {0.3}, {0, 0, -0.01}} {
		assert.Equal(t, 0.0, Drawdown(r)[0])
	}
}

func TestSharpe(t *testing.T) {
	r := []float64{0.01, -0.01, 0.02, 0, 0.01}
	mean := 0.006
	var ss float64
	for _, v := range r {
		ss += (v - mean) * (v - mean)
	}
	std := math.Sqrt(ss / 4)
	assert.InDelta(t, mean/std*math.Sqrt(252), Sharpe(r), 1e-9)
}

func TestSharpeUndefined(t *testing.T) {
	assert.True(t, math.IsNaN(Sharpe([]float64{0, 0, 0, 0})))
	assert.True(t, math.IsNaN(Sharpe([]float64{0.01, 0.01, 0.01})))
	assert.True(t, math.IsNaN(Sharpe([]float64{0.01})))
	assert.True(t, math.IsNaN(Sharpe(nil)))
}

func TestMaxDrawdown(t *testing.T) {
	assert.InDelta(t, -0.19, MaxDrawdown([]float64{0.1, -0.1, -0.1, 0.5}), 1e-12)
	assert.Equal(t, 0.0, MaxDrawdown([]float64{0.01, 0.02}))
	assert.Equal(t, 0.0, MaxDrawdown(nil))
}

func TestAlignKeepsSharedDates(t *testing.T) {
	d := days(5)
	a := models.NewReturnSeries("strategy", d[:4], []float64{1, 2, 3, 4})
	b := models.NewReturnSeries("benchmark", []time.Time{d[1], d[3], d[4]}, []float64{20, 40, 50})

	gotA, gotB := Align(a, b)
	assert.Equal(t, []time.Time{d[1], d[3]}, gotA.Dates())
	assert.Equal(t, gotA.Dates(), gotB.Dates())
	assert.Equal(t, []float64{2, 4}, gotA.Values())
	assert.Equal(t, []float64{20, 40}, gotB.Values())
	assert.Equal(t, "benchmark", gotB.Name)
}

func TestSummarize(t *testing.T) {
	s := models.NewReturnSeries("strategy", days(3), []float64{0.1, -0.5, 0.2})
	sum := Summarize(s)

	assert.Equal(t, "strategy", sum.Name)
	assert.Equal(t, 3, sum.Days)
	assert.InDelta(t, 1.1*0.5*1.2, float64(sum.FinalGrowth), 1e-12)
	assert.InDelta(t, 1.1*0.5*1.2-1, float64(sum.TotalReturn), 1e-12)
	assert.InDelta(t, -0.5, float64(sum.MaxDrawdown), 1e-12)
	assert.True(t, sum.Sharpe.Defined())

	flat := Summarize(models.NewReturnSeries("flat", days(3), []float64{0, 0, 0}))
	assert.False(t, flat.Sharpe.Defined())
	raw, err := json.Marshal(flat)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"sharpe":null`)

	empty := Summarize(models.ReturnSeries{Name: "empty"})
	assert.Equal(t, 0, empty.Days)
	assert.Equal(t, models.Metric(0), empty.TotalReturn)
}
