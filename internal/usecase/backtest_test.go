package usecase

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeLab/internal/domain/models"
	domrepo "RegimeLab/internal/domain/repository"
	"RegimeLab/internal/services/performance"
	applogger "RegimeLab/pkg/logger"
)

type fakePrices struct {
	table *domrepo.PriceTable
	err   error

	calls   int
	tickers []string
	from    time.Time
	to      time.Time
}

func (f *fakePrices) AdjustedClose(_ context.Context, tickers []string, from, to time.Time) (*domrepo.PriceTable, error) {
	f.calls++
	f.tickers, f.from, f.to = tickers, from, to
	if f.err != nil {
		return nil, f.err
	}
	return f.table, nil
}

type recordingMetrics struct {
	paths  []string
	days   map[string]int
	errors []string
}

func newRecordingMetrics() *recordingMetrics { return &recordingMetrics{days: map[string]int{}} }

func (m *recordingMetrics) RecordBacktestPath(p string)   { m.paths = append(m.paths, p) }
func (m *recordingMetrics) RecordBasketDay(s string)      { m.days[s]++ }
func (m *recordingMetrics) RecordError(k string)          { m.errors = append(m.errors, k) }
func (m *recordingMetrics) RecordLatency(string, float64) {}

func day(i int) time.Time { return time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC) }

func observations(returns []float64, regimes []models.RegimeID) []models.Observation {
	out := make([]models.Observation, len(returns))
	for i := range returns {
		out[i] = models.Observation{Date: day(i), BenchmarkReturn: returns[i], Regime: regimes[i]}
	}
	return out
}

func priceTable(t *testing.T, n int, cols map[string][]float64) *domrepo.PriceTable {
	t.Helper()
	dates := make([]time.Time, n)
	for i := range dates {
		dates[i] = day(i)
	}
	pt := domrepo.NewPriceTable(dates)
	for k, v := range cols {
		require.NoError(t, pt.SetColumn(k, v))
	}
	return pt
}

func newTestEngine(p domrepo.PriceProvider, m domrepo.Metrics) *Engine {
	return NewEngine(p, m, applogger.Nop(), EngineConfig{Benchmark: "SPY", CashMarker: "CASH", Components: 3})
}

func TestRegimeGated(t *testing.T) {
	obs := observations([]float64{0.01, -0.02, 0.03}, []models.RegimeID{0, 2, 1})
	res, err := newTestEngine(nil, nil).RegimeGated(obs)
	require.NoError(t, err)

	assert.Equal(t, models.PathRegimeGated, res.Path)
	assert.Equal(t, []float64{0.01, 0, 0.03}, res.Strategy.Values())
	assert.Equal(t, []float64{0.01, -0.02, 0.03}, res.Benchmark.Values())
	assert.Equal(t, res.Strategy.Dates(), res.Benchmark.Dates())
	assert.Equal(t, "SPY", res.Benchmark.Name)
}

func TestRegimeGatedUsesSameDayRegime(t *testing.T) {
	// a crisis label on day 1 zeroes day 1 itself, not day 2
	obs := observations([]float64{0.01, -0.05, 0.04}, []models.RegimeID{0, 2, 0})
	res, err := newTestEngine(nil, nil).RegimeGated(obs)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.01, 0, 0.04}, res.Strategy.Values())
}

func TestRegimeGatedCrisisIsHighestRank(t *testing.T) {
	returns := []float64{0.01, -0.02, 0.03, -0.04}
	cases := []struct {
		name       string
		components int
		regimes    []models.RegimeID
		want       []float64
	}{
		{"four regimes", 4, []models.RegimeID{0, 2, 1, 3}, []float64{0.01, -0.02, 0.03, 0}},
		{"two regimes", 2, []models.RegimeID{0, 1, 0, 1}, []float64{0.01, 0, 0.03, 0}},
		{"labels wider than config", 3, []models.RegimeID{0, 2, 3, 1}, []float64{0.01, -0.02, 0, -0.04}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := NewEngine(nil, nil, applogger.Nop(), EngineConfig{Benchmark: "SPY", CashMarker: "CASH", Components: tc.components})
			res, err := e.RegimeGated(observations(returns, tc.regimes))
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.Strategy.Values())
		})
	}
}

func TestForRegimesOverridesComponents(t *testing.T) {
	e := newTestEngine(nil, nil)
	assert.Same(t, e, e.ForRegimes(0))
	assert.Same(t, e, e.ForRegimes(3))

	two := e.ForRegimes(2)
	res, err := two.RegimeGated(observations([]float64{0.01, -0.02}, []models.RegimeID{0, 1}))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.01, 0}, res.Strategy.Values())

	// the original engine still gates rank 2
	res, err = e.RegimeGated(observations([]float64{0.01, -0.02}, []models.RegimeID{0, 1}))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.01, -0.02}, res.Strategy.Values())
}

func TestRegimeGatedInputErrors(t *testing.T) {
	e := newTestEngine(nil, nil)
	_, err := e.RegimeGated(nil)
	assert.ErrorIs(t, err, models.ErrEmptyInput)

	obs := observations([]float64{0.01, 0.02}, []models.RegimeID{0, models.RegimeUnknown})
	_, err = e.RegimeGated(obs)
	assert.ErrorIs(t, err, models.ErrMissingRegime)
}

func TestEndToEndFiveDayScenario(t *testing.T) {
	obs := observations([]float64{0.01, -0.01, 0.02, -0.03, 0.01}, []models.RegimeID{0, 0, 1, 2, 0})
	res, err := newTestEngine(nil, nil).Run(context.Background(), obs, nil, ModeRegime)
	require.NoError(t, err)

	assert.Equal(t, []float64{0.01, -0.01, 0.02, 0, 0.01}, res.Strategy.Values())
	growth := performance.CumulativeGrowth(res.Strategy.Values())
	assert.InDelta(t, 1.01*0.99*1.02*1.01, growth[len(growth)-1], 1e-12)
	assert.InDelta(t, 1.01*0.99*1.02*1.01-1, performance.TotalReturn(res.Strategy.Values()), 1e-12)
}

func TestBasketGatedEqualWeight(t *testing.T) {
	prices := &fakePrices{table: priceTable(t, 2, map[string][]float64{
		"XLK": {100, 102},
		"XLF": {50, 52},
		"SPY": {400, 404},
	})}
	obs := observations([]float64{0, 0.01}, []models.RegimeID{0, 0})
	signals := []models.SignalRow{
		{Date: day(0), Basket: "['XLK', 'XLF']", Valid: true},
		{Date: day(1), Basket: "['XLK', 'XLF']", Valid: true},
	}

	m := newRecordingMetrics()
	res, err := newTestEngine(prices, m).BasketGated(context.Background(), obs, signals)
	require.NoError(t, err)

	assert.Equal(t, []string{"XLF", "XLK", "SPY"}, prices.tickers)
	assert.Equal(t, day(0), prices.from)
	assert.Equal(t, day(1), prices.to)

	// the first price row has no return, so only day 1 survives
	require.Equal(t, 1, res.Strategy.Len())
	assert.InDelta(t, 0.03, res.Strategy.Values()[0], 1e-12)
	assert.InDelta(t, 0.01, res.Benchmark.Values()[0], 1e-12)
	assert.Equal(t, []string{"XLK", "XLF"}, res.Days[0].Held)
	assert.Equal(t, 1, m.days[string(models.BasketHeld)])
}

func TestBasketGatedZeroDays(t *testing.T) {
	prices := &fakePrices{table: priceTable(t, 5, map[string][]float64{
		"XLK": {100, 101, 102, 103, math.NaN()},
		"SPY": {400, 404, 408, 412, 416},
	})}
	obs := observations(make([]float64, 5), make([]models.RegimeID, 5))
	signals := []models.SignalRow{
		{Date: day(1), Basket: "['CASH']", Valid: true},
		{Date: day(2), Basket: "garbage", Valid: true},
		{Date: day(3), Basket: "['XLB']", Valid: true},
		{Date: day(4), Basket: "", Valid: false},
	}

	res, err := newTestEngine(prices, nil).BasketGated(context.Background(), obs, signals)
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 0, 0, 0}, res.Strategy.Values())
	assert.Equal(t, 1, res.ParseFailures)
	statuses := make([]models.BasketStatus, len(res.Days))
	for i, d := range res.Days {
		statuses[i] = d.Status
	}
	assert.Equal(t, []models.BasketStatus{
		models.BasketFlat, models.BasketInvalid, models.BasketFlat, models.BasketMissing,
	}, statuses)
}

func TestBasketGatedSkipsUndefinedTickerReturn(t *testing.T) {
	prices := &fakePrices{table: priceTable(t, 3, map[string][]float64{
		"XLK": {math.NaN(), math.NaN(), 110},
		"XLE": {10, 11, 11},
		"SPY": {400, 400, 400},
	})}
	obs := observations(make([]float64, 3), make([]models.RegimeID, 3))
	signals := []models.SignalRow{
		{Date: day(1), Basket: "['XLK', 'XLE']", Valid: true},
		{Date: day(2), Basket: "['XLK', 'XLE']", Valid: true},
	}

	res, err := newTestEngine(prices, nil).BasketGated(context.Background(), obs, signals)
	require.NoError(t, err)
	require.Len(t, res.Days, 2)
	assert.Equal(t, []string{"XLE"}, res.Days[0].Held)
	assert.InDelta(t, 0.1, res.Days[0].Return, 1e-12)
	// XLK's first defined price has no prior close
	assert.Equal(t, []string{"XLE"}, res.Days[1].Held)
	assert.Equal(t, 0.0, res.Days[1].Return)
}

func TestBasketGatedAlignsToSignalsAndReturns(t *testing.T) {
	prices := &fakePrices{table: priceTable(t, 4, map[string][]float64{
		"XLK": {1, 2, 3, 4},
		"SPY": {1, 1, 1, 1},
	})}
	obs := observations(make([]float64, 4), make([]models.RegimeID, 4))
	signals := []models.SignalRow{
		{Date: day(0), Basket: "['XLK']", Valid: true},
		{Date: day(2), Basket: "['XLK']", Valid: true},
		{Date: day(9), Basket: "['XLK']", Valid: true},
	}

	res, err := newTestEngine(prices, nil).BasketGated(context.Background(), obs, signals)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day(2)}, res.Strategy.Dates())
	assert.Equal(t, res.Strategy.Dates(), res.Benchmark.Dates())
	assert.InDelta(t, 0.5, res.Strategy.Values()[0], 1e-12)
	// day 0 has no prior price, so its NaN benchmark return drops it
	assert.NotContains(t, res.Benchmark.Dates(), day(0))
}

func TestBasketGatedErrors(t *testing.T) {
	obs := observations([]float64{0.01, 0.02}, []models.RegimeID{0, 0})
	signals := []models.SignalRow{{Date: day(1), Basket: "['XLK']", Valid: true}}

	_, err := newTestEngine(&fakePrices{}, nil).BasketGated(context.Background(), obs, nil)
	assert.ErrorIs(t, err, ErrNoSignals)

	boom := errors.New("dial tcp: timeout")
	_, err = newTestEngine(&fakePrices{err: boom}, nil).BasketGated(context.Background(), obs, signals)
	assert.ErrorIs(t, err, ErrMarketData)
	assert.ErrorIs(t, err, boom)

	noBench := &fakePrices{table: priceTable(t, 2, map[string][]float64{"XLK": {1, 2}})}
	_, err = newTestEngine(noBench, nil).BasketGated(context.Background(), obs, signals)
	assert.ErrorIs(t, err, ErrBenchmarkMissing)

	disjoint := []models.SignalRow{{Date: day(7), Basket: "['XLK']", Valid: true}}
	full := &fakePrices{table: priceTable(t, 2, map[string][]float64{"XLK": {1, 2}, "SPY": {1, 2}})}
	_, err = newTestEngine(full, nil).BasketGated(context.Background(), obs, disjoint)
	assert.ErrorIs(t, err, ErrEmptyResult)
}

func TestRunFallsBackToRegimeGating(t *testing.T) {
	obs := observations([]float64{0.01, -0.02, 0.03}, []models.RegimeID{0, 2, 1})
	signals := []models.SignalRow{{Date: day(1), Basket: "['XLK']", Valid: true}}
	prices := &fakePrices{err: errors.New("503 service unavailable")}
	m := newRecordingMetrics()

	res, err := newTestEngine(prices, m).Run(context.Background(), obs, signals, ModeAuto)
	require.NoError(t, err)

	assert.Equal(t, 1, prices.calls)
	assert.Equal(t, models.PathRegimeGated, res.Path)
	assert.Equal(t, []float64{0.01, 0, 0.03}, res.Strategy.Values())
	assert.Contains(t, res.FallbackReason, "market data unavailable")
	assert.Equal(t, []string{string(models.PathRegimeGated)}, m.paths)
	assert.Contains(t, m.errors, "basket_path")
}

func TestRunWithoutSignalsUsesRegimeGating(t *testing.T) {
	obs := observations([]float64{0.01, 0.02}, []models.RegimeID{2, 0})
	res, err := newTestEngine(&fakePrices{}, nil).Run(context.Background(), obs, nil, ModeAuto)
	require.NoError(t, err)
	assert.Equal(t, models.PathRegimeGated, res.Path)
	assert.Equal(t, ErrNoSignals.Error(), res.FallbackReason)
}

func TestRunRegimeModeSkipsMarketData(t *testing.T) {
	obs := observations([]float64{0.01}, []models.RegimeID{0})
	prices := &fakePrices{}
	res, err := newTestEngine(prices, nil).Run(context.Background(), obs, []models.SignalRow{{Date: day(0), Basket: "['XLK']", Valid: true}}, ModeRegime)
	require.NoError(t, err)
	assert.Equal(t, 0, prices.calls)
	assert.Empty(t, res.FallbackReason)
}

func TestRunPropagatesFallbackFailure(t *testing.T) {
	obs := observations([]float64{0.01}, []models.RegimeID{models.RegimeUnknown})
	_, err := newTestEngine(&fakePrices{}, nil).Run(context.Background(), obs, nil, ModeAuto)
	assert.ErrorIs(t, err, models.ErrMissingRegime)

	_, err = newTestEngine(&fakePrices{}, nil).Run(context.Background(), obs, nil, "weekly")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestRunBasketPath(t *testing.T) {
	prices := &fakePrices{table: priceTable(t, 2, map[string][]float64{"XLK": {100, 103}, "SPY": {100, 101}})}
	obs := observations([]float64{0, 0.01}, []models.RegimeID{0, 0})
	signals := []models.SignalRow{{Date: day(1), Basket: "['XLK']", Valid: true}}

	m := newRecordingMetrics()
	res, err := newTestEngine(prices, m).Run(context.Background(), obs, signals, ModeBasket)
	require.NoError(t, err)
	assert.Equal(t, models.PathBasketGated, res.Path)
	assert.Empty(t, res.FallbackReason)
	assert.Equal(t, []string{string(models.PathBasketGated)}, m.paths)
}
