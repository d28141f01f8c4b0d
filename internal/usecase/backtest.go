package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"RegimeLab/internal/domain/models"
	domrepo "RegimeLab/internal/domain/repository"
	"RegimeLab/internal/services/features"
	applogger "RegimeLab/pkg/logger"
	"RegimeLab/pkg/util"
)

var (
	ErrNoSignals        = errors.New("backtest: no basket signals")
	ErrMarketData       = errors.New("backtest: market data unavailable")
	ErrBenchmarkMissing = errors.New("backtest: benchmark prices missing")
	ErrEmptyResult      = errors.New("backtest: no dates shared by signals and returns")
	ErrUnknownMode      = errors.New("backtest: unknown mode")
)

// Backtest modes accepted by Run.
const (
	ModeAuto   = "auto"
	ModeRegime = "regime"
	ModeBasket = "basket"
)

type EngineConfig struct {
	Benchmark  string
	CashMarker string
	// Components is the number of fitted regimes; the highest rank is the
	// crisis regime.
	Components int
}

// Engine turns labeled observations and basket signals into a strategy and
// benchmark return series over the same dates.
type Engine struct {
	prices  domrepo.PriceProvider
	metrics domrepo.Metrics
	log     *applogger.Logger
	cfg     EngineConfig
}

func NewEngine(prices domrepo.PriceProvider, metrics domrepo.Metrics, log *applogger.Logger, cfg EngineConfig) *Engine {
	if log == nil {
		log = applogger.Nop()
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Engine{prices: prices, metrics: metrics, log: log, cfg: cfg}
}

// Run picks the strategy path. Outside regime mode the basket path is tried
// first; any failure there falls back once to the regime path and the
// reason is kept on the result.
func (e *Engine) Run(ctx context.Context, obs []models.Observation, signals []models.SignalRow, mode string) (models.BacktestResult, error) {
	start := time.Now()
	defer func() { e.metrics.RecordLatency("backtest", time.Since(start).Seconds()) }()

	switch mode {
	case ModeRegime:
		return e.finish(e.RegimeGated(obs))
	case ModeAuto, ModeBasket, "":
	default:
		return models.BacktestResult{}, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	res, err := e.BasketGated(ctx, obs, signals)
	if err == nil {
		return e.finish(res, nil)
	}

	e.metrics.RecordError("basket_path")
	e.log.Warn("basket backtest failed, falling back to regime gating", applogger.Error(err))

	res, ferr := e.RegimeGated(obs)
	if ferr != nil {
		return models.BacktestResult{}, fmt.Errorf("regime fallback after %v: %w", err, ferr)
	}
	res.FallbackReason = err.Error()
	return e.finish(res, nil)
}

func (e *Engine) finish(res models.BacktestResult, err error) (models.BacktestResult, error) {
	if err != nil {
		e.metrics.RecordError("backtest")
		return res, err
	}
	e.metrics.RecordBacktestPath(string(res.Path))
	e.log.Info("backtest complete",
		applogger.String("path", string(res.Path)),
		applogger.Int("days", res.Strategy.Len()),
		applogger.Int("parse_failures", res.ParseFailures),
	)
	return res, nil
}

// RegimeGated holds the benchmark except on crisis days, which return 0.
// The regime observed on day t gates the return of day t.
func (e *Engine) RegimeGated(obs []models.Observation) (models.BacktestResult, error) {
	if len(obs) == 0 {
		return models.BacktestResult{}, models.ErrEmptyInput
	}
	crisis := e.crisisRegime(obs)
	dates := make([]time.Time, len(obs))
	strat := make([]float64, len(obs))
	bench := make([]float64, len(obs))
	for i, o := range obs {
		if !o.HasRegime() {
			return models.BacktestResult{}, fmt.Errorf("%w: %s", models.ErrMissingRegime, util.FormatDate(o.Date))
		}
		dates[i] = o.Date
		bench[i] = o.BenchmarkReturn
		if o.Regime != crisis {
			strat[i] = o.BenchmarkReturn
		}
	}
	return models.BacktestResult{
		Path:      models.PathRegimeGated,
		Strategy:  models.NewReturnSeries("Strategy", dates, strat),
		Benchmark: models.NewReturnSeries(e.cfg.Benchmark, dates, bench),
	}, nil
}

// ForRegimes returns an engine gating on a k-regime labeling. A
// non-positive k keeps the configured component count.
func (e *Engine) ForRegimes(k int) *Engine {
	if k <= 0 || k == e.cfg.Components {
		return e
	}
	cp := *e
	cp.cfg.Components = k
	return &cp
}

// crisisRegime is the highest volatility rank: Components-1, or a higher
// id when the table was labeled with more regimes than configured.
func (e *Engine) crisisRegime(obs []models.Observation) models.RegimeID {
	crisis := models.RegimeID(e.cfg.Components - 1)
	for _, o := range obs {
		if o.Regime > crisis {
			crisis = o.Regime
		}
	}
	return crisis
}

// BasketGated holds an equal-weighted basket of the tickers signalled for
// each day. Days with no usable ticker, or an unparseable basket, return 0.
func (e *Engine) BasketGated(ctx context.Context, obs []models.Observation, signals []models.SignalRow) (models.BacktestResult, error) {
	if len(signals) == 0 {
		return models.BacktestResult{}, ErrNoSignals
	}
	if len(obs) == 0 {
		return models.BacktestResult{}, models.ErrEmptyInput
	}

	universe := CollectUniverse(signals, e.cfg.CashMarker, e.cfg.Benchmark)
	from, to := models.DateRange(obs)
	table, err := e.prices.AdjustedClose(ctx, universe, from, to)
	if err != nil {
		return models.BacktestResult{}, fmt.Errorf("%w: %w", ErrMarketData, err)
	}
	if !table.Has(e.cfg.Benchmark) {
		return models.BacktestResult{}, fmt.Errorf("%w: %s", ErrBenchmarkMissing, e.cfg.Benchmark)
	}

	rets := features.DailyReturns(table)
	bench := rets.Columns[e.cfg.Benchmark]

	bySignalDate := make(map[time.Time]models.SignalRow, len(signals))
	for _, s := range signals {
		bySignalDate[util.Day(s.Date)] = s
	}

	res := models.BacktestResult{Path: models.PathBasketGated}
	var dates []time.Time
	var stratVals, benchVals []float64
	for i, d := range rets.Dates {
		sig, ok := bySignalDate[util.Day(d)]
		if !ok || math.IsNaN(bench[i]) {
			continue
		}
		day := e.basketDay(rets, i, sig)
		if day.Status == models.BasketInvalid {
			res.ParseFailures++
		}
		e.metrics.RecordBasketDay(string(day.Status))
		res.Days = append(res.Days, day)
		dates = append(dates, day.Date)
		stratVals = append(stratVals, day.Return)
		benchVals = append(benchVals, bench[i])
	}
	if len(dates) == 0 {
		return models.BacktestResult{}, ErrEmptyResult
	}

	res.Strategy = models.NewReturnSeries("Strategy", dates, stratVals)
	res.Benchmark = models.NewReturnSeries(e.cfg.Benchmark, dates, benchVals)
	return res, nil
}

func (e *Engine) basketDay(rets *domrepo.PriceTable, row int, sig models.SignalRow) models.BasketDay {
	date := util.Day(rets.Dates[row])
	b := ParseBasket(sig, e.cfg.CashMarker)
	switch b.Status {
	case models.BasketInvalid:
		e.log.Debug("unparseable basket",
			applogger.String("date", util.FormatDate(date)),
			applogger.Error(b.Err),
		)
		return models.BasketDay{Date: date, Status: models.BasketInvalid}
	case models.BasketMissing, models.BasketFlat:
		return models.BasketDay{Date: date, Status: b.Status}
	}

	var held []string
	sum := 0.0
	for _, t := range b.Tickers {
		col, ok := rets.Columns[t]
		if !ok || math.IsNaN(col[row]) {
			continue
		}
		held = append(held, t)
		sum += col[row]
	}
	if len(held) == 0 {
		return models.BasketDay{Date: date, Status: models.BasketFlat}
	}
	return models.BasketDay{
		Date:   date,
		Status: models.BasketHeld,
		Held:   held,
		Return: sum / float64(len(held)),
	}
}
