package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"RegimeLab/internal/domain/models"
	icache "RegimeLab/internal/service/cache"
	"RegimeLab/internal/service/metrics"
	"RegimeLab/internal/service/ratelimit"
	"RegimeLab/internal/services/regime"
	"RegimeLab/internal/usecase"
	xhttp "RegimeLab/pkg/http"
	xlogger "RegimeLab/pkg/logger"
	"RegimeLab/pkg/util"

	"github.com/labstack/echo/v4"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// HandlerConfig tunes per-client rate limits and response caching.
type HandlerConfig struct {
	RateBurst float64
	RatePerS  float64
	CacheTTL  time.Duration
}

// ReportEchoHandler serves regime labels, backtests and summaries on demand.
// Every request refits or re-reads its own data; nothing is shared between
// requests except the response cache.
type ReportEchoHandler struct {
	logger  *xlogger.Logger
	reports *usecase.ReportGenerator
	cache   icache.BytesCache
	rl      *ratelimit.Limiter
	checks  map[string]HealthCheck
	cfg     HandlerConfig
}

func NewReportEchoHandler(logger *xlogger.Logger, reports *usecase.ReportGenerator, cache icache.BytesCache, checks map[string]HealthCheck, cfg HandlerConfig) *ReportEchoHandler {
	metrics.Register()
	if logger == nil {
		logger = xlogger.Nop()
	}
	if cfg.RateBurst <= 0 || cfg.RatePerS <= 0 {
		cfg.RateBurst, cfg.RatePerS = 5, 1
	}
	return &ReportEchoHandler{
		logger:  logger,
		reports: reports,
		cache:   cache,
		rl:      ratelimit.New(),
		checks:  checks,
		cfg:     cfg,
	}
}

func (h *ReportEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	g := e.Group("/api")
	g.GET("/regimes", h.Regimes)
	g.GET("/backtest", h.Backtest)
	g.GET("/summary", h.Summary)
}

type regimeRow struct {
	Date         string             `json:"date"`
	Regime       models.RegimeID    `json:"regime"`
	Label        models.RegimeLabel `json:"label"`
	LogSectorVol float64            `json:"log_sector_vol"`
	LogVIX       float64            `json:"log_vix"`
}

type regimesResponse struct {
	Stats []models.RegimeStat `json:"stats"`
	Rows  []regimeRow         `json:"rows"`
	Total int                 `json:"total"`
}

// Regimes refits the classifier on the current table.
func (h *ReportEchoHandler) Regimes(c echo.Context) error {
	const endpoint = "regimes"
	start := time.Now()
	req := &models.RegimesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.Observe(endpoint, start, "4xx")
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.allow(c, endpoint); err != nil {
		metrics.Observe(endpoint, start, "4xx")
		return xhttp.AppErrorResponse(c, err)
	}

	opts := usecase.ClassifyOptions{Components: req.Components}
	if c.QueryParam("seed") != "" {
		seed := req.Seed
		opts.Seed = &seed
	}
	ds, err := h.reports.Prepare(c.Request().Context(), true, opts)
	if err != nil {
		return h.fail(c, endpoint, start, err)
	}

	set := ds.Labels
	rows := make([]regimeRow, len(set.Observations))
	for i, o := range set.Observations {
		rows[i] = regimeRow{
			Date:         util.FormatDate(o.Date),
			Regime:       set.Regimes[i].ID,
			Label:        set.Regimes[i].Label,
			LogSectorVol: o.LogSectorVol,
			LogVIX:       o.LogVIX,
		}
	}
	total := len(rows)
	if req.Limit > 0 && req.Limit < total {
		rows = rows[total-req.Limit:]
	}
	metrics.Observe(endpoint, start, "")
	return xhttp.SuccessResponse(c, regimesResponse{Stats: set.Stats, Rows: rows, Total: total})
}

// Backtest returns the aligned strategy and benchmark series.
func (h *ReportEchoHandler) Backtest(c echo.Context) error {
	const endpoint = "backtest"
	start := time.Now()
	req := &models.BacktestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.Observe(endpoint, start, "4xx")
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.allow(c, endpoint); err != nil {
		metrics.Observe(endpoint, start, "4xx")
		return xhttp.AppErrorResponse(c, err)
	}

	ctx := c.Request().Context()
	ds, err := h.reports.Prepare(ctx, req.Refit, usecase.ClassifyOptions{})
	if err != nil {
		return h.fail(c, endpoint, start, err)
	}
	_, res, err := h.reports.Evaluate(ctx, ds, req.Mode)
	if err != nil {
		return h.fail(c, endpoint, start, err)
	}
	if !req.IncludeDays {
		res.Days = nil
	}
	metrics.Observe(endpoint, start, "")
	return xhttp.SuccessResponse(c, res)
}

// Summary returns the headline metrics. Responses are cached briefly per mode.
func (h *ReportEchoHandler) Summary(c echo.Context) error {
	const endpoint = "summary"
	start := time.Now()
	req := &models.SummaryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.Observe(endpoint, start, "4xx")
		return xhttp.BadRequestResponse(c, verr)
	}

	ctx := c.Request().Context()
	key := "summary:" + req.Mode
	if req.Refit {
		key += ":refit"
	}
	if cached, ok := h.cached(ctx, key); ok {
		metrics.Observe(endpoint, start, "")
		return xhttp.SuccessResponse(c, cached)
	}
	if err := h.allow(c, endpoint); err != nil {
		metrics.Observe(endpoint, start, "4xx")
		return xhttp.AppErrorResponse(c, err)
	}

	ds, err := h.reports.Prepare(ctx, req.Refit, usecase.ClassifyOptions{})
	if err != nil {
		return h.fail(c, endpoint, start, err)
	}
	r, _, err := h.reports.Evaluate(ctx, ds, req.Mode)
	if err != nil {
		return h.fail(c, endpoint, start, err)
	}
	h.store(ctx, key, r)
	metrics.Observe(endpoint, start, "")
	return xhttp.SuccessResponse(c, r)
}

// Health runs every registered check and reports each result.
func (h *ReportEchoHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	out := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.logger.Warn("health check failed", xlogger.String("check", name), xlogger.Error(err))
			out[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		out[name] = "ok"
	}
	return xhttp.DataResponse(c, status, out)
}

func (h *ReportEchoHandler) allow(c echo.Context, endpoint string) error {
	if h.rl.Allow(c.RealIP()+":"+endpoint, h.cfg.RateBurst, h.cfg.RatePerS) {
		return nil
	}
	h.logger.Warn("rate limited", xlogger.String("endpoint", endpoint), xlogger.String("remote", c.RealIP()))
	return xhttp.TooManyRequestsError("rate limited")
}

func (h *ReportEchoHandler) fail(c echo.Context, endpoint string, start time.Time, err error) error {
	appErr := AppError(err)
	metrics.Observe(endpoint, start, classOf(appErr.Status))
	h.logger.Error(endpoint+" usecase error", xlogger.Int("status", appErr.Status), xlogger.Error(err))
	return xhttp.AppErrorResponse(c, appErr)
}

func (h *ReportEchoHandler) cached(ctx context.Context, key string) (json.RawMessage, bool) {
	if h.cache == nil || h.cfg.CacheTTL <= 0 {
		return nil, false
	}
	b, ok, err := h.cache.GetBytes(ctx, key)
	if err != nil {
		h.logger.Warn("response cache read failed", xlogger.String("key", key), xlogger.Error(err))
		return nil, false
	}
	return json.RawMessage(b), ok
}

func (h *ReportEchoHandler) store(ctx context.Context, key string, v interface{}) {
	if h.cache == nil || h.cfg.CacheTTL <= 0 {
		return
	}
	b, err := json.Marshal(v)
	if err == nil {
		err = h.cache.SetBytes(ctx, key, b, h.cfg.CacheTTL)
	}
	if err != nil {
		h.logger.Warn("response cache write failed", xlogger.String("key", key), xlogger.Error(err))
	}
}

// AppError maps pipeline errors onto HTTP statuses: input-shape problems are
// 400, market data failures 502, anything else 500.
func AppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, models.ErrEmptyInput),
		errors.Is(err, models.ErrMissingColumn),
		errors.Is(err, models.ErrUnsortedDates),
		errors.Is(err, models.ErrMissingRegime),
		errors.Is(err, models.ErrInvalidValue),
		errors.Is(err, regime.ErrInsufficientSamples),
		errors.Is(err, regime.ErrInvalidFeature),
		errors.Is(err, usecase.ErrUnknownMode):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, usecase.ErrMarketData):
		return xhttp.BadGatewayError("market data unavailable").WithError(err)
	default:
		return xhttp.InternalError("report pipeline failed").WithError(err)
	}
}

func classOf(status int) string {
	if status >= 500 {
		return "5xx"
	}
	return "4xx"
}
