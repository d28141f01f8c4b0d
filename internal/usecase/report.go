package usecase

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"RegimeLab/internal/domain/models"
	domrepo "RegimeLab/internal/domain/repository"
	domsvc "RegimeLab/internal/domain/service"
	"RegimeLab/internal/services/performance"
	applogger "RegimeLab/pkg/logger"

	"github.com/google/uuid"
)

// Artifact file names written under the output directory.
const (
	FileRegimeChart   = "market_regimes.png"
	FileGrowthChart   = "performance_comparison.png"
	FileDrawdownChart = "drawdown.png"
	FileSummary       = "results.txt"
)

type ReportConfig struct {
	OutputDir string
	Mode      string
	Refit     bool
	Charts    bool
}

// Dataset is the labeled input of one backtest.
type Dataset struct {
	Labels  LabeledSet
	Signals []models.SignalRow
}

// ReportGenerator runs the whole pipeline: load, label, backtest, summarize
// and write artifacts. Stores and publishers are optional.
type ReportGenerator struct {
	observations domrepo.ObservationSource
	signals      domrepo.SignalSource
	classifier   *Classifier
	engine       *Engine
	charts       domsvc.ChartRenderer
	summary      domsvc.SummaryWriter
	store        domrepo.ResultStore
	publisher    domrepo.ReportPublisher
	metrics      domrepo.Metrics
	log          *applogger.Logger
	cfg          ReportConfig

	now   func() time.Time
	newID func() string
}

// ReportDeps groups the collaborators of ReportGenerator.
type ReportDeps struct {
	Observations domrepo.ObservationSource
	Signals      domrepo.SignalSource
	Classifier   *Classifier
	Engine       *Engine
	Charts       domsvc.ChartRenderer
	Summary      domsvc.SummaryWriter
	Store        domrepo.ResultStore
	Publisher    domrepo.ReportPublisher
	Metrics      domrepo.Metrics
	Log          *applogger.Logger
}

func NewReportGenerator(d ReportDeps, cfg ReportConfig) *ReportGenerator {
	if d.Log == nil {
		d.Log = applogger.Nop()
	}
	if d.Metrics == nil {
		d.Metrics = nopMetrics{}
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeAuto
	}
	return &ReportGenerator{
		observations: d.Observations,
		signals:      d.Signals,
		classifier:   d.Classifier,
		engine:       d.Engine,
		charts:       d.Charts,
		summary:      d.Summary,
		store:        d.Store,
		publisher:    d.Publisher,
		metrics:      d.Metrics,
		log:          d.Log,
		cfg:          cfg,
		now:          time.Now,
		newID:        func() string { return uuid.NewString() },
	}
}

// Config returns the generator's configuration.
func (g *ReportGenerator) Config() ReportConfig { return g.cfg }

// Prepare loads observations and signals. Observations are classified when
// refit is set or when any of them lacks a regime. A failed signal load is
// logged and treated as no signals, which sends the backtest to the regime path.
func (g *ReportGenerator) Prepare(ctx context.Context, refit bool, opts ClassifyOptions) (Dataset, error) {
	obs, err := g.observations.LoadObservations(ctx)
	if err != nil {
		return Dataset{}, fmt.Errorf("load observations: %w", err)
	}

	var labels LabeledSet
	if refit || !allLabeled(obs) {
		labels, err = g.classifier.Label(obs, opts)
	} else {
		labels, err = Existing(obs)
	}
	if err != nil {
		return Dataset{}, err
	}

	var signals []models.SignalRow
	if g.signals != nil {
		signals, err = g.signals.LoadSignals(ctx)
		if err != nil {
			g.metrics.RecordError("load_signals")
			g.log.Warn("signal load failed, continuing without signals", applogger.Error(err))
			signals = nil
		}
	}
	return Dataset{Labels: labels, Signals: signals}, nil
}

// Evaluate backtests ds and summarizes both series.
func (g *ReportGenerator) Evaluate(ctx context.Context, ds Dataset, mode string) (*models.Report, models.BacktestResult, error) {
	engine := g.engine
	if ds.Labels.Refitted {
		engine = engine.ForRegimes(ds.Labels.Components())
	}
	res, err := engine.Run(ctx, ds.Labels.Observations, ds.Signals, mode)
	if err != nil {
		return nil, models.BacktestResult{}, err
	}
	strat, bench := performance.Align(res.Strategy, res.Benchmark)
	from, to := models.DateRange(ds.Labels.Observations)
	if strat.Len() > 0 {
		from, to = strat.Points[0].Date, strat.Points[strat.Len()-1].Date
	}
	r := &models.Report{
		RunID:          g.newID(),
		GeneratedAt:    g.now().UTC(),
		Path:           res.Path,
		FallbackReason: res.FallbackReason,
		From:           from,
		To:             to,
		Strategy:       performance.Summarize(strat),
		Benchmark:      performance.Summarize(bench),
		Regimes:        ds.Labels.Stats,
		ParseFailures:  res.ParseFailures,
	}
	return r, res, nil
}

// Generate runs the full pipeline and writes every artifact.
func (g *ReportGenerator) Generate(ctx context.Context) (*models.Report, error) {
	start := time.Now()
	ds, err := g.Prepare(ctx, g.cfg.Refit, ClassifyOptions{})
	if err != nil {
		return nil, err
	}
	r, res, err := g.Evaluate(ctx, ds, g.cfg.Mode)
	if err != nil {
		return nil, err
	}

	if g.charts != nil && g.cfg.Charts {
		if err := g.renderCharts(ds, res, r); err != nil {
			return nil, err
		}
	}
	summaryPath := filepath.Join(g.cfg.OutputDir, FileSummary)
	r.Artifacts = append(r.Artifacts, summaryPath)
	if err := g.summary.WriteSummary(r, summaryPath); err != nil {
		return nil, fmt.Errorf("write summary: %w", err)
	}

	g.persist(ctx, r, ds, res)

	g.metrics.RecordLatency("report", time.Since(start).Seconds())
	g.log.Info("report generated",
		applogger.String("run_id", r.RunID),
		applogger.String("path", string(r.Path)),
		applogger.Float64("strategy_total_return", float64(r.Strategy.TotalReturn)),
		applogger.Float64("benchmark_total_return", float64(r.Benchmark.TotalReturn)),
		applogger.Any("strategy_sharpe", r.Strategy.Sharpe),
		applogger.Bool("refit", g.cfg.Refit),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return r, nil
}

func (g *ReportGenerator) renderCharts(ds Dataset, res models.BacktestResult, r *models.Report) error {
	start := time.Now()
	defer func() { g.metrics.RecordLatency("charts", time.Since(start).Seconds()) }()

	steps := []struct {
		file string
		draw func(path string) error
	}{
		{FileRegimeChart, func(p string) error { return g.charts.RegimeScatter(ds.Labels.Observations, p) }},
		{FileGrowthChart, func(p string) error { return g.charts.CumulativeGrowth(res.Strategy, res.Benchmark, p) }},
		{FileDrawdownChart, func(p string) error { return g.charts.Drawdown(res.Strategy, res.Benchmark, p) }},
	}
	for _, s := range steps {
		path := filepath.Join(g.cfg.OutputDir, s.file)
		if err := s.draw(path); err != nil {
			return fmt.Errorf("render %s: %w", s.file, err)
		}
		r.Artifacts = append(r.Artifacts, path)
	}
	return nil
}

// persist writes results to the optional sinks. Sink failures are logged and
// counted; the local artifacts are already on disk.
func (g *ReportGenerator) persist(ctx context.Context, r *models.Report, ds Dataset, res models.BacktestResult) {
	if g.store != nil {
		if err := g.store.SaveRegimes(ctx, r.RunID, ds.Labels.Observations, ds.Labels.Regimes); err != nil {
			g.metrics.RecordError("store_regimes")
			g.log.Error("store regimes failed", applogger.String("run_id", r.RunID), applogger.Error(err))
		}
		if err := g.store.SaveReturns(ctx, r.RunID, res); err != nil {
			g.metrics.RecordError("store_returns")
			g.log.Error("store returns failed", applogger.String("run_id", r.RunID), applogger.Error(err))
		}
	}
	if g.publisher != nil {
		if err := g.publisher.PublishReport(ctx, r); err != nil {
			g.metrics.RecordError("publish_report")
			g.log.Error("publish report failed", applogger.String("run_id", r.RunID), applogger.Error(err))
		}
	}
}

func allLabeled(obs []models.Observation) bool {
	for _, o := range obs {
		if !o.HasRegime() {
			return false
		}
	}
	return len(obs) > 0
}
