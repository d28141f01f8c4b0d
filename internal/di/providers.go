package di

import (
	"context"
	"fmt"
	"time"

	"RegimeLab/internal/domain/repository"
	domsvc "RegimeLab/internal/domain/service"
	"RegimeLab/internal/handler/api"
	internalrepo "RegimeLab/internal/repository"
	icache "RegimeLab/internal/service/cache"
	"RegimeLab/internal/service/chart"
	"RegimeLab/internal/service/marketdata"
	"RegimeLab/internal/service/ratelimit"
	"RegimeLab/internal/service/report"
	"RegimeLab/internal/services/regime"
	"RegimeLab/internal/usecase"
	pkgch "RegimeLab/pkg/clickhouse"
	"RegimeLab/pkg/config"
	xhttp "RegimeLab/pkg/http"
	pkgkafka "RegimeLab/pkg/kafka"
	applogger "RegimeLab/pkg/logger"
	"RegimeLab/pkg/metrics"
	"RegimeLab/pkg/server"
)

const schemaTimeout = 10 * time.Second

// ProvideLogger builds the structured logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() *metrics.Recorder {
	return metrics.New()
}

// ProvideClickHouseClient connects to ClickHouse when enabled and applies the
// schema. A nil client means ClickHouse is off.
func ProvideClickHouseClient(cfg *config.Config, log *applogger.Logger) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), schemaTimeout)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(cfg.ClickHouse.MaxOpenConns, cfg.ClickHouse.MaxIdleConns),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, true),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	if cfg.ClickHouse.InitSchema {
		if err := client.InitSchema(ctx, internalrepo.SchemaStatements(cfg.ClickHouse.Database)); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
		}
	}
	log.Info("clickhouse connected",
		applogger.String("host", cfg.ClickHouse.Host),
		applogger.String("database", cfg.ClickHouse.Database),
	)

	cleanup := func() {
		if err := client.Close(); err != nil {
			log.Warn("clickhouse close", applogger.Error(err))
		}
	}
	return client, cleanup, nil
}

// ProvideCHStore wraps the client in the store; nil when ClickHouse is off.
func ProvideCHStore(client *pkgch.Client, log *applogger.Logger) *internalrepo.CHStore {
	if client == nil {
		return nil
	}
	return internalrepo.NewCHStore(client.DB(), client.Database(), log)
}

func ProvideCSVStore(cfg *config.Config, log *applogger.Logger) *internalrepo.CSVStore {
	return internalrepo.NewCSVStore(cfg.Source.ObservationsPath, cfg.Source.SignalsPath, cfg.Backtest.Benchmark, log)
}

func ProvideObservationSource(cfg *config.Config, csv *internalrepo.CSVStore, ch *internalrepo.CHStore) repository.ObservationSource {
	if cfg.Source.Type == "clickhouse" && ch != nil {
		return ch
	}
	return csv
}

func ProvideSignalSource(cfg *config.Config, csv *internalrepo.CSVStore, ch *internalrepo.CHStore) repository.SignalSource {
	if cfg.Source.Type == "clickhouse" && ch != nil {
		return ch
	}
	return csv
}

func ProvideLabeledWriter(csv *internalrepo.CSVStore) repository.LabeledWriter {
	return csv
}

// ProvideResultStore returns the ClickHouse store when results should be
// persisted, else a nil interface.
func ProvideResultStore(cfg *config.Config, ch *internalrepo.CHStore) repository.ResultStore {
	if ch == nil || !cfg.ClickHouse.PersistResults {
		return nil
	}
	return ch
}

// ProvideKafkaProducer creates a Kafka producer when enabled.
func ProvideKafkaProducer(cfg *config.Config, log *applogger.Logger) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithTopic(cfg.Kafka.Topic),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithTimeouts(cfg.Kafka.WriteTimeout, cfg.Kafka.WriteTimeout),
		pkgkafka.WithAutoCreateTopic(cfg.Kafka.AutoCreate),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	log.Info("kafka producer ready",
		applogger.Strings("brokers", cfg.Kafka.Brokers),
		applogger.String("topic", cfg.Kafka.Topic),
	)
	cleanup := func() {
		if err := producer.Close(); err != nil {
			log.Warn("kafka close", applogger.Error(err))
		}
	}
	return producer, cleanup, nil
}

func ProvideReportPublisher(producer *pkgkafka.Producer) repository.ReportPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer)
}

// ProvideBytesCache selects the shared cache backend. "none" yields nil.
// An unreachable Redis is logged and kept; every cache error is non-fatal.
func ProvideBytesCache(cfg *config.Config, log *applogger.Logger) (icache.BytesCache, func(), error) {
	switch cfg.MarketData.Cache {
	case "redis", "layered":
		rc := icache.NewRedisCache(icache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rc.Ping(ctx); err != nil {
			log.Warn("redis unavailable, cache misses expected", applogger.String("addr", cfg.Redis.Addr), applogger.Error(err))
		}
		cleanup := func() { _ = rc.Close() }
		if cfg.MarketData.Cache == "layered" {
			return icache.NewLayeredCache(rc, cfg.MarketData.MemoryTTL), cleanup, nil
		}
		return rc, cleanup, nil
	case "memory":
		return icache.NewTTLCache(), func() {}, nil
	default:
		return nil, func() {}, nil
	}
}

// ProvidePriceProvider builds the rate-limited Yahoo client, cached when a
// cache backend is configured.
func ProvidePriceProvider(cfg *config.Config, c icache.BytesCache, log *applogger.Logger) repository.PriceProvider {
	md := cfg.MarketData
	yc := marketdata.NewYahooClient(
		marketdata.WithBaseURL(md.BaseURL),
		marketdata.WithHTTPClient(xhttp.NewClient(xhttp.WithTimeout(md.Timeout), xhttp.WithUserAgent(md.UserAgent))),
		marketdata.WithRateLimit(ratelimit.New(), md.Burst, md.RatePerSec),
		marketdata.WithLogger(log),
	)
	if c == nil {
		return yc
	}
	return marketdata.NewCachedProvider(yc, c, md.CacheTTL, log)
}

// ProvideClassifierFactory maps regime config onto a fresh model per call,
// honouring per-call component and seed overrides.
func ProvideClassifierFactory(cfg *config.Config) usecase.ClassifierFactory {
	base := regime.Config{
		Components: cfg.Regime.Components,
		Seed:       cfg.Regime.Seed,
		MaxIter:    cfg.Regime.MaxIter,
		Tol:        cfg.Regime.Tol,
		RegCovar:   cfg.Regime.RegCovar,
		KMeansIter: cfg.Regime.KMeansIter,
	}
	return func(opts usecase.ClassifyOptions) domsvc.RegimeClassifier {
		c := base
		if opts.Components > 0 {
			c.Components = opts.Components
		}
		if opts.Seed != nil {
			c.Seed = *opts.Seed
		}
		return regime.NewModel(c)
	}
}

func ProvideClassifier(factory usecase.ClassifierFactory, m repository.Metrics, log *applogger.Logger) *usecase.Classifier {
	return usecase.NewClassifier(factory, m, log)
}

func ProvideEngine(cfg *config.Config, prices repository.PriceProvider, m repository.Metrics, log *applogger.Logger) *usecase.Engine {
	return usecase.NewEngine(prices, m, log, usecase.EngineConfig{
		Benchmark:  cfg.Backtest.Benchmark,
		CashMarker: cfg.Backtest.CashMarker,
		Components: cfg.Regime.Components,
	})
}

func ProvideChartRenderer() domsvc.ChartRenderer {
	return chart.NewRenderer(chart.DefaultConfig())
}

func ProvideSummaryWriter() domsvc.SummaryWriter {
	return report.NewTextWriter()
}

func ProvideReportGenerator(
	cfg *config.Config,
	obs repository.ObservationSource,
	signals repository.SignalSource,
	classifier *usecase.Classifier,
	engine *usecase.Engine,
	charts domsvc.ChartRenderer,
	summary domsvc.SummaryWriter,
	store repository.ResultStore,
	publisher repository.ReportPublisher,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.ReportGenerator {
	return usecase.NewReportGenerator(usecase.ReportDeps{
		Observations: obs,
		Signals:      signals,
		Classifier:   classifier,
		Engine:       engine,
		Charts:       charts,
		Summary:      summary,
		Store:        store,
		Publisher:    publisher,
		Metrics:      m,
		Log:          log,
	}, usecase.ReportConfig{
		OutputDir: cfg.Report.OutputDir,
		Mode:      cfg.Backtest.Mode,
		Refit:     cfg.Regime.Refit,
		Charts:    cfg.Report.Charts,
	})
}

func ProvideClassifyTable(obs repository.ObservationSource, w repository.LabeledWriter, classifier *usecase.Classifier, log *applogger.Logger) *usecase.ClassifyTable {
	return usecase.NewClassifyTable(obs, w, classifier, log)
}

// ProvideHealthChecks probes every configured backing service.
func ProvideHealthChecks(ch *pkgch.Client, c icache.BytesCache) map[string]api.HealthCheck {
	checks := make(map[string]api.HealthCheck)
	if ch != nil {
		checks["clickhouse"] = ch.Health
	}
	if lc, ok := c.(*icache.LayeredCache); ok {
		c = lc.L2()
	}
	if rc, ok := c.(*icache.RedisCache); ok {
		checks["redis"] = rc.Ping
	}
	return checks
}

func ProvideHTTPHandler(cfg *config.Config, log *applogger.Logger, reports *usecase.ReportGenerator, c icache.BytesCache, checks map[string]api.HealthCheck) xhttp.Handler {
	return api.NewReportEchoHandler(log, reports, c, checks, api.HandlerConfig{
		RateBurst: cfg.API.RateBurst,
		RatePerS:  cfg.API.RatePerSec,
		CacheTTL:  cfg.API.CacheTTL,
	})
}

// ProvideApp creates the application.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	recorder *metrics.Recorder,
	reports *usecase.ReportGenerator,
	classify *usecase.ClassifyTable,
	handler xhttp.Handler,
) *server.App {
	return server.New(cfg, log, recorder, reports, classify, handler)
}

