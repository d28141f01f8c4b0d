package metrics

import (
	"context"
	"fmt"

	domrepo "RegimeLab/internal/domain/repository"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	paths       *prometheus.CounterVec
	basketDays  *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	gatherer    prometheus.Gatherer
}

// New creates a recorder on the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// NewWithRegistry creates a recorder whose collectors live in reg.
func NewWithRegistry(reg prometheus.Registerer, g prometheus.Gatherer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		paths: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regimelab_backtest_runs_total",
				Help: "Backtest runs by the strategy path that produced the result",
			},
			[]string{"path"},
		),
		basketDays: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regimelab_basket_days_total",
				Help: "Basket-gated backtest days by resolution status",
			},
			[]string{"status"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regimelab_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "regimelab_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		gatherer: g,
	}
}

// RecordBacktestPath counts a finished backtest by path.
func (r *Recorder) RecordBacktestPath(path string) {
	r.paths.WithLabelValues(path).Inc()
}

// RecordBasketDay counts one basket day by status.
func (r *Recorder) RecordBasketDay(status string) {
	r.basketDays.WithLabelValues(status).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records stage latency in seconds.
func (r *Recorder) RecordLatency(stage string, seconds float64) {
	r.latency.WithLabelValues(stage).Observe(seconds)
}

// Push sends everything in the recorder's registry to a Pushgateway.
func (r *Recorder) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(r.gatherer).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}

var _ domrepo.Metrics = (*Recorder)(nil)
