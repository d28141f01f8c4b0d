package repository

import (
	"context"
	"time"

	"RegimeLab/internal/domain/models"
)

// ObservationSource loads the daily feature table, sorted by date.
type ObservationSource interface {
	LoadObservations(ctx context.Context) ([]models.Observation, error)
}

// SignalSource loads the per-date basket signals, sorted by date.
type SignalSource interface {
	LoadSignals(ctx context.Context) ([]models.SignalRow, error)
}

// PriceProvider returns adjusted daily closes for tickers over [from, to].
type PriceProvider interface {
	AdjustedClose(ctx context.Context, tickers []string, from, to time.Time) (*PriceTable, error)
}

// LabeledWriter writes the feature table back out with its regime columns.
type LabeledWriter interface {
	WriteLabeled(path string, obs []models.Observation, regimes []models.Regime) error
}

// ResultStore persists the outputs of a run.
type ResultStore interface {
	SaveRegimes(ctx context.Context, runID string, obs []models.Observation, regimes []models.Regime) error
	SaveReturns(ctx context.Context, runID string, res models.BacktestResult) error
}

// ReportPublisher announces a finished report to downstream consumers.
type ReportPublisher interface {
	PublishReport(ctx context.Context, r *models.Report) error
	Close() error
}

type Metrics interface {
	RecordBacktestPath(path string)
	RecordBasketDay(status string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
