package models

import (
	"math"
	"strconv"
	"time"
)

// Metric is a float that encodes undefined values (NaN, ±Inf) as JSON null.
type Metric float64

func (m Metric) Defined() bool {
	f := float64(m)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.Defined() {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, float64(m), 'g', -1, 64), nil
}

// PerformanceSummary holds the headline metrics of one return series.
type PerformanceSummary struct {
	Name        string `json:"name"`
	Days        int    `json:"days"`
	TotalReturn Metric `json:"total_return"`
	FinalGrowth Metric `json:"final_growth"`
	Sharpe      Metric `json:"sharpe"` // NaN when undefined
	MaxDrawdown Metric `json:"max_drawdown"`
}

// Report is the outcome of one pipeline run.
type Report struct {
	RunID          string             `json:"run_id"`
	GeneratedAt    time.Time          `json:"generated_at"`
	Path           BacktestPath       `json:"path"`
	FallbackReason string             `json:"fallback_reason,omitempty"`
	From           time.Time          `json:"from"`
	To             time.Time          `json:"to"`
	Strategy       PerformanceSummary `json:"strategy"`
	Benchmark      PerformanceSummary `json:"benchmark"`
	Regimes        []RegimeStat       `json:"regimes,omitempty"`
	ParseFailures  int                `json:"parse_failures"`
	Artifacts      []string           `json:"artifacts,omitempty"`
}
