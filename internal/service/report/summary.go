package report

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"RegimeLab/internal/domain/models"
	domsvc "RegimeLab/internal/domain/service"
	"RegimeLab/pkg/util"

	"github.com/shopspring/decimal"
)

// Undefined is printed for metrics that have no value, such as the Sharpe
// ratio of a constant series.
const Undefined = "n/a"

// TextWriter renders a Report as the plain-text results file.
type TextWriter struct{}

func NewTextWriter() *TextWriter { return &TextWriter{} }

// WriteSummary writes the report to path, creating parent directories.
func (w *TextWriter) WriteSummary(r *models.Report, path string) error {
	var buf bytes.Buffer
	if err := Render(&buf, r); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// Render writes the headline lines first, then the run details.
func Render(w io.Writer, r *models.Report) error {
	lines := []string{
		"Strategy Total Return: " + Percent(r.Strategy.TotalReturn),
		"Benchmark Total Return: " + Percent(r.Benchmark.TotalReturn),
		"Strategy Sharpe Ratio: " + Fixed(r.Strategy.Sharpe),
		"Benchmark Sharpe Ratio: " + Fixed(r.Benchmark.Sharpe),
		"Strategy Max Drawdown: " + Percent(r.Strategy.MaxDrawdown),
		"Benchmark Max Drawdown: " + Percent(r.Benchmark.MaxDrawdown),
		"",
		"Backtest Path: " + string(r.Path),
	}
	if r.FallbackReason != "" {
		lines = append(lines, "Fallback Reason: "+r.FallbackReason)
	}
	lines = append(lines,
		fmt.Sprintf("Period: %s to %s (%d days)", util.FormatDate(r.From), util.FormatDate(r.To), r.Strategy.Days),
		fmt.Sprintf("Basket Parse Failures: %d", r.ParseFailures),
		"Run ID: "+r.RunID,
	)
	for _, s := range r.Regimes {
		lines = append(lines, fmt.Sprintf("Regime %d %s: %d days, mean Log_VIX %s", s.ID, s.Label, s.Count, Fixed(models.Metric(s.MeanLogVIX))))
	}

	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return fmt.Errorf("render report: %w", err)
		}
	}
	return nil
}

// Percent formats a fraction as a percentage with two decimals.
func Percent(m models.Metric) string {
	if !m.Defined() {
		return Undefined
	}
	return decimal.NewFromFloat(float64(m)).Shift(2).StringFixed(2) + "%"
}

// Fixed formats a value with two decimals.
func Fixed(m models.Metric) string {
	if !m.Defined() {
		return Undefined
	}
	return decimal.NewFromFloat(float64(m)).StringFixed(2)
}

var _ domsvc.SummaryWriter = (*TextWriter)(nil)
