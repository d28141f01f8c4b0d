package main

import (
	"fmt"
	"os"

	"RegimeLab/internal/service/report"

	"github.com/spf13/cobra"
)

// reportCmd runs the full pipeline once
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Classify regimes, run the backtest and write charts and results",
	Long: `Load the feature table and basket signals, label regimes, backtest the
strategy against the benchmark and write market_regimes.png,
performance_comparison.png, drawdown.png and results.txt.`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	app, cleanup, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	r, err := app.Report(cmd.Context())
	if err != nil {
		return err
	}
	if err := report.Render(os.Stdout, r); err != nil {
		return fmt.Errorf("print summary: %w", err)
	}
	return nil
}
