package main

import (
	"fmt"
	"os"

	"RegimeLab/internal/di"
	"RegimeLab/pkg/config"
	"RegimeLab/pkg/server"

	"github.com/spf13/cobra"
)

// Global flags
var (
	configPath string
	mode       string
	outputDir  string
	components int
	seed       int64
	refit      bool
)

// rootCmd is the base command for the RegimeLab CLI
var rootCmd = &cobra.Command{
	Use:   "regimelab",
	Short: "Market regime classification and regime-gated backtesting",
	Long: `RegimeLab fits a Gaussian mixture over daily volatility features, labels
each trading day Bull/Calm, Transition or Crisis/Crash, and backtests a
strategy that steps out of the market on Crisis/Crash days.

Examples:
  regimelab report
  regimelab report --mode basket --output out/
  regimelab classify --components 4 --seed 7
  regimelab serve --config config/config.yaml`,
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "config/config.yaml", "Path to configuration file")
	pf.StringVar(&mode, "mode", "", "Backtest mode: auto, regime or basket")
	pf.StringVar(&outputDir, "output", "", "Directory for charts and results.txt")
	pf.IntVar(&components, "components", 0, "Number of mixture components")
	pf.Int64Var(&seed, "seed", 0, "Random seed for the mixture fit")
	pf.BoolVar(&refit, "refit", false, "Refit regimes even when the input is labeled")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies the flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("mode") {
		cfg.Backtest.Mode = mode
	}
	if flags.Changed("output") {
		cfg.Report.OutputDir = outputDir
	}
	if flags.Changed("components") {
		cfg.Regime.Components = components
	}
	if flags.Changed("seed") {
		cfg.Regime.Seed = seed
	}
	if flags.Changed("refit") {
		cfg.Regime.Refit = refit
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

// buildApp wires the application from cfg.
func buildApp(cfg *config.Config) (*server.App, func(), error) {
	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("app initialization failed: %w", err)
	}
	return app, cleanup, nil
}
