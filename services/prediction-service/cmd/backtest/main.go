package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	fixturePath     string
	calibrationPath string
	workers         int
	timeout         time.Duration
	logLevel        string
)

var rootCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Walk-forward backtests for the pick engine",
	Long: `Runs candidate model configurations over historical games, either from the
prediction service database or from a JSON fixture loaded into an in-memory store.

Examples:
  backtest run --config candidates/ncaab-spread.json
  backtest run --config candidates/ncaab-spread.json --save-model ncaab-spread-v3
  backtest sweep --candidates candidates/ncaab.json --fixture testdata/ncaab-2021-2024.json
  backtest sweep --candidates candidates/ncaab.json --calibrate-tiers --out config/calibration.yaml`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&fixturePath, "fixture", "", "JSON file of games and snapshots; the database is used when empty")
	rootCmd.PersistentFlags().StringVar(&calibrationPath, "calibration", "", "Calibration file (defaults to CALIBRATION_FILE)")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "Parallel candidates (defaults to BACKTEST_WORKERS)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Minute, "Abort the run after this long")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
