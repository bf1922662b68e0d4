package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "backsim",
	Short: "A signal-driven trading strategy backtester",
	Long: `Backsim replays historical bar data annotated with entry/exit signals
through a deterministic simulation engine.

It provides tools for:
  - Backtesting equity, options-proxy and intraday futures strategies
  - Journaling trades and equity curves to SQLite or CSV
  - Summary performance metrics (returns, drawdown, Sharpe, profit factor)
  - Config-file driven runs with per-variant defaults`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
