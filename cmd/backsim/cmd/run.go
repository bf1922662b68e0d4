package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/quantfold/backsim/backtest"
	"github.com/quantfold/backsim/config"
	"github.com/quantfold/backsim/feed"
	"github.com/quantfold/backsim/journal"
	"github.com/quantfold/backsim/metrics"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a backtest from a config file and a bars CSV",
	Long: `Run a backtest using settings from a configuration file against a CSV
bar series (time,symbol,open,high,low,close,volume,signal).

Example:
  backsim run --config examples/configs/equity.yaml --bars data/nifty50_daily.csv`,
	RunE: runRun,
}

var (
	runConfigPath string
	runBarsPath   string
	runVerbose    bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "", "path to config file (YAML or JSON) (required)")
	runCmd.Flags().StringVarP(&runBarsPath, "bars", "b", "", "path to bars CSV (required)")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "log skipped entries and data anomalies")
	runCmd.MarkFlagRequired("config")
	runCmd.MarkFlagRequired("bars")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(runConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	bars, err := feed.LoadBars(runBarsPath)
	if err != nil {
		return fmt.Errorf("load bars: %w", err)
	}

	ec, err := cfg.EngineConfig()
	if err != nil {
		return fmt.Errorf("engine config: %w", err)
	}

	level := slog.LevelWarn
	if runVerbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	engine, err := backtest.New(ec, logger)
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	j, err := openJournal(cfg.Journal)
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	defer j.Close()

	runner := &backtest.Runner{Engine: engine, Journal: j}
	res, err := runner.Run(context.Background(), bars)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	fmt.Printf("Backtest: %s, %d bars, %s to %s\n\n",
		cfg.Strategy.Variant, len(bars),
		res.Start.Format("2006-01-02"), res.End.Format("2006-01-02"))

	report := metrics.Compute(res.Trades, res.Valuations, res.InitialCapital, res.FinalCapital)
	if err := metrics.WriteReport(os.Stdout, report); err != nil {
		return err
	}

	switch cfg.Journal.Type {
	case "csv":
		fmt.Printf("\nResults saved to:\n  - %s\n  - %s\n", cfg.Journal.TradesFile, cfg.Journal.ValuationsFile)
	case "sqlite":
		fmt.Printf("\nResults saved to: %s\n", cfg.Journal.DBPath)
	}
	return nil
}

func openJournal(jc config.JournalConfig) (journal.Journal, error) {
	switch jc.Type {
	case "csv":
		return journal.NewCSV(jc.TradesFile, jc.ValuationsFile)
	case "sqlite":
		return journal.NewSQLite(jc.DBPath)
	default:
		return journal.Nop{}, nil
	}
}
