package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantfold/backsim/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query journaled backtest results",
	Long: `Query and display trade records from a SQLite journal database.

Subcommands:
  trade  - Get details of a specific trade by ID
  day    - List trades closed on a specific day

Examples:
  backsim journal trade <trade-id>
  backsim journal day 2024-01-15`,
}

var journalTradeCmd = &cobra.Command{
	Use:   "trade <trade-id>",
	Short: "Get details of a specific trade",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrade,
}

var journalDayCmd = &cobra.Command{
	Use:   "day <YYYY-MM-DD>",
	Short: "List trades closed on a specific day",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalDay,
}

var journalDBPath string

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalTradeCmd)
	journalCmd.AddCommand(journalDayCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "./backsim.sqlite", "path to SQLite journal DB")
}

func runJournalTrade(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	t, err := j.GetTrade(args[0])
	if err != nil {
		return fmt.Errorf("get trade: %w", err)
	}

	fmt.Printf("%s %s %s x %.4f\n", t.ID, t.Symbol, t.Direction, t.Quantity)
	fmt.Printf("  entry:  %.4f @ %s\n", t.EntryPrice, t.EntryTime.Format(time.RFC3339))
	fmt.Printf("  exit:   %.4f @ %s (%s)\n", t.ExitPrice, t.ExitTime.Format(time.RFC3339), t.ExitReason)
	fmt.Printf("  pnl:    %.2f (%.2f%%)\n", t.GrossPnL, t.PnLPct*100)
	return nil
}

func runJournalDay(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	start, end, err := dayBounds(time.Local, args[0])
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}

	trades, err := j.ListTradesClosedBetween(start, end)
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}

	for _, t := range trades {
		fmt.Printf("%s  %-10s %-5s %10.4f -> %10.4f  %10.2f  %s\n",
			t.ExitTime.Format("15:04:05"), t.Symbol, t.Direction,
			t.EntryPrice, t.ExitPrice, t.GrossPnL, t.ExitReason)
	}
	fmt.Printf("%d trades\n", len(trades))
	return nil
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	end := start.Add(24 * time.Hour)
	return start, end, nil
}
