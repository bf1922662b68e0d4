package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"

	"github.com/quantfold/backsim/portfolio"
)

type CSV struct {
	trades *csv.Writer
	vals   *csv.Writer
	tf, vf *os.File
}

func NewCSV(tradesPath, valuationsPath string) (*CSV, error) {
	tf, err := os.Create(tradesPath)
	if err != nil {
		return nil, err
	}
	vf, err := os.Create(valuationsPath)
	if err != nil {
		tf.Close()
		return nil, err
	}

	tw := csv.NewWriter(tf)
	vw := csv.NewWriter(vf)

	if err := tw.Write([]string{
		"trade_id", "symbol", "direction", "payoff", "entry_time", "exit_time",
		"entry_price", "exit_price", "quantity", "entry_premium", "cost_basis",
		"net_proceeds", "gross_pnl", "pnl_pct", "exit_reason", "risk_reward", "bias",
	}); err != nil {
		return nil, err
	}
	if err := vw.Write([]string{
		"time", "cash", "positions_value", "total_value", "open_positions",
	}); err != nil {
		return nil, err
	}

	tw.Flush()
	if err := tw.Error(); err != nil {
		return nil, err
	}
	vw.Flush()
	if err := vw.Error(); err != nil {
		return nil, err
	}

	return &CSV{tw, vw, tf, vf}, nil
}

func (j *CSV) RecordTrade(t portfolio.ClosedTrade) error {
	err := j.trades.Write([]string{
		t.ID,
		t.Symbol,
		t.Direction.String(),
		strconv.Itoa(int(t.Payoff)),
		t.EntryTime.Format(time.RFC3339),
		t.ExitTime.Format(time.RFC3339),
		f(t.EntryPrice),
		f(t.ExitPrice),
		f(t.Quantity),
		f(t.EntryPremium),
		f(t.CostBasis),
		f(t.NetProceeds),
		f(t.GrossPnL),
		f(t.PnLPct),
		t.ExitReason,
		f(t.RiskReward),
		t.Bias,
	})
	if err != nil {
		return err
	}

	j.trades.Flush()
	return j.trades.Error()
}

func (j *CSV) RecordValuation(v portfolio.Valuation) error {
	err := j.vals.Write([]string{
		v.Time.Format(time.RFC3339),
		f(v.Cash),
		f(v.PositionsValue),
		f(v.TotalValue),
		strconv.Itoa(v.OpenPositions),
	})
	if err != nil {
		return err
	}

	j.vals.Flush()
	return j.vals.Error()
}

func (j *CSV) Close() error {
	j.trades.Flush()
	if err := j.trades.Error(); err != nil {
		return err
	}
	j.vals.Flush()
	if err := j.vals.Error(); err != nil {
		return err
	}

	if err := j.tf.Close(); err != nil {
		return err
	}
	if err := j.vf.Close(); err != nil {
		return err
	}
	return nil
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
