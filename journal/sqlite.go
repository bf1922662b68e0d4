package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"

	"github.com/quantfold/backsim/portfolio"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTrade(t portfolio.ClosedTrade) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, symbol, direction, payoff, entry_time, exit_time, entry_price, exit_price,
		 quantity, entry_premium, cost_basis, net_proceeds, gross_pnl, pnl_pct, exit_reason,
		 risk_reward, bias)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Symbol, t.Direction, t.Payoff, t.EntryTime, t.ExitTime, t.EntryPrice,
		t.ExitPrice, t.Quantity, t.EntryPremium, t.CostBasis, t.NetProceeds, t.GrossPnL,
		t.PnLPct, t.ExitReason, t.RiskReward, t.Bias,
	)
	return err
}

func (j *SQLite) RecordValuation(v portfolio.Valuation) error {
	_, err := j.db.Exec(`
		INSERT INTO valuations
		(time, cash, positions_value, total_value, open_positions)
		VALUES (?, ?, ?, ?, ?)`,
		v.Time, v.Cash, v.PositionsValue, v.TotalValue, v.OpenPositions,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
