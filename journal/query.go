package journal

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/quantfold/backsim/portfolio"
)

const tradeColumns = `trade_id, symbol, direction, payoff, entry_time, exit_time,
	entry_price, exit_price, quantity, entry_premium, cost_basis, net_proceeds,
	gross_pnl, pnl_pct, exit_reason, risk_reward, bias`

func scanTrade(row interface{ Scan(...any) error }) (portfolio.ClosedTrade, error) {
	var t portfolio.ClosedTrade
	err := row.Scan(
		&t.ID,
		&t.Symbol,
		&t.Direction,
		&t.Payoff,
		&t.EntryTime,
		&t.ExitTime,
		&t.EntryPrice,
		&t.ExitPrice,
		&t.Quantity,
		&t.EntryPremium,
		&t.CostBasis,
		&t.NetProceeds,
		&t.GrossPnL,
		&t.PnLPct,
		&t.ExitReason,
		&t.RiskReward,
		&t.Bias,
	)
	return t, err
}

// GetTrade returns a single trade record by ID.
func (j *SQLite) GetTrade(tradeID string) (portfolio.ClosedTrade, error) {
	row := j.db.QueryRow(`
		SELECT `+tradeColumns+`
		FROM trades
		WHERE trade_id = ?`, tradeID)

	t, err := scanTrade(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return portfolio.ClosedTrade{}, fmt.Errorf("trade %q not found", tradeID)
		}
		return portfolio.ClosedTrade{}, err
	}
	return t, nil
}

// ListTradesClosedBetween returns trades whose exit_time is within [start, end).
func (j *SQLite) ListTradesClosedBetween(start, end time.Time) ([]portfolio.ClosedTrade, error) {
	rows, err := j.db.Query(`
		SELECT `+tradeColumns+`
		FROM trades
		WHERE exit_time >= ? AND exit_time < ?
		ORDER BY exit_time ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []portfolio.ClosedTrade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListValuationsBetween returns valuation records within [start, end).
func (j *SQLite) ListValuationsBetween(start, end time.Time) ([]portfolio.Valuation, error) {
	rows, err := j.db.Query(`
		SELECT time, cash, positions_value, total_value, open_positions
		FROM valuations
		WHERE time >= ? AND time < ?
		ORDER BY time ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []portfolio.Valuation
	for rows.Next() {
		var v portfolio.Valuation
		if err := rows.Scan(&v.Time, &v.Cash, &v.PositionsValue, &v.TotalValue, &v.OpenPositions); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
