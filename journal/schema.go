package journal

const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	trade_id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	direction INTEGER NOT NULL,
	payoff INTEGER NOT NULL,
	entry_time DATETIME NOT NULL,
	exit_time DATETIME NOT NULL,
	entry_price REAL NOT NULL,
	exit_price REAL NOT NULL,
	quantity REAL NOT NULL,
	entry_premium REAL NOT NULL,
	cost_basis REAL NOT NULL,
	net_proceeds REAL NOT NULL,
	gross_pnl REAL NOT NULL,
	pnl_pct REAL NOT NULL,
	exit_reason TEXT NOT NULL,
	risk_reward REAL NOT NULL,
	bias TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS valuations (
	time DATETIME NOT NULL,
	cash REAL NOT NULL,
	positions_value REAL NOT NULL,
	total_value REAL NOT NULL,
	open_positions INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_valuations_time ON valuations(time);
CREATE INDEX IF NOT EXISTS idx_trades_exit_time ON trades(exit_time);
`
