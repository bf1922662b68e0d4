package portfolio

import (
	"time"

	"github.com/quantfold/backsim/market"
)

// ClosedTrade is the immutable ledger entry appended when a position is
// closed. Never mutated after creation.
type ClosedTrade struct {
	ID        string
	Symbol    string
	Direction market.Direction
	Payoff    Payoff

	EntryTime  time.Time
	ExitTime   time.Time
	EntryPrice float64 // underlying at entry (premium for proxies is EntryPremium)
	ExitPrice  float64 // fill price: level, close, or exit premium for proxies
	Quantity   float64

	EntryPremium float64 // proxy only

	CostBasis    float64
	NetProceeds  float64
	GrossPnL     float64
	PnLPct       float64
	ExitReason   string

	// Futures annotations carried from entry.
	RiskReward float64
	Bias       string
}

// Duration of the trade from entry to exit.
func (t ClosedTrade) Duration() time.Duration {
	return t.ExitTime.Sub(t.EntryTime)
}

// Win reports whether the trade realized a profit.
func (t ClosedTrade) Win() bool {
	return t.GrossPnL > 0
}

// Valuation records the portfolio state at one simulated time-step.
// Appended-only; TotalValue == Cash + PositionsValue by construction.
type Valuation struct {
	Time           time.Time
	Cash           float64
	PositionsValue float64
	TotalValue     float64
	OpenPositions  int
}
