package backtest

import (
	"time"

	"github.com/quantfold/backsim/portfolio"
)

// Result is everything a completed run produced: the closed-trade list,
// the per-timestamp valuation series and the final cash balance.
type Result struct {
	Variant Variant

	Start time.Time
	End   time.Time

	InitialCapital float64
	FinalCapital   float64

	Trades     []portfolio.ClosedTrade
	Valuations []portfolio.Valuation

	// LeftOpen lists symbols the end-of-run force-close could not fill
	// because no price was ever observed for them.
	LeftOpen []string
}
