package backtest

import (
	"context"
	"fmt"

	"github.com/quantfold/backsim/journal"
	"github.com/quantfold/backsim/market"
)

// Runner couples an engine with a journal: it replays the series and
// persists everything the run produced.
type Runner struct {
	Engine  *Engine
	Journal journal.Journal
}

// Run executes the simulation and records its trades and valuations. The
// context gates the recording loop so a cancelled run does not keep
// writing; the simulation itself is in-memory and runs to completion.
func (r *Runner) Run(ctx context.Context, bars []market.Bar) (*Result, error) {
	res, err := r.Engine.Run(bars)
	if err != nil {
		return nil, err
	}
	if r.Journal == nil {
		return res, nil
	}

	for _, t := range res.Trades {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := r.Journal.RecordTrade(t); err != nil {
			return res, fmt.Errorf("record trade %s: %w", t.ID, err)
		}
	}
	for _, v := range res.Valuations {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := r.Journal.RecordValuation(v); err != nil {
			return res, fmt.Errorf("record valuation at %s: %w", v.Time, err)
		}
	}
	return res, nil
}
