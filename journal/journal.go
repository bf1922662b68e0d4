package journal

import (
	"github.com/quantfold/backsim/portfolio"
)

// Journal persists what a run produced: closed trades and the valuation
// series. Backends are append-style; records are never updated.
type Journal interface {
	RecordTrade(portfolio.ClosedTrade) error
	RecordValuation(portfolio.Valuation) error
	Close() error
}

// Nop discards everything. Useful when a run only needs the in-memory
// result.
type Nop struct{}

func (Nop) RecordTrade(portfolio.ClosedTrade) error   { return nil }
func (Nop) RecordValuation(portfolio.Valuation) error { return nil }
func (Nop) Close() error                              { return nil }
