// Package rules decides whether and why an open position should be
// closed on a given bar. Rules fire in strict priority order: once one
// fires, later rules are never consulted.
package rules

import (
	"time"

	"github.com/quantfold/backsim/market"
	"github.com/quantfold/backsim/portfolio"
)

// Snapshot is the market view the evaluator sees for one position on one
// bar: the bar's extremes and close for the position's symbol, plus the
// signal attached to that bar.
type Snapshot struct {
	Time   time.Time
	High   float64
	Low    float64
	Close  float64
	Signal market.Signal
}

// Decision is the evaluator's verdict. Price is the underlying fill price
// for the close (the ledger converts to a premium for proxies).
type Decision struct {
	Exit   bool
	Price  float64
	Reason string
}

// ExitRules arms the rule set for one strategy variant. Zero values
// disable the corresponding rule; the fixed stop/target levels live on
// the position itself.
type ExitRules struct {
	// OppositeSignal closes a position whose direction the current bar's
	// signal opposes.
	OppositeSignal bool
	// MaxHold closes a position held at least this long.
	MaxHold time.Duration
	// NearExpiry closes a proxy position once the time remaining to its
	// expiry falls to this threshold or below.
	NearExpiry time.Duration
	// ProfitTargetPct / StopLossPct close on the mark-to-market return
	// in percent (e.g. +50 and -30). Proxy variant only.
	ProfitTargetPct float64
	StopLossPct     float64
}

// Evaluator applies one rule set to positions. It is stateless and safe
// to share across runs.
type Evaluator struct {
	rules ExitRules
}

func NewEvaluator(r ExitRules) *Evaluator {
	return &Evaluator{rules: r}
}

// Evaluate runs the priority chain for one position against one bar:
//
//	1. stop-loss level       (intrabar, fill at the level)
//	2. take-profit level     (intrabar, fill at the level)
//	3. opposite signal       (fill at close)
//	4. time-based exit       (max hold or near expiry, fill at close)
//	5. percentage thresholds (proxy mark-to-market, fill at close)
//
// End-of-series force-close is the loop's responsibility, not a rule.
func (ev *Evaluator) Evaluate(p *portfolio.Position, snap Snapshot) Decision {
	if price, reason, hit := p.CheckLevels(snap.High, snap.Low); hit {
		return Decision{Exit: true, Price: price, Reason: reason}
	}

	if ev.rules.OppositeSignal && snap.Signal.Opposes(p.Direction) {
		return Decision{Exit: true, Price: snap.Close, Reason: portfolio.ReasonOppositeSignal}
	}

	if ev.rules.MaxHold > 0 && snap.Time.Sub(p.EntryTime) >= ev.rules.MaxHold {
		return Decision{Exit: true, Price: snap.Close, Reason: portfolio.ReasonTimeExit}
	}
	if ev.rules.NearExpiry > 0 && !p.Expiry.IsZero() && p.Expiry.Sub(snap.Time) <= ev.rules.NearExpiry {
		return Decision{Exit: true, Price: snap.Close, Reason: portfolio.ReasonNearExpiry}
	}

	if ev.rules.ProfitTargetPct != 0 || ev.rules.StopLossPct != 0 {
		pct := p.PnLPct(snap.Close) * 100
		if ev.rules.StopLossPct != 0 && pct <= ev.rules.StopLossPct {
			return Decision{Exit: true, Price: snap.Close, Reason: portfolio.ReasonStopLoss}
		}
		if ev.rules.ProfitTargetPct != 0 && pct >= ev.rules.ProfitTargetPct {
			return Decision{Exit: true, Price: snap.Close, Reason: portfolio.ReasonProfitTarget}
		}
	}

	return Decision{}
}
