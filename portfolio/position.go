package portfolio

import (
	"time"

	"github.com/quantfold/backsim/market"
)

// Payoff selects how a position's value responds to the underlying price.
type Payoff int8

const (
	// Linear positions (equity lots, futures) gain or lose one quantity
	// unit per point of underlying movement.
	Linear Payoff = iota
	// LeveragedProxy positions stand in for options: the mark is a
	// premium driven by a leverage multiple of the underlying's
	// percentage move, floored so it can never go non-physical.
	LeveragedProxy
)

// Exit reasons recorded on closed trades.
const (
	ReasonStopLoss       = "Stop Loss"
	ReasonTakeProfit     = "Take Profit"
	ReasonSellSignal     = "Sell Signal"
	ReasonOppositeSignal = "Opposite Signal"
	ReasonTimeExit       = "Time Exit"
	ReasonNearExpiry     = "Near Expiry"
	ReasonProfitTarget   = "Profit Target"
	ReasonBacktestEnd    = "Backtest End"
)

// Position is one open trade. Positions are created only by the Ledger's
// open operations and removed only when a close succeeds. Stop and target
// are fixed at entry and never mutated.
type Position struct {
	ID        string
	Symbol    string
	Direction market.Direction
	EntryTime time.Time

	// EntryPrice is always the underlying price at entry, for proxy
	// positions included.
	EntryPrice float64
	Quantity   float64

	// StopPrice/TargetPrice are underlying levels; zero means no level.
	// Proxy positions carry no levels, only percentage thresholds.
	StopPrice   float64
	TargetPrice float64

	// CostBasis is the cash debited at open (entry cost included).
	// Zero for risk-sized futures exposure, which moves cash only by
	// realized P&L.
	CostBasis float64

	Payoff       Payoff
	EntryPremium float64   // proxy: premium paid per contract
	Leverage     float64   // proxy: premium sensitivity multiplier
	PremiumFloor float64   // proxy: minimum physical premium
	Expiry       time.Time // proxy: fixed holding horizon

	// Futures entry annotations, carried onto the closed trade.
	RiskReward float64
	Bias       string
}

// CurrentPremium estimates the proxy premium at the given underlying
// price: entry premium scaled by leverage times the signed percentage
// move, floored at PremiumFloor.
func (p *Position) CurrentPremium(underlying float64) float64 {
	move := (underlying - p.EntryPrice) / p.EntryPrice
	if p.Direction == market.Short {
		move = -move
	}
	prem := p.EntryPremium * (1 + p.Leverage*move)
	if prem < p.PremiumFloor {
		return p.PremiumFloor
	}
	return prem
}

// MarkValue is the liquidation value of the position at the given
// underlying price, before transaction costs.
func (p *Position) MarkValue(underlying float64) float64 {
	if p.Payoff == LeveragedProxy {
		return p.Quantity * p.CurrentPremium(underlying)
	}
	return p.Quantity * underlying
}

// PnL is the gross profit or loss if closed at the given underlying price.
func (p *Position) PnL(underlying float64) float64 {
	if p.Payoff == LeveragedProxy {
		return p.Quantity * (p.CurrentPremium(underlying) - p.EntryPremium)
	}
	return float64(p.Direction) * p.Quantity * (underlying - p.EntryPrice)
}

// PnLPct is the fractional return if closed at the given underlying price:
// relative to the premium paid for proxies, relative to entry otherwise.
func (p *Position) PnLPct(underlying float64) float64 {
	if p.Payoff == LeveragedProxy {
		return (p.CurrentPremium(underlying) - p.EntryPremium) / p.EntryPremium
	}
	return float64(p.Direction) * (underlying - p.EntryPrice) / p.EntryPrice
}

// CheckLevels tests the bar's intrabar extremes against the fixed stop and
// target. The fill is the level itself, however far beyond it the bar went.
// When one bar touches both levels the stop wins: we assume the worse fill
// rather than the optimistic one.
func (p *Position) CheckLevels(high, low float64) (price float64, reason string, hit bool) {
	if p.Payoff == LeveragedProxy {
		return 0, "", false
	}

	var stopHit, takeHit bool
	if p.Direction == market.Long {
		stopHit = p.StopPrice > 0 && low <= p.StopPrice
		takeHit = p.TargetPrice > 0 && high >= p.TargetPrice
	} else {
		stopHit = p.StopPrice > 0 && high >= p.StopPrice
		takeHit = p.TargetPrice > 0 && low <= p.TargetPrice
	}

	if stopHit {
		return p.StopPrice, ReasonStopLoss, true
	}
	if takeHit {
		return p.TargetPrice, ReasonTakeProfit, true
	}
	return 0, "", false
}
