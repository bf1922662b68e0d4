package portfolio

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/quantfold/backsim/market"
	"github.com/quantfold/backsim/pkg/id"
)

// Rejection reasons for open attempts. These are strategy-filter outcomes,
// not faults: callers treat them as "no trade".
var (
	ErrSymbolHeld       = errors.New("portfolio: symbol already held")
	ErrMaxPositions     = errors.New("portfolio: max concurrent positions reached")
	ErrInsufficientCash = errors.New("portfolio: insufficient cash")
	ErrTradeTooSmall    = errors.New("portfolio: trade below minimum size")
	ErrNoPosition       = errors.New("portfolio: no open position for symbol")
)

// Config holds the sizing and cost parameters the ledger enforces on
// every open.
type Config struct {
	InitialCapital float64
	// PositionFraction is the fraction of cash committed per
	// fixed-fraction or proxy trade.
	PositionFraction float64
	MaxPositions     int
	// MinTradeValue rejects opens whose committed value falls below
	// this floor. Ignored when PositionFraction is zero (risk-sized
	// instruments size from risk, not cash fraction).
	MinTradeValue      float64
	TransactionCostPct float64
}

// Ledger owns cash, the open-position set, the closed-trade history and
// the valuation history for exactly one run. It is not safe for concurrent
// use; each run owns its own instance.
type Ledger struct {
	cfg  Config
	cash float64

	positions map[string]*Position
	trades    []ClosedTrade
	vals      []Valuation

	// lastPrice carries the most recent underlying seen per held symbol
	// so a day with a missing price marks at the prior value instead of
	// dropping the position from the total.
	lastPrice map[string]float64
}

func NewLedger(cfg Config) *Ledger {
	return &Ledger{
		cfg:       cfg,
		cash:      cfg.InitialCapital,
		positions: make(map[string]*Position),
		lastPrice: make(map[string]float64),
	}
}

func (l *Ledger) Cash() float64           { return l.cash }
func (l *Ledger) InitialCapital() float64 { return l.cfg.InitialCapital }
func (l *Ledger) OpenCount() int          { return len(l.positions) }
func (l *Ledger) Trades() []ClosedTrade   { return l.trades }
func (l *Ledger) Valuations() []Valuation { return l.vals }

// Position returns the open position for symbol, if any.
func (l *Ledger) Position(symbol string) (*Position, bool) {
	p, ok := l.positions[symbol]
	return p, ok
}

// Symbols returns the held symbols in deterministic order.
func (l *Ledger) Symbols() []string {
	out := make([]string, 0, len(l.positions))
	for s := range l.positions {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// CanOpen reports whether a new position for symbol would be admitted:
// the symbol must not be held, the position count must be below the
// ceiling, and the committed value must clear the minimum trade floor.
func (l *Ledger) CanOpen(symbol string) bool {
	if _, held := l.positions[symbol]; held {
		return false
	}
	if len(l.positions) >= l.cfg.MaxPositions {
		return false
	}
	if l.cfg.PositionFraction > 0 && l.cash*l.cfg.PositionFraction < l.cfg.MinTradeValue {
		return false
	}
	return true
}

func (l *Ledger) admit(symbol string) error {
	if _, held := l.positions[symbol]; held {
		return ErrSymbolHeld
	}
	if len(l.positions) >= l.cfg.MaxPositions {
		return ErrMaxPositions
	}
	return nil
}

// OpenFixedFraction opens a cash-funded position sized as a fixed fraction
// of current cash: quantity = floor(cash*fraction / (price*(1+cost))).
// Stop and target are fixed at entry from the given percentages (zero
// disables a level). Rejects rather than letting cash go negative.
func (l *Ledger) OpenFixedFraction(symbol string, ts time.Time, price float64, dir market.Direction, stopPct, takePct float64) (*Position, error) {
	if err := l.admit(symbol); err != nil {
		return nil, err
	}

	value := l.cash * l.cfg.PositionFraction
	if value < l.cfg.MinTradeValue {
		return nil, ErrTradeTooSmall
	}

	effective := price * (1 + l.cfg.TransactionCostPct)
	qty := math.Floor(value / effective)
	if qty < 1 {
		return nil, ErrTradeTooSmall
	}

	totalCost := qty * effective
	if totalCost > l.cash {
		return nil, ErrInsufficientCash
	}

	var stop, target float64
	if dir == market.Long {
		if stopPct > 0 {
			stop = price * (1 - stopPct)
		}
		if takePct > 0 {
			target = price * (1 + takePct)
		}
	} else {
		if stopPct > 0 {
			stop = price * (1 + stopPct)
		}
		if takePct > 0 {
			target = price * (1 - takePct)
		}
	}

	p := &Position{
		ID:          id.New(),
		Symbol:      symbol,
		Direction:   dir,
		EntryTime:   ts,
		EntryPrice:  price,
		Quantity:    qty,
		StopPrice:   stop,
		TargetPrice: target,
		CostBasis:   totalCost,
		Payoff:      Linear,
	}

	l.cash -= totalCost
	l.positions[symbol] = p
	l.lastPrice[symbol] = price
	return p, nil
}

// ProxyTerms parameterizes a leveraged-proxy (options stand-in) open.
type ProxyTerms struct {
	// PremiumPct prices the entry premium as a fraction of the underlying.
	PremiumPct   float64
	Leverage     float64
	PremiumFloor float64
	Expiry       time.Time
}

// OpenProxy opens a proxy-derivative position: a long premium bet whose
// direction mirrors the signal (CALL-like for long, PUT-like for short).
// Contracts = floor(cash*fraction / (premium*(1+cost))); a sizing that
// rounds to zero contracts is a rejection, never a forced single contract.
func (l *Ledger) OpenProxy(symbol string, ts time.Time, underlying float64, dir market.Direction, t ProxyTerms) (*Position, error) {
	if err := l.admit(symbol); err != nil {
		return nil, err
	}

	premium := underlying * t.PremiumPct
	if premium <= 0 {
		return nil, ErrTradeTooSmall
	}

	value := l.cash * l.cfg.PositionFraction
	effective := premium * (1 + l.cfg.TransactionCostPct)
	contracts := math.Floor(value / effective)
	if contracts < 1 {
		return nil, ErrTradeTooSmall
	}

	totalCost := contracts * effective
	if totalCost > l.cash {
		return nil, ErrInsufficientCash
	}

	p := &Position{
		ID:           id.New(),
		Symbol:       symbol,
		Direction:    dir,
		EntryTime:    ts,
		EntryPrice:   underlying,
		Quantity:     contracts,
		CostBasis:    totalCost,
		Payoff:       LeveragedProxy,
		EntryPremium: premium,
		Leverage:     t.Leverage,
		PremiumFloor: t.PremiumFloor,
		Expiry:       t.Expiry,
	}

	l.cash -= totalCost
	l.positions[symbol] = p
	l.lastPrice[symbol] = underlying
	return p, nil
}

// FuturesTerms parameterizes a risk-sized directional open.
type FuturesTerms struct {
	Stop   float64
	Target float64
	// RiskPct of current equity put at risk if the stop is hit.
	RiskPct  float64
	MaxUnits float64 // 0 = uncapped

	RiskReward float64
	Bias       string
}

// OpenRiskSized opens a margin-free directional exposure sized so the
// stop, if hit, loses RiskPct of equity: quantity = risk / |entry-stop|.
// Quantity may be fractional. Cash moves only by realized P&L at close.
func (l *Ledger) OpenRiskSized(symbol string, ts time.Time, entry float64, dir market.Direction, t FuturesTerms) (*Position, error) {
	if err := l.admit(symbol); err != nil {
		return nil, err
	}

	stopDistance := math.Abs(entry - t.Stop)
	if stopDistance == 0 {
		return nil, ErrTradeTooSmall
	}

	qty := l.cash * t.RiskPct / stopDistance
	if t.MaxUnits > 0 && qty > t.MaxUnits {
		qty = t.MaxUnits
	}
	if qty <= 0 {
		return nil, ErrTradeTooSmall
	}

	p := &Position{
		ID:          id.New(),
		Symbol:      symbol,
		Direction:   dir,
		EntryTime:   ts,
		EntryPrice:  entry,
		Quantity:    qty,
		StopPrice:   t.Stop,
		TargetPrice: t.Target,
		Payoff:      Linear,
		RiskReward:  t.RiskReward,
		Bias:        t.Bias,
	}

	l.positions[symbol] = p
	l.lastPrice[symbol] = entry
	return p, nil
}

// Close closes the open position for symbol at the given underlying price
// and appends the immutable trade record. For proxies the recorded exit
// price is the exit premium. Transaction cost is charged on exit notional
// (and on both notionals for risk-sized exposure, which paid nothing at
// entry).
func (l *Ledger) Close(symbol string, ts time.Time, price float64, reason string) (ClosedTrade, error) {
	p, ok := l.positions[symbol]
	if !ok {
		return ClosedTrade{}, fmt.Errorf("%w: %s", ErrNoPosition, symbol)
	}

	t := ClosedTrade{
		ID:           p.ID,
		Symbol:       p.Symbol,
		Direction:    p.Direction,
		Payoff:       p.Payoff,
		EntryTime:    p.EntryTime,
		ExitTime:     ts,
		EntryPrice:   p.EntryPrice,
		Quantity:     p.Quantity,
		EntryPremium: p.EntryPremium,
		CostBasis:    p.CostBasis,
		ExitReason:   reason,
		RiskReward:   p.RiskReward,
		Bias:         p.Bias,
	}

	cost := l.cfg.TransactionCostPct
	switch {
	case p.Payoff == LeveragedProxy:
		exitPremium := p.CurrentPremium(price)
		gross := p.Quantity * exitPremium
		net := gross * (1 - cost)
		t.ExitPrice = exitPremium
		t.NetProceeds = net
		t.GrossPnL = net - p.CostBasis
		t.PnLPct = t.GrossPnL / p.CostBasis
		l.cash += net

	case p.CostBasis > 0:
		gross := p.Quantity * price
		net := gross * (1 - cost)
		t.ExitPrice = price
		t.NetProceeds = net
		t.GrossPnL = net - p.CostBasis
		t.PnLPct = t.GrossPnL / p.CostBasis
		l.cash += net

	default:
		// Risk-sized exposure: realize signed point move, charging the
		// round-trip cost on entry and exit notional here.
		pnl := float64(p.Direction) * p.Quantity * (price - p.EntryPrice)
		pnl -= cost * p.Quantity * (p.EntryPrice + price)
		t.ExitPrice = price
		t.NetProceeds = pnl
		t.GrossPnL = pnl
		t.PnLPct = pnl / (p.Quantity * p.EntryPrice)
		l.cash += pnl
	}

	l.trades = append(l.trades, t)
	delete(l.positions, symbol)
	delete(l.lastPrice, symbol)
	return t, nil
}

// markContribution values one open position for the total: liquidation
// value for cash-funded positions, unrealized P&L for risk-sized exposure.
func markContribution(p *Position, price float64) float64 {
	if p.CostBasis > 0 || p.Payoff == LeveragedProxy {
		return p.MarkValue(price)
	}
	return p.PnL(price)
}

// MarkAndRecord values every open position at the snapshot prices and
// appends a valuation record. A held symbol missing from the snapshot is
// marked at its last known price and reported in the second return value;
// it is never dropped from the total.
func (l *Ledger) MarkAndRecord(ts time.Time, prices map[string]float64) (Valuation, []string) {
	var positionsValue float64
	var missing []string

	for _, symbol := range l.Symbols() {
		p := l.positions[symbol]
		price, ok := prices[symbol]
		if !ok {
			missing = append(missing, symbol)
			price = l.lastPrice[symbol]
		} else {
			l.lastPrice[symbol] = price
		}
		positionsValue += markContribution(p, price)
	}

	v := Valuation{
		Time:           ts,
		Cash:           l.cash,
		PositionsValue: positionsValue,
		TotalValue:     l.cash + positionsValue,
		OpenPositions:  len(l.positions),
	}
	l.vals = append(l.vals, v)
	return v, missing
}

// ForceCloseAll closes every remaining open position at the snapshot
// prices. Symbols with no price in the snapshot remain open and are
// returned so the caller can report the anomaly. Calling with no open
// positions is a no-op.
func (l *Ledger) ForceCloseAll(ts time.Time, prices map[string]float64, reason string) ([]ClosedTrade, []string) {
	var closed []ClosedTrade
	var leftOpen []string

	for _, symbol := range l.Symbols() {
		price, ok := prices[symbol]
		if !ok {
			leftOpen = append(leftOpen, symbol)
			continue
		}
		t, err := l.Close(symbol, ts, price, reason)
		if err != nil {
			// Close of a symbol just listed as held cannot fail unless
			// the ledger is corrupt.
			panic(err)
		}
		closed = append(closed, t)
	}
	return closed, leftOpen
}
