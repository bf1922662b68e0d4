package portfolio

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/backsim/market"
)

var t0 = time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)

func newEquityLedger() *Ledger {
	return NewLedger(Config{
		InitialCapital:     1_000_000,
		PositionFraction:   0.20,
		MaxPositions:       3,
		MinTradeValue:      100,
		TransactionCostPct: 0.001,
	})
}

func TestOpenFixedFractionSizing(t *testing.T) {
	t.Parallel()

	l := newEquityLedger()
	p, err := l.OpenFixedFraction("NIFTY", t0, 2500, market.Long, 0.05, 0.10)
	require.NoError(t, err)

	// floor(200000 / (2500 * 1.001)) = 79
	assert.Equal(t, 79.0, p.Quantity)
	assert.Equal(t, 2375.0, p.StopPrice)
	assert.InDelta(t, 2750.0, p.TargetPrice, 1e-9)

	wantCost := 79 * 2500 * 1.001
	assert.InDelta(t, wantCost, p.CostBasis, 1e-6)
	assert.InDelta(t, 1_000_000-wantCost, l.Cash(), 1e-6)
	assert.True(t, l.Cash() >= 0)
}

func TestOpenRejectsDuplicateSymbol(t *testing.T) {
	t.Parallel()

	l := newEquityLedger()
	_, err := l.OpenFixedFraction("NIFTY", t0, 2500, market.Long, 0, 0)
	require.NoError(t, err)

	_, err = l.OpenFixedFraction("NIFTY", t0, 2500, market.Long, 0, 0)
	assert.ErrorIs(t, err, ErrSymbolHeld)
	assert.Equal(t, 1, l.OpenCount())
}

func TestOpenRejectsFourthPosition(t *testing.T) {
	t.Parallel()

	l := newEquityLedger()
	for _, sym := range []string{"A", "B", "C"} {
		_, err := l.OpenFixedFraction(sym, t0, 100, market.Long, 0, 0)
		require.NoError(t, err)
	}
	cashBefore := l.Cash()

	_, err := l.OpenFixedFraction("D", t0, 100, market.Long, 0, 0)
	assert.ErrorIs(t, err, ErrMaxPositions)
	assert.Equal(t, cashBefore, l.Cash())
	assert.Equal(t, 3, l.OpenCount())
	assert.False(t, l.CanOpen("D"))
}

func TestOpenRejectsBelowMinTradeValue(t *testing.T) {
	t.Parallel()

	l := NewLedger(Config{
		InitialCapital:   400,
		PositionFraction: 0.20,
		MaxPositions:     3,
		MinTradeValue:    100,
	})

	_, err := l.OpenFixedFraction("NIFTY", t0, 10, market.Long, 0, 0)
	assert.ErrorIs(t, err, ErrTradeTooSmall)
	assert.False(t, l.CanOpen("NIFTY"))
}

func TestOpenRejectsQuantityZero(t *testing.T) {
	t.Parallel()

	l := newEquityLedger()
	// Price far above the committed value floors quantity to zero.
	_, err := l.OpenFixedFraction("BRK", t0, 300_000, market.Long, 0, 0)
	assert.ErrorIs(t, err, ErrTradeTooSmall)
}

func TestCloseRoundTripConservation(t *testing.T) {
	t.Parallel()

	l := newEquityLedger()
	p, err := l.OpenFixedFraction("NIFTY", t0, 2500, market.Long, 0, 0)
	require.NoError(t, err)

	tr, err := l.Close("NIFTY", t0.Add(24*time.Hour), 2600, ReasonSellSignal)
	require.NoError(t, err)

	// Cash conservation: final cash == initial - cost + proceeds.
	wantNet := p.Quantity * 2600 * (1 - 0.001)
	assert.InDelta(t, wantNet, tr.NetProceeds, 1e-6)
	assert.InDelta(t, 1_000_000-p.CostBasis+wantNet, l.Cash(), 1e-6)
	assert.InDelta(t, wantNet-p.CostBasis, tr.GrossPnL, 1e-6)
	assert.Equal(t, 0, l.OpenCount())
	assert.Len(t, l.Trades(), 1)
}

func TestCloseUnknownSymbol(t *testing.T) {
	t.Parallel()

	l := newEquityLedger()
	_, err := l.Close("NIFTY", t0, 2500, ReasonSellSignal)
	assert.ErrorIs(t, err, ErrNoPosition)
}

func TestOpenProxyContracts(t *testing.T) {
	t.Parallel()

	l := NewLedger(Config{
		InitialCapital:     1_000_000,
		PositionFraction:   0.10,
		MaxPositions:       5,
		TransactionCostPct: 0.001,
	})

	terms := ProxyTerms{PremiumPct: 0.02, Leverage: 3.0, PremiumFloor: 0.01, Expiry: t0.AddDate(0, 0, 30)}
	p, err := l.OpenProxy("NIFTY", t0, 2500, market.Long, terms)
	require.NoError(t, err)

	// premium 50, committed 100000: floor(100000 / 50.05) = 1998
	assert.Equal(t, 1998.0, p.Quantity)
	assert.Equal(t, 50.0, p.EntryPremium)
	assert.Equal(t, 2500.0, p.EntryPrice)
	assert.InDelta(t, 1998*50.05, p.CostBasis, 1e-6)
}

func TestOpenProxyRejectsZeroContracts(t *testing.T) {
	t.Parallel()

	l := NewLedger(Config{
		InitialCapital:   100,
		PositionFraction: 0.10,
		MaxPositions:     5,
	})
	cashBefore := l.Cash()

	terms := ProxyTerms{PremiumPct: 0.02, Leverage: 3.0, PremiumFloor: 0.01}
	_, err := l.OpenProxy("NIFTY", t0, 2500, market.Long, terms)
	assert.ErrorIs(t, err, ErrTradeTooSmall)
	assert.Equal(t, cashBefore, l.Cash())
}

func TestCloseProxyRealizesPremium(t *testing.T) {
	t.Parallel()

	l := NewLedger(Config{
		InitialCapital:   1_000_000,
		PositionFraction: 0.10,
		MaxPositions:     5,
	})
	terms := ProxyTerms{PremiumPct: 0.02, Leverage: 3.0, PremiumFloor: 0.01}
	p, err := l.OpenProxy("NIFTY", t0, 100, market.Long, terms)
	require.NoError(t, err)

	// +10% underlying -> premium 2.0 -> 2.6
	tr, err := l.Close("NIFTY", t0.Add(time.Hour), 110, ReasonProfitTarget)
	require.NoError(t, err)

	assert.InDelta(t, 2.6, tr.ExitPrice, 1e-9)
	assert.InDelta(t, p.Quantity*2.6, tr.NetProceeds, 1e-6)
	assert.InDelta(t, p.Quantity*2.6-p.CostBasis, tr.GrossPnL, 1e-6)
}

func TestOpenRiskSized(t *testing.T) {
	t.Parallel()

	l := NewLedger(Config{
		InitialCapital: 1_000_000,
		MaxPositions:   1,
	})

	p, err := l.OpenRiskSized("NIFTYFUT", t0, 22000, market.Long, FuturesTerms{
		Stop:    21950,
		Target:  22100,
		RiskPct: 0.02,
	})
	require.NoError(t, err)

	// risk 20000 over 50 points = 400 units, fractional sizing allowed
	assert.InDelta(t, 400.0, p.Quantity, 1e-9)
	assert.Equal(t, 0.0, p.CostBasis)
	// No cash moves at open.
	assert.Equal(t, 1_000_000.0, l.Cash())
}

func TestOpenRiskSizedMaxUnitsCap(t *testing.T) {
	t.Parallel()

	l := NewLedger(Config{InitialCapital: 1_000_000, MaxPositions: 1})
	p, err := l.OpenRiskSized("NIFTYFUT", t0, 22000, market.Long, FuturesTerms{
		Stop:     21950,
		RiskPct:  0.02,
		MaxUnits: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, 100.0, p.Quantity)
}

func TestCloseRiskSizedRealizesPnL(t *testing.T) {
	t.Parallel()

	l := NewLedger(Config{
		InitialCapital:     1_000_000,
		MaxPositions:       1,
		TransactionCostPct: 0.0001,
	})
	p, err := l.OpenRiskSized("NIFTYFUT", t0, 22000, market.Short, FuturesTerms{
		Stop:    22050,
		RiskPct: 0.01,
	})
	require.NoError(t, err)

	tr, err := l.Close("NIFTYFUT", t0.Add(time.Hour), 21900, ReasonTakeProfit)
	require.NoError(t, err)

	wantPnL := p.Quantity*100 - 0.0001*p.Quantity*(22000+21900)
	assert.InDelta(t, wantPnL, tr.GrossPnL, 1e-6)
	assert.InDelta(t, 1_000_000+wantPnL, l.Cash(), 1e-6)
}

func TestMarkAndRecordTotalIdentity(t *testing.T) {
	t.Parallel()

	l := newEquityLedger()
	_, err := l.OpenFixedFraction("A", t0, 100, market.Long, 0, 0)
	require.NoError(t, err)
	_, err = l.OpenFixedFraction("B", t0, 200, market.Long, 0, 0)
	require.NoError(t, err)

	v, missing := l.MarkAndRecord(t0, map[string]float64{"A": 110, "B": 190})
	assert.Empty(t, missing)
	assert.InDelta(t, v.Cash+v.PositionsValue, v.TotalValue, 1e-9)
	assert.Equal(t, 2, v.OpenPositions)
	assert.Len(t, l.Valuations(), 1)
}

func TestMarkAndRecordMissingPriceCarriesForward(t *testing.T) {
	t.Parallel()

	l := newEquityLedger()
	p, err := l.OpenFixedFraction("A", t0, 100, market.Long, 0, 0)
	require.NoError(t, err)

	v1, missing := l.MarkAndRecord(t0, map[string]float64{"A": 120})
	assert.Empty(t, missing)

	// No price this step: the position stays in the total at 120.
	v2, missing := l.MarkAndRecord(t0.Add(24*time.Hour), map[string]float64{})
	assert.Equal(t, []string{"A"}, missing)
	assert.InDelta(t, v1.PositionsValue, v2.PositionsValue, 1e-9)
	assert.InDelta(t, p.Quantity*120, v2.PositionsValue, 1e-9)
}

func TestForceCloseAll(t *testing.T) {
	t.Parallel()

	l := newEquityLedger()
	_, err := l.OpenFixedFraction("A", t0, 100, market.Long, 0, 0)
	require.NoError(t, err)
	_, err = l.OpenFixedFraction("B", t0, 200, market.Long, 0, 0)
	require.NoError(t, err)

	closed, leftOpen := l.ForceCloseAll(t0.Add(24*time.Hour), map[string]float64{"A": 110, "B": 210}, ReasonBacktestEnd)
	assert.Len(t, closed, 2)
	assert.Empty(t, leftOpen)
	assert.Equal(t, 0, l.OpenCount())
	for _, tr := range closed {
		assert.Equal(t, ReasonBacktestEnd, tr.ExitReason)
	}

	// Idempotent on an empty book.
	closed, leftOpen = l.ForceCloseAll(t0.Add(48*time.Hour), map[string]float64{"A": 110}, ReasonBacktestEnd)
	assert.Empty(t, closed)
	assert.Empty(t, leftOpen)
}

func TestForceCloseAllReportsUnpriced(t *testing.T) {
	t.Parallel()

	l := newEquityLedger()
	_, err := l.OpenFixedFraction("A", t0, 100, market.Long, 0, 0)
	require.NoError(t, err)

	closed, leftOpen := l.ForceCloseAll(t0, map[string]float64{}, ReasonBacktestEnd)
	assert.Empty(t, closed)
	assert.Equal(t, []string{"A"}, leftOpen)
	assert.Equal(t, 1, l.OpenCount())
}

func TestCashNeverNegativeAcrossOpens(t *testing.T) {
	t.Parallel()

	l := NewLedger(Config{
		InitialCapital:     1000,
		PositionFraction:   0.90,
		MaxPositions:       5,
		TransactionCostPct: 0.001,
	})

	for _, sym := range []string{"A", "B", "C", "D", "E"} {
		_, _ = l.OpenFixedFraction(sym, t0, 3, market.Long, 0, 0)
		assert.GreaterOrEqual(t, l.Cash(), 0.0)
	}
}

func TestSymbolsSorted(t *testing.T) {
	t.Parallel()

	l := newEquityLedger()
	for _, sym := range []string{"C", "A", "B"} {
		_, err := l.OpenFixedFraction(sym, t0, 10, market.Long, 0, 0)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"A", "B", "C"}, l.Symbols())
}

func TestTradeIDsUnique(t *testing.T) {
	t.Parallel()

	l := newEquityLedger()
	seen := map[string]bool{}
	for _, sym := range []string{"A", "B", "C"} {
		p, err := l.OpenFixedFraction(sym, t0, 10, market.Long, 0, 0)
		require.NoError(t, err)
		assert.False(t, seen[p.ID])
		seen[p.ID] = true
	}
}

func TestPnLPctFinite(t *testing.T) {
	t.Parallel()

	l := newEquityLedger()
	_, err := l.OpenFixedFraction("A", t0, 100, market.Long, 0, 0)
	require.NoError(t, err)

	tr, err := l.Close("A", t0, 90, ReasonStopLoss)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(tr.PnLPct))
	assert.False(t, math.IsInf(tr.PnLPct, 0))
	assert.Less(t, tr.PnLPct, 0.0)
}
