package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/backsim/market"
	"github.com/quantfold/backsim/portfolio"
)

func futuresConfig() Config {
	return Config{
		Variant:          Futures,
		InitialCapital:   1_000_000,
		MaxPositions:     1,
		Sessions:         mustWindows("09:15-12:00", "13:00-15:30"),
		MaxDailyLosses:   3,
		MinRiskReward:    1.1,
		MinStopPoints:    10,
		StopLookback:     6,
		RiskPctBiased:    0.02,
		RiskPctNeutral:   0.01,
		BiasThresholdPct: 0.003,
		MaxHold:          24 * time.Hour,
	}
}

func mustWindows(specs ...string) []Window {
	var out []Window
	for _, s := range specs {
		w, err := ParseWindow(s)
		if err != nil {
			panic(err)
		}
		out = append(out, w)
	}
	return out
}

func fbar(day, hour, min int, o, h, l, c float64, sig market.Signal) market.Bar {
	return market.Bar{
		Symbol: "NIFTYFUT",
		Time:   time.Date(2024, 1, 1+day, hour, min, 0, 0, time.UTC),
		Open:   o,
		High:   h,
		Low:    l,
		Close:  c,
		Volume: 5000,
		Signal: sig,
	}
}

// warmup is one bullish prior-day bar: PDH 22150, PDL 22000, close-over-open
// move of 0.45% establishes a bullish bias.
func warmup() market.Bar {
	return fbar(0, 10, 0, 22000, 22150, 22000, 22100, market.Hold)
}

func TestFuturesEntryConstruction(t *testing.T) {
	t.Parallel()

	bars := []market.Bar{
		warmup(),
		fbar(1, 10, 0, 22005, 22020, 22002, 22010, market.Buy),
		fbar(1, 10, 30, 22010, 22015, 22005, 22012, market.Hold),
	}

	e := mustEngine(t, futuresConfig())
	res, err := e.Run(bars)
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Equal(t, market.Long, tr.Direction)
	assert.Equal(t, BiasBullish, tr.Bias)
	// Stop at the lookback low (22000), 10 points from the 22010 entry,
	// bullish risk 2%: quantity = 1,000,000 * 0.02 / 10.
	assert.InDelta(t, 2000.0, tr.Quantity, 1e-9)
	assert.Equal(t, 22010.0, tr.EntryPrice)
	// Force-closed on the last bar.
	assert.Equal(t, portfolio.ReasonBacktestEnd, tr.ExitReason)
	assert.Equal(t, 22012.0, tr.ExitPrice)
	assert.InDelta(t, 2000.0*2, tr.GrossPnL, 1e-9)
}

func TestFuturesNeutralBiasSizesSmaller(t *testing.T) {
	t.Parallel()

	// Flat prior day: close == open, bias stays neutral, risk drops to 1%.
	flat := fbar(0, 10, 0, 22000, 22150, 22000, 22000, market.Hold)
	bars := []market.Bar{
		flat,
		fbar(1, 10, 0, 22005, 22020, 22002, 22010, market.Buy),
		fbar(1, 10, 30, 22010, 22015, 22005, 22012, market.Hold),
	}

	e := mustEngine(t, futuresConfig())
	res, err := e.Run(bars)
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Equal(t, BiasNeutral, tr.Bias)
	assert.InDelta(t, 1000.0, tr.Quantity, 1e-9)
}

func TestFuturesNoEntryOutsideSession(t *testing.T) {
	t.Parallel()

	bars := []market.Bar{
		warmup(),
		// Lunch break: 12:30 is outside both windows.
		fbar(1, 12, 30, 22005, 22020, 22002, 22010, market.Buy),
		fbar(1, 13, 30, 22010, 22015, 22005, 22012, market.Hold),
	}

	e := mustEngine(t, futuresConfig())
	res, err := e.Run(bars)
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
}

func TestFuturesNoEntryWithoutPriorDay(t *testing.T) {
	t.Parallel()

	// First day of data: no previous-day levels, entries impossible.
	bars := []market.Bar{
		fbar(0, 10, 0, 22005, 22020, 22002, 22010, market.Buy),
		fbar(0, 10, 30, 22010, 22015, 22005, 22012, market.Buy),
	}

	e := mustEngine(t, futuresConfig())
	res, err := e.Run(bars)
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
}

func TestFuturesStopDistanceFloor(t *testing.T) {
	t.Parallel()

	// Lookback low 5 points under the entry: below the 10-point minimum.
	bars := []market.Bar{
		warmup(),
		fbar(1, 10, 0, 22006, 22020, 22005, 22010, market.Hold),
		fbar(1, 10, 30, 22008, 22020, 22006, 22010, market.Buy),
		fbar(1, 11, 0, 22010, 22015, 22008, 22012, market.Hold),
	}

	cfg := futuresConfig()
	cfg.StopLookback = 1
	e := mustEngine(t, cfg)
	res, err := e.Run(bars)
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
}

func TestFuturesRiskRewardFilter(t *testing.T) {
	t.Parallel()

	// Entry close right at the prior-day high: nothing to run to, the
	// reward side collapses and the trade is skipped.
	bars := []market.Bar{
		warmup(),
		fbar(1, 10, 0, 22100, 22150, 22090, 22148, market.Buy),
		fbar(1, 10, 30, 22148, 22150, 22140, 22145, market.Hold),
	}

	e := mustEngine(t, futuresConfig())
	res, err := e.Run(bars)
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
}

func TestFuturesDailyLossCap(t *testing.T) {
	t.Parallel()

	cfg := futuresConfig()
	cfg.MaxDailyLosses = 1

	bars := []market.Bar{
		warmup(),
		// Entry at 22010, stop at the lookback low 22000.
		fbar(1, 9, 30, 22005, 22020, 22002, 22010, market.Buy),
		// Stop swept: loss number one.
		fbar(1, 10, 0, 22005, 22010, 21990, 21995, market.Hold),
		// A fresh signal the same day is refused.
		fbar(1, 10, 30, 21995, 22005, 21992, 22000, market.Buy),
		fbar(1, 11, 0, 22000, 22005, 21996, 22002, market.Hold),
	}

	e := mustEngine(t, cfg)
	res, err := e.Run(bars)
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	assert.Equal(t, portfolio.ReasonStopLoss, res.Trades[0].ExitReason)
	assert.Equal(t, 22000.0, res.Trades[0].ExitPrice)
	assert.Less(t, res.Trades[0].GrossPnL, 0.0)
}

func TestFuturesLossCapResetsNextDay(t *testing.T) {
	t.Parallel()

	cfg := futuresConfig()
	cfg.MaxDailyLosses = 1

	bars := []market.Bar{
		warmup(),
		fbar(1, 9, 30, 22005, 22020, 22002, 22010, market.Buy),
		fbar(1, 10, 0, 22005, 22010, 21990, 21995, market.Hold),
		// Next day: a new prior-day context and a reset loss counter.
		fbar(2, 9, 30, 21995, 22010, 21994, 22000, market.Buy),
		fbar(2, 10, 0, 22000, 22008, 22000, 22006, market.Hold),
	}

	e := mustEngine(t, cfg)
	res, err := e.Run(bars)
	require.NoError(t, err)
	assert.Len(t, res.Trades, 2)
}

func TestFuturesShortEntry(t *testing.T) {
	t.Parallel()

	// Bearish prior day: open 22100, close 22000 (-0.45%).
	prior := fbar(0, 10, 0, 22100, 22120, 21980, 22000, market.Hold)
	bars := []market.Bar{
		prior,
		// Short at 22060 with the lookback high 22120 as stop and the
		// prior-day low 21980 as target.
		fbar(1, 10, 0, 22070, 22080, 22050, 22060, market.Sell),
		fbar(1, 10, 30, 22060, 22070, 22055, 22065, market.Hold),
	}

	e := mustEngine(t, futuresConfig())
	res, err := e.Run(bars)
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Equal(t, market.Short, tr.Direction)
	assert.Equal(t, BiasBearish, tr.Bias)
	// Stop distance 60 points, bearish bias risk 2%.
	assert.InDelta(t, 1_000_000*0.02/60, tr.Quantity, 1e-9)
}

func TestFuturesTimeExit(t *testing.T) {
	t.Parallel()

	cfg := futuresConfig()
	cfg.MinRiskReward = 0
	cfg.MinStopPoints = 0

	bars := []market.Bar{
		warmup(),
		fbar(1, 10, 0, 22005, 22020, 22002, 22010, market.Buy),
		// Quiet drift for a day; 24 hours after entry the clock fires.
		fbar(1, 14, 0, 22010, 22015, 22005, 22012, market.Hold),
		fbar(2, 10, 0, 22012, 22018, 22008, 22014, market.Hold),
		fbar(2, 14, 0, 22014, 22018, 22010, 22015, market.Hold),
	}

	e := mustEngine(t, cfg)
	res, err := e.Run(bars)
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Equal(t, portfolio.ReasonTimeExit, tr.ExitReason)
	assert.Equal(t, time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC), tr.ExitTime)
}
