package backtest

import (
	"log/slog"
	"math"
	"time"

	"github.com/quantfold/backsim/market"
	"github.com/quantfold/backsim/portfolio"
	"github.com/quantfold/backsim/rules"
)

// Engine walks a pre-sorted price/signal series one timestamp at a time,
// in a fixed phase order: day-boundary context update, rule-driven exits,
// signal-driven exits, entries, valuation. After the final timestamp every
// remaining position is force-closed.
//
// The engine is single-threaded and deterministic. Independent runs may
// execute concurrently as long as each owns its own Engine.
type Engine struct {
	cfg    Config
	ledger *portfolio.Ledger
	eval   *rules.Evaluator
	log    *slog.Logger

	sess *sessionState

	// history holds each symbol's most recent bars, excluding the bar
	// being processed, for structural stop construction.
	history map[string][]market.Bar

	// lastClose remembers the final observed close per symbol so the
	// end-of-series force-close can fill at the last available price.
	lastClose map[string]float64
}

// New validates cfg and builds an engine. A nil logger discards nothing:
// slog.Default() is used.
func New(cfg Config, logger *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg: cfg,
		ledger: portfolio.NewLedger(portfolio.Config{
			InitialCapital:     cfg.InitialCapital,
			PositionFraction:   cfg.PositionFraction,
			MaxPositions:       cfg.MaxPositions,
			MinTradeValue:      cfg.MinTradeValue,
			TransactionCostPct: cfg.TransactionCostPct,
		}),
		eval:      rules.NewEvaluator(cfg.exitRules()),
		log:       logger,
		sess:      newSessionState(),
		history:   make(map[string][]market.Bar),
		lastClose: make(map[string]float64),
	}, nil
}

// Ledger exposes the run's ledger, mostly for tests and reporting.
func (e *Engine) Ledger() *portfolio.Ledger { return e.ledger }

// Run replays the series. A completed run always returns a result with a
// (possibly empty) trade list and one valuation per input timestamp; data
// quality anomalies are logged and recovered, never fatal.
func (e *Engine) Run(bars []market.Bar) (*Result, error) {
	steps := market.GroupByTime(bars)

	res := &Result{
		Variant:        e.cfg.Variant,
		InitialCapital: e.cfg.InitialCapital,
		FinalCapital:   e.cfg.InitialCapital,
	}
	if len(steps) == 0 {
		return res, nil
	}
	res.Start = steps[0].Time
	res.End = steps[len(steps)-1].Time

	for _, step := range steps {
		day := midnight(step.Time)
		if !day.Equal(e.sess.day) {
			e.sess.rollDay(day, e.cfg.BiasThresholdPct)
		}

		e.exitPhase(step)
		if e.cfg.Variant == Equity {
			e.signalExitPhase(step)
		}
		e.entryPhase(step)

		_, missing := e.ledger.MarkAndRecord(step.Time, step.Closes())
		for _, sym := range missing {
			e.log.Warn("no price for held symbol, marking at last known",
				"symbol", sym, "time", step.Time)
		}

		e.observe(step)
	}

	last := steps[len(steps)-1]
	snapshot := make(map[string]float64, len(e.lastClose))
	for sym, px := range e.lastClose {
		snapshot[sym] = px
	}
	_, leftOpen := e.ledger.ForceCloseAll(last.Time, snapshot, portfolio.ReasonBacktestEnd)
	for _, sym := range leftOpen {
		e.log.Warn("position left open at end of run: no price ever observed",
			"symbol", sym)
	}

	res.Trades = e.ledger.Trades()
	res.Valuations = e.ledger.Valuations()
	res.FinalCapital = e.ledger.Cash()
	res.LeftOpen = leftOpen
	return res, nil
}

// exitPhase evaluates the armed exit rules for every open position against
// the current step. Protective levels fire before anything else; a held
// symbol with no bar this step is skipped, not closed.
func (e *Engine) exitPhase(step market.Step) {
	for _, sym := range e.ledger.Symbols() {
		bar, ok := step.Lookup(sym)
		if !ok {
			continue
		}
		pos, _ := e.ledger.Position(sym)

		dec := e.eval.Evaluate(pos, rules.Snapshot{
			Time:   step.Time,
			High:   bar.High,
			Low:    bar.Low,
			Close:  bar.Close,
			Signal: bar.Signal,
		})
		if !dec.Exit {
			continue
		}
		e.closeCounted(sym, step.Time, dec.Price, dec.Reason)
	}
}

// signalExitPhase closes equity positions on explicit sell signals, after
// the protective-level phase so stops and targets always win the bar.
func (e *Engine) signalExitPhase(step market.Step) {
	for _, bar := range step.Bars {
		if bar.Signal != market.Sell {
			continue
		}
		if _, held := e.ledger.Position(bar.Symbol); !held {
			continue
		}
		e.closeCounted(bar.Symbol, step.Time, bar.Close, portfolio.ReasonSellSignal)
	}
}

func (e *Engine) closeCounted(sym string, ts time.Time, price float64, reason string) {
	t, err := e.ledger.Close(sym, ts, price, reason)
	if err != nil {
		// Only reachable if a symbol vanished between lookup and close,
		// which would be a ledger bug.
		e.log.Error("close failed", "symbol", sym, "err", err)
		return
	}
	if t.GrossPnL < 0 {
		e.sess.losses++
	}
}

func (e *Engine) entryPhase(step market.Step) {
	switch e.cfg.Variant {
	case Equity:
		e.equityEntries(step)
	case OptionsProxy:
		e.proxyEntries(step)
	case Futures:
		e.futuresEntries(step)
	}
}

func (e *Engine) equityEntries(step market.Step) {
	for _, bar := range step.Bars {
		if bar.Signal != market.Buy || !e.ledger.CanOpen(bar.Symbol) {
			continue
		}
		_, err := e.ledger.OpenFixedFraction(bar.Symbol, step.Time, bar.Close,
			market.Long, e.cfg.StopLossPct, e.cfg.TakeProfitPct)
		if err != nil {
			// Sizing that rounds to nothing is a strategy filter, not a fault.
			e.log.Debug("entry skipped", "symbol", bar.Symbol, "reason", err)
		}
	}
}

func (e *Engine) proxyEntries(step market.Step) {
	for _, bar := range step.Bars {
		if bar.Signal == market.Hold || !e.ledger.CanOpen(bar.Symbol) {
			continue
		}
		dir := market.Long
		if bar.Signal == market.Sell {
			dir = market.Short
		}
		_, err := e.ledger.OpenProxy(bar.Symbol, step.Time, bar.Close, dir, portfolio.ProxyTerms{
			PremiumPct:   e.cfg.PremiumPct,
			Leverage:     e.cfg.Leverage,
			PremiumFloor: e.cfg.PremiumFloor,
			Expiry:       step.Time.Add(time.Duration(e.cfg.ExpiryDays) * 24 * time.Hour),
		})
		if err != nil {
			e.log.Debug("entry skipped", "symbol", bar.Symbol, "reason", err)
		}
	}
}

// futuresEntries attempts risk-sized entries inside the configured session
// windows, under the daily loss cap, with a structural stop from the
// recent bar history and the previous-day level as target. Entries that
// fail the stop-distance or risk-reward filters are skipped silently.
func (e *Engine) futuresEntries(step market.Step) {
	if !inSession(e.cfg.Sessions, step.Time) {
		return
	}
	if e.cfg.MaxDailyLosses > 0 && e.sess.losses >= e.cfg.MaxDailyLosses {
		return
	}

	for _, bar := range step.Bars {
		if bar.Signal == market.Hold || !e.ledger.CanOpen(bar.Symbol) {
			continue
		}
		sd := e.sess.symbol(bar.Symbol)
		if !sd.ready {
			continue
		}
		hist := e.history[bar.Symbol]
		if len(hist) == 0 {
			continue
		}

		dir := market.Long
		if bar.Signal == market.Sell {
			dir = market.Short
		}

		entry := bar.Close
		stop := structuralStop(hist, dir)
		target := sd.PDH
		if dir == market.Short {
			target = sd.PDL
		}

		stopDistance := math.Abs(entry - stop)
		if stopDistance == 0 || stopDistance < e.cfg.MinStopPoints {
			continue
		}
		rr := math.Abs(target-entry) / stopDistance
		if rr < e.cfg.MinRiskReward {
			continue
		}

		riskPct := e.cfg.RiskPctNeutral
		if sd.Bias != BiasNeutral {
			riskPct = e.cfg.RiskPctBiased
		}

		_, err := e.ledger.OpenRiskSized(bar.Symbol, step.Time, entry, dir, portfolio.FuturesTerms{
			Stop:       stop,
			Target:     target,
			RiskPct:    riskPct,
			MaxUnits:   e.cfg.MaxUnits,
			RiskReward: rr,
			Bias:       sd.Bias,
		})
		if err != nil {
			e.log.Debug("entry skipped", "symbol", bar.Symbol, "reason", err)
		}
	}
}

// structuralStop places the stop at the extreme of the recent history:
// below the lowest low for longs, above the highest high for shorts.
func structuralStop(hist []market.Bar, dir market.Direction) float64 {
	if dir == market.Long {
		low := hist[0].Low
		for _, b := range hist[1:] {
			if b.Low < low {
				low = b.Low
			}
		}
		return low
	}
	high := hist[0].High
	for _, b := range hist[1:] {
		if b.High > high {
			high = b.High
		}
	}
	return high
}

// observe folds the step's bars into the session accumulators, the stop
// history and the last-close snapshot, after all trading phases so the
// current bar never informs its own stop.
func (e *Engine) observe(step market.Step) {
	for _, bar := range step.Bars {
		e.sess.observe(bar)
		e.lastClose[bar.Symbol] = bar.Close

		if e.cfg.Variant == Futures {
			h := append(e.history[bar.Symbol], bar)
			if n := len(h) - e.cfg.StopLookback; n > 0 {
				h = h[n:]
			}
			e.history[bar.Symbol] = h
		}
	}
}
