package backtest

import (
	"time"

	"github.com/quantfold/backsim/market"
)

// Bias labels carried onto futures trades.
const (
	BiasBullish = "BULLISH"
	BiasBearish = "BEARISH"
	BiasNeutral = "NEUTRAL"
)

// symbolDay tracks one symbol's session context: yesterday's reference
// levels and bias, plus the accumulators for the day in progress. The
// loop owns this state and mutates it only in its day-boundary and
// observation phases.
type symbolDay struct {
	ready bool // previous-day levels available

	PDH  float64
	PDL  float64
	Bias string

	dayOpen  float64
	dayClose float64
	dayHigh  float64
	dayLow   float64
	haveBar  bool
}

// sessionState is the per-day state the loop threads through its phases:
// per-symbol levels plus the daily loss counter that gates further
// entries once the cap is reached.
type sessionState struct {
	day     time.Time // midnight marking the current calendar day
	losses  int
	symbols map[string]*symbolDay
}

func newSessionState() *sessionState {
	return &sessionState{symbols: make(map[string]*symbolDay)}
}

func (s *sessionState) symbol(sym string) *symbolDay {
	sd, ok := s.symbols[sym]
	if !ok {
		sd = &symbolDay{Bias: BiasNeutral}
		s.symbols[sym] = sd
	}
	return sd
}

// rollDay promotes each symbol's in-progress accumulators to previous-day
// levels, refreshes bias from the day's net move, and resets the daily
// loss counter. biasThresholdPct is the fractional close-over-open move
// required to call the day directional.
func (s *sessionState) rollDay(day time.Time, biasThresholdPct float64) {
	s.day = day
	s.losses = 0

	for _, sd := range s.symbols {
		if !sd.haveBar {
			continue
		}
		sd.PDH = sd.dayHigh
		sd.PDL = sd.dayLow
		sd.Bias = dayBias(sd.dayOpen, sd.dayClose, biasThresholdPct)
		sd.ready = true
		sd.haveBar = false
	}
}

// observe folds one bar into its symbol's in-progress day accumulators.
func (s *sessionState) observe(b market.Bar) {
	sd := s.symbol(b.Symbol)
	if !sd.haveBar {
		sd.dayOpen = b.Open
		sd.dayHigh = b.High
		sd.dayLow = b.Low
		sd.haveBar = true
	} else {
		if b.High > sd.dayHigh {
			sd.dayHigh = b.High
		}
		if b.Low < sd.dayLow {
			sd.dayLow = b.Low
		}
	}
	sd.dayClose = b.Close
}

func dayBias(open, close, thresholdPct float64) string {
	if open <= 0 {
		return BiasNeutral
	}
	move := (close - open) / open
	switch {
	case move >= thresholdPct && thresholdPct > 0:
		return BiasBullish
	case move <= -thresholdPct && thresholdPct > 0:
		return BiasBearish
	default:
		return BiasNeutral
	}
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
