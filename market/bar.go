package market

import (
	"fmt"
	"time"
)

// Signal is the directional annotation attached to a bar by the upstream
// signal generator: +1 enter long / bullish, -1 enter short (or exit long),
// 0 no action.
type Signal int8

const (
	Buy  Signal = +1
	Sell Signal = -1
	Hold Signal = 0
)

// Direction of an open position.
type Direction int8

const (
	Long  Direction = +1
	Short Direction = -1
)

func (d Direction) String() string {
	if d == Short {
		return "SHORT"
	}
	return "LONG"
}

// Opposes reports whether s is the logical opposite of direction d.
// A Hold signal opposes nothing.
func (s Signal) Opposes(d Direction) bool {
	switch d {
	case Long:
		return s == Sell
	case Short:
		return s == Buy
	}
	return false
}

// Bar is one OHLCV record for one symbol at one timestamp, annotated with
// the externally produced signal. Bars are immutable once ingested; the
// simulation core only reads them.
type Bar struct {
	Symbol string
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	Signal Signal
}

// Validate enforces the input contract: low <= open, close <= high,
// all prices positive, volume non-negative.
func (b Bar) Validate() error {
	if b.Symbol == "" {
		return fmt.Errorf("bar: empty symbol")
	}
	if b.Time.IsZero() {
		return fmt.Errorf("bar %s: zero timestamp", b.Symbol)
	}
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return fmt.Errorf("bar %s @ %s: non-positive price", b.Symbol, b.Time.Format(time.RFC3339))
	}
	if b.Low > b.Open || b.Low > b.Close || b.Open > b.High || b.Close > b.High {
		return fmt.Errorf("bar %s @ %s: OHLC out of order (O=%g H=%g L=%g C=%g)",
			b.Symbol, b.Time.Format(time.RFC3339), b.Open, b.High, b.Low, b.Close)
	}
	if b.Volume < 0 {
		return fmt.Errorf("bar %s @ %s: negative volume", b.Symbol, b.Time.Format(time.RFC3339))
	}
	if b.Signal != Buy && b.Signal != Sell && b.Signal != Hold {
		return fmt.Errorf("bar %s @ %s: signal %d outside {-1,0,+1}", b.Symbol, b.Time.Format(time.RFC3339), b.Signal)
	}
	return nil
}
