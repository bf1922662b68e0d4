package market

import "time"

// Step is the group of bars sharing one timestamp: the unit the
// simulation loop advances by.
type Step struct {
	Time time.Time
	Bars []Bar
}

// Lookup returns the bar for symbol at this step.
func (s Step) Lookup(symbol string) (Bar, bool) {
	for _, b := range s.Bars {
		if b.Symbol == symbol {
			return b, true
		}
	}
	return Bar{}, false
}

// Closes returns the close price per symbol at this step.
func (s Step) Closes() map[string]float64 {
	out := make(map[string]float64, len(s.Bars))
	for _, b := range s.Bars {
		out[b.Symbol] = b.Close
	}
	return out
}

// GroupByTime splits a (timestamp, symbol)-sorted series into per-timestamp
// steps. The feed is responsible for ordering and de-duplication; grouping
// only splits on timestamp changes.
func GroupByTime(bars []Bar) []Step {
	var steps []Step
	for _, b := range bars {
		n := len(steps)
		if n == 0 || !steps[n-1].Time.Equal(b.Time) {
			steps = append(steps, Step{Time: b.Time})
			n++
		}
		steps[n-1].Bars = append(steps[n-1].Bars, b)
	}
	return steps
}
