// Package metrics reduces a finished run to summary performance numbers.
// All computations are pure functions of the trade list and valuation
// series; nothing here mutates its inputs.
package metrics

import (
	"math"

	"github.com/quantfold/backsim/portfolio"
)

// Report is the derived performance summary for one run.
type Report struct {
	InitialCapital float64
	FinalCapital   float64

	TotalReturnPct      float64
	AnnualizedReturnPct float64

	Trades        int
	Wins          int
	Losses        int
	WinRatePct    float64
	AvgTradePct   float64
	BestTradePct  float64
	WorstTradePct float64
	AvgHoldDays   float64

	// ProfitFactor is gross profit over gross loss. +Inf when there are
	// profits and no losses; 0 when there are no profitable trades.
	ProfitFactor float64

	// VolatilityPct and Sharpe are computed from per-step valuation
	// returns, annualized at 252 periods. Sharpe is 0 when the return
	// series has no variance.
	VolatilityPct float64
	Sharpe        float64

	MaxDrawdownPct     float64
	MaxDrawdownPeriods int
	Calmar             float64
}

// Compute derives the report from the run's trades and valuation series.
func Compute(trades []portfolio.ClosedTrade, vals []portfolio.Valuation, initial, final float64) Report {
	r := Report{
		InitialCapital: initial,
		FinalCapital:   final,
		Trades:         len(trades),
	}
	if initial > 0 {
		r.TotalReturnPct = (final - initial) / initial * 100
	}

	r.tradeStats(trades)
	r.seriesStats(vals)
	r.annualize(vals)

	if r.MaxDrawdownPct > 0 {
		r.Calmar = r.AnnualizedReturnPct / r.MaxDrawdownPct
	}
	return r
}

func (r *Report) tradeStats(trades []portfolio.ClosedTrade) {
	if len(trades) == 0 {
		return
	}

	var grossProfit, grossLoss float64
	var sumPct, holdDays float64
	best := math.Inf(-1)
	worst := math.Inf(+1)

	for _, t := range trades {
		if t.Win() {
			r.Wins++
			grossProfit += t.GrossPnL
		} else {
			r.Losses++
			grossLoss += -t.GrossPnL
		}
		pct := t.PnLPct * 100
		sumPct += pct
		if pct > best {
			best = pct
		}
		if pct < worst {
			worst = pct
		}
		holdDays += t.Duration().Hours() / 24
	}

	n := float64(len(trades))
	r.WinRatePct = float64(r.Wins) / n * 100
	r.AvgTradePct = sumPct / n
	r.BestTradePct = best
	r.WorstTradePct = worst
	r.AvgHoldDays = holdDays / n

	switch {
	case grossLoss > 0:
		r.ProfitFactor = grossProfit / grossLoss
	case grossProfit > 0:
		r.ProfitFactor = math.Inf(+1)
	default:
		r.ProfitFactor = 0
	}
}

// seriesStats derives volatility, Sharpe and the maximum peak-to-trough
// drawdown from the valuation series.
func (r *Report) seriesStats(vals []portfolio.Valuation) {
	if len(vals) < 2 {
		return
	}

	rets := make([]float64, 0, len(vals)-1)
	for i := 1; i < len(vals); i++ {
		prev := vals[i-1].TotalValue
		if prev > 0 {
			rets = append(rets, vals[i].TotalValue/prev-1)
		}
	}
	if len(rets) > 0 {
		var sum float64
		for _, x := range rets {
			sum += x
		}
		mean := sum / float64(len(rets))

		var sq float64
		for _, x := range rets {
			d := x - mean
			sq += d * d
		}
		stdev := math.Sqrt(sq / float64(len(rets)))

		r.VolatilityPct = stdev * math.Sqrt(252) * 100
		if stdev > 0 {
			r.Sharpe = mean / stdev * math.Sqrt(252)
		}
	}

	peak := vals[0].TotalValue
	peakIdx := 0
	for i, v := range vals {
		if v.TotalValue > peak {
			peak = v.TotalValue
			peakIdx = i
			continue
		}
		if peak > 0 {
			dd := (peak - v.TotalValue) / peak * 100
			if dd > r.MaxDrawdownPct {
				r.MaxDrawdownPct = dd
				r.MaxDrawdownPeriods = i - peakIdx
			}
		}
	}
}

// annualize converts the total return to a compound annual rate over the
// valuation series' calendar span.
func (r *Report) annualize(vals []portfolio.Valuation) {
	if len(vals) < 2 || r.InitialCapital <= 0 {
		return
	}
	days := vals[len(vals)-1].Time.Sub(vals[0].Time).Hours() / 24
	if days <= 0 {
		return
	}
	growth := r.FinalCapital / r.InitialCapital
	if growth <= 0 {
		r.AnnualizedReturnPct = -100
		return
	}
	r.AnnualizedReturnPct = (math.Pow(growth, 365.25/days) - 1) * 100
}
