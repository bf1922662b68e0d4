package backtest

import (
	"fmt"
	"time"

	"github.com/quantfold/backsim/rules"
)

// Variant selects the strategy family being simulated. The engine shares
// one ledger and one evaluator across variants; the variant only picks the
// armed exit rules and the entry construction.
type Variant string

const (
	Equity       Variant = "equity"
	OptionsProxy Variant = "options"
	Futures      Variant = "futures"
)

// Config is the complete parameter set for one run. There are no
// process-wide defaults; the engine receives an explicit value.
type Config struct {
	Variant Variant

	InitialCapital     float64
	PositionFraction   float64
	MaxPositions       int
	MinTradeValue      float64
	TransactionCostPct float64

	// Fixed exit levels for the direct (equity) variant.
	StopLossPct   float64
	TakeProfitPct float64

	// Leveraged-proxy (options) variant.
	PremiumPct       float64
	Leverage         float64
	PremiumFloor     float64
	ExpiryDays       int
	NearExpiryDays   int
	ProfitTargetPct  float64 // exit at or above, in percent (e.g. 50)
	ProxyStopLossPct float64 // exit at or below, in percent (e.g. -30)

	// Futures variant.
	Sessions         []Window
	MaxDailyLosses   int // 0 disables the cap
	MinRiskReward    float64
	MinStopPoints    float64
	StopLookback     int
	RiskPctBiased    float64
	RiskPctNeutral   float64
	BiasThresholdPct float64 // previous-day move needed to establish a bias
	MaxUnits         float64
	MaxHold          time.Duration
}

// Validate fails fast on configuration errors before a simulation starts.
func (c Config) Validate() error {
	if c.InitialCapital <= 0 {
		return fmt.Errorf("backtest: initial capital must be positive, got %g", c.InitialCapital)
	}
	if c.MaxPositions < 1 {
		return fmt.Errorf("backtest: max positions must be at least 1, got %d", c.MaxPositions)
	}
	if c.TransactionCostPct < 0 || c.TransactionCostPct >= 1 {
		return fmt.Errorf("backtest: transaction cost %g outside [0,1)", c.TransactionCostPct)
	}

	switch c.Variant {
	case Equity:
		if c.PositionFraction <= 0 || c.PositionFraction > 1 {
			return fmt.Errorf("backtest: position fraction %g outside (0,1]", c.PositionFraction)
		}
		if c.StopLossPct < 0 || c.StopLossPct >= 1 {
			return fmt.Errorf("backtest: stop loss pct %g outside [0,1)", c.StopLossPct)
		}
		if c.TakeProfitPct < 0 {
			return fmt.Errorf("backtest: take profit pct %g negative", c.TakeProfitPct)
		}

	case OptionsProxy:
		if c.PositionFraction <= 0 || c.PositionFraction > 1 {
			return fmt.Errorf("backtest: position fraction %g outside (0,1]", c.PositionFraction)
		}
		if c.PremiumPct <= 0 {
			return fmt.Errorf("backtest: premium pct must be positive, got %g", c.PremiumPct)
		}
		if c.Leverage <= 0 {
			return fmt.Errorf("backtest: proxy leverage must be positive, got %g", c.Leverage)
		}
		if c.PremiumFloor <= 0 {
			return fmt.Errorf("backtest: premium floor must be positive, got %g", c.PremiumFloor)
		}
		if c.ExpiryDays <= 0 {
			return fmt.Errorf("backtest: expiry days must be positive, got %d", c.ExpiryDays)
		}
		if c.NearExpiryDays < 0 || c.NearExpiryDays >= c.ExpiryDays {
			return fmt.Errorf("backtest: near-expiry days %d outside [0,%d)", c.NearExpiryDays, c.ExpiryDays)
		}
		if c.ProfitTargetPct < 0 {
			return fmt.Errorf("backtest: profit target pct %g negative", c.ProfitTargetPct)
		}
		if c.ProxyStopLossPct > 0 {
			return fmt.Errorf("backtest: proxy stop loss pct %g must be negative or zero", c.ProxyStopLossPct)
		}
		if c.ProfitTargetPct > 0 && c.ProxyStopLossPct < 0 && c.ProxyStopLossPct >= c.ProfitTargetPct {
			return fmt.Errorf("backtest: stop %g not below target %g", c.ProxyStopLossPct, c.ProfitTargetPct)
		}

	case Futures:
		if c.RiskPctBiased <= 0 || c.RiskPctBiased > 1 {
			return fmt.Errorf("backtest: biased risk pct %g outside (0,1]", c.RiskPctBiased)
		}
		if c.RiskPctNeutral <= 0 || c.RiskPctNeutral > 1 {
			return fmt.Errorf("backtest: neutral risk pct %g outside (0,1]", c.RiskPctNeutral)
		}
		if c.MinRiskReward < 0 {
			return fmt.Errorf("backtest: min risk-reward %g negative", c.MinRiskReward)
		}
		if c.StopLookback < 1 {
			return fmt.Errorf("backtest: stop lookback must be at least 1, got %d", c.StopLookback)
		}
		if c.MaxDailyLosses < 0 {
			return fmt.Errorf("backtest: max daily losses %d negative", c.MaxDailyLosses)
		}
		if c.BiasThresholdPct < 0 {
			return fmt.Errorf("backtest: bias threshold pct %g negative", c.BiasThresholdPct)
		}

	default:
		return fmt.Errorf("backtest: unknown variant %q", c.Variant)
	}
	return nil
}

// exitRules arms the evaluator for this variant.
func (c Config) exitRules() rules.ExitRules {
	switch c.Variant {
	case OptionsProxy:
		return rules.ExitRules{
			OppositeSignal:  true,
			NearExpiry:      time.Duration(c.NearExpiryDays) * 24 * time.Hour,
			ProfitTargetPct: c.ProfitTargetPct,
			StopLossPct:     c.ProxyStopLossPct,
		}
	case Futures:
		return rules.ExitRules{
			OppositeSignal: true,
			MaxHold:        c.MaxHold,
		}
	default:
		// Equity exits on fixed levels and explicit sell signals only.
		return rules.ExitRules{}
	}
}
