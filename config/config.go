package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quantfold/backsim/backtest"
)

// Config represents the complete run configuration as loaded from a file.
type Config struct {
	Account  AccountConfig  `json:"account" yaml:"account"`
	Strategy StrategyConfig `json:"strategy" yaml:"strategy"`
	Exits    ExitConfig     `json:"exits" yaml:"exits"`
	Futures  FuturesConfig  `json:"futures,omitempty" yaml:"futures,omitempty"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
}

// AccountConfig contains account initialization parameters.
type AccountConfig struct {
	InitialCapital     float64 `json:"initial_capital" yaml:"initial_capital"`
	TransactionCostPct float64 `json:"transaction_cost_pct" yaml:"transaction_cost_pct"`
}

// StrategyConfig selects the variant and its sizing parameters.
type StrategyConfig struct {
	Variant          string  `json:"variant" yaml:"variant"` // "equity", "options" or "futures"
	PositionFraction float64 `json:"position_fraction,omitempty" yaml:"position_fraction,omitempty"`
	MaxPositions     int     `json:"max_positions" yaml:"max_positions"`
	MinTradeValue    float64 `json:"min_trade_value,omitempty" yaml:"min_trade_value,omitempty"`
}

// ExitConfig contains the exit parameters shared by the equity and
// options variants. Percent fields are fractional for fixed levels
// (stop_loss_pct 0.05 = 5% below entry) and whole percents for the
// proxy mark-to-market thresholds (profit_target_pct 50 = +50%).
type ExitConfig struct {
	StopLossPct   float64 `json:"stop_loss_pct,omitempty" yaml:"stop_loss_pct,omitempty"`
	TakeProfitPct float64 `json:"take_profit_pct,omitempty" yaml:"take_profit_pct,omitempty"`

	PremiumPct       float64 `json:"premium_pct,omitempty" yaml:"premium_pct,omitempty"`
	Leverage         float64 `json:"leverage,omitempty" yaml:"leverage,omitempty"`
	PremiumFloor     float64 `json:"premium_floor,omitempty" yaml:"premium_floor,omitempty"`
	ExpiryDays       int     `json:"expiry_days,omitempty" yaml:"expiry_days,omitempty"`
	NearExpiryDays   int     `json:"near_expiry_days,omitempty" yaml:"near_expiry_days,omitempty"`
	ProfitTargetPct  float64 `json:"profit_target_pct,omitempty" yaml:"profit_target_pct,omitempty"`
	ProxyStopLossPct float64 `json:"proxy_stop_loss_pct,omitempty" yaml:"proxy_stop_loss_pct,omitempty"`
}

// FuturesConfig contains the session-bound intraday variant's parameters.
type FuturesConfig struct {
	Sessions         []string `json:"sessions,omitempty" yaml:"sessions,omitempty"` // "HH:MM-HH:MM"
	MaxDailyLosses   int      `json:"max_daily_losses,omitempty" yaml:"max_daily_losses,omitempty"`
	MinRiskReward    float64  `json:"min_risk_reward,omitempty" yaml:"min_risk_reward,omitempty"`
	MinStopPoints    float64  `json:"min_stop_points,omitempty" yaml:"min_stop_points,omitempty"`
	StopLookback     int      `json:"stop_lookback,omitempty" yaml:"stop_lookback,omitempty"`
	RiskPctBiased    float64  `json:"risk_pct_biased,omitempty" yaml:"risk_pct_biased,omitempty"`
	RiskPctNeutral   float64  `json:"risk_pct_neutral,omitempty" yaml:"risk_pct_neutral,omitempty"`
	BiasThresholdPct float64  `json:"bias_threshold_pct,omitempty" yaml:"bias_threshold_pct,omitempty"`
	MaxUnits         float64  `json:"max_units,omitempty" yaml:"max_units,omitempty"`
	MaxHoldHours     int      `json:"max_hold_hours,omitempty" yaml:"max_hold_hours,omitempty"`
}

// JournalConfig contains journaling parameters.
type JournalConfig struct {
	Type           string `json:"type" yaml:"type"` // "none", "csv" or "sqlite"
	TradesFile     string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	ValuationsFile string `json:"valuations_file,omitempty" yaml:"valuations_file,omitempty"`
	DBPath         string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// LoadFromFile loads configuration from a file, trying YAML first and
// falling back to JSON.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile saves configuration to a file, YAML for .yaml/.yml and
// indented JSON otherwise.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks the file-level constraints: journal wiring and session
// syntax. Strategy parameter validation belongs to the engine config.
func (c *Config) Validate() error {
	switch c.Journal.Type {
	case "", "none", "csv", "sqlite":
	default:
		return fmt.Errorf("journal.type must be 'none', 'csv' or 'sqlite'")
	}
	if c.Journal.Type == "csv" && (c.Journal.TradesFile == "" || c.Journal.ValuationsFile == "") {
		return fmt.Errorf("journal trades_file and valuations_file required for CSV type")
	}
	if c.Journal.Type == "sqlite" && c.Journal.DBPath == "" {
		return fmt.Errorf("journal db_path required for SQLite type")
	}

	for _, s := range c.Futures.Sessions {
		if _, err := backtest.ParseWindow(s); err != nil {
			return err
		}
	}

	ec, err := c.EngineConfig()
	if err != nil {
		return err
	}
	return ec.Validate()
}

// EngineConfig maps the file configuration onto the engine's parameter
// set, parsing session windows.
func (c *Config) EngineConfig() (backtest.Config, error) {
	ec := backtest.Config{
		Variant: backtest.Variant(c.Strategy.Variant),

		InitialCapital:     c.Account.InitialCapital,
		PositionFraction:   c.Strategy.PositionFraction,
		MaxPositions:       c.Strategy.MaxPositions,
		MinTradeValue:      c.Strategy.MinTradeValue,
		TransactionCostPct: c.Account.TransactionCostPct,

		StopLossPct:   c.Exits.StopLossPct,
		TakeProfitPct: c.Exits.TakeProfitPct,

		PremiumPct:       c.Exits.PremiumPct,
		Leverage:         c.Exits.Leverage,
		PremiumFloor:     c.Exits.PremiumFloor,
		ExpiryDays:       c.Exits.ExpiryDays,
		NearExpiryDays:   c.Exits.NearExpiryDays,
		ProfitTargetPct:  c.Exits.ProfitTargetPct,
		ProxyStopLossPct: c.Exits.ProxyStopLossPct,

		MaxDailyLosses:   c.Futures.MaxDailyLosses,
		MinRiskReward:    c.Futures.MinRiskReward,
		MinStopPoints:    c.Futures.MinStopPoints,
		StopLookback:     c.Futures.StopLookback,
		RiskPctBiased:    c.Futures.RiskPctBiased,
		RiskPctNeutral:   c.Futures.RiskPctNeutral,
		BiasThresholdPct: c.Futures.BiasThresholdPct,
		MaxUnits:         c.Futures.MaxUnits,
		MaxHold:          time.Duration(c.Futures.MaxHoldHours) * time.Hour,
	}

	for _, s := range c.Futures.Sessions {
		w, err := backtest.ParseWindow(s)
		if err != nil {
			return backtest.Config{}, err
		}
		ec.Sessions = append(ec.Sessions, w)
	}
	return ec, nil
}

// Default returns a configuration with the stock equity-variant defaults.
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			InitialCapital:     1_000_000,
			TransactionCostPct: 0.001,
		},
		Strategy: StrategyConfig{
			Variant:          "equity",
			PositionFraction: 0.20,
			MaxPositions:     3,
			MinTradeValue:    100,
		},
		Exits: ExitConfig{
			StopLossPct:   0.05,
			TakeProfitPct: 0.10,
		},
		Journal: JournalConfig{
			Type: "none",
		},
	}
}

// DefaultOptions returns the leveraged-proxy variant defaults.
func DefaultOptions() *Config {
	return &Config{
		Account: AccountConfig{
			InitialCapital:     1_000_000,
			TransactionCostPct: 0.001,
		},
		Strategy: StrategyConfig{
			Variant:          "options",
			PositionFraction: 0.10,
			MaxPositions:     5,
		},
		Exits: ExitConfig{
			PremiumPct:       0.02,
			Leverage:         3.0,
			PremiumFloor:     0.01,
			ExpiryDays:       30,
			NearExpiryDays:   5,
			ProfitTargetPct:  50,
			ProxyStopLossPct: -30,
		},
		Journal: JournalConfig{
			Type: "none",
		},
	}
}

// DefaultFutures returns the session-bound intraday variant defaults.
func DefaultFutures() *Config {
	return &Config{
		Account: AccountConfig{
			InitialCapital: 1_000_000,
		},
		Strategy: StrategyConfig{
			Variant:      "futures",
			MaxPositions: 1,
		},
		Futures: FuturesConfig{
			Sessions:         []string{"09:15-12:00", "13:00-15:30"},
			MaxDailyLosses:   3,
			MinRiskReward:    1.1,
			MinStopPoints:    10,
			StopLookback:     6,
			RiskPctBiased:    0.02,
			RiskPctNeutral:   0.01,
			BiasThresholdPct: 0.003,
			MaxHoldHours:     24,
		},
		Journal: JournalConfig{
			Type: "none",
		},
	}
}
