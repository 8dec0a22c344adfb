// Package config provides configuration management for the trading application.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Trading    TradingConfig    `mapstructure:"trading"`
	Structure  StructureConfig  `mapstructure:"structure"`
	Divergence DivergenceConfig `mapstructure:"divergence"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Filter     FilterConfig     `mapstructure:"filter"`
	Validator  ValidatorConfig  `mapstructure:"validator"`
	Risk       RiskConfig       `mapstructure:"risk"`
	Execution  ExecutionConfig  `mapstructure:"execution"`
	Loop       LoopConfig       `mapstructure:"loop"`
	Store      StoreConfig      `mapstructure:"store"`
	UI         UIConfig         `mapstructure:"ui"`
}

// TradingConfig holds trading-related configuration.
type TradingConfig struct {
	Mode           string       `mapstructure:"mode"` // "live", "paper"
	InitialCapital float64      `mapstructure:"initial_capital"`
	Timeframes     []string     `mapstructure:"timeframes"`
	Pairs          []PairConfig `mapstructure:"pairs"`
	DataDir        string       `mapstructure:"data_dir"` // candle CSV directory
}

// PairConfig defines a correlated instrument pair to scan.
type PairConfig struct {
	Primary   string `mapstructure:"primary"`
	Reference string `mapstructure:"reference"`
	Name      string `mapstructure:"name"`
}

// StructureConfig holds accumulation/manipulation/distribution detector
// thresholds.
type StructureConfig struct {
	MinAccumulationBars   int     `mapstructure:"min_accumulation_bars"`
	ManipulationThreshold float64 `mapstructure:"manipulation_threshold"` // ATR units
	ATRPeriod             int     `mapstructure:"atr_period"`
}

// DivergenceConfig holds cross-instrument divergence detector thresholds.
type DivergenceConfig struct {
	LookbackPeriod     int `mapstructure:"lookback_period"`
	MinSwingSeparation int `mapstructure:"min_swing_separation"`
}

// EngineConfig holds signal engine configuration.
type EngineConfig struct {
	RequireAlignment    bool `mapstructure:"require_alignment"`
	SignalExpiryMinutes int  `mapstructure:"signal_expiry_minutes"`
}

// FilterConfig holds signal filter configuration.
type FilterConfig struct {
	MinStrength         string `mapstructure:"min_strength"` // weak, medium, strong, verystrong
	LongOnly            bool   `mapstructure:"long_only"`
	MaxSignalsPerSymbol int    `mapstructure:"max_signals_per_symbol"`
	DedupWindowSecs     int    `mapstructure:"dedup_window_secs"`
}

// ValidatorConfig holds signal validator configuration.
type ValidatorConfig struct {
	MinRiskReward         float64 `mapstructure:"min_risk_reward"`
	MaxRiskPercent        float64 `mapstructure:"max_risk_percent"`
	RequireStructure      bool    `mapstructure:"require_structure"`
	RequireDivergence     bool    `mapstructure:"require_divergence"`
	MinTimeframeAlignment int     `mapstructure:"min_timeframe_alignment"`
}

// RiskConfig holds position-level risk configuration.
type RiskConfig struct {
	StopLossPercent        float64 `mapstructure:"stop_loss_percent"`
	TakeProfitPercent      float64 `mapstructure:"take_profit_percent"`
	MaxLossPerTradePercent float64 `mapstructure:"max_loss_per_trade_percent"`
	BoardLot               int     `mapstructure:"board_lot"`
}

// ExecutionConfig holds portfolio-level execution gates.
type ExecutionConfig struct {
	MaxPositions           int     `mapstructure:"max_positions"`
	MaxPositionPercent     float64 `mapstructure:"max_position_percent"`
	MaxDailyCapitalPercent float64 `mapstructure:"max_daily_capital_percent"`
	AutoExecute            bool    `mapstructure:"auto_execute"`
}

// LoopConfig holds trading loop configuration.
type LoopConfig struct {
	ScanIntervalSecs       int     `mapstructure:"scan_interval_secs"`
	PriceCheckIntervalSecs int     `mapstructure:"price_check_interval_secs"`
	TrailingStop           bool    `mapstructure:"trailing_stop"`
	TrailingStopPercent    float64 `mapstructure:"trailing_stop_percent"`
	HardStopPercent        float64 `mapstructure:"hard_stop_percent"`
}

// StoreConfig holds durable store configuration.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// UIConfig holds UI-related configuration.
type UIConfig struct {
	ColorEnabled bool   `mapstructure:"color_enabled"`
	DateFormat   string `mapstructure:"date_format"`
	TimeFormat   string `mapstructure:"time_format"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/ashare-trader"
	}
	return filepath.Join(home, ".config", "ashare-trader")
}

// Default returns a Config populated with the standard defaults.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Trading.Mode == "" {
		cfg.Trading.Mode = "paper"
	}
	if cfg.Trading.InitialCapital == 0 {
		cfg.Trading.InitialCapital = 100000
	}
	if len(cfg.Trading.Timeframes) == 0 {
		cfg.Trading.Timeframes = []string{"1d"}
	}
	if cfg.Trading.DataDir == "" {
		cfg.Trading.DataDir = filepath.Join(DefaultConfigDir(), "data")
	}
	if cfg.Structure.MinAccumulationBars == 0 {
		cfg.Structure.MinAccumulationBars = 5
	}
	if cfg.Structure.ManipulationThreshold == 0 {
		cfg.Structure.ManipulationThreshold = 1.5
	}
	if cfg.Structure.ATRPeriod == 0 {
		cfg.Structure.ATRPeriod = 14
	}
	if cfg.Divergence.LookbackPeriod == 0 {
		cfg.Divergence.LookbackPeriod = 20
	}
	if cfg.Divergence.MinSwingSeparation == 0 {
		cfg.Divergence.MinSwingSeparation = 3
	}
	if cfg.Engine.SignalExpiryMinutes == 0 {
		cfg.Engine.SignalExpiryMinutes = 60
	}
	if cfg.Filter.MinStrength == "" {
		cfg.Filter.MinStrength = "medium"
	}
	if cfg.Filter.MaxSignalsPerSymbol == 0 {
		cfg.Filter.MaxSignalsPerSymbol = 1
	}
	if cfg.Filter.DedupWindowSecs == 0 {
		cfg.Filter.DedupWindowSecs = 300
	}
	if cfg.Validator.MinRiskReward == 0 {
		cfg.Validator.MinRiskReward = 1.5
	}
	if cfg.Validator.MaxRiskPercent == 0 {
		cfg.Validator.MaxRiskPercent = 5.0
	}
	if cfg.Validator.MinTimeframeAlignment == 0 {
		cfg.Validator.MinTimeframeAlignment = 2
	}
	if cfg.Risk.StopLossPercent == 0 {
		cfg.Risk.StopLossPercent = 5.0
	}
	if cfg.Risk.TakeProfitPercent == 0 {
		cfg.Risk.TakeProfitPercent = 10.0
	}
	if cfg.Risk.MaxLossPerTradePercent == 0 {
		cfg.Risk.MaxLossPerTradePercent = 2.0
	}
	if cfg.Risk.BoardLot == 0 {
		cfg.Risk.BoardLot = 100
	}
	if cfg.Execution.MaxPositions == 0 {
		cfg.Execution.MaxPositions = 5
	}
	if cfg.Execution.MaxPositionPercent == 0 {
		cfg.Execution.MaxPositionPercent = 20.0
	}
	if cfg.Execution.MaxDailyCapitalPercent == 0 {
		cfg.Execution.MaxDailyCapitalPercent = 50.0
	}
	if cfg.Loop.ScanIntervalSecs == 0 {
		cfg.Loop.ScanIntervalSecs = 5
	}
	if cfg.Loop.PriceCheckIntervalSecs == 0 {
		cfg.Loop.PriceCheckIntervalSecs = 1
	}
	if cfg.Loop.TrailingStopPercent == 0 {
		cfg.Loop.TrailingStopPercent = 3.0
	}
	if cfg.Loop.HardStopPercent == 0 {
		cfg.Loop.HardStopPercent = 5.0
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = filepath.Join(DefaultConfigDir(), "trader.db")
	}
	if cfg.UI.DateFormat == "" {
		cfg.UI.DateFormat = "2006-01-02"
	}
	if cfg.UI.TimeFormat == "" {
		cfg.UI.TimeFormat = "15:04:05"
	}
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{}

	if err := loadConfigFile(configDir, "config", cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadConfigFile(configDir, name string, target interface{}) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found, create template
			return createTemplateConfig(configDir, name)
		}
		return err
	}

	return v.Unmarshal(target)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TRADING_MODE"); v != "" {
		cfg.Trading.Mode = v
	}
	if v := os.Getenv("TRADER_DB_PATH"); v != "" {
		cfg.Store.Path = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Trading.Mode != "" && c.Trading.Mode != "live" && c.Trading.Mode != "paper" {
		return fmt.Errorf("invalid trading mode: %s (must be 'live' or 'paper')", c.Trading.Mode)
	}
	if c.Trading.InitialCapital < 0 {
		return fmt.Errorf("initial_capital must be non-negative")
	}
	if c.Structure.MinAccumulationBars < 3 {
		return fmt.Errorf("min_accumulation_bars must be at least 3")
	}
	if c.Structure.ManipulationThreshold <= 0 {
		return fmt.Errorf("manipulation_threshold must be positive")
	}
	if c.Divergence.LookbackPeriod < 5 {
		return fmt.Errorf("lookback_period must be at least 5")
	}
	if c.Validator.MinRiskReward < 0 {
		return fmt.Errorf("min_risk_reward must be non-negative")
	}
	if c.Validator.MaxRiskPercent <= 0 || c.Validator.MaxRiskPercent > 100 {
		return fmt.Errorf("max_risk_percent must be between 0 and 100")
	}
	if c.Risk.MaxLossPerTradePercent <= 0 || c.Risk.MaxLossPerTradePercent > 100 {
		return fmt.Errorf("max_loss_per_trade_percent must be between 0 and 100")
	}
	if c.Risk.BoardLot <= 0 {
		return fmt.Errorf("board_lot must be positive")
	}
	if c.Execution.MaxPositionPercent <= 0 || c.Execution.MaxPositionPercent > 100 {
		return fmt.Errorf("max_position_percent must be between 0 and 100")
	}
	if c.Execution.MaxDailyCapitalPercent <= 0 || c.Execution.MaxDailyCapitalPercent > 100 {
		return fmt.Errorf("max_daily_capital_percent must be between 0 and 100")
	}
	for _, p := range c.Trading.Pairs {
		if p.Primary == "" || p.Reference == "" {
			return fmt.Errorf("pair %q must name both primary and reference symbols", p.Name)
		}
	}
	return nil
}

// IsPaperMode returns true if paper trading mode is enabled.
func (c *Config) IsPaperMode() bool {
	return c.Trading.Mode == "paper"
}
