package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# A-Share Trader Configuration

[trading]
# Trading mode: "live" or "paper"
mode = "paper"
# Starting capital in CNY
initial_capital = 100000.0
# Timeframes to scan, highest first
timeframes = ["1d"]
# Candle CSV directory; empty uses <config dir>/data
data_dir = ""

# Correlated instrument pairs to scan
[[trading.pairs]]
primary = "600036.SH"
reference = "601398.SH"
name = "banks"

[structure]
# Minimum bars in an accumulation window
min_accumulation_bars = 5
# Breakout threshold in ATR units
manipulation_threshold = 1.5
# ATR lookback period
atr_period = 14

[divergence]
# Bars to scan for swing points
lookback_period = 20
# Minimum bars between compared swings
min_swing_separation = 3

[engine]
# Require at least two timeframes to agree
require_alignment = true
# Active signal lifetime in minutes
signal_expiry_minutes = 60

[filter]
# Minimum strength to pass: weak, medium, strong, verystrong
min_strength = "medium"
# T+1 market: short entries are not tradable intraday
long_only = true
# Active signals allowed per symbol
max_signals_per_symbol = 1
# Suppress repeat signals within this window
dedup_window_secs = 300

[validator]
min_risk_reward = 1.5
max_risk_percent = 5.0
require_structure = false
require_divergence = false
min_timeframe_alignment = 2

[risk]
stop_loss_percent = 5.0
take_profit_percent = 10.0
max_loss_per_trade_percent = 2.0
board_lot = 100

[execution]
max_positions = 5
max_position_percent = 20.0
max_daily_capital_percent = 50.0
auto_execute = false

[loop]
scan_interval_secs = 5
price_check_interval_secs = 1
trailing_stop = false
trailing_stop_percent = 3.0
hard_stop_percent = 5.0

[store]
# SQLite database path; empty uses the config directory
path = ""

[ui]
color_enabled = true
date_format = "2006-01-02"
time_format = "15:04:05"
`

func createTemplateConfig(configDir, name string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name+".toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return fmt.Errorf("config file not found, created template at %s", path)
}
