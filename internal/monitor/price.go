// Package monitor watches open positions and drives the trading loop.
package monitor

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"ashare-trader/internal/execution"
	"ashare-trader/internal/marketdata"
)

// PriceMonitorConfig holds the trailing-stop parameters.
type PriceMonitorConfig struct {
	TrailPercent    float64 // trail below the high-water mark
	HardStopPercent float64 // floor below the entry price
}

// DefaultPriceMonitorConfig returns the standard trailing parameters.
func DefaultPriceMonitorConfig() PriceMonitorConfig {
	return PriceMonitorConfig{
		TrailPercent:    3.0,
		HardStopPercent: 5.0,
	}
}

// PriceCheckResult is the outcome of one price check for one position.
type PriceCheckResult struct {
	Symbol       string  `json:"symbol"`
	Price        float64 `json:"price"`
	StopHit      bool    `json:"stop_hit"`
	TargetHit    bool    `json:"target_hit"`
	TrailingStop float64 `json:"trailing_stop"`
	TrailHit     bool    `json:"trail_hit"`
}

// PriceMonitor polls last prices for open positions and evaluates exit
// triggers. One symbol's feed failure never blocks the others.
type PriceMonitor struct {
	cfg    PriceMonitorConfig
	bars   marketdata.BarSource
	engine *execution.Engine
	logger zerolog.Logger

	mu      sync.Mutex
	highest map[string]float64 // high-water mark per open symbol
}

// NewPriceMonitor creates a price monitor.
func NewPriceMonitor(cfg PriceMonitorConfig, bars marketdata.BarSource, engine *execution.Engine, logger zerolog.Logger) *PriceMonitor {
	return &PriceMonitor{
		cfg:     cfg,
		bars:    bars,
		engine:  engine,
		logger:  logger.With().Str("component", "price_monitor").Logger(),
		highest: make(map[string]float64),
	}
}

// CheckAll polls every open position once and returns the triggered checks.
func (m *PriceMonitor) CheckAll(ctx context.Context) []PriceCheckResult {
	positions := m.engine.Positions()
	results := make([]PriceCheckResult, 0, len(positions))

	for _, pos := range positions {
		price, err := m.bars.GetLastPrice(ctx, pos.Symbol)
		if err != nil {
			m.logger.Warn().Err(err).Str("symbol", pos.Symbol).Msg("Price check skipped")
			continue
		}
		results = append(results, m.check(pos, price))
	}
	return results
}

// check evaluates one position against a fresh price.
func (m *PriceMonitor) check(pos *execution.Position, price float64) PriceCheckResult {
	pos.UpdatePrice(price)

	m.mu.Lock()
	high, seen := m.highest[pos.Symbol]
	if !seen || price > high {
		high = price
		m.highest[pos.Symbol] = high
	}
	m.mu.Unlock()

	// The trailing stop follows the high-water mark but never drops below
	// the hard floor under the entry price.
	trailing := high * (1 - m.cfg.TrailPercent/100)
	if floor := pos.EntryPrice * (1 - m.cfg.HardStopPercent/100); trailing < floor {
		trailing = floor
	}

	return PriceCheckResult{
		Symbol:       pos.Symbol,
		Price:        price,
		StopHit:      pos.IsStopLossHit(price),
		TargetHit:    pos.IsTakeProfitHit(price),
		TrailingStop: trailing,
		TrailHit:     price <= trailing && high > pos.EntryPrice,
	}
}

// Forget drops the high-water mark for a closed symbol.
func (m *PriceMonitor) Forget(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.highest, symbol)
}
