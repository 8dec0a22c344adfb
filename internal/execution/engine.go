package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ashare-trader/internal/errors"
	"ashare-trader/internal/models"
)

// EngineConfig holds portfolio-level execution gates.
type EngineConfig struct {
	MaxPositions           int
	MaxPositionPercent     float64
	MaxDailyCapitalPercent float64
	AutoExecute            bool
}

// DefaultEngineConfig returns the standard execution gates.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxPositions:           5,
		MaxPositionPercent:     20.0,
		MaxDailyCapitalPercent: 50.0,
		AutoExecute:            false,
	}
}

// Engine turns validated signals into sized execution requests and tracks
// the resulting positions against portfolio-level limits.
type Engine struct {
	cfg      EngineConfig
	risk     *RiskManager
	executor TradingExecutor
	calendar *MarketCalendar
	logger   zerolog.Logger

	mu            sync.RWMutex
	positions     map[string]*Position // open positions keyed by symbol
	totalCapital  float64
	available     float64
	dailyDeployed float64
	deployDate    string
}

// NewEngine creates an execution engine.
func NewEngine(cfg EngineConfig, risk *RiskManager, executor TradingExecutor, calendar *MarketCalendar, totalCapital float64, logger zerolog.Logger) *Engine {
	return &Engine{
		cfg:          cfg,
		risk:         risk,
		executor:     executor,
		calendar:     calendar,
		logger:       logger.With().Str("component", "execution_engine").Logger(),
		positions:    make(map[string]*Position),
		totalCapital: totalCapital,
		available:    totalCapital,
	}
}

// Risk exposes the engine's risk manager.
func (e *Engine) Risk() *RiskManager {
	return e.risk
}

// Calendar exposes the engine's market calendar.
func (e *Engine) Calendar() *MarketCalendar {
	return e.calendar
}

// CanOpenPosition runs the portfolio gates for a prospective position cost.
// Gates are ordered; the first failure is returned.
func (e *Engine) CanOpenPosition(symbol string, cost float64) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.canOpenLocked(symbol, cost)
}

func (e *Engine) canOpenLocked(symbol string, cost float64) error {
	if _, exists := e.positions[symbol]; exists {
		return errors.NewRiskError("duplicate_symbol", 1, 1, fmt.Sprintf("position already open in %s", symbol))
	}
	if len(e.positions) >= e.cfg.MaxPositions {
		return errors.NewRiskError("max_positions", float64(len(e.positions)), float64(e.cfg.MaxPositions), "concurrent position limit reached")
	}
	if limit := e.totalCapital * e.cfg.MaxPositionPercent / 100; cost > limit {
		return errors.NewRiskError("max_position_percent", cost, limit, "position exceeds per-position capital limit")
	}
	daily := e.dailyDeployedLocked()
	if limit := e.totalCapital * e.cfg.MaxDailyCapitalPercent / 100; daily+cost > limit {
		return errors.NewRiskError("max_daily_capital", daily+cost, limit, "daily capital deployment limit reached")
	}
	if cost > e.available {
		return errors.NewRiskError("available_capital", cost, e.available, "insufficient available capital")
	}
	return nil
}

func (e *Engine) dailyDeployedLocked() float64 {
	today := time.Now().In(e.calendar.Location()).Format("2006-01-02")
	if e.deployDate != today {
		return 0
	}
	return e.dailyDeployed
}

// OpenFromSignal sizes, gates, and executes a validated signal, returning
// the opened position. Rejections leave no position behind.
func (e *Engine) OpenFromSignal(ctx context.Context, sig *models.TradingSignal, sessionID string) (*Position, error) {
	size := e.risk.PositionSize(e.totalCapital, sig.EntryPrice, sig.StopLoss)
	if size == 0 {
		return nil, errors.NewRiskError("position_size", 0, float64(e.risk.cfg.BoardLot), "risk distance yields no tradable size")
	}

	e.mu.Lock()
	if check := e.risk.ValidateSize(size, sig.EntryPrice, e.available, e.totalCapital); check != SizeValid {
		e.mu.Unlock()
		return nil, errors.NewRiskError("size_validation", float64(size), 0, string(check))
	}
	cost := sig.EntryPrice * float64(size)
	if err := e.canOpenLocked(sig.Symbol, cost); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.mu.Unlock()

	req := ExecutionRequest{
		Side:       OrderSideBuy,
		Symbol:     sig.Symbol,
		Quantity:   size,
		StopLoss:   sig.StopLoss,
		TakeProfit: sig.TakeProfit,
		Reason:     fmt.Sprintf("signal %s (%s)", sig.ID, sig.Strength),
	}
	result, err := e.executor.Execute(ctx, req)
	if err != nil {
		return nil, errors.NewExecutionError(sig.Symbol, string(req.Side), "execution sink error", err)
	}
	if result.Status != ExecutionStatusFilled && result.Status != ExecutionStatusPartiallyFilled {
		return nil, errors.NewExecutionError(sig.Symbol, string(req.Side), result.Error, nil)
	}

	pos := NewPosition(sessionID, sig.Symbol, result.FillQuantity, result.FillPrice, sig.StopLoss, sig.TakeProfit, e.calendar)

	e.mu.Lock()
	filled := result.FillPrice * float64(result.FillQuantity)
	e.available -= filled
	today := time.Now().In(e.calendar.Location()).Format("2006-01-02")
	if e.deployDate != today {
		e.deployDate = today
		e.dailyDeployed = 0
	}
	e.dailyDeployed += filled
	e.positions[pos.Symbol] = pos
	e.mu.Unlock()

	e.logger.Info().
		Str("symbol", pos.Symbol).
		Int("quantity", pos.Quantity).
		Float64("entry", pos.EntryPrice).
		Str("signal_id", sig.ID).
		Msg("Position opened")

	return pos, nil
}

// ClosePosition sells an open position and returns it closed. T+1: shares
// bought today cannot be sold until the next calendar day.
func (e *Engine) ClosePosition(ctx context.Context, symbol, reason string) (*Position, error) {
	e.mu.RLock()
	pos, ok := e.positions[symbol]
	e.mu.RUnlock()
	if !ok {
		return nil, errors.ErrPositionNotFound
	}
	if !pos.CanSellToday(e.calendar) {
		return nil, errors.NewRiskError("t1_settlement", 0, 1, "position cannot be sold on its entry date")
	}

	req := ExecutionRequest{
		Side:     OrderSideSell,
		Symbol:   symbol,
		Quantity: pos.Quantity,
		Reason:   reason,
	}
	result, err := e.executor.Execute(ctx, req)
	if err != nil {
		return nil, errors.NewExecutionError(symbol, string(req.Side), "execution sink error", err)
	}
	if result.Status != ExecutionStatusFilled && result.Status != ExecutionStatusPartiallyFilled {
		return nil, errors.NewExecutionError(symbol, string(req.Side), result.Error, nil)
	}

	pos.Close(result.FillPrice)

	e.mu.Lock()
	e.available += result.FillPrice * float64(result.FillQuantity)
	delete(e.positions, symbol)
	e.mu.Unlock()

	e.logger.Info().
		Str("symbol", symbol).
		Float64("exit", result.FillPrice).
		Float64("pnl", pos.RealizedPnL).
		Str("reason", reason).
		Msg("Position closed")

	return pos, nil
}

// AttachPosition registers an externally recovered position with the
// engine's tracking and capital accounting.
func (e *Engine) AttachPosition(pos *Position) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.positions[pos.Symbol] = pos
	e.available -= pos.EntryPrice * float64(pos.Quantity)
}

// Positions returns a snapshot of the open positions.
func (e *Engine) Positions() []*Position {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*Position, 0, len(e.positions))
	for _, pos := range e.positions {
		out = append(out, pos)
	}
	return out
}

// Position returns the open position for a symbol, or nil.
func (e *Engine) Position(symbol string) *Position {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.positions[symbol]
}

// AvailableCapital returns the uncommitted capital.
func (e *Engine) AvailableCapital() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.available
}
