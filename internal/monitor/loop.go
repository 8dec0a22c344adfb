package monitor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"ashare-trader/internal/errors"
	"ashare-trader/internal/execution"
	"ashare-trader/internal/models"
	"ashare-trader/internal/session"
	"ashare-trader/internal/signal"
	"ashare-trader/internal/store"
)

// EventType classifies loop events.
type EventType string

const (
	EventSignal         EventType = "SIGNAL"
	EventSignalRejected EventType = "SIGNAL_REJECTED"
	EventPositionOpened EventType = "POSITION_OPENED"
	EventPositionClosed EventType = "POSITION_CLOSED"
	EventError          EventType = "ERROR"
)

// Event is a loop occurrence surfaced to observers.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	Symbol    string    `json:"symbol,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// LoopConfig holds the trading loop cadence and gates.
type LoopConfig struct {
	ScanInterval      time.Duration
	PriceInterval     time.Duration
	AutoExecute       bool
	IgnoreMarketHours bool // paper sessions may run outside exchange hours
}

// DefaultLoopConfig returns the standard cadence.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		ScanInterval:  5 * time.Second,
		PriceInterval: 1 * time.Second,
	}
}

// TradingLoop is the per-session work loop: it scans for signals on one
// ticker and checks position prices on a faster one. Pause and Stop take
// effect at tick boundaries, never mid-operation.
type TradingLoop struct {
	sessionID string
	cfg       LoopConfig

	scanner   *signal.Engine
	validator *signal.Validator
	filter    *signal.Filter
	metrics   *signal.Metrics
	executor  *execution.Engine
	prices    *PriceMonitor
	sessions  store.SessionStore
	calendar  *execution.MarketCalendar
	logger    zerolog.Logger

	paused  atomic.Bool
	stopped atomic.Bool
	quit    chan struct{}
	events  chan Event
}

// NewTradingLoop assembles a loop for one session.
func NewTradingLoop(
	sessionID string,
	cfg LoopConfig,
	scanner *signal.Engine,
	validator *signal.Validator,
	filter *signal.Filter,
	executor *execution.Engine,
	prices *PriceMonitor,
	sessions store.SessionStore,
	logger zerolog.Logger,
) *TradingLoop {
	return &TradingLoop{
		sessionID: sessionID,
		cfg:       cfg,
		scanner:   scanner,
		validator: validator,
		filter:    filter,
		metrics:   signal.NewMetrics(),
		executor:  executor,
		prices:    prices,
		sessions:  sessions,
		calendar:  executor.Calendar(),
		logger:    logger.With().Str("component", "trading_loop").Str("session_id", sessionID).Logger(),
		quit:      make(chan struct{}),
		events:    make(chan Event, 64),
	}
}

// Events exposes the loop's event stream. The channel is buffered; slow
// consumers lose events rather than stalling the loop.
func (l *TradingLoop) Events() <-chan Event {
	return l.events
}

// Metrics exposes the loop's validation metrics.
func (l *TradingLoop) Metrics() *signal.Metrics {
	return l.metrics
}

// Start runs the loop until Stop or context cancellation, returning nil on a
// clean shutdown. A failed durable write aborts the loop and is returned:
// once the store and the in-memory book disagree, the session must not keep
// trading on unconfirmed state.
func (l *TradingLoop) Start(ctx context.Context) error {
	scanTicker := time.NewTicker(l.cfg.ScanInterval)
	defer scanTicker.Stop()
	priceTicker := time.NewTicker(l.cfg.PriceInterval)
	defer priceTicker.Stop()

	l.logger.Info().Dur("scan_interval", l.cfg.ScanInterval).Msg("Trading loop started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.quit:
			return nil
		case <-scanTicker.C:
			if l.skipTick() {
				continue
			}
			if err := l.scanOnce(ctx); err != nil {
				l.logger.Error().Err(err).Msg("Trading loop aborting on persistence failure")
				l.emit(EventError, "", err.Error())
				return err
			}
		case <-priceTicker.C:
			if l.skipTick() {
				continue
			}
			if err := l.checkPricesOnce(ctx); err != nil {
				l.logger.Error().Err(err).Msg("Trading loop aborting on persistence failure")
				l.emit(EventError, "", err.Error())
				return err
			}
		}
	}
}

// Pause suspends work at the next tick boundary.
func (l *TradingLoop) Pause() {
	l.paused.Store(true)
	l.logger.Info().Msg("Trading loop paused")
}

// Resume lifts a pause.
func (l *TradingLoop) Resume() {
	l.paused.Store(false)
	l.logger.Info().Msg("Trading loop resumed")
}

// Stop ends the loop at the next tick boundary. Idempotent.
func (l *TradingLoop) Stop() {
	if l.stopped.CompareAndSwap(false, true) {
		close(l.quit)
	}
}

func (l *TradingLoop) skipTick() bool {
	if l.paused.Load() {
		return true
	}
	if !l.cfg.IgnoreMarketHours && !l.calendar.InTradingHours(time.Now()) {
		return true
	}
	return false
}

// scanOnce runs one signal scan and handles the emitted signals.
func (l *TradingLoop) scanOnce(ctx context.Context) error {
	for _, sig := range l.scanner.Scan(ctx) {
		if err := l.handleSignal(ctx, sig); err != nil {
			return err
		}
	}
	return nil
}

func (l *TradingLoop) handleSignal(ctx context.Context, sig *models.TradingSignal) error {
	result := l.validator.Validate(sig)
	l.metrics.Record(result)
	if !result.Valid {
		l.logger.Debug().Str("signal_id", sig.ID).Str("reason", result.Reason).Msg("Signal rejected by validation")
		l.emit(EventSignalRejected, sig.Symbol, result.Reason)
		return nil
	}
	if ok, reason := l.filter.Accept(sig); !ok {
		l.logger.Debug().Str("signal_id", sig.ID).Str("reason", reason).Msg("Signal rejected by filter")
		l.emit(EventSignalRejected, sig.Symbol, reason)
		return nil
	}

	if err := l.sessions.SaveSignal(ctx, &store.SignalRecord{
		ID:         sig.ID,
		Symbol:     sig.Symbol,
		Direction:  string(sig.Direction),
		Strength:   sig.Strength.String(),
		EntryPrice: sig.EntryPrice,
		StopLoss:   sig.StopLoss,
		TakeProfit: sig.TakeProfit,
		Notes:      sig.Notes,
		Timestamp:  sig.Timestamp,
	}); err != nil {
		return errors.Wrapf(err, "persist signal %s", sig.ID)
	}
	l.emit(EventSignal, sig.Symbol, sig.Notes)

	if !l.cfg.AutoExecute {
		return nil
	}
	// Spot trading cannot short.
	if sig.Direction != models.DirectionLong {
		l.filter.Release(sig.Symbol)
		return nil
	}

	pos, err := l.executor.OpenFromSignal(ctx, sig, l.sessionID)
	if err != nil {
		l.logger.Warn().Err(err).Str("signal_id", sig.ID).Msg("Signal not executed")
		l.filter.Release(sig.Symbol)
		l.emit(EventError, sig.Symbol, err.Error())
		return nil
	}
	// An open position the store does not know about would be lost on
	// restart. Refusing to continue is the only safe option.
	if err := l.sessions.CreatePosition(ctx, session.RecordFromPosition(pos)); err != nil {
		return errors.Wrapf(err, "persist position %s", pos.ID)
	}
	l.scanner.Registry().Remove(sig.ID)
	l.emit(EventPositionOpened, pos.Symbol, sig.ID)
	return nil
}

// checkPricesOnce polls open positions and closes any with a triggered exit.
func (l *TradingLoop) checkPricesOnce(ctx context.Context) error {
	for _, check := range l.prices.CheckAll(ctx) {
		pos := l.executor.Position(check.Symbol)
		if pos == nil {
			continue
		}
		if err := l.sessions.UpdatePositionPrice(ctx, pos.ID, check.Price); err != nil {
			// A recovered position may predate its store record; skip it.
			if errors.Is(err, errors.ErrPositionNotFound) {
				l.logger.Debug().Str("symbol", check.Symbol).Msg("No store record for position, price not persisted")
			} else {
				return errors.Wrapf(err, "persist price for %s", pos.ID)
			}
		}

		var reason string
		switch {
		case check.StopHit:
			reason = "stop_loss"
		case check.TargetHit:
			reason = "take_profit"
		case check.TrailHit:
			reason = "trailing_stop"
		default:
			continue
		}
		if err := l.closePosition(ctx, check.Symbol, reason); err != nil {
			return err
		}
	}
	return nil
}

func (l *TradingLoop) closePosition(ctx context.Context, symbol, reason string) error {
	pos, err := l.executor.ClosePosition(ctx, symbol, reason)
	if err != nil {
		// Positions opened today stay held until settlement clears.
		l.logger.Debug().Err(err).Str("symbol", symbol).Str("reason", reason).Msg("Close deferred")
		return nil
	}
	if err := l.sessions.ClosePosition(ctx, pos.ID, *pos.ExitTime, pos.RealizedPnL); err != nil {
		return errors.Wrapf(err, "persist close of %s", pos.ID)
	}
	l.prices.Forget(symbol)
	l.filter.Release(symbol)
	l.emit(EventPositionClosed, symbol, reason)
	return nil
}

// emit publishes an event without ever blocking the loop.
func (l *TradingLoop) emit(eventType EventType, symbol, message string) {
	select {
	case l.events <- Event{
		Type:      eventType,
		SessionID: l.sessionID,
		Symbol:    symbol,
		Message:   message,
		Timestamp: time.Now(),
	}:
	default:
	}
}
