package execution

import (
	"time"

	"github.com/google/uuid"
)

// PositionStatus represents the lifecycle state of a position.
type PositionStatus string

const (
	PositionStatusPending PositionStatus = "PENDING"
	PositionStatusOpen    PositionStatus = "OPEN"
	PositionStatusClosed  PositionStatus = "CLOSED"
)

// Position represents shares held from a filled order. EntryDate is the
// exchange-local calendar date of entry and never changes afterwards.
type Position struct {
	ID           string         `json:"id"`
	SessionID    string         `json:"session_id"`
	Symbol       string         `json:"symbol"`
	Quantity     int            `json:"quantity"`
	EntryPrice   float64        `json:"entry_price"`
	CurrentPrice float64        `json:"current_price"`
	StopLoss     float64        `json:"stop_loss"`
	TakeProfit   float64        `json:"take_profit"`
	EntryTime    time.Time      `json:"entry_time"`
	EntryDate    time.Time      `json:"entry_date"` // exchange-local midnight
	ExitTime     *time.Time     `json:"exit_time,omitempty"`
	Status       PositionStatus `json:"status"`
	RealizedPnL  float64        `json:"realized_pnl"`
}

// NewPosition opens a position from a fill, recording the exchange-local
// entry date for settlement checks.
func NewPosition(sessionID, symbol string, quantity int, entryPrice, stopLoss, takeProfit float64, calendar *MarketCalendar) *Position {
	now := time.Now()
	return &Position{
		ID:           uuid.NewString(),
		SessionID:    sessionID,
		Symbol:       symbol,
		Quantity:     quantity,
		EntryPrice:   entryPrice,
		CurrentPrice: entryPrice,
		StopLoss:     stopLoss,
		TakeProfit:   takeProfit,
		EntryTime:    now,
		EntryDate:    calendar.LocalDate(now),
		Status:       PositionStatusOpen,
	}
}

// CanSellToday reports whether selling is permitted under T+1: only when
// the current exchange-local calendar date is strictly later than the entry
// date, independent of time-of-day.
func (p *Position) CanSellToday(calendar *MarketCalendar) bool {
	return p.CanSellAt(time.Now(), calendar)
}

// CanSellAt is CanSellToday evaluated at an arbitrary instant.
func (p *Position) CanSellAt(now time.Time, calendar *MarketCalendar) bool {
	return calendar.LocalDate(now).After(p.EntryDate)
}

// UpdatePrice records the latest traded price.
func (p *Position) UpdatePrice(price float64) {
	p.CurrentPrice = price
}

// UnrealizedPnL returns the open profit or loss at the current price.
func (p *Position) UnrealizedPnL() float64 {
	return (p.CurrentPrice - p.EntryPrice) * float64(p.Quantity)
}

// UnrealizedPnLPercent returns the open return as a percentage of entry.
func (p *Position) UnrealizedPnLPercent() float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	return (p.CurrentPrice - p.EntryPrice) / p.EntryPrice * 100
}

// IsStopLossHit reports whether the price has reached the stop.
func (p *Position) IsStopLossHit(price float64) bool {
	return p.StopLoss > 0 && price <= p.StopLoss
}

// IsTakeProfitHit reports whether the price has reached the target.
func (p *Position) IsTakeProfitHit(price float64) bool {
	return p.TakeProfit > 0 && price >= p.TakeProfit
}

// MarketValue returns the position's value at the current price.
func (p *Position) MarketValue() float64 {
	return p.CurrentPrice * float64(p.Quantity)
}

// Close marks the position closed at the given price.
func (p *Position) Close(price float64) {
	now := time.Now()
	p.CurrentPrice = price
	p.RealizedPnL = (price - p.EntryPrice) * float64(p.Quantity)
	p.ExitTime = &now
	p.Status = PositionStatusClosed
}
