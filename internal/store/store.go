// Package store provides data persistence implementations.
package store

import (
	"context"
	"time"
)

// SessionRecord is the persisted form of a trading session.
type SessionRecord struct {
	ID           string    `json:"id"`
	State        string    `json:"state"`
	Mode         string    `json:"mode"`             // "paper" or "live"
	Config       string    `json:"config,omitempty"` // serialized session config
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PositionRecord is the persisted form of a position.
type PositionRecord struct {
	ID           string     `json:"id"`
	SessionID    string     `json:"session_id"`
	Symbol       string     `json:"symbol"`
	Quantity     int        `json:"quantity"`
	EntryPrice   float64    `json:"entry_price"`
	CurrentPrice float64    `json:"current_price"`
	StopLoss     float64    `json:"stop_loss"`
	TakeProfit   float64    `json:"take_profit"`
	EntryTime    time.Time  `json:"entry_time"`
	EntryDate    string     `json:"entry_date"` // exchange-local "2006-01-02"
	ExitTime     *time.Time `json:"exit_time,omitempty"`
	Status       string     `json:"status"`
	RealizedPnL  float64    `json:"realized_pnl"`
}

// SignalRecord is the persisted form of an emitted signal.
type SignalRecord struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Direction  string    `json:"direction"`
	Strength   string    `json:"strength"`
	EntryPrice float64   `json:"entry_price"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
	Notes      string    `json:"notes,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// SessionFilter narrows session queries.
type SessionFilter struct {
	States []string
	Mode   string
	Limit  int
}

// SessionStore persists sessions, their positions, and emitted signals.
// State transitions are written here before they take effect in memory.
type SessionStore interface {
	// Sessions
	CreateSession(ctx context.Context, rec *SessionRecord) error
	GetSession(ctx context.Context, id string) (*SessionRecord, error)
	UpdateSessionState(ctx context.Context, id, state, errorMessage string) error
	GetSessions(ctx context.Context, filter SessionFilter) ([]*SessionRecord, error)
	DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Positions
	CreatePosition(ctx context.Context, rec *PositionRecord) error
	GetOpenPositions(ctx context.Context, sessionID string) ([]*PositionRecord, error)
	UpdatePositionPrice(ctx context.Context, id string, price float64) error
	ClosePosition(ctx context.Context, id string, exitTime time.Time, realizedPnL float64) error

	// Signals
	SaveSignal(ctx context.Context, rec *SignalRecord) error
	GetRecentSignals(ctx context.Context, limit int) ([]*SignalRecord, error)

	Close() error
}
