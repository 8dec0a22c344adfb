// Package execution tracks order and position lifecycle and enforces
// settlement, sizing, and risk-compliance rules.
package execution

import (
	"time"

	"github.com/google/uuid"

	"ashare-trader/internal/errors"
)

// OrderSide represents the side of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderType represents the type of an order.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "PENDING"
	OrderStatusSubmitted       OrderStatus = "SUBMITTED"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusRejected        OrderStatus = "REJECTED"
	OrderStatusExpired         OrderStatus = "EXPIRED"
)

// IsTerminal reports whether the status admits no further transitions.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected, OrderStatusExpired:
		return true
	}
	return false
}

// Order represents a trading order. Mutated only through fill and cancel
// events; terminal once Filled/Cancelled/Rejected/Expired.
type Order struct {
	ID             string      `json:"id"`
	Symbol         string      `json:"symbol"`
	Side           OrderSide   `json:"side"`
	Type           OrderType   `json:"type"`
	Quantity       int         `json:"quantity"`
	Price          float64     `json:"price,omitempty"`      // limit price
	StopPrice      float64     `json:"stop_price,omitempty"` // protective stop
	Status         OrderStatus `json:"status"`
	FilledQuantity int         `json:"filled_quantity"`
	AvgFillPrice   float64     `json:"avg_fill_price"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	FilledAt       *time.Time  `json:"filled_at,omitempty"`

	// LegacyFillPricing records the latest fill price instead of the
	// volume-weighted average, for cross-checking against historical data.
	LegacyFillPricing bool `json:"-"`
}

// NewOrder creates a pending order.
func NewOrder(symbol string, side OrderSide, orderType OrderType, quantity int, price float64) *Order {
	now := time.Now()
	return &Order{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		Side:      side,
		Type:      orderType,
		Quantity:  quantity,
		Price:     price,
		Status:    OrderStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsWorking reports whether the order can still receive fills.
func (o *Order) IsWorking() bool {
	switch o.Status {
	case OrderStatusPending, OrderStatusSubmitted, OrderStatusPartiallyFilled:
		return true
	}
	return false
}

// Submit marks a pending order as submitted to the venue.
func (o *Order) Submit() error {
	if o.Status != OrderStatusPending {
		return errors.NewOrderError(o.ID, o.Symbol, "submit", "order is not pending", nil)
	}
	o.Status = OrderStatusSubmitted
	o.UpdatedAt = time.Now()
	return nil
}

// Fill applies a fill event. The total filled quantity can never exceed the
// order quantity; an overfill is rejected without mutating the order. The
// average fill price is volume-weighted unless LegacyFillPricing is set.
func (o *Order) Fill(quantity int, price float64) error {
	if quantity <= 0 {
		return errors.NewOrderError(o.ID, o.Symbol, "fill", "fill quantity must be positive", nil)
	}
	if !o.IsWorking() {
		return errors.NewOrderError(o.ID, o.Symbol, "fill", string(o.Status), errors.ErrOrderNotWorking)
	}
	if o.FilledQuantity+quantity > o.Quantity {
		return errors.NewOrderError(o.ID, o.Symbol, "fill", "fill would exceed order quantity", errors.ErrOverfill)
	}

	if o.LegacyFillPricing || o.FilledQuantity == 0 {
		o.AvgFillPrice = price
	} else {
		total := o.AvgFillPrice*float64(o.FilledQuantity) + price*float64(quantity)
		o.AvgFillPrice = total / float64(o.FilledQuantity+quantity)
	}
	o.FilledQuantity += quantity

	now := time.Now()
	o.UpdatedAt = now
	if o.FilledQuantity >= o.Quantity {
		o.Status = OrderStatusFilled
		o.FilledAt = &now
	} else {
		o.Status = OrderStatusPartiallyFilled
	}
	return nil
}

// Cancel cancels a working order.
func (o *Order) Cancel() error {
	if !o.IsWorking() {
		return errors.NewOrderError(o.ID, o.Symbol, "cancel", string(o.Status), errors.ErrOrderNotWorking)
	}
	o.Status = OrderStatusCancelled
	o.UpdatedAt = time.Now()
	return nil
}

// Reject marks a working order as rejected by the venue.
func (o *Order) Reject() error {
	if !o.IsWorking() {
		return errors.NewOrderError(o.ID, o.Symbol, "reject", string(o.Status), errors.ErrOrderNotWorking)
	}
	o.Status = OrderStatusRejected
	o.UpdatedAt = time.Now()
	return nil
}

// Expire marks a working order as expired.
func (o *Order) Expire() error {
	if !o.IsWorking() {
		return errors.NewOrderError(o.ID, o.Symbol, "expire", string(o.Status), errors.ErrOrderNotWorking)
	}
	o.Status = OrderStatusExpired
	o.UpdatedAt = time.Now()
	return nil
}

// RemainingQuantity returns the unfilled portion of the order.
func (o *Order) RemainingQuantity() int {
	return o.Quantity - o.FilledQuantity
}
