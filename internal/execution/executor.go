package execution

import (
	"context"
	"time"
)

// ExecutionStatus is the outcome state of an execution request.
type ExecutionStatus string

const (
	ExecutionStatusPending         ExecutionStatus = "PENDING"
	ExecutionStatusAccepted        ExecutionStatus = "ACCEPTED"
	ExecutionStatusPartiallyFilled ExecutionStatus = "PARTIALLY_FILLED"
	ExecutionStatusFilled          ExecutionStatus = "FILLED"
	ExecutionStatusRejected        ExecutionStatus = "REJECTED"
	ExecutionStatusCancelled       ExecutionStatus = "CANCELLED"
	ExecutionStatusFailed          ExecutionStatus = "FAILED"
)

// ExecutionStatusFromOrder maps an order status onto an execution status.
func ExecutionStatusFromOrder(s OrderStatus) ExecutionStatus {
	switch s {
	case OrderStatusPending:
		return ExecutionStatusPending
	case OrderStatusSubmitted:
		return ExecutionStatusAccepted
	case OrderStatusPartiallyFilled:
		return ExecutionStatusPartiallyFilled
	case OrderStatusFilled:
		return ExecutionStatusFilled
	case OrderStatusRejected:
		return ExecutionStatusRejected
	case OrderStatusCancelled, OrderStatusExpired:
		return ExecutionStatusCancelled
	default:
		return ExecutionStatusFailed
	}
}

// ExecutionRequest is the abstract order the core hands to an execution
// sink. Price zero means market.
type ExecutionRequest struct {
	Side       OrderSide `json:"side"`
	Symbol     string    `json:"symbol"`
	Quantity   int       `json:"quantity"`
	Price      float64   `json:"price,omitempty"`
	StopLoss   float64   `json:"stop_loss,omitempty"`
	TakeProfit float64   `json:"take_profit,omitempty"`
	Reason     string    `json:"reason,omitempty"`
}

// ExecutionResult is the sink's response to a request.
type ExecutionResult struct {
	OrderID       string          `json:"order_id"`
	BrokerOrderID string          `json:"broker_order_id,omitempty"`
	Status        ExecutionStatus `json:"status"`
	FillPrice     float64         `json:"fill_price,omitempty"`
	FillQuantity  int             `json:"fill_quantity,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
	Error         string          `json:"error,omitempty"`
}

// AccountInfo is a snapshot of the executing account.
type AccountInfo struct {
	TotalCapital     float64 `json:"total_capital"`
	AvailableCapital float64 `json:"available_capital"`
	PositionsValue   float64 `json:"positions_value"`
}

// TradingExecutor is the execution sink. The core is agnostic to whether
// the implementation is a simulator or a real venue adapter.
type TradingExecutor interface {
	Name() string
	IsReady() bool
	Execute(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error)
	Cancel(ctx context.Context, orderID string) error
	OpenPositions(ctx context.Context) ([]*Position, error)
	Account(ctx context.Context) (*AccountInfo, error)
}
