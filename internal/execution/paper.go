package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ashare-trader/internal/marketdata"
)

// PaperExecutor simulates immediate fills against the latest traded price.
type PaperExecutor struct {
	bars marketdata.BarSource

	mu        sync.RWMutex
	orders    map[string]*Order
	positions map[string]*Position // open positions keyed by symbol
	capital   float64
	available float64
}

// NewPaperExecutor creates a paper execution sink with the given capital.
func NewPaperExecutor(bars marketdata.BarSource, initialCapital float64) *PaperExecutor {
	return &PaperExecutor{
		bars:      bars,
		orders:    make(map[string]*Order),
		positions: make(map[string]*Position),
		capital:   initialCapital,
		available: initialCapital,
	}
}

// Name identifies the executor.
func (p *PaperExecutor) Name() string {
	return "paper"
}

// IsReady always reports true for simulation.
func (p *PaperExecutor) IsReady() bool {
	return true
}

// Execute simulates the request with an immediate full fill at the last
// traded price (or the limit price when given).
func (p *PaperExecutor) Execute(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error) {
	fillPrice := req.Price
	if fillPrice == 0 {
		last, err := p.bars.GetLastPrice(ctx, req.Symbol)
		if err != nil {
			return &ExecutionResult{
				Status:    ExecutionStatusFailed,
				Timestamp: time.Now(),
				Error:     err.Error(),
			}, err
		}
		fillPrice = last
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	orderType := OrderTypeMarket
	if req.Price > 0 {
		orderType = OrderTypeLimit
	}
	order := NewOrder(req.Symbol, req.Side, orderType, req.Quantity, req.Price)
	if err := order.Submit(); err != nil {
		return nil, err
	}

	cost := fillPrice * float64(req.Quantity)
	if req.Side == OrderSideBuy && cost > p.available {
		_ = order.Reject()
		p.orders[order.ID] = order
		return &ExecutionResult{
			OrderID:   order.ID,
			Status:    ExecutionStatusRejected,
			Timestamp: time.Now(),
			Error:     fmt.Sprintf("insufficient capital: need %.2f, have %.2f", cost, p.available),
		}, nil
	}

	if err := order.Fill(req.Quantity, fillPrice); err != nil {
		return nil, err
	}
	p.orders[order.ID] = order

	if req.Side == OrderSideBuy {
		p.available -= cost
	} else {
		p.available += cost
	}

	return &ExecutionResult{
		OrderID:      order.ID,
		Status:       ExecutionStatusFromOrder(order.Status),
		FillPrice:    order.AvgFillPrice,
		FillQuantity: order.FilledQuantity,
		Timestamp:    time.Now(),
	}, nil
}

// Cancel cancels a simulated order; filled orders cannot be cancelled.
func (p *PaperExecutor) Cancel(ctx context.Context, orderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	order, ok := p.orders[orderID]
	if !ok {
		return fmt.Errorf("unknown order: %s", orderID)
	}
	return order.Cancel()
}

// RecordPosition registers an open position in the simulated account.
func (p *PaperExecutor) RecordPosition(pos *Position) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.positions[pos.Symbol] = pos
}

// RemovePosition drops a position from the simulated account.
func (p *PaperExecutor) RemovePosition(symbol string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.positions, symbol)
}

// OpenPositions returns a snapshot of the simulated open positions.
func (p *PaperExecutor) OpenPositions(ctx context.Context) ([]*Position, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]*Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, pos)
	}
	return out, nil
}

// Account returns the simulated account snapshot.
func (p *PaperExecutor) Account(ctx context.Context) (*AccountInfo, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	positionsValue := 0.0
	for _, pos := range p.positions {
		positionsValue += pos.MarketValue()
	}

	return &AccountInfo{
		TotalCapital:     p.capital,
		AvailableCapital: p.available,
		PositionsValue:   positionsValue,
	}, nil
}
