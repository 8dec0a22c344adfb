// Package marketdata defines the interfaces through which the core consumes
// bar and auction data, plus an in-memory implementation for paper trading
// and tests.
package marketdata

import (
	"context"
	"sync"
	"time"

	"ashare-trader/internal/errors"
	"ashare-trader/internal/models"
)

// BarSource supplies chronological, deduplicated candle sequences.
type BarSource interface {
	// GetCandles returns up to limit of the most recent candles for the
	// symbol and timeframe, oldest first.
	GetCandles(ctx context.Context, symbol string, timeframe models.Timeframe, limit int) ([]models.Candle, error)
	// GetLastPrice returns the most recent traded price for the symbol.
	GetLastPrice(ctx context.Context, symbol string) (float64, error)
}

// AuctionSource supplies pre-open call auction data.
type AuctionSource interface {
	GetAuctionData(ctx context.Context, symbol string, date time.Time) (*models.AuctionData, error)
}

// MemorySource is a thread-safe in-memory BarSource and AuctionSource.
type MemorySource struct {
	mu       sync.RWMutex
	candles  map[string][]models.Candle // keyed by symbol|timeframe
	prices   map[string]float64
	auctions map[string]*models.AuctionData // keyed by symbol|date
}

// NewMemorySource creates an empty in-memory source.
func NewMemorySource() *MemorySource {
	return &MemorySource{
		candles:  make(map[string][]models.Candle),
		prices:   make(map[string]float64),
		auctions: make(map[string]*models.AuctionData),
	}
}

func candleKey(symbol string, timeframe models.Timeframe) string {
	return symbol + "|" + string(timeframe)
}

func auctionKey(symbol string, date time.Time) string {
	return symbol + "|" + date.Format("2006-01-02")
}

// SetCandles replaces the stored candles for a symbol and timeframe.
func (m *MemorySource) SetCandles(symbol string, timeframe models.Timeframe, candles []models.Candle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candles[candleKey(symbol, timeframe)] = candles
	if len(candles) > 0 {
		m.prices[symbol] = candles[len(candles)-1].Close
	}
}

// SetPrice sets the last traded price for a symbol.
func (m *MemorySource) SetPrice(symbol string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[symbol] = price
}

// SetAuctionData stores auction figures for a symbol and date.
func (m *MemorySource) SetAuctionData(data *models.AuctionData) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auctions[auctionKey(data.Symbol, data.Date)] = data
}

// GetCandles implements BarSource.
func (m *MemorySource) GetCandles(ctx context.Context, symbol string, timeframe models.Timeframe, limit int) ([]models.Candle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	candles, ok := m.candles[candleKey(symbol, timeframe)]
	if !ok {
		return nil, errors.NewDataError("candles", symbol, "no data loaded", errors.ErrDataUnavailable)
	}
	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}

	out := make([]models.Candle, len(candles))
	copy(out, candles)
	return out, nil
}

// GetLastPrice implements BarSource.
func (m *MemorySource) GetLastPrice(ctx context.Context, symbol string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	price, ok := m.prices[symbol]
	if !ok {
		return 0, errors.NewDataError("price", symbol, "no price loaded", errors.ErrDataUnavailable)
	}
	return price, nil
}

// GetAuctionData implements AuctionSource.
func (m *MemorySource) GetAuctionData(ctx context.Context, symbol string, date time.Time) (*models.AuctionData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.auctions[auctionKey(symbol, date)]
	if !ok {
		return nil, errors.NewDataError("auction", symbol, "no auction data", errors.ErrDataUnavailable)
	}
	cp := *data
	return &cp, nil
}
