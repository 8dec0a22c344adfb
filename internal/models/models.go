// Package models provides domain models for the trading application.
package models

import (
	"fmt"
	"time"
)

// Timeframe represents a candle aggregation interval.
type Timeframe string

const (
	TimeframeM1  Timeframe = "1m"
	TimeframeM5  Timeframe = "5m"
	TimeframeM15 Timeframe = "15m"
	TimeframeM30 Timeframe = "30m"
	TimeframeH1  Timeframe = "1h"
	TimeframeH4  Timeframe = "4h"
	TimeframeD1  Timeframe = "1d"
	TimeframeW1  Timeframe = "1w"
)

// ParseTimeframe parses a timeframe string.
func ParseTimeframe(s string) (Timeframe, error) {
	switch Timeframe(s) {
	case TimeframeM1, TimeframeM5, TimeframeM15, TimeframeM30,
		TimeframeH1, TimeframeH4, TimeframeD1, TimeframeW1:
		return Timeframe(s), nil
	}
	return "", fmt.Errorf("unknown timeframe: %s", s)
}

// Minutes returns the interval length in minutes.
func (t Timeframe) Minutes() int {
	switch t {
	case TimeframeM1:
		return 1
	case TimeframeM5:
		return 5
	case TimeframeM15:
		return 15
	case TimeframeM30:
		return 30
	case TimeframeH1:
		return 60
	case TimeframeH4:
		return 240
	case TimeframeD1:
		return 1440
	case TimeframeW1:
		return 10080
	default:
		return 0
	}
}

// IsHigher reports whether t is a longer interval than other.
func (t Timeframe) IsHigher(other Timeframe) bool {
	return t.Minutes() > other.Minutes()
}

// Candle represents OHLCV data for a time period.
type Candle struct {
	Symbol    string    `json:"symbol"`
	Timeframe Timeframe `json:"timeframe"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
	Turnover  float64   `json:"turnover"`
}

// Body returns the absolute size of the candle body.
func (c Candle) Body() float64 {
	if c.Close >= c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// Range returns the high-low range of the candle.
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// Midpoint returns the middle of the candle's range.
func (c Candle) Midpoint() float64 {
	return (c.High + c.Low) / 2
}

// IsBullish reports whether the candle closed above its open.
func (c Candle) IsBullish() bool {
	return c.Close > c.Open
}

// TrueRange returns the true range of the candle given the previous close.
func (c Candle) TrueRange(prevClose float64) float64 {
	tr := c.Range()
	if d := abs(c.High - prevClose); d > tr {
		tr = d
	}
	if d := abs(c.Low - prevClose); d > tr {
		tr = d
	}
	return tr
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// Direction represents the trade direction implied by a signal.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// Pair couples a primary instrument with a correlated reference instrument.
type Pair struct {
	Primary     string `json:"primary"`
	Reference   string `json:"reference"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// AuctionData holds pre-open call auction figures for a symbol.
type AuctionData struct {
	Symbol        string    `json:"symbol"`
	Date          time.Time `json:"date"`
	ExpectedPrice float64   `json:"expected_price"`
	Volume        int64     `json:"volume"`
	ChangePercent float64   `json:"change_percent"`
	Timestamp     time.Time `json:"timestamp"`
}

// SwingPoint marks a local price extremum relative to its neighboring bars.
type SwingPoint struct {
	Index     int       `json:"index"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}
