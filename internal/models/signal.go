package models

import (
	"time"
)

// SignalStrength grades a trading signal by confluence.
type SignalStrength int

const (
	StrengthWeak SignalStrength = iota
	StrengthMedium
	StrengthStrong
	StrengthVeryStrong
)

// String returns the display name of the strength grade.
func (s SignalStrength) String() string {
	switch s {
	case StrengthWeak:
		return "Weak"
	case StrengthMedium:
		return "Medium"
	case StrengthStrong:
		return "Strong"
	case StrengthVeryStrong:
		return "VeryStrong"
	default:
		return "Unknown"
	}
}

// StrengthFromScore maps a confluence score to a strength grade.
func StrengthFromScore(score int) SignalStrength {
	switch {
	case score <= 2:
		return StrengthWeak
	case score <= 4:
		return StrengthMedium
	case score <= 6:
		return StrengthStrong
	default:
		return StrengthVeryStrong
	}
}

// StructurePhase identifies which phase of the accumulation/manipulation/
// distribution structure the price is currently in.
type StructurePhase string

const (
	PhaseAccumulation StructurePhase = "ACCUMULATION"
	PhaseManipulation StructurePhase = "MANIPULATION"
	PhaseDistribution StructurePhase = "DISTRIBUTION"
)

// StructureResult describes a detected accumulation/manipulation/distribution
// structure in a single instrument's candles.
type StructureResult struct {
	Symbol              string         `json:"symbol"`
	Timeframe           Timeframe      `json:"timeframe"`
	Direction           Direction      `json:"direction"`
	Phase               StructurePhase `json:"phase"`
	RangeHigh           float64        `json:"range_high"`
	RangeLow            float64        `json:"range_low"`
	Midpoint            float64        `json:"midpoint"`
	ManipulationExtreme float64        `json:"manipulation_extreme"`
	ManipulationClear   bool           `json:"manipulation_clear"`
	DistributionStarted bool           `json:"distribution_started"`
	IdealEntry          float64        `json:"ideal_entry"`
	StopLevel           float64        `json:"stop_level"`
	AccumulationBars    int            `json:"accumulation_bars"`
	DetectedAt          time.Time      `json:"detected_at"`
}

// DivergenceType classifies a cross-instrument divergence.
type DivergenceType string

const (
	DivergenceBullish DivergenceType = "BULLISH"
	DivergenceBearish DivergenceType = "BEARISH"
)

// Direction returns the trade direction a divergence implies.
func (d DivergenceType) Direction() Direction {
	if d == DivergenceBullish {
		return DirectionLong
	}
	return DirectionShort
}

// DivergenceResult describes a swing-point divergence between two
// correlated instruments.
type DivergenceResult struct {
	Type             DivergenceType `json:"type"`
	PrimarySymbol    string         `json:"primary_symbol"`
	ReferenceSymbol  string         `json:"reference_symbol"`
	PrimaryCurrent   float64        `json:"primary_current"`
	PrimaryPrevious  float64        `json:"primary_previous"`
	ReferenceCurrent float64        `json:"reference_current"`
	ReferencePrev    float64        `json:"reference_previous"`
	BarsAgo          int            `json:"bars_ago"`
	Strength         int            `json:"strength"` // 0-100
}

// TradingSignal is an actionable detection produced by the signal engine.
type TradingSignal struct {
	ID                 string            `json:"id"`
	Symbol             string            `json:"symbol"`
	Direction          Direction         `json:"direction"`
	Strength           SignalStrength    `json:"strength"`
	EntryPrice         float64           `json:"entry_price"`
	StopLoss           float64           `json:"stop_loss"`
	TakeProfit         float64           `json:"take_profit"`
	Timestamp          time.Time         `json:"timestamp"`
	Structure          *StructureResult  `json:"structure,omitempty"`
	Divergence         *DivergenceResult `json:"divergence,omitempty"`
	TimeframeAlignment []Timeframe       `json:"timeframe_alignment"`
	Notes              string            `json:"notes,omitempty"`
}

// RiskReward returns the reward-to-risk ratio of the signal, or 0 when the
// stop distance is degenerate.
func (s *TradingSignal) RiskReward() float64 {
	risk := abs(s.EntryPrice - s.StopLoss)
	if risk == 0 {
		return 0
	}
	return abs(s.TakeProfit-s.EntryPrice) / risk
}

// RiskPercent returns the stop distance as a percentage of entry.
func (s *TradingSignal) RiskPercent() float64 {
	if s.EntryPrice == 0 {
		return 0
	}
	return abs(s.EntryPrice-s.StopLoss) / s.EntryPrice * 100
}

// IsFresh reports whether the signal is younger than maxAge.
func (s *TradingSignal) IsFresh(maxAge time.Duration) bool {
	return time.Since(s.Timestamp) < maxAge
}
