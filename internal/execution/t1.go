package execution

import (
	"fmt"
	"math"

	"ashare-trader/internal/models"
)

// Exchange microstructure constants.
const (
	// dailyLimitPercent is the exchange's daily price-limit band.
	dailyLimitPercent = 10.0
	// typicalGapPercent is the overnight gap assumed for expected-loss
	// estimates.
	typicalGapPercent = 2.0
	// gapTolerancePercent is the overnight drop beyond which a position is
	// sold at the open regardless of its stop.
	gapTolerancePercent = 2.0
	// breakevenGainPercent is the overnight gain above which the stop moves
	// to breakeven.
	breakevenGainPercent = 3.0
)

// T1RiskConfig holds position-level risk thresholds.
type T1RiskConfig struct {
	StopLossPercent        float64
	TakeProfitPercent      float64
	MaxLossPerTradePercent float64
	MaxPositionPercent     float64
	BoardLot               int
}

// DefaultT1RiskConfig returns the standard risk thresholds.
func DefaultT1RiskConfig() T1RiskConfig {
	return T1RiskConfig{
		StopLossPercent:        5.0,
		TakeProfitPercent:      10.0,
		MaxLossPerTradePercent: 2.0,
		MaxPositionPercent:     20.0,
		BoardLot:               100,
	}
}

// RiskManager sizes positions and decides next-day handling under T+1.
type RiskManager struct {
	cfg T1RiskConfig
}

// NewRiskManager creates a risk manager with the given thresholds.
func NewRiskManager(cfg T1RiskConfig) *RiskManager {
	if cfg.BoardLot <= 0 {
		cfg.BoardLot = 100
	}
	return &RiskManager{cfg: cfg}
}

// PositionSize computes the share count for a trade: risk capital is
// MaxLossPerTradePercent of total capital, divided by the per-share risk,
// floored to a board-lot multiple. A zero or negative risk distance yields
// zero shares.
func (r *RiskManager) PositionSize(totalCapital, entry, stop float64) int {
	riskPerShare := entry - stop
	if riskPerShare <= 0 {
		return 0
	}
	riskCapital := totalCapital * r.cfg.MaxLossPerTradePercent / 100
	shares := int(riskCapital / riskPerShare)
	return shares - shares%r.cfg.BoardLot
}

// SizeCheck identifies the outcome of position-size validation.
type SizeCheck string

const (
	SizeValid               SizeCheck = "VALID"
	SizeInsufficientCapital SizeCheck = "INSUFFICIENT_CAPITAL"
	SizeExceedsLimit        SizeCheck = "EXCEEDS_LIMIT"
	SizeBelowMinimum        SizeCheck = "BELOW_MINIMUM"
	SizeInvalidLot          SizeCheck = "INVALID_LOT_SIZE"
)

// ValidateSize runs the four ordered sizing checks, short-circuiting on the
// first failure: capital, position limit, minimum lot, lot multiple.
func (r *RiskManager) ValidateSize(size int, price, availableCapital, totalCapital float64) SizeCheck {
	cost := price * float64(size)
	if cost > availableCapital {
		return SizeInsufficientCapital
	}
	if cost > totalCapital*r.cfg.MaxPositionPercent/100 {
		return SizeExceedsLimit
	}
	if size < r.cfg.BoardLot {
		return SizeBelowMinimum
	}
	if size%r.cfg.BoardLot != 0 {
		return SizeInvalidLot
	}
	return SizeValid
}

// NextDayAction is the decision for a held position at the next day's
// pre-open auction.
type NextDayAction string

const (
	ActionSellAtOpen        NextDayAction = "SELL_AT_OPEN"
	ActionHoldToTarget      NextDayAction = "HOLD_TO_TARGET"
	ActionHoldWithBreakeven NextDayAction = "HOLD_WITH_BREAKEVEN"
	ActionWaitAndSee        NextDayAction = "WAIT_AND_SEE"
)

// NextDayDecision resolves what to do with a position given the auction's
// indicative price, in strict priority order.
type NextDayDecision struct {
	Action         NextDayAction `json:"action"`
	ExpectedReturn float64       `json:"expected_return"`
	Rationale      string        `json:"rationale"`
}

// DecideNextDay evaluates the pre-open auction against the position.
func (r *RiskManager) DecideNextDay(pos *Position, auction *models.AuctionData) NextDayDecision {
	expectedReturn := 0.0
	if pos.EntryPrice != 0 {
		expectedReturn = (auction.ExpectedPrice - pos.EntryPrice) / pos.EntryPrice * 100
	}

	decision := func(action NextDayAction, rationale string) NextDayDecision {
		return NextDayDecision{
			Action:         action,
			ExpectedReturn: expectedReturn,
			Rationale:      rationale,
		}
	}

	switch {
	case expectedReturn < -r.cfg.StopLossPercent:
		return decision(ActionSellAtOpen, fmt.Sprintf("auction gap %.2f%% breaches the %.1f%% stop", expectedReturn, r.cfg.StopLossPercent))
	case expectedReturn >= r.cfg.TakeProfitPercent*0.8:
		return decision(ActionHoldToTarget, fmt.Sprintf("auction gap %.2f%% is near the %.1f%% target", expectedReturn, r.cfg.TakeProfitPercent))
	case expectedReturn < -gapTolerancePercent:
		return decision(ActionSellAtOpen, fmt.Sprintf("auction gap %.2f%% exceeds the %.1f%% tolerance", expectedReturn, gapTolerancePercent))
	case expectedReturn > breakevenGainPercent:
		return decision(ActionHoldWithBreakeven, fmt.Sprintf("auction gap %.2f%% allows a breakeven stop", expectedReturn))
	default:
		return decision(ActionWaitAndSee, fmt.Sprintf("auction gap %.2f%% is inside the decision bands", expectedReturn))
	}
}

// RiskReward summarizes a trade's risk and reward profile.
type RiskReward struct {
	RiskAmount    float64 `json:"risk_amount"`
	RewardAmount  float64 `json:"reward_amount"`
	Ratio         float64 `json:"ratio"`
	RiskPercent   float64 `json:"risk_percent"`
	RewardPercent float64 `json:"reward_percent"`
}

// CalculateRiskReward computes the profile for the given levels and size.
func (r *RiskManager) CalculateRiskReward(entry, stop, target float64, quantity int) RiskReward {
	riskPerShare := math.Abs(entry - stop)
	rewardPerShare := math.Abs(target - entry)

	rr := RiskReward{
		RiskAmount:   riskPerShare * float64(quantity),
		RewardAmount: rewardPerShare * float64(quantity),
	}
	if riskPerShare > 0 {
		rr.Ratio = rewardPerShare / riskPerShare
	}
	if entry > 0 {
		rr.RiskPercent = riskPerShare / entry * 100
		rr.RewardPercent = rewardPerShare / entry * 100
	}
	return rr
}

// GapRisk summarizes worst-case overnight exposure under the exchange's
// daily price limits.
type GapRisk struct {
	LimitDownPrice      float64 `json:"limit_down_price"`
	LimitUpPrice        float64 `json:"limit_up_price"`
	MaxLoss             float64 `json:"max_loss"`
	MaxGain             float64 `json:"max_gain"`
	ExpectedGapLoss     float64 `json:"expected_gap_loss"`
	StopBeyondLimitDown bool    `json:"stop_beyond_limit_down"`
}

// EvaluateGapRisk computes overnight exposure for a position. A stop at or
// beyond the limit-down price can never trigger in ordinary trading.
func (r *RiskManager) EvaluateGapRisk(pos *Position) GapRisk {
	limitDown := pos.EntryPrice * (1 - dailyLimitPercent/100)
	limitUp := pos.EntryPrice * (1 + dailyLimitPercent/100)
	qty := float64(pos.Quantity)

	return GapRisk{
		LimitDownPrice:      limitDown,
		LimitUpPrice:        limitUp,
		MaxLoss:             (pos.EntryPrice - limitDown) * qty,
		MaxGain:             (limitUp - pos.EntryPrice) * qty,
		ExpectedGapLoss:     pos.EntryPrice * typicalGapPercent / 100 * qty,
		StopBeyondLimitDown: pos.StopLoss <= limitDown,
	}
}
