package signal

import (
	"fmt"
	"strings"
	"time"

	"ashare-trader/internal/models"
)

// maxSignalAge is the freshness cutoff applied by the validator.
const maxSignalAge = 30 * time.Minute

// ValidatorConfig holds the acceptance thresholds for candidate signals.
type ValidatorConfig struct {
	MinRiskReward         float64
	MaxRiskPercent        float64
	RequireStructure      bool
	RequireDivergence     bool
	MinTimeframeAlignment int
}

// DefaultValidatorConfig returns the standard validator thresholds.
func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		MinRiskReward:         1.5,
		MaxRiskPercent:        5.0,
		RequireStructure:      false,
		RequireDivergence:     false,
		MinTimeframeAlignment: 2,
	}
}

// Check is one named validation criterion with its outcome and weight.
type Check struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Weight int    `json:"weight"`
}

// ValidationResult is the outcome of validating one candidate signal.
type ValidationResult struct {
	SignalID string  `json:"signal_id"`
	Valid    bool    `json:"valid"`
	Score    float64 `json:"score"`
	Checks   []Check `json:"checks"`
	Reason   string  `json:"reason"`
}

// Validator applies weighted multi-criteria acceptance rules to candidate
// signals.
type Validator struct {
	cfg ValidatorConfig
}

// NewValidator creates a validator with the given thresholds.
func NewValidator(cfg ValidatorConfig) *Validator {
	return &Validator{cfg: cfg}
}

// Validate runs the seven weighted checks. Every applicable check must pass
// for the signal to be valid; the score is diagnostic only.
func (v *Validator) Validate(sig *models.TradingSignal) *ValidationResult {
	checks := []Check{
		{
			Name:   "Risk/Reward",
			Passed: sig.RiskReward() >= v.cfg.MinRiskReward,
			Weight: 25,
		},
		{
			Name:   "Risk Percentage",
			Passed: sig.RiskPercent() > 0 && sig.RiskPercent() <= v.cfg.MaxRiskPercent,
			Weight: 20,
		},
		{
			Name:   "Signal Strength",
			Passed: sig.Strength >= models.StrengthMedium,
			Weight: 15,
		},
		{
			Name:   "Timeframe Alignment",
			Passed: len(sig.TimeframeAlignment) >= v.cfg.MinTimeframeAlignment,
			Weight: 15,
		},
		{
			Name:   "Structure",
			Passed: !v.cfg.RequireStructure || sig.Structure != nil,
			Weight: 10,
		},
		{
			Name:   "Divergence",
			Passed: !v.cfg.RequireDivergence || sig.Divergence != nil,
			Weight: 10,
		},
		{
			Name:   "Freshness",
			Passed: sig.IsFresh(maxSignalAge),
			Weight: 5,
		},
	}

	totalWeight := 0
	passedWeight := 0
	var failed []string
	for _, c := range checks {
		totalWeight += c.Weight
		if c.Passed {
			passedWeight += c.Weight
		} else {
			failed = append(failed, c.Name)
		}
	}

	score := float64(passedWeight) / float64(totalWeight) * 100
	valid := len(failed) == 0

	reason := fmt.Sprintf("Signal passed all checks (score: %.0f)", score)
	if !valid {
		reason = "Failed checks: " + strings.Join(failed, ", ")
	}

	return &ValidationResult{
		SignalID: sig.ID,
		Valid:    valid,
		Score:    score,
		Checks:   checks,
		Reason:   reason,
	}
}
