package signal

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	"ashare-trader/internal/models"
)

func freshSignal() *models.TradingSignal {
	return &models.TradingSignal{
		ID:         uuid.NewString(),
		Symbol:     "600036.SH",
		Direction:  models.DirectionLong,
		Strength:   models.StrengthStrong,
		EntryPrice: 10.0,
		StopLoss:   9.7,  // 3% risk
		TakeProfit: 10.6, // 2:1 reward
		Timestamp:  time.Now(),
		Structure:  &models.StructureResult{},
		Divergence: &models.DivergenceResult{},
		TimeframeAlignment: []models.Timeframe{
			models.TimeframeD1, models.TimeframeH4,
		},
	}
}

func TestValidator_AllChecksPass(t *testing.T) {
	v := NewValidator(DefaultValidatorConfig())
	result := v.Validate(freshSignal())

	if !result.Valid {
		t.Fatalf("expected valid, got %q", result.Reason)
	}
	if math.Abs(result.Score-100) > 1e-9 {
		t.Errorf("score = %.1f, want 100", result.Score)
	}
	if len(result.Checks) != 7 {
		t.Errorf("checks = %d, want 7", len(result.Checks))
	}
}

func TestValidator_FailedCheckInvalidatesDespiteScore(t *testing.T) {
	v := NewValidator(DefaultValidatorConfig())

	sig := freshSignal()
	sig.Timestamp = time.Now().Add(-45 * time.Minute) // stale, lowest weight

	result := v.Validate(sig)
	if result.Valid {
		t.Fatal("a failed check must invalidate regardless of score")
	}
	// Only the 5-weight freshness check failed: 95/100.
	if math.Abs(result.Score-95) > 1e-9 {
		t.Errorf("score = %.1f, want 95", result.Score)
	}
	if result.Reason != "Failed checks: Freshness" {
		t.Errorf("reason = %q", result.Reason)
	}
}

func TestValidator_RiskRewardGate(t *testing.T) {
	v := NewValidator(DefaultValidatorConfig())

	sig := freshSignal()
	sig.TakeProfit = 10.3 // 1:1, below the 1.5 minimum

	result := v.Validate(sig)
	if result.Valid {
		t.Fatal("expected risk/reward gate to fail")
	}
	if math.Abs(result.Score-75) > 1e-9 {
		t.Errorf("score = %.1f, want 75", result.Score)
	}
}

func TestValidator_OptionalChecksOnlyWhenRequired(t *testing.T) {
	cfg := DefaultValidatorConfig()
	cfg.RequireStructure = true
	cfg.RequireDivergence = true
	v := NewValidator(cfg)

	sig := freshSignal()
	sig.Structure = nil
	sig.Divergence = nil

	result := v.Validate(sig)
	if result.Valid {
		t.Fatal("required structure and divergence should fail when absent")
	}

	// With requirements off, absence passes.
	relaxed := NewValidator(DefaultValidatorConfig())
	if res := relaxed.Validate(sig); !res.Valid {
		t.Errorf("expected valid without requirements, got %q", res.Reason)
	}
}

func TestValidator_RiskPercentageGate(t *testing.T) {
	v := NewValidator(DefaultValidatorConfig())

	sig := freshSignal()
	sig.StopLoss = 9.0  // 10% risk, above the 5% cap
	sig.TakeProfit = 12.0

	result := v.Validate(sig)
	if result.Valid {
		t.Fatal("expected risk percentage gate to fail")
	}
}

func TestMetrics_RecordsOutcomes(t *testing.T) {
	v := NewValidator(DefaultValidatorConfig())
	m := NewMetrics()

	good := freshSignal()
	stale := freshSignal()
	stale.Timestamp = time.Now().Add(-45 * time.Minute)

	m.Record(v.Validate(good))
	m.Record(v.Validate(stale))

	snap := m.Snapshot()
	if snap.Validated != 2 || snap.Accepted != 1 || snap.Rejected != 1 {
		t.Errorf("counters = %d/%d/%d, want 2/1/1", snap.Validated, snap.Accepted, snap.Rejected)
	}
	if snap.FailuresByCheck["Freshness"] != 1 {
		t.Errorf("freshness failures = %d, want 1", snap.FailuresByCheck["Freshness"])
	}
	if snap.Scores.Bucket75to100 != 2 {
		t.Errorf("75-100 bucket = %d, want 2", snap.Scores.Bucket75to100)
	}
}
