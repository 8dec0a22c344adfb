package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property: for any valid position data, persisting a position and reading
// it back through the open-positions query produces equivalent data.
func TestProperty_PositionRoundTripConsistency(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "positions_property.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	symbols := []string{"600036.SH", "601398.SH", "600519.SH", "000001.SZ", "000651.SZ", "300750.SZ"}

	var seq int64

	properties.Property("Position round-trip: create then list produces equivalent data", prop.ForAll(
		func(symbolIdx, lots int, entryPrice, stopPct float64) bool {
			seq++
			sessionID := fmt.Sprintf("sess-%d", seq)
			if err := store.CreateSession(ctx, &SessionRecord{
				ID:        sessionID,
				State:     "RUNNING",
				Mode:      "paper",
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			}); err != nil {
				t.Logf("Failed to create session: %v", err)
				return false
			}

			entryTime := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
			original := &PositionRecord{
				ID:           fmt.Sprintf("pos-%d", seq),
				SessionID:    sessionID,
				Symbol:       symbols[symbolIdx%len(symbols)],
				Quantity:     lots * 100,
				EntryPrice:   entryPrice,
				CurrentPrice: entryPrice,
				StopLoss:     entryPrice * (1 - stopPct/100),
				TakeProfit:   entryPrice * (1 + 2*stopPct/100),
				EntryTime:    entryTime,
				EntryDate:    entryTime.Format("2006-01-02"),
				Status:       "OPEN",
			}
			if err := store.CreatePosition(ctx, original); err != nil {
				t.Logf("Failed to create position: %v", err)
				return false
			}

			retrieved, err := store.GetOpenPositions(ctx, sessionID)
			if err != nil {
				t.Logf("Failed to list positions: %v", err)
				return false
			}
			if len(retrieved) != 1 {
				t.Logf("Count mismatch: expected 1, got %d", len(retrieved))
				return false
			}
			got := retrieved[0]

			return got.ID == original.ID &&
				got.Symbol == original.Symbol &&
				got.Quantity == original.Quantity &&
				floatEqual(got.EntryPrice, original.EntryPrice, 1e-6) &&
				floatEqual(got.StopLoss, original.StopLoss, 1e-6) &&
				floatEqual(got.TakeProfit, original.TakeProfit, 1e-6) &&
				got.EntryDate == original.EntryDate &&
				got.EntryTime.Equal(original.EntryTime) &&
				got.Status == "OPEN" &&
				got.ExitTime == nil
		},
		gen.IntRange(0, len(symbols)-1),
		gen.IntRange(1, 100),
		gen.Float64Range(1.0, 500.0),
		gen.Float64Range(0.5, 10.0),
	))

	// Closed positions must drop out of the open-positions query.
	properties.Property("Closed positions are excluded from open listings", prop.ForAll(
		func(lots int, entryPrice, exitDelta float64) bool {
			seq++
			sessionID := fmt.Sprintf("sess-close-%d", seq)
			if err := store.CreateSession(ctx, &SessionRecord{
				ID:        sessionID,
				State:     "RUNNING",
				Mode:      "paper",
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			}); err != nil {
				return false
			}

			entryTime := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
			rec := &PositionRecord{
				ID:           fmt.Sprintf("pos-close-%d", seq),
				SessionID:    sessionID,
				Symbol:       "600036.SH",
				Quantity:     lots * 100,
				EntryPrice:   entryPrice,
				CurrentPrice: entryPrice,
				EntryTime:    entryTime,
				EntryDate:    entryTime.Format("2006-01-02"),
				Status:       "OPEN",
			}
			if err := store.CreatePosition(ctx, rec); err != nil {
				return false
			}

			pnl := exitDelta * float64(rec.Quantity)
			if err := store.ClosePosition(ctx, rec.ID, entryTime.AddDate(0, 0, 1), pnl); err != nil {
				return false
			}

			open, err := store.GetOpenPositions(ctx, sessionID)
			return err == nil && len(open) == 0
		},
		gen.IntRange(1, 100),
		gen.Float64Range(1.0, 500.0),
		gen.Float64Range(-5.0, 5.0),
	))

	properties.TestingRun(t)
}

// floatEqual compares two floats with a tolerance.
func floatEqual(a, b, tolerance float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}
