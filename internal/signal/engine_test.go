package signal

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ashare-trader/internal/analysis/patterns"
	"ashare-trader/internal/marketdata"
	"ashare-trader/internal/models"
)

// structureCandles builds a series with a tight 20-bar consolidation and a
// high-side false breakout, which the detector reads as a short setup.
func structureCandles(symbol string) []models.Candle {
	base := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	var candles []models.Candle
	for i := 0; i < 20; i++ {
		var c models.Candle
		switch {
		case i == 2:
			c = models.Candle{Open: 10.00, High: 10.20, Low: 9.98, Close: 10.02}
		case i == 4:
			c = models.Candle{Open: 10.00, High: 10.02, Low: 9.80, Close: 9.98}
		case i%2 == 0:
			c = models.Candle{Open: 9.99, High: 10.02, Low: 9.96, Close: 10.01}
		default:
			c = models.Candle{Open: 10.01, High: 10.04, Low: 9.98, Close: 9.99}
		}
		c.Symbol = symbol
		c.Timeframe = models.TimeframeD1
		c.Timestamp = base.Add(time.Duration(i) * 24 * time.Hour)
		candles = append(candles, c)
	}
	candles = append(candles, models.Candle{
		Symbol:    symbol,
		Timeframe: models.TimeframeD1,
		Timestamp: base.Add(20 * 24 * time.Hour),
		Open:      10.00, High: 10.35, Low: 9.98, Close: 10.05,
	})
	return candles
}

func newTestEngine(source marketdata.BarSource, cfg EngineConfig) *Engine {
	return NewEngine(
		cfg,
		patterns.NewStructureDetector(patterns.DefaultStructureConfig()),
		patterns.NewDivergenceDetector(patterns.DefaultDivergenceConfig()),
		source,
		zerolog.Nop(),
	)
}

func TestEngine_ScanEmitsStructureSignal(t *testing.T) {
	source := marketdata.NewMemorySource()
	source.SetCandles("600036.SH", models.TimeframeD1, structureCandles("600036.SH"))
	// Flat reference: no divergence either way.
	source.SetCandles("601398.SH", models.TimeframeD1, flatCandles(100, 50))

	cfg := EngineConfig{
		Timeframes:       []models.Timeframe{models.TimeframeD1},
		Pairs:            []models.Pair{{Primary: "600036.SH", Reference: "601398.SH", Name: "banks"}},
		RequireAlignment: false,
		SignalExpiry:     time.Hour,
	}
	engine := newTestEngine(source, cfg)

	signals := engine.Scan(context.Background())
	if len(signals) != 1 {
		t.Fatalf("signals = %d, want 1", len(signals))
	}

	sig := signals[0]
	if sig.Symbol != "600036.SH" {
		t.Errorf("symbol = %s", sig.Symbol)
	}
	if sig.Direction != models.DirectionShort {
		t.Errorf("direction = %s, want SHORT", sig.Direction)
	}
	if sig.TakeProfit != sig.Structure.Midpoint {
		t.Errorf("take profit = %.2f, want the range midpoint %.2f", sig.TakeProfit, sig.Structure.Midpoint)
	}
	if sig.StopLoss != sig.Structure.ManipulationExtreme {
		t.Errorf("stop = %.2f, want the manipulation extreme", sig.StopLoss)
	}
	if sig.ID == "" {
		t.Error("signal should carry an ID")
	}
	if engine.Registry().Len() != 1 {
		t.Errorf("registry size = %d, want 1", engine.Registry().Len())
	}

	// A second scan of the same data is suppressed as a duplicate.
	if again := engine.Scan(context.Background()); len(again) != 0 {
		t.Errorf("second scan emitted %d signals, want 0", len(again))
	}
}

func TestEngine_AlignmentRequiredSuppressesSingleTimeframe(t *testing.T) {
	source := marketdata.NewMemorySource()
	source.SetCandles("600036.SH", models.TimeframeD1, structureCandles("600036.SH"))
	source.SetCandles("601398.SH", models.TimeframeD1, flatCandles(100, 50))

	cfg := EngineConfig{
		Timeframes:       []models.Timeframe{models.TimeframeD1},
		Pairs:            []models.Pair{{Primary: "600036.SH", Reference: "601398.SH"}},
		RequireAlignment: true,
		SignalExpiry:     time.Hour,
	}
	engine := newTestEngine(source, cfg)

	if signals := engine.Scan(context.Background()); len(signals) != 0 {
		t.Errorf("signals = %d, want 0 when only one timeframe aligns", len(signals))
	}
}

func TestEngine_DataFailureSkipsPair(t *testing.T) {
	source := marketdata.NewMemorySource()
	// Only the second pair has data.
	source.SetCandles("000001.SZ", models.TimeframeD1, structureCandles("000001.SZ"))
	source.SetCandles("000002.SZ", models.TimeframeD1, flatCandles(100, 50))

	cfg := EngineConfig{
		Timeframes: []models.Timeframe{models.TimeframeD1},
		Pairs: []models.Pair{
			{Primary: "600036.SH", Reference: "601398.SH"},
			{Primary: "000001.SZ", Reference: "000002.SZ"},
		},
		RequireAlignment: false,
		SignalExpiry:     time.Hour,
	}
	engine := newTestEngine(source, cfg)

	signals := engine.Scan(context.Background())
	if len(signals) != 1 {
		t.Fatalf("signals = %d, want 1 (missing data must not abort the batch)", len(signals))
	}
	if signals[0].Symbol != "000001.SZ" {
		t.Errorf("symbol = %s, want 000001.SZ", signals[0].Symbol)
	}
}

func TestEngine_ConflictingDivergenceSuppresses(t *testing.T) {
	engine := newTestEngine(marketdata.NewMemorySource(), DefaultEngineConfig())

	structure := &models.StructureResult{
		Symbol:    "600036.SH",
		Timeframe: models.TimeframeD1,
		Direction: models.DirectionShort,
		Midpoint:  10.0,
	}
	conflicting := &models.DivergenceResult{Type: models.DivergenceBullish}

	pair := models.Pair{Primary: "600036.SH", Reference: "601398.SH"}
	if sig := engine.evaluate(pair, []*models.StructureResult{structure, structure}, conflicting); sig != nil {
		t.Errorf("expected suppression on conflicting divergence, got %+v", sig)
	}

	agreeing := &models.DivergenceResult{Type: models.DivergenceBearish}
	sig := engine.evaluate(pair, []*models.StructureResult{structure, structure}, agreeing)
	if sig == nil {
		t.Fatal("expected a signal when divergence agrees")
	}
	if sig.Divergence != agreeing {
		t.Error("signal should carry the divergence result")
	}
}

func TestEngine_StrengthScoring(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.RequireAlignment = false
	engine := newTestEngine(marketdata.NewMemorySource(), cfg)
	pair := models.Pair{Primary: "600036.SH", Reference: "601398.SH"}

	base := models.StructureResult{
		Symbol:    "600036.SH",
		Timeframe: models.TimeframeD1,
		Direction: models.DirectionLong,
		Midpoint:  10.0,
	}

	tests := []struct {
		name       string
		structures int
		divergence bool
		clear      bool
		distStart  bool
		want       models.SignalStrength
	}{
		{"single structure", 1, false, false, false, models.StrengthWeak},
		{"two aligned", 2, false, false, false, models.StrengthWeak},
		{"aligned with divergence", 2, true, false, false, models.StrengthMedium},
		{"full confluence", 3, true, true, true, models.StrengthVeryStrong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base
			s.ManipulationClear = tt.clear
			s.DistributionStarted = tt.distStart
			structures := make([]*models.StructureResult, tt.structures)
			for i := range structures {
				structures[i] = &s
			}
			var div *models.DivergenceResult
			if tt.divergence {
				div = &models.DivergenceResult{Type: models.DivergenceBullish}
			}

			sig := engine.evaluate(pair, structures, div)
			if sig == nil {
				t.Fatal("expected a signal")
			}
			if sig.Strength != tt.want {
				t.Errorf("strength = %s, want %s", sig.Strength, tt.want)
			}
		})
	}
}

// flatCandles builds n identical bars at the given price.
func flatCandles(n int, price float64) []models.Candle {
	base := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	candles := make([]models.Candle, n)
	for i := range candles {
		candles[i] = models.Candle{
			Timestamp: base.Add(time.Duration(i) * 24 * time.Hour),
			Open:      price,
			High:      price + 0.1,
			Low:       price - 0.1,
			Close:     price,
		}
	}
	return candles
}
