package patterns

import (
	"math"
	"testing"
	"time"

	"ashare-trader/internal/models"
)

// consolidationCandles builds a 20-bar tight range between 9.8 and 10.2.
// The per-bar ranges stay small so the window qualifies and the ATR stays
// low enough for a modest spike to register as a breakout.
func consolidationCandles() []models.Candle {
	base := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	candles := make([]models.Candle, 0, 21)

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
		c.Symbol = "600000.SH"
		c.Timeframe = models.TimeframeD1
		c.Timestamp = base.Add(time.Duration(i) * 24 * time.Hour)
		c.Volume = 10000
		candles = append(candles, c)
	}

	return candles
}

func appendBar(candles []models.Candle, open, high, low, close float64) []models.Candle {
	last := candles[len(candles)-1]
	return append(candles, models.Candle{
		Symbol:    last.Symbol,
		Timeframe: last.Timeframe,
		Timestamp: last.Timestamp.Add(24 * time.Hour),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    10000,
	})
}

func TestStructureDetector_HighBreakoutYieldsShort(t *testing.T) {
	candles := consolidationCandles()
	// Spike through the range high, close back inside the range.
	candles = appendBar(candles, 10.00, 10.35, 9.98, 10.05)

	d := NewStructureDetector(DefaultStructureConfig())
	result := d.Detect(candles, "600000.SH", models.TimeframeD1)
	if result == nil {
		t.Fatal("expected a structure, got none")
	}

	if result.Direction != models.DirectionShort {
		t.Errorf("direction = %s, want SHORT", result.Direction)
	}
	if result.RangeHigh != 10.20 {
		t.Errorf("range high = %.2f, want 10.20", result.RangeHigh)
	}
	if result.RangeLow != 9.80 {
		t.Errorf("range low = %.2f, want 9.80", result.RangeLow)
	}
	if result.ManipulationExtreme != 10.35 {
		t.Errorf("manipulation extreme = %.2f, want 10.35", result.ManipulationExtreme)
	}
	if math.Abs(result.Midpoint-10.0) > 1e-9 {
		t.Errorf("midpoint = %.4f, want 10.0", result.Midpoint)
	}
	if result.StopLevel != 10.35 {
		t.Errorf("stop level = %.2f, want 10.35", result.StopLevel)
	}
	if !result.DistributionStarted {
		t.Error("expected distribution to have started")
	}
	if result.Phase != models.PhaseDistribution {
		t.Errorf("phase = %s, want DISTRIBUTION", result.Phase)
	}
	if result.IdealEntry >= result.ManipulationExtreme {
		t.Errorf("short entry %.4f should sit below the extreme %.2f", result.IdealEntry, result.ManipulationExtreme)
	}
	if result.AccumulationBars != 20 {
		t.Errorf("accumulation bars = %d, want 20", result.AccumulationBars)
	}
}

func TestStructureDetector_LowBreakoutYieldsLong(t *testing.T) {
	candles := consolidationCandles()
	// Spike through the range low, close back inside the range.
	candles = appendBar(candles, 10.00, 10.02, 9.65, 9.95)

	d := NewStructureDetector(DefaultStructureConfig())
	result := d.Detect(candles, "600000.SH", models.TimeframeD1)
	if result == nil {
		t.Fatal("expected a structure, got none")
	}

	if result.Direction != models.DirectionLong {
		t.Errorf("direction = %s, want LONG", result.Direction)
	}
	if result.ManipulationExtreme != 9.65 {
		t.Errorf("manipulation extreme = %.2f, want 9.65", result.ManipulationExtreme)
	}
	if result.IdealEntry <= result.ManipulationExtreme {
		t.Errorf("long entry %.4f should sit above the extreme %.2f", result.IdealEntry, result.ManipulationExtreme)
	}
}

func TestStructureDetector_NoBreakoutNoResult(t *testing.T) {
	candles := consolidationCandles()
	// One more quiet bar, no excursion beyond the range.
	candles = appendBar(candles, 9.99, 10.02, 9.96, 10.01)

	d := NewStructureDetector(DefaultStructureConfig())
	if result := d.Detect(candles, "600000.SH", models.TimeframeD1); result != nil {
		t.Errorf("expected no structure, got %+v", result)
	}
}

func TestStructureDetector_InsufficientData(t *testing.T) {
	candles := consolidationCandles()[:6]

	d := NewStructureDetector(DefaultStructureConfig())
	if result := d.Detect(candles, "600000.SH", models.TimeframeD1); result != nil {
		t.Errorf("expected no structure on short series, got %+v", result)
	}
}

func TestFindAccumulationRange_QualifyingWindow(t *testing.T) {
	candles := consolidationCandles()
	candles = appendBar(candles, 10.00, 10.35, 9.98, 10.05)

	d := NewStructureDetector(DefaultStructureConfig())
	accRange := d.findAccumulationRange(candles)
	if accRange == nil {
		t.Fatal("expected a qualifying consolidation window")
	}
	if accRange.high != 10.20 || accRange.low != 9.80 {
		t.Errorf("window = [%.2f, %.2f], want [9.80, 10.20]", accRange.low, accRange.high)
	}
	if accRange.endIndex != 20 {
		t.Errorf("end index = %d, want 20", accRange.endIndex)
	}
}

func TestCalculateATR(t *testing.T) {
	tests := []struct {
		name    string
		candles []models.Candle
		period  int
		want    float64
	}{
		{
			name: "short series falls back to last range",
			candles: []models.Candle{
				{Open: 10, High: 10.5, Low: 9.5, Close: 10.2},
				{Open: 10.2, High: 10.6, Low: 10.0, Close: 10.4},
			},
			period: 14,
			want:   0.6,
		},
		{
			name: "flat series",
			candles: func() []models.Candle {
				var cs []models.Candle
				for i := 0; i < 16; i++ {
					cs = append(cs, models.Candle{Open: 10, High: 10.1, Low: 9.9, Close: 10})
				}
				return cs
			}(),
			period: 14,
			want:   0.2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calculateATR(tt.candles, tt.period)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ATR = %.4f, want %.4f", got, tt.want)
			}
		})
	}
}
