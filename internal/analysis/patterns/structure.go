package patterns

import (
	"time"

	"ashare-trader/internal/models"
)

// StructureConfig holds the thresholds for accumulation/manipulation/
// distribution detection. Passed by value; detection is side-effect-free.
type StructureConfig struct {
	MinAccumulationBars   int
	ManipulationThreshold float64 // breakout threshold in ATR units
	ATRPeriod             int
}

// DefaultStructureConfig returns the standard detector thresholds.
func DefaultStructureConfig() StructureConfig {
	return StructureConfig{
		MinAccumulationBars:   5,
		ManipulationThreshold: 1.5,
		ATRPeriod:             14,
	}
}

const (
	// maxSearchBars bounds the consolidation search to the most recent bars.
	maxSearchBars = 50
	// maxWindowSize is the largest accumulation window considered.
	maxWindowSize = 20
	// clearMultiple scales the breakout threshold for the "clear" flag.
	clearMultiple = 1.5
	// retraceBand is the overshoot tolerance past the midpoint, as a
	// fraction of the accumulation range.
	retraceBand = 0.25
	// entryOffsetATR offsets the ideal entry from the extreme, in ATR units.
	entryOffsetATR = 0.5
)

// StructureDetector finds accumulation/manipulation/distribution structures
// in a single instrument's candles.
type StructureDetector struct {
	cfg StructureConfig
}

// NewStructureDetector creates a detector with the given thresholds.
func NewStructureDetector(cfg StructureConfig) *StructureDetector {
	if cfg.MinAccumulationBars <= 0 {
		cfg.MinAccumulationBars = 5
	}
	if cfg.ManipulationThreshold <= 0 {
		cfg.ManipulationThreshold = 1.5
	}
	if cfg.ATRPeriod <= 0 {
		cfg.ATRPeriod = 14
	}
	return &StructureDetector{cfg: cfg}
}

// accumulationRange is a qualifying consolidation window.
type accumulationRange struct {
	high     float64
	low      float64
	bars     int
	endIndex int // index of the first bar after the window
}

// manipulation is a confirmed false breakout of the accumulation range.
type manipulation struct {
	brokeHigh bool
	extreme   float64
	clear     bool
}

// Detect searches the candles for a complete structure. It returns nil when
// no qualifying consolidation or no confirmed-and-reversed breakout exists;
// that is an ordinary "no structure yet", not an error.
func (d *StructureDetector) Detect(candles []models.Candle, symbol string, timeframe models.Timeframe) *models.StructureResult {
	if len(candles) < d.cfg.MinAccumulationBars+3 {
		return nil
	}

	atr := calculateATR(candles, d.cfg.ATRPeriod)
	if atr <= 0 {
		return nil
	}

	accRange := d.findAccumulationRange(candles)
	if accRange == nil {
		return nil
	}

	manip := d.findManipulation(candles[accRange.endIndex:], accRange, atr)
	if manip == nil {
		return nil
	}

	// A high break anticipates a reversal down, a low break up.
	direction := models.DirectionLong
	if manip.brokeHigh {
		direction = models.DirectionShort
	}

	midpoint := (accRange.high + accRange.low) / 2
	distribution := checkDistribution(candles[len(candles)-1], accRange, manip, midpoint)

	phase := models.PhaseManipulation
	if distribution {
		phase = models.PhaseDistribution
	}

	entry := manip.extreme + atr*entryOffsetATR
	if direction == models.DirectionShort {
		entry = manip.extreme - atr*entryOffsetATR
	}

	return &models.StructureResult{
		Symbol:              symbol,
		Timeframe:           timeframe,
		Direction:           direction,
		Phase:               phase,
		RangeHigh:           accRange.high,
		RangeLow:            accRange.low,
		Midpoint:            midpoint,
		ManipulationExtreme: manip.extreme,
		ManipulationClear:   manip.clear,
		DistributionStarted: distribution,
		IdealEntry:          entry,
		StopLevel:           manip.extreme,
		AccumulationBars:    accRange.bars,
		DetectedAt:          time.Now(),
	}
}

// findAccumulationRange scans window sizes from largest to smallest over the
// most recent bars for a tight consolidation: total range under half the sum
// of per-bar ranges, and average body under 0.6x the average bar range. The
// first qualifying window wins.
func (d *StructureDetector) findAccumulationRange(candles []models.Candle) *accumulationRange {
	searchStart := 0
	if len(candles) > maxSearchBars {
		searchStart = len(candles) - maxSearchBars
	}

	for windowSize := maxWindowSize; windowSize >= d.cfg.MinAccumulationBars; windowSize-- {
		// Leave room for a breakout bar and its confirmation.
		for i := searchStart; i+windowSize < len(candles); i++ {
			window := candles[i : i+windowSize]

			high := window[0].High
			low := window[0].Low
			sumRange := 0.0
			sumBody := 0.0
			for _, c := range window {
				if c.High > high {
					high = c.High
				}
				if c.Low < low {
					low = c.Low
				}
				sumRange += c.Range()
				sumBody += c.Body()
			}

			n := float64(len(window))
			avgRange := sumRange / n
			avgBody := sumBody / n

			if high-low < avgRange*n*0.5 && avgBody < avgRange*0.6 {
				return &accumulationRange{
					high:     high,
					low:      low,
					bars:     windowSize,
					endIndex: i + windowSize,
				}
			}
		}
	}

	return nil
}

// findManipulation scans the post-consolidation candles for a breakout
// beyond the range by more than atr*threshold that closes back inside on
// the same or the next bar.
func (d *StructureDetector) findManipulation(candles []models.Candle, accRange *accumulationRange, atr float64) *manipulation {
	threshold := atr * d.cfg.ManipulationThreshold

	for i, c := range candles {
		if c.High > accRange.high+threshold {
			reversed := c.Close < accRange.high
			if !reversed && i+1 < len(candles) {
				reversed = candles[i+1].Close < accRange.high
			}
			if reversed {
				return &manipulation{
					brokeHigh: true,
					extreme:   c.High,
					clear:     c.High > accRange.high+threshold*clearMultiple,
				}
			}
		}

		if c.Low < accRange.low-threshold {
			reversed := c.Close > accRange.low
			if !reversed && i+1 < len(candles) {
				reversed = candles[i+1].Close > accRange.low
			}
			if reversed {
				return &manipulation{
					brokeHigh: false,
					extreme:   c.Low,
					clear:     c.Low < accRange.low-threshold*clearMultiple,
				}
			}
		}
	}

	return nil
}

// checkDistribution reports whether the latest close has retraced from the
// manipulation extreme back toward the range midpoint without overshooting
// more than a quarter-range past it.
func checkDistribution(last models.Candle, accRange *accumulationRange, manip *manipulation, midpoint float64) bool {
	band := (accRange.high - accRange.low) * retraceBand

	if manip.brokeHigh {
		return last.Close < manip.extreme && last.Close > midpoint-band
	}
	return last.Close > manip.extreme && last.Close < midpoint+band
}

// calculateATR computes the average true range over the last period bars.
// Short series fall back to the last candle's range.
func calculateATR(candles []models.Candle, period int) float64 {
	if len(candles) < period+1 {
		return candles[len(candles)-1].Range()
	}

	sum := 0.0
	start := len(candles) - period
	for i := start; i < len(candles); i++ {
		sum += candles[i].TrueRange(candles[i-1].Close)
	}
	return sum / float64(period)
}
