package patterns

import (
	"ashare-trader/internal/models"
)

// DivergenceConfig holds the thresholds for cross-instrument divergence
// detection. Passed by value; detection is side-effect-free.
type DivergenceConfig struct {
	LookbackPeriod     int
	MinSwingSeparation int
}

// DefaultDivergenceConfig returns the standard detector thresholds.
func DefaultDivergenceConfig() DivergenceConfig {
	return DivergenceConfig{
		LookbackPeriod:     20,
		MinSwingSeparation: 3,
	}
}

const (
	// divergence strength is clamped to this band.
	minDivergenceStrength = 10
	maxDivergenceStrength = 100
)

// DivergenceDetector finds swing-point divergence between two correlated
// instruments.
type DivergenceDetector struct {
	cfg DivergenceConfig
}

// NewDivergenceDetector creates a detector with the given thresholds.
func NewDivergenceDetector(cfg DivergenceConfig) *DivergenceDetector {
	if cfg.LookbackPeriod <= 0 {
		cfg.LookbackPeriod = 20
	}
	if cfg.MinSwingSeparation <= 0 {
		cfg.MinSwingSeparation = 3
	}
	return &DivergenceDetector{cfg: cfg}
}

// Detect compares the two most recent primary swing points against the
// reference instrument's index-matched swings. Bearish: primary higher high
// while reference posts a lower high. Bullish: primary lower low while
// reference posts a higher low. Returns nil when no index-proximate
// reference swing exists or no qualifying pattern is present.
func (d *DivergenceDetector) Detect(primary, reference []models.Candle, primarySymbol, referenceSymbol string) *models.DivergenceResult {
	if len(primary) < d.cfg.LookbackPeriod || len(reference) < d.cfg.LookbackPeriod {
		return nil
	}

	pWindow := primary[len(primary)-d.cfg.LookbackPeriod:]
	rWindow := reference[len(reference)-d.cfg.LookbackPeriod:]
	maxDist := d.cfg.LookbackPeriod / 2

	if res := d.compareHighs(pWindow, rWindow, maxDist); res != nil {
		res.PrimarySymbol = primarySymbol
		res.ReferenceSymbol = referenceSymbol
		res.BarsAgo = barsAgo(pWindow, res)
		return res
	}
	if res := d.compareLows(pWindow, rWindow, maxDist); res != nil {
		res.PrimarySymbol = primarySymbol
		res.ReferenceSymbol = referenceSymbol
		res.BarsAgo = barsAgo(pWindow, res)
		return res
	}

	return nil
}

// compareHighs checks the two latest primary swing highs against the
// reference for a bearish divergence.
func (d *DivergenceDetector) compareHighs(primary, reference []models.Candle, maxDist int) *models.DivergenceResult {
	pSwings := findSwingHighs(primary)
	rSwings := findSwingHighs(reference)
	if len(pSwings) < 2 || len(rSwings) < 2 {
		return nil
	}

	pPrev := pSwings[len(pSwings)-2]
	pCurr := pSwings[len(pSwings)-1]
	if pCurr.Index-pPrev.Index < d.cfg.MinSwingSeparation {
		return nil
	}

	rPrev := findNearestSwing(rSwings, pPrev.Index, maxDist)
	rCurr := findNearestSwing(rSwings, pCurr.Index, maxDist)
	if rPrev == nil || rCurr == nil || rPrev.Index == rCurr.Index {
		return nil
	}

	// Primary higher high while the reference fails to confirm.
	if pCurr.Price > pPrev.Price && rCurr.Price < rPrev.Price {
		return &models.DivergenceResult{
			Type:             models.DivergenceBearish,
			PrimaryCurrent:   pCurr.Price,
			PrimaryPrevious:  pPrev.Price,
			ReferenceCurrent: rCurr.Price,
			ReferencePrev:    rPrev.Price,
			Strength:         divergenceStrength(pPrev.Price, pCurr.Price, rPrev.Price, rCurr.Price),
		}
	}

	return nil
}

// compareLows checks the two latest primary swing lows against the
// reference for a bullish divergence.
func (d *DivergenceDetector) compareLows(primary, reference []models.Candle, maxDist int) *models.DivergenceResult {
	pSwings := findSwingLows(primary)
	rSwings := findSwingLows(reference)
	if len(pSwings) < 2 || len(rSwings) < 2 {
		return nil
	}

	pPrev := pSwings[len(pSwings)-2]
	pCurr := pSwings[len(pSwings)-1]
	if pCurr.Index-pPrev.Index < d.cfg.MinSwingSeparation {
		return nil
	}

	rPrev := findNearestSwing(rSwings, pPrev.Index, maxDist)
	rCurr := findNearestSwing(rSwings, pCurr.Index, maxDist)
	if rPrev == nil || rCurr == nil || rPrev.Index == rCurr.Index {
		return nil
	}

	// Primary lower low while the reference holds above its prior low.
	if pCurr.Price < pPrev.Price && rCurr.Price > rPrev.Price {
		return &models.DivergenceResult{
			Type:             models.DivergenceBullish,
			PrimaryCurrent:   pCurr.Price,
			PrimaryPrevious:  pPrev.Price,
			ReferenceCurrent: rCurr.Price,
			ReferencePrev:    rPrev.Price,
			Strength:         divergenceStrength(pPrev.Price, pCurr.Price, rPrev.Price, rCurr.Price),
		}
	}

	return nil
}

// divergenceStrength averages the two instruments' percentage moves between
// their matched swings, clamped to [10, 100].
func divergenceStrength(pPrev, pCurr, rPrev, rCurr float64) int {
	pChange := 0.0
	if pPrev != 0 {
		pChange = absFloat(pCurr-pPrev) / pPrev * 100
	}
	rChange := 0.0
	if rPrev != 0 {
		rChange = absFloat(rCurr-rPrev) / rPrev * 100
	}

	strength := int((pChange + rChange) / 2)
	if strength < minDivergenceStrength {
		strength = minDivergenceStrength
	}
	if strength > maxDivergenceStrength {
		strength = maxDivergenceStrength
	}
	return strength
}

// barsAgo converts a result's current primary swing into bars-since-now.
func barsAgo(primary []models.Candle, res *models.DivergenceResult) int {
	// Locate the swing matching the recorded price, newest first.
	for i := len(primary) - 1; i >= 0; i-- {
		if primary[i].High == res.PrimaryCurrent || primary[i].Low == res.PrimaryCurrent {
			return len(primary) - 1 - i
		}
	}
	return 0
}
