// Package patterns provides price-structure and divergence pattern detection.
package patterns

import (
	"ashare-trader/internal/models"
)

// swingStrength is the number of bars on each side that must be exceeded
// for a bar to qualify as a swing point.
const swingStrength = 2

// findSwingHighs finds swing highs in the candle series. A bar is a swing
// high when its high strictly exceeds the highs of the swingStrength bars
// on each side.
func findSwingHighs(candles []models.Candle) []models.SwingPoint {
	var swings []models.SwingPoint

	for i := swingStrength; i < len(candles)-swingStrength; i++ {
		isSwing := true
		for j := 1; j <= swingStrength; j++ {
			if candles[i].High <= candles[i-j].High || candles[i].High <= candles[i+j].High {
				isSwing = false
				break
			}
		}
		if isSwing {
			swings = append(swings, models.SwingPoint{
				Index:     i,
				Price:     candles[i].High,
				Timestamp: candles[i].Timestamp,
			})
		}
	}

	return swings
}

// findSwingLows finds swing lows in the candle series, symmetric to
// findSwingHighs.
func findSwingLows(candles []models.Candle) []models.SwingPoint {
	var swings []models.SwingPoint

	for i := swingStrength; i < len(candles)-swingStrength; i++ {
		isSwing := true
		for j := 1; j <= swingStrength; j++ {
			if candles[i].Low >= candles[i-j].Low || candles[i].Low >= candles[i+j].Low {
				isSwing = false
				break
			}
		}
		if isSwing {
			swings = append(swings, models.SwingPoint{
				Index:     i,
				Price:     candles[i].Low,
				Timestamp: candles[i].Timestamp,
			})
		}
	}

	return swings
}

// findNearestSwing returns the swing point closest to targetIndex by bar
// distance, or nil when none lies within maxDistance bars.
func findNearestSwing(swings []models.SwingPoint, targetIndex, maxDistance int) *models.SwingPoint {
	var nearest *models.SwingPoint
	minDist := maxDistance + 1

	for i := range swings {
		dist := absInt(swings[i].Index - targetIndex)
		if dist < minDist {
			minDist = dist
			nearest = &swings[i]
		}
	}

	return nearest
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func absFloat(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
