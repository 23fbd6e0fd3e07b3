// Package decision turns finished candles into durable trade signals using
// the internal bar strength indicator.
package decision

import (
	"math"

	"ibs-bot/pkg/types"
)

// IBS computes internal bar strength: where the close sits within the
// candle's range, clamped to [0, 1]. A zero-range candle carries no
// information and scores 0.5.
func IBS(c *types.Candle) float64 {
	spread := c.High - c.Low
	if spread == 0 {
		return 0.5
	}
	ibs := (c.Close - c.Low) / spread
	if ibs < 0 {
		return 0
	}
	if ibs > 1 {
		return 1
	}
	return ibs
}

// Leverage derives position leverage from the indicator: the deeper the
// close sits in the range, the stronger the signal and the larger the
// leverage, bounded to [1, maxLeverage].
func Leverage(ibs, maxLeverage, exponent float64) float64 {
	lev := maxLeverage * math.Pow(1-ibs, exponent)
	if lev < 1 {
		return 1
	}
	if lev > maxLeverage {
		return maxLeverage
	}
	return lev
}
