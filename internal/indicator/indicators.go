// Package indicator computes technical indicators over candle series.
//
// All functions are deterministic and operate on closed candles only:
// Compute drops the most recent candle, which may still be forming on the
// exchange, before deriving any value.
package indicator

import (
	"errors"
	"fmt"
	"math"

	"vigil/pkg/model"
)

// Fixed indicator parameters. RSI period is configurable; the rest follow
// the standard settings the scoring thresholds were tuned against.
const (
	EMAFastPeriod = 9
	EMAMidPeriod  = 18
	EMASlowPeriod = 200
	BBPeriod      = 20
	BBStdDev      = 2.0
	VolumePeriod  = 20
)

// MinHistory is the minimum number of closed candles needed for a snapshot.
const MinHistory = EMASlowPeriod

// ErrInsufficientHistory is returned when a series is too short to compute
// the longest-period indicator.
var ErrInsufficientHistory = errors.New("insufficient candle history")

// Compute derives an IndicatorSnapshot from a candle series. The last candle
// is excluded as potentially incomplete; at least MinHistory closed candles
// must remain.
func Compute(candles []model.Candle, rsiPeriod int) (model.IndicatorSnapshot, error) {
	closed := candles
	if len(closed) > 0 {
		closed = closed[:len(closed)-1]
	}
	if len(closed) < MinHistory {
		return model.IndicatorSnapshot{}, fmt.Errorf("%w: got %d closed candles, need %d",
			ErrInsufficientHistory, len(closed), MinHistory)
	}

	upper, mid, lower := Bollinger(closed, BBPeriod, BBStdDev)

	return model.IndicatorSnapshot{
		RSI:         RSI(closed, rsiPeriod),
		EMAFast:     EMA(closed, EMAFastPeriod),
		EMAMid:      EMA(closed, EMAMidPeriod),
		EMASlow:     EMA(closed, EMASlowPeriod),
		BBUpper:     upper,
		BBMid:       mid,
		BBLower:     lower,
		VolumeRatio: VolumeRatio(closed, VolumePeriod),
		Close:       closed[len(closed)-1].Close,
	}, nil
}

// RSI calculates the Relative Strength Index using Wilder's smoothing.
// The initial averages are seeded from the simple mean of the first period
// deltas, then smoothed with (prev*(period-1) + value) / period.
func RSI(candles []model.Candle, period int) float64 {
	if len(candles) < period+1 {
		return 50
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		delta := candles[i].Close - candles[i-1].Close
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	p := float64(period)
	for i := period + 1; i < len(candles); i++ {
		delta := candles[i].Close - candles[i-1].Close
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
	}

	// A dead-flat series has neither gains nor losses. RS is undefined there
	// and the market carries no momentum signal, so report neutral instead of
	// letting the zero denominator read as maximally overbought.
	if avgGain == 0 && avgLoss == 0 {
		return 50
	}
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// EMA calculates the exponential moving average with multiplier 2/(period+1),
// seeded from the simple average of the first period closes.
func EMA(candles []model.Candle, period int) float64 {
	if len(candles) < period {
		return 0
	}

	var sum float64
	for i := 0; i < period; i++ {
		sum += candles[i].Close
	}
	ema := sum / float64(period)

	multiplier := 2.0 / float64(period+1)
	for i := period; i < len(candles); i++ {
		ema = (candles[i].Close * multiplier) + (ema * (1 - multiplier))
	}
	return ema
}

// SMA calculates the simple moving average of closes over the last period candles.
func SMA(candles []model.Candle, period int) float64 {
	if len(candles) < period {
		return 0
	}

	var sum float64
	for i := len(candles) - period; i < len(candles); i++ {
		sum += candles[i].Close
	}
	return sum / float64(period)
}

// Bollinger calculates Bollinger Bands: SMA of closes over the window
// plus/minus stdDev population standard deviations.
func Bollinger(candles []model.Candle, period int, stdDev float64) (upper, mid, lower float64) {
	if len(candles) < period {
		return 0, 0, 0
	}

	mid = SMA(candles, period)

	var sumSquares float64
	for i := len(candles) - period; i < len(candles); i++ {
		diff := candles[i].Close - mid
		sumSquares += diff * diff
	}
	std := math.Sqrt(sumSquares / float64(period))

	upper = mid + (std * stdDev)
	lower = mid - (std * stdDev)
	return upper, mid, lower
}

// VolumeRatio divides the most recent candle's volume by the mean volume of
// the preceding period candles. Returns 0 when there is not enough history
// or the preceding mean is zero.
func VolumeRatio(candles []model.Candle, period int) float64 {
	if len(candles) < period+1 {
		return 0
	}

	var sum float64
	for i := len(candles) - period - 1; i < len(candles)-1; i++ {
		sum += candles[i].Volume
	}
	mean := sum / float64(period)
	if mean == 0 {
		return 0
	}
	return candles[len(candles)-1].Volume / mean
}
