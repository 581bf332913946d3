package indicators

import (
	"math"

	"github.com/markcheno/go-talib"
)

// go-talib zero-fills indicator warmup regions. The strategies need those
// slots to read as "unavailable" so NaN propagates to stop/take math, so
// every wrapper here blanks the warmup explicitly.

func Ema(values []float64, period int) []float64 {
	if len(values) < period {
		return nanSlice(len(values))
	}
	return blankWarmup(talib.Ema(values, period), period-1)
}

func Sma(values []float64, period int) []float64 {
	if len(values) < period {
		return nanSlice(len(values))
	}
	return blankWarmup(talib.Sma(values, period), period-1)
}

func StdDev(values []float64, period int) []float64 {
	if len(values) < period {
		return nanSlice(len(values))
	}
	return blankWarmup(talib.StdDev(values, period, 1.0), period-1)
}

// RollingMax is the highest value over the trailing period, per bar.
func RollingMax(values []float64, period int) []float64 {
	if len(values) < period {
		return nanSlice(len(values))
	}
	return blankWarmup(talib.Max(values, period), period-1)
}

// RollingMin is the lowest value over the trailing period, per bar.
func RollingMin(values []float64, period int) []float64 {
	if len(values) < period {
		return nanSlice(len(values))
	}
	return blankWarmup(talib.Min(values, period), period-1)
}

// Atr is the average true range over the trailing period.
func Atr(high, low, close []float64, period int) []float64 {
	if len(close) <= period {
		return nanSlice(len(close))
	}
	return blankWarmup(talib.Atr(high, low, close, period), period)
}

// Sar is the parabolic stop-and-reverse level per bar.
func Sar(high, low []float64) []float64 {
	if len(high) < 2 {
		return nanSlice(len(high))
	}
	return blankWarmup(talib.Sar(high, low, 0.02, 0.2), 1)
}

// TrendScore normalizes the EMA 12/26 gap by the 26-bar close std. Bars
// where the std is zero or unavailable score 0, matching the feature
// builder's zero-fill contract.
func TrendScore(close []float64) []float64 {
	out := make([]float64, len(close))
	if len(close) < 26 {
		return out
	}
	fast := talib.Ema(close, 12)
	slow := talib.Ema(close, 26)
	std := talib.StdDev(close, 26, 1.0)
	for i := range out {
		if i < 25 || std[i] == 0 || math.IsNaN(std[i]) {
			continue
		}
		out[i] = (fast[i] - slow[i]) / std[i]
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func blankWarmup(values []float64, warmup int) []float64 {
	for i := 0; i < warmup && i < len(values); i++ {
		values[i] = math.NaN()
	}
	return values
}
