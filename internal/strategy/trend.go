package strategy

import (
	"github.com/hannlab/autotrader/internal/indicators"
	"github.com/hannlab/autotrader/internal/market"
	"github.com/hannlab/autotrader/internal/risk"
)

// TrendEMA trades EMA 12/26 crossovers on M5 bars.
type TrendEMA struct{}

func NewTrendEMA() *TrendEMA { return &TrendEMA{} }

func (s *TrendEMA) Name() string      { return "trend_M5" }
func (s *TrendEMA) Timeframe() string { return "M5" }
func (s *TrendEMA) MinBars() int      { return 30 }

func (s *TrendEMA) Prepare(bars *market.Bars) error {
	if err := prepareCommon(bars); err != nil {
		return err
	}
	bars.SetColumn("ema_fast", indicators.Ema(bars.Close, 12))
	bars.SetColumn("ema_slow", indicators.Ema(bars.Close, 26))
	return nil
}

func (s *TrendEMA) Signal(bars *market.Bars) Signal {
	if bars.Len() < s.MinBars() {
		return flat()
	}
	if crossedAbove(bars, "ema_fast", "ema_slow") {
		return Signal{Direction: Long, Confidence: 0.6, Meta: map[string]float64{"cross": 1}}
	}
	if crossedAbove(bars, "ema_slow", "ema_fast") {
		return Signal{Direction: Short, Confidence: 0.6, Meta: map[string]float64{"cross": -1}}
	}
	return flat()
}

func (s *TrendEMA) StopTake(bars *market.Bars, pol *risk.Policy) Levels {
	return stopTake(bars, pol)
}
