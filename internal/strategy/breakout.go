package strategy

import (
	"math"

	"github.com/hannlab/autotrader/internal/indicators"
	"github.com/hannlab/autotrader/internal/market"
	"github.com/hannlab/autotrader/internal/risk"
)

// Breakout trades breaches of the trailing 24-bar high/low channel on M30
// bars. The channel is read one bar back so the breaking bar itself does not
// move the reference.
type Breakout struct{}

func NewBreakout() *Breakout { return &Breakout{} }

func (s *Breakout) Name() string      { return "breakout_M30" }
func (s *Breakout) Timeframe() string { return "M30" }
func (s *Breakout) MinBars() int      { return 30 }

func (s *Breakout) Prepare(bars *market.Bars) error {
	if err := prepareCommon(bars); err != nil {
		return err
	}
	bars.SetColumn("high_roll", indicators.RollingMax(bars.High, 24))
	bars.SetColumn("low_roll", indicators.RollingMin(bars.Low, 24))
	return nil
}

func (s *Breakout) Signal(bars *market.Bars) Signal {
	if bars.Len() < s.MinBars() {
		return flat()
	}
	price := bars.LastClose()
	upper := bars.At("high_roll", 1)
	lower := bars.At("low_roll", 1)
	if math.IsNaN(upper) || math.IsNaN(lower) {
		return flat()
	}
	if price > upper {
		return Signal{Direction: Long, Confidence: 0.55, Meta: map[string]float64{"break": 1}}
	}
	if price < lower {
		return Signal{Direction: Short, Confidence: 0.55, Meta: map[string]float64{"break": -1}}
	}
	return flat()
}

func (s *Breakout) StopTake(bars *market.Bars, pol *risk.Policy) Levels {
	return stopTake(bars, pol)
}
