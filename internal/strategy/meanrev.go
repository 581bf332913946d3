package strategy

import (
	"math"

	"github.com/hannlab/autotrader/internal/indicators"
	"github.com/hannlab/autotrader/internal/market"
	"github.com/hannlab/autotrader/internal/risk"
)

// MeanReversion fades moves beyond one standard deviation of the 20-bar
// rolling mean on M15 bars.
type MeanReversion struct{}

func NewMeanReversion() *MeanReversion { return &MeanReversion{} }

func (s *MeanReversion) Name() string      { return "meanrev_M15" }
func (s *MeanReversion) Timeframe() string { return "M15" }
func (s *MeanReversion) MinBars() int      { return 25 }

func (s *MeanReversion) Prepare(bars *market.Bars) error {
	if err := prepareCommon(bars); err != nil {
		return err
	}
	bars.SetColumn("sma", indicators.Sma(bars.Close, 20))
	bars.SetColumn("std", indicators.StdDev(bars.Close, 20))
	return nil
}

func (s *MeanReversion) Signal(bars *market.Bars) Signal {
	if bars.Len() < s.MinBars() {
		return flat()
	}
	price := bars.LastClose()
	sma := bars.Last("sma")
	std := bars.Last("std")
	if math.IsNaN(sma) || math.IsNaN(std) || std == 0 {
		return flat()
	}
	z := (price - sma) / std
	if price < sma-std {
		return Signal{Direction: Long, Confidence: 0.5, Meta: map[string]float64{"z": z}}
	}
	if price > sma+std {
		return Signal{Direction: Short, Confidence: 0.5, Meta: map[string]float64{"z": z}}
	}
	return flat()
}

func (s *MeanReversion) StopTake(bars *market.Bars, pol *risk.Policy) Levels {
	return stopTake(bars, pol)
}
