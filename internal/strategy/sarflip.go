package strategy

import (
	"math"

	"github.com/hannlab/autotrader/internal/indicators"
	"github.com/hannlab/autotrader/internal/market"
	"github.com/hannlab/autotrader/internal/risk"
)

// SARFlip signals when price flips sides of the parabolic SAR level on M15
// bars. Only the flip bar signals; staying on one side stays flat.
type SARFlip struct{}

func NewSARFlip() *SARFlip { return &SARFlip{} }

func (s *SARFlip) Name() string      { return "sar_flip_M15" }
func (s *SARFlip) Timeframe() string { return "M15" }
func (s *SARFlip) MinBars() int      { return 10 }

func (s *SARFlip) Prepare(bars *market.Bars) error {
	if err := prepareCommon(bars); err != nil {
		return err
	}
	sar := indicators.Sar(bars.High, bars.Low)
	bars.SetColumn("sar", sar)
	dir := make([]float64, len(sar))
	for i := range sar {
		if math.IsNaN(sar[i]) {
			dir[i] = math.NaN()
			continue
		}
		if bars.Close[i] > sar[i] {
			dir[i] = 1
		}
	}
	bars.SetColumn("sar_dir", dir)
	return nil
}

func (s *SARFlip) Signal(bars *market.Bars) Signal {
	if bars.Len() < s.MinBars() {
		return flat()
	}
	cur := bars.At("sar_dir", 0)
	prev := bars.At("sar_dir", 1)
	if math.IsNaN(cur) || math.IsNaN(prev) {
		return flat()
	}
	if cur == 1 && prev == 0 {
		return Signal{Direction: Long, Confidence: 0.6, Meta: map[string]float64{"sar_flip": 1}}
	}
	if cur == 0 && prev == 1 {
		return Signal{Direction: Short, Confidence: 0.6, Meta: map[string]float64{"sar_flip": -1}}
	}
	return flat()
}

func (s *SARFlip) StopTake(bars *market.Bars, pol *risk.Policy) Levels {
	return stopTake(bars, pol)
}
