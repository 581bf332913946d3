package strategy

import (
	"math"

	"github.com/hannlab/autotrader/internal/indicators"
	"github.com/hannlab/autotrader/internal/market"
	"github.com/hannlab/autotrader/internal/risk"
)

// Direction of a trading signal.
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
	Flat  Direction = "flat"
)

// Signal is one directional trading opinion, produced fresh every cycle.
type Signal struct {
	Direction  Direction
	Confidence float64 // [0,1]
	Meta       map[string]float64
}

func flat() Signal {
	return Signal{Direction: Flat, Confidence: 0}
}

// Levels are the stop-loss/take-profit prices attached to an order.
type Levels struct {
	SL float64
	TP float64
}

// Strategy is the closed contract every variant implements. Prepare attaches
// indicator columns in place and fails on malformed price data; Signal
// returns flat with zero confidence when the window is shorter than
// MinBars.
type Strategy interface {
	Name() string
	Timeframe() string
	MinBars() int
	Prepare(bars *market.Bars) error
	Signal(bars *market.Bars) Signal
	StopTake(bars *market.Bars, pol *risk.Policy) Levels
}

const atrPeriod = 14

// prepareCommon validates the window and attaches the ATR column every
// variant's stop/take math reads.
func prepareCommon(bars *market.Bars) error {
	if err := bars.Validate(); err != nil {
		return err
	}
	bars.SetColumn("atr", indicators.Atr(bars.High, bars.Low, bars.Close, atrPeriod))
	return nil
}

// stopTake derives stop and take levels from the latest ATR. When ATR is
// unavailable the NaN propagates; the caller must guard before ordering.
func stopTake(bars *market.Bars, pol *risk.Policy) Levels {
	atr := bars.Last("atr")
	price := bars.LastClose()
	return Levels{
		SL: price - atr*pol.ATRStopMult,
		TP: price + atr*pol.ATRTrailMult,
	}
}

// crossedAbove reports a cross of a over b between the previous and latest
// bar. NaN on either side never crosses.
func crossedAbove(bars *market.Bars, a, b string) bool {
	cur := bars.At(a, 0) > bars.At(b, 0)
	prevA, prevB := bars.At(a, 1), bars.At(b, 1)
	if math.IsNaN(prevA) || math.IsNaN(prevB) {
		return false
	}
	return cur && prevA <= prevB
}
