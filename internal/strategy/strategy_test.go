package strategy

import (
	"math"
	"testing"
	"time"

	"github.com/hannlab/autotrader/internal/market"
	"github.com/hannlab/autotrader/internal/risk"
)

func barsWithCloses(closes []float64) *market.Bars {
	bars := market.New(len(closes))
	start := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		bars.Append(start.Add(time.Duration(i)*5*time.Minute), c, c+1, c-1, c, 100)
	}
	return bars
}

func flatSeries(n int, price float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = price
	}
	return out
}

func column(n int, value float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = value
	}
	return out
}

func testRiskPolicy() *risk.Policy {
	return &risk.Policy{
		Symbol:              "XAUUSD",
		DailyMaxDrawdownPct: 5,
		MaxPositions:        1,
		SpreadMaxPoints:     40,
		ATRStopMult:         2.0,
		ATRTrailMult:        1.5,
		LotMin:              0.01,
		LotStep:             0.01,
	}
}

func TestTrendEMA_CrossoverDirections(t *testing.T) {
	s := NewTrendEMA()
	bars := barsWithCloses(flatSeries(40, 100))
	if err := s.Prepare(bars); err != nil {
		t.Fatalf("prepare: %v", err)
	}

	n := bars.Len()
	fast := column(n, 101.0)
	slow := column(n, 100.0)
	fast[n-2], slow[n-2] = 99.0, 100.0 // fast below slow on the previous bar
	bars.SetColumn("ema_fast", fast)
	bars.SetColumn("ema_slow", slow)

	sig := s.Signal(bars)
	if sig.Direction != Long {
		t.Fatalf("fast crossing above slow: want long, got %s", sig.Direction)
	}
	if sig.Confidence != 0.6 {
		t.Fatalf("want confidence 0.6, got %v", sig.Confidence)
	}

	// invert the cross
	fast = column(n, 99.0)
	slow = column(n, 100.0)
	fast[n-2], slow[n-2] = 101.0, 100.0
	bars.SetColumn("ema_fast", fast)
	bars.SetColumn("ema_slow", slow)
	if sig := s.Signal(bars); sig.Direction != Short {
		t.Fatalf("fast crossing below slow: want short, got %s", sig.Direction)
	}
}

func TestTrendEMA_NoCrossIsFlat(t *testing.T) {
	s := NewTrendEMA()
	bars := barsWithCloses(flatSeries(40, 100))
	if err := s.Prepare(bars); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	bars.SetColumn("ema_fast", column(bars.Len(), 101))
	bars.SetColumn("ema_slow", column(bars.Len(), 100))
	if sig := s.Signal(bars); sig.Direction != Flat {
		t.Fatalf("fast persistently above slow is not a cross, got %s", sig.Direction)
	}
}

func TestTrendEMA_WarmupNeverCrosses(t *testing.T) {
	s := NewTrendEMA()
	bars := barsWithCloses(flatSeries(40, 100))
	if err := s.Prepare(bars); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	fast := column(bars.Len(), 101)
	fast[bars.Len()-2] = math.NaN()
	bars.SetColumn("ema_fast", fast)
	bars.SetColumn("ema_slow", column(bars.Len(), 100))
	if sig := s.Signal(bars); sig.Direction != Flat {
		t.Fatalf("NaN on the previous bar must not count as a cross, got %s", sig.Direction)
	}
}

func TestTrendEMA_ShortWindowIsFlat(t *testing.T) {
	s := NewTrendEMA()
	bars := barsWithCloses(flatSeries(10, 100))
	if sig := s.Signal(bars); sig.Direction != Flat || sig.Confidence != 0 {
		t.Fatalf("window below MinBars must be flat with zero confidence, got %+v", sig)
	}
}

func TestMeanReversion_FadesExtremes(t *testing.T) {
	s := NewMeanReversion()
	bars := barsWithCloses(flatSeries(30, 90))
	if err := s.Prepare(bars); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	bars.SetColumn("sma", column(bars.Len(), 100))
	bars.SetColumn("std", column(bars.Len(), 5))

	sig := s.Signal(bars)
	if sig.Direction != Long {
		t.Fatalf("price below the band must fade long, got %s", sig.Direction)
	}
	if z := sig.Meta["z"]; z != -2.0 {
		t.Fatalf("want z=-2, got %v", z)
	}

	high := barsWithCloses(flatSeries(30, 110))
	if err := s.Prepare(high); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	high.SetColumn("sma", column(high.Len(), 100))
	high.SetColumn("std", column(high.Len(), 5))
	if sig := s.Signal(high); sig.Direction != Short {
		t.Fatalf("price above the band must fade short, got %s", sig.Direction)
	}
}

func TestMeanReversion_InsideBandIsFlat(t *testing.T) {
	s := NewMeanReversion()
	bars := barsWithCloses(flatSeries(30, 102))
	if err := s.Prepare(bars); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	bars.SetColumn("sma", column(bars.Len(), 100))
	bars.SetColumn("std", column(bars.Len(), 5))
	if sig := s.Signal(bars); sig.Direction != Flat {
		t.Fatalf("price inside the band must be flat, got %s", sig.Direction)
	}
}

func TestStopTake_FromATR(t *testing.T) {
	s := NewTrendEMA()
	bars := barsWithCloses(flatSeries(40, 100))
	if err := s.Prepare(bars); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	bars.SetColumn("atr", column(bars.Len(), 3))

	levels := s.StopTake(bars, testRiskPolicy())
	if levels.SL != 94 { // 100 - 3*2.0
		t.Fatalf("want SL 94, got %v", levels.SL)
	}
	if levels.TP != 104.5 { // 100 + 3*1.5
		t.Fatalf("want TP 104.5, got %v", levels.TP)
	}
}

func TestStopTake_PropagatesNaNDuringWarmup(t *testing.T) {
	s := NewTrendEMA()
	bars := barsWithCloses(flatSeries(40, 100))
	if err := s.Prepare(bars); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	bars.SetColumn("atr", column(bars.Len(), math.NaN()))
	levels := s.StopTake(bars, testRiskPolicy())
	if !math.IsNaN(levels.SL) || !math.IsNaN(levels.TP) {
		t.Fatalf("NaN ATR must propagate into the levels, got %+v", levels)
	}
}

func TestPrepare_RejectsEmptyWindow(t *testing.T) {
	s := NewTrendEMA()
	if err := s.Prepare(market.New(0)); err == nil {
		t.Fatalf("empty window must fail preparation")
	}
}

func TestDefaultSet_KeyedByName(t *testing.T) {
	set := DefaultSet()
	if len(set) != 4 {
		t.Fatalf("want 4 strategies, got %d", len(set))
	}
	for key, s := range set {
		if key != s.Name() {
			t.Fatalf("roster key %q != strategy name %q", key, s.Name())
		}
	}
}
