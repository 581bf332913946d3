package wf

import (
	"testing"
	"time"

	"github.com/hannlab/autotrader/internal/feed"
	"github.com/hannlab/autotrader/internal/market"
	"github.com/hannlab/autotrader/internal/risk"
	"github.com/hannlab/autotrader/internal/strategy"
)

// rampFeed serves a deterministic price series moving by step per bar.
type rampFeed struct {
	start float64
	step  float64
}

func (f rampFeed) Connect() bool                      { return true }
func (f rampFeed) AccountInfo() feed.Account          { return feed.Account{Balance: 10000, Equity: 10000} }
func (f rampFeed) SpreadPoints(symbol string) float64 { return 10 }

func (f rampFeed) Bars(symbol, timeframe string, n int) (*market.Bars, error) {
	bars := market.New(n)
	ts := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		c := f.start + f.step*float64(i)
		bars.Append(ts.Add(time.Duration(i)*5*time.Minute), c, c+0.5, c-0.5, c, 100)
	}
	return bars, nil
}

// alwaysLong signals long on every bar regardless of price action.
type alwaysLong struct{}

func (alwaysLong) Name() string      { return "always_long" }
func (alwaysLong) Timeframe() string { return "M5" }
func (alwaysLong) MinBars() int      { return 2 }

func (alwaysLong) Prepare(bars *market.Bars) error { return nil }

func (alwaysLong) Signal(bars *market.Bars) strategy.Signal {
	return strategy.Signal{Direction: strategy.Long, Confidence: 1}
}

func (alwaysLong) StopTake(bars *market.Bars, pol *risk.Policy) strategy.Levels {
	return strategy.Levels{}
}

func TestBacktestEvaluator_ProducesAllMetrics(t *testing.T) {
	eval := &BacktestEvaluator{
		Feed:       feed.NewSimFeed("XAUUSD", 1950, 10000, 42),
		Strategies: strategy.DefaultSet(),
		Symbol:     "XAUUSD",
		Timeframe:  "M5",
		BarCount:   300,
		Splits:     4,
		Embargo:    5,
	}
	now := time.Now().UTC()

	metrics, err := eval.Evaluate(now.AddDate(0, 0, -30), now.AddDate(0, 0, -7))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	for _, key := range []string{"trades", "sharpe", "mdd"} {
		if _, ok := metrics[key]; !ok {
			t.Fatalf("metric %q missing: %v", key, metrics)
		}
	}
	if metrics["trades"] < 0 || metrics["mdd"] < 0 {
		t.Fatalf("trades and mdd must be non-negative: %v", metrics)
	}
}

func TestBacktestEvaluator_TrainSplitScreensLosers(t *testing.T) {
	now := time.Now().UTC()
	run := func(step float64) float64 {
		eval := &BacktestEvaluator{
			Feed:       rampFeed{start: 1950, step: step},
			Strategies: map[string]strategy.Strategy{"always_long": alwaysLong{}},
			Symbol:     "XAUUSD",
			Timeframe:  "M5",
			BarCount:   200,
			Splits:     4,
			Embargo:    5,
		}
		metrics, err := eval.Evaluate(now.AddDate(0, 0, -30), now.AddDate(0, 0, -7))
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		return metrics["trades"]
	}

	if trades := run(0.5); trades == 0 {
		t.Fatalf("a strategy winning on the train split must trade the test split")
	}
	// on a falling series the long-only strategy loses every train trade
	// and must sit out every fold
	if trades := run(-0.5); trades != 0 {
		t.Fatalf("a strategy losing on the train split must be screened out, got %.0f trades", trades)
	}
}

func TestBacktestEvaluator_RejectsTinyWindows(t *testing.T) {
	eval := &BacktestEvaluator{
		Feed:       feed.NewSimFeed("XAUUSD", 1950, 10000, 42),
		Strategies: strategy.DefaultSet(),
		Symbol:     "XAUUSD",
		Timeframe:  "M5",
		BarCount:   20,
		Splits:     4,
		Embargo:    5,
	}
	now := time.Now().UTC()
	if _, err := eval.Evaluate(now.AddDate(0, 0, -30), now.AddDate(0, 0, -7)); err == nil {
		t.Fatalf("a 20-bar window must be rejected")
	}
}
