package wf

import (
	"fmt"
	"math"
	"time"

	"github.com/hannlab/autotrader/internal/feed"
	"github.com/hannlab/autotrader/internal/market"
	"github.com/hannlab/autotrader/internal/strategy"
)

// BacktestEvaluator scores the strategy roster over historical bars using
// purged k-fold splits. Per fold the train indices select which strategies
// trade: a strategy whose train-split trades lose on average sits out that
// fold's test block. Per test index each surviving strategy is re-prepared
// on the window ending there and books the next bar's close-to-close return
// in the signalled direction, so no indicator ever sees past its window.
type BacktestEvaluator struct {
	Feed       feed.Feed
	Strategies map[string]strategy.Strategy
	Symbol     string
	Timeframe  string
	BarCount   int
	Splits     int
	Embargo    int
}

func (e *BacktestEvaluator) Evaluate(trainStart, testStart time.Time) (map[string]float64, error) {
	n := e.BarCount
	if n <= 0 {
		n = 500
	}
	bars, err := e.Feed.Bars(e.Symbol, e.Timeframe, n)
	if err != nil {
		return nil, fmt.Errorf("load bars: %w", err)
	}
	if bars.Len() < 50 {
		return nil, fmt.Errorf("window too short: %d bars", bars.Len())
	}

	var returns []float64
	trades := 0
	for _, fold := range PurgedKFold(bars.Len(), e.Splits, e.Embargo) {
		active := e.trainSelect(bars, fold.Train)
		for _, i := range fold.Test {
			if i+1 >= bars.Len() {
				continue
			}
			for name, strat := range e.Strategies {
				if !active[name] {
					continue
				}
				ret, ok, err := e.tradeAt(bars, strat, i)
				if err != nil {
					return nil, err
				}
				if !ok {
					continue
				}
				returns = append(returns, ret)
				trades++
			}
		}
	}

	sharpe, mdd := summarize(returns)
	return map[string]float64{
		"trades": float64(trades),
		"sharpe": sharpe,
		"mdd":    mdd,
	}, nil
}

// trainSelect replays each strategy over the fold's train indices and keeps
// the ones whose trades do not lose on average. A strategy with no train
// trades stays in; there is no evidence against it.
func (e *BacktestEvaluator) trainSelect(bars *market.Bars, train []int) map[string]bool {
	active := make(map[string]bool, len(e.Strategies))
	for name, strat := range e.Strategies {
		sum, n := 0.0, 0
		for _, i := range train {
			if i+1 >= bars.Len() {
				continue
			}
			ret, ok, err := e.tradeAt(bars, strat, i)
			if err != nil || !ok {
				continue
			}
			sum += ret
			n++
		}
		active[name] = n == 0 || sum >= 0
	}
	return active
}

// tradeAt evaluates one strategy at bar i and returns the next bar's
// close-to-close return in the signalled direction. ok is false when the
// window is too short for the strategy or the signal is flat.
func (e *BacktestEvaluator) tradeAt(bars *market.Bars, strat strategy.Strategy, i int) (ret float64, ok bool, err error) {
	if i+1 < strat.MinBars() {
		return 0, false, nil
	}
	window := bars.Slice(0, i+1)
	if err := strat.Prepare(window); err != nil {
		return 0, false, err
	}
	sig := strat.Signal(window)
	if sig.Direction == strategy.Flat {
		return 0, false, nil
	}
	ret = (bars.Close[i+1] - bars.Close[i]) / bars.Close[i]
	if sig.Direction == strategy.Short {
		ret = -ret
	}
	return ret, true, nil
}

// summarize computes a per-trade Sharpe ratio and the max drawdown of the
// cumulative return path, in percent.
func summarize(returns []float64) (sharpe, mddPct float64) {
	if len(returns) == 0 {
		return 0, 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))
	if std := math.Sqrt(variance); std > 0 {
		sharpe = mean / std * math.Sqrt(float64(len(returns)))
	}

	cum, peak := 0.0, 0.0
	for _, r := range returns {
		cum += r
		if cum > peak {
			peak = cum
		}
		if dd := peak - cum; dd > mddPct {
			mddPct = dd
		}
	}
	return sharpe, mddPct * 100
}
