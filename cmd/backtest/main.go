package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/hannlab/autotrader/internal/feed"
	"github.com/hannlab/autotrader/internal/observ"
	"github.com/hannlab/autotrader/internal/strategy"
	"github.com/hannlab/autotrader/internal/wf"
)

// Offline evaluation harness: replays simulated history through the
// purged k-fold backtest, per strategy and for the full roster, and
// prints the resulting metrics. Useful for eyeballing how a strategy
// change shifts the promotion gates before the weekly run sees it.
func main() {
	symbol := flag.String("symbol", "XAUUSD", "symbol to replay")
	timeframe := flag.String("timeframe", "M5", "bar timeframe")
	bars := flag.Int("bars", 500, "bars of history to evaluate over")
	splits := flag.Int("splits", 5, "cross-validation splits")
	embargo := flag.Int("embargo", 5, "embargo bars around each test block")
	seed := flag.Int64("seed", 42, "simulated feed seed")
	flag.Parse()

	observ.Init("info", os.Stderr)

	fd := feed.NewSimFeed(*symbol, 1950.0, 10000.0, *seed)
	roster := strategy.DefaultSet()
	now := time.Now().UTC()

	fmt.Printf("%-16s %8s %8s %8s\n", "strategy", "trades", "sharpe", "mdd%")
	for name, strat := range roster {
		metrics, err := evaluate(fd, map[string]strategy.Strategy{name: strat}, *symbol, *timeframe, *bars, *splits, *embargo, now)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
			os.Exit(1)
		}
		printRow(name, metrics)
	}

	metrics, err := evaluate(fd, roster, *symbol, *timeframe, *bars, *splits, *embargo, now)
	if err != nil {
		fmt.Fprintf(os.Stderr, "roster: %v\n", err)
		os.Exit(1)
	}
	printRow("ALL", metrics)
}

func evaluate(fd feed.Feed, roster map[string]strategy.Strategy, symbol, timeframe string, bars, splits, embargo int, now time.Time) (map[string]float64, error) {
	eval := &wf.BacktestEvaluator{
		Feed:       fd,
		Strategies: roster,
		Symbol:     symbol,
		Timeframe:  timeframe,
		BarCount:   bars,
		Splits:     splits,
		Embargo:    embargo,
	}
	return eval.Evaluate(now.AddDate(0, 0, -30), now.AddDate(0, 0, -7))
}

func printRow(name string, m map[string]float64) {
	fmt.Printf("%-16s %8.0f %8.2f %8.2f\n", name, m["trades"], m["sharpe"], m["mdd"])
}
