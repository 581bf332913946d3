package feed

import (
	"time"

	"github.com/hannlab/autotrader/internal/market"
)

// Account is the broker-reported money state.
type Account struct {
	Balance float64
	Equity  float64
}

// Feed supplies account state and price history. Implementations must stay
// total: a disconnected feed returns zero values and empty bars, never
// panics or errors the loop away.
type Feed interface {
	Connect() bool
	AccountInfo() Account
	Bars(symbol, timeframe string, n int) (*market.Bars, error)
	SpreadPoints(symbol string) float64
}

// timeframe name -> bar duration
var timeframeDurations = map[string]time.Duration{
	"M1":  time.Minute,
	"M5":  5 * time.Minute,
	"M15": 15 * time.Minute,
	"M30": 30 * time.Minute,
	"H1":  time.Hour,
	"H4":  4 * time.Hour,
	"D1":  24 * time.Hour,
}

// TimeframeDuration resolves a timeframe name, defaulting to one minute for
// unknown names.
func TimeframeDuration(tf string) time.Duration {
	if d, ok := timeframeDurations[tf]; ok {
		return d
	}
	return time.Minute
}

// Offline is the degraded feed used when no data source is reachable. It
// satisfies the zero-value contract so the rest of the loop can run in
// simulated mode.
type Offline struct{}

func (Offline) Connect() bool        { return false }
func (Offline) AccountInfo() Account { return Account{} }

func (Offline) Bars(symbol, timeframe string, n int) (*market.Bars, error) {
	bars := market.New(n)
	end := time.Now().UTC()
	step := TimeframeDuration(timeframe)
	for i := n - 1; i >= 0; i-- {
		bars.Append(end.Add(-time.Duration(i)*step), 0, 0, 0, 0, 0)
	}
	return bars, nil
}

func (Offline) SpreadPoints(symbol string) float64 { return 0 }
