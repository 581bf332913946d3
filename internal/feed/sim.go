package feed

import (
	"context"
	"math"
	"math/rand"
	"time"

	"golang.org/x/time/rate"

	"github.com/hannlab/autotrader/internal/market"
	"github.com/hannlab/autotrader/internal/observ"
)

// SimFeed generates random-walk OHLC bars around a base price. It stands in
// for a live terminal during development, replay, and walk-forward
// simulation. Polling is rate-limited so a tight daemon loop cannot hammer
// the generator the way it must not hammer a real terminal.
type SimFeed struct {
	symbol     string
	basePrice  float64
	volatility float64 // daily, as a decimal
	balance    float64
	rng        *rand.Rand
	limiter    *rate.Limiter
}

// NewSimFeed creates a sim feed. Seed fixes the price path for reproducible
// runs; pass 0 for a time-based seed.
func NewSimFeed(symbol string, basePrice, balance float64, seed int64) *SimFeed {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &SimFeed{
		symbol:     symbol,
		basePrice:  basePrice,
		volatility: 0.012,
		balance:    balance,
		rng:        rand.New(rand.NewSource(seed)),
		limiter:    rate.NewLimiter(rate.Limit(10), 2), // 10 polls/sec burst 2
	}
}

func (s *SimFeed) Connect() bool {
	observ.Log("sim_feed_connected", map[string]any{"symbol": s.symbol})
	return true
}

func (s *SimFeed) AccountInfo() Account {
	// equity wanders a little around balance, like open-position float
	drift := s.balance * 0.002 * s.rng.NormFloat64()
	return Account{Balance: s.balance, Equity: s.balance + drift}
}

// Bars synthesizes n bars of random walk ending now.
func (s *SimFeed) Bars(symbol, timeframe string, n int) (*market.Bars, error) {
	_ = s.limiter.Wait(context.Background())

	step := TimeframeDuration(timeframe)
	// scale daily volatility to the bar duration
	barVol := s.volatility * math.Sqrt(float64(step)/float64(24*time.Hour))

	bars := market.New(n)
	end := time.Now().UTC().Truncate(step)
	price := s.basePrice
	for i := n - 1; i >= 0; i-- {
		open := price
		price *= 1 + barVol*s.rng.NormFloat64()
		high := math.Max(open, price) * (1 + barVol*0.3*s.rng.Float64())
		low := math.Min(open, price) * (1 - barVol*0.3*s.rng.Float64())
		volume := 100 + float64(s.rng.Intn(400))
		bars.Append(end.Add(-time.Duration(i)*step), open, high, low, price, volume)
	}
	return bars, nil
}

func (s *SimFeed) SpreadPoints(symbol string) float64 {
	// liquid-session spread with occasional widening
	spread := 12 + s.rng.Float64()*8
	if s.rng.Float64() < 0.05 {
		spread *= 3
	}
	return spread
}

// SetBalance adjusts the simulated account, used by tests and replay runs.
func (s *SimFeed) SetBalance(balance float64) { s.balance = balance }
