package market

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrMissingColumns is returned when a bar window lacks the OHLC data the
// strategies need. It indicates a feed or programming error, not missing
// optional data.
var ErrMissingColumns = errors.New("bars missing OHLC columns")

// Bars is a time-indexed OHLCV window. Indicator columns are attached in
// place by Strategy.Prepare and read back by name.
type Bars struct {
	Time   []time.Time
	Open   []float64
	High   []float64
	Low    []float64
	Close  []float64
	Volume []float64

	cols map[string][]float64
}

func New(n int) *Bars {
	return &Bars{
		Time:   make([]time.Time, 0, n),
		Open:   make([]float64, 0, n),
		High:   make([]float64, 0, n),
		Low:    make([]float64, 0, n),
		Close:  make([]float64, 0, n),
		Volume: make([]float64, 0, n),
	}
}

func (b *Bars) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Close)
}

// Append adds one bar to the end of the window.
func (b *Bars) Append(ts time.Time, open, high, low, close, volume float64) {
	b.Time = append(b.Time, ts)
	b.Open = append(b.Open, open)
	b.High = append(b.High, high)
	b.Low = append(b.Low, low)
	b.Close = append(b.Close, close)
	b.Volume = append(b.Volume, volume)
}

// Validate fails fast when the window is empty or the price slices are
// ragged. Called at the strategy boundary.
func (b *Bars) Validate() error {
	if b.Len() == 0 {
		return fmt.Errorf("%w: empty window", ErrMissingColumns)
	}
	n := len(b.Close)
	if len(b.Open) != n || len(b.High) != n || len(b.Low) != n || len(b.Time) != n {
		return fmt.Errorf("%w: ragged columns", ErrMissingColumns)
	}
	return nil
}

// SetColumn attaches (or replaces) a named indicator column. The column must
// be index-aligned with the price data.
func (b *Bars) SetColumn(name string, values []float64) {
	if b.cols == nil {
		b.cols = map[string][]float64{}
	}
	b.cols[name] = values
}

// Column returns a named indicator column, or nil when absent.
func (b *Bars) Column(name string) []float64 {
	return b.cols[name]
}

// Last returns the most recent value of a named column. Absent columns and
// empty windows yield NaN, which callers must guard.
func (b *Bars) Last(name string) float64 {
	col := b.cols[name]
	if len(col) == 0 {
		return math.NaN()
	}
	return col[len(col)-1]
}

// At returns a column value offset bars back from the latest (0 = latest,
// 1 = previous). NaN when out of range.
func (b *Bars) At(name string, back int) float64 {
	col := b.cols[name]
	i := len(col) - 1 - back
	if i < 0 || i >= len(col) {
		return math.NaN()
	}
	return col[i]
}

// LastClose is a convenience for the newest close price.
func (b *Bars) LastClose() float64 {
	if b.Len() == 0 {
		return math.NaN()
	}
	return b.Close[len(b.Close)-1]
}

// Slice returns a new window over bars [i, j). Price data is shared with
// the parent; indicator columns are not carried over and must be recomputed
// on the slice.
func (b *Bars) Slice(i, j int) *Bars {
	return &Bars{
		Time:   b.Time[i:j],
		Open:   b.Open[i:j],
		High:   b.High[i:j],
		Low:    b.Low[i:j],
		Close:  b.Close[i:j],
		Volume: b.Volume[i:j],
	}
}

// SessionCode buckets a UTC timestamp into the trading session used as a
// bandit context feature: 0 Asia, 1 Europe, 2 US.
func SessionCode(ts time.Time) int {
	switch h := ts.UTC().Hour(); {
	case h < 8:
		return 0
	case h < 16:
		return 1
	default:
		return 2
	}
}
