package drift

import (
	"math"

	"github.com/hannlab/autotrader/internal/observ"
)

// Detector is an ADWIN-style adaptive-window change detector over a scalar
// stream. The window grows while the stream looks stationary and is cut at
// the point where two sub-windows disagree beyond the Hoeffding bound, which
// is exactly when Update reports true.
//
// delta is the detector's confidence parameter: smaller values demand
// stronger evidence before signalling a change.
type Detector struct {
	delta   float64
	buckets []bucket // oldest first
	total   float64
	count   int
}

// bucket compresses 'count' observations (a power of two) into their sum.
type bucket struct {
	sum   float64
	count int
}

// maxBucketsPerRow bounds memory per exponential size class.
const maxBucketsPerRow = 5

func New(delta float64) *Detector {
	if delta <= 0 {
		delta = 0.002
	}
	return &Detector{delta: delta}
}

// Update folds one value into the window and reports true exactly on the
// step a distribution change is detected. On detection the stale head of
// the window has already been dropped.
func (d *Detector) Update(value float64) bool {
	d.buckets = append(d.buckets, bucket{sum: value, count: 1})
	d.total += value
	d.count++
	d.compress()

	changed := false
	for d.cutHead() {
		changed = true
	}
	if changed {
		observ.Log("drift_detected", map[string]any{"window": d.count})
	}
	return changed
}

// Width returns the current window length.
func (d *Detector) Width() int { return d.count }

// compress merges the two oldest buckets of any size class that exceeds
// maxBucketsPerRow, keeping the histogram logarithmic in window length.
func (d *Detector) compress() {
	for size := 1; ; size *= 2 {
		idxs := make([]int, 0, maxBucketsPerRow+1)
		for i, b := range d.buckets {
			if b.count == size {
				idxs = append(idxs, i)
			}
		}
		if len(idxs) <= maxBucketsPerRow {
			if len(idxs) == 0 {
				return
			}
			continue
		}
		// merge the two oldest of this size
		i, j := idxs[0], idxs[1]
		d.buckets[i].sum += d.buckets[j].sum
		d.buckets[i].count += d.buckets[j].count
		d.buckets = append(d.buckets[:j], d.buckets[j+1:]...)
	}
}

// cutHead tests every bucket boundary as a split of the window into an old
// and a recent part. If any split's means differ beyond the bound, the
// oldest bucket is dropped and true is returned.
func (d *Detector) cutHead() bool {
	if len(d.buckets) < 2 {
		return false
	}
	var n0 int
	var sum0 float64
	for _, b := range d.buckets[:len(d.buckets)-1] {
		n0 += b.count
		sum0 += b.sum
		n1 := d.count - n0
		if n0 < 1 || n1 < 1 {
			continue
		}
		mu0 := sum0 / float64(n0)
		mu1 := (d.total - sum0) / float64(n1)
		if math.Abs(mu0-mu1) >= d.epsCut(n0, n1) {
			head := d.buckets[0]
			d.buckets = d.buckets[1:]
			d.total -= head.sum
			d.count -= head.count
			return true
		}
	}
	return false
}

func (d *Detector) epsCut(n0, n1 int) float64 {
	m := 1.0 / (1.0/float64(n0) + 1.0/float64(n1))
	deltaPrime := d.delta / float64(d.count)
	return math.Sqrt(1.0 / (2 * m) * math.Log(4/deltaPrime))
}
