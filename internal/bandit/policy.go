package bandit

import (
	"math"
	"math/rand"
)

// SelectionPolicy scores the arm table and returns the winner. The caller
// holds the bandit lock; implementations must not retain the map.
type SelectionPolicy interface {
	Select(arms map[string]*ArmState, rng *rand.Rand) string
}

// ThompsonPolicy draws one sample per arm from Beta(alpha, beta) and picks
// the maximum. Arms with few pulls have wide posteriors and occasionally win
// on variance; arms with strong positive evidence dominate over time.
type ThompsonPolicy struct{}

func (ThompsonPolicy) Select(arms map[string]*ArmState, rng *rand.Rand) string {
	const eps = 1e-3 // guard against degenerate shape parameters
	best := ""
	bestSample := math.Inf(-1)
	for name, arm := range arms {
		sample := betaSample(rng, math.Max(arm.Alpha, eps), math.Max(arm.Beta, eps))
		if sample > bestSample {
			best, bestSample = name, sample
		}
	}
	return best
}

// UCB1Policy scores each arm by mean reward plus an exploration bonus that
// shrinks as the arm accumulates pulls.
type UCB1Policy struct{}

func (UCB1Policy) Select(arms map[string]*ArmState, rng *rand.Rand) string {
	total := 0
	for _, arm := range arms {
		total += maxInt(arm.Pulls, 1)
	}
	best := ""
	bestScore := math.Inf(-1)
	for name, arm := range arms {
		pulls := float64(maxInt(arm.Pulls, 1))
		mean := arm.RewardSum / pulls
		bonus := math.Sqrt(2 * math.Log(float64(total)) / pulls)
		if score := mean + bonus; score > bestScore {
			best, bestScore = name, score
		}
	}
	return best
}

// PolicyFor maps a config algo name to a policy, defaulting to Thompson.
func PolicyFor(algo string) SelectionPolicy {
	if algo == "ucb1" {
		return UCB1Policy{}
	}
	return ThompsonPolicy{}
}

// betaSample draws from Beta(a, b) via two gamma draws.
func betaSample(rng *rand.Rand, a, b float64) float64 {
	x := gammaSample(rng, a)
	y := gammaSample(rng, b)
	if x+y == 0 {
		return 0.5
	}
	return x / (x + y)
}

// gammaSample draws from Gamma(shape, 1) with the Marsaglia-Tsang method.
func gammaSample(rng *rand.Rand, shape float64) float64 {
	if shape < 1 {
		u := rng.Float64()
		return gammaSample(rng, shape+1) * math.Pow(u, 1/shape)
	}
	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9*d)
	for {
		x := rng.NormFloat64()
		v := 1 + c*x
		if v <= 0 {
			continue
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1-0.0331*x*x*x*x {
			return d * v
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}
