package bandit

import (
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/hannlab/autotrader/internal/observ"
)

// ErrNoArms is returned by SelectArm before any arm has been registered.
var ErrNoArms = errors.New("no arms registered for bandit selection")

// ArmState is the per-strategy Beta posterior plus bookkeeping.
type ArmState struct {
	Alpha     float64 `json:"alpha"`
	Beta      float64 `json:"beta"`
	Pulls     int     `json:"pulls"`
	RewardSum float64 `json:"reward_sum"`
}

// Context carries the per-cycle feature vector. It is threaded through
// selection and update for audit logging but does not enter the posterior
// math; reward attribution is purely per-arm.
type Context map[string]float64

// Bandit tracks one Beta posterior per strategy arm and delegates the live
// pick to a SelectionPolicy. Safe for concurrent use; the daemon loop is
// single-threaded today but the arm table is serialized under one mutex
// regardless.
type Bandit struct {
	mu         sync.Mutex
	policy     SelectionPolicy
	priorAlpha float64
	priorBeta  float64
	arms       map[string]*ArmState
	rng        *rand.Rand
}

// Option configures a Bandit at construction.
type Option func(*Bandit)

// WithRand overrides the random source, mainly for deterministic tests.
func WithRand(rng *rand.Rand) Option {
	return func(b *Bandit) { b.rng = rng }
}

// WithPolicy overrides the selection policy (default Thompson sampling).
func WithPolicy(p SelectionPolicy) Option {
	return func(b *Bandit) { b.policy = p }
}

func New(priorAlpha, priorBeta float64, opts ...Option) *Bandit {
	b := &Bandit{
		policy:     ThompsonPolicy{},
		priorAlpha: priorAlpha,
		priorBeta:  priorBeta,
		arms:       map[string]*ArmState{},
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// RegisterArm initializes an arm at the prior. Idempotent.
func (b *Bandit) RegisterArm(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.registerLocked(name)
}

func (b *Bandit) registerLocked(name string) *ArmState {
	arm, ok := b.arms[name]
	if !ok {
		arm = &ArmState{Alpha: b.priorAlpha, Beta: b.priorBeta}
		b.arms[name] = arm
		observ.Debug("bandit_arm_registered", map[string]any{"arm": name})
	}
	return arm
}

// SelectArm picks one registered arm. The context is recorded but does not
// influence the pick.
func (b *Bandit) SelectArm(ctx Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.arms) == 0 {
		return "", ErrNoArms
	}
	chosen := b.policy.Select(b.arms, b.rng)
	observ.IncCounter("bandit_selections_total", map[string]string{"arm": chosen})
	return chosen, nil
}

// Update folds one realized reward into an arm's posterior: positive reward
// strengthens alpha, negative reward strengthens beta. Unseen arms are
// registered first. Neither shape parameter ever falls below its prior.
func (b *Bandit) Update(arm string, reward float64, ctx Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	state := b.registerLocked(arm)
	state.Pulls++
	state.RewardSum += reward
	state.Alpha = math.Max(b.priorAlpha, state.Alpha+math.Max(reward, 0))
	state.Beta = math.Max(b.priorBeta, state.Beta+math.Max(-reward, 0))
	observ.Debug("bandit_arm_updated", map[string]any{
		"arm":    arm,
		"reward": reward,
		"alpha":  state.Alpha,
		"beta":   state.Beta,
		"pulls":  state.Pulls,
	})
}

// ApplyDecay pulls every arm's belief back toward the prior with a half-life
// measured in trades, so stale evidence loses influence in non-stationary
// markets. No-op for halfLifeTrades <= 0.
func (b *Bandit) ApplyDecay(halfLifeTrades int) {
	if halfLifeTrades <= 0 {
		return
	}
	decay := math.Exp(math.Log(0.5) / float64(halfLifeTrades))
	b.mu.Lock()
	defer b.mu.Unlock()
	for name, arm := range b.arms {
		arm.Pulls = maxInt(1, int(float64(arm.Pulls)*decay))
		arm.RewardSum *= decay
		arm.Alpha = b.priorAlpha + (arm.Alpha-b.priorAlpha)*decay
		arm.Beta = b.priorBeta + (arm.Beta-b.priorBeta)*decay
		observ.Debug("bandit_arm_decayed", map[string]any{
			"arm":   name,
			"alpha": arm.Alpha,
			"beta":  arm.Beta,
		})
	}
	observ.IncCounter("bandit_decays_total", nil)
}

// Arms returns a copy of the arm table for inspection and persistence.
func (b *Bandit) Arms() map[string]ArmState {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]ArmState, len(b.arms))
	for name, arm := range b.arms {
		out[name] = *arm
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
