package selector

import (
	"github.com/hannlab/autotrader/internal/bandit"
	"github.com/hannlab/autotrader/internal/market"
	"github.com/hannlab/autotrader/internal/observ"
	"github.com/hannlab/autotrader/internal/risk"
	"github.com/hannlab/autotrader/internal/strategy"
)

// Candidate is one strategy with a live non-flat signal this cycle.
type Candidate struct {
	Strategy strategy.Strategy
	Signal   strategy.Signal
	Bars     *market.Bars
}

// Choose arbitrates between candidate strategies: every candidate is
// registered with the bandit first so a brand-new strategy is always
// selectable, then the bandit picks one arm and the risk engine sizes it.
// The returned ("", 0) means "do nothing this cycle".
//
// The bandit ignores context numerically, so any single candidate's context
// stands in for the whole set.
func Choose(b *bandit.Bandit, ctxs map[string]bandit.Context, candidates map[string]Candidate, balance float64, engine *risk.Engine) (string, float64) {
	if len(candidates) == 0 {
		return "", 0
	}
	for arm := range candidates {
		b.RegisterArm(arm)
	}
	var ctx bandit.Context
	for arm := range candidates {
		ctx = ctxs[arm]
		break
	}
	chosen, err := b.SelectArm(ctx)
	if err != nil {
		observ.Error("bandit_selection_failed", err, nil)
		return "", 0
	}
	if _, ok := candidates[chosen]; !ok {
		// stale arm with no live signal this cycle
		observ.Debug("chosen_arm_not_candidate", map[string]any{"arm": chosen})
		return "", 0
	}
	lot := engine.CalcLot(balance)
	observ.Log("strategy_selected", map[string]any{"arm": chosen, "lot": lot})
	return chosen, lot
}
