package risk

import (
	"math"
	"time"

	"github.com/hannlab/autotrader/internal/calendar"
	"github.com/hannlab/autotrader/internal/observ"
)

// Engine evaluates the safety gates and sizes positions. All gate methods
// are pure functions of their inputs except the kill switch, which latches.
type Engine struct {
	policy *Policy

	// Once tripped the kill switch stays set until process restart. There
	// is intentionally no reset path; treat a tripped switch as an
	// operational incident, not a transient state.
	killSwitch bool
}

func NewEngine(policy *Policy) *Engine {
	return &Engine{policy: policy}
}

func (e *Engine) Policy() *Policy { return e.policy }

// KillSwitchActive reports whether the daily drawdown breach has latched.
func (e *Engine) KillSwitchActive() bool { return e.killSwitch }

// CheckDailyDD returns true (blocking) when the daily drawdown is at or above
// the policy limit right now. A breach also latches the kill switch, but the
// latch is an operational signal only: once the drawdown recovers below the
// limit the gate passes again while KillSwitchActive stays true.
func (e *Engine) CheckDailyDD(ddPct float64) bool {
	if ddPct >= e.policy.DailyMaxDrawdownPct {
		if !e.killSwitch {
			observ.IncCounter("risk_kill_switch_trips_total", nil)
		}
		e.killSwitch = true
		observ.Warn("daily_drawdown_breached", map[string]any{
			"dd_pct": ddPct,
			"limit":  e.policy.DailyMaxDrawdownPct,
		})
		return true
	}
	return false
}

// SpreadOK accepts spreads up to and including the policy maximum.
func (e *Engine) SpreadOK(spreadPoints float64) bool {
	ok := spreadPoints <= e.policy.SpreadMaxPoints
	if !ok {
		observ.IncCounter("risk_gate_rejects_total", map[string]string{"gate": "spread"})
		observ.Log("spread_gate_reject", map[string]any{
			"spread_points": spreadPoints,
			"max_points":    e.policy.SpreadMaxPoints,
		})
	}
	return ok
}

// MaxPositionsOK rejects when the open position count is at or above the cap.
func (e *Engine) MaxPositionsOK(openPositions int) bool {
	ok := openPositions < e.policy.MaxPositions
	if !ok {
		observ.IncCounter("risk_gate_rejects_total", map[string]string{"gate": "positions"})
	}
	return ok
}

// NewsBlackout reports whether any event falls within the blackout window
// around now, boundary inclusive. When the policy carries an important-event
// allow-list only those events count. Events without a parsable timestamp
// are skipped.
func (e *Engine) NewsBlackout(now time.Time, events []calendar.Event) bool {
	window := time.Duration(e.policy.NewsBlackoutMinutes) * time.Minute
	for _, ev := range events {
		if e.policy.importantOnly() && !e.policy.isImportant(ev.Name()) {
			continue
		}
		ts, ok := ev.When()
		if !ok {
			continue
		}
		delta := now.Sub(ts)
		if delta < 0 {
			delta = -delta
		}
		if delta <= window {
			observ.IncCounter("risk_gate_rejects_total", map[string]string{"gate": "news"})
			observ.Log("news_blackout", map[string]any{
				"event":    ev.Name(),
				"event_ts": ts,
			})
			return true
		}
	}
	return false
}

// CalcLot sizes a position from the tiered lot table. The first tier whose
// half-open [min,max) band contains the balance wins; balances within 1e-9
// of an upper bound count as the bound itself and fall through to the next
// tier. No match falls back to lot_min. The result is floored at lot_min,
// rounded to the nearest lot_step away from zero, then rounded to 6 decimals
// to shed float noise.
func (e *Engine) CalcLot(balance float64) float64 {
	const eps = 1e-9
	lot := e.policy.LotMin
	for _, tier := range e.policy.sortedTiers() {
		max := tier.BalanceMax
		if max == 0 {
			max = math.Inf(1)
		}
		if balance >= tier.BalanceMin && max-balance > eps {
			lot = tier.Lot
			break
		}
	}
	if lot < e.policy.LotMin {
		lot = e.policy.LotMin
	}
	lot = math.Round(lot/e.policy.LotStep) * e.policy.LotStep
	lot = math.Round(lot*1e6) / 1e6
	observ.Debug("lot_sized", map[string]any{"balance": balance, "lot": lot})
	return lot
}
