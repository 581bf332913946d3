package wf

import (
	"fmt"
	"time"

	"github.com/hannlab/autotrader/internal/observ"
	"github.com/hannlab/autotrader/internal/store"
)

// Decision values returned by ShadowCompare.
const (
	DecisionPromote = "promote"
	DecisionHold    = "hold"
)

// Lifecycle states of a walk-forward entry.
const (
	StatusCandidate = "candidate"
	StatusShadow    = "shadow"
	StatusProd      = "prod"
)

// ScheduleConfig sets the revalidation windows, in days back from now.
type ScheduleConfig struct {
	TrainWindowDays int `yaml:"train_window_days"`
	TestWindowDays  int `yaml:"test_window_days"`
	Splits          int `yaml:"splits"`
	EmbargoBars     int `yaml:"embargo_bars"`
}

// ShadowConfig sets the three promotion thresholds a shadow candidate must
// clear.
type ShadowConfig struct {
	MinTrades int     `yaml:"min_trades"`
	MinSharpe float64 `yaml:"min_sharpe"`
	MaxMDDPct float64 `yaml:"max_mdd_pct"`
}

// Evaluator produces performance metrics for a train/test window pair.
// Metrics must include "trades", "sharpe" and "mdd".
type Evaluator interface {
	Evaluate(trainStart, testStart time.Time) (map[string]float64, error)
}

// Runner drives the weekly revalidation pipeline: evaluate a fresh window,
// register the result as a candidate, compare it in shadow, and promote
// when it clears every threshold.
type Runner struct {
	schedule ScheduleConfig
	shadow   ShadowConfig
	registry *store.Store
	eval     Evaluator
}

func NewRunner(schedule ScheduleConfig, shadow ShadowConfig, registry *store.Store, eval Evaluator) *Runner {
	return &Runner{schedule: schedule, shadow: shadow, registry: registry, eval: eval}
}

// RunWeeklyWF evaluates the configured windows ending at now and registers
// the result as a candidate entry, returning its id.
func (r *Runner) RunWeeklyWF(now time.Time) (int64, error) {
	trainStart := now.AddDate(0, 0, -r.schedule.TrainWindowDays)
	testStart := now.AddDate(0, 0, -r.schedule.TestWindowDays)

	metrics, err := r.eval.Evaluate(trainStart, testStart)
	if err != nil {
		return 0, fmt.Errorf("walk-forward evaluation: %w", err)
	}

	id, err := r.registry.RegisterWF(store.WFEntry{
		TS:          now,
		WindowTrain: trainStart.Format("2006-01-02"),
		WindowTest:  testStart.Format("2006-01-02"),
		Config: map[string]float64{
			"train_window_days": float64(r.schedule.TrainWindowDays),
			"test_window_days":  float64(r.schedule.TestWindowDays),
			"splits":            float64(r.schedule.Splits),
			"embargo_bars":      float64(r.schedule.EmbargoBars),
		},
		Metrics: metrics,
		Status:  StatusCandidate,
	})
	if err != nil {
		return 0, err
	}
	observ.Log("wf_candidate_created", map[string]any{"id": id, "metrics": metrics})
	return id, nil
}

// ShadowCompare moves the candidate into shadow status and evaluates the
// promotion thresholds. "promote" requires all three to pass; anything else
// holds the candidate in shadow where a later cycle re-evaluates it. There
// is no automatic discard.
func (r *Runner) ShadowCompare(candidateID, prodID int64) (string, error) {
	entry, err := r.registry.GetWFEntry(candidateID)
	if err != nil {
		return DecisionHold, err
	}
	if entry == nil {
		observ.Warn("wf_candidate_missing", map[string]any{"id": candidateID})
		return DecisionHold, nil
	}
	if err := r.registry.UpdateWFStatus(candidateID, StatusShadow); err != nil {
		return DecisionHold, err
	}

	trades := entry.Metrics["trades"]
	sharpe := entry.Metrics["sharpe"]
	mdd := entry.Metrics["mdd"]
	if int(trades) >= r.shadow.MinTrades && sharpe >= r.shadow.MinSharpe && mdd <= r.shadow.MaxMDDPct {
		observ.Log("wf_promotion_criteria_met", map[string]any{"id": candidateID})
		return DecisionPromote, nil
	}
	observ.Log("wf_candidate_held", map[string]any{
		"id":     candidateID,
		"trades": trades,
		"sharpe": sharpe,
		"mdd":    mdd,
	})
	return DecisionHold, nil
}

// PromoteToProd moves the entry into prod status. Earlier prod entries are
// left as-is; several can coexist and LatestProd resolves by recency.
func (r *Runner) PromoteToProd(candidateID int64) error {
	if err := r.registry.UpdateWFStatus(candidateID, StatusProd); err != nil {
		return err
	}
	observ.Log("wf_promoted", map[string]any{"id": candidateID})
	return nil
}
