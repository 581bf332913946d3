package wf

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/hannlab/autotrader/internal/store"
)

type fixedEvaluator struct {
	metrics map[string]float64
	err     error
}

func (f fixedEvaluator) Evaluate(trainStart, testStart time.Time) (map[string]float64, error) {
	return f.metrics, f.err
}

func newTestRunner(t *testing.T, metrics map[string]float64) (*Runner, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "wf.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	schedule := ScheduleConfig{TrainWindowDays: 30, TestWindowDays: 7, Splits: 5, EmbargoBars: 5}
	shadow := ShadowConfig{MinTrades: 20, MinSharpe: 0.5, MaxMDDPct: 15}
	return NewRunner(schedule, shadow, st, fixedEvaluator{metrics: metrics}), st
}

func TestRunWeeklyWF_RegistersCandidate(t *testing.T) {
	r, st := newTestRunner(t, map[string]float64{"trades": 25, "sharpe": 1.1, "mdd": 4})
	now := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	id, err := r.RunWeeklyWF(now)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	entry, err := st.GetWFEntry(id)
	if err != nil || entry == nil {
		t.Fatalf("entry not stored: %v", err)
	}
	if entry.Status != StatusCandidate {
		t.Fatalf("want candidate status, got %s", entry.Status)
	}
	if entry.WindowTrain != "2025-05-03" || entry.WindowTest != "2025-05-26" {
		t.Fatalf("unexpected windows: %s / %s", entry.WindowTrain, entry.WindowTest)
	}
	if entry.Metrics["sharpe"] != 1.1 {
		t.Fatalf("metrics not persisted: %+v", entry.Metrics)
	}
}

func TestShadowCompare_PromotesOnlyWhenAllGatesPass(t *testing.T) {
	cases := []struct {
		name    string
		metrics map[string]float64
		want    string
	}{
		{"all pass", map[string]float64{"trades": 20, "sharpe": 0.5, "mdd": 15}, DecisionPromote},
		{"too few trades", map[string]float64{"trades": 19, "sharpe": 2.0, "mdd": 1}, DecisionHold},
		{"sharpe below floor", map[string]float64{"trades": 50, "sharpe": 0.49, "mdd": 1}, DecisionHold},
		{"drawdown too deep", map[string]float64{"trades": 50, "sharpe": 2.0, "mdd": 15.1}, DecisionHold},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, st := newTestRunner(t, tc.metrics)
			id, err := r.RunWeeklyWF(time.Now().UTC())
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			decision, err := r.ShadowCompare(id, 0)
			if err != nil {
				t.Fatalf("compare: %v", err)
			}
			if decision != tc.want {
				t.Fatalf("want %s, got %s", tc.want, decision)
			}
			entry, _ := st.GetWFEntry(id)
			if entry.Status != StatusShadow {
				t.Fatalf("compare must move the entry to shadow, got %s", entry.Status)
			}
		})
	}
}

func TestShadowCompare_MissingCandidateHolds(t *testing.T) {
	r, _ := newTestRunner(t, nil)
	decision, err := r.ShadowCompare(9999, 0)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if decision != DecisionHold {
		t.Fatalf("missing candidate must hold, got %s", decision)
	}
}

func TestPromoteToProd_KeepsEarlierProdEntries(t *testing.T) {
	r, st := newTestRunner(t, map[string]float64{"trades": 30, "sharpe": 1.0, "mdd": 2})

	first, err := r.RunWeeklyWF(time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := r.PromoteToProd(first); err != nil {
		t.Fatalf("promote: %v", err)
	}
	second, err := r.RunWeeklyWF(time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := r.PromoteToProd(second); err != nil {
		t.Fatalf("promote: %v", err)
	}

	old, _ := st.GetWFEntry(first)
	if old.Status != StatusProd {
		t.Fatalf("earlier prod entry must not be demoted, got %s", old.Status)
	}
	latest, err := st.LatestProd()
	if err != nil {
		t.Fatalf("latest prod: %v", err)
	}
	if latest.ID != second {
		t.Fatalf("latest prod should resolve by recency: want %d, got %d", second, latest.ID)
	}
}
