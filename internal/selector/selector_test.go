package selector

import (
	"math/rand"
	"testing"
	"time"

	"github.com/hannlab/autotrader/internal/bandit"
	"github.com/hannlab/autotrader/internal/market"
	"github.com/hannlab/autotrader/internal/risk"
	"github.com/hannlab/autotrader/internal/strategy"
)

// pinned always selects one fixed arm, no matter the posteriors.
type pinned struct{ arm string }

func (p pinned) Select(arms map[string]*bandit.ArmState, rng *rand.Rand) string { return p.arm }

func testEngine() *risk.Engine {
	return risk.NewEngine(&risk.Policy{
		Symbol:              "XAUUSD",
		DailyMaxDrawdownPct: 5,
		MaxPositions:        1,
		SpreadMaxPoints:     40,
		ATRStopMult:         1.5,
		ATRTrailMult:        1.0,
		LotMin:              0.05,
		LotStep:             0.01,
		LotPolicy:           []risk.LotTier{{BalanceMin: 100, BalanceMax: 500, Lot: 0.10}},
	})
}

func testCandidate(name string) Candidate {
	bars := market.New(30)
	start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 30; i++ {
		bars.Append(start.Add(time.Duration(i)*5*time.Minute), 1950, 1952, 1948, 1950, 100)
	}
	return Candidate{
		Strategy: strategy.NewTrendEMA(),
		Signal:   strategy.Signal{Direction: strategy.Long, Confidence: 0.6},
		Bars:     bars,
	}
}

func TestChoose_NoCandidates(t *testing.T) {
	b := bandit.New(1, 1)
	arm, lot := Choose(b, nil, nil, 1000, testEngine())
	if arm != "" || lot != 0 {
		t.Fatalf(`want ("", 0), got (%q, %v)`, arm, lot)
	}
}

func TestChoose_SizesChosenArm(t *testing.T) {
	b := bandit.New(1, 1, bandit.WithPolicy(pinned{arm: "trend_M5"}))
	cands := map[string]Candidate{"trend_M5": testCandidate("trend_M5")}
	ctxs := map[string]bandit.Context{"trend_M5": {"atr": 2}}

	arm, lot := Choose(b, ctxs, cands, 150, testEngine())
	if arm != "trend_M5" {
		t.Fatalf("want trend_M5, got %q", arm)
	}
	if lot != 0.10 {
		t.Fatalf("lot must come from the tier table: want 0.10, got %v", lot)
	}
}

func TestChoose_RegistersNewArms(t *testing.T) {
	b := bandit.New(1, 1, bandit.WithPolicy(pinned{arm: "fresh"}))
	cands := map[string]Candidate{"fresh": testCandidate("fresh")}

	arm, _ := Choose(b, map[string]bandit.Context{}, cands, 1000, testEngine())
	if arm != "fresh" {
		t.Fatalf("new candidate must be selectable immediately, got %q", arm)
	}
	if _, ok := b.Arms()["fresh"]; !ok {
		t.Fatalf("candidate was not registered with the bandit")
	}
}

func TestChoose_StaleArmSitsOut(t *testing.T) {
	// the bandit knows an arm that produced no signal this cycle
	b := bandit.New(1, 1, bandit.WithPolicy(pinned{arm: "retired"}))
	b.RegisterArm("retired")
	cands := map[string]Candidate{"active": testCandidate("active")}

	arm, lot := Choose(b, map[string]bandit.Context{}, cands, 1000, testEngine())
	if arm != "" || lot != 0 {
		t.Fatalf("arm without a live signal must yield no trade, got (%q, %v)", arm, lot)
	}
}
