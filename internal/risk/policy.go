package risk

import (
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
)

// LotTier maps a balance band to a lot size. BalanceMax == 0 means
// open-ended.
type LotTier struct {
	BalanceMin float64 `yaml:"balance_min" json:"balance_min" validate:"gte=0"`
	BalanceMax float64 `yaml:"balance_max" json:"balance_max" validate:"gte=0"`
	Lot        float64 `yaml:"lot" json:"lot" validate:"gt=0"`
}

// Policy is the immutable risk configuration. Loaded once at startup and
// validated there; gate methods assume a well-formed policy.
type Policy struct {
	Symbol                  string    `yaml:"symbol" validate:"required"`
	DailyMaxDrawdownPct     float64   `yaml:"daily_max_drawdown_pct" validate:"gt=0,lte=100"`
	MaxPositions            int       `yaml:"max_positions" validate:"gte=1"`
	PerTradeRiskPct         float64   `yaml:"per_trade_risk_pct" validate:"gte=0,lte=100"`
	SpreadMaxPoints         float64   `yaml:"spread_max_points" validate:"gt=0"`
	NewsBlackoutMinutes     int       `yaml:"news_blackout_minutes" validate:"gte=0"`
	ATRStopMult             float64   `yaml:"atr_stop_mult" validate:"gt=0"`
	ATRTrailMult            float64   `yaml:"atr_trail_mult" validate:"gt=0"`
	MaxSlippagePoints       int       `yaml:"max_slippage_points" validate:"gte=0"`
	MinStopDistancePoints   float64   `yaml:"min_stop_distance_points" validate:"gte=0"`
	LotMin                  float64   `yaml:"lot_min" validate:"gt=0"`
	LotStep                 float64   `yaml:"lot_step" validate:"gt=0"`
	ImportantEvents         []string  `yaml:"important_events"`
	LotPolicy               []LotTier `yaml:"lot_policy" validate:"dive"`
	KillSwitchOnBrokerError bool      `yaml:"kill_switch_on_broker_error"`
}

var validate = validator.New()

// Validate fails fast on a malformed policy. Beyond the struct tags it
// checks that lot tiers are internally consistent, so sizing never has to
// error at call time.
func (p *Policy) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("risk policy: %w", err)
	}
	for i, tier := range p.LotPolicy {
		if tier.BalanceMax != 0 && tier.BalanceMax <= tier.BalanceMin {
			return fmt.Errorf("risk policy: lot tier %d has balance_max <= balance_min", i)
		}
	}
	return nil
}

// sortedTiers returns the lot table ordered by BalanceMin so the first
// matching interval is deterministic regardless of config order.
func (p *Policy) sortedTiers() []LotTier {
	tiers := make([]LotTier, len(p.LotPolicy))
	copy(tiers, p.LotPolicy)
	sort.SliceStable(tiers, func(i, j int) bool { return tiers[i].BalanceMin < tiers[j].BalanceMin })
	return tiers
}

// importantOnly reports whether event filtering is active.
func (p *Policy) importantOnly() bool {
	return len(p.ImportantEvents) > 0
}

func (p *Policy) isImportant(name string) bool {
	for _, ev := range p.ImportantEvents {
		if ev == name {
			return true
		}
	}
	return false
}
