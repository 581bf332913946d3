package features

import (
	"fmt"
	"math"
	"time"

	"github.com/hannlab/autotrader/internal/bandit"
	"github.com/hannlab/autotrader/internal/calendar"
	"github.com/hannlab/autotrader/internal/indicators"
	"github.com/hannlab/autotrader/internal/market"
)

// NewsState bundles the per-cycle news/calendar readings that become
// context features.
type NewsState struct {
	Spread            float64
	NewsBias          float64
	NewsUncertainty   float64
	CalendarSurpriseZ float64
}

// FromSources condenses headline and calendar reads into a NewsState.
func FromSources(now time.Time, spread float64, headlines, upcoming []calendar.Event) NewsState {
	state := NewsState{Spread: spread}
	if len(headlines) > 0 {
		score := calendar.ScoreHeadline(headlines[0].Name())
		state.NewsBias = score.Bias
		if score.Uncertainty {
			state.NewsUncertainty = 1
		}
	}
	if len(upcoming) > 0 {
		state.CalendarSurpriseZ = upcoming[0].SurpriseZ()
	}
	return state
}

// Build assembles the feature context for one candidate strategy cycle.
// The context feeds bandit audit logging and the trade log; the bandit's
// selection math deliberately ignores it. Empty bar windows are a
// programming error and fail fast.
func Build(now time.Time, bars *market.Bars, news NewsState) (bandit.Context, error) {
	if err := bars.Validate(); err != nil {
		return nil, fmt.Errorf("build context: %w", err)
	}
	atr := indicators.Atr(bars.High, bars.Low, bars.Close, 14)
	trend := indicators.TrendScore(bars.Close)
	// NaN warmup values zero-fill so the context always serializes
	return bandit.Context{
		"atr":                 zeroNaN(atr[len(atr)-1]),
		"trend_score":         zeroNaN(trend[len(trend)-1]),
		"session_code":        float64(market.SessionCode(now)),
		"spread":              news.Spread,
		"llm_news_bias":       news.NewsBias,
		"news_uncertainty":    news.NewsUncertainty,
		"calendar_surprise_z": news.CalendarSurpriseZ,
	}, nil
}

func zeroNaN(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}
