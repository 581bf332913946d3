package calendar

import (
	"strings"
	"time"
)

// Source provides upcoming and recent macro-calendar events. Read-only.
type Source interface {
	UpcomingEvents(now time.Time, horizon time.Duration) []Event
	RecentResults(now time.Time, window time.Duration) []Event
}

// NewsSource provides recent headlines. Read-only.
type NewsSource interface {
	RecentHeadlines(now time.Time, window time.Duration) []Event
}

// StaticSource serves a fixed event list, filtered by time window. It backs
// offline runs and tests; a live provider implements the same interfaces.
type StaticSource struct {
	Events    []Event
	Headlines []Event
}

// NewStaticSource seeds a source with one upcoming CPI print, one recent NFP
// result, and one headline, all relative to construction time.
func NewStaticSource(now time.Time) *StaticSource {
	return &StaticSource{
		Events: []Event{
			{"ts": now.Add(time.Hour).Format(time.RFC3339), "event": "US_CPI", "surprise_z": 0.5},
			{"ts": now.Add(-time.Hour).Format(time.RFC3339), "event": "US_NFP", "surprise_z": -1.2},
		},
		Headlines: []Event{
			{"ts": now.Add(-10 * time.Minute).Format(time.RFC3339), "headline": "Gold edges higher as USD weakens", "source": "MockWire"},
		},
	}
}

func (s *StaticSource) UpcomingEvents(now time.Time, horizon time.Duration) []Event {
	var out []Event
	for _, ev := range s.Events {
		ts, ok := ev.When()
		if !ok {
			continue
		}
		if ts.After(now) && ts.Sub(now) <= horizon {
			out = append(out, ev)
		}
	}
	return out
}

func (s *StaticSource) RecentResults(now time.Time, window time.Duration) []Event {
	var out []Event
	for _, ev := range s.Events {
		ts, ok := ev.When()
		if !ok {
			continue
		}
		if !ts.After(now) && now.Sub(ts) <= window {
			out = append(out, ev)
		}
	}
	return out
}

func (s *StaticSource) RecentHeadlines(now time.Time, window time.Duration) []Event {
	var out []Event
	for _, ev := range s.Headlines {
		ts, ok := ev.When()
		if !ok {
			continue
		}
		if !ts.After(now) && now.Sub(ts) <= window {
			out = append(out, ev)
		}
	}
	return out
}

// HeadlineScore is a coarse sentiment read of one headline.
type HeadlineScore struct {
	Bias        float64 // +1 bullish, -1 bearish, 0 neutral
	Confidence  float64
	Uncertainty bool
}

// ScoreHeadline classifies a headline with keyword rules. It stands in for
// the upstream language-model summarizer and keeps the same output shape.
func ScoreHeadline(headline string) HeadlineScore {
	h := strings.ToLower(headline)
	gold := strings.Contains(h, "gold")
	switch {
	case gold && (strings.Contains(h, "higher") || strings.Contains(h, "rally") || strings.Contains(h, "gains")):
		return HeadlineScore{Bias: 1, Confidence: 0.7}
	case gold && (strings.Contains(h, "lower") || strings.Contains(h, "slips") || strings.Contains(h, "falls")):
		return HeadlineScore{Bias: -1, Confidence: 0.7}
	default:
		return HeadlineScore{Bias: 0, Confidence: 0.5, Uncertainty: true}
	}
}
