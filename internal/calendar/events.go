package calendar

import (
	"time"
)

// Event is one calendar or news record as it arrives off the wire. Feeds
// disagree on field names and timestamp shapes, so records stay generic and
// are read through the accessors below.
type Event map[string]any

// timestamp field names seen across providers
var tsAliases = []string{"ts", "time", "timestamp", "datetime"}

var tsLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// When extracts the event timestamp. Unparsable or absent timestamps return
// ok=false; callers skip such events rather than failing.
func (e Event) When() (time.Time, bool) {
	for _, key := range tsAliases {
		raw, present := e[key]
		if !present {
			continue
		}
		switch v := raw.(type) {
		case time.Time:
			return v.UTC(), true
		case string:
			if ts, ok := parseTimestamp(v); ok {
				return ts, true
			}
		}
	}
	return time.Time{}, false
}

// Name returns the event identifier ("US_CPI", ...), empty when absent.
func (e Event) Name() string {
	for _, key := range []string{"event", "name", "headline"} {
		if v, ok := e[key].(string); ok {
			return v
		}
	}
	return ""
}

// SurpriseZ returns the calendar surprise z-score, 0 when absent.
func (e Event) SurpriseZ() float64 {
	switch v := e["surprise_z"].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func parseTimestamp(raw string) (time.Time, bool) {
	for _, layout := range tsLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			// bare layouts carry no zone; they are UTC by convention
			if ts.Location() == time.UTC {
				return ts, true
			}
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}
