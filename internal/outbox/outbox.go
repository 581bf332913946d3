package outbox

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Entry wraps every outbox line with its record type and append time.
type Entry struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data"`
	Event time.Time   `json:"event"`
}

// Outbox is the append-only JSONL audit trail of order attempts and fills.
// It exists alongside the store so a broker-side dispute can be settled
// from a flat file without opening the database.
type Outbox struct {
	path         string
	dedupeWindow time.Duration
}

func New(path string, dedupeWindowSecs int) (*Outbox, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &Outbox{
		path:         path,
		dedupeWindow: time.Duration(dedupeWindowSecs) * time.Second,
	}, nil
}

// Append writes one typed record as a JSONL line.
func (o *Outbox) Append(recordType string, data interface{}) error {
	entry := Entry{Type: recordType, Data: data, Event: time.Now().UTC()}
	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(o.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(string(line) + "\n")
	return err
}

// HasRecentKey reports whether a record with the given idempotency key was
// appended within the dedupe window, guarding against double submission.
func (o *Outbox) HasRecentKey(key string) (bool, error) {
	data, err := os.ReadFile(o.path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	cutoff := time.Now().UTC().Add(-o.dedupeWindow)
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		var entry Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if entry.Event.Before(cutoff) {
			continue
		}
		m, ok := entry.Data.(map[string]interface{})
		if !ok {
			continue
		}
		if k, _ := m["idempotency_key"].(string); k == key {
			return true, nil
		}
	}
	return false, nil
}
