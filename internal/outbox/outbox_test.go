package outbox

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestAppendWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "outbox.jsonl")
	ob, err := New(path, 300)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if err := ob.Append("order", map[string]any{"symbol": "XAUUSD", "lot": 0.1}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := ob.Append("fill", map[string]any{"ticket": 1}); err != nil {
		t.Fatalf("append: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var types []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("line not valid JSON: %v", err)
		}
		if entry.Event.IsZero() {
			t.Fatalf("entry missing append time")
		}
		types = append(types, entry.Type)
	}
	if len(types) != 2 || types[0] != "order" || types[1] != "fill" {
		t.Fatalf("want [order fill], got %v", types)
	}
}

func TestHasRecentKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outbox.jsonl")
	ob, err := New(path, 300)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if err := ob.Append("order", map[string]any{"idempotency_key": "abc-123"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	found, err := ob.HasRecentKey("abc-123")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !found {
		t.Fatalf("fresh key must be found inside the window")
	}

	missing, err := ob.HasRecentKey("never-seen")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if missing {
		t.Fatalf("unknown key must not match")
	}
}

func TestHasRecentKey_WindowExpiry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outbox.jsonl")
	ob, err := New(path, 0) // zero window: everything is stale
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := ob.Append("order", map[string]any{"idempotency_key": "old"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	found, err := ob.HasRecentKey("old")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if found {
		t.Fatalf("key outside the dedupe window must not match")
	}
}

func TestHasRecentKey_MissingFile(t *testing.T) {
	ob, err := New(filepath.Join(t.TempDir(), "none.jsonl"), 300)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	found, err := ob.HasRecentKey("anything")
	if err != nil || found {
		t.Fatalf("missing file must read as empty, got (%v, %v)", found, err)
	}
}
