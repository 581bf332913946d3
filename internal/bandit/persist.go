package bandit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hannlab/autotrader/internal/observ"
)

// SaveState writes the whole arm table as one JSON snapshot. The write goes
// through a temp file and rename so a crash mid-write never leaves a torn
// snapshot behind.
func (b *Bandit) SaveState(path string) error {
	snapshot := b.Arms()
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal bandit state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write bandit state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace bandit state: %w", err)
	}
	observ.Log("bandit_state_saved", map[string]any{"path": path, "arms": len(snapshot)})
	return nil
}

// LoadState replaces the arm table with a saved snapshot. A missing snapshot
// is not an error; the bandit simply starts fresh.
func (b *Bandit) LoadState(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		observ.Warn("bandit_state_missing", map[string]any{"path": path})
		return nil
	}
	if err != nil {
		return fmt.Errorf("read bandit state: %w", err)
	}
	var snapshot map[string]ArmState
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("parse bandit state: %w", err)
	}
	b.mu.Lock()
	b.arms = make(map[string]*ArmState, len(snapshot))
	for name, arm := range snapshot {
		st := arm
		b.arms[name] = &st
	}
	b.mu.Unlock()
	observ.Log("bandit_state_loaded", map[string]any{"path": path, "arms": len(snapshot)})
	return nil
}
