package evidence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SLO thresholds the dated evidence pack is checked against.
const (
	MinUptime      = 0.9995
	MinSuccessRate = 0.98
	MaxP95MS       = 2500.0
)

const snapshotFile = "slo_snapshot.json"

// Snapshot is the per-day SLO evidence artifact.
type Snapshot struct {
	Uptime          float64 `json:"uptime"`
	SuccessRate     float64 `json:"successRate"`
	P95ResponseTime float64 `json:"p95ResponseTime"`
}

// Load reads the snapshot for the given day (YYYY-MM-DD) from dir. A missing
// pack is an error naming the expected path.
func Load(dir string, day string) (Snapshot, error) {
	path := filepath.Join(dir, day, snapshotFile)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, fmt.Errorf("evidence pack %s does not exist", path)
		}
		return Snapshot{}, err
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return snap, nil
}

// Write persists the snapshot under dir/day, creating directories as needed.
func Write(dir string, day string, snap Snapshot) error {
	packDir := filepath.Join(dir, day)
	if err := os.MkdirAll(packDir, 0o755); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(packDir, snapshotFile), raw, 0o644)
}

// Check compares the snapshot against the SLO thresholds and returns one
// message per miss. An empty slice means full compliance.
func Check(snap Snapshot) []string {
	var misses []string
	if snap.Uptime < MinUptime {
		misses = append(misses, fmt.Sprintf("Uptime %.4f below threshold %.4f", snap.Uptime, MinUptime))
	}
	if snap.SuccessRate < MinSuccessRate {
		misses = append(misses, fmt.Sprintf("Success rate %.4f below threshold %.4f", snap.SuccessRate, MinSuccessRate))
	}
	if snap.P95ResponseTime > MaxP95MS {
		misses = append(misses, fmt.Sprintf("Response time p95 %.0fms above threshold %.0fms", snap.P95ResponseTime, MaxP95MS))
	}
	return misses
}
