package evidence

import (
	"strings"
	"testing"
)

func TestLoadRoundtrip(t *testing.T) {
	dir := t.TempDir()
	want := Snapshot{Uptime: 0.9999, SuccessRate: 0.995, P95ResponseTime: 1200}

	if err := Write(dir, "2026-08-28", want); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := Load(dir, "2026-08-28")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != want {
		t.Fatalf("roundtrip mismatch: got %+v want %+v", got, want)
	}
}

func TestLoadMissingPack(t *testing.T) {
	_, err := Load(t.TempDir(), "2026-08-28")
	if err == nil {
		t.Fatal("expected error for missing pack")
	}
	if !strings.Contains(err.Error(), "does not exist") {
		t.Fatalf("unexpected error %q", err.Error())
	}
}

func TestCheckCompliant(t *testing.T) {
	snap := Snapshot{Uptime: 0.9995, SuccessRate: 0.98, P95ResponseTime: 2500}
	if misses := Check(snap); len(misses) != 0 {
		t.Fatalf("expected compliance at exact thresholds, got %v", misses)
	}
}

func TestCheckItemizesMisses(t *testing.T) {
	snap := Snapshot{Uptime: 0.9994, SuccessRate: 0.97, P95ResponseTime: 3000}
	misses := Check(snap)
	if len(misses) != 3 {
		t.Fatalf("expected 3 misses, got %v", misses)
	}
	if !strings.Contains(misses[0], "Uptime") {
		t.Fatalf("expected uptime miss first, got %q", misses[0])
	}
	if !strings.Contains(misses[1], "Success rate") {
		t.Fatalf("expected success rate miss, got %q", misses[1])
	}
	if !strings.Contains(misses[2], "Response time") {
		t.Fatalf("expected response time miss, got %q", misses[2])
	}
}

func TestCheckSingleMiss(t *testing.T) {
	snap := Snapshot{Uptime: 0.9994, SuccessRate: 0.99, P95ResponseTime: 1000}
	misses := Check(snap)
	if len(misses) != 1 || !strings.Contains(misses[0], "Uptime") {
		t.Fatalf("expected a single uptime miss, got %v", misses)
	}
}
