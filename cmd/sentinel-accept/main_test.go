package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/lynxops/sentinel/internal/evidence"
)

func TestRunGreenPosture(t *testing.T) {
	evidenceDir := t.TempDir()
	day := time.Now().UTC().Format("2006-01-02")
	if err := evidence.Write(evidenceDir, day, evidence.Snapshot{
		Uptime: 0.9999, SuccessRate: 0.999, P95ResponseTime: 800,
	}); err != nil {
		t.Fatalf("write evidence: %v", err)
	}
	t.Setenv("SENTINEL_EVIDENCE_DIR", evidenceDir)
	t.Setenv("SENTINEL_ARTIFACTS_DIR", t.TempDir())
	t.Setenv("SENTINEL_HARNESS_TASK_DELAY", "1ms")
	t.Setenv("SENTINEL_RESUME_PROPAGATION_DELAY", "1ms")

	var stdout, stderr bytes.Buffer
	code := run(&stdout, &stderr)
	if code != 0 {
		t.Fatalf("expected code 0, got %d\nstdout: %s\nstderr: %s", code, stdout.String(), stderr.String())
	}
	out := stdout.String()
	if !strings.Contains(out, "5/5 passed") {
		t.Fatalf("expected full pass summary, got: %q", out)
	}
}

func TestRunFailsWithoutEvidence(t *testing.T) {
	t.Setenv("SENTINEL_EVIDENCE_DIR", t.TempDir())
	t.Setenv("SENTINEL_ARTIFACTS_DIR", t.TempDir())
	t.Setenv("SENTINEL_HARNESS_TASK_DELAY", "1ms")
	t.Setenv("SENTINEL_RESUME_PROPAGATION_DELAY", "1ms")

	var stdout, stderr bytes.Buffer
	code := run(&stdout, &stderr)
	if code != 1 {
		t.Fatalf("expected code 1, got %d", code)
	}
	out := stdout.String()
	if !strings.Contains(out, "FAIL") || !strings.Contains(out, "evidence_pack_validation") {
		t.Fatalf("expected evidence failure in summary, got: %q", out)
	}
	if !strings.Contains(out, "does not exist") {
		t.Fatalf("expected missing-pack message, got: %q", out)
	}
}

func TestRunRejectsBadConfig(t *testing.T) {
	t.Setenv("SENTINEL_DB_DRIVER", "oracle")

	var stdout, stderr bytes.Buffer
	code := run(&stdout, &stderr)
	if code != 1 {
		t.Fatalf("expected code 1, got %d", code)
	}
	if !strings.Contains(stderr.String(), "db.driver") {
		t.Fatalf("unexpected stderr: %q", stderr.String())
	}
}
