package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRunUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := run([]string{"sentinel-incident"}, &stdout, &stderr)
	if code != 2 {
		t.Fatalf("expected code 2, got %d", code)
	}
	if !strings.Contains(stderr.String(), "usage: sentinel-incident") {
		t.Fatalf("unexpected stderr: %q", stderr.String())
	}
}

func TestRunUnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := run([]string{"sentinel-incident", "panic"}, &stdout, &stderr)
	if code != 2 {
		t.Fatalf("expected code 2, got %d", code)
	}
}

func TestHandleInvalidJSON(t *testing.T) {
	t.Setenv("SENTINEL_ARTIFACTS_DIR", t.TempDir())
	var stdout, stderr bytes.Buffer

	code := run([]string{"sentinel-incident", "handle", "{not-json"}, &stdout, &stderr)
	if code != 2 {
		t.Fatalf("expected code 2, got %d: %s", code, stderr.String())
	}
	if !strings.Contains(stderr.String(), "invalid incident json") {
		t.Fatalf("unexpected stderr: %q", stderr.String())
	}
}

func TestTestCommandHandlesCannedIncident(t *testing.T) {
	t.Setenv("SENTINEL_ARTIFACTS_DIR", t.TempDir())
	var stdout, stderr bytes.Buffer

	code := run([]string{"sentinel-incident", "test"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("expected code 0, got %d: %s", code, stderr.String())
	}
	out := stdout.String()
	if !strings.Contains(out, "status=active") {
		t.Fatalf("unexpected stdout: %q", out)
	}
	if !strings.Contains(out, "prepare_rollback") {
		t.Fatalf("expected medium response sequence, got: %q", out)
	}
}

func TestHandleLowIncident(t *testing.T) {
	t.Setenv("SENTINEL_ARTIFACTS_DIR", t.TempDir())
	var stdout, stderr bytes.Buffer

	report := `{"level":"low","type":"noise","description":"log only","source":"test"}`
	code := run([]string{"sentinel-incident", "handle", report}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("expected code 0, got %d: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "log_incident") {
		t.Fatalf("expected log action in output: %q", stdout.String())
	}
}

func TestListEmpty(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := run([]string{"sentinel-incident", "list"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("expected code 0, got %d: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "active incidents: 0") {
		t.Fatalf("unexpected stdout: %q", stdout.String())
	}
}

func TestResumeUnknownIncident(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := run([]string{"sentinel-incident", "resume", "missing-id"}, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("expected code 1, got %d", code)
	}
	if !strings.Contains(stderr.String(), "not found") {
		t.Fatalf("unexpected stderr: %q", stderr.String())
	}
}
