package incident

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lynxops/sentinel/internal/store"
)

type recordingNotifier struct {
	mu     sync.Mutex
	bodies []string
}

func (n *recordingNotifier) Notify(ctx context.Context, subjectID string, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.bodies = append(n.bodies, body)
	return nil
}

type fixedHealth struct {
	healthy   bool
	compliant bool
}

func (h fixedHealth) Healthy(ctx context.Context) (bool, error)      { return h.healthy, nil }
func (h fixedHealth) SLOCompliant(ctx context.Context) (bool, error) { return h.compliant, nil }

func seedRunning(t *testing.T, mem *store.Memory, agents int, workflows int) {
	t.Helper()
	ctx := context.Background()
	at := time.Now().UTC().Format(time.RFC3339)
	for i := 0; i < agents; i++ {
		if err := mem.PutRuntimeStatus(ctx, store.RuntimeStatusRecord{
			ID: "agent-" + string(rune('a'+i)), Kind: store.KindAgent, Status: store.StatusRunning, ChangedAt: at,
		}); err != nil {
			t.Fatalf("seed agent: %v", err)
		}
	}
	for i := 0; i < workflows; i++ {
		if err := mem.PutRuntimeStatus(ctx, store.RuntimeStatusRecord{
			ID: "wf-" + string(rune('a'+i)), Kind: store.KindWorkflow, Status: store.StatusRunning, ChangedAt: at,
		}); err != nil {
			t.Fatalf("seed workflow: %v", err)
		}
	}
}

func newTestController(t *testing.T, mem *store.Memory, notifier Notifier, health HealthChecker) *Controller {
	t.Helper()
	sw := NewSwitch(mem)
	t.Cleanup(sw.Close)
	return NewController(mem, sw, notifier, health, Options{
		EmergencyStopTimeout:   5 * time.Second,
		SoftDegradeTimeout:     5 * time.Second,
		RollbackTimeout:        5 * time.Second,
		ResumePropagationDelay: time.Millisecond,
		ReducedConcurrency:     50,
		ArtifactsDir:           t.TempDir(),
	})
}

func TestHandleCriticalStopsSystem(t *testing.T) {
	mem := store.NewMemory()
	seedRunning(t, mem, 2, 1)
	notifier := &recordingNotifier{}
	ctrl := newTestController(t, mem, notifier, nil)
	ctx := context.Background()

	inc, err := ctrl.Handle(ctx, Report{Level: LevelCritical, Type: "data_corruption", Description: "bad writes", Source: "monitor"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if inc.Status != StatusActive {
		t.Fatalf("expected active incident, got %s", inc.Status)
	}
	if len(inc.Actions) != 4 {
		t.Fatalf("expected 4 actions, got %d", len(inc.Actions))
	}
	first := inc.Actions[0]
	if first.Type != ActionEmergencyStop || !first.Success {
		t.Fatalf("unexpected first action: %+v", first)
	}
	if first.Details["agents_stopped"] != 2 || first.Details["workflows_paused"] != 1 {
		t.Fatalf("unexpected stop details: %+v", first.Details)
	}

	status, err := ctrl.SystemStatus(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.EmergencyStopActive || status.IsRunning {
		t.Fatalf("expected stopped system, got %+v", status)
	}
	if status.RunningAgents != 0 || status.RunningWorkflows != 0 {
		t.Fatalf("expected nothing running, got %+v", status)
	}

	if len(notifier.bodies) != 1 || !strings.Contains(notifier.bodies[0], inc.ID) {
		t.Fatalf("expected stakeholder alert naming the incident, got %v", notifier.bodies)
	}
}

func TestHandleWritesArtifact(t *testing.T) {
	mem := store.NewMemory()
	seedRunning(t, mem, 1, 1)
	ctrl := newTestController(t, mem, nil, nil)

	inc, err := ctrl.Handle(context.Background(), Report{Level: LevelLow, Type: "noise", Source: "test"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}

	day := time.Now().UTC().Format("2006-01-02")
	path := filepath.Join(ctrl.opts.ArtifactsDir, "incident-"+inc.ID+"-"+day+".json")
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if !strings.Contains(string(raw), inc.ID) {
		t.Fatalf("artifact does not mention incident id")
	}
}

func TestResumeRestartsSystem(t *testing.T) {
	mem := store.NewMemory()
	seedRunning(t, mem, 2, 1)
	ctrl := newTestController(t, mem, nil, nil)
	ctx := context.Background()

	inc, err := ctrl.Handle(ctx, Report{Level: LevelCritical, Type: "overload", Source: "monitor"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}

	resolved, err := ctrl.Resume(ctx, inc.ID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resolved.Status != StatusResolved {
		t.Fatalf("expected resolved, got %s", resolved.Status)
	}
	if resolved.Resolution == nil || resolved.Resolution.Method != "manual_resume" {
		t.Fatalf("unexpected resolution: %+v", resolved.Resolution)
	}
	last := resolved.Actions[len(resolved.Actions)-1]
	if last.Type != ActionResume || !last.Success {
		t.Fatalf("unexpected resume action: %+v", last)
	}

	status, err := ctrl.SystemStatus(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.EmergencyStopActive || !status.IsRunning {
		t.Fatalf("expected running system, got %+v", status)
	}
}

func TestHandleHighAppliesDegrade(t *testing.T) {
	mem := store.NewMemory()
	seedRunning(t, mem, 1, 1)
	notifier := &recordingNotifier{}
	ctrl := newTestController(t, mem, notifier, nil)
	ctx := context.Background()

	inc, err := ctrl.Handle(ctx, Report{Level: LevelHigh, Type: "latency_spike", Source: "slo"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(inc.Actions) != 4 {
		t.Fatalf("expected 4 actions, got %d", len(inc.Actions))
	}
	degrade := inc.Actions[0]
	if degrade.Type != ActionSoftDegrade || !degrade.Success {
		t.Fatalf("unexpected degrade action: %+v", degrade)
	}
	for _, key := range []string{"concurrency_reduced", "dlq_paused", "canary_flags_safe", "resources_reduced"} {
		if degrade.Details[key] != true {
			t.Fatalf("expected %s, details: %+v", key, degrade.Details)
		}
	}

	conc, ok, err := mem.GetConfigValue(ctx, store.ConfigMaxConcurrency)
	if err != nil || !ok || conc.Value != "50" {
		t.Fatalf("unexpected concurrency: %+v ok=%v err=%v", conc, ok, err)
	}
	dlq, ok, _ := mem.GetConfigValue(ctx, store.ConfigDLQProcessing)
	if !ok || dlq.Value != "false" {
		t.Fatalf("expected paused dlq, got %+v", dlq)
	}
	alloc, ok, _ := mem.GetConfigValue(ctx, store.ConfigResourceAllocation)
	if !ok || alloc.Value != "minimal" {
		t.Fatalf("expected minimal allocation, got %+v", alloc)
	}
	for _, key := range canaryFlags {
		flag, ok, _ := mem.GetFlag(ctx, key)
		if !ok || flag.Value != "SAFE" {
			t.Fatalf("expected SAFE canary flag %s, got %+v", key, flag)
		}
	}

	// Degrade never raises the kill switch.
	status, _ := ctrl.SystemStatus(ctx)
	if status.EmergencyStopActive {
		t.Fatal("soft degrade must not engage the kill switch")
	}
}

func TestHandleMediumPreparesRollback(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	if err := mem.PutDeployment(ctx, store.DeploymentRecord{
		DeploymentID: "dep-1", Status: "successful", DeployedAt: "2026-08-01T00:00:00Z",
	}); err != nil {
		t.Fatalf("seed deployment: %v", err)
	}
	notifier := &recordingNotifier{}
	ctrl := newTestController(t, mem, notifier, nil)

	inc, err := ctrl.Handle(ctx, Report{Level: LevelMedium, Type: "error_rate", Source: "slo"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(inc.Actions) != 3 {
		t.Fatalf("expected 3 actions, got %d", len(inc.Actions))
	}
	prep := inc.Actions[1]
	if prep.Type != ActionPrepareRollback || !prep.Success {
		t.Fatalf("unexpected prepare action: %+v", prep)
	}
	if prep.Details["rollback_ready"] != true || prep.Details["deployment_id"] != "dep-1" {
		t.Fatalf("unexpected prepare details: %+v", prep.Details)
	}
}

func TestHandleDefaultsToMedium(t *testing.T) {
	mem := store.NewMemory()
	ctrl := newTestController(t, mem, nil, nil)

	inc, err := ctrl.Handle(context.Background(), Report{Type: "unlabeled", Source: "test"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if inc.Level != LevelMedium {
		t.Fatalf("expected medium default, got %s", inc.Level)
	}
}

func TestHandleUnknownLevelFails(t *testing.T) {
	mem := store.NewMemory()
	ctrl := newTestController(t, mem, nil, nil)
	ctx := context.Background()

	inc, err := ctrl.Handle(ctx, Report{Level: "catastrophic", Type: "x", Source: "test"})
	if err == nil {
		t.Fatal("expected error for unknown level")
	}
	if inc.Status != StatusFailed {
		t.Fatalf("expected failed incident, got %s", inc.Status)
	}

	// The failure is still persisted for operator review.
	rec, ok, err := mem.GetIncident(ctx, inc.ID)
	if err != nil || !ok || rec.Status != StatusFailed {
		t.Fatalf("expected persisted failed incident: %+v ok=%v err=%v", rec, ok, err)
	}
}

func TestRollbackSucceeds(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	if err := mem.PutDeployment(ctx, store.DeploymentRecord{
		DeploymentID: "dep-7", Status: "successful", DeployedAt: "2026-08-01T00:00:00Z",
	}); err != nil {
		t.Fatalf("seed deployment: %v", err)
	}
	notifier := &recordingNotifier{}
	ctrl := newTestController(t, mem, notifier, fixedHealth{healthy: true, compliant: true})

	inc, err := ctrl.Handle(ctx, Report{Level: LevelLow, Type: "bad_release", Source: "ci"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}

	result, err := ctrl.Rollback(ctx, inc.ID)
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected successful rollback: %+v", result)
	}
	if result.Details["deployment_id"] != "dep-7" || result.Details["rollback_verified"] != true {
		t.Fatalf("unexpected rollback details: %+v", result.Details)
	}

	requests, err := mem.ListRollbackRequests(ctx)
	if err != nil || len(requests) != 1 || requests[0].DeploymentID != "dep-7" {
		t.Fatalf("unexpected rollback requests: %+v err=%v", requests, err)
	}
	workflows, err := mem.ListCIWorkflows(ctx, "rollback")
	if err != nil || len(workflows) != 1 {
		t.Fatalf("unexpected ci workflows: %+v err=%v", workflows, err)
	}
	found := false
	for _, body := range notifier.bodies {
		if strings.Contains(body, "dep-7") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected rollback notification naming the deployment, got %v", notifier.bodies)
	}
}

func TestRollbackFailsWithoutDeployment(t *testing.T) {
	mem := store.NewMemory()
	ctrl := newTestController(t, mem, nil, fixedHealth{healthy: true, compliant: true})
	ctx := context.Background()

	inc, err := ctrl.Handle(ctx, Report{Level: LevelLow, Type: "bad_release", Source: "ci"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}

	result, err := ctrl.Rollback(ctx, inc.ID)
	if err != nil {
		t.Fatalf("rollback call: %v", err)
	}
	if result.Success {
		t.Fatal("expected failed rollback action")
	}
	if !strings.Contains(result.Error, "no successful deployment") {
		t.Fatalf("unexpected error %q", result.Error)
	}
}

func TestRollbackFailsOnUnhealthySystem(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	_ = mem.PutDeployment(ctx, store.DeploymentRecord{DeploymentID: "dep-1", Status: "successful", DeployedAt: "2026-08-01T00:00:00Z"})
	ctrl := newTestController(t, mem, nil, fixedHealth{healthy: false, compliant: true})

	inc, err := ctrl.Handle(ctx, Report{Level: LevelLow, Type: "bad_release", Source: "ci"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	result, err := ctrl.Rollback(ctx, inc.ID)
	if err != nil {
		t.Fatalf("rollback call: %v", err)
	}
	if result.Success || result.Details["rollback_verified"] != false {
		t.Fatalf("expected unverified rollback: %+v", result)
	}
}

func TestConcurrentCriticalIncidentsSerialize(t *testing.T) {
	mem := store.NewMemory()
	seedRunning(t, mem, 3, 2)
	ctrl := newTestController(t, mem, nil, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = ctrl.Handle(ctx, Report{Level: LevelCritical, Type: "race", Source: "test"})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("handle %d: %v", i, err)
		}
	}
	status, err := ctrl.SystemStatus(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.EmergencyStopActive || status.RunningAgents != 0 || status.RunningWorkflows != 0 {
		t.Fatalf("expected fully stopped system, got %+v", status)
	}
	if got := len(ctrl.Active()); got != 4 {
		t.Fatalf("expected 4 active incidents, got %d", got)
	}
}

func TestLookupLoadsPersistedIncident(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	ctrl := newTestController(t, mem, nil, nil)

	inc, err := ctrl.Handle(ctx, Report{Level: LevelLow, Type: "noise", Source: "test"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}

	// A fresh controller simulates a new process resuming an old incident.
	fresh := newTestController(t, mem, nil, nil)
	loaded, err := fresh.Get(ctx, inc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.ID != inc.ID || loaded.Type != "noise" {
		t.Fatalf("unexpected loaded incident: %+v", loaded)
	}

	if _, err := fresh.Get(ctx, "missing"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestSwitchClosedRejectsRequests(t *testing.T) {
	mem := store.NewMemory()
	sw := NewSwitch(mem)
	sw.Close()

	// Give the goroutine a moment to observe the close.
	time.Sleep(10 * time.Millisecond)
	_, err := sw.Engage(context.Background())
	if err == nil {
		t.Fatal("expected error from closed switch")
	}
}

func TestReadStatusFlagOverridesRunning(t *testing.T) {
	mem := store.NewMemory()
	seedRunning(t, mem, 1, 1)
	ctx := context.Background()
	at := time.Now().UTC().Format(time.RFC3339)
	if err := mem.PutFlag(ctx, store.FlagRecord{Key: store.FlagKillSwitch, Value: "true", UpdatedAt: at}); err != nil {
		t.Fatalf("put flag: %v", err)
	}

	status, err := ReadStatus(ctx, mem)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.EmergencyStopActive {
		t.Fatal("expected active kill switch")
	}
	if status.IsRunning {
		t.Fatal("system must not report running while the kill switch is up")
	}
}

func TestEngageCancelledContext(t *testing.T) {
	mem := store.NewMemory()
	sw := NewSwitch(mem)
	defer sw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := sw.Engage(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

// flakyFlagStore fails flag reads on demand, leaving every other store
// operation intact.
type flakyFlagStore struct {
	store.Store
	mu   sync.Mutex
	fail bool
}

func (s *flakyFlagStore) setFail(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = v
}

func (s *flakyFlagStore) GetFlag(ctx context.Context, key string) (store.FlagRecord, bool, error) {
	s.mu.Lock()
	fail := s.fail
	s.mu.Unlock()
	if fail {
		return store.FlagRecord{}, false, errors.New("status backend unavailable")
	}
	return s.Store.GetFlag(ctx, key)
}

func TestResumeRecordsFailedVerification(t *testing.T) {
	mem := store.NewMemory()
	seedRunning(t, mem, 2, 1)
	flaky := &flakyFlagStore{Store: mem}
	sw := NewSwitch(mem)
	t.Cleanup(sw.Close)
	ctrl := NewController(flaky, sw, nil, nil, Options{
		EmergencyStopTimeout:   5 * time.Second,
		SoftDegradeTimeout:     5 * time.Second,
		RollbackTimeout:        5 * time.Second,
		ResumePropagationDelay: time.Millisecond,
		ReducedConcurrency:     50,
		ArtifactsDir:           t.TempDir(),
	})
	ctx := context.Background()

	inc, err := ctrl.Handle(ctx, Report{Level: LevelCritical, Type: "outage", Description: "down", Source: "test"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}

	flaky.setFail(true)
	if _, err := ctrl.Resume(ctx, inc.ID); err == nil {
		t.Fatalf("expected resume error when verification is unavailable")
	}
	flaky.setFail(false)

	rec, ok, err := mem.GetIncident(ctx, inc.ID)
	if err != nil || !ok {
		t.Fatalf("get incident: ok=%v err=%v", ok, err)
	}
	var saved Incident
	if err := json.Unmarshal(rec.BodyJSON, &saved); err != nil {
		t.Fatalf("decode incident: %v", err)
	}
	if saved.Status == StatusResolved {
		t.Fatalf("incident must not resolve on failed verification")
	}
	last := saved.Actions[len(saved.Actions)-1]
	if last.Type != ActionResume || last.Success {
		t.Fatalf("expected failed resume action, got %+v", last)
	}
	if !strings.Contains(last.Error, "status backend unavailable") {
		t.Fatalf("expected verification error on the action, got %q", last.Error)
	}
}
