package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/lynxops/sentinel/internal/config"
	"github.com/lynxops/sentinel/internal/incident"
	"github.com/lynxops/sentinel/internal/notify"
	"github.com/lynxops/sentinel/internal/store"
)

// Test names as they appear in the acceptance report.
const (
	TestSyntheticTasks = "synthetic_task_runs"
	TestForcedErrors   = "forced_error_test"
	TestTenantRLS      = "rls_verification"
	TestKillSwitch     = "kill_switch_test"
	TestEvidencePack   = "evidence_pack_validation"
)

// TestResult is one acceptance check's outcome. Assertion mismatches land
// here as Passed=false with a descriptive error, never as a Go error.
type TestResult struct {
	Name       string         `json:"name"`
	Passed     bool           `json:"passed"`
	DurationMS int64          `json:"duration_ms"`
	Details    map[string]any `json:"details,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// Summary aggregates one full run.
type Summary struct {
	TotalTests int   `json:"total_tests"`
	Passed     int   `json:"passed"`
	Failed     int   `json:"failed"`
	DurationMS int64 `json:"duration_ms"`
}

// Report is the CI-facing artifact of one acceptance run.
type Report struct {
	Timestamp string       `json:"timestamp"`
	Tests     []TestResult `json:"tests"`
	Summary   Summary      `json:"summary"`
}

// AllPassed reports whether every check in the battery passed.
func (r Report) AllPassed() bool {
	return r.Summary.Failed == 0 && r.Summary.Passed == r.Summary.TotalTests
}

// Options carries the harness knobs.
type Options struct {
	SyntheticTasks   int
	ForcedErrors     int
	IsolationTrials  int
	KillSwitchCycles int
	TestTimeout      time.Duration
	TaskDelay        time.Duration
	EvidenceDir      string
	ArtifactsDir     string
	Channel          string
}

func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		SyntheticTasks:   cfg.Harness.SyntheticTasks,
		ForcedErrors:     cfg.Harness.ForcedErrors,
		IsolationTrials:  cfg.Harness.IsolationTrials,
		KillSwitchCycles: cfg.Harness.KillSwitchCycles,
		TestTimeout:      cfg.Harness.TestTimeout.Std(),
		TaskDelay:        cfg.Harness.TaskDelay.Std(),
		EvidenceDir:      cfg.EvidenceDir,
		ArtifactsDir:     cfg.ArtifactsDir,
		Channel:          cfg.Notify.Channel,
	}
}

// Runner executes the acceptance battery against a live store, controller,
// and tracer. It drives the real pipelines (outbox, kill switch, trace
// mirror) rather than fixtures.
type Runner struct {
	store  store.Store
	ctrl   *incident.Controller
	tracer trace.Tracer
	poster notify.Poster
	opts   Options
	now    func() time.Time
}

func NewRunner(st store.Store, ctrl *incident.Controller, tracer trace.Tracer, poster notify.Poster, opts Options) *Runner {
	if opts.SyntheticTasks <= 0 {
		opts.SyntheticTasks = 3
	}
	if opts.ForcedErrors <= 0 {
		opts.ForcedErrors = 2
	}
	if opts.IsolationTrials <= 0 {
		opts.IsolationTrials = 5
	}
	if opts.KillSwitchCycles <= 0 {
		opts.KillSwitchCycles = 3
	}
	if opts.TestTimeout <= 0 {
		opts.TestTimeout = 60 * time.Second
	}
	return &Runner{
		store:  st,
		ctrl:   ctrl,
		tracer: tracer,
		poster: poster,
		opts:   opts,
		now:    time.Now,
	}
}

type check struct {
	name string
	fn   func(ctx context.Context) (map[string]any, error)
}

// Run executes the full battery and persists the report. Failed checks do
// not stop the run; the caller inspects AllPassed for the exit status.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	start := r.now()
	report := Report{
		Timestamp: start.UTC().Format(time.RFC3339),
		Summary:   Summary{TotalTests: 5},
	}

	checks := []check{
		{TestSyntheticTasks, r.syntheticTaskCheck},
		{TestForcedErrors, r.forcedErrorCheck},
		{TestTenantRLS, r.tenantIsolationCheck},
		{TestKillSwitch, r.killSwitchCheck},
		{TestEvidencePack, r.evidencePackCheck},
	}

	for _, c := range checks {
		report.Tests = append(report.Tests, r.runCheck(ctx, c))
	}

	for _, result := range report.Tests {
		if result.Passed {
			report.Summary.Passed++
		} else {
			report.Summary.Failed++
		}
	}
	report.Summary.DurationMS = r.now().Sub(start).Milliseconds()

	if err := r.save(ctx, report); err != nil {
		return report, err
	}
	return report, nil
}

// runCheck runs one check under its own deadline, converting errors,
// assertion failures, and panics into a failed TestResult.
func (r *Runner) runCheck(ctx context.Context, c check) (result TestResult) {
	start := r.now()
	result = TestResult{Name: c.name}

	checkCtx, cancel := context.WithTimeout(ctx, r.opts.TestTimeout)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			result.DurationMS = r.now().Sub(start).Milliseconds()
			result.Passed = false
			result.Error = fmt.Sprintf("unexpected panic: %v", rec)
		}
	}()

	details, err := c.fn(checkCtx)
	result.DurationMS = r.now().Sub(start).Milliseconds()
	result.Details = details
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Passed = true
	return result
}

// save writes the dated report artifact and persists the summary record.
func (r *Runner) save(ctx context.Context, report Report) error {
	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}

	if err := r.store.PutAcceptanceReport(ctx, store.AcceptanceReportRecord{
		ReportID:  uuid.NewString(),
		BodyJSON:  body,
		Passed:    report.Summary.Passed,
		Failed:    report.Summary.Failed,
		CreatedAt: report.Timestamp,
	}); err != nil {
		return fmt.Errorf("persist acceptance report: %w", err)
	}

	if r.opts.ArtifactsDir == "" {
		return nil
	}
	if err := os.MkdirAll(r.opts.ArtifactsDir, 0o755); err != nil {
		return err
	}
	day := r.now().UTC().Format("2006-01-02")
	path := filepath.Join(r.opts.ArtifactsDir, fmt.Sprintf("acceptance-test-%s.json", day))
	return os.WriteFile(path, body, 0o644)
}
