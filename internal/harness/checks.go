package harness

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/lynxops/sentinel/internal/evidence"
	"github.com/lynxops/sentinel/internal/incident"
	"github.com/lynxops/sentinel/internal/notify"
	"github.com/lynxops/sentinel/internal/store"
	"github.com/lynxops/sentinel/internal/telemetry"
)

var requiredAuditEvents = []string{"task_created", "task_started", "task_completed"}

const (
	crossReadAttempts = 10
	taskConcurrency   = 3
)

// syntheticTaskCheck runs N synthetic tasks with bounded concurrency and
// asserts each one left a live-feed entry, a trace span, and a complete
// audit trail.
func (r *Runner) syntheticTaskCheck(ctx context.Context) (map[string]any, error) {
	type taskRun struct {
		taskID     string
		durationMS int64
		err        error
	}
	runs := make([]taskRun, r.opts.SyntheticTasks)

	sem := make(chan struct{}, taskConcurrency)
	var wg sync.WaitGroup
	for i := range runs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					runs[i] = taskRun{err: fmt.Errorf("unexpected panic: %v", rec)}
				}
			}()
			sem <- struct{}{}
			defer func() { <-sem }()
			taskID, durationMS, err := r.runSyntheticTask(ctx, i+1)
			runs[i] = taskRun{taskID: taskID, durationMS: durationMS, err: err}
		}(i)
	}
	wg.Wait()

	var totalMS int64
	for idx, run := range runs {
		i := idx + 1
		if run.err != nil {
			return nil, fmt.Errorf("task %d: %w", i, run.err)
		}
		totalMS += run.durationMS

		if _, ok, err := r.store.GetLiveFeedEntry(ctx, run.taskID); err != nil {
			return nil, fmt.Errorf("task %d live feed: %w", i, err)
		} else if !ok {
			return nil, fmt.Errorf("task %d missing from live feed", i)
		}

		if _, ok, err := r.store.GetTraceSpanBySubject(ctx, run.taskID); err != nil {
			return nil, fmt.Errorf("task %d span: %w", i, err)
		} else if !ok {
			return nil, fmt.Errorf("task %d has no trace span", i)
		}

		events, err := r.store.ListAuditEvents(ctx, run.taskID)
		if err != nil {
			return nil, fmt.Errorf("task %d audit: %w", i, err)
		}
		found := make(map[string]bool, len(events))
		for _, event := range events {
			found[event.EventType] = true
		}
		for _, required := range requiredAuditEvents {
			if !found[required] {
				return nil, fmt.Errorf("task %d audit trail missing %s", i, required)
			}
		}
	}

	return map[string]any{
		"tasks_run":           r.opts.SyntheticTasks,
		"average_task_ms":     totalMS / int64(r.opts.SyntheticTasks),
		"all_traces_complete": true,
	}, nil
}

// runSyntheticTask drives one task through the pipeline: task record, audit
// events, live-feed entry, and a span mirrored by the trace processor.
func (r *Runner) runSyntheticTask(ctx context.Context, number int) (string, int64, error) {
	taskID := uuid.NewString()
	start := r.now()
	at := start.UTC().Format(time.RFC3339)

	if err := r.store.PutSyntheticTask(ctx, store.SyntheticTaskRecord{
		TaskID:     taskID,
		TaskNumber: number,
		Type:       "acceptance_test",
		Status:     "running",
		CreatedAt:  at,
	}); err != nil {
		return "", 0, err
	}
	if err := r.audit(ctx, taskID, "task_created"); err != nil {
		return "", 0, err
	}

	spanCtx, span := r.tracer.Start(ctx, "synthetic_task",
		trace.WithAttributes(telemetry.Subject(taskID)))
	if err := r.audit(spanCtx, taskID, "task_started"); err != nil {
		span.End()
		return "", 0, err
	}

	if r.opts.TaskDelay > 0 {
		timer := time.NewTimer(r.opts.TaskDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			span.End()
			return "", 0, ctx.Err()
		case <-timer.C:
		}
	}
	span.End()

	completedAt := r.now().UTC().Format(time.RFC3339)
	if err := r.store.PutSyntheticTask(ctx, store.SyntheticTaskRecord{
		TaskID:      taskID,
		TaskNumber:  number,
		Type:        "acceptance_test",
		Status:      "completed",
		CreatedAt:   at,
		CompletedAt: completedAt,
	}); err != nil {
		return "", 0, err
	}
	if err := r.store.PutLiveFeedEntry(ctx, store.LiveFeedEntry{
		TaskID:    taskID,
		Event:     "task_completed",
		Timestamp: completedAt,
	}); err != nil {
		return "", 0, err
	}
	if err := r.audit(ctx, taskID, "task_completed"); err != nil {
		return "", 0, err
	}

	return taskID, r.now().Sub(start).Milliseconds(), nil
}

// forcedErrorCheck injects N synthetic errors and asserts the full fault
// chain fired for each: a delivered notification, a trace link, and a DLQ
// entry.
func (r *Runner) forcedErrorCheck(ctx context.Context) (map[string]any, error) {
	for i := 1; i <= r.opts.ForcedErrors; i++ {
		errorID, err := r.injectForcedError(ctx, i)
		if err != nil {
			return nil, fmt.Errorf("error %d: %w", i, err)
		}

		notification, ok, err := r.store.GetNotificationBySubject(ctx, errorID)
		if err != nil {
			return nil, fmt.Errorf("error %d notification: %w", i, err)
		}
		if !ok || notification.Status != notify.StatusSent {
			return nil, fmt.Errorf("error %d notification not delivered", i)
		}

		traceRec, ok, err := r.store.GetErrorTrace(ctx, errorID)
		if err != nil {
			return nil, fmt.Errorf("error %d trace: %w", i, err)
		}
		if !ok || traceRec.TraceID == "" {
			return nil, fmt.Errorf("error %d has no trace link", i)
		}

		if _, ok, err := r.store.GetDLQEntryBySubject(ctx, errorID); err != nil {
			return nil, fmt.Errorf("error %d dlq: %w", i, err)
		} else if !ok {
			return nil, fmt.Errorf("error %d has no dlq entry", i)
		}
	}

	return map[string]any{
		"errors_injected": r.opts.ForcedErrors,
		"all_notified":    true,
	}, nil
}

// injectForcedError simulates the fault pipeline for one synthetic error:
// trace link, DLQ entry, and an alert delivered through the outbox.
func (r *Runner) injectForcedError(ctx context.Context, number int) (string, error) {
	errorID := uuid.NewString()
	now := r.now()
	at := now.UTC().Format(time.RFC3339)

	_, span := r.tracer.Start(ctx, "forced_error",
		trace.WithAttributes(telemetry.Subject(errorID)))
	sc := span.SpanContext()
	span.End()

	if err := r.store.PutErrorTrace(ctx, store.ErrorTraceRecord{
		ErrorID:   errorID,
		TraceID:   sc.TraceID().String(),
		DeepLink:  fmt.Sprintf("traces/%s", sc.TraceID()),
		CreatedAt: at,
	}); err != nil {
		return "", err
	}

	if err := r.store.PutDLQEntry(ctx, store.DLQEntryRecord{
		EntryID:   uuid.NewString(),
		SubjectID: errorID,
		Queue:     "acceptance-dlq",
		Reason:    fmt.Sprintf("forced error %d", number),
		CreatedAt: at,
	}); err != nil {
		return "", err
	}

	body := fmt.Sprintf("forced error %d injected: %s", number, errorID)
	if _, err := notify.Enqueue(ctx, r.store, errorID, r.opts.Channel, body, now); err != nil {
		return "", err
	}
	// Drain the outbox synchronously so delivery is observable immediately.
	if _, err := notify.ProcessDue(ctx, r.store, r.poster, now, 10); err != nil {
		return "", err
	}

	return errorID, nil
}

// tenantIsolationCheck asserts that reading tenant-B rows under tenant-A's
// scope returns zero rows across repeated attempts.
func (r *Runner) tenantIsolationCheck(ctx context.Context) (map[string]any, error) {
	for trial := 1; trial <= r.opts.IsolationTrials; trial++ {
		tenantA := fmt.Sprintf("tenant_%d_a", trial)
		tenantB := fmt.Sprintf("tenant_%d_b", trial)

		at := r.now().UTC().Format(time.RFC3339)
		for _, tenant := range []string{tenantA, tenantB} {
			if err := r.store.PutTenantRow(ctx, store.TenantRow{
				RowID:    uuid.NewString(),
				TenantID: tenant,
				Owner:    tenant,
				BodyJSON: []byte(fmt.Sprintf(`{"tenant":%q,"seeded_at":%q}`, tenant, at)),
			}); err != nil {
				return nil, fmt.Errorf("trial %d seed: %w", trial, err)
			}
		}

		for attempt := 0; attempt < crossReadAttempts; attempt++ {
			rows, err := r.store.ListTenantRows(ctx, tenantA, tenantB)
			if err != nil {
				return nil, fmt.Errorf("trial %d read: %w", trial, err)
			}
			if len(rows) != 0 {
				return nil, fmt.Errorf("trial %d: cross-tenant read returned %d rows", trial, len(rows))
			}
		}
	}

	return map[string]any{
		"trials":              r.opts.IsolationTrials,
		"attempts_per_trial":  crossReadAttempts,
		"cross_reads_leaked":  0,
		"isolation_preserved": true,
	}, nil
}

// killSwitchCheck cycles the kill switch N times through the controller and
// asserts each cycle stops cleanly, resumes cleanly, and preserves the
// runtime population.
func (r *Runner) killSwitchCheck(ctx context.Context) (map[string]any, error) {
	var totalStopMS, totalResumeMS int64

	for cycle := 1; cycle <= r.opts.KillSwitchCycles; cycle++ {
		before, err := r.ctrl.SystemStatus(ctx)
		if err != nil {
			return nil, fmt.Errorf("cycle %d status: %w", cycle, err)
		}
		if !before.IsRunning {
			return nil, fmt.Errorf("cycle %d: system not running before kill switch", cycle)
		}

		stopStart := r.now()
		inc, err := r.ctrl.Handle(ctx, incident.Report{
			Level:       incident.LevelCritical,
			Type:        "kill_switch_cycle",
			Description: fmt.Sprintf("acceptance cycle %d", cycle),
			Source:      "acceptance_harness",
		})
		if err != nil {
			return nil, fmt.Errorf("cycle %d stop: %w", cycle, err)
		}
		totalStopMS += r.now().Sub(stopStart).Milliseconds()

		stopped, err := r.ctrl.SystemStatus(ctx)
		if err != nil {
			return nil, fmt.Errorf("cycle %d status: %w", cycle, err)
		}
		if stopped.IsRunning || !stopped.EmergencyStopActive {
			return nil, fmt.Errorf("cycle %d: system still running after kill switch", cycle)
		}

		resumeStart := r.now()
		if _, err := r.ctrl.Resume(ctx, inc.ID); err != nil {
			return nil, fmt.Errorf("cycle %d resume: %w", cycle, err)
		}
		totalResumeMS += r.now().Sub(resumeStart).Milliseconds()

		after, err := r.ctrl.SystemStatus(ctx)
		if err != nil {
			return nil, fmt.Errorf("cycle %d status: %w", cycle, err)
		}
		if !after.IsRunning {
			return nil, fmt.Errorf("cycle %d: system did not resume", cycle)
		}

		consistent := after.RunningAgents == before.RunningAgents &&
			after.RunningWorkflows == before.RunningWorkflows
		if err := r.store.PutIntegrityCheck(ctx, store.IntegrityCheckRecord{
			CheckID:    uuid.NewString(),
			Consistent: consistent,
			Details: fmt.Sprintf("cycle %d: agents %d->%d, workflows %d->%d",
				cycle, before.RunningAgents, after.RunningAgents,
				before.RunningWorkflows, after.RunningWorkflows),
			CheckedAt: r.now().UTC().Format(time.RFC3339),
		}); err != nil {
			return nil, fmt.Errorf("cycle %d integrity: %w", cycle, err)
		}
		if !consistent {
			return nil, fmt.Errorf("cycle %d: runtime population changed across the cycle", cycle)
		}
	}

	cycles := int64(r.opts.KillSwitchCycles)
	return map[string]any{
		"cycles_completed":  r.opts.KillSwitchCycles,
		"average_stop_ms":   totalStopMS / cycles,
		"average_resume_ms": totalResumeMS / cycles,
		"all_clean":         true,
	}, nil
}

// evidencePackCheck validates today's evidence artifact against the SLO
// thresholds.
func (r *Runner) evidencePackCheck(ctx context.Context) (map[string]any, error) {
	day := r.now().UTC().Format("2006-01-02")
	snap, err := evidence.Load(r.opts.EvidenceDir, day)
	if err != nil {
		return nil, err
	}

	details := map[string]any{
		"uptime":            snap.Uptime,
		"success_rate":      snap.SuccessRate,
		"p95_response_time": snap.P95ResponseTime,
	}
	if misses := evidence.Check(snap); len(misses) > 0 {
		return details, fmt.Errorf("evidence thresholds not met: %s", strings.Join(misses, ", "))
	}
	return details, nil
}

func (r *Runner) audit(ctx context.Context, subjectID string, eventType string) error {
	return r.store.PutAuditEvent(ctx, store.AuditEventRecord{
		EventID:   uuid.NewString(),
		SubjectID: subjectID,
		EventType: eventType,
		CreatedAt: r.now().UTC().Format(time.RFC3339),
	})
}
