package incident

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lynxops/sentinel/internal/config"
	"github.com/lynxops/sentinel/internal/store"
)

// canaryFlags are forced to a safe value during soft degrade.
var canaryFlags = []string{
	"canary.rollout_percentage",
	"canary.auto_rollback",
	"canary.health_threshold",
}

// Notifier delivers operator-facing alerts. The outbox-backed implementation
// in internal/notify is the production one; tests substitute fakes.
type Notifier interface {
	Notify(ctx context.Context, subjectID string, body string) error
}

// HealthChecker answers the two rollback verification questions.
type HealthChecker interface {
	Healthy(ctx context.Context) (bool, error)
	SLOCompliant(ctx context.Context) (bool, error)
}

// StoreHealth is the default HealthChecker: healthy when the safety state is
// readable, SLO-compliant when the latest integrity check (if any) passed.
type StoreHealth struct {
	Store store.Store
}

func (h StoreHealth) Healthy(ctx context.Context) (bool, error) {
	_, err := ReadStatus(ctx, h.Store)
	if err != nil {
		return false, err
	}
	return true, nil
}

func (h StoreHealth) SLOCompliant(ctx context.Context) (bool, error) {
	check, ok, err := h.Store.LatestIntegrityCheck(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return check.Consistent, nil
}

// Options carries the controller's runbook knobs.
type Options struct {
	EmergencyStopTimeout   time.Duration
	SoftDegradeTimeout     time.Duration
	RollbackTimeout        time.Duration
	ResumePropagationDelay time.Duration
	ReducedConcurrency     int
	ArtifactsDir           string
}

func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		EmergencyStopTimeout:   cfg.Actions.EmergencyStopTimeout.Std(),
		SoftDegradeTimeout:     cfg.Actions.SoftDegradeTimeout.Std(),
		RollbackTimeout:        cfg.Actions.RollbackTimeout.Std(),
		ResumePropagationDelay: cfg.Actions.ResumePropagationDelay.Std(),
		ReducedConcurrency:     cfg.Degrade.ReducedConcurrency,
		ArtifactsDir:           cfg.ArtifactsDir,
	}
}

// Controller drives incidents through their response sequences. Active
// incidents are tracked by ID; all emergency-stop flag mutations go through
// the switch, never directly to the store.
type Controller struct {
	store    store.Store
	sw       *Switch
	notifier Notifier
	health   HealthChecker
	opts     Options
	now      func() time.Time

	mu     sync.Mutex
	active map[string]*Incident
}

func NewController(st store.Store, sw *Switch, notifier Notifier, health HealthChecker, opts Options) *Controller {
	if health == nil {
		health = StoreHealth{Store: st}
	}
	if opts.EmergencyStopTimeout <= 0 {
		opts.EmergencyStopTimeout = 30 * time.Second
	}
	if opts.SoftDegradeTimeout <= 0 {
		opts.SoftDegradeTimeout = 60 * time.Second
	}
	if opts.RollbackTimeout <= 0 {
		opts.RollbackTimeout = 5 * time.Minute
	}
	return &Controller{
		store:    st,
		sw:       sw,
		notifier: notifier,
		health:   health,
		opts:     opts,
		now:      time.Now,
		active:   make(map[string]*Incident),
	}
}

// Handle runs the response sequence for a reported incident. Individual
// action failures are recorded on the incident and do not abort the flow;
// only a failed emergency stop or an unknown level marks the incident
// failed, and those errors propagate.
func (c *Controller) Handle(ctx context.Context, report Report) (*Incident, error) {
	level := report.Level
	if level == "" {
		level = LevelMedium
	}

	inc := &Incident{
		ID:          uuid.NewString(),
		Timestamp:   c.now().UTC().Format(time.RFC3339),
		Level:       level,
		Type:        report.Type,
		Description: report.Description,
		Source:      report.Source,
		Status:      StatusActive,
	}

	c.mu.Lock()
	c.active[inc.ID] = inc
	c.mu.Unlock()

	var err error
	switch level {
	case LevelCritical:
		err = c.handleCritical(ctx, inc)
	case LevelHigh:
		c.handleHigh(ctx, inc)
	case LevelMedium:
		c.handleMedium(ctx, inc)
	case LevelLow:
		c.handleLow(ctx, inc)
	default:
		err = fmt.Errorf("unknown incident level %q", level)
	}

	if err != nil {
		inc.Status = StatusFailed
		inc.Error = err.Error()
		_ = c.save(ctx, inc)
		return inc, err
	}

	if err := c.save(ctx, inc); err != nil {
		return inc, err
	}
	return inc, nil
}

func (c *Controller) handleCritical(ctx context.Context, inc *Incident) error {
	stop := c.emergencyStop(ctx, inc)
	inc.Actions = append(inc.Actions, stop)
	if !stop.Success {
		return fmt.Errorf("emergency stop failed: %s", stop.Error)
	}

	inc.Actions = append(inc.Actions, c.isolate(ctx, inc))
	inc.Actions = append(inc.Actions, c.alertStakeholders(ctx, inc))
	inc.Actions = append(inc.Actions, c.beginInvestigation(ctx, inc))
	return nil
}

func (c *Controller) handleHigh(ctx context.Context, inc *Incident) {
	inc.Actions = append(inc.Actions, c.softDegrade(ctx, inc))
	inc.Actions = append(inc.Actions, c.throttleServices(ctx, inc))
	inc.Actions = append(inc.Actions, c.monitorForEscalation(ctx, inc))
	inc.Actions = append(inc.Actions, c.alertStakeholders(ctx, inc))
}

func (c *Controller) handleMedium(ctx context.Context, inc *Incident) {
	inc.Actions = append(inc.Actions, c.increaseMonitoring(ctx, inc))
	inc.Actions = append(inc.Actions, c.prepareRollback(ctx, inc))
	inc.Actions = append(inc.Actions, c.alertStakeholders(ctx, inc))
}

func (c *Controller) handleLow(ctx context.Context, inc *Incident) {
	inc.Actions = append(inc.Actions, c.logIncident(ctx, inc))
	inc.Actions = append(inc.Actions, c.monitorForEscalation(ctx, inc))
}

// Resume clears the stop state after an incident and marks it resolved. The
// propagation delay tolerates eventual consistency between the flag write
// and downstream status reads.
func (c *Controller) Resume(ctx context.Context, incidentID string) (*Incident, error) {
	inc, err := c.lookup(ctx, incidentID)
	if err != nil {
		return nil, err
	}

	start := c.now()
	result := ActionResult{
		ID:        uuid.NewString(),
		Type:      ActionResume,
		Timestamp: start.UTC().Format(time.RFC3339),
	}

	report, err := c.sw.Release(ctx)
	if err != nil {
		result.Error = err.Error()
		result.DurationMS = c.sinceMS(start)
		inc.Actions = append(inc.Actions, result)
		_ = c.save(ctx, inc)
		return inc, fmt.Errorf("resume incident %s: %w", incidentID, err)
	}

	result.Details = map[string]any{
		"agents_restarted":  report.AgentsRestarted,
		"workflows_resumed": report.WorkflowsResumed,
	}

	if err := c.wait(ctx, c.opts.ResumePropagationDelay); err != nil {
		return c.failResume(inc, result, start, incidentID, err)
	}

	status, err := ReadStatus(ctx, c.store)
	if err != nil {
		return c.failResume(inc, result, start, incidentID, err)
	}

	result.Success = status.IsRunning
	result.DurationMS = c.sinceMS(start)
	result.Details["system_running"] = status.IsRunning
	inc.Actions = append(inc.Actions, result)

	startedAt, _ := time.Parse(time.RFC3339, inc.Timestamp)
	inc.Status = StatusResolved
	inc.Resolution = &Resolution{
		Timestamp:  c.now().UTC().Format(time.RFC3339),
		Method:     "manual_resume",
		DurationMS: c.now().Sub(startedAt).Milliseconds(),
	}

	if err := c.save(ctx, inc); err != nil {
		return inc, err
	}
	return inc, nil
}

// failResume records a resume attempt that went wrong after the switch was
// already released. The save uses a fresh context so the record survives the
// caller's cancellation; the cleared flag must stay visible on the incident.
func (c *Controller) failResume(inc *Incident, result ActionResult, start time.Time, incidentID string, cause error) (*Incident, error) {
	result.Error = cause.Error()
	result.DurationMS = c.sinceMS(start)
	inc.Actions = append(inc.Actions, result)
	_ = c.save(context.Background(), inc)
	return inc, fmt.Errorf("resume incident %s: %w", incidentID, cause)
}

// Active returns a snapshot of unresolved incidents tracked in this process,
// ordered by creation time.
func (c *Controller) Active() []Incident {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Incident, 0, len(c.active))
	for _, inc := range c.active {
		if inc.Status == StatusActive {
			out = append(out, *inc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}

// Get returns an incident by ID, consulting the store for incidents handled
// by an earlier process.
func (c *Controller) Get(ctx context.Context, incidentID string) (*Incident, error) {
	return c.lookup(ctx, incidentID)
}

// SystemStatus reads the current safety state.
func (c *Controller) SystemStatus(ctx context.Context) (SystemStatus, error) {
	return ReadStatus(ctx, c.store)
}

func (c *Controller) lookup(ctx context.Context, incidentID string) (*Incident, error) {
	c.mu.Lock()
	inc, ok := c.active[incidentID]
	c.mu.Unlock()
	if ok {
		return inc, nil
	}

	rec, ok, err := c.store.GetIncident(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("incident %s not found", incidentID)
	}
	var loaded Incident
	if err := json.Unmarshal(rec.BodyJSON, &loaded); err != nil {
		return nil, fmt.Errorf("decode incident %s: %w", incidentID, err)
	}

	c.mu.Lock()
	c.active[loaded.ID] = &loaded
	c.mu.Unlock()
	return &loaded, nil
}

// emergencyStop is the big red button. The switch serializes the sequence
// against any concurrent stop or resume.
func (c *Controller) emergencyStop(ctx context.Context, inc *Incident) ActionResult {
	return c.runAction(ctx, ActionEmergencyStop, c.opts.EmergencyStopTimeout, func(ctx context.Context) (map[string]any, error) {
		report, err := c.sw.Engage(ctx)
		details := map[string]any{
			"emergency_stop_active":    report.EmergencyStopActive,
			"autonomous_writes_halted": report.AutonomousWritesHalted,
			"agents_stopped":           report.AgentsStopped,
			"workflows_paused":         report.WorkflowsPaused,
			"system_verified":          report.SystemVerified,
		}
		return details, err
	})
}

// softDegrade applies the four degrade writes. Each is attempted and
// reported individually; a failed sub-step leaves the earlier ones in place,
// so a partially degraded system is an acceptable terminal state for this
// action.
func (c *Controller) softDegrade(ctx context.Context, inc *Incident) ActionResult {
	return c.runAction(ctx, ActionSoftDegrade, c.opts.SoftDegradeTimeout, func(ctx context.Context) (map[string]any, error) {
		at := c.now().UTC().Format(time.RFC3339)
		details := map[string]any{
			"concurrency_reduced": false,
			"dlq_paused":          false,
			"canary_flags_safe":   false,
			"resources_reduced":   false,
		}

		var firstErr error
		record := func(key string, err error) {
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			details[key] = true
		}

		record("concurrency_reduced", c.store.PutConfigValue(ctx, store.ConfigRecord{
			Key: store.ConfigMaxConcurrency, Value: strconv.Itoa(c.opts.ReducedConcurrency), UpdatedAt: at,
		}))
		record("dlq_paused", c.store.PutConfigValue(ctx, store.ConfigRecord{
			Key: store.ConfigDLQProcessing, Value: "false", UpdatedAt: at,
		}))

		canaryErr := error(nil)
		for _, key := range canaryFlags {
			if err := c.store.PutFlag(ctx, store.FlagRecord{Key: key, Value: "SAFE", UpdatedAt: at}); err != nil {
				canaryErr = err
				break
			}
		}
		record("canary_flags_safe", canaryErr)

		record("resources_reduced", c.store.PutConfigValue(ctx, store.ConfigRecord{
			Key: store.ConfigResourceAllocation, Value: "minimal", UpdatedAt: at,
		}))

		return details, firstErr
	})
}

// Rollback triggers the CI self-heal path and verifies the outcome. Exposed
// for operators driving recovery after a stop.
func (c *Controller) Rollback(ctx context.Context, incidentID string) (ActionResult, error) {
	inc, err := c.lookup(ctx, incidentID)
	if err != nil {
		return ActionResult{}, err
	}
	result := c.rollback(ctx, inc)
	inc.Actions = append(inc.Actions, result)
	if err := c.save(ctx, inc); err != nil {
		return result, err
	}
	return result, nil
}

func (c *Controller) rollback(ctx context.Context, inc *Incident) ActionResult {
	return c.runAction(ctx, ActionRollback, c.opts.RollbackTimeout, func(ctx context.Context) (map[string]any, error) {
		at := c.now().UTC().Format(time.RFC3339)
		details := map[string]any{
			"ci_rollback_triggered":  false,
			"reverted_to_good_state": false,
			"audit_posted":           false,
			"rollback_verified":      false,
		}

		if err := c.store.PutCIWorkflow(ctx, store.CIWorkflowRecord{
			WorkflowID:  uuid.NewString(),
			Type:        "rollback",
			Status:      "triggered",
			Reason:      "incident_response",
			TriggeredAt: at,
		}); err != nil {
			return details, fmt.Errorf("trigger ci rollback: %w", err)
		}
		details["ci_rollback_triggered"] = true

		deployment, ok, err := c.store.LatestSuccessfulDeployment(ctx)
		if err != nil {
			return details, fmt.Errorf("find last good deployment: %w", err)
		}
		if !ok {
			return details, fmt.Errorf("no successful deployment found")
		}
		if err := c.store.PutRollbackRequest(ctx, store.RollbackRequestRecord{
			RequestID:    uuid.NewString(),
			DeploymentID: deployment.DeploymentID,
			Reason:       "incident_response",
			RequestedAt:  at,
		}); err != nil {
			return details, fmt.Errorf("request reversion: %w", err)
		}
		details["reverted_to_good_state"] = true
		details["deployment_id"] = deployment.DeploymentID

		if err := c.postAuditAndTraces(ctx, inc, deployment.DeploymentID); err != nil {
			return details, fmt.Errorf("post audit: %w", err)
		}
		details["audit_posted"] = true

		healthy, err := c.health.Healthy(ctx)
		if err != nil {
			return details, fmt.Errorf("health check: %w", err)
		}
		compliant, err := c.health.SLOCompliant(ctx)
		if err != nil {
			return details, fmt.Errorf("slo check: %w", err)
		}
		details["rollback_verified"] = healthy && compliant
		if !healthy || !compliant {
			return details, fmt.Errorf("rollback verification failed: healthy=%v slo=%v", healthy, compliant)
		}
		return details, nil
	})
}

func (c *Controller) postAuditAndTraces(ctx context.Context, inc *Incident, deploymentID string) error {
	at := c.now().UTC().Format(time.RFC3339)
	if err := c.store.PutAuditEvent(ctx, store.AuditEventRecord{
		EventID:   uuid.NewString(),
		SubjectID: inc.ID,
		EventType: "rollback_requested",
		CreatedAt: at,
	}); err != nil {
		return err
	}

	span, ok, err := c.store.GetTraceSpanBySubject(ctx, inc.ID)
	if err != nil {
		return err
	}
	traceRef := "none"
	if ok {
		traceRef = span.TraceID
	}

	if c.notifier == nil {
		return nil
	}
	body := fmt.Sprintf("rollback requested for incident %s (%s): reverting to deployment %s, trace %s",
		inc.ID, inc.Type, deploymentID, traceRef)
	return c.notifier.Notify(ctx, inc.ID, body)
}

func (c *Controller) isolate(ctx context.Context, inc *Incident) ActionResult {
	return c.auditAction(ctx, inc, ActionIsolate, "components_isolated")
}

func (c *Controller) beginInvestigation(ctx context.Context, inc *Incident) ActionResult {
	return c.auditAction(ctx, inc, ActionInvestigate, "investigation_opened")
}

func (c *Controller) monitorForEscalation(ctx context.Context, inc *Incident) ActionResult {
	return c.auditAction(ctx, inc, ActionMonitorEscalation, "escalation_monitor_armed")
}

func (c *Controller) logIncident(ctx context.Context, inc *Incident) ActionResult {
	return c.auditAction(ctx, inc, ActionLogIncident, "incident_logged")
}

func (c *Controller) throttleServices(ctx context.Context, inc *Incident) ActionResult {
	return c.runAction(ctx, ActionThrottle, c.opts.SoftDegradeTimeout, func(ctx context.Context) (map[string]any, error) {
		at := c.now().UTC().Format(time.RFC3339)
		err := c.store.PutConfigValue(ctx, store.ConfigRecord{Key: "service_throttle", Value: "enabled", UpdatedAt: at})
		return map[string]any{"throttled": err == nil}, err
	})
}

func (c *Controller) increaseMonitoring(ctx context.Context, inc *Incident) ActionResult {
	return c.runAction(ctx, ActionIncreaseMonitoring, c.opts.SoftDegradeTimeout, func(ctx context.Context) (map[string]any, error) {
		at := c.now().UTC().Format(time.RFC3339)
		err := c.store.PutConfigValue(ctx, store.ConfigRecord{Key: "monitoring_interval", Value: "10s", UpdatedAt: at})
		return map[string]any{"monitoring_increased": err == nil}, err
	})
}

// prepareRollback confirms a reversion target exists without triggering it.
func (c *Controller) prepareRollback(ctx context.Context, inc *Incident) ActionResult {
	return c.runAction(ctx, ActionPrepareRollback, c.opts.SoftDegradeTimeout, func(ctx context.Context) (map[string]any, error) {
		deployment, ok, err := c.store.LatestSuccessfulDeployment(ctx)
		if err != nil {
			return nil, err
		}
		details := map[string]any{"rollback_ready": ok}
		if ok {
			details["deployment_id"] = deployment.DeploymentID
		}
		return details, nil
	})
}

func (c *Controller) alertStakeholders(ctx context.Context, inc *Incident) ActionResult {
	return c.runAction(ctx, ActionAlert, c.opts.SoftDegradeTimeout, func(ctx context.Context) (map[string]any, error) {
		if c.notifier == nil {
			return map[string]any{"alerted": false}, nil
		}
		body := fmt.Sprintf("[%s] incident %s: %s (%s)", inc.Level, inc.ID, inc.Type, inc.Description)
		if err := c.notifier.Notify(ctx, inc.ID, body); err != nil {
			return nil, err
		}
		return map[string]any{"alerted": true}, nil
	})
}

// auditAction records one response step as an audit event against the
// incident.
func (c *Controller) auditAction(ctx context.Context, inc *Incident, actionType string, eventType string) ActionResult {
	return c.runAction(ctx, actionType, c.opts.SoftDegradeTimeout, func(ctx context.Context) (map[string]any, error) {
		err := c.store.PutAuditEvent(ctx, store.AuditEventRecord{
			EventID:   uuid.NewString(),
			SubjectID: inc.ID,
			EventType: eventType,
			CreatedAt: c.now().UTC().Format(time.RFC3339),
		})
		return map[string]any{"recorded": err == nil}, err
	})
}

// runAction executes one safety action under its own deadline and converts
// any error into a failed ActionResult instead of propagating it.
func (c *Controller) runAction(ctx context.Context, actionType string, timeout time.Duration, fn func(ctx context.Context) (map[string]any, error)) ActionResult {
	start := c.now()
	result := ActionResult{
		ID:        uuid.NewString(),
		Type:      actionType,
		Timestamp: start.UTC().Format(time.RFC3339),
	}

	actionCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	details, err := fn(actionCtx)
	result.DurationMS = c.sinceMS(start)
	result.Details = details
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Success = true
	return result
}

// save persists the incident record and writes the dated JSON artifact.
func (c *Controller) save(ctx context.Context, inc *Incident) error {
	body, err := json.MarshalIndent(inc, "", "  ")
	if err != nil {
		return err
	}
	now := c.now().UTC().Format(time.RFC3339)
	if err := c.store.PutIncident(ctx, store.IncidentRecord{
		IncidentID: inc.ID,
		Level:      inc.Level,
		Type:       inc.Type,
		Status:     inc.Status,
		BodyJSON:   body,
		CreatedAt:  inc.Timestamp,
		UpdatedAt:  now,
	}); err != nil {
		return fmt.Errorf("persist incident %s: %w", inc.ID, err)
	}

	if c.opts.ArtifactsDir == "" {
		return nil
	}
	if err := os.MkdirAll(c.opts.ArtifactsDir, 0o755); err != nil {
		return err
	}
	day := c.now().UTC().Format("2006-01-02")
	path := filepath.Join(c.opts.ArtifactsDir, fmt.Sprintf("incident-%s-%s.json", inc.ID, day))
	return os.WriteFile(path, body, 0o644)
}

func (c *Controller) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Controller) sinceMS(start time.Time) int64 {
	return c.now().Sub(start).Milliseconds()
}
