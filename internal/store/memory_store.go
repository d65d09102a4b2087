package store

import (
	"context"
	"sort"
	"sync"
)

// Memory is the in-memory Store used by tests and by the incident CLI when no
// database is configured.
type Memory struct {
	mu sync.Mutex

	flags         map[string]FlagRecord
	configValues  map[string]ConfigRecord
	runtime       map[string]RuntimeStatusRecord
	incidents     map[string]IncidentRecord
	decisions     []DecisionAuditRecord
	tasks         map[string]SyntheticTaskRecord
	liveFeed      map[string]LiveFeedEntry
	spans         []TraceSpanRecord
	auditEvents   []AuditEventRecord
	notifications map[string]NotificationRecord
	errorTraces   map[string]ErrorTraceRecord
	dlq           []DLQEntryRecord
	tenantRows    []TenantRow
	integrity     []IntegrityCheckRecord
	deployments   []DeploymentRecord
	ciWorkflows   []CIWorkflowRecord
	rollbacks     []RollbackRequestRecord
	reports       []AcceptanceReportRecord
}

func NewMemory() *Memory {
	return &Memory{
		flags:         make(map[string]FlagRecord),
		configValues:  make(map[string]ConfigRecord),
		runtime:       make(map[string]RuntimeStatusRecord),
		incidents:     make(map[string]IncidentRecord),
		tasks:         make(map[string]SyntheticTaskRecord),
		liveFeed:      make(map[string]LiveFeedEntry),
		notifications: make(map[string]NotificationRecord),
		errorTraces:   make(map[string]ErrorTraceRecord),
	}
}

func (m *Memory) PutFlag(ctx context.Context, flag FlagRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flags[flag.Key] = flag
	return nil
}

func (m *Memory) GetFlag(ctx context.Context, key string) (FlagRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return FlagRecord{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.flags[key]
	return rec, ok, nil
}

func (m *Memory) PutConfigValue(ctx context.Context, value ConfigRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configValues[value.Key] = value
	return nil
}

func (m *Memory) GetConfigValue(ctx context.Context, key string) (ConfigRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return ConfigRecord{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.configValues[key]
	return rec, ok, nil
}

func (m *Memory) PutRuntimeStatus(ctx context.Context, rec RuntimeStatusRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runtime[rec.ID] = rec
	return nil
}

func (m *Memory) ListRuntimeStatus(ctx context.Context, kind string, status string) ([]RuntimeStatusRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []RuntimeStatusRecord
	for _, rec := range m.runtime {
		if kind != "" && rec.Kind != kind {
			continue
		}
		if status != "" && rec.Status != status {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) TransitionRuntimeStatus(ctx context.Context, kind string, from string, to string, at string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for id, rec := range m.runtime {
		if rec.Kind != kind || rec.Status != from {
			continue
		}
		rec.Status = to
		rec.ChangedAt = at
		m.runtime[id] = rec
		count++
	}
	return count, nil
}

func (m *Memory) PutIncident(ctx context.Context, rec IncidentRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incidents[rec.IncidentID] = rec
	return nil
}

func (m *Memory) GetIncident(ctx context.Context, incidentID string) (IncidentRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return IncidentRecord{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.incidents[incidentID]
	return rec, ok, nil
}

func (m *Memory) ListIncidents(ctx context.Context, status string) ([]IncidentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []IncidentRecord
	for _, rec := range m.incidents {
		if status != "" && rec.Status != status {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out, nil
}

func (m *Memory) PutDecisionAudit(ctx context.Context, rec DecisionAuditRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions = append(m.decisions, rec)
	return nil
}

func (m *Memory) ListDecisionAudits(ctx context.Context, limit int) ([]DecisionAuditRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]DecisionAuditRecord, len(m.decisions))
	copy(out, m.decisions)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *Memory) PutSyntheticTask(ctx context.Context, rec SyntheticTaskRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[rec.TaskID] = rec
	return nil
}

func (m *Memory) GetSyntheticTask(ctx context.Context, taskID string) (SyntheticTaskRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return SyntheticTaskRecord{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.tasks[taskID]
	return rec, ok, nil
}

func (m *Memory) PutLiveFeedEntry(ctx context.Context, rec LiveFeedEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.liveFeed[rec.TaskID] = rec
	return nil
}

func (m *Memory) GetLiveFeedEntry(ctx context.Context, taskID string) (LiveFeedEntry, bool, error) {
	if err := ctx.Err(); err != nil {
		return LiveFeedEntry{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.liveFeed[taskID]
	return rec, ok, nil
}

func (m *Memory) PutTraceSpan(ctx context.Context, rec TraceSpanRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.spans = append(m.spans, rec)
	return nil
}

func (m *Memory) GetTraceSpanBySubject(ctx context.Context, subjectID string) (TraceSpanRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return TraceSpanRecord{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.spans) - 1; i >= 0; i-- {
		if m.spans[i].SubjectID == subjectID {
			return m.spans[i], true, nil
		}
	}
	return TraceSpanRecord{}, false, nil
}

func (m *Memory) PutAuditEvent(ctx context.Context, rec AuditEventRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auditEvents = append(m.auditEvents, rec)
	return nil
}

func (m *Memory) ListAuditEvents(ctx context.Context, subjectID string) ([]AuditEventRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []AuditEventRecord
	for _, rec := range m.auditEvents {
		if rec.SubjectID == subjectID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *Memory) PutNotification(ctx context.Context, rec NotificationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications[rec.NotificationID] = rec
	return nil
}

func (m *Memory) GetNotification(ctx context.Context, notificationID string) (NotificationRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return NotificationRecord{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.notifications[notificationID]
	return rec, ok, nil
}

func (m *Memory) GetNotificationBySubject(ctx context.Context, subjectID string) (NotificationRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return NotificationRecord{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var found NotificationRecord
	var ok bool
	for _, rec := range m.notifications {
		if rec.SubjectID != subjectID {
			continue
		}
		if !ok || rec.CreatedAt > found.CreatedAt {
			found = rec
			ok = true
		}
	}
	return found, ok, nil
}

func (m *Memory) ListNotificationsDue(ctx context.Context, now string, limit int) ([]NotificationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []NotificationRecord
	for _, rec := range m.notifications {
		if rec.Status != "pending" || rec.NextAttemptAt > now {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextAttemptAt < out[j].NextAttemptAt })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) PutErrorTrace(ctx context.Context, rec ErrorTraceRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorTraces[rec.ErrorID] = rec
	return nil
}

func (m *Memory) GetErrorTrace(ctx context.Context, errorID string) (ErrorTraceRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return ErrorTraceRecord{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.errorTraces[errorID]
	return rec, ok, nil
}

func (m *Memory) PutDLQEntry(ctx context.Context, rec DLQEntryRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dlq = append(m.dlq, rec)
	return nil
}

func (m *Memory) GetDLQEntryBySubject(ctx context.Context, subjectID string) (DLQEntryRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return DLQEntryRecord{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.dlq) - 1; i >= 0; i-- {
		if m.dlq[i].SubjectID == subjectID {
			return m.dlq[i], true, nil
		}
	}
	return DLQEntryRecord{}, false, nil
}

func (m *Memory) PutTenantRow(ctx context.Context, rec TenantRow) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenantRows = append(m.tenantRows, rec)
	return nil
}

func (m *Memory) ListTenantRows(ctx context.Context, tenantID string, owner string) ([]TenantRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []TenantRow
	for _, rec := range m.tenantRows {
		if rec.TenantID == tenantID && rec.Owner == owner {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *Memory) PutIntegrityCheck(ctx context.Context, rec IntegrityCheckRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.integrity = append(m.integrity, rec)
	return nil
}

func (m *Memory) LatestIntegrityCheck(ctx context.Context) (IntegrityCheckRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return IntegrityCheckRecord{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.integrity) == 0 {
		return IntegrityCheckRecord{}, false, nil
	}
	return m.integrity[len(m.integrity)-1], true, nil
}

func (m *Memory) PutDeployment(ctx context.Context, rec DeploymentRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deployments = append(m.deployments, rec)
	return nil
}

func (m *Memory) LatestSuccessfulDeployment(ctx context.Context) (DeploymentRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return DeploymentRecord{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var found DeploymentRecord
	var ok bool
	for _, rec := range m.deployments {
		if rec.Status != "successful" {
			continue
		}
		if !ok || rec.DeployedAt > found.DeployedAt {
			found = rec
			ok = true
		}
	}
	return found, ok, nil
}

func (m *Memory) PutCIWorkflow(ctx context.Context, rec CIWorkflowRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ciWorkflows = append(m.ciWorkflows, rec)
	return nil
}

func (m *Memory) ListCIWorkflows(ctx context.Context, workflowType string) ([]CIWorkflowRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []CIWorkflowRecord
	for _, rec := range m.ciWorkflows {
		if workflowType != "" && rec.Type != workflowType {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (m *Memory) PutRollbackRequest(ctx context.Context, rec RollbackRequestRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollbacks = append(m.rollbacks, rec)
	return nil
}

func (m *Memory) ListRollbackRequests(ctx context.Context) ([]RollbackRequestRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RollbackRequestRecord, len(m.rollbacks))
	copy(out, m.rollbacks)
	return out, nil
}

func (m *Memory) PutAcceptanceReport(ctx context.Context, rec AcceptanceReportRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, rec)
	return nil
}

func (m *Memory) LatestAcceptanceReport(ctx context.Context) (AcceptanceReportRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return AcceptanceReportRecord{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.reports) == 0 {
		return AcceptanceReportRecord{}, false, nil
	}
	return m.reports[len(m.reports)-1], true, nil
}
