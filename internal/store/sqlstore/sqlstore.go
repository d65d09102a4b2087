// Package sqlstore implements store.Store on database/sql for both sqlite
// and postgres. Queries are written with ? placeholders and rebound for
// postgres, so every statement exists exactly once.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/lynxops/sentinel/internal/store"
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

type Store struct {
	db     *sql.DB
	driver Driver
}

// Open opens a connection for the given driver, applies the schema and
// returns the store.
func Open(driver Driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	db, err := sql.Open(string(driver), dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &Store{db: db, driver: driver}
	if err := s.applySchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func New(db *sql.DB, driver Driver) *Store {
	return &Store{db: db, driver: driver}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) applySchema() error {
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// rebind converts ? placeholders to $N for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	_, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	return err
}

func (s *Store) PutFlag(ctx context.Context, flag store.FlagRecord) error {
	return s.exec(ctx, `INSERT INTO flags (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		flag.Key, flag.Value, flag.UpdatedAt)
}

func (s *Store) GetFlag(ctx context.Context, key string) (store.FlagRecord, bool, error) {
	var rec store.FlagRecord
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT key, value, updated_at FROM flags WHERE key = ?`), key)
	if err := row.Scan(&rec.Key, &rec.Value, &rec.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return store.FlagRecord{}, false, nil
		}
		return store.FlagRecord{}, false, err
	}
	return rec, true, nil
}

func (s *Store) PutConfigValue(ctx context.Context, value store.ConfigRecord) error {
	return s.exec(ctx, `INSERT INTO config_values (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		value.Key, value.Value, value.UpdatedAt)
}

func (s *Store) GetConfigValue(ctx context.Context, key string) (store.ConfigRecord, bool, error) {
	var rec store.ConfigRecord
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT key, value, updated_at FROM config_values WHERE key = ?`), key)
	if err := row.Scan(&rec.Key, &rec.Value, &rec.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return store.ConfigRecord{}, false, nil
		}
		return store.ConfigRecord{}, false, err
	}
	return rec, true, nil
}

func (s *Store) PutRuntimeStatus(ctx context.Context, rec store.RuntimeStatusRecord) error {
	return s.exec(ctx, `INSERT INTO runtime_status (id, kind, status, changed_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET kind = excluded.kind, status = excluded.status, changed_at = excluded.changed_at`,
		rec.ID, rec.Kind, rec.Status, rec.ChangedAt)
}

func (s *Store) ListRuntimeStatus(ctx context.Context, kind string, status string) ([]store.RuntimeStatusRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, kind, status, changed_at FROM runtime_status
		 WHERE (? = '' OR kind = ?) AND (? = '' OR status = ?) ORDER BY id`),
		kind, kind, status, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.RuntimeStatusRecord
	for rows.Next() {
		var rec store.RuntimeStatusRecord
		if err := rows.Scan(&rec.ID, &rec.Kind, &rec.Status, &rec.ChangedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) TransitionRuntimeStatus(ctx context.Context, kind string, from string, to string, at string) (int, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE runtime_status SET status = ?, changed_at = ? WHERE kind = ? AND status = ?`),
		to, at, kind, from)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	return int(affected), err
}

func (s *Store) PutIncident(ctx context.Context, rec store.IncidentRecord) error {
	return s.exec(ctx, `INSERT INTO incidents (incident_id, level, type, status, body_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (incident_id) DO UPDATE SET
			level = excluded.level, type = excluded.type, status = excluded.status,
			body_json = excluded.body_json, updated_at = excluded.updated_at`,
		rec.IncidentID, rec.Level, rec.Type, rec.Status, string(rec.BodyJSON), rec.CreatedAt, rec.UpdatedAt)
}

func (s *Store) GetIncident(ctx context.Context, incidentID string) (store.IncidentRecord, bool, error) {
	var rec store.IncidentRecord
	var body string
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT incident_id, level, type, status, body_json, created_at, updated_at FROM incidents WHERE incident_id = ?`),
		incidentID)
	if err := row.Scan(&rec.IncidentID, &rec.Level, &rec.Type, &rec.Status, &body, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return store.IncidentRecord{}, false, nil
		}
		return store.IncidentRecord{}, false, err
	}
	rec.BodyJSON = []byte(body)
	return rec, true, nil
}

func (s *Store) ListIncidents(ctx context.Context, status string) ([]store.IncidentRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT incident_id, level, type, status, body_json, created_at, updated_at FROM incidents
		 WHERE (? = '' OR status = ?) ORDER BY created_at`),
		status, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.IncidentRecord
	for rows.Next() {
		var rec store.IncidentRecord
		var body string
		if err := rows.Scan(&rec.IncidentID, &rec.Level, &rec.Type, &rec.Status, &body, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		rec.BodyJSON = []byte(body)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) PutDecisionAudit(ctx context.Context, rec store.DecisionAuditRecord) error {
	return s.exec(ctx, `INSERT INTO decision_audits
		(decision_id, input_type, priority, action, confidence, reasoning, impact, requires_review, learning_rate,
		 carrier_id, carrier_on_time_rate, customer_id, preferred_carrier, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (decision_id) DO NOTHING`,
		rec.DecisionID, rec.InputType, rec.Priority, rec.Action, rec.Confidence,
		rec.Reasoning, rec.Impact, rec.RequiresReview, rec.LearningRate,
		rec.CarrierID, rec.CarrierOnTimeRate, rec.CustomerID, rec.PreferredCarrier, rec.CreatedAt)
}

func (s *Store) ListDecisionAudits(ctx context.Context, limit int) ([]store.DecisionAuditRecord, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT decision_id, input_type, priority, action, confidence, reasoning, impact, requires_review, learning_rate,
		        carrier_id, carrier_on_time_rate, customer_id, preferred_carrier, created_at
		 FROM decision_audits ORDER BY created_at DESC LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.DecisionAuditRecord
	for rows.Next() {
		var rec store.DecisionAuditRecord
		if err := rows.Scan(&rec.DecisionID, &rec.InputType, &rec.Priority, &rec.Action, &rec.Confidence,
			&rec.Reasoning, &rec.Impact, &rec.RequiresReview, &rec.LearningRate,
			&rec.CarrierID, &rec.CarrierOnTimeRate, &rec.CustomerID, &rec.PreferredCarrier, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	// Oldest first, matching the in-memory store.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, rows.Err()
}

func (s *Store) PutSyntheticTask(ctx context.Context, rec store.SyntheticTaskRecord) error {
	return s.exec(ctx, `INSERT INTO synthetic_tasks (task_id, task_number, type, status, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (task_id) DO UPDATE SET status = excluded.status, completed_at = excluded.completed_at`,
		rec.TaskID, rec.TaskNumber, rec.Type, rec.Status, rec.CreatedAt, rec.CompletedAt)
}

func (s *Store) GetSyntheticTask(ctx context.Context, taskID string) (store.SyntheticTaskRecord, bool, error) {
	var rec store.SyntheticTaskRecord
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT task_id, task_number, type, status, created_at, completed_at FROM synthetic_tasks WHERE task_id = ?`), taskID)
	if err := row.Scan(&rec.TaskID, &rec.TaskNumber, &rec.Type, &rec.Status, &rec.CreatedAt, &rec.CompletedAt); err != nil {
		if err == sql.ErrNoRows {
			return store.SyntheticTaskRecord{}, false, nil
		}
		return store.SyntheticTaskRecord{}, false, err
	}
	return rec, true, nil
}

func (s *Store) PutLiveFeedEntry(ctx context.Context, rec store.LiveFeedEntry) error {
	return s.exec(ctx, `INSERT INTO live_feed (task_id, event, entry_at) VALUES (?, ?, ?)
		ON CONFLICT (task_id) DO UPDATE SET event = excluded.event, entry_at = excluded.entry_at`,
		rec.TaskID, rec.Event, rec.Timestamp)
}

func (s *Store) GetLiveFeedEntry(ctx context.Context, taskID string) (store.LiveFeedEntry, bool, error) {
	var rec store.LiveFeedEntry
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT task_id, event, entry_at FROM live_feed WHERE task_id = ?`), taskID)
	if err := row.Scan(&rec.TaskID, &rec.Event, &rec.Timestamp); err != nil {
		if err == sql.ErrNoRows {
			return store.LiveFeedEntry{}, false, nil
		}
		return store.LiveFeedEntry{}, false, err
	}
	return rec, true, nil
}

func (s *Store) PutTraceSpan(ctx context.Context, rec store.TraceSpanRecord) error {
	return s.exec(ctx, `INSERT INTO trace_spans (span_id, trace_id, subject_id, name, duration_ms, started_at)
		VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT (span_id) DO NOTHING`,
		rec.SpanID, rec.TraceID, rec.SubjectID, rec.Name, rec.DurationMS, rec.StartedAt)
}

func (s *Store) GetTraceSpanBySubject(ctx context.Context, subjectID string) (store.TraceSpanRecord, bool, error) {
	var rec store.TraceSpanRecord
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT span_id, trace_id, subject_id, name, duration_ms, started_at FROM trace_spans
		 WHERE subject_id = ? ORDER BY started_at DESC LIMIT 1`), subjectID)
	if err := row.Scan(&rec.SpanID, &rec.TraceID, &rec.SubjectID, &rec.Name, &rec.DurationMS, &rec.StartedAt); err != nil {
		if err == sql.ErrNoRows {
			return store.TraceSpanRecord{}, false, nil
		}
		return store.TraceSpanRecord{}, false, err
	}
	return rec, true, nil
}

func (s *Store) PutAuditEvent(ctx context.Context, rec store.AuditEventRecord) error {
	return s.exec(ctx, `INSERT INTO audit_events (event_id, subject_id, event_type, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (event_id) DO NOTHING`,
		rec.EventID, rec.SubjectID, rec.EventType, rec.CreatedAt)
}

func (s *Store) ListAuditEvents(ctx context.Context, subjectID string) ([]store.AuditEventRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT event_id, subject_id, event_type, created_at FROM audit_events WHERE subject_id = ? ORDER BY created_at`), subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.AuditEventRecord
	for rows.Next() {
		var rec store.AuditEventRecord
		if err := rows.Scan(&rec.EventID, &rec.SubjectID, &rec.EventType, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) PutNotification(ctx context.Context, rec store.NotificationRecord) error {
	return s.exec(ctx, `INSERT INTO notifications
		(notification_id, subject_id, channel, body, status, attempt_count, next_attempt_at, last_error, sent_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (notification_id) DO UPDATE SET
			status = excluded.status, attempt_count = excluded.attempt_count,
			next_attempt_at = excluded.next_attempt_at, last_error = excluded.last_error,
			sent_at = excluded.sent_at, updated_at = excluded.updated_at`,
		rec.NotificationID, rec.SubjectID, rec.Channel, rec.Body, rec.Status, rec.AttemptCount,
		rec.NextAttemptAt, rec.LastError, rec.SentAt, rec.CreatedAt, rec.UpdatedAt)
}

const notificationColumns = `notification_id, subject_id, channel, body, status, attempt_count, next_attempt_at, last_error, sent_at, created_at, updated_at`

func scanNotification(row interface{ Scan(...any) error }) (store.NotificationRecord, error) {
	var rec store.NotificationRecord
	err := row.Scan(&rec.NotificationID, &rec.SubjectID, &rec.Channel, &rec.Body, &rec.Status,
		&rec.AttemptCount, &rec.NextAttemptAt, &rec.LastError, &rec.SentAt, &rec.CreatedAt, &rec.UpdatedAt)
	return rec, err
}

func (s *Store) GetNotification(ctx context.Context, notificationID string) (store.NotificationRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+notificationColumns+` FROM notifications WHERE notification_id = ?`), notificationID)
	rec, err := scanNotification(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return store.NotificationRecord{}, false, nil
		}
		return store.NotificationRecord{}, false, err
	}
	return rec, true, nil
}

func (s *Store) GetNotificationBySubject(ctx context.Context, subjectID string) (store.NotificationRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+notificationColumns+` FROM notifications WHERE subject_id = ? ORDER BY created_at DESC LIMIT 1`), subjectID)
	rec, err := scanNotification(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return store.NotificationRecord{}, false, nil
		}
		return store.NotificationRecord{}, false, err
	}
	return rec, true, nil
}

func (s *Store) ListNotificationsDue(ctx context.Context, now string, limit int) ([]store.NotificationRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT `+notificationColumns+` FROM notifications
		 WHERE status = 'pending' AND next_attempt_at <= ? ORDER BY next_attempt_at LIMIT ?`), now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.NotificationRecord
	for rows.Next() {
		rec, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) PutErrorTrace(ctx context.Context, rec store.ErrorTraceRecord) error {
	return s.exec(ctx, `INSERT INTO error_traces (error_id, trace_id, deep_link, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (error_id) DO NOTHING`,
		rec.ErrorID, rec.TraceID, rec.DeepLink, rec.CreatedAt)
}

func (s *Store) GetErrorTrace(ctx context.Context, errorID string) (store.ErrorTraceRecord, bool, error) {
	var rec store.ErrorTraceRecord
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT error_id, trace_id, deep_link, created_at FROM error_traces WHERE error_id = ?`), errorID)
	if err := row.Scan(&rec.ErrorID, &rec.TraceID, &rec.DeepLink, &rec.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return store.ErrorTraceRecord{}, false, nil
		}
		return store.ErrorTraceRecord{}, false, err
	}
	return rec, true, nil
}

func (s *Store) PutDLQEntry(ctx context.Context, rec store.DLQEntryRecord) error {
	return s.exec(ctx, `INSERT INTO dlq_entries (entry_id, subject_id, queue, reason, created_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (entry_id) DO NOTHING`,
		rec.EntryID, rec.SubjectID, rec.Queue, rec.Reason, rec.CreatedAt)
}

func (s *Store) GetDLQEntryBySubject(ctx context.Context, subjectID string) (store.DLQEntryRecord, bool, error) {
	var rec store.DLQEntryRecord
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT entry_id, subject_id, queue, reason, created_at FROM dlq_entries
		 WHERE subject_id = ? ORDER BY created_at DESC LIMIT 1`), subjectID)
	if err := row.Scan(&rec.EntryID, &rec.SubjectID, &rec.Queue, &rec.Reason, &rec.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return store.DLQEntryRecord{}, false, nil
		}
		return store.DLQEntryRecord{}, false, err
	}
	return rec, true, nil
}

func (s *Store) PutTenantRow(ctx context.Context, rec store.TenantRow) error {
	return s.exec(ctx, `INSERT INTO tenant_rows (row_id, tenant_id, owner, body_json) VALUES (?, ?, ?, ?)
		ON CONFLICT (row_id) DO NOTHING`,
		rec.RowID, rec.TenantID, rec.Owner, string(rec.BodyJSON))
}

func (s *Store) ListTenantRows(ctx context.Context, tenantID string, owner string) ([]store.TenantRow, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT row_id, tenant_id, owner, body_json FROM tenant_rows WHERE tenant_id = ? AND owner = ?`), tenantID, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.TenantRow
	for rows.Next() {
		var rec store.TenantRow
		var body string
		if err := rows.Scan(&rec.RowID, &rec.TenantID, &rec.Owner, &body); err != nil {
			return nil, err
		}
		rec.BodyJSON = []byte(body)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) PutIntegrityCheck(ctx context.Context, rec store.IntegrityCheckRecord) error {
	return s.exec(ctx, `INSERT INTO integrity_checks (check_id, consistent, details, checked_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (check_id) DO NOTHING`,
		rec.CheckID, rec.Consistent, rec.Details, rec.CheckedAt)
}

func (s *Store) LatestIntegrityCheck(ctx context.Context) (store.IntegrityCheckRecord, bool, error) {
	var rec store.IntegrityCheckRecord
	row := s.db.QueryRowContext(ctx,
		`SELECT check_id, consistent, details, checked_at FROM integrity_checks ORDER BY checked_at DESC LIMIT 1`)
	if err := row.Scan(&rec.CheckID, &rec.Consistent, &rec.Details, &rec.CheckedAt); err != nil {
		if err == sql.ErrNoRows {
			return store.IntegrityCheckRecord{}, false, nil
		}
		return store.IntegrityCheckRecord{}, false, err
	}
	return rec, true, nil
}

func (s *Store) PutDeployment(ctx context.Context, rec store.DeploymentRecord) error {
	return s.exec(ctx, `INSERT INTO deployments (deployment_id, status, deployed_at) VALUES (?, ?, ?)
		ON CONFLICT (deployment_id) DO UPDATE SET status = excluded.status, deployed_at = excluded.deployed_at`,
		rec.DeploymentID, rec.Status, rec.DeployedAt)
}

func (s *Store) LatestSuccessfulDeployment(ctx context.Context) (store.DeploymentRecord, bool, error) {
	var rec store.DeploymentRecord
	row := s.db.QueryRowContext(ctx,
		`SELECT deployment_id, status, deployed_at FROM deployments WHERE status = 'successful' ORDER BY deployed_at DESC LIMIT 1`)
	if err := row.Scan(&rec.DeploymentID, &rec.Status, &rec.DeployedAt); err != nil {
		if err == sql.ErrNoRows {
			return store.DeploymentRecord{}, false, nil
		}
		return store.DeploymentRecord{}, false, err
	}
	return rec, true, nil
}

func (s *Store) PutCIWorkflow(ctx context.Context, rec store.CIWorkflowRecord) error {
	return s.exec(ctx, `INSERT INTO ci_workflows (workflow_id, type, status, reason, triggered_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (workflow_id) DO UPDATE SET status = excluded.status`,
		rec.WorkflowID, rec.Type, rec.Status, rec.Reason, rec.TriggeredAt)
}

func (s *Store) ListCIWorkflows(ctx context.Context, workflowType string) ([]store.CIWorkflowRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT workflow_id, type, status, reason, triggered_at FROM ci_workflows
		 WHERE (? = '' OR type = ?) ORDER BY triggered_at`), workflowType, workflowType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.CIWorkflowRecord
	for rows.Next() {
		var rec store.CIWorkflowRecord
		if err := rows.Scan(&rec.WorkflowID, &rec.Type, &rec.Status, &rec.Reason, &rec.TriggeredAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) PutRollbackRequest(ctx context.Context, rec store.RollbackRequestRecord) error {
	return s.exec(ctx, `INSERT INTO rollback_requests (request_id, deployment_id, reason, requested_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (request_id) DO NOTHING`,
		rec.RequestID, rec.DeploymentID, rec.Reason, rec.RequestedAt)
}

func (s *Store) ListRollbackRequests(ctx context.Context) ([]store.RollbackRequestRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT request_id, deployment_id, reason, requested_at FROM rollback_requests ORDER BY requested_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.RollbackRequestRecord
	for rows.Next() {
		var rec store.RollbackRequestRecord
		if err := rows.Scan(&rec.RequestID, &rec.DeploymentID, &rec.Reason, &rec.RequestedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) PutAcceptanceReport(ctx context.Context, rec store.AcceptanceReportRecord) error {
	return s.exec(ctx, `INSERT INTO acceptance_reports (report_id, body_json, passed, failed, created_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (report_id) DO NOTHING`,
		rec.ReportID, string(rec.BodyJSON), rec.Passed, rec.Failed, rec.CreatedAt)
}

func (s *Store) LatestAcceptanceReport(ctx context.Context) (store.AcceptanceReportRecord, bool, error) {
	var rec store.AcceptanceReportRecord
	var body string
	row := s.db.QueryRowContext(ctx,
		`SELECT report_id, body_json, passed, failed, created_at FROM acceptance_reports ORDER BY created_at DESC LIMIT 1`)
	if err := row.Scan(&rec.ReportID, &body, &rec.Passed, &rec.Failed, &rec.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return store.AcceptanceReportRecord{}, false, nil
		}
		return store.AcceptanceReportRecord{}, false, err
	}
	rec.BodyJSON = []byte(body)
	return rec, true, nil
}
