package sqlstore

// Column types are restricted to the set both sqlite and postgres accept.
const schema = `
CREATE TABLE IF NOT EXISTS flags (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS config_values (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS runtime_status (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	status TEXT NOT NULL,
	changed_at TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS incidents (
	incident_id TEXT PRIMARY KEY,
	level TEXT NOT NULL,
	type TEXT NOT NULL,
	status TEXT NOT NULL,
	body_json TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS decision_audits (
	decision_id TEXT PRIMARY KEY,
	input_type TEXT NOT NULL,
	priority TEXT NOT NULL,
	action TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	reasoning TEXT NOT NULL DEFAULT '',
	impact TEXT NOT NULL DEFAULT '',
	requires_review BOOLEAN NOT NULL,
	learning_rate DOUBLE PRECISION NOT NULL,
	carrier_id TEXT NOT NULL DEFAULT '',
	carrier_on_time_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
	customer_id TEXT NOT NULL DEFAULT '',
	preferred_carrier TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS synthetic_tasks (
	task_id TEXT PRIMARY KEY,
	task_number INTEGER NOT NULL,
	type TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at TEXT NOT NULL,
	completed_at TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS live_feed (
	task_id TEXT PRIMARY KEY,
	event TEXT NOT NULL,
	entry_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS trace_spans (
	span_id TEXT PRIMARY KEY,
	trace_id TEXT NOT NULL,
	subject_id TEXT NOT NULL,
	name TEXT NOT NULL,
	duration_ms BIGINT NOT NULL,
	started_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trace_spans_subject ON trace_spans (subject_id);

CREATE TABLE IF NOT EXISTS audit_events (
	event_id TEXT PRIMARY KEY,
	subject_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_events_subject ON audit_events (subject_id);

CREATE TABLE IF NOT EXISTS notifications (
	notification_id TEXT PRIMARY KEY,
	subject_id TEXT NOT NULL,
	channel TEXT NOT NULL,
	body TEXT NOT NULL,
	status TEXT NOT NULL,
	attempt_count INTEGER NOT NULL DEFAULT 0,
	next_attempt_at TEXT NOT NULL,
	last_error TEXT,
	sent_at TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notifications_subject ON notifications (subject_id);

CREATE TABLE IF NOT EXISTS error_traces (
	error_id TEXT PRIMARY KEY,
	trace_id TEXT NOT NULL,
	deep_link TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS dlq_entries (
	entry_id TEXT PRIMARY KEY,
	subject_id TEXT NOT NULL,
	queue TEXT NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_dlq_entries_subject ON dlq_entries (subject_id);

CREATE TABLE IF NOT EXISTS tenant_rows (
	row_id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	owner TEXT NOT NULL,
	body_json TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_tenant_rows_tenant ON tenant_rows (tenant_id, owner);

CREATE TABLE IF NOT EXISTS integrity_checks (
	check_id TEXT PRIMARY KEY,
	consistent BOOLEAN NOT NULL,
	details TEXT NOT NULL DEFAULT '',
	checked_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS deployments (
	deployment_id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	deployed_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS ci_workflows (
	workflow_id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	status TEXT NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	triggered_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS rollback_requests (
	request_id TEXT PRIMARY KEY,
	deployment_id TEXT NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	requested_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS acceptance_reports (
	report_id TEXT PRIMARY KEY,
	body_json TEXT NOT NULL,
	passed INTEGER NOT NULL,
	failed INTEGER NOT NULL,
	created_at TEXT NOT NULL
);
`
