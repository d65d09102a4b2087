package store

import "context"

// Store is the persisted-collection interface shared by the decision engine,
// the incident controller and the acceptance harness. Every method takes a
// context so in-flight work can be cancelled by an overriding incident or a
// test timeout.
type Store interface {
	PutFlag(ctx context.Context, flag FlagRecord) error
	GetFlag(ctx context.Context, key string) (FlagRecord, bool, error)

	PutConfigValue(ctx context.Context, value ConfigRecord) error
	GetConfigValue(ctx context.Context, key string) (ConfigRecord, bool, error)

	PutRuntimeStatus(ctx context.Context, rec RuntimeStatusRecord) error
	ListRuntimeStatus(ctx context.Context, kind string, status string) ([]RuntimeStatusRecord, error)
	TransitionRuntimeStatus(ctx context.Context, kind string, from string, to string, at string) (int, error)

	PutIncident(ctx context.Context, rec IncidentRecord) error
	GetIncident(ctx context.Context, incidentID string) (IncidentRecord, bool, error)
	ListIncidents(ctx context.Context, status string) ([]IncidentRecord, error)

	PutDecisionAudit(ctx context.Context, rec DecisionAuditRecord) error
	ListDecisionAudits(ctx context.Context, limit int) ([]DecisionAuditRecord, error)

	PutSyntheticTask(ctx context.Context, rec SyntheticTaskRecord) error
	GetSyntheticTask(ctx context.Context, taskID string) (SyntheticTaskRecord, bool, error)

	PutLiveFeedEntry(ctx context.Context, rec LiveFeedEntry) error
	GetLiveFeedEntry(ctx context.Context, taskID string) (LiveFeedEntry, bool, error)

	PutTraceSpan(ctx context.Context, rec TraceSpanRecord) error
	GetTraceSpanBySubject(ctx context.Context, subjectID string) (TraceSpanRecord, bool, error)

	PutAuditEvent(ctx context.Context, rec AuditEventRecord) error
	ListAuditEvents(ctx context.Context, subjectID string) ([]AuditEventRecord, error)

	PutNotification(ctx context.Context, rec NotificationRecord) error
	GetNotification(ctx context.Context, notificationID string) (NotificationRecord, bool, error)
	GetNotificationBySubject(ctx context.Context, subjectID string) (NotificationRecord, bool, error)
	ListNotificationsDue(ctx context.Context, now string, limit int) ([]NotificationRecord, error)

	PutErrorTrace(ctx context.Context, rec ErrorTraceRecord) error
	GetErrorTrace(ctx context.Context, errorID string) (ErrorTraceRecord, bool, error)

	PutDLQEntry(ctx context.Context, rec DLQEntryRecord) error
	GetDLQEntryBySubject(ctx context.Context, subjectID string) (DLQEntryRecord, bool, error)

	PutTenantRow(ctx context.Context, rec TenantRow) error
	ListTenantRows(ctx context.Context, tenantID string, owner string) ([]TenantRow, error)

	PutIntegrityCheck(ctx context.Context, rec IntegrityCheckRecord) error
	LatestIntegrityCheck(ctx context.Context) (IntegrityCheckRecord, bool, error)

	PutDeployment(ctx context.Context, rec DeploymentRecord) error
	LatestSuccessfulDeployment(ctx context.Context) (DeploymentRecord, bool, error)

	PutCIWorkflow(ctx context.Context, rec CIWorkflowRecord) error
	ListCIWorkflows(ctx context.Context, workflowType string) ([]CIWorkflowRecord, error)

	PutRollbackRequest(ctx context.Context, rec RollbackRequestRecord) error
	ListRollbackRequests(ctx context.Context) ([]RollbackRequestRecord, error)

	PutAcceptanceReport(ctx context.Context, rec AcceptanceReportRecord) error
	LatestAcceptanceReport(ctx context.Context) (AcceptanceReportRecord, bool, error)
}

// FlagKillSwitch is the feature flag the incident controller owns. The
// controller is the only writer; everything else treats it as read-only.
const FlagKillSwitch = "autonomy.emergencyStop"

const (
	ConfigAutonomousWrites   = "autonomous_writes_enabled"
	ConfigMaxConcurrency     = "agent_max_concurrency"
	ConfigDLQProcessing      = "dlq_processing_enabled"
	ConfigResourceAllocation = "resource_allocation"
)

const (
	KindAgent    = "agent"
	KindWorkflow = "workflow"
)

const (
	StatusRunning = "running"
	StatusStopped = "stopped"
	StatusPaused  = "paused"
)

type FlagRecord struct {
	Key       string
	Value     string
	UpdatedAt string
}

type ConfigRecord struct {
	Key       string
	Value     string
	UpdatedAt string
}

type RuntimeStatusRecord struct {
	ID        string
	Kind      string // agent | workflow
	Status    string // running | stopped | paused
	ChangedAt string
}

type IncidentRecord struct {
	IncidentID string
	Level      string
	Type       string
	Status     string // active | resolved | failed
	BodyJSON   []byte
	CreatedAt  string
	UpdatedAt  string
}

type DecisionAuditRecord struct {
	DecisionID     string
	InputType      string
	Priority       string
	Action         string
	Confidence     float64
	Reasoning      string
	Impact         string
	RequiresReview bool
	LearningRate   float64
	// Carrier and customer hints from the input payload, kept so a restarted
	// engine can rebuild its context caches from the audit log.
	CarrierID         string
	CarrierOnTimeRate float64
	CustomerID        string
	PreferredCarrier  string
	CreatedAt         string
}

type SyntheticTaskRecord struct {
	TaskID      string
	TaskNumber  int
	Type        string
	Status      string
	CreatedAt   string
	CompletedAt string
}

type LiveFeedEntry struct {
	TaskID    string
	Event     string
	Timestamp string
}

type TraceSpanRecord struct {
	SpanID     string
	TraceID    string
	SubjectID  string
	Name       string
	DurationMS int64
	StartedAt  string
}

type AuditEventRecord struct {
	EventID   string
	SubjectID string
	EventType string
	CreatedAt string
}

type NotificationRecord struct {
	NotificationID string
	SubjectID      string
	Channel        string
	Body           string
	Status         string // pending | sent
	AttemptCount   int
	NextAttemptAt  string
	LastError      *string
	SentAt         *string
	CreatedAt      string
	UpdatedAt      string
}

type ErrorTraceRecord struct {
	ErrorID   string
	TraceID   string
	DeepLink  string
	CreatedAt string
}

type DLQEntryRecord struct {
	EntryID   string
	SubjectID string
	Queue     string
	Reason    string
	CreatedAt string
}

type TenantRow struct {
	RowID    string
	TenantID string
	Owner    string
	BodyJSON []byte
}

type IntegrityCheckRecord struct {
	CheckID    string
	Consistent bool
	Details    string
	CheckedAt  string
}

type DeploymentRecord struct {
	DeploymentID string
	Status       string // successful | failed
	DeployedAt   string
}

type CIWorkflowRecord struct {
	WorkflowID  string
	Type        string
	Status      string
	Reason      string
	TriggeredAt string
}

type RollbackRequestRecord struct {
	RequestID    string
	DeploymentID string
	Reason       string
	RequestedAt  string
}

type AcceptanceReportRecord struct {
	ReportID  string
	BodyJSON  []byte
	Passed    int
	Failed    int
	CreatedAt string
}
