package incident

// Severity levels accepted on an incident report.
const (
	LevelCritical = "critical"
	LevelHigh     = "high"
	LevelMedium   = "medium"
	LevelLow      = "low"
)

// Incident statuses. Resolved and failed are terminal.
const (
	StatusActive   = "active"
	StatusResolved = "resolved"
	StatusFailed   = "failed"
)

// Action types recorded on an incident's action list.
const (
	ActionEmergencyStop      = "emergency_stop"
	ActionSoftDegrade        = "soft_degrade"
	ActionRollback           = "rollback"
	ActionResume             = "resume"
	ActionIsolate            = "isolate"
	ActionThrottle           = "throttle"
	ActionAlert              = "alert_stakeholders"
	ActionInvestigate        = "begin_investigation"
	ActionMonitorEscalation  = "monitor_for_escalation"
	ActionIncreaseMonitoring = "increase_monitoring"
	ActionPrepareRollback    = "prepare_rollback"
	ActionLogIncident        = "log_incident"
)

// Report is the operator- or system-supplied description of a new incident.
type Report struct {
	Level       string `json:"level"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Source      string `json:"source"`
}

// ActionResult is one executed safety action. The list on an incident is
// append-only; results are never rewritten after the fact.
type ActionResult struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Timestamp  string         `json:"timestamp"`
	DurationMS int64          `json:"duration_ms"`
	Success    bool           `json:"success"`
	Details    map[string]any `json:"details,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// Resolution records how and when an incident left the active state.
type Resolution struct {
	Timestamp  string `json:"timestamp"`
	Method     string `json:"method"`
	DurationMS int64  `json:"duration_ms"`
}

// Incident is the full record of one detected incident and its response.
type Incident struct {
	ID          string         `json:"id"`
	Timestamp   string         `json:"timestamp"`
	Level       string         `json:"level"`
	Type        string         `json:"type"`
	Description string         `json:"description"`
	Source      string         `json:"source"`
	Status      string         `json:"status"`
	Actions     []ActionResult `json:"actions"`
	Resolution  *Resolution    `json:"resolution,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// SystemStatus is the controller's view of the safety state. IsRunning is
// false whenever EmergencyStopActive is true.
type SystemStatus struct {
	EmergencyStopActive bool `json:"emergency_stop_active"`
	RunningAgents       int  `json:"running_agents"`
	RunningWorkflows    int  `json:"running_workflows"`
	IsRunning           bool `json:"is_running"`
}
