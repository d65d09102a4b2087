package incident

import (
	"context"
	"fmt"
	"time"

	"github.com/lynxops/sentinel/internal/store"
)

// StopReport summarizes one engage cycle. Partial reports are possible: the
// sequence is at-least-once, and a mid-sequence failure leaves earlier
// writes in place.
type StopReport struct {
	EmergencyStopActive    bool `json:"emergency_stop_active"`
	AutonomousWritesHalted bool `json:"autonomous_writes_halted"`
	AgentsStopped          int  `json:"agents_stopped"`
	WorkflowsPaused        int  `json:"workflows_paused"`
	SystemVerified         bool `json:"system_verified"`
}

// ResumeReport summarizes one release cycle.
type ResumeReport struct {
	AgentsRestarted  int `json:"agents_restarted"`
	WorkflowsResumed int `json:"workflows_resumed"`
}

type switchRequest struct {
	ctx    context.Context
	engage bool
	reply  chan switchReply
}

type switchReply struct {
	stop   StopReport
	resume ResumeReport
	err    error
}

// Switch is the single writer for the emergency-stop flag. All flag-mutating
// sequences (engage, release) funnel through one goroutine, so two incidents
// reported concurrently can never interleave their stop/resume writes.
type Switch struct {
	store    store.Store
	now      func() time.Time
	requests chan switchRequest
	done     chan struct{}
}

func NewSwitch(st store.Store) *Switch {
	s := &Switch{
		store:    st,
		now:      time.Now,
		requests: make(chan switchRequest),
		done:     make(chan struct{}),
	}
	go s.run()
	return s
}

// Close stops the owning goroutine. In-flight requests complete first.
func (s *Switch) Close() {
	close(s.done)
}

func (s *Switch) run() {
	for {
		select {
		case <-s.done:
			return
		case req := <-s.requests:
			var reply switchReply
			if req.engage {
				reply.stop, reply.err = s.engage(req.ctx)
			} else {
				reply.resume, reply.err = s.release(req.ctx)
			}
			req.reply <- reply
		}
	}
}

// Engage runs the full emergency-stop sequence: flag up, autonomous writes
// halted, running agents stopped, running workflows paused, state verified.
func (s *Switch) Engage(ctx context.Context) (StopReport, error) {
	reply, err := s.request(ctx, true)
	return reply.stop, err
}

// Release runs the resume sequence: flag down, autonomous writes re-enabled,
// stopped agents and paused workflows transitioned back to running.
func (s *Switch) Release(ctx context.Context) (ResumeReport, error) {
	reply, err := s.request(ctx, false)
	return reply.resume, err
}

func (s *Switch) request(ctx context.Context, engage bool) (switchReply, error) {
	req := switchRequest{ctx: ctx, engage: engage, reply: make(chan switchReply, 1)}
	select {
	case s.requests <- req:
	case <-ctx.Done():
		return switchReply{}, ctx.Err()
	case <-s.done:
		return switchReply{}, fmt.Errorf("kill switch closed")
	}
	select {
	case reply := <-req.reply:
		return reply, reply.err
	case <-ctx.Done():
		return switchReply{}, ctx.Err()
	}
}

func (s *Switch) engage(ctx context.Context) (StopReport, error) {
	var report StopReport
	at := s.now().UTC().Format(time.RFC3339)

	if err := s.store.PutFlag(ctx, store.FlagRecord{Key: store.FlagKillSwitch, Value: "true", UpdatedAt: at}); err != nil {
		return report, fmt.Errorf("set emergency stop flag: %w", err)
	}
	report.EmergencyStopActive = true

	if err := s.store.PutConfigValue(ctx, store.ConfigRecord{Key: store.ConfigAutonomousWrites, Value: "false", UpdatedAt: at}); err != nil {
		return report, fmt.Errorf("halt autonomous writes: %w", err)
	}
	report.AutonomousWritesHalted = true

	agents, err := s.store.TransitionRuntimeStatus(ctx, store.KindAgent, store.StatusRunning, store.StatusStopped, at)
	if err != nil {
		return report, fmt.Errorf("stop agents: %w", err)
	}
	report.AgentsStopped = agents

	workflows, err := s.store.TransitionRuntimeStatus(ctx, store.KindWorkflow, store.StatusRunning, store.StatusPaused, at)
	if err != nil {
		return report, fmt.Errorf("pause workflows: %w", err)
	}
	report.WorkflowsPaused = workflows

	status, err := ReadStatus(ctx, s.store)
	if err != nil {
		return report, fmt.Errorf("verify stopped: %w", err)
	}
	report.SystemVerified = status.EmergencyStopActive && status.RunningAgents == 0 && status.RunningWorkflows == 0
	if !report.SystemVerified {
		return report, fmt.Errorf("system not fully stopped: %d agents, %d workflows running", status.RunningAgents, status.RunningWorkflows)
	}
	return report, nil
}

func (s *Switch) release(ctx context.Context) (ResumeReport, error) {
	var report ResumeReport
	at := s.now().UTC().Format(time.RFC3339)

	if err := s.store.PutFlag(ctx, store.FlagRecord{Key: store.FlagKillSwitch, Value: "false", UpdatedAt: at}); err != nil {
		return report, fmt.Errorf("clear emergency stop flag: %w", err)
	}
	if err := s.store.PutConfigValue(ctx, store.ConfigRecord{Key: store.ConfigAutonomousWrites, Value: "true", UpdatedAt: at}); err != nil {
		return report, fmt.Errorf("resume autonomous writes: %w", err)
	}

	agents, err := s.store.TransitionRuntimeStatus(ctx, store.KindAgent, store.StatusStopped, store.StatusRunning, at)
	if err != nil {
		return report, fmt.Errorf("restart agents: %w", err)
	}
	report.AgentsRestarted = agents

	workflows, err := s.store.TransitionRuntimeStatus(ctx, store.KindWorkflow, store.StatusPaused, store.StatusRunning, at)
	if err != nil {
		return report, fmt.Errorf("resume workflows: %w", err)
	}
	report.WorkflowsResumed = workflows
	return report, nil
}

// ReadStatus reads the current safety state. IsRunning requires the flag
// down and at least one running agent and workflow.
func ReadStatus(ctx context.Context, st store.Store) (SystemStatus, error) {
	var status SystemStatus

	flag, ok, err := st.GetFlag(ctx, store.FlagKillSwitch)
	if err != nil {
		return status, err
	}
	status.EmergencyStopActive = ok && flag.Value == "true"

	agents, err := st.ListRuntimeStatus(ctx, store.KindAgent, store.StatusRunning)
	if err != nil {
		return status, err
	}
	workflows, err := st.ListRuntimeStatus(ctx, store.KindWorkflow, store.StatusRunning)
	if err != nil {
		return status, err
	}
	status.RunningAgents = len(agents)
	status.RunningWorkflows = len(workflows)
	status.IsRunning = !status.EmergencyStopActive && status.RunningAgents > 0 && status.RunningWorkflows > 0
	return status, nil
}
