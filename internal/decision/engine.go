package decision

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lynxops/sentinel/internal/canon"
	"github.com/lynxops/sentinel/internal/store"
)

const (
	decisionHistoryCap  = 1000
	decisionHistoryTrim = 500
	learningWindow      = 100

	initialLearningRate = 0.1
)

// analysis is the per-input derivation feeding option generation and
// reasoning strings. Cost impact and complexity default to medium until
// richer signals exist.
type analysis struct {
	RiskLevel       string
	CostImpact      string
	TimeSensitivity string
	Complexity      string
	RecentSameType  int
}

func analyze(input Input, recentSameType int) analysis {
	level := "low"
	switch input.Priority {
	case PriorityCritical:
		level = "high"
	case PriorityHigh:
		level = "medium"
	}
	return analysis{
		RiskLevel:       level,
		CostImpact:      "medium",
		TimeSensitivity: level,
		Complexity:      "medium",
		RecentSameType:  recentSameType,
	}
}

// Engine scores candidate actions for operational events. It never returns
// an error from Decide; failures surface as the fallback escalation
// decision. Safe for concurrent use.
type Engine struct {
	store store.Store
	now   func() time.Time

	mu           sync.Mutex
	context      *Context
	history      []Decision
	learningRate float64
}

func NewEngine(st store.Store) (*Engine, error) {
	dctx, err := NewContext()
	if err != nil {
		return nil, err
	}
	return &Engine{
		store:        st,
		now:          time.Now,
		context:      dctx,
		learningRate: initialLearningRate,
	}, nil
}

// Refresh warms the context from the persisted audit log: the history window
// plus the carrier and customer caches, rebuilt from the hints recorded with
// each past decision. Called once at startup; decisions made before Refresh
// simply see an empty window.
func (e *Engine) Refresh(ctx context.Context) error {
	audits, err := e.store.ListDecisionAudits(ctx, contextHistoryCap)
	if err != nil {
		return fmt.Errorf("refresh decision context: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, audit := range audits {
		at, _ := time.Parse(time.RFC3339, audit.CreatedAt)
		data := map[string]any{}
		if audit.CarrierID != "" {
			data["carrier_id"] = audit.CarrierID
			if audit.CarrierOnTimeRate > 0 {
				data["carrier_on_time_rate"] = audit.CarrierOnTimeRate
			}
		}
		if audit.CustomerID != "" {
			data["customer_id"] = audit.CustomerID
			if audit.PreferredCarrier != "" {
				data["preferred_carrier"] = audit.PreferredCarrier
			}
		}
		e.context.observe(Input{Type: InputType(audit.InputType), Priority: Priority(audit.Priority), Data: data}, at)
	}
	return nil
}

// LearningRate exposes the rolling learning-rate scalar. It is a tunable
// input for future scoring and is not currently fed back into Decide.
func (e *Engine) LearningRate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.learningRate
}

// ContextSize reports the current history window length.
func (e *Engine) ContextSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.context.historyLen()
}

// HistorySize reports the rolling decision history length.
func (e *Engine) HistorySize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.history)
}

// Decide scores the candidate actions for input and returns the winner.
// Errors never propagate: a malformed input or an internal failure yields
// the fallback escalation decision with the cause embedded in Reasoning.
func (e *Engine) Decide(ctx context.Context, input Input) Decision {
	decision, err := e.decide(ctx, input)
	if err != nil {
		decision = e.fallback(input, err.Error())
	}
	e.record(ctx, input, decision)
	return decision
}

func (e *Engine) decide(ctx context.Context, input Input) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}
	if !validInputType(input.Type) {
		return Decision{}, fmt.Errorf("unknown input type %q", input.Type)
	}
	if !validPriority(input.Priority) {
		return Decision{}, fmt.Errorf("unknown priority %q", input.Priority)
	}

	e.mu.Lock()
	now := e.now()
	e.context.observe(input, now)
	recent := e.context.recentOfType(input.Type)
	e.mu.Unlock()

	a := analyze(input, recent)

	generate := generators[input.Type]
	if generate == nil {
		return Decision{}, fmt.Errorf("no option generator for %q", input.Type)
	}
	options := generate(input, a)
	if len(options) == 0 {
		return e.fallback(input, "no options generated"), nil
	}

	best := selectOption(options, input)
	confidence := adjustConfidence(best.Confidence, input.Priority)

	return Decision{
		Action:              best.Action,
		Confidence:          confidence,
		Reasoning:           best.Reasoning,
		EstimatedImpact:     best.EstimatedImpact,
		RequiresHumanReview: confidence < 0.7 || input.Priority == PriorityCritical,
		InputType:           input.Type,
		Priority:            input.Priority,
		Timestamp:           now,
	}, nil
}

// selectOption scores candidates and returns the best one. The sort is
// stable so generator ordering breaks ties.
func selectOption(options []Option, input Input) Option {
	scored := make([]Option, len(options))
	copy(scored, options)

	sort.SliceStable(scored, func(i, j int) bool {
		return score(scored[i], input) > score(scored[j], input)
	})
	return scored[0]
}

func score(opt Option, input Input) float64 {
	s := opt.Confidence
	switch input.Priority {
	case PriorityCritical:
		s *= 1.2
	case PriorityHigh:
		s *= 1.1
	}
	// Discourage escalation-heavy defaults on the high-volume shipment path.
	if opt.RequiresHumanReview && input.Type == TypeShipment {
		s *= 0.8
	}
	return s
}

func adjustConfidence(confidence float64, priority Priority) float64 {
	switch priority {
	case PriorityCritical:
		return min(confidence*0.9, 0.95)
	case PriorityHigh:
		return min(confidence*0.95, 0.90)
	}
	return confidence
}

func (e *Engine) fallback(input Input, reason string) Decision {
	return Decision{
		Action:              ActionEscalate,
		Confidence:          0,
		Reasoning:           reason,
		EstimatedImpact:     ImpactLow,
		RequiresHumanReview: true,
		InputType:           input.Type,
		Priority:            input.Priority,
		Timestamp:           e.now(),
	}
}

// record appends the decision to the rolling history, updates the learning
// rate from the recent average confidence, and writes the audit record.
// Store failures are swallowed: auditing must never break decision-making.
func (e *Engine) record(ctx context.Context, input Input, decision Decision) {
	e.mu.Lock()
	e.history = append(e.history, decision)
	if len(e.history) > decisionHistoryCap {
		e.history = e.history[len(e.history)-decisionHistoryTrim:]
	}

	window := e.history
	if len(window) > learningWindow {
		window = window[len(window)-learningWindow:]
	}
	var sum float64
	for _, d := range window {
		sum += d.Confidence
	}
	avg := sum / float64(len(window))
	switch {
	case avg > 0.8:
		e.learningRate *= 0.95
	case avg < 0.6:
		e.learningRate *= 1.05
	}
	learningRate := e.learningRate
	e.mu.Unlock()

	createdAt := decision.Timestamp.UTC().Format(time.RFC3339Nano)
	view := map[string]any{
		"input_type":      string(decision.InputType),
		"priority":        string(decision.Priority),
		"action":          decision.Action,
		"confidence":      decision.Confidence,
		"requires_review": decision.RequiresHumanReview,
		"created_at":      createdAt,
	}
	canonical, err := canon.Canonicalize(view)
	if err != nil {
		return
	}

	rec := store.DecisionAuditRecord{
		DecisionID:     canon.DigestWithPrefix(canonical),
		InputType:      string(decision.InputType),
		Priority:       string(decision.Priority),
		Action:         decision.Action,
		Confidence:     decision.Confidence,
		Reasoning:      decision.Reasoning,
		Impact:         string(decision.EstimatedImpact),
		RequiresReview: decision.RequiresHumanReview,
		LearningRate:   learningRate,
		CreatedAt:      createdAt,
	}
	if id, ok := stringField(input.Data, "carrier_id"); ok {
		rec.CarrierID = id
		if rate, ok := floatField(input.Data, "carrier_on_time_rate"); ok {
			rec.CarrierOnTimeRate = rate
		}
	}
	if id, ok := stringField(input.Data, "customer_id"); ok {
		rec.CustomerID = id
		if preferred, ok := stringField(input.Data, "preferred_carrier"); ok {
			rec.PreferredCarrier = preferred
		}
	}
	_ = e.store.PutDecisionAudit(ctx, rec)
}
