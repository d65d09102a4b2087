package decision

import "time"

type InputType string

const (
	TypeShipment        InputType = "shipment"
	TypeCustomerService InputType = "customer_service"
	TypeFinancial       InputType = "financial"
	TypeAnalytics       InputType = "analytics"
)

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

type Impact string

const (
	ImpactLow    Impact = "low"
	ImpactMedium Impact = "medium"
	ImpactHigh   Impact = "high"
)

// ActionEscalate is the fallback action returned whenever the engine cannot
// produce a scored option.
const ActionEscalate = "escalate_to_human"

// Input is one operational event submitted for an automated decision.
// Inputs are immutable; the engine never writes to Data.
type Input struct {
	Type     InputType      `json:"type"`
	Priority Priority       `json:"priority"`
	Data     map[string]any `json:"data,omitempty"`
}

// Option is a candidate action with its pre-seeded base confidence.
type Option struct {
	Action              string  `json:"action"`
	Confidence          float64 `json:"confidence"`
	Reasoning           string  `json:"reasoning"`
	EstimatedImpact     Impact  `json:"estimated_impact"`
	RequiresHumanReview bool    `json:"requires_human_review"`
}

// Decision is the selected option after scoring and confidence adjustment.
type Decision struct {
	Action              string    `json:"action"`
	Confidence          float64   `json:"confidence"`
	Reasoning           string    `json:"reasoning"`
	EstimatedImpact     Impact    `json:"estimated_impact"`
	RequiresHumanReview bool      `json:"requires_human_review"`
	InputType           InputType `json:"input_type"`
	Priority            Priority  `json:"priority"`
	Timestamp           time.Time `json:"timestamp"`
}

func validInputType(t InputType) bool {
	switch t {
	case TypeShipment, TypeCustomerService, TypeFinancial, TypeAnalytics:
		return true
	}
	return false
}

func validPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}
