package decision

import "fmt"

// generator produces the fixed candidate set for one input type. Generators
// are registered per type; adding a new input type means adding one entry
// here rather than widening a switch.
type generator func(input Input, a analysis) []Option

var generators = map[InputType]generator{
	TypeShipment:        shipmentOptions,
	TypeCustomerService: customerServiceOptions,
	TypeFinancial:       financialOptions,
	TypeAnalytics:       analyticsOptions,
}

func shipmentOptions(input Input, a analysis) []Option {
	return []Option{
		{
			Action:          "auto_assign_carrier",
			Confidence:      0.8,
			Reasoning:       fmt.Sprintf("carrier pool healthy, risk %s", a.RiskLevel),
			EstimatedImpact: ImpactMedium,
		},
		{
			Action:          "optimize_route",
			Confidence:      0.7,
			Reasoning:       fmt.Sprintf("route recomputation viable, time sensitivity %s", a.TimeSensitivity),
			EstimatedImpact: ImpactMedium,
		},
		{
			Action:              ActionEscalate,
			Confidence:          0.3,
			Reasoning:           "manual dispatch review",
			EstimatedImpact:     ImpactLow,
			RequiresHumanReview: true,
		},
	}
}

func customerServiceOptions(input Input, a analysis) []Option {
	return []Option{
		{
			Action:          "send_automated_reply",
			Confidence:      0.75,
			Reasoning:       "templated response matches inquiry class",
			EstimatedImpact: ImpactLow,
		},
		{
			Action:          "schedule_callback",
			Confidence:      0.6,
			Reasoning:       fmt.Sprintf("callback queue available, time sensitivity %s", a.TimeSensitivity),
			EstimatedImpact: ImpactMedium,
		},
		{
			Action:              ActionEscalate,
			Confidence:          0.35,
			Reasoning:           "route to support agent",
			EstimatedImpact:     ImpactLow,
			RequiresHumanReview: true,
		},
	}
}

func financialOptions(input Input, a analysis) []Option {
	return []Option{
		{
			Action:          "flag_for_audit",
			Confidence:      0.7,
			Reasoning:       fmt.Sprintf("anomaly scoring available, cost impact %s", a.CostImpact),
			EstimatedImpact: ImpactMedium,
		},
		{
			Action:              "auto_approve_invoice",
			Confidence:          0.65,
			Reasoning:           "within auto-approval band",
			EstimatedImpact:     ImpactHigh,
			RequiresHumanReview: true,
		},
		{
			Action:              ActionEscalate,
			Confidence:          0.4,
			Reasoning:           "finance desk review",
			EstimatedImpact:     ImpactLow,
			RequiresHumanReview: true,
		},
	}
}

func analyticsOptions(input Input, a analysis) []Option {
	return []Option{
		{
			Action:          "refresh_dashboard",
			Confidence:      0.85,
			Reasoning:       "materialized views current",
			EstimatedImpact: ImpactLow,
		},
		{
			Action:          "recompute_metrics",
			Confidence:      0.7,
			Reasoning:       fmt.Sprintf("recompute window open, complexity %s", a.Complexity),
			EstimatedImpact: ImpactMedium,
		},
		{
			Action:              ActionEscalate,
			Confidence:          0.2,
			Reasoning:           "analyst review",
			EstimatedImpact:     ImpactLow,
			RequiresHumanReview: true,
		},
	}
}
