package models

import "time"

// PlannedAction is one step of a strategic plan, not yet concrete enough to
// queue — the planner re-derives the exact Action each cycle.
type PlannedAction struct {
	Type      ActionType `json:"type"`
	Reasoning string     `json:"reasoning,omitempty"`
	Priority  int        `json:"priority,omitempty"`
}

// Risk captures a planner-identified hazard and its mitigation.
type Risk struct {
	Description string `json:"description"`
	Likelihood  string `json:"likelihood,omitempty"`
	Impact      string `json:"impact,omitempty"`
	Mitigation  string `json:"mitigation,omitempty"`
}

// StrategicPlan is the planner's multi-step roadmap for the current task.
// Confidence is in [0,1]. A plan may be revised; each revision records why.
type StrategicPlan struct {
	Strategy        string          `json:"strategy"`
	EstimatedSteps  int             `json:"estimatedSteps,omitempty"`
	Confidence      float64         `json:"confidence"`
	PlannedActions  []PlannedAction `json:"plannedActions,omitempty"`
	SuccessCriteria []string        `json:"successCriteria,omitempty"`
	Risks           []Risk          `json:"risks,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	RevisedAt       *time.Time      `json:"revisedAt,omitempty"`
	RevisionReason  string          `json:"revisionReason,omitempty"`
}
