// Package events provides per-session event fan-out. Subscribers receive
// events over buffered channels; a slow subscriber loses events rather than
// blocking the engine.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Event types published on the session bus.
const (
	// Task lifecycle
	EventTaskStart    = "task_start"
	EventTaskPause    = "task_pause"
	EventTaskResume   = "task_resume"
	EventTaskCancel   = "task_cancel"
	EventTaskComplete = "task_complete"
	EventTaskError    = "task_error"

	// Execution progress
	EventPlanGenerated  = "plan_generated"
	EventActionExecuted = "action_executed"
	EventStateUpdate    = "state_update"

	// Guardrail findings
	EventSecurityAlert = "security_alert"
)

// Actor values identify who caused an event.
const (
	ActorSystem    = "system"
	ActorPlanner   = "planner"
	ActorExecutor  = "actor"
	ActorExtractor = "extractor"
	ActorUser      = "user"
)

// Event is one bus message. Data is event-type specific and must be JSON
// serializable; the SSE handler marshals events verbatim.
type Event struct {
	ID        string         `json:"id"`
	SessionID string         `json:"sessionId"`
	Type      string         `json:"type"`
	Actor     string         `json:"actor"`
	State     string         `json:"state,omitempty"` // FSM state at emission
	Step      int            `json:"step,omitempty"`
	Severity  string         `json:"severity,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// New builds an event with a fresh ID and timestamp.
func New(sessionID, eventType, actor string, data map[string]any) Event {
	return Event{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Type:      eventType,
		Actor:     actor,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}
