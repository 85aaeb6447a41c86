// Package models defines the session data model shared by the engine, the
// coordinator, and the API layer. All types serialize to stable JSON so a
// session survives host restarts byte-for-byte.
package models

import (
	"encoding/json"
	"time"

	"github.com/navimind/navimind/pkg/config"
)

// LifecycleState is the per-session FSM state.
type LifecycleState string

const (
	StateIdle              LifecycleState = "idle"
	StatePlanning          LifecycleState = "planning"
	StateExecuting         LifecycleState = "executing"
	StateWaitingForBrowser LifecycleState = "waiting_for_browser"
	StatePaused            LifecycleState = "paused"
	StateCompleted         LifecycleState = "completed"
	StateError             LifecycleState = "error"
)

// Terminal reports whether the state admits no further transitions besides
// a follow-up task restarting the loop.
func (s LifecycleState) Terminal() bool {
	return s == StateCompleted || s == StateError
}

// TaskStatus is the lifecycle of one natural-language task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskPaused    TaskStatus = "paused"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskCancelled TaskStatus = "cancelled"
)

// Terminal reports whether the task can no longer change status.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskCancelled
}

// Task is one natural-language objective submitted via execute or follow-up.
type Task struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Priority    int        `json:"priority,omitempty"`
	Status      TaskStatus `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Result      string     `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// ActionRecord pairs an action with the result the browser reported for it.
type ActionRecord struct {
	Action      *Action   `json:"action"`
	Result      *Result   `json:"result"`
	Step        int       `json:"step"`
	StartedAt   time.Time `json:"startedAt"`
	CompletedAt time.Time `json:"completedAt"`
}

// PlannerRecord captures one planner invocation: the condensed input, the
// raw LLM text, and the decision that came out of it.
type PlannerRecord struct {
	Step         int       `json:"step"`
	TaskID       string    `json:"taskId"`
	Input        string    `json:"input"`
	Output       string    `json:"output,omitempty"`
	NextAction   *Action   `json:"nextAction,omitempty"`
	TaskComplete bool      `json:"taskComplete"`
	Confidence   float64   `json:"confidence,omitempty"`
	Error        string    `json:"error,omitempty"`
	StartedAt    time.Time `json:"startedAt"`
	CompletedAt  time.Time `json:"completedAt"`
}

// SecurityEvent logs one guardrail detection. Threats are redacted in-place
// and never surfaced to the caller; this log and the event bus are the only
// places they appear.
type SecurityEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"` // threat category tag
	Severity  string    `json:"severity"`
	Source    string    `json:"source"` // dom, follow_up, extract_content
	Detail    string    `json:"detail,omitempty"`
	Step      int       `json:"step"`
	Timestamp time.Time `json:"timestamp"`
}

// Metrics is a passive accumulator mirrored into the history endpoint.
// TotalSteps counts planning cycles; PlanRefreshes counts forced strategic
// plan regenerations (every planningInterval steps).
type Metrics struct {
	TotalSteps        int     `json:"totalSteps"`
	PlanRefreshes     int     `json:"planRefreshes"`
	SuccessfulActions int     `json:"successfulActions"`
	FailedActions     int     `json:"failedActions"`
	RetriedActions    int     `json:"retriedActions"`
	ExecutionTimeMs   int64   `json:"executionTimeMs"`
	LLMCalls          int     `json:"llmCalls"`
	LLMTokens         int     `json:"llmTokens"`
	CacheHitRate      float64 `json:"cacheHitRate"`
	SecurityThreats   int     `json:"securityThreats"`
}

// Session is the full durable record for one automation context. The engine
// is the only writer; every mutation is followed by a store write of the
// serialized session.
type Session struct {
	ID               string                `json:"id"`
	ExtensionID      string                `json:"extensionId,omitempty"`
	Tasks            []*Task               `json:"tasks"`
	CurrentTaskIndex int                   `json:"currentTaskIndex"`
	StepCount        int                   `json:"stepCount"`
	ConsecFailures   int                   `json:"consecutiveFailures"`
	ExecutionState   LifecycleState        `json:"executionState"`
	QueuedAction     *Action               `json:"queuedAction,omitempty"`
	InFlightAction   *Action               `json:"inFlightAction,omitempty"`
	ActionHistory    []*ActionRecord       `json:"actionHistory"`
	PlannerHistory   []*PlannerRecord      `json:"plannerHistory"`
	SecurityEvents   []*SecurityEvent      `json:"securityEvents"`
	BrowserState     *BrowserState         `json:"browserState,omitempty"`
	Plan             *StrategicPlan        `json:"plan,omitempty"`
	Config           *config.SessionConfig `json:"config"`
	Metrics          Metrics               `json:"metrics"`
	CreatedAt        time.Time             `json:"createdAt"`
	UpdatedAt        time.Time             `json:"updatedAt"`
}

// CurrentTask returns the active task, or nil when the index is out of
// range (no task submitted yet).
func (s *Session) CurrentTask() *Task {
	if s.CurrentTaskIndex < 0 || s.CurrentTaskIndex >= len(s.Tasks) {
		return nil
	}
	return s.Tasks[s.CurrentTaskIndex]
}

// NextPendingTask returns the index of the first pending task after the
// current one, or -1.
func (s *Session) NextPendingTask() int {
	for i := s.CurrentTaskIndex + 1; i < len(s.Tasks); i++ {
		if s.Tasks[i].Status == TaskPending {
			return i
		}
	}
	return -1
}

// Serialize renders the session as canonical JSON. Map-valued fields
// (action params, event data) marshal with sorted keys, so the output is
// stable across serialize/deserialize round trips.
func (s *Session) Serialize() ([]byte, error) {
	return json.Marshal(s)
}

// DeserializeSession reconstructs a session from its stored blob.
func DeserializeSession(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if s.Config == nil {
		s.Config = config.DefaultSessionConfig()
	}
	return &s, nil
}

// Replay is the export written for terminal sessions: enough to re-execute
// the action sequence offline.
type Replay struct {
	ReplayID      string          `json:"replayId"`
	SessionID     string          `json:"sessionId"`
	Tasks         []*Task         `json:"tasks"`
	ActionHistory []*ActionRecord `json:"actionHistory"`
	FinalState    *BrowserState   `json:"finalState,omitempty"`
	Metrics       Metrics         `json:"metrics"`
	ExportedAt    time.Time       `json:"exportedAt"`
}
