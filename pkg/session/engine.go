// Package session implements the per-session execution engine: a
// single-writer FSM that drives planning cycles, hands actions to the
// browser client, and persists every mutation.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/navimind/navimind/pkg/agent"
	"github.com/navimind/navimind/pkg/cache"
	"github.com/navimind/navimind/pkg/config"
	"github.com/navimind/navimind/pkg/events"
	"github.com/navimind/navimind/pkg/llm"
	"github.com/navimind/navimind/pkg/models"
	"github.com/navimind/navimind/pkg/queue"
	"github.com/navimind/navimind/pkg/storage"
)

// Engine errors surfaced to the API layer.
var (
	ErrTerminal       = errors.New("session is in a terminal state")
	ErrNotPaused      = errors.New("session is not paused")
	ErrNoCredentials  = errors.New("no llm credentials configured; call execute first")
	ErrNoActiveAction = errors.New("no action awaiting a result")
	ErrBlockedTask    = errors.New("task rejected by security screening")
)

// failReasonMaxSteps is the task error recorded on step-cap breach.
const failReasonMaxSteps = "max_steps_reached"

// Engine owns one session. All state mutations are serialized through mu;
// planning cycles run detached and re-acquire the lock to apply their
// outcome.
type Engine struct {
	mu sync.Mutex

	sess  *models.Session
	store storage.Store
	bus   *events.Bus
	cache *cache.ContentCache
	queue *queue.ActionQueue
	coord *agent.Coordinator
	log   *slog.Logger

	// newClient builds LLM clients for execute requests. Defaults to
	// llm.New; tests substitute a scripted client.
	newClient func(provider, apiKey, model string) (llm.Client, error)

	// planningActive is the double-spawn guard: at most one planning
	// cycle in flight per session.
	planningActive bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewEngine wraps a session record. The coordinator is attached later via
// Execute, since it needs the caller's API credential.
func NewEngine(sess *models.Session, store storage.Store, logger *slog.Logger) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	logger = logger.With("session_id", sess.ID)
	e := &Engine{
		sess:      sess,
		store:     store,
		bus:       events.NewBus(sess.ID, logger),
		cache:     cache.New(sess.Config.Cache, logger),
		queue:     queue.New(maxQueueDepth(sess.Config)),
		log:       logger,
		newClient: llm.New,
		ctx:       ctx,
		cancel:    cancel,
	}
	// A rehydrated session rebuilds the queue from the persisted snapshot
	// so a mid-flight task keeps serving the browser client.
	e.queue.Restore(sess.QueuedAction, sess.InFlightAction)
	return e
}

func maxQueueDepth(cfg *config.SessionConfig) int {
	if cfg.MaxActionsPerStep > 4 {
		return cfg.MaxActionsPerStep
	}
	return 4
}

// ID returns the session identifier.
func (e *Engine) ID() string {
	return e.sess.ID
}

// State returns the current lifecycle state.
func (e *Engine) State() models.LifecycleState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.ExecutionState
}

// Subscribe attaches an event listener.
func (e *Engine) Subscribe() (<-chan events.Event, func()) {
	return e.bus.Subscribe()
}

// ExecuteOptions carries the credentials and overrides accepted by the
// execute ingress.
type ExecuteOptions struct {
	Provider string
	APIKey   string
	Model    string
	Vision   *bool
	Config   json.RawMessage
}

// Execute submits a task and starts the planning loop. Repeat calls on a
// live session queue the task as a follow-up.
func (e *Engine) Execute(task string, opts ExecuteOptions) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if opts.Config != nil {
		cfg, err := config.SessionConfigFromJSON(opts.Config)
		if err != nil {
			return "", err
		}
		e.sess.Config = cfg
	}
	if opts.Vision != nil {
		e.sess.Config.EnableVision = *opts.Vision
	}

	if e.coord == nil || opts.APIKey != "" {
		if opts.APIKey == "" {
			return "", ErrNoCredentials
		}
		client, err := e.newClient(opts.Provider, opts.APIKey, opts.Model)
		if err != nil {
			return "", err
		}
		e.coord = agent.NewCoordinator(client, e.sess.Config, e.cache, e.log)
	}

	screened, err := e.screenTask(task, "execute")
	if err != nil {
		return "", err
	}

	t := &models.Task{
		ID:          uuid.New().String(),
		Description: screened,
		Status:      models.TaskPending,
		CreatedAt:   time.Now().UTC(),
	}
	e.sess.Tasks = append(e.sess.Tasks, t)

	// A busy session keeps the new task pending; it runs when the current
	// one terminates.
	if e.sess.ExecutionState == models.StateIdle || e.sess.ExecutionState.Terminal() {
		e.startTaskLocked(len(e.sess.Tasks) - 1)
	} else if e.sess.ExecutionState == models.StatePlanning {
		// A session reloaded mid-plan has no cycle in flight until
		// credentials return; restart it now.
		e.schedulePlanningLocked()
	}
	e.persistLocked()
	return t.ID, nil
}

// FollowUp appends a pending task; a terminal session restarts on it
// immediately.
func (e *Engine) FollowUp(task string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.coord == nil {
		return "", ErrNoCredentials
	}

	screened, err := e.screenTask(task, "follow_up")
	if err != nil {
		return "", err
	}

	t := &models.Task{
		ID:          uuid.New().String(),
		Description: screened,
		Status:      models.TaskPending,
		CreatedAt:   time.Now().UTC(),
	}
	e.sess.Tasks = append(e.sess.Tasks, t)

	if e.sess.ExecutionState.Terminal() || e.sess.ExecutionState == models.StateIdle {
		e.startTaskLocked(len(e.sess.Tasks) - 1)
	}
	e.persistLocked()
	return t.ID, nil
}

// screenTask runs user-supplied text through the guardrail. Critical
// threats reject the task; lesser findings are redacted and logged.
func (e *Engine) screenTask(task, source string) (string, error) {
	res := e.coord.Filter().Sanitize(task)
	if len(res.Threats) > 0 {
		e.recordThreatsLocked(source, res.Threats)
		if res.MaxSeverity.Critical() {
			return "", fmt.Errorf("%w: %s", ErrBlockedTask, res.MaxSeverity)
		}
	}
	return res.Text, nil
}

// startTaskLocked activates the task at index and kicks off planning.
func (e *Engine) startTaskLocked(index int) {
	e.sess.CurrentTaskIndex = index
	t := e.sess.Tasks[index]
	t.Status = models.TaskRunning
	now := time.Now().UTC()
	t.StartedAt = &now
	e.sess.ConsecFailures = 0
	e.setStateLocked(models.StatePlanning)
	e.publishLocked(events.EventTaskStart, events.ActorUser, map[string]any{
		"taskId": t.ID, "task": t.Description,
	})
	e.schedulePlanningLocked()
}

// NextActionResponse is the next-action poll result.
type NextActionResponse struct {
	Action       *models.Action `json:"action,omitempty"`
	Waiting      bool           `json:"waiting"`
	TaskComplete bool           `json:"taskComplete"`
}

// NextAction hands the queued action to the browser client, moving the
// FSM to EXECUTING until its result arrives.
func (e *Engine) NextAction() NextActionResponse {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sess.ExecutionState.Terminal() {
		return NextActionResponse{Waiting: true, TaskComplete: e.sess.ExecutionState == models.StateCompleted}
	}
	if e.sess.ExecutionState != models.StateWaitingForBrowser {
		return NextActionResponse{Waiting: true}
	}

	a := e.queue.Pop()
	if a == nil {
		return NextActionResponse{Waiting: true}
	}
	e.sess.InFlightAction = a
	e.sess.QueuedAction = nil
	e.setStateLocked(models.StateExecuting)
	e.persistLocked()
	return NextActionResponse{Action: a}
}

// ActionResult records the browser's outcome for the in-flight action and
// resumes planning, or fails the task when consecutive failures reach the
// cap.
func (e *Engine) ActionResult(res *models.Result) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sess.ExecutionState.Terminal() {
		return ErrTerminal
	}
	inFlight := e.queue.InFlight()
	if inFlight == nil {
		return ErrNoActiveAction
	}
	e.queue.CompleteInFlight(inFlight.ID)
	e.sess.InFlightAction = nil

	now := time.Now().UTC()
	res.Step = e.sess.StepCount
	e.sess.ActionHistory = append(e.sess.ActionHistory, &models.ActionRecord{
		Action:      inFlight,
		Result:      res,
		Step:        e.sess.StepCount,
		StartedAt:   now.Add(-time.Duration(res.DurationMs) * time.Millisecond),
		CompletedAt: now,
	})
	e.sess.Metrics.ExecutionTimeMs += res.DurationMs

	if res.Success {
		e.sess.Metrics.SuccessfulActions++
		e.sess.ConsecFailures = 0
	} else {
		e.sess.Metrics.FailedActions++
		e.sess.ConsecFailures++
	}

	if res.BrowserState != nil {
		e.applyBrowserStateLocked(res.BrowserState)
	} else if res.Screenshot != "" && e.sess.BrowserState != nil {
		snap := *e.sess.BrowserState
		snap.Screenshot = res.Screenshot
		snap.Timestamp = now
		e.sess.BrowserState = &snap
	}

	e.publishLocked(events.EventActionExecuted, events.ActorExecutor, map[string]any{
		"actionId": inFlight.ID,
		"type":     string(inFlight.Type),
		"success":  res.Success,
		"error":    res.Error,
	})

	if e.sess.ConsecFailures >= e.sess.Config.MaxFailures {
		e.failTaskLocked(fmt.Sprintf("action failed %d times in a row: %s", e.sess.ConsecFailures, res.Error))
		e.persistLocked()
		return nil
	}

	if e.sess.ExecutionState == models.StateExecuting || e.sess.ExecutionState == models.StateWaitingForBrowser {
		e.setStateLocked(models.StatePlanning)
		e.schedulePlanningLocked()
	}
	e.persistLocked()
	return nil
}

// UpdateState replaces the browser snapshot outside an action result.
func (e *Engine) UpdateState(state *models.BrowserState) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.applyBrowserStateLocked(state)
	e.publishLocked(events.EventStateUpdate, events.ActorSystem, map[string]any{
		"url": state.URL, "title": state.Title,
	})
	e.persistLocked()
	return nil
}

func (e *Engine) applyBrowserStateLocked(state *models.BrowserState) {
	if state.Timestamp.IsZero() {
		state.Timestamp = time.Now().UTC()
	}
	prev := e.sess.BrowserState
	e.sess.BrowserState = state
	if prev == nil || prev.URL != state.URL {
		e.cache.UpdateURL(state.URL)
	}
	if state.Screenshot != "" {
		if err := e.cache.Set(cache.TierScreenshot, state.URL, []byte(state.Screenshot)); err != nil {
			e.log.Warn("failed to cache screenshot", "error", err)
		}
	}
}

// Pause suspends the session. A planning cycle already in flight finishes
// and its outcome is discarded.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess.ExecutionState.Terminal() {
		return ErrTerminal
	}
	if t := e.sess.CurrentTask(); t != nil && t.Status == models.TaskRunning {
		t.Status = models.TaskPaused
	}
	e.setStateLocked(models.StatePaused)
	e.publishLocked(events.EventTaskPause, events.ActorUser, nil)
	e.persistLocked()
	return nil
}

// Resume restarts planning after a pause.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess.ExecutionState != models.StatePaused {
		return ErrNotPaused
	}
	if t := e.sess.CurrentTask(); t != nil && t.Status == models.TaskPaused {
		t.Status = models.TaskRunning
	}
	e.setStateLocked(models.StatePlanning)
	e.publishLocked(events.EventTaskResume, events.ActorUser, nil)
	e.schedulePlanningLocked()
	e.persistLocked()
	return nil
}

// Cancel terminates the session, marking the current task cancelled and
// draining the queue. In-flight LLM calls finish but their outcome is
// discarded.
func (e *Engine) Cancel() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess.ExecutionState.Terminal() {
		return ErrTerminal
	}
	if t := e.sess.CurrentTask(); t != nil && !t.Status.Terminal() {
		t.Status = models.TaskCancelled
		now := time.Now().UTC()
		t.CompletedAt = &now
	}
	dropped := e.queue.Drain()
	e.sess.QueuedAction = nil
	e.sess.InFlightAction = nil
	e.setStateLocked(models.StateCompleted)
	e.publishLocked(events.EventTaskCancel, events.ActorUser, map[string]any{"droppedActions": dropped})
	e.cancel()
	e.persistLocked()
	return nil
}

// History is the full session record returned by the history endpoint.
type History struct {
	SessionID      string                  `json:"sessionId"`
	ExecutionState models.LifecycleState   `json:"executionState"`
	Tasks          []*models.Task          `json:"tasks"`
	ActionHistory  []*models.ActionRecord  `json:"actionHistory"`
	PlannerHistory []*models.PlannerRecord `json:"plannerHistory"`
	SecurityEvents []*models.SecurityEvent `json:"securityEvents"`
	BrowserState   *models.BrowserState    `json:"browserState,omitempty"`
	Plan           *models.StrategicPlan   `json:"plan,omitempty"`
	Metrics        models.Metrics          `json:"metrics"`
	CacheStats     cache.Stats             `json:"cacheStats"`
	StepCount      int                     `json:"stepCount"`
}

// History snapshots the session for the caller.
func (e *Engine) History() History {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sess.Metrics.CacheHitRate = e.cache.Stats().HitRate
	return History{
		SessionID:      e.sess.ID,
		ExecutionState: e.sess.ExecutionState,
		Tasks:          e.sess.Tasks,
		ActionHistory:  e.sess.ActionHistory,
		PlannerHistory: e.sess.PlannerHistory,
		SecurityEvents: e.sess.SecurityEvents,
		BrowserState:   e.sess.BrowserState,
		Plan:           e.sess.Plan,
		Metrics:        e.sess.Metrics,
		CacheStats:     e.cache.Stats(),
		StepCount:      e.sess.StepCount,
	}
}

// Replay exports the action history under a replay key and returns the
// replay ID.
func (e *Engine) Replay(ctx context.Context) (string, error) {
	e.mu.Lock()
	rep := &models.Replay{
		ReplayID:      uuid.New().String(),
		SessionID:     e.sess.ID,
		Tasks:         e.sess.Tasks,
		ActionHistory: e.sess.ActionHistory,
		FinalState:    e.sess.BrowserState,
		Metrics:       e.sess.Metrics,
		ExportedAt:    time.Now().UTC(),
	}
	e.mu.Unlock()

	blob, err := json.Marshal(rep)
	if err != nil {
		return "", err
	}
	if err := e.store.Put(ctx, "replay:"+rep.ReplayID, blob); err != nil {
		return "", fmt.Errorf("export replay: %w", err)
	}
	return rep.ReplayID, nil
}

// Extract runs the extractor over caller-supplied content.
func (e *Engine) Extract(ctx context.Context, content, instruction string, fields map[string]any) (json.RawMessage, error) {
	e.mu.Lock()
	coord := e.coord
	e.mu.Unlock()
	if coord == nil {
		return nil, ErrNoCredentials
	}
	return coord.Extract(ctx, content, instruction, fields, e)
}

// setStateLocked transitions the FSM and mirrors it on the session record.
func (e *Engine) setStateLocked(s models.LifecycleState) {
	if e.sess.ExecutionState == s {
		return
	}
	e.log.Debug("state transition", "from", e.sess.ExecutionState, "to", s)
	e.sess.ExecutionState = s
}

// failTaskLocked marks the current task failed and the session errored.
func (e *Engine) failTaskLocked(reason string) {
	if t := e.sess.CurrentTask(); t != nil && !t.Status.Terminal() {
		t.Status = models.TaskFailed
		t.Error = reason
		now := time.Now().UTC()
		t.CompletedAt = &now
	}
	e.queue.Drain()
	e.sess.QueuedAction = nil
	e.sess.InFlightAction = nil
	e.setStateLocked(models.StateError)
	e.publishLocked(events.EventTaskError, events.ActorSystem, map[string]any{"error": reason})
	e.maybeExportReplayLocked()
}

// completeTaskLocked marks the current task done and either advances to
// the next pending task or settles in COMPLETED.
func (e *Engine) completeTaskLocked(result string) {
	e.queue.Drain()
	e.sess.QueuedAction = nil
	e.sess.InFlightAction = nil
	if t := e.sess.CurrentTask(); t != nil && !t.Status.Terminal() {
		t.Status = models.TaskCompleted
		t.Result = result
		now := time.Now().UTC()
		t.CompletedAt = &now
		e.publishLocked(events.EventTaskComplete, events.ActorPlanner, map[string]any{
			"taskId": t.ID, "result": result,
		})
	}
	if next := e.sess.NextPendingTask(); next >= 0 {
		e.startTaskLocked(next)
		return
	}
	e.setStateLocked(models.StateCompleted)
	e.maybeExportReplayLocked()
}

// maybeExportReplayLocked auto-exports a replay for terminal sessions when
// enabled. Best effort; failures only log.
func (e *Engine) maybeExportReplayLocked() {
	if !e.sess.Config.EnableReplay {
		return
	}
	rep := &models.Replay{
		ReplayID:      uuid.New().String(),
		SessionID:     e.sess.ID,
		Tasks:         e.sess.Tasks,
		ActionHistory: e.sess.ActionHistory,
		FinalState:    e.sess.BrowserState,
		Metrics:       e.sess.Metrics,
		ExportedAt:    time.Now().UTC(),
	}
	blob, err := json.Marshal(rep)
	if err != nil {
		e.log.Warn("replay export failed", "error", err)
		return
	}
	if err := e.store.Put(context.Background(), "replay:"+rep.ReplayID, blob); err != nil {
		e.log.Warn("replay export failed", "error", err)
	}
}

// publishLocked emits a bus event stamped with the current step and state.
func (e *Engine) publishLocked(eventType, actor string, data map[string]any) {
	ev := events.New(e.sess.ID, eventType, actor, data)
	ev.Step = e.sess.StepCount
	ev.State = string(e.sess.ExecutionState)
	e.bus.Publish(ev)
}

// persistLocked writes the serialized session. Storage failures are logged
// and do not interrupt execution.
func (e *Engine) persistLocked() {
	e.sess.UpdatedAt = time.Now().UTC()
	blob, err := e.sess.Serialize()
	if err != nil {
		e.log.Error("session serialization failed", "error", err)
		return
	}
	if err := e.store.Put(context.Background(), "session:"+e.sess.ID, blob); err != nil {
		e.log.Error("session persistence failed", "error", err)
	}
}

// Close releases the engine's resources without touching session state.
func (e *Engine) Close() {
	e.cancel()
	e.bus.Close()
}
