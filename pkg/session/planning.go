package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/navimind/navimind/pkg/agent"
	"github.com/navimind/navimind/pkg/events"
	"github.com/navimind/navimind/pkg/guardrail"
	"github.com/navimind/navimind/pkg/models"
	"github.com/navimind/navimind/pkg/retry"
)

// schedulePlanningLocked spawns a detached planning cycle unless one is
// already in flight. Callers hold e.mu.
func (e *Engine) schedulePlanningLocked() {
	if e.planningActive || e.coord == nil {
		return
	}
	e.planningActive = true
	go e.planningCycle()
}

// planningCycle runs one planner step: bump counters, refresh the
// strategic plan on cadence, ask the planner for the next action, and
// apply the outcome. The LLM call happens without the lock; the FSM state
// is re-checked before the outcome is applied so pause/cancel during the
// call win.
func (e *Engine) planningCycle() {
	e.mu.Lock()
	if e.sess.ExecutionState != models.StatePlanning {
		e.planningActive = false
		e.mu.Unlock()
		return
	}
	task := e.sess.CurrentTask()
	if task == nil || task.Status != models.TaskRunning {
		e.planningActive = false
		e.mu.Unlock()
		return
	}

	cfg := e.sess.Config
	e.sess.StepCount++
	e.sess.Metrics.TotalSteps++
	step := e.sess.StepCount

	if step > cfg.MaxSteps {
		e.failTaskLocked(failReasonMaxSteps)
		e.planningActive = false
		e.persistLocked()
		e.mu.Unlock()
		return
	}

	e.sess.Metrics.CacheHitRate = e.cache.Stats().HitRate

	needPlan := e.sess.Plan == nil ||
		(cfg.PlanningInterval > 0 && step%cfg.PlanningInterval == 0)
	planRevision := e.sess.Plan != nil

	in := agent.StepInput{
		Task:           task.Description,
		Step:           step,
		MaxSteps:       cfg.MaxSteps,
		ConsecFailures: e.sess.ConsecFailures,
		BrowserState:   e.sess.BrowserState,
		RecentActions:  e.sess.ActionHistory,
		Plan:           e.sess.Plan,
	}
	taskID := task.ID
	prevPlan := e.sess.Plan
	coord := e.coord
	e.persistLocked()
	e.mu.Unlock()

	started := time.Now().UTC()

	if needPlan {
		reason := ""
		if planRevision {
			reason = "scheduled refresh"
		}
		plan, err := coord.BuildPlan(e.ctx, in.Task, in.BrowserState, prevPlan, reason, e)
		if err != nil {
			e.log.Warn("strategic plan generation failed, planning without one", "error", err)
		} else if e.installPlan(plan, planRevision, reason) {
			in.Plan = plan
		}
	}

	decision, err := coord.PlanStep(e.ctx, in, e)
	completed := time.Now().UTC()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.planningActive = false

	// Pause or cancel during the call wins; the outcome is discarded.
	if e.sess.ExecutionState != models.StatePlanning {
		return
	}

	rec := &models.PlannerRecord{
		Step:        step,
		TaskID:      taskID,
		Input:       in.Task,
		StartedAt:   started,
		CompletedAt: completed,
	}
	e.sess.PlannerHistory = append(e.sess.PlannerHistory, rec)

	if err != nil {
		rec.Error = err.Error()
		e.applyPlannerFailureLocked(err)
		e.persistLocked()
		return
	}

	rec.Output = decision.RawText
	rec.TaskComplete = decision.TaskComplete
	rec.Confidence = decision.Confidence
	rec.NextAction = decision.NextAction

	if decision.TaskComplete {
		e.completeTaskLocked(decision.Result)
		e.persistLocked()
		return
	}

	if err := e.queue.Enqueue(decision.NextAction); err != nil {
		e.log.Error("failed to enqueue action", "error", err)
		e.failTaskLocked("action queue overflow")
		e.persistLocked()
		return
	}
	e.sess.QueuedAction = decision.NextAction
	e.setStateLocked(models.StateWaitingForBrowser)
	e.persistLocked()
}

// installPlan stores a fresh strategic plan and announces it. A pause or
// cancel that landed during the generation call wins and the plan is
// discarded.
func (e *Engine) installPlan(plan *models.StrategicPlan, revision bool, reason string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess.ExecutionState != models.StatePlanning {
		return false
	}
	now := time.Now().UTC()
	if revision {
		plan.RevisedAt = &now
		plan.RevisionReason = reason
	}
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = now
	}
	e.sess.Plan = plan
	e.sess.Metrics.PlanRefreshes++
	e.publishLocked(events.EventPlanGenerated, events.ActorPlanner, map[string]any{
		"strategy":       plan.Strategy,
		"estimatedSteps": plan.EstimatedSteps,
		"confidence":     plan.Confidence,
	})
	return true
}

// applyPlannerFailureLocked maps an exhausted planner error to the FSM:
// user_input_required pauses, everything else fails the task.
func (e *Engine) applyPlannerFailureLocked(err error) {
	ce := retry.Categorize(err)
	if retry.Recovery(ce.Category) == retry.RecoveryPause {
		if t := e.sess.CurrentTask(); t != nil && t.Status == models.TaskRunning {
			t.Status = models.TaskPaused
		}
		e.setStateLocked(models.StatePaused)
		e.publishLocked(events.EventTaskPause, events.ActorSystem, map[string]any{
			"reason":   "user input required",
			"category": string(ce.Category),
			"error":    ce.Err.Error(),
		})
		return
	}
	e.failTaskLocked(ce.Error())
}

// The engine is the coordinator's Recorder: usage and security findings
// land in the session metrics under the lock.

// RecordLLMUsage implements agent.Recorder.
func (e *Engine) RecordLLMUsage(calls, tokens int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sess.Metrics.LLMCalls += calls
	e.sess.Metrics.LLMTokens += tokens
}

// RecordRetries implements agent.Recorder.
func (e *Engine) RecordRetries(n int) {
	if n == 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sess.Metrics.RetriedActions += n
}

// RecordSecurityThreats implements agent.Recorder.
func (e *Engine) RecordSecurityThreats(source string, threats []guardrail.Threat) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recordThreatsLocked(source, threats)
}

func (e *Engine) recordThreatsLocked(source string, threats []guardrail.Threat) {
	for _, t := range threats {
		ev := &models.SecurityEvent{
			ID:        uuid.New().String(),
			Type:      string(t.Category),
			Severity:  string(t.Severity),
			Source:    source,
			Detail:    t.Pattern,
			Step:      e.sess.StepCount,
			Timestamp: time.Now().UTC(),
		}
		e.sess.SecurityEvents = append(e.sess.SecurityEvents, ev)

		alert := events.New(e.sess.ID, events.EventSecurityAlert, events.ActorSystem, map[string]any{
			"category": ev.Type,
			"source":   source,
		})
		alert.Step = e.sess.StepCount
		alert.State = string(e.sess.ExecutionState)
		alert.Severity = ev.Severity
		e.bus.Publish(alert)
	}
	e.sess.Metrics.SecurityThreats += len(threats)
}
