// Package queue holds pending browser actions for a session. The planner
// enqueues, the browser client pops over HTTP polling, and an action stays
// in-flight until its result is reported.
package queue

import (
	"errors"
	"sync"

	"github.com/navimind/navimind/pkg/models"
)

// ErrFull is returned when an enqueue would exceed the queue bound.
var ErrFull = errors.New("action queue full")

// ActionQueue is a bounded FIFO with an in-flight slot. Safe for concurrent
// use.
type ActionQueue struct {
	mu       sync.Mutex
	maxDepth int
	pending  []*models.Action
	inFlight *models.Action
}

// New builds a queue bounded at maxDepth pending actions.
func New(maxDepth int) *ActionQueue {
	return &ActionQueue{maxDepth: maxDepth}
}

// Enqueue appends an action, failing when the bound is reached.
func (q *ActionQueue) Enqueue(a *models.Action) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) >= q.maxDepth {
		return ErrFull
	}
	q.pending = append(q.pending, a)
	return nil
}

// Pop moves the head action into the in-flight slot and returns it. The
// previous in-flight action, if any, is returned again instead: a result
// must land before the next action ships.
func (q *ActionQueue) Pop() *models.Action {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.inFlight != nil {
		return q.inFlight
	}
	if len(q.pending) == 0 {
		return nil
	}
	q.inFlight = q.pending[0]
	q.pending = q.pending[1:]
	return q.inFlight
}

// Peek returns the head pending action without dequeuing it.
func (q *ActionQueue) Peek() *models.Action {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	return q.pending[0]
}

// InFlight returns the action awaiting a result, or nil.
func (q *ActionQueue) InFlight() *models.Action {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inFlight
}

// CompleteInFlight clears the in-flight slot if id matches it and reports
// whether it did.
func (q *ActionQueue) CompleteInFlight(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.inFlight == nil || q.inFlight.ID != id {
		return false
	}
	q.inFlight = nil
	return true
}

// Restore seeds the queue from a persisted session snapshot after a
// process restart: the previously in-flight action reoccupies its slot and
// the queued action returns to the head.
func (q *ActionQueue) Restore(queued, inFlight *models.Action) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.inFlight = inFlight
	if queued != nil {
		q.pending = append([]*models.Action{queued}, q.pending...)
	}
}

// Requeue puts the in-flight action back at the head for a retry.
func (q *ActionQueue) Requeue() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.inFlight == nil {
		return false
	}
	q.pending = append([]*models.Action{q.inFlight}, q.pending...)
	q.inFlight = nil
	return true
}

// Drain discards all pending actions and the in-flight slot, returning how
// many actions were dropped.
func (q *ActionQueue) Drain() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.pending)
	if q.inFlight != nil {
		n++
		q.inFlight = nil
	}
	q.pending = nil
	return n
}

// Len counts pending actions, excluding the in-flight one.
func (q *ActionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
