// Package task implements the completable one-shot future yielded by
// orchestrator code, plus the WhenAll/WhenAny composites built on top of it.
package task

import (
	"fmt"
	"sync"
)

type state int

const (
	statePending state = iota
	stateComplete
	stateFailed
)

// FailureDetails carries the structured description of a failure, mirroring
// what the sidecar expects on the wire: an error type, a message, and an
// optional stack trace captured at the point of failure.
type FailureDetails struct {
	ErrorType    string `json:"errorType"`
	ErrorMessage string `json:"errorMessage"`
	StackTrace   string `json:"stackTrace,omitempty"`
}

// Error implements the error interface so a Task's failure can be returned
// and compared with errors.As/errors.Is by orchestrator code.
func (f *FailureDetails) Error() string {
	if f == nil {
		return ""
	}
	return f.ErrorMessage
}

// Task is a single-settlement future. It transitions at most once from
// pending to either complete or failed; the transition is monotonic. Tasks
// are owned exclusively by the orchestration context that created them —
// user code only ever reads their settled value or exception.
type Task struct {
	mu        sync.Mutex
	state     state
	result    any
	failure   *FailureDetails
	observers []func()
}

// OnSettle registers a callback invoked exactly once, synchronously, when
// the task transitions out of pending. If the task has already settled the
// callback runs immediately. Used by WhenAll/WhenAny to react to children
// that settle after the composite was constructed, and by the
// orchestration package to wake a parked coroutine.
func (t *Task) OnSettle(fn func()) {
	t.mu.Lock()
	if t.state == statePending {
		t.observers = append(t.observers, fn)
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()
	fn()
}

// New returns a fresh, pending Task.
func New() *Task {
	return &Task{state: statePending}
}

// Complete settles the task with a result. A second call is a no-op: once
// settled a Task never changes state again.
func (t *Task) Complete(result any) {
	t.mu.Lock()
	if t.state != statePending {
		t.mu.Unlock()
		return
	}
	t.state = stateComplete
	t.result = result
	observers := t.observers
	t.observers = nil
	t.mu.Unlock()

	for _, fn := range observers {
		fn()
	}
}

// Fail settles the task with a failure. A second call is a no-op.
func (t *Task) Fail(message string, failure *FailureDetails) {
	t.mu.Lock()
	if t.state != statePending {
		t.mu.Unlock()
		return
	}
	if failure == nil {
		failure = &FailureDetails{ErrorType: "Error", ErrorMessage: message}
	}
	t.state = stateFailed
	t.failure = failure
	observers := t.observers
	t.observers = nil
	t.mu.Unlock()

	for _, fn := range observers {
		fn()
	}
}

// IsComplete reports whether the task settled successfully.
func (t *Task) IsComplete() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == stateComplete
}

// IsFailed reports whether the task settled with a failure.
func (t *Task) IsFailed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == stateFailed
}

// IsPending reports whether the task has not yet settled.
func (t *Task) IsPending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == statePending
}

// Result returns the settled value. Calling it on a pending or failed task
// returns nil; callers must check IsComplete first.
func (t *Task) Result() any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}

// Failure returns the settled failure. Calling it on a task that
// isn't failed returns nil.
func (t *Task) Failure() *FailureDetails {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failure
}

// Exception returns the failure as an error, suitable for injecting into
// the suspended orchestrator computation at its yield point.
func (t *Task) Exception() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failure == nil {
		return nil
	}
	return t.failure
}

// WhenAll returns a Task that completes with the slice of all children's
// results once every child has completed, or fails with the first child
// failure observed. It is not assigned a sequence id of its own — composites
// never appear in the action stream, they only observe existing tasks.
func WhenAll(children ...*Task) *Task {
	composite := New()
	if len(children) == 0 {
		composite.Complete([]any{})
		return composite
	}

	var mu sync.Mutex
	remaining := len(children)
	results := make([]any, len(children))

	for i, child := range children {
		i, child := i, child
		child.OnSettle(func() {
			mu.Lock()
			defer mu.Unlock()
			if composite.IsComplete() || composite.IsFailed() {
				return
			}
			if child.IsFailed() {
				composite.Fail(fmt.Sprintf("a child task failed: %s", child.Failure().ErrorMessage), child.Failure())
				return
			}
			results[i] = child.Result()
			remaining--
			if remaining == 0 {
				composite.Complete(results)
			}
		})
	}
	return composite
}

// WhenAny returns a Task that completes or fails as soon as the first child
// does, carrying that child's outcome.
func WhenAny(children ...*Task) *Task {
	composite := New()
	var mu sync.Mutex

	for _, child := range children {
		child := child
		child.OnSettle(func() {
			mu.Lock()
			defer mu.Unlock()
			if composite.IsComplete() || composite.IsFailed() {
				return
			}
			if child.IsFailed() {
				composite.Fail(child.Failure().ErrorMessage, child.Failure())
				return
			}
			composite.Complete(child.Result())
		})
	}
	return composite
}
