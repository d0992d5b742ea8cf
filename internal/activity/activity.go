// Package activity runs a single activity invocation to completion. Unlike
// an orchestrator, an activity has no history to replay and no
// determinism constraint: it runs once, synchronously, and its result (or
// failure) is reported back as-is.
package activity

import (
	"encoding/json"
	"fmt"

	"github.com/kandev/orchestrator-worker/internal/registry"
	"github.com/kandev/orchestrator-worker/internal/task"
)

// Context is the concrete implementation of registry.ActivityContext
// passed to every activity invocation.
type Context struct {
	orchestrationID string
	taskID          int64
}

func newContext(orchestrationID string, taskID int64) *Context {
	return &Context{orchestrationID: orchestrationID, taskID: taskID}
}

// OrchestrationID returns the instance id of the orchestration that
// scheduled this activity.
func (c *Context) OrchestrationID() string { return c.orchestrationID }

// TaskID returns the sequence id the scheduling orchestrator assigned to
// this activity call.
func (c *Context) TaskID() int64 { return c.taskID }

// NotRegisteredError is raised when the sidecar dispatches work for an
// activity name nothing in the registry answers to.
type NotRegisteredError struct {
	Name string
}

func (e *NotRegisteredError) Error() string {
	return fmt.Sprintf("a %q activity was not registered", e.Name)
}

// Executor looks up and runs a single activity invocation.
type Executor struct {
	registry *registry.Registry
}

// NewExecutor builds an Executor backed by reg for activity lookup.
func NewExecutor(reg *registry.Registry) *Executor {
	return &Executor{registry: reg}
}

// Execute runs the named activity with the given encoded input and
// returns its encoded output. A failure returned by the activity body, or
// a panic recovered from it, comes back as a *task.FailureDetails error
// rather than as a Go error describing an executor-level problem — those
// are returned directly so the caller can tell "activity failed" apart
// from "activity couldn't be dispatched at all".
func (e *Executor) Execute(orchestrationID, name string, taskID int64, encodedInput *string) (*string, error) {
	fn, ok := e.registry.GetActivity(name)
	if !ok {
		return nil, &NotRegisteredError{Name: name}
	}

	var input any
	if encodedInput != nil {
		if err := json.Unmarshal([]byte(*encodedInput), &input); err != nil {
			return nil, fmt.Errorf("decoding activity input: %w", err)
		}
	}

	ctx := newContext(orchestrationID, taskID)
	result, failure := e.run(ctx, fn, input)
	if failure != nil {
		return nil, failure
	}

	if result == nil {
		return nil, nil
	}
	b, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encoding activity output: %w", err)
	}
	s := string(b)
	return &s, nil
}

// run invokes fn, converting a panic into a FailureDetails the same way a
// returned error would be, so a buggy activity body can't crash the
// worker process.
func (e *Executor) run(ctx registry.ActivityContext, fn registry.ActivityFn, input any) (result any, failure *task.FailureDetails) {
	defer func() {
		if r := recover(); r != nil {
			failure = &task.FailureDetails{ErrorType: "Error", ErrorMessage: fmt.Sprintf("%v", r)}
		}
	}()

	v, err := fn(ctx, input)
	if err != nil {
		if fd, ok := err.(*task.FailureDetails); ok {
			return nil, fd
		}
		return nil, &task.FailureDetails{ErrorType: "Error", ErrorMessage: err.Error()}
	}
	return v, nil
}
