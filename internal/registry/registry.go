// Package registry holds the name -> function lookup tables the worker
// consults when dispatching orchestrator and activity work items.
package registry

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/kandev/orchestrator-worker/internal/task"
)

// Context is the orchestrator-facing API. It is declared here, in the
// package that stores OrchestratorFn values, rather than in
// internal/orchestration, so that registry has no dependency on the
// concrete context implementation; internal/orchestration.Context
// implements it.
type Context interface {
	InstanceID() string
	CurrentUtcDateTime() time.Time
	IsReplaying() bool
	CreateTimer(fireAt time.Time) *task.Task
	CreateTimerAfter(delay time.Duration) *task.Task
	CallActivity(name string, input any) *task.Task
	CallSubOrchestrator(name string, input any, instanceID string) *task.Task
	WaitForExternalEvent(name string) *task.Task
	Await(t *task.Task) (any, error)
}

// ActivityContext is the activity-facing API. internal/activity.Context
// implements it.
type ActivityContext interface {
	OrchestrationID() string
	TaskID() int64
}

// OrchestratorFn is a user-supplied orchestrator body. Returning a value
// directly (instead of calling ctx.Await) completes the orchestration
// without scheduling any further work.
type OrchestratorFn func(ctx Context, input any) (any, error)

// ActivityFn is a user-supplied activity body.
type ActivityFn func(ctx ActivityContext, input any) (any, error)

// Registry is a thread-safe name -> function lookup table. Registration is
// only valid before the worker starts (enforced by internal/worker); reads
// after start require no external synchronization on the caller's part
// beyond what the mutex already gives.
type Registry struct {
	mu            sync.RWMutex
	orchestrators map[string]OrchestratorFn
	activities    map[string]ActivityFn
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		orchestrators: make(map[string]OrchestratorFn),
		activities:    make(map[string]ActivityFn),
	}
}

// AddNamedOrchestrator registers fn under an explicit name.
func (r *Registry) AddNamedOrchestrator(name string, fn OrchestratorFn) error {
	if fn == nil {
		return fmt.Errorf("an orchestrator function argument is required")
	}
	if name == "" {
		return fmt.Errorf("a non-empty orchestrator name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orchestrators[name]; exists {
		return fmt.Errorf("a %q orchestrator already exists", name)
	}
	r.orchestrators[name] = fn
	return nil
}

// AddOrchestrator registers fn under a name derived from its identity,
// mirroring how a function declared at package scope reads on the page:
// the package path is stripped and any closure suffix the runtime appends
// is dropped. Anonymous functions (closures, func literals assigned to a
// variable) don't have a stable enough name for this and must be
// registered with AddNamedOrchestrator instead.
func (r *Registry) AddOrchestrator(fn OrchestratorFn) (string, error) {
	name, err := nameOf(fn)
	if err != nil {
		return "", err
	}
	if err := r.AddNamedOrchestrator(name, fn); err != nil {
		return "", err
	}
	return name, nil
}

// GetOrchestrator looks up an orchestrator by name.
func (r *Registry) GetOrchestrator(name string) (OrchestratorFn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.orchestrators[name]
	return fn, ok
}

// AddNamedActivity registers fn under an explicit name.
func (r *Registry) AddNamedActivity(name string, fn ActivityFn) error {
	if fn == nil {
		return fmt.Errorf("an activity function argument is required")
	}
	if name == "" {
		return fmt.Errorf("a non-empty activity name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.activities[name]; exists {
		return fmt.Errorf("a %q activity already exists", name)
	}
	r.activities[name] = fn
	return nil
}

// AddActivity registers fn under a name derived from its identity. See
// AddOrchestrator for the naming rule and its limits.
func (r *Registry) AddActivity(fn ActivityFn) (string, error) {
	name, err := nameOf(fn)
	if err != nil {
		return "", err
	}
	if err := r.AddNamedActivity(name, fn); err != nil {
		return "", err
	}
	return name, nil
}

// GetActivity looks up an activity by name.
func (r *Registry) GetActivity(name string) (ActivityFn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.activities[name]
	return fn, ok
}

// nameOf derives a registration name from a function value's runtime
// identity: github.com/some/pkg.DoThing -> DoThing.
func nameOf(fn any) (string, error) {
	v := reflect.ValueOf(fn)
	if v.IsNil() {
		return "", fmt.Errorf("a function argument is required")
	}
	full := runtime.FuncForPC(v.Pointer()).Name()
	full = strings.TrimSuffix(full, "-fm")
	if idx := strings.LastIndex(full, "."); idx >= 0 {
		full = full[idx+1:]
	}
	if full == "" || strings.Contains(full, "func") {
		return "", fmt.Errorf("function has no stable name; use the named registration instead")
	}
	return full, nil
}
