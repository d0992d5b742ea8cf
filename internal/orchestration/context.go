package orchestration

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kandev/orchestrator-worker/internal/task"
)

// Context drives one Execute call's worth of orchestrator code. It
// implements registry.Context structurally — registry never imports this
// package, avoiding a cycle, since orchestrator functions are stored as
// registry.OrchestratorFn and only ever invoked with a Context value.
//
// A Context is rebuilt from scratch on every Execute call; nothing about
// it survives past one call except the sequence ids implied by the
// history it replayed.
type Context struct {
	instanceID string
	now        time.Time

	st             *replayState
	oldActionCount int64

	sequenceNumber int64
	pendingTasks   map[int64]*task.Task
	newActions     []OrchestratorAction
	eventCursor    map[string]int

	gen *generator
}

func newContext(instanceID string, now time.Time, st *replayState, oldActionCount int64, gen *generator) *Context {
	return &Context{
		instanceID:     instanceID,
		now:            now,
		st:             st,
		oldActionCount: oldActionCount,
		pendingTasks:   make(map[int64]*task.Task),
		eventCursor:    make(map[string]int),
		gen:            gen,
	}
}

// InstanceID returns the orchestration instance this Context belongs to.
func (c *Context) InstanceID() string { return c.instanceID }

// CurrentUtcDateTime returns the orchestration clock. It does not advance
// during a single Execute call; a later call observes a later value.
func (c *Context) CurrentUtcDateTime() time.Time { return c.now }

// IsReplaying reports whether the action about to be taken falls within
// already-durable history rather than past its frontier. Orchestrator
// code must not branch on this for anything that affects which actions
// it takes — only for suppressing side effects like logging.
func (c *Context) IsReplaying() bool { return c.sequenceNumber < c.oldActionCount }

func (c *Context) nextID() int64 {
	id := c.sequenceNumber
	c.sequenceNumber++
	return id
}

func encode(v any) *string {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		s := fmt.Sprintf("%v", v)
		return &s
	}
	s := string(b)
	return &s
}

func decode(s *string) any {
	if s == nil {
		return nil
	}
	var v any
	_ = json.Unmarshal([]byte(*s), &v)
	return v
}

// checkDeterminism compares the action orchestrator code just took
// against the history event recorded at the same sequence id, for ids
// that fall within replayed history (old or new). It panics with a
// NonDeterminismError on mismatch; the generator's recover captures it,
// and Execute reports it as a single completeOrchestration(FAILED) action.
func (c *Context) checkDeterminism(id int64, kind ActionKind, name, methodName string) {
	if id >= int64(len(c.st.actionKinds)) {
		return
	}
	recorded := c.st.actionKinds[id]
	if recorded.kind != kind {
		panic(wrongActionTypeError(id, methodNameForKind(recorded.kind), kind))
	}
	if name != "" && recorded.name != name {
		panic(wrongActionNameError(id, methodName, recorded.name, name))
	}
}

// registerAction appends the action to the list Execute returns, but
// only when it's genuinely new — i.e. beyond every action echoed
// anywhere in history, old or new. An action already echoed in newHistory
// was already handed to the sidecar by a previous Execute call and must
// not be re-emitted.
func (c *Context) registerAction(id int64, action OrchestratorAction) {
	if id >= int64(len(c.st.actionKinds)) {
		c.newActions = append(c.newActions, action)
	}
}

func (c *Context) settleIfCompleted(id int64, t *task.Task) {
	comp, ok := c.st.completions[id]
	if !ok {
		return
	}
	if comp.ok {
		t.Complete(decode(comp.result))
		return
	}
	failure := comp.failure
	if failure == nil {
		failure = &task.FailureDetails{ErrorType: "Error", ErrorMessage: "activity failed"}
	}
	t.Fail(failure.ErrorMessage, failure)
}

// CreateTimer schedules a durable wakeup at fireAt.
func (c *Context) CreateTimer(fireAt time.Time) *task.Task {
	id := c.nextID()
	c.checkDeterminism(id, ActionCreateTimer, "", "CreateTimer")
	c.registerAction(id, newTimerAction(id, fireAt))
	t := task.New()
	c.pendingTasks[id] = t
	c.settleIfCompleted(id, t)
	return t
}

// CreateTimerAfter schedules a durable wakeup delay from the
// orchestration clock.
func (c *Context) CreateTimerAfter(delay time.Duration) *task.Task {
	return c.CreateTimer(c.now.Add(delay))
}

// CallActivity schedules an activity invocation.
func (c *Context) CallActivity(name string, input any) *task.Task {
	id := c.nextID()
	c.checkDeterminism(id, ActionScheduleTask, name, "CallActivity")
	c.registerAction(id, newScheduleTaskAction(id, name, encode(input)))
	t := task.New()
	c.pendingTasks[id] = t
	c.settleIfCompleted(id, t)
	return t
}

// CallSubOrchestrator starts a child orchestration. When instanceID is
// empty one is derived deterministically from the parent instance and
// this call's sequence id, so replay reconstructs the same child id
// without relying on randomness.
func (c *Context) CallSubOrchestrator(name string, input any, instanceID string) *task.Task {
	id := c.nextID()
	c.checkDeterminism(id, ActionCreateSubOrchestration, name, "CallSubOrchestrator")
	if instanceID == "" {
		instanceID = fmt.Sprintf("%s:%04x", c.instanceID, id)
	}
	c.registerAction(id, newSubOrchestrationAction(id, name, instanceID, encode(input)))
	t := task.New()
	c.pendingTasks[id] = t
	c.settleIfCompleted(id, t)
	return t
}

// WaitForExternalEvent returns a Task that completes with the next
// buffered occurrence of name, consumed in FIFO order. Matching is
// case-insensitive. The task stays pending until a matching event has
// been raised; it carries no sequence id of its own since it isn't an
// action the sidecar needs to act on.
func (c *Context) WaitForExternalEvent(name string) *task.Task {
	t := task.New()
	key := strings.ToLower(name)
	queue := c.st.pendingEvents[key]
	idx := c.eventCursor[key]
	if idx < len(queue) {
		c.eventCursor[key] = idx + 1
		t.Complete(decode(queue[idx]))
	}
	return t
}

// Await blocks until t settles, parking the orchestrator coroutine if
// it's still pending, and returns its result or the error it failed
// with.
func (c *Context) Await(t *task.Task) (any, error) {
	if t.IsPending() {
		c.gen.park(t)
	}
	if t.IsFailed() {
		return nil, t.Exception()
	}
	return t.Result(), nil
}
