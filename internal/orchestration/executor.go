package orchestration

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kandev/orchestrator-worker/internal/common/logger"
	"github.com/kandev/orchestrator-worker/internal/registry"
	"github.com/kandev/orchestrator-worker/internal/task"
)

type actionRecord struct {
	kind ActionKind
	name string
}

type completion struct {
	ok      bool
	result  *string
	failure *task.FailureDetails
}

// replayState is the precomputed view of a history slice: every action
// echo in order (for determinism checks), every completion keyed by the
// sequence id it answers, and every external event queued per name.
// Suspension gating is applied while building it, so downstream code
// never has to think about it again.
type replayState struct {
	actionKinds   []actionRecord
	completions   map[int64]completion
	pendingEvents map[string][]*string

	// clock is the Timestamp of the most recent orchestratorStarted event
	// applied so far; it becomes the orchestration clock for this call.
	clock time.Time

	suspended       bool
	buffered        []HistoryEvent
	terminated      bool
	terminatedInput *string
}

func newReplayState() *replayState {
	return &replayState{
		completions:   make(map[int64]completion),
		pendingEvents: make(map[string][]*string),
	}
}

// Result is what Execute returns for one work item: the actions the
// sidecar should carry out, and whether the orchestration has reached a
// terminal state.
type Result struct {
	Actions  []OrchestratorAction
	Complete bool
}

// Executor replays an orchestration instance's history through its
// registered orchestrator function and produces the resulting actions,
// catching any divergence between what the code does this time and what
// history says it did last time.
type Executor struct {
	registry *registry.Registry
	log      *logger.Logger
}

// NewExecutor builds an Executor backed by reg for orchestrator lookup.
func NewExecutor(reg *registry.Registry, log *logger.Logger) *Executor {
	return &Executor{registry: reg, log: log}
}

// Execute replays oldHistory (already durable) then newHistory (just
// delivered) through the orchestrator named by the executionStarted
// event, and returns the actions the run produces. The orchestration
// clock visible to the orchestrator is the Timestamp of the most recent
// orchestratorStarted event in oldHistory++newHistory; it never advances
// mid-call.
//
// Every failure that can happen once replay begins — an unrecognized
// history event, an orchestrator name nothing registered, or a
// non-determinism mismatch between history and the code's current
// behavior — is folded into a single completeOrchestration(FAILED)
// action rather than returned as a Go error, mirroring how a fatal
// exception during replay still produces a well-formed response for the
// sidecar to act on. Only the precondition below, checked before any
// replay state exists, is returned as a bare error.
func (e *Executor) Execute(instanceID string, oldHistory, newHistory []HistoryEvent) (*Result, error) {
	if len(newHistory) == 0 {
		return nil, emptyNewHistoryError()
	}

	result, err := e.replay(instanceID, oldHistory, newHistory)
	if err != nil {
		return e.orchestrationFailure(instanceID, err), nil
	}
	return result, nil
}

func (e *Executor) replay(instanceID string, oldHistory, newHistory []HistoryEvent) (*Result, error) {
	st := newReplayState()
	if err := applyHistory(oldHistory, st); err != nil {
		return nil, err
	}
	oldActionCount := int64(len(st.actionKinds))
	if err := applyHistory(newHistory, st); err != nil {
		return nil, err
	}

	if e.log != nil && e.log.Zap().Core().Enabled(zap.DebugLevel) {
		e.log.WithInstanceID(instanceID).Debug("executing orchestration",
			zap.String("new_events", summarizeEvents(newHistory)),
		)
	}

	if st.terminated {
		// The payload is already encoded on the wire; newStatusCompleteAction
		// passes it through untouched rather than re-encoding it.
		actions := []OrchestratorAction{newStatusCompleteAction(StatusTerminated, st.terminatedInput, nil)}
		return &Result{Actions: actions, Complete: true}, nil
	}

	name, input, err := startInput(oldHistory, newHistory)
	if err != nil {
		return nil, err
	}
	fn, ok := e.registry.GetOrchestrator(name)
	if !ok {
		return nil, &NotRegisteredError{Name: name}
	}

	gen := newGenerator()
	ctx := newContext(instanceID, st.clock, st, oldActionCount, gen)

	decodedInput := decode(input)
	gen.run(func() (any, error) {
		return fn(ctx, decodedInput)
	})

	select {
	case <-gen.done:
		result, err := e.finish(ctx, st, gen)
		if err != nil {
			return nil, err
		}
		if e.log != nil && e.log.Zap().Core().Enabled(zap.DebugLevel) {
			e.log.WithInstanceID(instanceID).Debug("orchestration produced actions",
				zap.String("actions", summarizeActions(result.Actions)),
			)
		}
		e.warnUnconsumedCompletions(instanceID, ctx, st, oldActionCount)
		return result, nil
	case <-gen.parked:
		close(gen.abandon)
		<-gen.done
		e.warnUnconsumedCompletions(instanceID, ctx, st, oldActionCount)
		return &Result{Actions: ctx.newActions, Complete: false}, nil
	}
}

// orchestrationFailure builds the single completeOrchestration(FAILED)
// action a replay-phase error produces. Any actions already accumulated
// by this run are discarded: once history and code have diverged, or an
// orchestrator name can't be resolved, nothing already gathered can be
// trusted as a coherent response.
func (e *Executor) orchestrationFailure(instanceID string, err error) *Result {
	if e.log != nil {
		e.log.WithInstanceID(instanceID).WithError(err).Warn("orchestration failed during replay")
	}
	return FailedResult(err)
}

// FailedResult builds the single completeOrchestration(FAILED) action
// used whenever a run cannot produce a normal result: internally, by
// Execute's own replay-phase error handling, and externally, for
// callers that hold onto an error Execute did return (today, only the
// empty-new-history precondition) and still need to report a
// well-formed result back to the sidecar instead of dropping the work
// item.
func FailedResult(err error) *Result {
	actions := []OrchestratorAction{newStatusCompleteAction(StatusFailed, nil, failureDetailsFor(err))}
	return &Result{Actions: actions, Complete: true}
}

// failureDetailsFor classifies an internal error into the FailureDetails
// shape the sidecar expects, naming the Go error type so an operator can
// tell a non-determinism mismatch from an unregistered name from a
// malformed history without reading logs.
func failureDetailsFor(err error) *task.FailureDetails {
	if fd, ok := err.(*task.FailureDetails); ok {
		return fd
	}
	errType := "Error"
	switch err.(type) {
	case *NonDeterminismError:
		errType = "NonDeterminismError"
	case *NotRegisteredError:
		errType = "OrchestratorNotRegisteredError"
	case *StateError:
		errType = "OrchestrationStateError"
	}
	return &task.FailureDetails{ErrorType: errType, ErrorMessage: err.Error()}
}

// warnUnconsumedCompletions logs a completion event (timerFired,
// taskCompleted/Failed, subOrchestrationInstanceCompleted/Failed) that
// named a sequence id no CreateTimer/CallActivity/CallSubOrchestrator
// call ever produced. Per the source this worker generalizes from, such
// an event is unexpected — possibly a duplicate redelivery — and is
// warned about, not treated as fatal, and only once it falls in the live
// phase (ids below oldActionCount were already warned about, if at all,
// by the Execute call that first replayed them).
func (e *Executor) warnUnconsumedCompletions(instanceID string, ctx *Context, st *replayState, oldActionCount int64) {
	if e.log == nil {
		return
	}
	log := e.log.WithInstanceID(instanceID)
	for id := range st.completions {
		if id < oldActionCount {
			continue
		}
		if _, ok := ctx.pendingTasks[id]; !ok {
			log.Warn("received a completion for an id with no pending action", zap.Int64("id", id))
		}
	}
}

func (e *Executor) finish(ctx *Context, st *replayState, gen *generator) (*Result, error) {
	if ctx.sequenceNumber < int64(len(st.actionKinds)) {
		missing := st.actionKinds[ctx.sequenceNumber]
		return nil, missingActionError(ctx.sequenceNumber, methodNameForKind(missing.kind))
	}

	if gen.err != nil {
		if nd, ok := gen.err.(*NonDeterminismError); ok {
			return nil, nd
		}
		failure, ok := gen.err.(*task.FailureDetails)
		if !ok {
			failure = &task.FailureDetails{ErrorType: "Error", ErrorMessage: gen.err.Error()}
		}
		// A failed orchestration discards any actions it had already
		// queued: the FAILED completion is the only action reported.
		actions := []OrchestratorAction{newCompleteAction(nil, failure)}
		return &Result{Actions: actions, Complete: true}, nil
	}

	actions := append(ctx.newActions, newCompleteAction(encode(gen.result), nil))
	return &Result{Actions: actions, Complete: true}, nil
}

func startInput(oldHistory, newHistory []HistoryEvent) (name string, input *string, err error) {
	for _, events := range [][]HistoryEvent{oldHistory, newHistory} {
		for _, ev := range events {
			if ev.Kind == EventExecutionStarted && ev.ExecutionStarted != nil {
				return ev.ExecutionStarted.Name, ev.ExecutionStarted.Input, nil
			}
		}
	}
	return "", nil, fmt.Errorf("history has no executionStarted event")
}

func applyHistory(events []HistoryEvent, st *replayState) error {
	for _, ev := range events {
		switch ev.Kind {
		case EventExecutionSuspended:
			st.suspended = true
			continue
		case EventExecutionResumed:
			st.suspended = false
			buffered := st.buffered
			st.buffered = nil
			for _, b := range buffered {
				if err := applyOne(b, st); err != nil {
					return err
				}
			}
			continue
		case EventExecutionTerminated:
			st.terminated = true
			if ev.ExecutionTerminated != nil {
				st.terminatedInput = ev.ExecutionTerminated.Input
			}
			continue
		}
		if st.suspended && isSuspendable(ev.Kind) {
			st.buffered = append(st.buffered, ev)
			continue
		}
		if err := applyOne(ev, st); err != nil {
			return err
		}
	}
	return nil
}

func applyOne(ev HistoryEvent, st *replayState) error {
	switch ev.Kind {
	case EventOrchestratorStarted:
		st.clock = ev.Timestamp
	case EventExecutionStarted:
		// handled separately by startInput; nothing to record here.
	case EventTimerCreated:
		st.actionKinds = append(st.actionKinds, actionRecord{kind: ActionCreateTimer})
	case EventTaskScheduled:
		name := ""
		if ev.TaskScheduled != nil {
			name = ev.TaskScheduled.Name
		}
		st.actionKinds = append(st.actionKinds, actionRecord{kind: ActionScheduleTask, name: name})
	case EventSubOrchestrationInstanceCreated:
		name := ""
		if ev.SubOrchestrationInstanceCreated != nil {
			name = ev.SubOrchestrationInstanceCreated.Name
		}
		st.actionKinds = append(st.actionKinds, actionRecord{kind: ActionCreateSubOrchestration, name: name})
	case EventTimerFired:
		if ev.TimerFired != nil {
			st.completions[ev.TimerFired.TimerID] = completion{ok: true}
		}
	case EventTaskCompleted:
		if ev.TaskCompleted != nil {
			st.completions[ev.TaskCompleted.ScheduledID] = completion{ok: true, result: ev.TaskCompleted.Result}
		}
	case EventTaskFailed:
		if ev.TaskFailed != nil {
			st.completions[ev.TaskFailed.ScheduledID] = completion{ok: false, failure: ev.TaskFailed.Failure}
		}
	case EventSubOrchestrationInstanceCompleted:
		if ev.SubOrchestrationResult != nil {
			st.completions[ev.SubOrchestrationResult.ScheduledID] = completion{ok: true, result: ev.SubOrchestrationResult.Result}
		}
	case EventSubOrchestrationInstanceFailed:
		if ev.SubOrchestrationResult != nil {
			st.completions[ev.SubOrchestrationResult.ScheduledID] = completion{ok: false, failure: ev.SubOrchestrationResult.Failure}
		}
	case EventEventRaised:
		if ev.EventRaised != nil {
			key := strings.ToLower(ev.EventRaised.Name)
			st.pendingEvents[key] = append(st.pendingEvents[key], ev.EventRaised.Input)
		}
	default:
		return unknownEventError(ev.Kind)
	}
	return nil
}

// summarizeEvents mirrors the original worker's debug summary: a bare
// kind name for a single event, or kind=count pairs for several.
func summarizeEvents(events []HistoryEvent) string {
	counts := make(map[HistoryEventKind]int)
	order := make([]HistoryEventKind, 0, len(events))
	for _, ev := range events {
		if _, seen := counts[ev.Kind]; !seen {
			order = append(order, ev.Kind)
		}
		counts[ev.Kind]++
	}
	return summarizeCounts(order, func(k HistoryEventKind) string { return string(k) }, counts)
}

func summarizeActions(actions []OrchestratorAction) string {
	counts := make(map[ActionKind]int)
	order := make([]ActionKind, 0, len(actions))
	for _, a := range actions {
		if _, seen := counts[a.Kind]; !seen {
			order = append(order, a.Kind)
		}
		counts[a.Kind]++
	}
	return summarizeCounts(order, func(k ActionKind) string { return string(k) }, counts)
}

func summarizeCounts[K comparable](order []K, name func(K) string, counts map[K]int) string {
	if len(order) == 0 {
		return "[]"
	}
	if len(order) == 1 && counts[order[0]] == 1 {
		return "[" + name(order[0]) + "]"
	}
	parts := make([]string, 0, len(order))
	for _, k := range order {
		parts = append(parts, fmt.Sprintf("%s=%d", name(k), counts[k]))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
