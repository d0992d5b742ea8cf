package orchestration

import (
	"time"

	"github.com/kandev/orchestrator-worker/internal/task"
)

// HistoryEventKind discriminates the payload carried by a HistoryEvent.
type HistoryEventKind string

const (
	// EventOrchestratorStarted is the sole clock source: its Timestamp
	// becomes Context.CurrentUtcDateTime for the remainder of the call.
	EventOrchestratorStarted               HistoryEventKind = "orchestratorStarted"
	EventExecutionStarted                  HistoryEventKind = "executionStarted"
	EventTimerCreated                      HistoryEventKind = "timerCreated"
	EventTimerFired                        HistoryEventKind = "timerFired"
	EventTaskScheduled                     HistoryEventKind = "taskScheduled"
	EventTaskCompleted                     HistoryEventKind = "taskCompleted"
	EventTaskFailed                        HistoryEventKind = "taskFailed"
	EventSubOrchestrationInstanceCreated   HistoryEventKind = "subOrchestrationInstanceCreated"
	EventSubOrchestrationInstanceCompleted HistoryEventKind = "subOrchestrationInstanceCompleted"
	EventSubOrchestrationInstanceFailed    HistoryEventKind = "subOrchestrationInstanceFailed"
	EventEventRaised                       HistoryEventKind = "eventRaised"
	EventExecutionSuspended                HistoryEventKind = "executionSuspended"
	EventExecutionResumed                  HistoryEventKind = "executionResumed"
	EventExecutionTerminated               HistoryEventKind = "executionTerminated"
)

// nonSuspendable mirrors the original worker's _is_suspendable exclusion
// list: these two kinds always apply immediately, even while suspended,
// because buffering them would make suspend/resume and terminate
// undiscoverable by the very mechanism meant to unblock them.
var nonSuspendable = map[HistoryEventKind]bool{
	EventExecutionResumed:    true,
	EventExecutionTerminated: true,
}

func isSuspendable(kind HistoryEventKind) bool {
	return !nonSuspendable[kind]
}

// HistoryEvent is one entry of the history an Executor replays. Exactly
// one payload field is set, matching Kind.
type HistoryEvent struct {
	EventID   int64
	Kind      HistoryEventKind
	Timestamp time.Time

	ExecutionStarted                *ExecutionStartedEvent
	TaskScheduled                   *TaskScheduledEvent
	SubOrchestrationInstanceCreated *SubOrchestrationInstanceCreatedEvent
	TimerFired                      *TimerFiredEvent
	TaskCompleted                   *TaskCompletedEvent
	TaskFailed                      *TaskFailedEvent
	SubOrchestrationResult          *SubOrchestrationResultEvent
	EventRaised                     *EventRaisedEvent
	ExecutionTerminated             *ExecutionTerminatedEvent
}

// TaskScheduledEvent echoes the activity name a scheduleTask action
// recorded, so replay can detect a call to a different activity at the
// same sequence position.
type TaskScheduledEvent struct {
	Name string
}

// SubOrchestrationInstanceCreatedEvent echoes the child orchestrator name
// a createSubOrchestration action recorded.
type SubOrchestrationInstanceCreatedEvent struct {
	Name string
}

// ExecutionStartedEvent carries the orchestrator name and encoded input
// that began the orchestration.
type ExecutionStartedEvent struct {
	Name  string
	Input *string
}

// TimerFiredEvent correlates back to the TimerID a createTimer action
// produced.
type TimerFiredEvent struct {
	TimerID int64
}

// TaskCompletedEvent correlates back to the ScheduledID a scheduleTask
// action produced.
type TaskCompletedEvent struct {
	ScheduledID int64
	Result      *string
}

// TaskFailedEvent correlates back to the ScheduledID a scheduleTask
// action produced.
type TaskFailedEvent struct {
	ScheduledID int64
	Failure     *task.FailureDetails
}

// SubOrchestrationResultEvent covers both
// subOrchestrationInstanceCompleted and subOrchestrationInstanceFailed;
// Kind on the enclosing HistoryEvent tells them apart. Exactly one of
// Result or Failure is set.
type SubOrchestrationResultEvent struct {
	ScheduledID int64
	Result      *string
	Failure     *task.FailureDetails
}

// EventRaisedEvent carries an externally raised event. Name matching
// against WaitForExternalEvent is case-insensitive.
type EventRaisedEvent struct {
	Name  string
	Input *string
}

// ExecutionTerminatedEvent carries the encoded input the terminate call
// supplied, if any.
type ExecutionTerminatedEvent struct {
	Input *string
}
