package orchestration

import (
	"time"

	"github.com/kandev/orchestrator-worker/internal/task"
)

// ActionKind discriminates the payload carried by an OrchestratorAction.
type ActionKind string

const (
	ActionCreateTimer            ActionKind = "createTimer"
	ActionScheduleTask           ActionKind = "scheduleTask"
	ActionCreateSubOrchestration ActionKind = "createSubOrchestration"
	ActionCompleteOrchestration  ActionKind = "completeOrchestration"
)

// OrchestrationStatus is the terminal status an orchestration completes
// with, carried on a completeOrchestration action.
type OrchestrationStatus string

const (
	StatusRunning        OrchestrationStatus = "RUNNING"
	StatusCompleted      OrchestrationStatus = "COMPLETED"
	StatusFailed         OrchestrationStatus = "FAILED"
	StatusTerminated     OrchestrationStatus = "TERMINATED"
	StatusContinuedAsNew OrchestrationStatus = "CONTINUED_AS_NEW"
)

// OrchestratorAction is one entry of the action list an Executor run
// returns to the sidecar. Exactly one of the payload fields is set,
// matching Kind. For createTimer, scheduleTask and createSubOrchestration
// actions, ID is the sequence number assigned when the action was
// recorded, used by the sidecar to correlate the eventual completion
// event back to the pending task that produced it. completeOrchestration
// actions always carry ID -1, not a sequence number.
type OrchestratorAction struct {
	ID   int64
	Kind ActionKind

	CreateTimer            *CreateTimerAction
	ScheduleTask           *ScheduleTaskAction
	CreateSubOrchestration *CreateSubOrchestrationAction
	CompleteOrchestration  *CompleteOrchestrationAction
}

// CreateTimerAction schedules a durable wakeup at FireAt.
type CreateTimerAction struct {
	FireAt time.Time
}

// ScheduleTaskAction schedules an activity invocation.
type ScheduleTaskAction struct {
	Name  string
	Input *string
}

// CreateSubOrchestrationAction starts a child orchestration. InstanceID is
// the caller's explicit id, or else one derived deterministically by the
// context, never random.
type CreateSubOrchestrationAction struct {
	Name       string
	InstanceID string
	Input      *string
}

// CompleteOrchestrationAction terminates the orchestration. Exactly one of
// Result or FailureDetails is meaningful, per Status.
type CompleteOrchestrationAction struct {
	Status         OrchestrationStatus
	Result         *string
	FailureDetails *task.FailureDetails
}

func newTimerAction(id int64, fireAt time.Time) OrchestratorAction {
	return OrchestratorAction{ID: id, Kind: ActionCreateTimer, CreateTimer: &CreateTimerAction{FireAt: fireAt}}
}

func newScheduleTaskAction(id int64, name string, input *string) OrchestratorAction {
	return OrchestratorAction{ID: id, Kind: ActionScheduleTask, ScheduleTask: &ScheduleTaskAction{Name: name, Input: input}}
}

func newSubOrchestrationAction(id int64, name, instanceID string, input *string) OrchestratorAction {
	return OrchestratorAction{
		ID:   id,
		Kind: ActionCreateSubOrchestration,
		CreateSubOrchestration: &CreateSubOrchestrationAction{
			Name:       name,
			InstanceID: instanceID,
			Input:      input,
		},
	}
}

// methodNameForKind maps an action kind back to the Context method that
// produces it, so a non-determinism message can name what history
// actually recorded instead of only what the current call is trying to
// do.
func methodNameForKind(kind ActionKind) string {
	switch kind {
	case ActionCreateTimer:
		return "CreateTimer"
	case ActionScheduleTask:
		return "CallActivity"
	case ActionCreateSubOrchestration:
		return "CallSubOrchestrator"
	default:
		return string(kind)
	}
}

func newCompleteAction(result *string, failure *task.FailureDetails) OrchestratorAction {
	status := StatusCompleted
	if failure != nil {
		status = StatusFailed
	}
	return newStatusCompleteAction(status, result, failure)
}

// newStatusCompleteAction builds a completeOrchestration action with an
// explicit status, for terminal states newCompleteAction's COMPLETED/FAILED
// inference can't express (e.g. TERMINATED, whose result is already
// encoded and must not be run through encode() again).
func newStatusCompleteAction(status OrchestrationStatus, result *string, failure *task.FailureDetails) OrchestratorAction {
	return OrchestratorAction{
		ID:   -1,
		Kind: ActionCompleteOrchestration,
		CompleteOrchestration: &CompleteOrchestrationAction{
			Status:         status,
			Result:         result,
			FailureDetails: failure,
		},
	}
}
