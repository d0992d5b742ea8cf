package sidecar

import (
	"github.com/kandev/orchestrator-worker/internal/orchestration"
	"github.com/kandev/orchestrator-worker/internal/task"
)

func fromWireFailure(f *FailureDetails) *task.FailureDetails {
	if f == nil {
		return nil
	}
	return &task.FailureDetails{ErrorType: f.ErrorType, ErrorMessage: f.ErrorMessage, StackTrace: f.StackTrace}
}

func toWireFailure(f *task.FailureDetails) *FailureDetails {
	if f == nil {
		return nil
	}
	return &FailureDetails{ErrorType: f.ErrorType, ErrorMessage: f.ErrorMessage, StackTrace: f.StackTrace}
}

// toHistoryEvent converts one wire HistoryEvent into its domain form.
func toHistoryEvent(w HistoryEvent) orchestration.HistoryEvent {
	ev := orchestration.HistoryEvent{
		EventID:   w.EventID,
		Kind:      orchestration.HistoryEventKind(w.Kind),
		Timestamp: w.Timestamp,
	}
	switch ev.Kind {
	case orchestration.EventExecutionStarted:
		ev.ExecutionStarted = &orchestration.ExecutionStartedEvent{Name: w.Name, Input: w.Input}
	case orchestration.EventTaskScheduled:
		ev.TaskScheduled = &orchestration.TaskScheduledEvent{Name: w.Name}
	case orchestration.EventSubOrchestrationInstanceCreated:
		ev.SubOrchestrationInstanceCreated = &orchestration.SubOrchestrationInstanceCreatedEvent{Name: w.Name}
	case orchestration.EventTimerFired:
		ev.TimerFired = &orchestration.TimerFiredEvent{TimerID: w.TimerID}
	case orchestration.EventTaskCompleted:
		ev.TaskCompleted = &orchestration.TaskCompletedEvent{ScheduledID: w.ScheduledID, Result: w.Result}
	case orchestration.EventTaskFailed:
		ev.TaskFailed = &orchestration.TaskFailedEvent{ScheduledID: w.ScheduledID, Failure: fromWireFailure(w.Failure)}
	case orchestration.EventSubOrchestrationInstanceCompleted, orchestration.EventSubOrchestrationInstanceFailed:
		ev.SubOrchestrationResult = &orchestration.SubOrchestrationResultEvent{
			ScheduledID: w.ScheduledID,
			Result:      w.Result,
			Failure:     fromWireFailure(w.Failure),
		}
	case orchestration.EventEventRaised:
		ev.EventRaised = &orchestration.EventRaisedEvent{Name: w.Name, Input: w.Input}
	case orchestration.EventExecutionTerminated:
		ev.ExecutionTerminated = &orchestration.ExecutionTerminatedEvent{Input: w.Input}
	}
	return ev
}

// toHistoryEvents converts a slice of wire events to domain events.
func toHistoryEvents(events []HistoryEvent) []orchestration.HistoryEvent {
	out := make([]orchestration.HistoryEvent, len(events))
	for i, ev := range events {
		out[i] = toHistoryEvent(ev)
	}
	return out
}

// toWireAction converts one domain action into its wire form.
func toWireAction(a orchestration.OrchestratorAction) OrchestratorAction {
	wire := OrchestratorAction{ID: a.ID, Kind: string(a.Kind)}
	switch a.Kind {
	case orchestration.ActionCreateTimer:
		wire.FireAt = &a.CreateTimer.FireAt
	case orchestration.ActionScheduleTask:
		wire.Name = a.ScheduleTask.Name
		wire.Input = a.ScheduleTask.Input
	case orchestration.ActionCreateSubOrchestration:
		wire.Name = a.CreateSubOrchestration.Name
		wire.InstanceID = a.CreateSubOrchestration.InstanceID
		wire.Input = a.CreateSubOrchestration.Input
	case orchestration.ActionCompleteOrchestration:
		wire.Status = string(a.CompleteOrchestration.Status)
		wire.Result = a.CompleteOrchestration.Result
		wire.Failure = toWireFailure(a.CompleteOrchestration.FailureDetails)
	}
	return wire
}

// toWireActions converts a slice of domain actions to wire actions.
func toWireActions(actions []orchestration.OrchestratorAction) []OrchestratorAction {
	out := make([]OrchestratorAction, len(actions))
	for i, a := range actions {
		out[i] = toWireAction(a)
	}
	return out
}
