package sidecar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kandev/orchestrator-worker/internal/orchestration"
)

func strptr(s string) *string { return &s }

func TestToHistoryEventRoundTrip(t *testing.T) {
	t.Run("executionStarted carries name and input", func(t *testing.T) {
		ev := toHistoryEvent(HistoryEvent{Kind: "executionStarted", Name: "greet", Input: strptr(`"world"`)})
		require.Equal(t, orchestration.EventExecutionStarted, ev.Kind)
		require.NotNil(t, ev.ExecutionStarted)
		assert.Equal(t, "greet", ev.ExecutionStarted.Name)
		assert.Equal(t, `"world"`, *ev.ExecutionStarted.Input)
	})

	t.Run("taskCompleted carries scheduled id and result", func(t *testing.T) {
		ev := toHistoryEvent(HistoryEvent{Kind: "taskCompleted", ScheduledID: 3, Result: strptr("42")})
		require.NotNil(t, ev.TaskCompleted)
		assert.EqualValues(t, 3, ev.TaskCompleted.ScheduledID)
		assert.Equal(t, "42", *ev.TaskCompleted.Result)
	})

	t.Run("taskFailed carries failure details", func(t *testing.T) {
		ev := toHistoryEvent(HistoryEvent{
			Kind:        "taskFailed",
			ScheduledID: 1,
			Failure:     &FailureDetails{ErrorType: "ValueError", ErrorMessage: "bad"},
		})
		require.NotNil(t, ev.TaskFailed)
		assert.Equal(t, "bad", ev.TaskFailed.Failure.ErrorMessage)
	})

	t.Run("eventRaised is case-preserving at this layer", func(t *testing.T) {
		ev := toHistoryEvent(HistoryEvent{Kind: "eventRaised", Name: "Approval", Input: strptr("true")})
		require.NotNil(t, ev.EventRaised)
		assert.Equal(t, "Approval", ev.EventRaised.Name)
	})

	t.Run("orchestratorStarted carries only its timestamp", func(t *testing.T) {
		at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		ev := toHistoryEvent(HistoryEvent{Kind: "orchestratorStarted", Timestamp: at})
		require.Equal(t, orchestration.EventOrchestratorStarted, ev.Kind)
		assert.True(t, at.Equal(ev.Timestamp))
	})
}

func TestToWireAction(t *testing.T) {
	t.Run("createTimer carries fireAt", func(t *testing.T) {
		fireAt := time.Now()
		action := orchestration.OrchestratorAction{
			ID: 0, Kind: orchestration.ActionCreateTimer,
			CreateTimer: &orchestration.CreateTimerAction{FireAt: fireAt},
		}
		wire := toWireAction(action)
		require.NotNil(t, wire.FireAt)
		assert.True(t, fireAt.Equal(*wire.FireAt))
	})

	t.Run("scheduleTask carries name and input", func(t *testing.T) {
		action := orchestration.OrchestratorAction{
			ID: 1, Kind: orchestration.ActionScheduleTask,
			ScheduleTask: &orchestration.ScheduleTaskAction{Name: "square", Input: strptr("4")},
		}
		wire := toWireAction(action)
		assert.Equal(t, "square", wire.Name)
		assert.Equal(t, "4", *wire.Input)
	})

	t.Run("completeOrchestration carries status and result", func(t *testing.T) {
		action := orchestration.OrchestratorAction{
			Kind: orchestration.ActionCompleteOrchestration,
			CompleteOrchestration: &orchestration.CompleteOrchestrationAction{
				Status: orchestration.StatusCompleted,
				Result: strptr(`"done"`),
			},
		}
		wire := toWireAction(action)
		assert.Equal(t, "COMPLETED", wire.Status)
		assert.Equal(t, `"done"`, *wire.Result)
	})
}
