package orchestration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kandev/orchestrator-worker/internal/registry"
	"github.com/kandev/orchestrator-worker/internal/task"
)

func startedEvent(name string, input *string) HistoryEvent {
	return HistoryEvent{EventID: 0, Kind: EventExecutionStarted, ExecutionStarted: &ExecutionStartedEvent{Name: name, Input: input}}
}

func orchestratorStartedEvent(at time.Time) HistoryEvent {
	return HistoryEvent{Kind: EventOrchestratorStarted, Timestamp: at}
}

var testClock = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newExecutor(t *testing.T, name string, fn registry.OrchestratorFn) *Executor {
	t.Helper()
	reg := registry.New()
	require.NoError(t, reg.AddNamedOrchestrator(name, fn))
	return NewExecutor(reg, nil)
}

func TestExecuteHelloWorld(t *testing.T) {
	fn := func(ctx registry.Context, input any) (any, error) {
		return "hello " + input.(string), nil
	}
	exec := newExecutor(t, "greet", fn)

	input := encode("world")
	result, err := exec.Execute("inst-1", nil, []HistoryEvent{orchestratorStartedEvent(testClock), startedEvent("greet", input)})
	require.NoError(t, err)
	require.True(t, result.Complete)
	require.Len(t, result.Actions, 1)

	complete := result.Actions[0].CompleteOrchestration
	require.NotNil(t, complete)
	assert.Equal(t, StatusCompleted, complete.Status)
	assert.Equal(t, `"hello world"`, *complete.Result)
}

func TestExecuteSingleActivity(t *testing.T) {
	fn := func(ctx registry.Context, input any) (any, error) {
		v, err := ctx.Await(ctx.CallActivity("square", input))
		if err != nil {
			return nil, err
		}
		return v, nil
	}

	t.Run("suspends until the activity completes", func(t *testing.T) {
		exec := newExecutor(t, "compute", fn)
		result, err := exec.Execute("inst-2", nil, []HistoryEvent{orchestratorStartedEvent(testClock), startedEvent("compute", encode(4))})
		require.NoError(t, err)
		assert.False(t, result.Complete)
		require.Len(t, result.Actions, 1)
		assert.Equal(t, ActionScheduleTask, result.Actions[0].Kind)
		assert.Equal(t, "square", result.Actions[0].ScheduleTask.Name)
	})

	t.Run("completes once the activity result arrives", func(t *testing.T) {
		exec := newExecutor(t, "compute", fn)
		old := []HistoryEvent{
			startedEvent("compute", encode(4)),
			{Kind: EventTaskScheduled, TaskScheduled: &TaskScheduledEvent{Name: "square"}},
		}
		result16 := encode(16)
		newEvents := []HistoryEvent{
			{Kind: EventTaskCompleted, TaskCompleted: &TaskCompletedEvent{ScheduledID: 0, Result: result16}},
		}
		result, err := exec.Execute("inst-2", old, newEvents)
		require.NoError(t, err)
		assert.True(t, result.Complete)
		require.Len(t, result.Actions, 1)
		assert.Equal(t, `16`, *result.Actions[0].CompleteOrchestration.Result)
	})
}

func TestExecuteNonDeterminism(t *testing.T) {
	t.Run("detects a different activity at the same sequence position", func(t *testing.T) {
		fn := func(ctx registry.Context, input any) (any, error) {
			_, err := ctx.Await(ctx.CallActivity("different-activity", input))
			return nil, err
		}
		exec := newExecutor(t, "compute", fn)
		old := []HistoryEvent{
			startedEvent("compute", encode(4)),
			{Kind: EventTaskScheduled, TaskScheduled: &TaskScheduledEvent{Name: "square"}},
		}
		result, err := exec.Execute("inst-3", old, []HistoryEvent{orchestratorStartedEvent(testClock)})
		require.NoError(t, err)
		require.True(t, result.Complete)
		complete := result.Actions[0].CompleteOrchestration
		require.NotNil(t, complete)
		assert.Equal(t, StatusFailed, complete.Status)
		require.NotNil(t, complete.FailureDetails)
		assert.Equal(t, "NonDeterminismError", complete.FailureDetails.ErrorType)
		assert.Contains(t, complete.FailureDetails.ErrorMessage, "square")
		assert.Contains(t, complete.FailureDetails.ErrorMessage, "different-activity")
	})

	t.Run("detects a timer where history recorded an activity call", func(t *testing.T) {
		fn := func(ctx registry.Context, input any) (any, error) {
			_, err := ctx.Await(ctx.CreateTimerAfter(time.Minute))
			return nil, err
		}
		exec := newExecutor(t, "compute", fn)
		old := []HistoryEvent{
			startedEvent("compute", nil),
			{Kind: EventTaskScheduled, TaskScheduled: &TaskScheduledEvent{Name: "square"}},
		}
		result, err := exec.Execute("inst-4", old, []HistoryEvent{orchestratorStartedEvent(testClock)})
		require.NoError(t, err)
		require.True(t, result.Complete)
		complete := result.Actions[0].CompleteOrchestration
		require.NotNil(t, complete)
		assert.Equal(t, StatusFailed, complete.Status)
		require.NotNil(t, complete.FailureDetails)
		assert.Equal(t, "NonDeterminismError", complete.FailureDetails.ErrorType)
		// The message must name what history actually recorded (CallActivity),
		// not just what the current call is trying to do (createTimer).
		assert.Contains(t, complete.FailureDetails.ErrorMessage, "CallActivity")
		assert.Contains(t, complete.FailureDetails.ErrorMessage, "createTimer")
	})
}

func TestExecuteTimer(t *testing.T) {
	fireAt := time.Now().Add(time.Hour)
	fn := func(ctx registry.Context, input any) (any, error) {
		_, err := ctx.Await(ctx.CreateTimer(fireAt))
		return "woke up", err
	}

	t.Run("schedules the timer then suspends", func(t *testing.T) {
		exec := newExecutor(t, "wait-a-bit", fn)
		result, err := exec.Execute("inst-5", nil, []HistoryEvent{orchestratorStartedEvent(testClock), startedEvent("wait-a-bit", nil)})
		require.NoError(t, err)
		assert.False(t, result.Complete)
		require.Len(t, result.Actions, 1)
		assert.Equal(t, ActionCreateTimer, result.Actions[0].Kind)
	})

	t.Run("completes once the timer fires", func(t *testing.T) {
		exec := newExecutor(t, "wait-a-bit", fn)
		old := []HistoryEvent{
			startedEvent("wait-a-bit", nil),
			{Kind: EventTimerCreated},
		}
		newEvents := []HistoryEvent{
			{Kind: EventTimerFired, TimerFired: &TimerFiredEvent{TimerID: 0}},
		}
		result, err := exec.Execute("inst-5", old, newEvents)
		require.NoError(t, err)
		assert.True(t, result.Complete)
		assert.Equal(t, `"woke up"`, *result.Actions[0].CompleteOrchestration.Result)
	})
}

func TestExecuteExternalEvent(t *testing.T) {
	fn := func(ctx registry.Context, input any) (any, error) {
		v, err := ctx.Await(ctx.WaitForExternalEvent("Approval"))
		return v, err
	}

	t.Run("suspends with no action when nothing has been raised yet", func(t *testing.T) {
		exec := newExecutor(t, "approve", fn)
		result, err := exec.Execute("inst-6", nil, []HistoryEvent{orchestratorStartedEvent(testClock), startedEvent("approve", nil)})
		require.NoError(t, err)
		assert.False(t, result.Complete)
		assert.Empty(t, result.Actions)
	})

	t.Run("consumes a buffered event with case-insensitive matching", func(t *testing.T) {
		exec := newExecutor(t, "approve", fn)
		old := []HistoryEvent{startedEvent("approve", nil)}
		newEvents := []HistoryEvent{
			{Kind: EventEventRaised, EventRaised: &EventRaisedEvent{Name: "approval", Input: encode(true)}},
		}
		result, err := exec.Execute("inst-6", old, newEvents)
		require.NoError(t, err)
		assert.True(t, result.Complete)
		assert.Equal(t, `true`, *result.Actions[0].CompleteOrchestration.Result)
	})
}

func TestExecuteSuspendResume(t *testing.T) {
	fn := func(ctx registry.Context, input any) (any, error) {
		v, err := ctx.Await(ctx.WaitForExternalEvent("Signal"))
		return v, err
	}
	exec := newExecutor(t, "signalled", fn)

	old := []HistoryEvent{startedEvent("signalled", nil)}
	newEvents := []HistoryEvent{
		{Kind: EventExecutionSuspended},
		{Kind: EventEventRaised, EventRaised: &EventRaisedEvent{Name: "signal", Input: encode("buffered")}},
		{Kind: EventExecutionResumed},
	}

	result, err := exec.Execute("inst-7", old, newEvents)
	require.NoError(t, err)
	assert.True(t, result.Complete)
	assert.Equal(t, `"buffered"`, *result.Actions[0].CompleteOrchestration.Result)
}

func TestExecuteOrchestratorFailure(t *testing.T) {
	fn := func(ctx registry.Context, input any) (any, error) {
		return nil, &task.FailureDetails{ErrorType: "ValueError", ErrorMessage: "bad input"}
	}
	exec := newExecutor(t, "always-fails", fn)
	result, err := exec.Execute("inst-8", nil, []HistoryEvent{orchestratorStartedEvent(testClock), startedEvent("always-fails", nil)})
	require.NoError(t, err)
	assert.True(t, result.Complete)
	assert.Equal(t, StatusFailed, result.Actions[0].CompleteOrchestration.Status)
	assert.Equal(t, "bad input", result.Actions[0].CompleteOrchestration.FailureDetails.ErrorMessage)
}

func TestExecuteUnregisteredOrchestrator(t *testing.T) {
	exec := newExecutor(t, "known", func(ctx registry.Context, input any) (any, error) { return nil, nil })
	result, err := exec.Execute("inst-9", nil, []HistoryEvent{orchestratorStartedEvent(testClock), startedEvent("unknown", nil)})
	require.NoError(t, err)
	require.True(t, result.Complete)
	complete := result.Actions[0].CompleteOrchestration
	require.NotNil(t, complete)
	assert.Equal(t, StatusFailed, complete.Status)
	require.NotNil(t, complete.FailureDetails)
	assert.Equal(t, "OrchestratorNotRegisteredError", complete.FailureDetails.ErrorType)
	assert.Contains(t, complete.FailureDetails.ErrorMessage, "unknown")
}

func TestExecuteTerminated(t *testing.T) {
	called := false
	fn := func(ctx registry.Context, input any) (any, error) {
		called = true
		return nil, nil
	}
	exec := newExecutor(t, "terminatable", fn)

	old := []HistoryEvent{startedEvent("terminatable", nil)}
	newEvents := []HistoryEvent{
		{Kind: EventExecutionTerminated, ExecutionTerminated: &ExecutionTerminatedEvent{Input: encode("stopped early")}},
	}
	result, err := exec.Execute("inst-10", old, newEvents)
	require.NoError(t, err)
	assert.True(t, result.Complete)
	assert.False(t, called)
	assert.Equal(t, `"stopped early"`, *result.Actions[0].CompleteOrchestration.Result)
}

func TestExecuteClockFromOrchestratorStarted(t *testing.T) {
	var observed time.Time
	fn := func(ctx registry.Context, input any) (any, error) {
		observed = ctx.CurrentUtcDateTime()
		return nil, nil
	}
	exec := newExecutor(t, "clock-reader", fn)
	_, err := exec.Execute("inst-11", nil, []HistoryEvent{
		orchestratorStartedEvent(testClock),
		startedEvent("clock-reader", nil),
	})
	require.NoError(t, err)
	assert.True(t, observed.Equal(testClock))
}

func TestExecuteEmptyNewHistoryIsAStateError(t *testing.T) {
	exec := newExecutor(t, "known", func(ctx registry.Context, input any) (any, error) { return nil, nil })
	_, err := exec.Execute("inst-12", nil, nil)
	require.Error(t, err)
	var stateErr *StateError
	assert.ErrorAs(t, err, &stateErr)
}

func TestFailedResultSynthesizesACompleteOrchestrationAction(t *testing.T) {
	result := FailedResult(emptyNewHistoryError())
	require.True(t, result.Complete)
	require.Len(t, result.Actions, 1)
	complete := result.Actions[0].CompleteOrchestration
	require.NotNil(t, complete)
	assert.Equal(t, StatusFailed, complete.Status)
	assert.Equal(t, "OrchestrationStateError", complete.FailureDetails.ErrorType)
}

func TestExecuteUnknownEventKindFailsTheOrchestration(t *testing.T) {
	exec := newExecutor(t, "known", func(ctx registry.Context, input any) (any, error) { return nil, nil })
	result, err := exec.Execute("inst-13", nil, []HistoryEvent{{Kind: "somethingUnheardOf"}})
	require.NoError(t, err)
	require.True(t, result.Complete)
	complete := result.Actions[0].CompleteOrchestration
	require.NotNil(t, complete)
	assert.Equal(t, StatusFailed, complete.Status)
	require.NotNil(t, complete.FailureDetails)
	assert.Equal(t, "OrchestrationStateError", complete.FailureDetails.ErrorType)
	assert.Contains(t, complete.FailureDetails.ErrorMessage, "somethingUnheardOf")
}
