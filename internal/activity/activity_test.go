package activity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kandev/orchestrator-worker/internal/registry"
	"github.com/kandev/orchestrator-worker/internal/task"
)

func encode(t *testing.T, v any) *string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	s := string(b)
	return &s
}

func TestExecuteSuccess(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.AddNamedActivity("square", func(ctx registry.ActivityContext, input any) (any, error) {
		n := input.(float64)
		return n * n, nil
	}))
	exec := NewExecutor(reg)

	output, err := exec.Execute("inst-1", "square", 3, encode(t, 7))
	require.NoError(t, err)
	require.NotNil(t, output)
	assert.Equal(t, "49", *output)
}

func TestExecuteActivityFailure(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.AddNamedActivity("always-fails", func(ctx registry.ActivityContext, input any) (any, error) {
		return nil, &task.FailureDetails{ErrorType: "ValueError", ErrorMessage: "bad input"}
	}))
	exec := NewExecutor(reg)

	_, err := exec.Execute("inst-1", "always-fails", 0, nil)
	require.Error(t, err)
	var fd *task.FailureDetails
	require.ErrorAs(t, err, &fd)
	assert.Equal(t, "bad input", fd.ErrorMessage)
}

func TestExecutePanicRecovery(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.AddNamedActivity("panics", func(ctx registry.ActivityContext, input any) (any, error) {
		panic("boom")
	}))
	exec := NewExecutor(reg)

	_, err := exec.Execute("inst-1", "panics", 0, nil)
	require.Error(t, err)
	var fd *task.FailureDetails
	require.ErrorAs(t, err, &fd)
	assert.Contains(t, fd.ErrorMessage, "boom")
}

func TestExecuteUnregistered(t *testing.T) {
	reg := registry.New()
	exec := NewExecutor(reg)

	_, err := exec.Execute("inst-1", "missing", 0, nil)
	require.Error(t, err)
	var notRegistered *NotRegisteredError
	assert.ErrorAs(t, err, &notRegistered)
}

func TestContextIdentity(t *testing.T) {
	reg := registry.New()
	var seen *Context
	require.NoError(t, reg.AddNamedActivity("observe", func(ctx registry.ActivityContext, input any) (any, error) {
		seen = ctx.(*Context)
		return nil, nil
	}))
	exec := NewExecutor(reg)

	_, err := exec.Execute("inst-42", "observe", 7, nil)
	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.Equal(t, "inst-42", seen.OrchestrationID())
	assert.Equal(t, int64(7), seen.TaskID())
}
