package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopOrchestrator(ctx Context, input any) (any, error) { return input, nil }
func noopActivity(ctx ActivityContext, input any) (any, error) { return input, nil }

func TestAddNamedOrchestrator(t *testing.T) {
	t.Run("registers and looks up by name", func(t *testing.T) {
		r := New()
		require.NoError(t, r.AddNamedOrchestrator("greet", noopOrchestrator))

		fn, ok := r.GetOrchestrator("greet")
		assert.True(t, ok)
		assert.NotNil(t, fn)
	})

	t.Run("rejects nil function", func(t *testing.T) {
		r := New()
		err := r.AddNamedOrchestrator("greet", nil)
		assert.Error(t, err)
	})

	t.Run("rejects empty name", func(t *testing.T) {
		r := New()
		err := r.AddNamedOrchestrator("", noopOrchestrator)
		assert.Error(t, err)
	})

	t.Run("rejects duplicate name", func(t *testing.T) {
		r := New()
		require.NoError(t, r.AddNamedOrchestrator("greet", noopOrchestrator))
		err := r.AddNamedOrchestrator("greet", noopOrchestrator)
		assert.Error(t, err)
	})

	t.Run("missing lookup returns false", func(t *testing.T) {
		r := New()
		_, ok := r.GetOrchestrator("missing")
		assert.False(t, ok)
	})
}

func TestAddNamedActivity(t *testing.T) {
	t.Run("registers and looks up by name", func(t *testing.T) {
		r := New()
		require.NoError(t, r.AddNamedActivity("add", noopActivity))

		fn, ok := r.GetActivity("add")
		assert.True(t, ok)
		assert.NotNil(t, fn)
	})

	t.Run("rejects nil function", func(t *testing.T) {
		r := New()
		err := r.AddNamedActivity("add", nil)
		assert.Error(t, err)
	})

	t.Run("rejects empty name", func(t *testing.T) {
		r := New()
		err := r.AddNamedActivity("", noopActivity)
		assert.Error(t, err)
	})

	t.Run("rejects duplicate name", func(t *testing.T) {
		r := New()
		require.NoError(t, r.AddNamedActivity("add", noopActivity))
		err := r.AddNamedActivity("add", noopActivity)
		assert.Error(t, err)
	})
}

func TestAddOrchestrator(t *testing.T) {
	t.Run("derives name from the function identity", func(t *testing.T) {
		r := New()
		name, err := r.AddOrchestrator(noopOrchestrator)
		require.NoError(t, err)
		assert.Equal(t, "noopOrchestrator", name)

		_, ok := r.GetOrchestrator("noopOrchestrator")
		assert.True(t, ok)
	})

	t.Run("rejects an anonymous function literal", func(t *testing.T) {
		r := New()
		_, err := r.AddOrchestrator(func(ctx Context, input any) (any, error) { return input, nil })
		assert.Error(t, err)
	})
}

func TestAddActivity(t *testing.T) {
	t.Run("derives name from the function identity", func(t *testing.T) {
		r := New()
		name, err := r.AddActivity(noopActivity)
		require.NoError(t, err)
		assert.Equal(t, "noopActivity", name)

		_, ok := r.GetActivity("noopActivity")
		assert.True(t, ok)
	})

	t.Run("rejects an anonymous function literal", func(t *testing.T) {
		r := New()
		_, err := r.AddActivity(func(ctx ActivityContext, input any) (any, error) { return input, nil })
		assert.Error(t, err)
	})
}

func TestRegistryIndependence(t *testing.T) {
	r := New()
	require.NoError(t, r.AddNamedOrchestrator("same-name", noopOrchestrator))
	require.NoError(t, r.AddNamedActivity("same-name", noopActivity))

	_, ok := r.GetOrchestrator("same-name")
	assert.True(t, ok)
	_, ok = r.GetActivity("same-name")
	assert.True(t, ok)
}
