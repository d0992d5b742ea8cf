package health

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kandev/orchestrator-worker/internal/common/logger"
)

type fakeStatus struct{ running bool }

func (f fakeStatus) Running() bool { return f.running }

func TestHealthz(t *testing.T) {
	r := NewRouter(fakeStatus{running: false}, logger.Default())
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadyzReflectsStatus(t *testing.T) {
	t.Run("not running returns 503", func(t *testing.T) {
		r := NewRouter(fakeStatus{running: false}, logger.Default())
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.JSONEq(t, `{"error": {"code": "SERVICE_UNAVAILABLE", "message": "service 'orchestrator-worker' is currently unavailable"}}`, w.Body.String())
	})

	t.Run("running returns 200", func(t *testing.T) {
		r := NewRouter(fakeStatus{running: true}, logger.Default())
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestStatus(t *testing.T) {
	r := NewRouter(fakeStatus{running: true}, logger.Default())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"running": true}`, w.Body.String())
}
