package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kandev/orchestrator-worker/internal/common/config"
	"github.com/kandev/orchestrator-worker/internal/common/logger"
)

func TestNewReturnsNoopWithoutURL(t *testing.T) {
	pub := New(config.TelemetryConfig{}, logger.Default())
	_, ok := pub.(noopPublisher)
	assert.True(t, ok)

	assert.NotPanics(t, func() {
		pub.Publish(Event{Kind: EventWorkerStarted})
		pub.Close()
	})
}

func TestNewFallsBackOnUnreachableNATS(t *testing.T) {
	pub := New(config.TelemetryConfig{NATSURL: "nats://127.0.0.1:1"}, logger.Default())
	_, ok := pub.(noopPublisher)
	assert.True(t, ok)
}
