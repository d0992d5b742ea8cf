// Package telemetry publishes worker and orchestration lifecycle events
// for external observers (dashboards, debugging tools). It is purely
// observational: nothing in the worker's own control flow depends on a
// publish succeeding, so a telemetry outage never affects orchestration
// correctness.
package telemetry

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/kandev/orchestrator-worker/internal/common/config"
	"github.com/kandev/orchestrator-worker/internal/common/logger"
)

// EventKind names the lifecycle moment being published.
type EventKind string

const (
	EventWorkerStarted        EventKind = "worker.started"
	EventWorkerStopped        EventKind = "worker.stopped"
	EventOrchestrationStarted EventKind = "orchestration.started"
	EventOrchestrationDone    EventKind = "orchestration.done"
	EventActivityStarted      EventKind = "activity.started"
	EventActivityDone         EventKind = "activity.done"
)

// Event is one published lifecycle notification.
type Event struct {
	Kind       EventKind `json:"kind"`
	Timestamp  time.Time `json:"timestamp"`
	InstanceID string    `json:"instanceId,omitempty"`
	Detail     string    `json:"detail,omitempty"`
}

// Publisher emits lifecycle events. Publish must never block the caller
// on network I/O for longer than a best-effort attempt; failures are
// logged, not returned, since nothing should fail an orchestration
// because a dashboard didn't hear about it.
type Publisher interface {
	Publish(event Event)
	Close()
}

// New returns a NATS-backed Publisher when cfg.NATSURL is set, or a no-op
// Publisher otherwise.
func New(cfg config.TelemetryConfig, log *logger.Logger) Publisher {
	if cfg.NATSURL == "" {
		return noopPublisher{}
	}

	nc, err := nats.Connect(cfg.NATSURL, nats.Name(cfg.ClientID))
	if err != nil {
		log.Warn("telemetry: failed to connect to NATS, falling back to no-op publisher",
			zap.String("url", cfg.NATSURL), zap.Error(err))
		return noopPublisher{}
	}

	return &natsPublisher{
		conn:    nc,
		subject: "orchestrator-worker.events." + cfg.ClientID,
		log:     log.WithComponent("telemetry"),
	}
}

type natsPublisher struct {
	conn    *nats.Conn
	subject string
	log     *logger.Logger
}

func (p *natsPublisher) Publish(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		p.log.WithError(err).Warn("telemetry: failed to encode event")
		return
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		p.log.Warn("telemetry: failed to publish event", zap.String("kind", string(event.Kind)), zap.Error(err))
	}
}

func (p *natsPublisher) Close() {
	p.conn.Close()
}

type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
func (noopPublisher) Close()        {}
