// Package worker owns the orchestrator/activity registration surface and
// the lifecycle (idle -> running -> stopping -> idle) of a worker process
// that talks to the orchestration sidecar.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kandev/orchestrator-worker/internal/activity"
	"github.com/kandev/orchestrator-worker/internal/common/config"
	"github.com/kandev/orchestrator-worker/internal/common/logger"
	"github.com/kandev/orchestrator-worker/internal/orchestration"
	"github.com/kandev/orchestrator-worker/internal/registry"
	"github.com/kandev/orchestrator-worker/internal/sidecar"
	"github.com/kandev/orchestrator-worker/internal/telemetry"
)

type state int

const (
	stateIdle state = iota
	stateRunning
	stateStopping
)

// Worker registers orchestrator and activity functions and drives them
// against work items streamed from the sidecar. Registration is only
// valid while the worker is idle; once Start moves it out of idle, every
// Add* call is rejected by requireIdle.
type Worker struct {
	cfg      *config.Config
	log      *logger.Logger
	registry *registry.Registry

	mu    sync.Mutex
	state state

	dispatcher *dispatcher
	telemetry  telemetry.Publisher
	wg         sync.WaitGroup
}

// New builds an idle Worker. cfg.Sidecar.Address() is where it will dial
// once started.
func New(cfg *config.Config, log *logger.Logger) *Worker {
	return &Worker{
		cfg:       cfg,
		log:       log.WithComponent("worker"),
		registry:  registry.New(),
		telemetry: telemetry.New(cfg.Telemetry, log),
	}
}

// AddOrchestrator registers fn under a name derived from its identity.
func (w *Worker) AddOrchestrator(fn registry.OrchestratorFn) (string, error) {
	if err := w.requireIdle(); err != nil {
		return "", err
	}
	return w.registry.AddOrchestrator(fn)
}

// AddNamedOrchestrator registers fn under an explicit name.
func (w *Worker) AddNamedOrchestrator(name string, fn registry.OrchestratorFn) error {
	if err := w.requireIdle(); err != nil {
		return err
	}
	return w.registry.AddNamedOrchestrator(name, fn)
}

// AddActivity registers fn under a name derived from its identity.
func (w *Worker) AddActivity(fn registry.ActivityFn) (string, error) {
	if err := w.requireIdle(); err != nil {
		return "", err
	}
	return w.registry.AddActivity(fn)
}

// AddNamedActivity registers fn under an explicit name.
func (w *Worker) AddNamedActivity(name string, fn registry.ActivityFn) error {
	if err := w.requireIdle(); err != nil {
		return err
	}
	return w.registry.AddNamedActivity(name, fn)
}

// Running reports whether the worker is currently dispatching work,
// satisfying internal/health.StatusProvider.
func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state == stateRunning
}

func (w *Worker) requireIdle() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != stateIdle {
		return fmt.Errorf("worker: cannot register work after Start")
	}
	return nil
}

// Start dials the sidecar and begins dispatching work items in the
// background. It returns once the initial Hello handshake succeeds.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.state != stateIdle {
		w.mu.Unlock()
		return fmt.Errorf("worker: already started")
	}
	w.state = stateRunning
	w.mu.Unlock()

	client, err := sidecar.Dial(w.cfg.Sidecar.Address())
	if err != nil {
		w.mu.Lock()
		w.state = stateIdle
		w.mu.Unlock()
		return fmt.Errorf("worker: connecting to sidecar: %w", err)
	}

	orchestratorExecutor := orchestration.NewExecutor(w.registry, w.log)
	activityExecutor := activity.NewExecutor(w.registry)

	d := newDispatcher(w.cfg, w.log, client, orchestratorExecutor, activityExecutor, w.telemetry)
	if err := d.hello(ctx); err != nil {
		client.Close()
		w.mu.Lock()
		w.state = stateIdle
		w.mu.Unlock()
		return fmt.Errorf("worker: hello handshake: %w", err)
	}
	w.dispatcher = d

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		d.run(ctx)
	}()

	w.telemetry.Publish(telemetry.Event{Kind: telemetry.EventWorkerStarted, Timestamp: time.Now()})
	w.log.Info("worker started", zap.String("sidecar", w.cfg.Sidecar.Address()))
	return nil
}

// Stop signals the dispatcher to stop, waits up to
// cfg.Worker.ShutdownTimeout for its dispatch loop to return, then closes
// the sidecar connection. The loop sees the stop signal only between work
// items or while waiting to reconnect; Stop does not cancel a stream read
// that is blocked (cancelling the ctx given to Start does). Work items
// already handed to the pool are not waited for.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.state != stateRunning {
		w.mu.Unlock()
		return nil
	}
	w.state = stateStopping
	d := w.dispatcher
	w.mu.Unlock()

	if d != nil {
		d.stop()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(w.cfg.Worker.ShutdownTimeoutDuration()):
		w.log.Warn("worker: shutdown timed out waiting for in-flight work")
	}

	if d != nil {
		d.client.Close()
	}
	w.telemetry.Publish(telemetry.Event{Kind: telemetry.EventWorkerStopped, Timestamp: time.Now()})
	w.telemetry.Close()

	w.mu.Lock()
	w.state = stateIdle
	w.dispatcher = nil
	w.mu.Unlock()
	return nil
}

// Run starts the worker, invokes fn, and guarantees Stop runs before
// returning — mirroring a scoped "with worker: ..." block.
func Run(ctx context.Context, w *Worker, fn func(ctx context.Context) error) error {
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()
	return fn(ctx)
}
