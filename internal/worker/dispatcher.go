package worker

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/kandev/orchestrator-worker/internal/activity"
	"github.com/kandev/orchestrator-worker/internal/common/config"
	"github.com/kandev/orchestrator-worker/internal/common/logger"
	"github.com/kandev/orchestrator-worker/internal/orchestration"
	"github.com/kandev/orchestrator-worker/internal/sidecar"
	"github.com/kandev/orchestrator-worker/internal/task"
	"github.com/kandev/orchestrator-worker/internal/telemetry"
)

// dispatcher pulls work items off the sidecar stream and fans them out to
// a bounded pool of goroutines, reconnecting the stream (but not the
// underlying connection) whenever it drops.
type dispatcher struct {
	cfg *config.Config
	log *logger.Logger

	client *sidecar.Client
	orch   *orchestration.Executor
	act    *activity.Executor
	tel    telemetry.Publisher

	workerID string
	sem      *semaphore.Weighted
	stopCh   chan struct{}
}

func newDispatcher(cfg *config.Config, log *logger.Logger, client *sidecar.Client, orch *orchestration.Executor, act *activity.Executor, tel telemetry.Publisher) *dispatcher {
	return &dispatcher{
		cfg:      cfg,
		log:      log,
		client:   client,
		orch:     orch,
		act:      act,
		tel:      tel,
		workerID: generateWorkerID(),
		sem:      semaphore.NewWeighted(int64(cfg.Worker.Concurrency)),
		stopCh:   make(chan struct{}),
	}
}

func (d *dispatcher) hello(ctx context.Context) error {
	helloCtx, cancel := context.WithTimeout(ctx, d.cfg.Worker.HelloTimeoutDuration())
	defer cancel()

	resp, err := d.client.Hello(helloCtx, d.workerID)
	if err != nil {
		return err
	}
	if !resp.Accepted {
		return errors.New("sidecar rejected hello: " + resp.Reason)
	}
	return nil
}

// run drives the GetWorkItems stream until ctx is canceled or stop() is
// called, reconnecting with cfg.Worker.ReconnectDelay between attempts
// whenever the stream ends unexpectedly.
func (d *dispatcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopCh:
			return
		default:
		}

		if err := d.consumeStream(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			switch status.Code(err) {
			case codes.Canceled:
				d.log.Warn("sidecar stream cancelled, reconnecting", zap.Error(err))
			case codes.Unavailable:
				d.log.Warn("sidecar unavailable, reconnecting", zap.Error(err))
			default:
				d.log.Warn("sidecar stream ended unexpectedly, reconnecting", zap.Error(err))
			}
			select {
			case <-ctx.Done():
				return
			case <-d.stopCh:
				return
			case <-time.After(d.cfg.Worker.ReconnectDelayDuration()):
			}
		}
	}
}

func (d *dispatcher) consumeStream(ctx context.Context) error {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := d.client.GetWorkItems(streamCtx, d.workerID)
	if err != nil {
		return err
	}

	for {
		item, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		if err := d.sem.Acquire(ctx, 1); err != nil {
			return err
		}
		go func(item *sidecar.WorkItem) {
			defer d.sem.Release(1)
			d.handle(ctx, item)
		}(item)

		select {
		case <-d.stopCh:
			return nil
		default:
		}
	}
}

func (d *dispatcher) handle(ctx context.Context, item *sidecar.WorkItem) {
	switch item.Kind {
	case sidecar.WorkItemOrchestrator:
		d.handleOrchestrator(ctx, item.Orchestrator)
	case sidecar.WorkItemActivity:
		d.handleActivity(ctx, item.Activity)
	default:
		d.log.Warn("received work item of unknown kind", zap.String("kind", string(item.Kind)))
	}
}

func (d *dispatcher) handleOrchestrator(ctx context.Context, req *sidecar.OrchestratorRequest) {
	if req == nil {
		return
	}
	oldEvents := sidecar.ToHistoryEvents(req.OldEvents)
	newEvents := sidecar.ToHistoryEvents(req.NewEvents)

	d.tel.Publish(telemetry.Event{Kind: telemetry.EventOrchestrationStarted, Timestamp: req.Timestamp, InstanceID: req.InstanceID})
	result, err := d.orch.Execute(req.InstanceID, oldEvents, newEvents)
	if err != nil {
		// Execute itself only returns an error for a malformed work item
		// (an empty new-history list); every other replay-time failure is
		// already folded into a FAILED result. Either way the sidecar
		// still needs to hear that this instance failed, so synthesize
		// the same completeOrchestration(FAILED) action Execute would
		// have produced rather than letting the work item vanish.
		d.log.WithInstanceID(req.InstanceID).WithError(err).Error("orchestrator execution failed")
		result = orchestration.FailedResult(err)
	}

	if err := d.client.CompleteOrchestratorTask(ctx, req.InstanceID, result); err != nil {
		d.log.WithInstanceID(req.InstanceID).WithError(err).Error("failed to report orchestrator result")
	}
	if result.Complete {
		d.tel.Publish(telemetry.Event{Kind: telemetry.EventOrchestrationDone, InstanceID: req.InstanceID})
	}
}

func (d *dispatcher) handleActivity(ctx context.Context, req *sidecar.ActivityRequest) {
	if req == nil {
		return
	}
	d.tel.Publish(telemetry.Event{Kind: telemetry.EventActivityStarted, InstanceID: req.OrchestrationID, Detail: req.Name})
	output, err := d.act.Execute(req.OrchestrationID, req.Name, req.TaskID, req.Input)
	d.tel.Publish(telemetry.Event{Kind: telemetry.EventActivityDone, InstanceID: req.OrchestrationID, Detail: req.Name})

	var failure *sidecar.FailureDetails
	if err != nil {
		failure = toWireActivityFailure(err)
	}

	if err := d.client.CompleteActivityTask(ctx, req.OrchestrationID, req.TaskID, output, failure); err != nil {
		d.log.WithInstanceID(req.OrchestrationID).WithError(err).Error("failed to report activity result",
			zap.Int64("task_id", req.TaskID))
	}
}

func (d *dispatcher) stop() {
	close(d.stopCh)
}

// generateWorkerID gives this process a correlation id for the sidecar's
// logs; it is never used for any deterministic orchestration data.
func generateWorkerID() string {
	return "worker-" + uuid.NewString()
}

// toWireActivityFailure converts an activity.Executor error into the
// wire shape reported back to the sidecar, preserving the original error
// type when the activity body failed via *task.FailureDetails rather
// than via an executor-level problem (bad input, unregistered name).
func toWireActivityFailure(err error) *sidecar.FailureDetails {
	var fd *task.FailureDetails
	if errors.As(err, &fd) {
		return &sidecar.FailureDetails{ErrorType: fd.ErrorType, ErrorMessage: fd.ErrorMessage, StackTrace: fd.StackTrace}
	}
	return &sidecar.FailureDetails{ErrorType: "Error", ErrorMessage: err.Error()}
}
