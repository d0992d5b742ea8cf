package sidecar

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/kandev/orchestrator-worker/internal/orchestration"
)

const (
	serviceName                = "orchestrator.worker.Sidecar"
	methodHello                = "/" + serviceName + "/Hello"
	methodGetWorkItems         = "/" + serviceName + "/GetWorkItems"
	methodCompleteOrchestrator = "/" + serviceName + "/CompleteOrchestratorTask"
	methodCompleteActivity     = "/" + serviceName + "/CompleteActivityTask"
)

// Client is a gRPC connection to the orchestration sidecar. There is no
// generated protobuf stub backing it: the sidecar and worker exchange the
// JSON-tagged structs in this package directly over grpc's streaming
// transport, via the codec registered in codec.go.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to the sidecar at address (host:port). The connection is
// not established until the first call — grpc.NewClient defers dialing,
// matching the lazy-reconnect behavior the dispatcher relies on.
func Dial(address string) (*Client, error) {
	conn, err := grpc.NewClient(address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("sidecar: dialing %s: %w", address, err)
	}
	return &Client{conn: conn}, nil
}

// Close tears down the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Hello announces this worker to the sidecar.
func (c *Client) Hello(ctx context.Context, workerID string) (*HelloResponse, error) {
	req := &HelloRequest{WorkerID: workerID}
	resp := &HelloResponse{}
	if err := c.conn.Invoke(ctx, methodHello, req, resp); err != nil {
		return nil, fmt.Errorf("sidecar: hello: %w", err)
	}
	return resp, nil
}

// workItemStreamDesc describes the server-streaming RPC GetWorkItems
// uses. It's hand-written rather than generated because there's no .proto
// behind this service.
var workItemStreamDesc = grpc.StreamDesc{
	StreamName:    "GetWorkItems",
	ServerStreams: true,
}

// WorkItemStream receives work items as the sidecar dispatches them.
type WorkItemStream struct {
	stream grpc.ClientStream
}

// Recv blocks until the next work item arrives, the stream ends (io.EOF),
// or ctx is canceled.
func (s *WorkItemStream) Recv() (*WorkItem, error) {
	item := &WorkItem{}
	if err := s.stream.RecvMsg(item); err != nil {
		return nil, err
	}
	return item, nil
}

// GetWorkItems opens the long-lived stream the dispatcher reads work
// items from. workerID identifies this worker so the sidecar can route
// GetWorkItems to the same process that called Hello.
func (c *Client) GetWorkItems(ctx context.Context, workerID string) (*WorkItemStream, error) {
	stream, err := c.conn.NewStream(ctx, &workItemStreamDesc, methodGetWorkItems)
	if err != nil {
		return nil, fmt.Errorf("sidecar: opening work item stream: %w", err)
	}
	if err := stream.SendMsg(&HelloRequest{WorkerID: workerID}); err != nil {
		return nil, fmt.Errorf("sidecar: sending work item stream handshake: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, fmt.Errorf("sidecar: closing work item stream handshake: %w", err)
	}
	return &WorkItemStream{stream: stream}, nil
}

// CompleteOrchestratorTask reports the outcome of one Executor.Execute
// run back to the sidecar.
func (c *Client) CompleteOrchestratorTask(ctx context.Context, instanceID string, result *orchestration.Result) error {
	req := &CompleteOrchestratorTaskRequest{
		InstanceID: instanceID,
		Actions:    toWireActions(result.Actions),
		Complete:   result.Complete,
	}
	resp := &CompleteOrchestratorTaskResponse{}
	if err := c.conn.Invoke(ctx, methodCompleteOrchestrator, req, resp); err != nil {
		return fmt.Errorf("sidecar: completing orchestrator task %s: %w", instanceID, err)
	}
	return nil
}

// CompleteActivityTask reports the outcome of one activity invocation
// back to the sidecar. Exactly one of output or failure should be set.
func (c *Client) CompleteActivityTask(ctx context.Context, orchestrationID string, taskID int64, output *string, failure *FailureDetails) error {
	req := &CompleteActivityTaskRequest{
		OrchestrationID: orchestrationID,
		TaskID:          taskID,
		Output:          output,
		Failure:         failure,
	}
	resp := &CompleteActivityTaskResponse{}
	if err := c.conn.Invoke(ctx, methodCompleteActivity, req, resp); err != nil {
		return fmt.Errorf("sidecar: completing activity task %d for %s: %w", taskID, orchestrationID, err)
	}
	return nil
}

// ToHistoryEvents exposes the wire-to-domain conversion for callers
// (the dispatcher) that need to hand an OrchestratorRequest's events to
// orchestration.Executor.
func ToHistoryEvents(events []HistoryEvent) []orchestration.HistoryEvent {
	return toHistoryEvents(events)
}
