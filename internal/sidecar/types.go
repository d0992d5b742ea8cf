// Package sidecar is the worker's gRPC client to the orchestration
// sidecar: it requests work items, and reports back the actions an
// orchestrator or activity produced. The wire types here are converted to
// and from the orchestration package's domain types in convert.go; there
// is no separate protobuf layer, since the JSON codec (see codec.go) lets
// grpc carry these structs directly.
package sidecar

import "time"

// HelloRequest identifies this worker to the sidecar when it first
// connects, so the sidecar can route work items and correlate logs.
type HelloRequest struct {
	WorkerID string `json:"workerId"`
}

// HelloResponse acknowledges a worker connection.
type HelloResponse struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

// WorkItemKind discriminates the payload carried by a WorkItem.
type WorkItemKind string

const (
	WorkItemOrchestrator WorkItemKind = "orchestrator"
	WorkItemActivity     WorkItemKind = "activity"
)

// WorkItem is one unit of dispatchable work the sidecar streams to a
// worker via GetWorkItems.
type WorkItem struct {
	Kind WorkItemKind `json:"kind"`

	Orchestrator *OrchestratorRequest `json:"orchestrator,omitempty"`
	Activity     *ActivityRequest     `json:"activity,omitempty"`
}

// OrchestratorRequest carries everything Executor.Execute needs to
// replay and advance one orchestration instance.
type OrchestratorRequest struct {
	InstanceID string          `json:"instanceId"`
	OldEvents  []HistoryEvent  `json:"oldEvents"`
	NewEvents  []HistoryEvent  `json:"newEvents"`
	Timestamp  time.Time       `json:"timestamp"`
}

// ActivityRequest carries one activity invocation.
type ActivityRequest struct {
	OrchestrationID string  `json:"orchestrationId"`
	Name            string  `json:"name"`
	TaskID          int64   `json:"taskId"`
	Input           *string `json:"input,omitempty"`
}

// HistoryEvent is the wire shape of an orchestration history entry. It
// carries orchestration.HistoryEvent's data in one flat struct whose
// payload fields are shared between event kinds; the sidecar client
// converts between the two at the boundary (see convert.go) so the
// orchestration package never has to know about JSON tags.
type HistoryEvent struct {
	EventID   int64     `json:"eventId"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`

	Name    string  `json:"name,omitempty"`
	Input   *string `json:"input,omitempty"`
	TimerID int64   `json:"timerId,omitempty"`

	ScheduledID int64           `json:"scheduledId,omitempty"`
	Result      *string         `json:"result,omitempty"`
	Failure     *FailureDetails `json:"failure,omitempty"`
}

// FailureDetails is the wire shape of a task failure.
type FailureDetails struct {
	ErrorType    string `json:"errorType"`
	ErrorMessage string `json:"errorMessage"`
	StackTrace   string `json:"stackTrace,omitempty"`
}

// OrchestratorAction is the wire shape of one action the worker reports
// back to the sidecar after an Executor run.
type OrchestratorAction struct {
	ID   int64  `json:"id"`
	Kind string `json:"kind"`

	FireAt     *time.Time `json:"fireAt,omitempty"`
	Name       string     `json:"name,omitempty"`
	InstanceID string     `json:"instanceId,omitempty"`
	Input      *string    `json:"input,omitempty"`

	Status  string          `json:"status,omitempty"`
	Result  *string         `json:"result,omitempty"`
	Failure *FailureDetails `json:"failure,omitempty"`
}

// CompleteOrchestratorTaskRequest reports the outcome of one
// Executor.Execute run.
type CompleteOrchestratorTaskRequest struct {
	InstanceID string               `json:"instanceId"`
	Actions    []OrchestratorAction `json:"actions"`
	Complete   bool                 `json:"complete"`
}

// CompleteOrchestratorTaskResponse acknowledges a reported run.
type CompleteOrchestratorTaskResponse struct {
	Accepted bool `json:"accepted"`
}

// CompleteActivityTaskRequest reports the outcome of one activity
// invocation.
type CompleteActivityTaskRequest struct {
	OrchestrationID string          `json:"orchestrationId"`
	TaskID          int64           `json:"taskId"`
	Output          *string         `json:"output,omitempty"`
	Failure         *FailureDetails `json:"failure,omitempty"`
}

// CompleteActivityTaskResponse acknowledges a reported activity result.
type CompleteActivityTaskResponse struct {
	Accepted bool `json:"accepted"`
}
