package orchestration

import "fmt"

// NotRegisteredError is raised when the sidecar dispatches work for an
// orchestrator name nothing in the registry answers to.
type NotRegisteredError struct {
	Name string
}

func (e *NotRegisteredError) Error() string {
	return fmt.Sprintf("a %q orchestrator was not registered", e.Name)
}

// NonDeterminismError is raised by the replay phase whenever the history
// being replayed doesn't match what the orchestrator code would produce
// given the same inputs — either the code changed after an instance
// started, or the orchestrator itself isn't deterministic.
type NonDeterminismError struct {
	message string
}

func (e *NonDeterminismError) Error() string { return e.message }

// missingActionError is raised when a history event expects a pending
// action with a given sequence id and the current execution never
// recorded one.
func missingActionError(taskID int64, actionName string) error {
	return &NonDeterminismError{message: fmt.Sprintf(
		"a previous execution called %s with id=%d, but the current "+
			"execution doesn't have this action with this id. this problem occurs when either "+
			"the orchestration has non-deterministic logic or the code was changed after an "+
			"instance of this orchestration already started running", actionName, taskID)}
}

// wrongActionTypeError is raised when the pending action recorded for
// this sequence id is of a different kind than the history event
// expects.
func wrongActionTypeError(taskID int64, expectedMethod string, actualKind ActionKind) error {
	return &NonDeterminismError{message: fmt.Sprintf(
		"failed to restore orchestration state due to a history mismatch: a previous execution called "+
			"%s with id=%d, but the current execution is instead trying to call %s as part of rebuilding "+
			"its history. this kind of mismatch can happen if an orchestration has non-deterministic logic "+
			"or if the code was changed after an instance of this orchestration already started running",
		expectedMethod, taskID, actualKind)}
}

// wrongActionNameError is raised when the pending action is the right
// kind but was scheduled against a different activity/sub-orchestrator
// name than the history event names.
func wrongActionNameError(taskID int64, method, expectedName, actualName string) error {
	return &NonDeterminismError{message: fmt.Sprintf(
		"failed to restore orchestration state due to a history mismatch: a previous execution called "+
			"%s with name=%q and sequence number %d, but the current execution is instead trying to call "+
			"%q as part of rebuilding its history. this kind of mismatch can happen if an orchestration has "+
			"non-deterministic logic or if the code was changed after an instance of this orchestration "+
			"already started running", method, expectedName, taskID, actualName)}
}

// StateError covers malformed input to Execute: an empty newHistory, or
// a history event of a kind applyOne doesn't recognize.
type StateError struct {
	message string
}

func (e *StateError) Error() string { return e.message }

func emptyNewHistoryError() error {
	return &StateError{message: "cannot execute with an empty new history"}
}

func unknownEventError(kind HistoryEventKind) error {
	return &StateError{message: fmt.Sprintf("unknown history event kind %q", kind)}
}
