package workflow

import (
	"errors"
	"fmt"
	"reflect"
)

// Error codes surfaced on WorkflowError.Code.
const (
	ErrCodeUnreachableExecutor    = "ERR_UNREACHABLE_EXECUTOR"
	ErrCodeDuplicateEdge          = "ERR_DUPLICATE_EDGE"
	ErrCodeTypeIncompatible       = "ERR_TYPE_INCOMPATIBLE"
	ErrCodeNoStartExecutor        = "ERR_NO_START_EXECUTOR"
	ErrCodeMissingSwitchDefault   = "ERR_MISSING_SWITCH_DEFAULT"
	ErrCodeEmptySwitchCases       = "ERR_EMPTY_SWITCH_CASES"
	ErrCodeUnhandledMessageType   = "ERR_UNHANDLED_MESSAGE_TYPE"
	ErrCodeMaxIterationsExceeded  = "ERR_MAX_ITERATIONS_EXCEEDED"
	ErrCodeUnknownRequestID       = "ERR_UNKNOWN_REQUEST_ID"
	ErrCodeAlreadyResponded       = "ERR_ALREADY_RESPONDED"
	ErrCodeCheckpointSchema       = "ERR_CHECKPOINT_SCHEMA_MISMATCH"
	ErrCodeTerminateWorkflow      = "ERR_TERMINATE_WORKFLOW"
	ErrCodeFanInMissingListType   = "ERR_FANIN_MISSING_LIST_TYPE"
	ErrCodeDuplicateExecutorID    = "ERR_DUPLICATE_EXECUTOR_ID"
	ErrCodeDuplicateHandler       = "ERR_DUPLICATE_HANDLER"
	ErrCodeExecutorNotRegistered  = "ERR_EXECUTOR_NOT_REGISTERED"
	ErrCodeCheckpointNotFound     = "ERR_CHECKPOINT_NOT_FOUND"
	ErrCodeInvalidMiddlewareOrder = "ERR_INVALID_MIDDLEWARE_ORDER"
)

// WorkflowError is the structured error type returned by graph construction,
// runtime validation, and checkpoint operations: a machine-readable Code
// plus a human Message and optional wrapped Cause.
type WorkflowError struct {
	Code    string
	Message string
	Cause   error
}

func (e *WorkflowError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *WorkflowError) Unwrap() error { return e.Cause }

func newError(code, message string) *WorkflowError {
	return &WorkflowError{Code: code, Message: message}
}

func wrapError(code, message string, cause error) *WorkflowError {
	return &WorkflowError{Code: code, Message: message, Cause: cause}
}

// GraphConnectivityError is raised at Build() when one or more executors are
// unreachable from the start executor.
type GraphConnectivityError struct {
	Unreachable []string
}

func (e *GraphConnectivityError) Error() string {
	return fmt.Sprintf("%s: executors unreachable from start: %v", ErrCodeUnreachableExecutor, e.Unreachable)
}

// EdgeDuplicationError is raised at Build() when the same
// (source,target,kind) triple is registered twice.
type EdgeDuplicationError struct {
	Source, Target, Kind string
}

func (e *EdgeDuplicationError) Error() string {
	return fmt.Sprintf("%s: duplicate edge group (%s -> %s, kind=%s)", ErrCodeDuplicateEdge, e.Source, e.Target, e.Kind)
}

// TypeCompatibilityError is raised at Build() when a source's declared
// output types have no assignment-compatible handler at the target.
type TypeCompatibilityError struct {
	Source, Target string
	SourceOutputs  []reflect.Type
	TargetInputs   []reflect.Type
}

func (e *TypeCompatibilityError) Error() string {
	return fmt.Sprintf("%s: no type-compatible edge between %s (outputs=%v) and %s (inputs=%v)",
		ErrCodeTypeIncompatible, e.Source, e.SourceOutputs, e.Target, e.TargetInputs)
}

// WorkflowCheckpointException covers serialization failures, schema
// mismatches, missing executor state on resume, and request-info injection
// errors raised by the checkpoint subsystem.
type WorkflowCheckpointException struct {
	Code    string
	Message string
	Cause   error
}

func (e *WorkflowCheckpointException) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *WorkflowCheckpointException) Unwrap() error { return e.Cause }

// ErrTerminateWorkflow is a sentinel a handler's error can wrap (via
// fmt.Errorf("%w", ...) or errors.Join) to signal a fatal, workflow-ending
// error, distinct from ordinary handler errors which only fail that
// executor for the step.
var ErrTerminateWorkflow = errors.New("workflow terminated by handler")

// IsTerminateWorkflow reports whether err (or anything it wraps) is tagged
// as a fatal, workflow-terminating error.
func IsTerminateWorkflow(err error) bool {
	return errors.Is(err, ErrTerminateWorkflow)
}
