package workflow

import "reflect"

// EventKind discriminates the variants carried by Event.
type EventKind string

const (
	EventExecutorInvoked    EventKind = "executor-invoked"
	EventExecutorCompleted  EventKind = "executor-completed"
	EventExecutorFailed     EventKind = "executor-failed"
	EventSuperStepStarted   EventKind = "superstep-started"
	EventSuperStepCompleted EventKind = "superstep-completed"
	EventWorkflowOutput     EventKind = "workflow-output"
	EventRequestInfo        EventKind = "request-info"
	EventWorkflowCompleted  EventKind = "workflow-completed"
	EventWorkflowFailed     EventKind = "workflow-failed"
)

// ExecutorFailureKind labels why an ExecutorFailedEvent fired, used both
// for observability and to decide whether the failure is merely local
// (execution continues) or fatal.
type ExecutorFailureKind string

const (
	FailureUnhandledMessageType ExecutorFailureKind = "unhandled-message-type"
	FailureHandlerError         ExecutorFailureKind = "handler-error"
	FailureTerminateWorkflow    ExecutorFailureKind = "terminate-workflow"
)

// Event is the single type carrying every variant of the workflow's
// external event stream. Only the fields relevant to Kind are populated;
// named fields replace a generic metadata map so the richer event
// taxonomy this engine needs stays typed.
type Event struct {
	Kind EventKind

	// ExecutorInvoked / ExecutorCompleted / ExecutorFailed
	ExecutorID  string
	MessageType reflect.Type
	DurationMS  int64
	Error       error
	FailureKind ExecutorFailureKind

	// SuperStepStarted / SuperStepCompleted
	StepIndex int

	// WorkflowOutputEvent
	Value any

	// RequestInfoEvent
	RequestID       string
	SourceID        string
	Payload         any
	ResponseType    reflect.Type

	// Sub-workflow events are tagged with the parent executor id so they
	// can be distinguished once forwarded into the parent's stream.
	ParentExecutorID string
}

// Observer is the ambient event sink configured via WithObserver. It
// receives every Event in addition to whatever the caller's own Run/Resume
// stream delivers.
type Observer interface {
	Observe(e Event)
}

// Metrics is the ambient metrics sink configured via WithMetrics. Concrete
// Prometheus-backed implementations live in workflow/metrics.
type Metrics interface {
	RecordSuperstep(index int, durationMS int64)
	RecordExecutorInvocation(executorID string, durationMS int64, failed bool)
	RecordMailboxDepth(depth int)
	RecordCheckpointWrite(durationMS int64)
	RecordMiddlewareShortCircuit(pipeline string)
}

// CostTracker is the ambient per-model token/cost accounting sink
// configured via WithCostTracker. Concrete pricing-table implementations
// live in workflow/cost.
type CostTracker interface {
	RecordUsage(executorID, model string, promptTokens, completionTokens int)
}
