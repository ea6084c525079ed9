package workflow

import (
	"context"
	"reflect"

	"github.com/google/uuid"
)

// emittedMessage is a handler-produced message before routing. An empty
// Target means "route through every matching edge group from the current
// executor"; a non-empty Target means the handler asked to bypass routing
// and deliver directly, which the Runner still validates against the
// declared edge set: it delivers directly only if an edge to that target
// exists.
type emittedMessage struct {
	Payload any
	Target  string
}

// Context is the per-handler capability object through which a handler
// reads correlation metadata and produces output. It is named Context
// here (not WorkflowContext) to
// avoid colliding with the ubiquitous stdlib context.Context import that
// every handler also receives via Message.TraceCtx.
//
// A fresh Context is constructed for every single handler invocation; the
// Runner merges its buffered output (SendMessage/YieldOutput/RequestInfo
// calls) into the shared mailbox only after the handler returns, so that
// concurrent handlers within a superstep never observe each other's
// in-flight output — handlers for different executors may run in
// parallel within the same superstep.
type Context struct {
	executorID       string
	sourceExecutorID string
	streaming        bool
	mb               *mailbox
	wf               *Workflow
	costTracker      CostTracker
	traceCtx         context.Context

	emitted  []emittedMessage
	outputs  []any
	requests []RequestInfoEntry
	events   []Event
}

func newContext(wf *Workflow, mb *mailbox, executorID, sourceExecutorID string, streaming bool, costTracker CostTracker, traceCtx context.Context) *Context {
	return &Context{
		executorID:       executorID,
		sourceExecutorID: sourceExecutorID,
		streaming:        streaming,
		mb:               mb,
		wf:               wf,
		costTracker:      costTracker,
		traceCtx:         traceCtx,
	}
}

// SendMessage emits payload from the current executor. With no target
// given, the Runner routes payload through every EdgeGroup whose source is
// the current executor. Passing exactly one target bypasses
// routing policy and delivers directly to that executor id, but only if a
// declared edge from the current executor to it exists — this is checked
// by the Runner at merge time, not here, since Context has no reason to
// know the full edge set synchronously during a handler's execution.
func (c *Context) SendMessage(payload any, target ...string) {
	t := ""
	if len(target) > 0 {
		t = target[0]
	}
	c.emitted = append(c.emitted, emittedMessage{Payload: payload, Target: t})
}

// YieldOutput emits value as a workflow-visible output, surfaced to the
// caller's stream as a WorkflowOutputEvent without terminating the
// workflow.
func (c *Context) YieldOutput(value any) {
	c.outputs = append(c.outputs, value)
}

// RequestInfo registers a request-info entry and returns its correlated
// request id. The handler must not await a response: the pattern is
// request-then-exit. A later superstep dispatches
// the response to an executor's response handler declared via
// RegisterResponseHandler, matched by payload type and RequestID.
func (c *Context) RequestInfo(promptPayload any, responseType reflect.Type) string {
	entry := RequestInfoEntry{
		RequestID:        uuid.NewString(),
		SourceExecutorID: c.executorID,
		Payload:          promptPayload,
		ResponseType:     responseType,
	}
	c.requests = append(c.requests, entry)
	return entry.RequestID
}

// GetSourceExecutorID returns the executor that sent the message currently
// being handled. Empty for the initial message delivered to the start
// executor.
func (c *Context) GetSourceExecutorID() string { return c.sourceExecutorID }

// SharedState exposes read/write access to the workflow's free-form
// cross-executor scratch space.
func (c *Context) SharedState() *SharedStateView {
	return &SharedStateView{mb: c.mb}
}

// IsStreaming reports whether the caller of Run/Resume is consuming the
// workflow as a streaming response.
func (c *Context) IsStreaming() bool { return c.streaming }

// CostTracker returns the ambient CostTracker configured on the Runner via
// WithCostTracker, or nil if none was configured. AgentExecutor consults
// this after every chat-client call to record token usage.
func (c *Context) CostTracker() CostTracker { return c.costTracker }

// EmitEvent forwards e into the parent run's event stream, used by
// SubWorkflowExecutor to tag and relay its embedded run's events with the
// parent executor id attached.
func (c *Context) EmitEvent(e Event) {
	c.events = append(c.events, e)
}

// TraceContext returns the stdlib context.Context carried by the message
// currently being handled, for handlers that need to propagate deadlines
// or cancellation into further I/O (for example SubWorkflowExecutor
// starting its embedded run).
func (c *Context) TraceContext() context.Context { return c.traceCtx }

// SharedStateView is the handler-facing accessor for the run's shared
// state map, deliberately not exposing the raw map so callers cannot
// bypass the last-writer-wins discipline with their own locking.
type SharedStateView struct {
	mb *mailbox
}

// Get returns the value stored at key and whether it was present.
func (s *SharedStateView) Get(key string) (any, bool) { return s.mb.SharedGet(key) }

// Set stores value at key. Concurrent writers within the same superstep
// race last-writer-wins.
func (s *SharedStateView) Set(key string, value any) { s.mb.SharedSet(key, value) }
