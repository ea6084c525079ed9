// Package workflow implements a graph-based orchestration engine that
// coordinates agents, tools, and user-defined executors through typed
// message passing over a directed graph of edges.
package workflow

import (
	"context"
	"reflect"
)

// Message is the unit of communication between executors. Messages are
// immutable once created; routing rewrites TargetExecutorID by producing a
// new Message rather than mutating an existing one.
type Message struct {
	// SourceExecutorID is the executor that produced this message. Empty for
	// the initial message delivered to the start executor.
	SourceExecutorID string

	// TargetExecutorID is the executor this message will be delivered to.
	// Set by the edge runner during routing; zero value before routing.
	TargetExecutorID string

	// Payload is the arbitrary typed value carried by the message.
	Payload any

	// PayloadType is the runtime type tag used for handler dispatch and
	// edge type-compatibility checks.
	PayloadType reflect.Type

	// TraceCtx carries cross-cutting request-scoped values (deadlines,
	// cancellation, tracing spans) alongside the message.
	TraceCtx context.Context

	// IsResponse marks a message as the delivery of a request-info
	// response; such messages are dispatched to an executor's response
	// handlers instead of its regular handlers.
	IsResponse bool

	// RequestID correlates a response message back to the RequestInfoEntry
	// that was registered when the request was made. Empty unless
	// IsResponse is true.
	RequestID string
}

// NewMessage constructs a Message from an untyped payload, tagging it with
// its concrete runtime type for dispatch.
func NewMessage(ctx context.Context, sourceExecutorID string, payload any) Message {
	return Message{
		SourceExecutorID: sourceExecutorID,
		Payload:          payload,
		PayloadType:      reflect.TypeOf(payload),
		TraceCtx:         ctx,
	}
}

// withTarget returns a copy of m addressed to targetExecutorID, preserving
// immutability of the original message.
func (m Message) withTarget(targetExecutorID string) Message {
	m.TargetExecutorID = targetExecutorID
	return m
}
