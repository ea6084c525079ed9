package workflow

import (
	"fmt"
	"reflect"
	"sync"
)

// Executor is a unit of work in a workflow graph. Implementations are
// typically embedded BaseExecutor values with handlers registered in their
// constructor, adapting a plain function into the Executor interface.
type Executor interface {
	// ID returns the executor's unique identifier within its workflow.
	ID() string

	// Handle dispatches msg to the handler registered for msg.PayloadType.
	// All output flows through rc; Handle itself returns only an error for
	// the runner's failure accounting.
	Handle(rc *Context, msg Message) error

	// InputTypes returns the union of types this executor has a handler
	// for, used by the validator for type-compatibility checks.
	InputTypes() []reflect.Type

	// OutputTypes returns the union of types this executor has declared it
	// may send, used by the validator for type-compatibility checks.
	OutputTypes() []reflect.Type

	// SaveState serializes the executor's mutable state for checkpointing.
	SaveState() ([]byte, error)

	// RestoreState repopulates the executor's mutable state from bytes
	// previously produced by SaveState.
	RestoreState(data []byte) error
}

// handlerEntry pairs a registered handler function with its declared output
// types, recorded at RegisterHandler time so the validator can see them
// without invoking the handler.
type handlerEntry struct {
	fn      func(rc *Context, payload any) error
	outputs []reflect.Type
}

// BaseExecutor is the concrete scaffolding most Executor implementations
// embed. It owns the handler dispatch table and the declared type sets,
// routing by payload type rather than a single Run method, since
// heterogeneous executors in this engine do not share one state type.
type BaseExecutor struct {
	id string

	mu               sync.Mutex
	handlers         map[reflect.Type]*handlerEntry
	responseHandlers map[reflect.Type]*handlerEntry
}

// NewBaseExecutor constructs a BaseExecutor with the given id. Embedding
// types call this from their own constructor before registering handlers.
func NewBaseExecutor(id string) BaseExecutor {
	return BaseExecutor{
		id:               id,
		handlers:         make(map[reflect.Type]*handlerEntry),
		responseHandlers: make(map[reflect.Type]*handlerEntry),
	}
}

// ID returns the executor's unique identifier.
func (b *BaseExecutor) ID() string { return b.id }

// RegisterHandler registers fn as the handler for messages whose payload
// is of type T on executor b. outputs declares the set of payload types fn
// may send via the Context during its execution; the validator uses this
// to check edge type-compatibility at Build() time without invoking fn.
//
// Go disallows generic methods, so this is a package-level function taking
// *BaseExecutor rather than a generic method on BaseExecutor.
func RegisterHandler[T any](b *BaseExecutor, fn func(rc *Context, payload T) error, outputs ...reflect.Type) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := reflect.TypeOf((*T)(nil)).Elem()
	if _, exists := b.handlers[t]; exists {
		return newError(ErrCodeDuplicateHandler, fmt.Sprintf("executor %q already has a handler for type %s", b.id, t))
	}
	b.handlers[t] = &handlerEntry{
		fn: func(rc *Context, payload any) error {
			typed, ok := payload.(T)
			if !ok {
				return newError(ErrCodeUnhandledMessageType, fmt.Sprintf("executor %q: payload is not %s", b.id, t))
			}
			return fn(rc, typed)
		},
		outputs: outputs,
	}
	return nil
}

// RegisterResponseHandler registers fn as the response handler invoked when
// a request-info response of type T is dispatched back to executor b: the
// original request handler already returned in an earlier superstep; fn
// resumes the logical operation with the correlated response payload.
func RegisterResponseHandler[T any](b *BaseExecutor, fn func(rc *Context, payload T) error, outputs ...reflect.Type) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := reflect.TypeOf((*T)(nil)).Elem()
	if _, exists := b.responseHandlers[t]; exists {
		return newError(ErrCodeDuplicateHandler, fmt.Sprintf("executor %q already has a response handler for type %s", b.id, t))
	}
	b.responseHandlers[t] = &handlerEntry{
		fn: func(rc *Context, payload any) error {
			typed, ok := payload.(T)
			if !ok {
				return newError(ErrCodeUnhandledMessageType, fmt.Sprintf("executor %q: response payload is not %s", b.id, t))
			}
			return fn(rc, typed)
		},
		outputs: outputs,
	}
	return nil
}

// Handle dispatches msg to the handler registered for its PayloadType. A
// missing handler is not a panic: it is surfaced to the caller as a
// WorkflowError so the runner can emit an unhandled-message-type
// ExecutorFailedEvent and continue with other executors.
func (b *BaseExecutor) Handle(rc *Context, msg Message) error {
	b.mu.Lock()
	table := b.handlers
	if msg.IsResponse {
		table = b.responseHandlers
	}
	entry, ok := table[msg.PayloadType]
	b.mu.Unlock()

	if !ok {
		return newError(ErrCodeUnhandledMessageType,
			fmt.Sprintf("executor %q has no handler for type %v (response=%v)", b.id, msg.PayloadType, msg.IsResponse))
	}
	return entry.fn(rc, msg.Payload)
}

// InputTypes returns every payload type this executor has a regular handler
// for.
func (b *BaseExecutor) InputTypes() []reflect.Type {
	b.mu.Lock()
	defer b.mu.Unlock()
	types := make([]reflect.Type, 0, len(b.handlers))
	for t := range b.handlers {
		types = append(types, t)
	}
	return types
}

// OutputTypes returns the union of output types declared across every
// registered handler (regular and response).
func (b *BaseExecutor) OutputTypes() []reflect.Type {
	b.mu.Lock()
	defer b.mu.Unlock()
	seen := make(map[reflect.Type]struct{})
	var types []reflect.Type
	add := func(entries map[reflect.Type]*handlerEntry) {
		for _, e := range entries {
			for _, t := range e.outputs {
				if _, ok := seen[t]; !ok {
					seen[t] = struct{}{}
					types = append(types, t)
				}
			}
		}
	}
	add(b.handlers)
	add(b.responseHandlers)
	return types
}

// SaveState is the default, no-op state serialization: executors with no
// mutable state beyond their handler table need not override it.
// Implementations with real state (AgentExecutor's conversation thread,
// for instance) override SaveState/RestoreState on their embedding type.
func (b *BaseExecutor) SaveState() ([]byte, error) { return nil, nil }

// RestoreState is the default no-op counterpart to SaveState.
func (b *BaseExecutor) RestoreState(data []byte) error { return nil }

// FunctionExecutor wraps a plain function into an Executor. The
// function's parameter type becomes the executor's sole input type.
type FunctionExecutor struct {
	BaseExecutor
}

// NewFunctionExecutor builds an Executor named id whose single handler is
// fn, declaring outputs as its possible send types.
func NewFunctionExecutor[T any](id string, fn func(rc *Context, payload T) error, outputs ...reflect.Type) (*FunctionExecutor, error) {
	fe := &FunctionExecutor{BaseExecutor: NewBaseExecutor(id)}
	if err := RegisterHandler(&fe.BaseExecutor, fn, outputs...); err != nil {
		return nil, err
	}
	return fe, nil
}
