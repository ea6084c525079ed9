package workflow

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"
)

// RequestInfoEntry records a pending human-in-the-loop request, correlated
// by RequestID until a matching response is injected.
type RequestInfoEntry struct {
	RequestID       string
	SourceExecutorID string
	Payload         any
	ResponseType    reflect.Type
}

// responseDelivery pairs a satisfied RequestInfoEntry with the payload that
// satisfied it, ready to be turned into an IsResponse Message addressed
// back to SourceExecutorID.
type responseDelivery struct {
	entry   RequestInfoEntry
	payload any
}

// mailbox is the process-local store backing one workflow run: the inbox
// of pending messages, the outbound event log, shared cross-executor
// state, and the request/response correlation tables. It holds
// heterogeneous Messages grouped by superstep boundary, since this
// engine's delivery unit is "all messages produced this step," not a
// priority-ordered work item.
type mailbox struct {
	mu sync.Mutex

	// ready holds messages available for the superstep currently being
	// drained. next holds messages produced during the current superstep,
	// promoted to ready only at the next DrainReadyForSuperstep call —
	// this is what gives Testable Invariant 1 (no same-step delivery).
	ready []Message
	next  []Message

	events []Event

	sharedState map[string]any

	pendingRequests map[string]RequestInfoEntry
	readyResponses  []responseDelivery
	responded       map[string]bool
}

func newMailbox() *mailbox {
	return &mailbox{
		sharedState:     make(map[string]any),
		pendingRequests: make(map[string]RequestInfoEntry),
	}
}

// Enqueue adds msg to the next superstep's ready set.
func (m *mailbox) Enqueue(msg Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next = append(m.next, msg)
}

// DrainReadyForSuperstep promotes the messages queued during the previous
// superstep to ready, returning them, and resets next for the upcoming
// step's production.
func (m *mailbox) DrainReadyForSuperstep() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	ready := m.next
	m.next = nil
	m.ready = ready
	return ready
}

// EmitEvent appends e to the run's event log, in emission order (Testable
// Invariant 5).
func (m *mailbox) EmitEvent(e Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
}

// DrainEvents returns and clears all events accumulated so far, used by the
// Runner to forward newly produced events to the caller's stream.
func (m *mailbox) DrainEvents() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	events := m.events
	m.events = nil
	return events
}

// RegisterRequest records a new pending request-info entry, generating its
// RequestID, and returns it.
func (m *mailbox) RegisterRequest(sourceExecutorID string, payload any, responseType reflect.Type) RequestInfoEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := RequestInfoEntry{
		RequestID:        uuid.NewString(),
		SourceExecutorID: sourceExecutorID,
		Payload:          payload,
		ResponseType:     responseType,
	}
	m.pendingRequests[entry.RequestID] = entry
	return entry
}

// addPendingRequest records an already-constructed RequestInfoEntry (its
// RequestID assigned by Context.RequestInfo at handler-execution time) into
// the pending-request table.
func (m *mailbox) addPendingRequest(entry RequestInfoEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingRequests[entry.RequestID] = entry
}

// InjectResponse satisfies a pending request by requestID with payload.
// Injecting for an unknown or already-satisfied request id fails with
// ErrCodeUnknownRequestID / ErrCodeAlreadyResponded respectively rather
// than panicking — request/response errors never crash the workflow.
func (m *mailbox) InjectResponse(requestID string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.responded[requestID] {
		return &WorkflowCheckpointException{
			Code:    ErrCodeAlreadyResponded,
			Message: fmt.Sprintf("request %q already responded", requestID),
		}
	}
	entry, ok := m.pendingRequests[requestID]
	if !ok {
		return &WorkflowCheckpointException{
			Code:    ErrCodeUnknownRequestID,
			Message: fmt.Sprintf("no pending request with id %q", requestID),
		}
	}
	delete(m.pendingRequests, requestID)
	if m.responded == nil {
		m.responded = make(map[string]bool)
	}
	m.responded[requestID] = true
	m.readyResponses = append(m.readyResponses, responseDelivery{entry: entry, payload: payload})
	return nil
}

// TakeReadyResponses returns and clears responses injected since the last
// call, each paired with the RequestInfoEntry it satisfies.
func (m *mailbox) TakeReadyResponses() []responseDelivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.readyResponses
	m.readyResponses = nil
	return out
}

// PendingRequestCount reports how many request-info entries are still
// unmatched, used by the Runner's termination check.
func (m *mailbox) PendingRequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pendingRequests)
}

// PeekNext returns a copy of the messages currently queued for the next
// superstep, without draining them. Used to build a checkpoint after
// routing but before the next DrainReadyForSuperstep call, so a checkpoint
// always lands at a superstep boundary.
func (m *mailbox) PeekNext() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.next...)
}

// restoreNext replaces the next-superstep queue wholesale, used by Resume
// to repopulate pending messages decoded from a checkpoint.
func (m *mailbox) restoreNext(msgs []Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next = msgs
}

// HasNext reports whether any message has been queued for the next
// superstep.
func (m *mailbox) HasNext() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.next) > 0
}

// SharedGet reads key from the free-form shared state map. Writes race
// last-writer-wins with no locking exposed to callers, who only ever see
// the synchronized snapshot, never a raw map reference.
func (m *mailbox) SharedGet(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.sharedState[key]
	return v, ok
}

// SharedSet writes key in the shared state map. Concurrent handlers within
// the same superstep racing on the same key produce last-writer-wins.
func (m *mailbox) SharedSet(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sharedState[key] = value
}

// snapshotPendingRequests returns a copy of the current pending-request
// table, used by the checkpoint subsystem.
func (m *mailbox) snapshotPendingRequests() []RequestInfoEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RequestInfoEntry, 0, len(m.pendingRequests))
	for _, e := range m.pendingRequests {
		out = append(out, e)
	}
	return out
}

// restorePendingRequests repopulates the pending-request table from a
// checkpoint, used by Resume.
func (m *mailbox) restorePendingRequests(entries []RequestInfoEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingRequests = make(map[string]RequestInfoEntry, len(entries))
	for _, e := range entries {
		m.pendingRequests[e.RequestID] = e
	}
}
