package workflow

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"reflect"
	"time"
)

// CheckpointSchemaVersion is bumped whenever the on-disk checkpoint format
// changes incompatibly. Loaders reject mismatched versions with
// WorkflowCheckpointException.
const CheckpointSchemaVersion = 1

// CheckpointStore is the durable snapshot/restore interface injected into
// a Workflow via Builder.WithCheckpointing. Concrete implementations
// (in-memory, SQLite, MySQL) live in package workflow/store, all
// persisting the serialized WorkflowCheckpoint shape below.
type CheckpointStore interface {
	// Save persists c and returns an opaque checkpoint id. The convention
	// used by the bundled implementations is run_id-superstep_index;
	// callers must treat it as opaque since other implementations are
	// free to substitute their own.
	Save(c *WorkflowCheckpoint) (string, error)

	// Load retrieves the checkpoint previously saved under checkpointID.
	Load(checkpointID string) (*WorkflowCheckpoint, error)

	// List returns every checkpoint id saved for runID, in ascending
	// superstep order, so Resume can default to "latest".
	List(runID string) ([]string, error)
}

// serializedMessage is the on-disk form of a pending Message.
type serializedMessage struct {
	Source      string `json:"source"`
	Target      string `json:"target"`
	PayloadType string `json:"payload_type"`
	Payload     string `json:"payload"` // base64 of JSON-encoded payload
}

// serializedRequest is the on-disk form of a RequestInfoEntry.
type serializedRequest struct {
	RequestID    string `json:"request_id"`
	Source       string `json:"source"`
	Payload      string `json:"payload"` // base64 of JSON-encoded payload
	ResponseType string `json:"response_type"`
}

// WorkflowCheckpoint is the durable snapshot of runner state taken at a
// superstep boundary.
type WorkflowCheckpoint struct {
	SchemaVersion    int                 `json:"schema_version"`
	RunID            string              `json:"run_id"`
	SuperstepIndex   int                 `json:"superstep_index"`
	PendingMessages  []serializedMessage `json:"pending_messages"`
	ExecutorStates   map[string]string   `json:"executor_states"` // base64
	PendingRequests  []serializedRequest `json:"pending_requests"`
	CreatedAt        time.Time           `json:"created_at"`
}

// buildCheckpoint serializes the current state of wf's run — the pending
// messages queued for the next superstep, pending request-info entries,
// and every executor's SaveState output — into a WorkflowCheckpoint for
// superstepIndex. pending is the exact set of messages the Runner has
// already queued for superstepIndex+1, taken after routing but before the
// next drain so the checkpoint always lands at a superstep boundary.
func buildCheckpoint(wf *Workflow, mb *mailbox, runID string, superstepIndex int, pending []Message) (*WorkflowCheckpoint, error) {
	cp := &WorkflowCheckpoint{
		SchemaVersion:  CheckpointSchemaVersion,
		RunID:          runID,
		SuperstepIndex: superstepIndex,
		ExecutorStates: make(map[string]string),
		CreatedAt:      time.Now().UTC(),
	}

	encoded, err := encodePendingMessages(pending)
	if err != nil {
		return nil, err
	}
	cp.PendingMessages = encoded

	for id, exec := range wf.executors {
		data, err := exec.SaveState()
		if err != nil {
			return nil, &WorkflowCheckpointException{Code: ErrCodeCheckpointSchema, Message: fmt.Sprintf("save state for %q", id), Cause: err}
		}
		cp.ExecutorStates[id] = base64.StdEncoding.EncodeToString(data)
	}

	for _, r := range mb.snapshotPendingRequests() {
		payloadJSON, err := json.Marshal(r.Payload)
		if err != nil {
			return nil, &WorkflowCheckpointException{Code: ErrCodeCheckpointSchema, Message: "marshal pending request payload", Cause: err}
		}
		typeName, _ := globalTypeRegistry.nameFor(r.ResponseType)
		cp.PendingRequests = append(cp.PendingRequests, serializedRequest{
			RequestID:    r.RequestID,
			Source:       r.SourceExecutorID,
			Payload:      base64.StdEncoding.EncodeToString(payloadJSON),
			ResponseType: typeName,
		})
	}

	return cp, nil
}

// encodePendingMessages converts msgs into their serialized checkpoint
// form, run against the declared pending messages for the NEXT superstep
// (the ones that have not yet been delivered).
func encodePendingMessages(msgs []Message) ([]serializedMessage, error) {
	out := make([]serializedMessage, 0, len(msgs))
	for _, m := range msgs {
		payloadJSON, err := json.Marshal(m.Payload)
		if err != nil {
			return nil, &WorkflowCheckpointException{Code: ErrCodeCheckpointSchema, Message: "marshal pending message payload", Cause: err}
		}
		typeName, ok := globalTypeRegistry.nameFor(m.PayloadType)
		if !ok {
			return nil, &WorkflowCheckpointException{Code: ErrCodeCheckpointSchema, Message: fmt.Sprintf("payload type %v not registered via RegisterPayloadType", m.PayloadType)}
		}
		out = append(out, serializedMessage{
			Source:      m.SourceExecutorID,
			Target:      m.TargetExecutorID,
			PayloadType: typeName,
			Payload:     base64.StdEncoding.EncodeToString(payloadJSON),
		})
	}
	return out, nil
}

// decodeBase64 is a small readability wrapper around base64 decoding used
// when restoring executor state from a checkpoint.
func decodeBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

// decodePendingMessages is the inverse of encodePendingMessages, used on
// Resume to repopulate the mailbox.
func decodePendingMessages(serialized []serializedMessage) ([]Message, error) {
	out := make([]Message, 0, len(serialized))
	for _, s := range serialized {
		t, ok := globalTypeRegistry.typeFor(s.PayloadType)
		if !ok {
			return nil, &WorkflowCheckpointException{Code: ErrCodeCheckpointSchema, Message: fmt.Sprintf("unknown payload type name %q", s.PayloadType)}
		}
		raw, err := base64.StdEncoding.DecodeString(s.Payload)
		if err != nil {
			return nil, &WorkflowCheckpointException{Code: ErrCodeCheckpointSchema, Message: "decode payload base64", Cause: err}
		}
		ptr := reflect.New(t)
		if err := json.Unmarshal(raw, ptr.Interface()); err != nil {
			return nil, &WorkflowCheckpointException{Code: ErrCodeCheckpointSchema, Message: "unmarshal payload json", Cause: err}
		}
		out = append(out, Message{
			SourceExecutorID: s.Source,
			TargetExecutorID: s.Target,
			Payload:          ptr.Elem().Interface(),
			PayloadType:      t,
		})
	}
	return out, nil
}

// decodePendingRequests is the inverse of the PendingRequests encoding in
// buildCheckpoint, used on Resume to repopulate the request-info table.
func decodePendingRequests(serialized []serializedRequest) ([]RequestInfoEntry, error) {
	out := make([]RequestInfoEntry, 0, len(serialized))
	for _, s := range serialized {
		t, ok := globalTypeRegistry.typeFor(s.ResponseType)
		if !ok {
			return nil, &WorkflowCheckpointException{Code: ErrCodeCheckpointSchema, Message: fmt.Sprintf("unknown response type name %q", s.ResponseType)}
		}
		raw, err := base64.StdEncoding.DecodeString(s.Payload)
		if err != nil {
			return nil, &WorkflowCheckpointException{Code: ErrCodeCheckpointSchema, Message: "decode request payload base64", Cause: err}
		}
		var payload any
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, &WorkflowCheckpointException{Code: ErrCodeCheckpointSchema, Message: "unmarshal request payload json", Cause: err}
		}
		out = append(out, RequestInfoEntry{
			RequestID:        s.RequestID,
			SourceExecutorID: s.Source,
			Payload:          payload,
			ResponseType:     t,
		})
	}
	return out, nil
}
