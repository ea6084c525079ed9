package workflow

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"
)

func init() {
	RegisterPayloadType("workflow.SubWorkflowRequestMessage", SubWorkflowRequestMessage{})
	RegisterPayloadType("workflow.SubWorkflowResponseMessage", SubWorkflowResponseMessage{})
}

// SubWorkflowRequestMessage is the sole input type SubWorkflowExecutor
// handles.
type SubWorkflowRequestMessage struct {
	Payload any
}

// SubWorkflowResponseMessage is SubWorkflowExecutor's sole output type.
// ErrorMessage is populated instead of a zero Payload when the embedded
// run fails.
type SubWorkflowResponseMessage struct {
	Payload      any
	ErrorMessage string
}

// SubWorkflowExecutor embeds a complete Workflow as an Executor in a
// parent graph. On receiving a request, the sub-workflow is run to
// completion within the parent's superstep; its outputs are
// collected into the response payload and its events are tagged with the
// parent executor id and forwarded to the parent's event stream.
type SubWorkflowExecutor struct {
	BaseExecutor

	sub  *Workflow
	opts []Option
}

// NewSubWorkflowExecutor constructs a SubWorkflowExecutor named id
// wrapping sub. opts configures the internal Runner driving sub (for
// example WithObserver to also forward sub-workflow events independently
// of the EmitEvent relay, or a distinct WithCheckpointStore).
func NewSubWorkflowExecutor(id string, sub *Workflow, opts ...Option) (*SubWorkflowExecutor, error) {
	s := &SubWorkflowExecutor{BaseExecutor: NewBaseExecutor(id), sub: sub, opts: opts}
	if err := RegisterHandler(&s.BaseExecutor, s.handleRequest,
		reflect.TypeOf(SubWorkflowResponseMessage{})); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SubWorkflowExecutor) handleRequest(rc *Context, req SubWorkflowRequestMessage) error {
	runner, err := NewRunner(s.sub, s.opts...)
	if err != nil {
		return fmt.Errorf("sub-workflow %q: %w", s.ID(), err)
	}

	runID := uuid.NewString()
	h := runner.Run(rc.TraceContext(), runID, req.Payload)

	var outputs []any
	var runErr error
	for e := range h.Events() {
		e.ParentExecutorID = s.ID()
		rc.EmitEvent(e)
		if e.Kind == EventWorkflowOutput {
			outputs = append(outputs, e.Value)
		}
	}
	runErr = h.Err()

	if runErr != nil {
		rc.SendMessage(SubWorkflowResponseMessage{ErrorMessage: runErr.Error()})
		return nil
	}

	var payload any
	switch len(outputs) {
	case 0:
		payload = nil
	case 1:
		payload = outputs[0]
	default:
		payload = outputs
	}
	rc.SendMessage(SubWorkflowResponseMessage{Payload: payload})
	return nil
}
