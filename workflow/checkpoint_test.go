package workflow

import (
	"context"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memCheckpointStore is a minimal in-process CheckpointStore, kept local to
// this package's tests to avoid importing workflow/store (which itself
// imports workflow) from inside workflow's own test binary.
type memCheckpointStore struct {
	byID  map[string]*WorkflowCheckpoint
	byRun map[string][]string
}

func newMemCheckpointStore() *memCheckpointStore {
	return &memCheckpointStore{byID: make(map[string]*WorkflowCheckpoint), byRun: make(map[string][]string)}
}

func (s *memCheckpointStore) Save(c *WorkflowCheckpoint) (string, error) {
	id := fmt.Sprintf("%s-%d", c.RunID, c.SuperstepIndex)
	s.byID[id] = c
	s.byRun[c.RunID] = append(s.byRun[c.RunID], id)
	return id, nil
}

func (s *memCheckpointStore) Load(id string) (*WorkflowCheckpoint, error) {
	cp, ok := s.byID[id]
	if !ok {
		return nil, &WorkflowCheckpointException{Code: ErrCodeCheckpointNotFound, Message: "not found"}
	}
	return cp, nil
}

func (s *memCheckpointStore) List(runID string) ([]string, error) {
	return s.byRun[runID], nil
}

func TestCheckpointRoundTrip(t *testing.T) {
	strType := reflect.TypeOf("")
	echo, err := NewFunctionExecutor("echo", func(rc *Context, in string) error {
		rc.YieldOutput(in)
		return nil
	})
	require.NoError(t, err)

	wf, err := NewBuilder().AddExecutor(echo).SetStartExecutor("echo").Build()
	require.NoError(t, err)

	mb := newMailbox()
	mb.Enqueue(Message{TargetExecutorID: "echo", Payload: "hello", PayloadType: strType})
	pending := mb.PeekNext()

	cp, err := buildCheckpoint(wf, mb, "run-1", 0, pending)
	require.NoError(t, err)
	assert.Equal(t, CheckpointSchemaVersion, cp.SchemaVersion)
	assert.Equal(t, "run-1", cp.RunID)
	require.Len(t, cp.PendingMessages, 1)

	decoded, err := decodePendingMessages(cp.PendingMessages)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.Equal(t, "echo", decoded[0].TargetExecutorID)
	assert.Equal(t, "hello", decoded[0].Payload)
}

func TestCheckpointRejectsUnregisteredPayloadType(t *testing.T) {
	type unregistered struct{ X int }

	msgs := []Message{{
		TargetExecutorID: "x",
		Payload:          unregistered{X: 1},
		PayloadType:      reflect.TypeOf(unregistered{}),
	}}

	_, err := encodePendingMessages(msgs)
	require.Error(t, err)
	var cpErr *WorkflowCheckpointException
	require.ErrorAs(t, err, &cpErr)
	assert.Equal(t, ErrCodeCheckpointSchema, cpErr.Code)
}

func TestRunnerResumeFromCheckpoint(t *testing.T) {
	strType := reflect.TypeOf("")
	echo, err := NewFunctionExecutor("echo", func(rc *Context, in string) error {
		rc.YieldOutput(in)
		return nil
	})
	require.NoError(t, err)

	store := newMemCheckpointStore()
	wf, err := NewBuilder().AddExecutor(echo).SetStartExecutor("echo").WithCheckpointing(store).Build()
	require.NoError(t, err)

	runner, err := NewRunner(wf)
	require.NoError(t, err)

	handle := runner.Run(context.Background(), "resumable", "hello")
	events := drainEvents(t, handle, time.Second)
	require.NoError(t, handle.Err())
	assert.Equal(t, []any{"hello"}, outputsOf(events))

	ids, err := store.List("resumable")
	require.NoError(t, err)
	require.NotEmpty(t, ids)

	resumed, err := runner.Resume(context.Background(), "resumable", "")
	require.NoError(t, err)
	resumedEvents := drainEvents(t, resumed, time.Second)
	assert.NoError(t, resumed.Err())
	assert.Equal(t, EventWorkflowCompleted, resumedEvents[len(resumedEvents)-1].Kind)
}
