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

func TestSubWorkflowExecutorForwardsOutputAndEvents(t *testing.T) {
	echo, err := NewFunctionExecutor("echo", func(rc *Context, in string) error {
		rc.YieldOutput(in + " from sub")
		return nil
	})
	require.NoError(t, err)

	sub, err := NewBuilder().AddExecutor(echo).SetStartExecutor("echo").Build()
	require.NoError(t, err)

	subExec, err := NewSubWorkflowExecutor("sub", sub)
	require.NoError(t, err)

	outer, err := NewFunctionExecutor("outer", func(rc *Context, in string) error {
		rc.SendMessage(SubWorkflowRequestMessage{Payload: in})
		return nil
	}, reflect.TypeOf(SubWorkflowRequestMessage{}))
	require.NoError(t, err)

	collect, err := NewFunctionExecutor("collect", func(rc *Context, in SubWorkflowResponseMessage) error {
		rc.YieldOutput(in.Payload)
		return nil
	})
	require.NoError(t, err)

	wf, err := NewBuilder().
		AddExecutor(outer).AddExecutor(subExec).AddExecutor(collect).
		SetStartExecutor("outer").
		AddEdge("outer", "sub", nil).
		AddEdge("sub", "collect", nil).
		Build()
	require.NoError(t, err)

	runner, err := NewRunner(wf)
	require.NoError(t, err)

	handle := runner.Run(context.Background(), "", "hi")
	events := drainEvents(t, handle, time.Second)

	require.NoError(t, handle.Err())
	// The embedded run's own output event is relayed (tagged "sub") in
	// superstep 1, then collect yields the response payload in superstep 2.
	assert.Equal(t, []any{"hi from sub", "hi from sub"}, outputsOf(events))

	var sawParentTag bool
	for _, ev := range events {
		if ev.ParentExecutorID == "sub" {
			sawParentTag = true
		}
	}
	assert.True(t, sawParentTag, "events relayed from the embedded run should be tagged with the owning executor id")
}

func TestSubWorkflowExecutorSurfacesEmbeddedFailure(t *testing.T) {
	failing, err := NewFunctionExecutor("failing", func(rc *Context, in string) error {
		return fmt.Errorf("boom: %w", ErrTerminateWorkflow)
	})
	require.NoError(t, err)

	sub, err := NewBuilder().AddExecutor(failing).SetStartExecutor("failing").Build()
	require.NoError(t, err)

	subExec, err := NewSubWorkflowExecutor("sub", sub)
	require.NoError(t, err)

	collect, err := NewFunctionExecutor("collect", func(rc *Context, in SubWorkflowResponseMessage) error {
		rc.YieldOutput(in.ErrorMessage)
		return nil
	})
	require.NoError(t, err)

	wf, err := NewBuilder().
		AddExecutor(subExec).AddExecutor(collect).
		SetStartExecutor("sub").
		AddEdge("sub", "collect", nil).
		Build()
	require.NoError(t, err)

	runner, err := NewRunner(wf)
	require.NoError(t, err)

	handle := runner.Run(context.Background(), "", SubWorkflowRequestMessage{Payload: "boom"})
	events := drainEvents(t, handle, time.Second)
	require.NoError(t, handle.Err(), "a fatal embedded failure surfaces as a response payload, not a fatal parent error")

	outputs := outputsOf(events)
	require.Len(t, outputs, 1)
	assert.Contains(t, outputs[0].(string), "boom")
}
