package handoff

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/agentgraph-go/workflow"
	"github.com/dshills/agentgraph-go/workflow/model"
)

func drainEvents(t *testing.T, h *workflow.RunHandle, timeout time.Duration) []workflow.Event {
	t.Helper()
	var events []workflow.Event
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-h.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-deadline:
			t.Fatalf("timed out waiting for run to finish, collected %d events", len(events))
		}
	}
}

func TestTransferToolName(t *testing.T) {
	assert.Equal(t, "transfer_to_b", TransferToolName("b"))
}

func TestBuildRejectsNoAgents(t *testing.T) {
	terminal, err := workflow.NewFunctionExecutor("terminal", func(rc *workflow.Context, msg routedMessage) error {
		return nil
	})
	require.NoError(t, err)

	_, err = Build(nil, "a", terminal, nil)
	require.Error(t, err)
}

func TestBuildRejectsNilTerminal(t *testing.T) {
	mock := &model.MockClient{Responses: []model.ChatOut{{Text: "hi"}}}
	a, err := workflow.NewAgentExecutor("a", mock)
	require.NoError(t, err)

	_, err = Build([]*workflow.AgentExecutor{a}, "a", nil, nil)
	require.Error(t, err)
}

func TestBuildRejectsUnknownStartAgent(t *testing.T) {
	mock := &model.MockClient{Responses: []model.ChatOut{{Text: "hi"}}}
	a, err := workflow.NewAgentExecutor("a", mock)
	require.NoError(t, err)
	terminal, err := workflow.NewFunctionExecutor("terminal", func(rc *workflow.Context, msg routedMessage) error {
		return nil
	})
	require.NoError(t, err)

	_, err = Build([]*workflow.AgentExecutor{a}, "does-not-exist", terminal, nil)
	require.Error(t, err)
}

func TestHandoffRingTransfersAndTerminates(t *testing.T) {
	clientA := &model.MockClient{Responses: []model.ChatOut{
		{ToolCalls: []model.ToolCall{{Name: TransferToolName("b")}}},
	}}
	clientB := &model.MockClient{Responses: []model.ChatOut{{Text: "all done"}}}

	agentA, err := workflow.NewAgentExecutor("a", clientA, workflow.WithAgentMaxIterations(1))
	require.NoError(t, err)
	agentB, err := workflow.NewAgentExecutor("b", clientB)
	require.NoError(t, err)

	var final []model.Message
	terminal, err := workflow.NewFunctionExecutor("terminal", func(rc *workflow.Context, msg routedMessage) error {
		rc.YieldOutput(msg.Messages)
		return nil
	})
	require.NoError(t, err)

	wf, err := Build([]*workflow.AgentExecutor{agentA, agentB}, "a", terminal, nil)
	require.NoError(t, err)

	runner, err := workflow.NewRunner(wf)
	require.NoError(t, err)

	handle := runner.Run(context.Background(), "", workflow.AgentExecutorRequest{
		Messages:      []model.Message{{Role: model.RoleUser, Content: "start"}},
		ShouldRespond: true,
	})
	events := drainEvents(t, handle, 2*time.Second)
	require.NoError(t, handle.Err())

	for _, ev := range events {
		if ev.Kind == workflow.EventWorkflowOutput {
			final = ev.Value.([]model.Message)
		}
	}

	require.NotEmpty(t, final)
	assert.Equal(t, "all done", final[len(final)-1].Content)
	assert.Equal(t, 1, clientA.CallCount(), "agent a transfers after its first model call")
	assert.Equal(t, 1, clientB.CallCount(), "agent b answers in a single turn with no further transfer")
}
