package groupchat

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

func TestGroupChatTwoRoundRobinAgents(t *testing.T) {
	clientA := &model.MockClient{Responses: []model.ChatOut{{Text: "hello from a"}}}
	clientB := &model.MockClient{Responses: []model.ChatOut{{Text: "hello from b"}}}

	agentA, err := workflow.NewAgentExecutor("a", clientA)
	require.NoError(t, err)
	agentB, err := workflow.NewAgentExecutor("b", clientB)
	require.NoError(t, err)

	wf, err := Build([]*workflow.AgentExecutor{agentA, agentB}, RoundRobin([]string{"a", "b"}, 2), nil)
	require.NoError(t, err)

	runner, err := workflow.NewRunner(wf)
	require.NoError(t, err)

	handle := runner.Run(context.Background(), "", StartMessage{
		Messages: []model.Message{{Role: model.RoleUser, Content: "kick off"}},
	})
	events := drainEvents(t, handle, 2*time.Second)
	require.NoError(t, handle.Err())

	var final []model.Message
	for _, ev := range events {
		if ev.Kind == workflow.EventWorkflowOutput {
			final = ev.Value.([]model.Message)
		}
	}

	require.Len(t, final, 3)
	assert.Equal(t, "kick off", final[0].Content)
	assert.Equal(t, "a: hello from a", final[1].Content)
	assert.Equal(t, "b: hello from b", final[2].Content)

	assert.Equal(t, 1, clientA.CallCount(), "agent a should only be invoked on its own turn")
	assert.Equal(t, 1, clientB.CallCount(), "agent b should only be invoked on its own turn")
}

func TestBuildRejectsNoAgents(t *testing.T) {
	_, err := Build(nil, RoundRobin(nil, 0), nil)
	require.Error(t, err)
}

func TestRoundRobinEndsAfterMaxRounds(t *testing.T) {
	sel := RoundRobin([]string{"x", "y"}, 1)
	next, err := sel(0, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "x", next)

	next, err = sel(1, nil, "x")
	require.NoError(t, err)
	assert.Empty(t, next)
}
