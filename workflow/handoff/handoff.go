// Package handoff assembles a dynamic executor ring out of public
// workflow.Builder/EdgeGroup primitives: each agent's response names the
// agent that should speak next, and a SwitchCase group per agent routes
// to whichever participant was named, generalizing SwitchCase's static
// ordered-case semantics to a named-case lookup evaluated against a
// declared target set fixed at Build() time.
package handoff

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/dshills/agentgraph-go/workflow"
	"github.com/dshills/agentgraph-go/workflow/model"
)

func init() {
	workflow.RegisterPayloadType("handoff.routedMessage", routedMessage{})
}

// transferToolPrefix is the tool-call naming convention an agent uses to
// name the participant it is handing off to: a tool call named
// "transfer_to_<agentID>" with no arguments required.
const transferToolPrefix = "transfer_to_"

// TransferToolName returns the conventional tool name an agent calls to
// hand off to agentID, for wiring as one of an AgentExecutor's
// WithAgentToolSpecs/WithAgentTools entries.
func TransferToolName(agentID string) string {
	return transferToolPrefix + agentID
}

// routedMessage carries one agent's output plus the name of whichever
// agent it named as the next speaker ("" ends the ring).
type routedMessage struct {
	Messages []model.Message
	Next     string
}

// extractor sits between an agent and the SwitchCase ring: it reads the
// agent's last tool call for a transfer_to_* name and turns the response
// into a routedMessage.
func buildExtractor(id string) (*workflow.FunctionExecutor, error) {
	return workflow.NewFunctionExecutor(id, func(rc *workflow.Context, resp workflow.AgentExecutorResponse) error {
		next := ""
		for _, call := range resp.AgentRunResponse.ToolCalls {
			if strings.HasPrefix(call.Name, transferToolPrefix) {
				next = strings.TrimPrefix(call.Name, transferToolPrefix)
			}
		}
		rc.SendMessage(routedMessage{
			Messages: append([]model.Message(nil), resp.FullConversation...),
			Next:     next,
		})
		return nil
	}, reflect.TypeOf(routedMessage{}))
}

// adapter receives a routedMessage destined for agentID and translates it
// into an AgentExecutorRequest, forwarded directly to the agent.
func buildAdapter(id, agentID string) (*workflow.FunctionExecutor, error) {
	return workflow.NewFunctionExecutor(id, func(rc *workflow.Context, msg routedMessage) error {
		rc.SendMessage(workflow.AgentExecutorRequest{
			Messages:      msg.Messages,
			ShouldRespond: true,
		}, agentID)
		return nil
	}, reflect.TypeOf(workflow.AgentExecutorRequest{}))
}

// Build assembles a handoff Workflow over agents: startAgentID receives
// the initial request, and whenever an agent calls a transfer_to_<id>
// tool, control passes to that agent next. terminal is an executor
// accepting handoff.routedMessage (for example a FunctionExecutor that
// yields the final conversation) that every participant's SwitchCase
// default routes to when no transfer tool call is present. checkpointStore
// may be nil to disable checkpointing.
func Build(agents []*workflow.AgentExecutor, startAgentID string, terminal workflow.Executor, checkpointStore workflow.CheckpointStore) (*workflow.Workflow, error) {
	if len(agents) == 0 {
		return nil, fmt.Errorf("handoff: at least one agent is required")
	}
	if terminal == nil {
		return nil, fmt.Errorf("handoff: terminal executor is required as the SwitchCase default target")
	}
	byID := make(map[string]*workflow.AgentExecutor, len(agents))
	for _, a := range agents {
		byID[a.ID()] = a
	}
	if _, ok := byID[startAgentID]; !ok {
		return nil, fmt.Errorf("handoff: start agent %q not among agents", startAgentID)
	}

	b := workflow.NewBuilder().SetStartExecutor(startAgentID)
	b.AddExecutor(terminal)
	for _, a := range agents {
		b.AddExecutor(a)
	}

	adapterIDs := make(map[string]string, len(agents))
	for _, a := range agents {
		adapterID := a.ID() + "-adapter"
		adapterIDs[a.ID()] = adapterID
		adapter, err := buildAdapter(adapterID, a.ID())
		if err != nil {
			return nil, fmt.Errorf("handoff: build adapter for %q: %w", a.ID(), err)
		}
		b.AddExecutor(adapter)
		b.AddEdge(adapterID, a.ID(), nil)
	}

	for _, a := range agents {
		extractorID := a.ID() + "-extract"
		extractor, err := buildExtractor(extractorID)
		if err != nil {
			return nil, fmt.Errorf("handoff: build extractor for %q: %w", a.ID(), err)
		}
		b.AddExecutor(extractor)
		b.AddEdge(a.ID(), extractorID, nil)

		cases := make([]workflow.SwitchCaseBranch, 0, len(agents)-1)
		for _, other := range agents {
			if other.ID() == a.ID() {
				continue
			}
			target := other.ID()
			cases = append(cases, workflow.SwitchCaseBranch{
				Target: adapterIDs[target],
				Condition: func(payload any) bool {
					rm, ok := payload.(routedMessage)
					return ok && rm.Next == target
				},
			})
		}
		b.AddSwitchCase(extractorID, cases, terminal.ID())
	}

	if checkpointStore != nil {
		b.WithCheckpointing(checkpointStore)
	}
	return b.Build()
}
