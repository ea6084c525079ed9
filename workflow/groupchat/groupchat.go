// Package groupchat assembles a round-robin-or-custom multi-agent
// conversation entirely out of public workflow.Builder/EdgeGroup
// primitives: a manager executor fans out a broadcast to one gate per
// participant, gates translate the broadcast into a per-agent request,
// and agents fan back in to the manager once every participant has
// contributed to the round. No changes to the core workflow package are
// needed to express this.
package groupchat

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/dshills/agentgraph-go/workflow"
	"github.com/dshills/agentgraph-go/workflow/model"
)

func init() {
	workflow.RegisterPayloadType("groupchat.broadcastMessage", broadcastMessage{})
	workflow.RegisterPayloadType("groupchat.StartMessage", StartMessage{})
}

// StartMessage kicks off a group chat with the opening messages, sent to
// the manager executor as the workflow's start message.
type StartMessage struct {
	Messages []model.Message
}

// broadcastMessage is the manager's fan-out payload: every gate receives
// the same round context and decides locally whether its agent is the
// selected speaker.
type broadcastMessage struct {
	Delta       []model.Message
	NextSpeaker string
	Round       int
}

// SelectorFunc picks the next speaker given the round number (0-based)
// and the full conversation accumulated so far. Returning an empty string
// ends the chat; the manager then yields the final conversation.
type SelectorFunc func(round int, conversation []model.Message, lastSpeaker string) (nextSpeaker string, err error)

// RoundRobin returns a SelectorFunc that cycles through order in
// sequence and ends after maxRounds rounds (0 means unbounded).
func RoundRobin(order []string, maxRounds int) SelectorFunc {
	return func(round int, _ []model.Message, _ string) (string, error) {
		if maxRounds > 0 && round >= maxRounds {
			return "", nil
		}
		if len(order) == 0 {
			return "", nil
		}
		return order[round%len(order)], nil
	}
}

// manager drives selection and broadcasting. It handles StartMessage to
// open the chat and the fan-in []workflow.AgentExecutorResponse to
// advance each subsequent round.
type manager struct {
	workflow.BaseExecutor

	mu             sync.Mutex
	agentIDs       []string
	selector       SelectorFunc
	conversation   []model.Message
	round          int
	currentSpeaker string
}

func newManager(id string, agentIDs []string, selector SelectorFunc) (*manager, error) {
	m := &manager{
		BaseExecutor: workflow.NewBaseExecutor(id),
		agentIDs:     append([]string(nil), agentIDs...),
		selector:     selector,
	}
	broadcastType := reflect.TypeOf(broadcastMessage{})
	if err := workflow.RegisterHandler(&m.BaseExecutor, m.handleStart, broadcastType); err != nil {
		return nil, err
	}
	if err := workflow.RegisterHandler(&m.BaseExecutor, m.handleRound, broadcastType); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *manager) handleStart(rc *workflow.Context, msg StartMessage) error {
	m.mu.Lock()
	m.conversation = append([]model.Message(nil), msg.Messages...)
	next, err := m.selector(0, m.conversation, "")
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("groupchat manager %q: select opening speaker: %w", m.ID(), err)
	}
	m.currentSpeaker = next
	delta := append([]model.Message(nil), m.conversation...)
	m.mu.Unlock()

	if next == "" {
		rc.YieldOutput(m.snapshot())
		return nil
	}
	rc.SendMessage(broadcastMessage{Delta: delta, NextSpeaker: next, Round: 0})
	return nil
}

func (m *manager) handleRound(rc *workflow.Context, responses []workflow.AgentExecutorResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := indexOf(m.agentIDs, m.currentSpeaker)
	if idx < 0 || idx >= len(responses) {
		return fmt.Errorf("groupchat manager %q: no response recorded for speaker %q", m.ID(), m.currentSpeaker)
	}
	spoken := responses[idx]
	if spoken.AgentRunResponse.Text != "" {
		m.conversation = append(m.conversation, model.Message{
			Role:    model.RoleAssistant,
			Content: fmt.Sprintf("%s: %s", m.currentSpeaker, spoken.AgentRunResponse.Text),
		})
	}

	m.round++
	next, err := m.selector(m.round, m.conversation, m.currentSpeaker)
	if err != nil {
		return fmt.Errorf("groupchat manager %q: select next speaker: %w", m.ID(), err)
	}
	if next == "" {
		rc.YieldOutput(append([]model.Message(nil), m.conversation...))
		return nil
	}

	delta := []model.Message{m.conversation[len(m.conversation)-1]}
	m.currentSpeaker = next
	rc.SendMessage(broadcastMessage{Delta: delta, NextSpeaker: next, Round: m.round})
	return nil
}

func (m *manager) snapshot() []model.Message {
	return append([]model.Message(nil), m.conversation...)
}

func indexOf(ids []string, target string) int {
	for i, id := range ids {
		if id == target {
			return i
		}
	}
	return -1
}

// buildGate constructs the per-agent gate executor: it receives every
// broadcast and forwards an AgentExecutorRequest to agentID, setting
// ShouldRespond only when agentID was selected to speak this round.
func buildGate(id, agentID string) (*workflow.FunctionExecutor, error) {
	return workflow.NewFunctionExecutor(id, func(rc *workflow.Context, msg broadcastMessage) error {
		rc.SendMessage(workflow.AgentExecutorRequest{
			Messages:      msg.Delta,
			ShouldRespond: msg.NextSpeaker == agentID,
		}, agentID)
		return nil
	}, reflect.TypeOf(workflow.AgentExecutorRequest{}))
}

// Build assembles a group-chat Workflow over agents, using selector to
// pick each round's speaker. The manager is the start executor; send it a
// StartMessage to begin. checkpointStore may be nil to disable
// checkpointing.
func Build(agents []*workflow.AgentExecutor, selector SelectorFunc, checkpointStore workflow.CheckpointStore) (*workflow.Workflow, error) {
	if len(agents) == 0 {
		return nil, fmt.Errorf("groupchat: at least one agent is required")
	}

	agentIDs := make([]string, len(agents))
	for i, a := range agents {
		agentIDs[i] = a.ID()
	}

	mgr, err := newManager("manager", agentIDs, selector)
	if err != nil {
		return nil, fmt.Errorf("groupchat: build manager: %w", err)
	}

	b := workflow.NewBuilder().AddExecutor(mgr).SetStartExecutor(mgr.ID())

	gateTargets := make([]workflow.FanOutTarget, len(agents))
	for i, a := range agents {
		gateID := a.ID() + "-gate"
		gate, gErr := buildGate(gateID, a.ID())
		if gErr != nil {
			return nil, fmt.Errorf("groupchat: build gate for %q: %w", a.ID(), gErr)
		}
		b.AddExecutor(gate).AddExecutor(a)
		b.AddEdge(gateID, a.ID(), nil)
		gateTargets[i] = workflow.FanOutTarget{Target: gateID}
	}
	b.AddFanOut(mgr.ID(), gateTargets...)

	workflow.AddFanIn[workflow.AgentExecutorResponse](b, agentIDs, mgr.ID())

	if checkpointStore != nil {
		b.WithCheckpointing(checkpointStore)
	}
	return b.Build()
}
