package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"github.com/dshills/agentgraph-go/workflow/middleware"
	"github.com/dshills/agentgraph-go/workflow/model"
	"github.com/dshills/agentgraph-go/workflow/tool"
)

func init() {
	RegisterPayloadType("workflow.AgentExecutorRequest", AgentExecutorRequest{})
	RegisterPayloadType("workflow.AgentExecutorResponse", AgentExecutorResponse{})
}

// AgentExecutorRequest is the sole input type AgentExecutor handles. When
// ShouldRespond is false, Messages are appended to the agent's thread
// without invoking the model and an acknowledgement AgentExecutorResponse
// carrying no AgentRunResponse is still emitted, used for broadcasting
// context during group-chat-style orchestrations where every participant
// must contribute a fan-in entry each round.
type AgentExecutorRequest struct {
	Messages      []model.Message
	ShouldRespond bool
}

// AgentExecutorResponse is AgentExecutor's sole output type.
type AgentExecutorResponse struct {
	AgentRunResponse model.ChatOut
	FullConversation []model.Message
}

// functionResultContent is fed back to the model in place of a failed
// tool call's output: tool exceptions are captured into
// functionResultContent{error=...} rather than aborting the run.
type functionResultContent struct {
	Name  string
	Error string
}

// AgentExecutor adapts an LLM chat client plus a toolset to the Executor
// contract, wrapping a single model.ChatClient call into a stateful,
// tool-calling loop. Its conversation thread is the executor's
// checkpointed state.
type AgentExecutor struct {
	BaseExecutor

	client        model.ChatClient
	tools         []tool.Tool
	toolsByName   map[string]tool.Tool
	toolSpecs     []model.ToolSpec
	maxIterations int
	pipelines     *middleware.Pipelines

	mu     sync.Mutex
	thread []model.Message
}

// AgentExecutorOption configures an AgentExecutor at construction time.
type AgentExecutorOption func(*AgentExecutor)

// WithAgentTools declares the toolset available to the model. ToolSpecs
// are derived from each tool.Tool's Name; schema-bearing tools should
// implement a richer Tool subtype and provide the schema via
// WithAgentToolSpecs instead.
func WithAgentTools(tools ...tool.Tool) AgentExecutorOption {
	return func(a *AgentExecutor) {
		a.tools = append(a.tools, tools...)
		for _, t := range tools {
			a.toolsByName[t.Name()] = t
			a.toolSpecs = append(a.toolSpecs, model.ToolSpec{Name: t.Name()})
		}
	}
}

// WithAgentToolSpecs overrides the ToolSpec descriptions/schemas sent to
// the model, keyed by tool name.
func WithAgentToolSpecs(specs ...model.ToolSpec) AgentExecutorOption {
	return func(a *AgentExecutor) {
		byName := make(map[string]model.ToolSpec, len(specs))
		for _, s := range specs {
			byName[s.Name] = s
		}
		for i, existing := range a.toolSpecs {
			if s, ok := byName[existing.Name]; ok {
				a.toolSpecs[i] = s
			}
		}
	}
}

// WithAgentMaxIterations overrides DefaultMaxIterations for this agent's
// tool-call loop.
func WithAgentMaxIterations(n int) AgentExecutorOption {
	return func(a *AgentExecutor) {
		if n > 0 {
			a.maxIterations = n
		}
	}
}

// WithAgentPipelines wires the chat/function middleware pipelines an
// AgentExecutor consults.
func WithAgentPipelines(p *middleware.Pipelines) AgentExecutorOption {
	return func(a *AgentExecutor) {
		a.pipelines = p
	}
}

// NewAgentExecutor constructs an AgentExecutor named id, wired to client,
// and registers its AgentExecutorRequest handler.
func NewAgentExecutor(id string, client model.ChatClient, opts ...AgentExecutorOption) (*AgentExecutor, error) {
	a := &AgentExecutor{
		BaseExecutor:  NewBaseExecutor(id),
		client:        client,
		toolsByName:   make(map[string]tool.Tool),
		maxIterations: DefaultMaxIterations,
		pipelines:     &middleware.Pipelines{},
	}
	for _, opt := range opts {
		opt(a)
	}
	if err := RegisterHandler(&a.BaseExecutor, a.handleRequest,
		reflect.TypeOf(AgentExecutorResponse{})); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *AgentExecutor) handleRequest(rc *Context, req AgentExecutorRequest) error {
	a.mu.Lock()
	a.thread = append(a.thread, req.Messages...)
	thread := append([]model.Message(nil), a.thread...)
	a.mu.Unlock()

	if !req.ShouldRespond {
		rc.SendMessage(AgentExecutorResponse{
			FullConversation: append([]model.Message(nil), thread...),
		})
		return nil
	}

	out, conversation, err := a.run(rc, thread)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.thread = conversation
	a.mu.Unlock()

	rc.SendMessage(AgentExecutorResponse{
		AgentRunResponse: out,
		FullConversation: append([]model.Message(nil), conversation...),
	})
	return nil
}

// run executes the tool-call loop: submit to the model, and while the
// model requests tool calls, execute each under the function-middleware
// pipeline and feed results back, up to maxIterations. Exceeding the cap
// returns the last model response rather than an error.
func (a *AgentExecutor) run(rc *Context, thread []model.Message) (model.ChatOut, []model.Message, error) {
	conversation := thread
	var last model.ChatOut

	for i := 0; i < a.maxIterations; i++ {
		out, err := a.invokeChat(rc, conversation)
		if err != nil {
			return model.ChatOut{}, nil, fmt.Errorf("agent %q: chat call failed: %w", a.ID(), err)
		}
		last = out

		if out.Text != "" {
			conversation = append(conversation, model.Message{Role: model.RoleAssistant, Content: out.Text})
		}

		if len(out.ToolCalls) == 0 {
			return out, conversation, nil
		}

		for _, call := range out.ToolCalls {
			result := a.invokeTool(rc, call)
			conversation = append(conversation, model.Message{Role: model.RoleUser, Content: formatToolResult(call.Name, result)})
		}
	}

	return last, conversation, nil
}

func (a *AgentExecutor) invokeChat(rc *Context, conversation []model.Message) (model.ChatOut, error) {
	chatCtx := &middleware.ChatContext{
		ChatClient:  a.client,
		Messages:    conversation,
		Tools:       a.toolSpecs,
		IsStreaming: rc.IsStreaming(),
	}
	err := a.pipelines.Chat.Run(chatCtx, func(c *middleware.ChatContext) error {
		out, chatErr := c.ChatClient.Chat(context.Background(), c.Messages, c.Tools)
		if chatErr != nil {
			return chatErr
		}
		c.Result = &out
		return nil
	})
	if err != nil {
		return model.ChatOut{}, err
	}
	if chatCtx.Result == nil {
		return model.ChatOut{}, nil
	}
	if rc.CostTracker() != nil {
		rc.CostTracker().RecordUsage(a.ID(), a.client.ModelName(), chatCtx.Result.Usage.PromptTokens, chatCtx.Result.Usage.CompletionTokens)
	}
	return *chatCtx.Result, nil
}

// invokeTool executes call under the function-middleware pipeline,
// translating any error (unknown tool or Call failure) into a
// functionResultContent fed back to the model rather than aborting the
// workflow.
func (a *AgentExecutor) invokeTool(rc *Context, call model.ToolCall) map[string]interface{} {
	t, ok := a.toolsByName[call.Name]
	if !ok {
		return errorResult(call.Name, fmt.Sprintf("no such tool: %s", call.Name))
	}

	fnCtx := &middleware.FunctionContext{Function: t, Arguments: call.Input}
	err := a.pipelines.Function.Run(fnCtx, func(c *middleware.FunctionContext) error {
		result, callErr := c.Function.Call(context.Background(), c.Arguments)
		if callErr != nil {
			return callErr
		}
		c.Result = result
		return nil
	})
	if err != nil {
		return errorResult(call.Name, err.Error())
	}
	if fnCtx.Result == nil {
		return map[string]interface{}{}
	}
	return fnCtx.Result
}

func errorResult(name, msg string) map[string]interface{} {
	fr := functionResultContent{Name: name, Error: msg}
	return map[string]interface{}{"error": fr.Error, "tool": fr.Name}
}

func formatToolResult(name string, result map[string]interface{}) string {
	if errMsg, ok := result["error"]; ok {
		return fmt.Sprintf("tool %s failed: %v", name, errMsg)
	}
	return fmt.Sprintf("tool %s result: %v", name, result)
}

// SaveState serializes the agent's conversation thread as the checkpointed
// state.
func (a *AgentExecutor) SaveState() ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return json.Marshal(a.thread)
}

// RestoreState repopulates the agent's conversation thread from bytes
// previously produced by SaveState.
func (a *AgentExecutor) RestoreState(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	var thread []model.Message
	if err := json.Unmarshal(data, &thread); err != nil {
		return fmt.Errorf("agent %q: restore state: %w", a.ID(), err)
	}
	a.mu.Lock()
	a.thread = thread
	a.mu.Unlock()
	return nil
}
