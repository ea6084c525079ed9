// Package middleware implements three interceptor pipelines: agent, chat,
// and function. Each pipeline is a stack of interceptors chained at
// construction time into nested closures wrapping a next continuation,
// lifting the provider-selection patterns in workflow/model into a
// first-class interception layer.
//
// This package depends only on workflow/model and workflow/tool, not on
// the core workflow package, so that workflow (core) can depend on
// middleware without an import cycle.
package middleware

import (
	"github.com/dshills/agentgraph-go/workflow/model"
	"github.com/dshills/agentgraph-go/workflow/tool"
)

// AgentContext wraps an agent run, exposed to AgentInterceptors before any
// LLM call is made.
type AgentContext struct {
	Messages    []model.Message
	Thread      []model.Message
	IsStreaming bool
	Metadata    map[string]interface{}

	// Result, if non-nil before Run's terminal function executes, skips
	// the LLM call entirely and is treated as the final response: setting
	// it before calling next overrides execution. If set after, it
	// overrides the observed result passed to outer middleware.
	Result *model.ChatOut

	// Terminate stops the pipeline; interceptors further down the stack
	// are not called.
	Terminate bool
}

// AgentNextFunc is the continuation an AgentInterceptor must call to
// proceed to the next interceptor (or the terminal handler).
type AgentNextFunc func(*AgentContext) error

// AgentInterceptor wraps one stage of an agent run.
type AgentInterceptor func(ctx *AgentContext, next AgentNextFunc) error

// AgentPipeline is an ordered stack of AgentInterceptors.
type AgentPipeline struct {
	interceptors []AgentInterceptor
}

// Use appends i to the pipeline's stack, outermost-first.
func (p *AgentPipeline) Use(i AgentInterceptor) *AgentPipeline {
	p.interceptors = append(p.interceptors, i)
	return p
}

// Run executes the pipeline around terminal, building a nested-closure
// chain where each interceptor wraps the next, outermost-registered first.
func (p *AgentPipeline) Run(ctx *AgentContext, terminal AgentNextFunc) error {
	next := func(c *AgentContext) error {
		if c.Result != nil {
			return nil
		}
		return terminal(c)
	}
	for i := len(p.interceptors) - 1; i >= 0; i-- {
		interceptor := p.interceptors[i]
		prevNext := next
		next = func(c *AgentContext) error {
			if c.Terminate {
				return nil
			}
			return interceptor(c, prevNext)
		}
	}
	if ctx.Terminate {
		return nil
	}
	return next(ctx)
}

// ChatContext wraps one chat-client invocation.
type ChatContext struct {
	ChatClient  model.ChatClient
	Messages    []model.Message
	Tools       []model.ToolSpec
	IsStreaming bool
	Result      *model.ChatOut

	// UpdateHooks apply to each streamed update as it is produced.
	UpdateHooks []func(model.ChatOut)
	// Finalizers apply once to the complete assembled response.
	Finalizers []func(model.ChatOut)
	// TeardownHooks run when the stream closes, normally or via
	// cancellation.
	TeardownHooks []func()
}

// ChatNextFunc is the continuation a ChatInterceptor must call to proceed.
type ChatNextFunc func(*ChatContext) error

// ChatInterceptor wraps one stage of a chat-client call.
type ChatInterceptor func(ctx *ChatContext, next ChatNextFunc) error

// ChatPipeline is an ordered stack of ChatInterceptors.
type ChatPipeline struct {
	interceptors []ChatInterceptor
}

// Use appends i to the pipeline's stack.
func (p *ChatPipeline) Use(i ChatInterceptor) *ChatPipeline {
	p.interceptors = append(p.interceptors, i)
	return p
}

// Run executes the pipeline around terminal.
func (p *ChatPipeline) Run(ctx *ChatContext, terminal ChatNextFunc) error {
	next := func(c *ChatContext) error {
		if c.Result != nil {
			return nil
		}
		return terminal(c)
	}
	for i := len(p.interceptors) - 1; i >= 0; i-- {
		interceptor := p.interceptors[i]
		prevNext := next
		next = func(c *ChatContext) error {
			return interceptor(c, prevNext)
		}
	}
	return next(ctx)
}

// FunctionContext wraps one tool/function invocation.
type FunctionContext struct {
	Function  tool.Tool
	Arguments map[string]interface{}
	Result    map[string]interface{}
	Terminate bool
}

// FunctionNextFunc is the continuation a FunctionInterceptor must call to
// proceed.
type FunctionNextFunc func(*FunctionContext) error

// FunctionInterceptor wraps one stage of a tool invocation.
type FunctionInterceptor func(ctx *FunctionContext, next FunctionNextFunc) error

// FunctionPipeline is an ordered stack of FunctionInterceptors.
type FunctionPipeline struct {
	interceptors []FunctionInterceptor
}

// Use appends i to the pipeline's stack.
func (p *FunctionPipeline) Use(i FunctionInterceptor) *FunctionPipeline {
	p.interceptors = append(p.interceptors, i)
	return p
}

// Run executes the pipeline around terminal.
func (p *FunctionPipeline) Run(ctx *FunctionContext, terminal FunctionNextFunc) error {
	next := func(c *FunctionContext) error {
		if c.Result != nil {
			return nil
		}
		return terminal(c)
	}
	for i := len(p.interceptors) - 1; i >= 0; i-- {
		interceptor := p.interceptors[i]
		prevNext := next
		next = func(c *FunctionContext) error {
			if c.Terminate {
				return nil
			}
			return interceptor(c, prevNext)
		}
	}
	if ctx.Terminate {
		return nil
	}
	return next(ctx)
}

// Pipelines bundles the three pipelines, each configured via its own Use
// method. AgentExecutor runs Chat around every chat-client call and
// Function around every tool invocation; it does not run the Agent
// pipeline.
type Pipelines struct {
	Agent    AgentPipeline
	Chat     ChatPipeline
	Function FunctionPipeline
}
