package middleware

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/agentgraph-go/workflow/model"
)

func TestAgentPipelineRunsInDeclaredOrder(t *testing.T) {
	var order []string

	p := &AgentPipeline{}
	p.Use(func(ctx *AgentContext, next AgentNextFunc) error {
		order = append(order, "first")
		return next(ctx)
	})
	p.Use(func(ctx *AgentContext, next AgentNextFunc) error {
		order = append(order, "second")
		return next(ctx)
	})

	err := p.Run(&AgentContext{}, func(ctx *AgentContext) error {
		order = append(order, "terminal")
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "terminal"}, order)
}

func TestAgentPipelineResultOverrideSkipsTerminal(t *testing.T) {
	terminalCalled := false
	override := &model.ChatOut{Text: "cached"}

	p := &AgentPipeline{}
	// An interceptor that supplies Result and returns without calling next
	// bypasses the LLM call entirely, per AgentContext.Result's doc.
	p.Use(func(ctx *AgentContext, next AgentNextFunc) error {
		ctx.Result = override
		return nil
	})

	ctx := &AgentContext{}
	err := p.Run(ctx, func(*AgentContext) error {
		terminalCalled = true
		return nil
	})

	require.NoError(t, err)
	assert.False(t, terminalCalled, "terminal handler must not run when an interceptor short-circuits")
	assert.Same(t, override, ctx.Result)
}

func TestAgentPipelineTerminateStopsRemainingInterceptors(t *testing.T) {
	var order []string

	p := &AgentPipeline{}
	p.Use(func(ctx *AgentContext, next AgentNextFunc) error {
		order = append(order, "outer-before")
		ctx.Terminate = true
		err := next(ctx)
		order = append(order, "outer-after")
		return err
	})
	p.Use(func(ctx *AgentContext, next AgentNextFunc) error {
		order = append(order, "inner")
		return next(ctx)
	})

	err := p.Run(&AgentContext{}, func(*AgentContext) error {
		order = append(order, "terminal")
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"outer-before", "outer-after"}, order)
}

func TestChatPipelinePropagatesTerminalError(t *testing.T) {
	p := &ChatPipeline{}
	p.Use(func(ctx *ChatContext, next ChatNextFunc) error {
		return next(ctx)
	})

	wantErr := errors.New("chat call failed")
	err := p.Run(&ChatContext{}, func(*ChatContext) error {
		return wantErr
	})

	assert.ErrorIs(t, err, wantErr)
}

func TestFunctionPipelineShortCircuitSkipsTerminal(t *testing.T) {
	calledOuter := false
	p := &FunctionPipeline{}
	p.Use(func(ctx *FunctionContext, next FunctionNextFunc) error {
		calledOuter = true
		ctx.Result = map[string]interface{}{"short-circuited": true}
		return nil
	})

	ctx := &FunctionContext{}
	terminalCalled := false
	err := p.Run(ctx, func(*FunctionContext) error {
		terminalCalled = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, calledOuter)
	assert.False(t, terminalCalled)
	assert.Equal(t, true, ctx.Result["short-circuited"])
}

func TestFunctionPipelineTerminateSkipsDownstreamInterceptor(t *testing.T) {
	var order []string
	p := &FunctionPipeline{}
	p.Use(func(ctx *FunctionContext, next FunctionNextFunc) error {
		order = append(order, "outer-before")
		ctx.Terminate = true
		err := next(ctx)
		order = append(order, "outer-after")
		return err
	})
	p.Use(func(ctx *FunctionContext, next FunctionNextFunc) error {
		order = append(order, "inner")
		return next(ctx)
	})

	err := p.Run(&FunctionContext{}, func(*FunctionContext) error {
		order = append(order, "terminal")
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"outer-before", "outer-after"}, order)
}

func TestFunctionPipelineNoInterceptorsRunsTerminal(t *testing.T) {
	p := &FunctionPipeline{}
	called := false
	err := p.Run(&FunctionContext{}, func(*FunctionContext) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}
