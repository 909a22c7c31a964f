// engine/hooks.go
package engine

import "context"

type Hook interface {
	OnIterationStart(ctx context.Context, st *State)
	OnBeforeLLM(ctx context.Context, st *State, messages []Message, toolSchemas []ToolSchema)
	OnAfterLLM(ctx context.Context, st *State, stopReason string, calls []ToolCall)
	OnLLMError(ctx context.Context, st *State, message string)
	OnToolCall(ctx context.Context, st *State, call ToolCall)
	OnToolResult(ctx context.Context, st *State, call ToolCall, result ToolResult)
	OnDone(ctx context.Context, st *State, final Event)
}

// NopHook lets you implement any hook you need.
type NopHook struct{}

func (NopHook) OnIterationStart(context.Context, *State)                     {}
func (NopHook) OnBeforeLLM(context.Context, *State, []Message, []ToolSchema) {}
func (NopHook) OnAfterLLM(context.Context, *State, string, []ToolCall)       {}
func (NopHook) OnLLMError(context.Context, *State, string)                   {}
func (NopHook) OnToolCall(context.Context, *State, ToolCall)                 {}
func (NopHook) OnToolResult(context.Context, *State, ToolCall, ToolResult)   {}
func (NopHook) OnDone(context.Context, *State, Event)                        {}
