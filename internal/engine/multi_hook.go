package engine

import "context"

type Hooks []Hook

func (hs Hooks) OnIterationStart(ctx context.Context, st *State) {
	for _, h := range hs {
		h.OnIterationStart(ctx, st)
	}
}
func (hs Hooks) OnBeforeLLM(ctx context.Context, st *State, m []Message, schemas []ToolSchema) {
	for _, h := range hs {
		h.OnBeforeLLM(ctx, st, m, schemas)
	}
}
func (hs Hooks) OnAfterLLM(ctx context.Context, st *State, stopReason string, calls []ToolCall) {
	for _, h := range hs {
		h.OnAfterLLM(ctx, st, stopReason, calls)
	}
}
func (hs Hooks) OnLLMError(ctx context.Context, st *State, message string) {
	for _, h := range hs {
		h.OnLLMError(ctx, st, message)
	}
}
func (hs Hooks) OnToolCall(ctx context.Context, st *State, c ToolCall) {
	for _, h := range hs {
		h.OnToolCall(ctx, st, c)
	}
}
func (hs Hooks) OnToolResult(ctx context.Context, st *State, c ToolCall, r ToolResult) {
	for _, h := range hs {
		h.OnToolResult(ctx, st, c, r)
	}
}
func (hs Hooks) OnDone(ctx context.Context, st *State, final Event) {
	for _, h := range hs {
		h.OnDone(ctx, st, final)
	}
}
