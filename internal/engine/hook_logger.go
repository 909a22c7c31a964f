// engine/hook_logger.go
package engine

import (
	"context"
	"unicode/utf8"

	"go.uber.org/zap"
)

const previewLen = 200

type LoggerHook struct{ L *zap.Logger }

func (h LoggerHook) OnIterationStart(_ context.Context, st *State) {
	h.L.Debug("iteration start", zap.Int("iteration", st.Iteration), zap.Int("max", st.MaxIterations))
}
func (h LoggerHook) OnBeforeLLM(_ context.Context, st *State, msgs []Message, toolSchemas []ToolSchema) {
	h.L.Info("provider call",
		zap.Int("iteration", st.Iteration),
		zap.Int("messages", len(msgs)),
		zap.Int("tools", len(toolSchemas)))
}
func (h LoggerHook) OnAfterLLM(_ context.Context, st *State, stopReason string, calls []ToolCall) {
	h.L.Info("provider response",
		zap.Int("iteration", st.Iteration),
		zap.String("stop_reason", stopReason),
		zap.Int("tool_calls", len(calls)))
}
func (h LoggerHook) OnLLMError(_ context.Context, st *State, message string) {
	h.L.Warn("provider error", zap.Int("iteration", st.Iteration), zap.String("error", message))
}
func (h LoggerHook) OnToolCall(_ context.Context, _ *State, c ToolCall) {
	h.L.Info("tool call", zap.String("tool", c.Name), zap.String("id", c.ID), zap.Any("args", c.Input))
}
func (h LoggerHook) OnToolResult(_ context.Context, _ *State, c ToolCall, r ToolResult) {
	fields := []zap.Field{zap.String("tool", c.Name), zap.String("id", c.ID), zap.String("result", preview(r.Content))}
	if r.IsError {
		h.L.Warn("tool failed", fields...)
		return
	}
	h.L.Debug("tool result", fields...)
}
func (h LoggerHook) OnDone(_ context.Context, st *State, final Event) {
	h.L.Info("chat done",
		zap.String("event", string(final.Type)),
		zap.String("stop_reason", final.StopReason),
		zap.Int("iterations", st.Iteration),
		zap.Int("tool_calls", st.ToolCalls))
}

// preview cuts s to at most previewLen bytes without splitting a rune.
func preview(s string) string {
	if len(s) <= previewLen {
		return s
	}
	cut := previewLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
