package engine

import "strings"

// EventType is the kind of a normalized event.
type EventType string

const (
	EventText       EventType = "text"
	EventToolCall   EventType = "tool_call"
	EventToolResult EventType = "tool_result"
	EventStop       EventType = "stop"
	EventError      EventType = "error"
)

// Stop reasons after normalization.
const (
	StopEndTurn       = "end_turn"
	StopToolUse       = "tool_use"
	StopMaxTokens     = "max_tokens"
	StopMaxIterations = "max_iterations"
)

// Event is the provider-agnostic unit produced by adapters and forwarded by
// the Agent. Exactly one payload field is set, according to Type.
type Event struct {
	Type       EventType   `json:"type"`
	Delta      string      `json:"delta,omitempty"`
	ToolCall   *ToolCall   `json:"tool_call,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`
	StopReason string      `json:"stop_reason,omitempty"`
	Message    string      `json:"message,omitempty"`
}

func TextEvent(delta string) Event { return Event{Type: EventText, Delta: delta} }

func ToolCallEvent(call ToolCall) Event { return Event{Type: EventToolCall, ToolCall: &call} }

func ToolResultEvent(res ToolResult) Event { return Event{Type: EventToolResult, ToolResult: &res} }

func StopEvent(reason string) Event { return Event{Type: EventStop, StopReason: reason} }

func ErrorEvent(message string) Event { return Event{Type: EventError, Message: message} }

// Terminal reports whether no further events follow e.
func (e Event) Terminal() bool {
	return e.Type == EventStop || e.Type == EventError
}

// NormalizeStopReason maps provider-specific finish reasons onto the shared
// vocabulary. Unknown reasons pass through unchanged.
func NormalizeStopReason(reason string) string {
	switch strings.ToLower(strings.TrimSpace(reason)) {
	case "", "stop", "end_turn", "stop_sequence":
		return StopEndTurn
	case "tool_use", "tool_calls", "function_call":
		return StopToolUse
	case "length", "max_tokens":
		return StopMaxTokens
	default:
		return reason
	}
}

// HistoryBuilder folds the events of one Chat call back into conversation
// messages, so a caller can re-supply them as history on the next request.
type HistoryBuilder struct {
	messages []Message
	text     strings.Builder
	calls    []ToolCall
}

// NewHistoryBuilder starts from prior history plus the new user message.
func NewHistoryBuilder(history []Message, userMessage string) *HistoryBuilder {
	msgs := make([]Message, 0, len(history)+1)
	msgs = append(msgs, history...)
	msgs = append(msgs, UserText(userMessage))
	return &HistoryBuilder{messages: msgs}
}

// Add records one event.
func (b *HistoryBuilder) Add(ev Event) {
	switch ev.Type {
	case EventText:
		b.text.WriteString(ev.Delta)
	case EventToolCall:
		if ev.ToolCall != nil {
			b.calls = append(b.calls, *ev.ToolCall)
		}
	case EventToolResult:
		b.flush()
		if ev.ToolResult != nil {
			b.messages = append(b.messages, ToolResultMessage(*ev.ToolResult))
		}
	case EventStop, EventError:
		b.flush()
	}
}

// Messages returns the folded history.
func (b *HistoryBuilder) Messages() []Message {
	b.flush()
	return append([]Message(nil), b.messages...)
}

func (b *HistoryBuilder) flush() {
	if msg, ok := AssistantMessage(b.text.String(), b.calls); ok {
		b.messages = append(b.messages, msg)
	}
	b.text.Reset()
	b.calls = nil
}
