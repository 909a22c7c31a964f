package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"strings"
)

// Role is the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockType identifies the kind of content a Block carries.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// Block is one piece of message content.
type Block struct {
	Type       BlockType   `json:"type"`
	Text       string      `json:"text,omitempty"`
	ToolCall   *ToolCall   `json:"tool_call,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`
}

// Message is the provider-agnostic conversation message. Tool results travel
// in user messages; tool calls in assistant messages.
type Message struct {
	Role    Role    `json:"role"`
	Content []Block `json:"content"`
}

// UnmarshalJSON accepts content either as a block array or as a plain string,
// which becomes a single text block.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role    Role            `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Role = raw.Role
	m.Content = nil

	trimmed := strings.TrimSpace(string(raw.Content))
	switch {
	case trimmed == "" || trimmed == "null":
		return nil
	case strings.HasPrefix(trimmed, `"`):
		var s string
		if err := json.Unmarshal(raw.Content, &s); err != nil {
			return err
		}
		m.Content = []Block{{Type: BlockText, Text: s}}
		return nil
	default:
		if err := json.Unmarshal(raw.Content, &m.Content); err != nil {
			return fmt.Errorf("invalid message content: %w", err)
		}
		return nil
	}
}

// Validate checks the role and that every block carries its payload.
func (m Message) Validate() error {
	switch m.Role {
	case RoleUser, RoleAssistant:
	default:
		return fmt.Errorf("invalid message role: %q", m.Role)
	}
	for i, b := range m.Content {
		switch b.Type {
		case BlockText:
		case BlockToolUse:
			if b.ToolCall == nil {
				return fmt.Errorf("block %d: tool_use without tool_call", i)
			}
		case BlockToolResult:
			if b.ToolResult == nil {
				return fmt.Errorf("block %d: tool_result without tool_result", i)
			}
		default:
			return fmt.Errorf("block %d: unknown type %q", i, b.Type)
		}
	}
	return nil
}

// Text concatenates the message's text blocks.
func (m Message) Text() string {
	var sb strings.Builder
	for _, b := range m.Content {
		if b.Type == BlockText {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

// ToolCalls returns the tool calls carried by the message.
func (m Message) ToolCalls() []ToolCall {
	var calls []ToolCall
	for _, b := range m.Content {
		if b.Type == BlockToolUse && b.ToolCall != nil {
			calls = append(calls, *b.ToolCall)
		}
	}
	return calls
}

// UserText builds a user message with a single text block.
func UserText(text string) Message {
	return Message{Role: RoleUser, Content: []Block{{Type: BlockText, Text: text}}}
}

// AssistantMessage builds an assistant message from buffered text and tool
// calls. It reports false when both are empty.
func AssistantMessage(text string, calls []ToolCall) (Message, bool) {
	if text == "" && len(calls) == 0 {
		return Message{}, false
	}
	msg := Message{Role: RoleAssistant}
	if text != "" {
		msg.Content = append(msg.Content, Block{Type: BlockText, Text: text})
	}
	for i := range calls {
		call := calls[i]
		msg.Content = append(msg.Content, Block{Type: BlockToolUse, ToolCall: &call})
	}
	return msg, true
}

// ToolResultMessage wraps a tool result in a user message.
func ToolResultMessage(res ToolResult) Message {
	return Message{Role: RoleUser, Content: []Block{{Type: BlockToolResult, ToolResult: &res}}}
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
	// Error is set by an adapter when the call's arguments could not be decoded.
	Error string `json:"error,omitempty"`
}

// ToolResult is the outcome of executing a ToolCall.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name,omitempty"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// ToolSchema is the tool description sent to providers.
type ToolSchema struct {
	Name        string
	Description string
	JSONSchema  string // raw JSON schema of the input object
}

// LLMClient is a provider adapter. Stream performs one provider call and
// returns the normalized events of its response: text and tool_call events
// followed by exactly one stop, or a single error event.
type LLMClient interface {
	Stream(ctx context.Context, messages []Message, tools []ToolSchema, systemPrompt string) iter.Seq[Event]
}
