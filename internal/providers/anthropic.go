package providers

import (
	"context"
	"encoding/json"
	"errors"
	"iter"

	anthropic "github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"

	"github.com/ChamsBouzaiene/sitesmith/internal/engine"
)

// AnthropicClient implements engine.LLMClient with the Anthropic Messages API.
type AnthropicClient struct {
	client    *anthropic.Client
	model     string
	maxTokens int
	log       *zap.Logger
}

// NewAnthropicClient creates a new Anthropic adapter.
func NewAnthropicClient(apiKey, model string, opts ...Option) *AnthropicClient {
	o := applyOptions(opts)
	clientOpts := []anthropic.ClientOption{anthropic.WithHTTPClient(o.httpClient)}
	if o.baseURL != "" {
		clientOpts = append(clientOpts, anthropic.WithBaseURL(o.baseURL))
	}
	return &AnthropicClient{
		client:    anthropic.NewClient(apiKey, clientOpts...),
		model:     model,
		maxTokens: o.maxTokens,
		log:       o.logger,
	}
}

// Stream performs one blocking Messages call and yields its content as
// events. Failures yield a single error event.
func (c *AnthropicClient) Stream(ctx context.Context, messages []engine.Message, tools []engine.ToolSchema, systemPrompt string) iter.Seq[engine.Event] {
	return func(yield func(engine.Event) bool) {
		for _, ev := range c.call(ctx, messages, tools, systemPrompt) {
			if !yield(ev) {
				return
			}
		}
	}
}

func (c *AnthropicClient) call(ctx context.Context, messages []engine.Message, tools []engine.ToolSchema, systemPrompt string) []engine.Event {
	toolDefs := make([]anthropic.ToolDefinition, 0, len(tools))
	for _, ts := range tools {
		schema, err := parseSchema(ts)
		if err != nil {
			return []engine.Event{engine.ErrorEvent(err.Error())}
		}
		toolDefs = append(toolDefs, anthropic.ToolDefinition{
			Name:        ts.Name,
			Description: ts.Description,
			InputSchema: schema,
		})
	}

	req := anthropic.MessagesRequest{
		Model:     anthropic.Model(c.model),
		Messages:  toAnthropicMessages(messages),
		MaxTokens: c.maxTokens,
	}
	if systemPrompt != "" {
		req.MultiSystem = []anthropic.MessageSystemPart{{Type: "text", Text: systemPrompt}}
	}
	if len(toolDefs) > 0 {
		req.Tools = toolDefs
	}

	resp, err := c.client.CreateMessages(ctx, req)
	if err != nil {
		status, message := anthropicErrorDetails(err)
		return failure(c.log, "anthropic", err, status, message)
	}

	c.log.Debug("anthropic response",
		zap.String("stop_reason", string(resp.StopReason)),
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens))

	var events []engine.Event
	for _, block := range resp.Content {
		switch block.Type {
		case anthropic.MessagesContentTypeText:
			if block.Text != nil && *block.Text != "" {
				events = append(events, engine.TextEvent(*block.Text))
			}
		case "tool_use":
			if block.MessageContentToolUse == nil || block.Name == "" {
				continue
			}
			call := engine.ToolCall{ID: toolCallID(block.ID), Name: block.Name}
			args, err := decodeArgs(block.Input)
			if err != nil {
				call.Error = err.Error()
			}
			call.Input = args
			events = append(events, engine.ToolCallEvent(call))
		}
	}
	return append(events, engine.StopEvent(engine.NormalizeStopReason(string(resp.StopReason))))
}

// anthropicErrorDetails extracts the HTTP status and the provider's error
// message from an SDK error.
func anthropicErrorDetails(err error) (int, string) {
	status := statusFromText(err)
	var reqErr *anthropic.RequestError
	if errors.As(err, &reqErr) {
		status = reqErr.StatusCode
	}
	var message string
	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) {
		message = apiErr.Message
	}
	return status, message
}

// toAnthropicMessages translates the conversation. Tool results stay in user
// messages, consecutive messages of the same role are merged, and results
// whose tool_use never appeared are dropped since the API rejects them.
func toAnthropicMessages(messages []engine.Message) []anthropic.Message {
	out := make([]anthropic.Message, 0, len(messages))
	seen := map[string]bool{}

	for _, msg := range messages {
		role := anthropic.RoleUser
		if msg.Role == engine.RoleAssistant {
			role = anthropic.RoleAssistant
		}

		var content []anthropic.MessageContent
		for _, b := range msg.Content {
			switch b.Type {
			case engine.BlockText:
				if b.Text != "" {
					content = append(content, anthropic.NewTextMessageContent(b.Text))
				}
			case engine.BlockToolUse:
				if b.ToolCall == nil || role != anthropic.RoleAssistant {
					continue
				}
				seen[b.ToolCall.ID] = true
				input, _ := json.Marshal(b.ToolCall.Input)
				if b.ToolCall.Input == nil {
					input = []byte("{}")
				}
				content = append(content, anthropic.NewToolUseMessageContent(b.ToolCall.ID, b.ToolCall.Name, json.RawMessage(input)))
			case engine.BlockToolResult:
				if b.ToolResult == nil || !seen[b.ToolResult.ToolCallID] {
					continue
				}
				content = append(content, anthropic.NewToolResultMessageContent(b.ToolResult.ToolCallID, resultContent(b.ToolResult), b.ToolResult.IsError))
			}
		}
		if len(content) == 0 {
			continue
		}

		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content = append(out[n-1].Content, content...)
			continue
		}
		out = append(out, anthropic.Message{Role: role, Content: content})
	}
	return out
}
