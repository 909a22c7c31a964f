package providers

import (
	"context"
	"errors"
	"fmt"
	"iter"

	openai "github.com/meguminnnnnnnnn/go-openai"
	"go.uber.org/zap"

	"github.com/ChamsBouzaiene/sitesmith/internal/engine"
)

// OpenAIClient implements engine.LLMClient with the Chat Completions API. It
// also serves OpenAI-compatible endpoints through a base URL.
type OpenAIClient struct {
	client    *openai.Client
	model     string
	name      string
	maxTokens int
	log       *zap.Logger
}

// NewOpenAIClient creates a new OpenAI adapter.
func NewOpenAIClient(apiKey, model string, opts ...Option) *OpenAIClient {
	o := applyOptions(opts)
	config := openai.DefaultConfig(apiKey)
	if o.baseURL != "" {
		config.BaseURL = o.baseURL
	}
	config.HTTPClient = o.httpClient

	return &OpenAIClient{
		client:    openai.NewClientWithConfig(config),
		model:     model,
		name:      "openai",
		maxTokens: o.maxTokens,
		log:       o.logger,
	}
}

// Stream performs one blocking chat completion and yields its content as
// events. Failures yield a single error event.
func (c *OpenAIClient) Stream(ctx context.Context, messages []engine.Message, tools []engine.ToolSchema, systemPrompt string) iter.Seq[engine.Event] {
	return func(yield func(engine.Event) bool) {
		for _, ev := range c.call(ctx, messages, tools, systemPrompt) {
			if !yield(ev) {
				return
			}
		}
	}
}

func (c *OpenAIClient) call(ctx context.Context, messages []engine.Message, tools []engine.ToolSchema, systemPrompt string) []engine.Event {
	defs := make([]openai.Tool, 0, len(tools))
	for _, ts := range tools {
		schema, err := parseSchema(ts)
		if err != nil {
			return []engine.Event{engine.ErrorEvent(err.Error())}
		}
		defs = append(defs, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        ts.Name,
				Description: ts.Description,
				Parameters:  schema,
			},
		})
	}

	req := openai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  toOpenAIMessages(systemPrompt, messages),
		MaxTokens: c.maxTokens,
	}
	if len(defs) > 0 {
		req.Tools = defs
		req.ToolChoice = "auto"
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		status, message := openAIErrorDetails(err)
		return failure(c.log, c.name, err, status, message)
	}
	if len(resp.Choices) == 0 {
		return []engine.Event{engine.ErrorEvent(fmt.Sprintf("empty response from %s", c.name))}
	}

	choice := resp.Choices[0]
	c.log.Debug("chat completion response",
		zap.String("provider", c.name),
		zap.String("finish_reason", string(choice.FinishReason)),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens))

	var events []engine.Event
	if choice.Message.Content != "" {
		events = append(events, engine.TextEvent(choice.Message.Content))
	}
	for _, tc := range choice.Message.ToolCalls {
		call := engine.ToolCall{ID: toolCallID(tc.ID), Name: tc.Function.Name}
		args, err := decodeArgs([]byte(tc.Function.Arguments))
		if err != nil {
			call.Error = err.Error()
		}
		call.Input = args
		events = append(events, engine.ToolCallEvent(call))
	}

	reason := engine.NormalizeStopReason(string(choice.FinishReason))
	// Some compatible servers report "stop" while returning tool calls.
	if reason == engine.StopEndTurn && len(choice.Message.ToolCalls) > 0 {
		reason = engine.StopToolUse
	}
	return append(events, engine.StopEvent(reason))
}

// openAIErrorDetails extracts the HTTP status and the provider's error message
// from an SDK error.
func openAIErrorDetails(err error) (int, string) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode, apiErr.Message
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode, ""
	}
	return statusFromText(err), ""
}

// toOpenAIMessages translates the conversation. The system prompt leads,
// tool results become tool-role messages and tool_use blocks become
// tool_calls with JSON-string arguments. Results without a matching call are
// dropped since the API rejects them.
func toOpenAIMessages(systemPrompt string, messages []engine.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if systemPrompt != "" {
		out = append(out, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}

	seen := map[string]bool{}
	for _, msg := range messages {
		if msg.Role == engine.RoleAssistant {
			calls := msg.ToolCalls()
			text := msg.Text()
			if text == "" && len(calls) == 0 {
				continue
			}
			am := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: text}
			for _, tc := range calls {
				seen[tc.ID] = true
				am.ToolCalls = append(am.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: encodeArgs(tc.Input),
					},
				})
			}
			// An empty string may serialize as null, which some servers reject.
			if am.Content == "" {
				am.Content = " "
			}
			out = append(out, am)
			continue
		}

		for _, b := range msg.Content {
			switch b.Type {
			case engine.BlockText:
				if b.Text != "" {
					out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: b.Text})
				}
			case engine.BlockToolResult:
				if b.ToolResult == nil || !seen[b.ToolResult.ToolCallID] {
					continue
				}
				out = append(out, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					ToolCallID: b.ToolResult.ToolCallID,
					Content:    resultContent(b.ToolResult),
				})
			}
		}
	}
	return out
}

// WithName labels the adapter in logs and messages; used by compatible presets.
func (c *OpenAIClient) WithName(name string) *OpenAIClient {
	c.name = name
	return c
}
