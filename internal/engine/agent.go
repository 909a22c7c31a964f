package engine

import (
	"context"
	"fmt"
	"iter"
	"strings"
)

// Agent runs the tool-using conversation loop against one provider adapter.
// An Agent keeps no conversation state between Chat calls.
type Agent struct {
	llm    LLMClient
	tools  ToolRegistry
	config AgentConfig
}

// NewAgent creates an Agent.
func NewAgent(llm LLMClient, tools ToolRegistry, opts ...AgentOption) *Agent {
	cfg := DefaultAgentConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if tools == nil {
		tools = ToolRegistry{}
	}
	return &Agent{llm: llm, tools: tools, config: cfg}
}

// Tools returns the agent's tool registry.
func (a *Agent) Tools() ToolRegistry { return a.tools }

// Chat sends userMessage after history and returns the events of the
// exchange. Text and tool_call events are forwarded as the provider produces
// them; each executed tool yields a tool_result event. The sequence always
// ends with exactly one stop or error event, unless the consumer stops early.
func (a *Agent) Chat(ctx context.Context, userMessage string, history []Message) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		st := &State{
			Messages:      make([]Message, 0, len(history)+1),
			MaxIterations: a.config.MaxIterations,
		}
		st.Messages = append(st.Messages, history...)
		st.Append(UserText(userMessage))

		var final Event
		inYield := false
		emit := func(ev Event) bool {
			if ev.Terminal() {
				final = ev
			}
			inYield = true
			ok := yield(ev)
			inYield = false
			return ok
		}

		defer func() {
			if r := recover(); r != nil {
				if inYield {
					panic(r)
				}
				emit(ErrorEvent(fmt.Sprintf("internal error: %v", r)))
			}
			a.config.Hooks.OnDone(ctx, st, final)
		}()

		a.loop(ctx, st, emit)
	}
}

func (a *Agent) loop(ctx context.Context, st *State, emit func(Event) bool) {
	systemPrompt, err := a.config.SystemPrompt()
	if err != nil {
		emit(ErrorEvent(fmt.Sprintf("failed to build system prompt: %v", err)))
		return
	}
	schemas := a.tools.Schemas()
	hooks := a.config.Hooks

	for st.Iteration = 1; st.Iteration <= st.MaxIterations; st.Iteration++ {
		hooks.OnIterationStart(ctx, st)
		hooks.OnBeforeLLM(ctx, st, st.Messages, schemas)

		var text strings.Builder
		var calls []ToolCall
		stopReason := StopEndTurn

		for ev := range a.llm.Stream(ctx, st.Messages, schemas, systemPrompt) {
			switch ev.Type {
			case EventText:
				text.WriteString(ev.Delta)
				if !emit(ev) {
					return
				}
			case EventToolCall:
				if ev.ToolCall == nil {
					continue
				}
				calls = append(calls, *ev.ToolCall)
				if !emit(ev) {
					return
				}
			case EventStop:
				stopReason = NormalizeStopReason(ev.StopReason)
			case EventError:
				hooks.OnLLMError(ctx, st, ev.Message)
				emit(ev)
				return
			}
		}
		st.StopReason = stopReason
		hooks.OnAfterLLM(ctx, st, stopReason, calls)

		if msg, ok := AssistantMessage(text.String(), calls); ok {
			st.Append(msg)
		}

		if stopReason != StopToolUse || len(calls) == 0 {
			emit(StopEvent(stopReason))
			return
		}

		for _, call := range calls {
			res := a.execute(ctx, st, call)
			st.Append(ToolResultMessage(res))
			if !emit(ToolResultEvent(res)) {
				return
			}
		}
	}

	emit(StopEvent(StopMaxIterations))
}

// execute runs one tool call. Every failure becomes a textual result so the
// model can react to it.
func (a *Agent) execute(ctx context.Context, st *State, call ToolCall) ToolResult {
	hooks := a.config.Hooks
	hooks.OnToolCall(ctx, st, call)
	st.ToolCalls++

	res := ToolResult{ToolCallID: call.ID, Name: call.Name}
	tool, ok := a.tools[call.Name]
	switch {
	case !ok:
		res.Content = "Unknown tool: " + call.Name
	case call.Error != "":
		res.Content, res.IsError = "Error: "+call.Error, true
	default:
		args := call.Input
		if args == nil {
			args = map[string]any{}
		}
		if err := tool.ValidateArgs(args); err != nil {
			res.Content, res.IsError = "Error: "+err.Error(), true
			break
		}
		out, err := tool.Fn(ctx, args)
		if err != nil {
			res.Content, res.IsError = "Error: "+err.Error(), true
			break
		}
		res.Content = out
	}

	hooks.OnToolResult(ctx, st, call, res)
	return res
}
