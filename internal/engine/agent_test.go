package engine

import (
	"context"
	"errors"
	"iter"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedLLM replays one event list per call and records what it was sent.
type scriptedLLM struct {
	script   [][]Event
	repeat   []Event // replayed once script is exhausted
	calls    int
	messages [][]Message
	prompts  []string
	panicOn  int // 1-based call that panics; 0 disables
}

func (s *scriptedLLM) Stream(_ context.Context, messages []Message, _ []ToolSchema, systemPrompt string) iter.Seq[Event] {
	s.calls++
	if s.panicOn == s.calls {
		panic("adapter exploded")
	}
	s.messages = append(s.messages, slices.Clone(messages))
	s.prompts = append(s.prompts, systemPrompt)
	if s.calls <= len(s.script) {
		return slices.Values(s.script[s.calls-1])
	}
	return slices.Values(s.repeat)
}

func collect(seq iter.Seq[Event]) []Event {
	var out []Event
	for ev := range seq {
		out = append(out, ev)
	}
	return out
}

func types(evs []Event) []EventType {
	out := make([]EventType, len(evs))
	for i, ev := range evs {
		out[i] = ev.Type
	}
	return out
}

func testRegistry(listCalls *int) ToolRegistry {
	reg := ToolRegistry{}
	reg.Register(Tool{
		Name:        "list_files",
		Description: "list",
		SchemaJSON:  `{"type":"object","properties":{"path":{"type":"string"}}}`,
		Fn: func(_ context.Context, args map[string]any) (string, error) {
			*listCalls++
			return `[{"name":"index.php","type":"file","path":"index.php"}]`, nil
		},
	})
	reg.Register(Tool{
		Name:        "read_file",
		Description: "read",
		SchemaJSON:  `{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`,
		Fn: func(_ context.Context, args map[string]any) (string, error) {
			return "", errors.New("boom")
		},
	})
	reg.Register(Tool{
		Name:       "explode",
		SchemaJSON: `{"type":"object"}`,
		Fn: func(context.Context, map[string]any) (string, error) {
			panic("tool exploded")
		},
	})
	return reg
}

func TestChat_PlainText(t *testing.T) {
	llm := &scriptedLLM{script: [][]Event{{TextEvent("Hello"), StopEvent("end_turn")}}}
	var listCalls int
	agent := NewAgent(llm, testRegistry(&listCalls))

	evs := collect(agent.Chat(context.Background(), "hi", nil))

	require.Equal(t, []EventType{EventText, EventStop}, types(evs))
	assert.Equal(t, "Hello", evs[0].Delta)
	assert.Equal(t, StopEndTurn, evs[1].StopReason)
	assert.Equal(t, 1, llm.calls)
	assert.Zero(t, listCalls)
}

func TestChat_ToolRecursion(t *testing.T) {
	call := ToolCall{ID: "call_1", Name: "list_files", Input: map[string]any{"path": ""}}
	llm := &scriptedLLM{script: [][]Event{
		{ToolCallEvent(call), StopEvent("tool_use")},
		{TextEvent("There is one file."), StopEvent("end_turn")},
	}}
	var listCalls int
	agent := NewAgent(llm, testRegistry(&listCalls))

	evs := collect(agent.Chat(context.Background(), "what files?", nil))

	require.Equal(t, []EventType{EventToolCall, EventToolResult, EventText, EventStop}, types(evs))
	assert.Equal(t, 1, listCalls)
	assert.Equal(t, 2, llm.calls)

	res := evs[1].ToolResult
	require.NotNil(t, res)
	assert.Equal(t, "call_1", res.ToolCallID)
	assert.False(t, res.IsError)

	second := llm.messages[1]
	require.Len(t, second, 3)
	assert.Equal(t, RoleUser, second[0].Role)
	assert.Equal(t, RoleAssistant, second[1].Role)
	assert.Equal(t, []ToolCall{call}, second[1].ToolCalls())
	require.Len(t, second[2].Content, 1)
	assert.Equal(t, BlockToolResult, second[2].Content[0].Type)
	assert.Equal(t, "call_1", second[2].Content[0].ToolResult.ToolCallID)
}

func TestChat_MaxIterations(t *testing.T) {
	llm := &scriptedLLM{repeat: []Event{
		ToolCallEvent(ToolCall{ID: "c", Name: "list_files", Input: map[string]any{}}),
		StopEvent("tool_calls"),
	}}
	var listCalls int
	agent := NewAgent(llm, testRegistry(&listCalls), WithMaxIterations(3))

	evs := collect(agent.Chat(context.Background(), "loop", nil))

	last := evs[len(evs)-1]
	assert.Equal(t, EventStop, last.Type)
	assert.Equal(t, StopMaxIterations, last.StopReason)
	assert.Equal(t, 3, llm.calls)
	assert.Equal(t, 3, listCalls)
}

func TestChat_DefaultIterationCap(t *testing.T) {
	llm := &scriptedLLM{repeat: []Event{
		ToolCallEvent(ToolCall{ID: "c", Name: "list_files"}),
		StopEvent("tool_use"),
	}}
	var listCalls int
	evs := collect(NewAgent(llm, testRegistry(&listCalls)).Chat(context.Background(), "loop", nil))

	assert.Equal(t, StopMaxIterations, evs[len(evs)-1].StopReason)
	assert.Equal(t, DefaultMaxIterations, llm.calls)
}

func TestChat_ProviderErrorIsTerminal(t *testing.T) {
	llm := &scriptedLLM{script: [][]Event{{ErrorEvent("rate limited")}}}
	var listCalls int
	evs := collect(NewAgent(llm, testRegistry(&listCalls)).Chat(context.Background(), "hi", nil))

	require.Equal(t, []EventType{EventError}, types(evs))
	assert.Equal(t, "rate limited", evs[0].Message)
	assert.Equal(t, 1, llm.calls)
}

func TestChat_ToolFailuresBecomeResults(t *testing.T) {
	tests := []struct {
		name    string
		call    ToolCall
		want    string
		isError bool
	}{
		{
			name: "unknown tool",
			call: ToolCall{ID: "1", Name: "delete_everything", Input: map[string]any{}},
			want: "Unknown tool: delete_everything",
		},
		{
			name:    "tool error",
			call:    ToolCall{ID: "2", Name: "read_file", Input: map[string]any{"path": "x"}},
			want:    "Error: boom",
			isError: true,
		},
		{
			name:    "schema violation",
			call:    ToolCall{ID: "3", Name: "read_file", Input: map[string]any{}},
			want:    "Error: tool read_file validation failed",
			isError: true,
		},
		{
			name:    "undecodable arguments",
			call:    ToolCall{ID: "4", Name: "read_file", Error: "invalid JSON arguments"},
			want:    "Error: invalid JSON arguments",
			isError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &scriptedLLM{script: [][]Event{
				{ToolCallEvent(tt.call), StopEvent("tool_use")},
				{TextEvent("ok"), StopEvent("end_turn")},
			}}
			var listCalls int
			evs := collect(NewAgent(llm, testRegistry(&listCalls)).Chat(context.Background(), "go", nil))

			require.Equal(t, []EventType{EventToolCall, EventToolResult, EventText, EventStop}, types(evs))
			res := evs[1].ToolResult
			assert.Contains(t, res.Content, tt.want)
			assert.Equal(t, tt.isError, res.IsError)
			assert.Equal(t, tt.call.ID, res.ToolCallID)
		})
	}
}

func TestChat_SequentialToolsInOrder(t *testing.T) {
	llm := &scriptedLLM{script: [][]Event{
		{
			TextEvent("Checking."),
			ToolCallEvent(ToolCall{ID: "a", Name: "list_files"}),
			ToolCallEvent(ToolCall{ID: "b", Name: "nope"}),
			StopEvent("tool_use"),
		},
		{StopEvent("end_turn")},
	}}
	var listCalls int
	evs := collect(NewAgent(llm, testRegistry(&listCalls)).Chat(context.Background(), "go", nil))

	var ids []string
	for _, ev := range evs {
		if ev.Type == EventToolResult {
			ids = append(ids, ev.ToolResult.ToolCallID)
		}
	}
	assert.Equal(t, []string{"a", "b"}, ids)

	second := llm.messages[1]
	require.Len(t, second, 4)
	assert.Equal(t, "Checking.", second[1].Text())
	assert.Len(t, second[1].ToolCalls(), 2)
}

func TestChat_ToolCallsWithoutToolUseStop(t *testing.T) {
	llm := &scriptedLLM{script: [][]Event{{
		ToolCallEvent(ToolCall{ID: "a", Name: "list_files"}),
		StopEvent("end_turn"),
	}}}
	var listCalls int
	evs := collect(NewAgent(llm, testRegistry(&listCalls)).Chat(context.Background(), "go", nil))

	assert.Equal(t, []EventType{EventToolCall, EventStop}, types(evs))
	assert.Zero(t, listCalls)
}

func TestChat_PanicsBecomeErrorEvent(t *testing.T) {
	t.Run("adapter", func(t *testing.T) {
		llm := &scriptedLLM{panicOn: 1}
		var listCalls int
		evs := collect(NewAgent(llm, testRegistry(&listCalls)).Chat(context.Background(), "hi", nil))
		require.Equal(t, []EventType{EventError}, types(evs))
		assert.Contains(t, evs[0].Message, "adapter exploded")
	})

	t.Run("tool", func(t *testing.T) {
		llm := &scriptedLLM{script: [][]Event{
			{ToolCallEvent(ToolCall{ID: "x", Name: "explode"}), StopEvent("tool_use")},
		}}
		var listCalls int
		evs := collect(NewAgent(llm, testRegistry(&listCalls)).Chat(context.Background(), "hi", nil))
		require.Equal(t, []EventType{EventToolCall, EventError}, types(evs))
		assert.Contains(t, evs[1].Message, "tool exploded")
	})
}

func TestChat_ConsumerStopsEarly(t *testing.T) {
	llm := &scriptedLLM{repeat: []Event{
		TextEvent("thinking"),
		ToolCallEvent(ToolCall{ID: "c", Name: "list_files"}),
		StopEvent("tool_use"),
	}}
	var listCalls int
	agent := NewAgent(llm, testRegistry(&listCalls))

	for ev := range agent.Chat(context.Background(), "hi", nil) {
		if ev.Type == EventText {
			break
		}
	}
	assert.Equal(t, 1, llm.calls)
	assert.Zero(t, listCalls)
}

func TestChat_SystemPromptBuiltOncePerCall(t *testing.T) {
	builds := 0
	llm := &scriptedLLM{script: [][]Event{
		{ToolCallEvent(ToolCall{ID: "a", Name: "list_files"}), StopEvent("tool_use")},
		{StopEvent("end_turn")},
	}}
	var listCalls int
	agent := NewAgent(llm, testRegistry(&listCalls), WithSystemPrompt(func() (string, error) {
		builds++
		return "be careful", nil
	}))

	collect(agent.Chat(context.Background(), "hi", nil))
	assert.Equal(t, 1, builds)
	assert.Equal(t, []string{"be careful", "be careful"}, llm.prompts)

	failing := NewAgent(llm, nil, WithSystemPrompt(func() (string, error) {
		return "", errors.New("addendum unreadable")
	}))
	evs := collect(failing.Chat(context.Background(), "hi", nil))
	require.Equal(t, []EventType{EventError}, types(evs))
	assert.Contains(t, evs[0].Message, "addendum unreadable")
}

func TestChat_HistoryIsPrepended(t *testing.T) {
	llm := &scriptedLLM{script: [][]Event{{StopEvent("")}}}
	history := []Message{UserText("earlier"), {Role: RoleAssistant, Content: []Block{{Type: BlockText, Text: "reply"}}}}
	evs := collect(NewAgent(llm, nil).Chat(context.Background(), "now", history))

	assert.Equal(t, []EventType{EventStop}, types(evs))
	assert.Equal(t, StopEndTurn, evs[0].StopReason)
	require.Len(t, llm.messages[0], 3)
	assert.Equal(t, "now", llm.messages[0][2].Text())
	assert.Len(t, history, 2)
}

type recordingHook struct {
	NopHook
	toolResults []ToolResult
	final       Event
	done        int
}

func (h *recordingHook) OnToolResult(_ context.Context, _ *State, _ ToolCall, r ToolResult) {
	h.toolResults = append(h.toolResults, r)
}

func (h *recordingHook) OnDone(_ context.Context, _ *State, final Event) {
	h.final = final
	h.done++
}

func TestChat_Hooks(t *testing.T) {
	llm := &scriptedLLM{script: [][]Event{
		{ToolCallEvent(ToolCall{ID: "a", Name: "list_files"}), StopEvent("tool_use")},
		{StopEvent("end_turn")},
	}}
	hook := &recordingHook{}
	var listCalls int
	collect(NewAgent(llm, testRegistry(&listCalls), WithHooks(hook)).Chat(context.Background(), "hi", nil))

	assert.Len(t, hook.toolResults, 1)
	assert.Equal(t, 1, hook.done)
	assert.Equal(t, StopEndTurn, hook.final.StopReason)
}

func TestHistoryBuilderMatchesEngineTranscript(t *testing.T) {
	llm := &scriptedLLM{script: [][]Event{
		{TextEvent("Let me look."), ToolCallEvent(ToolCall{ID: "a", Name: "list_files", Input: map[string]any{}}), StopEvent("tool_use")},
		{TextEvent("Done."), StopEvent("end_turn")},
	}}
	var listCalls int
	agent := NewAgent(llm, testRegistry(&listCalls))

	hb := NewHistoryBuilder(nil, "hi")
	for ev := range agent.Chat(context.Background(), "hi", nil) {
		hb.Add(ev)
	}
	got := hb.Messages()

	// The provider saw everything except the final assistant reply.
	require.Len(t, got, 4)
	assert.Equal(t, llm.messages[1], got[:3])
	assert.Equal(t, "Done.", got[3].Text())
}
