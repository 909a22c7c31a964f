package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ChamsBouzaiene/sitesmith/internal/engine"
	"github.com/ChamsBouzaiene/sitesmith/internal/files"
	"github.com/ChamsBouzaiene/sitesmith/internal/tools"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptedLLM replays one event script per Stream call.
type scriptedLLM struct {
	scripts [][]engine.Event
	calls   int
}

func (s *scriptedLLM) Stream(ctx context.Context, _ []engine.Message, _ []engine.ToolSchema, _ string) iter.Seq[engine.Event] {
	script := s.scripts[min(s.calls, len(s.scripts)-1)]
	s.calls++
	return slices.Values(script)
}

type wireEvent struct {
	Type       string             `json:"type"`
	RequestID  string             `json:"request_id"`
	Delta      string             `json:"delta"`
	ToolCall   *engine.ToolCall   `json:"tool_call"`
	ToolResult *engine.ToolResult `json:"tool_result"`
	StopReason string             `json:"stop_reason"`
	Message    string             `json:"message"`
	Code       string             `json:"code"`
	Result     json.RawMessage    `json:"result"`
}

func newSite(t *testing.T) *files.Manager {
	t.Helper()
	root := t.TempDir()
	for rel, content := range map[string]string{
		"editor.php":        "<?php // editor",
		"index.php":         "<h1>Home</h1>",
		"about.php":         "<h1>About</h1>",
		"pages/contact.php": "contact",
	} {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
	m, err := files.NewManager(files.Config{Root: root})
	require.NoError(t, err)
	return m
}

func run(t *testing.T, s *StdIO) {
	t.Helper()
	require.NoError(t, s.Run(context.Background()))
}

func decodeOutput(t *testing.T, out *bytes.Buffer) []wireEvent {
	t.Helper()
	var events []wireEvent
	sc := bufio.NewScanner(out)
	for sc.Scan() {
		var ev wireEvent
		require.NoError(t, json.Unmarshal(sc.Bytes(), &ev), "line %q", sc.Text())
		events = append(events, ev)
	}
	return events
}

func types(events []wireEvent) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Type)
	}
	return out
}

func TestStdIO_Chat(t *testing.T) {
	m := newSite(t)
	llm := &scriptedLLM{scripts: [][]engine.Event{
		{
			engine.ToolCallEvent(engine.ToolCall{ID: "c1", Name: "read_file", Input: map[string]any{"path": "index.php"}}),
			engine.StopEvent("tool_use"),
		},
		{engine.TextEvent("The title is Home."), engine.StopEvent("end_turn")},
	}}
	agent := engine.NewAgent(llm, tools.NewRegistry(m))

	in := strings.NewReader(`{"type":"chat","request_id":"r1","message":"what is the title?"}` + "\n")
	var out bytes.Buffer
	run(t, NewStdIO(in, &out, m, WithAgent(agent)))

	events := decodeOutput(t, &out)
	assert.Equal(t, []string{"tool_call", "tool_result", "text", "stop", "done"}, types(events))
	for _, ev := range events {
		assert.Equal(t, "r1", ev.RequestID)
	}
	require.NotNil(t, events[1].ToolResult)
	assert.Equal(t, "<h1>Home</h1>", events[1].ToolResult.Content)
	assert.Equal(t, "The title is Home.", events[2].Delta)
	assert.Equal(t, "end_turn", events[3].StopReason)
}

func TestStdIO_ChatProviderError(t *testing.T) {
	m := newSite(t)
	llm := &scriptedLLM{scripts: [][]engine.Event{{engine.ErrorEvent("rate limited")}}}

	in := strings.NewReader(`{"type":"chat","request_id":"r1","message":"hi"}` + "\n")
	var out bytes.Buffer
	run(t, NewStdIO(in, &out, m, WithAgent(engine.NewAgent(llm, nil))))

	events := decodeOutput(t, &out)
	assert.Equal(t, []string{"error", "done"}, types(events))
	assert.Equal(t, "rate limited", events[0].Message)
}

func TestStdIO_ChatWithoutAgent(t *testing.T) {
	in := strings.NewReader(`{"type":"chat","request_id":"r1","message":"hi"}` + "\n")
	var out bytes.Buffer
	run(t, NewStdIO(in, &out, newSite(t)))

	events := decodeOutput(t, &out)
	assert.Equal(t, []string{"failure", "done"}, types(events))
	assert.Equal(t, "not_configured", events[0].Code)
}

func TestStdIO_FileCommands(t *testing.T) {
	m := newSite(t)
	input := strings.Join([]string{
		`{"type":"list_files","request_id":"ls"}`,
		``,
		`{"type":"write_file","request_id":"w","path":"about.php","content":"<h1>About us</h1>"}`,
		`{"type":"read_file","request_id":"r","path":"about.php"}`,
		`{"type":"list_backups","request_id":"b"}`,
		`{"type":"url_to_file","request_id":"u","url":"https://example.com/about"}`,
		`{"type":"read_file","request_id":"esc","path":"../../etc/passwd"}`,
		`{"type":"write_file","request_id":"prot","path":"editor.php","content":"x"}`,
		`{"type":"read_file","request_id":"nf","path":"missing.php"}`,
		`{"type":"restore","request_id":"bad","backup_path":"garbage"}`,
		`not json`,
	}, "\n")

	var out bytes.Buffer
	run(t, NewStdIO(strings.NewReader(input), &out, m))
	events := decodeOutput(t, &out)

	byID := map[string][]wireEvent{}
	var order []string
	for _, ev := range events {
		if _, ok := byID[ev.RequestID]; !ok {
			order = append(order, ev.RequestID)
		}
		byID[ev.RequestID] = append(byID[ev.RequestID], ev)
	}
	assert.Equal(t, []string{"ls", "w", "r", "b", "u", "esc", "prot", "nf", "bad", ""}, order, "commands are handled in order")
	for id, evs := range byID {
		require.Len(t, evs, 2, "request %q", id)
		assert.Equal(t, "done", evs[1].Type, "request %q", id)
	}

	var entries []files.Entry
	require.NoError(t, json.Unmarshal(byID["ls"][0].Result, &entries))
	var listed []string
	for _, e := range entries {
		listed = append(listed, e.Path)
	}
	assert.ElementsMatch(t, []string{"about.php", "index.php", "pages"}, listed)

	assert.JSONEq(t, `{"success":true,"path":"about.php"}`, string(byID["w"][0].Result))
	assert.JSONEq(t, `{"path":"about.php","content":"<h1>About us</h1>"}`, string(byID["r"][0].Result))

	var backups []map[string]any
	require.NoError(t, json.Unmarshal(byID["b"][0].Result, &backups))
	require.Len(t, backups, 1)
	assert.Equal(t, "about.php", backups[0]["source"])

	assert.JSONEq(t, `["about.php"]`, string(byID["u"][0].Result))

	failures := map[string]string{"esc": "path_escape", "prot": "protected_path", "nf": "not_found", "bad": "invalid_format", "": "invalid_command"}
	for id, code := range failures {
		assert.Equal(t, "failure", byID[id][0].Type, "request %q", id)
		assert.Equal(t, code, byID[id][0].Code, "request %q", id)
	}
}

func TestStdIO_RestoreAndDiff(t *testing.T) {
	m := newSite(t)
	require.NoError(t, m.Write("index.php", []byte("<h1>Changed</h1>")))
	backups, err := m.ListBackups()
	require.NoError(t, err)
	require.Len(t, backups, 1)
	name := backups[0].Name

	input := `{"type":"diff_backup","request_id":"d","backup_path":"` + name + `"}` + "\n" +
		`{"type":"restore","request_id":"rs","backup_path":"` + name + `"}` + "\n"
	var out bytes.Buffer
	run(t, NewStdIO(strings.NewReader(input), &out, m))

	events := decodeOutput(t, &out)
	require.Equal(t, []string{"result", "done", "result", "done"}, types(events))

	var d struct {
		Hunks     []json.RawMessage `json:"hunks"`
		Truncated bool              `json:"truncated"`
	}
	require.NoError(t, json.Unmarshal(events[0].Result, &d))
	assert.Len(t, d.Hunks, 1)
	assert.False(t, d.Truncated)

	assert.JSONEq(t, `{"success":true,"path":"index.php"}`, string(events[2].Result))
	data, err := m.Read("index.php")
	require.NoError(t, err)
	assert.Equal(t, "<h1>Home</h1>", string(data))
}

// failingWriter fails every write.
type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestStdIO_WriteFailureStops(t *testing.T) {
	in := strings.NewReader(strings.Repeat(`{"type":"list_backups"}`+"\n", 200))
	err := NewStdIO(in, failingWriter{}, newSite(t)).Run(context.Background())
	assert.ErrorContains(t, err, "broken pipe")
}

func TestStdIO_CancelUnblocksRead(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	srv := NewStdIO(pr, io.Discard, newSite(t))
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	_, err := io.WriteString(pw, `{"type":"list_backups","request_id":"b"}`+"\n")
	require.NoError(t, err)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
