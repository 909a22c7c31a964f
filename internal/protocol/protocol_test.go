package protocol

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChamsBouzaiene/sitesmith/internal/engine"
)

func TestDecodeCommand(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Command
		wantErr string
	}{
		{
			name:  "chat with string history",
			input: `{"type":"chat","request_id":"r1","message":"make the title blue","history":[{"role":"user","content":"hi"},{"role":"assistant","content":"hello"}]}`,
			want: ChatCommand{
				commandBase: commandBase{Type: CommandChat, RequestID: "r1"},
				Message:     "make the title blue",
				History: []engine.Message{
					engine.UserText("hi"),
					{Role: engine.RoleAssistant, Content: []engine.Block{{Type: engine.BlockText, Text: "hello"}}},
				},
			},
		},
		{
			name:  "list files",
			input: `{"type":"list_files","request_id":"r2","path":"pages","recursive":true,"search_pattern":"blog","strict_mode":true,"file_only":true}`,
			want: ListFilesCommand{
				commandBase:   commandBase{Type: CommandListFiles, RequestID: "r2"},
				Path:          "pages",
				Recursive:     true,
				SearchPattern: "blog",
				StrictMode:    true,
				FileOnly:      true,
			},
		},
		{
			name:  "read file",
			input: `{"type":"read_file","request_id":"r3","path":"index.php"}`,
			want:  ReadFileCommand{commandBase: commandBase{Type: CommandReadFile, RequestID: "r3"}, Path: "index.php"},
		},
		{
			name:  "write file with empty content",
			input: `{"type":"write_file","request_id":"r4","path":"a.php","content":""}`,
			want:  WriteFileCommand{commandBase: commandBase{Type: CommandWriteFile, RequestID: "r4"}, Path: "a.php"},
		},
		{
			name:  "list backups",
			input: `{"type":"list_backups","request_id":"r5"}`,
			want:  ListBackupsCommand{commandBase: commandBase{Type: CommandListBackups, RequestID: "r5"}},
		},
		{
			name:  "restore",
			input: `{"type":"restore","request_id":"r6","backup_path":"20240101-000000.000000_index.php"}`,
			want:  RestoreCommand{commandBase: commandBase{Type: CommandRestore, RequestID: "r6"}, BackupPath: "20240101-000000.000000_index.php"},
		},
		{
			name:  "url to file",
			input: `{"type":"url_to_file","request_id":"r7","url":"https://example.com/about"}`,
			want:  URLToFileCommand{commandBase: commandBase{Type: CommandURLToFile, RequestID: "r7"}, URL: "https://example.com/about"},
		},
		{name: "not json", input: `hello`, wantErr: "decode command"},
		{name: "missing type", input: `{"message":"x"}`, wantErr: "command type is required"},
		{name: "unknown type", input: `{"type":"delete_file"}`, wantErr: "unknown command type: delete_file"},
		{name: "chat without message", input: `{"type":"chat"}`, wantErr: "chat requires message"},
		{name: "chat with bad history", input: `{"type":"chat","message":"x","history":[{"role":"system","content":"x"}]}`, wantErr: "chat history[0]"},
		{name: "chat history wrong shape", input: `{"type":"chat","message":"x","history":[{"role":"user","content":7}]}`, wantErr: "decode chat"},
		{name: "read without path", input: `{"type":"read_file"}`, wantErr: "read_file requires path"},
		{name: "restore without backup", input: `{"type":"restore"}`, wantErr: "restore requires backup_path"},
		{name: "diff without backup", input: `{"type":"diff_backup"}`, wantErr: "diff_backup requires backup_path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeCommand([]byte(tt.input))
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeCommand_GeneratesRequestID(t *testing.T) {
	cmd, err := DecodeCommand([]byte(`{"type":"list_backups"}`))
	require.NoError(t, err)
	_, err = uuid.Parse(cmd.GetRequestID())
	assert.NoError(t, err)

	chat, err := DecodeCommand([]byte(`{"type":"chat","message":"hi"}`))
	require.NoError(t, err)
	assert.NotEmpty(t, chat.GetRequestID())
	assert.NotEqual(t, cmd.GetRequestID(), chat.GetRequestID())
}

func TestMarshalEvent(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  string
	}{
		{
			name:  "text",
			event: NewAgentEvent("r1", engine.TextEvent("Hello")),
			want:  `{"type":"text","request_id":"r1","delta":"Hello"}`,
		},
		{
			name: "tool call",
			event: NewAgentEvent("r1", engine.ToolCallEvent(engine.ToolCall{
				ID: "c1", Name: "read_file", Input: map[string]any{"path": "index.php"},
			})),
			want: `{"type":"tool_call","request_id":"r1","tool_call":{"id":"c1","name":"read_file","input":{"path":"index.php"}}}`,
		},
		{
			name:  "stop",
			event: NewAgentEvent("r1", engine.StopEvent(engine.StopMaxIterations)),
			want:  `{"type":"stop","request_id":"r1","stop_reason":"max_iterations"}`,
		},
		{
			name:  "error",
			event: NewAgentEvent("r1", engine.ErrorEvent("rate limited")),
			want:  `{"type":"error","request_id":"r1","message":"rate limited"}`,
		},
		{
			name:  "result",
			event: NewResultEvent("r2", []string{"about.php"}),
			want:  `{"type":"result","request_id":"r2","result":["about.php"]}`,
		},
		{
			name:  "failure",
			event: NewFailureEvent("r3", "path_escape", "path escapes project root"),
			want:  `{"type":"failure","request_id":"r3","code":"path_escape","message":"path escapes project root"}`,
		},
		{
			name:  "done",
			event: NewDoneEvent("r3"),
			want:  `{"type":"done","request_id":"r3"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := MarshalEvent(tt.event)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
			assert.NotContains(t, string(data), "\n")
		})
	}
}
