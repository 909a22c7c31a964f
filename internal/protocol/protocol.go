// Package protocol defines the newline-delimited JSON messages exchanged over
// the stdio transport. Every command produces zero or more events followed by
// exactly one done event carrying the same request_id.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ChamsBouzaiene/sitesmith/internal/engine"
)

// CommandType enumerates all supported client -> server commands.
type CommandType string

const (
	CommandChat        CommandType = "chat"
	CommandListFiles   CommandType = "list_files"
	CommandReadFile    CommandType = "read_file"
	CommandWriteFile   CommandType = "write_file"
	CommandListBackups CommandType = "list_backups"
	CommandRestore     CommandType = "restore"
	CommandDiffBackup  CommandType = "diff_backup"
	CommandURLToFile   CommandType = "url_to_file"
)

// Command is a marker interface implemented by all protocol commands.
type Command interface {
	GetType() CommandType
	GetRequestID() string
}

type commandBase struct {
	Type      CommandType `json:"type"`
	RequestID string      `json:"request_id,omitempty"`
}

func (c commandBase) GetType() CommandType { return c.Type }
func (c commandBase) GetRequestID() string { return c.RequestID }

// ChatCommand sends one user message along with the prior conversation.
type ChatCommand struct {
	commandBase
	Message string           `json:"message"`
	History []engine.Message `json:"history,omitempty"`
}

// ListFilesCommand lists a directory of the project.
type ListFilesCommand struct {
	commandBase
	Path          string `json:"path"`
	Recursive     bool   `json:"recursive,omitempty"`
	SearchPattern string `json:"search_pattern,omitempty"`
	StrictMode    bool   `json:"strict_mode,omitempty"`
	FileOnly      bool   `json:"file_only,omitempty"`
}

// ReadFileCommand reads one file.
type ReadFileCommand struct {
	commandBase
	Path string `json:"path"`
}

// WriteFileCommand replaces the content of one file.
type WriteFileCommand struct {
	commandBase
	Path    string `json:"path"`
	Content string `json:"content"`
}

// ListBackupsCommand lists the backups, newest first.
type ListBackupsCommand struct {
	commandBase
}

// RestoreCommand restores a backup over its original file.
type RestoreCommand struct {
	commandBase
	BackupPath string `json:"backup_path"`
}

// DiffBackupCommand compares a backup with the live file.
type DiffBackupCommand struct {
	commandBase
	BackupPath string `json:"backup_path"`
}

// URLToFileCommand maps a site URL to candidate source files.
type URLToFileCommand struct {
	commandBase
	URL string `json:"url"`
}

// DecodeCommand converts one JSON line into a typed command. A missing
// request_id is replaced by a fresh one.
func DecodeCommand(data []byte) (Command, error) {
	var base commandBase
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("decode command: %w", err)
	}
	if base.RequestID == "" {
		base.RequestID = NewRequestID()
	}

	switch base.Type {
	case CommandChat:
		var cmd ChatCommand
		if err := decode(data, base.Type, &cmd); err != nil {
			return nil, err
		}
		if cmd.Message == "" {
			return nil, errors.New("chat requires message")
		}
		for i, m := range cmd.History {
			if err := m.Validate(); err != nil {
				return nil, fmt.Errorf("chat history[%d]: %w", i, err)
			}
		}
		cmd.commandBase = base
		return cmd, nil
	case CommandListFiles:
		var cmd ListFilesCommand
		if err := decode(data, base.Type, &cmd); err != nil {
			return nil, err
		}
		cmd.commandBase = base
		return cmd, nil
	case CommandReadFile:
		var cmd ReadFileCommand
		if err := decode(data, base.Type, &cmd); err != nil {
			return nil, err
		}
		if cmd.Path == "" {
			return nil, errors.New("read_file requires path")
		}
		cmd.commandBase = base
		return cmd, nil
	case CommandWriteFile:
		var cmd WriteFileCommand
		if err := decode(data, base.Type, &cmd); err != nil {
			return nil, err
		}
		if cmd.Path == "" {
			return nil, errors.New("write_file requires path")
		}
		cmd.commandBase = base
		return cmd, nil
	case CommandListBackups:
		return ListBackupsCommand{commandBase: base}, nil
	case CommandRestore:
		var cmd RestoreCommand
		if err := decode(data, base.Type, &cmd); err != nil {
			return nil, err
		}
		if cmd.BackupPath == "" {
			return nil, errors.New("restore requires backup_path")
		}
		cmd.commandBase = base
		return cmd, nil
	case CommandDiffBackup:
		var cmd DiffBackupCommand
		if err := decode(data, base.Type, &cmd); err != nil {
			return nil, err
		}
		if cmd.BackupPath == "" {
			return nil, errors.New("diff_backup requires backup_path")
		}
		cmd.commandBase = base
		return cmd, nil
	case CommandURLToFile:
		var cmd URLToFileCommand
		if err := decode(data, base.Type, &cmd); err != nil {
			return nil, err
		}
		cmd.commandBase = base
		return cmd, nil
	case "":
		return nil, errors.New("command type is required")
	default:
		return nil, fmt.Errorf("unknown command type: %s", base.Type)
	}
}

func decode(data []byte, typ CommandType, cmd Command) error {
	if err := json.Unmarshal(data, cmd); err != nil {
		return fmt.Errorf("decode %s: %w", typ, err)
	}
	return nil
}

// NewRequestID generates a new opaque request identifier.
func NewRequestID() string {
	return uuid.NewString()
}

// EventType enumerates server -> client events.
type EventType string

const (
	EventText       EventType = EventType(engine.EventText)
	EventToolCall   EventType = EventType(engine.EventToolCall)
	EventToolResult EventType = EventType(engine.EventToolResult)
	EventStop       EventType = EventType(engine.EventStop)
	EventError      EventType = EventType(engine.EventError)
	EventResult     EventType = "result"
	EventFailure    EventType = "failure"
	EventDone       EventType = "done"
)

// Event is implemented by every outgoing message.
type Event interface {
	isEvent()
	GetType() EventType
	GetRequestID() string
}

// MarshalEvent serializes an event into one JSON line, without the newline.
func MarshalEvent(e Event) ([]byte, error) {
	return json.Marshal(e)
}

type eventBase struct {
	Type      EventType `json:"type"`
	RequestID string    `json:"request_id"`
}

func (eventBase) isEvent() {}

func (e eventBase) GetType() EventType   { return e.Type }
func (e eventBase) GetRequestID() string { return e.RequestID }

// AgentEvent forwards one agent event of a chat.
type AgentEvent struct {
	eventBase
	Delta      string             `json:"delta,omitempty"`
	ToolCall   *engine.ToolCall   `json:"tool_call,omitempty"`
	ToolResult *engine.ToolResult `json:"tool_result,omitempty"`
	StopReason string             `json:"stop_reason,omitempty"`
	Message    string             `json:"message,omitempty"`
}

// NewAgentEvent wraps an agent event for the wire.
func NewAgentEvent(requestID string, ev engine.Event) AgentEvent {
	return AgentEvent{
		eventBase:  eventBase{Type: EventType(ev.Type), RequestID: requestID},
		Delta:      ev.Delta,
		ToolCall:   ev.ToolCall,
		ToolResult: ev.ToolResult,
		StopReason: ev.StopReason,
		Message:    ev.Message,
	}
}

// ResultEvent carries the payload of a successful direct file operation.
type ResultEvent struct {
	eventBase
	Result any `json:"result"`
}

// NewResultEvent constructs a result event.
func NewResultEvent(requestID string, result any) ResultEvent {
	return ResultEvent{eventBase: eventBase{Type: EventResult, RequestID: requestID}, Result: result}
}

// FailureEvent reports a failed command with a machine-readable code.
type FailureEvent struct {
	eventBase
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Failure codes that are not file-operation taxonomy codes.
const (
	CodeInvalidCommand = "invalid_command"
	CodeNotConfigured  = "not_configured"
)

// NewFailureEvent constructs a failure event.
func NewFailureEvent(requestID, code, message string) FailureEvent {
	return FailureEvent{
		eventBase: eventBase{Type: EventFailure, RequestID: requestID},
		Code:      code,
		Message:   message,
	}
}

// DoneEvent terminates the events of one request.
type DoneEvent struct {
	eventBase
}

// NewDoneEvent constructs a done event.
func NewDoneEvent(requestID string) DoneEvent {
	return DoneEvent{eventBase: eventBase{Type: EventDone, RequestID: requestID}}
}
