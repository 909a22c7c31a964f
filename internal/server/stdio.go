// Package server runs the stdio transport: one JSON command per input line,
// one JSON event per output line.
package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ChamsBouzaiene/sitesmith/internal/backup"
	"github.com/ChamsBouzaiene/sitesmith/internal/diff"
	"github.com/ChamsBouzaiene/sitesmith/internal/engine"
	"github.com/ChamsBouzaiene/sitesmith/internal/files"
	"github.com/ChamsBouzaiene/sitesmith/internal/protocol"
)

const maxLineSize = 16 << 20

// Chatter runs one conversational exchange.
type Chatter interface {
	Chat(ctx context.Context, userMessage string, history []engine.Message) iter.Seq[engine.Event]
}

// FileService is the sandboxed file surface exposed to direct commands.
type FileService interface {
	List(dir string, opts files.ListOptions) ([]files.Entry, error)
	Read(path string) ([]byte, error)
	Write(path string, data []byte) error
	ListBackups() ([]backup.Record, error)
	Restore(backupPath string) (string, error)
	DiffBackup(backupPath string) ([]diff.Hunk, bool, error)
	URLToFile(rawURL string) []string
}

// StdIO serves protocol commands read from in and writes events to out.
// Commands are handled one at a time, in arrival order.
type StdIO struct {
	in    io.Reader
	out   io.Writer
	agent Chatter
	files FileService
	log   *zap.Logger
}

// Option configures a StdIO server.
type Option func(*StdIO)

// WithLogger sets the logger. Logs never go to out.
func WithLogger(l *zap.Logger) Option {
	return func(s *StdIO) {
		if l != nil {
			s.log = l
		}
	}
}

// WithAgent enables chat commands. Without an agent they fail with
// code not_configured.
func WithAgent(a Chatter) Option {
	return func(s *StdIO) { s.agent = a }
}

// NewStdIO creates a server.
func NewStdIO(in io.Reader, out io.Writer, fs FileService, opts ...Option) *StdIO {
	s := &StdIO{in: in, out: out, files: fs, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run serves until the input ends or ctx is cancelled. An input that is an
// io.Closer is closed once serving stops, which unblocks a pending read.
func (s *StdIO) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	if c, ok := s.in.(io.Closer); ok {
		stop := context.AfterFunc(gctx, func() { _ = c.Close() })
		defer stop()
	}

	lines := make(chan string)
	events := make(chan protocol.Event, 64)

	g.Go(func() error {
		defer close(lines)
		return s.read(gctx, lines)
	})
	g.Go(func() error {
		defer close(events)
		return s.process(gctx, lines, events)
	})
	g.Go(func() error {
		return s.write(events)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (s *StdIO) read(ctx context.Context, lines chan<- string) error {
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		select {
		case lines <- line:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read command: %w", err)
	}
	return nil
}

func (s *StdIO) process(ctx context.Context, lines <-chan string, events chan<- protocol.Event) error {
	emit := func(ev protocol.Event) error {
		select {
		case events <- ev:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for line := range lines {
		if err := s.handleLine(ctx, line, emit); err != nil {
			return err
		}
	}
	return nil
}

// write flushes after every event so a client sees each line immediately.
func (s *StdIO) write(events <-chan protocol.Event) error {
	w := bufio.NewWriter(s.out)
	for ev := range events {
		payload, err := protocol.MarshalEvent(ev)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		if _, err := w.Write(append(payload, '\n')); err != nil {
			return fmt.Errorf("write event: %w", err)
		}
		if err := w.Flush(); err != nil {
			return fmt.Errorf("flush event: %w", err)
		}
	}
	return nil
}

// handleLine decodes and executes one command. The returned error is only
// non-nil when events can no longer be delivered.
func (s *StdIO) handleLine(ctx context.Context, line string, emit func(protocol.Event) error) error {
	cmd, err := protocol.DecodeCommand([]byte(line))
	if err != nil {
		s.log.Warn("invalid command", zap.Error(err), zap.String("line", truncate(line, 256)))
		if err := emit(protocol.NewFailureEvent("", protocol.CodeInvalidCommand, err.Error())); err != nil {
			return err
		}
		return emit(protocol.NewDoneEvent(""))
	}

	id := cmd.GetRequestID()
	log := s.log.With(zap.String("request_id", id), zap.String("command", string(cmd.GetType())))
	log.Debug("command received")

	var result any
	switch c := cmd.(type) {
	case protocol.ChatCommand:
		if err := s.chat(ctx, c, emit); err != nil {
			return err
		}
		return emit(protocol.NewDoneEvent(id))
	case protocol.ListFilesCommand:
		var entries []files.Entry
		entries, err = s.files.List(c.Path, files.ListOptions{
			Recursive:     c.Recursive,
			SearchPattern: c.SearchPattern,
			StrictMode:    c.StrictMode,
			FileOnly:      c.FileOnly,
		})
		if entries == nil {
			entries = []files.Entry{}
		}
		result = entries
	case protocol.ReadFileCommand:
		var data []byte
		if data, err = s.files.Read(c.Path); err == nil {
			result = map[string]any{"path": c.Path, "content": string(data)}
		}
	case protocol.WriteFileCommand:
		if err = s.files.Write(c.Path, []byte(c.Content)); err == nil {
			result = map[string]any{"success": true, "path": c.Path}
		}
	case protocol.ListBackupsCommand:
		var records []backup.Record
		records, err = s.files.ListBackups()
		if records == nil {
			records = []backup.Record{}
		}
		result = records
	case protocol.RestoreCommand:
		var rel string
		if rel, err = s.files.Restore(c.BackupPath); err == nil {
			result = map[string]any{"success": true, "path": rel}
		}
	case protocol.DiffBackupCommand:
		var hunks []diff.Hunk
		var truncated bool
		if hunks, truncated, err = s.files.DiffBackup(c.BackupPath); err == nil {
			if hunks == nil {
				hunks = []diff.Hunk{}
			}
			result = map[string]any{"hunks": hunks, "truncated": truncated}
		}
	case protocol.URLToFileCommand:
		result = s.files.URLToFile(c.URL)
	}

	if err != nil {
		code := files.Classify(err)
		log.Info("command failed", zap.String("code", code), zap.Error(err))
		if err := emit(protocol.NewFailureEvent(id, code, err.Error())); err != nil {
			return err
		}
		return emit(protocol.NewDoneEvent(id))
	}
	if err := emit(protocol.NewResultEvent(id, result)); err != nil {
		return err
	}
	return emit(protocol.NewDoneEvent(id))
}

func (s *StdIO) chat(ctx context.Context, c protocol.ChatCommand, emit func(protocol.Event) error) error {
	if s.agent == nil {
		return emit(protocol.NewFailureEvent(c.RequestID, protocol.CodeNotConfigured, "chat is not available: no model provider configured"))
	}
	for ev := range s.agent.Chat(ctx, c.Message, c.History) {
		if err := emit(protocol.NewAgentEvent(c.RequestID, ev)); err != nil {
			return err
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
