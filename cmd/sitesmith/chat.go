package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ChamsBouzaiene/sitesmith/internal/engine"
	"github.com/ChamsBouzaiene/sitesmith/internal/server"
)

func newChatCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive editing session",
		Long: `Reads one request per line and streams the agent's answer, including the
tools it calls. The conversation is kept in memory for the whole session.

Type /reset to forget the conversation, /exit to quit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := prepareRuntimeEnv(opts)
			if err != nil {
				return err
			}
			agent, err := env.newAgent()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(cmd.OutOrStdout(), "Editing %s with %s (%s)\n", env.files.Root(), env.cfg.Provider.Name, env.cfg.Provider.Model)
			return runREPL(ctx, agent, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func runREPL(ctx context.Context, agent server.Chatter, in io.Reader, out io.Writer) error {
	var history []engine.Message

	s := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "you> ")
		if !s.Scan() {
			break
		}
		line := strings.TrimSpace(s.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/reset":
			history = nil
			fmt.Fprintln(out, "(conversation cleared)")
			continue
		}

		hb := engine.NewHistoryBuilder(history, line)
		for ev := range agent.Chat(ctx, line, history) {
			hb.Add(ev)
			renderEvent(out, ev)
		}
		history = hb.Messages()
		fmt.Fprintln(out)

		if ctx.Err() != nil {
			return nil
		}
	}
	return s.Err()
}

func renderEvent(out io.Writer, ev engine.Event) {
	switch ev.Type {
	case engine.EventText:
		fmt.Fprint(out, ev.Delta)
	case engine.EventToolCall:
		args, _ := json.Marshal(ev.ToolCall.Input)
		fmt.Fprintf(out, "\n→ %s %s\n", ev.ToolCall.Name, args)
	case engine.EventToolResult:
		if ev.ToolResult.IsError {
			fmt.Fprintf(out, "  ✗ %s\n", firstLine(ev.ToolResult.Content))
		} else {
			fmt.Fprintf(out, "  ✓ %s\n", ev.ToolResult.Name)
		}
	case engine.EventStop:
		switch ev.StopReason {
		case engine.StopMaxIterations:
			fmt.Fprint(out, "\n(stopped: iteration limit reached)")
		case engine.StopMaxTokens:
			fmt.Fprint(out, "\n(stopped: output token limit reached)")
		}
	case engine.EventError:
		fmt.Fprintf(out, "\nerror: %s", ev.Message)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
