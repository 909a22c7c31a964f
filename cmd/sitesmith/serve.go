package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ChamsBouzaiene/sitesmith/internal/server"
)

func newServeCmd(opts *cliOptions) *cobra.Command {
	var stdio bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the agent and file operations to another process",
		Long: `Serves the NDJSON protocol: one JSON command per stdin line, one JSON event
per stdout line, with a "done" event closing every request. Logs go to stderr.

When no model provider is configured, file commands still work and chat
commands fail with code "not_configured".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !stdio {
				return errors.New("only the stdio transport is supported: pass --stdio")
			}

			env, err := prepareRuntimeEnv(opts)
			if err != nil {
				return err
			}

			serverOpts := []server.Option{server.WithLogger(opts.logger.Named("server"))}
			agent, err := env.newAgent()
			if err != nil {
				opts.logger.Warn("chat disabled", zap.Error(err))
			} else {
				serverOpts = append(serverOpts, server.WithAgent(agent))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			opts.logger.Info("serving over stdio", zap.String("root", env.files.Root()))
			return server.NewStdIO(os.Stdin, os.Stdout, env.files, serverOpts...).Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&stdio, "stdio", false, "Serve over stdin/stdout")
	return cmd
}
