package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// cliOptions holds the persistent flags and the logger shared by every command.
type cliOptions struct {
	root       string
	configPath string
	debug      bool

	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{logger: zap.NewNop()}

	rootCmd := &cobra.Command{
		Use:   "sitesmith",
		Short: "sitesmith - conversational editor for a website's source files",
		Long: `sitesmith lets a language model read and rewrite the files of a website
project through a sandboxed file layer. Every write is preceded by a backup,
and any backup can be diffed against the live file or restored.

Run "sitesmith chat" for an interactive session, or "sitesmith serve --stdio"
to drive the agent from another process over newline-delimited JSON.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config := zap.NewProductionConfig()
			// stdout carries protocol and command output.
			config.OutputPaths = []string{"stderr"}
			config.ErrorOutputPaths = []string{"stderr"}
			switch {
			case opts.debug:
				config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			case cmd.Name() == "chat":
				config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
			}
			logger, err := config.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			opts.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = opts.logger.Sync()
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.root, "root", "", "Project root (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (default: <root>/.sitesmith/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		newChatCmd(opts),
		newServeCmd(opts),
		newFilesCmd(opts),
		newConfigCmd(opts),
	)
	return rootCmd
}

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
