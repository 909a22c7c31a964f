package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ChamsBouzaiene/sitesmith/internal/config"
	"github.com/ChamsBouzaiene/sitesmith/internal/tools"
)

func newConfigCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the project configuration",
	}
	cmd.AddCommand(newConfigInitCmd(opts), newConfigShowCmd(opts))
	return cmd
}

func newConfigInitCmd(opts *cliOptions) *cobra.Command {
	var (
		provider string
		model    string
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file for the project",
		Long: `Writes <root>/.sitesmith/config.yaml. API keys are never stored in the file:
set SITESMITH_API_KEY or the provider's usual variable (e.g. ANTHROPIC_API_KEY).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := config.NewManager(opts.root, opts.configPath)
			if err != nil {
				return err
			}
			if m.Exists() && !force {
				return fmt.Errorf("config already exists at %s (use --force to overwrite)", m.GetConfigPath())
			}

			if !slices.Contains(config.ValidProviders, provider) {
				return fmt.Errorf("invalid provider %q (supported: %v)", provider, config.ValidProviders)
			}

			cfg := config.DefaultConfig()
			cfg.Provider.Name = provider
			cfg.Provider.Model = model
			if cfg.Provider.Model == "" {
				cfg.Provider.Model = config.DefaultModels[provider]
			}

			if err := m.Save(cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", m.GetConfigPath())
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "anthropic", "Model provider")
	cmd.Flags().StringVar(&model, "model", "", "Model name (default: the provider's default)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}

func newConfigShowCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration and whether it is usable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := prepareRuntimeEnv(opts)
			if err != nil {
				return err
			}
			cfg := env.cfg
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "root:           %s\n", cfg.Project.Root)
			fmt.Fprintf(out, "entry script:   %s\n", cfg.Project.EntryScript)
			fmt.Fprintf(out, "provider:       %s\n", cfg.Provider.Name)
			fmt.Fprintf(out, "model:          %s\n", cfg.Provider.Model)
			fmt.Fprintf(out, "api key set:    %t\n", cfg.Provider.APIKey != "")
			fmt.Fprintf(out, "max iterations: %d\n", cfg.Agent.MaxIterations)
			reg := tools.NewRegistry(env.files)
			for _, name := range reg.Names() {
				meta := reg[name].Metadata
				fmt.Fprintf(out, "tool:           %s (%s: %s)\n", name, meta.Category, strings.Join(meta.Tags, ", "))
			}
			if err := cfg.Validate(); err != nil {
				fmt.Fprintf(out, "status:         not ready: %v\n", err)
			} else {
				fmt.Fprintln(out, "status:         ready")
			}
			return nil
		},
	}
}
