package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ChamsBouzaiene/sitesmith/internal/diff"
	"github.com/ChamsBouzaiene/sitesmith/internal/files"
)

func newFilesCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "Operate on project files directly, without the model",
	}
	cmd.AddCommand(
		newFilesListCmd(opts),
		newFilesCatCmd(opts),
		newFilesWriteCmd(opts),
		newFilesBackupsCmd(opts),
		newFilesRestoreCmd(opts),
		newFilesDiffCmd(opts),
		newFilesURLCmd(opts),
	)
	return cmd
}

// withFiles runs fn against the project's file manager.
func withFiles(opts *cliOptions, fn func(cmd *cobra.Command, m *files.Manager, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		env, err := prepareRuntimeEnv(opts)
		if err != nil {
			return err
		}
		return fn(cmd, env.files, args)
	}
}

func newFilesListCmd(opts *cliOptions) *cobra.Command {
	var lo files.ListOptions

	cmd := &cobra.Command{
		Use:   "ls [dir]",
		Short: "List files, optionally searching by name",
		Args:  cobra.MaximumNArgs(1),
		RunE: withFiles(opts, func(cmd *cobra.Command, m *files.Manager, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			entries, err := m.List(dir, lo)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\n", e.Type, e.Path)
			}
			return w.Flush()
		}),
	}

	cmd.Flags().BoolVarP(&lo.Recursive, "recursive", "r", false, "Descend into subdirectories")
	cmd.Flags().StringVarP(&lo.SearchPattern, "search", "s", "", "Only list entries whose path matches")
	cmd.Flags().BoolVar(&lo.StrictMode, "strict", false, "Disable fuzzy matching")
	cmd.Flags().BoolVar(&lo.FileOnly, "files-only", false, "Omit directories")
	return cmd
}

func newFilesCatCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cat <path>",
		Short: "Print a file",
		Args:  cobra.ExactArgs(1),
		RunE: withFiles(opts, func(cmd *cobra.Command, m *files.Manager, args []string) error {
			data, err := m.Read(args[0])
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}),
	}
}

func newFilesWriteCmd(opts *cliOptions) *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "write <path>",
		Short: "Replace a file with stdin (or --from), backing up the old content",
		Args:  cobra.ExactArgs(1),
		RunE: withFiles(opts, func(cmd *cobra.Command, m *files.Manager, args []string) error {
			var data []byte
			var err error
			if from != "" {
				data, err = os.ReadFile(from)
			} else {
				data, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("failed to read new content: %w", err)
			}
			if err := m.Write(args[0], data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", args[0], len(data))
			return nil
		}),
	}

	cmd.Flags().StringVar(&from, "from", "", "Read the new content from this local file")
	return cmd
}

func newFilesBackupsCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "backups",
		Short: "List backups, newest first",
		Args:  cobra.NoArgs,
		RunE: withFiles(opts, func(cmd *cobra.Command, m *files.Manager, args []string) error {
			records, err := m.ListBackups()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, r := range records {
				source := r.OriginalPath
				if source == "" {
					source = r.Source
				}
				fmt.Fprintf(w, "%s\t%s\t%d\n", r.Name, source, r.Size)
			}
			return w.Flush()
		}),
	}
}

func newFilesRestoreCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <backup>",
		Short: "Restore a backup over its original file",
		Args:  cobra.ExactArgs(1),
		RunE: withFiles(opts, func(cmd *cobra.Command, m *files.Manager, args []string) error {
			rel, err := m.Restore(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %s\n", rel)
			return nil
		}),
	}
}

func newFilesDiffCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "diff <backup>",
		Short: "Show what changed between a backup and the live file",
		Args:  cobra.ExactArgs(1),
		RunE: withFiles(opts, func(cmd *cobra.Command, m *files.Manager, args []string) error {
			hunks, truncated, err := m.DiffBackup(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch {
			case truncated:
				fmt.Fprintf(out, "files too large to diff (over %d lines)\n", diff.MaxDiffLines)
			case len(hunks) == 0:
				fmt.Fprintln(out, "no changes")
			default:
				fmt.Fprint(out, diff.Unified(args[0], "live", hunks))
			}
			return nil
		}),
	}
}

func newFilesURLCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "url <url>",
		Short: "Print the source files that may serve a public URL",
		Args:  cobra.ExactArgs(1),
		RunE: withFiles(opts, func(cmd *cobra.Command, m *files.Manager, args []string) error {
			for _, p := range m.URLToFile(args[0]) {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		}),
	}
}
