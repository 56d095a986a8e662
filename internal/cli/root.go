package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format  string // "json" | "text"
	Version BuildInfo
}

// BuildInfo is stamped into the binary by ldflags.
type BuildInfo struct {
	Version string `json:"version"`
	Date    string `json:"date"`
	Commit  string `json:"commit"`
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command. Without a subcommand it serves.
func NewRootCommand(build BuildInfo) *cobra.Command {
	opts := &RootOptions{Version: build}

	serve := NewServeCommand(opts)

	cmd := &cobra.Command{
		Use:   "soldojo-ledger",
		Short: "SolDojo learner record ledger",
		Long:  "Keeps learner profiles and course completions as program-derived accounts.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		RunE:          serve.RunE,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(serve)
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewDeriveCommand(opts))
	cmd.AddCommand(NewSignCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}

// NewVersionCommand prints the build stamp.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(rootOpts, cmd)
			if out.Format == "json" {
				return out.Success(rootOpts.Version)
			}
			return out.Success(fmt.Sprintf("Build version: %s\nBuild date: %s\nBuild commit: %s",
				rootOpts.Version.Version, rootOpts.Version.Date, rootOpts.Version.Commit))
		},
	}
}
