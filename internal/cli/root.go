package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/roach88/desflat/internal/config"
	"github.com/roach88/desflat/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Config   string // project file; desflat.yaml in the working directory when empty
	LogLevel string

	// Project is the loaded project file, or config.Default() when none.
	Project config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the desflat CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{Project: config.Default()}

	cmd := &cobra.Command{
		Use:   "desflat",
		Short: "desflat - flatten discrete-event system models",
		Long: `Elaborate parameterised discrete-event system models into a flat network
of plant automata and requirement invariants.

Models are read from text (.des, .cif, .txt), CUE (.cue) or HCL (.hcl) files.
Several files are merged in the order given.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.setup(cmd); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				return err
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "project file (default ./desflat.yaml if present)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error)")

	// Add subcommands
	cmd.AddCommand(NewElaborateCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewFmtCommand(opts))
	cmd.AddCommand(NewDSMCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// setup loads the project file, applies its defaults to unset flags and
// configures logging. Flags always win over the file.
func (opts *RootOptions) setup(cmd *cobra.Command) error {
	path := opts.Config
	if path == "" {
		if wd, err := os.Getwd(); err == nil {
			path = config.Find(wd)
		}
	}

	fileLevel := ""
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return WrapExitError(ExitCommandError, "loading project file", err)
		}
		opts.Project = cfg
		fileLevel = cfg.LogLevel
		if !cmd.Flags().Changed("format") && cfg.Format != "" {
			opts.Format = cfg.Format
		}
	}

	if !isValidFormat(opts.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
	}

	level := opts.LogLevel
	switch {
	case opts.Verbose:
		level = zerolog.LevelDebugValue
	case level == "":
		level = fileLevel
	}
	logging.Configure(logging.Config{
		Level:   level,
		Output:  cmd.ErrOrStderr(),
		Console: opts.Format == "text",
	})
	return nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
