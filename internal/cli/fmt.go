package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/desflat/internal/logging"
)

// FmtOptions holds flags for the fmt command.
type FmtOptions struct {
	*RootOptions
	Check bool // report files that are not flat, change nothing
}

// FmtResult lists the files fmt looked at.
type FmtResult struct {
	Checked   []string `json:"checked"`
	Unchanged []string `json:"unchanged"`
	Changed   []string `json:"changed"` // rewritten, or needing a rewrite with --check
}

// NewFmtCommand creates the fmt command.
func NewFmtCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FmtOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fmt <file>...",
		Short: "Rewrite text models in flattened canonical form",
		Long: `Elaborate each text model on its own and replace it with its flattened
form. A file that is already flat is left untouched, so running fmt twice
changes nothing the second time.

With --check nothing is written; files that would change are listed and the
command exits with status 1.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFmt(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Check, "check", false, "list files that are not in canonical form and exit 1")

	return cmd
}

func runFmt(opts *FmtOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	logger := logging.WithComponent("fmt")

	files, err := expandPaths(paths)
	if err != nil {
		return reportError(formatter, err)
	}

	result := FmtResult{Checked: []string{}, Unchanged: []string{}, Changed: []string{}}
	for _, file := range files {
		switch strings.ToLower(filepath.Ext(file)) {
		case ".des", ".cif", ".txt":
		default:
			return reportError(formatter, &LoadError{
				Code:    ErrCodeUnsupported,
				Message: fmt.Sprintf("fmt only rewrites text models: %s", file),
			})
		}

		current, err := os.ReadFile(file)
		if err != nil {
			return reportError(formatter, &LoadError{Code: ErrCodeNotFound, Message: err.Error(), Err: err})
		}
		flat, err := flatten([]string{file}, nil, logger)
		if err != nil {
			return reportError(formatter, err)
		}

		result.Checked = append(result.Checked, file)
		if bytes.Equal(current, flat.Text) {
			result.Unchanged = append(result.Unchanged, file)
			formatter.VerboseLog("%s already flat", file)
			continue
		}
		result.Changed = append(result.Changed, file)

		if opts.Check {
			continue
		}
		if err := writeFileAtomic(file, flat.Text); err != nil {
			return reportError(formatter, &LoadError{Code: ErrCodeWriteFailed, Message: err.Error(), Err: err})
		}
		logger.Debug().Str(logging.FieldPath, file).Msg("rewrote file")
	}

	return outputFmtResult(formatter, opts.Check, result)
}

func outputFmtResult(formatter *OutputFormatter, check bool, result FmtResult) error {
	failed := check && len(result.Changed) > 0

	if formatter.Format == "json" {
		response := CLIResponse{Status: "ok", Data: result}
		if failed {
			response.Status = "error"
			response.Error = &CLIError{
				Code:    "E_NOT_FLAT",
				Message: fmt.Sprintf("%d file(s) not in canonical form", len(result.Changed)),
			}
		}
		if err := encodeJSON(formatter.Writer, response); err != nil {
			return err
		}
	} else {
		for _, file := range result.Changed {
			if check {
				fmt.Fprintln(formatter.Writer, file)
			} else {
				fmt.Fprintf(formatter.Writer, "✓ Rewrote %s\n", file)
			}
		}
	}

	if failed {
		return NewExitError(ExitFailure, fmt.Sprintf("%d file(s) not in canonical form", len(result.Changed)))
	}
	return nil
}
