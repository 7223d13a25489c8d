package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/desflat/internal/compiler"
	"github.com/roach88/desflat/internal/elab"
	"github.com/roach88/desflat/internal/logging"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Files  []string                   `json:"files,omitempty"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
	Cycles []compiler.CycleWarning    `json:"cycles,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <model>...",
		Short: "Check models without writing output",
		Long: `Validate models without producing flattened output.

Runs the static checks (names, templates, arity, dependency order,
requirements) and reports every problem found, then elaborates the model to
catch anything only resolution can see. Feedback loops through inline
automata are reported as information.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
	logger := logging.WithComponent("validate")

	loaded, err := LoadModel(paths)
	if err != nil {
		return reportError(formatter, err)
	}
	formatter.VerboseLog("Loaded %d file(s)", len(loaded.Files))

	result := ValidationResult{Files: loaded.Files}
	result.Errors = compiler.Validate(loaded.Model)
	for _, w := range compiler.AnalyzeCycles(loaded.Model) {
		if w.Level == compiler.LevelInfo {
			result.Cycles = append(result.Cycles, w)
		}
	}

	// Elaborate only a statically clean model; its first error would repeat
	// one already listed.
	if len(result.Errors) == 0 {
		if _, err := elab.Elaborate(loaded.Model, elab.Options{Logger: &logger}); err != nil {
			result.Errors = append(result.Errors, elaborationToValidation(err))
		}
	}

	if len(result.Errors) > 0 {
		return outputValidationErrors(formatter, result)
	}

	result.Valid = true
	return outputValidateSuccess(formatter, result)
}

// elaborationToValidation converts an elaboration failure to the
// collect-all error shape.
func elaborationToValidation(err error) compiler.ValidationError {
	var elabErr *elab.Error
	if !errors.As(err, &elabErr) {
		return compiler.ValidationError{Field: "model", Message: err.Error(), Code: ErrCodeGeneric}
	}
	field := string(elabErr.Stage)
	if elabErr.Statement >= 0 && field != "" {
		field = fmt.Sprintf("%ss[%d]", field, elabErr.Statement)
	}
	return compiler.ValidationError{
		Field:   field,
		Message: elabErr.Message,
		Code:    string(elabErr.Code),
		Line:    elabErr.Pos.Line,
	}
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintln(formatter.Writer, "✓ All models valid")
	writeCycleInfo(formatter, result.Cycles)
	return nil
}

func writeCycleInfo(formatter *OutputFormatter, cycles []compiler.CycleWarning) {
	for _, c := range cycles {
		fmt.Fprintf(formatter.Writer, "  info: %s\n", c.Message)
	}
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}
		if err := encodeJSON(formatter.Writer, response); err != nil {
			return err
		}

		// Validation failures = exit code 1 (model failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}
	writeCycleInfo(formatter, result.Cycles)

	// Validation failures = exit code 1 (model failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
