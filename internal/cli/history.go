package cli

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/desflat/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Store string
	Limit int
	Show  string // run ID whose output is printed
}

// HistoryResult is the JSON payload of the history command.
type HistoryResult struct {
	Source string      `json:"source,omitempty"`
	Runs   []store.Run `json:"runs"`
}

// RunOutput is the JSON payload of history --show.
type RunOutput struct {
	store.Run
	Output string `json:"output"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [source]",
		Short: "List recorded elaboration runs",
		Long: `List the runs recorded by elaborate --store, oldest first.

The source is the model file list as given to elaborate, joined with commas.
Without a source every run is listed. --show prints the flattened output of
one run.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			source := ""
			if len(args) == 1 {
				source = args[0]
			}
			return runHistory(opts, source, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Store, "store", "", "run history database")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "show only the most recent N runs")
	cmd.Flags().StringVar(&opts.Show, "show", "", "print the output of the run with this ID")

	return cmd
}

func runHistory(opts *HistoryOptions, source string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	path := opts.Store
	if path == "" {
		path = opts.Project.Resolve(opts.Project.Store)
	}
	if path == "" {
		return reportError(formatter, &LoadError{Code: ErrCodeGeneric, Message: "no run history: pass --store or set store in the project file"})
	}

	st, err := store.Open(path)
	if err != nil {
		return reportError(formatter, &LoadError{Code: ErrCodeStoreFailed, Message: err.Error(), Err: err})
	}
	defer st.Close()

	ctx := cmd.Context()
	if opts.Show != "" {
		run, err := st.ReadRun(ctx, opts.Show)
		if errors.Is(err, sql.ErrNoRows) {
			return reportError(formatter, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("run not found: %s", opts.Show), Err: err})
		}
		if err != nil {
			return reportError(formatter, &LoadError{Code: ErrCodeStoreFailed, Message: err.Error(), Err: err})
		}
		if formatter.Format == "json" {
			return formatter.Success(RunOutput{Run: run, Output: run.Output})
		}
		_, err = fmt.Fprint(formatter.Writer, run.Output)
		return err
	}

	runs, err := st.ListRuns(ctx, source, opts.Limit)
	if err != nil {
		return reportError(formatter, &LoadError{Code: ErrCodeStoreFailed, Message: err.Error(), Err: err})
	}

	if formatter.Format == "json" {
		return formatter.Success(HistoryResult{Source: source, Runs: runs})
	}

	if len(runs) == 0 {
		fmt.Fprintln(formatter.Writer, "No runs recorded")
		return nil
	}
	for _, run := range runs {
		fmt.Fprintf(formatter.Writer, "%4d  %s  %s  %s  %s\n",
			run.Seq, run.ID, shortDigest(run.Digest),
			run.CreatedAt.Format("2006-01-02 15:04:05"), run.Source)
	}
	return nil
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
