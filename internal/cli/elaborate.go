package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/roach88/desflat/internal/config"
	"github.com/roach88/desflat/internal/elab"
	"github.com/roach88/desflat/internal/emit"
	"github.com/roach88/desflat/internal/ir"
	"github.com/roach88/desflat/internal/logging"
	"github.com/roach88/desflat/internal/partition"
	"github.com/roach88/desflat/internal/store"
)

// GroupingOptions selects how instances are grouped in the output.
// Precedence: --no-groups, --group, --nodes, then the project file, then the
// groups declared in the model.
type GroupingOptions struct {
	NoGroups bool
	Groups   []string // "Name=M1,M2"
	Nodes    string   // node CSV path
}

func (g *GroupingOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&g.NoGroups, "no-groups", false, "emit every instance ungrouped")
	cmd.Flags().StringArrayVar(&g.Groups, "group", nil, "group instances, e.g. --group Drives=M1,M2 (repeatable)")
	cmd.Flags().StringVar(&g.Nodes, "nodes", "", "node CSV with name and group columns")
}

// grouper resolves the flags against the project file.
func (g *GroupingOptions) grouper(project config.Config) (partition.Grouper, error) {
	switch {
	case g.NoGroups:
		return partition.None{}, nil
	case len(g.Groups) > 0:
		return parseGroupFlags(g.Groups)
	case g.Nodes != "":
		table, err := partition.LoadNodeTable(g.Nodes, project.DelimiterRune())
		if err != nil {
			return nil, &LoadError{Code: ErrCodeCSVFailed, Message: err.Error(), Err: err}
		}
		return table, nil
	default:
		grouper, err := project.Grouper()
		if err != nil {
			return nil, &LoadError{Code: ErrCodeCSVFailed, Message: err.Error(), Err: err}
		}
		return grouper, nil
	}
}

// parseGroupFlags parses repeated Name=M1,M2 values, keeping flag order.
func parseGroupFlags(values []string) (partition.Explicit, error) {
	groups := make(partition.Explicit, 0, len(values))
	for _, v := range values {
		name, members, ok := strings.Cut(v, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("invalid --group %q: want Name=M1,M2", v)}
		}
		g := partition.Group{Name: strings.TrimSpace(name)}
		for _, m := range strings.Split(members, ",") {
			if m = strings.TrimSpace(m); m != "" {
				g.Members = append(g.Members, m)
			}
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// Flattened is one elaborated model ready for output.
type Flattened struct {
	Load    *LoadResult
	Network *ir.Network
	Text    []byte
	Digest  string
}

// flatten loads, elaborates and groups the model at paths.
func flatten(paths []string, grouper partition.Grouper, logger zerolog.Logger) (*Flattened, error) {
	loaded, err := LoadModel(paths)
	if err != nil {
		return nil, err
	}
	logger.Debug().Strs("files", loaded.Files).Msg("model loaded")

	net, err := elab.Elaborate(loaded.Model, elab.Options{Logger: &logger})
	if err != nil {
		return nil, err
	}
	if grouper != nil {
		if net, err = partition.Apply(net, grouper); err != nil {
			return nil, err
		}
	}

	digest, err := ir.Digest(net)
	if err != nil {
		return nil, err
	}
	return &Flattened{Load: loaded, Network: net, Text: emit.Format(net), Digest: digest}, nil
}

// ElaborateOptions holds flags for the elaborate command.
type ElaborateOptions struct {
	*RootOptions
	GroupingOptions
	Output string // output file path
	Store  string // run history database
}

// ElaborationResult is the JSON payload of the elaborate command.
type ElaborationResult struct {
	Source     string      `json:"source"`
	Files      []string    `json:"files"`
	Digest     string      `json:"digest"`
	Stats      store.Stats `json:"stats"`
	Output     string      `json:"output,omitempty"`
	OutputFile string      `json:"output_file,omitempty"`
	Run        *RunStatus  `json:"run,omitempty"`
}

// RunStatus reports how a recorded run compares to the previous run of the
// same source.
type RunStatus struct {
	ID             string `json:"id"`
	Seq            int64  `json:"seq"`
	Status         string `json:"status"` // "new", "changed" or "unchanged"
	PreviousDigest string `json:"previous_digest,omitempty"`
}

// Run status values.
const (
	RunNew       = "new"
	RunChanged   = "changed"
	RunUnchanged = "unchanged"
)

// NewElaborateCommand creates the elaborate command.
func NewElaborateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ElaborateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "elaborate <model>...",
		Short: "Flatten a model into plant automata and requirement invariants",
		Long: `Elaborate a parameterised model into its flat form.

Templates are instantiated in declaration order, borrowed events are resolved
to their owning instance and every requirement is expanded into one invariant
per disabled event. The flattened text is written to stdout or --output.

With --store the run is recorded in a SQLite history and reported as new,
changed or unchanged against the previous run of the same source.

Examples:
  desflat elaborate plant.des
  desflat elaborate templates.cue plant.des -o flat.des
  desflat elaborate plant.hcl --group Drives=M1,M2 --store runs.db
  desflat elaborate plant.des --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runElaborate(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")
	cmd.Flags().StringVar(&opts.Store, "store", "", "record the run in this SQLite database")
	opts.addFlags(cmd)

	return cmd
}

func runElaborate(opts *ElaborateOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting output
		Verbose:   opts.Verbose,
	}
	logger := logging.WithComponent("elaborate")

	grouper, err := opts.grouper(opts.Project)
	if err != nil {
		return reportError(formatter, err)
	}

	flat, err := flatten(paths, grouper, logger)
	if err != nil {
		return reportError(formatter, err)
	}
	formatter.VerboseLog("Elaborated %s: %d instance(s), %d clause(s)",
		flat.Load.Source(), len(flat.Network.Instances), len(flat.Network.Clauses))

	result := ElaborationResult{
		Source: flat.Load.Source(),
		Files:  flat.Load.Files,
		Digest: flat.Digest,
		Stats:  store.StatsOf(flat.Network),
	}

	if opts.Output != "" {
		if err := writeFileAtomic(opts.Output, flat.Text); err != nil {
			return reportError(formatter, &LoadError{Code: ErrCodeWriteFailed, Message: err.Error(), Err: err})
		}
		result.OutputFile = opts.Output
	}

	storePath := opts.Store
	if storePath == "" {
		storePath = opts.Project.Resolve(opts.Project.Store)
	}
	if storePath != "" {
		status, err := recordRun(cmd.Context(), storePath, flat)
		if err != nil {
			return reportError(formatter, &LoadError{Code: ErrCodeStoreFailed, Message: err.Error(), Err: err})
		}
		result.Run = status
		logger.Info().
			Str(logging.FieldSource, result.Source).
			Str(logging.FieldDigest, flat.Digest).
			Str(logging.FieldRunID, status.ID).
			Str("status", status.Status).
			Msg("run recorded")
	}

	return outputElaborateSuccess(formatter, result, flat.Text)
}

// recordRun appends the run to the history at path and compares it with the
// previous run of the same source.
func recordRun(ctx context.Context, path string, flat *Flattened) (*RunStatus, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	source := flat.Load.Source()
	status := &RunStatus{Status: RunNew}
	prev, err := st.LatestRun(ctx, source)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, err
	case prev.Digest == flat.Digest:
		status.Status = RunUnchanged
		status.PreviousDigest = prev.Digest
	default:
		status.Status = RunChanged
		status.PreviousDigest = prev.Digest
	}

	run, err := st.RecordRun(ctx, store.Run{
		Source: source,
		Digest: flat.Digest,
		Output: string(flat.Text),
		Stats:  store.StatsOf(flat.Network),
	})
	if err != nil {
		return nil, err
	}
	status.ID = run.ID
	status.Seq = run.Seq
	return status, nil
}

// outputElaborateSuccess prints the flattened text, or a summary when it went
// to a file.
func outputElaborateSuccess(formatter *OutputFormatter, result ElaborationResult, text []byte) error {
	if formatter.Format == "json" {
		if result.OutputFile == "" {
			result.Output = string(text)
		}
		response := CLIResponse{Status: "ok", Data: result}
		if result.Run != nil {
			response.RunID = result.Run.ID
		}
		return encodeJSON(formatter.Writer, response)
	}

	if result.OutputFile == "" {
		if _, err := formatter.Writer.Write(text); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(formatter.Writer, "✓ Wrote %s (%d instance(s), %d clause(s))\n",
			result.OutputFile, result.Stats.Instances, result.Stats.Clauses)
	}

	// Status lines go to stderr when stdout carries the model.
	w := formatter.Writer
	if result.OutputFile == "" {
		w = formatter.GetErrWriter()
	}
	if formatter.Verbose || result.OutputFile != "" {
		fmt.Fprintf(w, "digest %s\n", result.Digest)
	}
	if result.Run != nil {
		fmt.Fprintf(w, "run %d %s (%s)\n", result.Run.Seq, result.Run.Status, result.Run.ID)
	}
	return nil
}

// reportError prints err in the configured format and returns the matching
// exit error. Model errors exit with ExitFailure, everything else with
// ExitCommandError.
func reportError(formatter *OutputFormatter, err error) error {
	code := errorCode(err)
	message := errorMessage(err)
	if pos := errorPos(err); pos.IsValid() {
		message = pos.String() + ": " + message
	}
	_ = formatter.Error(code, message, errorDetails(err))

	exit := ExitFailure
	var loadErr *LoadError
	if errors.As(err, &loadErr) && loadErr.Code != ErrCodeLoadFailed {
		exit = ExitCommandError
	}
	return WrapExitError(exit, code, err)
}

// errorDetails returns structured context for elaboration errors.
func errorDetails(err error) interface{} {
	var elabErr *elab.Error
	if !errors.As(err, &elabErr) {
		return nil
	}
	details := map[string]interface{}{"stage": elabErr.Stage}
	if elabErr.Statement >= 0 {
		details["statement"] = elabErr.Statement
	}
	if len(elabErr.Names) > 0 {
		details["names"] = elabErr.Names
	}
	return details
}
