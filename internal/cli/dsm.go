package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/roach88/desflat/internal/logging"
	"github.com/roach88/desflat/internal/partition"
)

// DSMOptions holds flags for the dsm command.
type DSMOptions struct {
	*RootOptions
	GroupingOptions
	Matrix    string // matrix CSV output, stdout when empty
	NodeFile  string // node CSV output
	Delimiter string
}

// DSMResult is the JSON payload of the dsm command.
type DSMResult struct {
	Names    []string   `json:"names"`
	Cells    [][]int    `json:"cells"`
	Feedback []Feedback `json:"feedback"`
}

// Feedback is one dependency on an instance declared later.
type Feedback struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// NewDSMCommand creates the dsm command.
func NewDSMCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DSMOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dsm <model>...",
		Short: "Derive the dependency structure matrix of a model",
		Long: `Elaborate a model and write its instance dependency structure matrix.

Cell (i, j) is 1 when instance i uses an event owned by instance j, or when a
requirement disabling an event of i has a guard atom on j. Rows and columns
follow instance declaration order; marks above the diagonal are feedback
dependencies and are listed after the matrix.

The matrix is a bare CSV (no header); --node-file writes the matching
name/group table.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDSM(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Matrix, "matrix", "", "write the matrix CSV to this file")
	cmd.Flags().StringVar(&opts.NodeFile, "node-file", "", "write the node CSV to this file")
	cmd.PersistentFlags().StringVar(&opts.Delimiter, "delimiter", "", "CSV delimiter (default ';')")
	opts.addFlags(cmd)

	cmd.AddCommand(newDSMCheckCommand(opts), newDSMEdgesCommand(opts))

	return cmd
}

// delimiter resolves --delimiter against the project file.
func (opts *DSMOptions) delimiter() (rune, error) {
	if opts.Delimiter == "" {
		return opts.Project.DelimiterRune(), nil
	}
	if utf8.RuneCountInString(opts.Delimiter) != 1 {
		return 0, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("delimiter must be a single character, got %q", opts.Delimiter)}
	}
	r, _ := utf8.DecodeRuneInString(opts.Delimiter)
	return r, nil
}

func runDSM(opts *DSMOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	delim, err := opts.delimiter()
	if err != nil {
		return reportError(formatter, err)
	}
	grouper, err := opts.grouper(opts.Project)
	if err != nil {
		return reportError(formatter, err)
	}
	flat, err := flatten(paths, grouper, logging.WithComponent("dsm"))
	if err != nil {
		return reportError(formatter, err)
	}

	dsm := partition.BuildDSM(flat.Network)
	var matrix bytes.Buffer
	if err := dsm.WriteMatrixCSV(&matrix, delim); err != nil {
		return reportError(formatter, err)
	}

	if opts.Matrix != "" {
		if err := writeFileAtomic(opts.Matrix, matrix.Bytes()); err != nil {
			return reportError(formatter, &LoadError{Code: ErrCodeWriteFailed, Message: err.Error(), Err: err})
		}
	}
	if opts.NodeFile != "" {
		var nodes bytes.Buffer
		if err := partition.WriteNodeCSV(&nodes, flat.Network, delim); err != nil {
			return reportError(formatter, err)
		}
		if err := writeFileAtomic(opts.NodeFile, nodes.Bytes()); err != nil {
			return reportError(formatter, &LoadError{Code: ErrCodeWriteFailed, Message: err.Error(), Err: err})
		}
	}

	result := DSMResult{Names: dsm.Names, Cells: make([][]int, len(dsm.Cells)), Feedback: []Feedback{}}
	for i, row := range dsm.Cells {
		result.Cells[i] = make([]int, len(row))
		for j, v := range row {
			result.Cells[i][j] = int(v)
		}
	}
	for _, m := range dsm.FeedbackMarks() {
		result.Feedback = append(result.Feedback, Feedback{From: dsm.Names[m.Row], To: dsm.Names[m.Column]})
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	if opts.Matrix == "" {
		if _, err := formatter.Writer.Write(matrix.Bytes()); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(formatter.Writer, "✓ Wrote %dx%d matrix to %s\n", len(dsm.Names), len(dsm.Names), opts.Matrix)
	}
	if opts.NodeFile != "" {
		fmt.Fprintf(formatter.Writer, "✓ Wrote node table to %s\n", opts.NodeFile)
	}
	for _, f := range result.Feedback {
		fmt.Fprintf(formatter.GetErrWriter(), "feedback: %s -> %s\n", f.From, f.To)
	}
	return nil
}

// DSMCheckOptions holds flags for the dsm check command.
type DSMCheckOptions struct {
	*DSMOptions
	Nodes  string
	Matrix string
}

// DSMCheckResult reports the CSV files that were checked.
type DSMCheckResult struct {
	Nodes  string `json:"nodes,omitempty"`
	Matrix string `json:"matrix,omitempty"`
	Size   int    `json:"size,omitempty"`
}

func newDSMCheckCommand(parent *DSMOptions) *cobra.Command {
	opts := &DSMCheckOptions{DSMOptions: parent}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check node and matrix CSV files",
		Long: `Check the structure of node and matrix CSV files.

A node file needs a header with a 'name' column and unique, non-empty names.
A matrix must be square and contain only 0 and 1. When both are given, the
matrix must have one row per node.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDSMCheck(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Nodes, "nodes", "", "node CSV file")
	cmd.Flags().StringVar(&opts.Matrix, "matrix", "", "matrix CSV file")

	return cmd
}

func runDSMCheck(opts *DSMCheckOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if opts.Nodes == "" && opts.Matrix == "" {
		return reportError(formatter, &LoadError{Code: ErrCodeGeneric, Message: "nothing to check: pass --nodes, --matrix or both"})
	}
	delim, err := opts.delimiter()
	if err != nil {
		return reportError(formatter, err)
	}

	result := DSMCheckResult{Nodes: opts.Nodes, Matrix: opts.Matrix}
	nodeCount, rows := -1, -1
	if opts.Nodes != "" {
		if nodeCount, err = partition.ValidateNodeCSV(opts.Nodes, delim); err != nil {
			return csvFailure(formatter, opts.Nodes, err)
		}
		result.Size = nodeCount
	}
	if opts.Matrix != "" {
		if rows, err = partition.ValidateMatrixCSV(opts.Matrix, delim); err != nil {
			return csvFailure(formatter, opts.Matrix, err)
		}
		result.Size = rows
	}
	if nodeCount >= 0 && rows >= 0 {
		if err := partition.CheckSize(rows, nodeCount); err != nil {
			return csvFailure(formatter, opts.Matrix, err)
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ CSV files valid (%d node(s))\n", result.Size)
	return nil
}

// DSMEdgesOptions holds flags for the dsm edges command.
type DSMEdgesOptions struct {
	*DSMOptions
	Nodes  string
	Matrix string
	Output string
}

// DSMEdgesResult is the JSON payload of the dsm edges command.
type DSMEdgesResult struct {
	Nodes      string           `json:"nodes"`
	Matrix     string           `json:"matrix"`
	OutputFile string           `json:"output_file,omitempty"`
	Edges      []partition.Edge `json:"edges"`
}

func newDSMEdgesCommand(parent *DSMOptions) *cobra.Command {
	opts := &DSMEdgesOptions{DSMOptions: parent}

	cmd := &cobra.Command{
		Use:   "edges",
		Short: "Convert a matrix CSV into an edge list",
		Long: `Convert a binary matrix and its node file into a source/target edge list.

Every 1 at row i, column j becomes the edge "node i;node j", in row-major
order. The matrix must have one row per node.

Examples:
  desflat dsm edges --nodes model.nodes.csv --matrix model_DSM.csv
  desflat dsm edges --nodes model.nodes.csv --matrix model_DSM.csv -o model.edges.csv`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDSMEdges(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Nodes, "nodes", "", "node CSV file (required)")
	cmd.Flags().StringVar(&opts.Matrix, "matrix", "", "matrix CSV file (required)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the edge CSV to this file")

	return cmd
}

func runDSMEdges(opts *DSMEdgesOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if opts.Nodes == "" || opts.Matrix == "" {
		return reportError(formatter, &LoadError{Code: ErrCodeGeneric, Message: "edges needs both --nodes and --matrix"})
	}
	delim, err := opts.delimiter()
	if err != nil {
		return reportError(formatter, err)
	}

	nodes, err := partition.LoadNodeTable(opts.Nodes, delim)
	if err != nil {
		return csvFailure(formatter, opts.Nodes, err)
	}
	m, err := partition.LoadMatrix(opts.Matrix, delim)
	if err != nil {
		return csvFailure(formatter, opts.Matrix, err)
	}
	edges, err := partition.EdgeList(m, nodes)
	if err != nil {
		return csvFailure(formatter, opts.Matrix, err)
	}
	formatter.VerboseLog("%d edge(s) from a %dx%d matrix", len(edges), len(m), len(m))

	var buf bytes.Buffer
	if err := partition.WriteEdgeCSV(&buf, edges, delim); err != nil {
		return reportError(formatter, err)
	}
	if opts.Output != "" {
		if err := writeFileAtomic(opts.Output, buf.Bytes()); err != nil {
			return reportError(formatter, &LoadError{Code: ErrCodeWriteFailed, Message: err.Error(), Err: err})
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(DSMEdgesResult{Nodes: opts.Nodes, Matrix: opts.Matrix, OutputFile: opts.Output, Edges: edges})
	}
	if opts.Output == "" {
		_, err := formatter.Writer.Write(buf.Bytes())
		return err
	}
	fmt.Fprintf(formatter.Writer, "✓ Wrote %d edge(s) to %s\n", len(edges), opts.Output)
	return nil
}

// csvFailure reports a structural CSV problem as a check failure and an
// unreadable file as a command error.
func csvFailure(formatter *OutputFormatter, path string, err error) error {
	if os.IsNotExist(err) {
		return reportError(formatter, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("CSV file not found: %s", path), Err: err})
	}
	var se *partition.CSVStructureError
	if errors.As(err, &se) && se.Path == "" {
		se.Path = path
	}
	_ = formatter.Error(ErrCodeCSVFailed, err.Error(), nil)
	return WrapExitError(ExitFailure, ErrCodeCSVFailed, err)
}
