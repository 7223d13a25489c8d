package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sharedModel = "testdata/shared.des"

// execute runs cmd with args and returns what it wrote to stdout and stderr.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func decodeResponse(t *testing.T, data string) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(data), &resp), "output: %s", data)
	return resp
}

// copyModel copies a testdata file into a fresh temp dir.
func copyModel(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestElaborate_Stdout(t *testing.T) {
	want, err := os.ReadFile("../harness/testdata/scenarios/golden/shared_event.golden")
	require.NoError(t, err)

	out, _, err := execute(t, NewElaborateCommand(&RootOptions{Format: "text"}), sharedModel)
	require.NoError(t, err)
	assert.Equal(t, string(want), out)
}

func TestElaborate_IsDeterministic(t *testing.T) {
	first, _, err := execute(t, NewElaborateCommand(&RootOptions{Format: "text"}), sharedModel)
	require.NoError(t, err)
	second, _, err := execute(t, NewElaborateCommand(&RootOptions{Format: "text"}), sharedModel)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestElaborate_OutputFile(t *testing.T) {
	output := filepath.Join(t.TempDir(), "flat.des")

	out, _, err := execute(t, NewElaborateCommand(&RootOptions{Format: "text"}), sharedModel, "-o", output)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Wrote "+output+" (3 instance(s), 2 clause(s))")
	assert.Contains(t, out, "digest ")

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), "requirement invariant M2.Running or S1.On disables M1.c_on;\n")
	assert.Contains(t, string(data), "plant automaton M2:\n")
}

func TestElaborate_JSON(t *testing.T) {
	out, _, err := execute(t, NewElaborateCommand(&RootOptions{Format: "json"}), sharedModel)
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Empty(t, resp.RunID)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, sharedModel, data["source"])
	assert.Len(t, data["digest"], 64)
	assert.Contains(t, data["output"], "plant automaton S1:")

	stats, ok := data["stats"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(3), stats["instances"])
	assert.Equal(t, float64(6), stats["events"])
	assert.Equal(t, float64(2), stats["clauses"])
}

func TestElaborate_StoreReportsChanges(t *testing.T) {
	model := copyModel(t, "shared.des")
	db := filepath.Join(t.TempDir(), "runs.db")

	_, errOut, err := execute(t, NewElaborateCommand(&RootOptions{Format: "text"}), model, "--store", db)
	require.NoError(t, err)
	assert.Contains(t, errOut, "run 1 new")

	_, errOut, err = execute(t, NewElaborateCommand(&RootOptions{Format: "text"}), model, "--store", db)
	require.NoError(t, err)
	assert.Contains(t, errOut, "run 2 unchanged")

	src, err := os.ReadFile(model)
	require.NoError(t, err)
	src = bytes.Replace(src, []byte("disables {M1.c_on, M2.c_on}"), []byte("disables M1.c_on"), 1)
	require.NoError(t, os.WriteFile(model, src, 0644))

	out, _, err := execute(t, NewElaborateCommand(&RootOptions{Format: "json"}), model, "--store", db)
	require.NoError(t, err)
	resp := decodeResponse(t, out)
	assert.NotEmpty(t, resp.RunID)

	data := resp.Data.(map[string]interface{})
	run := data["run"].(map[string]interface{})
	assert.Equal(t, RunChanged, run["status"])
	assert.Equal(t, float64(3), run["seq"])
	assert.Equal(t, resp.RunID, run["id"])
	assert.NotEmpty(t, run["previous_digest"])
}

func TestElaborate_GroupFlag(t *testing.T) {
	want, err := os.ReadFile("../harness/testdata/scenarios/golden/grouped.golden")
	require.NoError(t, err)

	out, _, err := execute(t, NewElaborateCommand(&RootOptions{Format: "text"}), sharedModel, "--group", "Drives=M2,M1")
	require.NoError(t, err)
	assert.Equal(t, string(want), out)
}

func TestElaborate_NodesFlag(t *testing.T) {
	want, err := os.ReadFile("../harness/testdata/scenarios/golden/grouped.golden")
	require.NoError(t, err)

	out, _, err := execute(t, NewElaborateCommand(&RootOptions{Format: "text"}), sharedModel, "--nodes", "testdata/nodes.csv")
	require.NoError(t, err)
	assert.Equal(t, string(want), out)
}

func TestElaborate_NoGroupsWins(t *testing.T) {
	out, _, err := execute(t, NewElaborateCommand(&RootOptions{Format: "text"}), sharedModel,
		"--group", "Drives=M1,M2", "--no-groups")
	require.NoError(t, err)
	assert.NotContains(t, out, "group ")
}

func TestElaborate_Errors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		code     string
		message  string
		exitCode int
	}{
		{
			name:     "arity",
			args:     []string{"testdata/arity.des"},
			code:     "ARITY",
			message:  "template Motor expects 1 event(s), instance M1 passes 0",
			exitCode: ExitFailure,
		},
		{
			name:     "missing file",
			args:     []string{"testdata/missing.des"},
			code:     ErrCodeNotFound,
			message:  "model path not found: testdata/missing.des",
			exitCode: ExitCommandError,
		},
		{
			name:     "unsupported extension",
			args:     []string{"testdata/nodes.csv"},
			code:     ErrCodeUnsupported,
			message:  "unsupported model file",
			exitCode: ExitCommandError,
		},
		{
			name:     "bad group flag",
			args:     []string{sharedModel, "--group", "Drives"},
			code:     ErrCodeGeneric,
			message:  `invalid --group "Drives": want Name=M1,M2`,
			exitCode: ExitCommandError,
		},
		{
			name:     "unknown group member",
			args:     []string{sharedModel, "--group", "Drives=M1,M9"},
			code:     ErrCodePartition,
			message:  "instance M9",
			exitCode: ExitFailure,
		},
		{
			name:     "missing node file",
			args:     []string{sharedModel, "--nodes", "testdata/missing.csv"},
			code:     ErrCodeCSVFailed,
			message:  "missing.csv",
			exitCode: ExitCommandError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, NewElaborateCommand(&RootOptions{Format: "json"}), tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.exitCode, GetExitCode(err))

			resp := decodeResponse(t, out)
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Contains(t, resp.Error.Message, tt.message)
		})
	}
}

func TestElaborate_ErrorText(t *testing.T) {
	out, _, err := execute(t, NewElaborateCommand(&RootOptions{Format: "text"}), "testdata/arity.des")
	require.Error(t, err)
	assert.Contains(t, out, "Error [ARITY]: testdata/arity.des:8:")
}

func TestElaborate_HCLAndCUE(t *testing.T) {
	hclOut, _, err := execute(t, NewElaborateCommand(&RootOptions{Format: "text"}), "testdata/model.hcl")
	require.NoError(t, err)
	cueOut, _, err := execute(t, NewElaborateCommand(&RootOptions{Format: "text"}), "testdata/model.cue")
	require.NoError(t, err)

	assert.Equal(t, hclOut, cueOut)
	assert.Contains(t, hclOut, "plant automaton M1:")
	assert.Contains(t, hclOut, "edge S1.u_on goto Stopped;")
}

func TestParseGroupFlags(t *testing.T) {
	groups, err := parseGroupFlags([]string{"B=M2, M3", "A=M1"})
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "B", groups[0].Name)
	assert.Equal(t, []string{"M2", "M3"}, groups[0].Members)
	assert.Equal(t, "A", groups[1].Name)
	assert.Equal(t, []string{"M1"}, groups[1].Members)

	_, err = parseGroupFlags([]string{"=M1"})
	require.Error(t, err)
}
