package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordRuns elaborates each model into a fresh history and returns its path.
func recordRuns(t *testing.T, models ...string) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "runs.db")
	for _, m := range models {
		_, _, err := execute(t, NewElaborateCommand(&RootOptions{Format: "text"}), m, "--store", db)
		require.NoError(t, err)
	}
	return db
}

func TestHistory_ListsRuns(t *testing.T) {
	db := recordRuns(t, sharedModel, "testdata/flat.des", sharedModel)

	out, _, err := execute(t, NewHistoryCommand(&RootOptions{Format: "text"}), "--store", db)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "   1  "), lines[0])
	assert.True(t, strings.HasSuffix(lines[0], sharedModel), lines[0])
	assert.True(t, strings.HasSuffix(lines[1], "testdata/flat.des"), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "   3  "), lines[2])
}

func TestHistory_FilterAndLimit(t *testing.T) {
	db := recordRuns(t, sharedModel, "testdata/flat.des", sharedModel, sharedModel)

	out, _, err := execute(t, NewHistoryCommand(&RootOptions{Format: "json"}), sharedModel, "--store", db, "--limit", "2")
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, sharedModel, data["source"])
	runs := data["runs"].([]interface{})
	require.Len(t, runs, 2)
	assert.Equal(t, float64(3), runs[0].(map[string]interface{})["seq"])
	assert.Equal(t, float64(4), runs[1].(map[string]interface{})["seq"])
	assert.Equal(t, runs[0].(map[string]interface{})["digest"], runs[1].(map[string]interface{})["digest"])
}

func TestHistory_Show(t *testing.T) {
	db := recordRuns(t, "testdata/flat.des")

	out, _, err := execute(t, NewHistoryCommand(&RootOptions{Format: "json"}), "--store", db)
	require.NoError(t, err)
	runs := decodeResponse(t, out).Data.(map[string]interface{})["runs"].([]interface{})
	require.Len(t, runs, 1)
	id := runs[0].(map[string]interface{})["id"].(string)

	out, _, err = execute(t, NewHistoryCommand(&RootOptions{Format: "text"}), "--store", db, "--show", id)
	require.NoError(t, err)
	want, err := os.ReadFile("testdata/flat.des")
	require.NoError(t, err)
	assert.Equal(t, string(want), out)
}

func TestHistory_Empty(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	out, _, err := execute(t, NewHistoryCommand(&RootOptions{Format: "text"}), "--store", db)
	require.NoError(t, err)
	assert.Equal(t, "No runs recorded\n", out)
}

func TestHistory_Errors(t *testing.T) {
	_, _, err := execute(t, NewHistoryCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	db := recordRuns(t, sharedModel)
	out, _, err := execute(t, NewHistoryCommand(&RootOptions{Format: "text"}), "--store", db, "--show", "no-such-run")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "run not found: no-such-run")
}
