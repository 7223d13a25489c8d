package harness

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/desflat/internal/partition"
)

const lampModel = `
plant def Lamp():
  controllable c_green, c_red;
  location Red: initial; marked;
    edge c_green goto Green;
  location Green:
    edge c_red goto Red;
end
L1: Lamp();
L2: Lamp();
requirement L1.Green disables {L1.c_green, L2.c_green};
`

func TestRun_Success(t *testing.T) {
	result, err := Run(&Scenario{
		Name:  "lamps",
		Model: lampModel,
		Assertions: []Assertion{
			{Type: AssertInstanceCount, Count: 2},
			{Type: AssertClauseCount, Count: 2},
		},
	})
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
	assert.False(t, result.Failed())
	assert.Len(t, result.Digest, 64)
	assert.Contains(t, result.Output, "plant automaton L2:")
	require.NotNil(t, result.Network)
}

func TestRun_DigestIsDeterministic(t *testing.T) {
	s := &Scenario{Name: "lamps", Model: lampModel}

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	assert.Equal(t, first.Digest, second.Digest)
	assert.Equal(t, first.Output, second.Output)
}

func TestRun_AssertionFailure(t *testing.T) {
	result, err := Run(&Scenario{
		Name:       "lamps",
		Model:      lampModel,
		Assertions: []Assertion{{Type: AssertInstanceCount, Count: 5}},
	})
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "assertions[0]")
	assert.Contains(t, result.Errors[0], "Expected: 5 instances")
}

func TestRun_UnexpectedError(t *testing.T) {
	result, err := Run(&Scenario{
		Name:  "broken",
		Model: "L1: Lamp();\n",
	})
	require.NoError(t, err)

	assert.False(t, result.Pass)
	assert.Equal(t, "UNKNOWN_REFERENCE", result.ErrorCode)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "unexpected elaboration error")
}

func TestRun_Expect(t *testing.T) {
	tests := []struct {
		name     string
		model    string
		groups   []partition.Group
		expect   ExpectClause
		wantPass bool
		wantCode string
		wantErr  string
	}{
		{
			name:     "matching code",
			model:    "L1: Lamp();\n",
			expect:   ExpectClause{Error: "UNKNOWN_REFERENCE"},
			wantPass: true,
			wantCode: "UNKNOWN_REFERENCE",
		},
		{
			name:     "wrong code",
			model:    "L1: Lamp();\n",
			expect:   ExpectClause{Error: "ARITY"},
			wantCode: "UNKNOWN_REFERENCE",
			wantErr:  "expected error ARITY, got UNKNOWN_REFERENCE",
		},
		{
			name:     "message mismatch",
			model:    "L1: Lamp();\n",
			expect:   ExpectClause{Error: "UNKNOWN_REFERENCE", Message: "no such words"},
			wantCode: "UNKNOWN_REFERENCE",
			wantErr:  `expected error message containing "no such words"`,
		},
		{
			name:    "succeeds unexpectedly",
			model:   lampModel,
			expect:  ExpectClause{Error: "ARITY"},
			wantErr: "expected error ARITY, elaboration succeeded",
		},
		{
			name:     "syntax error",
			model:    "plant def (",
			expect:   ExpectClause{Error: CodeSyntaxError},
			wantPass: true,
			wantCode: CodeSyntaxError,
		},
		{
			name:     "partition error",
			model:    lampModel,
			groups:   []partition.Group{{Name: "G", Members: []string{"L9"}}},
			expect:   ExpectClause{Error: CodePartition, Message: "unknown instance"},
			wantPass: true,
			wantCode: CodePartition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expect := tt.expect
			result, err := Run(&Scenario{Name: tt.name, Model: tt.model, Groups: tt.groups, Expect: &expect})
			require.NoError(t, err)

			assert.Equal(t, tt.wantPass, result.Pass, "errors: %v", result.Errors)
			assert.Equal(t, tt.wantCode, result.ErrorCode)
			if tt.wantErr != "" {
				require.NotEmpty(t, result.Errors)
				assert.Contains(t, result.Errors[0], tt.wantErr)
			}
		})
	}
}

func TestRun_AppliesGroups(t *testing.T) {
	result, err := Run(&Scenario{
		Name:   "grouped",
		Model:  lampModel,
		Groups: []partition.Group{{Name: "Lamps", Members: []string{"L2", "L1"}}},
		Assertions: []Assertion{
			{Type: AssertGroupMembers, Group: "Lamps", Instances: []string{"L1", "L2"}},
		},
	})
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Contains(t, result.Output, "group Lamps:\n  plant automaton L1:")
}

func TestRun_MissingModelFile(t *testing.T) {
	_, err := Run(&Scenario{Name: "gone", ModelFile: filepath.Join(t.TempDir(), "gone.des")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read model")
}

func TestHarness_Logs(t *testing.T) {
	var buf bytes.Buffer
	h := New(zerolog.New(&buf).Level(zerolog.DebugLevel))

	result, err := h.Run(&Scenario{Name: "lamps", Model: lampModel})
	require.NoError(t, err)
	require.True(t, result.Pass)

	assert.Contains(t, buf.String(), `"component":"harness"`)
	assert.Contains(t, buf.String(), `"message":"scenario complete"`)
}

func TestFirstDifference(t *testing.T) {
	assert.Equal(t, `line 2 differs: "b" vs "c"`, firstDifference("a\nb\n", "a\nc\n"))
	assert.Equal(t, "output has 1 lines, re-elaboration has 2", firstDifference("a", "a\nb"))
}

func TestScenarioFiles(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}
