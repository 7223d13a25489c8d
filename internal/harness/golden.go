package harness

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// GoldenDir is the fixture directory used by RunWithGolden, relative to the
// package under test.
const GoldenDir = "testdata/scenarios/golden"

// GoldenPath returns the golden file of a scenario stored next to it:
// <scenario dir>/golden/<name>.golden.
func GoldenPath(scenarioPath, name string) string {
	return filepath.Join(filepath.Dir(scenarioPath), "golden", name+".golden")
}

// RunWithGolden executes a scenario and compares the flattened text against
// a golden file.
// The golden file is stored in testdata/scenarios/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if the scenario cannot run or does not pass. Rejection
// scenarios have no output and are not compared.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	if !result.Pass {
		return fmt.Errorf("scenario %s failed:\n%s", scenario.Name, strings.Join(result.Errors, "\n"))
	}
	if result.Failed() {
		return nil
	}

	AssertGolden(t, scenario.Name, result)
	return nil
}

// AssertGolden compares the given result's output against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, []byte(result.Output))
}
