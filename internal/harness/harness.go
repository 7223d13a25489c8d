package harness

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/roach88/desflat/internal/elab"
	"github.com/roach88/desflat/internal/emit"
	"github.com/roach88/desflat/internal/ir"
	"github.com/roach88/desflat/internal/partition"
	"github.com/roach88/desflat/internal/syntax"
)

// Harness is the test execution engine.
type Harness struct {
	logger zerolog.Logger
}

// New creates a harness that logs through logger.
func New(logger zerolog.Logger) *Harness {
	return &Harness{logger: logger.With().Str("component", "harness").Logger()}
}

// Run executes a test scenario with logging disabled.
func Run(scenario *Scenario) (*Result, error) {
	return New(zerolog.Nop()).Run(scenario)
}

// Run executes a test scenario and returns the result.
//
// Execution flow:
// 1. Read and parse the model
// 2. Elaborate it and apply the scenario's grouping
// 3. Render the flattened text and check it re-elaborates to itself
// 4. Check the expect clause or evaluate assertions
//
// The returned error is reserved for scenarios that cannot be executed at
// all; elaboration failures are reported through the result.
func (h *Harness) Run(scenario *Scenario) (*Result, error) {
	src, file, err := scenarioSource(scenario)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	net, err := h.flatten(file, src, scenario.Groups)
	if err != nil {
		result.ErrorCode = errorCode(err)
		result.ErrorMessage = err.Error()
		h.logger.Debug().
			Str("scenario", scenario.Name).
			Str("code", result.ErrorCode).
			Msg("elaboration rejected")
	} else {
		result.Network = net
		result.Output = string(emit.Format(net))
		if result.Digest, err = ir.Digest(net); err != nil {
			return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
		}
		h.checkRoundTrip(result)
	}

	if scenario.Expect != nil {
		checkExpect(result, scenario.Expect)
		return result, nil
	}
	if result.Failed() {
		result.AddError(fmt.Sprintf("unexpected elaboration error: %s", result.ErrorMessage))
		return result, nil
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	h.logger.Debug().
		Str("scenario", scenario.Name).
		Bool("pass", result.Pass).
		Str("digest", result.Digest).
		Msg("scenario complete")
	return result, nil
}

func scenarioSource(s *Scenario) ([]byte, string, error) {
	if s.ModelFile == "" {
		return []byte(s.Model), s.Name, nil
	}
	src, err := os.ReadFile(s.ModelFile)
	if err != nil {
		return nil, "", fmt.Errorf("scenario %s: failed to read model: %w", s.Name, err)
	}
	return src, s.ModelFile, nil
}

func (h *Harness) flatten(file string, src []byte, groups []partition.Group) (*ir.Network, error) {
	m, err := syntax.Parse(file, src)
	if err != nil {
		return nil, err
	}
	net, err := elab.Elaborate(m, elab.Options{Logger: &h.logger})
	if err != nil {
		return nil, err
	}
	if groups != nil {
		return partition.Apply(net, partition.Explicit(groups))
	}
	return net, nil
}

// checkRoundTrip re-elaborates the flattened text and requires it to render
// identically.
func (h *Harness) checkRoundTrip(result *Result) {
	again, err := h.flatten("<flattened>", []byte(result.Output), nil)
	if err != nil {
		result.AddError(fmt.Sprintf("round trip: flattened output does not elaborate: %v", err))
		return
	}
	if second := string(emit.Format(again)); second != result.Output {
		result.AddError("round trip: " + firstDifference(result.Output, second))
	}
}

func checkExpect(result *Result, expect *ExpectClause) {
	if !result.Failed() {
		result.AddError(fmt.Sprintf("expected error %s, elaboration succeeded", expect.Error))
		return
	}
	if result.ErrorCode != expect.Error {
		result.AddError(fmt.Sprintf("expected error %s, got %s: %s",
			expect.Error, result.ErrorCode, result.ErrorMessage))
		return
	}
	if expect.Message != "" && !strings.Contains(result.ErrorMessage, expect.Message) {
		result.AddError(fmt.Sprintf("expected error message containing %q, got %q",
			expect.Message, result.ErrorMessage))
	}
}

// errorCode maps a flatten failure to the code scenarios expect.
func errorCode(err error) string {
	var synErr *syntax.SyntaxError
	var partErr *partition.PartitionError
	switch {
	case errors.As(err, &synErr):
		return CodeSyntaxError
	case errors.As(err, &partErr):
		return CodePartition
	default:
		if code := elab.CodeOf(err); code != "" {
			return string(code)
		}
		return "UNKNOWN"
	}
}

func firstDifference(a, b string) string {
	la, lb := strings.Split(a, "\n"), strings.Split(b, "\n")
	for i := 0; i < len(la) && i < len(lb); i++ {
		if la[i] != lb[i] {
			return fmt.Sprintf("line %d differs: %q vs %q", i+1, la[i], lb[i])
		}
	}
	return fmt.Sprintf("output has %d lines, re-elaboration has %d", len(la), len(lb))
}
