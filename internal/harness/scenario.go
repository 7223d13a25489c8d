package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/desflat/internal/config"
)

// Scenario defines a conformance test scenario.
// A scenario elaborates one model and asserts on the flattened network, or
// expects elaboration to fail with a given error code.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Model is the source text of the model. Exactly one of Model and
	// ModelFile is set.
	Model string `yaml:"model,omitempty"`

	// ModelFile is a path to the model source, relative to the scenario file.
	ModelFile string `yaml:"model_file,omitempty"`

	// Groups replaces the grouping declared by the model. Groups keep the
	// order they are written in.
	Groups config.Groups `yaml:"groups,omitempty"`

	// Expect marks the scenario as a rejection test.
	Expect *ExpectClause `yaml:"expect,omitempty"`

	// Assertions validate the flattened network.
	// Supported types: output_contains, clause_count, instance_count,
	// event_count, event_shared, disables_order, group_members
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// ExpectClause specifies the expected elaboration failure.
type ExpectClause struct {
	// Error is the expected error code, e.g. "ARITY" or "SYNTAX_ERROR".
	Error string `yaml:"error"`

	// Message is an optional substring of the error message.
	Message string `yaml:"message,omitempty"`
}

// Assertion validates a property of the flattened network.
type Assertion struct {
	// Type specifies the assertion type:
	// - "output_contains": flattened text contains Text
	// - "clause_count": network has exactly Count clauses
	// - "instance_count": network has exactly Count instances
	// - "event_count": network has exactly Count events
	// - "event_shared": exactly Instances have an edge labelled Event
	// - "disables_order": clauses disable Events, in this order
	// - "group_members": Group holds exactly Instances
	Type string `yaml:"type"`

	// Text is the expected substring (used by output_contains).
	Text string `yaml:"text,omitempty"`

	// Count is the expected number (used by the *_count types).
	Count int `yaml:"count,omitempty"`

	// Event is a dotted owner.event reference (used by event_shared).
	Event string `yaml:"event,omitempty"`

	// Events are dotted event references (used by disables_order).
	Events []string `yaml:"events,omitempty"`

	// Group is the group name (used by group_members).
	Group string `yaml:"group,omitempty"`

	// Instances are instance names in declaration order (used by
	// event_shared and group_members).
	Instances []string `yaml:"instances,omitempty"`
}

// Assertion type constants.
const (
	AssertOutputContains = "output_contains"
	AssertClauseCount    = "clause_count"
	AssertInstanceCount  = "instance_count"
	AssertEventCount     = "event_count"
	AssertEventShared    = "event_shared"
	AssertDisablesOrder  = "disables_order"
	AssertGroupMembers   = "group_members"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// A relative model_file is resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.ModelFile != "" && !filepath.IsAbs(scenario.ModelFile) {
		scenario.ModelFile = filepath.Join(filepath.Dir(path), scenario.ModelFile)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case s.Model == "" && s.ModelFile == "":
		return fmt.Errorf("one of model or model_file is required")
	case s.Model != "" && s.ModelFile != "":
		return fmt.Errorf("model and model_file are mutually exclusive")
	}

	if s.ModelFile != "" {
		if _, err := os.Stat(s.ModelFile); os.IsNotExist(err) {
			return fmt.Errorf("model file not found: %s", s.ModelFile)
		}
	}

	if s.Expect != nil {
		if s.Expect.Error == "" {
			return fmt.Errorf("expect: error is required")
		}
		if len(s.Assertions) > 0 {
			return fmt.Errorf("assertions cannot be combined with expect")
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertOutputContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for output_contains", index)
		}
	case AssertClauseCount, AssertInstanceCount, AssertEventCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertEventShared:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for event_shared", index)
		}
	case AssertDisablesOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for disables_order", index)
		}
	case AssertGroupMembers:
		if a.Group == "" {
			return fmt.Errorf("assertions[%d]: group is required for group_members", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
