package harness

import (
	"fmt"
	"strings"

	"github.com/google/go-cmp/cmp"

	"github.com/roach88/desflat/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Diff     string // cmp.Diff of expected and actual, when both are lists
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if e.Diff != "" {
		fmt.Fprintf(&buf, "\nDiff (-expected +actual):\n%s", e.Diff)
	}

	return buf.String()
}

// EvaluateAssertions evaluates all assertions against a successful result.
// Returns the failure messages, empty if every assertion holds.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	n := result.Network
	switch a.Type {
	case AssertOutputContains:
		return assertOutputContains(result.Output, a)
	case AssertClauseCount:
		return assertCount(a.Type, "clauses", a.Count, len(n.Clauses))
	case AssertInstanceCount:
		return assertCount(a.Type, "instances", a.Count, len(n.Instances))
	case AssertEventCount:
		return assertCount(a.Type, "events", a.Count, len(n.Events))
	case AssertEventShared:
		return assertEventShared(n, a)
	case AssertDisablesOrder:
		return assertDisablesOrder(n, a)
	case AssertGroupMembers:
		return assertGroupMembers(n, a)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

func assertOutputContains(output string, a Assertion) error {
	if strings.Contains(output, a.Text) {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("output containing %q", a.Text),
		Actual:   "not found in flattened text",
	}
}

func assertCount(kind, what string, want, got int) error {
	if want == got {
		return nil
	}
	return &AssertionError{
		Type:     kind,
		Expected: fmt.Sprintf("%d %s", want, what),
		Actual:   fmt.Sprintf("%d %s", got, what),
	}
}

// assertEventShared checks which instances carry an edge labelled with the
// event. The comparison is exact and in instance declaration order.
func assertEventShared(n *ir.Network, a Assertion) error {
	id, ok := lookupEvent(n, a.Event)
	if !ok {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("event %s in network", a.Event),
			Actual:   "no such event",
		}
	}

	users := []string{}
	for _, inst := range n.Instances {
		for _, used := range inst.UsedEvents() {
			if used == id {
				users = append(users, inst.Name)
				break
			}
		}
	}
	return compareNames(a.Type, "instances using "+a.Event, nonNil(a.Instances), users)
}

func assertDisablesOrder(n *ir.Network, a Assertion) error {
	got := make([]string, len(n.Clauses))
	for i, c := range n.Clauses {
		got[i] = n.Event(c.Disables).QualifiedName()
	}
	return compareNames(a.Type, "disabled events", a.Events, got)
}

func assertGroupMembers(n *ir.Network, a Assertion) error {
	members := []string{}
	for _, inst := range n.Instances {
		if n.GroupOf(inst.Name) == a.Group {
			members = append(members, inst.Name)
		}
	}
	return compareNames(a.Type, "members of group "+a.Group, nonNil(a.Instances), members)
}

func compareNames(kind, what string, want, got []string) error {
	diff := cmp.Diff(want, got)
	if diff == "" {
		return nil
	}
	return &AssertionError{
		Type:     kind,
		Expected: fmt.Sprintf("%s %v", what, want),
		Actual:   fmt.Sprintf("%v", got),
		Diff:     diff,
	}
}

// lookupEvent resolves a dotted owner.event reference against the network.
// Borrowed events are addressed by their canonical owner.
func lookupEvent(n *ir.Network, ref string) (ir.EventID, bool) {
	for _, ev := range n.Events {
		if ev.QualifiedName() == ref {
			return ev.ID, true
		}
	}
	return 0, false
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
