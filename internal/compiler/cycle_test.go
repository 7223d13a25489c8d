package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/desflat/internal/ir"
)

func inst(name string, args ...ir.EventRef) ir.Component {
	return ir.Component{Name: name, Template: "T", Args: args}
}

func inlineWith(name string, refs ...ir.EventRef) ir.Component {
	loc := ir.Location{Name: "A", Initial: true}
	for _, r := range refs {
		loc.Edges = append(loc.Edges, ir.Edge{Event: r})
	}
	return ir.Component{Name: name, Body: &ir.Template{Name: name, Locations: []ir.Location{loc}}}
}

// TestAnalyzeCycles_Empty tests that empty input produces no warnings.
func TestAnalyzeCycles_Empty(t *testing.T) {
	assert.Empty(t, AnalyzeCycles(nil), "nil model should produce no warnings")
	assert.Empty(t, AnalyzeCycles(&ir.Model{}), "no components should produce no warnings")
}

// TestAnalyzeCycles_DAG tests that a directed acyclic graph produces no warnings.
func TestAnalyzeCycles_DAG(t *testing.T) {
	m := &ir.Model{Components: []ir.Component{
		inst("S1"),
		inst("M1", ir.Ref("S1", "u_on")),
		inst("M2", ir.Ref("M1", "u_trip"), ir.Ref("S1", "u_off")),
	}}
	assert.Empty(t, AnalyzeCycles(m), "DAG should produce no cycle warnings")
}

// TestAnalyzeCycles_InlineFeedback tests that a cycle through an inline
// automaton is reported as info.
func TestAnalyzeCycles_InlineFeedback(t *testing.T) {
	m := &ir.Model{Components: []ir.Component{
		inlineWith("A", ir.Ref("B", "x")),
		inst("B", ir.Ref("A", "a")),
	}}

	warnings := AnalyzeCycles(m)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"A", "B", "A"}, warnings[0].Path)
	assert.Equal(t, LevelInfo, warnings[0].Level)
	assert.Contains(t, warnings[0].Message, "inline automaton A")
	assert.Contains(t, warnings[0].Message, "A → B → A")
}

// TestAnalyzeCycles_InstantiationCycle tests that a cycle made only of
// instantiations is an error.
func TestAnalyzeCycles_InstantiationCycle(t *testing.T) {
	m := &ir.Model{Components: []ir.Component{
		inst("M1", ir.Ref("M2", "x")),
		inst("M2", ir.Ref("M1", "y")),
	}}

	warnings := AnalyzeCycles(m)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"M1", "M2", "M1"}, warnings[0].Path)
	assert.Equal(t, LevelError, warnings[0].Level)
	assert.Equal(t, "instantiation cycle: M1 → M2 → M1", warnings[0].Message)
}

// TestAnalyzeCycles_ThreeNodes tests path reconstruction through a longer cycle.
func TestAnalyzeCycles_ThreeNodes(t *testing.T) {
	m := &ir.Model{Components: []ir.Component{
		inst("A", ir.Ref("C", "x")),
		inst("B", ir.Ref("A", "x")),
		inst("C", ir.Ref("B", "x")),
	}}

	warnings := AnalyzeCycles(m)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"A", "C", "B", "A"}, warnings[0].Path)
}

// TestAnalyzeCycles_SelfReference tests that an inline automaton naming its
// own events is not a dependency.
func TestAnalyzeCycles_SelfReference(t *testing.T) {
	m := &ir.Model{Components: []ir.Component{
		inlineWith("A", ir.Ref("A", "a"), ir.Bare("b")),
	}}
	assert.Empty(t, AnalyzeCycles(m))
}

// TestAnalyzeCycles_UnknownInstance tests that references to undeclared
// instances are left to validation.
func TestAnalyzeCycles_UnknownInstance(t *testing.T) {
	m := &ir.Model{Components: []ir.Component{
		inst("M1", ir.Ref("Z", "x")),
	}}
	assert.Empty(t, AnalyzeCycles(m))
}

// TestAnalyzeCycles_Separate tests that independent cycles are reported in
// declaration order.
func TestAnalyzeCycles_Separate(t *testing.T) {
	m := &ir.Model{Components: []ir.Component{
		inst("P", ir.Ref("Q", "x")),
		inlineWith("X", ir.Ref("Y", "x")),
		inst("Q", ir.Ref("P", "x")),
		inst("Y", ir.Ref("X", "x")),
	}}

	warnings := AnalyzeCycles(m)
	require.Len(t, warnings, 2)
	assert.Equal(t, []string{"P", "Q", "P"}, warnings[0].Path)
	assert.Equal(t, LevelError, warnings[0].Level)
	assert.Equal(t, []string{"X", "Y", "X"}, warnings[1].Path)
	assert.Equal(t, LevelInfo, warnings[1].Level)
}
