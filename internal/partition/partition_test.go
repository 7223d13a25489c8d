package partition

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/desflat/internal/elab"
	"github.com/roach88/desflat/internal/ir"
	"github.com/roach88/desflat/internal/syntax"
)

const model = `
plant def Sensor():
  uncontrollable u_on, u_off;
  location Off: initial;
    edge u_on goto On;
  location On:
    edge u_off goto Off;
end
plant def Motor(uncontrollable u_trip):
  controllable c_on, c_off;
  location Stopped: initial;
    edge c_on goto Running;
  location Running:
    edge c_off goto Stopped;
    edge u_trip goto Stopped;
end
S1: Sensor();
B1: Sensor();
M1: Motor(S1.u_on);
M2: Motor(M1.u_trip);
requirement M1.Stopped and not B1.On disables M1.c_on;
requirement M2.Running disables {M1.c_off, M2.c_off};
`

func network(t *testing.T, src string) *ir.Network {
	t.Helper()
	m, err := syntax.ParseString(src)
	require.NoError(t, err)
	n, err := elab.Elaborate(m, elab.Options{})
	require.NoError(t, err)
	return n
}

func TestApplyExplicit(t *testing.T) {
	n := network(t, model)
	g, err := Apply(n, NewExplicit(map[string][]string{
		"Motors":  {"M2", "M1"},
		"Sensors": {"S1"},
		"Empty":   nil,
	}))
	require.NoError(t, err)

	assert.Equal(t, []string{"Motors", "Sensors"}, g.GroupOrder)
	assert.Equal(t, "Motors", g.GroupOf("M1"))
	assert.Equal(t, "Motors", g.GroupOf("M2"))
	assert.Equal(t, "Sensors", g.GroupOf("S1"))
	assert.Equal(t, "", g.GroupOf("B1"))
	assert.Empty(t, n.GroupOrder, "input network is not modified")
}

func TestApplyNone(t *testing.T) {
	src := strings.Replace(model, "S1: Sensor();", "group G:\nS1: Sensor();", 1)
	src = strings.Replace(src, "requirement", "end\nrequirement", 1)
	n := network(t, src)
	require.NotEmpty(t, n.GroupOrder)

	g, err := Apply(n, None{})
	require.NoError(t, err)
	assert.Empty(t, g.GroupOrder)
	assert.Equal(t, "", g.GroupOf("M1"))
}

func TestApplyFromNetwork(t *testing.T) {
	n := network(t, strings.Replace(model, "M1: Motor(S1.u_on);", "group Drives:\n  M1: Motor(S1.u_on);\nend", 1))

	groups, err := FromNetwork{}.Groups(n)
	require.NoError(t, err)
	assert.Equal(t, []Group{{Name: "Drives", Members: []string{"M1"}}}, groups)

	g, err := Apply(n, FromNetwork{})
	require.NoError(t, err)
	assert.Equal(t, n.GroupOrder, g.GroupOrder)
	assert.Equal(t, "Drives", g.GroupOf("M1"))
}

func TestApplyErrors(t *testing.T) {
	n := network(t, model)
	tests := []struct {
		name   string
		groups Explicit
		msg    string
	}{
		{"unknown instance", Explicit{{Name: "G", Members: []string{"M9"}}}, "unknown instance"},
		{"two groups", Explicit{{Name: "A", Members: []string{"M1"}}, {Name: "B", Members: []string{"M1"}}}, "already assigned to group A"},
		{"duplicate group", Explicit{{Name: "A", Members: []string{"M1"}}, {Name: "A", Members: []string{"M2"}}}, "defined twice"},
		{"invalid name", Explicit{{Name: "my group", Members: []string{"M1"}}}, "not a valid identifier"},
		{"reserved name", Explicit{{Name: "end", Members: []string{"M1"}}}, "not a valid identifier"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Apply(n, tt.groups)
			require.Error(t, err)
			var pe *PartitionError
			require.True(t, errors.As(err, &pe))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestNodeTableGroups(t *testing.T) {
	nodes, err := ReadNodes(strings.NewReader("name;group\nS1;Sensors\nM1;Motors\nB1;\nM2;Motors\n"), ';')
	require.NoError(t, err)

	groups, err := NodeTable(nodes).Groups(nil)
	require.NoError(t, err)
	assert.Equal(t, []Group{
		{Name: "Sensors", Members: []string{"S1"}},
		{Name: "Motors", Members: []string{"M1", "M2"}},
	}, groups)

	g, err := Apply(network(t, model), NodeTable(nodes))
	require.NoError(t, err)
	assert.Equal(t, []string{"Sensors", "Motors"}, g.GroupOrder)
}

func TestReadNodes(t *testing.T) {
	nodes, err := ReadNodes(strings.NewReader("\ufeffid;name\n1; S1 \n2;M1\n"), ';')
	require.NoError(t, err)
	assert.Equal(t, []Node{{Name: "S1"}, {Name: "M1"}}, nodes)
}

func TestReadNodesErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msg  string
	}{
		{"no header", "", "'name' column"},
		{"no name column", "id;group\n1;G\n", "'name' column"},
		{"empty name", "name\nS1\n \n", "empty value in the 'name' column at row 3, column 1"},
		{"duplicate", "name;group\nS1;A\nS1;B\n", "duplicate name S1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadNodes(strings.NewReader(tt.src), ';')
			require.Error(t, err)
			var se *CSVStructureError
			require.True(t, errors.As(err, &se))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestReadMatrix(t *testing.T) {
	m, err := ReadMatrix(strings.NewReader("0;1\n1;0\n"), ';')
	require.NoError(t, err)
	assert.Equal(t, [][]uint8{{0, 1}, {1, 0}}, m)

	_, err = ReadMatrix(strings.NewReader("0;1\n1;0;0\n"), ';')
	assert.ErrorContains(t, err, "not square")

	_, err = ReadMatrix(strings.NewReader("0;1\n2;0\n"), ';')
	assert.ErrorContains(t, err, "not binary, found '2' at row 2, column 1")
}

func TestValidateFiles(t *testing.T) {
	dir := t.TempDir()
	nodes := filepath.Join(dir, "model.nodes.csv")
	matrix := filepath.Join(dir, "model_DSM.csv")
	require.NoError(t, os.WriteFile(nodes, []byte("name,group\nS1,\nS1,\n"), 0o644))
	require.NoError(t, os.WriteFile(matrix, []byte("0,1\n1,0\n"), 0o644))

	_, err := ValidateNodeCSV(nodes, ',')
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), nodes+": "), err.Error())

	size, err := ValidateMatrixCSV(matrix, ',')
	require.NoError(t, err)
	assert.Equal(t, 2, size)
	_, err = ValidateMatrixCSV(filepath.Join(dir, "missing.csv"), ',')
	assert.True(t, os.IsNotExist(err))

	_, err = LoadNodeTable(nodes, ',')
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(nodes, []byte("name\nS1\nS2\nS3\n"), 0o644))
	count, err := ValidateNodeCSV(nodes, ',')
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.ErrorContains(t, CheckSize(size, count), "matrix has 2 rows but the node file lists 3 nodes")
	assert.NoError(t, CheckSize(3, 3))
}

func TestEdgeList(t *testing.T) {
	nodes := []Node{{Name: "S1"}, {Name: "M1", Group: "Drives"}, {Name: "M2", Group: "Drives"}}
	m := [][]uint8{
		{0, 0, 0},
		{1, 0, 1},
		{1, 0, 0},
	}

	edges, err := EdgeList(m, nodes)
	require.NoError(t, err)
	assert.Equal(t, []Edge{
		{Source: "M1", Target: "S1"},
		{Source: "M1", Target: "M2"},
		{Source: "M2", Target: "S1"},
	}, edges)

	var buf bytes.Buffer
	require.NoError(t, WriteEdgeCSV(&buf, edges, DefaultDelimiter))
	assert.Equal(t, "source;target\nM1;S1\nM1;M2\nM2;S1\n", buf.String())

	empty, err := EdgeList([][]uint8{{0}}, nodes[:1])
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = EdgeList(m, nodes[:2])
	var se *CSVStructureError
	require.True(t, errors.As(err, &se))
	assert.Contains(t, se.Message, "matrix has 3 rows but the node file lists 2 nodes")
}

func TestEdgeListFromDSM(t *testing.T) {
	n := network(t, model)
	var nodesCSV, matrixCSV bytes.Buffer
	require.NoError(t, WriteNodeCSV(&nodesCSV, n, DefaultDelimiter))
	require.NoError(t, BuildDSM(n).WriteMatrixCSV(&matrixCSV, DefaultDelimiter))

	nodes, err := ReadNodes(&nodesCSV, DefaultDelimiter)
	require.NoError(t, err)
	m, err := ReadMatrix(&matrixCSV, DefaultDelimiter)
	require.NoError(t, err)

	edges, err := EdgeList(m, nodes)
	require.NoError(t, err)
	assert.Equal(t, []Edge{
		{Source: "M1", Target: "S1"},
		{Source: "M1", Target: "B1"},
		{Source: "M1", Target: "M2"},
		{Source: "M2", Target: "S1"},
	}, edges)
}

func TestBuildDSM(t *testing.T) {
	d := BuildDSM(network(t, model))

	assert.Equal(t, []string{"S1", "B1", "M1", "M2"}, d.Names)
	assert.Equal(t, [][]uint8{
		{0, 0, 0, 0},
		{0, 0, 0, 0},
		{1, 1, 0, 1},
		{1, 0, 0, 0},
	}, d.Cells)
	assert.Equal(t, []Mark{{Row: 2, Column: 3}}, d.FeedbackMarks())
}

func TestWriteCSV(t *testing.T) {
	n := network(t, model)
	g, err := Apply(n, Explicit{{Name: "Motors", Members: []string{"M1", "M2"}}})
	require.NoError(t, err)

	var matrix bytes.Buffer
	require.NoError(t, BuildDSM(g).WriteMatrixCSV(&matrix, DefaultDelimiter))
	assert.Equal(t, "0;0;0;0\n0;0;0;0\n1;1;0;1\n1;0;0;0\n", matrix.String())

	var nodes bytes.Buffer
	require.NoError(t, WriteNodeCSV(&nodes, g, DefaultDelimiter))
	assert.Equal(t, "name;group\nS1;\nB1;\nM1;Motors\nM2;Motors\n", nodes.String())

	// Written files pass validation and read back.
	back, err := ReadMatrix(&matrix, DefaultDelimiter)
	require.NoError(t, err)
	assert.Equal(t, BuildDSM(g).Cells, back)

	table, err := ReadNodes(&nodes, DefaultDelimiter)
	require.NoError(t, err)
	regrouped, err := Apply(n, NodeTable(table))
	require.NoError(t, err)
	assert.Equal(t, g.GroupOrder, regrouped.GroupOrder)
}
