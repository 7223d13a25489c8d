package partition

import (
	"encoding/csv"
	"io"
)

// Edge is one dependency of a matrix: Source depends on Target.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// EdgeList converts a binary matrix into its edges, naming rows and columns
// by the node table. Edges follow row-major order. The matrix must have one
// row per node.
func EdgeList(m [][]uint8, nodes []Node) ([]Edge, error) {
	if err := CheckSize(len(m), len(nodes)); err != nil {
		return nil, err
	}
	edges := []Edge{}
	for i, row := range m {
		for j, v := range row {
			if v == 1 {
				edges = append(edges, Edge{Source: nodes[i].Name, Target: nodes[j].Name})
			}
		}
	}
	return edges, nil
}

// WriteEdgeCSV writes edges under a source/target header.
func WriteEdgeCSV(w io.Writer, edges []Edge, delim rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = delim
	if err := cw.Write([]string{"source", "target"}); err != nil {
		return err
	}
	for _, e := range edges {
		if err := cw.Write([]string{e.Source, e.Target}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
