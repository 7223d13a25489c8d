package partition

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Node is one row of a node CSV file.
type Node struct {
	Name  string
	Group string
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func newReader(r io.Reader, delim rune) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	return cr
}

func readAllStripBOM(r io.Reader, delim rune) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	return newReader(bytes.NewReader(data), delim).ReadAll()
}

// ReadNodes parses a node CSV file. The header must contain a "name" column;
// a "group" column is optional. Names are trimmed and must be non-empty and
// unique.
func ReadNodes(r io.Reader, delim rune) ([]Node, error) {
	records, err := readAllStripBOM(r, delim)
	if err != nil {
		return nil, csvError(err)
	}
	if len(records) == 0 {
		return nil, &CSVStructureError{Message: "node file should have a header with a 'name' column"}
	}

	nameCol, groupCol := -1, -1
	for i, h := range records[0] {
		switch strings.TrimSpace(h) {
		case "name":
			nameCol = i
		case "group":
			groupCol = i
		}
	}
	if nameCol < 0 {
		return nil, &CSVStructureError{Row: 1, Message: "node file should have a header with a 'name' column"}
	}

	field := func(rec []string, col int) string {
		if col < 0 || col >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[col])
	}

	seen := make(map[string]bool, len(records)-1)
	nodes := make([]Node, 0, len(records)-1)
	for i, rec := range records[1:] {
		row := i + 2
		name := field(rec, nameCol)
		if name == "" {
			return nil, &CSVStructureError{Row: row, Column: nameCol + 1, Message: "empty value in the 'name' column"}
		}
		if seen[name] {
			return nil, &CSVStructureError{Row: row, Column: nameCol + 1, Message: "duplicate name " + name + " in the 'name' column"}
		}
		seen[name] = true
		nodes = append(nodes, Node{Name: name, Group: field(rec, groupCol)})
	}
	return nodes, nil
}

// ReadMatrix parses a square binary matrix.
func ReadMatrix(r io.Reader, delim rune) ([][]uint8, error) {
	records, err := readAllStripBOM(r, delim)
	if err != nil {
		return nil, csvError(err)
	}

	n := len(records)
	m := make([][]uint8, n)
	for i, rec := range records {
		if len(rec) != n {
			return nil, &CSVStructureError{Row: i + 1,
				Message: "matrix is not square, each row should have as many elements as there are rows"}
		}
		m[i] = make([]uint8, n)
		for j, cell := range rec {
			switch cell {
			case "0":
			case "1":
				m[i][j] = 1
			default:
				return nil, &CSVStructureError{Row: i + 1, Column: j + 1,
					Message: "matrix is not binary, found '" + cell + "'"}
			}
		}
	}
	return m, nil
}

// ValidateNodeCSV checks the structure of the node CSV file at path and
// returns the number of nodes it lists.
func ValidateNodeCSV(path string, delim rune) (int, error) {
	table, err := LoadNodeTable(path, delim)
	if err != nil {
		return 0, err
	}
	return len(table), nil
}

// ValidateMatrixCSV checks that the matrix CSV file at path is square and
// binary, and returns its size.
func ValidateMatrixCSV(path string, delim rune) (int, error) {
	m, err := LoadMatrix(path, delim)
	if err != nil {
		return 0, err
	}
	return len(m), nil
}

// CheckSize reports a matrix whose row count differs from its node table.
func CheckSize(rows, nodes int) error {
	if rows != nodes {
		return &CSVStructureError{
			Message: fmt.Sprintf("matrix has %d rows but the node file lists %d nodes", rows, nodes),
		}
	}
	return nil
}

// LoadMatrix reads a matrix CSV file.
func LoadMatrix(path string, delim rune) ([][]uint8, error) {
	v, err := readFile(path, func(r io.Reader) (any, error) { return ReadMatrix(r, delim) })
	if err != nil {
		return nil, err
	}
	return v.([][]uint8), nil
}

// LoadNodeTable reads a node CSV file into a grouper.
func LoadNodeTable(path string, delim rune) (NodeTable, error) {
	v, err := readFile(path, func(r io.Reader) (any, error) { return ReadNodes(r, delim) })
	if err != nil {
		return nil, err
	}
	return NodeTable(v.([]Node)), nil
}

func readFile(path string, read func(io.Reader) (any, error)) (any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	v, err := read(f)
	var se *CSVStructureError
	if errors.As(err, &se) {
		se.Path = path
	}
	return v, err
}

func csvError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &CSVStructureError{Row: pe.Line, Column: pe.Column, Message: pe.Err.Error()}
	}
	return err
}
