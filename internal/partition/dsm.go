package partition

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/roach88/desflat/internal/ir"
)

// DSM is a dependency structure matrix over instances.
// Cells[i][j] == 1 when instance i depends on instance j.
type DSM struct {
	Names []string
	Cells [][]uint8
}

// Mark is one off-diagonal dependency, 0-based.
type Mark struct {
	Row    int
	Column int
}

// BuildDSM derives dependencies from a flattened network. Instance i depends
// on j when an edge of i uses an event owned by j, or when a clause disabling
// an event owned by i has a guard atom on j. The diagonal is always zero.
func BuildDSM(n *ir.Network) *DSM {
	size := len(n.Instances)
	d := &DSM{
		Names: make([]string, size),
		Cells: make([][]uint8, size),
	}
	index := make(map[string]int, size)
	for i, inst := range n.Instances {
		d.Names[i] = inst.Name
		d.Cells[i] = make([]uint8, size)
		index[inst.Name] = i
	}

	mark := func(from, to string) {
		i, ok1 := index[from]
		j, ok2 := index[to]
		if ok1 && ok2 && i != j {
			d.Cells[i][j] = 1
		}
	}

	for _, inst := range n.Instances {
		for _, id := range inst.UsedEvents() {
			mark(inst.Name, n.Event(id).Owner)
		}
	}
	for _, c := range n.Clauses {
		owner := n.Event(c.Disables).Owner
		for _, atom := range c.Guard.Atoms() {
			mark(owner, atom.Ref.Instance)
		}
	}
	return d
}

// FeedbackMarks returns the dependencies above the diagonal, row-major.
// With instances ordered producers first, these are the dependencies on
// instances declared later.
func (d *DSM) FeedbackMarks() []Mark {
	var marks []Mark
	for i, row := range d.Cells {
		for j := i + 1; j < len(row); j++ {
			if row[j] == 1 {
				marks = append(marks, Mark{Row: i, Column: j})
			}
		}
	}
	return marks
}

// WriteMatrixCSV writes the bare matrix, one row per line.
func (d *DSM) WriteMatrixCSV(w io.Writer, delim rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = delim
	for _, row := range d.Cells {
		rec := make([]string, len(row))
		for j, v := range row {
			rec[j] = strconv.Itoa(int(v))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteNodeCSV writes the name/group node table matching the matrix rows.
func WriteNodeCSV(w io.Writer, n *ir.Network, delim rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = delim
	if err := cw.Write([]string{"name", "group"}); err != nil {
		return err
	}
	for _, inst := range n.Instances {
		if err := cw.Write([]string{inst.Name, n.GroupOf(inst.Name)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
