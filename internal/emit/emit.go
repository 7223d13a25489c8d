// Package emit renders a flattened network in its canonical textual form.
//
// The output is valid input for package syntax, and re-elaborating it yields
// byte-identical text:
//   - requirement invariants first, one line per clause, in expansion order
//   - ungrouped plant automata in instance declaration order
//   - group blocks in group order, members in declaration order
//
// Events owned by the rendered instance are written bare; events borrowed
// from another instance use the dotted owner.event form.
package emit

import (
	"bytes"
	"io"
	"strings"

	"github.com/roach88/desflat/internal/ir"
)

const indent = "  "

// Format renders the network as text.
func Format(n *ir.Network) []byte {
	var blocks []string

	if len(n.Clauses) > 0 {
		var b strings.Builder
		for _, c := range n.Clauses {
			b.WriteString(Clause(n, c))
			b.WriteByte('\n')
		}
		blocks = append(blocks, b.String())
	}

	members := make(map[string][]*ir.Instance)
	for _, inst := range n.Instances {
		if g := n.GroupOf(inst.Name); g != "" {
			members[g] = append(members[g], inst)
			continue
		}
		var b strings.Builder
		writeAutomaton(&b, n, inst, "")
		blocks = append(blocks, b.String())
	}

	for _, g := range n.GroupOrder {
		if len(members[g]) == 0 {
			continue
		}
		var b strings.Builder
		b.WriteString("group " + g + ":\n")
		for i, inst := range members[g] {
			if i > 0 {
				b.WriteByte('\n')
			}
			writeAutomaton(&b, n, inst, indent)
		}
		b.WriteString("end\n")
		blocks = append(blocks, b.String())
	}

	return []byte(strings.Join(blocks, "\n"))
}

// Write renders the network to w.
func Write(w io.Writer, n *ir.Network) error {
	_, err := io.Copy(w, bytes.NewReader(Format(n)))
	return err
}

// Clause renders one expanded requirement line without the trailing newline.
func Clause(n *ir.Network, c ir.Clause) string {
	return "requirement invariant " + c.Guard.String() +
		" disables " + n.Event(c.Disables).QualifiedName() + ";"
}

func writeAutomaton(b *strings.Builder, n *ir.Network, inst *ir.Instance, prefix string) {
	b.WriteString(prefix + "plant automaton " + inst.Name + ":\n")

	inner := prefix + indent
	for _, kind := range []ir.Controllability{ir.Controllable, ir.Uncontrollable} {
		var names []string
		for _, id := range inst.Owned {
			if ev := n.Event(id); ev.Kind == kind {
				names = append(names, ev.Name)
			}
		}
		if len(names) > 0 {
			b.WriteString(inner + kind.String() + " " + strings.Join(names, ", ") + ";\n")
		}
	}

	for _, loc := range inst.Locations {
		if !loc.Initial && !loc.Marked && len(loc.Edges) == 0 {
			b.WriteString(inner + "location " + loc.Name + ";\n")
			continue
		}
		b.WriteString(inner + "location " + loc.Name + ":\n")
		item := inner + indent
		if loc.Initial {
			b.WriteString(item + "initial;\n")
		}
		if loc.Marked {
			b.WriteString(item + "marked;\n")
		}
		for _, e := range loc.Edges {
			b.WriteString(item + "edge " + eventName(n, inst, e.Event))
			if e.Target != "" {
				b.WriteString(" goto " + e.Target)
			}
			b.WriteString(";\n")
		}
	}

	b.WriteString(prefix + "end\n")
}

func eventName(n *ir.Network, inst *ir.Instance, id ir.EventID) string {
	ev := n.Event(id)
	if ev.Owner == inst.Name {
		return ev.Name
	}
	return ev.QualifiedName()
}
