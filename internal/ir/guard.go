package ir

import "strings"

// GuardKind tags the variant held by a Guard.
type GuardKind int

const (
	GuardAtom GuardKind = iota
	GuardNot
	GuardAnd
	GuardOr
)

var guardKindNames = [...]string{"atom", "not", "and", "or"}

func (k GuardKind) String() string {
	if int(k) < len(guardKindNames) {
		return guardKindNames[k]
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (k GuardKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// AtomKind records what an atom resolved to during expansion.
type AtomKind int

const (
	// AtomUnresolved is the state of every atom produced by a parser.
	AtomUnresolved AtomKind = iota
	// AtomLocation asserts the instance occupies the named location.
	AtomLocation
	// AtomEvent is a state predicate named by an event of the instance.
	AtomEvent
)

func (k AtomKind) String() string {
	switch k {
	case AtomLocation:
		return "location"
	case AtomEvent:
		return "event"
	default:
		return "unresolved"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k AtomKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Guard is a boolean expression over instance.location / instance.event
// predicates. It is a tagged variant: Ref is used by atoms, X by not, and
// X and Y by the binary operators.
//
// Guards are never simplified; printing preserves the tree exactly.
type Guard struct {
	Kind GuardKind `json:"kind"`

	Ref      EventRef `json:"ref,omitempty"`
	AtomKind AtomKind `json:"atom_kind,omitempty"`
	// Denotes lists the owner locations an event atom leads into.
	Denotes []string `json:"denotes,omitempty"`

	X *Guard `json:"x,omitempty"`
	Y *Guard `json:"y,omitempty"`
}

// Atom builds an unresolved atomic predicate instance.name.
func Atom(instance, name string) *Guard {
	return &Guard{Kind: GuardAtom, Ref: Ref(instance, name)}
}

// Not builds the negation of x.
func Not(x *Guard) *Guard {
	return &Guard{Kind: GuardNot, X: x}
}

// And builds the conjunction x and y.
func And(x, y *Guard) *Guard {
	return &Guard{Kind: GuardAnd, X: x, Y: y}
}

// Or builds the disjunction x or y.
func Or(x, y *Guard) *Guard {
	return &Guard{Kind: GuardOr, X: x, Y: y}
}

// Binding power, higher binds tighter.
func (g *Guard) precedence() int {
	switch g.Kind {
	case GuardOr:
		return 1
	case GuardAnd:
		return 2
	case GuardNot:
		return 3
	default:
		return 4
	}
}

// String renders the guard with the minimal parentheses needed for the text
// parser (not > and > or, left-associative) to rebuild the identical tree.
func (g *Guard) String() string {
	var b strings.Builder
	g.write(&b)
	return b.String()
}

func (g *Guard) write(b *strings.Builder) {
	switch g.Kind {
	case GuardAtom:
		b.WriteString(g.Ref.String())
	case GuardNot:
		b.WriteString("not ")
		writeOperand(b, g.X, g.X.precedence() < g.precedence())
	case GuardAnd, GuardOr:
		op := " and "
		if g.Kind == GuardOr {
			op = " or "
		}
		writeOperand(b, g.X, g.X.precedence() < g.precedence())
		b.WriteString(op)
		writeOperand(b, g.Y, g.Y.precedence() <= g.precedence())
	}
}

func writeOperand(b *strings.Builder, g *Guard, paren bool) {
	if paren {
		b.WriteByte('(')
		g.write(b)
		b.WriteByte(')')
		return
	}
	g.write(b)
}

// Walk visits g and its operands in pre-order.
func (g *Guard) Walk(fn func(*Guard)) {
	if g == nil {
		return
	}
	fn(g)
	g.X.Walk(fn)
	g.Y.Walk(fn)
}

// Atoms returns the atoms of g in left-to-right order.
func (g *Guard) Atoms() []*Guard {
	var atoms []*Guard
	g.Walk(func(n *Guard) {
		if n.Kind == GuardAtom {
			atoms = append(atoms, n)
		}
	})
	return atoms
}

// Equal reports structural equality, ignoring resolution results.
func (g *Guard) Equal(o *Guard) bool {
	if g == nil || o == nil {
		return g == o
	}
	if g.Kind != o.Kind {
		return false
	}
	if g.Kind == GuardAtom {
		return g.Ref == o.Ref
	}
	return g.X.Equal(o.X) && g.Y.Equal(o.Y)
}

// Map returns a copy of g with every atom replaced by fn(atom).
// fn must not return nil.
func (g *Guard) Map(fn func(atom *Guard) (*Guard, error)) (*Guard, error) {
	switch g.Kind {
	case GuardAtom:
		return fn(g)
	case GuardNot:
		x, err := g.X.Map(fn)
		if err != nil {
			return nil, err
		}
		return Not(x), nil
	default:
		x, err := g.X.Map(fn)
		if err != nil {
			return nil, err
		}
		y, err := g.Y.Map(fn)
		if err != nil {
			return nil, err
		}
		return &Guard{Kind: g.Kind, X: x, Y: y}, nil
	}
}
