package symtab

import (
	"fmt"

	"github.com/roach88/desflat/internal/ir"
)

// Table is the symbol table for one elaboration run.
type Table struct {
	Templates *Registry
	Events    *Arena

	scopes map[string]*Scope
	order  []string
	frozen bool
}

// New creates an empty table.
func New() *Table {
	return &Table{
		Templates: NewRegistry(),
		Events:    &Arena{},
		scopes:    make(map[string]*Scope),
	}
}

// Declare opens the scope of a new instance.
// It returns false if an instance with that name already exists.
// Declare panics on a frozen table.
func (t *Table) Declare(instance string) (*Scope, bool) {
	t.mustBeOpen()
	if _, exists := t.scopes[instance]; exists {
		return nil, false
	}
	s := newScope(instance)
	t.scopes[instance] = s
	t.order = append(t.order, instance)
	return s, true
}

// NewEvent allocates an event owned by the instance and binds it in the
// instance's scope under name. It returns false if the name is already bound.
func (t *Table) NewEvent(s *Scope, name string, kind ir.Controllability) (ir.EventID, bool) {
	t.mustBeOpen()
	if _, exists := s.Lookup(name); exists {
		return 0, false
	}
	id := t.Events.New(s.Instance, name, kind)
	s.Bind(name, id)
	return id, true
}

// Scope returns the scope of a declared instance.
func (t *Table) Scope(instance string) (*Scope, bool) {
	s, ok := t.scopes[instance]
	return s, ok
}

// Instances returns instance names in declaration order.
func (t *Table) Instances() []string {
	return append([]string(nil), t.order...)
}

// Lookup resolves a dotted reference. It reports separately whether the
// instance exists, so callers can tell a missing instance from a missing event.
func (t *Table) Lookup(ref ir.EventRef) (id ir.EventID, instanceFound, eventFound bool) {
	s, ok := t.scopes[ref.Instance]
	if !ok {
		return 0, false, false
	}
	id, ok = s.Lookup(ref.Name)
	return id, true, ok
}

// Freeze marks the table read-only.
func (t *Table) Freeze() {
	t.frozen = true
}

// Frozen reports whether Freeze has been called.
func (t *Table) Frozen() bool {
	return t.frozen
}

func (t *Table) mustBeOpen() {
	if t.frozen {
		panic(fmt.Sprintf("symtab: mutation of frozen table (%d instances)", len(t.order)))
	}
}
