package symtab

import "github.com/roach88/desflat/internal/ir"

// Scope maps the names visible inside one instance to events.
//
// For an instantiated template the names are the template's formal parameter
// names and local event names. A formal bound to a borrowed event maps to the
// lender's event id.
type Scope struct {
	Instance string

	names map[string]ir.EventID
	order []string
}

func newScope(instance string) *Scope {
	return &Scope{Instance: instance, names: make(map[string]ir.EventID)}
}

// Bind adds name -> id. It returns false if the name is already bound.
func (s *Scope) Bind(name string, id ir.EventID) bool {
	if _, exists := s.names[name]; exists {
		return false
	}
	s.names[name] = id
	s.order = append(s.order, name)
	return true
}

// Lookup resolves a name visible in this scope.
func (s *Scope) Lookup(name string) (ir.EventID, bool) {
	id, ok := s.names[name]
	return id, ok
}

// Names returns bound names in binding order.
func (s *Scope) Names() []string {
	return append([]string(nil), s.order...)
}
