package symtab

import "github.com/roach88/desflat/internal/ir"

// Registry stores template definitions in definition order.
type Registry struct {
	order     []string
	templates map[string]*ir.Template
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{templates: make(map[string]*ir.Template)}
}

// Define registers a template. It returns false if the name is taken.
func (r *Registry) Define(t ir.Template) bool {
	if _, exists := r.templates[t.Name]; exists {
		return false
	}
	r.templates[t.Name] = &t
	r.order = append(r.order, t.Name)
	return true
}

// Lookup returns the template with the given name.
func (r *Registry) Lookup(name string) (*ir.Template, bool) {
	t, ok := r.templates[name]
	return t, ok
}

// Names returns template names in definition order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Len returns the number of templates.
func (r *Registry) Len() int {
	return len(r.order)
}
