package elab

import (
	"github.com/rs/zerolog"

	"github.com/roach88/desflat/internal/ir"
	"github.com/roach88/desflat/internal/symtab"
)

// resolver binds actual events to formal parameters and materializes one
// concrete instance per component.
type resolver struct {
	table  *symtab.Table
	logger zerolog.Logger

	// declared maps instance name -> component index, for dependency order.
	declared map[string]int
}

func newResolver(table *symtab.Table, logger zerolog.Logger) *resolver {
	return &resolver{
		table:    table,
		logger:   logger,
		declared: make(map[string]int),
	}
}

// defineTemplates checks and registers every template.
func (r *resolver) defineTemplates(templates []ir.Template) error {
	for i := range templates {
		t := &templates[i]
		if err := checkTemplate(t, StageTemplate, i, false); err != nil {
			return err
		}
		if !r.table.Templates.Define(*t) {
			return newError(ErrCodeDuplicateName, StageTemplate, i, t.Pos, []string{t.Name},
				"template %q is defined twice", t.Name)
		}
	}
	r.logger.Debug().Int("templates", len(templates)).Msg("templates registered")
	return nil
}

// resolve processes the instantiation list and returns instances in
// declaration order.
func (r *resolver) resolve(components []ir.Component) ([]*ir.Instance, error) {
	instances := make([]*ir.Instance, len(components))

	// Inline automata declare all of their events up front: a flattened
	// document may reference any of them from anywhere.
	for i := range components {
		c := &components[i]
		if !c.IsInline() {
			continue
		}
		if err := r.declareInline(i, c); err != nil {
			return nil, err
		}
	}

	for i := range components {
		c := &components[i]
		if c.IsInline() {
			continue
		}
		inst, err := r.instantiate(i, c)
		if err != nil {
			return nil, err
		}
		instances[i] = inst
	}

	for i := range components {
		c := &components[i]
		if !c.IsInline() {
			continue
		}
		inst, err := r.buildInline(i, c)
		if err != nil {
			return nil, err
		}
		instances[i] = inst
	}

	r.logger.Debug().
		Int("instances", len(instances)).
		Int("events", r.table.Events.Len()).
		Strs("templates", r.table.Templates.Names()).
		Strs("declared", r.table.Instances()).
		Msg("components resolved")
	return instances, nil
}

func (r *resolver) declare(i int, c *ir.Component) (*symtab.Scope, error) {
	scope, ok := r.table.Declare(c.Name)
	if !ok {
		return nil, newError(ErrCodeDuplicateName, StageComponent, i, c.Pos, []string{c.Name},
			"instance %q is declared twice", c.Name)
	}
	r.declared[c.Name] = i
	return scope, nil
}

func (r *resolver) declareInline(i int, c *ir.Component) error {
	body := c.Body
	if len(body.Params) > 0 {
		return newError(ErrCodeMalformedTemplate, StageComponent, i, c.Pos, []string{c.Name},
			"inline automaton %s cannot declare formal parameters", c.Name)
	}
	if err := checkTemplate(body, StageComponent, i, true); err != nil {
		return err
	}
	scope, err := r.declare(i, c)
	if err != nil {
		return err
	}
	for _, d := range body.Events {
		// checkTemplate already rejected duplicates.
		r.table.NewEvent(scope, d.Name, d.Kind)
	}
	return nil
}

func (r *resolver) instantiate(i int, c *ir.Component) (*ir.Instance, error) {
	tmpl, ok := r.table.Templates.Lookup(c.Template)
	if !ok {
		return nil, newError(ErrCodeUnknownReference, StageComponent, i, c.Pos, []string{c.Name, c.Template},
			"instance %s uses unknown template %q", c.Name, c.Template)
	}
	if len(c.Args) != len(tmpl.Params) {
		return nil, newError(ErrCodeArity, StageComponent, i, c.Pos, []string{c.Name, c.Template},
			"template %s expects %d event(s), instance %s passes %d",
			tmpl.Name, len(tmpl.Params), c.Name, len(c.Args))
	}

	scope, err := r.declare(i, c)
	if err != nil {
		return nil, err
	}

	inst := &ir.Instance{Name: c.Name, Template: tmpl.Name}

	for k, param := range tmpl.Params {
		arg := c.Args[k]
		var id ir.EventID
		if arg.IsBare() {
			id = r.table.Events.New(c.Name, arg.Name, param.Kind)
			inst.Owned = append(inst.Owned, id)
		} else {
			id, err = r.borrow(i, c, param, arg)
			if err != nil {
				return nil, err
			}
		}
		// Formal names are unique; checkTemplate guarantees the bind succeeds.
		scope.Bind(param.Name, id)
		inst.Bindings = append(inst.Bindings, ir.Binding{Formal: param.Name, Event: id})
	}

	for _, d := range tmpl.Events {
		id, ok := r.table.NewEvent(scope, d.Name, d.Kind)
		if !ok {
			return nil, newError(ErrCodeDuplicateName, StageComponent, i, d.Pos, []string{c.Name, d.Name},
				"instance %s declares event %q twice", c.Name, d.Name)
		}
		inst.Owned = append(inst.Owned, id)
	}

	// Fresh actual events are also visible under their own name, so other
	// instances can borrow them as instance.actual.
	for k, arg := range c.Args {
		if !arg.IsBare() || arg.Name == tmpl.Params[k].Name {
			continue
		}
		id := inst.Bindings[k].Event
		if existing, bound := scope.Lookup(arg.Name); bound {
			if existing != id {
				return nil, newError(ErrCodeDuplicateName, StageComponent, i, c.Pos, []string{c.Name, arg.Name},
					"instance %s declares event %q twice", c.Name, arg.Name)
			}
			continue
		}
		scope.Bind(arg.Name, id)
	}

	inst.Locations = r.buildLocations(tmpl.Locations, func(ref ir.EventRef) ir.EventID {
		id, _ := scope.Lookup(ref.Name)
		return id
	})

	r.logger.Debug().
		Str("instance", c.Name).
		Str("template", tmpl.Name).
		Int("owned", len(inst.Owned)).
		Strs("scope", scope.Names()).
		Msg("instance resolved")
	return inst, nil
}

// borrow resolves a dotted actual event for a formal position.
func (r *resolver) borrow(i int, c *ir.Component, param ir.EventDecl, arg ir.EventRef) (ir.EventID, error) {
	names := []string{c.Name, param.Name, arg.String()}

	if param.Kind == ir.Controllable {
		return 0, newError(ErrCodeControllabilityMismatch, StageComponent, i, c.Pos, names,
			"controllable parameter %s of %s must be a fresh local event, cannot borrow %s",
			param.Name, c.Name, arg)
	}

	owner, declared := r.declared[arg.Instance]
	if !declared || owner >= i {
		return 0, newError(ErrCodeUnresolvedEvent, StageComponent, i, c.Pos, names,
			"%s references %s before instance %s is declared", c.Name, arg, arg.Instance)
	}

	id, _, found := r.table.Lookup(arg)
	if !found {
		return 0, newError(ErrCodeUnresolvedEvent, StageComponent, i, c.Pos, names,
			"instance %s has no event %q", arg.Instance, arg.Name)
	}

	if ev := r.table.Events.Get(id); ev.Kind != param.Kind {
		return 0, newError(ErrCodeControllabilityMismatch, StageComponent, i, c.Pos, names,
			"%s parameter %s of %s bound to %s event %s",
			param.Kind, param.Name, c.Name, ev.Kind, ev.QualifiedName())
	}
	return id, nil
}

func (r *resolver) buildInline(i int, c *ir.Component) (*ir.Instance, error) {
	scope, _ := r.table.Scope(c.Name)
	inst := &ir.Instance{Name: c.Name}
	for _, d := range c.Body.Events {
		id, _ := scope.Lookup(d.Name)
		inst.Owned = append(inst.Owned, id)
	}

	for _, loc := range c.Body.Locations {
		for _, e := range loc.Edges {
			if e.Event.IsBare() {
				continue
			}
			if _, instFound, evFound := r.table.Lookup(e.Event); !instFound || !evFound {
				return nil, newError(ErrCodeUnresolvedEvent, StageComponent, i, e.Pos,
					[]string{c.Name, e.Event.String()},
					"edge from %s.%s uses unresolved event %s", c.Name, loc.Name, e.Event)
			}
		}
	}

	inst.Locations = r.buildLocations(c.Body.Locations, func(ref ir.EventRef) ir.EventID {
		if ref.IsBare() {
			id, _ := scope.Lookup(ref.Name)
			return id
		}
		id, _, _ := r.table.Lookup(ref)
		return id
	})
	return inst, nil
}

func (r *resolver) buildLocations(locs []ir.Location, lookup func(ir.EventRef) ir.EventID) []ir.ResolvedLocation {
	out := make([]ir.ResolvedLocation, len(locs))
	for k, loc := range locs {
		rl := ir.ResolvedLocation{Name: loc.Name, Initial: loc.Initial, Marked: loc.Marked}
		for _, e := range loc.Edges {
			rl.Edges = append(rl.Edges, ir.ResolvedEdge{Event: lookup(e.Event), Target: e.Target})
		}
		out[k] = rl
	}
	return out
}
