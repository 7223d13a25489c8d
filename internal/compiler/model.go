package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/desflat/internal/ir"
	"github.com/roach88/desflat/internal/syntax"
)

// CompileModel parses a CUE value into a model.
//
// The value is the model root:
//
//	templates: Motor: {
//		params: [{name: "u_trip", kind: "uncontrollable"}]
//		controllable: ["c_on", "c_off"]
//		locations: [
//			{name: "Stopped", initial: true, marked: true, edges: [{event: "c_on", target: "Running"}]},
//			{name: "Running", edges: [{event: "c_off", target: "Stopped"}, {event: "u_trip"}]},
//		]
//	}
//	components: [
//		{name: "S1", template: "Sensor"},
//		{name: "M1", template: "Motor", args: ["S1.u_on"], group: "Drives"},
//	]
//	requirements: [{guard: "M1.Stopped and not S1.On", disables: "M1.c_on"}]
//
// A component may carry an inline automaton body instead of a template.
func CompileModel(v cue.Value) (*ir.Model, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	m := &ir.Model{}

	templatesVal := v.LookupPath(cue.ParsePath("templates"))
	if templatesVal.Exists() {
		iter, err := templatesVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			t, err := compileTemplate(iter.Label(), iter.Value(), "templates."+iter.Label(), true)
			if err != nil {
				return nil, err
			}
			m.Templates = append(m.Templates, *t)
		}
	}

	componentsVal := v.LookupPath(cue.ParsePath("components"))
	if componentsVal.Exists() {
		iter, err := componentsVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for i := 0; iter.Next(); i++ {
			c, err := compileComponent(iter.Value(), fmt.Sprintf("components[%d]", i))
			if err != nil {
				return nil, err
			}
			m.Components = append(m.Components, *c)
		}
	}

	requirementsVal := v.LookupPath(cue.ParsePath("requirements"))
	if requirementsVal.Exists() {
		iter, err := requirementsVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for i := 0; iter.Next(); i++ {
			r, err := compileRequirement(iter.Value(), fmt.Sprintf("requirements[%d]", i))
			if err != nil {
				return nil, err
			}
			m.Requirements = append(m.Requirements, *r)
		}
	}

	if len(m.Templates) == 0 && len(m.Components) == 0 && len(m.Requirements) == 0 {
		return nil, &CompileError{
			Field:   "model",
			Message: "model declares no templates, components or requirements",
			Pos:     v.Pos(),
		}
	}

	return m, nil
}

// compileTemplate parses a template or inline automaton body.
func compileTemplate(name string, v cue.Value, field string, allowParams bool) (*ir.Template, error) {
	t := &ir.Template{Name: name, Pos: irPos(v.Pos())}

	paramsVal := v.LookupPath(cue.ParsePath("params"))
	if paramsVal.Exists() {
		if !allowParams {
			return nil, &CompileError{
				Field:   field + ".params",
				Message: "inline automata cannot declare parameters",
				Pos:     paramsVal.Pos(),
			}
		}
		iter, err := paramsVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for i := 0; iter.Next(); i++ {
			p := iter.Value()
			pfield := fmt.Sprintf("%s.params[%d]", field, i)
			pname, err := requiredString(p, "name", pfield)
			if err != nil {
				return nil, err
			}
			kindStr, err := requiredString(p, "kind", pfield)
			if err != nil {
				return nil, err
			}
			kind, err := ir.ParseControllability(kindStr)
			if err != nil {
				return nil, &CompileError{Field: pfield + ".kind", Message: err.Error(), Pos: p.Pos()}
			}
			t.Params = append(t.Params, ir.EventDecl{Name: pname, Kind: kind, Pos: irPos(p.Pos())})
		}
	}

	for _, kind := range []ir.Controllability{ir.Controllable, ir.Uncontrollable} {
		names, err := optionalStrings(v, kind.String())
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			t.Events = append(t.Events, ir.EventDecl{Name: n, Kind: kind, Pos: t.Pos})
		}
	}

	locationsVal := v.LookupPath(cue.ParsePath("locations"))
	if !locationsVal.Exists() {
		return nil, &CompileError{
			Field:   field + ".locations",
			Message: "at least one location is required",
			Pos:     v.Pos(),
		}
	}
	iter, err := locationsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for i := 0; iter.Next(); i++ {
		loc, err := compileLocation(iter.Value(), fmt.Sprintf("%s.locations[%d]", field, i))
		if err != nil {
			return nil, err
		}
		t.Locations = append(t.Locations, *loc)
	}

	return t, nil
}

func compileLocation(v cue.Value, field string) (*ir.Location, error) {
	name, err := requiredString(v, "name", field)
	if err != nil {
		return nil, err
	}
	loc := &ir.Location{Name: name, Pos: irPos(v.Pos())}

	if loc.Initial, err = optionalBool(v, "initial"); err != nil {
		return nil, err
	}
	if loc.Marked, err = optionalBool(v, "marked"); err != nil {
		return nil, err
	}

	edgesVal := v.LookupPath(cue.ParsePath("edges"))
	if !edgesVal.Exists() {
		return loc, nil
	}
	iter, err := edgesVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for i := 0; iter.Next(); i++ {
		e := iter.Value()
		efield := fmt.Sprintf("%s.edges[%d]", field, i)
		evStr, err := requiredString(e, "event", efield)
		if err != nil {
			return nil, err
		}
		ref, err := ir.ParseEventRef(evStr)
		if err != nil {
			return nil, &CompileError{Field: efield + ".event", Message: err.Error(), Pos: e.Pos()}
		}
		target, err := optionalString(e, "target")
		if err != nil {
			return nil, err
		}
		loc.Edges = append(loc.Edges, ir.Edge{Event: ref, Target: target, Pos: irPos(e.Pos())})
	}
	return loc, nil
}

func compileComponent(v cue.Value, field string) (*ir.Component, error) {
	name, err := requiredString(v, "name", field)
	if err != nil {
		return nil, err
	}
	c := &ir.Component{Name: name, Pos: irPos(v.Pos())}

	if c.Group, err = optionalString(v, "group"); err != nil {
		return nil, err
	}

	bodyVal := v.LookupPath(cue.ParsePath("automaton"))
	templateVal := v.LookupPath(cue.ParsePath("template"))
	switch {
	case bodyVal.Exists() && templateVal.Exists():
		return nil, &CompileError{
			Field:   field,
			Message: "component must set either template or automaton, not both",
			Pos:     v.Pos(),
		}
	case bodyVal.Exists():
		body, err := compileTemplate(name, bodyVal, field+".automaton", false)
		if err != nil {
			return nil, err
		}
		c.Body = body
		return c, nil
	}

	if c.Template, err = requiredString(v, "template", field); err != nil {
		return nil, err
	}
	args, err := optionalStrings(v, "args")
	if err != nil {
		return nil, err
	}
	for i, a := range args {
		ref, err := ir.ParseEventRef(a)
		if err != nil {
			return nil, &CompileError{Field: fmt.Sprintf("%s.args[%d]", field, i), Message: err.Error(), Pos: v.Pos()}
		}
		c.Args = append(c.Args, ref)
	}
	return c, nil
}

func compileRequirement(v cue.Value, field string) (*ir.Requirement, error) {
	guardStr, err := requiredString(v, "guard", field)
	if err != nil {
		return nil, err
	}
	guard, err := syntax.ParseGuard(guardStr)
	if err != nil {
		return nil, &CompileError{
			Field:   field + ".guard",
			Message: err.Error(),
			Pos:     v.LookupPath(cue.ParsePath("guard")).Pos(),
		}
	}
	r := &ir.Requirement{Guard: guard, Pos: irPos(v.Pos())}

	disablesVal := v.LookupPath(cue.ParsePath("disables"))
	if !disablesVal.Exists() {
		return nil, &CompileError{Field: field + ".disables", Message: "disables is required", Pos: v.Pos()}
	}

	var targets []string
	if s, err := disablesVal.String(); err == nil {
		targets = []string{s}
	} else {
		r.Set = true
		if targets, err = stringList(disablesVal); err != nil {
			return nil, err
		}
	}
	for i, s := range targets {
		ref, err := ir.ParseEventRef(s)
		if err != nil {
			return nil, &CompileError{
				Field:   fmt.Sprintf("%s.disables[%d]", field, i),
				Message: err.Error(),
				Pos:     disablesVal.Pos(),
			}
		}
		r.Disables = append(r.Disables, ref)
	}
	return r, nil
}

func requiredString(v cue.Value, name, field string) (string, error) {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return "", &CompileError{
			Field:   field + "." + name,
			Message: name + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalString(v cue.Value, name string) (string, error) {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return "", nil
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalBool(v cue.Value, name string) (bool, error) {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return false, nil
	}
	b, err := f.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

func optionalStrings(v cue.Value, name string) ([]string, error) {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return nil, nil
	}
	return stringList(f)
}

func stringList(v cue.Value) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}
