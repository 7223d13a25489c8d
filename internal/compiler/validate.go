package compiler

import (
	"fmt"

	"github.com/roach88/desflat/internal/ir"
	"github.com/roach88/desflat/internal/syntax"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedIRType = "E100" // unsupported IR type for validation

	// Template errors (E101-E109)
	ErrInvalidName      = "E101" // not an identifier, or a reserved word
	ErrInitialLocation  = "E102" // template must have exactly one initial location
	ErrUnknownTarget    = "E103" // edge targets an undeclared location
	ErrUndeclaredEvent  = "E104" // edge uses an undeclared event
	ErrDuplicateName    = "E105" // duplicate template/instance/location/event name
	ErrForeignEventRef  = "E106" // template edge uses a dotted event
	ErrEmptyTemplate    = "E107" // template has no locations
	ErrInlineParameters = "E108" // inline automaton declares parameters

	// Component errors (E110-E119)
	ErrUnknownTemplate    = "E110" // component uses an undefined template
	ErrArity              = "E111" // argument count differs from parameter count
	ErrForwardReference   = "E112" // dotted argument names a later or unknown instance
	ErrControllableBorrow = "E113" // controllable parameter bound to a dotted event
	ErrComponentShape     = "E114" // component has neither or both of template and body

	// Requirement errors (E120-E129)
	ErrMissingGuard    = "E120" // requirement has no guard
	ErrNoTargets       = "E121" // requirement disables nothing
	ErrBareReference   = "E122" // guard atom or target is not instance.name
	ErrUnknownInstance = "E123" // guard atom or target names an unknown instance
	ErrDependencyCycle = "E124" // instantiation arguments form a cycle
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a model against static rules.
// Returns all errors found (does not fail-fast). Elaboration performs the
// authoritative event resolution; Validate reports every structural problem
// at once.
// Supports Model and Template types.
func Validate(v any) []ValidationError {
	switch val := v.(type) {
	case *ir.Model:
		return validateModel(val)
	case ir.Model:
		return validateModel(&val)
	case *ir.Template:
		return validateTemplate(val, "template."+val.Name, false)
	case ir.Template:
		return validateTemplate(&val, "template."+val.Name, false)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

func validateModel(m *ir.Model) []ValidationError {
	var errs []ValidationError

	templates := make(map[string]*ir.Template, len(m.Templates))
	for i := range m.Templates {
		t := &m.Templates[i]
		field := fmt.Sprintf("templates[%d]", i)
		errs = append(errs, checkName(t.Name, field+".name", t.Pos)...)
		if _, dup := templates[t.Name]; dup {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("duplicate template name: %q", t.Name),
				Code:    ErrDuplicateName,
				Line:    t.Pos.Line,
			})
		} else {
			templates[t.Name] = t
		}
		errs = append(errs, validateTemplate(t, field, false)...)
	}

	// Instances visible to later arguments, and every event name each
	// instance can be asked for.
	declared := make(map[string]int)
	instances := make(map[string]bool, len(m.Components))
	for _, c := range m.Components {
		instances[c.Name] = true
	}

	seen := make(map[string]bool)
	for i := range m.Components {
		c := &m.Components[i]
		field := fmt.Sprintf("components[%d]", i)
		errs = append(errs, checkName(c.Name, field+".name", c.Pos)...)
		if c.Group != "" {
			errs = append(errs, checkName(c.Group, field+".group", c.Pos)...)
		}
		if seen[c.Name] {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("duplicate instance name: %q", c.Name),
				Code:    ErrDuplicateName,
				Line:    c.Pos.Line,
			})
		}
		seen[c.Name] = true

		switch {
		case c.Body != nil && c.Template != "":
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "component has both a template and an inline body",
				Code:    ErrComponentShape,
				Line:    c.Pos.Line,
			})
		case c.Body != nil:
			errs = append(errs, validateTemplate(c.Body, field+".body", true)...)
			for _, loc := range c.Body.Locations {
				for _, e := range loc.Edges {
					if !e.Event.IsBare() && !instances[e.Event.Instance] {
						errs = append(errs, ValidationError{
							Field:   field + ".body",
							Message: fmt.Sprintf("edge uses event of unknown instance %q", e.Event.Instance),
							Code:    ErrUnknownInstance,
							Line:    e.Pos.Line,
						})
					}
				}
			}
		case c.Template == "":
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "component has neither a template nor an inline body",
				Code:    ErrComponentShape,
				Line:    c.Pos.Line,
			})
		default:
			errs = append(errs, validateInstantiation(c, field, i, templates, declared)...)
		}

		if _, ok := declared[c.Name]; !ok {
			declared[c.Name] = i
		}
	}

	for _, w := range AnalyzeCycles(m) {
		if w.Level != LevelError {
			continue
		}
		errs = append(errs, ValidationError{
			Field:   "components",
			Message: w.Message,
			Code:    ErrDependencyCycle,
		})
	}

	for i := range m.Requirements {
		errs = append(errs, validateRequirement(&m.Requirements[i], fmt.Sprintf("requirements[%d]", i), instances)...)
	}

	return errs
}

func validateInstantiation(c *ir.Component, field string, index int, templates map[string]*ir.Template, declared map[string]int) []ValidationError {
	var errs []ValidationError

	t, ok := templates[c.Template]
	if !ok {
		return []ValidationError{{
			Field:   field + ".template",
			Message: fmt.Sprintf("unknown template %q", c.Template),
			Code:    ErrUnknownTemplate,
			Line:    c.Pos.Line,
		}}
	}
	if len(c.Args) != len(t.Params) {
		errs = append(errs, ValidationError{
			Field:   field + ".args",
			Message: fmt.Sprintf("template %s expects %d event(s), got %d", t.Name, len(t.Params), len(c.Args)),
			Code:    ErrArity,
			Line:    c.Pos.Line,
		})
	}

	for k, arg := range c.Args {
		afield := fmt.Sprintf("%s.args[%d]", field, k)
		if arg.IsBare() {
			errs = append(errs, checkName(arg.Name, afield, c.Pos)...)
			continue
		}
		if k < len(t.Params) && t.Params[k].Kind == ir.Controllable {
			errs = append(errs, ValidationError{
				Field:   afield,
				Message: fmt.Sprintf("controllable parameter %s must be a fresh local event, got %s", t.Params[k].Name, arg),
				Code:    ErrControllableBorrow,
				Line:    c.Pos.Line,
			})
		}
		if owner, ok := declared[arg.Instance]; !ok || owner >= index {
			errs = append(errs, ValidationError{
				Field:   afield,
				Message: fmt.Sprintf("%s references instance %s before it is declared", c.Name, arg.Instance),
				Code:    ErrForwardReference,
				Line:    c.Pos.Line,
			})
		}
	}
	return errs
}

// validateTemplate checks one template or inline body in isolation.
func validateTemplate(t *ir.Template, field string, inline bool) []ValidationError {
	var errs []ValidationError

	if inline && len(t.Params) > 0 {
		errs = append(errs, ValidationError{
			Field:   field + ".params",
			Message: "inline automata cannot declare parameters",
			Code:    ErrInlineParameters,
			Line:    t.Pos.Line,
		})
	}

	events := make(map[string]bool)
	for j, decls := range [][]ir.EventDecl{t.Params, t.Events} {
		kind := "params"
		if j == 1 {
			kind = "events"
		}
		for k, d := range decls {
			efield := fmt.Sprintf("%s.%s[%d]", field, kind, k)
			errs = append(errs, checkName(d.Name, efield, d.Pos)...)
			if events[d.Name] {
				errs = append(errs, ValidationError{
					Field:   efield,
					Message: fmt.Sprintf("duplicate event name: %q", d.Name),
					Code:    ErrDuplicateName,
					Line:    d.Pos.Line,
				})
			}
			events[d.Name] = true
		}
	}

	if len(t.Locations) == 0 {
		errs = append(errs, ValidationError{
			Field:   field + ".locations",
			Message: fmt.Sprintf("%s has no locations", t.Name),
			Code:    ErrEmptyTemplate,
			Line:    t.Pos.Line,
		})
	}

	locations := make(map[string]bool)
	initial := 0
	for k, loc := range t.Locations {
		lfield := fmt.Sprintf("%s.locations[%d]", field, k)
		errs = append(errs, checkName(loc.Name, lfield+".name", loc.Pos)...)
		if locations[loc.Name] {
			errs = append(errs, ValidationError{
				Field:   lfield + ".name",
				Message: fmt.Sprintf("duplicate location name: %q", loc.Name),
				Code:    ErrDuplicateName,
				Line:    loc.Pos.Line,
			})
		}
		locations[loc.Name] = true
		if loc.Initial {
			initial++
		}
	}
	if len(t.Locations) > 0 && initial != 1 {
		errs = append(errs, ValidationError{
			Field:   field + ".locations",
			Message: fmt.Sprintf("%s must have exactly one initial location, found %d", t.Name, initial),
			Code:    ErrInitialLocation,
			Line:    t.Pos.Line,
		})
	}

	for k, loc := range t.Locations {
		for n, e := range loc.Edges {
			efield := fmt.Sprintf("%s.locations[%d].edges[%d]", field, k, n)
			if e.Target != "" && !locations[e.Target] {
				errs = append(errs, ValidationError{
					Field:   efield + ".target",
					Message: fmt.Sprintf("unknown target location %q", e.Target),
					Code:    ErrUnknownTarget,
					Line:    e.Pos.Line,
				})
			}
			switch {
			case !e.Event.IsBare() && !inline:
				errs = append(errs, ValidationError{
					Field:   efield + ".event",
					Message: fmt.Sprintf("template edges may only use local events and parameters, got %s", e.Event),
					Code:    ErrForeignEventRef,
					Line:    e.Pos.Line,
				})
			case e.Event.IsBare() && !events[e.Event.Name]:
				errs = append(errs, ValidationError{
					Field:   efield + ".event",
					Message: fmt.Sprintf("undeclared event %q", e.Event.Name),
					Code:    ErrUndeclaredEvent,
					Line:    e.Pos.Line,
				})
			}
		}
	}

	return errs
}

func validateRequirement(r *ir.Requirement, field string, instances map[string]bool) []ValidationError {
	var errs []ValidationError
	line := r.Pos.Line

	checkRef := func(ref ir.EventRef, f string) {
		switch {
		case ref.IsBare():
			errs = append(errs, ValidationError{
				Field:   f,
				Message: fmt.Sprintf("%q must be written as instance.name", ref.Name),
				Code:    ErrBareReference,
				Line:    line,
			})
		case !instances[ref.Instance]:
			errs = append(errs, ValidationError{
				Field:   f,
				Message: fmt.Sprintf("unknown instance %q", ref.Instance),
				Code:    ErrUnknownInstance,
				Line:    line,
			})
		}
	}

	if r.Guard == nil {
		errs = append(errs, ValidationError{
			Field:   field + ".guard",
			Message: "requirement has no guard",
			Code:    ErrMissingGuard,
			Line:    line,
		})
	} else {
		for _, atom := range r.Guard.Atoms() {
			checkRef(atom.Ref, field+".guard")
		}
	}

	if len(r.Disables) == 0 {
		errs = append(errs, ValidationError{
			Field:   field + ".disables",
			Message: "requirement disables no event",
			Code:    ErrNoTargets,
			Line:    line,
		})
	}
	for k, d := range r.Disables {
		checkRef(d, fmt.Sprintf("%s.disables[%d]", field, k))
	}
	return errs
}

func checkName(name, field string, pos ir.Pos) []ValidationError {
	if ir.IsIdentifier(name) && !syntax.IsReserved(name) {
		return nil
	}
	return []ValidationError{{
		Field:   field,
		Message: fmt.Sprintf("%q is not a valid name", name),
		Code:    ErrInvalidName,
		Line:    pos.Line,
	}}
}
