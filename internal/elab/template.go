package elab

import (
	"github.com/roach88/desflat/internal/ir"
)

// checkTemplate validates a template or inline automaton body in isolation.
// Dotted edge events are only legal in inline bodies; they are resolved
// against the whole network after every component has been declared.
func checkTemplate(t *ir.Template, stage Stage, stmt int, inline bool) error {
	events := make(map[string]bool, len(t.Params)+len(t.Events))
	for _, decls := range [][]ir.EventDecl{t.Params, t.Events} {
		for _, d := range decls {
			if events[d.Name] {
				return newError(ErrCodeDuplicateName, stage, stmt, d.Pos, []string{t.Name, d.Name},
					"%s declares event %q twice", t.Name, d.Name)
			}
			events[d.Name] = true
		}
	}

	locations := make(map[string]bool, len(t.Locations))
	initial := 0
	for _, loc := range t.Locations {
		if locations[loc.Name] {
			return newError(ErrCodeDuplicateName, stage, stmt, loc.Pos, []string{t.Name, loc.Name},
				"%s declares location %q twice", t.Name, loc.Name)
		}
		locations[loc.Name] = true
		if loc.Initial {
			initial++
		}
	}
	if initial != 1 {
		return newError(ErrCodeMalformedTemplate, stage, stmt, t.Pos, []string{t.Name},
			"%s must have exactly one initial location, found %d", t.Name, initial)
	}

	for _, loc := range t.Locations {
		for _, e := range loc.Edges {
			if e.Target != "" && !locations[e.Target] {
				return newError(ErrCodeUnknownReference, stage, stmt, e.Pos, []string{t.Name, loc.Name, e.Target},
					"edge from %s.%s targets unknown location %q", t.Name, loc.Name, e.Target)
			}
			if !e.Event.IsBare() {
				if inline {
					continue
				}
				return newError(ErrCodeUnknownReference, stage, stmt, e.Pos, []string{t.Name, e.Event.String()},
					"template %s may only use its own events and formal parameters, got %q", t.Name, e.Event)
			}
			if !events[e.Event.Name] {
				return newError(ErrCodeUnknownReference, stage, stmt, e.Pos, []string{t.Name, e.Event.Name},
					"edge from %s.%s uses undeclared event %q", t.Name, loc.Name, e.Event.Name)
			}
		}
	}

	return nil
}
