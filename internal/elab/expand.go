package elab

import (
	"github.com/rs/zerolog"

	"github.com/roach88/desflat/internal/ir"
	"github.com/roach88/desflat/internal/symtab"
)

// expander validates requirements against the resolved instances and emits
// one clause per (guard, disabled event) pair.
type expander struct {
	table     *symtab.Table
	instances map[string]*ir.Instance
	logger    zerolog.Logger

	req int
	pos ir.Pos
}

func newExpander(table *symtab.Table, instances []*ir.Instance, logger zerolog.Logger) *expander {
	byName := make(map[string]*ir.Instance, len(instances))
	for _, inst := range instances {
		byName[inst.Name] = inst
	}
	return &expander{table: table, instances: byName, logger: logger}
}

// expand processes requirements in order. Set-literal targets expand in
// textual order, every clause sharing the same resolved guard.
func (x *expander) expand(reqs []ir.Requirement) ([]ir.Clause, error) {
	var clauses []ir.Clause
	for i := range reqs {
		req := &reqs[i]
		x.req, x.pos = i, req.Pos

		if req.Guard == nil {
			return nil, x.fail(ErrCodeUnknownReference, nil, "requirement has no guard")
		}
		if len(req.Disables) == 0 {
			return nil, x.fail(ErrCodeUnknownReference, nil, "requirement disables no event")
		}

		guard, err := req.Guard.Map(x.resolveAtom)
		if err != nil {
			return nil, err
		}

		for _, target := range req.Disables {
			id, err := x.resolveDisabled(target)
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, ir.Clause{Guard: guard, Disables: id, Source: i})
		}
	}

	x.logger.Debug().
		Int("requirements", len(reqs)).
		Int("clauses", len(clauses)).
		Msg("requirements expanded")
	return clauses, nil
}

// resolveAtom validates one guard atom. Locations take precedence over events
// of the same name. Event atoms are rewritten to the event's owner so that the
// flattened text refers to the declaring instance.
func (x *expander) resolveAtom(atom *ir.Guard) (*ir.Guard, error) {
	ref := atom.Ref
	names := []string{ref.String()}
	if ref.IsBare() {
		return nil, x.fail(ErrCodeUnknownReference, names,
			"guard atom %q must be written as instance.location or instance.event", ref.Name)
	}
	inst, ok := x.instances[ref.Instance]
	if !ok {
		return nil, x.fail(ErrCodeUnknownReference, names,
			"guard references unknown instance %q", ref.Instance)
	}

	if inst.Location(ref.Name) != nil {
		return &ir.Guard{Kind: ir.GuardAtom, Ref: ref, AtomKind: ir.AtomLocation}, nil
	}

	id, _, found := x.table.Lookup(ref)
	if !found {
		return nil, x.fail(ErrCodeUnknownReference, names,
			"instance %s has no location or event %q", ref.Instance, ref.Name)
	}
	ev := x.table.Events.Get(id)
	return &ir.Guard{
		Kind:     ir.GuardAtom,
		Ref:      ir.Ref(ev.Owner, ev.Name),
		AtomKind: ir.AtomEvent,
		Denotes:  x.denotes(ev),
	}, nil
}

// denotes returns the owner locations entered by the event, in location
// order. A self-loop denotes its source location.
func (x *expander) denotes(ev ir.Event) []string {
	owner, ok := x.instances[ev.Owner]
	if !ok {
		return nil
	}
	seen := make(map[string]bool)
	var locs []string
	for _, loc := range owner.Locations {
		for _, e := range loc.Edges {
			if e.Event != ev.ID {
				continue
			}
			target := e.Target
			if target == "" {
				target = loc.Name
			}
			if !seen[target] {
				seen[target] = true
				locs = append(locs, target)
			}
		}
	}
	return locs
}

func (x *expander) resolveDisabled(target ir.EventRef) (ir.EventID, error) {
	names := []string{target.String()}
	if target.IsBare() {
		return 0, x.fail(ErrCodeUnknownReference, names,
			"disabled event %q must be written as instance.event", target.Name)
	}
	inst, ok := x.instances[target.Instance]
	if !ok {
		return 0, x.fail(ErrCodeUnknownReference, names,
			"requirement disables event of unknown instance %q", target.Instance)
	}
	id, _, found := x.table.Lookup(target)
	if !found {
		if inst.Location(target.Name) != nil {
			return 0, x.fail(ErrCodeUnknownReference, names,
				"%s is a location, only events can be disabled", target)
		}
		return 0, x.fail(ErrCodeUnknownReference, names,
			"instance %s has no event %q", target.Instance, target.Name)
	}
	ev := x.table.Events.Get(id)
	if ev.Kind != ir.Controllable {
		return 0, x.fail(ErrCodeSemanticsViolation, []string{target.String(), ev.QualifiedName()},
			"requirement disables uncontrollable event %s", ev.QualifiedName())
	}
	return id, nil
}

func (x *expander) fail(code ErrorCode, names []string, format string, args ...any) *Error {
	return newError(code, StageRequirement, x.req, x.pos, names, format, args...)
}
