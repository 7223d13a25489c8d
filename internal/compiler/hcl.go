package compiler

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"

	"github.com/roach88/desflat/internal/ir"
	"github.com/roach88/desflat/internal/syntax"
)

// hclModelFile is the top-level structure of an HCL model for decoding.
type hclModelFile struct {
	Templates    []*hclTemplate    `hcl:"template,block"`
	Automata     []*hclAutomaton   `hcl:"automaton,block"`
	Components   []*hclComponent   `hcl:"component,block"`
	Requirements []*hclRequirement `hcl:"requirement,block"`
}

type hclTemplate struct {
	Name           string         `hcl:"name,label"`
	Params         []*hclParam    `hcl:"param,block"`
	Controllable   []string       `hcl:"controllable,optional"`
	Uncontrollable []string       `hcl:"uncontrollable,optional"`
	Locations      []*hclLocation `hcl:"location,block"`
	Remain         hcl.Body       `hcl:",remain"`
}

type hclAutomaton struct {
	Name           string         `hcl:"name,label"`
	Group          string         `hcl:"group,optional"`
	Controllable   []string       `hcl:"controllable,optional"`
	Uncontrollable []string       `hcl:"uncontrollable,optional"`
	Locations      []*hclLocation `hcl:"location,block"`
	Remain         hcl.Body       `hcl:",remain"`
}

type hclParam struct {
	Name string `hcl:"name,label"`
	Kind string `hcl:"kind"`
}

type hclLocation struct {
	Name    string     `hcl:"name,label"`
	Initial bool       `hcl:"initial,optional"`
	Marked  bool       `hcl:"marked,optional"`
	Edges   []*hclEdge `hcl:"edge,block"`
	Remain  hcl.Body   `hcl:",remain"`
}

type hclEdge struct {
	Event  string   `hcl:"event"`
	Target string   `hcl:"target,optional"`
	Remain hcl.Body `hcl:",remain"`
}

type hclComponent struct {
	Name     string   `hcl:"name,label"`
	Template string   `hcl:"template"`
	Args     []string `hcl:"args,optional"`
	Group    string   `hcl:"group,optional"`
	Remain   hcl.Body `hcl:",remain"`
}

type hclRequirement struct {
	Guard    string   `hcl:"guard"`
	Disables []string `hcl:"disables"`
	Remain   hcl.Body `hcl:",remain"`
}

// ParseHCLFile decodes an HCL model file from disk.
func ParseHCLFile(path string) (*ir.Model, error) {
	file, diags := hclparse.NewParser().ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}
	return decodeHCL(path, file)
}

// ParseHCL decodes an in-memory HCL model. filename is used in positions.
//
//	template "Motor" {
//	  param "u_trip" { kind = "uncontrollable" }
//	  controllable = ["c_on", "c_off"]
//	  location "Stopped" {
//	    initial = true
//	    edge {
//	      event  = "c_on"
//	      target = "Running"
//	    }
//	  }
//	}
//	component "M1" {
//	  template = "Motor"
//	  args     = ["S1.u_on"]
//	}
//	requirement {
//	  guard    = "M1.Stopped and not S1.On"
//	  disables = ["M1.c_on"]
//	}
//
// Components keep their file order whether they are automaton or component
// blocks.
func ParseHCL(src []byte, filename string) (*ir.Model, error) {
	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}
	return decodeHCL(filename, file)
}

func decodeHCL(path string, file *hcl.File) (*ir.Model, error) {
	var parsed hclModelFile
	diags := gohcl.DecodeBody(file.Body, nil, &parsed)
	if !diags.HasErrors() {
		diags = append(diags, parsed.strict()...)
	}
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", path, diags)
	}

	m := &ir.Model{}
	for _, t := range parsed.Templates {
		tmpl, err := hclTemplateBody(t.Name, t.Controllable, t.Uncontrollable, t.Locations, t.Remain)
		if err != nil {
			return nil, err
		}
		for _, p := range t.Params {
			kind, err := ir.ParseControllability(p.Kind)
			if err != nil {
				return nil, hclError(t.Remain, "template %s, param %s: %v", t.Name, p.Name, err)
			}
			tmpl.Params = append(tmpl.Params, ir.EventDecl{Name: p.Name, Kind: kind, Pos: tmpl.Pos})
		}
		m.Templates = append(m.Templates, *tmpl)
	}

	automata := make([]ir.Component, 0, len(parsed.Automata))
	for _, a := range parsed.Automata {
		body, err := hclTemplateBody(a.Name, a.Controllable, a.Uncontrollable, a.Locations, a.Remain)
		if err != nil {
			return nil, err
		}
		automata = append(automata, ir.Component{
			Name:  a.Name,
			Body:  body,
			Group: a.Group,
			Pos:   body.Pos,
		})
	}

	instances := make([]ir.Component, 0, len(parsed.Components))
	for _, c := range parsed.Components {
		comp := ir.Component{Name: c.Name, Template: c.Template, Group: c.Group, Pos: hclPos(c.Remain)}
		for _, a := range c.Args {
			ref, err := ir.ParseEventRef(a)
			if err != nil {
				return nil, hclError(c.Remain, "component %s: %v", c.Name, err)
			}
			comp.Args = append(comp.Args, ref)
		}
		instances = append(instances, comp)
	}
	m.Components = sourceOrder(file.Body, automata, instances)

	for i, r := range parsed.Requirements {
		guard, err := syntax.ParseGuard(r.Guard)
		if err != nil {
			return nil, hclError(r.Remain, "requirement %d: guard: %v", i, err)
		}
		req := ir.Requirement{Guard: guard, Set: len(r.Disables) != 1, Pos: hclPos(r.Remain)}
		for _, d := range r.Disables {
			ref, err := ir.ParseEventRef(d)
			if err != nil {
				return nil, hclError(r.Remain, "requirement %d: %v", i, err)
			}
			req.Disables = append(req.Disables, ref)
		}
		m.Requirements = append(m.Requirements, req)
	}

	return m, nil
}

func hclTemplateBody(name string, controllable, uncontrollable []string, locs []*hclLocation, rng hcl.Body) (*ir.Template, error) {
	t := &ir.Template{Name: name, Pos: hclPos(rng)}
	for _, n := range controllable {
		t.Events = append(t.Events, ir.EventDecl{Name: n, Kind: ir.Controllable, Pos: t.Pos})
	}
	for _, n := range uncontrollable {
		t.Events = append(t.Events, ir.EventDecl{Name: n, Kind: ir.Uncontrollable, Pos: t.Pos})
	}
	for _, l := range locs {
		loc := ir.Location{Name: l.Name, Initial: l.Initial, Marked: l.Marked, Pos: hclPos(l.Remain)}
		for _, e := range l.Edges {
			ref, err := ir.ParseEventRef(e.Event)
			if err != nil {
				return nil, hclError(e.Remain, "%s.%s: %v", name, l.Name, err)
			}
			loc.Edges = append(loc.Edges, ir.Edge{Event: ref, Target: e.Target, Pos: hclPos(e.Remain)})
		}
		t.Locations = append(t.Locations, loc)
	}
	return t, nil
}

// sourceOrder interleaves automaton and component blocks as they appear in
// the file. gohcl keeps the order within each block type, so the two lists
// are consumed front to back while walking the native syntax tree. Bodies
// without a native syntax tree keep automata before components.
func sourceOrder(body hcl.Body, automata, instances []ir.Component) []ir.Component {
	all := make([]ir.Component, 0, len(automata)+len(instances))
	native, ok := body.(*hclsyntax.Body)
	if !ok {
		return append(append(all, automata...), instances...)
	}
	for _, b := range native.Blocks {
		switch {
		case b.Type == "automaton" && len(automata) > 0:
			all = append(all, automata[0])
			automata = automata[1:]
		case b.Type == "component" && len(instances) > 0:
			all = append(all, instances[0])
			instances = instances[1:]
		}
	}
	return append(append(all, automata...), instances...)
}

// hclPos locates a block by its body.
func hclPos(body hcl.Body) ir.Pos {
	r := body.MissingItemRange()
	return ir.Pos{File: r.Filename, Line: r.Start.Line, Column: r.Start.Column}
}

func hclError(body hcl.Body, format string, args ...any) error {
	r := body.MissingItemRange()
	return hcl.Diagnostics{{
		Severity: hcl.DiagError,
		Summary:  "Invalid model",
		Detail:   fmt.Sprintf(format, args...),
		Subject:  r.Ptr(),
	}}
}

// strict rejects attributes and blocks left over after decoding.
func strict(body hcl.Body) hcl.Diagnostics {
	_, diags := body.Content(&hcl.BodySchema{})
	return diags
}

func (f *hclModelFile) strict() hcl.Diagnostics {
	var diags hcl.Diagnostics
	for _, t := range f.Templates {
		diags = append(diags, strict(t.Remain)...)
		for _, l := range t.Locations {
			diags = append(diags, l.strict()...)
		}
	}
	for _, a := range f.Automata {
		diags = append(diags, strict(a.Remain)...)
		for _, l := range a.Locations {
			diags = append(diags, l.strict()...)
		}
	}
	for _, c := range f.Components {
		diags = append(diags, strict(c.Remain)...)
	}
	for _, r := range f.Requirements {
		diags = append(diags, strict(r.Remain)...)
	}
	return diags
}

func (l *hclLocation) strict() hcl.Diagnostics {
	diags := strict(l.Remain)
	for _, e := range l.Edges {
		diags = append(diags, strict(e.Remain)...)
	}
	return diags
}
