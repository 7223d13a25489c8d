package syntax

import (
	"fmt"

	"github.com/roach88/desflat/internal/ir"
)

// Parse parses a complete document. file is used in positions only.
func Parse(file string, src []byte) (*ir.Model, error) {
	toks, err := lex(file, src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	return p.document()
}

// ParseString is Parse for in-memory sources.
func ParseString(src string) (*ir.Model, error) {
	return Parse("", []byte(src))
}

// ParseGuard parses a standalone guard expression, as embedded in CUE or
// HCL models.
func ParseGuard(src string) (*ir.Guard, error) {
	toks, err := lex("", []byte(src))
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	g, err := p.guard()
	if err != nil {
		return nil, err
	}
	if !p.at(tokEOF) {
		return nil, p.unexpected("end of guard")
	}
	return g, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) at(kind tokenKind) bool {
	return p.peek().kind == kind
}

func (p *parser) atKeyword(kw string) bool {
	t := p.peek()
	return t.kind == tokIdent && t.text == kw
}

func (p *parser) errorf(pos ir.Pos, format string, args ...any) error {
	return &SyntaxError{Pos: pos, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) unexpected(want string) error {
	t := p.peek()
	return p.errorf(t.pos, "expected %s, found %s", want, t.describe())
}

func (p *parser) expect(kind tokenKind) (token, error) {
	if !p.at(kind) {
		return token{}, p.unexpected(kind.String())
	}
	return p.next(), nil
}

func (p *parser) expectKeyword(kw string) error {
	if !p.atKeyword(kw) {
		return p.unexpected(fmt.Sprintf("%q", kw))
	}
	p.next()
	return nil
}

// name consumes a non-reserved identifier.
func (p *parser) name(what string) (token, error) {
	t := p.peek()
	if t.kind != tokIdent {
		return token{}, p.unexpected(what)
	}
	if keywords[t.text] {
		return token{}, p.errorf(t.pos, "expected %s, found reserved word %q", what, t.text)
	}
	return p.next(), nil
}

// ref parses name or instance.name.
func (p *parser) ref(what string) (ir.EventRef, ir.Pos, error) {
	first, err := p.name(what)
	if err != nil {
		return ir.EventRef{}, ir.Pos{}, err
	}
	if !p.at(tokDot) {
		return ir.Bare(first.text), first.pos, nil
	}
	p.next()
	second, err := p.name(what)
	if err != nil {
		return ir.EventRef{}, ir.Pos{}, err
	}
	return ir.Ref(first.text, second.text), first.pos, nil
}

func (p *parser) document() (*ir.Model, error) {
	m := &ir.Model{}
	for !p.at(tokEOF) {
		switch {
		case p.atKeyword("plant"):
			if err := p.plant(m, ""); err != nil {
				return nil, err
			}
		case p.atKeyword("group"):
			if err := p.group(m); err != nil {
				return nil, err
			}
		case p.atKeyword("requirement"):
			req, err := p.requirement()
			if err != nil {
				return nil, err
			}
			m.Requirements = append(m.Requirements, req)
		case p.at(tokIdent) && !keywords[p.peek().text]:
			c, err := p.instantiation("")
			if err != nil {
				return nil, err
			}
			m.Components = append(m.Components, c)
		default:
			return nil, p.unexpected("declaration")
		}
	}
	return m, nil
}

// plant parses "plant def ..." (template) or "plant [automaton] ..." (inline).
func (p *parser) plant(m *ir.Model, group string) error {
	start := p.next() // plant
	if p.atKeyword("def") {
		if group != "" {
			return p.errorf(p.peek().pos, "templates cannot be defined inside group %s", group)
		}
		p.next()
		t, err := p.template(start.pos)
		if err != nil {
			return err
		}
		m.Templates = append(m.Templates, t)
		return nil
	}
	if p.atKeyword("automaton") {
		p.next()
	}

	nameTok, err := p.name("automaton name")
	if err != nil {
		return err
	}
	if _, err := p.expect(tokColon); err != nil {
		return err
	}
	body := &ir.Template{Name: nameTok.text, Pos: start.pos}
	if err := p.body(body); err != nil {
		return err
	}
	m.Components = append(m.Components, ir.Component{
		Name:  nameTok.text,
		Body:  body,
		Group: group,
		Pos:   start.pos,
	})
	return nil
}

func (p *parser) template(start ir.Pos) (ir.Template, error) {
	nameTok, err := p.name("template name")
	if err != nil {
		return ir.Template{}, err
	}
	t := ir.Template{Name: nameTok.text, Pos: start}

	if _, err := p.expect(tokLParen); err != nil {
		return ir.Template{}, err
	}
	for !p.at(tokRParen) {
		kind, err := p.controllability()
		if err != nil {
			return ir.Template{}, err
		}
		names, err := p.nameList("parameter name")
		if err != nil {
			return ir.Template{}, err
		}
		for _, n := range names {
			t.Params = append(t.Params, ir.EventDecl{Name: n.text, Kind: kind, Pos: n.pos})
		}
		if p.at(tokSemi) {
			p.next()
			continue
		}
		if !p.at(tokRParen) {
			return ir.Template{}, p.unexpected(`";" or ")"`)
		}
	}
	p.next() // )

	if _, err := p.expect(tokColon); err != nil {
		return ir.Template{}, err
	}
	if err := p.body(&t); err != nil {
		return ir.Template{}, err
	}
	return t, nil
}

func (p *parser) controllability() (ir.Controllability, error) {
	switch {
	case p.atKeyword("controllable"):
		p.next()
		return ir.Controllable, nil
	case p.atKeyword("uncontrollable"):
		p.next()
		return ir.Uncontrollable, nil
	default:
		return ir.Controllable, p.unexpected(`"controllable" or "uncontrollable"`)
	}
}

func (p *parser) nameList(what string) ([]token, error) {
	var names []token
	for {
		n, err := p.name(what)
		if err != nil {
			return nil, err
		}
		names = append(names, n)
		if !p.at(tokComma) {
			return names, nil
		}
		p.next()
	}
}

// body parses event declarations and locations up to and including "end".
func (p *parser) body(t *ir.Template) error {
	for {
		switch {
		case p.atKeyword("end"):
			p.next()
			return nil
		case p.atKeyword("controllable"), p.atKeyword("uncontrollable"):
			kind, _ := p.controllability()
			names, err := p.nameList("event name")
			if err != nil {
				return err
			}
			if _, err := p.expect(tokSemi); err != nil {
				return err
			}
			for _, n := range names {
				t.Events = append(t.Events, ir.EventDecl{Name: n.text, Kind: kind, Pos: n.pos})
			}
		case p.atKeyword("location"):
			loc, err := p.location()
			if err != nil {
				return err
			}
			t.Locations = append(t.Locations, loc)
		default:
			return p.unexpected(`event declaration, "location" or "end"`)
		}
	}
}

func (p *parser) location() (ir.Location, error) {
	start := p.next() // location
	nameTok, err := p.name("location name")
	if err != nil {
		return ir.Location{}, err
	}
	loc := ir.Location{Name: nameTok.text, Pos: start.pos}

	if p.at(tokSemi) {
		p.next()
		return loc, nil
	}
	if _, err := p.expect(tokColon); err != nil {
		return ir.Location{}, err
	}

	for {
		switch {
		case p.atKeyword("initial"):
			p.next()
			loc.Initial = true
		case p.atKeyword("marked"):
			p.next()
			loc.Marked = true
		case p.atKeyword("edge"):
			e, err := p.edge()
			if err != nil {
				return ir.Location{}, err
			}
			loc.Edges = append(loc.Edges, e)
			continue
		default:
			return loc, nil
		}
		if _, err := p.expect(tokSemi); err != nil {
			return ir.Location{}, err
		}
	}
}

func (p *parser) edge() (ir.Edge, error) {
	start := p.next() // edge
	ev, _, err := p.ref("event")
	if err != nil {
		return ir.Edge{}, err
	}
	e := ir.Edge{Event: ev, Pos: start.pos}
	if p.atKeyword("goto") {
		p.next()
		target, err := p.name("target location")
		if err != nil {
			return ir.Edge{}, err
		}
		e.Target = target.text
	}
	if _, err := p.expect(tokSemi); err != nil {
		return ir.Edge{}, err
	}
	return e, nil
}

func (p *parser) group(m *ir.Model) error {
	p.next() // group
	nameTok, err := p.name("group name")
	if err != nil {
		return err
	}
	if _, err := p.expect(tokColon); err != nil {
		return err
	}
	for {
		switch {
		case p.atKeyword("end"):
			p.next()
			return nil
		case p.atKeyword("plant"):
			if err := p.plant(m, nameTok.text); err != nil {
				return err
			}
		case p.at(tokIdent) && !keywords[p.peek().text]:
			c, err := p.instantiation(nameTok.text)
			if err != nil {
				return err
			}
			m.Components = append(m.Components, c)
		default:
			return p.unexpected(`"plant", instantiation or "end"`)
		}
	}
}

// instantiation parses "Name : Template(args);".
func (p *parser) instantiation(group string) (ir.Component, error) {
	nameTok, err := p.name("instance name")
	if err != nil {
		return ir.Component{}, err
	}
	if _, err := p.expect(tokColon); err != nil {
		return ir.Component{}, err
	}
	tmpl, err := p.name("template name")
	if err != nil {
		return ir.Component{}, err
	}
	c := ir.Component{Name: nameTok.text, Template: tmpl.text, Group: group, Pos: nameTok.pos}

	if _, err := p.expect(tokLParen); err != nil {
		return ir.Component{}, err
	}
	for !p.at(tokRParen) {
		arg, _, err := p.ref("event")
		if err != nil {
			return ir.Component{}, err
		}
		c.Args = append(c.Args, arg)
		if p.at(tokComma) {
			p.next()
			continue
		}
		if !p.at(tokRParen) {
			return ir.Component{}, p.unexpected(`"," or ")"`)
		}
	}
	p.next() // )
	if _, err := p.expect(tokSemi); err != nil {
		return ir.Component{}, err
	}
	return c, nil
}

func (p *parser) requirement() (ir.Requirement, error) {
	start := p.next() // requirement
	if p.atKeyword("invariant") {
		p.next()
	}
	g, err := p.guard()
	if err != nil {
		return ir.Requirement{}, err
	}
	if err := p.expectKeyword("disables"); err != nil {
		return ir.Requirement{}, err
	}
	req := ir.Requirement{Guard: g, Pos: start.pos}

	if p.at(tokLBrace) {
		p.next()
		req.Set = true
		for {
			ref, _, err := p.ref("event")
			if err != nil {
				return ir.Requirement{}, err
			}
			req.Disables = append(req.Disables, ref)
			if !p.at(tokComma) {
				break
			}
			p.next()
		}
		if _, err := p.expect(tokRBrace); err != nil {
			return ir.Requirement{}, err
		}
	} else {
		ref, _, err := p.ref("event")
		if err != nil {
			return ir.Requirement{}, err
		}
		req.Disables = []ir.EventRef{ref}
	}

	if _, err := p.expect(tokSemi); err != nil {
		return ir.Requirement{}, err
	}
	return req, nil
}

func (p *parser) guard() (*ir.Guard, error) {
	left, err := p.conjunction()
	if err != nil {
		return nil, err
	}
	for p.atKeyword("or") {
		p.next()
		right, err := p.conjunction()
		if err != nil {
			return nil, err
		}
		left = ir.Or(left, right)
	}
	return left, nil
}

func (p *parser) conjunction() (*ir.Guard, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.atKeyword("and") {
		p.next()
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = ir.And(left, right)
	}
	return left, nil
}

func (p *parser) unary() (*ir.Guard, error) {
	switch {
	case p.atKeyword("not"):
		p.next()
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return ir.Not(x), nil
	case p.at(tokLParen):
		p.next()
		g, err := p.guard()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return g, nil
	default:
		ref, _, err := p.ref("guard predicate")
		if err != nil {
			return nil, err
		}
		return &ir.Guard{Kind: ir.GuardAtom, Ref: ref}, nil
	}
}
