package ir

import "fmt"

// Pos is a source position attached to model statements.
// The zero value means "unknown".
type Pos struct {
	File   string `json:"file,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

// IsValid reports whether the position carries a line number.
func (p Pos) IsValid() bool {
	return p.Line > 0
}

func (p Pos) String() string {
	if !p.IsValid() {
		return p.File
	}
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// Controllability classifies an event.
type Controllability int

const (
	// Controllable events may be disabled by a supervisor.
	Controllable Controllability = iota
	// Uncontrollable events must always be tolerated.
	Uncontrollable
)

func (c Controllability) String() string {
	if c == Uncontrollable {
		return "uncontrollable"
	}
	return "controllable"
}

// ParseControllability parses the "controllable"/"uncontrollable" keyword.
func ParseControllability(s string) (Controllability, error) {
	switch s {
	case "controllable":
		return Controllable, nil
	case "uncontrollable":
		return Uncontrollable, nil
	default:
		return Controllable, fmt.Errorf("invalid controllability %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c Controllability) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Controllability) UnmarshalText(text []byte) error {
	v, err := ParseControllability(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// EventDecl declares an event: a formal parameter or a template-local event.
type EventDecl struct {
	Name string          `json:"name"`
	Kind Controllability `json:"kind"`
	Pos  Pos             `json:"-"`
}

// Edge is an outgoing transition of a location.
// An empty Target is a self-loop: the event fires without a location change.
type Edge struct {
	Event  EventRef `json:"event"`
	Target string   `json:"target,omitempty"`
	Pos    Pos      `json:"-"`
}

// Location is an automaton location with its outgoing edges.
type Location struct {
	Name    string `json:"name"`
	Initial bool   `json:"initial,omitempty"`
	Marked  bool   `json:"marked,omitempty"`
	Edges   []Edge `json:"edges,omitempty"`
	Pos     Pos    `json:"-"`
}

// Template is a reusable automaton blueprint.
//
// Params are the formal event parameters, bound positionally at instantiation.
// Events are declared locally and become fresh events of every instance.
type Template struct {
	Name      string      `json:"name"`
	Params    []EventDecl `json:"params,omitempty"`
	Events    []EventDecl `json:"events,omitempty"`
	Locations []Location  `json:"locations"`
	Pos       Pos         `json:"-"`
}

// Param returns the index of the formal parameter with the given name, or -1.
func (t *Template) Param(name string) int {
	for i, p := range t.Params {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// Location returns the named location, or nil.
func (t *Template) Location(name string) *Location {
	for i := range t.Locations {
		if t.Locations[i].Name == name {
			return &t.Locations[i]
		}
	}
	return nil
}

// Component is one entry of the instantiation list.
//
// Exactly one of Template and Body is set. Template names a registered
// template applied to Args; Body is an inline concrete automaton as found in
// flattened documents (no formal parameters, edges may use dotted refs).
type Component struct {
	Name     string     `json:"name"`
	Template string     `json:"template,omitempty"`
	Args     []EventRef `json:"args,omitempty"`
	Body     *Template  `json:"body,omitempty"`
	Group    string     `json:"group,omitempty"`
	Pos      Pos        `json:"-"`
}

// IsInline reports whether the component carries its own automaton body.
func (c *Component) IsInline() bool {
	return c.Body != nil
}

// Requirement is a symbolic requirement invariant.
// Set records whether the disables target was written as a set literal.
type Requirement struct {
	Guard    *Guard     `json:"guard"`
	Disables []EventRef `json:"disables"`
	Set      bool       `json:"set,omitempty"`
	Pos      Pos        `json:"-"`
}

// Model is the complete elaboration input: templates, the ordered
// instantiation list, and the ordered requirement list.
type Model struct {
	Templates    []Template    `json:"templates,omitempty"`
	Components   []Component   `json:"components,omitempty"`
	Requirements []Requirement `json:"requirements,omitempty"`
}

// Merge appends the contents of other to m.
func (m *Model) Merge(other *Model) {
	m.Templates = append(m.Templates, other.Templates...)
	m.Components = append(m.Components, other.Components...)
	m.Requirements = append(m.Requirements, other.Requirements...)
}
