package ir

// EventID identifies an event in Network.Events.
type EventID int

// Event is a concrete event owned by exactly one instance.
// Controllability is fixed by the owner's declaration.
type Event struct {
	ID    EventID         `json:"id"`
	Owner string          `json:"owner"`
	Name  string          `json:"name"`
	Kind  Controllability `json:"kind"`
}

// QualifiedName renders the event as owner.name.
func (e Event) QualifiedName() string {
	return e.Owner + "." + e.Name
}

// Binding records the event bound to one formal parameter position.
type Binding struct {
	Formal string  `json:"formal"`
	Event  EventID `json:"event"`
}

// ResolvedEdge is an edge whose event is a concrete identity.
// An empty Target is a self-loop.
type ResolvedEdge struct {
	Event  EventID `json:"event"`
	Target string  `json:"target,omitempty"`
}

// ResolvedLocation is a location of a concrete instance.
type ResolvedLocation struct {
	Name    string         `json:"name"`
	Initial bool           `json:"initial,omitempty"`
	Marked  bool           `json:"marked,omitempty"`
	Edges   []ResolvedEdge `json:"edges,omitempty"`
}

// Instance is a fully resolved automaton.
//
// Owned lists the events this instance declares, in declaration order.
// Edges may also reference events owned by other instances; that sharing is
// the synchronisation structure consumed by supervisor synthesis.
type Instance struct {
	Name      string             `json:"name"`
	Template  string             `json:"template,omitempty"`
	Bindings  []Binding          `json:"bindings,omitempty"`
	Owned     []EventID          `json:"owned,omitempty"`
	Locations []ResolvedLocation `json:"locations"`
}

// Location returns the named location, or nil.
func (i *Instance) Location(name string) *ResolvedLocation {
	for k := range i.Locations {
		if i.Locations[k].Name == name {
			return &i.Locations[k]
		}
	}
	return nil
}

// UsedEvents returns every event referenced by an edge of the instance,
// deduplicated, in first-use order.
func (i *Instance) UsedEvents() []EventID {
	seen := make(map[EventID]bool)
	var used []EventID
	for _, loc := range i.Locations {
		for _, e := range loc.Edges {
			if !seen[e.Event] {
				seen[e.Event] = true
				used = append(used, e.Event)
			}
		}
	}
	return used
}

// Clause is one expanded requirement: the guard disables exactly one event.
// Source is the index of the requirement it was expanded from.
type Clause struct {
	Guard    *Guard  `json:"guard"`
	Disables EventID `json:"disables"`
	Source   int     `json:"source"`
}

// Network is the output of one elaboration run.
//
// Instances are in component declaration order. Groups maps instance name to
// group name for grouped instances only; GroupOrder lists group names in
// emission order.
type Network struct {
	Events     []Event           `json:"events"`
	Instances  []*Instance       `json:"instances"`
	Clauses    []Clause          `json:"clauses"`
	Groups     map[string]string `json:"groups,omitempty"`
	GroupOrder []string          `json:"group_order,omitempty"`

	index map[string]int
}

// NewNetwork assembles a network and builds its name index.
func NewNetwork(events []Event, instances []*Instance, clauses []Clause) *Network {
	n := &Network{
		Events:    events,
		Instances: instances,
		Clauses:   clauses,
	}
	n.reindex()
	return n
}

func (n *Network) reindex() {
	n.index = make(map[string]int, len(n.Instances))
	for i, inst := range n.Instances {
		n.index[inst.Name] = i
	}
}

// Instance looks up an instance by name.
func (n *Network) Instance(name string) (*Instance, bool) {
	if n.index == nil {
		n.reindex()
	}
	i, ok := n.index[name]
	if !ok {
		return nil, false
	}
	return n.Instances[i], true
}

// Event returns the event with the given id.
func (n *Network) Event(id EventID) Event {
	return n.Events[id]
}

// GroupOf returns the group an instance is assigned to, or "".
func (n *Network) GroupOf(instance string) string {
	return n.Groups[instance]
}

// WithGroups returns a copy of n carrying the given partition.
// Instances, events and clauses are shared; they are immutable.
func (n *Network) WithGroups(groups map[string]string, order []string) *Network {
	cp := *n
	cp.Groups = groups
	cp.GroupOrder = order
	cp.reindex()
	return &cp
}
