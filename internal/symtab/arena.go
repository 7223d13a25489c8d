package symtab

import "github.com/roach88/desflat/internal/ir"

// Arena allocates events with stable integer ids.
// Sharing an event between instances means holding the same id.
type Arena struct {
	events []ir.Event
}

// New allocates a fresh event owned by owner.
func (a *Arena) New(owner, name string, kind ir.Controllability) ir.EventID {
	id := ir.EventID(len(a.events))
	a.events = append(a.events, ir.Event{ID: id, Owner: owner, Name: name, Kind: kind})
	return id
}

// Get returns the event with the given id.
func (a *Arena) Get(id ir.EventID) ir.Event {
	return a.events[id]
}

// Len returns the number of allocated events.
func (a *Arena) Len() int {
	return len(a.events)
}

// Events returns a copy of all events in allocation order.
func (a *Arena) Events() []ir.Event {
	return append([]ir.Event(nil), a.events...)
}
